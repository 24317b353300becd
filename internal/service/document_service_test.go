package service

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/autoecole-dz/platform-api/internal/models"
	"github.com/autoecole-dz/platform-api/pkg/config"
	appErrors "github.com/autoecole-dz/platform-api/pkg/errors"
)

type mockDocumentRepo struct {
	submissions map[string]models.DocumentSubmission
	schoolIDs   map[string]string
	nextID      int
	reviewed    map[string]models.DocumentStatus
}

func (m *mockDocumentRepo) Create(ctx context.Context, submission *models.DocumentSubmission) error {
	if m.submissions == nil {
		m.submissions = make(map[string]models.DocumentSubmission)
	}
	// Mirror the production behavior: a new upload supersedes the previous
	// active submission of the same type.
	for id, existing := range m.submissions {
		if existing.EnrollmentID == submission.EnrollmentID &&
			existing.DocumentType == submission.DocumentType && existing.Active {
			existing.Active = false
			m.submissions[id] = existing
		}
	}
	m.nextID++
	submission.ID = fmt.Sprintf("sub-%d", m.nextID)
	m.submissions[submission.ID] = *submission
	return nil
}

func (m *mockDocumentRepo) FindByID(ctx context.Context, id string) (*models.DocumentSubmission, error) {
	if s, ok := m.submissions[id]; ok {
		return &s, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockDocumentRepo) ListActiveByEnrollment(ctx context.Context, enrollmentID string) ([]models.DocumentSubmission, error) {
	var list []models.DocumentSubmission
	for _, s := range m.submissions {
		if s.EnrollmentID == enrollmentID && s.Active {
			list = append(list, s)
		}
	}
	return list, nil
}

func (m *mockDocumentRepo) ListDetailByEnrollment(ctx context.Context, enrollmentID string) ([]models.DocumentSubmissionDetail, error) {
	var list []models.DocumentSubmissionDetail
	for _, s := range m.submissions {
		if s.EnrollmentID == enrollmentID && s.Active {
			list = append(list, models.DocumentSubmissionDetail{DocumentSubmission: s})
		}
	}
	return list, nil
}

func (m *mockDocumentRepo) UpdateStatus(ctx context.Context, id string, status models.DocumentStatus, reason *string, reviewedAt time.Time) error {
	s, ok := m.submissions[id]
	if !ok {
		return sql.ErrNoRows
	}
	s.Status = status
	s.RejectionReason = reason
	s.ReviewedAt = &reviewedAt
	m.submissions[id] = s
	if m.reviewed == nil {
		m.reviewed = make(map[string]models.DocumentStatus)
	}
	m.reviewed[id] = status
	return nil
}

func (m *mockDocumentRepo) SchoolIDForSubmission(ctx context.Context, id string) (string, error) {
	if schoolID, ok := m.schoolIDs[id]; ok {
		return schoolID, nil
	}
	return "", sql.ErrNoRows
}

type mockFileStore struct {
	saved   []string
	deleted []string
}

func (m *mockFileStore) SaveStream(filename string, r io.Reader) (string, error) {
	if _, err := io.Copy(io.Discard, r); err != nil {
		return "", err
	}
	m.saved = append(m.saved, filename)
	return filename, nil
}

func (m *mockFileStore) Delete(filename string) error {
	m.deleted = append(m.deleted, filename)
	return nil
}

type mockSigner struct{}

func (m *mockSigner) Generate(fileID, relPath string) (string, time.Time, error) {
	return "token:" + fileID + ":" + relPath, time.Now().Add(time.Hour), nil
}

func (m *mockSigner) Parse(token string, allowExpired bool) (string, string, time.Time, error) {
	parts := strings.SplitN(token, ":", 3)
	if len(parts) != 3 || parts[0] != "token" {
		return "", "", time.Time{}, fmt.Errorf("malformed token")
	}
	return parts[1], parts[2], time.Now().Add(time.Hour), nil
}

type stubRecomputer struct {
	calls []string
}

func (s *stubRecomputer) RecomputeStatus(ctx context.Context, enrollmentID string) error {
	s.calls = append(s.calls, enrollmentID)
	return nil
}

func documentsTestConfig() config.DocumentsConfig {
	return config.DocumentsConfig{
		MaxFileSizeBytes: 1 << 20,
		AllowedMIMEs:     []string{"image/jpeg", "image/png", "application/pdf"},
	}
}

func newDocumentService(repo *mockDocumentRepo, enrollments *mockEnrollmentRepo, lifecycle *stubRecomputer, store *mockFileStore, notifier *stubNotifier) *DocumentService {
	if lifecycle == nil {
		lifecycle = &stubRecomputer{}
	}
	if store == nil {
		store = &mockFileStore{}
	}
	if notifier == nil {
		notifier = &stubNotifier{}
	}
	return NewDocumentService(repo, enrollments, lifecycle, store, &mockSigner{}, notifier, &stubAuditLogger{}, nil, documentsTestConfig(), zap.NewNop())
}

func pendingEnrollments() *mockEnrollmentRepo {
	return &mockEnrollmentRepo{enrollments: map[string]models.Enrollment{
		"e1": {ID: "e1", StudentID: "s1", SchoolID: "sc1", Status: models.EnrollmentStatusPendingDocuments},
	}}
}

func uploadInput(docType models.DocumentType) UploadDocumentInput {
	return UploadDocumentInput{
		EnrollmentID: "e1",
		DocumentType: docType,
		FileName:     "scan.pdf",
		SizeBytes:    2048,
		MimeType:     "application/pdf",
		Content:      strings.NewReader("fake pdf bytes"),
	}
}

func TestDocumentServiceUpload(t *testing.T) {
	repo := &mockDocumentRepo{}
	lifecycle := &stubRecomputer{}
	store := &mockFileStore{}
	svc := newDocumentService(repo, pendingEnrollments(), lifecycle, store, nil)

	sub, err := svc.Upload(context.Background(), "s1", uploadInput(models.DocumentTypeIDCard))
	require.NoError(t, err)
	assert.Equal(t, models.DocumentStatusPending, sub.Status)
	assert.True(t, sub.Active)
	assert.Len(t, store.saved, 1)
	assert.Contains(t, lifecycle.calls, "e1")
}

func TestDocumentServiceUploadInvalidType(t *testing.T) {
	svc := newDocumentService(&mockDocumentRepo{}, pendingEnrollments(), nil, nil, nil)

	_, err := svc.Upload(context.Background(), "s1", uploadInput("driving_license"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidDocumentType.Code, appErrors.FromError(err).Code)
}

func TestDocumentServiceUploadTooLarge(t *testing.T) {
	svc := newDocumentService(&mockDocumentRepo{}, pendingEnrollments(), nil, nil, nil)

	in := uploadInput(models.DocumentTypeIDCard)
	in.SizeBytes = 10 << 20
	_, err := svc.Upload(context.Background(), "s1", in)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestDocumentServiceUploadBadMime(t *testing.T) {
	svc := newDocumentService(&mockDocumentRepo{}, pendingEnrollments(), nil, nil, nil)

	in := uploadInput(models.DocumentTypeIDCard)
	in.MimeType = "application/zip"
	_, err := svc.Upload(context.Background(), "s1", in)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestDocumentServiceUploadWrongStudent(t *testing.T) {
	svc := newDocumentService(&mockDocumentRepo{}, pendingEnrollments(), nil, nil, nil)

	_, err := svc.Upload(context.Background(), "someone-else", uploadInput(models.DocumentTypeIDCard))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestDocumentServiceUploadTerminalEnrollment(t *testing.T) {
	enrollments := &mockEnrollmentRepo{enrollments: map[string]models.Enrollment{
		"e1": {ID: "e1", StudentID: "s1", SchoolID: "sc1", Status: models.EnrollmentStatusRejected},
	}}
	svc := newDocumentService(&mockDocumentRepo{}, enrollments, nil, nil, nil)

	_, err := svc.Upload(context.Background(), "s1", uploadInput(models.DocumentTypeIDCard))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidState.Code, appErrors.FromError(err).Code)
}

func TestDocumentServiceReuploadSupersedes(t *testing.T) {
	repo := &mockDocumentRepo{}
	svc := newDocumentService(repo, pendingEnrollments(), nil, nil, nil)

	first, err := svc.Upload(context.Background(), "s1", uploadInput(models.DocumentTypeIDCard))
	require.NoError(t, err)
	second, err := svc.Upload(context.Background(), "s1", uploadInput(models.DocumentTypeIDCard))
	require.NoError(t, err)

	assert.False(t, repo.submissions[first.ID].Active)
	assert.True(t, repo.submissions[second.ID].Active)

	active, err := repo.ListActiveByEnrollment(context.Background(), "e1")
	require.NoError(t, err)
	assert.Len(t, active, 1)
}

func TestDocumentServiceStatusView(t *testing.T) {
	repo := &mockDocumentRepo{}
	svc := newDocumentService(repo, pendingEnrollments(), nil, nil, nil)

	_, err := svc.Upload(context.Background(), "s1", uploadInput(models.DocumentTypeProfilePhoto))
	require.NoError(t, err)

	statuses, err := svc.Status(context.Background(), "e1", "s1", "")
	require.NoError(t, err)
	assert.Len(t, statuses, len(models.RequiredDocumentTypes))

	uploaded := 0
	for _, st := range statuses {
		if st.Status != models.DocumentStatusNotUploaded {
			uploaded++
		}
	}
	assert.Equal(t, 1, uploaded)
}

func TestDocumentServiceReviewAccept(t *testing.T) {
	repo := &mockDocumentRepo{}
	notifier := &stubNotifier{}
	svc := newDocumentService(repo, pendingEnrollments(), nil, nil, notifier)

	sub, err := svc.Upload(context.Background(), "s1", uploadInput(models.DocumentTypeIDCard))
	require.NoError(t, err)
	repo.schoolIDs = map[string]string{sub.ID: "sc1"}

	reviewed, err := svc.Review(context.Background(), sub.ID, ReviewDocumentRequest{Status: models.DocumentStatusAccepted}, nil, "sc1", "", "")
	require.NoError(t, err)
	assert.Equal(t, models.DocumentStatusAccepted, reviewed.Status)
	assert.Contains(t, notifier.sent, models.NotificationDocumentAccepted)
}

func TestDocumentServiceReviewRejectRequiresReason(t *testing.T) {
	repo := &mockDocumentRepo{}
	svc := newDocumentService(repo, pendingEnrollments(), nil, nil, nil)

	sub, err := svc.Upload(context.Background(), "s1", uploadInput(models.DocumentTypeIDCard))
	require.NoError(t, err)
	repo.schoolIDs = map[string]string{sub.ID: "sc1"}

	_, err = svc.Review(context.Background(), sub.ID, ReviewDocumentRequest{Status: models.DocumentStatusRejected}, nil, "sc1", "", "")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrMissingReason.Code, appErrors.FromError(err).Code)
}

func TestDocumentServiceReviewSuperseded(t *testing.T) {
	repo := &mockDocumentRepo{}
	svc := newDocumentService(repo, pendingEnrollments(), nil, nil, nil)

	first, err := svc.Upload(context.Background(), "s1", uploadInput(models.DocumentTypeIDCard))
	require.NoError(t, err)
	_, err = svc.Upload(context.Background(), "s1", uploadInput(models.DocumentTypeIDCard))
	require.NoError(t, err)
	repo.schoolIDs = map[string]string{first.ID: "sc1"}

	_, err = svc.Review(context.Background(), first.ID, ReviewDocumentRequest{Status: models.DocumentStatusAccepted}, nil, "sc1", "", "")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidState.Code, appErrors.FromError(err).Code)
}

func TestDocumentServiceReviewWrongSchool(t *testing.T) {
	repo := &mockDocumentRepo{}
	svc := newDocumentService(repo, pendingEnrollments(), nil, nil, nil)

	sub, err := svc.Upload(context.Background(), "s1", uploadInput(models.DocumentTypeIDCard))
	require.NoError(t, err)
	repo.schoolIDs = map[string]string{sub.ID: "sc1"}

	_, err = svc.Review(context.Background(), sub.ID, ReviewDocumentRequest{Status: models.DocumentStatusAccepted}, nil, "sc2", "", "")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestDocumentServiceResolveDownload(t *testing.T) {
	repo := &mockDocumentRepo{}
	svc := newDocumentService(repo, pendingEnrollments(), nil, nil, nil)

	sub, err := svc.Upload(context.Background(), "s1", uploadInput(models.DocumentTypeIDCard))
	require.NoError(t, err)

	token := "token:" + sub.ID + ":" + sub.StoragePath
	path, err := svc.ResolveDownload(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, sub.StoragePath, path)

	_, err = svc.ResolveDownload(context.Background(), "garbage")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)

	_, err = svc.ResolveDownload(context.Background(), "token:"+sub.ID+":tampered/path")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}
