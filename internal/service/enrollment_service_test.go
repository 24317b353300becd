package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/autoecole-dz/platform-api/internal/models"
	appErrors "github.com/autoecole-dz/platform-api/pkg/errors"
)

type mockEnrollmentRepo struct {
	enrollments map[string]models.Enrollment
	activePairs map[string]bool
	created     *models.Enrollment
	promoted    []string
}

func (m *mockEnrollmentRepo) ListBySchool(ctx context.Context, schoolID string, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	var list []models.EnrollmentDetail
	for _, e := range m.enrollments {
		if e.SchoolID == schoolID {
			list = append(list, models.EnrollmentDetail{Enrollment: e})
		}
	}
	return list, len(list), nil
}

func (m *mockEnrollmentRepo) ListByStudent(ctx context.Context, studentID string) ([]models.EnrollmentDetail, error) {
	var list []models.EnrollmentDetail
	for _, e := range m.enrollments {
		if e.StudentID == studentID {
			list = append(list, models.EnrollmentDetail{Enrollment: e})
		}
	}
	return list, nil
}

func (m *mockEnrollmentRepo) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	if e, ok := m.enrollments[id]; ok {
		return &e, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockEnrollmentRepo) FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	if e, ok := m.enrollments[id]; ok {
		return &models.EnrollmentDetail{Enrollment: e}, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockEnrollmentRepo) ExistsActive(ctx context.Context, studentID, schoolID string) (bool, error) {
	return m.activePairs[studentID+"/"+schoolID], nil
}

func (m *mockEnrollmentRepo) Create(ctx context.Context, enrollment *models.Enrollment) error {
	if m.enrollments == nil {
		m.enrollments = make(map[string]models.Enrollment)
	}
	if enrollment.ID == "" {
		enrollment.ID = "new-enrollment"
	}
	m.enrollments[enrollment.ID] = *enrollment
	m.created = enrollment
	return nil
}

func (m *mockEnrollmentRepo) PromoteToPendingApproval(ctx context.Context, id string) (bool, error) {
	e, ok := m.enrollments[id]
	if !ok || e.Status != models.EnrollmentStatusPendingDocuments {
		return false, nil
	}
	e.Status = models.EnrollmentStatusPendingApproval
	m.enrollments[id] = e
	m.promoted = append(m.promoted, id)
	return true, nil
}

func (m *mockEnrollmentRepo) Approve(ctx context.Context, id string, approvedAt time.Time) (bool, error) {
	e, ok := m.enrollments[id]
	if !ok || e.Status != models.EnrollmentStatusPendingApproval {
		return false, nil
	}
	e.Status = models.EnrollmentStatusApproved
	e.ApprovedAt = &approvedAt
	m.enrollments[id] = e
	return true, nil
}

func (m *mockEnrollmentRepo) Refuse(ctx context.Context, id, reason string) (bool, error) {
	e, ok := m.enrollments[id]
	if !ok || e.Status != models.EnrollmentStatusPendingApproval {
		return false, nil
	}
	e.Status = models.EnrollmentStatusRejected
	e.RefusalReason = &reason
	m.enrollments[id] = e
	return true, nil
}

type mockSchoolReader struct{}

func (m *mockSchoolReader) FindByID(ctx context.Context, id string) (*models.School, error) {
	if id == "missing" {
		return nil, sql.ErrNoRows
	}
	return &models.School{ID: id, Name: "Auto Ecole El Amane"}, nil
}

type mockUserStore struct {
	roles map[string]models.UserRole
}

func (m *mockUserStore) FindByID(ctx context.Context, id string) (*models.User, error) {
	role, ok := m.roles[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &models.User{ID: id, Role: role, Active: true}, nil
}

func (m *mockUserStore) PromoteRole(ctx context.Context, id string, from, to models.UserRole) error {
	if m.roles == nil {
		m.roles = make(map[string]models.UserRole)
	}
	if m.roles[id] == from {
		m.roles[id] = to
	}
	return nil
}

type mockDocumentLister struct {
	submissions map[string][]models.DocumentSubmission
}

func (m *mockDocumentLister) ListActiveByEnrollment(ctx context.Context, enrollmentID string) ([]models.DocumentSubmission, error) {
	return m.submissions[enrollmentID], nil
}

type stubNotifier struct {
	sent []models.NotificationType
}

func (s *stubNotifier) Notify(userID string, kind models.NotificationType, message string) {
	s.sent = append(s.sent, kind)
}

type stubAuditLogger struct {
	actions []string
}

func (s *stubAuditLogger) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	s.actions = append(s.actions, log.Action)
	return nil
}

type stubCache struct {
	invalidated []string
}

func (s *stubCache) Invalidate(ctx context.Context, pattern string) {
	s.invalidated = append(s.invalidated, pattern)
}

func newEnrollmentService(repo *mockEnrollmentRepo, users *mockUserStore, docs *mockDocumentLister, notifier *stubNotifier, audit *stubAuditLogger) *EnrollmentService {
	if users == nil {
		users = &mockUserStore{roles: map[string]models.UserRole{"s1": models.RoleGuest}}
	}
	if docs == nil {
		docs = &mockDocumentLister{}
	}
	if notifier == nil {
		notifier = &stubNotifier{}
	}
	if audit == nil {
		audit = &stubAuditLogger{}
	}
	return NewEnrollmentService(repo, &mockSchoolReader{}, users, docs, notifier, audit, &stubCache{}, nil, validator.New(), zap.NewNop())
}

func activeSubmissions(types ...models.DocumentType) []models.DocumentSubmission {
	subs := make([]models.DocumentSubmission, 0, len(types))
	for _, t := range types {
		subs = append(subs, models.DocumentSubmission{
			ID:           "sub-" + string(t),
			DocumentType: t,
			Status:       models.DocumentStatusPending,
			Active:       true,
		})
	}
	return subs
}

func TestEnrollmentServiceEnroll(t *testing.T) {
	repo := &mockEnrollmentRepo{}
	notifier := &stubNotifier{}
	svc := newEnrollmentService(repo, nil, nil, notifier, nil)

	detail, err := svc.Enroll(context.Background(), "s1", EnrollRequest{SchoolID: "sc1"})
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusPendingDocuments, detail.Status)
	require.NotNil(t, repo.created)
	assert.Equal(t, "s1", repo.created.StudentID)
	assert.Contains(t, notifier.sent, models.NotificationDocumentsRequired)
}

func TestEnrollmentServiceEnrollDuplicate(t *testing.T) {
	repo := &mockEnrollmentRepo{activePairs: map[string]bool{"s1/sc1": true}}
	svc := newEnrollmentService(repo, nil, nil, nil, nil)

	_, err := svc.Enroll(context.Background(), "s1", EnrollRequest{SchoolID: "sc1"})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrDuplicateEnrollment.Code, appErr.Code)
}

func TestEnrollmentServiceEnrollSchoolMissing(t *testing.T) {
	svc := newEnrollmentService(&mockEnrollmentRepo{}, nil, nil, nil, nil)

	_, err := svc.Enroll(context.Background(), "s1", EnrollRequest{SchoolID: "missing"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestEnrollmentServiceReapplyAfterRejection(t *testing.T) {
	// A rejected enrollment does not block a fresh application.
	repo := &mockEnrollmentRepo{enrollments: map[string]models.Enrollment{
		"e1": {ID: "e1", StudentID: "s1", SchoolID: "sc1", Status: models.EnrollmentStatusRejected},
	}}
	svc := newEnrollmentService(repo, nil, nil, nil, nil)

	detail, err := svc.Enroll(context.Background(), "s1", EnrollRequest{SchoolID: "sc1"})
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusPendingDocuments, detail.Status)
	assert.NotEqual(t, "e1", detail.ID)
}

func TestEnrollmentServiceRecomputePromotesWhenComplete(t *testing.T) {
	repo := &mockEnrollmentRepo{enrollments: map[string]models.Enrollment{
		"e1": {ID: "e1", StudentID: "s1", SchoolID: "sc1", Status: models.EnrollmentStatusPendingDocuments},
	}}
	docs := &mockDocumentLister{submissions: map[string][]models.DocumentSubmission{
		"e1": activeSubmissions(models.RequiredDocumentTypes...),
	}}
	svc := newEnrollmentService(repo, nil, docs, nil, nil)

	require.NoError(t, svc.RecomputeStatus(context.Background(), "e1"))
	assert.Equal(t, models.EnrollmentStatusPendingApproval, repo.enrollments["e1"].Status)
}

func TestEnrollmentServiceRecomputeIncompleteSetStays(t *testing.T) {
	repo := &mockEnrollmentRepo{enrollments: map[string]models.Enrollment{
		"e1": {ID: "e1", StudentID: "s1", SchoolID: "sc1", Status: models.EnrollmentStatusPendingDocuments},
	}}
	docs := &mockDocumentLister{submissions: map[string][]models.DocumentSubmission{
		"e1": activeSubmissions(models.DocumentTypeProfilePhoto, models.DocumentTypeIDCard, models.DocumentTypeMedicalCertificate),
	}}
	svc := newEnrollmentService(repo, nil, docs, nil, nil)

	require.NoError(t, svc.RecomputeStatus(context.Background(), "e1"))
	assert.Equal(t, models.EnrollmentStatusPendingDocuments, repo.enrollments["e1"].Status)
	assert.Empty(t, repo.promoted)
}

func TestEnrollmentServiceRecomputeSkipsTerminal(t *testing.T) {
	repo := &mockEnrollmentRepo{enrollments: map[string]models.Enrollment{
		"e1": {ID: "e1", StudentID: "s1", SchoolID: "sc1", Status: models.EnrollmentStatusApproved},
	}}
	docs := &mockDocumentLister{submissions: map[string][]models.DocumentSubmission{
		"e1": activeSubmissions(models.RequiredDocumentTypes...),
	}}
	svc := newEnrollmentService(repo, nil, docs, nil, nil)

	require.NoError(t, svc.RecomputeStatus(context.Background(), "e1"))
	assert.Equal(t, models.EnrollmentStatusApproved, repo.enrollments["e1"].Status)
}

func TestEnrollmentServiceAccept(t *testing.T) {
	repo := &mockEnrollmentRepo{enrollments: map[string]models.Enrollment{
		"e1": {ID: "e1", StudentID: "s1", SchoolID: "sc1", Status: models.EnrollmentStatusPendingApproval},
	}}
	users := &mockUserStore{roles: map[string]models.UserRole{"s1": models.RoleGuest}}
	notifier := &stubNotifier{}
	audit := &stubAuditLogger{}
	svc := newEnrollmentService(repo, users, nil, notifier, audit)
	claims := &models.JWTClaims{UserID: "m1", Role: models.RoleManager}

	detail, err := svc.Accept(context.Background(), "e1", claims, "sc1", "127.0.0.1", "test")
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusApproved, detail.Status)
	assert.NotNil(t, detail.ApprovedAt)
	assert.Equal(t, models.RoleStudent, users.roles["s1"])
	assert.Contains(t, notifier.sent, models.NotificationEnrollmentAccepted)
	assert.Contains(t, audit.actions, models.AuditActionEnrollmentAccept)
}

func TestEnrollmentServiceAcceptIdempotent(t *testing.T) {
	approvedAt := time.Now().UTC()
	repo := &mockEnrollmentRepo{enrollments: map[string]models.Enrollment{
		"e1": {ID: "e1", StudentID: "s1", SchoolID: "sc1", Status: models.EnrollmentStatusApproved, ApprovedAt: &approvedAt},
	}}
	users := &mockUserStore{roles: map[string]models.UserRole{"s1": models.RoleStudent}}
	notifier := &stubNotifier{}
	svc := newEnrollmentService(repo, users, nil, notifier, nil)

	detail, err := svc.Accept(context.Background(), "e1", nil, "sc1", "", "")
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusApproved, detail.Status)
	// No second decision happened: the student keeps their role and no
	// duplicate notification goes out.
	assert.Equal(t, models.RoleStudent, users.roles["s1"])
	assert.Empty(t, notifier.sent)
}

func TestEnrollmentServiceAcceptFromPendingDocuments(t *testing.T) {
	repo := &mockEnrollmentRepo{enrollments: map[string]models.Enrollment{
		"e1": {ID: "e1", StudentID: "s1", SchoolID: "sc1", Status: models.EnrollmentStatusPendingDocuments},
	}}
	svc := newEnrollmentService(repo, nil, nil, nil, nil)

	_, err := svc.Accept(context.Background(), "e1", nil, "sc1", "", "")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidState.Code, appErrors.FromError(err).Code)
}

func TestEnrollmentServiceAcceptWrongSchool(t *testing.T) {
	repo := &mockEnrollmentRepo{enrollments: map[string]models.Enrollment{
		"e1": {ID: "e1", StudentID: "s1", SchoolID: "sc1", Status: models.EnrollmentStatusPendingApproval},
	}}
	svc := newEnrollmentService(repo, nil, nil, nil, nil)

	_, err := svc.Accept(context.Background(), "e1", nil, "sc2", "", "")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestEnrollmentServiceRefuse(t *testing.T) {
	repo := &mockEnrollmentRepo{enrollments: map[string]models.Enrollment{
		"e1": {ID: "e1", StudentID: "s1", SchoolID: "sc1", Status: models.EnrollmentStatusPendingApproval},
	}}
	notifier := &stubNotifier{}
	audit := &stubAuditLogger{}
	svc := newEnrollmentService(repo, nil, nil, notifier, audit)

	detail, err := svc.Refuse(context.Background(), "e1", RefuseEnrollmentRequest{Reason: "incomplete id card"}, nil, "sc1", "", "")
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusRejected, detail.Status)
	require.NotNil(t, detail.RefusalReason)
	assert.Equal(t, "incomplete id card", *detail.RefusalReason)
	assert.Contains(t, notifier.sent, models.NotificationEnrollmentRefused)
	assert.Contains(t, audit.actions, models.AuditActionEnrollmentRefuse)
}

func TestEnrollmentServiceRefuseRequiresReason(t *testing.T) {
	repo := &mockEnrollmentRepo{enrollments: map[string]models.Enrollment{
		"e1": {ID: "e1", StudentID: "s1", SchoolID: "sc1", Status: models.EnrollmentStatusPendingApproval},
	}}
	svc := newEnrollmentService(repo, nil, nil, nil, nil)

	_, err := svc.Refuse(context.Background(), "e1", RefuseEnrollmentRequest{Reason: "   "}, nil, "sc1", "", "")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrMissingReason.Code, appErrors.FromError(err).Code)
	assert.Equal(t, models.EnrollmentStatusPendingApproval, repo.enrollments["e1"].Status)
}

func TestEnrollmentServiceRefuseTerminal(t *testing.T) {
	repo := &mockEnrollmentRepo{enrollments: map[string]models.Enrollment{
		"e1": {ID: "e1", StudentID: "s1", SchoolID: "sc1", Status: models.EnrollmentStatusRejected},
	}}
	svc := newEnrollmentService(repo, nil, nil, nil, nil)

	_, err := svc.Refuse(context.Background(), "e1", RefuseEnrollmentRequest{Reason: "again"}, nil, "sc1", "", "")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidState.Code, appErrors.FromError(err).Code)
}
