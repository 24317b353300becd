package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/autoecole-dz/platform-api/internal/models"
	"github.com/autoecole-dz/platform-api/pkg/config"
	appErrors "github.com/autoecole-dz/platform-api/pkg/errors"
)

type documentRepository interface {
	Create(ctx context.Context, submission *models.DocumentSubmission) error
	FindByID(ctx context.Context, id string) (*models.DocumentSubmission, error)
	ListActiveByEnrollment(ctx context.Context, enrollmentID string) ([]models.DocumentSubmission, error)
	ListDetailByEnrollment(ctx context.Context, enrollmentID string) ([]models.DocumentSubmissionDetail, error)
	UpdateStatus(ctx context.Context, id string, status models.DocumentStatus, reason *string, reviewedAt time.Time) error
	SchoolIDForSubmission(ctx context.Context, id string) (string, error)
}

type documentEnrollmentReader interface {
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
}

type documentStatusRecomputer interface {
	RecomputeStatus(ctx context.Context, enrollmentID string) error
}

type fileStore interface {
	SaveStream(filename string, r io.Reader) (string, error)
	Delete(filename string) error
}

type urlSigner interface {
	Generate(fileID, relPath string) (string, time.Time, error)
	Parse(token string, allowExpired bool) (fileID, relPath string, expiresAt time.Time, err error)
}

type documentMetrics interface {
	RecordDocumentUpload()
}

// UploadDocumentInput describes one incoming document file.
type UploadDocumentInput struct {
	EnrollmentID string
	DocumentType models.DocumentType
	FileName     string
	SizeBytes    int64
	MimeType     string
	Content      io.Reader
}

// ReviewDocumentRequest is the manager verdict on one submission.
type ReviewDocumentRequest struct {
	Status models.DocumentStatus `json:"status" validate:"required,oneof=accepted rejected"`
	Reason string                `json:"reason"`
}

// DocumentService handles document uploads, the per-type status view, manager
// review and signed download links.
type DocumentService struct {
	repo        documentRepository
	enrollments documentEnrollmentReader
	lifecycle   documentStatusRecomputer
	store       fileStore
	signer      urlSigner
	notifier    enrollmentNotifier
	audit       auditLogger
	metrics     documentMetrics
	cfg         config.DocumentsConfig
	logger      *zap.Logger
}

// NewDocumentService constructs DocumentService. metrics may be nil.
func NewDocumentService(repo documentRepository, enrollments documentEnrollmentReader, lifecycle documentStatusRecomputer, store fileStore, signer urlSigner, notifier enrollmentNotifier, audit auditLogger, metrics documentMetrics, cfg config.DocumentsConfig, logger *zap.Logger) *DocumentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DocumentService{
		repo:        repo,
		enrollments: enrollments,
		lifecycle:   lifecycle,
		store:       store,
		signer:      signer,
		notifier:    notifier,
		audit:       audit,
		metrics:     metrics,
		cfg:         cfg,
		logger:      logger,
	}
}

// Upload stores a document for the student's enrollment and re-evaluates the
// lifecycle gate. A re-upload of the same type supersedes the previous
// submission and resets its review to pending.
func (s *DocumentService) Upload(ctx context.Context, studentID string, in UploadDocumentInput) (*models.DocumentSubmission, error) {
	if !models.IsValidDocumentType(in.DocumentType) {
		return nil, appErrors.Clone(appErrors.ErrInvalidDocumentType,
			fmt.Sprintf("unknown document type %q", in.DocumentType))
	}
	if in.SizeBytes > s.cfg.MaxFileSizeBytes {
		return nil, appErrors.Clone(appErrors.ErrValidation,
			fmt.Sprintf("file exceeds the %d byte limit", s.cfg.MaxFileSizeBytes))
	}
	if !s.mimeAllowed(in.MimeType) {
		return nil, appErrors.Clone(appErrors.ErrValidation,
			fmt.Sprintf("unsupported file type %q", in.MimeType))
	}

	enrollment, err := s.enrollments.FindByID(ctx, in.EnrollmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	if enrollment.StudentID != studentID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "enrollment belongs to another student")
	}
	if enrollment.Status.Terminal() {
		return nil, appErrors.Clone(appErrors.ErrInvalidState,
			fmt.Sprintf("documents cannot be uploaded in state %q", enrollment.Status))
	}

	relPath := filepath.Join("documents", in.EnrollmentID,
		fmt.Sprintf("%s_%d%s", in.DocumentType, time.Now().UnixNano(), strings.ToLower(filepath.Ext(in.FileName))))
	if _, err := s.store.SaveStream(relPath, in.Content); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store document")
	}

	submission := &models.DocumentSubmission{
		EnrollmentID: in.EnrollmentID,
		DocumentType: in.DocumentType,
		StoragePath:  relPath,
		FileName:     in.FileName,
		SizeBytes:    in.SizeBytes,
		MimeType:     in.MimeType,
		Status:       models.DocumentStatusPending,
		Active:       true,
		UploadedAt:   time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, submission); err != nil {
		if delErr := s.store.Delete(relPath); delErr != nil {
			s.logger.Warn("failed to remove orphaned upload", zap.String("path", relPath), zap.Error(delErr))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record submission")
	}

	if s.metrics != nil {
		s.metrics.RecordDocumentUpload()
	}
	if err := s.lifecycle.RecomputeStatus(ctx, in.EnrollmentID); err != nil {
		s.logger.Error("failed to recompute enrollment status after upload",
			zap.String("enrollment_id", in.EnrollmentID), zap.Error(err))
	}
	return submission, nil
}

// Status returns the derived per-type document view for an enrollment. The
// student sees their own enrollment; a manager sees enrollments of their
// school, both enforced here.
func (s *DocumentService) Status(ctx context.Context, enrollmentID, studentID, managerSchoolID string) ([]models.DocumentTypeStatus, error) {
	if err := s.authorizeEnrollment(ctx, enrollmentID, studentID, managerSchoolID); err != nil {
		return nil, err
	}
	submissions, err := s.repo.ListActiveByEnrollment(ctx, enrollmentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load submissions")
	}
	return DocumentsStatus(submissions), nil
}

// ListForReview returns the active submissions of an enrollment with signed
// download links for the manager review screen.
func (s *DocumentService) ListForReview(ctx context.Context, enrollmentID, managerSchoolID string) ([]models.DocumentSubmissionDetail, error) {
	if err := s.authorizeEnrollment(ctx, enrollmentID, "", managerSchoolID); err != nil {
		return nil, err
	}
	details, err := s.repo.ListDetailByEnrollment(ctx, enrollmentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load submissions")
	}
	for i := range details {
		url, _, err := s.signer.Generate(details[i].ID, details[i].StoragePath)
		if err != nil {
			s.logger.Warn("failed to sign document url", zap.String("submission_id", details[i].ID), zap.Error(err))
			continue
		}
		details[i].FileURL = url
	}
	return details, nil
}

// Review records a manager verdict on a submission. Rejection requires a
// reason; a rejected document does not by itself block enrollment approval.
func (s *DocumentService) Review(ctx context.Context, submissionID string, req ReviewDocumentRequest, actor *models.JWTClaims, managerSchoolID, ip, userAgent string) (*models.DocumentSubmission, error) {
	if req.Status != models.DocumentStatusAccepted && req.Status != models.DocumentStatusRejected {
		return nil, appErrors.Clone(appErrors.ErrValidation, "status must be accepted or rejected")
	}
	reason := strings.TrimSpace(req.Reason)
	if req.Status == models.DocumentStatusRejected && reason == "" {
		return nil, appErrors.Clone(appErrors.ErrMissingReason, "a rejection reason is required")
	}

	submission, err := s.repo.FindByID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "submission not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load submission")
	}
	if !submission.Active {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "submission was superseded by a newer upload")
	}
	if managerSchoolID != "" {
		schoolID, err := s.repo.SchoolIDForSubmission(ctx, submissionID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve submission school")
		}
		if schoolID != managerSchoolID {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "submission belongs to another school")
		}
	}

	now := time.Now().UTC()
	var reasonPtr *string
	if req.Status == models.DocumentStatusRejected {
		reasonPtr = &reason
	}
	if err := s.repo.UpdateStatus(ctx, submissionID, req.Status, reasonPtr, now); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update submission")
	}

	enrollment, err := s.enrollments.FindByID(ctx, submission.EnrollmentID)
	if err == nil && s.notifier != nil {
		switch req.Status {
		case models.DocumentStatusAccepted:
			s.notifier.Notify(enrollment.StudentID, models.NotificationDocumentAccepted,
				fmt.Sprintf("Your %s was accepted.", submission.DocumentType))
		case models.DocumentStatusRejected:
			s.notifier.Notify(enrollment.StudentID, models.NotificationDocumentRefused,
				fmt.Sprintf("Your %s was rejected: %s. Please upload a new one.", submission.DocumentType, reason))
		}
	}
	s.recordReview(ctx, actor, submissionID, req.Status, reasonPtr, ip, userAgent)

	submission.Status = req.Status
	submission.RejectionReason = reasonPtr
	submission.ReviewedAt = &now
	return submission, nil
}

// ResolveDownload validates a signed token and returns the submission's
// storage path for streaming.
func (s *DocumentService) ResolveDownload(ctx context.Context, token string) (string, error) {
	fileID, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid or expired download link")
	}
	submission, err := s.repo.FindByID(ctx, fileID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", appErrors.Clone(appErrors.ErrNotFound, "submission not found")
		}
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load submission")
	}
	if submission.StoragePath != relPath {
		return "", appErrors.Clone(appErrors.ErrUnauthorized, "download link does not match the submission")
	}
	return submission.StoragePath, nil
}

func (s *DocumentService) authorizeEnrollment(ctx context.Context, enrollmentID, studentID, managerSchoolID string) error {
	enrollment, err := s.enrollments.FindByID(ctx, enrollmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	if studentID != "" && enrollment.StudentID != studentID {
		return appErrors.Clone(appErrors.ErrForbidden, "enrollment belongs to another student")
	}
	if managerSchoolID != "" && enrollment.SchoolID != managerSchoolID {
		return appErrors.Clone(appErrors.ErrForbidden, "enrollment belongs to another school")
	}
	return nil
}

func (s *DocumentService) mimeAllowed(mime string) bool {
	if len(s.cfg.AllowedMIMEs) == 0 {
		return true
	}
	for _, allowed := range s.cfg.AllowedMIMEs {
		if strings.EqualFold(allowed, mime) {
			return true
		}
	}
	return false
}

func (s *DocumentService) recordReview(ctx context.Context, actor *models.JWTClaims, submissionID string, status models.DocumentStatus, reason *string, ip, userAgent string) {
	if s.audit == nil {
		return
	}
	values := map[string]interface{}{"status": status}
	if reason != nil {
		values["rejection_reason"] = *reason
	}
	payload, _ := json.Marshal(values)
	var userID *string
	if actor != nil {
		userID = &actor.UserID
	}
	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     userID,
		Action:     models.AuditActionDocumentReview,
		Resource:   "document_submission",
		ResourceID: &submissionID,
		NewValues:  payload,
		IPAddress:  ip,
		UserAgent:  userAgent,
	}); err != nil {
		s.logger.Warn("failed to record document audit log", zap.Error(err))
	}
}
