package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/autoecole-dz/platform-api/internal/models"
	appErrors "github.com/autoecole-dz/platform-api/pkg/errors"
)

type enrollmentRepository interface {
	ListBySchool(ctx context.Context, schoolID string, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error)
	ListByStudent(ctx context.Context, studentID string) ([]models.EnrollmentDetail, error)
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error)
	ExistsActive(ctx context.Context, studentID, schoolID string) (bool, error)
	Create(ctx context.Context, enrollment *models.Enrollment) error
	PromoteToPendingApproval(ctx context.Context, id string) (bool, error)
	Approve(ctx context.Context, id string, approvedAt time.Time) (bool, error)
	Refuse(ctx context.Context, id, reason string) (bool, error)
}

type enrollmentSchoolReader interface {
	FindByID(ctx context.Context, id string) (*models.School, error)
}

type enrollmentUserStore interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	PromoteRole(ctx context.Context, id string, from, to models.UserRole) error
}

type enrollmentDocumentLister interface {
	ListActiveByEnrollment(ctx context.Context, enrollmentID string) ([]models.DocumentSubmission, error)
}

type enrollmentNotifier interface {
	Notify(userID string, kind models.NotificationType, message string)
}

type auditLogger interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type cacheInvalidator interface {
	Invalidate(ctx context.Context, pattern string)
}

type enrollmentMetrics interface {
	RecordEnrollmentTransition(status models.EnrollmentStatus)
}

// EnrollRequest describes an enrollment creation request.
type EnrollRequest struct {
	SchoolID string `json:"school_id" validate:"required"`
}

// RefuseEnrollmentRequest carries the manager's refusal reason.
type RefuseEnrollmentRequest struct {
	Reason string `json:"reason"`
}

// EnrollmentService is the lifecycle authority for enrollments. Every status
// transition goes through here; repositories only execute guarded updates.
type EnrollmentService struct {
	repo      enrollmentRepository
	schools   enrollmentSchoolReader
	users     enrollmentUserStore
	documents enrollmentDocumentLister
	notifier  enrollmentNotifier
	audit     auditLogger
	cache     cacheInvalidator
	metrics   enrollmentMetrics
	validator *validator.Validate
	logger    *zap.Logger
}

// NewEnrollmentService constructs EnrollmentService. metrics may be nil.
func NewEnrollmentService(repo enrollmentRepository, schools enrollmentSchoolReader, users enrollmentUserStore, documents enrollmentDocumentLister, notifier enrollmentNotifier, audit auditLogger, cache cacheInvalidator, metrics enrollmentMetrics, validate *validator.Validate, logger *zap.Logger) *EnrollmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{
		repo:      repo,
		schools:   schools,
		users:     users,
		documents: documents,
		notifier:  notifier,
		audit:     audit,
		cache:     cache,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
	}
}

func (s *EnrollmentService) recordTransition(status models.EnrollmentStatus) {
	if s.metrics != nil {
		s.metrics.RecordEnrollmentTransition(status)
	}
}

// Enroll creates a fresh enrollment in pending_documents for the student.
// Reapplication after a rejection goes through the same path: only a
// non-rejected enrollment for the pair blocks a new one.
func (s *EnrollmentService) Enroll(ctx context.Context, studentID string, req EnrollRequest) (*models.EnrollmentDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
	}
	school, err := s.schools.FindByID(ctx, req.SchoolID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "driving school not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load school")
	}

	exists, err := s.repo.ExistsActive(ctx, studentID, req.SchoolID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate enrollment")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrDuplicateEnrollment, "")
	}

	enrollment := &models.Enrollment{
		StudentID: studentID,
		SchoolID:  req.SchoolID,
		Status:    models.EnrollmentStatusPendingDocuments,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, enrollment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create enrollment")
	}

	if s.notifier != nil {
		s.notifier.Notify(studentID, models.NotificationDocumentsRequired,
			fmt.Sprintf("Your application to %s was received. Please upload the required documents.", school.Name))
	}
	s.recordTransition(models.EnrollmentStatusPendingDocuments)
	s.invalidateSchoolViews(ctx, req.SchoolID)

	detail, err := s.repo.FindDetailByID(ctx, enrollment.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment detail")
	}
	return detail, nil
}

// ListForSchool returns the manager review queue for a school.
func (s *EnrollmentService) ListForSchool(ctx context.Context, schoolID string, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, *models.Pagination, error) {
	enrollments, total, err := s.repo.ListBySchool(ctx, schoolID, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 50
	}
	return enrollments, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// ListForStudent returns the student's own enrollments, newest first.
func (s *EnrollmentService) ListForStudent(ctx context.Context, studentID string) ([]models.EnrollmentDetail, error) {
	enrollments, err := s.repo.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	return enrollments, nil
}

// RecomputeStatus re-evaluates the document gate for an enrollment and
// performs the pending_documents -> pending_approval auto-transition when
// the required set is complete. The guarded update keeps the transition from
// firing after a terminal decision. Safe to call concurrently.
func (s *EnrollmentService) RecomputeStatus(ctx context.Context, enrollmentID string) error {
	enrollment, err := s.repo.FindByID(ctx, enrollmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	if enrollment.Status != models.EnrollmentStatusPendingDocuments {
		return nil
	}

	submissions, err := s.documents.ListActiveByEnrollment(ctx, enrollmentID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load submissions")
	}
	if !AllRequiredDocumentsPresent(submissions) {
		return nil
	}

	promoted, err := s.repo.PromoteToPendingApproval(ctx, enrollmentID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to promote enrollment")
	}
	if promoted {
		s.logger.Info("enrollment moved to pending_approval", zap.String("enrollment_id", enrollmentID))
		s.recordTransition(models.EnrollmentStatusPendingApproval)
		s.invalidateSchoolViews(ctx, enrollment.SchoolID)
	}
	return nil
}

// Accept approves a pending_approval enrollment and promotes the student
// account from guest to student. Calling it again on an already-approved
// enrollment is a no-op success so that client retries stay harmless.
func (s *EnrollmentService) Accept(ctx context.Context, enrollmentID string, actor *models.JWTClaims, managerSchoolID, ip, userAgent string) (*models.EnrollmentDetail, error) {
	enrollment, err := s.loadScoped(ctx, enrollmentID, managerSchoolID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	approved, err := s.repo.Approve(ctx, enrollmentID, now)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to approve enrollment")
	}
	if !approved {
		// The guarded update did not fire; decide between a retried accept
		// and an illegal transition from the current state.
		current, err := s.repo.FindByID(ctx, enrollmentID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reload enrollment")
		}
		if current.Status != models.EnrollmentStatusApproved {
			return nil, appErrors.Clone(appErrors.ErrInvalidState,
				fmt.Sprintf("cannot accept an enrollment in state %q", current.Status))
		}
		return s.detail(ctx, enrollmentID)
	}

	if err := s.users.PromoteRole(ctx, enrollment.StudentID, models.RoleGuest, models.RoleStudent); err != nil {
		// The enrollment is already approved; surface the failure instead of
		// leaving the caller unsure whether to retry.
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to promote student role")
	}

	if s.notifier != nil {
		s.notifier.Notify(enrollment.StudentID, models.NotificationEnrollmentAccepted,
			"Congratulations! Your enrollment was accepted. Sessions and quizzes are now available.")
	}
	s.recordDecision(ctx, actor, models.AuditActionEnrollmentAccept, enrollmentID, map[string]interface{}{
		"status": models.EnrollmentStatusApproved, "approved_at": now,
	}, ip, userAgent)
	s.recordTransition(models.EnrollmentStatusApproved)
	s.invalidateSchoolViews(ctx, enrollment.SchoolID)

	return s.detail(ctx, enrollmentID)
}

// Refuse rejects a pending_approval enrollment with a mandatory reason.
func (s *EnrollmentService) Refuse(ctx context.Context, enrollmentID string, req RefuseEnrollmentRequest, actor *models.JWTClaims, managerSchoolID, ip, userAgent string) (*models.EnrollmentDetail, error) {
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		return nil, appErrors.Clone(appErrors.ErrMissingReason, "a refusal reason is required")
	}

	enrollment, err := s.loadScoped(ctx, enrollmentID, managerSchoolID)
	if err != nil {
		return nil, err
	}

	refused, err := s.repo.Refuse(ctx, enrollmentID, reason)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to refuse enrollment")
	}
	if !refused {
		current, err := s.repo.FindByID(ctx, enrollmentID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reload enrollment")
		}
		return nil, appErrors.Clone(appErrors.ErrInvalidState,
			fmt.Sprintf("cannot refuse an enrollment in state %q", current.Status))
	}

	if s.notifier != nil {
		s.notifier.Notify(enrollment.StudentID, models.NotificationEnrollmentRefused,
			fmt.Sprintf("Your enrollment was refused: %s. You may apply again.", reason))
	}
	s.recordDecision(ctx, actor, models.AuditActionEnrollmentRefuse, enrollmentID, map[string]interface{}{
		"status": models.EnrollmentStatusRejected, "refusal_reason": reason,
	}, ip, userAgent)
	s.recordTransition(models.EnrollmentStatusRejected)
	s.invalidateSchoolViews(ctx, enrollment.SchoolID)

	return s.detail(ctx, enrollmentID)
}

// loadScoped fetches an enrollment and enforces the manager's school scope.
func (s *EnrollmentService) loadScoped(ctx context.Context, enrollmentID, managerSchoolID string) (*models.Enrollment, error) {
	enrollment, err := s.repo.FindByID(ctx, enrollmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	if managerSchoolID != "" && enrollment.SchoolID != managerSchoolID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "enrollment belongs to another school")
	}
	return enrollment, nil
}

func (s *EnrollmentService) detail(ctx context.Context, enrollmentID string) (*models.EnrollmentDetail, error) {
	detail, err := s.repo.FindDetailByID(ctx, enrollmentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment detail")
	}
	return detail, nil
}

func (s *EnrollmentService) recordDecision(ctx context.Context, actor *models.JWTClaims, action, enrollmentID string, values map[string]interface{}, ip, userAgent string) {
	if s.audit == nil {
		return
	}
	payload, _ := json.Marshal(values)
	var userID *string
	if actor != nil {
		userID = &actor.UserID
	}
	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     userID,
		Action:     action,
		Resource:   "enrollment",
		ResourceID: &enrollmentID,
		NewValues:  payload,
		IPAddress:  ip,
		UserAgent:  userAgent,
	}); err != nil {
		s.logger.Warn("failed to record enrollment audit log", zap.Error(err))
	}
}

func (s *EnrollmentService) invalidateSchoolViews(ctx context.Context, schoolID string) {
	if s.cache == nil {
		return
	}
	s.cache.Invalidate(ctx, "analytics:"+schoolID+":*")
}
