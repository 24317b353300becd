package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/autoecole-dz/platform-api/internal/models"
	appErrors "github.com/autoecole-dz/platform-api/pkg/errors"
)

type sessionRepository interface {
	Create(ctx context.Context, session *models.Session) error
	ListBySchool(ctx context.Context, schoolID string) ([]models.SessionDetail, error)
	ListByStudent(ctx context.Context, studentID string) ([]models.SessionDetail, error)
	Delete(ctx context.Context, id string) error
}

type approvedEnrollmentChecker interface {
	HasApproved(ctx context.Context, studentID, schoolID string) (bool, error)
}

type teacherMembershipChecker interface {
	TeacherBelongsToSchool(ctx context.Context, schoolID, teacherID string) (bool, error)
}

// CreateSessionRequest schedules a lesson for an approved student.
type CreateSessionRequest struct {
	TeacherID       string            `json:"teacher_id" validate:"required"`
	StudentID       string            `json:"student_id" validate:"required"`
	CourseType      models.CourseType `json:"course_type" validate:"required"`
	ScheduledAt     time.Time         `json:"scheduled_at" validate:"required"`
	DurationMinutes int               `json:"duration_minutes" validate:"required,gte=30,lte=240"`
	Location        string            `json:"location"`
}

// SessionService manages the lesson schedule of a school. Sessions can only
// involve students whose enrollment at that school was approved.
type SessionService struct {
	repo        sessionRepository
	enrollments approvedEnrollmentChecker
	teachers    teacherMembershipChecker
	notifier    enrollmentNotifier
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewSessionService constructs SessionService.
func NewSessionService(repo sessionRepository, enrollments approvedEnrollmentChecker, teachers teacherMembershipChecker, notifier enrollmentNotifier, validate *validator.Validate, logger *zap.Logger) *SessionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionService{repo: repo, enrollments: enrollments, teachers: teachers, notifier: notifier, validator: validate, logger: logger}
}

// Create schedules a session within the manager's school.
func (s *SessionService) Create(ctx context.Context, schoolID string, req CreateSessionRequest) (*models.Session, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid session payload")
	}
	if !models.IsValidCourseType(req.CourseType) {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown course type %q", req.CourseType))
	}

	approved, err := s.enrollments.HasApproved(ctx, req.StudentID, schoolID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check enrollment")
	}
	if !approved {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "student has no approved enrollment at this school")
	}

	belongs, err := s.teachers.TeacherBelongsToSchool(ctx, schoolID, req.TeacherID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check teacher")
	}
	if !belongs {
		return nil, appErrors.Clone(appErrors.ErrValidation, "teacher is not attached to this school")
	}

	session := &models.Session{
		SchoolID:        schoolID,
		TeacherID:       req.TeacherID,
		StudentID:       req.StudentID,
		CourseType:      req.CourseType,
		ScheduledAt:     req.ScheduledAt.UTC(),
		DurationMinutes: req.DurationMinutes,
		Location:        req.Location,
		CreatedAt:       time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, session); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create session")
	}

	if s.notifier != nil {
		s.notifier.Notify(req.StudentID, models.NotificationSessionScheduled,
			fmt.Sprintf("A %s session was scheduled for %s.", req.CourseType, session.ScheduledAt.Format(time.RFC1123)))
	}
	return session, nil
}

// ListForSchool returns the school's full schedule.
func (s *SessionService) ListForSchool(ctx context.Context, schoolID string) ([]models.SessionDetail, error) {
	sessions, err := s.repo.ListBySchool(ctx, schoolID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list sessions")
	}
	return sessions, nil
}

// ListForStudent returns the student's upcoming and past sessions.
func (s *SessionService) ListForStudent(ctx context.Context, studentID string) ([]models.SessionDetail, error) {
	sessions, err := s.repo.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list sessions")
	}
	return sessions, nil
}

// Delete removes a session from the school schedule.
func (s *SessionService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "session not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete session")
	}
	return nil
}
