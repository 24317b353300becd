package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/autoecole-dz/platform-api/internal/models"
	appErrors "github.com/autoecole-dz/platform-api/pkg/errors"
)

type teacherUserRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	Deactivate(ctx context.Context, id string) error
	ListTeachersBySchool(ctx context.Context, schoolID string) ([]models.User, error)
	AttachTeacher(ctx context.Context, schoolID, teacherID string) error
	DetachTeacher(ctx context.Context, schoolID, teacherID string) error
	TeacherBelongsToSchool(ctx context.Context, schoolID, teacherID string) (bool, error)
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// CreateTeacherRequest is the payload for adding an instructor account.
type CreateTeacherRequest struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=6"`
	FirstName string `json:"first_name" validate:"required"`
	LastName  string `json:"last_name" validate:"required"`
	Phone     string `json:"phone" validate:"required"`
}

// TeacherService lets a manager run their school's instructor roster.
type TeacherService struct {
	repo      teacherUserRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewTeacherService constructs TeacherService.
func NewTeacherService(repo teacherUserRepository, validate *validator.Validate, logger *zap.Logger) *TeacherService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TeacherService{repo: repo, validator: validate, logger: logger}
}

// List returns the instructors attached to a school.
func (s *TeacherService) List(ctx context.Context, schoolID string) ([]models.User, error) {
	teachers, err := s.repo.ListTeachersBySchool(ctx, schoolID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list teachers")
	}
	return teachers, nil
}

// Create registers an instructor account and attaches it to the school.
func (s *TeacherService) Create(ctx context.Context, schoolID string, req CreateTeacherRequest, actor *models.JWTClaims, ip, userAgent string) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid teacher payload")
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if _, err := s.repo.FindByEmail(ctx, email); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "an account with this email already exists")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check email")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	teacher := &models.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: string(hash),
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		Phone:        strings.TrimSpace(req.Phone),
		Role:         models.RoleTeacher,
		Active:       true,
	}
	if err := s.repo.Create(ctx, teacher); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create teacher")
	}
	if err := s.repo.AttachTeacher(ctx, schoolID, teacher.ID); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to attach teacher")
	}

	s.recordAction(ctx, actor, models.AuditActionTeacherCreate, teacher.ID, map[string]interface{}{
		"school_id": schoolID, "email": email,
	}, ip, userAgent)
	return teacher, nil
}

// Remove detaches an instructor from the school and deactivates the account.
func (s *TeacherService) Remove(ctx context.Context, schoolID, teacherID string, actor *models.JWTClaims, ip, userAgent string) error {
	belongs, err := s.repo.TeacherBelongsToSchool(ctx, schoolID, teacherID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check teacher")
	}
	if !belongs {
		return appErrors.Clone(appErrors.ErrNotFound, "teacher is not attached to this school")
	}

	if err := s.repo.DetachTeacher(ctx, schoolID, teacherID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to detach teacher")
	}
	if err := s.repo.Deactivate(ctx, teacherID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate teacher")
	}

	s.recordAction(ctx, actor, models.AuditActionTeacherDelete, teacherID, map[string]interface{}{
		"school_id": schoolID,
	}, ip, userAgent)
	return nil
}

func (s *TeacherService) recordAction(ctx context.Context, actor *models.JWTClaims, action, teacherID string, values map[string]interface{}, ip, userAgent string) {
	payload, _ := json.Marshal(values)
	var userID *string
	if actor != nil {
		userID = &actor.UserID
	}
	if err := s.repo.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     userID,
		Action:     action,
		Resource:   "teacher",
		ResourceID: &teacherID,
		NewValues:  payload,
		IPAddress:  ip,
		UserAgent:  userAgent,
	}); err != nil {
		s.logger.Warn("failed to record teacher audit log", zap.Error(err))
	}
}
