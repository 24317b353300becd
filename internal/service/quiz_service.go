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

type quizRepository interface {
	Create(ctx context.Context, quiz *models.Quiz) error
	FindByID(ctx context.Context, id string) (*models.Quiz, error)
	ListBySchool(ctx context.Context, schoolID string) ([]models.Quiz, error)
	Delete(ctx context.Context, id string) error
}

// CreateQuizRequest is the payload for publishing a quiz.
type CreateQuizRequest struct {
	CourseType       models.CourseType    `json:"course_type" validate:"required"`
	Title            string               `json:"title" validate:"required,min=2"`
	Description      string               `json:"description"`
	Difficulty       string               `json:"difficulty" validate:"omitempty,oneof=easy medium hard"`
	PassingScore     int                  `json:"passing_score" validate:"gte=0,lte=100"`
	TimeLimitMinutes int                  `json:"time_limit_minutes" validate:"gte=0"`
	Questions        models.QuizQuestions `json:"questions" validate:"required,min=1,dive"`
}

// QuizService manages school quizzes. Students only reach quizzes of schools
// where their enrollment was approved.
type QuizService struct {
	repo        quizRepository
	enrollments approvedEnrollmentChecker
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewQuizService constructs QuizService.
func NewQuizService(repo quizRepository, enrollments approvedEnrollmentChecker, validate *validator.Validate, logger *zap.Logger) *QuizService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QuizService{repo: repo, enrollments: enrollments, validator: validate, logger: logger}
}

// Create publishes a quiz for the manager's school.
func (s *QuizService) Create(ctx context.Context, schoolID string, req CreateQuizRequest) (*models.Quiz, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid quiz payload")
	}
	if !models.IsValidCourseType(req.CourseType) {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown course type %q", req.CourseType))
	}

	quiz := &models.Quiz{
		SchoolID:         schoolID,
		CourseType:       req.CourseType,
		Title:            req.Title,
		Description:      req.Description,
		Difficulty:       req.Difficulty,
		PassingScore:     req.PassingScore,
		TimeLimitMinutes: req.TimeLimitMinutes,
		Questions:        req.Questions,
		CreatedAt:        time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, quiz); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create quiz")
	}
	return quiz, nil
}

// ListForSchool returns all quizzes of a school for the manager.
func (s *QuizService) ListForSchool(ctx context.Context, schoolID string) ([]models.Quiz, error) {
	quizzes, err := s.repo.ListBySchool(ctx, schoolID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list quizzes")
	}
	return quizzes, nil
}

// ListForStudent returns a school's quizzes to a student, provided the
// student's enrollment there was approved.
func (s *QuizService) ListForStudent(ctx context.Context, studentID, schoolID string) ([]models.Quiz, error) {
	approved, err := s.enrollments.HasApproved(ctx, studentID, schoolID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check enrollment")
	}
	if !approved {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "quizzes require an approved enrollment at this school")
	}
	return s.ListForSchool(ctx, schoolID)
}

// Get returns one quiz, enforcing the approved-enrollment rule for students.
func (s *QuizService) Get(ctx context.Context, id, studentID string) (*models.Quiz, error) {
	quiz, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "quiz not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load quiz")
	}
	if studentID != "" {
		approved, err := s.enrollments.HasApproved(ctx, studentID, quiz.SchoolID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check enrollment")
		}
		if !approved {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "quizzes require an approved enrollment at this school")
		}
	}
	return quiz, nil
}

// Delete removes a quiz from the school.
func (s *QuizService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "quiz not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete quiz")
	}
	return nil
}
