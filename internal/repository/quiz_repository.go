package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/autoecole-dz/platform-api/internal/models"
)

// QuizRepository handles persistence of quizzes.
type QuizRepository struct {
	db *sqlx.DB
}

// NewQuizRepository constructs the repository.
func NewQuizRepository(db *sqlx.DB) *QuizRepository {
	return &QuizRepository{db: db}
}

const quizColumns = `id, school_id, course_type, title, description, difficulty, passing_score, time_limit_minutes, questions, created_at`

// Create persists a new quiz.
func (r *QuizRepository) Create(ctx context.Context, quiz *models.Quiz) error {
	if quiz.ID == "" {
		quiz.ID = uuid.NewString()
	}
	if quiz.CreatedAt.IsZero() {
		quiz.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO quizzes (id, school_id, course_type, title, description, difficulty, passing_score, time_limit_minutes, questions, created_at)
        VALUES (:id, :school_id, :course_type, :title, :description, :difficulty, :passing_score, :time_limit_minutes, :questions, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, quiz); err != nil {
		return fmt.Errorf("create quiz: %w", err)
	}
	return nil
}

// FindByID returns a quiz by identifier.
func (r *QuizRepository) FindByID(ctx context.Context, id string) (*models.Quiz, error) {
	query := fmt.Sprintf(`SELECT %s FROM quizzes WHERE id = $1`, quizColumns)
	var quiz models.Quiz
	if err := r.db.GetContext(ctx, &quiz, query, id); err != nil {
		return nil, err
	}
	return &quiz, nil
}

// ListBySchool returns a school's quizzes, newest first.
func (r *QuizRepository) ListBySchool(ctx context.Context, schoolID string) ([]models.Quiz, error) {
	query := fmt.Sprintf(`SELECT %s FROM quizzes WHERE school_id = $1 ORDER BY created_at DESC`, quizColumns)
	var quizzes []models.Quiz
	if err := r.db.SelectContext(ctx, &quizzes, query, schoolID); err != nil {
		return nil, fmt.Errorf("list school quizzes: %w", err)
	}
	return quizzes, nil
}

// CountBySchool returns the number of quizzes at a school.
func (r *QuizRepository) CountBySchool(ctx context.Context, schoolID string) (int, error) {
	const query = `SELECT COUNT(*) FROM quizzes WHERE school_id = $1`
	var total int
	if err := r.db.GetContext(ctx, &total, query, schoolID); err != nil {
		return 0, fmt.Errorf("count school quizzes: %w", err)
	}
	return total, nil
}

// Delete removes a quiz.
func (r *QuizRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM quizzes WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete quiz: %w", err)
	}
	return nil
}
