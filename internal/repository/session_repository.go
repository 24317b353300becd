package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/autoecole-dz/platform-api/internal/models"
)

// SessionRepository handles persistence of scheduled lessons.
type SessionRepository struct {
	db *sqlx.DB
}

// NewSessionRepository constructs the repository.
func NewSessionRepository(db *sqlx.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

const sessionDetailQuery = `SELECT s.id, s.school_id, s.teacher_id, s.student_id, s.course_type, s.scheduled_at, s.duration_minutes, s.location, s.created_at,
        t.first_name AS teacher_first_name, t.last_name AS teacher_last_name,
        st.first_name AS student_first_name, st.last_name AS student_last_name
        FROM sessions s
        LEFT JOIN users t ON t.id = s.teacher_id
        LEFT JOIN users st ON st.id = s.student_id`

// Create persists a new session.
func (r *SessionRepository) Create(ctx context.Context, session *models.Session) error {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO sessions (id, school_id, teacher_id, student_id, course_type, scheduled_at, duration_minutes, location, created_at)
        VALUES (:id, :school_id, :teacher_id, :student_id, :course_type, :scheduled_at, :duration_minutes, :location, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, session); err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// ListBySchool returns a school's sessions ordered by schedule time.
func (r *SessionRepository) ListBySchool(ctx context.Context, schoolID string) ([]models.SessionDetail, error) {
	query := sessionDetailQuery + ` WHERE s.school_id = $1 ORDER BY s.scheduled_at ASC`
	var sessions []models.SessionDetail
	if err := r.db.SelectContext(ctx, &sessions, query, schoolID); err != nil {
		return nil, fmt.Errorf("list school sessions: %w", err)
	}
	return sessions, nil
}

// ListByStudent returns a student's sessions ordered by schedule time.
func (r *SessionRepository) ListByStudent(ctx context.Context, studentID string) ([]models.SessionDetail, error) {
	query := sessionDetailQuery + ` WHERE s.student_id = $1 ORDER BY s.scheduled_at ASC`
	var sessions []models.SessionDetail
	if err := r.db.SelectContext(ctx, &sessions, query, studentID); err != nil {
		return nil, fmt.Errorf("list student sessions: %w", err)
	}
	return sessions, nil
}

// CountBySchool returns the number of sessions at a school.
func (r *SessionRepository) CountBySchool(ctx context.Context, schoolID string) (int, error) {
	const query = `SELECT COUNT(*) FROM sessions WHERE school_id = $1`
	var total int
	if err := r.db.GetContext(ctx, &total, query, schoolID); err != nil {
		return 0, fmt.Errorf("count school sessions: %w", err)
	}
	return total, nil
}

// Delete removes a session.
func (r *SessionRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM sessions WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}
