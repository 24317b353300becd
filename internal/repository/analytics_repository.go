package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/autoecole-dz/platform-api/internal/models"
)

// AnalyticsRepository serves the aggregate queries behind the manager
// dashboard.
type AnalyticsRepository struct {
	db *sqlx.DB
}

// NewAnalyticsRepository constructs the repository.
func NewAnalyticsRepository(db *sqlx.DB) *AnalyticsRepository {
	return &AnalyticsRepository{db: db}
}

// Overview aggregates a school's enrollment, staff and catalog counters in a
// single round trip.
func (r *AnalyticsRepository) Overview(ctx context.Context, schoolID string) (*models.ManagerOverview, error) {
	query := `SELECT
        COUNT(e.id) AS total_enrollments,
        COUNT(e.id) FILTER (WHERE e.status = 'pending_documents') AS pending_documents,
        COUNT(e.id) FILTER (WHERE e.status = 'pending_approval') AS pending_approval,
        COUNT(e.id) FILTER (WHERE e.status = 'approved') AS approved_students,
        COUNT(e.id) FILTER (WHERE e.status = 'rejected') AS rejected_applications,
        (SELECT COUNT(*) FROM school_teachers st WHERE st.school_id = $1) AS total_teachers,
        (SELECT COUNT(*) FROM sessions s WHERE s.school_id = $1) AS total_sessions,
        (SELECT COUNT(*) FROM quizzes q WHERE q.school_id = $1) AS total_quizzes
    FROM enrollments e
    WHERE e.school_id = $1`

	overview := &models.ManagerOverview{SchoolID: schoolID}
	if err := r.db.GetContext(ctx, overview, query, schoolID); err != nil {
		return nil, fmt.Errorf("query school overview: %w", err)
	}
	return overview, nil
}

// StudentProgress lists each approved student of a school with their session
// counters, most recently approved first.
func (r *AnalyticsRepository) StudentProgress(ctx context.Context, schoolID string) ([]models.StudentProgress, error) {
	query := `SELECT
        e.student_id,
        u.first_name AS student_first_name,
        u.last_name AS student_last_name,
        e.approved_at,
        COUNT(s.id) AS sessions_total,
        COUNT(s.id) FILTER (WHERE s.scheduled_at > NOW()) AS sessions_upcoming
    FROM enrollments e
    JOIN users u ON u.id = e.student_id
    LEFT JOIN sessions s ON s.student_id = e.student_id AND s.school_id = e.school_id
    WHERE e.school_id = $1 AND e.status = 'approved'
    GROUP BY e.student_id, u.first_name, u.last_name, e.approved_at
    ORDER BY e.approved_at DESC NULLS LAST`

	progress := []models.StudentProgress{}
	if err := r.db.SelectContext(ctx, &progress, query, schoolID); err != nil {
		return nil, fmt.Errorf("query student progress: %w", err)
	}
	return progress, nil
}
