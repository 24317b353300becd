package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/autoecole-dz/platform-api/internal/models"
)

// EnrollmentRepository handles persistence of enrollments.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

const enrollmentDetailColumns = `e.id, e.student_id, e.school_id, e.status, e.refusal_reason, e.created_at, e.approved_at, e.updated_at,
        u.first_name AS student_first_name, u.last_name AS student_last_name, u.email AS student_email, u.phone AS student_phone,
        sc.name AS school_name`

const enrollmentDetailJoins = `FROM enrollments e
LEFT JOIN users u ON u.id = e.student_id
LEFT JOIN schools sc ON sc.id = e.school_id`

// ListBySchool returns a school's enrollments in review-queue order:
// pending_approval first, then pending_documents, then terminal states,
// each group ascending by creation time (first applied, first reviewed).
func (r *EnrollmentRepository) ListBySchool(ctx context.Context, schoolID string, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	conditions := []string{"e.school_id = $1"}
	args := []interface{}{schoolID}

	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("e.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("e.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	clause := " WHERE " + strings.Join(conditions, " AND ")

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 50
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT %s %s%s
        ORDER BY CASE e.status
            WHEN 'pending_approval' THEN 0
            WHEN 'pending_documents' THEN 1
            WHEN 'approved' THEN 2
            ELSE 3
        END, e.created_at ASC LIMIT %d OFFSET %d`,
		enrollmentDetailColumns, enrollmentDetailJoins, clause, size, offset)

	var enrollments []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &enrollments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list school enrollments: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s%s", enrollmentDetailJoins, clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count school enrollments: %w", err)
	}
	return enrollments, total, nil
}

// ListByStudent returns all enrollments a student ever created, newest first.
func (r *EnrollmentRepository) ListByStudent(ctx context.Context, studentID string) ([]models.EnrollmentDetail, error) {
	query := fmt.Sprintf(`SELECT %s %s WHERE e.student_id = $1 ORDER BY e.created_at DESC`,
		enrollmentDetailColumns, enrollmentDetailJoins)
	var enrollments []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &enrollments, query, studentID); err != nil {
		return nil, fmt.Errorf("list student enrollments: %w", err)
	}
	return enrollments, nil
}

// FindByID returns an enrollment by its ID.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	const query = `SELECT id, student_id, school_id, status, refusal_reason, created_at, approved_at, updated_at FROM enrollments WHERE id = $1`
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, id); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// FindDetailByID returns an enrollment with denormalized student and school info.
func (r *EnrollmentRepository) FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	query := fmt.Sprintf(`SELECT %s %s WHERE e.id = $1`, enrollmentDetailColumns, enrollmentDetailJoins)
	var detail models.EnrollmentDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// ExistsActive checks whether a non-rejected enrollment exists for the
// (student, school) pair. Rejected enrollments do not count; they may be
// superseded by a fresh application.
func (r *EnrollmentRepository) ExistsActive(ctx context.Context, studentID, schoolID string) (bool, error) {
	const query = `SELECT 1 FROM enrollments WHERE student_id = $1 AND school_id = $2 AND status <> $3 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, studentID, schoolID, models.EnrollmentStatusRejected); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check active enrollment: %w", err)
	}
	return true, nil
}

// Create persists a new enrollment record.
func (r *EnrollmentRepository) Create(ctx context.Context, enrollment *models.Enrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if enrollment.CreatedAt.IsZero() {
		enrollment.CreatedAt = now
	}
	enrollment.UpdatedAt = now
	if enrollment.Status == "" {
		enrollment.Status = models.EnrollmentStatusPendingDocuments
	}
	const query = `INSERT INTO enrollments (id, student_id, school_id, status, refusal_reason, created_at, approved_at, updated_at)
        VALUES (:id, :student_id, :school_id, :status, :refusal_reason, :created_at, :approved_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, enrollment); err != nil {
		return fmt.Errorf("create enrollment: %w", err)
	}
	return nil
}

// PromoteToPendingApproval flips pending_documents to pending_approval.
// The status predicate makes the check-then-act atomic: the transition never
// fires once a terminal decision has been recorded. Returns whether a row
// was updated.
func (r *EnrollmentRepository) PromoteToPendingApproval(ctx context.Context, id string) (bool, error) {
	const query = `UPDATE enrollments SET status = $2, updated_at = $3 WHERE id = $1 AND status = $4`
	res, err := r.db.ExecContext(ctx, query, id,
		models.EnrollmentStatusPendingApproval, time.Now().UTC(), models.EnrollmentStatusPendingDocuments)
	if err != nil {
		return false, fmt.Errorf("promote enrollment: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("promote enrollment rows: %w", err)
	}
	return affected > 0, nil
}

// Approve records the terminal approved state. Conditional on the enrollment
// still awaiting a decision so concurrent decisions serialize on the row.
func (r *EnrollmentRepository) Approve(ctx context.Context, id string, approvedAt time.Time) (bool, error) {
	const query = `UPDATE enrollments SET status = $2, approved_at = $3, updated_at = $3 WHERE id = $1 AND status = $4`
	res, err := r.db.ExecContext(ctx, query, id,
		models.EnrollmentStatusApproved, approvedAt, models.EnrollmentStatusPendingApproval)
	if err != nil {
		return false, fmt.Errorf("approve enrollment: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("approve enrollment rows: %w", err)
	}
	return affected > 0, nil
}

// Refuse records the terminal rejected state with the manager's reason.
func (r *EnrollmentRepository) Refuse(ctx context.Context, id, reason string) (bool, error) {
	const query = `UPDATE enrollments SET status = $2, refusal_reason = $3, updated_at = $4 WHERE id = $1 AND status = $5`
	res, err := r.db.ExecContext(ctx, query, id,
		models.EnrollmentStatusRejected, reason, time.Now().UTC(), models.EnrollmentStatusPendingApproval)
	if err != nil {
		return false, fmt.Errorf("refuse enrollment: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("refuse enrollment rows: %w", err)
	}
	return affected > 0, nil
}

// HasApproved reports whether the student holds an approved enrollment at the school.
func (r *EnrollmentRepository) HasApproved(ctx context.Context, studentID, schoolID string) (bool, error) {
	const query = `SELECT 1 FROM enrollments WHERE student_id = $1 AND school_id = $2 AND status = $3 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, studentID, schoolID, models.EnrollmentStatusApproved); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check approved enrollment: %w", err)
	}
	return true, nil
}
