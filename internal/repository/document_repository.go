package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/autoecole-dz/platform-api/internal/models"
)

// DocumentRepository handles persistence of document submissions.
type DocumentRepository struct {
	db *sqlx.DB
}

// NewDocumentRepository constructs the repository.
func NewDocumentRepository(db *sqlx.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

const documentColumns = `id, enrollment_id, document_type, storage_path, file_name, size_bytes, mime_type, status, rejection_reason, active, uploaded_at, reviewed_at`

// Create inserts a submission after deactivating any previous active
// submission of the same type for the enrollment. Rejected history rows are
// kept, only their active flag drops.
func (r *DocumentRepository) Create(ctx context.Context, submission *models.DocumentSubmission) error {
	if submission.ID == "" {
		submission.ID = uuid.NewString()
	}
	if submission.UploadedAt.IsZero() {
		submission.UploadedAt = time.Now().UTC()
	}
	if submission.Status == "" {
		submission.Status = models.DocumentStatusPending
	}
	submission.Active = true

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin document tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const deactivate = `UPDATE document_submissions SET active = FALSE WHERE enrollment_id = $1 AND document_type = $2 AND active`
	if _, err := tx.ExecContext(ctx, deactivate, submission.EnrollmentID, submission.DocumentType); err != nil {
		return fmt.Errorf("deactivate previous submission: %w", err)
	}

	const insert = `INSERT INTO document_submissions (id, enrollment_id, document_type, storage_path, file_name, size_bytes, mime_type, status, rejection_reason, active, uploaded_at, reviewed_at)
        VALUES (:id, :enrollment_id, :document_type, :storage_path, :file_name, :size_bytes, :mime_type, :status, :rejection_reason, :active, :uploaded_at, :reviewed_at)`
	if _, err := tx.NamedExecContext(ctx, insert, submission); err != nil {
		return fmt.Errorf("create document submission: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit document tx: %w", err)
	}
	return nil
}

// FindByID returns a submission by ID.
func (r *DocumentRepository) FindByID(ctx context.Context, id string) (*models.DocumentSubmission, error) {
	query := fmt.Sprintf(`SELECT %s FROM document_submissions WHERE id = $1`, documentColumns)
	var submission models.DocumentSubmission
	if err := r.db.GetContext(ctx, &submission, query, id); err != nil {
		return nil, err
	}
	return &submission, nil
}

// ListActiveByEnrollment returns the active submission per document type.
func (r *DocumentRepository) ListActiveByEnrollment(ctx context.Context, enrollmentID string) ([]models.DocumentSubmission, error) {
	query := fmt.Sprintf(`SELECT %s FROM document_submissions WHERE enrollment_id = $1 AND active ORDER BY uploaded_at ASC`, documentColumns)
	var submissions []models.DocumentSubmission
	if err := r.db.SelectContext(ctx, &submissions, query, enrollmentID); err != nil {
		return nil, fmt.Errorf("list active submissions: %w", err)
	}
	return submissions, nil
}

// ListDetailByEnrollment returns active submissions with student context for
// manager review.
func (r *DocumentRepository) ListDetailByEnrollment(ctx context.Context, enrollmentID string) ([]models.DocumentSubmissionDetail, error) {
	const query = `SELECT d.id, d.enrollment_id, d.document_type, d.storage_path, d.file_name, d.size_bytes, d.mime_type, d.status, d.rejection_reason, d.active, d.uploaded_at, d.reviewed_at,
        u.first_name AS student_first_name, u.last_name AS student_last_name
        FROM document_submissions d
        JOIN enrollments e ON e.id = d.enrollment_id
        LEFT JOIN users u ON u.id = e.student_id
        WHERE d.enrollment_id = $1 AND d.active
        ORDER BY d.uploaded_at ASC`
	var submissions []models.DocumentSubmissionDetail
	if err := r.db.SelectContext(ctx, &submissions, query, enrollmentID); err != nil {
		return nil, fmt.Errorf("list submission details: %w", err)
	}
	return submissions, nil
}

// UpdateStatus records a review decision for a submission.
func (r *DocumentRepository) UpdateStatus(ctx context.Context, id string, status models.DocumentStatus, reason *string, reviewedAt time.Time) error {
	const query = `UPDATE document_submissions SET status = $2, rejection_reason = $3, reviewed_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, reason, reviewedAt); err != nil {
		return fmt.Errorf("update submission status: %w", err)
	}
	return nil
}

// SchoolIDForSubmission resolves the school owning the submission's enrollment.
func (r *DocumentRepository) SchoolIDForSubmission(ctx context.Context, id string) (string, error) {
	const query = `SELECT e.school_id FROM document_submissions d JOIN enrollments e ON e.id = d.enrollment_id WHERE d.id = $1`
	var schoolID string
	if err := r.db.GetContext(ctx, &schoolID, query, id); err != nil {
		return "", err
	}
	return schoolID, nil
}
