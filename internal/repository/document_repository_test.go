package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/autoecole-dz/platform-api/internal/models"
)

func newDocumentRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestDocumentRepositoryCreateSupersedesPrevious(t *testing.T) {
	db, mock, cleanup := newDocumentRepoMock(t)
	defer cleanup()
	repo := NewDocumentRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE document_submissions SET active = FALSE WHERE enrollment_id = $1 AND document_type = $2 AND active")).
		WithArgs("enr-1", models.DocumentTypeIDCard).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO document_submissions").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	submission := &models.DocumentSubmission{
		EnrollmentID: "enr-1",
		DocumentType: models.DocumentTypeIDCard,
		StoragePath:  "documents/enr-1/id_card_1.pdf",
		FileName:     "id.pdf",
		SizeBytes:    1024,
		MimeType:     "application/pdf",
	}
	require.NoError(t, repo.Create(context.Background(), submission))
	require.NotEmpty(t, submission.ID)
	require.True(t, submission.Active)
	require.Equal(t, models.DocumentStatusPending, submission.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentRepositoryListActiveByEnrollment(t *testing.T) {
	db, mock, cleanup := newDocumentRepoMock(t)
	defer cleanup()
	repo := NewDocumentRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "enrollment_id", "document_type", "storage_path", "file_name", "size_bytes", "mime_type", "status", "rejection_reason", "active", "uploaded_at", "reviewed_at"}).
		AddRow("sub-1", "enr-1", models.DocumentTypeProfilePhoto, "documents/enr-1/p.jpg", "p.jpg", 512, "image/jpeg", models.DocumentStatusPending, nil, true, now, nil)
	mock.ExpectQuery("SELECT .+ FROM document_submissions WHERE enrollment_id = .+ AND active").
		WithArgs("enr-1").
		WillReturnRows(rows)

	submissions, err := repo.ListActiveByEnrollment(context.Background(), "enr-1")
	require.NoError(t, err)
	require.Len(t, submissions, 1)
	require.True(t, submissions[0].Active)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentRepositoryUpdateStatus(t *testing.T) {
	db, mock, cleanup := newDocumentRepoMock(t)
	defer cleanup()
	repo := NewDocumentRepository(db)

	reason := "blurry scan"
	reviewedAt := time.Now().UTC()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE document_submissions SET status = $2, rejection_reason = $3, reviewed_at = $4 WHERE id = $1")).
		WithArgs("sub-1", models.DocumentStatusRejected, &reason, reviewedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpdateStatus(context.Background(), "sub-1", models.DocumentStatusRejected, &reason, reviewedAt))
	require.NoError(t, mock.ExpectationsWereMet())
}
