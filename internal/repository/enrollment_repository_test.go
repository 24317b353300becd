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

func newEnrollmentRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestEnrollmentRepositoryFindByID(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "student_id", "school_id", "status", "refusal_reason", "created_at", "approved_at", "updated_at"}).
		AddRow("enr-1", "stu-1", "sch-1", models.EnrollmentStatusPendingApproval, nil, now, nil, now)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, student_id, school_id, status, refusal_reason, created_at, approved_at, updated_at FROM enrollments WHERE id = $1")).
		WithArgs("enr-1").
		WillReturnRows(rows)

	enrollment, err := repo.FindByID(context.Background(), "enr-1")
	require.NoError(t, err)
	require.Equal(t, models.EnrollmentStatusPendingApproval, enrollment.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryExistsActive(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM enrollments WHERE student_id = $1 AND school_id = $2 AND status <> $3 LIMIT 1")).
		WithArgs("stu-1", "sch-1", models.EnrollmentStatusRejected).
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

	exists, err := repo.ExistsActive(context.Background(), "stu-1", "sch-1")
	require.NoError(t, err)
	require.True(t, exists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryExistsActiveNone(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM enrollments WHERE student_id = $1 AND school_id = $2 AND status <> $3 LIMIT 1")).
		WithArgs("stu-1", "sch-1", models.EnrollmentStatusRejected).
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}))

	exists, err := repo.ExistsActive(context.Background(), "stu-1", "sch-1")
	require.NoError(t, err)
	require.False(t, exists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryCreateDefaults(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectExec("INSERT INTO enrollments").
		WillReturnResult(sqlmock.NewResult(0, 1))

	enrollment := &models.Enrollment{StudentID: "stu-1", SchoolID: "sch-1"}
	require.NoError(t, repo.Create(context.Background(), enrollment))
	require.NotEmpty(t, enrollment.ID)
	require.Equal(t, models.EnrollmentStatusPendingDocuments, enrollment.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryApprove(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	approvedAt := time.Now().UTC()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE enrollments SET status = $2, approved_at = $3, updated_at = $3 WHERE id = $1 AND status = $4")).
		WithArgs("enr-1", models.EnrollmentStatusApproved, approvedAt, models.EnrollmentStatusPendingApproval).
		WillReturnResult(sqlmock.NewResult(0, 1))

	approved, err := repo.Approve(context.Background(), "enr-1", approvedAt)
	require.NoError(t, err)
	require.True(t, approved)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryApproveAlreadyDecided(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	approvedAt := time.Now().UTC()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE enrollments SET status = $2, approved_at = $3, updated_at = $3 WHERE id = $1 AND status = $4")).
		WithArgs("enr-1", models.EnrollmentStatusApproved, approvedAt, models.EnrollmentStatusPendingApproval).
		WillReturnResult(sqlmock.NewResult(0, 0))

	approved, err := repo.Approve(context.Background(), "enr-1", approvedAt)
	require.NoError(t, err)
	require.False(t, approved)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryRefuse(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE enrollments SET status = $2, refusal_reason = $3, updated_at = $4 WHERE id = $1 AND status = $5")).
		WithArgs("enr-1", models.EnrollmentStatusRejected, "missing medical certificate", sqlmock.AnyArg(), models.EnrollmentStatusPendingApproval).
		WillReturnResult(sqlmock.NewResult(0, 1))

	refused, err := repo.Refuse(context.Background(), "enr-1", "missing medical certificate")
	require.NoError(t, err)
	require.True(t, refused)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryPromoteToPendingApproval(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE enrollments SET status = $2, updated_at = $3 WHERE id = $1 AND status = $4")).
		WithArgs("enr-1", models.EnrollmentStatusPendingApproval, sqlmock.AnyArg(), models.EnrollmentStatusPendingDocuments).
		WillReturnResult(sqlmock.NewResult(0, 1))

	promoted, err := repo.PromoteToPendingApproval(context.Background(), "enr-1")
	require.NoError(t, err)
	require.True(t, promoted)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryHasApproved(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM enrollments WHERE student_id = $1 AND school_id = $2 AND status = $3 LIMIT 1")).
		WithArgs("stu-1", "sch-1", models.EnrollmentStatusApproved).
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

	approved, err := repo.HasApproved(context.Background(), "stu-1", "sch-1")
	require.NoError(t, err)
	require.True(t, approved)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryListBySchoolReviewQueueOrder(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	now := time.Now()
	cols := []string{"id", "student_id", "school_id", "status", "refusal_reason", "created_at", "approved_at", "updated_at",
		"student_first_name", "student_last_name", "student_email", "student_phone", "school_name"}
	rows := sqlmock.NewRows(cols).
		AddRow("enr-2", "stu-2", "sch-1", models.EnrollmentStatusPendingApproval, nil, now.Add(-time.Hour), nil, now,
			"Nadia", "Kaci", "nadia@example.dz", "", "El Amane").
		AddRow("enr-1", "stu-1", "sch-1", models.EnrollmentStatusPendingDocuments, nil, now.Add(-2*time.Hour), nil, now,
			"Amine", "Bouzid", "amine@example.dz", "", "El Amane")

	// Ready-for-review enrollments outrank ones still collecting documents,
	// and each group is served oldest first.
	mock.ExpectQuery(`ORDER BY CASE e\.status\s+WHEN 'pending_approval' THEN 0\s+WHEN 'pending_documents' THEN 1\s+WHEN 'approved' THEN 2\s+ELSE 3\s+END, e\.created_at ASC`).
		WithArgs("sch-1").
		WillReturnRows(rows)
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM enrollments`).
		WithArgs("sch-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	enrollments, total, err := repo.ListBySchool(context.Background(), "sch-1", models.EnrollmentFilter{})
	require.NoError(t, err)
	require.Equal(t, 2, total)
	require.Len(t, enrollments, 2)
	require.Equal(t, models.EnrollmentStatusPendingApproval, enrollments[0].Status)
	require.Equal(t, models.EnrollmentStatusPendingDocuments, enrollments[1].Status)
	require.NoError(t, mock.ExpectationsWereMet())
}
