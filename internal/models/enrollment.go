package models

import "time"

// EnrollmentStatus represents the lifecycle state of an enrollment.
type EnrollmentStatus string

// Lifecycle states. The only legal transitions are
// pending_documents -> pending_approval (automatic, once the required
// document set is complete), pending_approval -> approved and
// pending_approval -> rejected. A rejected enrollment is terminal; the
// student restarts with a fresh enrollment instead.
const (
	EnrollmentStatusPendingDocuments EnrollmentStatus = "pending_documents"
	EnrollmentStatusPendingApproval  EnrollmentStatus = "pending_approval"
	EnrollmentStatusApproved         EnrollmentStatus = "approved"
	EnrollmentStatusRejected         EnrollmentStatus = "rejected"
)

// Terminal reports whether no further transition is possible for the status.
func (s EnrollmentStatus) Terminal() bool {
	return s == EnrollmentStatusApproved || s == EnrollmentStatusRejected
}

// Enrollment captures a student's application to join a driving school.
type Enrollment struct {
	ID            string           `db:"id" json:"id"`
	StudentID     string           `db:"student_id" json:"student_id"`
	SchoolID      string           `db:"school_id" json:"school_id"`
	Status        EnrollmentStatus `db:"status" json:"enrollment_status"`
	RefusalReason *string          `db:"refusal_reason" json:"refusal_reason,omitempty"`
	CreatedAt     time.Time        `db:"created_at" json:"created_at"`
	ApprovedAt    *time.Time       `db:"approved_at" json:"approved_at,omitempty"`
	UpdatedAt     time.Time        `db:"updated_at" json:"updated_at"`
}

// EnrollmentDetail enriches Enrollment with denormalized student and school info.
type EnrollmentDetail struct {
	Enrollment
	StudentFirstName string `db:"student_first_name" json:"student_first_name"`
	StudentLastName  string `db:"student_last_name" json:"student_last_name"`
	StudentEmail     string `db:"student_email" json:"student_email"`
	StudentPhone     string `db:"student_phone" json:"student_phone"`
	SchoolName       string `db:"school_name" json:"school_name"`
}

// EnrollmentFilter provides filters for listing enrollments.
type EnrollmentFilter struct {
	StudentID string
	SchoolID  string
	Status    EnrollmentStatus
	Page      int
	PageSize  int
}
