package models

import "time"

// ManagerOverview aggregates school-level counters for the manager dashboard.
type ManagerOverview struct {
	SchoolID             string    `json:"school_id"`
	TotalEnrollments     int       `db:"total_enrollments" json:"total_enrollments"`
	PendingDocuments     int       `db:"pending_documents" json:"pending_documents"`
	PendingApproval      int       `db:"pending_approval" json:"pending_approval"`
	ApprovedStudents     int       `db:"approved_students" json:"approved_students"`
	RejectedApplications int       `db:"rejected_applications" json:"rejected_applications"`
	TotalTeachers        int       `db:"total_teachers" json:"total_teachers"`
	TotalSessions        int       `db:"total_sessions" json:"total_sessions"`
	TotalQuizzes         int       `db:"total_quizzes" json:"total_quizzes"`
	GeneratedAt          time.Time `json:"generated_at"`
}

// ReportFormat selects the rendering of an exported report.
type ReportFormat string

const (
	ReportFormatCSV ReportFormat = "csv"
	ReportFormatPDF ReportFormat = "pdf"
)

// IsValidReportFormat reports whether the format is supported.
func IsValidReportFormat(f ReportFormat) bool {
	return f == ReportFormatCSV || f == ReportFormatPDF
}

// SystemMetrics is a lightweight aggregate of runtime counters.
type SystemMetrics struct {
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}

// StudentProgress summarizes one approved student's activity at a school.
type StudentProgress struct {
	StudentID        string     `db:"student_id" json:"student_id"`
	StudentFirstName string     `db:"student_first_name" json:"student_first_name"`
	StudentLastName  string     `db:"student_last_name" json:"student_last_name"`
	ApprovedAt       *time.Time `db:"approved_at" json:"approved_at,omitempty"`
	SessionsTotal    int        `db:"sessions_total" json:"sessions_total"`
	SessionsUpcoming int        `db:"sessions_upcoming" json:"sessions_upcoming"`
}
