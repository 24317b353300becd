package models

import "time"

// NotificationType labels the lifecycle events a user is told about.
type NotificationType string

const (
	NotificationDocumentsRequired  NotificationType = "documents_required"
	NotificationDocumentAccepted   NotificationType = "document_accepted"
	NotificationDocumentRefused    NotificationType = "document_refused"
	NotificationEnrollmentAccepted NotificationType = "enrollment_accepted"
	NotificationEnrollmentRefused  NotificationType = "enrollment_refused"
	NotificationSessionScheduled   NotificationType = "session_scheduled"
)

// Notification is a persisted message surfaced to a user.
type Notification struct {
	ID        string           `db:"id" json:"id"`
	UserID    string           `db:"user_id" json:"user_id"`
	Type      NotificationType `db:"type" json:"type"`
	Message   string           `db:"message" json:"message"`
	Read      bool             `db:"read" json:"read"`
	CreatedAt time.Time        `db:"created_at" json:"created_at"`
}
