package models

import "time"

// DocumentType identifies one of the artifacts an applicant must provide.
type DocumentType string

const (
	DocumentTypeProfilePhoto         DocumentType = "profile_photo"
	DocumentTypeIDCard               DocumentType = "id_card"
	DocumentTypeMedicalCertificate   DocumentType = "medical_certificate"
	DocumentTypeResidenceCertificate DocumentType = "residence_certificate"
)

// RequiredDocumentTypes is the complete set an enrollment must cover before
// it can move to pending_approval. Fixed per deployment.
var RequiredDocumentTypes = []DocumentType{
	DocumentTypeProfilePhoto,
	DocumentTypeIDCard,
	DocumentTypeMedicalCertificate,
	DocumentTypeResidenceCertificate,
}

// IsValidDocumentType reports whether the type belongs to the required set.
func IsValidDocumentType(t DocumentType) bool {
	for _, required := range RequiredDocumentTypes {
		if required == t {
			return true
		}
	}
	return false
}

// DocumentStatus is the review state of one submission.
type DocumentStatus string

const (
	// DocumentStatusNotUploaded only appears in the derived per-type view;
	// no submission row ever carries it.
	DocumentStatusNotUploaded DocumentStatus = "not_uploaded"
	DocumentStatusPending     DocumentStatus = "pending"
	DocumentStatusAccepted    DocumentStatus = "accepted"
	DocumentStatusRejected    DocumentStatus = "rejected"
)

// DocumentSubmission is one uploaded artifact for an enrollment. A re-upload
// deactivates the previous submission of the same type rather than deleting it.
type DocumentSubmission struct {
	ID              string         `db:"id" json:"id"`
	EnrollmentID    string         `db:"enrollment_id" json:"enrollment_id"`
	DocumentType    DocumentType   `db:"document_type" json:"document_type"`
	StoragePath     string         `db:"storage_path" json:"-"`
	FileName        string         `db:"file_name" json:"file_name"`
	SizeBytes       int64          `db:"size_bytes" json:"size_bytes"`
	MimeType        string         `db:"mime_type" json:"mime_type"`
	Status          DocumentStatus `db:"status" json:"status"`
	RejectionReason *string        `db:"rejection_reason" json:"rejection_reason,omitempty"`
	Active          bool           `db:"active" json:"active"`
	UploadedAt      time.Time      `db:"uploaded_at" json:"uploaded_at"`
	ReviewedAt      *time.Time     `db:"reviewed_at" json:"reviewed_at,omitempty"`
}

// DocumentSubmissionDetail adds denormalized context for manager review lists.
type DocumentSubmissionDetail struct {
	DocumentSubmission
	StudentFirstName string `db:"student_first_name" json:"student_first_name"`
	StudentLastName  string `db:"student_last_name" json:"student_last_name"`
	FileURL          string `db:"-" json:"file_url,omitempty"`
}

// DocumentTypeStatus is one entry of the derived documents-status aggregate.
type DocumentTypeStatus struct {
	DocumentType DocumentType   `json:"document_type"`
	Status       DocumentStatus `json:"status"`
	SubmissionID string         `json:"submission_id,omitempty"`
	UploadedAt   *time.Time     `json:"uploaded_at,omitempty"`
}
