package service

import "github.com/autoecole-dz/platform-api/internal/models"

// AllRequiredDocumentsPresent reports whether every required document type has
// an active submission. Presence alone gates pending_approval: a rejected
// submission still counts until the student replaces it, a deliberate
// relaxation of gating on pending-or-accepted only. Review outcomes stay
// advisory here; a refused piece blocks the manager's approval decision, not
// the enrollment's move into the review queue.
func AllRequiredDocumentsPresent(submissions []models.DocumentSubmission) bool {
	seen := make(map[models.DocumentType]bool, len(models.RequiredDocumentTypes))
	for _, sub := range submissions {
		if sub.Active {
			seen[sub.DocumentType] = true
		}
	}
	for _, required := range models.RequiredDocumentTypes {
		if !seen[required] {
			return false
		}
	}
	return true
}

// DocumentsStatus derives the per-type view of an enrollment's documents.
// Types with no active submission appear as not_uploaded; the result always
// covers the full required set in its canonical order.
func DocumentsStatus(submissions []models.DocumentSubmission) []models.DocumentTypeStatus {
	active := make(map[models.DocumentType]models.DocumentSubmission, len(submissions))
	for _, sub := range submissions {
		if sub.Active {
			active[sub.DocumentType] = sub
		}
	}
	statuses := make([]models.DocumentTypeStatus, 0, len(models.RequiredDocumentTypes))
	for _, required := range models.RequiredDocumentTypes {
		sub, ok := active[required]
		if !ok {
			statuses = append(statuses, models.DocumentTypeStatus{
				DocumentType: required,
				Status:       models.DocumentStatusNotUploaded,
			})
			continue
		}
		uploadedAt := sub.UploadedAt
		statuses = append(statuses, models.DocumentTypeStatus{
			DocumentType: required,
			Status:       sub.Status,
			SubmissionID: sub.ID,
			UploadedAt:   &uploadedAt,
		})
	}
	return statuses
}
