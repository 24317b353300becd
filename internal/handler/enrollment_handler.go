package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/autoecole-dz/platform-api/internal/models"
	"github.com/autoecole-dz/platform-api/internal/service"
	appErrors "github.com/autoecole-dz/platform-api/pkg/errors"
	"github.com/autoecole-dz/platform-api/pkg/response"
)

// EnrollmentHandler exposes the student side of the enrollment lifecycle.
type EnrollmentHandler struct {
	enrollments *service.EnrollmentService
	documents   *service.DocumentService
	sessions    *service.SessionService
}

// NewEnrollmentHandler constructs EnrollmentHandler.
func NewEnrollmentHandler(enrollments *service.EnrollmentService, documents *service.DocumentService, sessions *service.SessionService) *EnrollmentHandler {
	return &EnrollmentHandler{enrollments: enrollments, documents: documents, sessions: sessions}
}

// Enroll godoc
// @Summary Apply to a driving school
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param payload body service.EnrollRequest true "Enrollment payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /enrollments [post]
func (h *EnrollmentHandler) Enroll(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.EnrollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid enrollment payload"))
		return
	}

	enrollment, err := h.enrollments.Enroll(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, enrollment)
}

// List godoc
// @Summary My enrollments
// @Tags Enrollments
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /enrollments [get]
func (h *EnrollmentHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	enrollments, err := h.enrollments.ListForStudent(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollments, nil)
}

// DocumentsStatus godoc
// @Summary Per-type document status of my enrollment
// @Tags Enrollments
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /enrollments/{id}/documents [get]
func (h *EnrollmentHandler) DocumentsStatus(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	statuses, err := h.documents.Status(c.Request.Context(), c.Param("id"), claims.UserID, "")
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, statuses, nil)
}

// UploadDocument godoc
// @Summary Upload an enrollment document
// @Tags Enrollments
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Enrollment ID"
// @Param document_type formData string true "Document type"
// @Param file formData file true "Document file"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /enrollments/{id}/documents [post]
func (h *EnrollmentHandler) UploadDocument(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	docType := c.PostForm("document_type")
	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "file is required"))
		return
	}
	src, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open file"))
		return
	}
	defer src.Close()

	submission, err := h.documents.Upload(c.Request.Context(), claims.UserID, service.UploadDocumentInput{
		EnrollmentID: c.Param("id"),
		DocumentType: models.DocumentType(docType),
		FileName:     fileHeader.Filename,
		SizeBytes:    fileHeader.Size,
		MimeType:     fileHeader.Header.Get("Content-Type"),
		Content:      src,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, submission)
}

// Sessions godoc
// @Summary My scheduled sessions
// @Tags Sessions
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /sessions [get]
func (h *EnrollmentHandler) Sessions(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	sessions, err := h.sessions.ListForStudent(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sessions, nil)
}
