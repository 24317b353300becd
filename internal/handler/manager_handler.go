package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/autoecole-dz/platform-api/internal/models"
	"github.com/autoecole-dz/platform-api/internal/service"
	appErrors "github.com/autoecole-dz/platform-api/pkg/errors"
	"github.com/autoecole-dz/platform-api/pkg/response"
)

// ManagerHandler exposes the manager review workflow: the enrollment queue,
// accept/refuse decisions, document review and dashboard analytics.
type ManagerHandler struct {
	enrollments *service.EnrollmentService
	documents   *service.DocumentService
	schools     *service.SchoolService
	analytics   *service.AnalyticsService
	exports     *service.ExportService
	teachers    *service.TeacherService
}

// NewManagerHandler constructs ManagerHandler.
func NewManagerHandler(enrollments *service.EnrollmentService, documents *service.DocumentService, schools *service.SchoolService, analytics *service.AnalyticsService, exports *service.ExportService, teachers *service.TeacherService) *ManagerHandler {
	return &ManagerHandler{
		enrollments: enrollments,
		documents:   documents,
		schools:     schools,
		analytics:   analytics,
		exports:     exports,
		teachers:    teachers,
	}
}

func (h *ManagerHandler) schoolID(c *gin.Context) (string, *models.JWTClaims, bool) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return "", nil, false
	}
	school, err := h.schools.SchoolForManager(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return "", nil, false
	}
	return school.ID, claims, true
}

// Enrollments godoc
// @Summary Enrollment review queue
// @Description Enrollments of the manager's school, pending_approval first
// @Tags Manager
// @Produce json
// @Param status query string false "Filter by status"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /manager/enrollments [get]
func (h *ManagerHandler) Enrollments(c *gin.Context) {
	schoolID, _, ok := h.schoolID(c)
	if !ok {
		return
	}

	var filter models.EnrollmentFilter
	filter.Status = models.EnrollmentStatus(c.Query("status"))
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "50")); err == nil {
		filter.PageSize = size
	}

	enrollments, pagination, err := h.enrollments.ListForSchool(c.Request.Context(), schoolID, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollments, pagination)
}

// Accept godoc
// @Summary Accept an enrollment
// @Description Approves a pending_approval enrollment; retries are no-ops
// @Tags Manager
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /manager/enrollments/{id}/accept [post]
func (h *ManagerHandler) Accept(c *gin.Context) {
	schoolID, claims, ok := h.schoolID(c)
	if !ok {
		return
	}

	enrollment, err := h.enrollments.Accept(c.Request.Context(), c.Param("id"), claims, schoolID, c.ClientIP(), c.GetHeader("User-Agent"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollment, nil)
}

// Refuse godoc
// @Summary Refuse an enrollment
// @Tags Manager
// @Accept json
// @Produce json
// @Param id path string true "Enrollment ID"
// @Param payload body service.RefuseEnrollmentRequest true "Refusal reason"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /manager/enrollments/{id}/refuse [post]
func (h *ManagerHandler) Refuse(c *gin.Context) {
	schoolID, claims, ok := h.schoolID(c)
	if !ok {
		return
	}

	var req service.RefuseEnrollmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid refusal payload"))
		return
	}

	enrollment, err := h.enrollments.Refuse(c.Request.Context(), c.Param("id"), req, claims, schoolID, c.ClientIP(), c.GetHeader("User-Agent"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollment, nil)
}

// EnrollmentDocuments godoc
// @Summary Submissions of an enrollment with download links
// @Tags Manager
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Router /manager/enrollments/{id}/documents [get]
func (h *ManagerHandler) EnrollmentDocuments(c *gin.Context) {
	schoolID, _, ok := h.schoolID(c)
	if !ok {
		return
	}

	documents, err := h.documents.ListForReview(c.Request.Context(), c.Param("id"), schoolID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, documents, nil)
}

// ReviewDocument godoc
// @Summary Accept or reject a document submission
// @Tags Manager
// @Accept json
// @Produce json
// @Param id path string true "Submission ID"
// @Param payload body service.ReviewDocumentRequest true "Verdict"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /manager/documents/{id}/review [post]
func (h *ManagerHandler) ReviewDocument(c *gin.Context) {
	schoolID, claims, ok := h.schoolID(c)
	if !ok {
		return
	}

	var req service.ReviewDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid review payload"))
		return
	}

	submission, err := h.documents.Review(c.Request.Context(), c.Param("id"), req, claims, schoolID, c.ClientIP(), c.GetHeader("User-Agent"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, submission, nil)
}

// Overview godoc
// @Summary School dashboard counters
// @Tags Manager
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /manager/analytics/overview [get]
func (h *ManagerHandler) Overview(c *gin.Context) {
	schoolID, _, ok := h.schoolID(c)
	if !ok {
		return
	}

	overview, err := h.analytics.Overview(c.Request.Context(), schoolID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, overview, nil)
}

// StudentProgress godoc
// @Summary Per-student session counters
// @Tags Manager
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /manager/analytics/progress [get]
func (h *ManagerHandler) StudentProgress(c *gin.Context) {
	schoolID, _, ok := h.schoolID(c)
	if !ok {
		return
	}

	progress, err := h.analytics.StudentProgress(c.Request.Context(), schoolID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, progress, nil)
}

// ExportEnrollments godoc
// @Summary Export the enrollment register
// @Tags Manager
// @Produce text/csv
// @Produce application/pdf
// @Param format query string false "csv or pdf" default(csv)
// @Param status query string false "Filter by status"
// @Success 200 {file} file
// @Router /manager/enrollments/export [get]
func (h *ManagerHandler) ExportEnrollments(c *gin.Context) {
	schoolID, _, ok := h.schoolID(c)
	if !ok {
		return
	}

	format := models.ReportFormat(c.DefaultQuery("format", "csv"))
	status := models.EnrollmentStatus(c.Query("status"))

	result, err := h.exports.EnrollmentRegister(c.Request.Context(), schoolID, status, format)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+result.FileName+`"`)
	c.Data(http.StatusOK, result.ContentType, result.Content)
}

// Teachers godoc
// @Summary List school instructors
// @Tags Manager
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /manager/teachers [get]
func (h *ManagerHandler) Teachers(c *gin.Context) {
	schoolID, _, ok := h.schoolID(c)
	if !ok {
		return
	}

	teachers, err := h.teachers.List(c.Request.Context(), schoolID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, teachers, nil)
}

// CreateTeacher godoc
// @Summary Add an instructor
// @Tags Manager
// @Accept json
// @Produce json
// @Param payload body service.CreateTeacherRequest true "Teacher payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /manager/teachers [post]
func (h *ManagerHandler) CreateTeacher(c *gin.Context) {
	schoolID, claims, ok := h.schoolID(c)
	if !ok {
		return
	}

	var req service.CreateTeacherRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid teacher payload"))
		return
	}

	teacher, err := h.teachers.Create(c.Request.Context(), schoolID, req, claims, c.ClientIP(), c.GetHeader("User-Agent"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, teacher)
}

// DeleteTeacher godoc
// @Summary Remove an instructor
// @Tags Manager
// @Produce json
// @Param id path string true "Teacher ID"
// @Success 204 {object} response.Envelope
// @Router /manager/teachers/{id} [delete]
func (h *ManagerHandler) DeleteTeacher(c *gin.Context) {
	schoolID, claims, ok := h.schoolID(c)
	if !ok {
		return
	}

	if err := h.teachers.Remove(c.Request.Context(), schoolID, c.Param("id"), claims, c.ClientIP(), c.GetHeader("User-Agent")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
