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

// SchoolHandler exposes the public driving-school catalog.
type SchoolHandler struct {
	schools *service.SchoolService
}

// NewSchoolHandler constructs SchoolHandler.
func NewSchoolHandler(schools *service.SchoolService) *SchoolHandler {
	return &SchoolHandler{schools: schools}
}

// List godoc
// @Summary Browse driving schools
// @Tags Schools
// @Produce json
// @Param state query string false "Filter by wilaya"
// @Param min_price query number false "Minimum price"
// @Param max_price query number false "Maximum price"
// @Param min_rating query number false "Minimum rating"
// @Param search query string false "Search by name"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /schools [get]
func (h *SchoolHandler) List(c *gin.Context) {
	var filter models.SchoolFilter
	filter.State = c.Query("state")
	filter.Search = c.Query("search")
	if raw := c.Query("min_price"); raw != "" {
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			filter.MinPrice = &v
		}
	}
	if raw := c.Query("max_price"); raw != "" {
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			filter.MaxPrice = &v
		}
	}
	if raw := c.Query("min_rating"); raw != "" {
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			filter.MinRating = &v
		}
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	schools, pagination, err := h.schools.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, schools, pagination)
}

// Get godoc
// @Summary Driving school details
// @Tags Schools
// @Produce json
// @Param id path string true "School ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /schools/{id} [get]
func (h *SchoolHandler) Get(c *gin.Context) {
	school, err := h.schools.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, school, nil)
}

// States godoc
// @Summary List wilayas
// @Tags Schools
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /schools/states [get]
func (h *SchoolHandler) States(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.schools.States(), nil)
}

// Create godoc
// @Summary Register a driving school
// @Tags Schools
// @Accept json
// @Produce json
// @Param payload body service.CreateSchoolRequest true "School payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /manager/school [post]
func (h *SchoolHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.CreateSchoolRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid school payload"))
		return
	}

	school, err := h.schools.Create(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, school)
}

// MySchool godoc
// @Summary Manager's own school
// @Tags Schools
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /manager/school [get]
func (h *SchoolHandler) MySchool(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	school, err := h.schools.SchoolForManager(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, school, nil)
}

// UploadPhoto godoc
// @Summary Upload school photo
// @Tags Schools
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Photo file"
// @Success 200 {object} response.Envelope
// @Router /manager/school/photo [post]
func (h *SchoolHandler) UploadPhoto(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

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

	school, err := h.schools.UploadPhoto(c.Request.Context(), claims.UserID, service.UploadSchoolPhotoInput{
		FileName:  fileHeader.Filename,
		SizeBytes: fileHeader.Size,
		Content:   src,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, school, nil)
}
