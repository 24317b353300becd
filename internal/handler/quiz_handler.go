package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/autoecole-dz/platform-api/internal/models"
	"github.com/autoecole-dz/platform-api/internal/service"
	appErrors "github.com/autoecole-dz/platform-api/pkg/errors"
	"github.com/autoecole-dz/platform-api/pkg/response"
)

// QuizHandler exposes quiz management for managers and quiz access for
// approved students.
type QuizHandler struct {
	quizzes *service.QuizService
	schools *service.SchoolService
}

// NewQuizHandler constructs QuizHandler.
func NewQuizHandler(quizzes *service.QuizService, schools *service.SchoolService) *QuizHandler {
	return &QuizHandler{quizzes: quizzes, schools: schools}
}

func (h *QuizHandler) schoolID(c *gin.Context) (string, bool) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return "", false
	}
	school, err := h.schools.SchoolForManager(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return "", false
	}
	return school.ID, true
}

// Create godoc
// @Summary Publish a quiz
// @Tags Quizzes
// @Accept json
// @Produce json
// @Param payload body service.CreateQuizRequest true "Quiz payload"
// @Success 201 {object} response.Envelope
// @Router /manager/quizzes [post]
func (h *QuizHandler) Create(c *gin.Context) {
	schoolID, ok := h.schoolID(c)
	if !ok {
		return
	}

	var req service.CreateQuizRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid quiz payload"))
		return
	}

	quiz, err := h.quizzes.Create(c.Request.Context(), schoolID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, quiz)
}

// ListForManager godoc
// @Summary School quizzes
// @Tags Quizzes
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /manager/quizzes [get]
func (h *QuizHandler) ListForManager(c *gin.Context) {
	schoolID, ok := h.schoolID(c)
	if !ok {
		return
	}

	quizzes, err := h.quizzes.ListForSchool(c.Request.Context(), schoolID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, quizzes, nil)
}

// Delete godoc
// @Summary Remove a quiz
// @Tags Quizzes
// @Produce json
// @Param id path string true "Quiz ID"
// @Success 204 {object} response.Envelope
// @Router /manager/quizzes/{id} [delete]
func (h *QuizHandler) Delete(c *gin.Context) {
	if _, ok := h.schoolID(c); !ok {
		return
	}

	if err := h.quizzes.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ListForStudent godoc
// @Summary Quizzes of a school I'm approved at
// @Tags Quizzes
// @Produce json
// @Param id path string true "School ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /schools/{id}/quizzes [get]
func (h *QuizHandler) ListForStudent(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	quizzes, err := h.quizzes.ListForStudent(c.Request.Context(), claims.UserID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, quizzes, nil)
}

// Get godoc
// @Summary Quiz details
// @Tags Quizzes
// @Produce json
// @Param id path string true "Quiz ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /quizzes/{id} [get]
func (h *QuizHandler) Get(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	studentID := claims.UserID
	if claims.Role == models.RoleManager || claims.Role == models.RoleAdmin {
		studentID = ""
	}

	quiz, err := h.quizzes.Get(c.Request.Context(), c.Param("id"), studentID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, quiz, nil)
}
