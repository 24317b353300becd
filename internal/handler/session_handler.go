package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/autoecole-dz/platform-api/internal/service"
	appErrors "github.com/autoecole-dz/platform-api/pkg/errors"
	"github.com/autoecole-dz/platform-api/pkg/response"
)

// SessionHandler exposes the manager's lesson schedule.
type SessionHandler struct {
	sessions *service.SessionService
	schools  *service.SchoolService
}

// NewSessionHandler constructs SessionHandler.
func NewSessionHandler(sessions *service.SessionService, schools *service.SchoolService) *SessionHandler {
	return &SessionHandler{sessions: sessions, schools: schools}
}

func (h *SessionHandler) schoolID(c *gin.Context) (string, bool) {
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
// @Summary Schedule a session
// @Tags Sessions
// @Accept json
// @Produce json
// @Param payload body service.CreateSessionRequest true "Session payload"
// @Success 201 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /manager/sessions [post]
func (h *SessionHandler) Create(c *gin.Context) {
	schoolID, ok := h.schoolID(c)
	if !ok {
		return
	}

	var req service.CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid session payload"))
		return
	}

	session, err := h.sessions.Create(c.Request.Context(), schoolID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, session)
}

// List godoc
// @Summary School session schedule
// @Tags Sessions
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /manager/sessions [get]
func (h *SessionHandler) List(c *gin.Context) {
	schoolID, ok := h.schoolID(c)
	if !ok {
		return
	}

	sessions, err := h.sessions.ListForSchool(c.Request.Context(), schoolID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sessions, nil)
}

// Delete godoc
// @Summary Cancel a session
// @Tags Sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 204 {object} response.Envelope
// @Router /manager/sessions/{id} [delete]
func (h *SessionHandler) Delete(c *gin.Context) {
	if _, ok := h.schoolID(c); !ok {
		return
	}

	if err := h.sessions.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
