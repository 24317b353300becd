package handler

import (
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"github.com/autoecole-dz/platform-api/internal/service"
	appErrors "github.com/autoecole-dz/platform-api/pkg/errors"
	"github.com/autoecole-dz/platform-api/pkg/response"
	"github.com/autoecole-dz/platform-api/pkg/storage"
)

// DocumentHandler streams stored document files behind signed links.
type DocumentHandler struct {
	documents *service.DocumentService
	store     *storage.LocalStorage
}

// NewDocumentHandler constructs DocumentHandler.
func NewDocumentHandler(documents *service.DocumentService, store *storage.LocalStorage) *DocumentHandler {
	return &DocumentHandler{documents: documents, store: store}
}

// Download godoc
// @Summary Download a document via signed link
// @Tags Documents
// @Produce octet-stream
// @Param token query string true "Signed token"
// @Success 200 {file} file
// @Failure 401 {object} response.Envelope
// @Router /documents/download [get]
func (h *DocumentHandler) Download(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}

	relPath, err := h.documents.ResolveDownload(c.Request.Context(), token)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+filepath.Base(relPath)+`"`)
	c.File(h.store.Path(relPath))
	c.Status(http.StatusOK)
}
