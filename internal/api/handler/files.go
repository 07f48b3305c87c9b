package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/timmy/threatforge/internal/service"
)

// FileHandler serves diagram uploads.
type FileHandler struct {
	files   *service.FileService
	maxSize int64
}

// NewFileHandler creates a file handler. maxSize bounds the request body.
func NewFileHandler(files *service.FileService, maxSize int64) *FileHandler {
	return &FileHandler{files: files, maxSize: maxSize}
}

// Upload handles POST /api/threat-model/upload (multipart field "file").
func (h *FileHandler) Upload(c *gin.Context) {
	if h.maxSize > 0 {
		// Leave headroom for the multipart envelope; the service enforces the exact limit.
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxSize+64*1024)
	}

	header, err := c.FormFile("file")
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "No file provided: "+err.Error())
		return
	}
	f, err := header.Open()
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Failed to read upload: "+err.Error())
		return
	}
	defer f.Close()

	meta, err := h.files.Upload(c.Request.Context(), header.Filename, header.Header.Get("Content-Type"), f)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, meta)
}

// List handles GET /api/threat-model/files.
func (h *FileHandler) List(c *gin.Context) {
	files, err := h.files.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, files)
}

// Delete handles DELETE /api/threat-model/files/:file_id.
func (h *FileHandler) Delete(c *gin.Context) {
	if err := h.files.Delete(c.Request.Context(), c.Param("file_id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"detail": "File deleted"})
}
