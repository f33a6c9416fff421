package controllers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/carrigar/order-crm-api/services"
	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
)

// GetUploadedFile handles GET /api/v1/uploads/*key - serves order files kept on local disk
func (a *API) GetUploadedFile(c *gin.Context) {
	key := strings.TrimPrefix(c.Param("key"), "/")
	if key == "" {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", "File key is required")
		return
	}

	local, ok := a.store.(*services.LocalFileStore)
	if !ok {
		respondError(c, http.StatusNotFound, "FILE_NOT_FOUND", "File not found")
		return
	}

	path, err := local.Open(key)
	if err != nil {
		if errors.Is(err, services.ErrFileNotFound) {
			respondError(c, http.StatusNotFound, "FILE_NOT_FOUND", "File not found")
			return
		}
		_ = c.Error(err)
		respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to open file")
		return
	}

	contentType := "application/octet-stream"
	if mtype, err := mimetype.DetectFile(path); err == nil {
		contentType = mtype.String()
	}

	c.Header("Content-Type", contentType)
	c.Header("Cache-Control", "private, max-age=3600")
	c.File(path)
}
