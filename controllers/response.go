package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/carrigar/order-crm-api/services"
	"github.com/gin-gonic/gin"
)

// dateLayout is the wire format of calendar dates
const dateLayout = "2006-01-02"

func respondSuccess(c *gin.Context, status int, data interface{}) {
	c.JSON(status, gin.H{
		"success": true,
		"data":    data,
	})
}

func respondError(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{
		"success": false,
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	})
}

func respondValidationError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"success": false,
		"error": gin.H{
			"code":    "VALIDATION_ERROR",
			"message": "Invalid request data",
			"details": err.Error(),
		},
	})
}

// respondServiceError maps a service failure onto the error envelope
func (a *API) respondServiceError(c *gin.Context, err error) {
	var se *services.ServiceError
	if !errors.As(err, &se) {
		_ = c.Error(err)
		respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred")
		return
	}

	status := http.StatusInternalServerError
	switch se.Kind {
	case services.KindNotFound:
		status = http.StatusNotFound
	case services.KindValidation:
		status = http.StatusBadRequest
	case services.KindAuthorization:
		status = http.StatusForbidden
		if se.Code == "LOGIN_REQUIRED" {
			status = http.StatusUnauthorized
		}
	case services.KindConflict:
		status = http.StatusConflict
	default:
		_ = c.Error(err)
	}

	message := se.Message
	if se.Kind == services.KindInternal && !a.cfg.IsDevelopment() {
		message = "An unexpected error occurred"
	}
	respondError(c, status, se.Code, message)
}

// parseDate parses an optional YYYY-MM-DD value; empty input is nil
func parseDate(value string) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, value)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func parseID(c *gin.Context, param string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(param), 10, 64)
	if err != nil || id == 0 {
		respondError(c, http.StatusBadRequest, "INVALID_ID", "Invalid "+param)
		return 0, false
	}
	return uint(id), true
}

func queryInt(c *gin.Context, key string) int {
	n, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return 0
	}
	return n
}
