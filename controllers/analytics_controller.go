package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GetAnalytics handles GET /crm/analytics?start=YYYY-MM-DD&end=YYYY-MM-DD
func (a *API) GetAnalytics(c *gin.Context) {
	start, err := parseDate(c.Query("start"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_DATE", "start must be YYYY-MM-DD")
		return
	}
	end, err := parseDate(c.Query("end"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_DATE", "end must be YYYY-MM-DD")
		return
	}

	window, err := a.analytics.ResolveWindow(start, end)
	if err != nil {
		a.respondServiceError(c, err)
		return
	}

	report, err := a.analytics.Report(c.Request.Context(), window)
	if err != nil {
		a.respondServiceError(c, err)
		return
	}

	respondSuccess(c, http.StatusOK, report)
}
