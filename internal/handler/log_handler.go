package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sirama-krs-engine/internal/models"
	"github.com/noah-isme/sirama-krs-engine/internal/service"
	"github.com/noah-isme/sirama-krs-engine/pkg/response"
)

// LogHandler handles enrollment log endpoints.
type LogHandler struct {
	service *service.LogService
}

// NewLogHandler constructs a log handler.
func NewLogHandler(svc *service.LogService) *LogHandler {
	return &LogHandler{service: svc}
}

// List returns logged outcomes newest first.
func (h *LogHandler) List(c *gin.Context) {
	var filter models.EnrollmentLogFilter
	filter.AccountID = c.Query("account_id")
	filter.Status = models.OutcomeStatus(c.Query("status"))
	if limit, err := strconv.Atoi(c.DefaultQuery("limit", "0")); err == nil {
		filter.Limit = limit
	}

	outcomes, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, outcomes, nil)
}

// Stats returns aggregated log statistics, optionally for one account.
func (h *LogHandler) Stats(c *gin.Context) {
	stats, err := h.service.Stats(c.Request.Context(), c.Query("account_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}
