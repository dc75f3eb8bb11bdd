package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sirama-krs-engine/internal/service"
	appErrors "github.com/noah-isme/sirama-krs-engine/pkg/errors"
	"github.com/noah-isme/sirama-krs-engine/pkg/response"
)

// RunHandler handles enrollment run and drop endpoints.
type RunHandler struct {
	service *service.RunService
}

// NewRunHandler constructs a run handler.
func NewRunHandler(svc *service.RunService) *RunHandler {
	return &RunHandler{service: svc}
}

// Trigger starts a synchronous enrollment run and returns the aggregated
// report once every account finished.
func (h *RunHandler) Trigger(c *gin.Context) {
	var req service.RunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	report, err := h.service.TriggerRun(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}

// Drop removes one enrolled course for an account.
func (h *RunHandler) Drop(c *gin.Context) {
	var req service.DropRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	outcome, err := h.service.DropCourse(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, outcome, nil)
}
