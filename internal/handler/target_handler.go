package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sirama-krs-engine/internal/service"
	appErrors "github.com/noah-isme/sirama-krs-engine/pkg/errors"
	"github.com/noah-isme/sirama-krs-engine/pkg/response"
)

// TargetHandler handles course target endpoints.
type TargetHandler struct {
	service *service.TargetService
}

// NewTargetHandler constructs a target handler.
func NewTargetHandler(svc *service.TargetService) *TargetHandler {
	return &TargetHandler{service: svc}
}

// ListByAccount returns the account's targets in priority order.
func (h *TargetHandler) ListByAccount(c *gin.Context) {
	targets, err := h.service.List(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, targets, nil)
}

// Create adds a course target to an account.
func (h *TargetHandler) Create(c *gin.Context) {
	var req service.CreateTargetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	target, err := h.service.Create(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, target)
}

// Update modifies a course target.
func (h *TargetHandler) Update(c *gin.Context) {
	var req service.UpdateTargetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	target, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, target, nil)
}

// Delete removes a course target.
func (h *TargetHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
