package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/timmy/threatforge/internal/domain"
	"github.com/timmy/threatforge/internal/service"
)

// ThreatModelHandler serves synchronous threat model generation.
type ThreatModelHandler struct {
	models *service.ThreatModelService
}

// NewThreatModelHandler creates a new threat model handler.
func NewThreatModelHandler(models *service.ThreatModelService) *ThreatModelHandler {
	return &ThreatModelHandler{models: models}
}

// Generate handles POST /api/threat-model/generate.
func (h *ThreatModelHandler) Generate(c *gin.Context) {
	var req domain.ThreatModelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	result, err := h.models.Generate(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// EstimateCost handles POST /api/threat-model/estimate-cost.
func (h *ThreatModelHandler) EstimateCost(c *gin.Context) {
	var req domain.ThreatModelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	estimates, err := h.models.EstimateCosts(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, estimates)
}

// Providers handles GET /api/threat-model/providers.
func (h *ThreatModelHandler) Providers(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"providers": h.models.Providers()})
}
