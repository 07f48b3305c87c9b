package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/timmy/threatforge/internal/domain"
	"github.com/timmy/threatforge/internal/service"
)

// ScenarioHandler serves tabletop scenario generation.
type ScenarioHandler struct {
	scenarios *service.ScenarioService
}

func NewScenarioHandler(scenarios *service.ScenarioService) *ScenarioHandler {
	return &ScenarioHandler{scenarios: scenarios}
}

// Generate handles POST /api/scenarios/generate.
func (h *ScenarioHandler) Generate(c *gin.Context) {
	var req domain.ScenarioRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	result, err := h.scenarios.Generate(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// EstimateCost handles POST /api/scenarios/estimate-cost.
func (h *ScenarioHandler) EstimateCost(c *gin.Context) {
	var req domain.ScenarioRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	estimates, err := h.scenarios.EstimateCosts(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, estimates)
}

// RerollSection handles POST /api/scenarios/reroll-section.
func (h *ScenarioHandler) RerollSection(c *gin.Context) {
	var req domain.RerollSectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	result, err := h.scenarios.RerollSection(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Providers handles GET /api/scenarios/providers.
func (h *ScenarioHandler) Providers(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"providers": h.scenarios.Providers()})
}
