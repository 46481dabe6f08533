package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nori/caliper/internal/apperr"
	"github.com/nori/caliper/internal/service"
)

// ReportHandler handles the report read and evidence maintenance endpoints.
type ReportHandler struct {
	reports *service.ReportService
}

// NewReportHandler creates a new report handler.
func NewReportHandler(reports *service.ReportService) *ReportHandler {
	return &ReportHandler{reports: reports}
}

// GetReport handles GET /api/v1/reports/:id.
func (h *ReportHandler) GetReport(c *gin.Context) {
	view, err := h.reports.GetReport(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// EvidenceUpgrade handles POST /api/v1/reports/:id/evidence-upgrade.
func (h *ReportHandler) EvidenceUpgrade(c *gin.Context) {
	view, err := h.reports.EvidenceUpgrade(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// ManualLabel handles POST /api/v1/reports/:id/manual-label. Body:
// {"fields": {"weight_grams": "120", ...}}.
func (h *ReportHandler) ManualLabel(c *gin.Context) {
	var body struct {
		Fields map[string]string `json:"fields"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, apperr.Validation("INVALID_BODY", "invalid JSON body: %v", err))
		return
	}

	view, err := h.reports.ManualLabel(c.Request.Context(), c.Param("id"), body.Fields)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}
