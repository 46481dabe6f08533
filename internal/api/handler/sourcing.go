package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nori/caliper/internal/apperr"
	"github.com/nori/caliper/internal/service"
)

// SourcingHandler handles the sourcing-job endpoints.
type SourcingHandler struct {
	sourcing *service.SourcingService
}

// NewSourcingHandler creates a new sourcing handler.
func NewSourcingHandler(sourcing *service.SourcingService) *SourcingHandler {
	return &SourcingHandler{sourcing: sourcing}
}

// CreateJob handles POST /api/v1/reports/:id/sourcing-job. Body:
// {"supplier_ids": ["s1", "s2"]}.
func (h *SourcingHandler) CreateJob(c *gin.Context) {
	var body struct {
		SupplierIDs []string `json:"supplier_ids"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, apperr.Validation("INVALID_BODY", "invalid JSON body: %v", err))
		return
	}

	job, err := h.sourcing.CreateJob(c.Request.Context(), c.Param("id"), body.SupplierIDs)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"job": job})
}

// GetStatuses handles GET /api/v1/reports/:id/supplier-statuses.
func (h *SourcingHandler) GetStatuses(c *gin.Context) {
	statuses, err := h.sourcing.GetStatuses(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"statuses": statuses})
}

// CloseJob handles POST /api/v1/sourcing-jobs/:id/close.
func (h *SourcingHandler) CloseJob(c *gin.Context) {
	if err := h.sourcing.CloseJob(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "closed"})
}

// RecordQuote handles POST /api/v1/job-suppliers/:id/quote.
func (h *SourcingHandler) RecordQuote(c *gin.Context) {
	var body struct {
		Price              float64 `json:"price"`
		MOQ                int     `json:"moq"`
		LeadTimeDays       int     `json:"lead_time_days"`
		Incoterm           string  `json:"incoterm"`
		ConfirmedInWriting bool    `json:"confirmed_in_writing"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, apperr.Validation("INVALID_BODY", "invalid JSON body: %v", err))
		return
	}

	quote, err := h.sourcing.RecordQuote(c.Request.Context(), c.Param("id"), service.QuoteInput{
		Price:              body.Price,
		MOQ:                body.MOQ,
		LeadTimeDays:       body.LeadTimeDays,
		Incoterm:           body.Incoterm,
		ConfirmedInWriting: body.ConfirmedInWriting,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"quote": quote})
}

// MarkReplied handles POST /api/v1/job-suppliers/:id/replied.
func (h *SourcingHandler) MarkReplied(c *gin.Context) {
	if err := h.sourcing.MarkReplied(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "replied"})
}
