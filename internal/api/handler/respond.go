package handler

import (
	"errors"
	"math"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nori/caliper/internal/apperr"
	"github.com/nori/caliper/internal/logger"
)

// conflictCodes are validation codes that describe a state conflict rather
// than malformed input.
var conflictCodes = map[string]bool{
	"VERIFICATION_ACTIVE": true,
	"JOB_ALREADY_ACTIVE":  true,
	"JOB_CLOSED":          true,
	"REPORT_NOT_COMPLETE": true,
}

// respondError maps a service error to the HTTP error body
// {error, code, retry_after_seconds?}.
func respondError(c *gin.Context, err error) {
	var ve *apperr.ValidationError
	if errors.As(err, &ve) {
		status := http.StatusBadRequest
		if conflictCodes[ve.Code] {
			status = http.StatusConflict
		}
		c.JSON(status, gin.H{
			"error": ve.Message,
			"code":  ve.Code,
		})
		return
	}

	var nf *apperr.NotFoundError
	if errors.As(err, &nf) {
		c.JSON(http.StatusNotFound, gin.H{
			"error": nf.Error(),
			"code":  "NOT_FOUND",
		})
		return
	}

	var cd *apperr.CooldownError
	if errors.As(err, &cd) {
		retryAfter := int(math.Ceil(cd.RetryAfter.Seconds()))
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error":               cd.Error(),
			"code":                "COOLDOWN_ACTIVE",
			"retry_after_seconds": retryAfter,
		})
		return
	}

	logger.CtxError(c.Request.Context(), "Request failed: %v", err)
	c.JSON(http.StatusInternalServerError, gin.H{
		"error": "internal error",
		"code":  "INTERNAL",
	})
}
