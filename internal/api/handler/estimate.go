package handler

import (
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/nori/caliper/internal/apperr"
	"github.com/nori/caliper/internal/domain"
	"github.com/nori/caliper/internal/service"
)

// maxPhotoBytes bounds one uploaded photo.
const maxPhotoBytes = 10 << 20

// EstimateHandler handles the estimate creation endpoint.
type EstimateHandler struct {
	estimates *service.EstimateService
}

// NewEstimateHandler creates a new estimate handler.
func NewEstimateHandler(estimates *service.EstimateService) *EstimateHandler {
	return &EstimateHandler{estimates: estimates}
}

// Estimate handles POST /api/v1/estimate. The request is multipart form data:
// product_photo (required), barcode_photo and label_photo (optional), plus the
// estimation parameters as form fields.
// Parameters:
//   - c: Gin request context.
//
// Returns: none (writes JSON response).
func (h *EstimateHandler) Estimate(c *gin.Context) {
	ownerID := c.GetHeader("X-Owner-ID")
	if ownerID == "" {
		ownerID = c.PostForm("owner_id")
	}

	product, err := readPhoto(c, "product_photo")
	if err != nil {
		respondError(c, err)
		return
	}
	if product == nil {
		respondError(c, apperr.Validation("MISSING_PRODUCT_PHOTO", "product_photo is required"))
		return
	}

	barcode, err := readPhoto(c, "barcode_photo")
	if err != nil {
		respondError(c, err)
		return
	}
	label, err := readPhoto(c, "label_photo")
	if err != nil {
		respondError(c, err)
		return
	}

	params, err := parseParams(c)
	if err != nil {
		respondError(c, err)
		return
	}

	report, created, err := h.estimates.Estimate(c.Request.Context(), service.EstimateInput{
		OwnerID: ownerID,
		Product: *product,
		Barcode: barcode,
		Label:   label,
		Params:  params,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, gin.H{
		"report": report,
		"cached": !created,
	})
}

func parseParams(c *gin.Context) (domain.RequestParams, error) {
	var params domain.RequestParams

	quantity, err := strconv.Atoi(c.DefaultPostForm("quantity", "0"))
	if err != nil {
		return params, apperr.Validation("INVALID_QUANTITY", "quantity must be an integer")
	}
	params.Quantity = quantity

	for _, field := range []struct {
		name string
		dst  *float64
	}{
		{"duty_rate", &params.DutyRate},
		{"shipping_cost", &params.ShippingCost},
		{"fee", &params.Fee},
	} {
		raw := c.DefaultPostForm(field.name, "0")
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return params, apperr.Validation("INVALID_"+strings.ToUpper(field.name), "%s must be a number", field.name)
		}
		*field.dst = v
	}

	params.Destination = strings.ToUpper(strings.TrimSpace(c.PostForm("destination")))
	params.ShippingMode = strings.ToLower(strings.TrimSpace(c.PostForm("shipping_mode")))
	return params, nil
}

// readPhoto reads one optional multipart photo. Returns (nil, nil) when the
// field is absent.
func readPhoto(c *gin.Context, field string) (*service.PhotoInput, error) {
	fileHeader, err := c.FormFile(field)
	if err != nil {
		if err == http.ErrMissingFile {
			return nil, nil
		}
		return nil, apperr.Validation("INVALID_UPLOAD", "failed to read %s: %v", field, err)
	}
	if fileHeader.Size > maxPhotoBytes {
		return nil, apperr.Validation("PHOTO_TOO_LARGE", "%s exceeds the %d byte limit", field, maxPhotoBytes)
	}

	data, err := readFileHeader(fileHeader)
	if err != nil {
		return nil, apperr.Validation("INVALID_UPLOAD", "failed to read %s: %v", field, err)
	}

	format := strings.ToLower(strings.TrimPrefix(filepath.Ext(fileHeader.Filename), "."))
	switch format {
	case "jpg", "jpeg", "png", "webp":
	default:
		return nil, apperr.Validation("UNSUPPORTED_FORMAT", "%s must be jpg, png, or webp", field)
	}

	return &service.PhotoInput{Data: data, Format: format}, nil
}

func readFileHeader(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}
