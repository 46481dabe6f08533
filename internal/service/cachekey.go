package service

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/nori/caliper/internal/domain"
)

// PipelineVersion is folded into the cache key so a pipeline change never
// serves stale cached analysis.
const PipelineVersion = 3

// KeyInputs are the semantic inputs of the content cache key: the three image
// hashes plus the normalized request parameters and requester.
type KeyInputs struct {
	ImageHash   string
	BarcodeHash string
	LabelHash   string
	Params      domain.RequestParams
	RequesterID string
}

// ComputeCacheKey derives the deterministic deduplication key. The encoding is
// a fixed-order k=v line list, so two semantically identical inputs hash
// identically no matter how the caller assembled them. Monetary fields are
// fixed-point formatted so 0.05 and 0.0500 produce the same key.
// Parameters:
//   - in: semantic key inputs.
// Returns:
//   - string: hex sha256 digest.
func ComputeCacheKey(in KeyInputs) string {
	var b strings.Builder
	writeField := func(k, v string) {
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(v)
		b.WriteByte('\n')
	}

	writeField("image_hash", strings.ToLower(strings.TrimSpace(in.ImageHash)))
	writeField("barcode_hash", strings.ToLower(strings.TrimSpace(in.BarcodeHash)))
	writeField("label_hash", strings.ToLower(strings.TrimSpace(in.LabelHash)))
	writeField("quantity", strconv.Itoa(in.Params.Quantity))
	writeField("duty_rate", formatMoney(in.Params.DutyRate))
	writeField("shipping_cost", formatMoney(in.Params.ShippingCost))
	writeField("fee", formatMoney(in.Params.Fee))
	writeField("destination", strings.ToUpper(strings.TrimSpace(in.Params.Destination)))
	writeField("shipping_mode", strings.ToLower(strings.TrimSpace(in.Params.ShippingMode)))
	writeField("requester_id", in.RequesterID)
	writeField("pipeline_version", strconv.Itoa(PipelineVersion))

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// formatMoney renders a monetary value with fixed precision for hashing.
func formatMoney(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}

// HashImage returns the content hash used for image deduplication and storage
// keys. Empty input (optional photo not provided) hashes to the empty string
// so its absence is part of the key.
func HashImage(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
