package service

import (
	"bytes"
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/nori/caliper/internal/apperr"
	"github.com/nori/caliper/internal/domain"
	"github.com/nori/caliper/internal/logger"
	"github.com/nori/caliper/internal/storage"
)

// fallbackConfidence floors the confidence written when the fast pass only
// partially succeeded or failed outright, so downstream consumers never see a
// confident-looking zero-value fact set.
const fallbackConfidence = 0.2

// Report-level error codes written when the pipeline fails.
const (
	ErrCodeUpgradeFailed = "UPGRADE_FAILED"
	ErrCodePhotoUpload   = "PHOTO_UPLOAD_FAILED"
)

// PhotoInput is one uploaded photo.
type PhotoInput struct {
	Data   []byte
	Format string // jpg | png | webp
}

// EstimateInput is the request to create (or dedupe onto) an estimate report.
// Product is required; Barcode and Label are optional.
type EstimateInput struct {
	OwnerID string
	Product PhotoInput
	Barcode *PhotoInput
	Label   *PhotoInput
	Params  domain.RequestParams
}

// EstimateService is the synchronous entry point of the pipeline: it dedupes
// the request by content cache key, stores the photos, runs the budgeted fast
// extraction pass, and enqueues the background upgrade.
type EstimateService struct {
	reports    ReportStore
	photos     storage.PhotoStorage
	vision     VisionClient
	fastBudget time.Duration
}

// NewEstimateService creates a new EstimateService.
func NewEstimateService(reports ReportStore, photos storage.PhotoStorage, vision VisionClient, fastBudget time.Duration) *EstimateService {
	if fastBudget <= 0 {
		fastBudget = 900 * time.Millisecond
	}
	return &EstimateService{
		reports:    reports,
		photos:     photos,
		vision:     vision,
		fastBudget: fastBudget,
	}
}

// Estimate creates a new estimate report or returns the existing one for a
// logically identical request. The response never waits on the background
// upgrade.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - in: photos and request parameters.
//
// Returns:
//   - *domain.Report: the winning report row (new or cached).
//   - bool: true if this call created the report.
//   - error: apperr.ValidationError on bad input, otherwise storage failure.
func (s *EstimateService) Estimate(ctx context.Context, in EstimateInput) (*domain.Report, bool, error) {
	if err := validateEstimateInput(in); err != nil {
		return nil, false, err
	}
	if err := validatePhotos(in); err != nil {
		return nil, false, err
	}

	keyInputs := KeyInputs{
		ImageHash:   HashImage(in.Product.Data),
		Params:      in.Params,
		RequesterID: in.OwnerID,
	}
	if in.Barcode != nil {
		keyInputs.BarcodeHash = HashImage(in.Barcode.Data)
	}
	if in.Label != nil {
		keyInputs.LabelHash = HashImage(in.Label.Data)
	}
	inputKey := ComputeCacheKey(keyInputs)
	ctx = logger.WithField(ctx, "input_key", inputKey[:12])

	// Cheap pre-check before any upload. The uniqueness constraint in
	// CreateIfAbsent still decides races.
	if existing, err := s.reports.GetByInputKey(ctx, inputKey); err == nil {
		logger.With(logger.Fields{logger.FieldReportID: existing.ID}).
			Info(ctx, "Cache hit, returning existing report")
		return existing, false, nil
	} else if !apperr.IsNotFound(err) {
		return nil, false, err
	}

	images, err := s.uploadPhotos(ctx, in, keyInputs)
	if err != nil {
		return nil, false, err
	}

	reportID := uuid.New().String()
	ctx = logger.SetReportID(ctx, reportID)

	facts, pipelineResult := s.runFastPass(ctx, in.Product)

	report := &domain.Report{
		ID:             reportID,
		InputKey:       inputKey,
		OwnerID:        in.OwnerID,
		Status:         domain.ReportStatusPartial,
		SchemaVersion:  domain.ReportSchemaVersion,
		Params:         in.Params,
		Images:         images,
		FastFacts:      facts,
		PipelineResult: pipelineResult,
	}
	task := &domain.UpgradeTask{
		ID:       uuid.New().String(),
		ReportID: reportID,
		Status:   domain.TaskStatusPending,
	}

	winner, created, err := s.reports.CreateIfAbsent(ctx, report, task)
	if err != nil {
		return nil, false, err
	}
	if created {
		logger.With(logger.Fields{logger.FieldStatus: string(winner.Status)}).
			Info(ctx, "Created estimate report")
	}
	return winner, created, nil
}

// runFastPass runs the budgeted fast vision pass. A partial result comes back
// with floored confidence. A pass that fails outright, including one that ran
// out of budget, degrades the same way: empty facts at the floor, with the
// failure recorded in the audit trail. The deep pass either fills the gap or
// settles the report through the upgrade retry policy.
func (s *EstimateService) runFastPass(ctx context.Context, product PhotoInput) (domain.FastFacts, domain.PipelineResult) {
	var result domain.PipelineResult

	fastCtx, cancel := context.WithTimeout(ctx, s.fastBudget)
	defer cancel()

	started := time.Now()
	extraction, err := s.vision.AnalyzeProductFast(fastCtx, product.Data, product.Format)
	elapsed := time.Since(started).Milliseconds()

	if err != nil {
		result.RecordStep(domain.StepFastVision, domain.ExtractionFailed, err.Error())
		logger.With(logger.Fields{logger.FieldDurationMs: elapsed}).
			Warn(ctx, "Fast vision pass degraded: %v", apperr.Extraction(domain.StepFastVision, "fast vision pass failed", err))
		return domain.FastFacts{Confidence: fallbackConfidence}, result
	}

	result.FastVision = extraction
	result.RecordStep(domain.StepFastVision, domain.ExtractionOK, "")

	facts := domain.FastFacts{
		ProductName: extraction.ProductName,
		Category:    extraction.Category,
		WeightGrams: extraction.WeightGrams,
		Keywords:    extraction.Keywords,
		Confidence:  extraction.Confidence,
	}
	// A pass that returned but could not identify the product still yields
	// best-effort facts, floored so the gap is visible.
	if facts.ProductName == "" || facts.Confidence <= 0 {
		facts.Confidence = fallbackConfidence
	}

	logger.With(logger.Fields{logger.FieldDurationMs: elapsed}).
		Info(ctx, "Fast vision pass completed")
	return facts, result
}

func (s *EstimateService) uploadPhotos(ctx context.Context, in EstimateInput, keys KeyInputs) (domain.ImageRefs, error) {
	var refs domain.ImageRefs

	upload := func(kind, hash string, photo PhotoInput) (string, error) {
		key := storage.PhotoKey(kind, hash, photo.Format)
		err := s.photos.Upload(ctx, key, bytes.NewReader(photo.Data), int64(len(photo.Data)), storage.ContentType(photo.Format))
		if err != nil {
			return "", apperr.Pipeline(ErrCodePhotoUpload, kind, err)
		}
		return key, nil
	}

	var err error
	if refs.ProductKey, err = upload("product", keys.ImageHash, in.Product); err != nil {
		return refs, err
	}
	if in.Barcode != nil {
		if refs.BarcodeKey, err = upload("barcode", keys.BarcodeHash, *in.Barcode); err != nil {
			return refs, err
		}
	}
	if in.Label != nil {
		if refs.LabelKey, err = upload("label", keys.LabelHash, *in.Label); err != nil {
			return refs, err
		}
	}
	return refs, nil
}

// validatePhotos verifies each provided photo is a decodable image of usable
// size before anything is hashed or uploaded.
func validatePhotos(in EstimateInput) error {
	check := func(field string, photo PhotoInput) error {
		w, h, err := photoDimensions(photo.Data)
		if err != nil {
			return apperr.Validation("INVALID_IMAGE", "%s is not a decodable image: %v", field, err)
		}
		if w < minPhotoDimension || h < minPhotoDimension {
			return apperr.Validation("IMAGE_TOO_SMALL", "%s is %dx%d, minimum is %dx%d", field, w, h, minPhotoDimension, minPhotoDimension)
		}
		return nil
	}

	if err := check("product photo", in.Product); err != nil {
		return err
	}
	if in.Barcode != nil {
		if err := check("barcode photo", *in.Barcode); err != nil {
			return err
		}
	}
	if in.Label != nil {
		if err := check("label photo", *in.Label); err != nil {
			return err
		}
	}
	return nil
}

func validateEstimateInput(in EstimateInput) error {
	if in.OwnerID == "" {
		return apperr.Validation("MISSING_OWNER", "owner id is required")
	}
	if len(in.Product.Data) == 0 {
		return apperr.Validation("MISSING_PRODUCT_PHOTO", "product photo is required")
	}
	if in.Barcode != nil && len(in.Barcode.Data) == 0 {
		return apperr.Validation("EMPTY_BARCODE_PHOTO", "barcode photo must not be empty when provided")
	}
	if in.Label != nil && len(in.Label.Data) == 0 {
		return apperr.Validation("EMPTY_LABEL_PHOTO", "label photo must not be empty when provided")
	}
	if in.Params.Quantity <= 0 {
		return apperr.Validation("INVALID_QUANTITY", "quantity must be positive, got %d", in.Params.Quantity)
	}
	if in.Params.DutyRate < 0 || in.Params.DutyRate > 1 {
		return apperr.Validation("INVALID_DUTY_RATE", "duty rate must be between 0 and 1, got %v", in.Params.DutyRate)
	}
	if in.Params.ShippingCost < 0 {
		return apperr.Validation("INVALID_SHIPPING_COST", "shipping cost must not be negative")
	}
	if in.Params.Fee < 0 {
		return apperr.Validation("INVALID_FEE", "fee must not be negative")
	}
	if in.Params.Destination == "" {
		return apperr.Validation("MISSING_DESTINATION", "destination is required")
	}
	switch in.Params.ShippingMode {
	case "air", "sea", "express":
	default:
		return apperr.Validation("INVALID_SHIPPING_MODE", "shipping mode must be air, sea, or express, got %q", in.Params.ShippingMode)
	}
	return nil
}
