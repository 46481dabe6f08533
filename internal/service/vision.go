package service

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/nori/caliper/internal/domain"
	"github.com/nori/caliper/internal/prompts"
)

// VisionService calls an OpenAI-compatible vision model for the extraction
// pipeline. The fast pass and the deep pass can use different models; label
// OCR and barcode reading ride on the deep model.
type VisionService struct {
	client    *resty.Client
	model     string
	deepModel string
	endpoint  string
}

// VisionClientConfig holds configuration for the vision client.
type VisionClientConfig struct {
	Provider  string
	Model     string
	DeepModel string
	APIKey    string
	BaseURL   string
}

// NewVisionService creates a new vision client.
// Parameters:
//   - cfg: vision configuration including provider, models, and API key.
//
// Returns:
//   - *VisionService: initialized client wrapper.
func NewVisionService(cfg *VisionClientConfig) *VisionService {
	client := resty.New()
	client.SetHeader("Authorization", "Bearer "+cfg.APIKey)
	client.SetHeader("Content-Type", "application/json")
	client.SetTimeout(60 * time.Second)

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}

	deepModel := cfg.DeepModel
	if deepModel == "" {
		deepModel = cfg.Model
	}

	return &VisionService{
		client:    client,
		model:     cfg.Model,
		deepModel: deepModel,
		endpoint:  baseURL + "/chat/completions",
	}
}

// OpenAI-compatible Chat Completion API request/response structures
type openAIRequest struct {
	Model     string          `json:"model"`
	Messages  []openAIMessage `json:"messages"`
	MaxTokens int             `json:"max_tokens"`
}

type openAIMessage struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"` // string for system, []interface{} for user with images
}

type openAITextContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type openAIImageContent struct {
	Type     string         `json:"type"`
	ImageURL openAIImageURL `json:"image_url"`
}

type openAIImageURL struct {
	URL    string `json:"url"`
	Detail string `json:"detail,omitempty"`
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// AnalyzeProductFast runs the low-latency product pass used on the synchronous
// request path. The caller bounds it with a context deadline.
// Parameters:
//   - ctx: context carrying the fast-path deadline.
//   - imageData: raw product photo bytes.
//   - format: image format extension (jpg, png, webp).
//
// Returns:
//   - *domain.VisionExtraction: parsed extraction.
//   - error: non-nil if the API call or JSON parsing fails.
func (s *VisionService) AnalyzeProductFast(ctx context.Context, imageData []byte, format string) (*domain.VisionExtraction, error) {
	raw, err := s.complete(ctx, s.model, prompts.ProductSystemPrompt, prompts.ProductUserPrompt, imageData, format, 300)
	if err != nil {
		return nil, err
	}
	var out domain.VisionExtraction
	if err := decodeStrictJSON(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to parse product analysis: %w", err)
	}
	return &out, nil
}

// AnalyzeProductDeep runs the thorough product pass on the background path,
// asking additionally for a classification code and case-pack count.
func (s *VisionService) AnalyzeProductDeep(ctx context.Context, imageData []byte, format string) (*domain.VisionExtraction, error) {
	raw, err := s.complete(ctx, s.deepModel, prompts.ProductSystemPrompt, prompts.DeepProductUserPrompt, imageData, format, 500)
	if err != nil {
		return nil, err
	}
	var out domain.VisionExtraction
	if err := decodeStrictJSON(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to parse deep product analysis: %w", err)
	}
	return &out, nil
}

// ReadLabel runs structured OCR over a packaging label photo. A model-reported
// failure ("status": "failed") is NOT an error; it comes back in the
// extraction with its failure reason.
func (s *VisionService) ReadLabel(ctx context.Context, imageData []byte, format string) (*domain.LabelExtraction, error) {
	raw, err := s.complete(ctx, s.deepModel, prompts.LabelSystemPrompt, prompts.LabelUserPrompt, imageData, format, 600)
	if err != nil {
		return nil, err
	}
	var out domain.LabelExtraction
	if err := decodeStrictJSON(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to parse label extraction: %w", err)
	}
	if out.Status == "" {
		out.Status = domain.ExtractionFailed
		out.FailureReason = "model returned no status"
	}
	return &out, nil
}

// ReadBarcode reads a barcode photo. Like ReadLabel, a model-reported failure
// is a result, not an error.
func (s *VisionService) ReadBarcode(ctx context.Context, imageData []byte, format string) (*domain.BarcodeExtraction, error) {
	raw, err := s.complete(ctx, s.deepModel, prompts.BarcodeSystemPrompt, prompts.BarcodeUserPrompt, imageData, format, 200)
	if err != nil {
		return nil, err
	}
	var out domain.BarcodeExtraction
	if err := decodeStrictJSON(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to parse barcode extraction: %w", err)
	}
	if out.Status == "" {
		out.Status = domain.ExtractionFailed
		out.FailureReason = "model returned no status"
	}
	return &out, nil
}

func (s *VisionService) complete(ctx context.Context, model, systemPrompt, userPrompt string, imageData []byte, format string, maxTokens int) (string, error) {
	mimeType := getMIMEType(format)
	base64Image := base64.StdEncoding.EncodeToString(imageData)
	dataURL := fmt.Sprintf("data:%s;base64,%s", mimeType, base64Image)

	req := openAIRequest{
		Model: model,
		Messages: []openAIMessage{
			{
				Role:    "system",
				Content: systemPrompt,
			},
			{
				Role: "user",
				Content: []interface{}{
					openAITextContent{
						Type: "text",
						Text: userPrompt,
					},
					openAIImageContent{
						Type: "image_url",
						ImageURL: openAIImageURL{
							URL:    dataURL,
							Detail: "auto",
						},
					},
				},
			},
		},
		MaxTokens: maxTokens,
	}

	var resp openAIResponse
	httpResp, err := s.client.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&resp).
		Post(s.endpoint)

	if err != nil {
		return "", fmt.Errorf("failed to call vision API: %w", err)
	}

	if httpResp.StatusCode() < 200 || httpResp.StatusCode() >= 300 {
		errorMsg := fmt.Sprintf("HTTP %d", httpResp.StatusCode())
		if resp.Error != nil {
			errorMsg = fmt.Sprintf("HTTP %d: %s", httpResp.StatusCode(), resp.Error.Message)
		} else {
			errorMsg = fmt.Sprintf("HTTP %d: %s", httpResp.StatusCode(), string(httpResp.Body()))
		}
		return "", fmt.Errorf("vision API returned error: %s", errorMsg)
	}

	if resp.Error != nil {
		return "", fmt.Errorf("vision API error: %s", resp.Error.Message)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response from vision API (status: %d)", httpResp.StatusCode())
	}

	return resp.Choices[0].Message.Content, nil
}

// decodeStrictJSON parses a model response that should be bare JSON, tolerating
// the occasional markdown fence the model wraps around it anyway.
func decodeStrictJSON(raw string, dst interface{}) error {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSuffix(strings.TrimSpace(raw), "```")
		raw = strings.TrimSpace(raw)
	}
	return json.Unmarshal([]byte(raw), dst)
}

func getMIMEType(format string) string {
	switch format {
	case "jpg", "jpeg":
		return "image/jpeg"
	case "png":
		return "image/png"
	case "webp":
		return "image/webp"
	default:
		return "image/jpeg"
	}
}
