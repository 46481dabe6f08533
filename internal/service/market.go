package service

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/nori/caliper/internal/domain"
)

// MarketService queries the market-data backend for unit-price benchmarks and
// classification candidates. When no base URL is configured the service is
// disabled and Lookup reports that instead of failing the pipeline.
type MarketService struct {
	client  *resty.Client
	baseURL string
	enabled bool
}

// MarketClientConfig holds configuration for the market-data client.
type MarketClientConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// NewMarketService creates a new market-data client.
func NewMarketService(cfg *MarketClientConfig) *MarketService {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}

	client := resty.New()
	client.SetTimeout(timeout)
	if cfg.APIKey != "" {
		client.SetHeader("Authorization", "Bearer "+cfg.APIKey)
	}
	client.SetHeader("Content-Type", "application/json")

	return &MarketService{
		client:  client,
		baseURL: cfg.BaseURL,
		enabled: cfg.BaseURL != "",
	}
}

// Enabled reports whether a market-data backend is configured.
func (s *MarketService) Enabled() bool {
	return s.enabled
}

type marketLookupRequest struct {
	ProductName string   `json:"product_name"`
	Category    string   `json:"category"`
	Keywords    []string `json:"keywords,omitempty"`
	Barcode     string   `json:"barcode,omitempty"`
	Destination string   `json:"destination,omitempty"`
}

type marketLookupResponse struct {
	Estimate *domain.MarketEstimate `json:"estimate"`
	Error    string                 `json:"error,omitempty"`
}

// Lookup fetches the market estimate for an identified product.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - in: identification facts from the vision passes.
//
// Returns:
//   - *domain.MarketEstimate: benchmark prices and classification candidates,
//     nil when the service is disabled.
//   - error: non-nil if the backend call fails.
func (s *MarketService) Lookup(ctx context.Context, in MarketLookupInput) (*domain.MarketEstimate, error) {
	if !s.enabled {
		return nil, nil
	}

	req := marketLookupRequest{
		ProductName: in.ProductName,
		Category:    in.Category,
		Keywords:    in.Keywords,
		Barcode:     in.Barcode,
		Destination: in.Destination,
	}

	var resp marketLookupResponse
	httpResp, err := s.client.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&resp).
		Post(s.baseURL + "/v1/benchmark")

	if err != nil {
		return nil, fmt.Errorf("failed to call market API: %w", err)
	}

	if httpResp.StatusCode() < 200 || httpResp.StatusCode() >= 300 {
		if resp.Error != "" {
			return nil, fmt.Errorf("market API returned error: HTTP %d: %s", httpResp.StatusCode(), resp.Error)
		}
		return nil, fmt.Errorf("market API returned error: HTTP %d: %s", httpResp.StatusCode(), string(httpResp.Body()))
	}

	if resp.Estimate == nil {
		return nil, fmt.Errorf("market API returned no estimate")
	}
	return resp.Estimate, nil
}

// MarketLookupInput carries the identification facts the market backend keys on.
type MarketLookupInput struct {
	ProductName string
	Category    string
	Keywords    []string
	Barcode     string
	Destination string
}
