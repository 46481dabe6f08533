package domain

// CandidateSource tags where a classification-code candidate came from.
type CandidateSource string

const (
	SourceVisionDirect     CandidateSource = "VISION_DIRECT"
	SourceMarketEstimate   CandidateSource = "MARKET_ESTIMATE"
	SourceCategoryFallback CandidateSource = "CATEGORY_FALLBACK"
	SourceUnknown          CandidateSource = "UNKNOWN"
)

// ClassificationCandidate is one candidate classification code, ordered in a
// result list by descending source trust.
type ClassificationCandidate struct {
	Code       string          `json:"code"`
	Confidence float64         `json:"confidence"`
	Source     CandidateSource `json:"source"`
	Reason     string          `json:"reason,omitempty"`
}
