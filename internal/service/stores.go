package service

import (
	"context"
	"time"

	"github.com/nori/caliper/internal/domain"
	"github.com/nori/caliper/internal/repository"
)

// ReportStore is the persistence boundary for reports. The concrete
// implementation is repository.ReportRepository; tests use in-memory fakes.
type ReportStore interface {
	CreateIfAbsent(ctx context.Context, report *domain.Report, task *domain.UpgradeTask) (*domain.Report, bool, error)
	GetByID(ctx context.Context, id string) (*domain.Report, error)
	GetByInputKey(ctx context.Context, key string) (*domain.Report, error)
	Update(ctx context.Context, report *domain.Report) error
	CompareAndSwapStatus(ctx context.Context, id string, from, to domain.ReportStatus, updates map[string]interface{}) (bool, error)
}

// TaskStore is the upgrade-task outbox boundary.
type TaskStore interface {
	Enqueue(ctx context.Context, task *domain.UpgradeTask) error
	ClaimNext(ctx context.Context, staleAfter time.Duration) (*domain.UpgradeTask, error)
	Ack(ctx context.Context, id string) error
	Fail(ctx context.Context, id string, taskErr error, final bool) error
}

// JobStore is the persistence boundary for sourcing jobs and their children.
type JobStore interface {
	CreateJob(ctx context.Context, job *domain.SourcingJob, suppliers []domain.JobSupplier) error
	GetJobByID(ctx context.Context, id string) (*domain.SourcingJob, error)
	GetActiveJobByReport(ctx context.Context, reportID string) (*domain.SourcingJob, error)
	AdvanceJobStatus(ctx context.Context, id string, to domain.JobStatus) error
	GetSupplier(ctx context.Context, id string) (*domain.JobSupplier, error)
	ListSuppliersByJob(ctx context.Context, jobID string) ([]domain.JobSupplier, error)
	AttachPack(ctx context.Context, supplierRowID string, pack *domain.OutreachPack) error
	UpdateSupplierStatus(ctx context.Context, supplierRowID string, status domain.SupplierStatus) error
	SupersedeQuote(ctx context.Context, quote *domain.SupplierQuote) error
	GetActiveQuote(ctx context.Context, jobSupplierID string) (*domain.SupplierQuote, error)
}

// VectorIndex is the similar-report vector store boundary.
type VectorIndex interface {
	Upsert(ctx context.Context, reportID string, vector []float32, payload *repository.ReportPayload) error
	SearchSimilar(ctx context.Context, vector []float32, topK int, threshold float32, excludeReportID string) ([]repository.SimilarReport, error)
}

// Embedder produces text embeddings for the similar-report index.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// VisionClient is the extraction-model boundary. The concrete implementation
// is VisionService.
type VisionClient interface {
	AnalyzeProductFast(ctx context.Context, imageData []byte, format string) (*domain.VisionExtraction, error)
	AnalyzeProductDeep(ctx context.Context, imageData []byte, format string) (*domain.VisionExtraction, error)
	ReadLabel(ctx context.Context, imageData []byte, format string) (*domain.LabelExtraction, error)
	ReadBarcode(ctx context.Context, imageData []byte, format string) (*domain.BarcodeExtraction, error)
}

// MarketClient is the market-data boundary. Lookup returns (nil, nil) when the
// backend is not configured.
type MarketClient interface {
	Lookup(ctx context.Context, in MarketLookupInput) (*domain.MarketEstimate, error)
}

// SimilarityClient maintains the similar-report index and answers the
// similar-records signal.
type SimilarityClient interface {
	IndexReport(ctx context.Context, report *domain.Report) error
	CountSimilar(ctx context.Context, report *domain.Report) (int, error)
}
