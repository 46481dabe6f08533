package service

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"io"
	"testing"
	"time"

	"github.com/nori/caliper/internal/apperr"
	"github.com/nori/caliper/internal/domain"
	"github.com/nori/caliper/internal/repository"
)

// fakeReportStore is an in-memory ReportStore.
type fakeReportStore struct {
	byID    map[string]*domain.Report
	byKey   map[string]*domain.Report
	tasks   []*domain.UpgradeTask
	updates int
}

func newFakeReportStore() *fakeReportStore {
	return &fakeReportStore{
		byID:  map[string]*domain.Report{},
		byKey: map[string]*domain.Report{},
	}
}

func (s *fakeReportStore) put(r *domain.Report) {
	s.byID[r.ID] = r
	s.byKey[r.InputKey] = r
}

func (s *fakeReportStore) CreateIfAbsent(_ context.Context, report *domain.Report, task *domain.UpgradeTask) (*domain.Report, bool, error) {
	if existing, ok := s.byKey[report.InputKey]; ok {
		return existing, false, nil
	}
	s.put(report)
	if task != nil {
		s.tasks = append(s.tasks, task)
	}
	return report, true, nil
}

func (s *fakeReportStore) GetByID(_ context.Context, id string) (*domain.Report, error) {
	if r, ok := s.byID[id]; ok {
		return r, nil
	}
	return nil, apperr.NotFound("report", id)
}

func (s *fakeReportStore) GetByInputKey(_ context.Context, key string) (*domain.Report, error) {
	if r, ok := s.byKey[key]; ok {
		return r, nil
	}
	return nil, apperr.NotFound("report", key)
}

func (s *fakeReportStore) Update(_ context.Context, report *domain.Report) error {
	s.updates++
	s.put(report)
	return nil
}

func (s *fakeReportStore) CompareAndSwapStatus(_ context.Context, id string, from, to domain.ReportStatus, updates map[string]interface{}) (bool, error) {
	r, ok := s.byID[id]
	if !ok || r.Status != from {
		return false, nil
	}
	r.Status = to
	if code, ok := updates["error_code"].(string); ok {
		r.ErrorCode = code
	}
	if step, ok := updates["error_step"].(string); ok {
		r.ErrorStep = step
	}
	return true, nil
}

// fakeJobStore is an in-memory JobStore.
type fakeJobStore struct {
	jobs      map[string]*domain.SourcingJob
	suppliers map[string]*domain.JobSupplier
	quotes    map[string][]*domain.SupplierQuote // keyed by job supplier ID
}

func newFakeJobStore() *fakeJobStore {
	return &fakeJobStore{
		jobs:      map[string]*domain.SourcingJob{},
		suppliers: map[string]*domain.JobSupplier{},
		quotes:    map[string][]*domain.SupplierQuote{},
	}
}

func (s *fakeJobStore) CreateJob(_ context.Context, job *domain.SourcingJob, suppliers []domain.JobSupplier) error {
	s.jobs[job.ID] = job
	for i := range suppliers {
		sup := suppliers[i]
		s.suppliers[sup.ID] = &sup
	}
	return nil
}

func (s *fakeJobStore) GetJobByID(_ context.Context, id string) (*domain.SourcingJob, error) {
	if j, ok := s.jobs[id]; ok {
		return j, nil
	}
	return nil, apperr.NotFound("sourcing job", id)
}

func (s *fakeJobStore) GetActiveJobByReport(_ context.Context, reportID string) (*domain.SourcingJob, error) {
	for _, j := range s.jobs {
		if j.ReportID == reportID && j.Active() {
			return j, nil
		}
	}
	return nil, nil
}

func (s *fakeJobStore) AdvanceJobStatus(_ context.Context, id string, to domain.JobStatus) error {
	j, ok := s.jobs[id]
	if !ok {
		return apperr.NotFound("sourcing job", id)
	}
	if to.Rank() <= j.Status.Rank() {
		return nil
	}
	j.Status = to
	if to == domain.JobStatusClosed {
		now := time.Now()
		j.ClosedAt = &now
	}
	return nil
}

func (s *fakeJobStore) GetSupplier(_ context.Context, id string) (*domain.JobSupplier, error) {
	if sup, ok := s.suppliers[id]; ok {
		return sup, nil
	}
	return nil, apperr.NotFound("job supplier", id)
}

func (s *fakeJobStore) ListSuppliersByJob(_ context.Context, jobID string) ([]domain.JobSupplier, error) {
	var out []domain.JobSupplier
	for _, sup := range s.suppliers {
		if sup.JobID == jobID {
			out = append(out, *sup)
		}
	}
	return out, nil
}

func (s *fakeJobStore) AttachPack(_ context.Context, supplierRowID string, pack *domain.OutreachPack) error {
	sup, ok := s.suppliers[supplierRowID]
	if !ok {
		return apperr.NotFound("job supplier", supplierRowID)
	}
	sup.Pack = pack
	sup.Status = domain.SupplierStatusOutreachSent
	return nil
}

func (s *fakeJobStore) UpdateSupplierStatus(_ context.Context, supplierRowID string, status domain.SupplierStatus) error {
	sup, ok := s.suppliers[supplierRowID]
	if !ok {
		return apperr.NotFound("job supplier", supplierRowID)
	}
	sup.Status = status
	return nil
}

func (s *fakeJobStore) SupersedeQuote(_ context.Context, quote *domain.SupplierQuote) error {
	now := time.Now()
	for _, q := range s.quotes[quote.JobSupplierID] {
		if q.SupersededAt == nil {
			q.SupersededAt = &now
		}
	}
	s.quotes[quote.JobSupplierID] = append(s.quotes[quote.JobSupplierID], quote)
	return nil
}

func (s *fakeJobStore) GetActiveQuote(_ context.Context, jobSupplierID string) (*domain.SupplierQuote, error) {
	for _, q := range s.quotes[jobSupplierID] {
		if q.SupersededAt == nil {
			return q, nil
		}
	}
	return nil, nil
}

// fakeVision returns canned extractions.
type fakeVision struct {
	fast     *domain.VisionExtraction
	fastErr  error
	deep     *domain.VisionExtraction
	deepErr  error
	label    *domain.LabelExtraction
	labelErr error
	barcode  *domain.BarcodeExtraction
}

func (v *fakeVision) AnalyzeProductFast(context.Context, []byte, string) (*domain.VisionExtraction, error) {
	return v.fast, v.fastErr
}

func (v *fakeVision) AnalyzeProductDeep(context.Context, []byte, string) (*domain.VisionExtraction, error) {
	return v.deep, v.deepErr
}

func (v *fakeVision) ReadLabel(context.Context, []byte, string) (*domain.LabelExtraction, error) {
	return v.label, v.labelErr
}

func (v *fakeVision) ReadBarcode(context.Context, []byte, string) (*domain.BarcodeExtraction, error) {
	return v.barcode, nil
}

// fakeMarket returns a canned estimate.
type fakeMarket struct {
	estimate *domain.MarketEstimate
	err      error
	calls    int
}

func (m *fakeMarket) Lookup(context.Context, MarketLookupInput) (*domain.MarketEstimate, error) {
	m.calls++
	return m.estimate, m.err
}

// fakeSimilarity counts a fixed number of neighbors.
type fakeSimilarity struct {
	count   int
	indexed []string
}

func (s *fakeSimilarity) IndexReport(_ context.Context, report *domain.Report) error {
	s.indexed = append(s.indexed, report.ID)
	return nil
}

func (s *fakeSimilarity) CountSimilar(context.Context, *domain.Report) (int, error) {
	return s.count, nil
}

// fakePhotoStorage keeps objects in a map.
type fakePhotoStorage struct {
	objects map[string][]byte
}

func newFakePhotoStorage() *fakePhotoStorage {
	return &fakePhotoStorage{objects: map[string][]byte{}}
}

func (s *fakePhotoStorage) Upload(_ context.Context, key string, reader io.Reader, _ int64, _ string) error {
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	s.objects[key] = data
	return nil
}

func (s *fakePhotoStorage) Download(_ context.Context, key string) (io.ReadCloser, error) {
	data, ok := s.objects[key]
	if !ok {
		return nil, fmt.Errorf("object %s not found", key)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *fakePhotoStorage) GetURL(key string) string { return "fake://" + key }

func (s *fakePhotoStorage) Delete(_ context.Context, key string) error {
	delete(s.objects, key)
	return nil
}

func (s *fakePhotoStorage) Exists(_ context.Context, key string) (bool, error) {
	_, ok := s.objects[key]
	return ok, nil
}

func (s *fakePhotoStorage) EnsureBucket(context.Context) error { return nil }

// fakeTaskStore is an in-memory TaskStore queue.
type fakeTaskStore struct {
	tasks []*domain.UpgradeTask
	acked []string
}

func (s *fakeTaskStore) Enqueue(_ context.Context, task *domain.UpgradeTask) error {
	s.tasks = append(s.tasks, task)
	return nil
}

func (s *fakeTaskStore) ClaimNext(context.Context, time.Duration) (*domain.UpgradeTask, error) {
	for _, task := range s.tasks {
		if task.Status == domain.TaskStatusPending {
			task.Status = domain.TaskStatusRunning
			task.Attempts++
			return task, nil
		}
	}
	return nil, nil
}

func (s *fakeTaskStore) Ack(_ context.Context, id string) error {
	s.acked = append(s.acked, id)
	for _, task := range s.tasks {
		if task.ID == id {
			task.Status = domain.TaskStatusDone
		}
	}
	return nil
}

func (s *fakeTaskStore) Fail(_ context.Context, id string, taskErr error, final bool) error {
	for _, task := range s.tasks {
		if task.ID == id {
			task.LastError = taskErr.Error()
			if final {
				task.Status = domain.TaskStatusFailed
			} else {
				task.Status = domain.TaskStatusPending
			}
		}
	}
	return nil
}

// fakeEmbedder returns a constant vector.
type fakeEmbedder struct{}

func (fakeEmbedder) Embed(context.Context, string) ([]float32, error) {
	return []float32{0.1, 0.2, 0.3}, nil
}

// fakeVectorIndex records upserts and returns canned neighbors.
type fakeVectorIndex struct {
	points    map[string][]float32
	neighbors []repository.SimilarReport
}

func newFakeVectorIndex() *fakeVectorIndex {
	return &fakeVectorIndex{points: map[string][]float32{}}
}

func (s *fakeVectorIndex) Upsert(_ context.Context, reportID string, vector []float32, _ *repository.ReportPayload) error {
	s.points[reportID] = vector
	return nil
}

func (s *fakeVectorIndex) SearchSimilar(_ context.Context, _ []float32, _ int, _ float32, excludeReportID string) ([]repository.SimilarReport, error) {
	var out []repository.SimilarReport
	for _, n := range s.neighbors {
		if n.ReportID != excludeReportID {
			out = append(out, n)
		}
	}
	return out, nil
}

// testPhoto encodes a small valid PNG.
func testPhoto(t *testing.T, seed byte) PhotoInput {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	for i := range img.Pix {
		img.Pix[i] = seed
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode test photo: %v", err)
	}
	return PhotoInput{Data: buf.Bytes(), Format: "png"}
}

func validParams() domain.RequestParams {
	return domain.RequestParams{
		Quantity:     100,
		DutyRate:     0.05,
		ShippingCost: 20,
		Fee:          2,
		Destination:  "US",
		ShippingMode: "air",
	}
}
