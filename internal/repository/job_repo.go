package repository

import (
	"context"
	"errors"
	"time"

	"github.com/nori/caliper/internal/apperr"
	"github.com/nori/caliper/internal/domain"
	"gorm.io/gorm"
)

// JobRepository handles sourcing jobs, their per-supplier children, and quotes.
type JobRepository struct {
	db *gorm.DB
}

// NewJobRepository creates a new JobRepository.
func NewJobRepository(db *gorm.DB) *JobRepository {
	return &JobRepository{db: db}
}

// CreateJob inserts a job and its supplier rows in one transaction. Suppliers
// start in pending; packs are attached afterwards, one at a time.
func (r *JobRepository) CreateJob(ctx context.Context, job *domain.SourcingJob, suppliers []domain.JobSupplier) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(job).Error; err != nil {
			return err
		}
		for i := range suppliers {
			if err := tx.Create(&suppliers[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// GetJobByID retrieves a sourcing job by ID.
func (r *JobRepository) GetJobByID(ctx context.Context, id string) (*domain.SourcingJob, error) {
	var job domain.SourcingJob
	if err := r.db.WithContext(ctx).First(&job, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("sourcing job", id)
		}
		return nil, err
	}
	return &job, nil
}

// GetActiveJobByReport returns the most recent non-closed job for a report, or
// nil when none exists.
func (r *JobRepository) GetActiveJobByReport(ctx context.Context, reportID string) (*domain.SourcingJob, error) {
	var job domain.SourcingJob
	err := r.db.WithContext(ctx).
		Where("report_id = ? AND status <> ?", reportID, domain.JobStatusClosed).
		Order("created_at desc").
		First(&job).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &job, nil
}

// AdvanceJobStatus raises the job-level status. The rollup is forward-only:
// a lower-ranked target is a no-op, never a regression.
func (r *JobRepository) AdvanceJobStatus(ctx context.Context, id string, to domain.JobStatus) error {
	job, err := r.GetJobByID(ctx, id)
	if err != nil {
		return err
	}
	if to.Rank() <= job.Status.Rank() {
		return nil
	}
	updates := map[string]interface{}{
		"status":     to,
		"updated_at": time.Now(),
	}
	if to == domain.JobStatusClosed {
		now := time.Now()
		updates["closed_at"] = now
	}
	return r.db.WithContext(ctx).
		Model(&domain.SourcingJob{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// GetSupplier retrieves a job-supplier row by ID.
func (r *JobRepository) GetSupplier(ctx context.Context, id string) (*domain.JobSupplier, error) {
	var js domain.JobSupplier
	if err := r.db.WithContext(ctx).First(&js, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("job supplier", id)
		}
		return nil, err
	}
	return &js, nil
}

// ListSuppliersByJob returns all supplier rows of a job in creation order.
func (r *JobRepository) ListSuppliersByJob(ctx context.Context, jobID string) ([]domain.JobSupplier, error) {
	var suppliers []domain.JobSupplier
	if err := r.db.WithContext(ctx).
		Where("job_id = ?", jobID).
		Order("created_at asc").
		Find(&suppliers).Error; err != nil {
		return nil, err
	}
	return suppliers, nil
}

// AttachPack persists the outreach pack and flips the supplier to
// outreach_sent in one update. The pack is written with the status flip so a
// reader never observes outreach_sent without a pack.
func (r *JobRepository) AttachPack(ctx context.Context, supplierRowID string, pack *domain.OutreachPack) error {
	return r.db.WithContext(ctx).
		Model(&domain.JobSupplier{}).
		Where("id = ? AND status = ?", supplierRowID, domain.SupplierStatusPending).
		Updates(map[string]interface{}{
			"pack":       pack,
			"status":     domain.SupplierStatusOutreachSent,
			"updated_at": time.Now(),
		}).Error
}

// UpdateSupplierStatus sets the per-supplier status.
func (r *JobRepository) UpdateSupplierStatus(ctx context.Context, supplierRowID string, status domain.SupplierStatus) error {
	return r.db.WithContext(ctx).
		Model(&domain.JobSupplier{}).
		Where("id = ?", supplierRowID).
		Updates(map[string]interface{}{
			"status":     status,
			"updated_at": time.Now(),
		}).Error
}

// SupersedeQuote marks any active quote for the supplier as superseded and
// inserts the new quote, in one transaction. A supplier therefore has at most
// one active quote at a time.
func (r *JobRepository) SupersedeQuote(ctx context.Context, quote *domain.SupplierQuote) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		if err := tx.Model(&domain.SupplierQuote{}).
			Where("job_supplier_id = ? AND superseded_at IS NULL", quote.JobSupplierID).
			Updates(map[string]interface{}{
				"superseded_at": now,
				"updated_at":    now,
			}).Error; err != nil {
			return err
		}
		return tx.Create(quote).Error
	})
}

// GetActiveQuote returns the supplier's active quote, or nil when none exists.
func (r *JobRepository) GetActiveQuote(ctx context.Context, jobSupplierID string) (*domain.SupplierQuote, error) {
	var quote domain.SupplierQuote
	err := r.db.WithContext(ctx).
		Where("job_supplier_id = ? AND superseded_at IS NULL", jobSupplierID).
		Order("created_at desc").
		First(&quote).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &quote, nil
}
