package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/nori/caliper/internal/apperr"
	"github.com/nori/caliper/internal/domain"
	"gorm.io/gorm"
)

// ReportRepository handles report persistence. All mutation is read-modify-write
// scoped to a single row; the input_key uniqueness constraint is the only
// cross-request concurrency control.
type ReportRepository struct {
	db *gorm.DB
}

// NewReportRepository creates a new ReportRepository.
// Parameters:
//   - db: GORM database handle used for queries.
// Returns:
//   - *ReportRepository: repository instance bound to db.
func NewReportRepository(db *gorm.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

// CreateIfAbsent inserts a new report and its upgrade task in one transaction,
// keyed by the content cache key. If another caller already created a row under
// the same key, the existing row is read back and returned with created=false;
// the conflict is never surfaced.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - report: partial report to insert.
//   - task: upgrade task enqueued alongside the report.
// Returns:
//   - *domain.Report: the winning row (new or existing).
//   - bool: true if this call created the row.
//   - error: non-nil on storage failure.
func (r *ReportRepository) CreateIfAbsent(ctx context.Context, report *domain.Report, task *domain.UpgradeTask) (*domain.Report, bool, error) {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(report).Error; err != nil {
			return err
		}
		if task == nil {
			return nil
		}
		return tx.Create(task).Error
	})
	if err == nil {
		return report, true, nil
	}

	if !isUniqueViolation(err) {
		return nil, false, err
	}

	// Lost the creation race: exactly one re-read of the winner's row.
	existing, readErr := r.GetByInputKey(ctx, report.InputKey)
	if readErr != nil {
		return nil, false, apperr.Conflict(report.InputKey)
	}
	return existing, false, nil
}

// isUniqueViolation reports whether err is a uniqueness-constraint failure.
// Gorm translates most dialect errors; the string checks cover drivers that
// slip through translation.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value")
}

// GetByID retrieves a report by its ID.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: report ID.
// Returns:
//   - *domain.Report: report record if found.
//   - error: apperr.NotFoundError if missing, otherwise storage error.
func (r *ReportRepository) GetByID(ctx context.Context, id string) (*domain.Report, error) {
	var report domain.Report
	if err := r.db.WithContext(ctx).First(&report, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("report", id)
		}
		return nil, err
	}
	return &report, nil
}

// GetByInputKey retrieves a report by its content cache key.
func (r *ReportRepository) GetByInputKey(ctx context.Context, key string) (*domain.Report, error) {
	var report domain.Report
	if err := r.db.WithContext(ctx).First(&report, "input_key = ?", key).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("report", key)
		}
		return nil, err
	}
	return &report, nil
}

// Update saves the full report record.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - report: report record with updated fields.
// Returns:
//   - error: non-nil if the update fails.
func (r *ReportRepository) Update(ctx context.Context, report *domain.Report) error {
	return r.db.WithContext(ctx).Save(report).Error
}

// CompareAndSwapStatus transitions a report's status only if it still has the
// expected current status, applying updates atomically with the flip. Returns
// false when the report moved on in the meantime (late upgrade results must not
// clobber subsequent corrections).
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: report ID.
//   - from: expected current status.
//   - to: new status.
//   - updates: additional column updates applied with the transition.
// Returns:
//   - bool: true if the swap applied.
//   - error: non-nil on storage failure.
func (r *ReportRepository) CompareAndSwapStatus(ctx context.Context, id string, from, to domain.ReportStatus, updates map[string]interface{}) (bool, error) {
	if updates == nil {
		updates = map[string]interface{}{}
	}
	updates["status"] = to
	updates["updated_at"] = time.Now()

	res := r.db.WithContext(ctx).
		Model(&domain.Report{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// CountByStatus counts reports by status.
func (r *ReportRepository) CountByStatus(ctx context.Context, status domain.ReportStatus) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&domain.Report{}).Where("status = ?", status).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
