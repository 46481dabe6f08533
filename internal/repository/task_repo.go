package repository

import (
	"context"
	"errors"
	"time"

	"github.com/nori/caliper/internal/domain"
	"gorm.io/gorm"
)

// TaskRepository handles the upgrade-task outbox. Tasks are enqueued in the
// same transaction as report creation (see ReportRepository.CreateIfAbsent) and
// consumed with claim/ack semantics for at-least-once delivery.
type TaskRepository struct {
	db *gorm.DB
}

// NewTaskRepository creates a new TaskRepository.
func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

// Enqueue inserts a pending task outside of report creation (used by manual
// re-runs).
func (r *TaskRepository) Enqueue(ctx context.Context, task *domain.UpgradeTask) error {
	return r.db.WithContext(ctx).Create(task).Error
}

// ClaimNext claims the oldest runnable task: pending, or running with a claim
// older than staleAfter (a consumer died mid-task). The claim is a
// compare-and-swap so concurrent consumers never run the same task twice at
// once.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - staleAfter: age after which a running claim is considered abandoned.
// Returns:
//   - *domain.UpgradeTask: the claimed task, or nil when the queue is empty.
//   - error: non-nil on storage failure.
func (r *TaskRepository) ClaimNext(ctx context.Context, staleAfter time.Duration) (*domain.UpgradeTask, error) {
	staleBefore := time.Now().Add(-staleAfter)

	var task domain.UpgradeTask
	err := r.db.WithContext(ctx).
		Where("status = ?", domain.TaskStatusPending).
		Or("status = ? AND claimed_at < ?", domain.TaskStatusRunning, staleBefore).
		Order("created_at asc").
		First(&task).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	now := time.Now()
	res := r.db.WithContext(ctx).
		Model(&domain.UpgradeTask{}).
		Where("id = ? AND status = ? AND attempts = ?", task.ID, task.Status, task.Attempts).
		Updates(map[string]interface{}{
			"status":     domain.TaskStatusRunning,
			"claimed_at": now,
			"attempts":   task.Attempts + 1,
			"updated_at": now,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		// Another consumer won this claim; the caller polls again.
		return nil, nil
	}

	task.Status = domain.TaskStatusRunning
	task.ClaimedAt = &now
	task.Attempts++
	return &task, nil
}

// Ack marks a task done.
func (r *TaskRepository) Ack(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).
		Model(&domain.UpgradeTask{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     domain.TaskStatusDone,
			"updated_at": time.Now(),
		}).Error
}

// Fail records a task failure. When final is true the task is parked as failed;
// otherwise it returns to pending for another attempt.
func (r *TaskRepository) Fail(ctx context.Context, id string, taskErr error, final bool) error {
	status := domain.TaskStatusPending
	if final {
		status = domain.TaskStatusFailed
	}
	return r.db.WithContext(ctx).
		Model(&domain.UpgradeTask{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     status,
			"last_error": taskErr.Error(),
			"updated_at": time.Now(),
		}).Error
}

// CountByStatus counts tasks by status.
func (r *TaskRepository) CountByStatus(ctx context.Context, status domain.TaskStatus) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&domain.UpgradeTask{}).Where("status = ?", status).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
