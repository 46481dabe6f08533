package domain

import "time"

// TaskStatus represents the status of an upgrade task in the outbox.
// Values include TaskStatusPending, TaskStatusRunning, TaskStatusDone, and TaskStatusFailed.
type TaskStatus string

const (
	TaskStatusPending TaskStatus = "pending"
	TaskStatusRunning TaskStatus = "running"
	TaskStatusDone    TaskStatus = "done"
	TaskStatusFailed  TaskStatus = "failed"
)

// UpgradeTask is the durable outbox row that schedules one background upgrade
// for one report. It is written in the same transaction as the partial report
// so a crash between creation and execution cannot drop the work; a consumer
// claims pending rows and acknowledges completion (at-least-once delivery).
type UpgradeTask struct {
	ID       string     `gorm:"type:text;primaryKey" json:"id"`
	ReportID string     `gorm:"type:text;not null;index:idx_upgrade_tasks_report" json:"report_id"`
	Status   TaskStatus `gorm:"type:text;index:idx_upgrade_tasks_status;default:pending" json:"status"`
	Attempts int        `gorm:"default:0" json:"attempts"`

	ClaimedAt *time.Time `json:"claimed_at,omitempty"`
	LastError string     `gorm:"type:text" json:"last_error,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// TableName returns the database table name for UpgradeTask.
func (UpgradeTask) TableName() string {
	return "upgrade_tasks"
}
