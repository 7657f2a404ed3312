package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/mikestefanello/backlite"

	"librarium/internal/logger"
)

// AuditCleaner deletes expired audit events and records the outcome.
type AuditCleaner interface {
	DeleteOldEvents(retention time.Duration) (int64, error)
	LogCleanup(action string, removed int64, err error)
}

// CleanupAuditTask removes audit events older than the retention period.
type CleanupAuditTask struct {
	RetentionDays int `json:"retention_days"`
}

// Config returns the queue configuration for audit cleanup tasks.
func (t CleanupAuditTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        "cleanup_audit",
		MaxAttempts: 3,
		Backoff:     5 * time.Minute,
		Timeout:     2 * time.Minute,
		Retention: &backlite.Retention{
			Duration:   24 * time.Hour,
			OnlyFailed: false,
			Data:       &backlite.RetainData{OnlyFailed: true},
		},
	}
}

// CleanupAuditProcessor creates a processor function for CleanupAuditTask.
func CleanupAuditProcessor(cleaner AuditCleaner) backlite.QueueProcessor[CleanupAuditTask] {
	return func(ctx context.Context, task CleanupAuditTask) error {
		if cleaner == nil {
			return fmt.Errorf("audit cleaner not configured")
		}

		days := task.RetentionDays
		if days <= 0 {
			days = 30
		}
		retention := time.Duration(days) * 24 * time.Hour

		removed, err := cleaner.DeleteOldEvents(retention)
		cleaner.LogCleanup("cleanup_audit", removed, err)
		if err != nil {
			return fmt.Errorf("cleanup audit events: %w", err)
		}

		logger.Get().Info().
			Int64("removed", removed).
			Int("retention_days", days).
			Msg("audit cleanup finished")
		return nil
	}
}

// NewCleanupAuditQueue creates a backlite queue for audit cleanup tasks.
func NewCleanupAuditQueue(cleaner AuditCleaner) backlite.Queue {
	return backlite.NewQueue(CleanupAuditProcessor(cleaner))
}
