package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/mikestefanello/backlite"

	"librarium/internal/logger"
)

// OrphanAuthorsCleaner deletes authors whose last book is gone.
type OrphanAuthorsCleaner interface {
	DeleteOrphans() (int64, error)
}

// CleanupAuthorsTask removes authors that no longer have any books.
type CleanupAuthorsTask struct{}

// Config returns the queue configuration for author cleanup tasks.
func (t CleanupAuthorsTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        "cleanup_authors",
		MaxAttempts: 1,
		Backoff:     time.Minute,
		Timeout:     time.Minute,
		Retention: &backlite.Retention{
			Duration:   24 * time.Hour,
			OnlyFailed: false,
			Data:       &backlite.RetainData{OnlyFailed: true},
		},
	}
}

// CleanupAuthorsProcessor creates a processor function for CleanupAuthorsTask.
func CleanupAuthorsProcessor(cleaner OrphanAuthorsCleaner) backlite.QueueProcessor[CleanupAuthorsTask] {
	return func(ctx context.Context, task CleanupAuthorsTask) error {
		if cleaner == nil {
			return fmt.Errorf("orphan authors cleaner not configured")
		}

		removed, err := cleaner.DeleteOrphans()
		if err != nil {
			return fmt.Errorf("cleanup orphan authors: %w", err)
		}

		logger.Get().Info().Int64("removed", removed).Msg("orphan author cleanup finished")
		return nil
	}
}

// NewCleanupAuthorsQueue creates a backlite queue for author cleanup tasks.
func NewCleanupAuthorsQueue(cleaner OrphanAuthorsCleaner) backlite.Queue {
	return backlite.NewQueue(CleanupAuthorsProcessor(cleaner))
}
