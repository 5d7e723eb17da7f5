package server

import (
	"context"
	"fmt"

	"uqflow/internal/database"
	"uqflow/internal/messaging"
	"uqflow/pkg/api"

	"gorm.io/gorm"
)

// RequeuePendingJobs replays jobs that were submitted but not executed before
// the last shutdown and returns how many were published. Only needed for the
// in-memory queue, RabbitMQ retains unacked messages itself. Executors must
// already be consuming: the in-memory queue has a bounded buffer, so
// publishing a large backlog with nothing draining it would block.
func RequeuePendingJobs(ctx context.Context, db *gorm.DB, publisher messaging.Publisher) (int, error) {
	var jobs []database.Job
	if err := db.Where("status = ?", api.JobPending).Find(&jobs).Error; err != nil {
		return 0, fmt.Errorf("failed to fetch pending jobs: %w", err)
	}

	for _, job := range jobs {
		if err := publisher.PublishExecuteJobTask(ctx, messaging.ExecuteJobPayload{JobId: job.Id}); err != nil {
			return 0, fmt.Errorf("failed to requeue job %d: %w", job.Id, err)
		}
	}
	return len(jobs), nil
}
