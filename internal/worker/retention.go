package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/jwalitptl/medreturn-api/internal/repository"
	"github.com/jwalitptl/medreturn-api/pkg/logger"
)

// RetentionWorker purges archived notifications older than the retention window.
type RetentionWorker struct {
	repo            repository.NotificationRepository
	retentionDays   int
	cleanupInterval time.Duration
	logger          *logger.Logger
	now             func() time.Time
}

func NewRetentionWorker(repo repository.NotificationRepository, retentionDays int, cleanupInterval time.Duration, log *logger.Logger) *RetentionWorker {
	return &RetentionWorker{
		repo:            repo,
		retentionDays:   retentionDays,
		cleanupInterval: cleanupInterval,
		logger:          log,
		now:             time.Now,
	}
}

func (w *RetentionWorker) Start(ctx context.Context) {
	if w.retentionDays <= 0 || w.cleanupInterval <= 0 {
		w.logger.Info("notification retention disabled")
		return
	}

	ticker := time.NewTicker(w.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.cleanup(ctx); err != nil {
				w.logger.Error(err, "failed to purge archived notifications")
			}
		}
	}
}

func (w *RetentionWorker) cleanup(ctx context.Context) error {
	cutoff := w.now().UTC().AddDate(0, 0, -w.retentionDays)

	rows, err := w.repo.DeleteArchivedBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("failed to delete archived notifications: %w", err)
	}

	w.logger.Info("purged archived notifications", "count", rows, "cutoff", cutoff)
	return nil
}
