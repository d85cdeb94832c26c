package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/clinic-service/internal/repository"
	"github.com/spec-kit/clinic-service/internal/service"
)

// StartNotificationWorker registers notification handlers.
func StartNotificationWorker(notificationService *service.NotificationService) {
	if notificationService == nil {
		return
	}
	notificationService.RegisterHandlers()
}

// StartResetPruner deletes expired password resets every interval until ctx
// is done. The returned channel closes once the loop has exited.
func StartResetPruner(ctx context.Context, resets repository.PasswordResetRepository, interval time.Duration, logger *zap.Logger) <-chan struct{} {
	done := make(chan struct{})
	if resets == nil || interval <= 0 {
		close(done)
		return done
	}

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				pruneResets(ctx, resets, now, logger)
			}
		}
	}()
	return done
}

func pruneResets(ctx context.Context, resets repository.PasswordResetRepository, now time.Time, logger *zap.Logger) {
	removed, err := resets.DeleteExpired(ctx, now.UTC())
	if err != nil {
		logger.Warn("pruning password resets failed", zap.Error(err))
		return
	}
	if removed > 0 {
		logger.Info("pruned password resets", zap.Int64("removed", removed))
	}
}
