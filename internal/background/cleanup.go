package background

import (
	"context"
	"log/slog"
	"time"
)

// ExpirySweeper is implemented by services that deactivate expired rows
type ExpirySweeper interface {
	SweepExpired(ctx context.Context) (int64, error)
}

// RetentionPurger is implemented by services that delete rows past a
// retention horizon
type RetentionPurger interface {
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// CleanupManager periodically expires blocks and sessions and enforces
// retention on the attempt and event logs. Expiry is otherwise lazy;
// the sweep just keeps tables from accumulating dead rows.
type CleanupManager struct {
	blocks   ExpirySweeper
	sessions ExpirySweeper
	attempts RetentionPurger
	events   RetentionPurger

	attemptRetention time.Duration
	eventRetention   time.Duration
	interval         time.Duration
	logger           *slog.Logger
	stopCh           chan struct{}
}

// NewCleanupManager creates a new cleanup manager
func NewCleanupManager(
	blocks ExpirySweeper,
	sessions ExpirySweeper,
	attempts RetentionPurger,
	events RetentionPurger,
	attemptRetention time.Duration,
	eventRetention time.Duration,
	interval time.Duration,
	logger *slog.Logger,
) *CleanupManager {
	return &CleanupManager{
		blocks:           blocks,
		sessions:         sessions,
		attempts:         attempts,
		events:           events,
		attemptRetention: attemptRetention,
		eventRetention:   eventRetention,
		interval:         interval,
		logger:           logger,
		stopCh:           make(chan struct{}),
	}
}

// Start begins the periodic sweep. Blocks until stopped or the context
// is cancelled.
func (cm *CleanupManager) Start(ctx context.Context) {
	ticker := time.NewTicker(cm.interval)
	defer ticker.Stop()

	// Run immediately on startup
	cm.runSweep(ctx)

	for {
		select {
		case <-ticker.C:
			cm.runSweep(ctx)
		case <-cm.stopCh:
			cm.logger.Info("cleanup manager stopped")
			return
		case <-ctx.Done():
			cm.logger.Info("cleanup manager context cancelled")
			return
		}
	}
}

// runSweep runs one pass over every maintained table. Each step logs
// its own failure and the pass continues; one broken sweep must not
// starve the others.
func (cm *CleanupManager) runSweep(ctx context.Context) {
	sweepCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if n, err := cm.blocks.SweepExpired(sweepCtx); err != nil {
		cm.logger.Error("failed to sweep expired blocks", slog.Any("error", err))
	} else if n > 0 {
		cm.logger.Info("expired blocks deactivated", slog.Int64("count", n))
	}

	if n, err := cm.sessions.SweepExpired(sweepCtx); err != nil {
		cm.logger.Error("failed to sweep expired sessions", slog.Any("error", err))
	} else if n > 0 {
		cm.logger.Info("expired sessions deactivated", slog.Int64("count", n))
	}

	if n, err := cm.attempts.PurgeOlderThan(sweepCtx, time.Now().Add(-cm.attemptRetention)); err != nil {
		cm.logger.Error("failed to purge old login attempts", slog.Any("error", err))
	} else if n > 0 {
		cm.logger.Info("old login attempts purged", slog.Int64("count", n))
	}

	if n, err := cm.events.PurgeOlderThan(sweepCtx, time.Now().Add(-cm.eventRetention)); err != nil {
		cm.logger.Error("failed to purge old security events", slog.Any("error", err))
	} else if n > 0 {
		cm.logger.Info("old security events purged", slog.Int64("count", n))
	}
}

// Stop signals the cleanup manager to stop
func (cm *CleanupManager) Stop() {
	close(cm.stopCh)
}
