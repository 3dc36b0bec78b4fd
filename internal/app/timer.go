package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"quizsync-service/internal/domain"
)

// TimerCoordinator drives the host's countdown at a fixed cadence. Every tick
// is persisted, so observers converge within one notification.
type TimerCoordinator struct {
	host     *Host
	interval time.Duration
	logger   *zap.SugaredLogger
}

func NewTimerCoordinator(host *Host, interval time.Duration, logger *zap.SugaredLogger) *TimerCoordinator {
	if interval <= 0 {
		interval = time.Second
	}
	return &TimerCoordinator{host: host, interval: interval, logger: logger}
}

// Run ticks until ctx is done. A restart realigns the cadence so the first
// decrement after Advance comes a full interval later. When another host has
// written the session, Run stops with domain.ErrStaleVersion: this host's copy
// can never be written again.
func (c *TimerCoordinator) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-c.host.Restarts():
			ticker.Reset(c.interval)
		case <-ticker.C:
			_, _, err := c.host.Tick(ctx)
			switch {
			case errors.Is(err, domain.ErrStaleVersion):
				c.logger.Errorw("session was written by another host, stopping countdown", "error", err)
				return fmt.Errorf("timer: %w", err)
			case err != nil:
				// the local copy is unchanged, so the next tick retries the same value
				c.logger.Warnw("timer tick failed", "error", err)
			}
		}
	}
}
