package store

import (
	"context"
	"log/slog"
	"time"
)

// Sweeper purges expired records from backends without native TTL.
type Sweeper interface {
	Sweep(ctx context.Context) (int, error)
}

// RunSweeper calls Sweep every interval until ctx is done.
func RunSweeper(ctx context.Context, s Sweeper, interval time.Duration, logger *slog.Logger) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			n, err := s.Sweep(ctx)
			if err != nil {
				logger.ErrorContext(ctx, "sweep failed", "error", err)
				continue
			}
			if n > 0 {
				logger.DebugContext(ctx, "swept expired records", "removed", n)
			}
		}
	}
}
