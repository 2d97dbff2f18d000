package store

import (
	"context"
	"time"

	"github.com/regrant/regrant-auth/logging"
)

// Sweeper is a nonce store that can evict expired entries in bulk
type Sweeper interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// RunJanitor calls DeleteExpired every interval until ctx is cancelled.
// A non-positive interval falls back to DefaultNonceTTL.
func RunJanitor(ctx context.Context, s Sweeper, interval time.Duration, logger logging.Logger) {
	if interval <= 0 {
		interval = DefaultNonceTTL
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			n, err := s.DeleteExpired(ctx)
			if err != nil {
				logger.Error(ctx, "nonce sweep failed", "error", err)
				continue
			}
			if n > 0 {
				logger.Debug(ctx, "expired nonces removed", "count", n)
			}
		case <-ctx.Done():
			return
		}
	}
}
