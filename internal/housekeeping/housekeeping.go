// Package housekeeping periodically deletes dead session and reset-token rows.
// Session validity never depends on it; expired rows are already rejected at
// validation time.
package housekeeping

import (
	"context"
	"log/slog"
	"time"
)

type SessionPurger interface {
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type ResetTokenPurger interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

type Sweeper struct {
	sessions SessionPurger
	resets   ResetTokenPurger
	interval time.Duration
	now      func() time.Time
	logger   *slog.Logger
}

func NewSweeper(sessions SessionPurger, resets ResetTokenPurger, interval time.Duration, logger *slog.Logger) *Sweeper {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Sweeper{
		sessions: sessions,
		resets:   resets,
		interval: interval,
		now:      func() time.Time { return time.Now().UTC() },
		logger:   logger,
	}
}

// Run sweeps every interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.Sweep(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// Sweep runs one pass and returns how many sessions and reset tokens it
// removed. Failures are logged; the next pass retries.
func (s *Sweeper) Sweep(ctx context.Context) (sessions, resets int64) {
	n, err := s.sessions.DeleteExpired(ctx, s.now())
	if err != nil {
		s.logger.ErrorContext(ctx, "cleanup expired sessions", "error", err)
	} else if n > 0 {
		s.logger.InfoContext(ctx, "cleaned up expired sessions", "count", n)
	}
	sessions = n

	n, err = s.resets.DeleteExpired(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "cleanup reset tokens", "error", err)
	} else if n > 0 {
		s.logger.InfoContext(ctx, "cleaned up reset tokens", "count", n)
	}
	resets = n
	return sessions, resets
}
