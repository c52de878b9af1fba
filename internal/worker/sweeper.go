// Package worker runs the optional periodic sweep. Reads already sweep the
// rows they touch; this only keeps untouched rows from lingering.
package worker

import (
	"context"
	"log/slog"
	"time"

	"libraryhub/internal/lifecycle"
)

// SweepFunc runs both sweeps over every user.
type SweepFunc func(ctx context.Context, scope lifecycle.Scope) (expired, overdue int, err error)

type Sweeper struct {
	sweep    SweepFunc
	interval time.Duration
	log      *slog.Logger
}

func NewSweeper(sweep SweepFunc, interval time.Duration, log *slog.Logger) *Sweeper {
	if log == nil {
		log = slog.Default()
	}
	return &Sweeper{sweep: sweep, interval: interval, log: log}
}

// Run sweeps once immediately, then on every tick until ctx is done.
func (s *Sweeper) Run(ctx context.Context) {
	if s.interval <= 0 {
		return
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.Check(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Check(ctx)
		}
	}
}

func (s *Sweeper) Check(ctx context.Context) {
	expired, overdue, err := s.sweep(ctx, lifecycle.All())
	if err != nil {
		if ctx.Err() == nil {
			s.log.Error("sweep failed", "err", err)
		}
		return
	}
	if expired > 0 || overdue > 0 {
		s.log.Info("sweep", "expired_requests", expired, "overdue_issuances", overdue)
	}
}
