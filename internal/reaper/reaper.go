package reaper

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Sweeper drops sessions created before cutoff.
type Sweeper interface {
	Sweep(ctx context.Context, cutoff time.Time) (int, error)
}

// Reaper bounds the in-memory session table by evicting old sessions.
type Reaper struct {
	Store    Sweeper
	TTL      time.Duration
	Interval time.Duration
	Logger   *zap.Logger
}

func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.SweepOnce(ctx, time.Now())
		}
	}
}

func (r *Reaper) SweepOnce(ctx context.Context, now time.Time) int {
	removed, err := r.Store.Sweep(ctx, now.Add(-r.TTL))
	if err != nil {
		r.Logger.Error("Session sweep failed", zap.Error(err))
		return 0
	}
	if removed > 0 {
		r.Logger.Info("Evicted expired sessions", zap.Int("count", removed))
	}
	return removed
}
