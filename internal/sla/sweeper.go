// internal/sla/sweeper.go
package sla

import (
	"context"
	"time"

	"poultry-review-engine/internal/common/logger"
)

// SweepFunc flags overdue work items and reports how many were flagged.
type SweepFunc func(ctx context.Context) (int, error)

// Sweeper drives the overdue sweep on a fixed interval until its context is
// cancelled. Each tick is independent; a failed sweep is logged and the next
// tick tries again.
type Sweeper struct {
	interval time.Duration
	sweep    SweepFunc
	logger   logger.Logger
}

func NewSweeper(interval time.Duration, sweep SweepFunc, log logger.Logger) *Sweeper {
	return &Sweeper{
		interval: interval,
		sweep:    sweep,
		logger:   log.WithFields(map[string]interface{}{"component": "sla-sweeper"}),
	}
}

// Run blocks until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("sla sweeper started", map[string]interface{}{
		"interval": s.interval.String(),
	})

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sla sweeper stopped", nil)
			return
		case <-ticker.C:
			flagged, err := s.sweep(ctx)
			if err != nil {
				s.logger.Error("overdue sweep failed", map[string]interface{}{
					"error": err.Error(),
				})
				continue
			}
			if flagged > 0 {
				s.logger.Info("overdue sweep flagged work items", map[string]interface{}{
					"flagged": flagged,
				})
			}
		}
	}
}
