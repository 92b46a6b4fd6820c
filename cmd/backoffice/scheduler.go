package main

import (
	"context"
	"time"

	"go.uber.org/zap"
)

type expirySweeper interface {
	SweepExpired(ctx context.Context, now time.Time) (int, error)
}

// runSweeper expires stale reservations every interval until ctx ends.
func runSweeper(ctx context.Context, sweeper expirySweeper, interval time.Duration, log *zap.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Info("Reservation sweeper started", zap.Duration("interval", interval))
	for {
		select {
		case <-ctx.Done():
			log.Info("Reservation sweeper stopped")
			return
		case now := <-ticker.C:
			if _, err := sweeper.SweepExpired(ctx, now); err != nil && ctx.Err() == nil {
				log.Error("reservation sweep failed", zap.Error(err))
			}
		}
	}
}
