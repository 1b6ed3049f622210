package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/orgstack/identity/pkg/slogx"
)

// Housekeeper periodically reaps expired lifecycle tokens.
type Housekeeper struct {
	lifecycle *LifecycleService
	interval  time.Duration
}

func NewHousekeeper(lifecycle *LifecycleService, interval time.Duration) *Housekeeper {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Housekeeper{lifecycle: lifecycle, interval: interval}
}

// Run blocks until ctx is cancelled, sweeping on each tick. An initial sweep
// runs immediately so restarts do not postpone cleanup by a full interval.
func (h *Housekeeper) Run(ctx context.Context) {
	h.sweep(ctx)

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.sweep(ctx)
		}
	}
}

func (h *Housekeeper) sweep(ctx context.Context) {
	n, err := h.lifecycle.ReapExpired(ctx)
	if err != nil {
		slogx.FromContext(ctx).Error("token sweep failed", slog.Any("err", err))
		return
	}
	if n > 0 {
		slogx.FromContext(ctx).Info("expired tokens reaped", slog.Int64("count", n))
	}
}
