package ratelimit

import (
	"context"
	"time"
)

// Limiter paces successive requests.
type Limiter interface {
	Wait(ctx context.Context) error
}

// FixedDelay blocks for a constant interval on every Wait call. The run is
// strictly sequential, so a plain sleep between pages keeps the request
// rate polite without any scheduling machinery.
type FixedDelay struct {
	interval time.Duration
}

func NewFixedDelay(interval time.Duration) *FixedDelay {
	return &FixedDelay{interval: interval}
}

func (d *FixedDelay) Wait(ctx context.Context) error {
	if d.interval <= 0 {
		return nil
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d.interval):
		return nil
	}
}
