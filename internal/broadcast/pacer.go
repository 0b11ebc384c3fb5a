package broadcast

import (
	"context"
	"time"
)

// Pacer decides how long to pause between two recipients. It is kept apart
// from the send logic so the delay policy can change without touching it.
type Pacer interface {
	Wait(ctx context.Context) error
}

// FixedDelay waits the same duration every time. Zero or negative never waits.
type FixedDelay time.Duration

// Wait blocks for the delay or until ctx is done, whichever comes first.
func (d FixedDelay) Wait(ctx context.Context) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(time.Duration(d))
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
