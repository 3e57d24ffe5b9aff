package workflow

import (
	"context"
	"time"
)

// Scheduler delays the next poll tick. Wait must return early with the
// context error once ctx is done.
type Scheduler interface {
	Wait(ctx context.Context, d time.Duration) error
}

// TimerScheduler waits on a timer so a cancelled workflow releases its
// goroutine immediately.
type TimerScheduler struct{}

func (TimerScheduler) Wait(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
