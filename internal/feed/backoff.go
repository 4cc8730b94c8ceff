package feed

import (
	"context"
	"time"
)

// BackoffSleep waits d before the next subscribe attempt. Returns false
// when the context is cancelled during the wait.
func BackoffSleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		d = 200 * time.Millisecond
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
