package utils

import (
	"context"
	"math/rand"
	"time"
)

// Jitter returns a random duration in [min, max). Used for the randomized
// anti-detection pauses between navigations and listings.
func Jitter(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + time.Duration(rand.Int63n(int64(max-min)))
}

// SleepJitter sleeps for a random duration in [min, max), returning early if
// ctx is canceled.
func SleepJitter(ctx context.Context, min, max time.Duration) {
	t := time.NewTimer(Jitter(min, max))
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
