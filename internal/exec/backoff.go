package exec

import (
	"context"
	"time"
)

// maxAttempts bounds both the connect phase and the per-command retry loop,
// per spec §9's retry clock: base 2, starting at attempt 1 (2, 4, 8 seconds),
// capped at 3 total attempts.
const maxAttempts = 3

// sleepBackoff waits 2^attempt seconds, or until ctx is done. Called after
// every failed attempt, including the last, so that a caller observing the
// full connect phase sees the sum(2^k for k in 1..3) ≈ 14s the spec's
// end-to-end scenario (2) describes.
func sleepBackoff(ctx context.Context, attempt int) {
	d := time.Duration(1<<uint(attempt)) * time.Second
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
