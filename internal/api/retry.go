package api

import (
	"context"
	"math/rand"
	"time"
)

// retry executes fn up to maxAttempts times with jittered exponential backoff.
// fn reports whether its error is worth another attempt.
// Base delay doubles on each attempt: 200ms -> 400ms -> 800ms, etc.
func retry(ctx context.Context, maxAttempts int, baseDelay time.Duration, fn func() (bool, error)) error {
	var lastErr error
	delay := baseDelay
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		again, err := fn()
		lastErr = err
		if err == nil || !again {
			return err
		}
		if attempt == maxAttempts || ctx.Err() != nil {
			break
		}
		// delay + random(0, delay/2)
		var jitter time.Duration
		if half := int64(delay / 2); half > 0 {
			jitter = time.Duration(rand.Int63n(half))
		}
		select {
		case <-ctx.Done():
			return lastErr
		case <-time.After(delay + jitter):
		}
		delay *= 2
	}
	return lastErr
}
