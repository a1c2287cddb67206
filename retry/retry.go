// Package retry implements the bounded-retry loop every concrete node
// runs its Exec step through. The attempt counter is always a
// local variable, never stored on a shared object, so the same loop
// is safe to run repeatedly against the same node (sequential batch)
// or concurrently against deep copies (parallel batch).
package retry

import (
	"context"
	"time"
)

// Run executes fn up to attempts times. Between attempts it sleeps
// wait (skipped when wait <= 0). If every attempt fails, it calls
// fallback with the last error; fallback may return a recovered
// result or re-raise by returning the error unchanged.
func Run(ctx context.Context, attempts int, wait time.Duration, fn func() (interface{}, error), fallback func(error) (interface{}, error)) (interface{}, error) {
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		result, err := fn()
		if err == nil {
			return result, nil
		}
		lastErr = err

		if attempt == attempts-1 {
			if fallback != nil {
				return fallback(err)
			}
			return nil, err
		}

		if wait > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(wait):
			}
		}
	}
	// Unreachable: the loop above always returns on its final
	// iteration.
	return nil, lastErr
}
