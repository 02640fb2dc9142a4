package mirror

import (
	"context"
	"time"
)

// Retry budgets, tuned per operation: market state is cheap and flaky,
// submission is expensive, and an own transaction can take a while to show
// up after confirmation.
const (
	buildAttempts = 10
	buildDelay    = 500 * time.Millisecond

	submitAttempts = 5
	submitDelay    = time.Second

	ownTxAttempts = 20
	ownTxDelay    = 500 * time.Millisecond
)

// retry runs op until it succeeds, the attempts run out, or the context
// ends. The last error wins.
func retry[T any](ctx context.Context, attempts int, delay time.Duration, op func() (T, error)) (T, error) {
	var zero T
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		v, err := op()
		if err == nil {
			return v, nil
		}
		lastErr = err
		if attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(delay):
		}
	}
	return zero, lastErr
}
