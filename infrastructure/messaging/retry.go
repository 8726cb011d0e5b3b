package messaging

import (
	"context"
	"errors"
	"time"
)

var errConsumerStopped = errors.New("consumer stopped")

// retryWithBackoff calls fn up to attempts times, sleeping base, 2*base, ...
// (at most maxDelay) between failures. It returns the last error, or ctx.Err()
// when ctx ends during a wait.
func retryWithBackoff(ctx context.Context, attempts int, base, maxDelay time.Duration, fn func() error) error {
	delay := base
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil || errors.Is(err, errConsumerStopped) {
			return err
		}
		if i == attempts-1 {
			break
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		delay *= 2
		if delay > maxDelay {
			delay = maxDelay
		}
	}
	return err
}
