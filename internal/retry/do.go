package retry

import (
	"context"
	"time"

	errs "git.home.luguber.info/inful/docsforge/internal/errors"
)

// Do runs fn, retrying per the policy as long as the returned error is marked
// retryable. Non-retryable errors are returned immediately; the last error is
// returned when retries are exhausted.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	var err error
	for attempt := 0; ; attempt++ {
		err = fn(ctx)
		if err == nil || !errs.IsRetryable(err) || attempt >= p.MaxRetries {
			return err
		}

		timer := time.NewTimer(p.Delay(attempt + 1))
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}
	}
}
