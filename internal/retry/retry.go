// Package retry executes a workflow step under its §4.2 timeout/retry
// policy: a per-step deadline, a bounded retry count, and exponential
// backoff starting from a per-step initial interval.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Policy bounds one workflow step's execution.
type Policy struct {
	// Timeout bounds a single attempt's wall-clock time.
	Timeout time.Duration
	// MaxRetries is the number of retries after the first attempt (so a
	// step with MaxRetries=5 runs at most 6 times).
	MaxRetries int
	// InitialBackoff is the first retry's backoff interval; subsequent
	// retries grow exponentially from it.
	InitialBackoff time.Duration
}

// Policies holds the §4.2 policy for each pipeline step.
var Policies = map[string]Policy{
	"ocr":                         {Timeout: 5 * time.Minute, MaxRetries: 5, InitialBackoff: 10 * time.Second},
	"classify_extract":            {Timeout: 3 * time.Minute, MaxRetries: 3, InitialBackoff: 5 * time.Second},
	"register_gaps":               {Timeout: time.Minute, MaxRetries: 2, InitialBackoff: 2 * time.Second},
	"entity_resolution":           {Timeout: 2 * time.Minute, MaxRetries: 3, InitialBackoff: 3 * time.Second},
	"authority_graph_update":      {Timeout: 2 * time.Minute, MaxRetries: 3, InitialBackoff: 3 * time.Second},
	"embedding":                   {Timeout: 3 * time.Minute, MaxRetries: 3, InitialBackoff: 5 * time.Second},
	"post_ingest_duplicate_check": {Timeout: time.Minute, MaxRetries: 2, InitialBackoff: 2 * time.Second},
	"finalize":                    {Timeout: time.Minute, MaxRetries: 1, InitialBackoff: time.Second},
}

// PermanentError marks an error as non-retryable, stopping Do immediately
// instead of spending the retry budget on a failure that can't succeed.
func PermanentError(err error) error {
	return backoff.Permanent(err)
}

// Do runs fn under policy: each attempt gets its own Timeout-bound
// context, and a returned error is retried with exponential backoff from
// InitialBackoff up to MaxRetries times, unless wrapped with
// PermanentError or the outer ctx is done. onRetry, if given, is called
// after each failed attempt that will be retried, so callers can record a
// LogStatusRetrying entry per §4.2's append-only log.
func Do(ctx context.Context, policy Policy, fn func(ctx context.Context) error, onRetry ...func(attempt int, err error)) error {
	tries := 0
	attempt := func() (struct{}, error) {
		tries++
		attemptCtx, cancel := context.WithTimeout(ctx, policy.Timeout)
		defer cancel()
		return struct{}{}, fn(attemptCtx)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = policy.InitialBackoff

	opts := []backoff.RetryOption{
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(policy.MaxRetries) + 1),
	}
	if len(onRetry) > 0 {
		notify := onRetry[0]
		opts = append(opts, backoff.WithNotify(func(err error, _ time.Duration) {
			notify(tries, err)
		}))
	}

	_, err := backoff.Retry(ctx, attempt, opts...)
	return err
}
