// Package retry bounds re-attempts of a single-file conversion. Policy
// is keyed on the closed error taxonomy: transient kinds get another
// chance after a delay, structural kinds fail immediately.
package retry

import (
	"context"
	"time"

	"github.com/lthibault/jitterbug/v2"

	"github.com/hyeonkim/sheetpdf/pkg/errors"
)

// Policy controls how a failed attempt is retried.
type Policy struct {
	// MaxRetries is the number of extra attempts after the first. Zero
	// means every failure is terminal.
	MaxRetries int

	// Delay is the pause before retrying Timeout and Unknown failures.
	Delay time.Duration

	// LockDelay is the longer pause before retrying a locked source.
	LockDelay time.Duration

	// Jitter builds the perturbation for a chosen backoff, so lock and
	// transient delays each get jitter proportional to their own
	// duration. Nil means sleep the exact duration.
	Jitter func(time.Duration) jitterbug.Jitter
}

// delayFor returns the backoff for a failure kind and whether the kind
// is retryable at all. The switch is exhaustive over the taxonomy:
// adding a kind without deciding its policy is a bug, so the default
// treats it like Unknown rather than silently dropping retries.
func (p Policy) delayFor(kind errors.Kind) (time.Duration, bool) {
	switch kind {
	case errors.KindSourceCorrupt, errors.KindPermissionDenied, errors.KindServiceUnavailable:
		// Retrying cannot change the outcome for these.
		return 0, false
	case errors.KindSourceLocked:
		return p.LockDelay, true
	case errors.KindTimeout, errors.KindUnknown:
		return p.Delay, true
	default:
		return p.Delay, true
	}
}

// Do runs fn until it succeeds, exhausts the retry budget, or hits a
// non-retryable failure. It returns the number of attempts made and the
// final error (nil on success). onRetry, if set, is called before each
// re-attempt with the failure kind and the attempt number that just
// failed.
func Do(ctx context.Context, p Policy, fn func(context.Context) error, onRetry func(kind errors.Kind, attempt int)) (int, error) {
	for attempt := 1; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return attempt, nil
		}

		kind := errors.KindOf(err)
		delay, retryable := p.delayFor(kind)
		if !retryable || attempt > p.MaxRetries {
			return attempt, err
		}

		if onRetry != nil {
			onRetry(kind, attempt)
		}

		if sleepErr := sleep(ctx, delay, p.Jitter); sleepErr != nil {
			return attempt, err
		}
	}
}

// sleep waits for the (optionally jittered) delay, returning early with
// the context error on cancellation.
func sleep(ctx context.Context, d time.Duration, jitter func(time.Duration) jitterbug.Jitter) error {
	if jitter != nil {
		if j := jitter(d); j != nil {
			d = j.Jitter(d)
		}
	}
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
