package controlplane

import (
	"context"
	"time"

	"github.com/sethvargo/go-retry"
)

// Policy bounds retries of collaborator calls: exponential backoff from
// Base, doubling per attempt, capped at Cap, at most MaxRetries retries,
// with ~25% jitter. Cancellation is observed between attempts.
type Policy struct {
	Base          time.Duration
	Cap           time.Duration
	MaxRetries    uint64
	JitterPercent uint64
}

// DefaultPolicy is the standard collaborator retry policy.
func DefaultPolicy() Policy {
	return Policy{
		Base:          1 * time.Second,
		Cap:           10 * time.Second,
		MaxRetries:    3,
		JitterPercent: 25,
	}
}

// Do runs fn under the policy. Only errors classified retryable re-enter the
// backoff loop; everything else is final on the first occurrence.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	backoff := retry.NewExponential(p.Base)
	backoff = retry.WithCappedDuration(p.Cap, backoff)
	backoff = retry.WithJitterPercent(p.JitterPercent, backoff)
	backoff = retry.WithMaxRetries(p.MaxRetries, backoff)
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if IsRetryable(err) {
			return retry.RetryableError(err)
		}
		return err
	})
}
