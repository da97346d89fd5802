package cloud

import (
	"context"
	"errors"
	"time"

	"golang.org/x/time/rate"
	"k8s.io/apimachinery/pkg/util/wait"
)

// Throttled marks an error returned by a provider adapter as a rate-limiting
// response. WithThrottleRetry retries such errors up to 5 times with a 30s
// first backoff then 3s steps (spec §4.4/§7); any other error is returned to
// the caller immediately.
type Throttled struct {
	Err error
}

func (t *Throttled) Error() string { return "throttled: " + t.Err.Error() }
func (t *Throttled) Unwrap() error { return t.Err }

// IsThrottled reports whether err (or something it wraps) is a Throttled.
func IsThrottled(err error) bool {
	var t *Throttled
	return errors.As(err, &t)
}

// WithThrottleRetry invokes op, retrying up to 5 times total when op returns
// a Throttled error: the first retry waits 30s, every subsequent retry waits
// 3s. Any non-throttling error is returned immediately without retrying.
//
// limiter, when non-nil, paces every call to op (including the first) via
// limiter.Wait, so a caller driving many resources through the same provider
// adapter can cap its steady-state call rate independently of the
// throttle-backoff schedule. A nil limiter applies no pacing.
func WithThrottleRetry(ctx context.Context, limiter *rate.Limiter, op func(ctx context.Context) error) error {
	attempt := 0
	backoff := 30 * time.Second
	for {
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return err
			}
		}
		err := op(ctx)
		if err == nil || !IsThrottled(err) {
			return err
		}
		attempt++
		if attempt >= 5 {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff = 3 * time.Second
	}
}

// PollUntilTerminated polls interval until fn returns true/error or
// terminated reports true. Used by the network-failure hold phase and by
// providers (Azure/GCP/vSphere) that re-run association every tick.
func PollUntilTerminated(ctx context.Context, interval time.Duration, terminated func() bool, fn func(ctx context.Context) error) error {
	return wait.PollUntilContextCancel(ctx, interval, true, func(ctx context.Context) (bool, error) {
		if terminated() {
			return true, nil
		}
		if err := fn(ctx); err != nil {
			return false, err
		}
		return false, nil
	})
}
