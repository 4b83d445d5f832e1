package httpnode

import (
	"context"
	"math/rand"
	"time"
)

// RetryPolicy controls how often a failed fetch is repeated.
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Jitter     bool
	// OnRetry, when set, is called before each wait.
	OnRetry func(attempt int, wait time.Duration, err error)
}

func (p RetryPolicy) normalized() RetryPolicy {
	q := p
	if q.BaseDelay <= 0 {
		q.BaseDelay = 200 * time.Millisecond
	}
	if q.MaxDelay <= 0 {
		q.MaxDelay = 5 * time.Second
	}
	if q.MaxDelay < q.BaseDelay {
		q.MaxDelay = q.BaseDelay
	}
	if q.MaxRetries < 0 {
		q.MaxRetries = 0
	}
	return q
}

// backoff returns the wait before retry number attempt (0-based).
func backoff(attempt int, base, max time.Duration, jitter bool) time.Duration {
	d := base << attempt
	if d > max || d <= 0 {
		d = max
	}
	if !jitter {
		return d
	}
	// +/- 50%
	half := d / 2
	if half <= 0 {
		return d
	}
	delta := time.Duration(rand.Int63n(int64(half))) // #nosec G404 non-crypto
	return half + delta
}

// retry calls fn until it succeeds, returns a permanent error, or the
// policy runs out. It stops early when ctx is done.
func retry(ctx context.Context, p RetryPolicy, fn func() (retryable bool, err error)) error {
	p = p.normalized()
	var err error
	for attempt := 0; ; attempt++ {
		var again bool
		again, err = fn()
		if err == nil || !again || attempt >= p.MaxRetries {
			return err
		}
		wait := backoff(attempt, p.BaseDelay, p.MaxDelay, p.Jitter)
		if p.OnRetry != nil {
			p.OnRetry(attempt+1, wait, err)
		}
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
