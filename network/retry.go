package network

import (
	"time"

	"github.com/cenkalti/backoff"
)

const (
	// DefaultMaxAttempts is the total attempt count per action call.
	DefaultMaxAttempts = 3
	// DefaultInitialInterval is the first retry delay.
	DefaultInitialInterval = 500 * time.Millisecond
	// DefaultMaxInterval caps the exponential retry delay.
	DefaultMaxInterval = 5 * time.Second
)

// RetryPolicy is the single retry configuration applied uniformly to send,
// get, and delete calls.
type RetryPolicy struct {
	MaxAttempts     uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	out := p
	if out.MaxAttempts == 0 {
		out.MaxAttempts = DefaultMaxAttempts
	}
	if out.InitialInterval <= 0 {
		out.InitialInterval = DefaultInitialInterval
	}
	if out.MaxInterval <= 0 {
		out.MaxInterval = DefaultMaxInterval
	}
	return out
}

// schedule builds a fresh backoff schedule for one action call.
func (p RetryPolicy) schedule() backoff.BackOff {
	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = p.InitialInterval
	expo.MaxInterval = p.MaxInterval
	return backoff.WithMaxRetries(expo, p.MaxAttempts-1)
}
