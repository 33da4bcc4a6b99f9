// Package webhooks turns settled lead events into signed HTTP deliveries:
// fan-out to subscribed destinations, execution with retry, and dead-letter
// replay.
package webhooks

import (
	"math/rand"
	"time"

	"github.com/lippelima5/repolead-sub000/core"
)

// BackoffPolicy computes the delay before the next delivery attempt:
// exponential in the attempt count, capped at Ceiling, plus uniform jitter
// so synchronized failures do not retry in lockstep.
type BackoffPolicy struct {
	Ceiling       time.Duration
	MaxExponent   int
	JitterCeiling time.Duration

	// Jitter overrides the jitter source, for deterministic tests.
	Jitter func(max time.Duration) time.Duration
}

func NewBackoffPolicy(cfg core.RetryConfig) BackoffPolicy {
	return BackoffPolicy{
		Ceiling:       cfg.BackoffCeiling,
		MaxExponent:   cfg.MaxExponent,
		JitterCeiling: cfg.JitterCeiling,
	}
}

// Next returns the delay after the attempt numbered attemptCount (1-based).
func (p BackoffPolicy) Next(attemptCount int) time.Duration {
	if attemptCount < 1 {
		attemptCount = 1
	}
	exponent := attemptCount
	if p.MaxExponent > 0 && exponent > p.MaxExponent {
		exponent = p.MaxExponent
	}

	delay := time.Duration(1) << uint(exponent) * time.Second
	ceiling := p.Ceiling
	if ceiling <= 0 {
		ceiling = time.Hour
	}
	if delay > ceiling || delay <= 0 {
		delay = ceiling
	}
	return delay + p.jitter()
}

func (p BackoffPolicy) jitter() time.Duration {
	max := p.JitterCeiling
	if max <= 0 {
		return 0
	}
	if p.Jitter != nil {
		return p.Jitter(max)
	}
	return time.Duration(rand.Int63n(int64(max)))
}
