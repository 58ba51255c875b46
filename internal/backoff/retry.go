package backoff

import (
	"context"
	"time"

	cenkalti "github.com/cenkalti/backoff/v4"
)

// RetryConfig configures the jittered exponential retry used for transient
// HTTP failures (spec §4.1, §7). Unlike Sequence, this one carries jitter on
// every attempt — it is a bounded number of quick retries, not a long-lived
// reconnect loop.
type RetryConfig struct {
	Attempts            int           // default 3
	InitialInterval     time.Duration // default 100ms
	Multiplier          float64       // default 2
	MaxInterval         time.Duration // default 30s
	RandomizationFactor float64       // default 0.5
}

func (c *RetryConfig) applyDefaults() {
	if c.Attempts <= 0 {
		c.Attempts = 3
	}
	if c.InitialInterval <= 0 {
		c.InitialInterval = 100 * time.Millisecond
	}
	if c.Multiplier <= 0 {
		c.Multiplier = 2
	}
	if c.MaxInterval <= 0 {
		c.MaxInterval = 30 * time.Second
	}
	if c.RandomizationFactor == 0 {
		c.RandomizationFactor = 0.5
	}
}

// Retry runs op until it succeeds, ctx is cancelled, cfg.Attempts is
// exhausted, or isRetryable reports false for the returned error. notify, if
// non-nil, is called before each sleep with the error that triggered it and
// the delay about to be slept.
func Retry(ctx context.Context, cfg RetryConfig, op func() error, isRetryable func(error) bool, notify func(err error, delay time.Duration)) error {
	cfg.applyDefaults()

	eb := cenkalti.NewExponentialBackOff()
	eb.InitialInterval = cfg.InitialInterval
	eb.Multiplier = cfg.Multiplier
	eb.MaxInterval = cfg.MaxInterval
	eb.RandomizationFactor = cfg.RandomizationFactor
	eb.MaxElapsedTime = 0
	eb.Reset()

	bounded := cenkalti.WithMaxRetries(eb, uint64(cfg.Attempts-1))
	withCtx := cenkalti.WithContext(bounded, ctx)

	return cenkalti.RetryNotify(func() error {
		err := op()
		if err == nil {
			return nil
		}
		if isRetryable != nil && !isRetryable(err) {
			return cenkalti.Permanent(err)
		}
		return err
	}, withCtx, func(err error, delay time.Duration) {
		if notify != nil {
			notify(err, delay)
		}
	})
}
