// Package backoff produces the jittered exponential delay sequences used by
// the log-stream reconnect loop (spec §4.2, §4.8) and the HTTP retry wrapper
// (spec §4.1). It wraps github.com/cenkalti/backoff/v4's ExponentialBackOff
// rather than hand-rolling the escalation arithmetic.
package backoff

import (
	"math/rand"
	"time"

	cenkalti "github.com/cenkalti/backoff/v4"
)

// Defaults mirror spec §4.8 exactly.
const (
	DefaultInitialDelay = 5 * time.Second
	DefaultMinDelay     = 3100 * time.Millisecond
	DefaultMaxDelay     = 90 * time.Second
	DefaultFactor       = 1.618
)

// SequenceConfig configures a reconnect backoff Sequence.
type SequenceConfig struct {
	// InitialDelay bounds the uniform-random first delay (RFC 6455 §7.2.3
	// advice): the first Next() returns a value drawn from [0, InitialDelay).
	InitialDelay time.Duration
	// MinDelay is the second delay yielded, and the base the sequence grows
	// from by Factor on every subsequent call.
	MinDelay time.Duration
	// MaxDelay caps growth; once reached, every further call returns MaxDelay.
	MaxDelay time.Duration
	// Factor multiplies the previous delay on each step until MaxDelay.
	Factor float64
	// MaxAttempts stops the sequence after N calls to Next if set (>0).
	// Zero means unlimited.
	MaxAttempts int
	// Float64 returns a value in [0,1); injectable for deterministic tests.
	// Defaults to rand.Float64.
	Float64 func() float64
}

func (c *SequenceConfig) applyDefaults() {
	if c.InitialDelay <= 0 {
		c.InitialDelay = DefaultInitialDelay
	}
	if c.MinDelay <= 0 {
		c.MinDelay = DefaultMinDelay
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = DefaultMaxDelay
	}
	if c.Factor <= 0 {
		c.Factor = DefaultFactor
	}
	if c.Float64 == nil {
		c.Float64 = rand.Float64
	}
}

// Sequence is a restartable generator of reconnect delays. Build a fresh one
// per reconnect chain and discard it on any successful receive cycle — the
// spec requires the generator be "reset to None" on success, which in Go
// just means letting the old *Sequence fall out of scope.
type Sequence struct {
	cfg     SequenceConfig
	eb      *cenkalti.ExponentialBackOff
	attempt int
	started bool
}

// NewSequence builds a Sequence from cfg, applying spec defaults for any
// zero-valued field.
func NewSequence(cfg SequenceConfig) *Sequence {
	cfg.applyDefaults()
	eb := cenkalti.NewExponentialBackOff()
	eb.InitialInterval = cfg.MinDelay
	eb.MaxInterval = cfg.MaxDelay
	eb.Multiplier = cfg.Factor
	eb.RandomizationFactor = 0 // deterministic growth per spec §4.8; jitter lives only in the first delay
	eb.MaxElapsedTime = 0      // never stop: grow to MaxDelay, then hold there indefinitely
	eb.Reset()
	return &Sequence{cfg: cfg, eb: eb}
}

// Next returns the next delay, and false once MaxAttempts has been reached.
func (s *Sequence) Next() (time.Duration, bool) {
	if s.cfg.MaxAttempts > 0 && s.attempt >= s.cfg.MaxAttempts {
		return 0, false
	}
	s.attempt++

	if !s.started {
		s.started = true
		return time.Duration(s.cfg.Float64() * float64(s.cfg.InitialDelay)), true
	}

	d := s.eb.NextBackOff()
	if d == cenkalti.Stop {
		// Unreachable with MaxElapsedTime == 0, but guard anyway.
		return s.cfg.MaxDelay, true
	}
	return d, true
}

// Attempt returns how many times Next has been called so far.
func (s *Sequence) Attempt() int {
	return s.attempt
}
