//
// Tencent is pleased to support the open source community by making trpc-workflow-go available.
//
// Copyright (C) 2025 Tencent.
// All rights reserved.
//
// If you have downloaded a copy of the trpc-workflow-go source code from Tencent,
// please note that trpc-workflow-go source code is licensed under the  Apache 2.0 License,
// A copy of the Apache 2.0 License is included in this file.
//
//

// Package retry provides backoff policies for calls to external services.
package retry

import (
	"context"
	"crypto/rand"
	"errors"
	"math"
	"math/big"
	"net"
	"time"

	"trpc.group/trpc-go/trpc-workflow-go/log"
)

// Condition decides whether an error is worth another attempt.
type Condition interface {
	Match(err error) bool
}

// ConditionFunc adapts a function to Condition.
type ConditionFunc func(error) bool

// Match implements Condition.
func (f ConditionFunc) Match(err error) bool { return f(err) }

// Policy configures exponential backoff.
type Policy struct {
	// MaxAttempts is the total number of attempts including the first one.
	MaxAttempts     int
	InitialInterval time.Duration
	BackoffFactor   float64
	MaxInterval     time.Duration
	Jitter          bool
	RetryOn         []Condition
}

// NextDelay returns the delay before the attempt after the given one.
// attempt is 1-based.
func (p Policy) NextDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := float64(p.InitialInterval)
	if p.BackoffFactor <= 0 {
		p.BackoffFactor = 1.0
	}
	if attempt > 1 {
		delay *= math.Pow(p.BackoffFactor, float64(attempt-1))
	}
	maxInt := p.MaxInterval
	if maxInt <= 0 {
		maxInt = p.InitialInterval
	}
	if maxInt > 0 {
		delay = math.Min(delay, float64(maxInt))
	}
	d := time.Duration(delay)
	if p.Jitter && d > 0 {
		// Additive jitter in [0, d); crypto/rand keeps gosec quiet.
		if n, err := rand.Int(rand.Reader, big.NewInt(int64(d))); err == nil {
			d += time.Duration(n.Int64())
		}
	}
	if d < 0 {
		d = 0
	}
	return d
}

// ShouldRetry reports whether any condition matches err.
func (p Policy) ShouldRetry(err error) bool {
	for _, cond := range p.RetryOn {
		if cond != nil && cond.Match(err) {
			return true
		}
	}
	return false
}

// Do calls fn until it succeeds, returns a non-retryable error, the attempts
// are exhausted, or ctx is done. The last error is returned.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for attempt := 1; ; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if attempt >= attempts || !p.ShouldRetry(err) {
			return err
		}
		delay := p.NextDelay(attempt)
		log.Debugf("retry: attempt %d failed: %v, retrying in %s", attempt, err, delay)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return errors.Join(err, ctx.Err())
		case <-timer.C:
		}
	}
}

// OnErrors retries when err matches any target via errors.Is.
func OnErrors(targets ...error) Condition {
	return ConditionFunc(func(err error) bool {
		for _, t := range targets {
			if t != nil && errors.Is(err, t) {
				return true
			}
		}
		return false
	})
}

// OnPredicate retries when match returns true.
func OnPredicate(match func(error) bool) Condition {
	return ConditionFunc(match)
}

// Transient matches deadline and network timeout errors.
func Transient() Condition {
	return ConditionFunc(func(err error) bool {
		if err == nil {
			return false
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return true
		}
		var ne net.Error
		return errors.As(err, &ne) && ne.Timeout()
	})
}

// Simple returns a jittered policy retrying transient errors.
func Simple(attempts int) Policy {
	if attempts < 1 {
		attempts = 1
	}
	return Policy{
		MaxAttempts:     attempts,
		InitialInterval: 500 * time.Millisecond,
		BackoffFactor:   2.0,
		MaxInterval:     8 * time.Second,
		Jitter:          true,
		RetryOn:         []Condition{Transient()},
	}
}
