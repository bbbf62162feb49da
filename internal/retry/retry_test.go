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

package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errFlaky = errors.New("flaky")

func TestNextDelay(t *testing.T) {
	p := Policy{InitialInterval: time.Second, BackoffFactor: 2, MaxInterval: 10 * time.Second}
	assert.Equal(t, time.Second, p.NextDelay(0))
	assert.Equal(t, time.Second, p.NextDelay(1))
	assert.Equal(t, 2*time.Second, p.NextDelay(2))
	assert.Equal(t, 4*time.Second, p.NextDelay(3))
	assert.Equal(t, 10*time.Second, p.NextDelay(6))

	flat := Policy{InitialInterval: time.Second}
	assert.Equal(t, time.Second, flat.NextDelay(4))

	jit := Policy{InitialInterval: 100 * time.Millisecond, Jitter: true}
	d := jit.NextDelay(1)
	assert.GreaterOrEqual(t, d, 100*time.Millisecond)
	assert.Less(t, d, 200*time.Millisecond)
}

func TestDoRetriesUntilSuccess(t *testing.T) {
	p := Policy{MaxAttempts: 4, InitialInterval: time.Millisecond, RetryOn: []Condition{OnErrors(errFlaky)}}
	calls := 0
	err := Do(context.Background(), p, func(context.Context) error {
		calls++
		if calls < 3 {
			return errFlaky
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoStopsOnPermanentError(t *testing.T) {
	permanent := errors.New("permanent")
	p := Policy{MaxAttempts: 4, InitialInterval: time.Millisecond, RetryOn: []Condition{OnErrors(errFlaky)}}
	calls := 0
	err := Do(context.Background(), p, func(context.Context) error {
		calls++
		return permanent
	})
	assert.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, calls)
}

func TestDoExhaustsAttempts(t *testing.T) {
	p := Policy{MaxAttempts: 3, InitialInterval: time.Millisecond, RetryOn: []Condition{OnPredicate(func(error) bool { return true })}}
	calls := 0
	err := Do(context.Background(), p, func(context.Context) error {
		calls++
		return errFlaky
	})
	assert.ErrorIs(t, err, errFlaky)
	assert.Equal(t, 3, calls)
}

func TestDoHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := Policy{MaxAttempts: 5, InitialInterval: time.Hour, RetryOn: []Condition{OnErrors(errFlaky)}}
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	err := Do(ctx, p, func(context.Context) error { return errFlaky })
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, err, errFlaky)
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return false }

func TestTransient(t *testing.T) {
	c := Transient()
	assert.False(t, c.Match(nil))
	assert.True(t, c.Match(context.DeadlineExceeded))
	assert.True(t, c.Match(timeoutErr{}))
	assert.False(t, c.Match(errFlaky))

	s := Simple(0)
	assert.Equal(t, 1, s.MaxAttempts)
	assert.True(t, s.ShouldRetry(context.DeadlineExceeded))
}
