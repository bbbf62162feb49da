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

package runner

import (
	"time"

	"github.com/panjf2000/ants/v2"

	"trpc.group/trpc-go/trpc-workflow-go/engine"
	"trpc.group/trpc-go/trpc-workflow-go/runstore"
)

const (
	defaultConcurrency    = 16
	defaultRetainedRuns   = 64
	defaultPersistTimeout = 10 * time.Second
	defaultSubscriberBuf  = 64
)

// Option configures a Runner.
type Option func(*options)

type options struct {
	pool           *ants.Pool
	concurrency    int
	runs           runstore.Store
	observers      []engine.Observer
	retained       int
	persistTimeout time.Duration
	subscriberBuf  int
}

// WithPool executes the nodes of every run on p. The runner never
// releases a pool it did not create.
func WithPool(p *ants.Pool) Option {
	return func(o *options) {
		o.pool = p
	}
}

// WithConcurrency sizes the runner's own pool, shared by all runs.
func WithConcurrency(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

// WithRunStore persists finished runs and the latest record of every node.
// An in-memory store is used otherwise.
func WithRunStore(s runstore.Store) Option {
	return func(o *options) {
		o.runs = s
	}
}

// WithObserver receives the events of every run, in addition to subscribers.
func WithObserver(obs engine.Observer) Option {
	return func(o *options) {
		if obs != nil {
			o.observers = append(o.observers, obs)
		}
	}
}

// WithRetainedRuns sets how many finished runs stay live, with their full
// event log, before only the run store can answer for them.
func WithRetainedRuns(n int) Option {
	return func(o *options) {
		if n >= 0 {
			o.retained = n
		}
	}
}

// WithPersistTimeout bounds the writes made when a run finishes.
func WithPersistTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.persistTimeout = d
		}
	}
}

// WithSubscriberBuffer sets the channel size handed to subscribers.
func WithSubscriberBuffer(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.subscriberBuf = n
		}
	}
}
