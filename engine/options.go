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

package engine

import (
	"github.com/panjf2000/ants/v2"

	"trpc.group/trpc-go/trpc-workflow-go/event"
	"trpc.group/trpc-go/trpc-workflow-go/graph"
)

const defaultConcurrency = 8

// Observer receives every event of a run in order. It is called from the
// coordinator goroutine for status events and from worker goroutines for
// partial events, so implementations must be safe for concurrent use and
// must not block.
type Observer interface {
	Observe(e *event.Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(e *event.Event)

// Observe implements Observer.
func (f ObserverFunc) Observe(e *event.Event) {
	f(e)
}

// Option configures a Session.
type Option func(*options)

type options struct {
	runID       string
	pool        *ants.Pool
	concurrency int
	observer    Observer
	prior       graph.PriorLookup
}

// WithRunID sets the run id. A random uuid is used otherwise.
func WithRunID(id string) Option {
	return func(o *options) {
		o.runID = id
	}
}

// WithPool runs node executions on a shared pool. The session never
// releases a pool it did not create.
func WithPool(p *ants.Pool) Option {
	return func(o *options) {
		o.pool = p
	}
}

// WithConcurrency sizes the session's own pool when WithPool is not given.
func WithConcurrency(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

// WithObserver streams run events to obs.
func WithObserver(obs Observer) Option {
	return func(o *options) {
		o.observer = obs
	}
}

// WithPrior supplies outputs of nodes outside the plan, read by the
// boundary nodes of partial runs.
func WithPrior(p graph.PriorLookup) Option {
	return func(o *options) {
		o.prior = p
	}
}
