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

// Package runner starts workflow runs against the current graph, keeps
// their event logs for subscribers, and remembers the latest result of
// every node for partial runs.
package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"go.opentelemetry.io/otel/attribute"

	"trpc.group/trpc-go/trpc-workflow-go/engine"
	"trpc.group/trpc-go/trpc-workflow-go/event"
	"trpc.group/trpc-go/trpc-workflow-go/graph"
	itelemetry "trpc.group/trpc-go/trpc-workflow-go/internal/telemetry"
	"trpc.group/trpc-go/trpc-workflow-go/log"
	"trpc.group/trpc-go/trpc-workflow-go/node"
	"trpc.group/trpc-go/trpc-workflow-go/runstore"
	"trpc.group/trpc-go/trpc-workflow-go/runstore/inmemory"
	"trpc.group/trpc-go/trpc-workflow-go/telemetry/trace"
)

var (
	// ErrRunNotFound is returned for run ids the runner has never seen or
	// no longer holds.
	ErrRunNotFound = errors.New("runner: run not found")
	// ErrClosed is returned by StartRun after Close.
	ErrClosed = errors.New("runner: closed")
)

// Runner owns the runs of one graph store.
type Runner struct {
	graphs graph.Store
	reg    *node.Registry
	opts   options

	pool    *ants.Pool
	ownPool bool
	runs    runstore.Store
	ownRuns bool
	latest  *latestBook

	mu       sync.RWMutex
	live     map[string]*run
	finished []string
	closed   bool
	wg       sync.WaitGroup
}

type run struct {
	session *engine.Session
	events  *eventLog
	// done closes once the finished run has been persisted.
	done chan struct{}
}

// New creates a runner and restores the latest node records from the run
// store.
func New(graphs graph.Store, reg *node.Registry, opts ...Option) (*Runner, error) {
	if graphs == nil || reg == nil {
		return nil, errors.New("runner: graph store and registry are required")
	}
	o := options{
		concurrency:    defaultConcurrency,
		retained:       defaultRetainedRuns,
		persistTimeout: defaultPersistTimeout,
		subscriberBuf:  defaultSubscriberBuf,
	}
	for _, opt := range opts {
		opt(&o)
	}

	r := &Runner{
		graphs: graphs,
		reg:    reg,
		opts:   o,
		runs:   o.runs,
		live:   make(map[string]*run),
	}
	if r.runs == nil {
		r.runs, r.ownRuns = inmemory.New(), true
	}
	recs, err := r.runs.Latest(context.Background())
	if err != nil {
		return nil, fmt.Errorf("runner: restore latest records: %w", err)
	}
	r.latest = newLatestBook(recs)

	if o.pool != nil {
		r.pool = o.pool
	} else {
		pool, err := ants.NewPool(o.concurrency)
		if err != nil {
			return nil, fmt.Errorf("runner: create worker pool: %w", err)
		}
		r.pool, r.ownPool = pool, true
	}
	return r, nil
}

// StartRun resolves scope against the current graph and starts the run.
// Resolution errors (*graph.ValidationError, *graph.CycleDetected,
// *graph.MissingUpstreamOutput) are returned as is and nothing runs.
// The run outlives ctx; use Cancel to stop it.
func (r *Runner) StartRun(ctx context.Context, scope graph.Scope) (*Handle, error) {
	ctx, span := trace.Tracer.Start(ctx, "workflow.start_run")
	defer span.End()
	span.SetAttributes(attribute.String(itelemetry.KeyRunScope, scope.String()))

	if r.isClosed() {
		return nil, ErrClosed
	}
	g, err := r.graphs.Graph(ctx)
	if err != nil {
		return nil, fmt.Errorf("runner: load graph: %w", err)
	}
	if g == nil {
		return nil, errors.New("runner: no graph loaded")
	}
	prior := r.latest.priors()
	plan, err := graph.Resolve(g, scope, prior)
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	span.SetAttributes(attribute.String(itelemetry.KeyRunID, runID))
	events := newEventLog()
	sess, err := engine.New(g, plan, r.reg,
		engine.WithRunID(runID),
		engine.WithPool(r.pool),
		engine.WithPrior(prior),
		engine.WithObserver(r.fanout(events)),
	)
	if err != nil {
		return nil, err
	}

	rn := &run{session: sess, events: events, done: make(chan struct{})}
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, ErrClosed
	}
	r.live[runID] = rn
	r.wg.Add(1)
	r.mu.Unlock()

	if err := sess.Start(context.WithoutCancel(ctx)); err != nil {
		r.mu.Lock()
		delete(r.live, runID)
		r.mu.Unlock()
		r.wg.Done()
		return nil, fmt.Errorf("runner: start run %s: %w", runID, err)
	}
	go r.track(rn)
	return &Handle{RunID: runID, run: rn}, nil
}

func (r *Runner) fanout(events *eventLog) engine.Observer {
	if len(r.opts.observers) == 0 {
		return events
	}
	return engine.ObserverFunc(func(e *event.Event) {
		events.Observe(e)
		for _, obs := range r.opts.observers {
			obs.Observe(e)
		}
	})
}

// track persists a run once it finishes and ages out old live runs.
func (r *Runner) track(rn *run) {
	defer r.wg.Done()
	<-rn.session.Done()
	snap := rn.session.Snapshot()

	ctx, cancel := context.WithTimeout(context.Background(), r.opts.persistTimeout)
	defer cancel()
	for _, rec := range r.latest.update(snap) {
		if err := r.runs.PutLatest(ctx, rec); err != nil {
			log.Errorf("run %s: persist latest record of %s: %v", snap.RunID, rec.NodeID, err)
		}
	}
	if err := r.runs.Save(ctx, snap); err != nil {
		log.Errorf("run %s: persist snapshot: %v", snap.RunID, err)
	}
	close(rn.done)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.finished = append(r.finished, snap.RunID)
	for len(r.finished) > r.opts.retained {
		delete(r.live, r.finished[0])
		r.finished = r.finished[1:]
	}
}

func (r *Runner) isClosed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.closed
}

func (r *Runner) lookup(runID string) (*run, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rn, ok := r.live[runID]
	return rn, ok
}

// Cancel stops a live run. Cancelling a finished run is a no-op.
func (r *Runner) Cancel(runID string) error {
	rn, ok := r.lookup(runID)
	if !ok {
		if _, err := r.runs.Load(context.Background(), runID); err == nil {
			return nil
		}
		return ErrRunNotFound
	}
	rn.session.Cancel()
	return nil
}

// GetRun returns the live snapshot of a run, or the stored one after the
// run has aged out.
func (r *Runner) GetRun(ctx context.Context, runID string) (*engine.Snapshot, error) {
	if rn, ok := r.lookup(runID); ok {
		return rn.session.Snapshot(), nil
	}
	snap, err := r.runs.Load(ctx, runID)
	if errors.Is(err, runstore.ErrNotFound) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("runner: load run %s: %w", runID, err)
	}
	return snap, nil
}

// Subscribe replays the events of a run and then follows it. The channel
// closes after the run.finished event or when ctx ends. A run that only
// the store still knows yields its run.finished event alone.
func (r *Runner) Subscribe(ctx context.Context, runID string) (<-chan *event.Event, error) {
	if rn, ok := r.lookup(runID); ok {
		return rn.events.subscribe(ctx, r.opts.subscriberBuf), nil
	}
	snap, err := r.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	ch := make(chan *event.Event, 1)
	e := event.New(runID, event.TypeRunFinished, event.WithSummary(snap.Summary()))
	if !snap.FinishedAt.IsZero() {
		e.Timestamp = snap.FinishedAt
	}
	ch <- e
	close(ch)
	return ch, nil
}

// List returns up to limit runs, newest first.
func (r *Runner) List(ctx context.Context, limit int) ([]runstore.Info, error) {
	stored, err := r.runs.List(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("runner: list runs: %w", err)
	}
	seen := make(map[string]bool, len(stored))
	var out []runstore.Info
	r.mu.RLock()
	live := make([]*run, 0, len(r.live))
	for _, rn := range r.live {
		live = append(live, rn)
	}
	r.mu.RUnlock()
	for _, rn := range live {
		info := runstore.InfoOf(rn.session.Snapshot())
		seen[info.RunID] = true
		out = append(out, info)
	}
	for _, info := range stored {
		if !seen[info.RunID] {
			out = append(out, info)
		}
	}
	runstore.SortInfos(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Latest returns the most recent executed record of every node across runs.
// The records are shared and must not be modified.
func (r *Runner) Latest() map[string]*engine.NodeRecord {
	return r.latest.all()
}

// Graph returns the graph new runs execute against.
func (r *Runner) Graph(ctx context.Context) (*graph.Graph, error) {
	return r.graphs.Graph(ctx)
}

// Close cancels live runs, waits until they are persisted and releases the
// resources the runner created.
func (r *Runner) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	for _, rn := range r.live {
		rn.session.Cancel()
	}
	r.mu.Unlock()

	r.wg.Wait()
	if r.ownPool {
		r.pool.Release()
	}
	if r.ownRuns {
		return r.runs.Close()
	}
	return nil
}

// Handle refers to a started run.
type Handle struct {
	RunID string
	run   *run
}

// Done closes once the run has finished and been persisted.
func (h *Handle) Done() <-chan struct{} {
	return h.run.done
}

// Wait blocks until the run is finished and persisted, and returns its
// final snapshot.
func (h *Handle) Wait(ctx context.Context) (*engine.Snapshot, error) {
	select {
	case <-h.run.done:
		return h.run.session.Snapshot(), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Cancel stops the run.
func (h *Handle) Cancel() {
	h.run.session.Cancel()
}
