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
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trpc.group/trpc-go/trpc-workflow-go/engine"
	"trpc.group/trpc-go/trpc-workflow-go/event"
	"trpc.group/trpc-go/trpc-workflow-go/graph"
	"trpc.group/trpc-go/trpc-workflow-go/node"
	"trpc.group/trpc-go/trpc-workflow-go/runstore"
	"trpc.group/trpc-go/trpc-workflow-go/runstore/inmemory"
)

// handlers answers every node type; nodes without a custom function echo
// "id(inputs)".
type handlers struct {
	mu    sync.Mutex
	calls map[string]int
	funcs map[string]node.HandlerFunc
	reg   *node.Registry
}

func newHandlers(t *testing.T) *handlers {
	h := &handlers{calls: map[string]int{}, funcs: map[string]node.HandlerFunc{}, reg: node.NewRegistry()}
	for _, typ := range graph.NodeTypes {
		require.NoError(t, h.reg.Register(typ, node.HandlerFunc(h.handle)))
	}
	return h
}

func (h *handlers) on(id string, f node.HandlerFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.funcs[id] = f
}

func (h *handlers) count(id string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.calls[id]
}

func (h *handlers) handle(ctx context.Context, inv *node.Invocation) (*node.Result, error) {
	h.mu.Lock()
	h.calls[inv.Node.ID]++
	f := h.funcs[inv.Node.ID]
	h.mu.Unlock()
	if f != nil {
		return f(ctx, inv)
	}
	return &node.Result{Output: inv.Node.ID + "(" + inv.Inputs.Text(",") + ")"}, nil
}

// chain is start -> a -> b.
func chain(t *testing.T) *graph.StaticStore {
	t.Helper()
	g, err := graph.New(
		[]graph.Node{{ID: "start", Type: graph.NodeTypeStart}, {ID: "a", Type: graph.NodeTypePrompt}, {ID: "b", Type: graph.NodeTypeAction}},
		[]graph.Edge{{Source: "start", Target: "a"}, {Source: "a", Target: "b"}},
	)
	require.NoError(t, err)
	return graph.NewStaticStore(g)
}

func newRunner(t *testing.T, graphs graph.Store, h *handlers, opts ...Option) *Runner {
	t.Helper()
	r, err := New(graphs, h.reg, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func run(t *testing.T, r *Runner, scope graph.Scope) *engine.Snapshot {
	t.Helper()
	h, err := r.StartRun(context.Background(), scope)
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	snap, err := h.Wait(ctx)
	require.NoError(t, err)
	return snap
}

func drain(t *testing.T, ch <-chan *event.Event) []*event.Event {
	t.Helper()
	var out []*event.Event
	timeout := time.After(5 * time.Second)
	for {
		select {
		case e, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, e)
		case <-timeout:
			t.Fatal("subscription did not close")
		}
	}
}

func TestNewRequiresStoreAndRegistry(t *testing.T) {
	_, err := New(nil, node.NewRegistry())
	assert.Error(t, err)
	_, err = New(chain(t), nil)
	assert.Error(t, err)
}

func TestFullRunIsPersisted(t *testing.T) {
	h := newHandlers(t)
	store := inmemory.New()
	r := newRunner(t, chain(t), h, WithRunStore(store))

	snap := run(t, r, graph.Full())
	assert.Equal(t, event.RunCompleted, snap.Status)
	assert.Equal(t, "b(a(start()))", snap.Node("b").Output)

	stored, err := store.Load(context.Background(), snap.RunID)
	require.NoError(t, err)
	assert.Equal(t, event.RunCompleted, stored.Status)

	latest := r.Latest()
	require.Len(t, latest, 3)
	assert.Equal(t, "a(start())", latest["a"].Output)

	persisted, err := store.Latest(context.Background())
	require.NoError(t, err)
	assert.Len(t, persisted, 3)
}

func TestCycleRejectedBeforeAnyNodeRuns(t *testing.T) {
	h := newHandlers(t)
	g, err := graph.New(
		[]graph.Node{{ID: "start", Type: graph.NodeTypeStart}, {ID: "a", Type: graph.NodeTypeAction}, {ID: "b", Type: graph.NodeTypeAction}},
		[]graph.Edge{{Source: "start", Target: "a"}, {Source: "a", Target: "b"}, {Source: "b", Target: "a"}},
	)
	require.NoError(t, err)
	r := newRunner(t, graph.NewStaticStore(g), h)

	_, err = r.StartRun(context.Background(), graph.Full())
	var cycle *graph.CycleDetected
	require.True(t, errors.As(err, &cycle))
	assert.Zero(t, h.count("start"))
	assert.Zero(t, h.count("a"))

	runs, err := r.List(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestSingleNodeWithoutUpstreamOutput(t *testing.T) {
	h := newHandlers(t)
	r := newRunner(t, chain(t), h)

	_, err := r.StartRun(context.Background(), graph.SingleNode("b", false))
	var missing *graph.MissingUpstreamOutput
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, []string{"a"}, missing.Missing)
	assert.Zero(t, h.count("b"))
}

func TestSingleNodeForceIsIdempotent(t *testing.T) {
	h := newHandlers(t)
	r := newRunner(t, chain(t), h)
	run(t, r, graph.Full())
	before := r.Latest()

	first := run(t, r, graph.SingleNode("b", true))
	second := run(t, r, graph.SingleNode("b", true))
	assert.Equal(t, []string{"b"}, first.Order)
	assert.Equal(t, first.Node("b").Output, second.Node("b").Output)
	assert.Equal(t, "b(a(start()))", second.Node("b").Output)

	after := r.Latest()
	assert.Same(t, before["start"], after["start"])
	assert.Same(t, before["a"], after["a"])
	assert.NotSame(t, before["b"], after["b"])
	assert.Equal(t, 1, h.count("a"))
	assert.Equal(t, 3, h.count("b"))
}

func TestFromNodeReadsLatestUpstream(t *testing.T) {
	h := newHandlers(t)
	r := newRunner(t, chain(t), h)
	run(t, r, graph.Full())

	snap := run(t, r, graph.FromNode("a"))
	assert.Equal(t, []string{"a", "b"}, snap.Order)
	assert.Equal(t, "a(start())", snap.Node("a").Output)
	assert.Equal(t, 1, h.count("start"))
}

func TestLatestRestoredFromStore(t *testing.T) {
	h := newHandlers(t)
	store := inmemory.New()
	graphs := chain(t)
	first, err := New(graphs, h.reg, WithRunStore(store))
	require.NoError(t, err)
	run(t, first, graph.Full())
	require.NoError(t, first.Close())

	second := newRunner(t, graphs, h, WithRunStore(store))
	snap := run(t, second, graph.SingleNode("b", false))
	assert.Equal(t, "b(a(start()))", snap.Node("b").Output)
}

func TestErrorReplacesLatestButNotPrior(t *testing.T) {
	h := newHandlers(t)
	r := newRunner(t, chain(t), h)
	run(t, r, graph.Full())

	h.on("a", func(context.Context, *node.Invocation) (*node.Result, error) {
		return nil, errors.New("boom")
	})
	snap := run(t, r, graph.SingleNode("a", false))
	assert.Equal(t, event.StatusError, snap.Node("a").Status)
	assert.Equal(t, event.StatusError, r.Latest()["a"].Status)

	_, err := r.StartRun(context.Background(), graph.SingleNode("b", false))
	var missing *graph.MissingUpstreamOutput
	assert.True(t, errors.As(err, &missing))
}

func TestCancelStopsRunAndKeepsLatest(t *testing.T) {
	h := newHandlers(t)
	started := make(chan struct{})
	r := newRunner(t, chain(t), h)
	run(t, r, graph.Full())
	before := r.Latest()["a"]

	h.on("a", func(ctx context.Context, _ *node.Invocation) (*node.Result, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	})
	handle, err := r.StartRun(context.Background(), graph.FromNode("a"))
	require.NoError(t, err)
	<-started
	require.NoError(t, r.Cancel(handle.RunID))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	snap, err := handle.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, event.RunCancelled, snap.Status)
	assert.Equal(t, string(node.KindCancelled), snap.Node("a").Error.Kind)
	assert.Equal(t, event.StatusIdle, snap.Node("b").Status)
	assert.Same(t, before, r.Latest()["a"])

	// Cancelling a finished run is a no-op.
	assert.NoError(t, r.Cancel(handle.RunID))
}

func TestSubscribeReplaysThenFollows(t *testing.T) {
	h := newHandlers(t)
	release := make(chan struct{})
	h.on("b", func(_ context.Context, inv *node.Invocation) (*node.Result, error) {
		<-release
		return &node.Result{Output: "done"}, nil
	})
	r := newRunner(t, chain(t), h)
	handle, err := r.StartRun(context.Background(), graph.Full())
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		snap, err := r.GetRun(context.Background(), handle.RunID)
		return err == nil && snap.Node("b").Status == event.StatusRunning
	}, 5*time.Second, 5*time.Millisecond)

	live, err := r.Subscribe(context.Background(), handle.RunID)
	require.NoError(t, err)
	close(release)
	events := drain(t, live)
	require.NotEmpty(t, events)
	assert.Equal(t, event.TypeRunStarted, events[0].Type)
	last := events[len(events)-1]
	assert.True(t, last.Final())
	assert.Equal(t, event.RunCompleted, last.Summary.RunStatus)

	replay, err := r.Subscribe(context.Background(), handle.RunID)
	require.NoError(t, err)
	assert.Equal(t, events, drain(t, replay))
}

func TestAgedOutRunComesFromStore(t *testing.T) {
	h := newHandlers(t)
	r := newRunner(t, chain(t), h, WithRetainedRuns(0))
	snap := run(t, r, graph.Full())

	require.Eventually(t, func() bool {
		_, ok := r.lookup(snap.RunID)
		return !ok
	}, 5*time.Second, 5*time.Millisecond)

	got, err := r.GetRun(context.Background(), snap.RunID)
	require.NoError(t, err)
	assert.Equal(t, event.RunCompleted, got.Status)

	ch, err := r.Subscribe(context.Background(), snap.RunID)
	require.NoError(t, err)
	events := drain(t, ch)
	require.Len(t, events, 1)
	assert.True(t, events[0].Final())
	assert.Equal(t, event.StatusSuccess, events[0].Summary.Nodes["b"].Status)
	assert.NoError(t, r.Cancel(snap.RunID))
}

func TestUnknownRun(t *testing.T) {
	r := newRunner(t, chain(t), newHandlers(t))
	_, err := r.GetRun(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrRunNotFound)
	assert.ErrorIs(t, r.Cancel("nope"), ErrRunNotFound)
	_, err = r.Subscribe(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestListMergesLiveAndStored(t *testing.T) {
	h := newHandlers(t)
	r := newRunner(t, chain(t), h, WithRetainedRuns(1))
	first := run(t, r, graph.Full())
	time.Sleep(2 * time.Millisecond)
	second := run(t, r, graph.Full())

	runs, err := r.List(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, second.RunID, runs[0].RunID)
	assert.Equal(t, first.RunID, runs[1].RunID)

	runs, err = r.List(context.Background(), 1)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestObserverSeesEveryRun(t *testing.T) {
	h := newHandlers(t)
	var mu sync.Mutex
	finished := 0
	obs := engine.ObserverFunc(func(e *event.Event) {
		if e.Final() {
			mu.Lock()
			finished++
			mu.Unlock()
		}
	})
	r := newRunner(t, chain(t), h, WithObserver(obs))
	run(t, r, graph.Full())
	run(t, r, graph.SingleNode("a", true))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 2, finished)
}

func TestCloseCancelsLiveRuns(t *testing.T) {
	h := newHandlers(t)
	started := make(chan struct{})
	h.on("a", func(ctx context.Context, _ *node.Invocation) (*node.Result, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	})
	store := inmemory.New()
	r, err := New(chain(t), h.reg, WithRunStore(store))
	require.NoError(t, err)
	handle, err := r.StartRun(context.Background(), graph.Full())
	require.NoError(t, err)
	<-started

	require.NoError(t, r.Close())
	select {
	case <-handle.Done():
	default:
		t.Fatal("close returned before the run was persisted")
	}
	snap, err := store.Load(context.Background(), handle.RunID)
	require.NoError(t, err)
	assert.Equal(t, event.RunCancelled, snap.Status)

	_, err = r.StartRun(context.Background(), graph.Full())
	assert.ErrorIs(t, err, ErrClosed)
	assert.NoError(t, r.Close())
}

type failingStore struct {
	runstore.Store
}

func (failingStore) Latest(context.Context) (map[string]*engine.NodeRecord, error) {
	return nil, errors.New("unavailable")
}

func TestNewFailsWhenLatestCannotBeRestored(t *testing.T) {
	_, err := New(chain(t), node.NewRegistry(), WithRunStore(failingStore{Store: inmemory.New()}))
	assert.ErrorContains(t, err, "unavailable")
}
