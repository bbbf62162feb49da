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

// Package engine executes a resolved plan of a workflow graph.
//
// A Session owns one run. A single coordinator goroutine holds every node
// record, decides which nodes are ready and submits them to a worker pool.
// Workers report back over a channel, so node handlers never touch run
// state directly.
package engine

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"

	"trpc.group/trpc-go/trpc-workflow-go/event"
	"trpc.group/trpc-go/trpc-workflow-go/graph"
	itelemetry "trpc.group/trpc-go/trpc-workflow-go/internal/telemetry"
	"trpc.group/trpc-go/trpc-workflow-go/log"
	"trpc.group/trpc-go/trpc-workflow-go/node"
	"trpc.group/trpc-go/trpc-workflow-go/telemetry/trace"
)

// ErrAlreadyStarted is returned by a second call to Start.
var ErrAlreadyStarted = errors.New("engine: session already started")

// nodeState is the coordinator's view of one plan node.
type nodeState struct {
	node   graph.Node
	rec    *NodeRecord
	in     []int
	out    []int
	target bool

	inFlight   bool
	executions int

	// asReceived merges only.
	received node.Inputs
	queue    node.Inputs
}

// completion is what a worker sends back after running a handler.
type completion struct {
	id        string
	exec      int
	batch     int
	res       *node.Result
	err       *node.ExecError
	startedAt time.Time
	elapsed   time.Duration

	// skipped is set when the run was cancelled before a worker took the
	// job; the handler was never called.
	skipped bool
	// unscheduled is set when the pool refused the job.
	unscheduled bool
}

// job is one queued execution waiting for a pool worker.
type job struct {
	inv  *node.Invocation
	exec int
}

// Session runs one plan to completion.
type Session struct {
	runID string
	g     *graph.Graph
	plan  *graph.Plan
	reg   *node.Registry
	opts  options
	ins   *instruments
	log   log.Logger

	pool    *ants.Pool
	ownPool bool

	edges    []graph.Edge
	state    []edgeState
	external []bool
	priors   map[int]graph.Prior

	// mu guards the fields below. Workers take it only to mark their node
	// running.
	mu         sync.RWMutex
	nodes      map[string]*nodeState
	status     event.RunStatus
	startedAt  time.Time
	finishedAt time.Time

	// Coordinator-only.
	inFlight int
	stopping bool
	failed   bool

	jobs        chan job
	completions chan *completion
	started     atomic.Bool
	done        chan struct{}

	cancelMu        sync.Mutex
	cancel          context.CancelFunc
	cancelRequested bool
}

// New prepares a session for plan. Every node in the plan must have a
// handler in reg; a missing one is reported as a *graph.ValidationError.
func New(g *graph.Graph, plan *graph.Plan, reg *node.Registry, opts ...Option) (*Session, error) {
	if g == nil || plan == nil || reg == nil {
		return nil, errors.New("engine: graph, plan and registry are required")
	}
	o := options{concurrency: defaultConcurrency}
	for _, opt := range opts {
		opt(&o)
	}
	if o.runID == "" {
		o.runID = uuid.NewString()
	}

	s := &Session{
		runID: o.runID,
		g:     g,
		plan:  plan,
		reg:   reg,
		opts:  o,
		nodes: make(map[string]*nodeState, plan.Len()),
		edges: g.Edges(),
		done:  make(chan struct{}),
	}
	for _, id := range plan.Order {
		n, ok := g.Node(id)
		if !ok {
			return nil, &graph.ValidationError{Reason: graph.ReasonUnknownNode, NodeID: id,
				Message: fmt.Sprintf("plan node %s is not in the graph", id)}
		}
		if _, ok := reg.Lookup(n.Type); !ok {
			return nil, &graph.ValidationError{Reason: graph.ReasonUnknownType, NodeID: id,
				Message: fmt.Sprintf("no handler registered for node type %q", n.Type)}
		}
		s.nodes[id] = &nodeState{
			node: n,
			rec:  &NodeRecord{NodeID: id, NodeType: n.Type, Status: event.StatusIdle},
		}
	}
	if plan.Scope.Kind == graph.ScopeSingle || plan.Scope.Kind == graph.ScopeFrom {
		if ns, ok := s.nodes[plan.Scope.NodeID]; ok {
			ns.target = true
		}
	}
	s.wireEdges()

	if o.pool != nil {
		s.pool = o.pool
	} else {
		pool, err := ants.NewPool(o.concurrency)
		if err != nil {
			return nil, fmt.Errorf("failed to create node worker pool: %w", err)
		}
		s.pool, s.ownPool = pool, true
	}
	// At most one execution per node is in flight, so workers never block
	// on a buffer of this size.
	s.jobs = make(chan job, plan.Len())
	s.completions = make(chan *completion, plan.Len())
	s.ins = newInstruments()
	s.log = log.ForRun(s.runID)
	return s, nil
}

// wireEdges indexes the in-scope edges and decides the ones entering the
// plan from outside it.
func (s *Session) wireEdges() {
	s.state = make([]edgeState, len(s.edges))
	s.external = make([]bool, len(s.edges))
	s.priors = make(map[int]graph.Prior)
	for i, e := range s.edges {
		tgt, ok := s.nodes[e.Target]
		if !ok {
			continue
		}
		tgt.in = append(tgt.in, i)
		if src, ok := s.nodes[e.Source]; ok {
			src.out = append(src.out, i)
			continue
		}
		s.external[i] = true
		s.state[i] = edgeDead
		if s.opts.prior == nil {
			continue
		}
		if p, ok := s.opts.prior.Prior(e.Source); ok && admits(e, p.Handle) {
			s.state[i] = edgeActivated
			s.priors[i] = p
			if streaming(tgt.node) {
				if in, ok := s.inputFor(i); ok {
					tgt.queue = append(tgt.queue, in)
				}
			}
		}
	}
}

// RunID returns the run id.
func (s *Session) RunID() string {
	return s.runID
}

// Plan returns the plan being executed.
func (s *Session) Plan() *graph.Plan {
	return s.plan
}

// Start launches the coordinator and returns immediately. The run stops
// when ctx is cancelled, as if Cancel had been called.
func (s *Session) Start(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}
	ctx, span := trace.Tracer.Start(ctx, itelemetry.SpanNameRun)
	itelemetry.TraceRun(span, s.runID, s.plan.Scope.String(), s.plan.Len())

	runCtx, cancel := context.WithCancel(ctx)
	s.cancelMu.Lock()
	s.cancel = cancel
	if s.cancelRequested {
		cancel()
	}
	s.cancelMu.Unlock()

	s.mu.Lock()
	s.status = event.RunRunning
	s.startedAt = time.Now()
	s.mu.Unlock()

	s.log.Infof("run started: scope=%s nodes=%d", s.plan.Scope, s.plan.Len())
	s.emit(event.New(s.runID, event.TypeRunStarted))
	go s.feed(runCtx)
	go s.loop(runCtx, span)
	return nil
}

// Cancel stops the run. Nodes already running finish as cancelled and no
// further node starts. Cancel before Start makes the run end immediately.
func (s *Session) Cancel() {
	s.cancelMu.Lock()
	defer s.cancelMu.Unlock()
	s.cancelRequested = true
	if s.cancel != nil {
		s.cancel()
	}
}

// Done is closed once the run has finished and its final event was sent.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Wait blocks until the run finishes or ctx ends, and returns the final
// snapshot.
func (s *Session) Wait(ctx context.Context) (*Snapshot, error) {
	select {
	case <-s.done:
		return s.Snapshot(), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Status returns the current run status.
func (s *Session) Status() event.RunStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Snapshot returns a copy of the run state.
func (s *Session) Snapshot() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() *Snapshot {
	snap := &Snapshot{
		RunID:      s.runID,
		Scope:      s.plan.Scope,
		Status:     s.status,
		StartedAt:  s.startedAt,
		FinishedAt: s.finishedAt,
		Order:      append([]string(nil), s.plan.Order...),
		Nodes:      make(map[string]*NodeRecord, len(s.nodes)),
	}
	for id, ns := range s.nodes {
		snap.Nodes[id] = ns.rec.clone()
	}
	return snap
}

func (s *Session) locked(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn()
}

// loop is the coordinator.
func (s *Session) loop(ctx context.Context, span oteltrace.Span) {
	status := event.RunCompleted
	defer func() {
		if p := recover(); p != nil {
			s.log.Errorf("coordinator panic: %v\n%s", p, debug.Stack())
			status = event.RunFailed
		}
		close(s.jobs)
		s.finish(ctx, span, status)
	}()

	s.locked(func() {
		if ctx.Err() != nil {
			s.stopping = true
			return
		}
		s.settle(ctx, s.plan.Order...)
	})
	cancelled := ctx.Done()
	for s.inFlight > 0 {
		select {
		case c := <-s.completions:
			s.locked(func() { s.apply(ctx, c) })
		case <-cancelled:
			cancelled = nil
			s.locked(func() { s.stopping = true })
			s.log.Infof("cancelling, %d node(s) in flight", s.inFlight)
		}
	}
	s.locked(s.abandon)

	switch {
	case s.failed:
		status = event.RunFailed
	case s.stopping || ctx.Err() != nil:
		status = event.RunCancelled
	}
}

// abandon closes the nodes a cancellation left running between executions.
// Each ends as a cancelled error keeping its last output.
func (s *Session) abandon() {
	if !s.stopping {
		return
	}
	for _, id := range s.plan.Order {
		ns := s.nodes[id]
		if ns.rec.Status != event.StatusRunning {
			continue
		}
		ns.rec.Error = errorInfo(node.Cancelled(id, ns.rec.Output))
		s.terminate(ns, event.StatusError)
	}
}

func (s *Session) finish(ctx context.Context, span oteltrace.Span, status event.RunStatus) {
	var snap *Snapshot
	s.locked(func() {
		s.status = status
		s.finishedAt = time.Now()
		snap = s.snapshotLocked()
	})
	s.cancelMu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.cancelMu.Unlock()
	if s.ownPool {
		s.pool.Release()
	}

	span.SetAttributes(attribute.String(itelemetry.KeyRunStatus, string(status)))
	if status == event.RunFailed {
		span.SetStatus(codes.Error, "run failed")
	}
	span.End()
	s.ins.recordRun(context.WithoutCancel(ctx), string(s.plan.Scope.Kind), string(status))

	s.log.Infof("run finished: %s in %s", status, snap.FinishedAt.Sub(snap.StartedAt))
	s.emit(event.New(s.runID, event.TypeRunFinished, event.WithSummary(snap.Summary())))
	close(s.done)
}

// dispatch queues one execution of ns. Its record turns running once a
// worker picks the job up.
func (s *Session) dispatch(ns *nodeState, inputs, batch node.Inputs) {
	ns.inFlight = true
	ns.executions++
	s.inFlight++
	exec := ns.executions

	n := ns.node
	inv := &node.Invocation{
		RunID:  s.runID,
		Node:   n,
		Inputs: inputs,
		Batch:  batch,
		Emit: func(partial any) {
			e := event.New(s.runID, event.TypeNodePartial,
				event.WithNode(n.ID, string(n.Type)),
				event.WithPartial(partial),
			)
			e.Execution = exec
			s.emit(e)
		},
	}
	// One job per in-flight node at most, so the buffer never fills.
	s.jobs <- job{inv: inv, exec: exec}
}

// feed hands queued jobs to the pool. Submit blocks while the pool is
// saturated, so this runs outside the coordinator and never holds mu.
func (s *Session) feed(ctx context.Context) {
	for j := range s.jobs {
		id := j.inv.Node.ID
		if ctx.Err() != nil {
			s.completions <- &completion{id: id, exec: j.exec, skipped: true}
			continue
		}
		if err := s.pool.Submit(func() {
			s.completions <- s.work(ctx, j)
		}); err != nil {
			log.ForNode(s.runID, id).Errorf("submit to worker pool: %v", err)
			ee := &node.ExecError{NodeID: id, Kind: node.KindNode,
				Message: fmt.Sprintf("schedule node: %v", err), Err: err}
			s.completions <- &completion{id: id, exec: j.exec, err: ee, startedAt: time.Now(), unscheduled: true}
		}
	}
}

// work runs on a pool worker. A job whose run was cancelled while it
// waited is dropped without calling the handler.
func (s *Session) work(ctx context.Context, j job) *completion {
	skip := false
	s.locked(func() {
		if ctx.Err() != nil {
			skip = true
			return
		}
		s.markRunning(s.nodes[j.inv.Node.ID], j.exec)
	})
	if skip {
		return &completion{id: j.inv.Node.ID, exec: j.exec, skipped: true}
	}
	return s.execute(ctx, j.inv, j.exec)
}

func (s *Session) markRunning(ns *nodeState, exec int) {
	if ns.rec.Status == event.StatusRunning {
		return
	}
	ns.rec.Status = event.StatusRunning
	ns.rec.StartedAt = time.Now()
	s.emit(event.New(s.runID, event.TypeNodeStatus,
		event.WithNode(ns.node.ID, string(ns.node.Type)),
		event.WithStatus(event.StatusRunning),
		event.WithExecution(exec, 0),
	))
}

// execute runs on a pool worker.
func (s *Session) execute(ctx context.Context, inv *node.Invocation, exec int) *completion {
	ctx, span := trace.Tracer.Start(ctx, itelemetry.SpanNameNode)
	defer span.End()
	itelemetry.TraceNode(span, s.runID, inv.Node.ID, string(inv.Node.Type), exec, inv.Inputs)

	start := time.Now()
	res, err := s.reg.Execute(ctx, inv)
	c := &completion{
		id:        inv.Node.ID,
		exec:      exec,
		batch:     len(inv.Batch),
		res:       res,
		startedAt: start,
		elapsed:   time.Since(start),
	}
	if err != nil {
		c.err = node.Wrap(inv.Node.ID, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		itelemetry.TraceNodeResult(span, string(event.StatusError), "", c.err.Partial, string(c.err.Kind), c.elapsed)
		return c
	}
	itelemetry.TraceNodeResult(span, string(event.StatusSuccess), res.Handle, res.Output, "", c.elapsed)
	return c
}

// apply folds a completion into the run.
func (s *Session) apply(ctx context.Context, c *completion) {
	ns := s.nodes[c.id]
	ns.inFlight = false
	s.inFlight--

	switch {
	case c.skipped:
		ns.executions--
		s.stopping = true
		return
	case c.unscheduled:
		s.failed, s.stopping = true, true
		s.record(ns, c)
		s.terminate(ns, event.StatusError)
		return
	}

	if s.stopping || ctx.Err() != nil {
		s.stopping = true
		var partial any
		switch {
		case c.err != nil:
			partial = c.err.Partial
		case c.res != nil:
			partial = c.res.Output
		}
		c.res, c.err = nil, node.Cancelled(c.id, partial)
	}

	status := s.record(ns, c)
	s.ins.recordNode(context.WithoutCancel(ctx), string(ns.node.Type), string(status), c.elapsed)
	if status == event.StatusError {
		log.ForNode(s.runID, c.id).Warnf("node failed: %v", c.err)
	}

	if streaming(ns.node) && !s.stopping {
		if len(ns.queue) == 0 && s.counts(ns).pending == 0 {
			s.settle(ctx, s.terminate(ns, status)...)
			return
		}
		s.emit(event.New(s.runID, event.TypeNodeStatus,
			event.WithNode(ns.node.ID, string(ns.node.Type)),
			event.WithStatus(event.StatusRunning),
			event.WithOutput(ns.rec.Output, ns.rec.Handle),
			event.WithError(ns.rec.Error),
			event.WithExecution(c.exec, c.elapsed),
		))
		s.settle(ctx, ns.node.ID)
		return
	}
	s.settle(ctx, s.terminate(ns, status)...)
}

// record appends the execution to the node record and returns its status.
func (s *Session) record(ns *nodeState, c *completion) event.NodeStatus {
	x := Execution{
		Batch:           c.batch,
		StartedAt:       c.startedAt,
		FinishedAt:      c.startedAt.Add(c.elapsed),
		ExecutionTimeMs: c.elapsed.Milliseconds(),
	}
	if c.err != nil {
		x.Status = event.StatusError
		x.Output = c.err.Partial
		x.Error = errorInfo(c.err)
	} else {
		x.Status = event.StatusSuccess
		x.Output = c.res.Output
		x.Handle = c.res.Handle
		x.Details = c.res.Details
	}
	rec := ns.rec
	rec.Executions = append(rec.Executions, x)
	rec.ExecutionTimeMs += x.ExecutionTimeMs
	rec.Output, rec.Handle, rec.Error, rec.Details = x.Output, x.Handle, x.Error, x.Details
	return x.Status
}

func (s *Session) emit(e *event.Event) {
	if s.opts.observer != nil {
		s.opts.observer.Observe(e)
	}
}
