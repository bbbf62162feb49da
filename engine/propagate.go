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
	"context"
	"slices"
	"time"

	"trpc.group/trpc-go/trpc-workflow-go/event"
	"trpc.group/trpc-go/trpc-workflow-go/graph"
	"trpc.group/trpc-go/trpc-workflow-go/node"
)

// settle applies the readiness decision to every node in the worklist.
// Bypassed nodes push their successors, so a dead branch collapses in one
// pass without running anything.
func (s *Session) settle(ctx context.Context, ids ...string) {
	if ctx.Err() != nil {
		s.stopping = true
		return
	}
	work := slices.Clone(ids)
	for len(work) > 0 && !s.stopping {
		ns := s.nodes[work[0]]
		work = work[1:]
		if ns.rec.Status.Terminal() {
			continue
		}
		if streaming(ns.node) {
			work = append(work, s.pump(ns)...)
			continue
		}
		if ns.inFlight {
			continue
		}
		switch decide(ns.node, s.counts(ns), ns.target) {
		case decideRun:
			inputs := s.collect(ns)
			s.dispatch(ns, inputs, inputs)
		case decideBypass:
			work = append(work, s.terminate(ns, event.StatusBypassed)...)
		}
	}
}

// pump drives an asReceived merge: it starts the next batch when idle, and
// closes the node once every edge is decided and the queue is drained.
// It returns the successors to revisit when the node terminated.
func (s *Session) pump(ns *nodeState) []string {
	if ns.inFlight {
		return nil
	}
	if len(ns.queue) > 0 {
		var batch node.Inputs
		if ns.node.BatchMode() == graph.BatchEach {
			batch, ns.queue = ns.queue[:1:1], ns.queue[1:]
		} else {
			batch, ns.queue = ns.queue, nil
		}
		ns.received = append(ns.received, batch...)
		s.dispatch(ns, slices.Clone(ns.received), slices.Clone(batch))
		return nil
	}
	if s.counts(ns).pending > 0 {
		return nil
	}
	if ns.executions == 0 {
		if ns.target {
			s.dispatch(ns, nil, nil)
			return nil
		}
		return s.terminate(ns, event.StatusBypassed)
	}
	last := ns.rec.Executions[len(ns.rec.Executions)-1]
	return s.terminate(ns, last.Status)
}

// terminate moves ns to a terminal status, emits its event and decides its
// out-edges. It returns the successors whose readiness may have changed.
func (s *Session) terminate(ns *nodeState, status event.NodeStatus) []string {
	rec := ns.rec
	rec.Status = status
	rec.FinishedAt = time.Now()
	if status == event.StatusBypassed {
		rec.Output, rec.Handle, rec.Error = nil, "", nil
	}
	s.emit(event.New(s.runID, event.TypeNodeStatus,
		event.WithNode(ns.node.ID, string(ns.node.Type)),
		event.WithStatus(status),
		event.WithOutput(rec.Output, rec.Handle),
		event.WithError(rec.Error),
		event.WithExecution(len(rec.Executions), time.Duration(rec.ExecutionTimeMs)*time.Millisecond),
	))
	if s.stopping {
		return nil
	}

	var next []string
	for _, i := range ns.out {
		e := s.edges[i]
		if status == event.StatusSuccess && admits(e, rec.Handle) {
			s.state[i] = edgeActivated
			if tgt := s.nodes[e.Target]; streaming(tgt.node) {
				if in, ok := s.inputFor(i); ok {
					tgt.queue = append(tgt.queue, in)
				}
			}
		} else {
			s.state[i] = edgeDead
		}
		if !slices.Contains(next, e.Target) {
			next = append(next, e.Target)
		}
	}
	return next
}

func (s *Session) counts(ns *nodeState) edgeCounts {
	var c edgeCounts
	for _, i := range ns.in {
		switch s.state[i] {
		case edgeActivated:
			c.activated++
		case edgeDead:
			c.dead++
		default:
			c.pending++
		}
	}
	return c
}

// collect gathers the inputs of a node from its activated edges, in edge
// declaration order.
func (s *Session) collect(ns *nodeState) node.Inputs {
	var out node.Inputs
	for _, i := range ns.in {
		if s.state[i] != edgeActivated {
			continue
		}
		if in, ok := s.inputFor(i); ok {
			out = append(out, in)
		}
	}
	return out
}

// inputFor reads the value an activated edge carries. A source without
// output contributes nothing.
func (s *Session) inputFor(i int) (node.Input, bool) {
	e := s.edges[i]
	var v any
	if s.external[i] {
		v = s.priors[i].Output
	} else if src, ok := s.nodes[e.Source]; ok {
		v = src.rec.Output
	}
	if v == nil {
		return node.Input{}, false
	}
	key := e.TargetHandle
	if key == "" {
		key = e.Source
	}
	return node.Input{Key: key, SourceID: e.Source, SourceHandle: e.SourceHandle, Value: v}, true
}
