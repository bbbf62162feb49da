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

package graph

import (
	"fmt"
	"slices"
)

// Prior is the last successful result recorded for a node outside the
// current run, used when a partial run reads upstream data.
type Prior struct {
	Output any
	Handle string
}

// PriorLookup returns the last successful result of a node.
type PriorLookup interface {
	Prior(nodeID string) (Prior, bool)
}

// PriorMap is a PriorLookup backed by a map.
type PriorMap map[string]Prior

// Prior implements PriorLookup.
func (m PriorMap) Prior(nodeID string) (Prior, bool) {
	p, ok := m[nodeID]
	return p, ok
}

// Plan is the runnable subset of a graph for one scope. Order is a
// topological order; nodes with no path between them may run concurrently.
type Plan struct {
	Scope Scope
	// Order lists in-scope node ids so that every node follows all of its
	// in-scope predecessors.
	Order []string
	// Predecessors maps each in-scope node to its in-scope direct predecessors.
	Predecessors map[string][]string

	members map[string]bool
}

// InScope reports whether id is part of the plan.
func (p *Plan) InScope(id string) bool {
	return p.members[id]
}

// Len returns the number of nodes in the plan.
func (p *Plan) Len() int {
	return len(p.Order)
}

// Resolve computes the plan for scope. prior may be nil for full runs.
func Resolve(g *Graph, scope Scope, prior PriorLookup) (*Plan, error) {
	var members map[string]bool
	switch scope.Kind {
	case ScopeFull, "":
		scope = Full()
		members = g.reachable(g.Roots())
	case ScopeFrom:
		if !g.Has(scope.NodeID) {
			return nil, unknownNode(scope.NodeID)
		}
		members = g.reachable([]string{scope.NodeID})
	case ScopeSingle:
		if !g.Has(scope.NodeID) {
			return nil, unknownNode(scope.NodeID)
		}
		if !scope.Force {
			if err := checkUpstream(g, scope.NodeID, prior); err != nil {
				return nil, err
			}
		}
		members = map[string]bool{scope.NodeID: true}
	default:
		return nil, &ValidationError{Reason: ReasonInvalidNode,
			Message: fmt.Sprintf("unknown scope kind %q", scope.Kind)}
	}

	order, err := g.topoOrder(members)
	if err != nil {
		return nil, err
	}
	preds := make(map[string][]string, len(order))
	for _, id := range order {
		var in []string
		for _, p := range g.Predecessors(id) {
			if members[p] {
				in = append(in, p)
			}
		}
		preds[id] = in
	}
	return &Plan{Scope: scope, Order: order, Predecessors: preds, members: members}, nil
}

func unknownNode(id string) error {
	return &ValidationError{Reason: ReasonUnknownNode, NodeID: id,
		Message: fmt.Sprintf("node %s does not exist", id)}
}

func checkUpstream(g *Graph, id string, prior PriorLookup) error {
	var missing []string
	for _, p := range g.Predecessors(id) {
		if prior == nil {
			missing = append(missing, p)
			continue
		}
		if _, ok := prior.Prior(p); !ok {
			missing = append(missing, p)
		}
	}
	if len(missing) > 0 {
		return &MissingUpstreamOutput{NodeID: id, Missing: missing}
	}
	return nil
}

// topoOrder runs Kahn's algorithm over the members, breaking ties by
// declaration order so that the result is deterministic.
func (g *Graph) topoOrder(members map[string]bool) ([]string, error) {
	indeg := make(map[string]int, len(members))
	for id := range members {
		for _, j := range g.incoming[id] {
			if members[g.edges[j].Source] {
				indeg[id]++
			}
		}
	}
	var ready []int
	for id := range members {
		if indeg[id] == 0 {
			ready = append(ready, g.index[id])
		}
	}
	order := make([]string, 0, len(members))
	for len(ready) > 0 {
		slices.Sort(ready)
		id := g.nodes[ready[0]].ID
		ready = ready[1:]
		order = append(order, id)
		for _, j := range g.outgoing[id] {
			t := g.edges[j].Target
			if !members[t] {
				continue
			}
			indeg[t]--
			if indeg[t] == 0 {
				ready = append(ready, g.index[t])
			}
		}
	}
	if len(order) < len(members) {
		rest := make(map[string]bool)
		for id := range members {
			if indeg[id] > 0 {
				rest[id] = true
			}
		}
		return nil, &CycleDetected{Path: g.findCycle(rest)}
	}
	return order, nil
}

// findCycle returns one cycle among the given nodes, which must contain one.
func (g *Graph) findCycle(nodes map[string]bool) []string {
	const (
		white = iota
		grey
		black
	)
	color := make(map[string]int, len(nodes))
	var stack []string
	var cycle []string
	var visit func(id string) bool
	visit = func(id string) bool {
		color[id] = grey
		stack = append(stack, id)
		for _, j := range g.outgoing[id] {
			t := g.edges[j].Target
			if !nodes[t] {
				continue
			}
			switch color[t] {
			case grey:
				at := slices.Index(stack, t)
				cycle = append(slices.Clone(stack[at:]), t)
				return true
			case white:
				if visit(t) {
					return true
				}
			}
		}
		stack = stack[:len(stack)-1]
		color[id] = black
		return false
	}
	for _, id := range g.ordered(nodes) {
		if color[id] == white && visit(id) {
			return cycle
		}
	}
	return nil
}
