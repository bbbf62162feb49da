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

// Package graph provides the immutable workflow graph model and the
// dependency resolver that turns a run scope into a runnable plan.
package graph

import (
	"fmt"
	"slices"
)

// NodeType is the closed set of node kinds understood by the engine.
type NodeType string

// Node types.
const (
	NodeTypeSource    NodeType = "source"
	NodeTypePrompt    NodeType = "prompt"
	NodeTypeTemplate  NodeType = "template"
	NodeTypeAction    NodeType = "action"
	NodeTypeCondition NodeType = "condition"
	NodeTypeMerge     NodeType = "merge"
	NodeTypeTrigger   NodeType = "trigger"
	NodeTypeStart     NodeType = "start"
	NodeTypeOutput    NodeType = "output"
	NodeTypeConnector NodeType = "connector"
)

// NodeTypes lists every known node type in declaration order.
var NodeTypes = []NodeType{
	NodeTypeSource,
	NodeTypePrompt,
	NodeTypeTemplate,
	NodeTypeAction,
	NodeTypeCondition,
	NodeTypeMerge,
	NodeTypeTrigger,
	NodeTypeStart,
	NodeTypeOutput,
	NodeTypeConnector,
}

// Valid reports whether t is one of the known node types.
func (t NodeType) Valid() bool {
	return slices.Contains(NodeTypes, t)
}

// IsRoot reports whether nodes of this type start a flow.
func (t NodeType) IsRoot() bool {
	return t == NodeTypeStart || t == NodeTypeTrigger
}

// Node is a typed unit of work.
type Node struct {
	ID       string         `json:"id" yaml:"id"`
	Type     NodeType       `json:"type" yaml:"type"`
	Label    string         `json:"label,omitempty" yaml:"label,omitempty"`
	Config   map[string]any `json:"config,omitempty" yaml:"config,omitempty"`
	ParentID string         `json:"parentId,omitempty" yaml:"parentId,omitempty"`
}

// Edge is a directed link between two nodes. SourceHandle selects a branch
// on multi-output nodes; TargetHandle names the input slot on the target.
type Edge struct {
	ID           string `json:"id,omitempty" yaml:"id,omitempty"`
	Source       string `json:"source" yaml:"source"`
	Target       string `json:"target" yaml:"target"`
	SourceHandle string `json:"sourceHandle,omitempty" yaml:"sourceHandle,omitempty"`
	TargetHandle string `json:"targetHandle,omitempty" yaml:"targetHandle,omitempty"`
}

// Name returns the edge ID or a synthesized "source->target" name.
func (e Edge) Name() string {
	if e.ID != "" {
		return e.ID
	}
	if e.SourceHandle != "" {
		return fmt.Sprintf("%s:%s->%s", e.Source, e.SourceHandle, e.Target)
	}
	return e.Source + "->" + e.Target
}

// Graph is a validated, read-only snapshot of nodes and edges.
// All accessors return copies so callers cannot mutate the snapshot.
type Graph struct {
	nodes    []Node
	index    map[string]int
	edges    []Edge
	incoming map[string][]int
	outgoing map[string][]int
}

// New builds a graph snapshot and validates its structure.
func New(nodes []Node, edges []Edge) (*Graph, error) {
	g := &Graph{
		nodes:    make([]Node, 0, len(nodes)),
		index:    make(map[string]int, len(nodes)),
		edges:    make([]Edge, 0, len(edges)),
		incoming: make(map[string][]int),
		outgoing: make(map[string][]int),
	}
	for _, n := range nodes {
		if err := g.addNode(n); err != nil {
			return nil, err
		}
	}
	for _, e := range edges {
		if err := g.addEdge(e); err != nil {
			return nil, err
		}
	}
	return g, nil
}

func (g *Graph) addNode(n Node) error {
	if n.ID == "" {
		return &ValidationError{Reason: ReasonInvalidNode, Message: "node id cannot be empty"}
	}
	if _, exists := g.index[n.ID]; exists {
		return &ValidationError{Reason: ReasonDuplicateNode, NodeID: n.ID,
			Message: fmt.Sprintf("node %s already exists", n.ID)}
	}
	if !n.Type.Valid() {
		return &ValidationError{Reason: ReasonUnknownType, NodeID: n.ID,
			Message: fmt.Sprintf("node %s has unknown type %q", n.ID, n.Type)}
	}
	n.Config = cloneConfig(n.Config)
	g.index[n.ID] = len(g.nodes)
	g.nodes = append(g.nodes, n)
	return nil
}

func (g *Graph) addEdge(e Edge) error {
	src, ok := g.node(e.Source)
	if !ok {
		return &ValidationError{Reason: ReasonDanglingEdge, EdgeID: e.Name(),
			Message: fmt.Sprintf("source node %s does not exist", e.Source)}
	}
	dst, ok := g.node(e.Target)
	if !ok {
		return &ValidationError{Reason: ReasonDanglingEdge, EdgeID: e.Name(),
			Message: fmt.Sprintf("target node %s does not exist", e.Target)}
	}
	if e.Source == e.Target {
		return &CycleDetected{Path: []string{e.Source, e.Target}}
	}
	if dst.Type.IsRoot() {
		return &ValidationError{Reason: ReasonInvalidEdge, EdgeID: e.Name(), NodeID: dst.ID,
			Message: fmt.Sprintf("%s node %s cannot have incoming edges", dst.Type, dst.ID)}
	}
	if src.Type == NodeTypeCondition && e.SourceHandle == "" {
		return &ValidationError{Reason: ReasonInvalidEdge, EdgeID: e.Name(), NodeID: src.ID,
			Message: fmt.Sprintf("edge from condition node %s requires a source handle", src.ID)}
	}
	i := len(g.edges)
	g.edges = append(g.edges, e)
	g.outgoing[e.Source] = append(g.outgoing[e.Source], i)
	g.incoming[e.Target] = append(g.incoming[e.Target], i)
	return nil
}

func (g *Graph) node(id string) (Node, bool) {
	i, ok := g.index[id]
	if !ok {
		return Node{}, false
	}
	return g.nodes[i], true
}

// Node returns the node with the given id.
func (g *Graph) Node(id string) (Node, bool) {
	n, ok := g.node(id)
	if ok {
		n.Config = cloneConfig(n.Config)
	}
	return n, ok
}

// Has reports whether the graph contains a node with the given id.
func (g *Graph) Has(id string) bool {
	_, ok := g.index[id]
	return ok
}

// Nodes returns all nodes in declaration order.
func (g *Graph) Nodes() []Node {
	out := make([]Node, len(g.nodes))
	for i, n := range g.nodes {
		n.Config = cloneConfig(n.Config)
		out[i] = n
	}
	return out
}

// Edges returns all edges in declaration order.
func (g *Graph) Edges() []Edge {
	return slices.Clone(g.edges)
}

// Incoming returns the edges that end at id.
func (g *Graph) Incoming(id string) []Edge {
	return g.pick(g.incoming[id])
}

// Outgoing returns the edges that start at id.
func (g *Graph) Outgoing(id string) []Edge {
	return g.pick(g.outgoing[id])
}

func (g *Graph) pick(idx []int) []Edge {
	out := make([]Edge, len(idx))
	for i, j := range idx {
		out[i] = g.edges[j]
	}
	return out
}

// Predecessors returns the distinct source node ids of edges into id.
func (g *Graph) Predecessors(id string) []string {
	return distinct(g.incoming[id], func(e Edge) string { return e.Source }, g.edges)
}

// Successors returns the distinct target node ids of edges out of id.
func (g *Graph) Successors(id string) []string {
	return distinct(g.outgoing[id], func(e Edge) string { return e.Target }, g.edges)
}

func distinct(idx []int, key func(Edge) string, edges []Edge) []string {
	seen := make(map[string]bool, len(idx))
	var out []string
	for _, j := range idx {
		k := key(edges[j])
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	return out
}

// Roots returns the nodes a full run starts from: every start or trigger
// node, plus every node without incoming edges that feeds at least one
// other node. Isolated non-root nodes are not roots.
func (g *Graph) Roots() []string {
	var roots []string
	for _, n := range g.nodes {
		if len(g.incoming[n.ID]) > 0 {
			continue
		}
		if n.Type.IsRoot() || len(g.outgoing[n.ID]) > 0 {
			roots = append(roots, n.ID)
		}
	}
	return roots
}

// Descendants returns every node reachable forward from id, excluding id.
func (g *Graph) Descendants(id string) []string {
	reach := g.reachable([]string{id})
	delete(reach, id)
	return g.ordered(reach)
}

// reachable returns the forward closure of the given start nodes.
func (g *Graph) reachable(from []string) map[string]bool {
	seen := make(map[string]bool)
	stack := slices.Clone(from)
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[id] {
			continue
		}
		seen[id] = true
		for _, j := range g.outgoing[id] {
			if t := g.edges[j].Target; !seen[t] {
				stack = append(stack, t)
			}
		}
	}
	return seen
}

// ordered returns the members of set in node declaration order.
func (g *Graph) ordered(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for _, n := range g.nodes {
		if set[n.ID] {
			out = append(out, n.ID)
		}
	}
	return out
}

func cloneConfig(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
