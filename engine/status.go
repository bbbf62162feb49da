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
	"maps"
	"time"

	"trpc.group/trpc-go/trpc-workflow-go/event"
	"trpc.group/trpc-go/trpc-workflow-go/graph"
	"trpc.group/trpc-go/trpc-workflow-go/node"
)

// Execution is one run of a node's handler. asReceived merges may have
// several per run; every other node has at most one.
type Execution struct {
	Status          event.NodeStatus `json:"status"`
	Output          any              `json:"output,omitempty"`
	Handle          string           `json:"handle,omitempty"`
	Error           *event.ErrorInfo `json:"error,omitempty"`
	Details         map[string]any   `json:"details,omitempty"`
	Batch           int              `json:"batch,omitempty"`
	StartedAt       time.Time        `json:"startedAt"`
	FinishedAt      time.Time        `json:"finishedAt"`
	ExecutionTimeMs int64            `json:"executionTimeMs"`
}

// NodeRecord is the state of one node within a run.
type NodeRecord struct {
	NodeID   string           `json:"nodeId"`
	NodeType graph.NodeType   `json:"nodeType"`
	Status   event.NodeStatus `json:"status"`
	Output   any              `json:"output,omitempty"`
	Handle   string           `json:"handle,omitempty"`
	Error    *event.ErrorInfo `json:"error,omitempty"`
	Details  map[string]any   `json:"details,omitempty"`

	StartedAt       time.Time `json:"startedAt,omitzero"`
	FinishedAt      time.Time `json:"finishedAt,omitzero"`
	ExecutionTimeMs int64     `json:"executionTimeMs"`

	Executions []Execution `json:"executions,omitempty"`
}

func (r *NodeRecord) clone() *NodeRecord {
	out := *r
	out.Error = cloneErrorInfo(r.Error)
	if r.Executions != nil {
		out.Executions = make([]Execution, len(r.Executions))
		for i, x := range r.Executions {
			x.Error = cloneErrorInfo(x.Error)
			out.Executions[i] = x
		}
	}
	return &out
}

func (r *NodeRecord) summary() event.NodeSummary {
	return event.NodeSummary{
		Status:          r.Status,
		Executions:      len(r.Executions),
		ExecutionTimeMs: r.ExecutionTimeMs,
		Error:           cloneErrorInfo(r.Error),
	}
}

func cloneErrorInfo(e *event.ErrorInfo) *event.ErrorInfo {
	if e == nil {
		return nil
	}
	out := *e
	out.Details = maps.Clone(e.Details)
	return &out
}

// Snapshot is a point-in-time copy of a run. Outputs are shared with the
// engine and must be treated as read-only.
type Snapshot struct {
	RunID      string                 `json:"runId"`
	Scope      graph.Scope            `json:"scope"`
	Status     event.RunStatus        `json:"status"`
	StartedAt  time.Time              `json:"startedAt,omitzero"`
	FinishedAt time.Time              `json:"finishedAt,omitzero"`
	Order      []string               `json:"order"`
	Nodes      map[string]*NodeRecord `json:"nodes"`
}

// Node returns the record of id, or nil when id is not part of the run.
func (s *Snapshot) Node(id string) *NodeRecord {
	if s == nil {
		return nil
	}
	return s.Nodes[id]
}

// Summary condenses the snapshot into the form carried by run.finished.
func (s *Snapshot) Summary() *event.RunSummary {
	sum := &event.RunSummary{RunStatus: s.Status, Nodes: make(map[string]event.NodeSummary, len(s.Nodes))}
	for id, rec := range s.Nodes {
		sum.Nodes[id] = rec.summary()
	}
	return sum
}

func errorInfo(ee *node.ExecError) *event.ErrorInfo {
	if ee == nil {
		return nil
	}
	return &event.ErrorInfo{Kind: string(ee.Kind), Message: ee.Message, Details: maps.Clone(ee.Details)}
}
