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

// Package event defines the observable stream of a workflow run.
package event

import (
	"time"

	"github.com/google/uuid"
)

// NodeStatus is the lifecycle state of a node within one run.
type NodeStatus string

// Node statuses. success, error and bypassed are terminal.
const (
	StatusIdle     NodeStatus = "idle"
	StatusRunning  NodeStatus = "running"
	StatusSuccess  NodeStatus = "success"
	StatusError    NodeStatus = "error"
	StatusBypassed NodeStatus = "bypassed"
)

// Terminal reports whether s is final for the run.
func (s NodeStatus) Terminal() bool {
	return s == StatusSuccess || s == StatusError || s == StatusBypassed
}

// RunStatus is the state of a whole run.
type RunStatus string

// Run statuses.
const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunCancelled RunStatus = "cancelled"
	RunFailed    RunStatus = "failed"
)

// Done reports whether the run has finished.
func (s RunStatus) Done() bool {
	return s == RunCompleted || s == RunCancelled || s == RunFailed
}

// Type distinguishes events.
type Type string

// Event types.
const (
	TypeRunStarted  Type = "run.started"
	TypeNodeStatus  Type = "node.status"
	TypeNodePartial Type = "node.partial"
	TypeRunFinished Type = "run.finished"
)

// ErrorInfo is the serializable form of a node failure.
type ErrorInfo struct {
	Kind    string         `json:"kind"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// NodeSummary is the final state of one node.
type NodeSummary struct {
	Status          NodeStatus `json:"status"`
	Executions      int        `json:"executions"`
	ExecutionTimeMs int64      `json:"executionTimeMs"`
	Error           *ErrorInfo `json:"error,omitempty"`
}

// RunSummary is attached to the final event of a run.
type RunSummary struct {
	RunStatus RunStatus              `json:"runStatus"`
	Nodes     map[string]NodeSummary `json:"nodes"`
}

// Event is one observable change in a run.
type Event struct {
	ID        string    `json:"id"`
	RunID     string    `json:"runId"`
	Type      Type      `json:"type"`
	Timestamp time.Time `json:"timestamp"`

	NodeID   string     `json:"nodeId,omitempty"`
	NodeType string     `json:"nodeType,omitempty"`
	Status   NodeStatus `json:"status,omitempty"`
	Output   any        `json:"output,omitempty"`
	Handle   string     `json:"handle,omitempty"`
	Error    *ErrorInfo `json:"error,omitempty"`
	// Partial carries one streamed chunk on node.partial events.
	Partial         any   `json:"partial,omitempty"`
	ExecutionTimeMs int64 `json:"executionTimeMs,omitempty"`
	// Execution numbers the executions of a node within the run, from 1.
	Execution int `json:"execution,omitempty"`

	// Summary is set on the run.finished event only.
	Summary *RunSummary `json:"summary,omitempty"`
}

// Option configures an Event.
type Option func(*Event)

// WithNode sets the node the event is about.
func WithNode(id, nodeType string) Option {
	return func(e *Event) {
		e.NodeID = id
		e.NodeType = nodeType
	}
}

// WithStatus sets the node status.
func WithStatus(s NodeStatus) Option {
	return func(e *Event) {
		e.Status = s
	}
}

// WithOutput sets the node output and selected handle.
func WithOutput(output any, handle string) Option {
	return func(e *Event) {
		e.Output = output
		e.Handle = handle
	}
}

// WithError sets the failure.
func WithError(info *ErrorInfo) Option {
	return func(e *Event) {
		e.Error = info
	}
}

// WithPartial sets a streamed chunk.
func WithPartial(chunk any) Option {
	return func(e *Event) {
		e.Partial = chunk
	}
}

// WithExecution sets the execution index and its duration.
func WithExecution(n int, d time.Duration) Option {
	return func(e *Event) {
		e.Execution = n
		e.ExecutionTimeMs = d.Milliseconds()
	}
}

// WithSummary attaches the run summary.
func WithSummary(s *RunSummary) Option {
	return func(e *Event) {
		e.Summary = s
	}
}

// New creates an event with a fresh id and timestamp.
func New(runID string, typ Type, opts ...Option) *Event {
	e := &Event{
		ID:        uuid.New().String(),
		RunID:     runID,
		Type:      typ,
		Timestamp: time.Now(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Final reports whether e closes its run's stream.
func (e *Event) Final() bool {
	return e != nil && e.Type == TypeRunFinished
}
