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

// Package node defines the contract between the run session and node
// handlers, and the registry mapping node types to handlers.
//
// Handlers are pure with respect to engine state: they read the node's
// config and their inputs, and return a result or an error. Status
// bookkeeping belongs to the session.
package node

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"trpc.group/trpc-go/trpc-workflow-go/graph"
)

// Handler executes one node.
type Handler interface {
	Execute(ctx context.Context, inv *Invocation) (*Result, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, inv *Invocation) (*Result, error)

// Execute implements Handler.
func (f HandlerFunc) Execute(ctx context.Context, inv *Invocation) (*Result, error) {
	return f(ctx, inv)
}

// Invocation is the input to a single handler execution.
type Invocation struct {
	RunID string
	Node  graph.Node
	// Inputs holds one entry per activated incoming edge whose source has
	// an output. Absent upstream output is simply missing.
	Inputs Inputs
	// Batch holds the arrivals that triggered this execution of an
	// asReceived merge. It equals Inputs for every other node.
	Batch Inputs
	// Emit publishes intermediate output, such as streamed text.
	Emit func(partial any)
}

// EmitPartial calls Emit when set.
func (inv *Invocation) EmitPartial(v any) {
	if inv.Emit != nil {
		inv.Emit(v)
	}
}

// Result is what a handler returns on success. Handle selects the branch
// for multi-output nodes; out-edges with a different non-empty source
// handle are not activated.
type Result struct {
	Output  any
	Handle  string
	Details map[string]any
}

// Input is the value carried by one incoming edge.
type Input struct {
	// Key is the edge's target handle, or the source node id.
	Key          string `json:"key"`
	SourceID     string `json:"sourceId"`
	SourceHandle string `json:"sourceHandle,omitempty"`
	Value        any    `json:"value"`
}

// Inputs is an ordered list of inputs.
type Inputs []Input

// Get returns the first value stored under key.
func (in Inputs) Get(key string) (any, bool) {
	for _, i := range in {
		if i.Key == key {
			return i.Value, true
		}
	}
	return nil, false
}

// Values returns the values in order.
func (in Inputs) Values() []any {
	out := make([]any, len(in))
	for i, v := range in {
		out[i] = v.Value
	}
	return out
}

// Map returns the values keyed by input key. Later duplicates win.
func (in Inputs) Map() map[string]any {
	out := make(map[string]any, len(in))
	for _, v := range in {
		out[v.Key] = v.Value
	}
	return out
}

// Text joins the textual form of every non-empty value with sep.
func (in Inputs) Text(sep string) string {
	parts := make([]string, 0, len(in))
	for _, v := range in {
		if s := ToText(v.Value); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, sep)
}

// textKeys are consulted, in order, when a map value is rendered as text.
var textKeys = []string{"text", "content", "transcript"}

// ToText renders a node output as text. Maps carrying a text-like field
// yield that field; other composite values are JSON encoded.
func ToText(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	case fmt.Stringer:
		return t.String()
	case map[string]any:
		for _, k := range textKeys {
			if s, ok := t[k].(string); ok {
				return s
			}
		}
	}
	switch v.(type) {
	case bool, int, int64, float64:
		return fmt.Sprint(v)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}
