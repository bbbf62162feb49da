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

package node

import (
	"context"
	"fmt"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"trpc.group/trpc-go/trpc-workflow-go/graph"
	"trpc.group/trpc-go/trpc-workflow-go/log"
)

// Registry maps node types to handlers.
type Registry struct {
	mu             sync.RWMutex
	entries        map[graph.NodeType]entry
	defaultTimeout time.Duration
}

type entry struct {
	handler Handler
	timeout time.Duration
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithDefaultTimeout sets the deadline applied to types registered
// without their own timeout. Zero means no deadline.
func WithDefaultTimeout(d time.Duration) RegistryOption {
	return func(r *Registry) {
		r.defaultTimeout = d
	}
}

// RegisterOption configures one registration.
type RegisterOption func(*entry)

// WithTimeout sets a per-type execution deadline.
func WithTimeout(d time.Duration) RegisterOption {
	return func(e *entry) {
		e.timeout = d
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{entries: make(map[graph.NodeType]entry)}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register installs h for t, replacing any previous handler.
func (r *Registry) Register(t graph.NodeType, h Handler, opts ...RegisterOption) error {
	if !t.Valid() {
		return fmt.Errorf("register handler: unknown node type %q", t)
	}
	if h == nil {
		return fmt.Errorf("register handler: nil handler for %q", t)
	}
	e := entry{handler: h, timeout: -1}
	for _, opt := range opts {
		opt(&e)
	}
	r.mu.Lock()
	r.entries[t] = e
	r.mu.Unlock()
	return nil
}

// Lookup returns the handler for t.
func (r *Registry) Lookup(t graph.NodeType) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[t]
	return e.handler, ok
}

// Timeout returns the execution deadline for t, or zero for none.
func (r *Registry) Timeout(t graph.NodeType) time.Duration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[t]
	if !ok || e.timeout < 0 {
		return r.defaultTimeout
	}
	return e.timeout
}

// Types lists the registered node types in sorted order.
func (r *Registry) Types() []graph.NodeType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]graph.NodeType, 0, len(r.entries))
	for t := range r.entries {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Execute runs the handler registered for the invocation's node type
// under its deadline. Any failure, including a panic, is returned as an
// *ExecError carrying whatever partial output the handler produced.
func (r *Registry) Execute(ctx context.Context, inv *Invocation) (res *Result, err error) {
	nodeID := inv.Node.ID
	h, ok := r.Lookup(inv.Node.Type)
	if !ok {
		return nil, &ExecError{
			NodeID:  nodeID,
			Kind:    KindNode,
			Message: fmt.Sprintf("no handler registered for node type %q", inv.Node.Type),
		}
	}
	if d := r.Timeout(inv.Node.Type); d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}
	defer func() {
		if p := recover(); p != nil {
			log.Errorf("node %s panicked: %v\n%s", nodeID, p, debug.Stack())
			res = nil
			err = &ExecError{
				NodeID:  nodeID,
				Kind:    KindNode,
				Message: fmt.Sprintf("handler panic: %v", p),
			}
		}
	}()
	res, err = h.Execute(ctx, inv)
	if err != nil {
		ee := Wrap(nodeID, err)
		if res != nil && ee.Partial == nil {
			ee.Partial = res.Output
		}
		return nil, ee
	}
	if res == nil {
		res = &Result{}
	}
	return res, nil
}
