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
	"context"
	"sync"
)

// Store provides the graph snapshot a run executes against. The engine
// reads it once per run and never writes back.
type Store interface {
	Graph(ctx context.Context) (*Graph, error)
}

// StaticStore serves a fixed graph. Replace swaps it atomically for later runs.
type StaticStore struct {
	mu sync.RWMutex
	g  *Graph
}

// NewStaticStore returns a store serving g.
func NewStaticStore(g *Graph) *StaticStore {
	return &StaticStore{g: g}
}

// Graph implements Store.
func (s *StaticStore) Graph(context.Context) (*Graph, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.g, nil
}

// Replace sets the graph served to subsequent runs.
func (s *StaticStore) Replace(g *Graph) {
	s.mu.Lock()
	s.g = g
	s.mu.Unlock()
}
