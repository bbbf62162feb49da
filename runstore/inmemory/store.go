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

// Package inmemory is a process-local runstore.Store.
package inmemory

import (
	"context"
	"sync"

	"trpc.group/trpc-go/trpc-workflow-go/engine"
	"trpc.group/trpc-go/trpc-workflow-go/runstore"
)

const defaultMaxRuns = 1000

var _ runstore.Store = (*Store)(nil)

// Store keeps runs in memory, evicting the oldest past a limit.
type Store struct {
	mu      sync.RWMutex
	runs    map[string]*engine.Snapshot
	latest  map[string]*engine.NodeRecord
	maxRuns int
}

// Option configures a Store.
type Option func(*Store)

// WithMaxRuns bounds how many runs are kept.
func WithMaxRuns(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxRuns = n
		}
	}
}

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		runs:    make(map[string]*engine.Snapshot),
		latest:  make(map[string]*engine.NodeRecord),
		maxRuns: defaultMaxRuns,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Save implements runstore.Store.
func (s *Store) Save(_ context.Context, snap *engine.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[snap.RunID] = snap
	for len(s.runs) > s.maxRuns {
		delete(s.runs, s.oldestLocked())
	}
	return nil
}

func (s *Store) oldestLocked() string {
	var id string
	for k, v := range s.runs {
		if id == "" || v.StartedAt.Before(s.runs[id].StartedAt) {
			id = k
		}
	}
	return id
}

// Load implements runstore.Store.
func (s *Store) Load(_ context.Context, runID string) (*engine.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.runs[runID]
	if !ok {
		return nil, runstore.ErrNotFound
	}
	return snap, nil
}

// List implements runstore.Store.
func (s *Store) List(_ context.Context, limit int) ([]runstore.Info, error) {
	s.mu.RLock()
	out := make([]runstore.Info, 0, len(s.runs))
	for _, snap := range s.runs {
		out = append(out, runstore.InfoOf(snap))
	}
	s.mu.RUnlock()
	runstore.SortInfos(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Delete implements runstore.Store.
func (s *Store) Delete(_ context.Context, runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.runs, runID)
	return nil
}

// PutLatest implements runstore.Store.
func (s *Store) PutLatest(_ context.Context, rec *engine.NodeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest[rec.NodeID] = rec
	return nil
}

// Latest implements runstore.Store.
func (s *Store) Latest(context.Context) (map[string]*engine.NodeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]*engine.NodeRecord, len(s.latest))
	for k, v := range s.latest {
		out[k] = v
	}
	return out, nil
}

// Close implements runstore.Store.
func (s *Store) Close() error {
	return nil
}
