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

// Package inmemory provides an in-memory artifact service for tests and
// single-process deployments.
package inmemory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"trpc.group/trpc-go/trpc-workflow-go/artifact"
)

// Service keeps every version of every artifact in memory.
type Service struct {
	mu        sync.RWMutex
	artifacts map[string][]*artifact.Artifact
}

// NewService creates an empty in-memory artifact service.
func NewService() *Service {
	return &Service{artifacts: make(map[string][]*artifact.Artifact)}
}

// Save implements artifact.Service.
func (s *Service) Save(_ context.Context, loc artifact.Location, filename string, art *artifact.Artifact) (int, error) {
	if art == nil {
		return 0, fmt.Errorf("save artifact %s: nil artifact", filename)
	}
	cp := *art
	cp.Data = append([]byte(nil), art.Data...)

	s.mu.Lock()
	defer s.mu.Unlock()
	path := artifact.Path(loc, filename)
	version := len(s.artifacts[path])
	s.artifacts[path] = append(s.artifacts[path], &cp)
	return version, nil
}

// Load implements artifact.Service.
func (s *Service) Load(_ context.Context, loc artifact.Location, filename string, version *int) (*artifact.Artifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	versions := s.artifacts[artifact.Path(loc, filename)]
	if len(versions) == 0 {
		return nil, artifact.ErrNotFound
	}
	idx := len(versions) - 1
	if version != nil {
		idx = *version
		if idx < 0 || idx >= len(versions) {
			return nil, fmt.Errorf("version %d of %s: %w", idx, filename, artifact.ErrNotFound)
		}
	}
	return versions[idx], nil
}

// List implements artifact.Service.
func (s *Service) List(_ context.Context, loc artifact.Location) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	runPrefix, sharedPrefix := artifact.RunPrefix(loc), artifact.SharedPrefix(loc)
	var names []string
	for path := range s.artifacts {
		switch {
		case strings.HasPrefix(path, runPrefix):
			names = append(names, strings.TrimPrefix(path, runPrefix))
		case strings.HasPrefix(path, sharedPrefix):
			names = append(names, strings.TrimPrefix(path, sharedPrefix))
		}
	}
	sort.Strings(names)
	return names, nil
}

// Versions implements artifact.Service.
func (s *Service) Versions(_ context.Context, loc artifact.Location, filename string) ([]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := len(s.artifacts[artifact.Path(loc, filename)])
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out, nil
}

// Delete implements artifact.Service. Deleting a missing artifact is not
// an error.
func (s *Service) Delete(_ context.Context, loc artifact.Location, filename string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.artifacts, artifact.Path(loc, filename))
	return nil
}
