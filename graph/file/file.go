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

// Package file implements graph.Store over a YAML or JSON document on disk.
package file

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"trpc.group/trpc-go/trpc-workflow-go/graph"
)

var _ graph.Store = (*Store)(nil)

// Document is the on-disk graph format. JSON documents parse as YAML.
type Document struct {
	Nodes []graph.Node `yaml:"nodes" json:"nodes"`
	Edges []graph.Edge `yaml:"edges" json:"edges"`
}

// Store reads the graph document on every call so that edits made between
// runs are picked up. A run keeps the snapshot it started with.
type Store struct {
	path string
}

// New returns a store reading from path.
func New(path string) *Store {
	return &Store{path: path}
}

// Graph implements graph.Store.
func (s *Store) Graph(ctx context.Context) (*graph.Graph, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read graph file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a graph document.
func Parse(data []byte) (*graph.Graph, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode graph document: %w", err)
	}
	return graph.New(doc.Nodes, doc.Edges)
}

// Marshal encodes g as a YAML document.
func Marshal(g *graph.Graph) ([]byte, error) {
	return yaml.Marshal(Document{Nodes: g.Nodes(), Edges: g.Edges()})
}
