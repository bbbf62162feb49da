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

import "fmt"

// ScopeKind names the portion of a graph a run covers.
type ScopeKind string

// Scope kinds.
const (
	ScopeFull   ScopeKind = "full"
	ScopeSingle ScopeKind = "single"
	ScopeFrom   ScopeKind = "from"
)

// Scope selects which nodes a run executes.
type Scope struct {
	Kind   ScopeKind `json:"kind"`
	NodeID string    `json:"nodeId,omitempty"`
	Force  bool      `json:"force,omitempty"`
}

// Full runs every node reachable from the graph roots.
func Full() Scope {
	return Scope{Kind: ScopeFull}
}

// SingleNode runs exactly one node against its predecessors' last outputs.
// With force, absent predecessor outputs are treated as empty input.
func SingleNode(id string, force bool) Scope {
	return Scope{Kind: ScopeSingle, NodeID: id, Force: force}
}

// FromNode runs id and everything downstream of it.
func FromNode(id string) Scope {
	return Scope{Kind: ScopeFrom, NodeID: id}
}

func (s Scope) String() string {
	switch s.Kind {
	case ScopeSingle:
		return fmt.Sprintf("single(%s, force=%t)", s.NodeID, s.Force)
	case ScopeFrom:
		return fmt.Sprintf("from(%s)", s.NodeID)
	default:
		return string(ScopeFull)
	}
}
