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
	"fmt"
	"strings"
)

// Validation failure reasons.
const (
	ReasonInvalidNode   = "invalid_node"
	ReasonDuplicateNode = "duplicate_node"
	ReasonUnknownType   = "unknown_node_type"
	ReasonUnknownNode   = "unknown_node"
	ReasonDanglingEdge  = "dangling_edge"
	ReasonInvalidEdge   = "invalid_edge"
	ReasonCycle         = "cycle_detected"
)

// ValidationError reports a graph or scope that cannot be run.
// A run never starts when validation fails.
type ValidationError struct {
	Reason  string
	NodeID  string
	EdgeID  string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("graph validation failed (%s): %s", e.Reason, e.Message)
}

// CycleDetected reports a cycle among the nodes of a scope. Path starts and
// ends on the same node.
type CycleDetected struct {
	Path []string
}

func (e *CycleDetected) Error() string {
	return "cycle detected: " + strings.Join(e.Path, " -> ")
}

// Unwrap lets errors.As match a cycle as a *ValidationError.
func (e *CycleDetected) Unwrap() error {
	return &ValidationError{
		Reason:  ReasonCycle,
		NodeID:  first(e.Path),
		Message: strings.Join(e.Path, " -> "),
	}
}

// MissingUpstreamOutput is returned when a single-node run without force
// has a predecessor that never produced a successful output.
type MissingUpstreamOutput struct {
	NodeID  string
	Missing []string
}

func (e *MissingUpstreamOutput) Error() string {
	return fmt.Sprintf("node %s is missing upstream output from: %s",
		e.NodeID, strings.Join(e.Missing, ", "))
}

func first(s []string) string {
	if len(s) == 0 {
		return ""
	}
	return s[0]
}
