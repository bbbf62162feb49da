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
	"errors"
	"fmt"

	"trpc.group/trpc-go/trpc-workflow-go/provider"
)

// ErrorKind classifies a node failure.
type ErrorKind string

// Error kinds.
const (
	KindNode      ErrorKind = "node"
	KindProvider  ErrorKind = "provider"
	KindCancelled ErrorKind = "cancelled"
	KindTimeout   ErrorKind = "timeout"
)

// ErrCancelled marks a node that was running when its run was cancelled.
var ErrCancelled = errors.New("node execution cancelled")

// ExecError is a failure local to one node. It never aborts the run; the
// nodes depending on it are bypassed instead.
type ExecError struct {
	NodeID  string
	Kind    ErrorKind
	Message string
	Details map[string]any
	// Partial is whatever output the handler produced before failing.
	Partial any
	Err     error
}

func (e *ExecError) Error() string {
	return fmt.Sprintf("node %s failed (%s): %s", e.NodeID, e.Kind, e.Message)
}

func (e *ExecError) Unwrap() error {
	return e.Err
}

// Errorf returns a node-logic error for handlers to return.
func Errorf(format string, args ...any) error {
	return &ExecError{Kind: KindNode, Message: fmt.Sprintf(format, args...)}
}

// NewError returns a node-logic error with structured details.
func NewError(message string, details map[string]any) error {
	return &ExecError{Kind: KindNode, Message: message, Details: details}
}

// Wrap classifies err as an *ExecError for nodeID.
func Wrap(nodeID string, err error) *ExecError {
	if err == nil {
		return nil
	}
	var ee *ExecError
	if errors.As(err, &ee) {
		out := *ee
		if out.NodeID == "" {
			out.NodeID = nodeID
		}
		if out.Kind == "" {
			out.Kind = KindNode
		}
		return &out
	}
	out := &ExecError{NodeID: nodeID, Kind: KindNode, Message: err.Error(), Err: err}
	var pe *provider.Error
	switch {
	case errors.Is(err, ErrCancelled), errors.Is(err, context.Canceled):
		out.Kind = KindCancelled
	case errors.As(err, &pe):
		out.Kind = KindProvider
		out.Details = map[string]any{
			"providerKind": string(pe.Kind),
			"retryable":    pe.Retryable(),
		}
		if pe.Status > 0 {
			out.Details["status"] = pe.Status
		}
		if pe.Model != "" {
			out.Details["model"] = pe.Model
		}
	case errors.Is(err, context.DeadlineExceeded):
		out.Kind = KindTimeout
	}
	return out
}

// Cancelled builds the terminal error of a node interrupted by cancellation.
func Cancelled(nodeID string, partial any) *ExecError {
	return &ExecError{
		NodeID:  nodeID,
		Kind:    KindCancelled,
		Message: ErrCancelled.Error(),
		Partial: partial,
		Err:     ErrCancelled,
	}
}
