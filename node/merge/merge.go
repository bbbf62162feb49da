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

// Package merge implements join nodes. When and how often a merge runs is
// decided by the session from the node's join policy; the handler only
// combines what it is given.
package merge

import (
	"context"

	"trpc.group/trpc-go/trpc-workflow-go/node"
)

// Config keys.
const (
	ConfigStrategy  = "strategy"
	ConfigSeparator = "separator"
	// ConfigBatchOnly restricts an asReceived merge to the arrivals of the
	// current execution instead of everything received so far.
	ConfigBatchOnly = "batchOnly"
)

// Strategies.
const (
	StrategyConcat = "concat"
	StrategyList   = "list"
	StrategyObject = "object"
)

const defaultSeparator = "\n\n"

// Handler combines inputs by the configured strategy.
func Handler() node.Handler {
	return node.HandlerFunc(func(_ context.Context, inv *node.Invocation) (*node.Result, error) {
		n := inv.Node
		in := inv.Inputs
		if n.GetBool(ConfigBatchOnly) {
			in = inv.Batch
		}
		details := map[string]any{"inputs": len(in), "batch": len(inv.Batch)}
		switch strategy := n.GetString(ConfigStrategy); strategy {
		case "", StrategyConcat:
			sep, ok := n.Config[ConfigSeparator].(string)
			if !ok {
				sep = defaultSeparator
			}
			return &node.Result{Output: in.Text(sep), Details: details}, nil
		case StrategyList:
			return &node.Result{Output: in.Values(), Details: details}, nil
		case StrategyObject:
			return &node.Result{Output: in.Map(), Details: details}, nil
		default:
			return nil, node.NewError("unknown merge strategy", map[string]any{"strategy": strategy})
		}
	})
}
