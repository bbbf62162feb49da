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

// Package flow implements the structural node types: start, trigger and
// connector pass-through, text actions, and output rendering.
package flow

import (
	"context"

	"trpc.group/trpc-go/trpc-workflow-go/node"
)

// ConfigPayload is the static output of start and trigger nodes.
const ConfigPayload = "payload"

const joinSeparator = "\n\n"

// Passthrough forwards its input. Start and trigger nodes emit their
// configured payload when one is set. A single input is forwarded as is;
// several inputs are joined as text.
func Passthrough() node.Handler {
	return node.HandlerFunc(func(_ context.Context, inv *node.Invocation) (*node.Result, error) {
		if inv.Node.Type.IsRoot() {
			if p, ok := inv.Node.Config[ConfigPayload]; ok && p != nil {
				return &node.Result{Output: p}, nil
			}
		}
		switch len(inv.Inputs) {
		case 0:
			return &node.Result{}, nil
		case 1:
			return &node.Result{Output: inv.Inputs[0].Value}, nil
		default:
			return &node.Result{Output: inv.Inputs.Text(joinSeparator)}, nil
		}
	})
}
