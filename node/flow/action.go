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

package flow

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"

	"github.com/yuin/goldmark"

	"trpc.group/trpc-go/trpc-workflow-go/node"
)

// Action config keys.
const (
	ConfigOp     = "op"
	ConfigLength = "length"
	ConfigOld    = "old"
	ConfigNew    = "new"
)

// Action operations.
const (
	OpUppercase    = "uppercase"
	OpLowercase    = "lowercase"
	OpTrim         = "trim"
	OpTruncate     = "truncate"
	OpReplace      = "replace"
	OpJSONParse    = "jsonParse"
	OpWordCount    = "wordCount"
	OpMarkdownHTML = "markdownHTML"
)

const defaultTruncateLength = 280

// Action applies a deterministic text transformation to the joined input.
func Action() node.Handler {
	md := goldmark.New()
	return node.HandlerFunc(func(_ context.Context, inv *node.Invocation) (*node.Result, error) {
		n := inv.Node
		text := inv.Inputs.Text(joinSeparator)
		op := n.GetString(ConfigOp)
		switch op {
		case OpUppercase:
			return &node.Result{Output: strings.ToUpper(text)}, nil
		case OpLowercase:
			return &node.Result{Output: strings.ToLower(text)}, nil
		case OpTrim:
			return &node.Result{Output: strings.TrimSpace(text)}, nil
		case OpTruncate:
			limit := n.GetInt(ConfigLength, defaultTruncateLength)
			if limit < 0 {
				return nil, node.Errorf("truncate length must not be negative, got %d", limit)
			}
			return &node.Result{Output: truncate(text, limit)}, nil
		case OpReplace:
			old := n.GetString(ConfigOld)
			if old == "" {
				return nil, node.Errorf("replace requires a non-empty %q", ConfigOld)
			}
			return &node.Result{Output: strings.ReplaceAll(text, old, n.GetString(ConfigNew))}, nil
		case OpJSONParse:
			var v any
			if err := json.Unmarshal([]byte(text), &v); err != nil {
				return nil, node.NewError("input is not valid JSON", map[string]any{"cause": err.Error()})
			}
			return &node.Result{Output: v}, nil
		case OpWordCount:
			return &node.Result{Output: len(strings.Fields(text))}, nil
		case OpMarkdownHTML:
			var buf bytes.Buffer
			if err := md.Convert([]byte(text), &buf); err != nil {
				return nil, node.Errorf("render markdown: %v", err)
			}
			return &node.Result{Output: buf.String()}, nil
		case "":
			return nil, node.Errorf("action has no %q configured", ConfigOp)
		default:
			return nil, node.NewError("unknown action op", map[string]any{"op": op})
		}
	})
}

func truncate(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit])
}
