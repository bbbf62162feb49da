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
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func n(id string, t NodeType) Node { return Node{ID: id, Type: t} }

func e(src, dst string) Edge { return Edge{Source: src, Target: dst} }

func TestNewAccessors(t *testing.T) {
	g, err := New(
		[]Node{n("start", NodeTypeStart), n("a", NodeTypePrompt), n("b", NodeTypeAction), n("c", NodeTypeOutput)},
		[]Edge{e("start", "a"), e("a", "b"), e("a", "c"), e("b", "c")},
	)
	require.NoError(t, err)

	assert.Len(t, g.Nodes(), 4)
	assert.Len(t, g.Edges(), 4)
	assert.Equal(t, []string{"b", "c"}, g.Successors("a"))
	assert.Equal(t, []string{"a", "b"}, g.Predecessors("c"))
	assert.Len(t, g.Incoming("c"), 2)
	assert.Len(t, g.Outgoing("start"), 1)
	assert.Equal(t, []string{"start"}, g.Roots())
	assert.Equal(t, []string{"a", "b", "c"}, g.Descendants("start"))

	node, ok := g.Node("a")
	require.True(t, ok)
	assert.Equal(t, NodeTypePrompt, node.Type)
	_, ok = g.Node("missing")
	assert.False(t, ok)
}

func TestNodeConfigIsCopied(t *testing.T) {
	cfg := map[string]any{"prompt": "hi"}
	g, err := New([]Node{{ID: "a", Type: NodeTypePrompt, Config: cfg}}, nil)
	require.NoError(t, err)

	cfg["prompt"] = "changed"
	node, _ := g.Node("a")
	assert.Equal(t, "hi", node.GetString("prompt"))

	node.Config["prompt"] = "mutated"
	again, _ := g.Node("a")
	assert.Equal(t, "hi", again.GetString("prompt"))
}

func TestNewValidation(t *testing.T) {
	tests := []struct {
		name   string
		nodes  []Node
		edges  []Edge
		reason string
	}{
		{
			name:   "empty id",
			nodes:  []Node{n("", NodeTypeStart)},
			reason: ReasonInvalidNode,
		},
		{
			name:   "duplicate",
			nodes:  []Node{n("a", NodeTypeStart), n("a", NodeTypePrompt)},
			reason: ReasonDuplicateNode,
		},
		{
			name:   "unknown type",
			nodes:  []Node{n("a", "video")},
			reason: ReasonUnknownType,
		},
		{
			name:   "dangling target",
			nodes:  []Node{n("a", NodeTypeStart)},
			edges:  []Edge{e("a", "b")},
			reason: ReasonDanglingEdge,
		},
		{
			name:   "dangling source",
			nodes:  []Node{n("a", NodeTypePrompt)},
			edges:  []Edge{e("x", "a")},
			reason: ReasonDanglingEdge,
		},
		{
			name:   "edge into start",
			nodes:  []Node{n("a", NodeTypePrompt), n("s", NodeTypeStart)},
			edges:  []Edge{e("a", "s")},
			reason: ReasonInvalidEdge,
		},
		{
			name:   "condition edge without handle",
			nodes:  []Node{n("c", NodeTypeCondition), n("a", NodeTypePrompt)},
			edges:  []Edge{e("c", "a")},
			reason: ReasonInvalidEdge,
		},
		{
			name:   "self loop",
			nodes:  []Node{n("a", NodeTypePrompt)},
			edges:  []Edge{e("a", "a")},
			reason: ReasonCycle,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.nodes, tt.edges)
			require.Error(t, err)
			var ve *ValidationError
			require.True(t, errors.As(err, &ve), "got %T", err)
			assert.Equal(t, tt.reason, ve.Reason)
		})
	}
}

func TestRootsSkipIsolatedNodes(t *testing.T) {
	g, err := New(
		[]Node{
			n("start", NodeTypeStart),
			n("src", NodeTypeSource),
			n("a", NodeTypePrompt),
			n("lonely", NodeTypePrompt),
			n("trigger", NodeTypeTrigger),
		},
		[]Edge{e("start", "a"), e("src", "a")},
	)
	require.NoError(t, err)
	assert.Equal(t, []string{"start", "src", "trigger"}, g.Roots())
}

func TestEdgeName(t *testing.T) {
	assert.Equal(t, "x", Edge{ID: "x", Source: "a", Target: "b"}.Name())
	assert.Equal(t, "a->b", e("a", "b").Name())
	assert.Equal(t, "a:true->b", Edge{Source: "a", Target: "b", SourceHandle: "true"}.Name())
}

func TestNodeConfigHelpers(t *testing.T) {
	node := Node{ID: "m", Type: NodeTypeMerge, Config: map[string]any{
		ConfigJoinPolicy:   "asReceived",
		ConfigAllowPartial: "true",
		ConfigBatch:        "each",
		"n":                3.0,
		"s":                "7",
		"f":                "1.5",
		"d":                "2s",
		"secs":             2,
	}}
	assert.Equal(t, JoinAsReceived, node.JoinPolicy())
	assert.True(t, node.AllowPartial())
	assert.Equal(t, BatchEach, node.BatchMode())
	assert.Equal(t, 3, node.GetInt("n", 0))
	assert.Equal(t, 7, node.GetInt("s", 0))
	assert.Equal(t, 9, node.GetInt("missing", 9))
	f, ok := node.GetFloat("f")
	assert.True(t, ok)
	assert.Equal(t, 1.5, f)
	assert.Equal(t, "2s", node.GetDuration("d").String())
	assert.Equal(t, "2s", node.GetDuration("secs").String())
	assert.Equal(t, "3", node.GetString("n"))

	def := Node{ID: "m", Type: NodeTypeMerge}
	assert.Equal(t, JoinWaitForAll, def.JoinPolicy())
	assert.False(t, def.AllowPartial())
	assert.Equal(t, BatchCoalesce, def.BatchMode())
}

func TestDOT(t *testing.T) {
	g, err := New(
		[]Node{n("s", NodeTypeStart), {ID: "c", Type: NodeTypeCondition, Label: "is \"long\""}, n("x", NodeTypeOutput)},
		[]Edge{e("s", "c"), {Source: "c", Target: "x", SourceHandle: "true"}},
	)
	require.NoError(t, err)

	dot := g.DOT(WithRankDir(RankDirTB), WithGraphLabel("demo"), WithStatus(map[string]string{"s": "success"}))
	assert.Contains(t, dot, "rankdir=TB;")
	assert.Contains(t, dot, `label="demo"`)
	assert.Contains(t, dot, `is \"long\"`)
	assert.Contains(t, dot, `"c" -> "x" [style=dashed`)
	assert.Contains(t, dot, `label="true"`)
	assert.Contains(t, dot, statusFill["success"])
}
