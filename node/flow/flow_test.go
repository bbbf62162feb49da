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
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trpc.group/trpc-go/trpc-workflow-go/artifact"
	"trpc.group/trpc-go/trpc-workflow-go/artifact/inmemory"
	"trpc.group/trpc-go/trpc-workflow-go/graph"
	"trpc.group/trpc-go/trpc-workflow-go/node"
)

func run(t *testing.T, h node.Handler, typ graph.NodeType, cfg map[string]any, inputs ...node.Input) (*node.Result, error) {
	t.Helper()
	return h.Execute(context.Background(), &node.Invocation{
		RunID:  "run-1",
		Node:   graph.Node{ID: "n", Type: typ, Config: cfg},
		Inputs: inputs,
		Batch:  inputs,
	})
}

func in(key string, v any) node.Input {
	return node.Input{Key: key, SourceID: key, Value: v}
}

func TestPassthrough(t *testing.T) {
	h := Passthrough()

	res, err := run(t, h, graph.NodeTypeStart, map[string]any{ConfigPayload: "seed"})
	require.NoError(t, err)
	assert.Equal(t, "seed", res.Output)

	res, err = run(t, h, graph.NodeTypeStart, nil)
	require.NoError(t, err)
	assert.Nil(t, res.Output)

	res, err = run(t, h, graph.NodeTypeConnector, map[string]any{ConfigPayload: "ignored"}, in("a", 7))
	require.NoError(t, err)
	assert.Equal(t, 7, res.Output)

	res, err = run(t, h, graph.NodeTypeConnector, nil, in("a", "one"), in("b", "two"))
	require.NoError(t, err)
	assert.Equal(t, "one\n\ntwo", res.Output)
}

func TestAction(t *testing.T) {
	h := Action()
	tests := []struct {
		name string
		cfg  map[string]any
		in   any
		want any
	}{
		{"uppercase", map[string]any{ConfigOp: OpUppercase}, "abc", "ABC"},
		{"lowercase", map[string]any{ConfigOp: OpLowercase}, "AbC", "abc"},
		{"trim", map[string]any{ConfigOp: OpTrim}, "  x \n", "x"},
		{"truncate", map[string]any{ConfigOp: OpTruncate, ConfigLength: 3}, "héllo", "hél"},
		{"truncate short", map[string]any{ConfigOp: OpTruncate, ConfigLength: 10}, "hi", "hi"},
		{"replace", map[string]any{ConfigOp: OpReplace, ConfigOld: "cat", ConfigNew: "dog"}, "cat cat", "dog dog"},
		{"json", map[string]any{ConfigOp: OpJSONParse}, `{"a":1}`, map[string]any{"a": float64(1)}},
		{"word count", map[string]any{ConfigOp: OpWordCount}, "one two  three", 3},
		{"markdown", map[string]any{ConfigOp: OpMarkdownHTML}, "# Title", "<h1>Title</h1>\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := run(t, h, graph.NodeTypeAction, tt.cfg, in("src", tt.in))
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Output)
		})
	}
}

func TestActionErrors(t *testing.T) {
	h := Action()
	for name, cfg := range map[string]map[string]any{
		"missing op":      nil,
		"unknown op":      {ConfigOp: "explode"},
		"bad json":        {ConfigOp: OpJSONParse},
		"empty replace":   {ConfigOp: OpReplace},
		"negative length": {ConfigOp: OpTruncate, ConfigLength: -1},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := run(t, h, graph.NodeTypeAction, cfg, in("src", "not json"))
			var ee *node.ExecError
			require.ErrorAs(t, err, &ee)
			assert.Equal(t, node.KindNode, ee.Kind)
		})
	}
}

func TestOutputFormats(t *testing.T) {
	h := Output()
	inputs := []node.Input{in("intro", "Hello"), in("body", "World")}

	res, err := run(t, h, graph.NodeTypeOutput, nil, inputs...)
	require.NoError(t, err)
	assert.Equal(t, "Hello\n\nWorld", res.Output)

	res, err = run(t, h, graph.NodeTypeOutput, map[string]any{ConfigFormat: FormatMarkdown}, inputs...)
	require.NoError(t, err)
	assert.Equal(t, "## intro\n\nHello\n\n## body\n\nWorld", res.Output)

	res, err = run(t, h, graph.NodeTypeOutput, map[string]any{ConfigFormat: FormatHTML}, in("only", "*hi*"))
	require.NoError(t, err)
	assert.Equal(t, "<p><em>hi</em></p>\n", res.Output)

	res, err = run(t, h, graph.NodeTypeOutput, map[string]any{ConfigFormat: FormatJSON}, inputs...)
	require.NoError(t, err)
	assert.JSONEq(t, `{"intro":"Hello","body":"World"}`, res.Output.(string))

	_, err = run(t, h, graph.NodeTypeOutput, map[string]any{ConfigFormat: "pdf"}, inputs...)
	assert.Error(t, err)
}

func TestOutputSavesArtifact(t *testing.T) {
	svc := inmemory.NewService()
	h := Output(WithArtifacts(svc, "blog"))
	cfg := map[string]any{ConfigFormat: FormatMarkdown, ConfigArtifact: "post.md"}

	res, err := run(t, h, graph.NodeTypeOutput, cfg, in("a", "first"))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"artifact": "post.md", "version": 0}, res.Details)

	res, err = run(t, h, graph.NodeTypeOutput, cfg, in("a", "second"))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Details["version"])

	got, err := svc.Load(context.Background(), artifact.Location{Namespace: "blog", RunID: "run-1"}, "post.md", nil)
	require.NoError(t, err)
	assert.Equal(t, "second", string(got.Data))
	assert.Equal(t, "text/markdown; charset=utf-8", got.MimeType)
}

func TestOutputWithoutArtifactService(t *testing.T) {
	res, err := run(t, Output(), graph.NodeTypeOutput, map[string]any{ConfigArtifact: "x"}, in("a", "v"))
	require.NoError(t, err)
	assert.Nil(t, res.Details)
}

type failingStore struct{ artifact.Service }

func (failingStore) Save(context.Context, artifact.Location, string, *artifact.Artifact) (int, error) {
	return 0, errors.New("disk full")
}

func TestOutputArtifactFailureKeepsPartial(t *testing.T) {
	h := Output(WithArtifacts(failingStore{}, "ns"))
	res, err := run(t, h, graph.NodeTypeOutput, map[string]any{ConfigArtifact: "x"}, in("a", "v"))
	require.Error(t, err)
	assert.Equal(t, "v", res.Output)
}
