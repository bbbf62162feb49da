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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trpc.group/trpc-go/trpc-workflow-go/graph"
	"trpc.group/trpc-go/trpc-workflow-go/provider"
)

func TestInputsHelpers(t *testing.T) {
	in := Inputs{
		{Key: "a", SourceID: "a", Value: "hello"},
		{Key: "b", SourceID: "b", Value: nil},
		{Key: "c", SourceID: "c", Value: map[string]any{"transcript": "spoken"}},
		{Key: "d", SourceID: "d", Value: []any{1, 2}},
	}
	v, ok := in.Get("a")
	require.True(t, ok)
	assert.Equal(t, "hello", v)
	_, ok = in.Get("missing")
	assert.False(t, ok)
	assert.Len(t, in.Values(), 4)
	assert.Equal(t, "spoken", in.Map()["c"].(map[string]any)["transcript"])
	assert.Equal(t, "hello|spoken|[1,2]", in.Text("|"))
}

func TestToText(t *testing.T) {
	assert.Equal(t, "", ToText(nil))
	assert.Equal(t, "x", ToText([]byte("x")))
	assert.Equal(t, "42", ToText(42))
	assert.Equal(t, "true", ToText(true))
	assert.Equal(t, `{"k":"v"}`, ToText(map[string]any{"k": "v"}))
	assert.Equal(t, "body", ToText(map[string]any{"content": "body", "k": 1}))
}

func TestRegistryRegisterAndLookup(t *testing.T) {
	r := NewRegistry(WithDefaultTimeout(time.Second))
	noop := HandlerFunc(func(context.Context, *Invocation) (*Result, error) { return nil, nil })

	require.Error(t, r.Register("bogus", noop))
	require.Error(t, r.Register(graph.NodeTypeAction, nil))
	require.NoError(t, r.Register(graph.NodeTypeAction, noop))
	require.NoError(t, r.Register(graph.NodeTypePrompt, noop, WithTimeout(5*time.Second)))
	require.NoError(t, r.Register(graph.NodeTypeStart, noop, WithTimeout(0)))

	_, ok := r.Lookup(graph.NodeTypeAction)
	assert.True(t, ok)
	_, ok = r.Lookup(graph.NodeTypeMerge)
	assert.False(t, ok)

	assert.Equal(t, time.Second, r.Timeout(graph.NodeTypeAction))
	assert.Equal(t, 5*time.Second, r.Timeout(graph.NodeTypePrompt))
	assert.Equal(t, time.Duration(0), r.Timeout(graph.NodeTypeStart))
	assert.Equal(t, []graph.NodeType{graph.NodeTypeAction, graph.NodeTypePrompt, graph.NodeTypeStart}, r.Types())
}

func invocation(id string, typ graph.NodeType) *Invocation {
	return &Invocation{RunID: "run", Node: graph.Node{ID: id, Type: typ}}
}

func TestRegistryExecute(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(graph.NodeTypeAction, HandlerFunc(
		func(_ context.Context, inv *Invocation) (*Result, error) {
			return &Result{Output: inv.Node.ID + "!"}, nil
		})))
	res, err := r.Execute(context.Background(), invocation("a", graph.NodeTypeAction))
	require.NoError(t, err)
	assert.Equal(t, "a!", res.Output)

	_, err = r.Execute(context.Background(), invocation("m", graph.NodeTypeMerge))
	var ee *ExecError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, "m", ee.NodeID)
	assert.Equal(t, KindNode, ee.Kind)
}

func TestRegistryExecuteNilResult(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(graph.NodeTypeConnector, HandlerFunc(
		func(context.Context, *Invocation) (*Result, error) { return nil, nil })))
	res, err := r.Execute(context.Background(), invocation("c", graph.NodeTypeConnector))
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Nil(t, res.Output)
}

func TestRegistryExecuteRecoversPanic(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(graph.NodeTypeAction, HandlerFunc(
		func(context.Context, *Invocation) (*Result, error) { panic("boom") })))
	_, err := r.Execute(context.Background(), invocation("p", graph.NodeTypeAction))
	var ee *ExecError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, KindNode, ee.Kind)
	assert.Contains(t, ee.Message, "boom")
}

func TestRegistryExecuteTimeout(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(graph.NodeTypePrompt, HandlerFunc(
		func(ctx context.Context, _ *Invocation) (*Result, error) {
			<-ctx.Done()
			return &Result{Output: "part"}, ctx.Err()
		}), WithTimeout(10*time.Millisecond)))
	_, err := r.Execute(context.Background(), invocation("slow", graph.NodeTypePrompt))
	var ee *ExecError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, KindTimeout, ee.Kind)
	assert.Equal(t, "part", ee.Partial)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestWrapClassification(t *testing.T) {
	assert.Nil(t, Wrap("n", nil))

	pe := &provider.Error{Kind: provider.KindRateLimit, Model: "gpt", Status: 429, Message: "slow down"}
	ee := Wrap("n", fmt.Errorf("invoke: %w", pe))
	assert.Equal(t, KindProvider, ee.Kind)
	assert.Equal(t, "rate_limit", ee.Details["providerKind"])
	assert.Equal(t, 429, ee.Details["status"])
	var got *provider.Error
	require.ErrorAs(t, ee, &got)
	assert.Same(t, pe, got)

	assert.Equal(t, KindCancelled, Wrap("n", context.Canceled).Kind)
	assert.Equal(t, KindCancelled, Wrap("n", ErrCancelled).Kind)
	assert.Equal(t, KindTimeout, Wrap("n", context.DeadlineExceeded).Kind)
	assert.Equal(t, KindNode, Wrap("n", errors.New("plain")).Kind)

	custom := Wrap("n", NewError("bad input", map[string]any{"field": "x"}))
	assert.Equal(t, "n", custom.NodeID)
	assert.Equal(t, "x", custom.Details["field"])
	assert.Equal(t, "node n failed (node): bad input", custom.Error())
}

func TestCancelled(t *testing.T) {
	ee := Cancelled("n", "partial")
	assert.Equal(t, KindCancelled, ee.Kind)
	assert.Equal(t, "partial", ee.Partial)
	assert.ErrorIs(t, ee, ErrCancelled)
}

func TestEmitPartialNilSafe(t *testing.T) {
	inv := &Invocation{}
	assert.NotPanics(t, func() { inv.EmitPartial("x") })
	var got []any
	inv.Emit = func(v any) { got = append(got, v) }
	inv.EmitPartial("y")
	assert.Equal(t, []any{"y"}, got)
}
