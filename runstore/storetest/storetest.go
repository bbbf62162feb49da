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

// Package storetest holds the behaviour every runstore.Store must share.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trpc.group/trpc-go/trpc-workflow-go/engine"
	"trpc.group/trpc-go/trpc-workflow-go/event"
	"trpc.group/trpc-go/trpc-workflow-go/graph"
	"trpc.group/trpc-go/trpc-workflow-go/runstore"
)

// Snapshot builds a finished run started at base plus offset minutes.
func Snapshot(id string, offset int) *engine.Snapshot {
	start := time.Date(2025, 3, 1, 12, offset, 0, 0, time.UTC)
	return &engine.Snapshot{
		RunID:      id,
		Scope:      graph.FromNode("b"),
		Status:     event.RunCompleted,
		StartedAt:  start,
		FinishedAt: start.Add(time.Second),
		Order:      []string{"b", "c"},
		Nodes: map[string]*engine.NodeRecord{
			"b": {NodeID: "b", NodeType: graph.NodeTypePrompt, Status: event.StatusSuccess, Output: "text of " + id,
				Executions: []engine.Execution{{Status: event.StatusSuccess, Output: "text of " + id}}},
			"c": {NodeID: "c", NodeType: graph.NodeTypeOutput, Status: event.StatusError,
				Error: &event.ErrorInfo{Kind: "node", Message: "boom"}},
		},
	}
}

// Run exercises store. The store must start empty.
func Run(t *testing.T, store runstore.Store) {
	ctx := context.Background()

	t.Run("load missing", func(t *testing.T) {
		_, err := store.Load(ctx, "nope")
		assert.ErrorIs(t, err, runstore.ErrNotFound)
	})

	t.Run("save and load", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, Snapshot("r1", 1)))
		got, err := store.Load(ctx, "r1")
		require.NoError(t, err)
		assert.Equal(t, "r1", got.RunID)
		assert.Equal(t, graph.FromNode("b"), got.Scope)
		assert.Equal(t, event.RunCompleted, got.Status)
		assert.True(t, got.StartedAt.Equal(time.Date(2025, 3, 1, 12, 1, 0, 0, time.UTC)))
		assert.Equal(t, []string{"b", "c"}, got.Order)
		assert.Equal(t, "text of r1", got.Node("b").Output)
		require.NotNil(t, got.Node("c").Error)
		assert.Equal(t, "boom", got.Node("c").Error.Message)
	})

	t.Run("save replaces", func(t *testing.T) {
		snap := Snapshot("r1", 1)
		snap.Status = event.RunCancelled
		require.NoError(t, store.Save(ctx, snap))
		got, err := store.Load(ctx, "r1")
		require.NoError(t, err)
		assert.Equal(t, event.RunCancelled, got.Status)
	})

	t.Run("list newest first", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, Snapshot("r3", 3)))
		require.NoError(t, store.Save(ctx, Snapshot("r2", 2)))
		all, err := store.List(ctx, 0)
		require.NoError(t, err)
		ids := make([]string, len(all))
		for i, info := range all {
			ids[i] = info.RunID
		}
		assert.Equal(t, []string{"r3", "r2", "r1"}, ids)

		top, err := store.List(ctx, 2)
		require.NoError(t, err)
		require.Len(t, top, 2)
		assert.Equal(t, "r3", top[0].RunID)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, store.Delete(ctx, "r2"))
		require.NoError(t, store.Delete(ctx, "never-existed"))
		_, err := store.Load(ctx, "r2")
		assert.ErrorIs(t, err, runstore.ErrNotFound)
		all, err := store.List(ctx, 0)
		require.NoError(t, err)
		assert.Len(t, all, 2)
	})

	t.Run("latest records", func(t *testing.T) {
		latest, err := store.Latest(ctx)
		require.NoError(t, err)
		assert.Empty(t, latest)

		require.NoError(t, store.PutLatest(ctx, &engine.NodeRecord{NodeID: "a", Status: event.StatusSuccess, Output: "one", Handle: "true"}))
		require.NoError(t, store.PutLatest(ctx, &engine.NodeRecord{NodeID: "a", Status: event.StatusSuccess, Output: "two"}))
		require.NoError(t, store.PutLatest(ctx, &engine.NodeRecord{NodeID: "b", Status: event.StatusError}))
		latest, err = store.Latest(ctx)
		require.NoError(t, err)
		require.Len(t, latest, 2)
		assert.Equal(t, "two", latest["a"].Output)
		assert.Empty(t, latest["a"].Handle)
		assert.Equal(t, event.StatusError, latest["b"].Status)
	})
}
