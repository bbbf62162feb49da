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

package event

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	e := New("run-1", TypeNodeStatus,
		WithNode("n1", "prompt"),
		WithStatus(StatusSuccess),
		WithOutput("text", "true"),
		WithExecution(2, 1500*time.Millisecond),
	)
	_, err := uuid.Parse(e.ID)
	require.NoError(t, err)
	assert.Equal(t, "run-1", e.RunID)
	assert.Equal(t, "n1", e.NodeID)
	assert.Equal(t, "prompt", e.NodeType)
	assert.Equal(t, "true", e.Handle)
	assert.Equal(t, 2, e.Execution)
	assert.EqualValues(t, 1500, e.ExecutionTimeMs)
	assert.False(t, e.Final())
	assert.NotEqual(t, e.ID, New("run-1", TypeNodeStatus).ID)
}

func TestFinalEventJSON(t *testing.T) {
	e := New("r", TypeRunFinished, WithSummary(&RunSummary{
		RunStatus: RunCompleted,
		Nodes: map[string]NodeSummary{
			"a": {Status: StatusError, Executions: 1, Error: &ErrorInfo{Kind: "provider", Message: "rate limited"}},
		},
	}))
	assert.True(t, e.Final())

	b, err := json.Marshal(e)
	require.NoError(t, err)
	var got map[string]any
	require.NoError(t, json.Unmarshal(b, &got))
	assert.Equal(t, "run.finished", got["type"])
	summary := got["summary"].(map[string]any)
	assert.Equal(t, "completed", summary["runStatus"])
	assert.NotContains(t, got, "nodeId")
}

func TestStatusPredicates(t *testing.T) {
	assert.True(t, StatusBypassed.Terminal())
	assert.False(t, StatusRunning.Terminal())
	assert.False(t, StatusIdle.Terminal())
	assert.True(t, RunCancelled.Done())
	assert.False(t, RunRunning.Done())
}
