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

package inmemory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trpc.group/trpc-go/trpc-workflow-go/runstore"
	"trpc.group/trpc-go/trpc-workflow-go/runstore/storetest"
)

func TestStoreContract(t *testing.T) {
	storetest.Run(t, New())
}

func TestMaxRunsEvictsOldest(t *testing.T) {
	ctx := context.Background()
	s := New(WithMaxRuns(2))
	require.NoError(t, s.Save(ctx, storetest.Snapshot("old", 1)))
	require.NoError(t, s.Save(ctx, storetest.Snapshot("mid", 2)))
	require.NoError(t, s.Save(ctx, storetest.Snapshot("new", 3)))

	_, err := s.Load(ctx, "old")
	assert.ErrorIs(t, err, runstore.ErrNotFound)
	all, err := s.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "new", all[0].RunID)
	assert.NoError(t, s.Close())
}
