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
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trpc.group/trpc-go/trpc-workflow-go/artifact"
)

var _ artifact.Service = (*Service)(nil)

func TestSaveLoadVersions(t *testing.T) {
	s := NewService()
	ctx := context.Background()
	loc := artifact.Location{Namespace: "ns", RunID: "r1"}

	for i := 0; i < 3; i++ {
		v, err := s.Save(ctx, loc, "out.md", &artifact.Artifact{Data: []byte("v" + strconv.Itoa(i)), MimeType: "text/markdown"})
		require.NoError(t, err)
		assert.Equal(t, i, v)
	}
	versions, err := s.Versions(ctx, loc, "out.md")
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2}, versions)

	latest, err := s.Load(ctx, loc, "out.md", nil)
	require.NoError(t, err)
	assert.Equal(t, "v2", string(latest.Data))

	one := 1
	got, err := s.Load(ctx, loc, "out.md", &one)
	require.NoError(t, err)
	assert.Equal(t, "v1", string(got.Data))

	bad := 7
	_, err = s.Load(ctx, loc, "out.md", &bad)
	assert.ErrorIs(t, err, artifact.ErrNotFound)
	_, err = s.Load(ctx, loc, "missing", nil)
	assert.ErrorIs(t, err, artifact.ErrNotFound)
}

func TestSaveCopiesData(t *testing.T) {
	s := NewService()
	ctx := context.Background()
	loc := artifact.Location{Namespace: "ns", RunID: "r1"}
	data := []byte("abc")
	_, err := s.Save(ctx, loc, "f", &artifact.Artifact{Data: data})
	require.NoError(t, err)
	data[0] = 'x'
	got, err := s.Load(ctx, loc, "f", nil)
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got.Data))

	_, err = s.Save(ctx, loc, "f", nil)
	assert.Error(t, err)
}

func TestSharedAcrossRuns(t *testing.T) {
	s := NewService()
	ctx := context.Background()
	r1 := artifact.Location{Namespace: "ns", RunID: "r1"}
	r2 := artifact.Location{Namespace: "ns", RunID: "r2"}

	_, err := s.Save(ctx, r1, "shared:index", &artifact.Artifact{Data: []byte("a")})
	require.NoError(t, err)
	v, err := s.Save(ctx, r2, "shared:index", &artifact.Artifact{Data: []byte("b")})
	require.NoError(t, err)
	assert.Equal(t, 1, v)
	_, err = s.Save(ctx, r1, "local", &artifact.Artifact{Data: []byte("c")})
	require.NoError(t, err)

	names, err := s.List(ctx, r1)
	require.NoError(t, err)
	assert.Equal(t, []string{"local", "shared:index"}, names)
	names, err = s.List(ctx, r2)
	require.NoError(t, err)
	assert.Equal(t, []string{"shared:index"}, names)

	require.NoError(t, s.Delete(ctx, r1, "local"))
	require.NoError(t, s.Delete(ctx, r1, "never"))
	versions, err := s.Versions(ctx, r1, "local")
	require.NoError(t, err)
	assert.Empty(t, versions)
}
