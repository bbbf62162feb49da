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

package source

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trpc.group/trpc-go/trpc-workflow-go/node"
)

func TestExtractPostCode(t *testing.T) {
	for in, want := range map[string]string{
		"https://www.instagram.com/p/C1a2B3c4D5e/":             "C1a2B3c4D5e",
		"https://www.instagram.com/reel/Cx_9-AbCdEf/?igsh=abc": "Cx_9-AbCdEf",
		"https://instagram.com/reels/DAbc123/":                 "DAbc123",
		"https://www.instagram.com/tv/B8xyz/":                  "B8xyz",
		"https://www.instagram.com/some.user/reel/C77aa_bb/":   "C77aa_bb",
	} {
		got, ok := ExtractPostCode(in)
		require.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}
	for _, in := range []string{"https://www.instagram.com/some.user/", "https://youtu.be/dQw4w9WgXcQ", ""} {
		_, ok := ExtractPostCode(in)
		assert.False(t, ok, in)
	}
}

type instagramServer struct {
	calls    atomic.Int32
	failures int32
	status   int
	language atomic.Value
}

func (s *instagramServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	n := s.calls.Add(1)
	var body struct {
		URL      string `json:"url"`
		Language string `json:"language"`
	}
	if r.Method != http.MethodPost || json.NewDecoder(r.Body).Decode(&body) != nil || body.URL == "" {
		w.WriteHeader(http.StatusUnprocessableEntity)
		return
	}
	s.language.Store(body.Language)
	w.Header().Set("Content-Type", "application/json")
	if n <= s.failures {
		w.WriteHeader(s.status)
		_ = json.NewEncoder(w).Encode(map[string]string{"detail": "No video found - post may be image/carousel"})
		return
	}
	lang := body.Language
	if lang == "" {
		lang = "es"
	}
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success":           true,
		"post_code":         "C1a2B3c4D5e",
		"author":            "chef",
		"caption":           "tapas night",
		"transcript":        "hola a todos",
		"confidence":        0.93,
		"language_detected": lang,
		"video_size_mb":     4.2,
	})
}

func TestInstagramFetchCachesByPostAndLanguage(t *testing.T) {
	srv := &instagramServer{}
	ts := httptest.NewServer(srv)
	defer ts.Close()

	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	f := NewInstagramFetcher(ts.URL, WithRetryPolicy(fastRetry()), WithCacheTTL(time.Hour))
	f.now = func() time.Time { return now }

	got, err := f.Fetch(context.Background(), "https://www.instagram.com/p/C1a2B3c4D5e/", "")
	require.NoError(t, err)
	assert.Equal(t, "hola a todos", got.Text)
	assert.Equal(t, "chef", got.Author)
	assert.Equal(t, "tapas night", got.Caption)
	assert.Equal(t, "es", got.Language)
	assert.InDelta(t, 0.93, got.Confidence, 1e-9)
	assert.False(t, got.Cached)
	assert.Equal(t, "", srv.language.Load())

	got, err = f.Fetch(context.Background(), "https://instagram.com/p/C1a2B3c4D5e", "")
	require.NoError(t, err)
	assert.True(t, got.Cached)
	assert.EqualValues(t, 1, srv.calls.Load())

	got, err = f.Fetch(context.Background(), "https://instagram.com/p/C1a2B3c4D5e", "pt")
	require.NoError(t, err)
	assert.False(t, got.Cached)
	assert.Equal(t, "pt", got.Language)
	assert.Equal(t, "pt", srv.language.Load())
	assert.EqualValues(t, 2, srv.calls.Load())

	now = now.Add(2 * time.Hour)
	got, err = f.Fetch(context.Background(), "https://instagram.com/p/C1a2B3c4D5e", "")
	require.NoError(t, err)
	assert.False(t, got.Cached)
	assert.EqualValues(t, 3, srv.calls.Load())
}

func TestInstagramFetchRetriesServerFaults(t *testing.T) {
	srv := &instagramServer{failures: 2, status: http.StatusInternalServerError}
	ts := httptest.NewServer(srv)
	defer ts.Close()

	f := NewInstagramFetcher(ts.URL, WithRetryPolicy(fastRetry()))
	got, err := f.Fetch(context.Background(), "https://www.instagram.com/reel/C1a2B3c4D5e/", "")
	require.NoError(t, err)
	assert.Equal(t, "hola a todos", got.Text)
	assert.EqualValues(t, 3, srv.calls.Load())
}

func TestInstagramFetchDoesNotRetryImagePosts(t *testing.T) {
	srv := &instagramServer{failures: 100, status: http.StatusBadRequest}
	ts := httptest.NewServer(srv)
	defer ts.Close()

	f := NewInstagramFetcher(ts.URL, WithRetryPolicy(fastRetry()))
	_, err := f.Fetch(context.Background(), "https://www.instagram.com/p/C1a2B3c4D5e/", "")
	var te *TranscriptError
	require.ErrorAs(t, err, &te)
	assert.False(t, te.Retryable())
	assert.Equal(t, "No video found - post may be image/carousel", te.Message)
	assert.Equal(t, "C1a2B3c4D5e", te.VideoID)
	assert.EqualValues(t, 1, srv.calls.Load())
}

func TestInstagramKind(t *testing.T) {
	srv := &instagramServer{}
	ts := httptest.NewServer(srv)
	defer ts.Close()
	h := Handler(WithInstagram(NewInstagramFetcher(ts.URL, WithRetryPolicy(fastRetry()))))

	res, err := exec(t, h, map[string]any{ConfigKind: KindInstagram, ConfigLanguage: "es"},
		node.Input{Key: "url", Value: " https://www.instagram.com/reel/C1a2B3c4D5e/ "})
	require.NoError(t, err)
	out := res.Output.(map[string]any)
	assert.Equal(t, "hola a todos", out["transcript"])
	assert.Equal(t, "C1a2B3c4D5e", out["postCode"])
	assert.Equal(t, "chef", out["author"])
	assert.Equal(t, "hola a todos", node.ToText(res.Output))
	assert.Equal(t, "es", srv.language.Load())

	_, err = exec(t, h, map[string]any{ConfigKind: KindInstagram, ConfigURL: "https://youtu.be/dQw4w9WgXcQ"})
	var ee *node.ExecError
	require.ErrorAs(t, err, &ee)
	assert.Contains(t, ee.Error(), "Instagram")

	_, err = exec(t, Handler(), map[string]any{ConfigKind: KindInstagram, ConfigURL: "https://www.instagram.com/p/C1a2B3c4D5e/"})
	assert.Error(t, err)
}
