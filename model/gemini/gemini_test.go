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

package gemini

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trpc.group/trpc-go/trpc-workflow-go/model"
)

func TestNewRequiresAPIKey(t *testing.T) {
	t.Setenv(GoogleAPIKeyEnv, "")
	_, err := New(context.Background(), "gemini-test")
	assert.Error(t, err)
}

func TestConvertRequest(t *testing.T) {
	temp, maxTokens := 0.5, 32
	contents, cfg := convertRequest(&model.Request{
		Messages: []model.Message{
			model.NewSystemMessage("sys"),
			model.NewUserMessage("hello"),
			model.NewAssistantMessage("hi"),
		},
		GenerationConfig: model.GenerationConfig{Temperature: &temp, MaxTokens: &maxTokens, Stop: []string{"END"}},
	})
	require.Len(t, contents, 2)
	assert.Equal(t, "user", contents[0].Role)
	assert.Equal(t, "model", contents[1].Role)
	require.NotNil(t, cfg.SystemInstruction)
	assert.Equal(t, "sys", cfg.SystemInstruction.Parts[0].Text)
	assert.Equal(t, float32(0.5), *cfg.Temperature)
	assert.Equal(t, int32(32), cfg.MaxOutputTokens)
	assert.Equal(t, []string{"END"}, cfg.StopSequences)
}

func TestGenerateContentNonStreaming(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.Contains(r.URL.Path, "gemini-test"), r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"pong"}]},"finishReason":"STOP"}],
			"usageMetadata":{"promptTokenCount":2,"candidatesTokenCount":1,"totalTokenCount":3}}`))
	}))
	defer srv.Close()

	m, err := New(context.Background(), "gemini-test", WithAPIKey("k"), WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	assert.Equal(t, "gemini-test", m.Info().Name)

	ch, err := m.GenerateContent(context.Background(), &model.Request{Messages: []model.Message{model.NewUserMessage("ping")}})
	require.NoError(t, err)
	var last *model.Response
	for rsp := range ch {
		last = rsp
	}
	require.NotNil(t, last)
	require.Nil(t, last.Error)
	assert.Equal(t, "pong", last.Text())
	require.NotNil(t, last.Usage)
	assert.Equal(t, 3, last.Usage.TotalTokens)
	require.NotNil(t, last.Choices[0].FinishReason)
	assert.Equal(t, "stop", *last.Choices[0].FinishReason)
}

func TestGenerateContentAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"code":401,"message":"bad key","status":"UNAUTHENTICATED"}}`))
	}))
	defer srv.Close()

	m, err := New(context.Background(), "gemini-test", WithAPIKey("k"), WithBaseURL(srv.URL))
	require.NoError(t, err)
	ch, err := m.GenerateContent(context.Background(), &model.Request{Messages: []model.Message{model.NewUserMessage("ping")}})
	require.NoError(t, err)
	var last *model.Response
	for rsp := range ch {
		last = rsp
	}
	require.NotNil(t, last)
	require.NotNil(t, last.Error)
	assert.Equal(t, http.StatusUnauthorized, last.Error.StatusCode)
}
