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

package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trpc.group/trpc-go/trpc-workflow-go/model"
)

func streamServer(t *testing.T, chunks []string, delay time.Duration) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.WriteHeader(http.StatusOK)
		flusher, ok := w.(http.Flusher)
		require.True(t, ok)
		for _, chunk := range chunks {
			select {
			case <-r.Context().Done():
				return
			default:
			}
			_, _ = w.Write([]byte("data: " + chunk + "\n\n"))
			flusher.Flush()
			time.Sleep(delay)
		}
	}))
}

func chunk(content, finish string) string {
	c := map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion.chunk",
		"created": 1,
		"model":   "gpt-test",
		"choices": []map[string]any{{
			"index":         0,
			"delta":         map[string]any{"content": content},
			"finish_reason": nil,
		}},
	}
	if finish != "" {
		c["choices"].([]map[string]any)[0]["finish_reason"] = finish
	}
	b, _ := json.Marshal(c)
	return string(b)
}

func collect(ch <-chan *model.Response) (string, *model.Response) {
	var text strings.Builder
	var last *model.Response
	for rsp := range ch {
		if rsp.IsPartial {
			text.WriteString(rsp.Text())
		}
		last = rsp
	}
	return text.String(), last
}

func TestGenerateContentStreaming(t *testing.T) {
	srv := streamServer(t, []string{chunk("Hel", ""), chunk("lo", ""), chunk("", "stop"), "[DONE]"}, 0)
	defer srv.Close()

	m := New("gpt-test", WithAPIKey("test-key"), WithBaseURL(srv.URL+"/"))
	assert.Equal(t, "gpt-test", m.Info().Name)

	temp, maxTokens := 0.1, 64
	ch, err := m.GenerateContent(context.Background(), &model.Request{
		Messages: []model.Message{model.NewSystemMessage("be brief"), model.NewUserMessage("hi")},
		GenerationConfig: model.GenerationConfig{
			Stream:      true,
			Temperature: &temp,
			MaxTokens:   &maxTokens,
		},
	})
	require.NoError(t, err)
	text, last := collect(ch)
	assert.Equal(t, "Hello", text)
	require.NotNil(t, last)
	assert.True(t, last.Done)
	assert.Nil(t, last.Error)
	assert.Equal(t, "Hello", last.Text())
	require.NotNil(t, last.Choices[0].FinishReason)
	assert.Equal(t, "stop", *last.Choices[0].FinishReason)
}

func TestGenerateContentNonStreaming(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "gpt-test", body["model"])
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","created":1,"model":"gpt-test",
			"choices":[{"index":0,"message":{"role":"assistant","content":"answer"},"finish_reason":"stop"}],
			"usage":{"prompt_tokens":3,"completion_tokens":1,"total_tokens":4}}`))
	}))
	defer srv.Close()

	m := New("gpt-test", WithAPIKey("test-key"), WithBaseURL(srv.URL+"/"), WithHTTPClient(srv.Client()))
	ch, err := m.GenerateContent(context.Background(), &model.Request{Messages: []model.Message{model.NewUserMessage("q")}})
	require.NoError(t, err)
	_, last := collect(ch)
	require.NotNil(t, last)
	assert.Equal(t, "answer", last.Text())
	require.NotNil(t, last.Usage)
	assert.Equal(t, 4, last.Usage.TotalTokens)
}

func TestGenerateContentAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"slow down","type":"rate_limit"}}`))
	}))
	defer srv.Close()

	m := New("gpt-test", WithAPIKey("test-key"), WithBaseURL(srv.URL+"/"))
	for _, stream := range []bool{false, true} {
		ch, err := m.GenerateContent(context.Background(), &model.Request{
			Messages:         []model.Message{model.NewUserMessage("q")},
			GenerationConfig: model.GenerationConfig{Stream: stream},
		})
		require.NoError(t, err)
		_, last := collect(ch)
		require.NotNil(t, last)
		require.NotNil(t, last.Error, "stream=%t", stream)
		assert.Equal(t, http.StatusTooManyRequests, last.Error.StatusCode)
	}
}

func TestGenerateContentCancelClosesChannel(t *testing.T) {
	chunks := make([]string, 50)
	for i := range chunks {
		chunks[i] = chunk("x", "")
	}
	srv := streamServer(t, chunks, 20*time.Millisecond)
	defer srv.Close()

	m := New("gpt-test", WithAPIKey("test-key"), WithBaseURL(srv.URL+"/"), WithChannelBufferSize(1))
	ctx, cancel := context.WithCancel(context.Background())
	ch, err := m.GenerateContent(ctx, &model.Request{
		Messages:         []model.Message{model.NewUserMessage("q")},
		GenerationConfig: model.GenerationConfig{Stream: true},
	})
	require.NoError(t, err)
	<-ch
	cancel()

	done := make(chan struct{})
	go func() {
		for range ch {
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("response channel was not closed after cancellation")
	}
}

func TestGenerateContentNilRequest(t *testing.T) {
	_, err := New("gpt-test").GenerateContent(context.Background(), nil)
	assert.Error(t, err)
}
