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

// Package echo provides a deterministic offline model. It answers with the
// last user message, or with a scripted reply, streaming word by word. It
// serves dry runs of a workflow without provider credentials.
package echo

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"trpc.group/trpc-go/trpc-workflow-go/model"
)

var _ model.Model = (*Model)(nil)

// ReplyFunc computes the reply text for a request. A non-nil
// *model.ResponseError is delivered as an API-level error.
type ReplyFunc func(req *model.Request) (string, *model.ResponseError)

// Model echoes requests.
type Model struct {
	name  string
	delay time.Duration
	reply ReplyFunc
	calls atomic.Int64
}

// Option configures a Model.
type Option func(*Model)

// WithDelay pauses between streamed words and before non-streamed replies.
func WithDelay(d time.Duration) Option {
	return func(m *Model) { m.delay = d }
}

// WithReply replaces the echo behaviour.
func WithReply(f ReplyFunc) Option {
	return func(m *Model) { m.reply = f }
}

// WithText always answers text.
func WithText(text string) Option {
	return WithReply(func(*model.Request) (string, *model.ResponseError) { return text, nil })
}

// WithError always fails with the given status and message.
func WithError(status int, message string) Option {
	return WithReply(func(*model.Request) (string, *model.ResponseError) {
		return "", &model.ResponseError{Type: model.ErrorTypeAPIError, StatusCode: status, Message: message}
	})
}

// New creates an echo model.
func New(name string, opts ...Option) *Model {
	m := &Model{name: name, reply: lastUserMessage}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Info implements model.Model.
func (m *Model) Info() model.Info {
	return model.Info{Name: m.name}
}

// Calls returns how many requests the model has served.
func (m *Model) Calls() int {
	return int(m.calls.Load())
}

// GenerateContent implements model.Model.
func (m *Model) GenerateContent(ctx context.Context, req *model.Request) (<-chan *model.Response, error) {
	m.calls.Add(1)
	ch := make(chan *model.Response, 1)
	text, rerr := m.reply(req)
	go func() {
		defer close(ch)
		if rerr != nil {
			send(ctx, ch, &model.Response{Model: m.name, Error: rerr, Done: true, Timestamp: time.Now()})
			return
		}
		if req.Stream {
			for i, word := range strings.SplitAfter(text, " ") {
				if i > 0 && !sleep(ctx, m.delay) {
					return
				}
				if !send(ctx, ch, &model.Response{
					Model:     m.name,
					Object:    model.ObjectTypeChatCompletionChunk,
					IsPartial: true,
					Timestamp: time.Now(),
					Choices:   []model.Choice{{Delta: model.NewAssistantMessage(word)}},
				}) {
					return
				}
			}
		} else if !sleep(ctx, m.delay) {
			return
		}
		stop := "stop"
		send(ctx, ch, &model.Response{
			Model:     m.name,
			Object:    model.ObjectTypeChatCompletion,
			Done:      true,
			Timestamp: time.Now(),
			Choices:   []model.Choice{{Message: model.NewAssistantMessage(text), FinishReason: &stop}},
			Usage:     &model.Usage{CompletionTokens: len(strings.Fields(text)), TotalTokens: len(strings.Fields(text))},
		})
	}()
	return ch, nil
}

func lastUserMessage(req *model.Request) (string, *model.ResponseError) {
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == model.RoleUser {
			return req.Messages[i].Content, nil
		}
	}
	return "", nil
}

func send(ctx context.Context, ch chan<- *model.Response, rsp *model.Response) bool {
	select {
	case ch <- rsp:
		return true
	case <-ctx.Done():
		return false
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
