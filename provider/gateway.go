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

// Package provider is the gateway AI-bearing nodes use to reach chat
// models. It routes model ids to model.Model implementations, folds
// streamed responses and maps failures to typed provider errors.
package provider

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"trpc.group/trpc-go/trpc-workflow-go/model"
)

// Request is a single model invocation.
type Request struct {
	ModelID     string
	System      string
	Prompt      string
	Messages    []model.Message
	Stream      bool
	Temperature *float64
	MaxTokens   *int
}

// Gateway invokes a model. The returned channel is closed when the model
// finishes or ctx is done; closing happens on the model side, so callers
// must cancel ctx to abort an in-flight stream.
type Gateway interface {
	Invoke(ctx context.Context, req *Request) (<-chan *model.Response, error)
}

// Factory creates a model for an id matched by prefix.
type Factory func(modelID string) (model.Model, error)

type route struct {
	prefix  string
	factory Factory
}

// Router is a Gateway that dispatches by model id. Models are registered
// explicitly or created on first use by a prefix factory.
type Router struct {
	mu        sync.RWMutex
	models    map[string]model.Model
	routes    []route
	defaultID string
}

// RouterOption configures a Router.
type RouterOption func(*Router)

// WithModel registers a model under its id.
func WithModel(id string, m model.Model) RouterOption {
	return func(r *Router) { r.models[id] = m }
}

// WithRoute creates models for ids starting with prefix. Longer prefixes win.
func WithRoute(prefix string, f Factory) RouterOption {
	return func(r *Router) { r.routes = append(r.routes, route{prefix: prefix, factory: f}) }
}

// WithDefaultModel sets the id used when a request names no model.
func WithDefaultModel(id string) RouterOption {
	return func(r *Router) { r.defaultID = id }
}

// NewRouter creates a Router.
func NewRouter(opts ...RouterOption) *Router {
	r := &Router{models: make(map[string]model.Model)}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the model serving id.
func (r *Router) Resolve(id string) (model.Model, error) {
	if id == "" {
		id = r.defaultID
	}
	if id == "" {
		return nil, &Error{Kind: KindBadRequest, Message: "no model specified and no default model configured"}
	}
	r.mu.RLock()
	m, ok := r.models[id]
	r.mu.RUnlock()
	if ok {
		return m, nil
	}

	var best *route
	for i := range r.routes {
		rt := &r.routes[i]
		if strings.HasPrefix(id, rt.prefix) && (best == nil || len(rt.prefix) > len(best.prefix)) {
			best = rt
		}
	}
	if best == nil {
		return nil, &Error{Kind: KindBadRequest, Model: id, Message: fmt.Sprintf("unknown model %q", id)}
	}
	m, err := best.factory(id)
	if err != nil {
		return nil, &Error{Kind: KindAuth, Model: id, Message: err.Error(), Err: err}
	}
	r.mu.Lock()
	if existing, ok := r.models[id]; ok {
		m = existing
	} else {
		r.models[id] = m
	}
	r.mu.Unlock()
	return m, nil
}

// Invoke implements Gateway.
func (r *Router) Invoke(ctx context.Context, req *Request) (<-chan *model.Response, error) {
	m, err := r.Resolve(req.ModelID)
	if err != nil {
		return nil, err
	}
	ch, err := m.GenerateContent(ctx, BuildModelRequest(req))
	if err != nil {
		return nil, Classify(m.Info().Name, err)
	}
	return ch, nil
}

// BuildModelRequest converts a gateway request into a model request. The
// system prompt comes first, then explicit messages, then the prompt.
func BuildModelRequest(req *Request) *model.Request {
	var msgs []model.Message
	if req.System != "" {
		msgs = append(msgs, model.NewSystemMessage(req.System))
	}
	msgs = append(msgs, req.Messages...)
	if req.Prompt != "" {
		msgs = append(msgs, model.NewUserMessage(req.Prompt))
	}
	return &model.Request{
		Messages: msgs,
		GenerationConfig: model.GenerationConfig{
			Stream:      req.Stream,
			Temperature: req.Temperature,
			MaxTokens:   req.MaxTokens,
		},
	}
}
