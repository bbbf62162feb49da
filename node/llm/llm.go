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

// Package llm implements the AI-bearing node types. Both prompt and
// template nodes render a prompt from their inputs and call the provider
// gateway, streaming chunks out as partial output.
package llm

import (
	"context"

	"trpc.group/trpc-go/trpc-workflow-go/graph"
	"trpc.group/trpc-go/trpc-workflow-go/node"
	"trpc.group/trpc-go/trpc-workflow-go/provider"
)

// Prompt config keys.
const (
	ConfigModel       = "model"
	ConfigPrompt      = "prompt"
	ConfigSystem      = "system"
	ConfigStream      = "stream"
	ConfigTemperature = "temperature"
	ConfigMaxTokens   = "maxTokens"
)

// Option configures the llm handlers.
type Option func(*options)

type options struct {
	defaultModel string
}

// WithDefaultModel sets the model used by nodes that name none. When empty
// the gateway's own default applies.
func WithDefaultModel(id string) Option {
	return func(o *options) {
		o.defaultModel = id
	}
}

func newOptions(opts []Option) *options {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Prompt returns the handler of prompt nodes.
func Prompt(gw provider.Gateway, opts ...Option) node.Handler {
	o := newOptions(opts)
	return node.HandlerFunc(func(ctx context.Context, inv *node.Invocation) (*node.Result, error) {
		tmpl := inv.Node.GetString(ConfigPrompt)
		if tmpl == "" && len(inv.Inputs) == 0 {
			return nil, node.Errorf("prompt node has neither a %q nor inputs", ConfigPrompt)
		}
		return generate(ctx, gw, o, inv, BuildPrompt(tmpl, inv.Inputs))
	})
}

// Template returns the handler of template nodes.
func Template(gw provider.Gateway, opts ...Option) node.Handler {
	o := newOptions(opts)
	return node.HandlerFunc(func(ctx context.Context, inv *node.Invocation) (*node.Result, error) {
		n := inv.Node
		tmpl, err := resolveTemplate(n.GetString(ConfigTemplate), n.GetString(ConfigCustom), n.GetString(ConfigInstructions))
		if err != nil {
			return nil, node.NewError(err.Error(), map[string]any{"template": n.GetString(ConfigTemplate)})
		}
		return generate(ctx, gw, o, inv, BuildPrompt(tmpl, inv.Inputs))
	})
}

func generate(ctx context.Context, gw provider.Gateway, o *options, inv *node.Invocation, prompt string) (*node.Result, error) {
	req := request(inv.Node, o, prompt, inv.Inputs)
	var onChunk func(string)
	if req.Stream {
		onChunk = func(chunk string) { inv.EmitPartial(chunk) }
	}
	c, err := provider.Generate(ctx, gw, req, onChunk)
	if err != nil {
		var partial any
		if c != nil && c.Text != "" {
			partial = c.Text
		}
		return &node.Result{Output: partial}, err
	}
	details := map[string]any{"model": req.ModelID}
	if c.FinishReason != "" {
		details["finishReason"] = c.FinishReason
	}
	if c.Usage != nil {
		details["totalTokens"] = c.Usage.TotalTokens
	}
	return &node.Result{Output: c.Text, Details: details}, nil
}

func request(n graph.Node, o *options, prompt string, in node.Inputs) *provider.Request {
	req := &provider.Request{
		ModelID: n.GetString(ConfigModel),
		System:  Render(n.GetString(ConfigSystem), in),
		Prompt:  prompt,
		Stream:  true,
	}
	if req.ModelID == "" {
		req.ModelID = o.defaultModel
	}
	if _, ok := n.Config[ConfigStream]; ok {
		req.Stream = n.GetBool(ConfigStream)
	}
	if t, ok := n.GetFloat(ConfigTemperature); ok {
		req.Temperature = &t
	}
	if m := n.GetInt(ConfigMaxTokens, 0); m > 0 {
		req.MaxTokens = &m
	}
	return req
}
