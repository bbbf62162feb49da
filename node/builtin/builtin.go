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

// Package builtin installs the handlers of every node type.
package builtin

import (
	"fmt"
	"time"

	"trpc.group/trpc-go/trpc-workflow-go/artifact"
	"trpc.group/trpc-go/trpc-workflow-go/graph"
	"trpc.group/trpc-go/trpc-workflow-go/node"
	"trpc.group/trpc-go/trpc-workflow-go/node/condition"
	"trpc.group/trpc-go/trpc-workflow-go/node/flow"
	"trpc.group/trpc-go/trpc-workflow-go/node/llm"
	"trpc.group/trpc-go/trpc-workflow-go/node/merge"
	"trpc.group/trpc-go/trpc-workflow-go/node/source"
	"trpc.group/trpc-go/trpc-workflow-go/provider"
)

// Deps are the collaborators the handlers need. Gateway is required for
// prompt and template nodes; everything else is optional.
type Deps struct {
	Gateway      provider.Gateway
	DefaultModel string
	// PromptTimeout bounds prompt and template executions.
	PromptTimeout time.Duration
	// ConditionTimeout bounds condition evaluations.
	ConditionTimeout time.Duration
	SourceRoot       string
	Transcripts      *source.TranscriptFetcher
	Instagram        *source.InstagramFetcher
	Artifacts        artifact.Service
	// ArtifactNamespace groups saved outputs. Defaults to "default".
	ArtifactNamespace string
}

type entry struct {
	t       graph.NodeType
	h       node.Handler
	timeout time.Duration
}

// Register installs a handler for every node type into reg.
func Register(reg *node.Registry, deps Deps) error {
	srcOpts := []source.Option{}
	if deps.SourceRoot != "" {
		srcOpts = append(srcOpts, source.WithRoot(deps.SourceRoot))
	}
	if deps.Transcripts != nil {
		srcOpts = append(srcOpts, source.WithTranscripts(deps.Transcripts))
	}
	if deps.Instagram != nil {
		srcOpts = append(srcOpts, source.WithInstagram(deps.Instagram))
	}
	var outOpts []flow.OutputOption
	if deps.Artifacts != nil {
		ns := deps.ArtifactNamespace
		if ns == "" {
			ns = "default"
		}
		outOpts = append(outOpts, flow.WithArtifacts(deps.Artifacts, ns))
	}
	llmOpts := []llm.Option{llm.WithDefaultModel(deps.DefaultModel)}

	passthrough := flow.Passthrough()
	entries := []entry{
		{graph.NodeTypeStart, passthrough, 0},
		{graph.NodeTypeTrigger, passthrough, 0},
		{graph.NodeTypeConnector, passthrough, 0},
		{graph.NodeTypeSource, source.Handler(srcOpts...), 0},
		{graph.NodeTypeAction, flow.Action(), 0},
		{graph.NodeTypeOutput, flow.Output(outOpts...), 0},
		{graph.NodeTypeCondition, condition.Handler(), deps.ConditionTimeout},
		{graph.NodeTypeMerge, merge.Handler(), 0},
	}
	if deps.Gateway != nil {
		entries = append(entries,
			entry{graph.NodeTypePrompt, llm.Prompt(deps.Gateway, llmOpts...), deps.PromptTimeout},
			entry{graph.NodeTypeTemplate, llm.Template(deps.Gateway, llmOpts...), deps.PromptTimeout},
		)
	}
	for _, e := range entries {
		var opts []node.RegisterOption
		if e.timeout > 0 {
			opts = append(opts, node.WithTimeout(e.timeout))
		}
		if err := reg.Register(e.t, e.h, opts...); err != nil {
			return fmt.Errorf("register %s: %w", e.t, err)
		}
	}
	return nil
}

// NewRegistry creates a registry with every built-in handler installed.
func NewRegistry(deps Deps, opts ...node.RegistryOption) (*node.Registry, error) {
	reg := node.NewRegistry(opts...)
	if err := Register(reg, deps); err != nil {
		return nil, err
	}
	return reg, nil
}
