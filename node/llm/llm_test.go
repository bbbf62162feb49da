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

package llm

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trpc.group/trpc-go/trpc-workflow-go/graph"
	"trpc.group/trpc-go/trpc-workflow-go/model"
	"trpc.group/trpc-go/trpc-workflow-go/model/echo"
	"trpc.group/trpc-go/trpc-workflow-go/node"
	"trpc.group/trpc-go/trpc-workflow-go/provider"
)

func TestRender(t *testing.T) {
	in := node.Inputs{
		{Key: "topic", Value: "Go"},
		{Key: "tone", Value: "dry"},
	}
	assert.Equal(t, "Write about Go in a dry tone.", Render("Write about {topic} in a {{ tone }} tone.", in))
	assert.Equal(t, "Go\n\ndry", Render("{input}", in))
	assert.Equal(t, "missing: {audience} / ", Render("missing: {audience} / {audience?}", in))
	assert.Equal(t, `{"json": true}`, Render(`{"json": true}`, in))
	assert.Equal(t, "", Render("", in))
}

func TestBuildPrompt(t *testing.T) {
	in := node.Inputs{{Key: "src", Value: "the text"}}
	assert.Equal(t, "Summarize: the text", BuildPrompt("Summarize: {input}", in))
	assert.Equal(t, "Summarize.\n\nContext:\nthe text", BuildPrompt("Summarize.", in))
	assert.Equal(t, "the text", BuildPrompt("", in))
	assert.Equal(t, "Hello", BuildPrompt("Hello", nil))
	assert.True(t, HasPlaceholder("{{input?}}"))
	assert.False(t, HasPlaceholder("no braces"))
}

func TestResolveTemplate(t *testing.T) {
	tmpl, err := resolveTemplate("summary", "", "")
	require.NoError(t, err)
	assert.Equal(t, Catalog["summary"], tmpl)

	tmpl, err = resolveTemplate("blog", "", "Use British spelling.")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(tmpl, Catalog["blog"]))
	assert.True(t, strings.HasSuffix(tmpl, "Use British spelling."))

	tmpl, err = resolveTemplate("anything", "Haiku about {input}", "")
	require.NoError(t, err)
	assert.Equal(t, "Haiku about {input}", tmpl)

	_, err = resolveTemplate("poem", "", "")
	assert.Error(t, err)
	assert.Equal(t, []string{"blog", "keypoints", "newsletter", "summary", "thread"}, TemplateNames())
}

type recordingGateway struct {
	provider.Gateway
	mu   sync.Mutex
	reqs []*provider.Request
}

func (g *recordingGateway) Invoke(ctx context.Context, req *provider.Request) (<-chan *model.Response, error) {
	g.mu.Lock()
	g.reqs = append(g.reqs, req)
	g.mu.Unlock()
	return g.Gateway.Invoke(ctx, req)
}

func invoke(t *testing.T, h node.Handler, typ graph.NodeType, cfg map[string]any, in node.Inputs) (*node.Result, []any, error) {
	t.Helper()
	var (
		mu       sync.Mutex
		partials []any
	)
	res, err := h.Execute(context.Background(), &node.Invocation{
		RunID:  "r",
		Node:   graph.Node{ID: "p", Type: typ, Config: cfg},
		Inputs: in,
		Emit: func(v any) {
			mu.Lock()
			partials = append(partials, v)
			mu.Unlock()
		},
	})
	return res, partials, err
}

func TestPromptStreams(t *testing.T) {
	gw := &recordingGateway{Gateway: provider.NewRouter(provider.WithModel("echo", echo.New("echo")))}
	h := Prompt(gw, WithDefaultModel("echo"))
	res, partials, err := invoke(t, h, graph.NodeTypePrompt, map[string]any{
		ConfigPrompt:      "Say {input}",
		ConfigSystem:      "Be brief about {input}.",
		ConfigTemperature: 0.2,
		ConfigMaxTokens:   64,
	}, node.Inputs{{Key: "s", Value: "hello world"}})
	require.NoError(t, err)
	assert.Equal(t, "Say hello world", res.Output)
	assert.Equal(t, []any{"Say ", "hello ", "world"}, partials)
	assert.Equal(t, "echo", res.Details["model"])
	assert.Equal(t, "stop", res.Details["finishReason"])

	require.Len(t, gw.reqs, 1)
	req := gw.reqs[0]
	assert.Equal(t, "echo", req.ModelID)
	assert.Equal(t, "Be brief about hello world.", req.System)
	assert.True(t, req.Stream)
	require.NotNil(t, req.Temperature)
	assert.InDelta(t, 0.2, *req.Temperature, 1e-9)
	require.NotNil(t, req.MaxTokens)
	assert.Equal(t, 64, *req.MaxTokens)
}

func TestPromptNonStreaming(t *testing.T) {
	gw := provider.NewRouter(provider.WithModel("fixed", echo.New("fixed", echo.WithText("done"))))
	res, partials, err := invoke(t, Prompt(gw), graph.NodeTypePrompt,
		map[string]any{ConfigModel: "fixed", ConfigPrompt: "go", ConfigStream: false}, nil)
	require.NoError(t, err)
	assert.Equal(t, "done", res.Output)
	assert.Empty(t, partials)
}

func TestPromptRequiresPromptOrInputs(t *testing.T) {
	gw := provider.NewRouter(provider.WithModel("echo", echo.New("echo")))
	_, _, err := invoke(t, Prompt(gw, WithDefaultModel("echo")), graph.NodeTypePrompt, nil, nil)
	assert.Error(t, err)
}

func TestPromptProviderError(t *testing.T) {
	gw := provider.NewRouter(provider.WithModel("bad", echo.New("bad", echo.WithError(429, "quota"))))
	_, _, err := invoke(t, Prompt(gw), graph.NodeTypePrompt,
		map[string]any{ConfigModel: "bad", ConfigPrompt: "x"}, nil)
	var pe *provider.Error
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, provider.KindRateLimit, pe.Kind)
	assert.Equal(t, node.KindProvider, node.Wrap("p", err).Kind)
}

func TestPromptCancelledKeepsPartial(t *testing.T) {
	gw := provider.NewRouter(provider.WithModel("slow",
		echo.New("slow", echo.WithDelay(time.Hour), echo.WithText("first second"))))
	ctx, cancel := context.WithCancel(context.Background())
	h := Prompt(gw)
	res, err := h.Execute(ctx, &node.Invocation{
		Node: graph.Node{ID: "p", Type: graph.NodeTypePrompt, Config: map[string]any{ConfigModel: "slow", ConfigPrompt: "x"}},
		Emit: func(any) { cancel() },
	})
	require.True(t, errors.Is(err, context.Canceled))
	require.NotNil(t, res)
	assert.Equal(t, "first ", res.Output)
}

func TestTemplateHandler(t *testing.T) {
	gw := &recordingGateway{Gateway: provider.NewRouter(provider.WithModel("echo", echo.New("echo")))}
	h := Template(gw, WithDefaultModel("echo"))
	res, _, err := invoke(t, h, graph.NodeTypeTemplate, map[string]any{
		ConfigTemplate:     "keypoints",
		ConfigInstructions: "Three bullets max.",
	}, node.Inputs{{Key: "t", Value: "transcript body"}})
	require.NoError(t, err)
	out := res.Output.(string)
	assert.Contains(t, out, "transcript body")
	assert.True(t, strings.HasSuffix(out, "Three bullets max."))

	_, _, err = invoke(t, h, graph.NodeTypeTemplate, map[string]any{ConfigTemplate: "nope"}, nil)
	var ee *node.ExecError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, "nope", ee.Details["template"])
}
