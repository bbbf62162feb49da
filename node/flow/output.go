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

package flow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"

	"trpc.group/trpc-go/trpc-workflow-go/artifact"
	"trpc.group/trpc-go/trpc-workflow-go/log"
	"trpc.group/trpc-go/trpc-workflow-go/node"
)

// Output config keys.
const (
	ConfigFormat   = "format"
	ConfigArtifact = "artifact"
)

// Output formats.
const (
	FormatText     = "text"
	FormatMarkdown = "markdown"
	FormatHTML     = "html"
	FormatJSON     = "json"
)

var mimeTypes = map[string]string{
	FormatText:     "text/plain; charset=utf-8",
	FormatMarkdown: "text/markdown; charset=utf-8",
	FormatHTML:     "text/html; charset=utf-8",
	FormatJSON:     "application/json",
}

// OutputOption configures the output handler.
type OutputOption func(*outputOptions)

type outputOptions struct {
	artifacts artifact.Service
	namespace string
}

// WithArtifacts saves rendered output through svc under namespace when a
// node names an artifact.
func WithArtifacts(svc artifact.Service, namespace string) OutputOption {
	return func(o *outputOptions) {
		o.artifacts = svc
		o.namespace = namespace
	}
}

// Output renders its inputs in the configured format.
func Output(opts ...OutputOption) node.Handler {
	o := &outputOptions{namespace: "default"}
	for _, opt := range opts {
		opt(o)
	}
	md := goldmark.New()
	return node.HandlerFunc(func(ctx context.Context, inv *node.Invocation) (*node.Result, error) {
		format := inv.Node.GetString(ConfigFormat)
		if format == "" {
			format = FormatText
		}
		var rendered string
		switch format {
		case FormatText:
			rendered = inv.Inputs.Text(joinSeparator)
		case FormatMarkdown:
			rendered = markdown(inv.Inputs)
		case FormatHTML:
			var buf bytes.Buffer
			if err := md.Convert([]byte(markdown(inv.Inputs)), &buf); err != nil {
				return nil, node.Errorf("render html: %v", err)
			}
			rendered = buf.String()
		case FormatJSON:
			var v any = inv.Inputs.Map()
			if len(inv.Inputs) == 1 {
				v = inv.Inputs[0].Value
			}
			b, err := json.MarshalIndent(v, "", "  ")
			if err != nil {
				return nil, node.Errorf("encode json: %v", err)
			}
			rendered = string(b)
		default:
			return nil, node.NewError("unknown output format", map[string]any{"format": format})
		}

		res := &node.Result{Output: rendered}
		name := inv.Node.GetString(ConfigArtifact)
		if name == "" {
			return res, nil
		}
		if o.artifacts == nil {
			log.Debugf("output %s names artifact %q but no artifact service is configured", inv.Node.ID, name)
			return res, nil
		}
		loc := artifact.Location{Namespace: o.namespace, RunID: inv.RunID}
		version, err := o.artifacts.Save(ctx, loc, name, &artifact.Artifact{
			Data:     []byte(rendered),
			MimeType: mimeTypes[format],
			Name:     name,
		})
		if err != nil {
			return res, fmt.Errorf("save artifact %s: %w", name, err)
		}
		res.Details = map[string]any{"artifact": name, "version": version}
		return res, nil
	})
}

// markdown renders one section per input. A single input is emitted
// without a heading.
func markdown(in node.Inputs) string {
	if len(in) == 1 {
		return node.ToText(in[0].Value)
	}
	var sb strings.Builder
	for _, i := range in {
		text := node.ToText(i.Value)
		if text == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString(joinSeparator)
		}
		fmt.Fprintf(&sb, "## %s\n\n%s", i.Key, text)
	}
	return sb.String()
}
