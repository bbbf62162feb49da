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

package graph

import (
	"fmt"
	"io"
	"strings"
)

const (
	// RankDirLR sets a left-to-right layout in Graphviz.
	RankDirLR = "LR"
	// RankDirTB sets a top-to-bottom layout in Graphviz.
	RankDirTB = "TB"
)

const (
	shapeBox     = "box"
	shapeDiamond = "diamond"
	shapeOval    = "oval"
	shapeNote    = "note"

	colorAIFill        = "#e3f2fd"
	colorAIBorder      = "#2196f3"
	colorSourceFill    = "#fff3e0"
	colorSourceBorder  = "#ff9800"
	colorRootFill      = "#e1f5e1"
	colorRootBorder    = "#4caf50"
	colorMergeFill     = "#f3e5f5"
	colorMergeBorder   = "#9c27b0"
	colorBranchFill    = "#eeeeee"
	colorBranchBorder  = "#757575"
	colorDefaultFill   = "#fafafa"
	colorDefaultBorder = "#9e9e9e"

	colorBranchEdge = "#999999"
)

// statusFill colors nodes by run status when WithStatus is used.
var statusFill = map[string]string{
	"running":  "#fff9c4",
	"success":  "#c8e6c9",
	"error":    "#ffcdd2",
	"bypassed": "#e0e0e0",
}

// VizOptions controls DOT rendering.
type VizOptions struct {
	// RankDir sets DOT graph direction: "LR" (left-to-right) or "TB" (top-to-bottom).
	RankDir string
	// GraphLabel optionally labels the whole graph.
	GraphLabel string
	// Status colors nodes by their run status, keyed by node id.
	Status map[string]string
}

// VizOption configures VizOptions.
type VizOption func(*VizOptions)

// WithRankDir sets the layout direction.
func WithRankDir(dir string) VizOption {
	return func(o *VizOptions) {
		if dir == RankDirLR || dir == RankDirTB {
			o.RankDir = dir
		}
	}
}

// WithGraphLabel labels the rendered graph.
func WithGraphLabel(label string) VizOption {
	return func(o *VizOptions) { o.GraphLabel = label }
}

// WithStatus fills nodes according to run status.
func WithStatus(status map[string]string) VizOption {
	return func(o *VizOptions) { o.Status = status }
}

// DOT renders the graph in Graphviz DOT format.
func (g *Graph) DOT(opts ...VizOption) string {
	o := &VizOptions{RankDir: RankDirLR}
	for _, fn := range opts {
		fn(o)
	}
	var b strings.Builder
	b.WriteString("digraph G {\n")
	fmt.Fprintf(&b, "  rankdir=%s;\n", escapeLabel(o.RankDir))
	b.WriteString("  node [fontname=\"Helvetica\"];\n")
	b.WriteString("  edge [fontname=\"Helvetica\"];\n")
	if o.GraphLabel != "" {
		fmt.Fprintf(&b, "  label=\"%s\";\n  labelloc=t;\n", escapeLabel(o.GraphLabel))
	}
	for _, n := range g.nodes {
		label := n.Label
		if label == "" {
			label = n.ID
		}
		shape, fill, color := styleForNodeType(n.Type)
		if s, ok := statusFill[o.Status[n.ID]]; ok {
			fill = s
		}
		fmt.Fprintf(&b, "  \"%s\" [label=\"%s\\n(%s)\", shape=%s, style=filled, fillcolor=\"%s\", color=\"%s\"];\n",
			escapeLabel(n.ID), escapeLabel(label), n.Type, shape, fill, color)
	}
	for _, e := range g.edges {
		if e.SourceHandle != "" {
			fmt.Fprintf(&b, "  \"%s\" -> \"%s\" [style=dashed, color=\"%s\", label=\"%s\"];\n",
				escapeLabel(e.Source), escapeLabel(e.Target), colorBranchEdge, escapeLabel(e.SourceHandle))
			continue
		}
		fmt.Fprintf(&b, "  \"%s\" -> \"%s\";\n", escapeLabel(e.Source), escapeLabel(e.Target))
	}
	b.WriteString("}\n")
	return b.String()
}

// WriteDOT writes the DOT representation to the provided writer.
func (g *Graph) WriteDOT(w io.Writer, opts ...VizOption) error {
	_, err := io.WriteString(w, g.DOT(opts...))
	return err
}

func styleForNodeType(nt NodeType) (shape, fill, color string) {
	switch nt {
	case NodeTypePrompt, NodeTypeTemplate:
		return shapeBox, colorAIFill, colorAIBorder
	case NodeTypeSource:
		return shapeNote, colorSourceFill, colorSourceBorder
	case NodeTypeStart, NodeTypeTrigger:
		return shapeOval, colorRootFill, colorRootBorder
	case NodeTypeMerge:
		return shapeDiamond, colorMergeFill, colorMergeBorder
	case NodeTypeCondition:
		return shapeDiamond, colorBranchFill, colorBranchBorder
	default:
		return shapeBox, colorDefaultFill, colorDefaultBorder
	}
}

// escapeLabel escapes label strings for DOT.
func escapeLabel(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "\"", "\\\"")
	s = strings.ReplaceAll(s, "\n", "\\n")
	return s
}
