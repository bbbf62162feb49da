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

// Package source implements source nodes, which bring content into a
// workflow: literal text, files under a sandbox root, PDF and DOCX
// documents, and YouTube or Instagram video transcripts.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"trpc.group/trpc-go/trpc-workflow-go/node"
)

// Config keys.
const (
	ConfigKind     = "kind"
	ConfigText     = "text"
	ConfigPath     = "path"
	ConfigPattern  = "pattern"
	ConfigCharset  = "charset"
	ConfigURL      = "url"
	ConfigLanguage = "language"
)

// Kinds.
const (
	KindText       = "text"
	KindFile       = "file"
	KindGlob       = "glob"
	KindPDF        = "pdf"
	KindDOCX       = "docx"
	KindTranscript = "transcript"
	KindInstagram  = "instagram"
)

const globSeparator = "\n\n"

// Option configures the source handler.
type Option func(*options)

type options struct {
	root       string
	transcript *TranscriptFetcher
	instagram  *InstagramFetcher
}

// WithRoot confines file access to dir. Defaults to the working directory.
func WithRoot(dir string) Option {
	return func(o *options) {
		o.root = dir
	}
}

// WithTranscripts enables the transcript kind.
func WithTranscripts(f *TranscriptFetcher) Option {
	return func(o *options) {
		o.transcript = f
	}
}

// WithInstagram enables the instagram kind.
func WithInstagram(f *InstagramFetcher) Option {
	return func(o *options) {
		o.instagram = f
	}
}

// Handler returns the source node handler.
func Handler(opts ...Option) node.Handler {
	o := &options{root: "."}
	for _, opt := range opts {
		opt(o)
	}
	return node.HandlerFunc(o.execute)
}

func (o *options) execute(ctx context.Context, inv *node.Invocation) (*node.Result, error) {
	n := inv.Node
	kind := n.GetString(ConfigKind)
	if kind == "" {
		kind = KindText
	}
	switch kind {
	case KindText:
		text := n.GetString(ConfigText)
		if text == "" && len(inv.Inputs) > 0 {
			text = inv.Inputs.Text("\n\n")
		}
		return &node.Result{Output: text}, nil
	case KindFile:
		f, err := o.open(n.GetString(ConfigPath))
		if err != nil {
			return nil, err
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, node.Errorf("read %s: %v", n.GetString(ConfigPath), err)
		}
		text, charset, err := decode(data, n.GetString(ConfigCharset))
		if err != nil {
			return nil, node.Errorf("%v", err)
		}
		return &node.Result{Output: text, Details: map[string]any{"charset": charset, "bytes": len(data)}}, nil
	case KindGlob:
		return o.glob(ctx, n.GetString(ConfigPattern), n.GetString(ConfigCharset))
	case KindPDF, KindDOCX:
		f, err := o.open(n.GetString(ConfigPath))
		if err != nil {
			return nil, err
		}
		defer f.Close()
		read, unit := readPDF, "pages"
		if kind == KindDOCX {
			read, unit = readDOCX, "paragraphs"
		}
		text, count, err := read(f)
		if err != nil {
			return nil, node.Errorf("read %s: %v", n.GetString(ConfigPath), err)
		}
		return &node.Result{Output: text, Details: map[string]any{unit: count}}, nil
	case KindTranscript:
		return o.fetchTranscript(ctx, inv)
	case KindInstagram:
		return o.fetchInstagram(ctx, inv)
	default:
		return nil, node.NewError("unknown source kind", map[string]any{"kind": kind})
	}
}

// open opens a config path under the root. Absolute paths, paths with
// ".." and symlinks leading out of the root are rejected.
func (o *options) open(p string) (*os.File, error) {
	if p == "" {
		return nil, node.Errorf("source needs a %q", ConfigPath)
	}
	clean := filepath.Clean(filepath.FromSlash(p))
	if !filepath.IsLocal(clean) {
		return nil, node.NewError("path escapes the source root", map[string]any{"path": p})
	}
	root, err := os.OpenRoot(o.root)
	if err != nil {
		return nil, node.Errorf("open source root: %v", err)
	}
	defer root.Close()
	f, err := root.Open(clean)
	if err != nil {
		return nil, node.NewError(fmt.Sprintf("open %s: %v", p, err), map[string]any{"path": p})
	}
	return f, nil
}

func (o *options) glob(ctx context.Context, pattern, charset string) (*node.Result, error) {
	if pattern == "" {
		return nil, node.Errorf("glob source needs a %q", ConfigPattern)
	}
	if !doublestar.ValidatePattern(pattern) {
		return nil, node.NewError("invalid glob pattern", map[string]any{"pattern": pattern})
	}
	root, err := os.OpenRoot(o.root)
	if err != nil {
		return nil, node.Errorf("open source root: %v", err)
	}
	defer root.Close()
	fsys := root.FS()
	matches, err := doublestar.Glob(fsys, pattern)
	if err != nil {
		return nil, node.Errorf("glob %s: %v", pattern, err)
	}
	sort.Strings(matches)
	var (
		parts []string
		files []string
	)
	for _, m := range matches {
		if err := ctx.Err(); err != nil {
			return &node.Result{Output: strings.Join(parts, globSeparator)}, err
		}
		info, err := fs.Stat(fsys, m)
		if err != nil || info.IsDir() {
			continue
		}
		data, err := fs.ReadFile(fsys, m)
		if err != nil {
			return nil, node.Errorf("read %s: %v", m, err)
		}
		text, _, err := decode(data, charset)
		if err != nil {
			return nil, node.Errorf("%s: %v", m, err)
		}
		parts = append(parts, text)
		files = append(files, m)
	}
	if len(files) == 0 {
		return nil, node.NewError("glob matched no files", map[string]any{"pattern": pattern})
	}
	return &node.Result{
		Output:  strings.Join(parts, globSeparator),
		Details: map[string]any{"files": files},
	}, nil
}

// videoURL reads the url from config, falling back to the inputs.
func videoURL(inv *node.Invocation) string {
	if raw := inv.Node.GetString(ConfigURL); raw != "" {
		return raw
	}
	return strings.TrimSpace(inv.Inputs.Text(" "))
}

// fetchError maps a fetcher failure to a node error.
func fetchError(ctx context.Context, raw string, err error) error {
	if ctx.Err() != nil {
		return fmt.Errorf("fetch transcript: %w", err)
	}
	var iu *InvalidURLError
	var te *TranscriptError
	switch {
	case errors.As(err, &iu):
		return node.NewError(iu.Error(), map[string]any{"url": raw})
	case errors.As(err, &te):
		return node.NewError(te.Message, map[string]any{
			"status":    te.Status,
			"errorType": te.Type,
			"videoId":   te.VideoID,
			"retryable": te.Retryable(),
		})
	}
	return fmt.Errorf("fetch transcript: %w", err)
}

func (o *options) fetchTranscript(ctx context.Context, inv *node.Invocation) (*node.Result, error) {
	if o.transcript == nil {
		return nil, node.Errorf("transcript sources are not configured")
	}
	raw := videoURL(inv)
	t, err := o.transcript.Fetch(ctx, raw)
	if err != nil {
		return nil, fetchError(ctx, raw, err)
	}
	return &node.Result{Output: map[string]any{
		"transcript": t.Text,
		"language":   t.Language,
		"videoId":    t.VideoID,
		"cached":     t.Cached,
	}}, nil
}

func (o *options) fetchInstagram(ctx context.Context, inv *node.Invocation) (*node.Result, error) {
	if o.instagram == nil {
		return nil, node.Errorf("instagram sources are not configured")
	}
	raw := videoURL(inv)
	t, err := o.instagram.Fetch(ctx, raw, inv.Node.GetString(ConfigLanguage))
	if err != nil {
		return nil, fetchError(ctx, raw, err)
	}
	return &node.Result{
		Output: map[string]any{
			"transcript": t.Text,
			"language":   t.Language,
			"postCode":   t.PostCode,
			"author":     t.Author,
			"caption":    t.Caption,
			"cached":     t.Cached,
		},
		Details: map[string]any{"confidence": t.Confidence, "videoSizeMb": t.VideoSizeMB},
	}, nil
}
