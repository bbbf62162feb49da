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

package provider

import (
	"context"
	"strings"

	"trpc.group/trpc-go/trpc-workflow-go/model"
)

// Completion is the folded result of a model response stream.
type Completion struct {
	Text         string
	FinishReason string
	Usage        *model.Usage
}

// Collect folds a response stream into a Completion. onChunk, if set, is
// called with each streamed delta. When ctx is done Collect returns the
// text gathered so far together with ctx.Err(); response-level errors come
// back as *Error, also with the partial text.
func Collect(ctx context.Context, modelID string, ch <-chan *model.Response, onChunk func(string)) (*Completion, error) {
	var (
		buf   strings.Builder
		final string
		done  bool
		out   = &Completion{}
	)
	for {
		select {
		case <-ctx.Done():
			out.Text = buf.String()
			return out, ctx.Err()
		case rsp, ok := <-ch:
			if !ok {
				if done && final != "" {
					out.Text = final
				} else {
					out.Text = buf.String()
				}
				if err := ctx.Err(); err != nil {
					return out, err
				}
				return out, nil
			}
			if rsp == nil {
				continue
			}
			if rsp.Error != nil {
				out.Text = buf.String()
				return out, FromResponse(modelID, rsp.Error)
			}
			if rsp.Usage != nil {
				out.Usage = rsp.Usage
			}
			for _, c := range rsp.Choices {
				if c.FinishReason != nil {
					out.FinishReason = *c.FinishReason
				}
			}
			if rsp.IsPartial {
				delta := rsp.Text()
				if delta == "" {
					continue
				}
				buf.WriteString(delta)
				if onChunk != nil {
					onChunk(delta)
				}
				continue
			}
			if rsp.Done {
				done = true
				final = rsp.Text()
			}
		}
	}
}

// Generate invokes gw and folds the result.
func Generate(ctx context.Context, gw Gateway, req *Request, onChunk func(string)) (*Completion, error) {
	ch, err := gw.Invoke(ctx, req)
	if err != nil {
		return &Completion{}, Classify(req.ModelID, err)
	}
	return Collect(ctx, req.ModelID, ch, onChunk)
}
