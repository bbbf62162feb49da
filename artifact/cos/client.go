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

package cos

import (
	"context"
	"io"
	"net/http"

	cos "github.com/tencentyun/cos-go-sdk-v5"
)

// objectStore is the subset of the COS API the service needs.
type objectStore interface {
	list(ctx context.Context, prefix string) ([]string, error)
	put(ctx context.Context, name string, body io.Reader, mimeType string) error
	get(ctx context.Context, name string) (io.ReadCloser, http.Header, error)
	remove(ctx context.Context, name string) error
}

type sdkStore struct {
	c *cos.Client
}

func (s *sdkStore) list(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	opt := &cos.BucketGetOptions{Prefix: prefix}
	for {
		res, _, err := s.c.Bucket.Get(ctx, opt)
		if err != nil {
			return nil, err
		}
		for _, obj := range res.Contents {
			keys = append(keys, obj.Key)
		}
		if !res.IsTruncated || res.NextMarker == "" {
			return keys, nil
		}
		opt.Marker = res.NextMarker
	}
}

func (s *sdkStore) put(ctx context.Context, name string, body io.Reader, mimeType string) error {
	_, err := s.c.Object.Put(ctx, name, body, &cos.ObjectPutOptions{
		ObjectPutHeaderOptions: &cos.ObjectPutHeaderOptions{ContentType: mimeType},
	})
	return err
}

func (s *sdkStore) get(ctx context.Context, name string) (io.ReadCloser, http.Header, error) {
	rsp, err := s.c.Object.Get(ctx, name, nil)
	if err != nil {
		return nil, nil, err
	}
	return rsp.Body, rsp.Header, nil
}

func (s *sdkStore) remove(ctx context.Context, name string) error {
	_, err := s.c.Object.Delete(ctx, name)
	return err
}
