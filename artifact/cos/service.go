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

// Package cos stores artifacts in Tencent Cloud Object Storage.
//
// Object keys follow artifact.ObjectName:
//
//	{namespace}/{run_id}/{filename}/{version}
//	{namespace}/shared/{filename}/{version}
//
// Credentials come from WithSecretID/WithSecretKey or the COS_SECRETID and
// COS_SECRETKEY environment variables.
package cos

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strconv"
	"strings"

	cos "github.com/tencentyun/cos-go-sdk-v5"

	"trpc.group/trpc-go/trpc-workflow-go/artifact"
)

// Service is a COS backed artifact.Service.
type Service struct {
	store objectStore
}

// NewService creates a service for the bucket at bucketURL, for example
// https://bucket-1250000000.cos.ap-guangzhou.myqcloud.com.
func NewService(bucketURL string, opts ...Option) (*Service, error) {
	o := &options{
		timeout:   defaultTimeout,
		secretID:  os.Getenv("COS_SECRETID"),
		secretKey: os.Getenv("COS_SECRETKEY"),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.client != nil {
		return &Service{store: &sdkStore{c: o.client}}, nil
	}
	u, err := url.Parse(bucketURL)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("invalid COS bucket url %q", bucketURL)
	}
	httpClient := o.httpClient
	if httpClient == nil {
		httpClient = &http.Client{
			Transport: &cos.AuthorizationTransport{
				SecretID:  o.secretID,
				SecretKey: o.secretKey,
			},
		}
	}
	if o.timeout > 0 {
		httpClient.Timeout = o.timeout
	}
	return &Service{store: &sdkStore{c: cos.NewClient(&cos.BaseURL{BucketURL: u}, httpClient)}}, nil
}

// Save implements artifact.Service.
func (s *Service) Save(ctx context.Context, loc artifact.Location, filename string, art *artifact.Artifact) (int, error) {
	if art == nil {
		return 0, fmt.Errorf("save artifact %s: nil artifact", filename)
	}
	versions, err := s.Versions(ctx, loc, filename)
	if err != nil {
		return 0, err
	}
	version := 0
	if len(versions) > 0 {
		version = versions[len(versions)-1] + 1
	}
	mimeType := art.MimeType
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	name := artifact.ObjectName(loc, filename, version)
	if err := s.store.put(ctx, name, bytes.NewReader(art.Data), mimeType); err != nil {
		return 0, fmt.Errorf("upload artifact %s: %w", name, err)
	}
	return version, nil
}

// Load implements artifact.Service.
func (s *Service) Load(ctx context.Context, loc artifact.Location, filename string, version *int) (*artifact.Artifact, error) {
	var target int
	if version == nil {
		versions, err := s.Versions(ctx, loc, filename)
		if err != nil {
			return nil, err
		}
		if len(versions) == 0 {
			return nil, artifact.ErrNotFound
		}
		target = versions[len(versions)-1]
	} else {
		target = *version
	}
	name := artifact.ObjectName(loc, filename, target)
	body, header, err := s.store.get(ctx, name)
	if err != nil {
		if cos.IsNotFoundError(err) {
			return nil, fmt.Errorf("%s: %w", name, artifact.ErrNotFound)
		}
		return nil, fmt.Errorf("download artifact %s: %w", name, err)
	}
	defer body.Close()
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("read artifact %s: %w", name, err)
	}
	mimeType := header.Get("Content-Type")
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	return &artifact.Artifact{Data: data, MimeType: mimeType, Name: filename}, nil
}

// List implements artifact.Service.
func (s *Service) List(ctx context.Context, loc artifact.Location) ([]string, error) {
	seen := make(map[string]struct{})
	for _, prefix := range []string{artifact.RunPrefix(loc), artifact.SharedPrefix(loc)} {
		keys, err := s.store.list(ctx, prefix)
		if err != nil && !cos.IsNotFoundError(err) {
			return nil, fmt.Errorf("list artifacts under %s: %w", prefix, err)
		}
		for _, key := range keys {
			rest := strings.TrimPrefix(key, prefix)
			if i := strings.LastIndex(rest, "/"); i > 0 {
				seen[rest[:i]] = struct{}{}
			}
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Versions implements artifact.Service.
func (s *Service) Versions(ctx context.Context, loc artifact.Location, filename string) ([]int, error) {
	prefix := artifact.Path(loc, filename) + "/"
	keys, err := s.store.list(ctx, prefix)
	if err != nil {
		if cos.IsNotFoundError(err) {
			return []int{}, nil
		}
		return nil, fmt.Errorf("list versions of %s: %w", filename, err)
	}
	versions := []int{}
	for _, key := range keys {
		if v, err := strconv.Atoi(strings.TrimPrefix(key, prefix)); err == nil {
			versions = append(versions, v)
		}
	}
	sort.Ints(versions)
	return versions, nil
}

// Delete implements artifact.Service.
func (s *Service) Delete(ctx context.Context, loc artifact.Location, filename string) error {
	versions, err := s.Versions(ctx, loc, filename)
	if err != nil {
		return err
	}
	for _, v := range versions {
		name := artifact.ObjectName(loc, filename, v)
		if err := s.store.remove(ctx, name); err != nil && !cos.IsNotFoundError(err) {
			return fmt.Errorf("delete artifact %s: %w", name, err)
		}
	}
	return nil
}
