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
	"net/http"
	"time"

	cos "github.com/tencentyun/cos-go-sdk-v5"
)

const defaultTimeout = 60 * time.Second

// Option configures the COS artifact service.
type Option func(*options)

type options struct {
	client     *cos.Client
	httpClient *http.Client
	timeout    time.Duration
	secretID   string
	secretKey  string
}

// WithClient uses a pre-built COS client. It takes precedence over the
// other options.
func WithClient(c *cos.Client) Option {
	return func(o *options) {
		o.client = c
	}
}

// WithHTTPClient sets the HTTP client used for COS requests.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) {
		o.httpClient = c
	}
}

// WithTimeout sets the HTTP request timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		o.timeout = d
	}
}

// WithSecretID sets the COS secret id. Defaults to $COS_SECRETID.
func WithSecretID(id string) Option {
	return func(o *options) {
		o.secretID = id
	}
}

// WithSecretKey sets the COS secret key. Defaults to $COS_SECRETKEY.
func WithSecretKey(key string) Option {
	return func(o *options) {
		o.secretKey = key
	}
}
