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

// Package redis builds the Redis clients shared by the Redis-backed stores.
package redis

import (
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Builder creates a client from builder options.
type Builder func(opts ...Option) (redis.UniversalClient, error)

var (
	mu        sync.RWMutex
	builder   Builder = DefaultBuilder
	instances         = map[string][]Option{}
)

// SetBuilder replaces the builder used by NewClient.
func SetBuilder(b Builder) {
	mu.Lock()
	defer mu.Unlock()
	builder = b
}

// GetBuilder returns the builder used by NewClient.
func GetBuilder() Builder {
	mu.RLock()
	defer mu.RUnlock()
	return builder
}

// Options configure a client.
type Options struct {
	URL       string
	KeyPrefix string
}

// Option configures Options.
type Option func(*Options)

// WithURL sets the redis:// or rediss:// URL.
func WithURL(url string) Option {
	return func(o *Options) {
		o.URL = url
	}
}

// WithKeyPrefix records the key namespace a store should use.
func WithKeyPrefix(prefix string) Option {
	return func(o *Options) {
		o.KeyPrefix = prefix
	}
}

// Apply folds opts into Options.
func Apply(opts ...Option) Options {
	var o Options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// DefaultBuilder parses the URL and creates a universal client.
func DefaultBuilder(opts ...Option) (redis.UniversalClient, error) {
	o := Apply(opts...)
	if o.URL == "" {
		return nil, fmt.Errorf("redis: url is empty")
	}
	parsed, err := redis.ParseURL(o.URL)
	if err != nil {
		return nil, fmt.Errorf("redis: parse url %s: %w", o.URL, err)
	}
	return redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:           []string{parsed.Addr},
		DB:              parsed.DB,
		Username:        parsed.Username,
		Password:        parsed.Password,
		Protocol:        parsed.Protocol,
		ClientName:      parsed.ClientName,
		TLSConfig:       parsed.TLSConfig,
		MaxRetries:      parsed.MaxRetries,
		DialTimeout:     parsed.DialTimeout,
		ReadTimeout:     parsed.ReadTimeout,
		WriteTimeout:    parsed.WriteTimeout,
		PoolSize:        parsed.PoolSize,
		MinIdleConns:    parsed.MinIdleConns,
		ConnMaxIdleTime: parsed.ConnMaxIdleTime,
	}), nil
}

// Register names a set of client options, e.g. for configuration files
// that refer to Redis instances by name.
func Register(name string, opts ...Option) {
	mu.Lock()
	defer mu.Unlock()
	instances[name] = append(instances[name], opts...)
}

// Lookup returns the options registered under name.
func Lookup(name string) ([]Option, bool) {
	mu.RLock()
	defer mu.RUnlock()
	opts, ok := instances[name]
	return opts, ok
}

// NewClient builds a client with the current builder.
func NewClient(opts ...Option) (redis.UniversalClient, error) {
	return GetBuilder()(opts...)
}
