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

// Package redis stores runs in Redis: one JSON string per run with a TTL,
// a sorted set indexing runs by start time, and a hash of latest node
// records.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"trpc.group/trpc-go/trpc-workflow-go/engine"
	"trpc.group/trpc-go/trpc-workflow-go/runstore"
	sredis "trpc.group/trpc-go/trpc-workflow-go/storage/redis"
)

const (
	defaultPrefix = "workflow:"
	defaultTTL    = 7 * 24 * time.Hour
)

var _ runstore.Store = (*Store)(nil)

// Store is a Redis-backed runstore.Store.
type Store struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
	owned  bool
}

// Option configures a Store.
type Option func(*options)

type options struct {
	client redis.UniversalClient
	url    string
	prefix string
	ttl    time.Duration
}

// WithClient uses an existing client. The store does not close it.
func WithClient(c redis.UniversalClient) Option {
	return func(o *options) {
		o.client = c
	}
}

// WithURL builds a client from a redis:// URL.
func WithURL(url string) Option {
	return func(o *options) {
		o.url = url
	}
}

// WithPrefix namespaces every key. Defaults to "workflow:".
func WithPrefix(prefix string) Option {
	return func(o *options) {
		o.prefix = prefix
	}
}

// WithTTL sets how long a run is kept. Zero keeps runs forever.
func WithTTL(ttl time.Duration) Option {
	return func(o *options) {
		o.ttl = ttl
	}
}

// New connects to Redis and checks the connection.
func New(ctx context.Context, opts ...Option) (*Store, error) {
	o := options{prefix: defaultPrefix, ttl: defaultTTL}
	for _, opt := range opts {
		opt(&o)
	}
	s := &Store{client: o.client, prefix: o.prefix, ttl: o.ttl}
	if s.client == nil {
		c, err := sredis.NewClient(sredis.WithURL(o.url), sredis.WithKeyPrefix(o.prefix))
		if err != nil {
			return nil, err
		}
		s.client, s.owned = c, true
	}
	if err := s.client.Ping(ctx).Err(); err != nil {
		if s.owned {
			_ = s.client.Close()
		}
		return nil, fmt.Errorf("redis runstore: ping: %w", err)
	}
	return s, nil
}

func (s *Store) runKey(id string) string { return s.prefix + "run:" + id }
func (s *Store) indexKey() string        { return s.prefix + "runs" }
func (s *Store) latestKey() string       { return s.prefix + "latest" }

// Save implements runstore.Store.
func (s *Store) Save(ctx context.Context, snap *engine.Snapshot) error {
	b, err := runstore.EncodeSnapshot(snap)
	if err != nil {
		return err
	}
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.runKey(snap.RunID), b, s.ttl)
	pipe.ZAdd(ctx, s.indexKey(), redis.Z{Score: float64(snap.StartedAt.UnixMilli()), Member: snap.RunID})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis runstore: save %s: %w", snap.RunID, err)
	}
	return nil
}

// Load implements runstore.Store.
func (s *Store) Load(ctx context.Context, runID string) (*engine.Snapshot, error) {
	b, err := s.client.Get(ctx, s.runKey(runID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, runstore.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis runstore: load %s: %w", runID, err)
	}
	return runstore.DecodeSnapshot(b)
}

// List implements runstore.Store. Index entries whose run expired are
// pruned on the way.
func (s *Store) List(ctx context.Context, limit int) ([]runstore.Info, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit) - 1
	}
	ids, err := s.client.ZRevRange(ctx, s.indexKey(), 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("redis runstore: list: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	pipe := s.client.Pipeline()
	cmds := make([]*redis.StringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.Get(ctx, s.runKey(id))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("redis runstore: list: %w", err)
	}
	out := make([]runstore.Info, 0, len(ids))
	var expired []any
	for i, cmd := range cmds {
		b, err := cmd.Bytes()
		if errors.Is(err, redis.Nil) {
			expired = append(expired, ids[i])
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("redis runstore: list %s: %w", ids[i], err)
		}
		snap, err := runstore.DecodeSnapshot(b)
		if err != nil {
			return nil, err
		}
		out = append(out, runstore.InfoOf(snap))
	}
	if len(expired) > 0 {
		s.client.ZRem(ctx, s.indexKey(), expired...)
	}
	return out, nil
}

// Delete implements runstore.Store.
func (s *Store) Delete(ctx context.Context, runID string) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.runKey(runID))
	pipe.ZRem(ctx, s.indexKey(), runID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis runstore: delete %s: %w", runID, err)
	}
	return nil
}

// PutLatest implements runstore.Store.
func (s *Store) PutLatest(ctx context.Context, rec *engine.NodeRecord) error {
	b, err := runstore.EncodeRecord(rec)
	if err != nil {
		return err
	}
	if err := s.client.HSet(ctx, s.latestKey(), rec.NodeID, b).Err(); err != nil {
		return fmt.Errorf("redis runstore: put latest %s: %w", rec.NodeID, err)
	}
	return nil
}

// Latest implements runstore.Store.
func (s *Store) Latest(ctx context.Context) (map[string]*engine.NodeRecord, error) {
	raw, err := s.client.HGetAll(ctx, s.latestKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("redis runstore: latest: %w", err)
	}
	out := make(map[string]*engine.NodeRecord, len(raw))
	for id, v := range raw {
		rec, err := runstore.DecodeRecord([]byte(v))
		if err != nil {
			return nil, err
		}
		out[id] = rec
	}
	return out, nil
}

// Close closes the client if the store created it.
func (s *Store) Close() error {
	if s.owned {
		return s.client.Close()
	}
	return nil
}
