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

package main

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"trpc.group/trpc-go/trpc-workflow-go/artifact"
	"trpc.group/trpc-go/trpc-workflow-go/artifact/cos"
	artifactinmemory "trpc.group/trpc-go/trpc-workflow-go/artifact/inmemory"
	"trpc.group/trpc-go/trpc-workflow-go/config"
	"trpc.group/trpc-go/trpc-workflow-go/internal/retry"
	"trpc.group/trpc-go/trpc-workflow-go/log"
	"trpc.group/trpc-go/trpc-workflow-go/model"
	"trpc.group/trpc-go/trpc-workflow-go/model/echo"
	"trpc.group/trpc-go/trpc-workflow-go/model/gemini"
	"trpc.group/trpc-go/trpc-workflow-go/model/openai"
	"trpc.group/trpc-go/trpc-workflow-go/node"
	"trpc.group/trpc-go/trpc-workflow-go/node/builtin"
	"trpc.group/trpc-go/trpc-workflow-go/node/source"
	"trpc.group/trpc-go/trpc-workflow-go/provider"
	"trpc.group/trpc-go/trpc-workflow-go/runstore"
	runinmemory "trpc.group/trpc-go/trpc-workflow-go/runstore/inmemory"
	runredis "trpc.group/trpc-go/trpc-workflow-go/runstore/redis"
	runsqlite "trpc.group/trpc-go/trpc-workflow-go/runstore/sqlite"
	"trpc.group/trpc-go/trpc-workflow-go/telemetry/metric"
	"trpc.group/trpc-go/trpc-workflow-go/telemetry/trace"
)

// Model id prefixes routed to each provider.
const (
	prefixGemini = "gemini-"
	prefixEcho   = "echo"
)

// newGateway routes gemini-* ids to Gemini, echo* ids to the local echo
// model and everything else to the OpenAI-compatible endpoint.
func newGateway(ctx context.Context, cfg *config.Config) provider.Gateway {
	openaiOpts := []openai.Option{}
	if cfg.OpenAIAPIKey != "" {
		openaiOpts = append(openaiOpts, openai.WithAPIKey(cfg.OpenAIAPIKey))
	}
	if cfg.OpenAIBaseURL != "" {
		openaiOpts = append(openaiOpts, openai.WithBaseURL(cfg.OpenAIBaseURL))
	}
	router := provider.NewRouter(
		provider.WithDefaultModel(cfg.DefaultModel),
		provider.WithRoute("", func(id string) (model.Model, error) {
			return openai.New(id, openaiOpts...), nil
		}),
		provider.WithRoute(prefixGemini, func(id string) (model.Model, error) {
			return gemini.New(ctx, id, gemini.WithAPIKey(cfg.GoogleAPIKey))
		}),
		provider.WithRoute(prefixEcho, func(id string) (model.Model, error) {
			return echo.New(id), nil
		}),
	)
	if cfg.ProviderRetries <= 0 {
		return router
	}
	policy := retry.Simple(cfg.ProviderRetries + 1)
	policy.RetryOn = nil
	return provider.WithRetry(router, policy)
}

func newRegistry(ctx context.Context, cfg *config.Config, artifacts artifact.Service) (*node.Registry, error) {
	deps := builtin.Deps{
		Gateway:          newGateway(ctx, cfg),
		DefaultModel:     cfg.DefaultModel,
		PromptTimeout:    cfg.PromptTimeout,
		ConditionTimeout: cfg.ConditionTimeout,
		SourceRoot:       cfg.SourceRoot,
		Artifacts:        artifacts,
	}
	if cfg.TranscriptEndpoint != "" {
		deps.Transcripts = source.NewTranscriptFetcher(cfg.TranscriptEndpoint,
			source.WithCacheTTL(cfg.TranscriptCacheTTL))
	}
	if cfg.InstagramEndpoint != "" {
		deps.Instagram = source.NewInstagramFetcher(cfg.InstagramEndpoint,
			source.WithCacheTTL(cfg.TranscriptCacheTTL))
	}
	return builtin.NewRegistry(deps)
}

func newArtifacts(cfg *config.Config) (artifact.Service, error) {
	switch cfg.ArtifactStore {
	case config.StoreCOS:
		svc, err := cos.NewService(cfg.COSBucketURL,
			cos.WithSecretID(cfg.COSSecretID), cos.WithSecretKey(cfg.COSSecretKey))
		if err != nil {
			return nil, fmt.Errorf("create cos artifact service: %w", err)
		}
		return svc, nil
	default:
		return artifactinmemory.NewService(), nil
	}
}

func newRunStore(ctx context.Context, cfg *config.Config) (runstore.Store, error) {
	switch cfg.RunStore {
	case config.StoreRedis:
		return runredis.New(ctx, runredis.WithURL(cfg.RedisURL))
	case config.StoreSQLite:
		db, err := sql.Open("sqlite3", cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite %s: %w", cfg.SQLitePath, err)
		}
		store, err := runsqlite.New(db)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		return &closingStore{Store: store, db: db}, nil
	default:
		return runinmemory.New(), nil
	}
}

// closingStore closes the database the daemon opened for the sqlite store.
type closingStore struct {
	runstore.Store
	db *sql.DB
}

func (s *closingStore) Close() error {
	if err := s.Store.Close(); err != nil {
		return err
	}
	return s.db.Close()
}

// startTelemetry starts the exporters that have an endpoint configured.
func startTelemetry(ctx context.Context, cfg *config.Config) (func(), error) {
	var cleans []func() error
	if cfg.TraceEndpoint != "" {
		opts := []trace.Option{
			trace.WithProtocol(cfg.TelemetryProtocol),
			trace.WithSampleRatio(cfg.TraceSampleRatio),
		}
		if strings.Contains(cfg.TraceEndpoint, "://") {
			opts = append(opts, trace.WithEndpointURL(cfg.TraceEndpoint))
		} else {
			opts = append(opts, trace.WithEndpoint(cfg.TraceEndpoint))
		}
		clean, err := trace.Start(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("start tracing: %w", err)
		}
		cleans = append(cleans, clean)
	}
	if cfg.MetricEndpoint != "" {
		clean, err := metric.Start(ctx,
			metric.WithEndpoint(cfg.MetricEndpoint),
			metric.WithProtocol(cfg.TelemetryProtocol),
		)
		if err != nil {
			for _, c := range cleans {
				_ = c()
			}
			return nil, fmt.Errorf("start metrics: %w", err)
		}
		cleans = append(cleans, clean)
	}
	return func() {
		for _, c := range cleans {
			if err := c(); err != nil {
				log.Warnf("stop telemetry: %v", err)
			}
		}
	}, nil
}
