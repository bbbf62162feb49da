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

// Package config loads the daemon settings from the environment. Every
// variable carries the WORKFLOW_ prefix, for example WORKFLOW_ADDR.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Prefix is prepended to every variable name.
const Prefix = "WORKFLOW"

// Run store and artifact store backends.
const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
	StoreSQLite = "sqlite"
	StoreCOS    = "cos"
)

// Config holds the daemon settings.
type Config struct {
	Addr      string `envconfig:"ADDR" default:":8080"`
	GraphFile string `envconfig:"GRAPH_FILE" default:"workflow.yaml"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"console"`
	// Concurrency bounds node executions across all runs.
	Concurrency int `envconfig:"CONCURRENCY" default:"16"`
	// RetainedRuns is how many finished runs keep their event log in memory.
	RetainedRuns int `envconfig:"RETAINED_RUNS" default:"64"`

	PromptTimeout    time.Duration `envconfig:"PROMPT_TIMEOUT" default:"2m"`
	ConditionTimeout time.Duration `envconfig:"CONDITION_TIMEOUT" default:"30s"`
	// ProviderRetries is the number of extra attempts on retryable provider
	// errors. Zero disables retries.
	ProviderRetries int `envconfig:"PROVIDER_RETRIES" default:"2"`

	SourceRoot         string        `envconfig:"SOURCE_ROOT"`
	TranscriptEndpoint string        `envconfig:"TRANSCRIPT_ENDPOINT"`
	TranscriptCacheTTL time.Duration `envconfig:"TRANSCRIPT_CACHE_TTL" default:"1h"`
	// InstagramEndpoint is an Instagram transcription service. The instagram
	// source kind is disabled when empty.
	InstagramEndpoint string `envconfig:"INSTAGRAM_ENDPOINT"`

	OpenAIAPIKey  string `envconfig:"OPENAI_API_KEY"`
	OpenAIBaseURL string `envconfig:"OPENAI_BASE_URL"`
	GoogleAPIKey  string `envconfig:"GOOGLE_API_KEY"`
	DefaultModel  string `envconfig:"DEFAULT_MODEL" default:"gpt-4o-mini"`

	RunStore   string `envconfig:"RUN_STORE" default:"memory"`
	RedisURL   string `envconfig:"REDIS_URL"`
	SQLitePath string `envconfig:"SQLITE_PATH" default:"workflow.db"`

	ArtifactStore string `envconfig:"ARTIFACT_STORE" default:"memory"`
	COSBucketURL  string `envconfig:"COS_BUCKET_URL"`
	COSSecretID   string `envconfig:"COS_SECRET_ID"`
	COSSecretKey  string `envconfig:"COS_SECRET_KEY"`

	TraceEndpoint     string  `envconfig:"TRACE_ENDPOINT"`
	MetricEndpoint    string  `envconfig:"METRIC_ENDPOINT"`
	TelemetryProtocol string  `envconfig:"TELEMETRY_PROTOCOL" default:"grpc"`
	TraceSampleRatio  float64 `envconfig:"TRACE_SAMPLE_RATIO" default:"1"`
}

// Load reads the optional dotenv files, then the environment. Variables
// already set in the environment win over dotenv entries. Without files
// ".env" in the working directory is tried.
func Load(files ...string) (*Config, error) {
	if err := godotenv.Load(files...); err != nil && (len(files) > 0 || !errors.Is(err, fs.ErrNotExist)) {
		return nil, fmt.Errorf("load dotenv: %w", err)
	}
	var c Config
	if err := envconfig.Process(Prefix, &c); err != nil {
		return nil, fmt.Errorf("process environment configuration: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks the store selections and the settings they depend on.
func (c *Config) Validate() error {
	switch c.RunStore {
	case StoreMemory, StoreSQLite:
	case StoreRedis:
		if c.RedisURL == "" {
			return errors.New("config: WORKFLOW_REDIS_URL is required for the redis run store")
		}
	default:
		return fmt.Errorf("config: unknown run store %q", c.RunStore)
	}
	switch c.ArtifactStore {
	case StoreMemory:
	case StoreCOS:
		if c.COSBucketURL == "" {
			return errors.New("config: WORKFLOW_COS_BUCKET_URL is required for the cos artifact store")
		}
	default:
		return fmt.Errorf("config: unknown artifact store %q", c.ArtifactStore)
	}
	if c.Concurrency <= 0 {
		return fmt.Errorf("config: concurrency must be positive, got %d", c.Concurrency)
	}
	if c.TraceSampleRatio < 0 || c.TraceSampleRatio > 1 {
		return fmt.Errorf("config: trace sample ratio %v is outside [0, 1]", c.TraceSampleRatio)
	}
	return nil
}
