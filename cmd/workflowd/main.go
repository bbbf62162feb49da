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

// Package main runs the workflow daemon: it loads a graph document, serves
// the run API over HTTP and executes runs on a shared worker pool.
//
// Usage:
//
//	workflowd
//	workflowd -env prod.env -graph flows/content.yaml -addr :9090
//
// Settings come from WORKFLOW_* environment variables; flags override them.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"trpc.group/trpc-go/trpc-workflow-go/config"
	"trpc.group/trpc-go/trpc-workflow-go/graph/file"
	"trpc.group/trpc-go/trpc-workflow-go/log"
	"trpc.group/trpc-go/trpc-workflow-go/runner"
	"trpc.group/trpc-go/trpc-workflow-go/server"
)

const shutdownTimeout = 15 * time.Second

func main() {
	envFile := flag.String("env", "", "Dotenv file to load before the environment")
	graphFile := flag.String("graph", "", "Graph document, overrides WORKFLOW_GRAPH_FILE")
	addr := flag.String("addr", "", "Listen address, overrides WORKFLOW_ADDR")
	flag.Parse()

	var files []string
	if *envFile != "" {
		files = append(files, *envFile)
	}
	cfg, err := config.Load(files...)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if *graphFile != "" {
		cfg.GraphFile = *graphFile
	}
	if *addr != "" {
		cfg.Addr = *addr
	}
	log.SetLevel(cfg.LogLevel)
	log.SetFormat(cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, cfg); err != nil {
		log.Fatalf("workflowd: %v", err)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	cleanTelemetry, err := startTelemetry(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanTelemetry()

	graphs := file.New(cfg.GraphFile)
	if _, err := graphs.Graph(ctx); err != nil {
		return err
	}

	artifacts, err := newArtifacts(cfg)
	if err != nil {
		return err
	}
	reg, err := newRegistry(ctx, cfg, artifacts)
	if err != nil {
		return err
	}
	runs, err := newRunStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := runs.Close(); err != nil {
			log.Warnf("close run store: %v", err)
		}
	}()

	r, err := runner.New(graphs, reg,
		runner.WithConcurrency(cfg.Concurrency),
		runner.WithRunStore(runs),
		runner.WithRetainedRuns(cfg.RetainedRuns),
	)
	if err != nil {
		return err
	}
	defer func() {
		if err := r.Close(); err != nil {
			log.Warnf("close runner: %v", err)
		}
	}()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           server.New(r).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Infof("workflowd listening on %s, graph %s, run store %s", cfg.Addr, cfg.GraphFile, cfg.RunStore)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}
	log.Infof("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
