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

package engine

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"

	itelemetry "trpc.group/trpc-go/trpc-workflow-go/internal/telemetry"
	"trpc.group/trpc-go/trpc-workflow-go/log"
	"trpc.group/trpc-go/trpc-workflow-go/telemetry/metric"
)

// instruments are created per session from the current global Meter so a
// later metric.Start takes effect on new runs.
type instruments struct {
	executions otelmetric.Int64Counter
	duration   otelmetric.Float64Histogram
	runs       otelmetric.Int64Counter
}

func newInstruments() *instruments {
	m := metric.Meter
	ins := &instruments{}
	var err error
	if ins.executions, err = m.Int64Counter(itelemetry.MetricNodeExecutions,
		otelmetric.WithDescription("Node executions by type and status."),
	); err != nil {
		log.Warnf("create %s counter: %v", itelemetry.MetricNodeExecutions, err)
	}
	if ins.duration, err = m.Float64Histogram(itelemetry.MetricNodeDuration,
		otelmetric.WithDescription("Node execution time."),
		otelmetric.WithUnit("ms"),
	); err != nil {
		log.Warnf("create %s histogram: %v", itelemetry.MetricNodeDuration, err)
	}
	if ins.runs, err = m.Int64Counter(itelemetry.MetricRuns,
		otelmetric.WithDescription("Finished runs by status."),
	); err != nil {
		log.Warnf("create %s counter: %v", itelemetry.MetricRuns, err)
	}
	return ins
}

func (ins *instruments) recordNode(ctx context.Context, nodeType, status string, d time.Duration) {
	attrs := otelmetric.WithAttributes(
		attribute.String(itelemetry.KeyNodeType, nodeType),
		attribute.String(itelemetry.KeyNodeStatus, status),
	)
	if ins.executions != nil {
		ins.executions.Add(ctx, 1, attrs)
	}
	if ins.duration != nil {
		ins.duration.Record(ctx, float64(d.Microseconds())/1000, attrs)
	}
}

func (ins *instruments) recordRun(ctx context.Context, scope, status string) {
	if ins.runs == nil {
		return
	}
	ins.runs.Add(ctx, 1, otelmetric.WithAttributes(
		attribute.String(itelemetry.KeyRunScope, scope),
		attribute.String(itelemetry.KeyRunStatus, status),
	))
}
