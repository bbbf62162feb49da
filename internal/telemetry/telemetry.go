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

// Package telemetry holds the span names, attribute keys and collector
// connection shared by the workflow engine and the telemetry exporters.
package telemetry

import (
	"encoding/json"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

const (
	ServiceName      = "workflowd"
	ServiceVersion   = "v0.1.0"
	ServiceNamespace = "trpc-workflow-go"
	InstrumentName   = "trpc.go.workflow"

	SpanNameRun  = "workflow.run"
	SpanNameNode = "workflow.node"

	MetricNodeExecutions = "workflow.node.executions"
	MetricNodeDuration   = "workflow.node.duration"
	MetricRuns           = "workflow.runs"
)

const (
	// ProtocolGRPC uses gRPC protocol for OTLP exporter.
	ProtocolGRPC string = "grpc"
	// ProtocolHTTP uses HTTP protocol for OTLP exporter.
	ProtocolHTTP string = "http"
)

var (
	KeyRunID         = "trpc.go.workflow.run_id"
	KeyRunScope      = "trpc.go.workflow.scope"
	KeyRunStatus     = "trpc.go.workflow.run_status"
	KeyNodeID        = "trpc.go.workflow.node_id"
	KeyNodeType      = "trpc.go.workflow.node_type"
	KeyNodeStatus    = "trpc.go.workflow.node_status"
	KeyNodeHandle    = "trpc.go.workflow.handle"
	KeyNodeExecution = "trpc.go.workflow.execution"
	KeyNodeInputs    = "trpc.go.workflow.inputs"
	KeyNodeOutput    = "trpc.go.workflow.output"
	KeyErrorKind     = "trpc.go.workflow.error_kind"
	KeyPlanSize      = "trpc.go.workflow.plan_size"
)

// maxAttrLen bounds serialized payload attributes.
const maxAttrLen = 4096

// TraceRun annotates a run span.
func TraceRun(span trace.Span, runID, scope string, planSize int) {
	span.SetAttributes(
		attribute.String(KeyRunID, runID),
		attribute.String(KeyRunScope, scope),
		attribute.Int(KeyPlanSize, planSize),
	)
}

// TraceNode annotates a node execution span with its identity and inputs.
func TraceNode(span trace.Span, runID, nodeID, nodeType string, execution int, inputs any) {
	span.SetAttributes(
		attribute.String(KeyRunID, runID),
		attribute.String(KeyNodeID, nodeID),
		attribute.String(KeyNodeType, nodeType),
		attribute.Int(KeyNodeExecution, execution),
		attribute.String(KeyNodeInputs, marshalAttr(inputs)),
	)
}

// TraceNodeResult records how a node execution ended.
func TraceNodeResult(span trace.Span, status, handle string, output any, errKind string, elapsed time.Duration) {
	span.SetAttributes(
		attribute.String(KeyNodeStatus, status),
		attribute.String(KeyNodeOutput, marshalAttr(output)),
		attribute.Int64("trpc.go.workflow.execution_time_ms", elapsed.Milliseconds()),
	)
	if handle != "" {
		span.SetAttributes(attribute.String(KeyNodeHandle, handle))
	}
	if errKind != "" {
		span.SetAttributes(attribute.String(KeyErrorKind, errKind))
	}
}

func marshalAttr(v any) string {
	if v == nil {
		return "null"
	}
	if s, ok := v.(string); ok {
		return truncate(s)
	}
	bts, err := json.Marshal(v)
	if err != nil {
		return "<not json serializable>"
	}
	return truncate(string(bts))
}

func truncate(s string) string {
	if len(s) <= maxAttrLen {
		return s
	}
	return s[:maxAttrLen] + "..."
}

// NewGRPCConn creates a new gRPC connection to the OpenTelemetry Collector.
func NewGRPCConn(endpoint string) (*grpc.ClientConn, error) {
	// Note the use of insecure transport here. TLS is recommended in production.
	conn, err := grpc.Dial(endpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create gRPC connection to collector: %w", err)
	}
	return conn, nil
}
