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

package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"trpc.group/trpc-go/trpc-workflow-go/model"
)

// ErrorKind distinguishes provider-side failures.
type ErrorKind string

// Provider error kinds.
const (
	KindRateLimit   ErrorKind = "rate_limit"
	KindAuth        ErrorKind = "auth"
	KindTimeout     ErrorKind = "timeout"
	KindUnavailable ErrorKind = "unavailable"
	KindBadRequest  ErrorKind = "bad_request"
	KindUnknown     ErrorKind = "unknown"
)

// Error is a failure reported by, or on the way to, an AI provider.
type Error struct {
	Kind    ErrorKind
	Model   string
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("provider %s error (%s, status %d): %s", e.Model, e.Kind, e.Status, e.Message)
	}
	return fmt.Sprintf("provider %s error (%s): %s", e.Model, e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Retryable reports whether a later attempt may succeed.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case KindRateLimit, KindTimeout, KindUnavailable:
		return true
	default:
		return false
	}
}

// Classify converts err into a *Error. Errors that already are provider
// errors are returned unchanged; cancellation is left untouched.
func Classify(modelID string, err error) error {
	if err == nil || errors.Is(err, context.Canceled) {
		return err
	}
	var pe *Error
	if errors.As(err, &pe) {
		return err
	}
	kind := KindUnknown
	var ne net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		kind = KindTimeout
	case errors.As(err, &ne) && ne.Timeout():
		kind = KindTimeout
	default:
		kind = kindFromMessage(err.Error())
	}
	return &Error{Kind: kind, Model: modelID, Message: err.Error(), Err: err}
}

// FromResponse converts an API-level response error into a *Error.
func FromResponse(modelID string, re *model.ResponseError) *Error {
	kind := kindFromStatus(re.StatusCode)
	if kind == KindUnknown {
		kind = kindFromMessage(re.Message)
	}
	return &Error{Kind: kind, Model: modelID, Status: re.StatusCode, Message: re.Message}
}

func kindFromStatus(status int) ErrorKind {
	switch {
	case status == http.StatusTooManyRequests:
		return KindRateLimit
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return KindAuth
	case status == http.StatusRequestTimeout, status == http.StatusGatewayTimeout:
		return KindTimeout
	case status >= 500:
		return KindUnavailable
	case status >= 400:
		return KindBadRequest
	default:
		return KindUnknown
	}
}

func kindFromMessage(msg string) ErrorKind {
	msg = strings.ToLower(msg)
	switch {
	case strings.Contains(msg, "rate limit"), strings.Contains(msg, "too many requests"):
		return KindRateLimit
	case strings.Contains(msg, "unauthorized"), strings.Contains(msg, "api key"):
		return KindAuth
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "deadline exceeded"):
		return KindTimeout
	case strings.Contains(msg, "connection refused"), strings.Contains(msg, "unavailable"):
		return KindUnavailable
	default:
		return KindUnknown
	}
}
