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

// Package artifact stores the rendered results of output nodes as named,
// versioned blobs.
package artifact

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned when an artifact or version does not exist.
var ErrNotFound = errors.New("artifact not found")

// Artifact is a named blob produced by a run.
type Artifact struct {
	// Data contains the raw bytes.
	Data []byte `json:"data,omitempty"`
	// MimeType is the IANA media type of Data.
	MimeType string `json:"mime_type,omitempty"`
	// Name is an optional display name.
	Name string `json:"name,omitempty"`
}

// Location identifies where a run's artifacts live.
type Location struct {
	// Namespace groups artifacts of one workflow.
	Namespace string
	// RunID scopes an artifact to a single run.
	RunID string
}

// Service saves and loads artifacts.
//
// Every save of the same filename creates a new version, starting at 0.
// Filenames prefixed with "shared:" are stored per namespace instead of
// per run, so later runs see and extend the same version history.
type Service interface {
	// Save stores art and returns its version.
	Save(ctx context.Context, loc Location, filename string, art *Artifact) (int, error)
	// Load returns the given version, or the latest when version is nil.
	Load(ctx context.Context, loc Location, filename string, version *int) (*Artifact, error)
	// List returns the sorted filenames visible at loc.
	List(ctx context.Context, loc Location) ([]string, error)
	// Versions returns the sorted versions of filename.
	Versions(ctx context.Context, loc Location, filename string) ([]int, error)
	// Delete removes every version of filename.
	Delete(ctx context.Context, loc Location, filename string) error
}

const sharedPrefix = "shared:"

// IsShared reports whether filename lives in the namespace-wide area.
func IsShared(filename string) bool {
	return strings.HasPrefix(filename, sharedPrefix)
}

// Path returns the storage path of filename, without version:
//
//	{namespace}/shared/{filename}  for shared files
//	{namespace}/{run_id}/{filename} otherwise
func Path(loc Location, filename string) string {
	if IsShared(filename) {
		return fmt.Sprintf("%s/shared/%s", loc.Namespace, filename)
	}
	return fmt.Sprintf("%s/%s/%s", loc.Namespace, loc.RunID, filename)
}

// ObjectName returns the storage key of one version of filename.
func ObjectName(loc Location, filename string, version int) string {
	return fmt.Sprintf("%s/%d", Path(loc, filename), version)
}

// RunPrefix is the key prefix of run-scoped artifacts.
func RunPrefix(loc Location) string {
	return fmt.Sprintf("%s/%s/", loc.Namespace, loc.RunID)
}

// SharedPrefix is the key prefix of namespace-wide artifacts.
func SharedPrefix(loc Location) string {
	return fmt.Sprintf("%s/shared/", loc.Namespace)
}
