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

// Package runstore persists finished runs and the latest record of every
// node, so run history and partial-run inputs survive a restart.
package runstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"trpc.group/trpc-go/trpc-workflow-go/engine"
	"trpc.group/trpc-go/trpc-workflow-go/event"
	"trpc.group/trpc-go/trpc-workflow-go/graph"
)

// ErrNotFound is returned when a run is not in the store.
var ErrNotFound = errors.New("runstore: run not found")

// Info is the listing form of a stored run.
type Info struct {
	RunID      string          `json:"runId"`
	Scope      graph.Scope     `json:"scope"`
	Status     event.RunStatus `json:"status"`
	StartedAt  time.Time       `json:"startedAt"`
	FinishedAt time.Time       `json:"finishedAt"`
}

// InfoOf extracts the listing form of a snapshot.
func InfoOf(s *engine.Snapshot) Info {
	return Info{
		RunID:      s.RunID,
		Scope:      s.Scope,
		Status:     s.Status,
		StartedAt:  s.StartedAt,
		FinishedAt: s.FinishedAt,
	}
}

// SortInfos orders infos most recently started first.
func SortInfos(infos []Info) {
	sort.SliceStable(infos, func(i, j int) bool { return infos[i].StartedAt.After(infos[j].StartedAt) })
}

// Store keeps run snapshots and latest node records.
type Store interface {
	// Save stores or replaces the snapshot of a run.
	Save(ctx context.Context, snap *engine.Snapshot) error
	// Load returns a stored run or ErrNotFound.
	Load(ctx context.Context, runID string) (*engine.Snapshot, error)
	// List returns up to limit runs, most recently started first.
	// A limit <= 0 returns every run.
	List(ctx context.Context, limit int) ([]Info, error)
	// Delete removes a run. Deleting an unknown run is not an error.
	Delete(ctx context.Context, runID string) error

	// PutLatest replaces the latest record of a node.
	PutLatest(ctx context.Context, rec *engine.NodeRecord) error
	// Latest returns the latest record of every node.
	Latest(ctx context.Context) (map[string]*engine.NodeRecord, error)

	Close() error
}

// EncodeSnapshot is the wire form used by the serializing stores.
func EncodeSnapshot(s *engine.Snapshot) ([]byte, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal run %s: %w", s.RunID, err)
	}
	return b, nil
}

// DecodeSnapshot reverses EncodeSnapshot. Outputs come back as generic
// JSON values.
func DecodeSnapshot(b []byte) (*engine.Snapshot, error) {
	var s engine.Snapshot
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("unmarshal run: %w", err)
	}
	return &s, nil
}

// EncodeRecord is the wire form of a node record.
func EncodeRecord(r *engine.NodeRecord) ([]byte, error) {
	b, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("marshal node %s: %w", r.NodeID, err)
	}
	return b, nil
}

// DecodeRecord reverses EncodeRecord.
func DecodeRecord(b []byte) (*engine.NodeRecord, error) {
	var r engine.NodeRecord
	if err := json.Unmarshal(b, &r); err != nil {
		return nil, fmt.Errorf("unmarshal node record: %w", err)
	}
	return &r, nil
}
