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

// Package sqlite stores runs in a SQLite database through database/sql.
// The caller opens the database and imports a driver, such as
// github.com/mattn/go-sqlite3.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"trpc.group/trpc-go/trpc-workflow-go/engine"
	"trpc.group/trpc-go/trpc-workflow-go/runstore"
)

const (
	sqliteCreateRuns = "CREATE TABLE IF NOT EXISTS workflow_runs (" +
		"run_id TEXT PRIMARY KEY, " +
		"scope TEXT NOT NULL, " +
		"status TEXT NOT NULL, " +
		"started_at INTEGER NOT NULL, " +
		"finished_at INTEGER NOT NULL, " +
		"snapshot_json BLOB NOT NULL" +
		")"

	sqliteCreateRunsIndex = "CREATE INDEX IF NOT EXISTS workflow_runs_started " +
		"ON workflow_runs (started_at DESC)"

	sqliteCreateLatest = "CREATE TABLE IF NOT EXISTS workflow_latest (" +
		"node_id TEXT PRIMARY KEY, " +
		"updated_at INTEGER NOT NULL, " +
		"record_json BLOB NOT NULL" +
		")"

	sqliteUpsertRun = "INSERT OR REPLACE INTO workflow_runs (" +
		"run_id, scope, status, started_at, finished_at, snapshot_json) VALUES (?, ?, ?, ?, ?, ?)"

	sqliteSelectRun = "SELECT snapshot_json FROM workflow_runs WHERE run_id = ?"

	sqliteListRuns = "SELECT snapshot_json FROM workflow_runs ORDER BY started_at DESC LIMIT ?"

	sqliteDeleteRun = "DELETE FROM workflow_runs WHERE run_id = ?"

	sqliteUpsertLatest = "INSERT OR REPLACE INTO workflow_latest (node_id, updated_at, record_json) VALUES (?, ?, ?)"

	sqliteSelectLatest = "SELECT node_id, record_json FROM workflow_latest"
)

var _ runstore.Store = (*Store)(nil)

// Store is a SQLite-backed runstore.Store.
type Store struct {
	db *sql.DB
}

// New creates the tables if needed.
func New(db *sql.DB) (*Store, error) {
	if db == nil {
		return nil, errors.New("sqlite runstore: db is nil")
	}
	for _, stmt := range []string{sqliteCreateRuns, sqliteCreateRunsIndex, sqliteCreateLatest} {
		if _, err := db.Exec(stmt); err != nil {
			return nil, fmt.Errorf("sqlite runstore: create schema: %w", err)
		}
	}
	return &Store{db: db}, nil
}

// Save implements runstore.Store.
func (s *Store) Save(ctx context.Context, snap *engine.Snapshot) error {
	b, err := runstore.EncodeSnapshot(snap)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, sqliteUpsertRun,
		snap.RunID, snap.Scope.String(), string(snap.Status),
		snap.StartedAt.UnixNano(), snap.FinishedAt.UnixNano(), b)
	if err != nil {
		return fmt.Errorf("sqlite runstore: save %s: %w", snap.RunID, err)
	}
	return nil
}

// Load implements runstore.Store.
func (s *Store) Load(ctx context.Context, runID string) (*engine.Snapshot, error) {
	var b []byte
	err := s.db.QueryRowContext(ctx, sqliteSelectRun, runID).Scan(&b)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, runstore.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite runstore: load %s: %w", runID, err)
	}
	return runstore.DecodeSnapshot(b)
}

// List implements runstore.Store.
func (s *Store) List(ctx context.Context, limit int) ([]runstore.Info, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, sqliteListRuns, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite runstore: list: %w", err)
	}
	defer rows.Close()
	var out []runstore.Info
	for rows.Next() {
		var b []byte
		if err := rows.Scan(&b); err != nil {
			return nil, fmt.Errorf("sqlite runstore: list: %w", err)
		}
		snap, err := runstore.DecodeSnapshot(b)
		if err != nil {
			return nil, err
		}
		out = append(out, runstore.InfoOf(snap))
	}
	return out, rows.Err()
}

// Delete implements runstore.Store.
func (s *Store) Delete(ctx context.Context, runID string) error {
	if _, err := s.db.ExecContext(ctx, sqliteDeleteRun, runID); err != nil {
		return fmt.Errorf("sqlite runstore: delete %s: %w", runID, err)
	}
	return nil
}

// PutLatest implements runstore.Store.
func (s *Store) PutLatest(ctx context.Context, rec *engine.NodeRecord) error {
	b, err := runstore.EncodeRecord(rec)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, sqliteUpsertLatest, rec.NodeID, time.Now().UnixNano(), b); err != nil {
		return fmt.Errorf("sqlite runstore: put latest %s: %w", rec.NodeID, err)
	}
	return nil
}

// Latest implements runstore.Store.
func (s *Store) Latest(ctx context.Context) (map[string]*engine.NodeRecord, error) {
	rows, err := s.db.QueryContext(ctx, sqliteSelectLatest)
	if err != nil {
		return nil, fmt.Errorf("sqlite runstore: latest: %w", err)
	}
	defer rows.Close()
	out := map[string]*engine.NodeRecord{}
	for rows.Next() {
		var (
			id string
			b  []byte
		)
		if err := rows.Scan(&id, &b); err != nil {
			return nil, fmt.Errorf("sqlite runstore: latest: %w", err)
		}
		rec, err := runstore.DecodeRecord(b)
		if err != nil {
			return nil, err
		}
		out[id] = rec
	}
	return out, rows.Err()
}

// Close is a no-op; the caller owns the database.
func (s *Store) Close() error {
	return nil
}
