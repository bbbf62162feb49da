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

package runner

import (
	"sync"

	"trpc.group/trpc-go/trpc-workflow-go/engine"
	"trpc.group/trpc-go/trpc-workflow-go/event"
	"trpc.group/trpc-go/trpc-workflow-go/graph"
	"trpc.group/trpc-go/trpc-workflow-go/node"
)

// latestBook holds the most recent executed record of every node across
// runs. Successful records are the prior outputs of partial runs.
type latestBook struct {
	mu   sync.RWMutex
	recs map[string]*engine.NodeRecord
}

func newLatestBook(recs map[string]*engine.NodeRecord) *latestBook {
	if recs == nil {
		recs = make(map[string]*engine.NodeRecord)
	}
	return &latestBook{recs: recs}
}

// keep reports whether a record from a finished run replaces the latest.
// Nodes that never executed, and executions cut short by cancellation,
// leave the previous record in place.
func keep(rec *engine.NodeRecord) bool {
	switch rec.Status {
	case event.StatusSuccess:
		return true
	case event.StatusError:
		return rec.Error == nil || rec.Error.Kind != string(node.KindCancelled)
	}
	return false
}

// update records the kept nodes of snap and returns them.
func (b *latestBook) update(snap *engine.Snapshot) []*engine.NodeRecord {
	b.mu.Lock()
	defer b.mu.Unlock()
	var changed []*engine.NodeRecord
	for _, id := range snap.Order {
		rec := snap.Nodes[id]
		if rec == nil || !keep(rec) {
			continue
		}
		if cur, ok := b.recs[id]; ok && cur.FinishedAt.After(rec.FinishedAt) {
			continue
		}
		b.recs[id] = rec
		changed = append(changed, rec)
	}
	return changed
}

// priors returns the successful outputs, detached from later updates.
func (b *latestBook) priors() graph.PriorMap {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make(graph.PriorMap, len(b.recs))
	for id, rec := range b.recs {
		if rec.Status == event.StatusSuccess {
			out[id] = graph.Prior{Output: rec.Output, Handle: rec.Handle}
		}
	}
	return out
}

func (b *latestBook) all() map[string]*engine.NodeRecord {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make(map[string]*engine.NodeRecord, len(b.recs))
	for id, rec := range b.recs {
		out[id] = rec
	}
	return out
}
