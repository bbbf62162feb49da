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
	"trpc.group/trpc-go/trpc-workflow-go/graph"
)

type edgeState int

const (
	edgePending edgeState = iota
	edgeActivated
	edgeDead
)

type decision int

const (
	decideWait decision = iota
	decideRun
	decideBypass
)

func (d decision) String() string {
	switch d {
	case decideRun:
		return "run"
	case decideBypass:
		return "bypass"
	default:
		return "wait"
	}
}

// admits reports whether an edge leaving a successful node carries its
// output. An unlabeled edge or an unlabeled result always matches.
func admits(e graph.Edge, handle string) bool {
	return e.SourceHandle == "" || handle == "" || e.SourceHandle == handle
}

// edgeCounts tallies the states of a node's incoming edges.
type edgeCounts struct {
	pending, activated, dead int
}

func (c edgeCounts) total() int {
	return c.pending + c.activated + c.dead
}

// decide applies the readiness rule of a non-streaming node.
// asReceived merges are scheduled by arrivals instead; see pump.
func decide(n graph.Node, c edgeCounts, target bool) decision {
	if c.pending > 0 {
		return decideWait
	}
	if target || c.total() == 0 {
		return decideRun
	}
	if n.Type == graph.NodeTypeMerge {
		switch {
		case c.activated == c.total():
			return decideRun
		case n.AllowPartial() && c.activated > 0:
			return decideRun
		default:
			return decideBypass
		}
	}
	if c.activated > 0 {
		return decideRun
	}
	return decideBypass
}

// streaming reports whether n runs once per batch of arrivals.
func streaming(n graph.Node) bool {
	return n.Type == graph.NodeTypeMerge && n.JoinPolicy() == graph.JoinAsReceived
}
