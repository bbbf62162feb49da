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

package graph

import (
	"fmt"
	"strconv"
	"time"
)

// JoinPolicy is how a merge node decides it has enough input to run.
type JoinPolicy string

// Join policies.
const (
	JoinWaitForAll JoinPolicy = "waitForAll"
	JoinAsReceived JoinPolicy = "asReceived"
)

// BatchMode controls how queued arrivals feed an asReceived merge.
type BatchMode string

// Batch modes.
const (
	BatchCoalesce BatchMode = "coalesce"
	BatchEach     BatchMode = "each"
)

// Config keys read by the engine itself. Everything else in Node.Config
// belongs to the node's handler.
const (
	ConfigJoinPolicy   = "joinPolicy"
	ConfigAllowPartial = "allowPartial"
	ConfigBatch        = "batch"
)

// JoinPolicy returns the node's join policy, defaulting to waitForAll.
func (n Node) JoinPolicy() JoinPolicy {
	if JoinPolicy(n.GetString(ConfigJoinPolicy)) == JoinAsReceived {
		return JoinAsReceived
	}
	return JoinWaitForAll
}

// AllowPartial reports whether a waitForAll merge tolerates missing inputs.
func (n Node) AllowPartial() bool {
	return n.GetBool(ConfigAllowPartial)
}

// BatchMode returns the asReceived batching mode, defaulting to coalesce.
func (n Node) BatchMode() BatchMode {
	if BatchMode(n.GetString(ConfigBatch)) == BatchEach {
		return BatchEach
	}
	return BatchCoalesce
}

// GetString returns a string config value or "".
func (n Node) GetString(key string) string {
	switch v := n.Config[key].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// GetBool returns a boolean config value. Strings such as "true" are accepted.
func (n Node) GetBool(key string) bool {
	switch v := n.Config[key].(type) {
	case bool:
		return v
	case string:
		b, _ := strconv.ParseBool(v)
		return b
	default:
		return false
	}
}

// GetInt returns an integer config value, or def when absent or malformed.
func (n Node) GetInt(key string, def int) int {
	switch v := n.Config[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case string:
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

// GetFloat returns a float config value and whether it was set.
func (n Node) GetFloat(key string) (float64, bool) {
	switch v := n.Config[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(v, 64)
		return f, err == nil
	}
	return 0, false
}

// GetDuration returns a duration config value. Numbers are seconds; strings
// use time.ParseDuration.
func (n Node) GetDuration(key string) time.Duration {
	switch v := n.Config[key].(type) {
	case string:
		d, _ := time.ParseDuration(v)
		return d
	case float64:
		return time.Duration(v * float64(time.Second))
	case int:
		return time.Duration(v) * time.Second
	}
	return 0
}
