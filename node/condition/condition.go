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

// Package condition implements branching nodes. A condition evaluates its
// input and selects the output handle whose edges stay live; the input is
// passed through unchanged.
package condition

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"trpc.group/trpc-go/trpc-workflow-go/node"
)

// Config keys.
const (
	ConfigOperator = "operator"
	ConfigValue    = "value"
	ConfigField    = "field"
	ConfigCases    = "cases"
	ConfigDefault  = "default"
)

// Handles selected by a plain operator condition.
const (
	HandleTrue  = "true"
	HandleFalse = "false"
)

// Operators.
const (
	OpContains    = "contains"
	OpNotContains = "notContains"
	OpEquals      = "equals"
	OpNotEquals   = "notEquals"
	OpRegex       = "regex"
	OpEmpty       = "empty"
	OpNotEmpty    = "notEmpty"
	OpLengthGt    = "lengthGt"
	OpLengthLt    = "lengthLt"
	OpGt          = "gt"
	OpLt          = "lt"
)

// Case is one branch of a multi-way condition.
type Case struct {
	Handle   string
	Operator string
	Value    any
}

// Handler evaluates conditions.
func Handler() node.Handler {
	return node.HandlerFunc(execute)
}

func execute(_ context.Context, inv *node.Invocation) (*node.Result, error) {
	n := inv.Node
	subject, output := selectSubject(inv.Inputs, n.GetString(ConfigField))

	if raw, ok := n.Config[ConfigCases]; ok {
		cases, err := parseCases(raw)
		if err != nil {
			return nil, err
		}
		for _, c := range cases {
			ok, err := Evaluate(c.Operator, subject, c.Value)
			if err != nil {
				return nil, node.NewError(err.Error(), map[string]any{"case": c.Handle})
			}
			if ok {
				return &node.Result{Output: output, Handle: c.Handle}, nil
			}
		}
		def := n.GetString(ConfigDefault)
		if def == "" {
			def = HandleFalse
		}
		return &node.Result{Output: output, Handle: def}, nil
	}

	op := n.GetString(ConfigOperator)
	if op == "" {
		op = OpNotEmpty
	}
	ok, err := Evaluate(op, subject, n.Config[ConfigValue])
	if err != nil {
		return nil, node.NewError(err.Error(), map[string]any{"operator": op})
	}
	handle := HandleFalse
	if ok {
		handle = HandleTrue
	}
	return &node.Result{Output: output, Handle: handle, Details: map[string]any{"operator": op}}, nil
}

// selectSubject returns the text being tested and the value passed
// downstream. With field set, the first map input carrying the field is
// tested.
func selectSubject(in node.Inputs, field string) (string, any) {
	var output any
	switch len(in) {
	case 0:
	case 1:
		output = in[0].Value
	default:
		output = in.Text("\n\n")
	}
	if field == "" {
		return in.Text("\n\n"), output
	}
	for _, i := range in {
		if m, ok := i.Value.(map[string]any); ok {
			if v, ok := m[field]; ok {
				return node.ToText(v), output
			}
		}
	}
	return "", output
}

func parseCases(raw any) ([]Case, error) {
	list, ok := raw.([]any)
	if !ok {
		return nil, node.Errorf("%s must be a list, got %T", ConfigCases, raw)
	}
	cases := make([]Case, 0, len(list))
	for i, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, node.Errorf("case %d must be an object", i)
		}
		c := Case{Value: m["value"]}
		c.Handle, _ = m["handle"].(string)
		c.Operator, _ = m["operator"].(string)
		if c.Handle == "" || c.Operator == "" {
			return nil, node.Errorf("case %d needs a handle and an operator", i)
		}
		cases = append(cases, c)
	}
	return cases, nil
}

// Evaluate applies op to subject with the operand value.
func Evaluate(op, subject string, value any) (bool, error) {
	operand := node.ToText(value)
	switch op {
	case OpContains:
		return strings.Contains(strings.ToLower(subject), strings.ToLower(operand)), nil
	case OpNotContains:
		return !strings.Contains(strings.ToLower(subject), strings.ToLower(operand)), nil
	case OpEquals:
		return strings.TrimSpace(subject) == strings.TrimSpace(operand), nil
	case OpNotEquals:
		return strings.TrimSpace(subject) != strings.TrimSpace(operand), nil
	case OpRegex:
		re, err := regexp.Compile(operand)
		if err != nil {
			return false, fmt.Errorf("invalid regex %q: %w", operand, err)
		}
		return re.MatchString(subject), nil
	case OpEmpty:
		return strings.TrimSpace(subject) == "", nil
	case OpNotEmpty:
		return strings.TrimSpace(subject) != "", nil
	case OpLengthGt, OpLengthLt:
		limit, err := number(operand)
		if err != nil {
			return false, err
		}
		l := float64(utf8.RuneCountInString(subject))
		if op == OpLengthGt {
			return l > limit, nil
		}
		return l < limit, nil
	case OpGt, OpLt:
		limit, err := number(operand)
		if err != nil {
			return false, err
		}
		got, err := number(subject)
		if err != nil {
			return false, err
		}
		if op == OpGt {
			return got > limit, nil
		}
		return got < limit, nil
	default:
		return false, fmt.Errorf("unknown operator %q", op)
	}
}

func number(s string) (float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("%q is not a number", s)
	}
	return f, nil
}
