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

package llm

import (
	"regexp"
	"strings"

	"trpc.group/trpc-go/trpc-workflow-go/node"
)

// InputPlaceholder names the joined text of every input.
const InputPlaceholder = "input"

// mustacheRE matches {{name}} and {{name?}} so they can be folded into the
// single brace form.
var mustacheRE = regexp.MustCompile(`\{\{\s*([A-Za-z_][A-Za-z0-9_]*)(\?)?\s*\}\}`)

// placeholderRE matches {name} and {name?}.
var placeholderRE = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*)(\?)?\}`)

// HasPlaceholder reports whether tmpl references any input.
func HasPlaceholder(tmpl string) bool {
	return placeholderRE.MatchString(mustacheRE.ReplaceAllString(tmpl, `{$1$2}`))
}

// Render substitutes placeholders from inputs. {input} is the joined input
// text; any other name is looked up by input key. A missing optional
// placeholder renders empty; a missing required one is left in place so the
// model sees it.
func Render(tmpl string, in node.Inputs) string {
	if tmpl == "" {
		return tmpl
	}
	tmpl = mustacheRE.ReplaceAllString(tmpl, `{$1$2}`)
	return placeholderRE.ReplaceAllStringFunc(tmpl, func(match string) string {
		m := placeholderRE.FindStringSubmatch(match)
		name, optional := m[1], m[2] == "?"
		if v, ok := lookup(in, name); ok {
			return v
		}
		if optional {
			return ""
		}
		return match
	})
}

func lookup(in node.Inputs, name string) (string, bool) {
	if v, ok := in.Get(name); ok {
		return node.ToText(v), true
	}
	if name == InputPlaceholder && len(in) > 0 {
		return in.Text("\n\n"), true
	}
	return "", false
}

// BuildPrompt renders tmpl and, when it references no input at all,
// appends the inputs as context.
func BuildPrompt(tmpl string, in node.Inputs) string {
	if HasPlaceholder(tmpl) || len(in) == 0 {
		return Render(tmpl, in)
	}
	text := in.Text("\n\n")
	if text == "" {
		return tmpl
	}
	if strings.TrimSpace(tmpl) == "" {
		return text
	}
	return tmpl + "\n\nContext:\n" + text
}
