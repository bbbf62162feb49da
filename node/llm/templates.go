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
	"fmt"
	"sort"
	"strings"
)

// Template config keys.
const (
	ConfigTemplate     = "template"
	ConfigInstructions = "instructions"
	ConfigCustom       = "custom"
)

// Catalog holds the built-in generation templates. Each is rendered with
// the node inputs.
var Catalog = map[string]string{
	"summary": "Summarize the following content in a few concise paragraphs. " +
		"Keep the key facts and drop filler.\n\n{input}",
	"blog": "Write a well structured blog post based on the following content. " +
		"Use a title, short sections with headings, and a closing takeaway.\n\n{input}",
	"thread": "Turn the following content into a social media thread of 5 to 8 short posts. " +
		"Number each post and keep every post under 280 characters.\n\n{input}",
	"newsletter": "Write a newsletter issue from the following content, with a subject line, " +
		"a short intro, the main story and a call to action.\n\n{input}",
	"keypoints": "List the key points of the following content as bullet points, " +
		"most important first.\n\n{input}",
}

// TemplateNames lists the catalog in sorted order.
func TemplateNames() []string {
	names := make([]string, 0, len(Catalog))
	for name := range Catalog {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// resolveTemplate picks the prompt text of a template node. custom
// replaces the catalog entry; instructions are appended to it.
func resolveTemplate(name, custom, instructions string) (string, error) {
	tmpl := custom
	if tmpl == "" {
		var ok bool
		if tmpl, ok = Catalog[name]; !ok {
			return "", fmt.Errorf("unknown template %q, want one of %s", name, strings.Join(TemplateNames(), ", "))
		}
	}
	if instructions != "" {
		tmpl += "\n\nAdditional instructions: " + instructions
	}
	return tmpl, nil
}
