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

package source

import (
	"fmt"
	"os"
	"strings"

	"github.com/gonfva/docxlib"
	"github.com/ledongthuc/pdf"
)

// readPDF returns the plain text of every page, one page per line block.
// Pages that fail to extract are skipped.
func readPDF(f *os.File) (string, int, error) {
	st, err := f.Stat()
	if err != nil {
		return "", 0, err
	}
	r, err := pdf.NewReader(f, st.Size())
	if err != nil {
		return "", 0, fmt.Errorf("parse pdf: %w", err)
	}
	var sb strings.Builder
	pages := r.NumPage()
	for i := 1; i <= pages; i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			continue
		}
		sb.WriteString(text)
		sb.WriteString("\n")
	}
	return strings.TrimSpace(sb.String()), pages, nil
}

// readDOCX returns the text of every paragraph, including hyperlink runs.
func readDOCX(f *os.File) (string, int, error) {
	st, err := f.Stat()
	if err != nil {
		return "", 0, err
	}
	doc, err := docxlib.Parse(f, st.Size())
	if err != nil {
		return "", 0, fmt.Errorf("parse docx: %w", err)
	}
	var (
		lines      []string
		paragraphs = doc.Paragraphs()
	)
	for _, p := range paragraphs {
		var words []string
		for _, child := range p.Children() {
			if child.Run != nil && child.Run.Text != nil {
				if t := strings.TrimSpace(child.Run.Text.Text); t != "" {
					words = append(words, t)
				}
			}
			if child.Link != nil && child.Link.Run.Text != nil {
				if t := strings.TrimSpace(child.Link.Run.Text.Text); t != "" {
					words = append(words, t)
				}
			}
		}
		if len(words) > 0 {
			lines = append(lines, strings.Join(words, " "))
		}
	}
	return strings.Join(lines, "\n"), len(paragraphs), nil
}
