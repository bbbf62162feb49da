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
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/traditionalchinese"
	"golang.org/x/text/encoding/unicode"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// decode converts data to UTF-8. An explicit charset wins; otherwise valid
// UTF-8 is kept and anything else is guessed from its byte patterns. It
// returns the text and the charset used.
func decode(data []byte, charset string) (string, string, error) {
	if charset != "" {
		enc, err := htmlindex.Get(charset)
		if err != nil {
			return "", "", fmt.Errorf("unknown charset %q: %w", charset, err)
		}
		name, _ := htmlindex.Name(enc)
		if enc == unicode.UTF8 {
			return string(bytes.TrimPrefix(data, utf8BOM)), name, nil
		}
		out, err := enc.NewDecoder().Bytes(data)
		if err != nil {
			return "", "", fmt.Errorf("decode %s: %w", name, err)
		}
		return string(out), name, nil
	}
	if utf8.Valid(data) {
		return string(bytes.TrimPrefix(data, utf8BOM)), "utf-8", nil
	}
	enc, name := guess(data)
	out, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return "", "", fmt.Errorf("decode %s: %w", name, err)
	}
	return strings.ToValidUTF8(string(out), "�"), name, nil
}

// guess picks a legacy encoding from double-byte lead/trail patterns,
// falling back to windows-1252.
func guess(b []byte) (encoding.Encoding, string) {
	switch {
	case pairRatio(b, 0x81, 0xFE, func(t byte) bool { return (t >= 0x40 && t <= 0x7E) || (t >= 0x80 && t <= 0xFE) }):
		return simplifiedchinese.GBK, "gbk"
	case pairRatio(b, 0xA1, 0xFE, func(t byte) bool { return (t >= 0x40 && t <= 0x7E) || (t >= 0xA1 && t <= 0xFE) }):
		return traditionalchinese.Big5, "big5"
	case hasPair(b, func(l byte) bool { return (l >= 0x81 && l <= 0x9F) || (l >= 0xE0 && l <= 0xEF) },
		func(t byte) bool { return (t >= 0x40 && t <= 0x7E) || (t >= 0x80 && t <= 0xFC) }):
		return japanese.ShiftJIS, "shift_jis"
	case hasPair(b, func(l byte) bool { return l >= 0xA1 && l <= 0xFE }, func(t byte) bool { return t >= 0xA1 && t <= 0xFE }):
		return korean.EUCKR, "euc-kr"
	}
	return charmap.Windows1252, "windows-1252"
}

// pairRatio reports whether at least two lead bytes in [lo, hi] exist and
// more than 80% of them are followed by a valid trail byte.
func pairRatio(b []byte, lo, hi byte, trail func(byte) bool) bool {
	total, valid := 0, 0
	for i := 0; i+1 < len(b); i++ {
		if b[i] >= lo && b[i] <= hi {
			total++
			if trail(b[i+1]) {
				valid++
			}
		}
	}
	return total >= 2 && valid >= 2 && float64(valid)/float64(total) > 0.8
}

func hasPair(b []byte, lead, trail func(byte) bool) bool {
	for i := 0; i+1 < len(b); i++ {
		if lead(b[i]) && trail(b[i+1]) {
			return true
		}
	}
	return false
}
