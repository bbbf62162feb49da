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
	"context"
	"regexp"
	"time"

	"trpc.group/trpc-go/trpc-workflow-go/internal/retry"
)

// Covers the video download and its transcription.
const defaultInstagramTimeout = 4 * time.Minute

var postCodePattern = regexp.MustCompile(`instagram\.com/(?:[A-Za-z0-9_.]+/)?(?:p|reels?|tv)/([A-Za-z0-9_-]+)`)

// ExtractPostCode returns the short code of the Instagram post, reel or
// IGTV video at rawURL.
func ExtractPostCode(rawURL string) (string, bool) {
	m := postCodePattern.FindStringSubmatch(rawURL)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// InstagramTranscript is the transcription of one Instagram video.
type InstagramTranscript struct {
	PostCode    string  `json:"post_code"`
	Author      string  `json:"author"`
	Caption     string  `json:"caption"`
	Text        string  `json:"transcript"`
	Confidence  float64 `json:"confidence"`
	Language    string  `json:"language_detected"`
	VideoSizeMB float64 `json:"video_size_mb"`
	Cached      bool    `json:"-"`
}

// InstagramFetcher calls an Instagram transcription endpoint, which
// downloads the post's video and transcribes it. Results are cached by
// post code and requested language.
type InstagramFetcher struct {
	endpoint
	cache ttlCache[InstagramTranscript]
}

// NewInstagramFetcher creates a fetcher posting {"url", "language"} to url.
func NewInstagramFetcher(url string, opts ...TranscriptOption) *InstagramFetcher {
	return &InstagramFetcher{endpoint: newEndpoint(url, defaultInstagramTimeout, opts)}
}

// Fetch transcribes the video at rawURL. An empty language asks the
// endpoint to detect it.
func (f *InstagramFetcher) Fetch(ctx context.Context, rawURL, language string) (*InstagramTranscript, error) {
	code, ok := ExtractPostCode(rawURL)
	if !ok {
		return nil, &InvalidURLError{Platform: "Instagram", URL: rawURL}
	}
	key := code + "|" + language
	if f.ttl > 0 {
		if t, ok := f.cache.get(key, f.now()); ok {
			t.Cached = true
			return &t, nil
		}
	}
	req := map[string]string{"url": rawURL}
	if language != "" {
		req["language"] = language
	}
	var out InstagramTranscript
	err := retry.Do(ctx, f.policy, func(ctx context.Context) error {
		out = InstagramTranscript{}
		return f.post(ctx, req, code, &out)
	})
	if err != nil {
		return nil, err
	}
	if out.PostCode == "" {
		out.PostCode = code
	}
	if f.ttl > 0 {
		f.cache.put(key, out, f.now().Add(f.ttl))
	}
	return &out, nil
}
