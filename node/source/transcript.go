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
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"sync"
	"time"

	"trpc.group/trpc-go/trpc-workflow-go/internal/retry"
	"trpc.group/trpc-go/trpc-workflow-go/log"
)

const (
	defaultTranscriptTTL     = 24 * time.Hour
	defaultTranscriptTimeout = 60 * time.Second
)

// DefaultTranscriptRetry retries transient failures three times with
// 1s, 2s and 4s pauses, capped at 10s.
var DefaultTranscriptRetry = retry.Policy{
	MaxAttempts:     4,
	InitialInterval: time.Second,
	BackoffFactor:   2,
	MaxInterval:     10 * time.Second,
	RetryOn:         []retry.Condition{retry.OnPredicate(transientTranscriptError)},
}

var videoIDPatterns = []*regexp.Regexp{
	regexp.MustCompile(`youtube\.com/watch\?v=([^&\n?#]+)`),
	regexp.MustCompile(`youtu\.be/([^&\n?#]+)`),
	regexp.MustCompile(`youtube\.com/embed/([^&\n?#]+)`),
	regexp.MustCompile(`youtube\.com/shorts/([^&\n?#]+)`),
	regexp.MustCompile(`^([a-zA-Z0-9_-]{11})$`),
}

// ExtractVideoID returns the YouTube video id in rawURL. Watch, short
// link, embed and shorts URLs are understood, as is a bare id.
func ExtractVideoID(rawURL string) (string, bool) {
	for _, re := range videoIDPatterns {
		if m := re.FindStringSubmatch(rawURL); m != nil {
			return m[1], true
		}
	}
	return "", false
}

// Transcript is the text of one video.
type Transcript struct {
	Text     string `json:"transcript"`
	Language string `json:"language"`
	VideoID  string `json:"videoId"`
	Cached   bool   `json:"cached"`
}

// TranscriptError is a failure reported by the transcript endpoint.
type TranscriptError struct {
	Status  int
	Type    string
	Message string
	// VideoID is the YouTube video id or the Instagram post code.
	VideoID string
}

func (e *TranscriptError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("transcript %s: %s (%s, status %d)", e.VideoID, e.Message, e.Type, e.Status)
	}
	return fmt.Sprintf("transcript %s: %s (status %d)", e.VideoID, e.Message, e.Status)
}

// Retryable reports whether the endpoint may succeed on a later attempt.
// Blocked or rate limited requests and server faults are retryable;
// disabled captions and unavailable videos are not.
func (e *TranscriptError) Retryable() bool {
	return e.Status == http.StatusTooManyRequests || e.Status >= http.StatusInternalServerError
}

func transientTranscriptError(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var te *TranscriptError
	if errors.As(err, &te) {
		return te.Retryable()
	}
	var ue *url.Error
	return errors.As(err, &ue)
}

// InvalidURLError reports a URL with no recognizable video id or post code.
type InvalidURLError struct {
	Platform string
	URL      string
}

func (e *InvalidURLError) Error() string {
	return fmt.Sprintf("invalid %s URL %q", e.Platform, e.URL)
}

// TranscriptOption configures a transcript fetcher.
type TranscriptOption func(*endpoint)

// WithHTTPClient sets the client used to call the endpoint.
func WithHTTPClient(c *http.Client) TranscriptOption {
	return func(e *endpoint) {
		e.client = c
	}
}

// WithCacheTTL sets how long fetched transcripts are reused. Zero disables
// caching.
func WithCacheTTL(ttl time.Duration) TranscriptOption {
	return func(e *endpoint) {
		e.ttl = ttl
	}
}

// WithRetryPolicy replaces DefaultTranscriptRetry.
func WithRetryPolicy(p retry.Policy) TranscriptOption {
	return func(e *endpoint) {
		e.policy = p
	}
}

// endpoint is a JSON transcription service shared by the fetchers.
type endpoint struct {
	url    string
	client *http.Client
	ttl    time.Duration
	policy retry.Policy
	now    func() time.Time
}

func newEndpoint(url string, timeout time.Duration, opts []TranscriptOption) endpoint {
	e := endpoint{
		url:    url,
		client: &http.Client{Timeout: timeout},
		ttl:    defaultTranscriptTTL,
		policy: DefaultTranscriptRetry,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(&e)
	}
	return e
}

// post sends req as JSON and decodes a 200 response into out. Any other
// status becomes a *TranscriptError for id.
func (e *endpoint) post(ctx context.Context, req any, id string, out any) error {
	body, err := json.Marshal(req)
	if err != nil {
		return err
	}
	hreq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	hreq.Header.Set("Content-Type", "application/json")
	rsp, err := e.client.Do(hreq)
	if err != nil {
		return fmt.Errorf("call transcript endpoint: %w", err)
	}
	defer rsp.Body.Close()
	data, err := io.ReadAll(rsp.Body)
	if err != nil {
		return fmt.Errorf("read transcript response: %w", err)
	}
	if rsp.StatusCode != http.StatusOK {
		var fail struct {
			Error     string `json:"error"`
			ErrorType string `json:"error_type"`
			Detail    string `json:"detail"`
		}
		_ = json.Unmarshal(data, &fail)
		msg := fail.Error
		if msg == "" {
			msg = fail.Detail
		}
		if msg == "" {
			msg = http.StatusText(rsp.StatusCode)
		}
		te := &TranscriptError{Status: rsp.StatusCode, Type: fail.ErrorType, Message: msg, VideoID: id}
		log.Debugf("transcript endpoint rejected %s: %v", id, te)
		return te
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode transcript response: %w", err)
	}
	return nil
}

type cacheEntry[V any] struct {
	v       V
	expires time.Time
}

// ttlCache holds fetched transcripts until they expire.
type ttlCache[V any] struct {
	mu sync.Mutex
	m  map[string]cacheEntry[V]
}

func (c *ttlCache[V]) get(key string, now time.Time) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var zero V
	e, ok := c.m[key]
	if !ok {
		return zero, false
	}
	if !now.Before(e.expires) {
		delete(c.m, key)
		return zero, false
	}
	return e.v, true
}

func (c *ttlCache[V]) put(key string, v V, expires time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.m == nil {
		c.m = make(map[string]cacheEntry[V])
	}
	c.m[key] = cacheEntry[V]{v: v, expires: expires}
}

// TranscriptFetcher calls a YouTube transcript HTTP endpoint, caching
// results by video id.
type TranscriptFetcher struct {
	endpoint
	cache ttlCache[Transcript]
}

// NewTranscriptFetcher creates a fetcher posting {"url": ...} to url.
func NewTranscriptFetcher(url string, opts ...TranscriptOption) *TranscriptFetcher {
	return &TranscriptFetcher{endpoint: newEndpoint(url, defaultTranscriptTimeout, opts)}
}

// Fetch returns the transcript of the video at rawURL.
func (f *TranscriptFetcher) Fetch(ctx context.Context, rawURL string) (*Transcript, error) {
	id, ok := ExtractVideoID(rawURL)
	if !ok {
		return nil, &InvalidURLError{Platform: "YouTube", URL: rawURL}
	}
	if t, ok := f.cached(id); ok {
		t.Cached = true
		return &t, nil
	}
	var out *Transcript
	err := retry.Do(ctx, f.policy, func(ctx context.Context) error {
		t, err := f.fetchOnce(ctx, rawURL, id)
		if err != nil {
			return err
		}
		out = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	f.store(id, *out)
	return out, nil
}

func (f *TranscriptFetcher) fetchOnce(ctx context.Context, rawURL, id string) (*Transcript, error) {
	var t Transcript
	if err := f.post(ctx, map[string]string{"url": rawURL}, id, &t); err != nil {
		return nil, err
	}
	if t.VideoID == "" {
		t.VideoID = id
	}
	t.Cached = false
	return &t, nil
}

func (f *TranscriptFetcher) cached(id string) (Transcript, bool) {
	if f.ttl <= 0 {
		return Transcript{}, false
	}
	return f.cache.get(id, f.now())
}

func (f *TranscriptFetcher) store(id string, t Transcript) {
	if f.ttl <= 0 {
		return
	}
	f.cache.put(id, t, f.now().Add(f.ttl))
}
