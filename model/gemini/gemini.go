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

// Package gemini adapts Google Gemini models to model.Model.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"google.golang.org/genai"

	"trpc.group/trpc-go/trpc-workflow-go/log"
	"trpc.group/trpc-go/trpc-workflow-go/model"
)

var _ model.Model = (*Model)(nil)

const (
	// GoogleAPIKeyEnv is the environment variable name for the Google API key.
	GoogleAPIKeyEnv = "GOOGLE_API_KEY"

	defaultChannelBufferSize = 256
)

// Model implements model.Model with the genai SDK.
type Model struct {
	client            *genai.Client
	name              string
	channelBufferSize int
}

type options struct {
	apiKey            string
	baseURL           string
	httpClient        *http.Client
	channelBufferSize int
}

// Option configures a Model.
type Option func(*options)

// WithAPIKey sets the API key. It defaults to $GOOGLE_API_KEY.
func WithAPIKey(key string) Option {
	return func(o *options) { o.apiKey = key }
}

// WithBaseURL overrides the Gemini API endpoint.
func WithBaseURL(url string) Option {
	return func(o *options) { o.baseURL = url }
}

// WithHTTPClient sets the HTTP client used by the SDK.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// WithChannelBufferSize sets the response channel buffer size.
func WithChannelBufferSize(size int) Option {
	return func(o *options) {
		if size > 0 {
			o.channelBufferSize = size
		}
	}
}

// New creates a Gemini model.
func New(ctx context.Context, name string, opts ...Option) (*Model, error) {
	o := &options{
		apiKey:            os.Getenv(GoogleAPIKeyEnv),
		channelBufferSize: defaultChannelBufferSize,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.apiKey == "" {
		return nil, fmt.Errorf("%s is not provided", GoogleAPIKeyEnv)
	}
	cfg := &genai.ClientConfig{
		APIKey:     o.apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: o.httpClient,
	}
	if o.baseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: o.baseURL}
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &Model{client: client, name: name, channelBufferSize: o.channelBufferSize}, nil
}

// Info implements the model.Model interface.
func (m *Model) Info() model.Info {
	return model.Info{Name: m.name}
}

// GenerateContent implements the model.Model interface.
func (m *Model) GenerateContent(ctx context.Context, request *model.Request) (<-chan *model.Response, error) {
	if request == nil {
		return nil, errors.New("request cannot be nil")
	}
	contents, config := convertRequest(request)
	responseChan := make(chan *model.Response, m.channelBufferSize)
	go func() {
		defer close(responseChan)
		if request.Stream {
			m.handleStreamingResponse(ctx, contents, config, responseChan)
			return
		}
		rsp, err := m.client.Models.GenerateContent(ctx, m.name, contents, config)
		if err != nil {
			send(ctx, responseChan, model.NewErrorResponse(model.ErrorTypeAPIError, err.Error(), statusOf(err)))
			return
		}
		final := convertResponse(rsp, m.name)
		final.Done = true
		final.Object = model.ObjectTypeChatCompletion
		final.Choices = []model.Choice{{
			Message:      model.Message{Role: model.RoleAssistant, Content: rsp.Text()},
			FinishReason: finishReason(rsp),
		}}
		send(ctx, responseChan, final)
	}()
	return responseChan, nil
}

func (m *Model) handleStreamingResponse(
	ctx context.Context,
	contents []*genai.Content,
	config *genai.GenerateContentConfig,
	responseChan chan<- *model.Response,
) {
	var (
		full  strings.Builder
		last  *genai.GenerateContentResponse
		usage *model.Usage
	)
	for rsp, err := range m.client.Models.GenerateContentStream(ctx, m.name, contents, config) {
		if err != nil {
			log.Debugf("gemini stream for %s failed: %v", m.name, err)
			send(ctx, responseChan, model.NewErrorResponse(model.ErrorTypeStreamError, err.Error(), statusOf(err)))
			return
		}
		last = rsp
		if u := convertResponse(rsp, m.name).Usage; u != nil {
			usage = u
		}
		text := rsp.Text()
		if text == "" {
			continue
		}
		full.WriteString(text)
		partial := convertResponse(rsp, m.name)
		partial.Object = model.ObjectTypeChatCompletionChunk
		partial.IsPartial = true
		partial.Choices = []model.Choice{{Delta: model.Message{Role: model.RoleAssistant, Content: text}}}
		select {
		case responseChan <- partial:
		case <-ctx.Done():
			return
		}
	}
	final := &model.Response{
		Object:    model.ObjectTypeChatCompletion,
		Model:     m.name,
		Timestamp: time.Now(),
		Done:      true,
		Usage:     usage,
		Choices: []model.Choice{{
			Message:      model.Message{Role: model.RoleAssistant, Content: full.String()},
			FinishReason: finishReason(last),
		}},
	}
	send(ctx, responseChan, final)
}

func convertRequest(request *model.Request) ([]*genai.Content, *genai.GenerateContentConfig) {
	config := &genai.GenerateContentConfig{}
	var contents []*genai.Content
	var system []string
	for _, msg := range request.Messages {
		switch msg.Role {
		case model.RoleSystem:
			system = append(system, msg.Content)
		case model.RoleAssistant:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleUser))
		}
	}
	if len(system) > 0 {
		config.SystemInstruction = genai.NewContentFromText(strings.Join(system, "\n"), genai.RoleUser)
	}
	if request.Temperature != nil {
		config.Temperature = genai.Ptr(float32(*request.Temperature))
	}
	if request.TopP != nil {
		config.TopP = genai.Ptr(float32(*request.TopP))
	}
	if request.MaxTokens != nil {
		config.MaxOutputTokens = int32(*request.MaxTokens)
	}
	if len(request.Stop) > 0 {
		config.StopSequences = request.Stop
	}
	return contents, config
}

func convertResponse(rsp *genai.GenerateContentResponse, name string) *model.Response {
	out := &model.Response{
		Model:     name,
		Timestamp: time.Now(),
	}
	if u := rsp.UsageMetadata; u != nil && u.TotalTokenCount > 0 {
		out.Usage = &model.Usage{
			PromptTokens:     int(u.PromptTokenCount),
			CompletionTokens: int(u.CandidatesTokenCount),
			TotalTokens:      int(u.TotalTokenCount),
		}
	}
	return out
}

func finishReason(rsp *genai.GenerateContentResponse) *string {
	if rsp == nil || len(rsp.Candidates) == 0 || rsp.Candidates[0].FinishReason == "" {
		return nil
	}
	reason := strings.ToLower(string(rsp.Candidates[0].FinishReason))
	return &reason
}

func send(ctx context.Context, ch chan<- *model.Response, rsp *model.Response) {
	select {
	case ch <- rsp:
	case <-ctx.Done():
	}
}

// statusOf extracts the HTTP status from a genai API error.
func statusOf(err error) int {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) {
		return apiErrPtr.Code
	}
	return 0
}
