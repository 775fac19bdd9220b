// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package llm

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/jeranaias/llumdocs/internal/cloud"
	"github.com/jeranaias/llumdocs/internal/model"
	"github.com/jeranaias/llumdocs/internal/ollama"
	"github.com/jeranaias/llumdocs/internal/router"
)

// Request is one provider call.
type Request struct {
	Model        router.ResolvedModel
	Conversation model.Conversation
	Options      Options
}

// Provider adapts one backend. Implementations never return a nil
// ProviderResponse.
type Provider interface {
	Chat(ctx context.Context, req Request) ProviderResponse
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context, req Request) ProviderResponse

// Chat calls f.
func (f ProviderFunc) Chat(ctx context.Context, req Request) ProviderResponse {
	return f(ctx, req)
}

var errEmptyResponse = errors.New("model returned an empty response")

// =============================================================================
// OLLAMA
// =============================================================================

// OllamaProvider serves "ollama/" models through the local server.
type OllamaProvider struct {
	client *ollama.Client
}

// NewOllamaProvider wraps client.
func NewOllamaProvider(client *ollama.Client) *OllamaProvider {
	return &OllamaProvider{client: client}
}

// Chat sends the conversation with keep_alive 0 so the model is unloaded
// right after the call.
func (p *OllamaProvider) Chat(ctx context.Context, req Request) ProviderResponse {
	chatReq := &ollama.ChatRequest{
		Model:    req.Model.ProviderModel(),
		Messages: make([]ollama.Message, 0, len(req.Conversation)),
	}
	for _, m := range req.Conversation {
		msg := ollama.Message{Role: string(m.Role), Content: m.Content}
		if m.Image != nil {
			msg.Images = []string{base64.StdEncoding.EncodeToString(m.Image.Data)}
		}
		chatReq.Messages = append(chatReq.Messages, msg)
	}
	if req.Options.JSON {
		chatReq.Format = "json"
	}
	if o := req.Options; o.Temperature != nil || o.MaxTokens > 0 || o.Seed != nil {
		chatReq.Options = &ollama.Options{Temperature: o.Temperature, NumPredict: o.MaxTokens, Seed: o.Seed}
	}

	resp, err := p.client.Chat(ctx, chatReq)
	if err != nil {
		return errorResponse(classifyOllama(ctx, err), ollama.StatusCode(err), err)
	}
	text := strings.TrimSpace(resp.Message.Content)
	if text == "" {
		return errorResponse(ClassServerError, 0, errEmptyResponse)
	}
	return &TextResponse{
		Text:             text,
		Model:            req.Model.ID,
		PromptTokens:     resp.PromptEvalCount,
		CompletionTokens: resp.EvalCount,
	}
}

func classifyOllama(ctx context.Context, err error) ErrorClass {
	switch ollama.TypeOf(err) {
	case ollama.ErrTypeTimeout:
		return ClassTimeout
	case ollama.ErrTypeNotRunning:
		return ClassConnection
	case ollama.ErrTypeModelNotFound:
		return ClassNotFound
	case ollama.ErrTypeBadRequest:
		return ClassBadRequest
	case ollama.ErrTypeServer, ollama.ErrTypeInvalidResponse:
		return ClassServerError
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ClassTimeout
	}
	return ClassUnknown
}

// =============================================================================
// OPENAI-COMPATIBLE
// =============================================================================

// OpenAIProvider serves hosted models.
type OpenAIProvider struct {
	client *cloud.Client
}

// NewOpenAIProvider wraps client.
func NewOpenAIProvider(client *cloud.Client) *OpenAIProvider {
	return &OpenAIProvider{client: client}
}

// Chat sends the conversation. Images travel as data URLs in content parts.
func (p *OpenAIProvider) Chat(ctx context.Context, req Request) ProviderResponse {
	chatReq := &cloud.ChatRequest{
		Model:       req.Model.ProviderModel(),
		Messages:    make([]cloud.ChatMessage, 0, len(req.Conversation)),
		Temperature: req.Options.Temperature,
		MaxTokens:   req.Options.MaxTokens,
		Seed:        req.Options.Seed,
	}
	for _, m := range req.Conversation {
		var msg cloud.ChatMessage
		if m.Image != nil {
			msg = cloud.NewImageMessage(m.Content, DataURL(*m.Image))
		} else {
			msg = cloud.ChatMessage{Content: cloud.Content{Text: m.Content}}
		}
		msg.Role = string(m.Role)
		chatReq.Messages = append(chatReq.Messages, msg)
	}
	if req.Options.JSON {
		chatReq.ResponseFormat = &cloud.ResponseFormat{Type: "json_object"}
	}

	resp, err := p.client.Chat(ctx, chatReq)
	if err != nil {
		return errorResponse(classifyCloud(err), cloud.StatusCode(err), err)
	}
	text := strings.TrimSpace(resp.GetContent())
	if text == "" {
		return errorResponse(ClassServerError, 0, errEmptyResponse)
	}
	return &TextResponse{
		Text:             text,
		Model:            req.Model.ID,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
	}
}

func classifyCloud(err error) ErrorClass {
	switch {
	case errors.Is(err, cloud.ErrTimeout):
		return ClassTimeout
	case errors.Is(err, cloud.ErrConnection):
		return ClassConnection
	case errors.Is(err, cloud.ErrRateLimited):
		return ClassRateLimited
	case errors.Is(err, cloud.ErrModelNotFound):
		return ClassNotFound
	case errors.Is(err, cloud.ErrBadRequest):
		return ClassBadRequest
	case errors.Is(err, cloud.ErrAuthFailed), errors.Is(err, cloud.ErrInsufficientCredits), errors.Is(err, cloud.ErrNotConfigured):
		return ClassAuth
	case cloud.StatusCode(err) >= 500:
		return ClassServerError
	}
	return ClassUnknown
}

// unsupportedProvider answers for providers with no adapter registered.
func unsupportedProvider(p model.Provider) ProviderResponse {
	return errorResponse(ClassUnknown, 0, fmt.Errorf("no adapter for provider %q", p))
}
