// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/jeranaias/llumdocs/internal/cloud"
	"github.com/jeranaias/llumdocs/internal/config"
	"github.com/jeranaias/llumdocs/internal/model"
	"github.com/jeranaias/llumdocs/internal/ollama"
	"github.com/jeranaias/llumdocs/internal/router"
)

// Result is a successful invocation.
type Result struct {
	Text     string
	Model    string
	Provider model.Provider
	Latency  time.Duration
	// Attempts lists the candidates that failed before Model answered.
	Attempts []Attempt
}

// Client runs conversations against the usable candidates of a task kind.
// It holds no mutable state after construction and is safe for concurrent
// use.
type Client struct {
	resolver      *router.Resolver
	providers     map[model.Provider]Provider
	maxImageBytes int64
	observers     []Observer
	logger        *zap.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithObserver registers an attempt observer.
func WithObserver(o Observer) ClientOption {
	return func(c *Client) {
		if o != nil {
			c.observers = append(c.observers, o)
		}
	}
}

// WithProvider replaces the adapter for p.
func WithProvider(p model.Provider, impl Provider) ClientOption {
	return func(c *Client) { c.providers[p] = impl }
}

// New builds a client for cfg with the default Ollama and OpenAI adapters.
func New(cfg *config.Config, opts ...ClientOption) *Client {
	if cfg == nil {
		cfg = config.Default()
	}
	c := &Client{
		resolver:      router.New(cfg),
		providers:     make(map[model.Provider]Provider),
		maxImageBytes: cfg.Limits.MaxImageBytes,
		logger:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	if _, ok := c.providers[model.ProviderOllama]; !ok {
		c.providers[model.ProviderOllama] = NewOllamaProvider(ollama.NewClientWithConfig(&ollama.ClientConfig{
			BaseURL: cfg.Ollama.APIBase,
		}))
	}
	if _, ok := c.providers[model.ProviderOpenAI]; !ok {
		hosted := cloud.NewClient(cfg.OpenAI.APIKey).WithLogger(c.logger)
		if cfg.OpenAI.BaseURL != "" {
			hosted.WithBaseURL(cfg.OpenAI.BaseURL)
		}
		c.providers[model.ProviderOpenAI] = NewOpenAIProvider(hosted)
	}
	return c
}

// Resolver exposes the resolver the client walks.
func (c *Client) Resolver() *router.Resolver {
	return c.resolver
}

// =============================================================================
// INVOCATION
// =============================================================================

// Invoke runs conv against the usable candidates for kind, one attempt
// each, until one answers or a non-transient error stops the walk.
func (c *Client) Invoke(ctx context.Context, conv model.Conversation, kind router.TaskKind, hint string, opts ...Option) (Result, error) {
	conv, err := c.prepare(conv, kind)
	if err != nil {
		return Result{}, err
	}
	candidates, err := c.resolver.Usable(kind, hint)
	if err != nil {
		return Result{}, err
	}
	return c.walk(ctx, conv, kind, candidates, buildOptions(opts))
}

// InvokeResolved runs conv once against rm. A transient failure comes back
// as a ProviderUnavailableError holding that single attempt; any other
// failure is an InvocationError.
func (c *Client) InvokeResolved(ctx context.Context, conv model.Conversation, rm router.ResolvedModel, opts ...Option) (Result, error) {
	kind := router.TaskText
	if len(conv.ImageMessages()) > 0 {
		kind = router.TaskVision
	}
	conv, err := c.prepare(conv, kind)
	if err != nil {
		return Result{}, err
	}
	if err := ctx.Err(); err != nil {
		return Result{}, fmt.Errorf("invocation cancelled: %w", err)
	}
	return c.invokeOnce(ctx, conv, kind, rm, 1, buildOptions(opts))
}

func (c *Client) prepare(conv model.Conversation, kind router.TaskKind) (model.Conversation, error) {
	if err := conv.Validate(); err != nil {
		return nil, &InvalidRequestError{Reason: err.Error()}
	}
	return validateImages(conv, kind == router.TaskVision, c.maxImageBytes)
}

func (c *Client) walk(ctx context.Context, conv model.Conversation, kind router.TaskKind, candidates []router.ResolvedModel, o Options) (Result, error) {
	var failed []Attempt
	for i, rm := range candidates {
		if err := ctx.Err(); err != nil {
			return Result{}, fmt.Errorf("invocation cancelled: %w", err)
		}

		res, err := c.invokeOnce(ctx, conv, kind, rm, i+1, o)
		var unavailable *ProviderUnavailableError
		if errors.As(err, &unavailable) {
			c.logger.Info("LLM_FALLBACK",
				zap.String("model", rm.ID),
				zap.Int("attempt", i+1),
				zap.Int("remaining", len(candidates)-i-1))
			failed = append(failed, unavailable.Attempts...)
			continue
		}
		if err != nil {
			return Result{}, err
		}
		res.Attempts = failed
		return res, nil
	}
	return Result{}, &ProviderUnavailableError{Attempts: failed}
}

// invokeOnce makes attempt n against rm and reports it to the observers.
func (c *Client) invokeOnce(ctx context.Context, conv model.Conversation, kind router.TaskKind, rm router.ResolvedModel, n int, o Options) (Result, error) {
	start := time.Now()
	resp := c.attempt(ctx, conv, rm, o)
	elapsed := time.Since(start)

	if r, ok := resp.(*TextResponse); ok {
		c.emit(Event{
			Kind: kind, Model: rm.ID, Provider: rm.Provider, Attempt: n,
			Success: true, Duration: elapsed,
			PromptTokens: r.PromptTokens, CompletionTokens: r.CompletionTokens,
		})
		c.logger.Debug("LLM_INVOKE_OK",
			zap.String("model", rm.ID),
			zap.Int("attempt", n),
			zap.Duration("duration", elapsed))
		return Result{Text: r.Text, Model: rm.ID, Provider: rm.Provider, Latency: elapsed}, nil
	}

	r := resp.(*ErrorResponse)
	c.emit(Event{
		Kind: kind, Model: rm.ID, Provider: rm.Provider, Attempt: n,
		Class: r.Class, Err: r.Err, Duration: elapsed,
	})
	if !r.Class.Transient() {
		c.logger.Warn("LLM_INVOKE_FAILED",
			zap.String("model", rm.ID),
			zap.String("class", string(r.Class)),
			zap.Error(r.Err))
		return Result{}, &InvocationError{Model: rm.ID, Class: r.Class, Status: r.Status, Err: r.Err}
	}
	c.logger.Debug("LLM_ATTEMPT_FAILED",
		zap.String("model", rm.ID),
		zap.String("class", string(r.Class)),
		zap.Error(r.Err))
	return Result{}, &ProviderUnavailableError{
		Attempts: []Attempt{{Model: rm.ID, Class: r.Class, Reason: r.Err.Error()}},
	}
}

// attempt calls the provider for rm. The result is always a non-nil
// *TextResponse or *ErrorResponse with a non-nil Err.
func (c *Client) attempt(ctx context.Context, conv model.Conversation, rm router.ResolvedModel, o Options) ProviderResponse {
	p, ok := c.providers[rm.Provider]
	if !ok {
		return unsupportedProvider(rm.Provider)
	}
	if rm.Params.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, rm.Params.Timeout)
		defer cancel()
	}
	noResponse := errorResponse(ClassUnknown, 0, fmt.Errorf("provider %s returned no response", rm.Provider))

	switch r := p.Chat(ctx, Request{Model: rm, Conversation: conv, Options: o}).(type) {
	case *TextResponse:
		if r == nil {
			return noResponse
		}
		return r
	case *ErrorResponse:
		if r == nil {
			return noResponse
		}
		if r.Err == nil {
			r.Err = errors.New(string(r.Class))
		}
		return r
	default:
		return noResponse
	}
}

func (c *Client) emit(e Event) {
	for _, o := range c.observers {
		o.Observe(e)
	}
}
