// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package service

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/jeranaias/llumdocs/internal/coerce"
	"github.com/jeranaias/llumdocs/internal/config"
	"github.com/jeranaias/llumdocs/internal/llm"
	"github.com/jeranaias/llumdocs/internal/model"
	"github.com/jeranaias/llumdocs/internal/router"
	"github.com/jeranaias/llumdocs/internal/util"
)

// Invoker runs a conversation against the models usable for a task kind.
// *llm.Client implements it.
type Invoker interface {
	Invoke(ctx context.Context, conv model.Conversation, kind router.TaskKind, hint string, opts ...llm.Option) (llm.Result, error)
}

// ValidationError rejects bad input before any model is called.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// Output is the text produced by a feature and the model that wrote it.
type Output struct {
	Text  string `json:"text"`
	Model string `json:"model"`
}

// Service bundles the text and image features.
type Service struct {
	llm           Invoker
	coercer       *coerce.Coercer
	maxTextChars  int
	maxImageBytes int64
	logger        *zap.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithCoercer replaces the coercer used for structured answers.
func WithCoercer(c *coerce.Coercer) Option {
	return func(s *Service) {
		if c != nil {
			s.coercer = c
		}
	}
}

// New creates a Service. Limits come from cfg; a nil cfg uses defaults.
func New(invoker Invoker, cfg *config.Config, logger *zap.Logger, opts ...Option) *Service {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		llm:           invoker,
		coercer:       coerce.New(logger),
		maxTextChars:  cfg.Limits.MaxTextChars,
		maxImageBytes: cfg.Limits.MaxImageBytes,
		logger:        logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// validateText trims and normalizes text, rejecting blank or oversized
// input.
func (s *Service) validateText(field, text string) (string, error) {
	text = util.NormalizeText(text)
	if text == "" {
		return "", invalid(field, "%s cannot be empty.", field)
	}
	if s.maxTextChars > 0 {
		if n := utf8.RuneCountInString(text); n > s.maxTextChars {
			return "", invalid(field, "%s is too long (%d characters, limit %d).", field, n, s.maxTextChars)
		}
	}
	return text, nil
}

func (s *Service) run(ctx context.Context, feature string, kind router.TaskKind, hint string, conv model.Conversation, opts ...llm.Option) (Output, error) {
	res, err := s.llm.Invoke(ctx, conv, kind, hint, opts...)
	if err != nil {
		s.logger.Warn("FEATURE_FAILED", zap.String("feature", feature), zap.Error(err))
		return Output{}, err
	}
	s.logger.Debug("FEATURE_OK",
		zap.String("feature", feature),
		zap.String("model", res.Model),
		zap.Duration("duration", res.Latency))
	return Output{Text: strings.TrimSpace(res.Text), Model: res.Model}, nil
}

// bulletList renders "- a\n- b".
func bulletList(items []string) string {
	lines := make([]string, len(items))
	for i, item := range items {
		lines[i] = "- " + item
	}
	return strings.Join(lines, "\n")
}
