// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package docextract

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/jeranaias/llumdocs/internal/coerce"
	"github.com/jeranaias/llumdocs/internal/llm"
	"github.com/jeranaias/llumdocs/internal/model"
	"github.com/jeranaias/llumdocs/internal/router"
	"github.com/jeranaias/llumdocs/internal/service"
	"github.com/jeranaias/llumdocs/internal/util"
)

// DefaultModel is used when the caller gives no model hint.
const DefaultModel = "gpt-4o-mini"

// Generation settings for extraction calls.
const (
	extractTemperature = 0
	extractSeed        = 7
	extractMaxTokens   = 2000
)

const ollamaRejected = "Ollama models are not available for document extraction. " +
	"Please use an OpenAI model (e.g., 'gpt-4o-mini', 'gpt-4o')."

// Extraction is a normalized record plus everything derived from it.
type Extraction struct {
	DocType  string   `json:"doc_type"`
	Model    string   `json:"model"`
	Record   Record   `json:"data"`
	Strategy string   `json:"strategy"`
	Dropped  []string `json:"dropped,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
	Legend   []string `json:"legend,omitempty"`
}

// ExtractOptions tunes a single Extract call.
type ExtractOptions struct {
	// Redact masks personal data in the legend.
	Redact bool
	// RedactInput masks personal data before the text leaves the host.
	RedactInput bool
}

// ExtractOption configures an Extract call.
type ExtractOption func(*ExtractOptions)

// WithRedaction masks personal data in the rendered legend.
func WithRedaction() ExtractOption {
	return func(o *ExtractOptions) { o.Redact = true }
}

// WithInputRedaction masks personal data in the text sent to the model.
func WithInputRedaction() ExtractOption {
	return func(o *ExtractOptions) { o.RedactInput = true }
}

// Extractor turns document text into schema-shaped records.
type Extractor struct {
	llm          service.Invoker
	catalogue    *Catalogue
	coercer      *coerce.Coercer
	defaultModel string
	logger       *zap.Logger
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Extractor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithCoercer replaces the coercer used to parse model output.
func WithCoercer(c *coerce.Coercer) Option {
	return func(e *Extractor) { e.coercer = c }
}

// WithDefaultModel replaces DefaultModel.
func WithDefaultModel(id string) Option {
	return func(e *Extractor) {
		if id != "" {
			e.defaultModel = id
		}
	}
}

// NewExtractor creates an Extractor over the embedded catalogue.
func NewExtractor(invoker service.Invoker, opts ...Option) (*Extractor, error) {
	cat, err := LoadCatalogue()
	if err != nil {
		return nil, fmt.Errorf("load document types: %w", err)
	}
	e := &Extractor{
		llm:          invoker,
		catalogue:    cat,
		defaultModel: DefaultModel,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.coercer == nil {
		e.coercer = coerce.New(e.logger)
	}
	return e, nil
}

// Catalogue returns the document types the extractor knows.
func (e *Extractor) Catalogue() *Catalogue {
	return e.catalogue
}

// Extract asks a hosted model for the fields of docType found in text.
func (e *Extractor) Extract(ctx context.Context, docType, text, hint string, opts ...ExtractOption) (Extraction, error) {
	var o ExtractOptions
	for _, opt := range opts {
		opt(&o)
	}

	text = util.NormalizeText(text)
	if text == "" {
		return Extraction{}, &service.ValidationError{Field: "text", Message: "Text cannot be empty."}
	}
	docType = strings.TrimSpace(docType)
	if docType == "" {
		return Extraction{}, &service.ValidationError{Field: "doc_type", Message: "doc_type cannot be empty."}
	}
	hint = strings.TrimSpace(hint)
	if model.ProviderOf(hint) == model.ProviderOllama {
		return Extraction{}, &service.ValidationError{Field: "model", Message: ollamaRejected}
	}
	if hint == "" {
		hint = e.defaultModel
	}
	dt, err := e.catalogue.Get(docType)
	if err != nil {
		return Extraction{}, err
	}

	if dt.TextLimit > 0 && utf8.RuneCountInString(text) > dt.TextLimit {
		text = util.TruncateRunesNoEllipsis(text, dt.TextLimit)
	}
	if o.RedactInput {
		text = Redact(text, dt.Redaction)
	}

	conv := model.Conversation{
		model.System(dt.SystemPrompt),
		model.User(dt.Prompt(text)),
	}

	// One call: malformed or schema-invalid output is returned to the caller.
	res, err := e.llm.Invoke(ctx, conv, router.TaskText, hint,
		llm.WithTemperature(extractTemperature),
		llm.WithSeed(extractSeed),
		llm.WithMaxTokens(extractMaxTokens),
		llm.WithJSON())
	if err != nil {
		e.logger.Warn("FEATURE_FAILED", zap.String("feature", "extract"), zap.String("doc_type", dt.Name), zap.Error(err))
		return Extraction{}, err
	}
	parsed, err := e.coercer.Parse(res.Text, &dt.Schema)
	if err != nil {
		e.logger.Warn("FEATURE_FAILED",
			zap.String("feature", "extract"),
			zap.String("doc_type", dt.Name),
			zap.String("model", res.Model),
			zap.Error(err))
		return Extraction{}, err
	}

	rec := Record(parsed.Value)
	out := Extraction{
		DocType:  dt.Name,
		Model:    res.Model,
		Record:   rec,
		Strategy: parsed.Strategy,
		Dropped:  parsed.Dropped,
		Warnings: Warnings(dt.Name, rec),
		Legend:   Legend(dt.Name, rec),
	}
	if o.Redact {
		out.Legend = RedactLines(out.Legend, dt.Redaction)
	}
	e.logger.Debug("FEATURE_OK",
		zap.String("feature", "extract"),
		zap.String("doc_type", dt.Name),
		zap.String("model", res.Model),
		zap.Int("warnings", len(out.Warnings)))
	return out, nil
}
