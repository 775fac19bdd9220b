// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package email

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jeranaias/llumdocs/internal/config"
	"github.com/jeranaias/llumdocs/internal/service"
)

// DefaultTemplate is the zero-shot hypothesis template.
const DefaultTemplate = "This message is about {}."

// Classification is the zero-shot routing result, best label first.
type Classification struct {
	Labels []string  `json:"labels"`
	Scores []float64 `json:"scores"`
}

// PhishingDetection is the phishing verdict with every label's score.
type PhishingDetection struct {
	Label         string             `json:"label"`
	Score         float64            `json:"score"`
	ScoresByLabel map[string]float64 `json:"scores_by_label"`
}

// SentimentPrediction is the top sentiment label.
type SentimentPrediction struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// Insights bundles the three analyses of one message.
type Insights struct {
	Classification Classification      `json:"classification"`
	Phishing       PhishingDetection   `json:"phishing"`
	Sentiment      SentimentPrediction `json:"sentiment"`
}

// Service runs email analyses against a Registry.
type Service struct {
	enabled    bool
	registry   *Registry
	labels     []string
	multiLabel bool
	template   string
	timeout    time.Duration
	logger     *zap.Logger
}

// NewService creates a Service from the email section of cfg.
func NewService(cfg *config.Config, registry *Registry, logger *zap.Logger) (*Service, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	labels, err := NormalizeLabels(cfg.Email.Labels)
	if err != nil {
		return nil, err
	}
	return &Service{
		enabled:    cfg.Email.Enabled,
		registry:   registry,
		labels:     labels,
		multiLabel: true,
		template:   DefaultTemplate,
		timeout:    cfg.EmailTimeout(),
		logger:     logger,
	}, nil
}

// NewRegistryFromConfig wires an HTTPLoader and the configured models into
// a Registry.
func NewRegistryFromConfig(cfg *config.Config, probe GPUProbe, logger *zap.Logger, opts ...RegistryOption) *Registry {
	e := cfg.Email
	loader := NewHTTPLoader(e.Endpoint, e.CPUEndpoint, e.Token, cfg.EmailTimeout(), logger)
	base := []RegistryOption{
		WithRegistryLogger(logger),
		WithSerializedInference(e.SerializeInference),
	}
	if probe != nil {
		base = append(base, WithGPUProbe(probe, e.MinGPUFreeMB))
	}
	return NewRegistry(loader, map[PipelineKind]string{
		KindZeroShot:  e.ZeroShotModel,
		KindPhishing:  e.PhishingModel,
		KindSentiment: e.SentimentModel,
	}, append(base, opts...)...)
}

// Enabled reports whether the feature is switched on.
func (s *Service) Enabled() bool {
	return s.enabled
}

// Labels returns the configured routing labels.
func (s *Service) Labels() []string {
	return append([]string(nil), s.labels...)
}

// Classify routes text into labels by zero-shot inference. Nil labels
// use the configured routing labels.
func (s *Service) Classify(ctx context.Context, text string, labels []string) (Classification, error) {
	text, err := s.check(text)
	if err != nil {
		return Classification{}, err
	}
	if labels == nil {
		labels = s.labels
	} else if labels, err = NormalizeLabels(labels); err != nil {
		return Classification{}, &service.ValidationError{Field: "candidate_labels", Message: err.Error() + "."}
	}
	scores, err := s.run(ctx, KindZeroShot, Input{
		Text:       text,
		Labels:     labels,
		MultiLabel: s.multiLabel,
		Template:   s.template,
	})
	if err != nil {
		return Classification{}, err
	}
	sortScores(scores)
	out := Classification{
		Labels: make([]string, len(scores)),
		Scores: make([]float64, len(scores)),
	}
	for i, sc := range scores {
		out.Labels[i], out.Scores[i] = sc.Label, sc.Score
	}
	return out, nil
}

// Phishing scores text as safe or phishing.
func (s *Service) Phishing(ctx context.Context, text string) (PhishingDetection, error) {
	text, err := s.check(text)
	if err != nil {
		return PhishingDetection{}, err
	}
	scores, err := s.run(ctx, KindPhishing, Input{Text: text})
	if err != nil {
		return PhishingDetection{}, err
	}
	out := PhishingDetection{ScoresByLabel: make(map[string]float64, len(scores))}
	for _, sc := range scores {
		out.ScoresByLabel[PhishingLabel(sc.Label)] = sc.Score
	}
	best := make([]Score, 0, len(out.ScoresByLabel))
	for label, score := range out.ScoresByLabel {
		best = append(best, Score{Label: label, Score: score})
	}
	sortScores(best)
	out.Label, out.Score = best[0].Label, best[0].Score
	return out, nil
}

// Sentiment returns the top sentiment label (positive, neutral, negative).
func (s *Service) Sentiment(ctx context.Context, text string) (SentimentPrediction, error) {
	text, err := s.check(text)
	if err != nil {
		return SentimentPrediction{}, err
	}
	scores, err := s.run(ctx, KindSentiment, Input{Text: text})
	if err != nil {
		return SentimentPrediction{}, err
	}
	sortScores(scores)
	return SentimentPrediction{Label: scores[0].Label, Score: scores[0].Score}, nil
}

// Analyze runs the three analyses concurrently.
func (s *Service) Analyze(ctx context.Context, text string) (Insights, error) {
	text, err := s.check(text)
	if err != nil {
		return Insights{}, err
	}

	var (
		out  Insights
		wg   sync.WaitGroup
		errs [3]error
	)
	wg.Add(3)
	go func() {
		defer wg.Done()
		out.Classification, errs[0] = s.Classify(ctx, text, nil)
	}()
	go func() {
		defer wg.Done()
		out.Phishing, errs[1] = s.Phishing(ctx, text)
	}()
	go func() {
		defer wg.Done()
		out.Sentiment, errs[2] = s.Sentiment(ctx, text)
	}()
	wg.Wait()

	if err := errors.Join(errs[:]...); err != nil {
		return Insights{}, err
	}
	return out, nil
}

func (s *Service) check(text string) (string, error) {
	if !s.enabled {
		return "", &FeatureDisabledError{Feature: "email analysis"}
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", &service.ValidationError{Field: "text", Message: "text must not be empty."}
	}
	return text, nil
}

// run executes one inference. An accelerator that runs out of memory is
// swapped for a CPU pipeline and the call is retried once.
func (s *Service) run(ctx context.Context, kind PipelineKind, in Input) ([]Score, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	p, err := s.registry.Get(ctx, kind)
	if err != nil {
		s.logger.Warn("FEATURE_FAILED", zap.String("feature", string(kind)), zap.Error(err))
		return nil, err
	}
	scores, err := p.Run(ctx, in)
	if err != nil && IsDeviceUnavailable(err) && p.Device() == DeviceGPU {
		s.logger.Warn("PIPELINE_GPU_FALLBACK", zap.String("kind", string(kind)), zap.Error(err))
		if p, err = s.registry.ReloadOnCPU(ctx, kind); err == nil {
			scores, err = p.Run(ctx, in)
		}
	}
	if err != nil {
		var perr *PipelineError
		if !errors.As(err, &perr) {
			err = &PipelineError{Kind: kind, Device: p.Device(), Op: "run", Err: err}
		}
		s.logger.Warn("FEATURE_FAILED", zap.String("feature", string(kind)), zap.Error(err))
		return nil, err
	}
	if len(scores) == 0 {
		return nil, &PipelineError{Kind: kind, Device: p.Device(), Op: "run", Err: fmt.Errorf("%w: no labels", ErrUnexpectedResponse)}
	}
	return scores, nil
}
