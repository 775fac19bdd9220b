// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jeranaias/llumdocs/internal/detect"
	"github.com/jeranaias/llumdocs/internal/docextract"
	"github.com/jeranaias/llumdocs/internal/email"
	"github.com/jeranaias/llumdocs/internal/router"
	"github.com/jeranaias/llumdocs/internal/service"
	"github.com/jeranaias/llumdocs/internal/storage"
)

// ============================================================================
// REQUEST / RESPONSE TYPES
// ============================================================================

type translateRequest struct {
	Text       string `json:"text"`
	SourceLang string `json:"source_lang"`
	TargetLang string `json:"target_lang"`
	Model      string `json:"model"`
}

type translateResponse struct {
	TranslatedText string `json:"translated_text"`
	Model          string `json:"model"`
}

type summaryRequest struct {
	Text        string `json:"text"`
	SummaryType string `json:"summary_type"`
	Model       string `json:"model"`
}

type summaryResponse struct {
	Summary string `json:"summary"`
	Model   string `json:"model"`
}

type plainRequest struct {
	Text               string `json:"text"`
	TargetReadingLevel string `json:"target_reading_level"`
	Model              string `json:"model"`
}

type plainResponse struct {
	PlainText string `json:"plain_text"`
	Model     string `json:"model"`
}

type technicalRequest struct {
	Text        string `json:"text"`
	Domain      string `json:"domain"`
	TargetLevel string `json:"target_level"`
	Model       string `json:"model"`
}

type technicalResponse struct {
	TechnicalText string `json:"technical_text"`
	Model         string `json:"model"`
}

type toneRequest struct {
	Text     string `json:"text"`
	Tone     string `json:"tone_type"`
	Language string `json:"language"`
	Model    string `json:"model"`
}

type toneResponse struct {
	Email string `json:"email"`
	Model string `json:"model"`
}

type keywordsRequest struct {
	Text        string `json:"text"`
	MaxKeywords int    `json:"max_keywords"`
	Model       string `json:"model"`
}

type imageResponse struct {
	Description string `json:"description"`
	Model       string `json:"model"`
}

type extractRequest struct {
	DocType     string `json:"doc_type"`
	Text        string `json:"text"`
	Model       string `json:"model"`
	Redact      bool   `json:"redact"`
	RedactInput bool   `json:"redact_input"`
}

type emailRequest struct {
	Text string `json:"text"`
}

// ModelsResponse lists what the API can run right now.
type ModelsResponse struct {
	Text     []router.ModelOption `json:"text"`
	Vision   []router.ModelOption `json:"vision"`
	DocTypes []string             `json:"doc_types,omitempty"`
	Email    bool                 `json:"email_enabled"`
}

// HealthResponse is the /health body.
type HealthResponse struct {
	Status        string            `json:"status"`
	Version       string            `json:"version"`
	UptimeSeconds int64             `json:"uptime_seconds"`
	Ollama        string            `json:"ollama"`
	Hosted        string            `json:"hosted"`
	LocalOnly     bool              `json:"local_only"`
	Host          *detect.HostStats `json:"host,omitempty"`
}

// ============================================================================
// TEXT FEATURES
// ============================================================================

func (s *Server) handleTranslate(w http.ResponseWriter, r *http.Request) {
	var req translateRequest
	if !s.decode(w, r, &req) {
		return
	}
	out, err := s.backend.Load().Features.Translate(r.Context(), service.TranslateRequest{
		Text:   req.Text,
		Source: service.Language(req.SourceLang),
		Target: service.Language(req.TargetLang),
		Model:  req.Model,
	})
	if err != nil {
		s.fail(w, r, "translate", err)
		return
	}
	writeJSON(w, http.StatusOK, translateResponse{TranslatedText: out.Text, Model: out.Model})
}

func (s *Server) handleSummarize(w http.ResponseWriter, r *http.Request) {
	var req summaryRequest
	if !s.decode(w, r, &req) {
		return
	}
	out, err := s.backend.Load().Features.Summarize(r.Context(), service.SummaryRequest{
		Text:  req.Text,
		Type:  service.SummaryType(req.SummaryType),
		Model: req.Model,
	})
	if err != nil {
		s.fail(w, r, "summarize", err)
		return
	}
	writeJSON(w, http.StatusOK, summaryResponse{Summary: out.Text, Model: out.Model})
}

func (s *Server) handlePlain(w http.ResponseWriter, r *http.Request) {
	var req plainRequest
	if !s.decode(w, r, &req) {
		return
	}
	out, err := s.backend.Load().Features.Simplify(r.Context(), service.SimplifyRequest{
		Text:  req.Text,
		Level: req.TargetReadingLevel,
		Model: req.Model,
	})
	if err != nil {
		s.fail(w, r, "simplify", err)
		return
	}
	writeJSON(w, http.StatusOK, plainResponse{PlainText: out.Text, Model: out.Model})
}

func (s *Server) handleTechnical(w http.ResponseWriter, r *http.Request) {
	var req technicalRequest
	if !s.decode(w, r, &req) {
		return
	}
	out, err := s.backend.Load().Features.Technical(r.Context(), service.TechnicalRequest{
		Text:   req.Text,
		Domain: req.Domain,
		Level:  req.TargetLevel,
		Model:  req.Model,
	})
	if err != nil {
		s.fail(w, r, "technical", err)
		return
	}
	writeJSON(w, http.StatusOK, technicalResponse{TechnicalText: out.Text, Model: out.Model})
}

func (s *Server) handleCompanyTone(w http.ResponseWriter, r *http.Request) {
	var req toneRequest
	if !s.decode(w, r, &req) {
		return
	}
	out, err := s.backend.Load().Features.CompanyTone(r.Context(), service.ToneRequest{
		Text:     req.Text,
		Tone:     service.Tone(req.Tone),
		Language: service.Language(req.Language),
		Model:    req.Model,
	})
	if err != nil {
		s.fail(w, r, "company_tone", err)
		return
	}
	writeJSON(w, http.StatusOK, toneResponse{Email: out.Text, Model: out.Model})
}

func (s *Server) handleKeywords(w http.ResponseWriter, r *http.Request) {
	var req keywordsRequest
	if !s.decode(w, r, &req) {
		return
	}
	out, err := s.backend.Load().Features.Keywords(r.Context(), service.KeywordsRequest{
		Text:  req.Text,
		Max:   req.MaxKeywords,
		Model: req.Model,
	})
	if err != nil {
		s.fail(w, r, "keywords", err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// ============================================================================
// IMAGE
// ============================================================================

// handleDescribeImage takes a multipart form: image, detail_level,
// max_size and model.
func (s *Server) handleDescribeImage(w http.ResponseWriter, r *http.Request) {
	b := s.backend.Load()
	limit := b.Config.Limits.MaxImageBytes

	if err := r.ParseMultipartForm(limit + multipartOverhead); err != nil {
		if isTooLarge(err) {
			writeError(w, http.StatusRequestEntityTooLarge, TypeInvalidRequest, "Request body is too large.", nil)
			return
		}
		writeError(w, http.StatusBadRequest, TypeInvalidRequest, "Expected a multipart form with an image file.", nil)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, _, err := r.FormFile("image")
	if err != nil {
		writeError(w, http.StatusBadRequest, TypeInvalidRequest, "Missing image file.", nil)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, limit+1))
	if err != nil {
		s.fail(w, r, "describe_image", err)
		return
	}
	if int64(len(data)) > limit {
		writeError(w, http.StatusRequestEntityTooLarge, TypeInvalidRequest,
			"Image exceeds the maximum size of "+strconv.FormatInt(limit, 10)+" bytes.", nil)
		return
	}

	maxSize := 0
	if v := strings.TrimSpace(r.FormValue("max_size")); v != "" {
		if maxSize, err = strconv.Atoi(v); err != nil {
			writeError(w, http.StatusBadRequest, TypeInvalidRequest, "max_size must be an integer.", nil)
			return
		}
	}

	out, err := b.Features.DescribeImage(r.Context(), service.ImageRequest{
		Image:   data,
		Detail:  service.DetailLevel(r.FormValue("detail_level")),
		MaxSize: maxSize,
		Model:   r.FormValue("model"),
	})
	if err != nil {
		s.fail(w, r, "describe_image", err)
		return
	}
	writeJSON(w, http.StatusOK, imageResponse{Description: out.Text, Model: out.Model})
}

// ============================================================================
// DOCUMENT EXTRACTION
// ============================================================================

func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	b := s.backend.Load()
	if b.Extractor == nil {
		writeError(w, http.StatusServiceUnavailable, TypeFeatureDisabled, "Document extraction is not configured.", nil)
		return
	}
	var req extractRequest
	if !s.decode(w, r, &req) {
		return
	}
	var opts []docextract.ExtractOption
	if req.Redact {
		opts = append(opts, docextract.WithRedaction())
	}
	if req.RedactInput {
		opts = append(opts, docextract.WithInputRedaction())
	}
	out, err := b.Extractor.Extract(r.Context(), req.DocType, req.Text, req.Model, opts...)
	if err != nil {
		s.fail(w, r, "extract", err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// ============================================================================
// EMAIL
// ============================================================================

func (s *Server) handleEmailAnalyze(w http.ResponseWriter, r *http.Request) {
	b := s.backend.Load()
	if b.Email == nil {
		s.fail(w, r, "email", &email.FeatureDisabledError{Feature: "Email intelligence"})
		return
	}
	var req emailRequest
	if !s.decode(w, r, &req) {
		return
	}
	out, err := b.Email.Analyze(r.Context(), req.Text)
	if err != nil {
		s.fail(w, r, "email", err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// ============================================================================
// MODELS / HEALTH
// ============================================================================

func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	b := s.backend.Load()
	resp := ModelsResponse{
		Text:   b.Resolver.Available(router.TaskText),
		Vision: b.Resolver.Available(router.TaskVision),
		Email:  b.Email != nil && b.Email.Enabled(),
	}
	if b.Extractor != nil {
		resp.DocTypes = b.Extractor.Catalogue().Names()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	cfg := s.backend.Load().Config
	health := HealthResponse{
		Status:        "ok",
		Version:       Version,
		UptimeSeconds: int64(time.Since(s.started).Seconds()),
		Ollama:        "disabled",
		Hosted:        "not_configured",
		LocalOnly:     cfg.LocalOnly,
	}
	if cfg.OllamaEnabled() {
		health.Ollama = "enabled"
	}
	if cfg.HostedEnabled() {
		health.Hosted = "configured"
	}
	if !cfg.OllamaEnabled() && !cfg.HostedEnabled() {
		health.Status = "degraded"
	}

	if s.prober != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthProbeTimeout)
		defer cancel()
		if host, err := s.prober.Host(ctx); err == nil {
			health.Host = host
		} else {
			s.logger.Debug("HOST_PROBE_FAILED", zap.Error(err))
		}
	}
	writeJSON(w, http.StatusOK, health)
}

// ============================================================================
// HISTORY / USAGE
// ============================================================================

// handleHistory lists recorded attempts. Query: model, task, failed,
// since (RFC 3339 or a duration such as 24h), limit, offset.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusServiceUnavailable, TypeFeatureDisabled, "History is disabled.", nil)
		return
	}
	q := r.URL.Query()
	f := storage.Filter{
		Model: q.Get("model"),
		Task:  q.Get("task"),
	}
	var err error
	if f.Since, err = storage.ParseSince(q.Get("since")); err != nil {
		writeError(w, http.StatusBadRequest, TypeInvalidRequest, err.Error(), nil)
		return
	}
	if v := q.Get("failed"); v != "" {
		if f.Failed, err = strconv.ParseBool(v); err != nil {
			writeError(w, http.StatusBadRequest, TypeInvalidRequest, "failed must be true or false.", nil)
			return
		}
	}
	for name, dst := range map[string]*int{"limit": &f.Limit, "offset": &f.Offset} {
		if v := q.Get(name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				writeError(w, http.StatusBadRequest, TypeInvalidRequest, name+" must be a non-negative integer.", nil)
				return
			}
			*dst = n
		}
	}

	entries, err := s.history.List(r.Context(), f)
	if err != nil {
		s.fail(w, r, "history", err)
		return
	}
	if entries == nil {
		entries = []storage.Entry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func (s *Server) handleHistoryStats(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusServiceUnavailable, TypeFeatureDisabled, "History is disabled.", nil)
		return
	}
	since, err := storage.ParseSince(r.URL.Query().Get("since"))
	if err != nil {
		writeError(w, http.StatusBadRequest, TypeInvalidRequest, err.Error(), nil)
		return
	}
	stats, err := s.history.Stats(r.Context(), since)
	if err != nil {
		s.fail(w, r, "history", err)
		return
	}
	if stats == nil {
		stats = []storage.ModelStats{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"models": stats})
}

func (s *Server) handleUsage(w http.ResponseWriter, r *http.Request) {
	if s.usage == nil {
		writeError(w, http.StatusServiceUnavailable, TypeFeatureDisabled, "Usage tracking is disabled.", nil)
		return
	}
	writeJSON(w, http.StatusOK, s.usage.Snapshot())
}

// ============================================================================
// HELPERS
// ============================================================================

// decode reads a JSON body into v. It writes the error response and
// returns false on failure.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if isTooLarge(err) {
			writeError(w, http.StatusRequestEntityTooLarge, TypeInvalidRequest, "Request body is too large.", nil)
			return false
		}
		s.logger.Debug("INVALID_BODY", zap.String("path", r.URL.Path), zap.Error(err))
		writeError(w, http.StatusBadRequest, TypeInvalidRequest, "Invalid request format", nil)
		return false
	}
	return true
}

// fail classifies err and writes the envelope.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, feature string, err error) {
	status, body := classify(err)
	body.Code = status

	fields := []zap.Field{
		zap.String("feature", feature),
		zap.Int("status", status),
		zap.String("request_id", RequestID(r.Context())),
		zap.Error(err),
	}
	if status >= http.StatusInternalServerError {
		s.logger.Warn("REQUEST_ERROR", fields...)
	} else {
		s.logger.Debug("REQUEST_REJECTED", fields...)
	}
	writeJSON(w, status, errorEnvelope{Error: body})
}

func isTooLarge(err error) bool {
	var tooLarge *http.MaxBytesError
	return errors.As(err, &tooLarge)
}
