// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config loads the llumdocs configuration.
//
// Values come from, in order of precedence:
//   - environment variables (LLUMDOCS_*, OLLAMA_API_BASE, OPENAI_API_KEY, ...)
//   - ~/.llumdocs/config.toml (or the path given with --config)
//   - built-in defaults
//
// A Config is assembled once and then treated as read-only. Components take
// a *Config at construction or a snapshot from a Store per request; nothing
// reads the environment after startup.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/jeranaias/llumdocs/internal/offline"
	"github.com/jeranaias/llumdocs/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config is the complete llumdocs configuration.
type Config struct {
	// LocalOnly restricts every endpoint to localhost and disables the
	// hosted provider.
	LocalOnly bool `toml:"local_only"`

	Models  ModelsConfig  `toml:"models"`
	Ollama  OllamaConfig  `toml:"ollama"`
	OpenAI  OpenAIConfig  `toml:"openai"`
	Limits  LimitsConfig  `toml:"limits"`
	Email   EmailConfig   `toml:"email"`
	Server  ServerConfig  `toml:"server"`
	Storage StorageConfig `toml:"storage"`
	Logging LoggingConfig `toml:"logging"`
}

// ModelsConfig holds the per-task default model ids. Empty means "use the
// built-in fallback list".
type ModelsConfig struct {
	DefaultModel       string `toml:"default_model"`
	DefaultVisionModel string `toml:"default_vision_model"`
	// ExtractionModel is the hint document extraction uses when the caller
	// names none.
	ExtractionModel string `toml:"extraction_model"`
}

// OllamaConfig configures the local inference provider.
type OllamaConfig struct {
	Disabled bool   `toml:"disabled"`
	APIBase  string `toml:"api_base"`
}

// OpenAIConfig configures the hosted OpenAI-compatible provider.
type OpenAIConfig struct {
	APIKey  string `toml:"api_key"`
	BaseURL string `toml:"base_url"`
}

// LimitsConfig holds timeouts and payload limits.
type LimitsConfig struct {
	LLMTimeoutSeconds    float64 `toml:"llm_timeout_seconds"`
	VisionTimeoutSeconds float64 `toml:"vision_timeout_seconds"`
	MaxImageBytes        int64   `toml:"max_image_bytes"`
	MaxTextChars         int     `toml:"max_text_chars"`
}

// EmailConfig configures the email analysis pipelines.
type EmailConfig struct {
	Enabled        bool   `toml:"enabled"`
	ZeroShotModel  string `toml:"zeroshot_model"`
	PhishingModel  string `toml:"phishing_model"`
	SentimentModel string `toml:"sentiment_model"`

	// Endpoint serves pipelines on the accelerator; CPUEndpoint is the
	// fallback used when the accelerator cannot load a model.
	Endpoint    string `toml:"endpoint"`
	CPUEndpoint string `toml:"cpu_endpoint"`
	Token       string `toml:"token"`

	Labels             []string `toml:"labels"`
	SerializeInference bool     `toml:"serialize_inference"`
	MinGPUFreeMB       int      `toml:"min_gpu_free_mb"`
	TimeoutSeconds     float64  `toml:"timeout_seconds"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Listen             string   `toml:"listen"`
	CORSOrigins        []string `toml:"cors_origins"`
	RateLimitPerMinute int      `toml:"rate_limit_per_minute"`
	MaxBodyBytes       int64    `toml:"max_body_bytes"`
}

// StorageConfig configures the invocation history database.
type StorageConfig struct {
	HistoryDB string `toml:"history_db"`
	Disabled  bool   `toml:"disabled"`
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// =============================================================================
// DEFAULTS
// =============================================================================

const (
	DefaultOllamaBase     = "http://localhost:11434"
	DefaultOpenAIBase     = "https://api.openai.com/v1"
	DefaultEmailEndpoint  = "http://localhost:8080"
	DefaultZeroShotModel  = "MoritzLaurer/bge-m3-zeroshot-v2.0"
	DefaultPhishingModel  = "cybersectony/phishing-email-detection-distilbert_v2.1"
	DefaultSentimentModel = "cardiffnlp/twitter-xlm-roberta-base-sentiment-multilingual"
)

// DefaultEmailLabels are the routing categories used when none are configured.
var DefaultEmailLabels = []string{"support", "billing", "sales", "HR", "IT incident"}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Ollama: OllamaConfig{
			APIBase: DefaultOllamaBase,
		},
		OpenAI: OpenAIConfig{
			BaseURL: DefaultOpenAIBase,
		},
		Limits: LimitsConfig{
			LLMTimeoutSeconds:    30,
			VisionTimeoutSeconds: 120,
			MaxImageBytes:        10 << 20,
			MaxTextChars:         200_000,
		},
		Email: EmailConfig{
			ZeroShotModel:  DefaultZeroShotModel,
			PhishingModel:  DefaultPhishingModel,
			SentimentModel: DefaultSentimentModel,
			Endpoint:       DefaultEmailEndpoint,
			Labels:         append([]string(nil), DefaultEmailLabels...),
			MinGPUFreeMB:   100,
			TimeoutSeconds: 60,
		},
		Server: ServerConfig{
			Listen:             "127.0.0.1:7860",
			CORSOrigins:        []string{"*"},
			RateLimitPerMinute: 120,
			MaxBodyBytes:       25 << 20,
		},
		Storage: StorageConfig{},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// LLMTimeout is the per-call timeout for text tasks.
func (c *Config) LLMTimeout() time.Duration {
	return secondsToDuration(c.Limits.LLMTimeoutSeconds)
}

// VisionTimeout is the per-call timeout for vision tasks.
func (c *Config) VisionTimeout() time.Duration {
	return secondsToDuration(c.Limits.VisionTimeoutSeconds)
}

// EmailTimeout is the per-call timeout for email pipeline inference.
func (c *Config) EmailTimeout() time.Duration {
	return secondsToDuration(c.Email.TimeoutSeconds)
}

// HostedEnabled reports whether the hosted provider may be used.
func (c *Config) HostedEnabled() bool {
	return c.OpenAI.APIKey != "" && !c.LocalOnly
}

// OllamaEnabled reports whether the local provider may be used.
func (c *Config) OllamaEnabled() bool {
	return !c.Ollama.Disabled
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// Clone returns a deep copy.
func (c *Config) Clone() *Config {
	clone := *c
	clone.Email.Labels = append([]string(nil), c.Email.Labels...)
	clone.Server.CORSOrigins = append([]string(nil), c.Server.CORSOrigins...)
	return &clone
}

// =============================================================================
// PATH HELPERS
// =============================================================================

// Dir returns the llumdocs state directory (~/.llumdocs).
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".llumdocs"), nil
}

// DefaultPath returns ~/.llumdocs/config.toml.
func DefaultPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load reads the configuration file at path (DefaultPath when empty), applies
// environment overrides from getenv and validates the result. A missing file
// is not an error.
func Load(path string, getenv func(string) string) (*Config, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	cfg := Default()
	if _, err := os.Stat(path); err == nil {
		if err := LoadTOML(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to stat config %s: %w", path, err)
	}

	return finish(cfg, getenv)
}

// LoadFromPath is Load without the missing-file tolerance.
func LoadFromPath(path string, getenv func(string) string) (*Config, error) {
	cfg := Default()
	if err := LoadTOML(cfg, path); err != nil {
		return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
	}
	return finish(cfg, getenv)
}

// LoadTOML decodes a TOML file over cfg. Keys absent from the file keep
// their current values.
func LoadTOML(cfg *Config, path string) error {
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return fmt.Errorf("unknown config keys: %s", strings.Join(keys, ", "))
	}
	return nil
}

func finish(cfg *Config, getenv func(string) string) (*Config, error) {
	if getenv == nil {
		getenv = os.Getenv
	}
	if err := cfg.ApplyEnvOverrides(getenv); err != nil {
		return nil, fmt.Errorf("invalid environment: %w", err)
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// SetDefaults fills zero values that have no meaningful zero.
func (c *Config) SetDefaults() {
	d := Default()
	if c.Ollama.APIBase == "" {
		c.Ollama.APIBase = d.Ollama.APIBase
	}
	c.Ollama.APIBase = strings.TrimRight(c.Ollama.APIBase, "/")
	if c.OpenAI.BaseURL == "" {
		c.OpenAI.BaseURL = d.OpenAI.BaseURL
	}
	c.OpenAI.BaseURL = strings.TrimRight(c.OpenAI.BaseURL, "/")
	if c.Email.ZeroShotModel == "" {
		c.Email.ZeroShotModel = d.Email.ZeroShotModel
	}
	if c.Email.PhishingModel == "" {
		c.Email.PhishingModel = d.Email.PhishingModel
	}
	if c.Email.SentimentModel == "" {
		c.Email.SentimentModel = d.Email.SentimentModel
	}
	if len(c.Email.Labels) == 0 {
		c.Email.Labels = d.Email.Labels
	}
	if c.Server.Listen == "" {
		c.Server.Listen = d.Server.Listen
	}
	if len(c.Server.CORSOrigins) == 0 {
		c.Server.CORSOrigins = d.Server.CORSOrigins
	}
	if c.Logging.Level == "" {
		c.Logging.Level = d.Logging.Level
	}
	if c.Logging.Format == "" {
		c.Logging.Format = d.Logging.Format
	}
}

// =============================================================================
// SAVE
// =============================================================================

// SaveTOML writes cfg to path with owner-only permissions.
func SaveTOML(cfg *Config, path string) error {
	var b strings.Builder
	b.WriteString("# llumdocs configuration file\n")
	b.WriteString("# Environment variables override values in this file.\n\n")

	if err := toml.NewEncoder(&b).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(path, []byte(b.String()), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError is a single invalid setting.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors collects every invalid setting found in one pass.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}

// Validate checks every field and returns ValidateErrors when any is invalid.
func (c *Config) Validate() error {
	var errs ValidateErrors
	add := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if c.Limits.LLMTimeoutSeconds <= 0 {
		add("limits.llm_timeout_seconds", "must be positive, got %v", c.Limits.LLMTimeoutSeconds)
	}
	if c.Limits.VisionTimeoutSeconds <= 0 {
		add("limits.vision_timeout_seconds", "must be positive, got %v", c.Limits.VisionTimeoutSeconds)
	}
	if c.Limits.MaxImageBytes <= 0 {
		add("limits.max_image_bytes", "must be positive, got %d", c.Limits.MaxImageBytes)
	}
	if c.Limits.MaxTextChars <= 0 {
		add("limits.max_text_chars", "must be positive, got %d", c.Limits.MaxTextChars)
	}

	if !c.Ollama.Disabled {
		if err := offline.ValidateEndpoint(c.Ollama.APIBase, c.LocalOnly); err != nil {
			add("ollama.api_base", "%v", err)
		}
	}
	if !c.LocalOnly {
		if err := offline.ValidateEndpoint(c.OpenAI.BaseURL, false); err != nil {
			add("openai.base_url", "%v", err)
		}
	}
	for _, hint := range []struct{ field, id string }{
		{"models.default_model", c.Models.DefaultModel},
		{"models.default_vision_model", c.Models.DefaultVisionModel},
		{"models.extraction_model", c.Models.ExtractionModel},
	} {
		if strings.ContainsAny(hint.id, " \t\n") || hint.id == "ollama/" {
			add(hint.field, "malformed model id %q", hint.id)
		}
	}
	if strings.HasPrefix(c.Models.ExtractionModel, "ollama/") {
		add("models.extraction_model", "document extraction needs a hosted model, got %q", c.Models.ExtractionModel)
	}

	if c.Email.Enabled {
		if err := offline.ValidateEndpoint(c.Email.Endpoint, c.LocalOnly); err != nil {
			add("email.endpoint", "%v", err)
		}
		if c.Email.CPUEndpoint != "" {
			if err := offline.ValidateEndpoint(c.Email.CPUEndpoint, c.LocalOnly); err != nil {
				add("email.cpu_endpoint", "%v", err)
			}
		}
		if c.Email.TimeoutSeconds <= 0 {
			add("email.timeout_seconds", "must be positive, got %v", c.Email.TimeoutSeconds)
		}
	}
	if c.Email.MinGPUFreeMB < 0 {
		add("email.min_gpu_free_mb", "cannot be negative")
	}

	if c.Server.RateLimitPerMinute < 0 {
		add("server.rate_limit_per_minute", "cannot be negative")
	}
	if c.Server.MaxBodyBytes < 0 {
		add("server.max_body_bytes", "cannot be negative")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		add("logging.level", "must be one of debug, info, warn, error; got %q", c.Logging.Level)
	}
	if f := strings.ToLower(c.Logging.Format); f != "json" && f != "console" {
		add("logging.format", "must be json or console; got %q", c.Logging.Format)
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// String renders the configuration as TOML with the API key masked.
func (c *Config) String() string {
	masked := c.Clone()
	if masked.OpenAI.APIKey != "" {
		masked.OpenAI.APIKey = fmt.Sprintf("[REDACTED, length=%d]", len(c.OpenAI.APIKey))
	}
	if masked.Email.Token != "" {
		masked.Email.Token = "[REDACTED]"
	}
	var b strings.Builder
	if err := toml.NewEncoder(&b).Encode(masked); err != nil {
		return fmt.Sprintf("config: %v", err)
	}
	return b.String()
}
