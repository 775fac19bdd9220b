// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"strconv"
	"strings"
)

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides to the config.
// getenv is usually os.Getenv; tests pass a map lookup.
//
// Supported environment variables:
//   - LLUMDOCS_DEFAULT_MODEL, LLUMDOCS_DEFAULT_VISION_MODEL
//   - LLUMDOCS_DISABLE_OLLAMA: "1" disables the local provider
//   - OLLAMA_API_BASE
//   - OPENAI_API_KEY, OPENAI_BASE_URL
//   - LLUMDOCS_LLM_TIMEOUT_SECONDS, LLUMDOCS_VISION_TIMEOUT_SECONDS
//   - LLUMDOCS_MAX_IMAGE_BYTES
//   - LLUMDOCS_LOCAL_ONLY
//   - LLUMDOCS_ENABLE_EMAIL, LLUMDOCS_EMAIL_ZEROSHOT_MODEL,
//     LLUMDOCS_EMAIL_PHISHING_MODEL, LLUMDOCS_EMAIL_SENTIMENT_MODEL,
//     LLUMDOCS_EMAIL_ENDPOINT, LLUMDOCS_EMAIL_CPU_ENDPOINT, HF_TOKEN
//   - LLUMDOCS_CORS_ORIGINS (comma separated), LLUMDOCS_LISTEN
//   - LLUMDOCS_HISTORY_DB, LLUMDOCS_LOG_LEVEL, LLUMDOCS_LOG_FORMAT
//
// Malformed numeric values are reported together as ValidateErrors.
func (c *Config) ApplyEnvOverrides(getenv func(string) string) error {
	var errs ValidateErrors

	setString := func(key string, dst *string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	setBool := func(key string, dst *bool) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = parseBool(v)
		}
	}
	setFloat := func(key string, dst *float64) {
		v := strings.TrimSpace(getenv(key))
		if v == "" {
			return
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, ValidationError{Field: key, Message: "not a number: " + v})
			return
		}
		*dst = f
	}
	setInt64 := func(key string, dst *int64) {
		v := strings.TrimSpace(getenv(key))
		if v == "" {
			return
		}
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			errs = append(errs, ValidationError{Field: key, Message: "not an integer: " + v})
			return
		}
		*dst = n
	}
	setList := func(key string, dst *[]string) {
		v := strings.TrimSpace(getenv(key))
		if v == "" {
			return
		}
		var out []string
		for _, part := range strings.Split(v, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
		if len(out) > 0 {
			*dst = out
		}
	}

	setString("LLUMDOCS_DEFAULT_MODEL", &c.Models.DefaultModel)
	setString("LLUMDOCS_DEFAULT_VISION_MODEL", &c.Models.DefaultVisionModel)
	setString("LLUMDOCS_EXTRACTION_MODEL", &c.Models.ExtractionModel)

	// Only the literal "1" disables Ollama, matching the documented switch.
	if v := strings.TrimSpace(getenv("LLUMDOCS_DISABLE_OLLAMA")); v != "" {
		c.Ollama.Disabled = v == "1"
	}
	setString("OLLAMA_API_BASE", &c.Ollama.APIBase)

	setString("OPENAI_API_KEY", &c.OpenAI.APIKey)
	setString("OPENAI_BASE_URL", &c.OpenAI.BaseURL)

	setFloat("LLUMDOCS_LLM_TIMEOUT_SECONDS", &c.Limits.LLMTimeoutSeconds)
	setFloat("LLUMDOCS_VISION_TIMEOUT_SECONDS", &c.Limits.VisionTimeoutSeconds)
	setInt64("LLUMDOCS_MAX_IMAGE_BYTES", &c.Limits.MaxImageBytes)

	setBool("LLUMDOCS_LOCAL_ONLY", &c.LocalOnly)

	setBool("LLUMDOCS_ENABLE_EMAIL", &c.Email.Enabled)
	setString("LLUMDOCS_EMAIL_ZEROSHOT_MODEL", &c.Email.ZeroShotModel)
	setString("LLUMDOCS_EMAIL_PHISHING_MODEL", &c.Email.PhishingModel)
	setString("LLUMDOCS_EMAIL_SENTIMENT_MODEL", &c.Email.SentimentModel)
	setString("LLUMDOCS_EMAIL_ENDPOINT", &c.Email.Endpoint)
	setString("LLUMDOCS_EMAIL_CPU_ENDPOINT", &c.Email.CPUEndpoint)
	setString("HF_TOKEN", &c.Email.Token)

	setList("LLUMDOCS_CORS_ORIGINS", &c.Server.CORSOrigins)
	setString("LLUMDOCS_LISTEN", &c.Server.Listen)

	setString("LLUMDOCS_HISTORY_DB", &c.Storage.HistoryDB)
	setString("LLUMDOCS_LOG_LEVEL", &c.Logging.Level)
	setString("LLUMDOCS_LOG_FORMAT", &c.Logging.Format)

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func parseBool(v string) bool {
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
