// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package llm

// Options are per-call generation settings. Nil pointers leave the
// provider default in place.
type Options struct {
	Temperature *float64
	MaxTokens   int
	Seed        *int
	// JSON requests the provider's JSON output mode.
	JSON bool
}

// Option mutates Options.
type Option func(*Options)

// WithTemperature sets the sampling temperature. Zero is sent explicitly.
func WithTemperature(t float64) Option {
	return func(o *Options) { o.Temperature = &t }
}

// WithMaxTokens caps the completion length.
func WithMaxTokens(n int) Option {
	return func(o *Options) { o.MaxTokens = n }
}

// WithSeed fixes the sampling seed.
func WithSeed(seed int) Option {
	return func(o *Options) { o.Seed = &seed }
}

// WithJSON requests JSON output mode.
func WithJSON() Option {
	return func(o *Options) { o.JSON = true }
}

func buildOptions(opts []Option) Options {
	var o Options
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}
