// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package llm

import (
	"time"

	"github.com/jeranaias/llumdocs/internal/model"
	"github.com/jeranaias/llumdocs/internal/router"
)

// Event describes one provider attempt.
type Event struct {
	Kind     router.TaskKind
	Model    string
	Provider model.Provider
	// Attempt is 1-based within one Invoke call.
	Attempt  int
	Success  bool
	Class    ErrorClass
	Err      error
	Duration time.Duration

	PromptTokens     int
	CompletionTokens int
}

// Observer receives attempt events. Observe must not block for long; it
// runs on the invoking goroutine.
type Observer interface {
	Observe(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

// Observe calls f.
func (f ObserverFunc) Observe(e Event) { f(e) }
