// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jeranaias/llumdocs/internal/llm"
)

// recorderBuffer bounds the number of events waiting to be written.
const recorderBuffer = 256

// Recorder is an llm.Observer that writes attempts to a Store on a
// background goroutine. Events arriving while the buffer is full are
// dropped and counted.
type Recorder struct {
	store  *Store
	events chan Entry
	logger *zap.Logger

	done    chan struct{}
	once    sync.Once
	mu      sync.Mutex
	closed  bool
	dropped int
}

// NewRecorder starts a Recorder writing to store.
func NewRecorder(store *Store, logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Recorder{
		store:  store,
		events: make(chan Entry, recorderBuffer),
		logger: logger,
		done:   make(chan struct{}),
	}
	go r.loop()
	return r
}

// Observe implements llm.Observer.
func (r *Recorder) Observe(e llm.Event) {
	entry := Entry{
		CreatedAt:        time.Now().Add(-e.Duration),
		Task:             string(e.Kind),
		Provider:         string(e.Provider),
		Model:            e.Model,
		Attempt:          e.Attempt,
		Success:          e.Success,
		ErrorClass:       string(e.Class),
		LatencyMs:        e.Duration.Milliseconds(),
		PromptTokens:     e.PromptTokens,
		CompletionTokens: e.CompletionTokens,
	}
	if e.Err != nil {
		entry.Error = e.Err.Error()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	select {
	case r.events <- entry:
	default:
		r.dropped++
	}
}

// Dropped returns how many events were discarded on a full buffer.
func (r *Recorder) Dropped() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}

// Close stops accepting events and waits until the buffered ones are
// written.
func (r *Recorder) Close() {
	r.once.Do(func() {
		r.mu.Lock()
		r.closed = true
		close(r.events)
		r.mu.Unlock()
		<-r.done
	})
}

func (r *Recorder) loop() {
	defer close(r.done)
	for e := range r.events {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := r.store.Add(ctx, &e); err != nil {
			r.logger.Warn("HISTORY_WRITE_FAILED", zap.String("model", e.Model), zap.Error(err))
		}
		cancel()
	}
}
