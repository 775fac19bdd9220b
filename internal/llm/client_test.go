// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/llumdocs/internal/config"
	"github.com/jeranaias/llumdocs/internal/model"
	"github.com/jeranaias/llumdocs/internal/router"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

// scripted answers each model id with a fixed response and records calls.
type scripted struct {
	mu        sync.Mutex
	responses map[string]ProviderResponse
	calls     []Request
}

func (s *scripted) Chat(_ context.Context, req Request) ProviderResponse {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, req)
	if r, ok := s.responses[req.Model.ID]; ok {
		return r
	}
	return &TextResponse{Text: "ok from " + req.Model.ID, Model: req.Model.ID}
}

func (s *scripted) called() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, c := range s.calls {
		out = append(out, c.Model.ID)
	}
	return out
}

func newScriptedClient(cfg *config.Config, responses map[string]ProviderResponse, opts ...ClientOption) (*Client, *scripted) {
	s := &scripted{responses: responses}
	opts = append(opts,
		WithProvider(model.ProviderOllama, s),
		WithProvider(model.ProviderOpenAI, s))
	return New(cfg, opts...), s
}

func bothProviders() *config.Config {
	cfg := config.Default()
	cfg.OpenAI.APIKey = "sk-test"
	return cfg
}

func textConv() model.Conversation {
	return model.Conversation{model.System("be brief"), model.User("hello")}
}

// =============================================================================
// FALLBACK
// =============================================================================

func TestInvoke_FirstCandidateAnswers(t *testing.T) {
	client, s := newScriptedClient(bothProviders(), nil)

	res, err := client.Invoke(context.Background(), textConv(), router.TaskText, "")
	require.NoError(t, err)
	assert.Equal(t, "ollama/llama3.1:8b", res.Model)
	assert.Equal(t, model.ProviderOllama, res.Provider)
	assert.Equal(t, []string{"ollama/llama3.1:8b"}, s.called())
	assert.Empty(t, res.Attempts)
}

func TestInvoke_TransientFailuresFallThrough(t *testing.T) {
	client, s := newScriptedClient(bothProviders(), map[string]ProviderResponse{
		"ollama/llama3.1:8b": &ErrorResponse{Class: ClassConnection, Err: errors.New("connection refused")},
		"gpt-4o-mini":        &ErrorResponse{Class: ClassRateLimited, Status: 429, Err: errors.New("slow down")},
	})

	res, err := client.Invoke(context.Background(), textConv(), router.TaskText, "")
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", res.Model)
	assert.Equal(t, []string{"ollama/llama3.1:8b", "gpt-4o-mini", "gpt-4o"}, s.called())
	require.Len(t, res.Attempts, 2)
	assert.Equal(t, ClassConnection, res.Attempts[0].Class)
}

func TestInvoke_NonRetryableStops(t *testing.T) {
	for _, class := range []ErrorClass{ClassBadRequest, ClassAuth, ClassUnknown} {
		t.Run(string(class), func(t *testing.T) {
			client, s := newScriptedClient(bothProviders(), map[string]ProviderResponse{
				"ollama/llama3.1:8b": &ErrorResponse{Class: class, Err: errors.New("nope")},
			})
			_, err := client.Invoke(context.Background(), textConv(), router.TaskText, "")

			var invErr *InvocationError
			require.ErrorAs(t, err, &invErr)
			assert.Equal(t, class, invErr.Class)
			assert.Equal(t, []string{"ollama/llama3.1:8b"}, s.called())
		})
	}
}

func TestInvoke_AllFail(t *testing.T) {
	cfg := config.Default()
	client, _ := newScriptedClient(cfg, map[string]ProviderResponse{
		"ollama/llama3.1:8b": &ErrorResponse{Class: ClassTimeout, Err: errors.New("deadline")},
	})

	_, err := client.Invoke(context.Background(), textConv(), router.TaskText, "")
	var unavailable *ProviderUnavailableError
	require.ErrorAs(t, err, &unavailable)
	require.Len(t, unavailable.Attempts, 1)
	assert.Equal(t, "ollama/llama3.1:8b", unavailable.Attempts[0].Model)
	assert.Contains(t, err.Error(), "deadline")
}

func TestInvoke_NoProviders(t *testing.T) {
	cfg := config.Default()
	cfg.Ollama.Disabled = true
	client, s := newScriptedClient(cfg, nil)

	_, err := client.Invoke(context.Background(), textConv(), router.TaskText, "")
	assert.ErrorIs(t, err, router.ErrNoModelAvailable)
	assert.Empty(t, s.called())
}

func TestInvoke_HintIsOnlyCandidate(t *testing.T) {
	client, s := newScriptedClient(bothProviders(), map[string]ProviderResponse{
		"gpt-4o": &ErrorResponse{Class: ClassServerError, Status: 500, Err: errors.New("boom")},
	})

	_, err := client.Invoke(context.Background(), textConv(), router.TaskText, "gpt-4o")
	var unavailable *ProviderUnavailableError
	require.ErrorAs(t, err, &unavailable)
	assert.Equal(t, []string{"gpt-4o"}, s.called())
}

func TestInvoke_OptionsReachProvider(t *testing.T) {
	client, s := newScriptedClient(bothProviders(), nil)

	_, err := client.Invoke(context.Background(), textConv(), router.TaskText, "gpt-4o-mini",
		WithTemperature(0), WithMaxTokens(2000), WithSeed(7), WithJSON())
	require.NoError(t, err)

	o := s.calls[0].Options
	require.NotNil(t, o.Temperature)
	assert.Equal(t, 0.0, *o.Temperature)
	assert.Equal(t, 2000, o.MaxTokens)
	require.NotNil(t, o.Seed)
	assert.Equal(t, 7, *o.Seed)
	assert.True(t, o.JSON)
}

func TestInvoke_ObserverSeesEveryAttempt(t *testing.T) {
	var events []Event
	client, _ := newScriptedClient(bothProviders(), map[string]ProviderResponse{
		"ollama/llama3.1:8b": &ErrorResponse{Class: ClassNotFound, Status: 404, Err: errors.New("pull it first")},
	}, WithObserver(ObserverFunc(func(e Event) { events = append(events, e) })))

	_, err := client.Invoke(context.Background(), textConv(), router.TaskText, "")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.False(t, events[0].Success)
	assert.Equal(t, ClassNotFound, events[0].Class)
	assert.True(t, events[1].Success)
	assert.Equal(t, 2, events[1].Attempt)
}

func TestInvoke_CancelledContext(t *testing.T) {
	client, s := newScriptedClient(bothProviders(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Invoke(ctx, textConv(), router.TaskText, "")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, s.called())
}

func TestInvoke_PerAttemptTimeout(t *testing.T) {
	cfg := config.Default()
	cfg.Limits.LLMTimeoutSeconds = 0.05
	slow := ProviderFunc(func(ctx context.Context, req Request) ProviderResponse {
		<-ctx.Done()
		return &ErrorResponse{Class: ClassTimeout, Err: ctx.Err()}
	})
	client := New(cfg, WithProvider(model.ProviderOllama, slow))

	start := time.Now()
	_, err := client.Invoke(context.Background(), textConv(), router.TaskText, "")
	var unavailable *ProviderUnavailableError
	require.ErrorAs(t, err, &unavailable)
	assert.Less(t, time.Since(start), 2*time.Second)
}

// =============================================================================
// VALIDATION
// =============================================================================

func TestInvoke_RejectsBadRequests(t *testing.T) {
	cfg := bothProviders()
	cfg.Limits.MaxImageBytes = 64
	client, s := newScriptedClient(cfg, nil)
	ctx := context.Background()

	tests := []struct {
		name string
		conv model.Conversation
		kind router.TaskKind
	}{
		{"empty conversation", nil, router.TaskText},
		{"image on text task", model.Conversation{model.UserWithImage("x", pngHeader)}, router.TaskText},
		{"vision without image", textConv(), router.TaskVision},
		{"two images", model.Conversation{model.UserWithImage("a", pngHeader), model.UserWithImage("b", pngHeader)}, router.TaskVision},
		{"empty image", model.Conversation{model.UserWithImage("x", nil)}, router.TaskVision},
		{"oversized image", model.Conversation{model.UserWithImage("x", append(pngHeader, make([]byte, 100)...))}, router.TaskVision},
		{"not an image", model.Conversation{model.UserWithImage("x", []byte("%PDF-1.7 hello"))}, router.TaskVision},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := client.Invoke(ctx, tt.conv, tt.kind, "")
			var invalid *InvalidRequestError
			assert.ErrorAs(t, err, &invalid)
		})
	}
	assert.Empty(t, s.called())
}

func TestInvokeResolved(t *testing.T) {
	gpt4o := router.ResolvedModel{ID: "gpt-4o", Provider: model.ProviderOpenAI}

	t.Run("answer", func(t *testing.T) {
		client, s := newScriptedClient(bothProviders(), nil)
		res, err := client.InvokeResolved(context.Background(), textConv(), gpt4o)
		require.NoError(t, err)
		assert.Equal(t, "ok from gpt-4o", res.Text)
		assert.Equal(t, model.ProviderOpenAI, res.Provider)
		assert.Empty(t, res.Attempts)
		assert.Equal(t, []string{"gpt-4o"}, s.called())
	})

	t.Run("transient", func(t *testing.T) {
		client, s := newScriptedClient(bothProviders(), map[string]ProviderResponse{
			"gpt-4o": &ErrorResponse{Class: ClassTimeout, Err: errors.New("deadline")},
		})
		_, err := client.InvokeResolved(context.Background(), textConv(), gpt4o)
		var unavailable *ProviderUnavailableError
		require.ErrorAs(t, err, &unavailable)
		require.Len(t, unavailable.Attempts, 1)
		assert.Equal(t, "gpt-4o", unavailable.Attempts[0].Model)
		assert.Equal(t, ClassTimeout, unavailable.Attempts[0].Class)
		assert.Equal(t, []string{"gpt-4o"}, s.called(), "one call, no fallback")
	})

	t.Run("fatal", func(t *testing.T) {
		client, _ := newScriptedClient(bothProviders(), map[string]ProviderResponse{
			"gpt-4o": &ErrorResponse{Class: ClassAuth, Status: 401, Err: errors.New("bad key")},
		})
		_, err := client.InvokeResolved(context.Background(), textConv(), gpt4o)
		var invErr *InvocationError
		require.ErrorAs(t, err, &invErr)
		assert.Equal(t, ClassAuth, invErr.Class)
		assert.Equal(t, 401, invErr.Status)
	})

	t.Run("invalid conversation", func(t *testing.T) {
		client, s := newScriptedClient(bothProviders(), nil)
		_, err := client.InvokeResolved(context.Background(), model.Conversation{}, gpt4o)
		var reqErr *InvalidRequestError
		require.ErrorAs(t, err, &reqErr)
		assert.Empty(t, s.called())
	})
}

func TestInvoke_TypedNilResponses(t *testing.T) {
	for name, resp := range map[string]ProviderResponse{
		"text":  (*TextResponse)(nil),
		"error": (*ErrorResponse)(nil),
		"nil":   nil,
	} {
		t.Run(name, func(t *testing.T) {
			client := New(bothProviders(),
				WithProvider(model.ProviderOllama, ProviderFunc(func(context.Context, Request) ProviderResponse {
					return resp
				})))

			var res Result
			var err error
			require.NotPanics(t, func() {
				res, err = client.Invoke(context.Background(), textConv(), router.TaskText, "")
			})
			var invErr *InvocationError
			require.ErrorAs(t, err, &invErr)
			assert.Equal(t, ClassUnknown, invErr.Class)
			assert.Contains(t, err.Error(), "returned no response")
			assert.Empty(t, res.Text)
		})
	}
}

func TestSniffImage(t *testing.T) {
	tests := map[string][]byte{
		"image/png":  pngHeader,
		"image/jpeg": {0xFF, 0xD8, 0xFF, 0xE0, 0, 0x10, 'J', 'F', 'I', 'F'},
		"image/gif":  []byte("GIF89a\x01\x00\x01\x00"),
		"image/webp": []byte("RIFF\x24\x00\x00\x00WEBPVP8 "),
	}
	for want, data := range tests {
		got, err := SniffImage(data)
		require.NoError(t, err, want)
		assert.Equal(t, want, got)
	}
	_, err := SniffImage([]byte("plain text"))
	assert.Error(t, err)
}

// =============================================================================
// ADAPTERS OVER HTTP
// =============================================================================

func TestOllamaAdapter_WireFormat(t *testing.T) {
	var body map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		json.NewDecoder(r.Body).Decode(&body)
		io.WriteString(w, `{"model":"qwen3-vl:8b","message":{"role":"assistant","content":" a red square "},"done":true}`)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Ollama.APIBase = server.URL
	client := New(cfg)

	res, err := client.Invoke(context.Background(),
		model.Conversation{model.UserWithImage("describe", pngHeader)}, router.TaskVision, "", WithTemperature(0))
	require.NoError(t, err)
	assert.Equal(t, "a red square", res.Text)

	assert.Equal(t, "qwen3-vl:8b", body["model"])
	assert.EqualValues(t, 0, body["keep_alive"])
	msg := body["messages"].([]any)[0].(map[string]any)
	images := msg["images"].([]any)
	require.Len(t, images, 1)
	assert.False(t, strings.HasPrefix(images[0].(string), "data:"), "ollama takes raw base64")
	assert.EqualValues(t, 0, body["options"].(map[string]any)["temperature"])
}

func TestOpenAIAdapter_DataURLAndFallback(t *testing.T) {
	var gotModels []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		var req map[string]any
		json.Unmarshal(raw, &req)
		gotModels = append(gotModels, req["model"].(string))

		if req["model"] == "o4-mini" {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		assert.True(t, bytes.Contains(raw, []byte(`"url":"data:image/png;base64,`)))
		io.WriteString(w, `{"choices":[{"message":{"role":"assistant","content":"a chart"}}]}`)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Ollama.Disabled = true
	cfg.OpenAI.APIKey = "sk-test"
	cfg.OpenAI.BaseURL = server.URL

	res, err := New(cfg).Invoke(context.Background(),
		model.Conversation{model.UserWithImage("describe", pngHeader)}, router.TaskVision, "")
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", res.Model)
	assert.Equal(t, []string{"o4-mini", "gpt-4o"}, gotModels)
	require.Len(t, res.Attempts, 1)
	assert.Equal(t, ClassServerError, res.Attempts[0].Class)
}

func TestOpenAIAdapter_EmptyTextIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"choices":[{"message":{"role":"assistant","content":"   "}}]}`)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Ollama.Disabled = true
	cfg.OpenAI.APIKey = "sk-test"
	cfg.OpenAI.BaseURL = server.URL

	_, err := New(cfg).Invoke(context.Background(), textConv(), router.TaskText, "")
	var unavailable *ProviderUnavailableError
	require.ErrorAs(t, err, &unavailable)
	assert.Len(t, unavailable.Attempts, 3)
}

func TestOpenAIAdapter_AuthStops(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `{"error":{"message":"Incorrect API key provided"}}`)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Ollama.Disabled = true
	cfg.OpenAI.APIKey = "sk-bad"
	cfg.OpenAI.BaseURL = server.URL

	_, err := New(cfg).Invoke(context.Background(), textConv(), router.TaskText, "")
	var invErr *InvocationError
	require.ErrorAs(t, err, &invErr)
	assert.Equal(t, ClassAuth, invErr.Class)
	assert.Equal(t, 401, invErr.Status)
	assert.Equal(t, 1, calls)
}
