// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package email

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/llumdocs/internal/config"
	"github.com/jeranaias/llumdocs/internal/service"
)

// stubPipeline answers with fixed scores.
type stubPipeline struct {
	kind   PipelineKind
	device Device
	scores []Score
	err    error
	last   Input
}

func (p *stubPipeline) Kind() PipelineKind { return p.kind }
func (p *stubPipeline) Device() Device     { return p.device }
func (p *stubPipeline) Run(_ context.Context, in Input) ([]Score, error) {
	p.last = in
	return append([]Score(nil), p.scores...), p.err
}

type fixedProbe bool

func (f fixedProbe) HasFreeGPUMemory(context.Context, int) bool { return bool(f) }

var testScores = map[PipelineKind][]Score{
	KindZeroShot:  {{"billing", 0.2}, {"support", 0.9}},
	KindPhishing:  {{"LABEL_0", 0.95}, {"LABEL_1", 0.05}},
	KindSentiment: {{"negative", 0.1}, {"positive", 0.7}, {"neutral", 0.2}},
}

func stubLoader(loads *atomic.Int32) LoaderFunc {
	return func(_ context.Context, kind PipelineKind, _ string, device Device) (Pipeline, error) {
		loads.Add(1)
		return &stubPipeline{kind: kind, device: device, scores: testScores[kind]}, nil
	}
}

func enabledConfig() *config.Config {
	cfg := config.Default()
	cfg.Email.Enabled = true
	return cfg
}

// =============================================================================
// REGISTRY
// =============================================================================

func TestRegistry_ConcurrentFirstUseLoadsOnce(t *testing.T) {
	var loads atomic.Int32
	slow := LoaderFunc(func(ctx context.Context, kind PipelineKind, id string, device Device) (Pipeline, error) {
		time.Sleep(20 * time.Millisecond)
		return stubLoader(&loads)(ctx, kind, id, device)
	})
	r := NewRegistry(slow, nil)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := r.Get(context.Background(), KindPhishing)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), loads.Load())
}

func TestRegistry_SlowLoadDoesNotBlockOtherKinds(t *testing.T) {
	var loads atomic.Int32
	release := make(chan struct{})
	started := make(chan struct{})
	loader := LoaderFunc(func(ctx context.Context, kind PipelineKind, id string, device Device) (Pipeline, error) {
		if kind == KindSentiment {
			close(started)
			<-release
		}
		return stubLoader(&loads)(ctx, kind, id, device)
	})
	r := NewRegistry(loader, nil)

	_, err := r.Get(context.Background(), KindZeroShot)
	require.NoError(t, err)

	sentimentDone := make(chan error, 1)
	go func() {
		_, err := r.Get(context.Background(), KindSentiment)
		sentimentDone <- err
	}()
	<-started

	// Both the loaded kind and a kind that still needs loading answer
	// while sentiment is stuck in its loader.
	others := make(chan error, 2)
	go func() {
		_, err := r.Get(context.Background(), KindZeroShot)
		others <- err
	}()
	go func() {
		_, err := r.Get(context.Background(), KindPhishing)
		others <- err
	}()
	for i := 0; i < 2; i++ {
		select {
		case err := <-others:
			require.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Fatal("Get blocked while another kind was loading")
		}
	}
	assert.NotContains(t, r.Loaded(), KindSentiment)

	close(release)
	require.NoError(t, <-sentimentDone)
	assert.Contains(t, r.Loaded(), KindSentiment)
	assert.Equal(t, int32(3), loads.Load())
}

func TestRegistry_WaitingForLoadHonorsContext(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	var loads atomic.Int32
	loader := LoaderFunc(func(ctx context.Context, kind PipelineKind, id string, device Device) (Pipeline, error) {
		close(started)
		<-release
		return stubLoader(&loads)(ctx, kind, id, device)
	})
	r := NewRegistry(loader, nil)

	first := make(chan error, 1)
	go func() {
		_, err := r.Get(context.Background(), KindPhishing)
		first <- err
	}()
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := r.Get(ctx, KindPhishing)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
	require.NoError(t, <-first)
	assert.Equal(t, int32(1), loads.Load())
}

func TestRegistry_DevicePlacement(t *testing.T) {
	var loads atomic.Int32
	r := NewRegistry(stubLoader(&loads), nil, WithGPUProbe(fixedProbe(true), 100))
	p, err := r.Get(context.Background(), KindSentiment)
	require.NoError(t, err)
	assert.Equal(t, DeviceGPU, p.Device())

	r = NewRegistry(stubLoader(&loads), nil, WithGPUProbe(fixedProbe(false), 100))
	p, err = r.Get(context.Background(), KindSentiment)
	require.NoError(t, err)
	assert.Equal(t, DeviceCPU, p.Device())
}

func TestRegistry_GPUFailureFallsBackToCPU(t *testing.T) {
	var events []LoadEvent
	loader := LoaderFunc(func(_ context.Context, kind PipelineKind, _ string, device Device) (Pipeline, error) {
		if device == DeviceGPU {
			return nil, ErrDeviceUnavailable
		}
		return &stubPipeline{kind: kind, device: device}, nil
	})
	r := NewRegistry(loader, nil,
		WithGPUProbe(fixedProbe(true), 100),
		WithLoadHook(func(e LoadEvent) { events = append(events, e) }))

	p, err := r.Get(context.Background(), KindZeroShot)
	require.NoError(t, err)
	assert.Equal(t, DeviceCPU, p.Device())
	require.Len(t, events, 2)
	assert.Equal(t, DeviceGPU, events[0].Device)
	assert.Error(t, events[0].Err)
	assert.NoError(t, events[1].Err)
}

func TestRegistry_LoadFailure(t *testing.T) {
	loader := LoaderFunc(func(context.Context, PipelineKind, string, Device) (Pipeline, error) {
		return nil, errors.New("model missing")
	})
	r := NewRegistry(loader, nil)
	_, err := r.Get(context.Background(), KindPhishing)
	var perr *PipelineError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "load", perr.Op)
	assert.Empty(t, r.Loaded())
}

func TestRegistry_Release(t *testing.T) {
	var loads atomic.Int32
	r := NewRegistry(stubLoader(&loads), nil)
	ctx := context.Background()

	_, err := r.Get(ctx, KindPhishing)
	require.NoError(t, err)
	assert.Equal(t, map[PipelineKind]Device{KindPhishing: DeviceCPU}, r.Loaded())

	r.Release(KindPhishing)
	assert.Empty(t, r.Loaded())
	_, err = r.Get(ctx, KindPhishing)
	require.NoError(t, err)
	assert.Equal(t, int32(2), loads.Load())
}

func TestRegistry_SerializedWrapsPipelines(t *testing.T) {
	var loads atomic.Int32
	r := NewRegistry(stubLoader(&loads), nil, WithSerializedInference(true))
	p, err := r.Get(context.Background(), KindSentiment)
	require.NoError(t, err)
	_, ok := p.(*serialPipeline)
	assert.True(t, ok)
}

// =============================================================================
// LABELS
// =============================================================================

func TestNormalizeLabels(t *testing.T) {
	got, err := NormalizeLabels([]string{" support ", "", "billing", "support", "  "})
	require.NoError(t, err)
	assert.Equal(t, []string{"support", "billing"}, got)

	_, err = NormalizeLabels([]string{" ", ""})
	assert.Error(t, err)
}

func TestPhishingLabel(t *testing.T) {
	tests := map[string]string{
		"LABEL_0":    "safe",
		"LABEL_1":    "phishing",
		"LABEL_3":    "class_3",
		"legitimate": "legitimate",
		"LABEL_x":    "LABEL_x",
	}
	for in, want := range tests {
		assert.Equal(t, want, PhishingLabel(in), in)
	}
}

// =============================================================================
// SERVICE
// =============================================================================

func newTestService(t *testing.T) (*Service, *Registry) {
	t.Helper()
	var loads atomic.Int32
	r := NewRegistry(stubLoader(&loads), nil)
	s, err := NewService(enabledConfig(), r, nil)
	require.NoError(t, err)
	return s, r
}

func TestService_Disabled(t *testing.T) {
	s, err := NewService(config.Default(), NewRegistry(nil, nil), nil)
	require.NoError(t, err)

	_, err = s.Analyze(context.Background(), "hello")
	var disabled *FeatureDisabledError
	assert.ErrorAs(t, err, &disabled)
}

func TestService_EmptyText(t *testing.T) {
	s, _ := newTestService(t)
	_, err := s.Sentiment(context.Background(), "  \n")
	var verr *service.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "text must not be empty.", verr.Message)
}

func TestService_Classify(t *testing.T) {
	s, r := newTestService(t)
	out, err := s.Classify(context.Background(), "My invoice is wrong", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"support", "billing"}, out.Labels)
	assert.Equal(t, []float64{0.9, 0.2}, out.Scores)

	p, err := r.Get(context.Background(), KindZeroShot)
	require.NoError(t, err)
	last := p.(*stubPipeline).last
	assert.Equal(t, config.DefaultEmailLabels, last.Labels)
	assert.Equal(t, DefaultTemplate, last.Template)
	assert.True(t, last.MultiLabel)

	_, err = s.Classify(context.Background(), "x", []string{" "})
	var verr *service.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestService_Analyze(t *testing.T) {
	s, _ := newTestService(t)
	out, err := s.Analyze(context.Background(), "Please reset my password")
	require.NoError(t, err)
	assert.Equal(t, "support", out.Classification.Labels[0])
	assert.Equal(t, "safe", out.Phishing.Label)
	assert.InDelta(t, 0.95, out.Phishing.Score, 1e-9)
	assert.Equal(t, map[string]float64{"safe": 0.95, "phishing": 0.05}, out.Phishing.ScoresByLabel)
	assert.Equal(t, SentimentPrediction{Label: "positive", Score: 0.7}, out.Sentiment)
}

func TestService_InferenceOOMRetriesOnCPU(t *testing.T) {
	loader := LoaderFunc(func(_ context.Context, kind PipelineKind, _ string, device Device) (Pipeline, error) {
		p := &stubPipeline{kind: kind, device: device, scores: testScores[kind]}
		if device == DeviceGPU {
			p.err = ErrDeviceUnavailable
		}
		return p, nil
	})
	r := NewRegistry(loader, nil, WithGPUProbe(fixedProbe(true), 100))
	s, err := NewService(enabledConfig(), r, nil)
	require.NoError(t, err)

	out, err := s.Sentiment(context.Background(), "great")
	require.NoError(t, err)
	assert.Equal(t, "positive", out.Label)
	assert.Equal(t, DeviceCPU, r.Loaded()[KindSentiment])
}

// =============================================================================
// HTTP LOADER
// =============================================================================

func newInferenceServer(t *testing.T, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer hf-test", r.Header.Get("Authorization"))
		switch {
		case strings.HasPrefix(r.URL.Path, "/status/"):
			w.WriteHeader(status)
			if status == http.StatusOK {
				_, _ = w.Write([]byte(`{"loaded":true,"state":"Loaded","compute_type":"gpu"}`))
			} else {
				_, _ = w.Write([]byte(`{"error":"CUDA out of memory"}`))
			}
		case r.URL.Path == "/models/org/zs-model":
			var req inferenceRequest
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "hello", req.Inputs)
			assert.Equal(t, DefaultTemplate, req.Parameters["hypothesis_template"])
			_, _ = w.Write([]byte(`{"sequence":"hello","labels":["sales","HR"],"scores":[0.8,0.1]}`))
		case r.URL.Path == "/models/org/phish":
			_, _ = w.Write([]byte(`[[{"label":"LABEL_1","score":0.7},{"label":"LABEL_0","score":0.3}]]`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestHTTPLoader_LoadAndRun(t *testing.T) {
	srv := newInferenceServer(t, http.StatusOK)
	l := NewHTTPLoader(srv.URL, "", "hf-test", 5*time.Second, nil)
	ctx := context.Background()

	zs, err := l.Load(ctx, KindZeroShot, "org/zs-model", DeviceGPU)
	require.NoError(t, err)
	scores, err := zs.Run(ctx, Input{Text: "hello", Labels: []string{"sales", "HR"}, MultiLabel: true, Template: DefaultTemplate})
	require.NoError(t, err)
	assert.Equal(t, []Score{{"sales", 0.8}, {"HR", 0.1}}, scores)

	ph, err := l.Load(ctx, KindPhishing, "org/phish", DeviceCPU)
	require.NoError(t, err)
	scores, err = ph.Run(ctx, Input{Text: "click here"})
	require.NoError(t, err)
	assert.Equal(t, "LABEL_1", scores[0].Label)
}

func TestHTTPLoader_OutOfMemoryIsDeviceUnavailable(t *testing.T) {
	srv := newInferenceServer(t, http.StatusInternalServerError)
	l := NewHTTPLoader(srv.URL, "", "hf-test", 5*time.Second, nil)
	_, err := l.Load(context.Background(), KindSentiment, "org/sent", DeviceGPU)
	assert.True(t, IsDeviceUnavailable(err))
}

func TestDecodeScores(t *testing.T) {
	flat, err := decodeScores([]byte(`[{"label":"positive","score":0.6}]`))
	require.NoError(t, err)
	assert.Equal(t, []Score{{"positive", 0.6}}, flat)

	_, err = decodeScores([]byte(`{"labels":["a","b"],"scores":[1]}`))
	assert.ErrorIs(t, err, ErrUnexpectedResponse)

	_, err = decodeScores([]byte(`"nope"`))
	assert.ErrorIs(t, err, ErrUnexpectedResponse)
}
