// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package email

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jeranaias/llumdocs/internal/util"
)

// maxResponseSize caps inference response bodies.
const maxResponseSize = 4 << 20

// HTTPLoader loads pipelines from inference servers speaking the Hugging
// Face inference protocol: GET /status/{model} to check a model is served
// and POST /models/{model} to run it.
type HTTPLoader struct {
	endpoints  map[Device]string
	token      string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewHTTPLoader creates a loader. cpuEndpoint may be empty, in which case
// CPU loads go to endpoint as well.
func NewHTTPLoader(endpoint, cpuEndpoint, token string, timeout time.Duration, logger *zap.Logger) *HTTPLoader {
	if cpuEndpoint == "" {
		cpuEndpoint = endpoint
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPLoader{
		endpoints: map[Device]string{
			DeviceGPU: strings.TrimSuffix(endpoint, "/"),
			DeviceCPU: strings.TrimSuffix(cpuEndpoint, "/"),
		},
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

type modelStatus struct {
	Loaded      bool   `json:"loaded"`
	State       string `json:"state"`
	ComputeType string `json:"compute_type"`
	Error       string `json:"error"`
}

// Load checks the model is served on the device's endpoint and returns a
// pipeline bound to it.
func (l *HTTPLoader) Load(ctx context.Context, kind PipelineKind, modelID string, device Device) (Pipeline, error) {
	base, ok := l.endpoints[device]
	if !ok || base == "" {
		return nil, fmt.Errorf("no endpoint configured for %s", device)
	}
	p := &httpPipeline{
		kind:    kind,
		device:  device,
		modelID: modelID,
		url:     base + "/models/" + modelPath(modelID),
		loader:  l,
	}
	body, err := l.do(ctx, http.MethodGet, base+"/status/"+modelPath(modelID), nil)
	if err != nil {
		return nil, err
	}
	var st modelStatus
	if err := json.Unmarshal(body, &st); err != nil {
		return nil, fmt.Errorf("%w: status: %v", ErrUnexpectedResponse, err)
	}
	if st.Error != "" || strings.EqualFold(st.State, "error") {
		return nil, classifyMessage(fmt.Errorf("model %s failed to load: %s", modelID, st.Error))
	}
	l.logger.Info("PIPELINE_READY",
		zap.String("kind", string(kind)),
		zap.String("model", modelID),
		zap.String("device", string(device)),
		zap.String("state", st.State))
	return p, nil
}

// modelPath escapes each segment of an "org/name" model id.
func modelPath(id string) string {
	parts := strings.Split(id, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}

func (l *HTTPLoader) do(ctx context.Context, method, target string, payload []byte) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if l.token != "" {
		req.Header.Set("Authorization", "Bearer "+l.token)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := l.httpClient.Do(req)
	if err != nil {
		var netErr net.Error
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
			return nil, fmt.Errorf("inference timed out: %w", err)
		}
		return nil, fmt.Errorf("inference server unreachable: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if len(body) > maxResponseSize {
		return nil, fmt.Errorf("%w: body exceeds %d bytes", ErrUnexpectedResponse, maxResponseSize)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, statusError(resp.StatusCode, body)
	}
	return body, nil
}

// statusError maps an error status to an error. 507 and out-of-memory
// messages mean the device is exhausted.
func statusError(status int, body []byte) error {
	msg := strings.TrimSpace(string(body))
	var parsed struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Error != "" {
		msg = parsed.Error
	}
	if msg == "" {
		msg = http.StatusText(status)
	}
	err := fmt.Errorf("inference server returned %d: %s", status, msg)
	if status == http.StatusInsufficientStorage {
		return fmt.Errorf("%w: %w", ErrDeviceUnavailable, err)
	}
	return classifyMessage(err)
}

func classifyMessage(err error) error {
	lower := strings.ToLower(err.Error())
	if strings.Contains(lower, "out of memory") || strings.Contains(lower, "cuda") {
		return fmt.Errorf("%w: %w", ErrDeviceUnavailable, err)
	}
	return err
}

// =============================================================================
// PIPELINE
// =============================================================================

type httpPipeline struct {
	kind    PipelineKind
	device  Device
	modelID string
	url     string
	loader  *HTTPLoader
}

func (p *httpPipeline) Kind() PipelineKind { return p.kind }
func (p *httpPipeline) Device() Device     { return p.device }

type inferenceRequest struct {
	Inputs     string         `json:"inputs"`
	Parameters map[string]any `json:"parameters,omitempty"`
	Options    map[string]any `json:"options,omitempty"`
}

func (p *httpPipeline) Run(ctx context.Context, in Input) ([]Score, error) {
	req := inferenceRequest{
		Inputs:  in.Text,
		Options: map[string]any{"wait_for_model": true},
	}
	switch p.kind {
	case KindZeroShot:
		req.Parameters = map[string]any{
			"candidate_labels":    in.Labels,
			"multi_label":         in.MultiLabel,
			"hypothesis_template": in.Template,
		}
	case KindPhishing:
		req.Parameters = map[string]any{"top_k": nil}
	}
	payload, err := json.Marshal(&req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	body, err := p.loader.do(ctx, http.MethodPost, p.url, payload)
	if err != nil {
		return nil, err
	}
	return decodeScores(body)
}

// decodeScores reads the shapes servers return: a zero-shot object with
// parallel labels and scores, a flat list of label/score pairs, or a list
// holding one such list per input.
func decodeScores(body []byte) ([]Score, error) {
	var zs struct {
		Labels []string  `json:"labels"`
		Scores []float64 `json:"scores"`
	}
	if json.Unmarshal(body, &zs) == nil && len(zs.Labels) > 0 {
		if len(zs.Labels) != len(zs.Scores) {
			return nil, fmt.Errorf("%w: %d labels but %d scores", ErrUnexpectedResponse, len(zs.Labels), len(zs.Scores))
		}
		out := make([]Score, len(zs.Labels))
		for i := range zs.Labels {
			out[i] = Score{Label: zs.Labels[i], Score: zs.Scores[i]}
		}
		return out, nil
	}
	var nested [][]Score
	if json.Unmarshal(body, &nested) == nil && len(nested) > 0 && len(nested[0]) > 0 {
		return nested[0], nil
	}
	var flat []Score
	if json.Unmarshal(body, &flat) == nil && len(flat) > 0 {
		return flat, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnexpectedResponse, util.TruncateRunes(string(body), 200))
}

