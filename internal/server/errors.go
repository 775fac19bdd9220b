// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/jeranaias/llumdocs/internal/coerce"
	"github.com/jeranaias/llumdocs/internal/docextract"
	"github.com/jeranaias/llumdocs/internal/email"
	"github.com/jeranaias/llumdocs/internal/llm"
	"github.com/jeranaias/llumdocs/internal/router"
	"github.com/jeranaias/llumdocs/internal/service"
	"github.com/jeranaias/llumdocs/internal/util"
)

// ============================================================================
// ERROR ENVELOPE
// ============================================================================

// Error types reported in the envelope.
const (
	TypeInvalidRequest  = "invalid_request_error"
	TypeConfiguration   = "configuration_error"
	TypeProvider        = "provider_error"
	TypeMalformedOutput = "malformed_output_error"
	TypeFeatureDisabled = "feature_disabled_error"
	TypeInternal        = "internal_error"
)

// maxRawDetail bounds the model output echoed back in error details.
const maxRawDetail = 2000

type errorBody struct {
	Message string         `json:"message"`
	Type    string         `json:"type"`
	Code    int            `json:"code"`
	Field   string         `json:"field,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

// classify maps a feature error onto a status code and envelope body.
func classify(err error) (int, errorBody) {
	var (
		noModel   *router.NoModelAvailableError
		badHint   *router.InvalidHintError
		badReq    *llm.InvalidRequestError
		invalid   *service.ValidationError
		unavail   *llm.ProviderUnavailableError
		invoke    *llm.InvocationError
		malformed *coerce.MalformedOutputError
		schema    *coerce.SchemaError
		disabled  *email.FeatureDisabledError
		pipeline  *email.PipelineError
		docType   *docextract.UnknownDocTypeError
	)

	switch {
	case errors.As(err, &invalid):
		return http.StatusBadRequest, errorBody{Message: invalid.Message, Type: TypeInvalidRequest, Field: invalid.Field}
	case errors.As(err, &badHint):
		return http.StatusBadRequest, errorBody{Message: badHint.Error(), Type: TypeInvalidRequest, Field: "model"}
	case errors.As(err, &badReq):
		return http.StatusBadRequest, errorBody{Message: badReq.Error(), Type: TypeInvalidRequest}
	case errors.As(err, &docType):
		return http.StatusBadRequest, errorBody{Message: docType.Error(), Type: TypeInvalidRequest, Field: "doc_type"}
	case errors.As(err, &noModel):
		return http.StatusServiceUnavailable, errorBody{Message: noModel.Error(), Type: TypeConfiguration}
	case errors.As(err, &disabled):
		return http.StatusServiceUnavailable, errorBody{Message: disabled.Error(), Type: TypeFeatureDisabled}
	case errors.As(err, &unavail):
		return http.StatusBadGateway, errorBody{
			Message: "All model providers failed.",
			Type:    TypeProvider,
			Details: map[string]any{"attempts": unavail.Attempts},
		}
	case errors.As(err, &invoke):
		return http.StatusBadGateway, errorBody{
			Message: invoke.Error(),
			Type:    TypeProvider,
			Details: map[string]any{"model": invoke.Model, "class": invoke.Class},
		}
	case errors.As(err, &malformed):
		return http.StatusBadGateway, errorBody{
			Message: "The model answer could not be parsed.",
			Type:    TypeMalformedOutput,
			Details: map[string]any{"raw": util.TruncateRunes(malformed.Raw, maxRawDetail), "attempts": malformed.Attempts},
		}
	case errors.As(err, &schema):
		return http.StatusBadGateway, errorBody{
			Message: "The model answer did not match the expected schema.",
			Type:    TypeMalformedOutput,
			Details: map[string]any{"schema": schema.Schema, "problems": schema.Problems},
		}
	case errors.As(err, &pipeline):
		return http.StatusBadGateway, errorBody{Message: pipeline.Error(), Type: TypeProvider}
	case errors.Is(err, service.ErrNoKeywords):
		return http.StatusBadGateway, errorBody{Message: err.Error(), Type: TypeMalformedOutput}
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, errorBody{Message: "The request timed out.", Type: TypeProvider}
	}
	return http.StatusInternalServerError, errorBody{Message: "Request processing failed. Please try again.", Type: TypeInternal}
}

// ============================================================================
// HELPERS
// ============================================================================

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, typ, message string, details map[string]any) {
	writeJSON(w, status, errorEnvelope{Error: errorBody{
		Message: message,
		Type:    typ,
		Code:    status,
		Details: details,
	}})
}
