// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/jeranaias/llumdocs/internal/coerce"
	"github.com/jeranaias/llumdocs/internal/docextract"
	"github.com/jeranaias/llumdocs/internal/email"
	"github.com/jeranaias/llumdocs/internal/llm"
	"github.com/jeranaias/llumdocs/internal/router"
	"github.com/jeranaias/llumdocs/internal/service"
)

// =============================================================================
// EXIT CODES
// =============================================================================

const (
	ExitSuccess = 0
	// ExitGeneralError is any failure without a more specific code.
	ExitGeneralError = 1
	// ExitUsageError is bad flags, arguments or input.
	ExitUsageError = 2
	// ExitConfigError means no provider is configured or the config is bad.
	ExitConfigError = 3
	// ExitProviderError means every model provider failed.
	ExitProviderError = 5
	// ExitOutputError means the model answer could not be used.
	ExitOutputError = 6
	ExitTimeoutError = 8
)

// UsageError is returned for bad command-line input.
type UsageError struct {
	Reason string
}

func (e *UsageError) Error() string {
	return e.Reason
}

func usageErrorf(format string, args ...any) error {
	return &UsageError{Reason: fmt.Sprintf(format, args...)}
}

// =============================================================================
// CLASSIFICATION
// =============================================================================

// GetExitCode maps an error onto an exit code.
func GetExitCode(err error) int {
	switch errorType(err) {
	case "":
		return ExitSuccess
	case "usage_error", "validation_error":
		return ExitUsageError
	case "configuration_error", "feature_disabled":
		return ExitConfigError
	case "provider_error":
		return ExitProviderError
	case "malformed_output":
		return ExitOutputError
	case "timeout":
		return ExitTimeoutError
	}
	return ExitGeneralError
}

func errorType(err error) string {
	if err == nil {
		return ""
	}
	var (
		usage     *UsageError
		invalid   *service.ValidationError
		badHint   *router.InvalidHintError
		badReq    *llm.InvalidRequestError
		docType   *docextract.UnknownDocTypeError
		noModel   *router.NoModelAvailableError
		disabled  *email.FeatureDisabledError
		unavail   *llm.ProviderUnavailableError
		invoke    *llm.InvocationError
		pipeline  *email.PipelineError
		malformed *coerce.MalformedOutputError
		schema    *coerce.SchemaError
	)
	switch {
	case errors.As(err, &usage):
		return "usage_error"
	case errors.As(err, &invalid), errors.As(err, &badHint), errors.As(err, &badReq), errors.As(err, &docType):
		return "validation_error"
	case errors.As(err, &noModel):
		return "configuration_error"
	case errors.As(err, &disabled):
		return "feature_disabled"
	case errors.As(err, &unavail), errors.As(err, &invoke), errors.As(err, &pipeline):
		return "provider_error"
	case errors.As(err, &malformed), errors.As(err, &schema), errors.Is(err, service.ErrNoKeywords):
		return "malformed_output"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	}
	return "error"
}

// =============================================================================
// DISPLAY
// =============================================================================

// DisplayError prints err as JSON or as a styled line. Provider failures
// list every attempt.
func DisplayError(w io.Writer, command string, err error, jsonMode bool) {
	if err == nil {
		return
	}
	if jsonMode {
		_ = NewJSONErrorResponse(command, err).Write(w)
		return
	}

	var unavail *llm.ProviderUnavailableError
	if errors.As(err, &unavail) && len(unavail.Attempts) > 0 {
		fmt.Fprintf(w, "%s all providers failed\n", ErrorStyle.Render("[ERROR]"))
		for _, a := range unavail.Attempts {
			fmt.Fprintf(w, "  %s %s\n", DimStyle.Render(a.Model+" ("+string(a.Class)+"):"), a.Reason)
		}
		return
	}
	fmt.Fprintf(w, "%s %s\n", ErrorStyle.Render("[ERROR]"), err.Error())
}
