// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package llm

import (
	"fmt"
	"strings"
)

// =============================================================================
// ERROR CLASSES
// =============================================================================

// ErrorClass categorizes a failed provider call.
type ErrorClass string

const (
	ClassTimeout     ErrorClass = "timeout"
	ClassConnection  ErrorClass = "connection"
	ClassRateLimited ErrorClass = "rate_limited"
	ClassServerError ErrorClass = "server_error"
	ClassBadRequest  ErrorClass = "bad_request"
	ClassAuth        ErrorClass = "auth"
	ClassNotFound    ErrorClass = "not_found"
	ClassUnknown     ErrorClass = "unknown"
)

// Transient reports whether the fallback walk should try the next candidate.
func (c ErrorClass) Transient() bool {
	switch c {
	case ClassTimeout, ClassConnection, ClassRateLimited, ClassServerError, ClassNotFound:
		return true
	}
	return false
}

// =============================================================================
// ERRORS
// =============================================================================

// InvalidRequestError rejects a request before any provider is contacted.
type InvalidRequestError struct {
	Reason string
}

func (e *InvalidRequestError) Error() string {
	return "invalid request: " + e.Reason
}

// InvocationError is a non-retryable provider failure.
type InvocationError struct {
	Model  string
	Class  ErrorClass
	Status int
	Err    error
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("model %s failed (%s): %v", e.Model, e.Class, e.Err)
}

func (e *InvocationError) Unwrap() error {
	return e.Err
}

// Attempt records one failed candidate.
type Attempt struct {
	Model  string     `json:"model"`
	Class  ErrorClass `json:"class"`
	Reason string     `json:"reason"`
}

// ProviderUnavailableError is returned when every candidate failed with a
// transient error.
type ProviderUnavailableError struct {
	Attempts []Attempt
}

func (e *ProviderUnavailableError) Error() string {
	if len(e.Attempts) == 0 {
		return "no provider could serve the request"
	}
	parts := make([]string, len(e.Attempts))
	for i, a := range e.Attempts {
		parts[i] = fmt.Sprintf("%s: %s", a.Model, a.Reason)
	}
	return "all providers failed: " + strings.Join(parts, "; ")
}
