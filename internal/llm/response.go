// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package llm

// ProviderResponse is the result of one provider call: *TextResponse or
// *ErrorResponse.
type ProviderResponse interface {
	providerResponse()
}

// TextResponse carries the model's text.
type TextResponse struct {
	Text  string
	Model string

	PromptTokens     int
	CompletionTokens int
}

// ErrorResponse carries a classified failure.
type ErrorResponse struct {
	Class  ErrorClass
	Status int
	Err    error
}

func (*TextResponse) providerResponse()  {}
func (*ErrorResponse) providerResponse() {}

func errorResponse(class ErrorClass, status int, err error) *ErrorResponse {
	return &ErrorResponse{Class: class, Status: status, Err: err}
}
