// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package email

import (
	"errors"
	"fmt"
)

var (
	// ErrDeviceUnavailable means the accelerator could not hold the model
	// (out of memory, driver failure). The caller may retry on CPU.
	ErrDeviceUnavailable = errors.New("device unavailable")

	// ErrUnexpectedResponse means the inference server answered with a
	// body the pipeline could not read.
	ErrUnexpectedResponse = errors.New("unexpected response from inference server")
)

// FeatureDisabledError is returned by every Service method while email
// analysis is switched off.
type FeatureDisabledError struct {
	Feature string
}

func (e *FeatureDisabledError) Error() string {
	return fmt.Sprintf("%s is disabled (set LLUMDOCS_ENABLE_EMAIL=true to enable it)", e.Feature)
}

// PipelineError wraps a load or inference failure of one pipeline.
type PipelineError struct {
	Kind   PipelineKind
	Device Device
	Op     string
	Err    error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("%s pipeline %s on %s: %v", e.Kind, e.Op, e.Device, e.Err)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// IsDeviceUnavailable reports whether err came from an exhausted device.
func IsDeviceUnavailable(err error) bool {
	return errors.Is(err, ErrDeviceUnavailable)
}
