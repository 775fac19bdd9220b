// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package offline enforces local-only operation. When local-only mode is on,
// provider and pipeline endpoints must resolve to the loopback interface and
// the hosted provider is refused outright.
package offline

import (
	"errors"
	"net"
	"net/url"
	"strings"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrInvalidURL is returned when an endpoint cannot be parsed or has no host.
	ErrInvalidURL = errors.New("invalid endpoint URL")

	// ErrInvalidURLScheme is returned when an endpoint is not http or https.
	ErrInvalidURLScheme = errors.New("only http and https endpoints are allowed")

	// ErrNonLocalhost is returned when a remote endpoint is used in local-only mode.
	ErrNonLocalhost = errors.New("only localhost endpoints are allowed in local-only mode")

	// ErrHostedBlocked is returned when the hosted provider is used in local-only mode.
	ErrHostedBlocked = errors.New("hosted model providers are disabled in local-only mode")
)

// =============================================================================
// URL VALIDATION
// =============================================================================

// IsLocalhost reports whether host (optionally with a port or IPv6 brackets)
// names the loopback interface.
func IsLocalhost(host string) bool {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.ToLower(strings.Trim(host, "[]"))

	if host == "localhost" {
		return true
	}
	if ip := net.ParseIP(host); ip != nil {
		return ip.IsLoopback()
	}
	return false
}

// ValidateEndpoint checks that rawURL is an http(s) URL and, when localOnly is
// set, that it points at localhost. The scheme check always runs.
func ValidateEndpoint(rawURL string, localOnly bool) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ErrInvalidURL
	}

	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return ErrInvalidURLScheme
	}
	if parsed.Hostname() == "" {
		return ErrInvalidURL
	}

	if localOnly && !IsLocalhost(parsed.Hostname()) {
		return ErrNonLocalhost
	}
	return nil
}

// CheckHostedAllowed returns ErrHostedBlocked in local-only mode.
func CheckHostedAllowed(localOnly bool) error {
	if localOnly {
		return ErrHostedBlocked
	}
	return nil
}
