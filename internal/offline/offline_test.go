// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package offline

import (
	"errors"
	"testing"
)

func TestIsLocalhost(t *testing.T) {
	tests := []struct {
		host string
		want bool
	}{
		{"localhost", true},
		{"LOCALHOST", true},
		{"localhost:11434", true},
		{"127.0.0.1", true},
		{"127.8.9.10", true},
		{"::1", true},
		{"[::1]:11434", true},
		{"0:0:0:0:0:0:0:1", true},
		{"192.168.1.10", false},
		{"api.openai.com", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			if got := IsLocalhost(tt.host); got != tt.want {
				t.Errorf("IsLocalhost(%q) = %v, want %v", tt.host, got, tt.want)
			}
		})
	}
}

func TestValidateEndpoint(t *testing.T) {
	tests := []struct {
		name      string
		url       string
		localOnly bool
		wantErr   error
	}{
		{"local ollama", "http://localhost:11434", true, nil},
		{"hosted allowed", "https://api.openai.com/v1", false, nil},
		{"hosted in local-only", "https://api.openai.com/v1", true, ErrNonLocalhost},
		{"file scheme", "file:///etc/passwd", false, ErrInvalidURLScheme},
		{"javascript scheme", "javascript:alert(1)", false, ErrInvalidURLScheme},
		{"no host", "http://", false, ErrInvalidURL},
		{"bad url", "http://[::1", false, ErrInvalidURL},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateEndpoint(tt.url, tt.localOnly)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("got %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestCheckHostedAllowed(t *testing.T) {
	if err := CheckHostedAllowed(false); err != nil {
		t.Errorf("expected nil, got %v", err)
	}
	if err := CheckHostedAllowed(true); !errors.Is(err, ErrHostedBlocked) {
		t.Errorf("expected ErrHostedBlocked, got %v", err)
	}
}
