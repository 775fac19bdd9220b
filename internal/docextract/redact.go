// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package docextract

import "regexp"

// Redaction profiles named in the catalogue.
const (
	redactDefault = "default"
	redactPayroll = "payroll"
)

type redaction struct {
	re   *regexp.Regexp
	mark string
}

var (
	defaultRedactions = []redaction{
		{regexp.MustCompile(`\b[\w.-]+@[\w.-]+\.\w{2,}\b`), "••REDACTED-EMAIL••"},
		{regexp.MustCompile(`(?i)\b[A-Z]{2}\d{2}[A-Z0-9]{11,30}\b`), "••REDACTED-IBAN••"},
		{regexp.MustCompile(`(?i)\b(\d{8}[A-Z]|[A-Z]\d{8})\b`), "••REDACTED-TAXID••"},
	}
	payrollRedactions = []redaction{
		{regexp.MustCompile(`(?i)\b\d{8}[A-Z]\b`), "••REDACTED-DNI••"},
		{regexp.MustCompile(`(?i)\b[A-Z]\d{7}[A-Z]\b`), "••REDACTED-NIE••"},
	}
)

// Redact masks e-mail addresses, IBANs and Spanish tax ids. The payroll
// profile also masks DNI and NIE numbers.
func Redact(text, profile string) string {
	for _, r := range defaultRedactions {
		text = r.re.ReplaceAllString(text, r.mark)
	}
	if profile == redactPayroll {
		for _, r := range payrollRedactions {
			text = r.re.ReplaceAllString(text, r.mark)
		}
	}
	return text
}

// RedactLines applies Redact to each line.
func RedactLines(lines []string, profile string) []string {
	out := make([]string, len(lines))
	for i, line := range lines {
		out[i] = Redact(line, profile)
	}
	return out
}
