// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package service

import "strings"

// Language is a supported language code.
type Language string

const (
	LanguageAuto    Language = "auto"
	LanguageCatalan Language = "ca"
	LanguageSpanish Language = "es"
	LanguageEnglish Language = "en"
)

// Languages lists the concrete languages in display order.
var Languages = []Language{LanguageCatalan, LanguageSpanish, LanguageEnglish}

var languageNames = map[Language]string{
	LanguageCatalan: "Catalan",
	LanguageSpanish: "Spanish",
	LanguageEnglish: "English",
}

// Name returns "Catalan", "Spanish" or "English"; auto renders as
// "auto-detect".
func (l Language) Name() string {
	if l == LanguageAuto {
		return "auto-detect"
	}
	if name, ok := languageNames[l]; ok {
		return name
	}
	return string(l)
}

// Supported reports whether l is a concrete supported language.
func (l Language) Supported() bool {
	_, ok := languageNames[l]
	return ok
}

// ParseLanguage lower-cases and trims s.
func ParseLanguage(s string) Language {
	return Language(strings.ToLower(strings.TrimSpace(s)))
}
