// Package redact scrubs credentials and connection details from strings
// before they reach logs or error responses. Upstream generative-text errors
// routinely echo request URLs and headers, so everything logged on the
// enrichment path passes through here.
package redact

import (
	"regexp"
	"unicode/utf8"
)

// Placeholders substituted for redacted content.
const (
	RedactedCredentialPlaceholder = "[REDACTED_CREDENTIAL]"
	RedactedKeyPlaceholder        = "[REDACTED_KEY]"
	RedactedJWTPlaceholder        = "[REDACTED_JWT]"
	RedactedEmailPlaceholder      = "[REDACTED_EMAIL]"
)

type rule struct {
	pattern     *regexp.Regexp
	replacement string
}

var rules = []rule{
	// user:password@ in connection strings
	{
		regexp.MustCompile(`(?i)(postgres(?:ql)?|redis|rediss|mysql|mongodb)://[^@\s]+@`),
		"$1://" + RedactedCredentialPlaceholder + "@",
	},
	// ?key=... and &api_key=... query parameters
	{
		regexp.MustCompile(`(?i)([?&](?:key|api_key|apikey|token)=)[^&\s"']+`),
		"${1}" + RedactedKeyPlaceholder,
	},
	// header or field style: X-goog-api-key: abc, Authorization: Bearer abc, "api_key":"abc"
	{
		regexp.MustCompile(`(?i)(x-goog-api-key|api[_-]?key|authorization|secret|password)(["']?\s*[:=]\s*["']?)(?:bearer\s+)?[A-Za-z0-9_\-.~+/]{6,}`),
		"${1}${2}" + RedactedKeyPlaceholder,
	},
	// provider key shapes
	{regexp.MustCompile(`\bAIza[0-9A-Za-z_\-]{20,}`), RedactedKeyPlaceholder},
	{regexp.MustCompile(`\bsk-[A-Za-z0-9_\-]{16,}`), RedactedKeyPlaceholder},
	{regexp.MustCompile(`eyJ[a-zA-Z0-9_-]+\.eyJ[a-zA-Z0-9_-]+\.[a-zA-Z0-9_-]+`), RedactedJWTPlaceholder},
	{regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`), RedactedEmailPlaceholder},
}

// String redacts sensitive information from the input string.
func String(input string) string {
	if input == "" {
		return input
	}
	out := input
	for _, r := range rules {
		out = r.pattern.ReplaceAllString(out, r.replacement)
	}
	return out
}

// Error redacts sensitive information from err.Error().
func Error(err error) string {
	if err == nil {
		return ""
	}
	return String(err.Error())
}

// Truncate redacts s and cuts it to at most max runes, appending "…" when cut.
// Used for upstream response bodies, which can be arbitrarily large.
func Truncate(s string, max int) string {
	s = String(s)
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max]) + "…"
}
