package util

import (
	"regexp"
	"strings"
)

var (
	// Matches "Bearer <token>"; upstream HTTP errors sometimes echo auth
	// headers back in their messages.
	bearerTokenRe = regexp.MustCompile(`(?i)\bBearer\s+[^\s"']+`)

	// Common key=value formats that leak in error strings.
	apiKeyKVRe = regexp.MustCompile(`(?i)\b(api[_-]?key|gemini[_-]?api[_-]?key|key)\b\s*[:=]\s*[^\s"'&]+`)

	// Google API keys have a recognizable shape even outside key=value form.
	googleKeyRe = regexp.MustCompile(`\bAIza[0-9A-Za-z_\-]{30,}\b`)
)

// RedactSecrets removes obvious secret-bearing substrings from error
// strings. Failure reasons are persisted into the retry queue and logged, so
// every message headed there goes through this first.
//
// Intentionally conservative: safe to call on any message, including
// upstream error strings.
func RedactSecrets(s string) string {
	if s == "" {
		return ""
	}
	out := s
	out = bearerTokenRe.ReplaceAllString(out, "Bearer <redacted>")
	out = apiKeyKVRe.ReplaceAllString(out, "<redacted_kv>")
	out = googleKeyRe.ReplaceAllString(out, "<redacted_key>")
	return strings.TrimSpace(out)
}
