// Package sanitize cleans user-supplied query text before it reaches the
// catalog or the embedding provider. Sanitization is lossy but permissive:
// odd input produces a smaller query, never an error.
package sanitize

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaxQueryLen bounds accepted query text when the caller passes no limit;
// longer input is truncated, not rejected.
const MaxQueryLen = 500

var (
	jsSchemeRegex  = regexp.MustCompile(`(?i)javascript:`)
	onHandlerRegex = regexp.MustCompile(`(?i)\bon\w+\s*=`)
	whitespaceRun  = regexp.MustCompile(`\s+`)
)

// Query strips control characters, angle brackets, script-injection
// substrings and collapses whitespace. Input longer than maxLen bytes is
// truncated first; maxLen <= 0 means MaxQueryLen. The result keeps the
// original case; callers that need a canonical form use Normalize.
func Query(raw string, maxLen int) string {
	if maxLen <= 0 {
		maxLen = MaxQueryLen
	}
	raw = Truncate(raw, maxLen)

	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if unicode.IsControl(r) || r == '<' || r == '>' {
			continue
		}
		b.WriteRune(r)
	}

	s := jsSchemeRegex.ReplaceAllString(b.String(), "")
	s = onHandlerRegex.ReplaceAllString(s, "")
	s = whitespaceRun.ReplaceAllString(s, " ")

	return strings.TrimSpace(s)
}

// Normalize lower-cases a sanitized query for cache keying.
func Normalize(sanitized string) string {
	return strings.ToLower(sanitized)
}

// Truncate cuts s to at most max bytes without splitting a multi-byte rune:
// the cut backs up to the nearest rune boundary, so the result never ends in
// a partial encoding.
func Truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}

var likeEscaper = strings.NewReplacer(
	`\`, `\\`,
	`%`, `\%`,
	`_`, `\_`,
)

// EscapeLike escapes LIKE/ILIKE wildcards so user text matches literally.
// Input "100% of items_" matches the literal string, not a pattern.
func EscapeLike(s string) string {
	return likeEscaper.Replace(s)
}
