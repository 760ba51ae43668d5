// Package textx provides small text utilities used across the project.
package textx

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// SanitizeText removes control characters except tab/newline/CR and trims spaces.
func SanitizeText(s string) string {
	// strip control chars outside tab/newline/carriage return
	var b strings.Builder
	for _, r := range s {
		if r == '\n' || r == '\r' || r == '\t' || (r >= 32 && r != 127) {
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

var blankRun = regexp.MustCompile(`\n\s*\n\s*\n+`)

// CollapseBlankLines squeezes runs of two or more blank lines into one.
func CollapseBlankLines(s string) string {
	return blankRun.ReplaceAllString(s, "\n\n")
}

// Truncate cuts s to at most n runes, appending suffix only when it cut.
func Truncate(s string, n int, suffix string) string {
	if n < 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos] + suffix
		}
		i++
	}
	return s
}

// Ellipsize is Truncate with a trailing "..." and trimmed spaces.
func Ellipsize(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(Truncate(s, n, "")) + "..."
}
