package stringutils

import (
	"regexp"
	"unicode/utf8"
)

var reThink = regexp.MustCompile(`(?s)<think>.*?</think>`)

// Truncate shortens s to at most n runes, adding "..." if it was truncated.
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n]) + "..."
}

// StripThink removes <think>…</think> blocks that some models embed.
func StripThink(s string) string {
	return reThink.ReplaceAllString(s, "")
}

// OrDefault returns s if it's not empty, or def if s is empty.
func OrDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
