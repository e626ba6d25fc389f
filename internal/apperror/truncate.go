package apperror

import (
	"fmt"
	"unicode/utf8"
)

// MaxCauseLen bounds how much of a provider's error text is copied into a
// user-facing message. Google error bodies can run to several kilobytes.
const MaxCauseLen = 512

// Truncate shortens s to at most maxLen bytes without splitting a rune,
// noting the original length.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + fmt.Sprintf("... [truncated, %d bytes total]", len(s))
}
