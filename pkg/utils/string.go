package utils

// Truncate shortens s to at most maxLen runes, adding "..." when it cuts.
// It never splits a multi-byte character, so Bangla text stays valid.
func Truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen]) + "..."
}
