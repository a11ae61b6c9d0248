package utils

// TruncateRunes caps s at max runes. Limits are counted in runes, not bytes,
// so multi-byte text is never cut mid-character.
func TruncateRunes(s string, max int) string {
	if max <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
