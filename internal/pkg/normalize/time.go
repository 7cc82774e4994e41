package normalize

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// NormalizeTime turns "H:M", "HH:MM" or "HH:MM:SS" into zero-padded "HH:MM".
// Seconds are ignored; an absent minute counts as "00", an empty one does not.
// Characters after the digits of a part are ignored.
func NormalizeTime(v any) (string, bool) {
	s, ok := v.(string)
	if !ok {
		return "", false
	}

	parts := strings.Split(s, ":")
	hh, mm := "00", "00"
	if len(parts) > 0 {
		hh = parts[0]
	}
	if len(parts) > 1 {
		mm = parts[1]
	}

	h, ok := leadingInt(hh)
	if !ok || h < 0 || h > 23 {
		return "", false
	}
	m, ok := leadingInt(mm)
	if !ok || m < 0 || m > 59 {
		return "", false
	}
	return fmt.Sprintf("%02d:%02d", h, m), true
}

// leadingInt parses the integer at the start of s after optional
// whitespace and sign, ignoring whatever follows the digits.
func leadingInt(s string) (int, bool) {
	s = strings.TrimLeftFunc(s, unicode.IsSpace)
	end := 0
	if end < len(s) && (s[end] == '+' || s[end] == '-') {
		end++
	}
	digits := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digits {
		return 0, false
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0, false
	}
	return n, true
}
