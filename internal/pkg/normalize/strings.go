// Package normalize holds the pure coercion helpers shared by the API, the
// filter engine and the synchronisation worker. None of them panic: invalid
// input maps to a zero value and a false flag, or passes through unchanged.
package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// stripMarks decomposes, drops combining marks and recomposes.
// transform.Chain is stateful, so a fresh chain is built per call.
func stripMarks() transform.Transformer {
	return transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
}

// String lowercases s, removes diacritics and trims surrounding whitespace.
// The empty string is returned as is.
func String(s string) string {
	if s == "" {
		return s
	}
	out, _, err := transform.String(stripMarks(), strings.ToLower(s))
	if err != nil {
		out = strings.ToLower(s)
	}
	return strings.TrimSpace(out)
}

// StringPtr is String for optional values: nil stays nil.
func StringPtr(s *string) *string {
	if s == nil {
		return nil
	}
	out := String(*s)
	return &out
}

// EmptyStringToNull returns a copy of record in which empty strings and nil
// values are replaced by nil. The input map is not modified.
func EmptyStringToNull(record map[string]any) map[string]any {
	out := make(map[string]any, len(record))
	for k, v := range record {
		switch val := v.(type) {
		case nil:
			out[k] = nil
		case string:
			if val == "" {
				out[k] = nil
			} else {
				out[k] = val
			}
		default:
			out[k] = v
		}
	}
	return out
}
