package normalize

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// CoerceNumericValue turns v into a finite float64. Strings may use a comma
// as decimal separator and spaces as thousands separators ("1 234,5").
func CoerceNumericValue(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return finite(n)
	case float32:
		return finite(float64(n))
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		return parseNumeric(string(n))
	case string:
		return parseNumeric(n)
	case *string:
		if n == nil {
			return 0, false
		}
		return parseNumeric(*n)
	default:
		return 0, false
	}
}

func parseNumeric(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	s = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || r == ' ' {
			return -1
		}
		return r
	}, s)
	s = strings.ReplaceAll(s, ",", ".")
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return finite(f)
}

func finite(f float64) (float64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

type formatOptions struct {
	minFraction int
	maxFraction int
}

// FormatOption overrides one of the FormatNumber defaults.
type FormatOption func(*formatOptions)

// WithMaxFractionDigits sets the maximum number of decimals (default 0).
func WithMaxFractionDigits(n int) FormatOption {
	return func(o *formatOptions) {
		o.maxFraction = n
		if o.minFraction > n {
			o.minFraction = n
		}
	}
}

// WithMinFractionDigits sets the minimum number of decimals (default 0).
func WithMinFractionDigits(n int) FormatOption {
	return func(o *formatOptions) {
		o.minFraction = n
		if o.maxFraction < n {
			o.maxFraction = n
		}
	}
}

// FormatNumber renders v with French grouping ("1 234 568"). Values that are
// not finite numbers render as the empty string. Strings are not coerced.
func FormatNumber(v any, opts ...FormatOption) string {
	var f float64
	switch v.(type) {
	case string, *string, json.Number, nil, bool:
		return ""
	default:
		var ok bool
		if f, ok = CoerceNumericValue(v); !ok {
			return ""
		}
	}

	o := formatOptions{}
	for _, opt := range opts {
		opt(&o)
	}

	return message.NewPrinter(language.French).Sprint(number.Decimal(f,
		number.MinFractionDigits(o.minFraction),
		number.MaxFractionDigits(o.maxFraction),
	))
}
