package llm

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// CoerceText renders a decoded JSON value as field text. changed reports whether the
// value was not already a string.
func CoerceText(v any) (s string, changed bool) {
	switch t := v.(type) {
	case nil:
		return "", false
	case string:
		return t, false
	case json.Number:
		return FormatNumber(t), true
	case float64:
		return formatFloat(t), true
	case bool:
		return strconv.FormatBool(t), true
	case []any:
		parts := make([]string, 0, len(t))
		for _, e := range t {
			switch e.(type) {
			case map[string]any, []any:
				return compactJSON(t), true
			}
			if e == nil {
				continue
			}
			p, _ := CoerceText(e)
			parts = append(parts, p)
		}
		return strings.Join(parts, ", "), true
	default:
		return compactJSON(t), true
	}
}

// FormatNumber prints a JSON number in base 10 with no sign prefix and no fractional
// part for whole values: 40 -> "40", 40.0 -> "40", 1e2 -> "100", 40.5 -> "40.5".
// Integer literals keep every digit, whatever their size.
func FormatNumber(n json.Number) string {
	lit := strings.TrimPrefix(n.String(), "+")
	if isIntegerLiteral(lit) {
		return lit
	}
	f, err := n.Float64()
	if err != nil {
		return lit
	}
	return formatFloat(f)
}

func isIntegerLiteral(s string) bool {
	s = strings.TrimPrefix(s, "-")
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func formatFloat(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func compactJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}
