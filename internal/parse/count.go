package parse

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// maxCount is the largest count reported; bigger values are clamped to it.
const maxCount = math.MaxInt32

// Count extracts a non-negative occupancy count from a loosely typed feed
// value. Numbers and numeric strings are accepted, fractions truncate toward
// zero, negatives clamp to zero and values above maxCount clamp to maxCount.
// Anything else, including nil, NaN and infinities, yields 0.
func Count(v any) int {
	var f float64
	switch n := v.(type) {
	case nil:
		return 0
	case json.Number:
		parsed, ok := parseNumber(string(n))
		if !ok {
			return 0
		}
		f = parsed
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case string:
		parsed, ok := parseNumber(n)
		if !ok {
			return 0
		}
		f = parsed
	default:
		return 0
	}

	switch {
	case math.IsNaN(f) || math.IsInf(f, 0):
		return 0
	case f < 0:
		return 0
	case f > maxCount:
		return maxCount
	}
	return int(math.Trunc(f))
}

func parseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return float64(i), true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// Timestamp returns v verbatim when it is a string and "" otherwise.
func Timestamp(v any) string {
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return s
}
