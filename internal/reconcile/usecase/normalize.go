package usecase

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// NormalizeQuantity coerces an upstream quantity into an integer. It never
// fails: nil, unparsable and out-of-range input all become 0. Numbers are
// truncated toward zero. Strings are read as a leading base-10 integer, so
// "42", " 42 units" and "42.9" all yield 42.
func NormalizeQuantity(v interface{}) int64 {
	switch q := v.(type) {
	case nil:
		return 0
	case int:
		return int64(q)
	case int8:
		return int64(q)
	case int16:
		return int64(q)
	case int32:
		return int64(q)
	case int64:
		return q
	case uint:
		return clampUint(uint64(q))
	case uint8:
		return int64(q)
	case uint16:
		return int64(q)
	case uint32:
		return int64(q)
	case uint64:
		return clampUint(q)
	case float32:
		return truncFloat(float64(q))
	case float64:
		return truncFloat(q)
	case json.Number:
		if i, err := q.Int64(); err == nil {
			return i
		}
		return parseLeadingInt(q.String())
	case string:
		return parseLeadingInt(q)
	case *string:
		if q == nil {
			return 0
		}
		return parseLeadingInt(*q)
	case *int64:
		if q == nil {
			return 0
		}
		return *q
	case *float64:
		if q == nil {
			return 0
		}
		return truncFloat(*q)
	default:
		return 0
	}
}

func truncFloat(f float64) int64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	t := math.Trunc(f)
	if t >= math.MaxInt64 || t < math.MinInt64 {
		return 0
	}
	return int64(t)
}

func clampUint(u uint64) int64 {
	if u > math.MaxInt64 {
		return 0
	}
	return int64(u)
}

func parseLeadingInt(s string) int64 {
	s = strings.TrimSpace(s)
	end := 0
	if end < len(s) && (s[end] == '+' || s[end] == '-') {
		end++
	}
	digits := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digits {
		return 0
	}
	n, err := strconv.ParseInt(s[:end], 10, 64)
	if err != nil {
		return 0
	}
	return n
}
