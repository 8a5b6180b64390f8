package tenant

import (
	"encoding/json"
	"strconv"
	"strings"
)

// IntConfig reads a numeric rule config value, tolerating the number shapes
// JSON storage hands back (float64, string, json.Number). Out-of-range values
// are clamped, garbage falls back to def.
func (r AutomationRule) IntConfig(key string, def, lo, hi int) int {
	v, ok := r.Config[key]
	if !ok || v == nil {
		return clampInt(def, lo, hi)
	}

	n := def
	switch t := v.(type) {
	case float64:
		n = int(t)
	case int:
		n = t
	case int64:
		n = int(t)
	case json.Number:
		i, err := t.Int64()
		if err != nil {
			return clampInt(def, lo, hi)
		}
		n = int(i)
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			return clampInt(def, lo, hi)
		}
		n = i
	default:
		return clampInt(def, lo, hi)
	}

	return clampInt(n, lo, hi)
}

func clampInt(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}
