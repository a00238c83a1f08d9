package query

import (
	"cmp"
	"math"
	"strings"

	"github.com/google/uuid"
)

// compareValues orders two dynamically typed values. Integers and floats
// compare numerically with each other; strings byte-wise; booleans false
// before true. UUIDs compare with UUIDs and with their string form. ok is
// false when the values are not comparable.
func compareValues(a, b any) (int, bool) {
	if ia, ok := asInt(a); ok {
		if ib, ok := asInt(b); ok {
			return cmp.Compare(ia, ib), true
		}
	}
	if fa, ok := asFloat(a); ok {
		if fb, ok := asFloat(b); ok {
			if math.IsNaN(fa) || math.IsNaN(fb) {
				return 0, false
			}
			return cmp.Compare(fa, fb), true
		}
		return 0, false
	}

	switch x := a.(type) {
	case string:
		if y, ok := b.(string); ok {
			return strings.Compare(x, y), true
		}
	case bool:
		if y, ok := b.(bool); ok {
			switch {
			case x == y:
				return 0, true
			case !x:
				return -1, true
			default:
				return 1, true
			}
		}
	case uuid.UUID:
		var y uuid.UUID
		switch v := b.(type) {
		case uuid.UUID:
			y = v
		case string:
			parsed, err := uuid.Parse(v)
			if err != nil {
				return 0, false
			}
			y = parsed
		default:
			return 0, false
		}
		return strings.Compare(string(x[:]), string(y[:])), true
	}
	return 0, false
}

func equalValues(a, b any) bool {
	c, ok := compareValues(a, b)
	return ok && c == 0
}

func asInt(v any) (int64, bool) {
	switch x := v.(type) {
	case int:
		return int64(x), true
	case int8:
		return int64(x), true
	case int16:
		return int64(x), true
	case int32:
		return int64(x), true
	case int64:
		return x, true
	case uint8:
		return int64(x), true
	case uint16:
		return int64(x), true
	case uint32:
		return int64(x), true
	}
	return 0, false
}

func asFloat(v any) (float64, bool) {
	if i, ok := asInt(v); ok {
		return float64(i), true
	}
	switch x := v.(type) {
	case float32:
		return float64(x), true
	case float64:
		return x, true
	}
	return 0, false
}
