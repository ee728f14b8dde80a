package rules

import (
	"math"
	"reflect"

	"story-engine/internal/domain"
)

// Compare applies op to (left, right). Numbers of any kind compare
// numerically, strings lexically, booleans only for (in)equality. Mixed or
// unordered kinds are never ordered and are equal only when deeply equal.
// Unknown operators yield false. Compare never panics.
func Compare(op domain.Operator, left, right any) bool {
	switch op {
	case domain.OpEqual:
		return equal(left, right)
	case domain.OpNotEqual:
		return !equal(left, right)
	case domain.OpGreater, domain.OpLess, domain.OpGreaterEqual, domain.OpLessEqual:
		c, ok := order(left, right)
		if !ok {
			return false
		}
		switch op {
		case domain.OpGreater:
			return c > 0
		case domain.OpLess:
			return c < 0
		case domain.OpGreaterEqual:
			return c >= 0
		default:
			return c <= 0
		}
	default:
		return false
	}
}

func equal(left, right any) bool {
	left, right = domain.NormalizeValue(left), domain.NormalizeValue(right)
	if left == nil || right == nil {
		return left == nil && right == nil
	}
	switch l := left.(type) {
	case float64:
		r, ok := right.(float64)
		return ok && l == r
	case string:
		r, ok := right.(string)
		return ok && l == r
	case bool:
		r, ok := right.(bool)
		return ok && l == r
	}
	return reflect.DeepEqual(left, right)
}

// order returns -1, 0 or 1 and whether the pair is ordered at all.
func order(left, right any) (int, bool) {
	left, right = domain.NormalizeValue(left), domain.NormalizeValue(right)
	switch l := left.(type) {
	case float64:
		r, ok := right.(float64)
		if !ok || math.IsNaN(l) || math.IsNaN(r) {
			return 0, false
		}
		switch {
		case l < r:
			return -1, true
		case l > r:
			return 1, true
		}
		return 0, true
	case string:
		r, ok := right.(string)
		if !ok {
			return 0, false
		}
		switch {
		case l < r:
			return -1, true
		case l > r:
			return 1, true
		}
		return 0, true
	}
	return 0, false
}
