package util

import (
	"fmt"

	"github.com/ohler55/ojg/oj"
)

// functional map: (a -> b) -> [a] -> [b]
func Map[T, U any](f func(T) U, s []T) []U {
	result := make([]U, len(s))
	for i, v := range s {
		result[i] = f(v)
	}
	return result
}

// Stringify renders a value as compact JSON with sorted keys, falling back to the Go syntax.
func Stringify(v any) string {
	switch v.(type) {
	case nil, bool, int, int64, float64, string, []any, map[string]any:
		return oj.JSON(v, &oj.Options{Sort: true})
	default:
		return fmt.Sprintf("%v", v)
	}
}
