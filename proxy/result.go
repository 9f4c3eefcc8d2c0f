package proxy

import "fmt"

// As converts a Call result to T. A nil result gives T's zero value.
func As[T any](v any) (T, error) {
	var zero T
	if v == nil {
		return zero, nil
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("%w: result %T is not %T", ErrTypeMismatch, v, zero)
	}
	return t, nil
}

// Results unpacks the []any result of a multi-result method. A nil result
// gives n nil values.
func Results(v any, n int) ([]any, error) {
	if v == nil {
		return make([]any, n), nil
	}
	vals, ok := v.([]any)
	if !ok || len(vals) != n {
		return nil, fmt.Errorf("%w: expected %d results, got %T", ErrTypeMismatch, n, v)
	}
	return vals, nil
}
