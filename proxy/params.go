package proxy

// Params is the argument snapshot handed to interceptors: one value per
// declared parameter, in declaration order. A variadic parameter holds the
// slice passed to the real method, so writes to its elements reach the
// method and, when the caller spread its own slice, the caller.
type Params struct {
	names  []string
	values []any
}

// NewParams pairs names with values. Missing values are nil.
func NewParams(names []string, values []any) Params {
	p := Params{
		names:  append([]string(nil), names...),
		values: make([]any, len(names)),
	}
	copy(p.values, values)
	return p
}

// Len returns the number of declared parameters.
func (p Params) Len() int { return len(p.names) }

// At returns the i-th argument.
func (p Params) At(i int) any { return p.values[i] }

// Value returns the argument bound to the named parameter.
func (p Params) Value(name string) (any, bool) {
	for i, n := range p.names {
		if n == name {
			return p.values[i], true
		}
	}
	return nil, false
}

// Names returns the parameter names.
func (p Params) Names() []string { return append([]string(nil), p.names...) }

// Values returns the arguments.
func (p Params) Values() []any { return append([]any(nil), p.values...) }

// Map returns the arguments keyed by parameter name.
func (p Params) Map() map[string]any {
	m := make(map[string]any, len(p.names))
	for i, n := range p.names {
		m[n] = p.values[i]
	}
	return m
}
