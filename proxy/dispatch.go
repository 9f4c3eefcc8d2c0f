package proxy

import (
	"fmt"
	"reflect"

	"github.com/chazu/scopeproxy/model"
)

// outcome is the result of one interception phase.
type outcome struct {
	shortCircuited bool
	value          any
}

// Call invokes method on the wrapped instance through the interceptors.
//
// The result follows the method's declared results, ignoring a trailing
// error: nil for none, the value itself for one, []any for several. An
// error returned by the real method, or by an interceptor, is returned
// unchanged. Panics are not recovered.
//
// A variadic method whose last argument is a slice assignable to the
// variadic parameter receives that slice as-is, like f(xs...).
func (p *Proxy) Call(method string, args ...any) (any, error) {
	bm, ok := p.typ.methods[method]
	if !ok {
		return nil, fmt.Errorf("%w: method %s on %s", model.ErrUnknownMember, method, p.typ.model.TypeID())
	}
	in, params, err := bind(bm, args)
	if err != nil {
		return nil, err
	}
	instance := p.wrapped.Interface()

	out, err := p.prefixPhase(bm, instance, params)
	if err != nil {
		return nil, err
	}
	if out.shortCircuited {
		return result(bm, out.value), nil
	}

	value, err := p.realCall(bm, in)
	if err != nil {
		return nil, err
	}

	out, err = p.suffixPhase(bm, instance, params, value)
	if err != nil {
		return nil, err
	}
	if out.shortCircuited {
		value = out.value
	}
	return result(bm, value), nil
}

func (p *Proxy) prefixPhase(bm boundMethod, instance any, params Params) (outcome, error) {
	hook, ok := p.prefix[bm.desc.Name]
	if !ok {
		return outcome{}, nil
	}
	returnEarly := false
	v, err := hook(p, instance, bm.desc.Name, params, &returnEarly)
	if err != nil {
		return outcome{}, err
	}
	return outcome{shortCircuited: returnEarly, value: v}, nil
}

func (p *Proxy) suffixPhase(bm boundMethod, instance any, params Params, value any) (outcome, error) {
	hook, ok := p.suffix[bm.desc.Name]
	if !ok {
		return outcome{}, nil
	}
	returnEarly := false
	v, err := hook(p, instance, bm.desc.Name, params, value, &returnEarly)
	if err != nil {
		return outcome{}, err
	}
	return outcome{shortCircuited: returnEarly, value: v}, nil
}

func (p *Proxy) realCall(bm boundMethod, in []reflect.Value) (any, error) {
	fn := p.wrapped.Method(bm.index)
	var out []reflect.Value
	if bm.desc.IsVariadic() {
		out = fn.CallSlice(in)
	} else {
		out = fn.Call(in)
	}

	if bm.desc.ReturnsErr {
		last := out[len(out)-1]
		out = out[:len(out)-1]
		if !last.IsNil() {
			return nil, last.Interface().(error)
		}
	}

	switch len(out) {
	case 0:
		return nil, nil
	case 1:
		return out[0].Interface(), nil
	}
	vals := make([]any, len(out))
	for i, v := range out {
		vals[i] = v.Interface()
	}
	return vals, nil
}

// result drops any value for methods that declare none.
func result(bm boundMethod, v any) any {
	if valueCount(bm.desc) == 0 {
		return nil
	}
	return v
}

func valueCount(md model.MethodDescriptor) int {
	n := len(md.Results)
	if md.ReturnsErr {
		n--
	}
	return n
}

// bind converts call arguments to the method's parameter types. Variadic
// arguments are collected into one slice so the method and the
// interceptors share it.
func bind(bm boundMethod, args []any) ([]reflect.Value, Params, error) {
	mt := bm.typ
	n := mt.NumIn() - 1 // receiver excluded
	names := make([]string, n)
	for i, pd := range bm.desc.Params {
		names[i] = pd.Name
	}

	fixed := n
	if bm.desc.IsVariadic() {
		fixed = n - 1
		if len(args) < fixed {
			return nil, Params{}, fmt.Errorf("%w: %s takes at least %d arguments, got %d", ErrBadArguments, bm.desc.Name, fixed, len(args))
		}
	} else if len(args) != n {
		return nil, Params{}, fmt.Errorf("%w: %s takes %d arguments, got %d", ErrBadArguments, bm.desc.Name, n, len(args))
	}

	in := make([]reflect.Value, n)
	values := make([]any, n)
	for i := 0; i < fixed; i++ {
		v, err := argValue(args[i], mt.In(i+1))
		if err != nil {
			return nil, Params{}, fmt.Errorf("%w: %s argument %s: %v", ErrBadArguments, bm.desc.Name, names[i], err)
		}
		in[i] = v
		values[i] = args[i]
	}

	if fixed < n {
		st := mt.In(n)
		rest := args[fixed:]
		var slice reflect.Value
		if len(rest) == 1 && rest[0] != nil && reflect.TypeOf(rest[0]).AssignableTo(st) {
			slice = reflect.ValueOf(rest[0])
		} else {
			slice = reflect.MakeSlice(st, len(rest), len(rest))
			for i, a := range rest {
				v, err := argValue(a, st.Elem())
				if err != nil {
					return nil, Params{}, fmt.Errorf("%w: %s variadic argument %d: %v", ErrBadArguments, bm.desc.Name, i, err)
				}
				slice.Index(i).Set(v)
			}
		}
		in[fixed] = slice
		values[fixed] = slice.Interface()
	}

	return in, NewParams(names, values), nil
}

// argValue converts a to t. Numbers convert between numeric kinds so
// untyped constants can be passed without casts.
func argValue(a any, t reflect.Type) (reflect.Value, error) {
	if a == nil {
		if nilable(t.Kind()) {
			return reflect.Zero(t), nil
		}
		return reflect.Value{}, fmt.Errorf("nil is not a %s", t)
	}
	v := reflect.ValueOf(a)
	if v.Type().AssignableTo(t) {
		if v.Type() != t {
			// keep the static type; matters when t is an interface
			nv := reflect.New(t).Elem()
			nv.Set(v)
			return nv, nil
		}
		return v, nil
	}
	if numeric(v.Kind()) && numeric(t.Kind()) {
		return v.Convert(t), nil
	}
	return reflect.Value{}, fmt.Errorf("%s is not assignable to %s", v.Type(), t)
}

func nilable(k reflect.Kind) bool {
	switch k {
	case reflect.Pointer, reflect.Slice, reflect.Map, reflect.Interface, reflect.Func, reflect.Chan:
		return true
	}
	return false
}

func numeric(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}
