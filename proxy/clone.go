package proxy

import (
	"maps"
	"reflect"
)

// Clone returns a proxy over a deep copy of the wrapped instance, with
// copies of the interceptor maps. The two proxies share no mutable state.
func (p *Proxy) Clone() *Proxy {
	c := &copier{seen: make(map[visit]reflect.Value)}
	return &Proxy{
		typ:     p.typ,
		wrapped: c.copy(p.wrapped),
		prefix:  maps.Clone(p.prefix),
		suffix:  maps.Clone(p.suffix),
	}
}

type visit struct {
	ptr uintptr
	typ reflect.Type
}

// copier deep-copies values, preserving pointer sharing and cycles.
// Funcs and chans are shared, not copied.
type copier struct {
	seen map[visit]reflect.Value
}

func (c *copier) copy(v reflect.Value) reflect.Value {
	if !v.IsValid() {
		return v
	}
	v = settled(v)
	switch v.Kind() {
	case reflect.Pointer:
		if v.IsNil() {
			return reflect.Zero(v.Type())
		}
		key := visit{v.Pointer(), v.Type()}
		if dup, ok := c.seen[key]; ok {
			return dup
		}
		dup := reflect.New(v.Type().Elem())
		c.seen[key] = dup
		c.into(dup.Elem(), v.Elem())
		return dup

	case reflect.Slice:
		if v.IsNil() {
			return reflect.Zero(v.Type())
		}
		key := visit{v.Pointer(), v.Type()}
		if dup, ok := c.seen[key]; ok && dup.Len() == v.Len() {
			return dup
		}
		dup := reflect.MakeSlice(v.Type(), v.Len(), v.Cap())
		c.seen[key] = dup
		for i := 0; i < v.Len(); i++ {
			c.into(dup.Index(i), v.Index(i))
		}
		return dup

	case reflect.Map:
		if v.IsNil() {
			return reflect.Zero(v.Type())
		}
		key := visit{v.Pointer(), v.Type()}
		if dup, ok := c.seen[key]; ok {
			return dup
		}
		dup := reflect.MakeMapWithSize(v.Type(), v.Len())
		c.seen[key] = dup
		iter := v.MapRange()
		for iter.Next() {
			dup.SetMapIndex(c.copy(iter.Key()), c.copy(iter.Value()))
		}
		return dup

	case reflect.Interface:
		if v.IsNil() {
			return reflect.Zero(v.Type())
		}
		dup := reflect.New(v.Type()).Elem()
		dup.Set(c.copy(v.Elem()))
		return dup

	case reflect.Struct, reflect.Array:
		dup := reflect.New(v.Type()).Elem()
		c.into(dup, addressable(v))
		return dup
	}

	// scalars, funcs, chans
	dup := reflect.New(v.Type()).Elem()
	dup.Set(v)
	return dup
}

// into copies src into dst. Both must be addressable.
func (c *copier) into(dst, src reflect.Value) {
	switch src.Kind() {
	case reflect.Struct:
		for i := 0; i < src.NumField(); i++ {
			c.into(exposed(dst.Field(i)), src.Field(i))
		}
	case reflect.Array:
		for i := 0; i < src.Len(); i++ {
			c.into(dst.Index(i), src.Index(i))
		}
	default:
		exposed(dst).Set(c.copy(src))
	}
}

// settled drops the read-only flag of a value read through an unexported
// field. Such values are always addressable here.
func settled(v reflect.Value) reflect.Value {
	if v.CanInterface() || !v.CanAddr() {
		return v
	}
	return exposed(v)
}

func addressable(v reflect.Value) reflect.Value {
	if v.CanAddr() {
		return v
	}
	tmp := reflect.New(v.Type()).Elem()
	tmp.Set(v)
	return tmp
}
