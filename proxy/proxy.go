package proxy

import (
	"reflect"
	"unsafe"
)

// PrefixInterceptor runs before the real method. Setting *returnEarly skips
// the real call and the suffix interceptor; the returned value becomes the
// call's result.
type PrefixInterceptor func(p *Proxy, instance any, method string, params Params, returnEarly *bool) (any, error)

// SuffixInterceptor runs after the real method with its result. Setting
// *returnEarly replaces that result with the returned value.
type SuffixInterceptor func(p *Proxy, instance any, method string, params Params, returnValue any, returnEarly *bool) (any, error)

// Proxy fronts one wrapped instance. It is not safe for concurrent use.
type Proxy struct {
	typ     *Type
	wrapped reflect.Value // *T, never nil

	prefix map[string]PrefixInterceptor
	suffix map[string]SuffixInterceptor
}

// ProxyArtifact marks Proxy as a model.Artifact.
func (p *Proxy) ProxyArtifact() {}

// Type returns the proxy type.
func (p *Proxy) Type() *Type { return p.typ }

// Wrapped returns the wrapped *T.
func (p *Proxy) Wrapped() any { return p.wrapped.Interface() }

// SetPrefixInterceptor registers hook for method. A nil hook removes it.
func (p *Proxy) SetPrefixInterceptor(method string, hook PrefixInterceptor) error {
	if err := p.typ.checkMethod(method); err != nil {
		return err
	}
	if hook == nil {
		delete(p.prefix, method)
		return nil
	}
	p.prefix[method] = hook
	return nil
}

// SetSuffixInterceptor registers hook for method. A nil hook removes it.
func (p *Proxy) SetSuffixInterceptor(method string, hook SuffixInterceptor) error {
	if err := p.typ.checkMethod(method); err != nil {
		return err
	}
	if hook == nil {
		delete(p.suffix, method)
		return nil
	}
	p.suffix[method] = hook
	return nil
}

// HasPrefixInterceptor reports whether a prefix hook is set for method.
func (p *Proxy) HasPrefixInterceptor(method string) bool {
	_, ok := p.prefix[method]
	return ok
}

// HasSuffixInterceptor reports whether a suffix hook is set for method.
func (p *Proxy) HasSuffixInterceptor(method string) bool {
	_, ok := p.suffix[method]
	return ok
}

// field returns the settable storage behind index, unexported or not.
func (p *Proxy) field(index []int) reflect.Value {
	return exposed(p.wrapped.Elem().FieldByIndex(index))
}

// exposed lifts the read-only flag reflect puts on unexported fields.
// v must be addressable.
func exposed(v reflect.Value) reflect.Value {
	if v.CanSet() {
		return v
	}
	return reflect.NewAt(v.Type(), unsafe.Pointer(v.UnsafeAddr())).Elem()
}
