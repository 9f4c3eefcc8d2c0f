// Package proxy builds access-interceptor proxies around live values.
//
// A Type binds a classified model.Model to the reflect type it was built
// from. Type.New wraps one instance of that type into a Proxy, which
// forwards property reads, writes and method calls to the instance and runs
// registered prefix and suffix interceptors around every call.
//
// Proxies delegate all storage to the wrapped instance: there is no local
// mirror to keep in sync, so a change made through either side is visible
// through both.
package proxy

import (
	"fmt"
	"reflect"

	"github.com/tliron/commonlog"

	"github.com/chazu/scopeproxy/model"
)

var log = commonlog.GetLogger("scopeproxy.proxy")

// Type is a constructible proxy type for one target struct type.
// A Type is immutable and safe to share between goroutines.
type Type struct {
	model  *model.Model
	target reflect.Type // the struct, not the pointer
	strict bool

	accessible map[string]model.PropertyDescriptor
	methods    map[string]boundMethod
}

type boundMethod struct {
	desc  model.MethodDescriptor
	index int // index in the method set of *target
	typ   reflect.Type
}

// TypeOption configures a Type.
type TypeOption func(*Type)

// WithStrict makes hook registration reject method names that are not part
// of the model.
func WithStrict(strict bool) TypeOption {
	return func(t *Type) { t.strict = strict }
}

// NewType binds m to target (T or *T). Every property and method in the
// model must resolve on target.
func NewType(m *model.Model, target reflect.Type, opts ...TypeOption) (*Type, error) {
	if m == nil {
		return nil, fmt.Errorf("%w: nil model", model.ErrUnsupportedTarget)
	}
	if target == nil {
		return nil, fmt.Errorf("%w: nil target type for %s", model.ErrUnsupportedTarget, m.TypeID())
	}
	if target.Kind() == reflect.Pointer {
		target = target.Elem()
	}
	if target.Kind() != reflect.Struct || target.PkgPath()+"."+target.Name() != m.TypeID() {
		return nil, fmt.Errorf("%w: %s does not match model %s", model.ErrUnsupportedTarget, target, m.TypeID())
	}

	t := &Type{
		model:      m,
		target:     target,
		accessible: make(map[string]model.PropertyDescriptor),
		methods:    make(map[string]boundMethod),
	}
	for _, opt := range opts {
		opt(t)
	}

	for _, d := range m.Properties().Instance() {
		f, ok := fieldByIndex(target, d.Index)
		if !ok || f.Name != d.Name() {
			return nil, fmt.Errorf("%w: property %s does not resolve on %s", model.ErrUnsupportedTarget, d.ID, target)
		}
		if d.Visibility != model.Private {
			t.accessible[d.Name()] = d
		}
	}

	ptr := reflect.PointerTo(target)
	for _, md := range m.Methods() {
		rm, ok := ptr.MethodByName(md.Name)
		if !ok {
			return nil, fmt.Errorf("%w: method %s does not resolve on %s", model.ErrUnsupportedTarget, md.Name, target)
		}
		if rm.Type.NumIn()-1 != len(md.Params) {
			return nil, fmt.Errorf("%w: method %s arity differs from model", model.ErrUnsupportedTarget, md.Name)
		}
		t.methods[md.Name] = boundMethod{desc: md, index: rm.Index, typ: rm.Type}
	}

	log.Debugf("bound proxy type %s: %d accessible properties, %d methods", m.TypeID(), len(t.accessible), len(t.methods))
	return t, nil
}

// fieldByIndex is reflect.Type.FieldByIndex without the panic.
func fieldByIndex(t reflect.Type, index []int) (reflect.StructField, bool) {
	var f reflect.StructField
	if len(index) == 0 {
		return f, false
	}
	for i, x := range index {
		if i > 0 {
			t = f.Type
		}
		if t.Kind() != reflect.Struct || x < 0 || x >= t.NumField() {
			return f, false
		}
		f = t.Field(x)
	}
	return f, true
}

// Model returns the structural model this type was built from.
func (t *Type) Model() *model.Model { return t.model }

// Target returns the wrapped struct type.
func (t *Type) Target() reflect.Type { return t.target }

// Strict reports whether hook names are validated against the model.
func (t *Type) Strict() bool { return t.strict }

// New is the construction entry point for proxies of this type. The
// instance must be a non-nil *T. The interceptor maps are copied; either
// may be nil.
func (t *Type) New(instance any, prefix map[string]PrefixInterceptor, suffix map[string]SuffixInterceptor) (*Proxy, error) {
	v := reflect.ValueOf(instance)
	if !v.IsValid() || v.Kind() != reflect.Pointer || v.IsNil() {
		return nil, fmt.Errorf("%w: %s proxy needs a non-nil *%s", model.ErrUnsupportedTarget, t.model.TypeID(), t.target.Name())
	}
	if v.Type().Elem() != t.target {
		return nil, fmt.Errorf("%w: %T is not *%s", model.ErrUnsupportedTarget, instance, t.target)
	}

	p := &Proxy{
		typ:     t,
		wrapped: v,
		prefix:  make(map[string]PrefixInterceptor, len(prefix)),
		suffix:  make(map[string]SuffixInterceptor, len(suffix)),
	}
	for name, hook := range prefix {
		if err := p.SetPrefixInterceptor(name, hook); err != nil {
			return nil, err
		}
	}
	for name, hook := range suffix {
		if err := p.SetSuffixInterceptor(name, hook); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (t *Type) checkMethod(name string) error {
	if !t.strict {
		return nil
	}
	if _, ok := t.methods[name]; !ok {
		return fmt.Errorf("%w: method %s on %s", model.ErrUnknownMember, name, t.model.TypeID())
	}
	return nil
}
