package proxy

import (
	"fmt"
	"reflect"

	"github.com/chazu/scopeproxy/model"
)

func (p *Proxy) property(name string) (model.PropertyDescriptor, error) {
	d, ok := p.typ.accessible[name]
	if !ok {
		return d, fmt.Errorf("%w: property %s on %s", model.ErrUnknownMember, name, p.typ.model.TypeID())
	}
	return d, nil
}

// Get reads an accessible property from the wrapped instance.
func (p *Proxy) Get(name string) (any, error) {
	d, err := p.property(name)
	if err != nil {
		return nil, err
	}
	return p.field(d.Index).Interface(), nil
}

// Set writes an accessible property on the wrapped instance. nil stores
// the zero value of a nilable property.
func (p *Proxy) Set(name string, value any) error {
	d, err := p.property(name)
	if err != nil {
		return err
	}
	f := p.field(d.Index)
	if value == nil {
		if !nilable(f.Kind()) {
			return fmt.Errorf("%w: nil for %s property %s", ErrTypeMismatch, f.Type(), name)
		}
		f.Set(reflect.Zero(f.Type()))
		return nil
	}
	v := reflect.ValueOf(value)
	if !v.Type().AssignableTo(f.Type()) {
		return fmt.Errorf("%w: %s for %s property %s", ErrTypeMismatch, v.Type(), f.Type(), name)
	}
	f.Set(v)
	return nil
}

// Isset reports whether an accessible property exists and holds a value.
// Nil values of nilable properties count as unset. Unknown names are
// reported as unset, not as an error.
func (p *Proxy) Isset(name string) bool {
	d, ok := p.typ.accessible[name]
	if !ok {
		return false
	}
	f := p.field(d.Index)
	return !nilable(f.Kind()) || !f.IsNil()
}

// Ref returns a pointer to the storage of a referenceable accessible
// property. Writes through it are visible on both sides.
func (p *Proxy) Ref(name string) (any, error) {
	d, err := p.property(name)
	if err != nil {
		return nil, err
	}
	if !d.Referenceable {
		return nil, fmt.Errorf("%w: %s on %s", ErrNotReferenceable, name, p.typ.model.TypeID())
	}
	return p.field(d.Index).Addr().Interface(), nil
}

// Unset always fails: a proxied member cannot be reverted to an absent
// state.
func (p *Proxy) Unset(name string) error {
	return fmt.Errorf("%w: %s on %s", ErrUnsetUnsupported, name, p.typ.model.TypeID())
}
