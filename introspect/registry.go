package introspect

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/chazu/scopeproxy/model"
)

var artifactType = reflect.TypeOf((*model.Artifact)(nil)).Elem()

// TypeID returns the identifier of a proxy target type: "pkgpath.Name" of
// the struct, accepting either T or *T.
func TypeID(t reflect.Type) (string, error) {
	st, err := structOf(t)
	if err != nil {
		return "", err
	}
	return st.PkgPath() + "." + st.Name(), nil
}

// structOf unwraps one pointer level and checks the result is a named struct
// that can be proxied.
func structOf(t reflect.Type) (reflect.Type, error) {
	if t == nil {
		return nil, fmt.Errorf("%w: nil type", model.ErrUnsupportedTarget)
	}
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w: %s is not a struct", model.ErrUnsupportedTarget, t)
	}
	if t.Name() == "" || t.PkgPath() == "" {
		return nil, fmt.Errorf("%w: %s is not a named type", model.ErrUnsupportedTarget, t)
	}
	if reflect.PointerTo(t).Implements(artifactType) {
		return nil, fmt.Errorf("%w: %s is a proxy artifact", model.ErrUnsupportedTarget, t)
	}
	return t, nil
}

// TypeRegistry maps type IDs to struct types and back.
// Safe for concurrent registration and lookup.
type TypeRegistry struct {
	mu     sync.RWMutex
	byID   map[string]reflect.Type
	byType map[reflect.Type]string
}

// NewTypeRegistry creates an empty registry.
func NewTypeRegistry() *TypeRegistry {
	return &TypeRegistry{
		byID:   make(map[string]reflect.Type),
		byType: make(map[reflect.Type]string),
	}
}

// Register adds a struct type (given as T or *T) and returns its ID.
// Registering the same type again returns the existing ID.
func (r *TypeRegistry) Register(t reflect.Type) (string, error) {
	st, err := structOf(t)
	if err != nil {
		return "", err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if id, ok := r.byType[st]; ok {
		return id, nil
	}
	id := st.PkgPath() + "." + st.Name()
	r.byID[id] = st
	r.byType[st] = id
	return id, nil
}

// Lookup returns the struct type registered under id.
func (r *TypeRegistry) Lookup(id string) (reflect.Type, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.byID[id]
	return t, ok
}

// LookupByType returns the ID of a registered type (T or *T).
func (r *TypeRegistry) LookupByType(t reflect.Type) (string, bool) {
	if t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byType[t]
	return id, ok
}

// Count returns the number of registered types.
func (r *TypeRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}
