package artifact

import (
	"fmt"

	"github.com/chazu/scopeproxy/introspect"
	"github.com/chazu/scopeproxy/model"
	"github.com/chazu/scopeproxy/proxy"
)

// RuntimeBuilder binds models to types registered in a TypeRegistry.
type RuntimeBuilder struct {
	registry *introspect.TypeRegistry
	opts     []proxy.TypeOption
}

// NewRuntimeBuilder creates a builder resolving targets through registry.
func NewRuntimeBuilder(registry *introspect.TypeRegistry, opts ...proxy.TypeOption) *RuntimeBuilder {
	return &RuntimeBuilder{registry: registry, opts: opts}
}

// Build implements Builder. Proxy types expose the hook-registration
// methods of proxy.Proxy, so the contract must use those names.
func (b *RuntimeBuilder) Build(m *model.Model, c Contract) (*proxy.Type, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if c.SetPrefix != DefaultContract.SetPrefix || c.SetSuffix != DefaultContract.SetSuffix {
		return nil, fmt.Errorf("artifact: runtime proxies cannot rename hook registration (%s)", c)
	}
	t, ok := b.registry.Lookup(m.TypeID())
	if !ok {
		return nil, fmt.Errorf("%w: %s is not registered", model.ErrUnsupportedTarget, m.TypeID())
	}
	typ, err := proxy.NewType(m, t, b.opts...)
	if err != nil {
		return nil, err
	}
	log.Debugf("built runtime proxy type for %s", m.TypeID())
	return typ, nil
}
