// Package factory is the entry point for creating proxies.
//
// A Factory runs the whole pipeline for an instance: exclusion check,
// introspection, classification, a cached proxy type build and finally
// construction. Generated wrappers call Factory.CreateProxy from their
// constructors.
package factory

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/tliron/commonlog"

	"github.com/chazu/scopeproxy/artifact"
	"github.com/chazu/scopeproxy/config"
	"github.com/chazu/scopeproxy/introspect"
	"github.com/chazu/scopeproxy/model"
	"github.com/chazu/scopeproxy/proxy"
)

var log = commonlog.GetLogger("scopeproxy.factory")

// Factory creates proxies. Safe for concurrent use.
type Factory struct {
	registry  *introspect.TypeRegistry
	describer introspect.Describer
	strict    bool
	excluded  map[string]bool
	pkg       string
	store     *artifact.Store

	types   *artifact.Cache[*proxy.Type]
	sources *artifact.Cache[*artifact.Source]

	mu     sync.RWMutex
	models map[string]*model.Model
}

// Option configures a Factory.
type Option func(*Factory)

// WithConfig applies the [proxy], [introspection] and [artifacts] sections.
func WithConfig(c *config.Config) Option {
	return func(f *Factory) {
		if c == nil {
			return
		}
		f.strict = c.Proxy.Strict
		for _, id := range c.Proxy.Exclude {
			f.excluded[id] = true
		}
		if c.Introspection.Mode == config.ModePackage {
			f.describer = introspect.NewPackageDescriber(c.PackageDir())
		}
		f.pkg = c.Artifacts.Package
	}
}

// WithDescriber replaces the default reflection-based describer.
func WithDescriber(d introspect.Describer) Option {
	return func(f *Factory) { f.describer = d }
}

// WithStrict makes hook registration reject names that are not methods of
// the target type.
func WithStrict(strict bool) Option {
	return func(f *Factory) { f.strict = strict }
}

// WithExcluded refuses to proxy the given type IDs.
func WithExcluded(typeIDs ...string) Option {
	return func(f *Factory) {
		for _, id := range typeIDs {
			f.excluded[id] = true
		}
	}
}

// WithSourcePackage sets the package name of generated sources.
func WithSourcePackage(pkg string) Option {
	return func(f *Factory) { f.pkg = pkg }
}

// WithStore persists generated sources in store.
func WithStore(store *artifact.Store) Option {
	return func(f *Factory) { f.store = store }
}

// New creates a factory.
func New(opts ...Option) *Factory {
	f := &Factory{
		registry: introspect.NewTypeRegistry(),
		excluded: make(map[string]bool),
		pkg:      "proxies",
		models:   make(map[string]*model.Model),
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.describer == nil {
		f.describer = introspect.NewReflectDescriber(f.registry)
	}

	f.types = artifact.NewCache[*proxy.Type](
		artifact.NewRuntimeBuilder(f.registry, proxy.WithStrict(f.strict)),
	)
	var sources artifact.Builder[*artifact.Source] = artifact.NewSourceBuilder(f.pkg)
	if f.store != nil {
		sources = artifact.NewStoredBuilder(f.store, sources)
	}
	f.sources = artifact.NewCache[*artifact.Source](sources)
	return f
}

// Registry returns the type registry used to resolve targets.
func (f *Factory) Registry() *introspect.TypeRegistry { return f.registry }

// Excluded reports whether typeID may not be proxied.
func (f *Factory) Excluded(typeID string) bool { return f.excluded[typeID] }

// Model returns the classified model of instance's type (T or *T).
func (f *Factory) Model(instance any) (*model.Model, error) {
	id, err := f.register(reflect.TypeOf(instance))
	if err != nil {
		return nil, err
	}
	return f.ModelOf(id)
}

// ModelOf returns the classified model of the type with the given ID.
// Models are computed once per type.
func (f *Factory) ModelOf(typeID string) (*model.Model, error) {
	if f.Excluded(typeID) {
		return nil, fmt.Errorf("%w: %s is excluded", model.ErrUnsupportedTarget, typeID)
	}

	f.mu.RLock()
	m, ok := f.models[typeID]
	f.mu.RUnlock()
	if ok {
		return m, nil
	}

	log.Debugf("describing %s", typeID)
	raw, err := f.describer.Describe(typeID)
	if err != nil {
		return nil, err
	}
	m, err = model.Classify(raw)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if existing, ok := f.models[typeID]; ok {
		return existing, nil
	}
	f.models[typeID] = m
	return m, nil
}

// Type returns the proxy type for instance's type.
func (f *Factory) Type(instance any) (*proxy.Type, error) {
	m, err := f.Model(instance)
	if err != nil {
		return nil, err
	}
	return f.types.Get(m, artifact.DefaultContract)
}

// CreateProxy wraps instance, a non-nil pointer to a named struct, with the
// given interceptors.
func (f *Factory) CreateProxy(instance any, prefix map[string]proxy.PrefixInterceptor, suffix map[string]proxy.SuffixInterceptor) (*proxy.Proxy, error) {
	if _, ok := instance.(model.Artifact); ok {
		return nil, fmt.Errorf("%w: %T is already a proxy", model.ErrUnsupportedTarget, instance)
	}
	typ, err := f.Type(instance)
	if err != nil {
		return nil, err
	}
	return typ.New(instance, prefix, suffix)
}

// Restore rebuilds a proxy from a snapshot written by Proxy.MarshalBinary.
// The snapshot's type must be known to the factory.
func (f *Factory) Restore(data []byte) (*proxy.Proxy, error) {
	id, err := proxy.SnapshotTypeID(data)
	if err != nil {
		return nil, err
	}
	if _, ok := f.registry.Lookup(id); !ok {
		return nil, fmt.Errorf("%w: type %s is not registered", model.ErrUnsupportedTarget, id)
	}
	m, err := f.ModelOf(id)
	if err != nil {
		return nil, err
	}
	typ, err := f.types.Get(m, artifact.DefaultContract)
	if err != nil {
		return nil, err
	}
	return typ.Restore(data)
}

// Generate returns the typed wrapper source for typeID under contract c.
func (f *Factory) Generate(typeID string, c artifact.Contract) (*artifact.Source, error) {
	m, err := f.ModelOf(typeID)
	if err != nil {
		return nil, err
	}
	return f.sources.Get(m, c)
}

func (f *Factory) register(t reflect.Type) (string, error) {
	if id, ok := f.registry.LookupByType(t); ok {
		return id, nil
	}
	id, err := f.registry.Register(t)
	if err != nil {
		return "", err
	}
	log.Debugf("registered %s", id)
	return id, nil
}
