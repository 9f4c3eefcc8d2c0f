// Package artifact turns structural models into constructible proxy types.
//
// A Builder receives a model and a dispatch Contract naming the
// construction entry point and hook-registration operations the result
// must expose. RuntimeBuilder produces *proxy.Type values directly;
// SourceBuilder emits Go source for a typed wrapper. Cache memoizes either
// kind, and Store persists generated sources.
package artifact

import (
	"fmt"
	"go/token"

	"github.com/tliron/commonlog"

	"github.com/chazu/scopeproxy/model"
)

var log = commonlog.GetLogger("scopeproxy.artifact")

// Contract names the operations a built proxy type exposes.
type Contract struct {
	// Constructor prefixes the proxy name to form the constructor name,
	// e.g. "New" gives NewValueHolderProxy.
	Constructor string
	SetPrefix   string
	SetSuffix   string
}

// DefaultContract matches the method names of proxy.Proxy.
var DefaultContract = Contract{
	Constructor: "New",
	SetPrefix:   "SetPrefixInterceptor",
	SetSuffix:   "SetSuffixInterceptor",
}

// Validate checks every name is an exported Go identifier.
func (c Contract) Validate() error {
	for _, name := range []string{c.Constructor, c.SetPrefix, c.SetSuffix} {
		if !token.IsIdentifier(name) || !token.IsExported(name) {
			return fmt.Errorf("artifact: invalid contract name %q", name)
		}
	}
	for _, name := range []string{c.SetPrefix, c.SetSuffix} {
		if name == "Proxy" || name == model.ArtifactMethod {
			return fmt.Errorf("artifact: contract name %q is taken by the wrapper", name)
		}
	}
	if c.SetPrefix == c.SetSuffix {
		return fmt.Errorf("artifact: prefix and suffix registration share the name %q", c.SetPrefix)
	}
	return nil
}

func (c Contract) String() string {
	return c.Constructor + "/" + c.SetPrefix + "/" + c.SetSuffix
}

// Builder builds an artifact of kind A from a model.
type Builder[A any] interface {
	Build(m *model.Model, c Contract) (A, error)
}

// BuilderFunc adapts a function to Builder.
type BuilderFunc[A any] func(m *model.Model, c Contract) (A, error)

// Build implements Builder.
func (f BuilderFunc[A]) Build(m *model.Model, c Contract) (A, error) {
	return f(m, c)
}
