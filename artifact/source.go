package artifact

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"go/token"
	"reflect"
	"strconv"
	"strings"

	"github.com/dave/jennifer/jen"

	"github.com/chazu/scopeproxy/model"
	"github.com/chazu/scopeproxy/proxy"
)

const (
	modelPkg   = "github.com/chazu/scopeproxy/model"
	proxyPkg   = "github.com/chazu/scopeproxy/proxy"
	factoryPkg = "github.com/chazu/scopeproxy/factory"
)

// embeddedField is the name of the *proxy.Proxy field of every wrapper.
const embeddedField = "Proxy"

// proxyMethods holds the method names promoted from the embedded
// *proxy.Proxy. A wrapper method of the same name hides the promoted one.
var proxyMethods = func() map[string]bool {
	t := reflect.TypeOf((*proxy.Proxy)(nil))
	names := make(map[string]bool, t.NumMethod())
	for i := 0; i < t.NumMethod(); i++ {
		names[t.Method(i).Name] = true
	}
	return names
}()

// Source is a generated typed proxy wrapper.
type Source struct {
	TypeID      string
	Package     string
	Name        string
	Fingerprint [32]byte
	Contract    Contract
	Code        []byte
	Skipped     []SkippedMethod
}

// FileName returns the conventional file name for the source.
func (s *Source) FileName() string {
	return strings.ToLower(s.Name) + "_gen.go"
}

// SkippedMethod records a method that has no typed forwarder.
type SkippedMethod struct {
	Method string `cbor:"1,keyasint"`
	Reason string `cbor:"2,keyasint"`
}

// SourceBuilder emits Go source for proxy wrappers with jennifer. The
// wrapper embeds *proxy.Proxy, is constructed through a factory.Factory,
// and forwards every renderable method through Proxy.Call.
type SourceBuilder struct {
	pkg string
}

// NewSourceBuilder creates a builder emitting files in package pkg.
func NewSourceBuilder(pkg string) *SourceBuilder {
	return &SourceBuilder{pkg: pkg}
}

// Build implements Builder.
func (b *SourceBuilder) Build(m *model.Model, c Contract) (*Source, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if !token.IsIdentifier(b.pkg) {
		return nil, fmt.Errorf("artifact: invalid package name %q", b.pkg)
	}
	if !token.IsExported(m.Name()) {
		return nil, fmt.Errorf("%w: %s is not exported", model.ErrUnsupportedTarget, m.TypeID())
	}

	g := &generator{
		model:    m,
		contract: c,
		name:     ProxyName(m.TypeID()),
	}
	g.findShadowed()
	fp := m.Fingerprint()

	f := jen.NewFile(b.pkg)
	f.HeaderComment("Code generated by scopeproxy. DO NOT EDIT.")
	f.HeaderComment("Model fingerprint: " + hex.EncodeToString(fp[:]))

	g.generateType(f)
	f.Line()
	g.generateConstructor(f)
	f.Line()
	g.generateContract(f)
	for _, md := range m.Methods() {
		g.generateMethod(f, md)
	}

	var buf bytes.Buffer
	if err := f.Render(&buf); err != nil {
		return nil, fmt.Errorf("artifact: render %s: %w", g.name, err)
	}

	for _, s := range g.skipped {
		log.Warningf("%s: skipped %s: %s", m.TypeID(), s.Method, s.Reason)
	}
	return &Source{
		TypeID:      m.TypeID(),
		Package:     b.pkg,
		Name:        g.name,
		Fingerprint: fp,
		Contract:    c,
		Code:        buf.Bytes(),
		Skipped:     g.skipped,
	}, nil
}

type generator struct {
	model    *model.Model
	contract Contract
	name     string
	skipped  []SkippedMethod
	shadowed []string
}

// findShadowed collects the wrapper methods that hide a promoted
// *proxy.Proxy method: renamed hook registrations and forwarders alike.
func (g *generator) findShadowed() {
	seen := make(map[string]bool)
	add := func(name string) {
		if proxyMethods[name] && !seen[name] {
			seen[name] = true
			g.shadowed = append(g.shadowed, name)
		}
	}
	if g.contract.SetPrefix != DefaultContract.SetPrefix {
		add(g.contract.SetPrefix)
	}
	if g.contract.SetSuffix != DefaultContract.SetSuffix {
		add(g.contract.SetSuffix)
	}
	for _, md := range g.model.Methods() {
		if !g.reserved(md.Name) {
			add(md.Name)
		}
	}
}

func (g *generator) target() *jen.Statement {
	return jen.Qual(g.model.PkgPath(), g.model.Name())
}

func (g *generator) generateType(f *jen.File) {
	f.Commentf("%s intercepts calls to %s.", g.name, g.model.Name())
	if len(g.shadowed) > 0 {
		f.Comment("//")
		f.Commentf("Wrapper methods %s hide the promoted *proxy.Proxy methods of the same name;",
			strings.Join(g.shadowed, ", "))
		f.Commentf("reach those through the embedded %s field.", embeddedField)
	}
	f.Type().Id(g.name).Struct(
		jen.Op("*").Qual(proxyPkg, embeddedField),
	)
	f.Line()
	f.Var().Id("_").Qual(modelPkg, "Artifact").Op("=").Parens(jen.Op("*").Id(g.name)).Parens(jen.Nil())
}

func (g *generator) generateConstructor(f *jen.File) {
	ctor := g.contract.Constructor + g.name
	f.Commentf("%s wraps instance in a %s.", ctor, g.name)
	f.Func().Id(ctor).Params(
		jen.Id("f").Op("*").Qual(factoryPkg, "Factory"),
		jen.Id("instance").Op("*").Add(g.target()),
		jen.Id("prefix").Map(jen.String()).Qual(proxyPkg, "PrefixInterceptor"),
		jen.Id("suffix").Map(jen.String()).Qual(proxyPkg, "SuffixInterceptor"),
	).Params(jen.Op("*").Id(g.name), jen.Error()).Block(
		jen.List(jen.Id("p"), jen.Err()).Op(":=").Id("f").Dot("CreateProxy").Call(
			jen.Id("instance"), jen.Id("prefix"), jen.Id("suffix"),
		),
		jen.If(jen.Err().Op("!=").Nil()).Block(jen.Return(jen.Nil(), jen.Err())),
		jen.Return(jen.Op("&").Id(g.name).Values(jen.Dict{
			jen.Id(embeddedField): jen.Id("p"),
		}), jen.Nil()),
	)
}

// generateContract adds forwarders when the contract renames hook
// registration.
func (g *generator) generateContract(f *jen.File) {
	hooks := []struct{ name, target, hook string }{
		{g.contract.SetPrefix, DefaultContract.SetPrefix, "PrefixInterceptor"},
		{g.contract.SetSuffix, DefaultContract.SetSuffix, "SuffixInterceptor"},
	}
	for _, h := range hooks {
		if h.name == h.target {
			continue
		}
		f.Func().Params(jen.Id("px").Op("*").Id(g.name)).Id(h.name).Params(
			jen.Id("method").String(),
			jen.Id("hook").Qual(proxyPkg, h.hook),
		).Error().Block(
			jen.Return(jen.Id("px").Dot(embeddedField).Dot(h.target).Call(jen.Id("method"), jen.Id("hook"))),
		)
		f.Line()
	}
}

func (g *generator) reserved(name string) bool {
	switch name {
	case g.contract.SetPrefix, g.contract.SetSuffix, model.ArtifactMethod, embeddedField:
		return true
	}
	return false
}

func (g *generator) generateMethod(f *jen.File, md model.MethodDescriptor) {
	if md.Name == embeddedField {
		g.skip(md.Name, "collides with the embedded Proxy field")
		return
	}
	if g.reserved(md.Name) {
		g.skip(md.Name, "collides with the proxy contract")
		return
	}

	params := make([]jen.Code, len(md.Params))
	args := []jen.Code{jen.Lit(md.Name)}
	for i, p := range md.Params {
		name := safeName(p.Name, i)
		typ := p.Type
		if p.Variadic {
			typ = elemOf(p.Type)
		}
		code, err := typeCode(typ)
		if err != nil {
			g.skip(md.Name, fmt.Sprintf("parameter %s: %v", p.Name, err))
			return
		}
		if p.Variadic {
			params[i] = jen.Id(name).Op("...").Add(code)
		} else {
			params[i] = jen.Id(name).Add(code)
		}
		args = append(args, jen.Id(name))
	}

	values := md.Results
	if md.ReturnsErr {
		values = values[:len(values)-1]
	}
	results := make([]jen.Code, 0, len(md.Results))
	types := make([]jen.Code, len(values))
	for i, r := range values {
		code, err := typeCode(r)
		if err != nil {
			g.skip(md.Name, fmt.Sprintf("result %d: %v", i, err))
			return
		}
		types[i] = code
		results = append(results, jen.Id("r"+strconv.Itoa(i)).Add(code))
	}
	if md.ReturnsErr {
		results = append(results, jen.Err().Error())
	}

	// fail is the reaction to a dispatch error.
	fail := jen.Panic(jen.Err())
	if md.ReturnsErr {
		fail = jen.Return()
	}

	var body []jen.Code
	switch {
	case len(values) == 0 && !md.ReturnsErr:
		body = append(body,
			jen.If(
				jen.List(jen.Id("_"), jen.Err()).Op(":=").Id("px").Dot(embeddedField).Dot("Call").Call(args...),
				jen.Err().Op("!=").Nil(),
			).Block(fail),
		)
	case len(values) == 0:
		body = append(body,
			jen.List(jen.Id("_"), jen.Err()).Op("=").Id("px").Dot(embeddedField).Dot("Call").Call(args...),
			jen.Return(),
		)
	default:
		body = append(body,
			jen.List(jen.Id("out"), jen.Err()).Op(":=").Id("px").Dot(embeddedField).Dot("Call").Call(args...),
			jen.If(jen.Err().Op("!=").Nil()).Block(fail),
		)
		if len(values) == 1 {
			body = append(body, assignResult(0, types[0], jen.Id("out"), fail))
		} else {
			body = append(body,
				jen.List(jen.Id("vals"), jen.Err()).Op(":=").Qual(proxyPkg, "Results").Call(jen.Id("out"), jen.Lit(len(values))),
				jen.If(jen.Err().Op("!=").Nil()).Block(fail),
			)
			for i := range values {
				body = append(body, assignResult(i, types[i], jen.Id("vals").Index(jen.Lit(i)), fail))
			}
		}
		body = append(body, jen.Return())
	}

	f.Commentf("%s forwards to %s.%s.", md.Name, g.model.Name(), md.Name)
	f.Func().Params(jen.Id("px").Op("*").Id(g.name)).Id(md.Name).Params(params...).Params(results...).Block(body...)
	f.Line()
}

func assignResult(i int, typ jen.Code, from jen.Code, fail jen.Code) jen.Code {
	return jen.If(
		jen.List(jen.Id("r"+strconv.Itoa(i)), jen.Err()).Op("=").Qual(proxyPkg, "As").Types(typ).Call(from),
		jen.Err().Op("!=").Nil(),
	).Block(fail)
}

func (g *generator) skip(method, reason string) {
	g.skipped = append(g.skipped, SkippedMethod{Method: method, Reason: reason})
}

var errUnrenderable = errors.New("type cannot be referenced from generated code")

// typeCode renders t as jennifer code.
func typeCode(t model.TypeRef) (*jen.Statement, error) {
	switch t.Kind {
	case model.KindBasic:
		return jen.Id(t.Name), nil
	case model.KindNamed:
		if t.PkgPath == "" {
			return jen.Id(t.Name), nil
		}
		if strings.ContainsAny(t.Name, "[]") || !token.IsExported(t.Name) {
			return nil, fmt.Errorf("%w: %s", errUnrenderable, t)
		}
		return jen.Qual(t.PkgPath, t.Name), nil
	case model.KindInterface:
		if t.IsEmptyInterface() {
			return jen.Any(), nil
		}
	case model.KindPointer, model.KindSlice, model.KindArray:
		elem, err := typeCode(elemOf(t))
		if err != nil {
			return nil, err
		}
		switch t.Kind {
		case model.KindPointer:
			return jen.Op("*").Add(elem), nil
		case model.KindSlice:
			return jen.Index().Add(elem), nil
		}
		return jen.Index(jen.Lit(t.Len)).Add(elem), nil
	case model.KindMap:
		if t.Key == nil || t.Elem == nil {
			break
		}
		key, err := typeCode(*t.Key)
		if err != nil {
			return nil, err
		}
		elem, err := typeCode(*t.Elem)
		if err != nil {
			return nil, err
		}
		return jen.Map(key).Add(elem), nil
	}
	return nil, fmt.Errorf("%w: %s", errUnrenderable, t)
}

func elemOf(t model.TypeRef) model.TypeRef {
	if t.Elem == nil {
		return model.Any
	}
	return *t.Elem
}

// safeName keeps parameter names clear of keywords and generated locals.
func safeName(name string, i int) string {
	if name == "" || name == "_" {
		return "arg" + strconv.Itoa(i)
	}
	switch name {
	case "px", "out", "vals", "err":
		return name + "_"
	}
	if token.IsKeyword(name) || (len(name) > 1 && name[0] == 'r' && isDigits(name[1:])) {
		return name + "_"
	}
	return name
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
