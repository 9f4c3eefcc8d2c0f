package introspect

import (
	"fmt"
	"go/types"
	"reflect"
	"strings"
	"sync"

	"golang.org/x/tools/go/packages"

	"github.com/chazu/scopeproxy/model"
)

// PackageDescriber describes types by loading their source package.
// Loaded packages are cached per import path.
type PackageDescriber struct {
	dir string

	mu   sync.Mutex
	pkgs map[string]*types.Package
}

// NewPackageDescriber creates a describer that resolves import paths
// relative to dir (empty means the current directory).
func NewPackageDescriber(dir string) *PackageDescriber {
	return &PackageDescriber{
		dir:  dir,
		pkgs: make(map[string]*types.Package),
	}
}

// Describe implements Describer.
func (d *PackageDescriber) Describe(typeID string) (*model.RawMemberSet, error) {
	pkgPath, name, ok := SplitTypeID(typeID)
	if !ok || strings.ContainsAny(name, "[]") {
		return nil, fmt.Errorf("%w: malformed type id %q", model.ErrUnsupportedTarget, typeID)
	}

	pkg, err := d.load(pkgPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", model.ErrUnsupportedTarget, typeID, err)
	}

	obj, ok := pkg.Scope().Lookup(name).(*types.TypeName)
	if !ok {
		return nil, fmt.Errorf("%w: %s not found in %s", model.ErrUnsupportedTarget, name, pkgPath)
	}
	named, ok := obj.Type().(*types.Named)
	if !ok || named.TypeParams().Len() > 0 {
		return nil, fmt.Errorf("%w: %s is not a concrete named type", model.ErrUnsupportedTarget, typeID)
	}
	st, ok := named.Underlying().(*types.Struct)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not a struct", model.ErrUnsupportedTarget, typeID)
	}

	mset := types.NewMethodSet(types.NewPointer(named))
	if mset.Lookup(nil, model.ArtifactMethod) != nil {
		return nil, fmt.Errorf("%w: %s is a proxy artifact", model.ErrUnsupportedTarget, typeID)
	}

	raw := &model.RawMemberSet{
		TypeID:  typeID,
		PkgPath: pkgPath,
		Name:    name,
	}
	w := &typesWalker{raw: raw, visiting: make(map[*types.Named]bool)}
	w.walk(named, st, nil, 0)

	for i := 0; i < mset.Len(); i++ {
		fn, ok := mset.At(i).Obj().(*types.Func)
		if !ok || !fn.Exported() {
			continue
		}
		raw.Methods = append(raw.Methods, methodFromSignature(fn.Name(), fn.Type().(*types.Signature)))
	}

	log.Debugf("loaded %s: %d fields, %d methods", typeID, len(raw.Fields), len(raw.Methods))
	return raw, nil
}

func (d *PackageDescriber) load(importPath string) (*types.Package, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if pkg, ok := d.pkgs[importPath]; ok {
		return pkg, nil
	}

	cfg := &packages.Config{
		Mode: packages.NeedName | packages.NeedTypes,
		Dir:  d.dir,
	}
	pkgs, err := packages.Load(cfg, importPath)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", importPath, err)
	}
	if len(pkgs) == 0 {
		return nil, fmt.Errorf("no packages found for %s", importPath)
	}
	if len(pkgs[0].Errors) > 0 {
		return nil, fmt.Errorf("package errors: %v", pkgs[0].Errors)
	}
	if pkgs[0].Types == nil {
		return nil, fmt.Errorf("type information not available for %s", importPath)
	}

	d.pkgs[importPath] = pkgs[0].Types
	return pkgs[0].Types, nil
}

type typesWalker struct {
	raw      *model.RawMemberSet
	visiting map[*types.Named]bool
}

func (w *typesWalker) walk(named *types.Named, st *types.Struct, prefix []int, depth int) {
	w.visiting[named] = true
	defer delete(w.visiting, named)

	declaring := namedID(named)
	own := make([]int, 0, st.NumFields())

	for i := 0; i < st.NumFields(); i++ {
		f := st.Field(i)
		tag := ParseTag(reflect.StructTag(st.Tag(i)))
		if f.Embedded() && !tag.Skip {
			if en, ok := types.Unalias(f.Type()).(*types.Named); ok && !w.visiting[en] {
				if est, ok := en.Underlying().(*types.Struct); ok {
					w.walk(en, est, indexPath(prefix, i), depth+1)
					continue
				}
			}
		}
		own = append(own, i)
	}

	w.raw.Chain = append(w.raw.Chain, declaring)

	for _, i := range own {
		f := st.Field(i)
		w.raw.Fields = append(w.raw.Fields, model.RawField{
			DeclaringType: declaring,
			Name:          f.Name(),
			Exported:      f.Exported(),
			Type:          TypeRefOfTypes(f.Type()),
			Tag:           ParseTag(reflect.StructTag(st.Tag(i))),
			Depth:         depth,
			Index:         indexPath(prefix, i),
		})
	}
}

func namedID(n *types.Named) string {
	obj := n.Obj()
	if obj.Pkg() == nil {
		return obj.Name()
	}
	return obj.Pkg().Path() + "." + obj.Name()
}

func methodFromSignature(name string, sig *types.Signature) model.MethodDescriptor {
	md := model.MethodDescriptor{
		Name:       name,
		Visibility: model.Public,
	}

	params := sig.Params()
	for i := 0; i < params.Len(); i++ {
		p := params.At(i)
		variadic := sig.Variadic() && i == params.Len()-1
		_, isPtr := types.Unalias(p.Type()).(*types.Pointer)
		md.Params = append(md.Params, model.ParameterDescriptor{
			Name:        paramName(p.Name(), i),
			Type:        TypeRefOfTypes(p.Type()),
			ByReference: variadic || isPtr,
			Variadic:    variadic,
		})
	}

	results := sig.Results()
	for i := 0; i < results.Len(); i++ {
		md.Results = append(md.Results, TypeRefOfTypes(results.At(i).Type()))
	}
	md.ReturnsVoid = results.Len() == 0
	if results.Len() > 0 {
		md.ReturnsErr = isErrorType(results.At(results.Len() - 1).Type())
	}
	return md
}

func isErrorType(t types.Type) bool {
	return types.Identical(t, types.Universe.Lookup("error").Type())
}

// TypeRefOfTypes describes a go/types type as a model.TypeRef.
func TypeRefOfTypes(t types.Type) model.TypeRef {
	t = types.Unalias(t)
	switch tt := t.(type) {
	case *types.Named:
		if isErrorType(tt) {
			return model.TypeRef{Kind: model.KindNamed, Name: "error", Underlying: model.KindInterface}
		}
		obj := tt.Obj()
		ref := model.TypeRef{
			Kind:       model.KindNamed,
			Name:       obj.Name(),
			Underlying: kindOfTypes(tt.Underlying()),
		}
		if obj.Pkg() != nil {
			ref.PkgPath = obj.Pkg().Path()
		}
		if tt.TypeArgs().Len() > 0 {
			ref.Name = types.TypeString(tt, func(*types.Package) string { return "" })
		}
		return ref
	case *types.Basic:
		return model.TypeRef{Kind: model.KindBasic, Name: tt.Name()}
	case *types.Pointer:
		elem := TypeRefOfTypes(tt.Elem())
		return model.TypeRef{Kind: model.KindPointer, Elem: &elem}
	case *types.Slice:
		elem := TypeRefOfTypes(tt.Elem())
		return model.TypeRef{Kind: model.KindSlice, Elem: &elem}
	case *types.Array:
		elem := TypeRefOfTypes(tt.Elem())
		return model.TypeRef{Kind: model.KindArray, Elem: &elem, Len: int(tt.Len())}
	case *types.Map:
		key, elem := TypeRefOfTypes(tt.Key()), TypeRefOfTypes(tt.Elem())
		return model.TypeRef{Kind: model.KindMap, Key: &key, Elem: &elem}
	case *types.Interface:
		if tt.Empty() {
			return model.Any
		}
		return model.TypeRef{Kind: model.KindInterface, Name: tt.String()}
	case *types.Signature:
		return model.TypeRef{Kind: model.KindFunc, Name: tt.String()}
	case *types.Chan:
		elem := TypeRefOfTypes(tt.Elem())
		return model.TypeRef{Kind: model.KindChan, Elem: &elem, Name: tt.String()}
	default:
		return model.TypeRef{Kind: model.KindStruct, Name: t.String()}
	}
}

func kindOfTypes(t types.Type) model.Kind {
	switch t.(type) {
	case *types.Pointer:
		return model.KindPointer
	case *types.Slice:
		return model.KindSlice
	case *types.Array:
		return model.KindArray
	case *types.Map:
		return model.KindMap
	case *types.Interface:
		return model.KindInterface
	case *types.Signature:
		return model.KindFunc
	case *types.Chan:
		return model.KindChan
	case *types.Struct:
		return model.KindStruct
	}
	return model.KindBasic
}
