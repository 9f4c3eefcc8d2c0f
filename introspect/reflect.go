package introspect

import (
	"fmt"
	"reflect"

	"github.com/chazu/scopeproxy/model"
)

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// ReflectDescriber describes types registered in a TypeRegistry.
type ReflectDescriber struct {
	registry *TypeRegistry
}

// NewReflectDescriber creates a describer over the given registry.
// A nil registry gets a fresh one.
func NewReflectDescriber(registry *TypeRegistry) *ReflectDescriber {
	if registry == nil {
		registry = NewTypeRegistry()
	}
	return &ReflectDescriber{registry: registry}
}

// Registry returns the registry backing this describer.
func (d *ReflectDescriber) Registry() *TypeRegistry { return d.registry }

// Describe implements Describer. The type must have been registered.
func (d *ReflectDescriber) Describe(typeID string) (*model.RawMemberSet, error) {
	t, ok := d.registry.Lookup(typeID)
	if !ok {
		return nil, fmt.Errorf("%w: type %s is not registered", model.ErrUnsupportedTarget, typeID)
	}
	return d.DescribeType(t)
}

// DescribeType registers t (T or *T) and describes it.
func (d *ReflectDescriber) DescribeType(t reflect.Type) (*model.RawMemberSet, error) {
	id, err := d.registry.Register(t)
	if err != nil {
		return nil, err
	}
	st, _ := d.registry.Lookup(id)

	raw := &model.RawMemberSet{
		TypeID:  id,
		PkgPath: st.PkgPath(),
		Name:    st.Name(),
	}
	w := &reflectWalker{raw: raw, visiting: make(map[reflect.Type]bool)}
	w.walk(st, nil, 0)

	ptr := reflect.PointerTo(st)
	for i := 0; i < ptr.NumMethod(); i++ {
		m := ptr.Method(i)
		if m.Name == model.ArtifactMethod {
			continue
		}
		raw.Methods = append(raw.Methods, methodFromReflect(m))
	}

	log.Debugf("described %s: %d fields, %d methods", id, len(raw.Fields), len(raw.Methods))
	return raw, nil
}

type reflectWalker struct {
	raw      *model.RawMemberSet
	visiting map[reflect.Type]bool
}

// walk emits the fields of st and of its embedded ancestors, ancestors first.
func (w *reflectWalker) walk(st reflect.Type, prefix []int, depth int) {
	w.visiting[st] = true
	defer delete(w.visiting, st)

	declaring := st.PkgPath() + "." + st.Name()
	own := make([]int, 0, st.NumField())

	for i := 0; i < st.NumField(); i++ {
		f := st.Field(i)
		if isAncestor(f) && !w.visiting[f.Type] {
			w.walk(f.Type, indexPath(prefix, i), depth+1)
			continue
		}
		own = append(own, i)
	}

	w.raw.Chain = append(w.raw.Chain, declaring)

	for _, i := range own {
		f := st.Field(i)
		w.raw.Fields = append(w.raw.Fields, model.RawField{
			DeclaringType: declaring,
			Name:          f.Name,
			Exported:      f.IsExported(),
			Type:          TypeRefOf(f.Type),
			Tag:           ParseTag(f.Tag),
			Depth:         depth,
			Index:         indexPath(prefix, i),
		})
	}
}

// isAncestor reports whether f embeds a named struct by value.
func isAncestor(f reflect.StructField) bool {
	if !f.Anonymous || f.Type.Kind() != reflect.Struct || f.Type.Name() == "" {
		return false
	}
	return !ParseTag(f.Tag).Skip
}

func indexPath(prefix []int, i int) []int {
	out := make([]int, len(prefix)+1)
	copy(out, prefix)
	out[len(prefix)] = i
	return out
}

func methodFromReflect(m reflect.Method) model.MethodDescriptor {
	mt := m.Type
	md := model.MethodDescriptor{
		Name:       m.Name,
		Visibility: model.Public,
	}

	// In(0) is the receiver.
	for i := 1; i < mt.NumIn(); i++ {
		pt := mt.In(i)
		variadic := mt.IsVariadic() && i == mt.NumIn()-1
		md.Params = append(md.Params, model.ParameterDescriptor{
			Name:        paramName("", i-1),
			Type:        TypeRefOf(pt),
			ByReference: variadic || pt.Kind() == reflect.Pointer,
			Variadic:    variadic,
		})
	}

	for i := 0; i < mt.NumOut(); i++ {
		md.Results = append(md.Results, TypeRefOf(mt.Out(i)))
	}
	md.ReturnsVoid = mt.NumOut() == 0
	md.ReturnsErr = mt.NumOut() > 0 && mt.Out(mt.NumOut()-1) == errorType
	return md
}

// TypeRefOf describes a reflect.Type as a model.TypeRef.
func TypeRefOf(t reflect.Type) model.TypeRef {
	if t.Name() != "" {
		if t.PkgPath() == "" {
			if t == errorType {
				return model.TypeRef{Kind: model.KindNamed, Name: "error", Underlying: model.KindInterface}
			}
			return model.TypeRef{Kind: model.KindBasic, Name: t.Name()}
		}
		return model.TypeRef{
			Kind:       model.KindNamed,
			PkgPath:    t.PkgPath(),
			Name:       t.Name(),
			Underlying: kindOf(t),
		}
	}

	switch t.Kind() {
	case reflect.Pointer:
		elem := TypeRefOf(t.Elem())
		return model.TypeRef{Kind: model.KindPointer, Elem: &elem}
	case reflect.Slice:
		elem := TypeRefOf(t.Elem())
		return model.TypeRef{Kind: model.KindSlice, Elem: &elem}
	case reflect.Array:
		elem := TypeRefOf(t.Elem())
		return model.TypeRef{Kind: model.KindArray, Elem: &elem, Len: t.Len()}
	case reflect.Map:
		key, elem := TypeRefOf(t.Key()), TypeRefOf(t.Elem())
		return model.TypeRef{Kind: model.KindMap, Key: &key, Elem: &elem}
	case reflect.Interface:
		if t.NumMethod() == 0 {
			return model.Any
		}
		return model.TypeRef{Kind: model.KindInterface, Name: t.String()}
	case reflect.Func:
		return model.TypeRef{Kind: model.KindFunc, Name: t.String()}
	case reflect.Chan:
		elem := TypeRefOf(t.Elem())
		return model.TypeRef{Kind: model.KindChan, Elem: &elem, Name: t.String()}
	default:
		return model.TypeRef{Kind: model.KindStruct, Name: t.String()}
	}
}

func kindOf(t reflect.Type) model.Kind {
	switch t.Kind() {
	case reflect.Pointer:
		return model.KindPointer
	case reflect.Slice:
		return model.KindSlice
	case reflect.Array:
		return model.KindArray
	case reflect.Map:
		return model.KindMap
	case reflect.Interface:
		return model.KindInterface
	case reflect.Func:
		return model.KindFunc
	case reflect.Chan:
		return model.KindChan
	case reflect.Struct:
		return model.KindStruct
	}
	return model.KindBasic
}
