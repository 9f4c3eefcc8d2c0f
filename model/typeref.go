package model

import (
	"strconv"
	"strings"
)

// Kind classifies a TypeRef.
type Kind string

const (
	KindBasic     Kind = "basic"     // builtin scalar: string, int, bool, ...
	KindNamed     Kind = "named"     // declared type, possibly in another package
	KindPointer   Kind = "pointer"   // *Elem
	KindSlice     Kind = "slice"     // []Elem
	KindArray     Kind = "array"     // [Len]Elem
	KindMap       Kind = "map"       // map[Key]Elem
	KindInterface Kind = "interface" // unnamed interface; Name is "any" when empty
	KindFunc      Kind = "func"
	KindChan      Kind = "chan"
	KindStruct    Kind = "struct" // unnamed struct literal type
)

// TypeRef is a structured, describer-independent description of a Go type.
// It carries enough information to render the type in generated source.
type TypeRef struct {
	Kind    Kind     `cbor:"1,keyasint"`
	PkgPath string   `cbor:"2,keyasint,omitempty"`
	Name    string   `cbor:"3,keyasint,omitempty"`
	Elem    *TypeRef `cbor:"4,keyasint,omitempty"`
	Key     *TypeRef `cbor:"5,keyasint,omitempty"`
	Len     int      `cbor:"6,keyasint,omitempty"`

	// Underlying is the kind behind a named type, used for nullability.
	Underlying Kind `cbor:"7,keyasint,omitempty"`
}

// Any is the TypeRef of the empty interface.
var Any = TypeRef{Kind: KindInterface, Name: "any"}

// IsEmptyInterface reports whether t is `any` / `interface{}`.
func (t TypeRef) IsEmptyInterface() bool {
	return t.Kind == KindInterface && t.Name == "any"
}

// Nilable reports whether a value of this type can be nil.
func (t TypeRef) Nilable() bool {
	k := t.Kind
	if k == KindNamed {
		k = t.Underlying
	}
	switch k {
	case KindPointer, KindSlice, KindMap, KindInterface, KindFunc, KindChan:
		return true
	}
	return false
}

// String renders the type qualified by package name, e.g. "*assets.EmptyClass".
func (t TypeRef) String() string {
	var b strings.Builder
	t.write(&b)
	return b.String()
}

func (t TypeRef) write(b *strings.Builder) {
	switch t.Kind {
	case KindBasic, KindInterface:
		b.WriteString(t.Name)
	case KindNamed:
		if t.PkgPath != "" {
			b.WriteString(t.PkgPath[strings.LastIndex(t.PkgPath, "/")+1:])
			b.WriteByte('.')
		}
		b.WriteString(t.Name)
	case KindPointer:
		b.WriteByte('*')
		t.elem().write(b)
	case KindSlice:
		b.WriteString("[]")
		t.elem().write(b)
	case KindArray:
		b.WriteString("[" + strconv.Itoa(t.Len) + "]")
		t.elem().write(b)
	case KindMap:
		b.WriteString("map[")
		t.key().write(b)
		b.WriteByte(']')
		t.elem().write(b)
	default:
		if t.Name != "" {
			b.WriteString(t.Name)
			return
		}
		b.WriteString(string(t.Kind))
	}
}

func (t TypeRef) elem() TypeRef {
	if t.Elem == nil {
		return Any
	}
	return *t.Elem
}

func (t TypeRef) key() TypeRef {
	if t.Key == nil {
		return Any
	}
	return *t.Key
}
