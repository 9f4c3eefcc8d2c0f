// Package model holds the structural description of a proxy target type:
// its classified properties and callable methods.
package model

import (
	"crypto/sha256"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Visibility is the access level of a member.
type Visibility uint8

const (
	Public Visibility = iota
	Protected
	Private
)

func (v Visibility) String() string {
	switch v {
	case Public:
		return "public"
	case Protected:
		return "protected"
	case Private:
		return "private"
	}
	return fmt.Sprintf("Visibility(%d)", uint8(v))
}

// PropertyID identifies a property by the type that declares it and its name.
// Private properties of different ancestors may share a Name; their IDs differ.
type PropertyID struct {
	DeclaringType string `cbor:"1,keyasint"`
	Name          string `cbor:"2,keyasint"`
}

func (id PropertyID) String() string {
	return id.DeclaringType + "." + id.Name
}

// PropertyDescriptor describes one instance property.
type PropertyDescriptor struct {
	ID         PropertyID `cbor:"1,keyasint"`
	Visibility Visibility `cbor:"2,keyasint"`
	Type       TypeRef    `cbor:"3,keyasint"`

	Untyped       bool `cbor:"4,keyasint"`
	Nullable      bool `cbor:"5,keyasint"`
	HasDefault    bool `cbor:"6,keyasint"`
	Referenceable bool `cbor:"7,keyasint"`
	Unsettable    bool `cbor:"8,keyasint"`

	// Index is the field index path from the target struct, as used by
	// reflect.Value.FieldByIndex.
	Index []int `cbor:"9,keyasint"`
}

// Name is a shorthand for d.ID.Name.
func (d PropertyDescriptor) Name() string { return d.ID.Name }

// IsNullableOrUntyped reports whether the property may hold no value.
func (d PropertyDescriptor) IsNullableOrUntyped() bool {
	return d.Untyped || d.Nullable
}

// ParameterDescriptor describes one method parameter.
type ParameterDescriptor struct {
	Name        string  `cbor:"1,keyasint"`
	Type        TypeRef `cbor:"2,keyasint"`
	ByReference bool    `cbor:"3,keyasint"`
	Variadic    bool    `cbor:"4,keyasint"`
}

// MethodDescriptor describes one callable instance method.
type MethodDescriptor struct {
	Name        string                `cbor:"1,keyasint"`
	Params      []ParameterDescriptor `cbor:"2,keyasint"`
	Results     []TypeRef             `cbor:"3,keyasint"`
	ReturnsVoid bool                  `cbor:"4,keyasint"`
	ReturnsErr  bool                  `cbor:"5,keyasint"` // last result is error
	Visibility  Visibility            `cbor:"6,keyasint"`
}

// IsVariadic reports whether the last parameter is variadic.
func (m MethodDescriptor) IsVariadic() bool {
	return len(m.Params) > 0 && m.Params[len(m.Params)-1].Variadic
}

// RawField is a field as discovered by a describer, before classification.
type RawField struct {
	DeclaringType string
	Name          string
	Exported      bool
	Type          TypeRef
	Tag           Tag
	Depth         int // embedding depth below the target; 0 = declared on the target
	Index         []int
}

// Tag is the parsed `proxy:"..."` struct tag of a field.
type Tag struct {
	Skip      bool
	Protected bool
	Lazy      bool
}

// RawMemberSet is the unclassified member list of a target type.
// Fields are ordered root-to-derived: deeper embeddings come first.
type RawMemberSet struct {
	TypeID  string
	PkgPath string
	Name    string
	Chain   []string // declaring types, root first, target last
	Fields  []RawField
	Methods []MethodDescriptor
}

// Model is the immutable structural description of one target type.
type Model struct {
	typeID  string
	pkgPath string
	name    string
	chain   []string
	props   Properties
	methods []MethodDescriptor
	byName  map[string]int
}

func newModel(raw *RawMemberSet, props Properties, methods []MethodDescriptor) *Model {
	m := &Model{
		typeID:  raw.TypeID,
		pkgPath: raw.PkgPath,
		name:    raw.Name,
		chain:   append([]string(nil), raw.Chain...),
		props:   props,
		methods: methods,
		byName:  make(map[string]int, len(methods)),
	}
	for i, md := range methods {
		m.byName[md.Name] = i
	}
	return m
}

// TypeID returns the target's identifier, "pkgpath.Name".
func (m *Model) TypeID() string { return m.typeID }

// PkgPath returns the import path of the package declaring the target.
func (m *Model) PkgPath() string { return m.pkgPath }

// Name returns the target type's unqualified name.
func (m *Model) Name() string { return m.name }

// Chain returns the declaring types of the inheritance chain, root first.
func (m *Model) Chain() []string { return append([]string(nil), m.chain...) }

// Properties returns the classified property set.
func (m *Model) Properties() Properties { return m.props }

// Methods returns the callable methods in declaration order.
func (m *Model) Methods() []MethodDescriptor {
	return append([]MethodDescriptor(nil), m.methods...)
}

// Method looks up a method by name.
func (m *Model) Method(name string) (MethodDescriptor, bool) {
	i, ok := m.byName[name]
	if !ok {
		return MethodDescriptor{}, false
	}
	return m.methods[i], true
}

// HasMethod reports whether the model declares the named method.
func (m *Model) HasMethod(name string) bool {
	_, ok := m.byName[name]
	return ok
}

// Filter returns a derived model with the given identities removed from
// every property view. Absent identities are ignored.
func (m *Model) Filter(ids ...PropertyID) *Model {
	d := *m
	d.props = m.props.Filter(ids...)
	return &d
}

// FilterStrict is Filter, but fails with ErrUnknownMember when an identity
// is not part of the model.
func (m *Model) FilterStrict(ids ...PropertyID) (*Model, error) {
	for _, id := range ids {
		if _, ok := m.props.Lookup(id); !ok {
			return nil, fmt.Errorf("%w: property %s on %s", ErrUnknownMember, id, m.typeID)
		}
	}
	return m.Filter(ids...), nil
}

// fingerprintDoc is the canonical encoding input of Fingerprint.
type fingerprintDoc struct {
	TypeID     string               `cbor:"1,keyasint"`
	Chain      []string             `cbor:"2,keyasint"`
	Properties []PropertyDescriptor `cbor:"3,keyasint"`
	Methods    []MethodDescriptor   `cbor:"4,keyasint"`
}

var fingerprintMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("model: failed to create CBOR enc mode: %v", err))
	}
	fingerprintMode = em
}

// Fingerprint returns a stable digest of the model's structure. Two models
// with the same fingerprint produce the same proxy artifacts.
func (m *Model) Fingerprint() [32]byte {
	data, err := fingerprintMode.Marshal(fingerprintDoc{
		TypeID:     m.typeID,
		Chain:      m.chain,
		Properties: m.props.Instance(),
		Methods:    m.methods,
	})
	if err != nil {
		// Every field is a plain value; encoding cannot fail.
		panic(fmt.Sprintf("model: fingerprint %s: %v", m.typeID, err))
	}
	return sha256.Sum256(data)
}
