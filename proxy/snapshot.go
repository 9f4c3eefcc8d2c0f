package proxy

import (
	"bytes"
	"fmt"
	"reflect"
	"sort"

	"github.com/fxamacker/cbor/v2"

	"github.com/chazu/scopeproxy/model"
)

var snapshotEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("proxy: failed to create CBOR enc mode: %v", err))
	}
	snapshotEncMode = em
}

// snapshot is the persisted form of a proxy: the wrapped instance's
// properties keyed by PropertyID.String(). Interceptors are not persisted.
//
// Values are stored in walked form: structs and arrays as positional lists
// covering every field, maps as flat key/value lists and pointers as
// indexes into Refs. Refs[0] stands for the wrapped instance itself.
type snapshot struct {
	TypeID string         `cbor:"1,keyasint"`
	State  map[string]any `cbor:"2,keyasint"`
	Refs   []any          `cbor:"3,keyasint"`
}

// persistable reports whether values of t survive a round trip.
// Funcs and chans have no encoding; non-empty interfaces cannot be decoded
// without knowing the dynamic type.
func persistable(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Func, reflect.Chan, reflect.UnsafePointer:
		return false
	case reflect.Interface:
		return t.NumMethod() == 0
	}
	return true
}

// MarshalBinary encodes the state of the wrapped instance, private
// properties of every declaring type included. Unexported fields of nested
// values are kept as well. Shared pointers and cycles survive the trip.
func (p *Proxy) MarshalBinary() ([]byte, error) {
	snap := snapshot{
		TypeID: p.typ.model.TypeID(),
		State:  make(map[string]any),
	}
	enc := newEncoder(p.wrapped)
	for _, d := range p.typ.model.Properties().Instance() {
		f := p.field(d.Index)
		if !persistable(f.Type()) {
			log.Debugf("%s: not persisting %s (%s)", snap.TypeID, d.ID, f.Type())
			continue
		}
		v, err := enc.encode(f)
		if err != nil {
			return nil, fmt.Errorf("proxy: encode %s: %w", d.ID, err)
		}
		snap.State[d.ID.String()] = v
	}
	snap.Refs = enc.refs
	return snapshotEncMode.Marshal(snap)
}

// Restore decodes a snapshot written by Proxy.MarshalBinary into a fresh
// instance and wraps it. The proxy has no interceptors.
func (t *Type) Restore(data []byte) (*Proxy, error) {
	var snap snapshot
	if err := cbor.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("proxy: unmarshal snapshot: %w", err)
	}
	if snap.TypeID != t.model.TypeID() {
		return nil, fmt.Errorf("%w: snapshot of %s restored as %s", model.ErrUnsupportedTarget, snap.TypeID, t.model.TypeID())
	}

	instance := reflect.New(t.target)
	dec := newDecoder(instance, snap.Refs)
	for _, d := range t.model.Properties().Instance() {
		raw, ok := snap.State[d.ID.String()]
		if !ok {
			continue
		}
		f := exposed(instance.Elem().FieldByIndex(d.Index))
		if err := dec.decode(f, raw); err != nil {
			return nil, fmt.Errorf("proxy: decode %s: %w", d.ID, err)
		}
	}
	return t.New(instance.Interface(), nil, nil)
}

// SnapshotTypeID returns the type ID recorded in a snapshot without
// decoding its state.
func SnapshotTypeID(data []byte) (string, error) {
	var head struct {
		TypeID string `cbor:"1,keyasint"`
	}
	if err := cbor.Unmarshal(data, &head); err != nil {
		return "", fmt.Errorf("proxy: unmarshal snapshot: %w", err)
	}
	if head.TypeID == "" {
		return "", fmt.Errorf("%w: snapshot has no type ID", model.ErrUnsupportedTarget)
	}
	return head.TypeID, nil
}

// encoder turns values into their walked form. Pointers are numbered by
// identity, the same way copier tracks them.
type encoder struct {
	ids  map[visit]uint64
	refs []any
}

// newEncoder seeds the pointer table with the wrapped instance so that
// references back to it resolve to the restored instance.
func newEncoder(root reflect.Value) *encoder {
	return &encoder{
		ids:  map[visit]uint64{{root.Pointer(), root.Type()}: 0},
		refs: []any{nil},
	}
}

func (e *encoder) encode(v reflect.Value) (any, error) {
	v = settled(v)
	switch v.Kind() {
	case reflect.Bool:
		return v.Bool(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return v.Uint(), nil
	case reflect.Float32, reflect.Float64:
		return v.Float(), nil
	case reflect.Complex64, reflect.Complex128:
		c := v.Complex()
		return []any{real(c), imag(c)}, nil
	case reflect.String:
		return v.String(), nil

	case reflect.Pointer:
		if v.IsNil() {
			return nil, nil
		}
		key := visit{v.Pointer(), v.Type()}
		if id, ok := e.ids[key]; ok {
			return id, nil
		}
		id := uint64(len(e.refs))
		e.ids[key] = id
		e.refs = append(e.refs, nil)
		elem, err := e.encode(v.Elem())
		if err != nil {
			return nil, err
		}
		e.refs[id] = elem
		return id, nil

	case reflect.Slice:
		if v.IsNil() {
			return nil, nil
		}
		if v.Type().Elem().Kind() == reflect.Uint8 {
			out := make([]byte, v.Len())
			for i := range out {
				out[i] = byte(v.Index(i).Uint())
			}
			return out, nil
		}
		return e.list(v)

	case reflect.Array:
		return e.list(addressable(v))

	case reflect.Struct:
		v = addressable(v)
		out := make([]any, v.NumField())
		for i := range out {
			f, err := e.encode(exposed(v.Field(i)))
			if err != nil {
				return nil, fmt.Errorf("field %s: %w", v.Type().Field(i).Name, err)
			}
			out[i] = f
		}
		return out, nil

	case reflect.Map:
		if v.IsNil() {
			return nil, nil
		}
		return e.mapEntries(v)

	case reflect.Interface:
		if v.IsNil() || v.Type().NumMethod() > 0 {
			return nil, nil
		}
		dyn := v.Elem()
		if !plain(dyn.Type(), make(map[reflect.Type]bool)) {
			log.Debugf("not persisting dynamic value of type %s", dyn.Type())
			return nil, nil
		}
		return dyn.Interface(), nil
	}

	// funcs, chans, unsafe pointers
	return nil, nil
}

func (e *encoder) list(v reflect.Value) ([]any, error) {
	out := make([]any, v.Len())
	for i := range out {
		item, err := e.encode(v.Index(i))
		if err != nil {
			return nil, err
		}
		out[i] = item
	}
	return out, nil
}

// mapEntries flattens a map to [k0, v0, k1, v1, ...], ordered by the
// canonical encoding of the keys.
func (e *encoder) mapEntries(v reflect.Value) ([]any, error) {
	type entry struct {
		key   reflect.Value
		order []byte
	}
	entries := make([]entry, 0, v.Len())
	for _, k := range v.MapKeys() {
		scratch := &encoder{ids: make(map[visit]uint64)}
		walked, err := scratch.encode(k)
		if err != nil {
			return nil, err
		}
		b, err := snapshotEncMode.Marshal(walked)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry{key: k, order: b})
	}
	sort.Slice(entries, func(i, j int) bool {
		return bytes.Compare(entries[i].order, entries[j].order) < 0
	})

	out := make([]any, 0, 2*len(entries))
	for _, en := range entries {
		k, err := e.encode(en.key)
		if err != nil {
			return nil, err
		}
		val, err := e.encode(v.MapIndex(en.key))
		if err != nil {
			return nil, err
		}
		out = append(out, k, val)
	}
	return out, nil
}

// plain reports whether values of t hold no pointers, funcs, chans or
// interfaces, so CBOR can encode them directly without losing identity.
func plain(t reflect.Type, seen map[reflect.Type]bool) bool {
	if seen[t] {
		return true
	}
	switch t.Kind() {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	case reflect.Slice, reflect.Array:
		seen[t] = true
		return plain(t.Elem(), seen)
	case reflect.Map:
		seen[t] = true
		return plain(t.Key(), seen) && plain(t.Elem(), seen)
	case reflect.Struct:
		seen[t] = true
		for i := 0; i < t.NumField(); i++ {
			if !plain(t.Field(i).Type, seen) {
				return false
			}
		}
		return true
	}
	return false
}

// decoder rebuilds values from their walked form.
type decoder struct {
	refs []any
	ptrs map[uint64]reflect.Value
}

func newDecoder(root reflect.Value, refs []any) *decoder {
	return &decoder{
		refs: refs,
		ptrs: map[uint64]reflect.Value{0: root},
	}
}

// decode stores data into dst, which must be settable.
func (d *decoder) decode(dst reflect.Value, data any) error {
	if data == nil {
		dst.SetZero()
		return nil
	}

	switch dst.Kind() {
	case reflect.Bool:
		b, ok := data.(bool)
		if !ok {
			return mismatch(dst, data)
		}
		dst.SetBool(b)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, ok := asInt(data)
		if !ok || dst.OverflowInt(n) {
			return mismatch(dst, data)
		}
		dst.SetInt(n)

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		n, ok := asUint(data)
		if !ok || dst.OverflowUint(n) {
			return mismatch(dst, data)
		}
		dst.SetUint(n)

	case reflect.Float32, reflect.Float64:
		x, ok := asFloat(data)
		if !ok {
			return mismatch(dst, data)
		}
		dst.SetFloat(x)

	case reflect.Complex64, reflect.Complex128:
		pair, ok := data.([]any)
		if !ok || len(pair) != 2 {
			return mismatch(dst, data)
		}
		re, ok1 := asFloat(pair[0])
		im, ok2 := asFloat(pair[1])
		if !ok1 || !ok2 {
			return mismatch(dst, data)
		}
		dst.SetComplex(complex(re, im))

	case reflect.String:
		s, ok := data.(string)
		if !ok {
			return mismatch(dst, data)
		}
		dst.SetString(s)

	case reflect.Pointer:
		return d.pointer(dst, data)

	case reflect.Slice:
		if b, ok := data.([]byte); ok && dst.Type().Elem().Kind() == reflect.Uint8 {
			s := reflect.MakeSlice(dst.Type(), len(b), len(b))
			for i, x := range b {
				s.Index(i).SetUint(uint64(x))
			}
			dst.Set(s)
			return nil
		}
		items, ok := data.([]any)
		if !ok {
			return mismatch(dst, data)
		}
		s := reflect.MakeSlice(dst.Type(), len(items), len(items))
		for i, item := range items {
			if err := d.decode(s.Index(i), item); err != nil {
				return err
			}
		}
		dst.Set(s)

	case reflect.Array:
		items, ok := data.([]any)
		if !ok || len(items) != dst.Len() {
			return mismatch(dst, data)
		}
		for i, item := range items {
			if err := d.decode(dst.Index(i), item); err != nil {
				return err
			}
		}

	case reflect.Struct:
		fields, ok := data.([]any)
		if !ok || len(fields) != dst.NumField() {
			return mismatch(dst, data)
		}
		for i, f := range fields {
			if err := d.decode(exposed(dst.Field(i)), f); err != nil {
				return fmt.Errorf("field %s: %w", dst.Type().Field(i).Name, err)
			}
		}

	case reflect.Map:
		items, ok := data.([]any)
		if !ok || len(items)%2 != 0 {
			return mismatch(dst, data)
		}
		t := dst.Type()
		m := reflect.MakeMapWithSize(t, len(items)/2)
		for i := 0; i < len(items); i += 2 {
			k := reflect.New(t.Key()).Elem()
			if err := d.decode(k, items[i]); err != nil {
				return err
			}
			v := reflect.New(t.Elem()).Elem()
			if err := d.decode(v, items[i+1]); err != nil {
				return err
			}
			m.SetMapIndex(k, v)
		}
		dst.Set(m)

	case reflect.Interface:
		if dst.Type().NumMethod() > 0 {
			return nil
		}
		dst.Set(reflect.ValueOf(data))
	}

	// funcs, chans and unsafe pointers keep their zero value
	return nil
}

func (d *decoder) pointer(dst reflect.Value, data any) error {
	id, ok := asUint(data)
	if !ok || id >= uint64(len(d.refs)) {
		return fmt.Errorf("%w: bad reference %v for %s", ErrTypeMismatch, data, dst.Type())
	}
	if p, ok := d.ptrs[id]; ok {
		if p.Type() != dst.Type() {
			return fmt.Errorf("%w: reference %d is %s, not %s", ErrTypeMismatch, id, p.Type(), dst.Type())
		}
		dst.Set(p)
		return nil
	}
	p := reflect.New(dst.Type().Elem())
	d.ptrs[id] = p
	dst.Set(p)
	return d.decode(p.Elem(), d.refs[id])
}

func mismatch(dst reflect.Value, data any) error {
	return fmt.Errorf("%w: cannot decode %T into %s", ErrTypeMismatch, data, dst.Type())
}

func asInt(data any) (int64, bool) {
	switch n := data.(type) {
	case int64:
		return n, true
	case uint64:
		if n > 1<<63-1 {
			return 0, false
		}
		return int64(n), true
	}
	return 0, false
}

func asUint(data any) (uint64, bool) {
	switch n := data.(type) {
	case uint64:
		return n, true
	case int64:
		if n < 0 {
			return 0, false
		}
		return uint64(n), true
	}
	return 0, false
}

func asFloat(data any) (float64, bool) {
	switch x := data.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case uint64:
		return float64(x), true
	case int64:
		return float64(x), true
	}
	return 0, false
}
