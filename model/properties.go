package model

// Properties is an ordered, immutable set of property descriptors with
// filtering views. Every method returns fresh slices or a new Properties;
// the receiver is never modified.
type Properties struct {
	list []PropertyDescriptor
}

// NewProperties builds a property set from descriptors, keeping their order.
// It does not check identities; use Classify for that.
func NewProperties(list []PropertyDescriptor) Properties {
	return Properties{list: append([]PropertyDescriptor(nil), list...)}
}

// Instance returns every property, in order.
func (p Properties) Instance() []PropertyDescriptor {
	return append([]PropertyDescriptor(nil), p.list...)
}

// Len returns the number of properties.
func (p Properties) Len() int { return len(p.list) }

// Empty reports whether there are no properties.
func (p Properties) Empty() bool { return len(p.list) == 0 }

// Public returns the public properties.
func (p Properties) Public() []PropertyDescriptor {
	return p.where(func(d PropertyDescriptor) bool { return d.Visibility == Public })
}

// Protected returns the protected properties.
func (p Properties) Protected() []PropertyDescriptor {
	return p.where(func(d PropertyDescriptor) bool { return d.Visibility == Protected })
}

// Private returns the private properties of every declaring type.
func (p Properties) Private() []PropertyDescriptor {
	return p.where(func(d PropertyDescriptor) bool { return d.Visibility == Private })
}

// Accessible returns public and protected properties: the ones reachable
// by name through the proxy.
func (p Properties) Accessible() []PropertyDescriptor {
	return p.where(func(d PropertyDescriptor) bool { return d.Visibility != Private })
}

// PrivateGroup is the set of private properties declared by one type.
type PrivateGroup struct {
	DeclaringType string
	Properties    []PropertyDescriptor
}

// GroupedPrivate returns private properties grouped by declaring type.
// Groups appear in the order their first property appears.
func (p Properties) GroupedPrivate() []PrivateGroup {
	var groups []PrivateGroup
	at := make(map[string]int)
	for _, d := range p.list {
		if d.Visibility != Private {
			continue
		}
		i, ok := at[d.ID.DeclaringType]
		if !ok {
			i = len(groups)
			at[d.ID.DeclaringType] = i
			groups = append(groups, PrivateGroup{DeclaringType: d.ID.DeclaringType})
		}
		groups[i].Properties = append(groups[i].Properties, d)
	}
	return groups
}

// Lookup finds a property by identity.
func (p Properties) Lookup(id PropertyID) (PropertyDescriptor, bool) {
	for _, d := range p.list {
		if d.ID == id {
			return d, true
		}
	}
	return PropertyDescriptor{}, false
}

// ByName finds an accessible property by name.
func (p Properties) ByName(name string) (PropertyDescriptor, bool) {
	for _, d := range p.list {
		if d.Visibility != Private && d.ID.Name == name {
			return d, true
		}
	}
	return PropertyDescriptor{}, false
}

// OnlyNullable keeps properties that may hold nil, plus untyped ones.
func (p Properties) OnlyNullable() Properties {
	return Properties{list: p.where(PropertyDescriptor.IsNullableOrUntyped)}
}

// OnlyUnsettable keeps properties whose absence can be observed and reverted.
func (p Properties) OnlyUnsettable() Properties {
	return Properties{list: p.where(func(d PropertyDescriptor) bool { return d.Unsettable })}
}

// OnlyNonReferenceable keeps properties that must not be exposed as a
// live reference.
func (p Properties) OnlyNonReferenceable() Properties {
	return Properties{list: p.where(func(d PropertyDescriptor) bool { return !d.Referenceable })}
}

// Filter removes the given identities from every view.
func (p Properties) Filter(ids ...PropertyID) Properties {
	if len(ids) == 0 {
		return p
	}
	drop := make(map[PropertyID]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	return Properties{list: p.where(func(d PropertyDescriptor) bool { return !drop[d.ID] })}
}

func (p Properties) where(keep func(PropertyDescriptor) bool) []PropertyDescriptor {
	var out []PropertyDescriptor
	for _, d := range p.list {
		if keep(d) {
			out = append(out, d)
		}
	}
	return out
}
