package model

import (
	"fmt"

	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("scopeproxy.model")

// Classify turns a raw member set into a structural model.
//
// Fields are visited root-to-derived. A public or protected field replaces
// any shallower-visited accessible field of the same name, keeping the
// earlier position. Private fields are keyed by (declaring type, name) and
// never replace one another.
//
// A type that embeds the same ancestor along two paths is rejected: the
// two copies of the ancestor's fields would share identities.
func Classify(raw *RawMemberSet) (*Model, error) {
	if raw == nil {
		return nil, fmt.Errorf("%w: no member set", ErrUnsupportedTarget)
	}
	declared := make(map[string]bool, len(raw.Chain))
	for _, t := range raw.Chain {
		if declared[t] {
			return nil, fmt.Errorf("%w: %s embeds %s more than once", ErrUnsupportedTarget, raw.TypeID, t)
		}
		declared[t] = true
	}

	var list []PropertyDescriptor
	accessible := make(map[string]int) // name -> position in list
	seen := make(map[PropertyID]bool)

	for _, f := range raw.Fields {
		if f.Tag.Skip {
			continue
		}
		d := describe(f)

		if d.Visibility != Private {
			if i, ok := accessible[d.ID.Name]; ok {
				delete(seen, list[i].ID)
				log.Debugf("%s: %s shadows %s", raw.TypeID, d.ID, list[i].ID)
				list[i] = d
				if seen[d.ID] {
					return nil, fmt.Errorf("%w: duplicate property %s on %s", ErrInvariantViolation, d.ID, raw.TypeID)
				}
				seen[d.ID] = true
				continue
			}
		}

		if seen[d.ID] {
			return nil, fmt.Errorf("%w: duplicate property %s on %s", ErrInvariantViolation, d.ID, raw.TypeID)
		}
		seen[d.ID] = true
		if d.Visibility != Private {
			accessible[d.ID.Name] = len(list)
		}
		list = append(list, d)
	}

	methods := make([]MethodDescriptor, 0, len(raw.Methods))
	names := make(map[string]bool, len(raw.Methods))
	for _, md := range raw.Methods {
		if names[md.Name] {
			return nil, fmt.Errorf("%w: duplicate method %s on %s", ErrInvariantViolation, md.Name, raw.TypeID)
		}
		names[md.Name] = true
		methods = append(methods, md)
	}

	return newModel(raw, Properties{list: list}, methods), nil
}

func describe(f RawField) PropertyDescriptor {
	vis := Private
	if f.Exported {
		vis = Public
	}
	if f.Tag.Protected {
		vis = Protected
	}

	untyped := f.Type.IsEmptyInterface()
	hasDefault := !f.Tag.Lazy

	return PropertyDescriptor{
		ID:            PropertyID{DeclaringType: f.DeclaringType, Name: f.Name},
		Visibility:    vis,
		Type:          f.Type,
		Untyped:       untyped,
		Nullable:      untyped || f.Type.Nilable(),
		HasDefault:    hasDefault,
		Referenceable: untyped || hasDefault,
		Unsettable:    untyped || hasDefault,
		Index:         append([]int(nil), f.Index...),
	}
}
