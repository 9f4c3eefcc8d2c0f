// Package introspect discovers the members of proxy target types.
//
// Two describers are provided:
//   - ReflectDescriber works on types linked into the running program
//   - PackageDescriber loads source packages with go/packages and keeps
//     parameter names, which reflection cannot see
//
// Both walk the embedding chain root-to-derived and produce a
// model.RawMemberSet ready for model.Classify.
package introspect

import (
	"reflect"
	"strconv"
	"strings"

	"github.com/tliron/commonlog"

	"github.com/chazu/scopeproxy/model"
)

var log = commonlog.GetLogger("scopeproxy.introspect")

// Describer produces the raw member set of a type identified by ID.
// It fails with model.ErrUnsupportedTarget when the type cannot be described,
// and never returns a partial set.
type Describer interface {
	Describe(typeID string) (*model.RawMemberSet, error)
}

// TagKey is the struct tag key read by the describers.
const TagKey = "proxy"

// ParseTag reads the `proxy:"..."` options of a struct tag.
// Recognized options: "-" (skip), "protected", "lazy".
func ParseTag(tag reflect.StructTag) model.Tag {
	var t model.Tag
	v, ok := tag.Lookup(TagKey)
	if !ok {
		return t
	}
	for _, opt := range strings.Split(v, ",") {
		switch strings.TrimSpace(opt) {
		case "-":
			t.Skip = true
		case "protected":
			t.Protected = true
		case "lazy":
			t.Lazy = true
		}
	}
	return t
}

// SplitTypeID splits "pkgpath.Name" into its import path and type name.
func SplitTypeID(typeID string) (pkgPath, name string, ok bool) {
	i := strings.LastIndex(typeID, ".")
	if i <= 0 || i == len(typeID)-1 {
		return "", "", false
	}
	return typeID[:i], typeID[i+1:], true
}

func paramName(name string, i int) string {
	if name == "" || name == "_" {
		return "arg" + strconv.Itoa(i)
	}
	return name
}
