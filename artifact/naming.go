package artifact

import (
	"strings"
	"unicode"

	"github.com/chazu/scopeproxy/introspect"
)

// ProxySuffix is appended to target names to form proxy names.
const ProxySuffix = "Proxy"

// ProxyName returns the generated type name for a target type ID.
// e.g. "example.com/pets.Dog" → "DogProxy"
func ProxyName(typeID string) string {
	_, name, ok := introspect.SplitTypeID(typeID)
	if !ok {
		name = typeID
	}
	return toPascal(name) + ProxySuffix
}

// PackageName derives a Go package name from an import path or directory.
// e.g. "example.com/my-proxies" → "myproxies"
func PackageName(path string) string {
	path = strings.TrimRight(path, "/")
	last := path[strings.LastIndex(path, "/")+1:]

	var b strings.Builder
	for _, r := range last {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	name := b.String()
	if name == "" || unicode.IsDigit(rune(name[0])) {
		name = "proxies" + name
	}
	return name
}

// toPascal converts a string to PascalCase.
// Handles hyphenated and underscore-separated names.
func toPascal(s string) string {
	if len(s) == 0 {
		return s
	}

	var b strings.Builder
	nextUpper := true
	for _, r := range s {
		if r == '-' || r == '_' {
			nextUpper = true
			continue
		}
		if nextUpper {
			b.WriteRune(unicode.ToUpper(r))
			nextUpper = false
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}
