package artifact_test

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"golang.org/x/tools/go/packages"

	"github.com/chazu/scopeproxy/artifact"
	"github.com/chazu/scopeproxy/internal/assets"
	"github.com/chazu/scopeproxy/introspect"
	"github.com/chazu/scopeproxy/model"
)

// TestGeneratedSourcesTypeCheck writes generated wrappers into packages
// inside the module and type-checks them with go/packages.
func TestGeneratedSourcesTypeCheck(t *testing.T) {
	if testing.Short() {
		t.Skip("loads packages through the go tool")
	}

	root, err := filepath.Abs("..")
	if err != nil {
		t.Fatal(err)
	}
	dir, err := os.MkdirTemp(filepath.Join(root, "internal"), "gencheck")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })

	instances := []any{
		&assets.ValueHolder{},
		&assets.Calculator{},
		&assets.VoidCounter{},
		&assets.BaseClass{},
		&assets.ClassWithSelfHint{},
		&assets.ClassWithVariadicMethod{},
		&assets.ClassWithByRefVariadicMethod{},
		&assets.ClassWithCollidingPrivateInheritedProperties{},
		&assets.Node{},
		&assets.Derived{},
		&assets.Envelope{},
	}

	pd := introspect.NewPackageDescriber(root)
	byPackage := func(instance any) *model.Model {
		raw, err := pd.Describe(typeIDOf(instance))
		if err != nil {
			t.Fatalf("Describe: %v", err)
		}
		m, err := model.Classify(raw)
		if err != nil {
			t.Fatalf("Classify: %v", err)
		}
		return m
	}
	byReflect := func(instance any) *model.Model { return describe(t, nil, instance) }

	variants := []struct {
		pkg      string
		contract artifact.Contract
		model    func(any) *model.Model
	}{
		{"plain", artifact.DefaultContract, byReflect},
		{"renamed", artifact.Contract{Constructor: "Make", SetPrefix: "Before", SetSuffix: "Get"}, byReflect},
		{"named", artifact.DefaultContract, byPackage},
	}
	for _, v := range variants {
		pkgDir := filepath.Join(dir, v.pkg)
		if err := os.Mkdir(pkgDir, 0o755); err != nil {
			t.Fatal(err)
		}
		b := artifact.NewSourceBuilder(v.pkg)
		for _, instance := range instances {
			src, err := b.Build(v.model(instance), v.contract)
			if err != nil {
				t.Fatalf("%s: Build(%T): %v", v.pkg, instance, err)
			}
			if err := os.WriteFile(filepath.Join(pkgDir, src.FileName()), src.Code, 0o644); err != nil {
				t.Fatal(err)
			}
		}
	}

	rel, err := filepath.Rel(root, dir)
	if err != nil {
		t.Fatal(err)
	}
	cfg := &packages.Config{
		Mode: packages.NeedName | packages.NeedTypes,
		Dir:  root,
	}
	pkgs, err := packages.Load(cfg, "./"+filepath.ToSlash(rel)+"/...")
	if err != nil {
		t.Fatalf("packages.Load: %v", err)
	}
	if len(pkgs) != len(variants) {
		t.Fatalf("loaded %d packages, want %d", len(pkgs), len(variants))
	}
	for _, pkg := range pkgs {
		for _, e := range pkg.Errors {
			t.Errorf("%s: %v", pkg.PkgPath, e)
		}
	}
}

func typeIDOf(instance any) string {
	t := reflect.TypeOf(instance).Elem()
	return t.PkgPath() + "." + t.Name()
}
