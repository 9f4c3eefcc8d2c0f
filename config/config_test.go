package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadFull(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `
[proxy]
strict = true
exclude = ["example.com/app.Secret"]

[introspection]
mode = "package"
dir = "./src"

[artifacts]
output = "gen"
package = "gen"
store = ".scopeproxy/artifacts.db"

[log]
verbosity = 2
path = "scopeproxy.log"
`)

	c, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !c.Proxy.Strict {
		t.Error("expected strict")
	}
	if !c.Excluded("example.com/app.Secret") || c.Excluded("example.com/app.Other") {
		t.Errorf("unexpected exclusions %v", c.Proxy.Exclude)
	}
	if c.Introspection.Mode != ModePackage || c.Introspection.Dir != "./src" {
		t.Errorf("introspection = %+v", c.Introspection)
	}
	if c.Log.Verbosity != 2 {
		t.Errorf("verbosity = %d", c.Log.Verbosity)
	}

	abs, _ := filepath.Abs(dir)
	if c.Dir != abs {
		t.Errorf("Dir = %q, want %q", c.Dir, abs)
	}
	if got, want := c.OutputDir(), filepath.Join(abs, "gen"); got != want {
		t.Errorf("OutputDir = %q, want %q", got, want)
	}
	if got, want := c.StorePath(), filepath.Join(abs, ".scopeproxy", "artifacts.db"); got != want {
		t.Errorf("StorePath = %q, want %q", got, want)
	}
	if p := c.LogPath(); p == nil || *p != filepath.Join(abs, "scopeproxy.log") {
		t.Errorf("LogPath = %v", p)
	}
}

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "")

	c, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Introspection.Mode != ModeReflect {
		t.Errorf("mode = %q", c.Introspection.Mode)
	}
	if c.Artifacts.Output != "proxies" || c.Artifacts.Package != "proxies" {
		t.Errorf("artifacts = %+v", c.Artifacts)
	}
	if c.StorePath() != "" {
		t.Errorf("StorePath = %q, want empty", c.StorePath())
	}
	if c.LogPath() != nil {
		t.Error("expected stderr logging")
	}
	if c.Proxy.Strict {
		t.Error("strict should default to false")
	}
}

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("Default().Validate: %v", err)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"unknown mode", "[introspection]\nmode = \"magic\"\n"},
		{"bad package", "[artifacts]\npackage = \"Not-A-Package\"\n"},
		{"verbosity range", "[log]\nverbosity = 9\n"},
		{"bad exclude", "[proxy]\nexclude = [\"nodot\"]\n"},
		{"toml syntax", "[proxy\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeConfig(t, dir, tt.content)
			if _, err := Load(dir); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestLoadMissing(t *testing.T) {
	_, err := Load(t.TempDir())
	if err == nil || !strings.Contains(err.Error(), "cannot read") {
		t.Fatalf("expected read error, got %v", err)
	}
}

func TestFindAndLoad(t *testing.T) {
	root := t.TempDir()
	writeConfig(t, root, "[proxy]\nstrict = true\n")

	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}

	c, err := FindAndLoad(nested)
	if err != nil {
		t.Fatalf("FindAndLoad: %v", err)
	}
	if c == nil || !c.Proxy.Strict {
		t.Fatalf("expected config from %s, got %+v", root, c)
	}
	abs, _ := filepath.Abs(root)
	if c.Dir != abs {
		t.Errorf("Dir = %q, want %q", c.Dir, abs)
	}
}

func TestFindAndLoadNone(t *testing.T) {
	// A temp dir has no scopeproxy.toml above it in any sane environment.
	c, err := FindAndLoad(t.TempDir())
	if err != nil {
		t.Fatalf("FindAndLoad: %v", err)
	}
	if c != nil {
		t.Fatalf("expected nil config, got %+v", c)
	}
}

func TestPackageDir(t *testing.T) {
	c := &Config{Dir: "/work"}
	if got := c.PackageDir(); got != "/work" {
		t.Errorf("PackageDir = %q, want /work", got)
	}
	c.Introspection.Dir = "src"
	if got := c.PackageDir(); got != filepath.Join("/work", "src") {
		t.Errorf("PackageDir = %q", got)
	}
	c.Introspection.Dir = "/abs"
	if got := c.PackageDir(); got != "/abs" {
		t.Errorf("PackageDir = %q, want /abs", got)
	}
}
