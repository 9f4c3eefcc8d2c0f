// Package config handles scopeproxy.toml configuration.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/BurntSushi/toml"
)

// FileName is the configuration file looked up by Load and FindAndLoad.
const FileName = "scopeproxy.toml"

// Introspection modes.
const (
	ModeReflect = "reflect"
	ModePackage = "package"
)

// Config represents a scopeproxy.toml file.
type Config struct {
	Proxy         Proxy         `toml:"proxy" json:"proxy"`
	Introspection Introspection `toml:"introspection" json:"introspection"`
	Artifacts     Artifacts     `toml:"artifacts" json:"artifacts"`
	Log           Log           `toml:"log" json:"log"`

	// Dir is the directory containing the scopeproxy.toml file (set at load time).
	Dir string `toml:"-" json:"-"`
}

// Proxy configures proxy construction.
type Proxy struct {
	Strict  bool     `toml:"strict" json:"strict"`
	Exclude []string `toml:"exclude" json:"exclude"`
}

// Introspection selects how target types are described.
type Introspection struct {
	Mode string `toml:"mode" json:"mode"`
	Dir  string `toml:"dir" json:"dir"`
}

// Artifacts configures generated sources.
type Artifacts struct {
	Output  string `toml:"output" json:"output"`
	Package string `toml:"package" json:"package"`
	Store   string `toml:"store" json:"store"`
}

// Log configures commonlog.
type Log struct {
	Verbosity int    `toml:"verbosity" json:"verbosity"`
	Path      string `toml:"path" json:"path"`
}

//go:embed schema.cue
var schemaSource string

// Default returns the configuration used when no file is present.
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

func (c *Config) applyDefaults() {
	if c.Introspection.Mode == "" {
		c.Introspection.Mode = ModeReflect
	}
	if c.Artifacts.Output == "" {
		c.Artifacts.Output = "proxies"
	}
	if c.Artifacts.Package == "" {
		c.Artifacts.Package = "proxies"
	}
	if c.Proxy.Exclude == nil {
		c.Proxy.Exclude = []string{}
	}
}

// Validate checks c against the embedded CUE schema.
func (c *Config) Validate() error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource)
	if err := schema.Err(); err != nil {
		return fmt.Errorf("config schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Config"))
	v := def.Unify(ctx.Encode(c))
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// Load parses a scopeproxy.toml file from the given directory.
func Load(dir string) (*Config, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var c Config
	if err := toml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	c.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &c, nil
}

// FindAndLoad walks up from startDir to find a scopeproxy.toml file,
// then loads and returns it. Returns nil if no file is found.
func FindAndLoad(startDir string) (*Config, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

// OutputDir returns the absolute directory generated sources are written to.
func (c *Config) OutputDir() string {
	return c.resolve(c.Artifacts.Output)
}

// StorePath returns the absolute path of the artifact store, or "" when
// no store is configured.
func (c *Config) StorePath() string {
	if c.Artifacts.Store == "" {
		return ""
	}
	return c.resolve(c.Artifacts.Store)
}

// PackageDir returns the directory source packages are resolved from.
func (c *Config) PackageDir() string {
	if c.Introspection.Dir == "" {
		return c.Dir
	}
	return c.resolve(c.Introspection.Dir)
}

// LogPath returns the log file path, or nil to log to stderr.
func (c *Config) LogPath() *string {
	if c.Log.Path == "" {
		return nil
	}
	p := c.resolve(c.Log.Path)
	return &p
}

// Excluded reports whether typeID is listed in proxy.exclude.
func (c *Config) Excluded(typeID string) bool {
	for _, id := range c.Proxy.Exclude {
		if id == typeID {
			return true
		}
	}
	return false
}

func (c *Config) resolve(p string) string {
	if filepath.IsAbs(p) || c.Dir == "" {
		return p
	}
	return filepath.Join(c.Dir, p)
}
