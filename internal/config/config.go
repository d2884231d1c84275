// Package config loads viewc.toml: markup control rules and compile options.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"viewc/internal/diag"
	"viewc/internal/names"
)

// FileName is the configuration file searched for upwards from the
// working directory.
const FileName = "viewc.toml"

// ControlsPackage is the import path of the bundled control library.
const ControlsPackage = "viewc/runtime/controls"

// ControlRule maps a tag prefix (and optionally a tag name) to controls.
//
// A rule with TagName describes a single markup control loaded from Src. A
// rule without TagName exposes every control of the Go package Namespace,
// optionally restricted to the module Assembly.
type ControlRule struct {
	TagPrefix string `toml:"tag_prefix"`
	TagName   string `toml:"tag_name"`
	Namespace string `toml:"namespace"`
	Assembly  string `toml:"assembly"`
	Src       string `toml:"src"`
}

func (r ControlRule) String() string {
	if r.TagName != "" {
		return fmt.Sprintf("<%s:%s> from %s", r.TagPrefix, r.TagName, r.Src)
	}
	return fmt.Sprintf("<%s:*> from package %s", r.TagPrefix, r.Namespace)
}

// IsMatch reports whether the rule covers the tag, case-insensitively.
func (r ControlRule) IsMatch(prefix, name string) bool {
	if !names.Equal(r.TagPrefix, prefix) {
		return false
	}
	return r.TagName == "" || names.Equal(r.TagName, name)
}

// Validate checks that the rule describes exactly one kind of control.
func (r ControlRule) Validate() error {
	fail := func(format string, args ...any) error {
		return diag.Errorf(diag.ResolveInvalidRule, r.TagPrefix+":"+r.TagName, format, args...)
	}
	if strings.TrimSpace(r.TagPrefix) == "" {
		return fail("markup control rule must have a tag_prefix")
	}
	if strings.Contains(r.TagPrefix, ":") {
		return fail("tag_prefix %q must not contain ':'", r.TagPrefix)
	}
	if r.TagName != "" {
		if r.Src == "" {
			return fail("rule for <%s:%s> must set src", r.TagPrefix, r.TagName)
		}
		if r.Namespace != "" || r.Assembly != "" {
			return fail("rule for <%s:%s> cannot set both src and namespace/assembly", r.TagPrefix, r.TagName)
		}
		return nil
	}
	if r.Namespace == "" {
		return fail("rule for prefix %q must set namespace or tag_name and src", r.TagPrefix)
	}
	if r.Src != "" {
		return fail("rule for prefix %q cannot set src without tag_name", r.TagPrefix)
	}
	if r.Assembly != "" && r.Namespace != r.Assembly && !strings.HasPrefix(r.Namespace, r.Assembly+"/") {
		return fail("namespace %q is not part of assembly %q", r.Namespace, r.Assembly)
	}
	return nil
}

// Markup holds the control rules in the order they are evaluated.
type Markup struct {
	Controls []ControlRule `toml:"controls"`
}

// Compile holds the defaults of `viewc compile`.
type Compile struct {
	Package string `toml:"package"`
	Out     string `toml:"out"`
	Jobs    int    `toml:"jobs"`
	Cache   bool   `toml:"cache"`
	// Root is the directory virtual paths of views and markup controls are
	// relative to.
	Root string `toml:"root"`
}

// Config is the decoded configuration.
type Config struct {
	Markup  Markup  `toml:"markup"`
	Compile Compile `toml:"compile"`

	// Path is the file the configuration was loaded from, empty for Default.
	Path string `toml:"-"`
}

// DefaultRule maps the "ui" prefix to the bundled controls.
func DefaultRule() ControlRule {
	return ControlRule{TagPrefix: "ui", Namespace: ControlsPackage, Assembly: "viewc"}
}

// Default returns the configuration used when no viewc.toml exists.
func Default() *Config {
	return &Config{
		Markup: Markup{Controls: []ControlRule{DefaultRule()}},
		Compile: Compile{
			Package: "views",
			Out:     "generated",
			Cache:   true,
			Root:    ".",
		},
	}
}

// Find walks up from startDir looking for viewc.toml.
func Find(startDir string) (string, bool, error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve start directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, FileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("failed to stat %q: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false, nil
}

// Load decodes path on top of Default. Rules from the file come first, the
// built-in "ui" rule is appended unless the file defines that prefix itself.
// Relative roots are resolved against the directory of path.
func Load(path string) (*Config, error) {
	cfg := Default()
	var file Config
	meta, err := toml.DecodeFile(path, &file)
	if err != nil {
		return nil, diag.Wrap(diag.IOConfig, path, err, "%s: failed to parse TOML", path)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, diag.Errorf(diag.IOConfig, path, "%s: unknown key %s", path, undecoded[0].String())
	}
	base := filepath.Dir(path)
	if meta.IsDefined("markup", "controls") {
		cfg.Markup.Controls = file.Markup.Controls
		hasUI := false
		for _, r := range file.Markup.Controls {
			if names.Equal(r.TagPrefix, "ui") {
				hasUI = true
			}
		}
		if !hasUI {
			cfg.Markup.Controls = append(cfg.Markup.Controls, DefaultRule())
		}
	}
	if meta.IsDefined("compile", "package") {
		cfg.Compile.Package = strings.TrimSpace(file.Compile.Package)
		if cfg.Compile.Package == "" {
			return nil, diag.Errorf(diag.IOConfig, path, "%s: [compile].package must not be empty", path)
		}
	}
	if meta.IsDefined("compile", "out") {
		cfg.Compile.Out = file.Compile.Out
	}
	if meta.IsDefined("compile", "jobs") {
		if file.Compile.Jobs < 0 {
			return nil, diag.Errorf(diag.IOConfig, path, "%s: [compile].jobs must not be negative", path)
		}
		cfg.Compile.Jobs = file.Compile.Jobs
	}
	if meta.IsDefined("compile", "cache") {
		cfg.Compile.Cache = file.Compile.Cache
	}
	cfg.Compile.Root = base
	if meta.IsDefined("compile", "root") {
		cfg.Compile.Root = file.Compile.Root
	}
	if !filepath.IsAbs(cfg.Compile.Root) {
		cfg.Compile.Root = filepath.Join(base, cfg.Compile.Root)
	}
	if !filepath.IsAbs(cfg.Compile.Out) {
		cfg.Compile.Out = filepath.Join(base, cfg.Compile.Out)
	}
	cfg.Path = path
	return cfg, nil
}

// LoadFrom finds and loads the configuration governing startDir. found is
// false when Default was returned.
func LoadFrom(startDir string) (cfg *Config, found bool, err error) {
	path, ok, err := Find(startDir)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return Default(), false, nil
	}
	cfg, err = Load(path)
	if err != nil {
		return nil, true, err
	}
	return cfg, true, nil
}
