package config

import (
	"fmt"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/elorm116/java-cicd-demo/fs"
)

// Load reads and parses the configuration file at path.
func Load(fsys fs.Filesystem, path string) (*Config, error) {
	data, err := fsys.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %q: %w", path, err)
	}
	cfg, err := Parse(string(data))
	if err != nil {
		return nil, fmt.Errorf("config %q: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes TOML input over the defaults. The file is decoded into
// raw sections first, then each section lands in its typed struct;
// anything left over is an unknown section or key and fails the parse.
func Parse(input string) (*Config, error) {
	var sections map[string]toml.Primitive
	md, err := toml.Decode(input, &sections)
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}

	cfg := Default()
	known := map[string]any{
		"project":  &cfg.Project,
		"maven":    &cfg.Maven,
		"image":    &cfg.Image,
		"registry": &cfg.Registry,
		"deploy":   &cfg.Deploy,
		"git":      &cfg.Git,
		"archive":  &cfg.Archive,
		"history":  &cfg.History,
	}

	for name, prim := range sections {
		dst, ok := known[name]
		if !ok {
			return nil, fmt.Errorf("%w: [%s]", ErrUnknownSection, name)
		}
		if err := md.PrimitiveDecode(prim, dst); err != nil {
			return nil, fmt.Errorf("section [%s]: %w", name, err)
		}
	}

	if unknown := md.Undecoded(); len(unknown) > 0 {
		keys := make([]string, len(unknown))
		for i, k := range unknown {
			keys[i] = k.String()
		}
		sort.Strings(keys)
		return nil, fmt.Errorf("%w: %s", ErrUnknownKey, strings.Join(keys, ", "))
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every section.
func (c *Config) Validate() error {
	checks := []struct {
		name    string
		section interface{ Validate() error }
	}{
		{"project", &c.Project},
		{"maven", &c.Maven},
		{"image", &c.Image},
		{"registry", &c.Registry},
		{"deploy", &c.Deploy},
		{"git", &c.Git},
		{"archive", &c.Archive},
		{"history", &c.History},
	}
	for _, check := range checks {
		if err := check.section.Validate(); err != nil {
			return fmt.Errorf("section [%s]: %w", check.name, err)
		}
	}
	return nil
}
