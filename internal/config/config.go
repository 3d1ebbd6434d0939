package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"
)

// FileName is the optional per-root configuration file.
const FileName = ".patchdir.yaml"

const (
	ApplierNative = "native"
	ApplierGNU    = "gnu"
)

// Dirs names the four sub-trees of a working root.
type Dirs struct {
	Pristine string `yaml:"pristine"`
	Modified string `yaml:"modified"`
	Patches  string `yaml:"patches"`
	Rejects  string `yaml:"rejects"`
}

// Suffix holds the artifact file suffixes.
type Suffix struct {
	Patch  string `yaml:"patch"`
	Reject string `yaml:"reject"`
}

// Config is the resolved configuration of one run.
type Config struct {
	Dirs         Dirs     `yaml:"dirs"`
	Suffix       Suffix   `yaml:"suffix"`
	Context      int      `yaml:"context"`
	Fuzz         int      `yaml:"fuzz"`
	Applier      string   `yaml:"applier"`
	PatchCommand string   `yaml:"patch_command"`
	Exclude      []string `yaml:"exclude"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Dirs: Dirs{
			Pristine: "pristine",
			Modified: "modified",
			Patches:  "patch-store",
			Rejects:  "reject-store",
		},
		Suffix: Suffix{
			Patch:  ".patch",
			Reject: ".rej",
		},
		Context:      3,
		Fuzz:         2,
		Applier:      ApplierNative,
		PatchCommand: "patch",
	}
}

// Load reads path over the defaults. A missing file is not an error when
// optional is set.
func Load(path string, optional bool) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if optional && errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// LoadForRoot loads the optional configuration file of a working root.
func LoadForRoot(root string) (Config, error) {
	return Load(filepath.Join(root, FileName), true)
}

// Validate checks the configuration for values no run can work with.
func (c Config) Validate() error {
	names := map[string]string{
		"pristine": c.Dirs.Pristine,
		"modified": c.Dirs.Modified,
		"patches":  c.Dirs.Patches,
		"rejects":  c.Dirs.Rejects,
	}
	seen := make(map[string]string, len(names))
	for key, name := range names {
		if name == "" {
			return fmt.Errorf("dirs.%s must not be empty", key)
		}
		if strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
			return fmt.Errorf("dirs.%s must be a plain directory name, got %q", key, name)
		}
		if other, dup := seen[name]; dup {
			return fmt.Errorf("dirs.%s and dirs.%s both name %q", key, other, name)
		}
		seen[name] = key
	}
	if c.Suffix.Patch == "" || c.Suffix.Reject == "" {
		return errors.New("artifact suffixes must not be empty")
	}
	if c.Context < 0 {
		return fmt.Errorf("context must be >= 0, got %d", c.Context)
	}
	if c.Fuzz < 0 {
		return fmt.Errorf("fuzz must be >= 0, got %d", c.Fuzz)
	}
	switch c.Applier {
	case ApplierNative, ApplierGNU:
	default:
		return fmt.Errorf("unknown applier %q (want %s or %s)", c.Applier, ApplierNative, ApplierGNU)
	}
	if c.Applier == ApplierGNU && c.PatchCommand == "" {
		return errors.New("patch_command must be set for the gnu applier")
	}
	for _, pattern := range c.Exclude {
		if !doublestar.ValidatePattern(pattern) {
			return fmt.Errorf("invalid exclude pattern %q", pattern)
		}
	}
	return nil
}
