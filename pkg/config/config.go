// Package config handles stackasm.toml project configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/chazu/stackasm/pkg/asm"
	"github.com/chazu/stackasm/pkg/bytecode"
)

// FileName is the configuration file looked for in a project directory.
const FileName = "stackasm.toml"

// DefaultStorePath is the artifact database location, relative to Dir.
const DefaultStorePath = ".stackasm/artifacts.db"

// Config represents a stackasm.toml file.
type Config struct {
	Assembler Assembler `toml:"assembler"`
	Store     Store     `toml:"store"`
	Log       Log       `toml:"log"`

	// Dir is the directory containing the stackasm.toml file (set at load time).
	Dir string `toml:"-"`
}

// Assembler configures compilation defaults.
type Assembler struct {
	Width              string `toml:"width"`
	AllowMissingReturn bool   `toml:"allow-missing-return"`
}

// Store configures the artifact database.
type Store struct {
	Path string `toml:"path"`
}

// Log configures logging.
type Log struct {
	Verbosity int `toml:"verbosity"`
}

// Default returns the configuration used when no file exists.
func Default(dir string) *Config {
	c := &Config{Dir: dir}
	c.applyDefaults()
	return c
}

// Load parses a stackasm.toml file from the given directory.
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
	if _, err := bytecode.ParseWidth(c.Assembler.Width); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &c, nil
}

// FindAndLoad walks up from startDir to find a stackasm.toml file,
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
			return nil, nil
		}
		dir = parent
	}
}

func (c *Config) applyDefaults() {
	if c.Assembler.Width == "" {
		c.Assembler.Width = bytecode.DefaultWidth.String()
	}
	if c.Store.Path == "" {
		c.Store.Path = DefaultStorePath
	}
}

// Width returns the configured operand width.
func (c *Config) Width() bytecode.Width {
	w, err := bytecode.ParseWidth(c.Assembler.Width)
	if err != nil {
		return bytecode.DefaultWidth
	}
	return w
}

// StorePath returns the absolute artifact database path.
func (c *Config) StorePath() string {
	if filepath.IsAbs(c.Store.Path) {
		return c.Store.Path
	}
	return filepath.Join(c.Dir, c.Store.Path)
}

// AsmOptions returns the compile options the configuration implies.
func (c *Config) AsmOptions() []asm.Option {
	opts := []asm.Option{asm.WithWidth(c.Width())}
	if c.Assembler.AllowMissingReturn {
		opts = append(opts, asm.AllowMissingReturn())
	}
	return opts
}
