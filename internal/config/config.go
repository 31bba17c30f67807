// Package config resolves harness settings.
//
// Settings are layered, later layers winning:
//
//  1. Defaults (fixture directory "test", extension ".dorp")
//  2. A config file: dorpcheck.yaml, dorpcheck.yml or dorpcheck.cue
//  3. Environment variables (DORPCHECK_PROGRAM, DORPCHECK_DIR, ...)
//  4. Command-line flags (applied by the CLI)
//
// YAML files are decoded strictly (unknown keys are rejected). CUE files are
// unified with an embedded #Config schema before decoding.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/xyproto/env/v2"

	"github.com/roach88/dorpcheck/internal/fixture"
)

// Default values.
const (
	DefaultDir = "test"
)

// FileNames are the config file names looked up in the working directory,
// in order.
var FileNames = []string{"dorpcheck.yaml", "dorpcheck.yml", "dorpcheck.cue"}

// Environment variable names.
const (
	EnvProgram     = "DORPCHECK_PROGRAM"
	EnvArgs        = "DORPCHECK_ARGS"
	EnvDir         = "DORPCHECK_DIR"
	EnvExtension   = "DORPCHECK_EXTENSION"
	EnvTimeout     = "DORPCHECK_TIMEOUT"
	EnvConcurrency = "DORPCHECK_CONCURRENCY"
	EnvDatabase    = "DORPCHECK_DB"
	EnvWorkDir     = "DORPCHECK_WORKDIR"
)

// Config holds the resolved harness settings.
type Config struct {
	Program     string        `json:"program"`
	Args        []string      `json:"args,omitempty"`
	Dir         string        `json:"dir"`
	Extension   string        `json:"extension"`
	Timeout     time.Duration `json:"timeout"`
	Concurrency int           `json:"concurrency"`
	Attribute   bool          `json:"attribute"`
	Database    string        `json:"database,omitempty"`
	Filter      []string      `json:"filter,omitempty"`
	WorkDir     string        `json:"workdir,omitempty"`
	Env         []string      `json:"env,omitempty"` // KEY=value, added to the inherited environment
}

// File is the on-disk representation of a config file. Zero values mean
// "not set".
type File struct {
	Program     string   `yaml:"program" json:"program,omitempty"`
	Args        []string `yaml:"args" json:"args,omitempty"`
	Dir         string   `yaml:"dir" json:"dir,omitempty"`
	Extension   string   `yaml:"extension" json:"extension,omitempty"`
	Timeout     string   `yaml:"timeout" json:"timeout,omitempty"`
	Concurrency int      `yaml:"concurrency" json:"concurrency,omitempty"`
	Attribute   bool     `yaml:"attribute" json:"attribute,omitempty"`
	Database    string   `yaml:"database" json:"database,omitempty"`
	Filter      []string `yaml:"filter" json:"filter,omitempty"`
	WorkDir     string   `yaml:"workdir" json:"workdir,omitempty"`
	Env         []string `yaml:"env" json:"env,omitempty"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Dir:       DefaultDir,
		Extension: fixture.DefaultExtension,
	}
}

// FindFile returns the first config file present in dir, or "" if none.
func FindFile(dir string) string {
	for _, name := range FileNames {
		path := filepath.Join(dir, name)
		if info, err := os.Stat(path); err == nil && info.Mode().IsRegular() {
			return path
		}
	}
	return ""
}

// LoadFile reads a config file, choosing the decoder by extension.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	switch ext := filepath.Ext(path); ext {
	case ".yaml", ".yml":
		return decodeYAML(data)
	case ".cue":
		return decodeCUE(path, data)
	default:
		return nil, fmt.Errorf("unsupported config file type %q (want .yaml, .yml or .cue)", ext)
	}
}

// Load resolves defaults, the config file and the environment.
//
// If path is empty, FindFile(".") is used and a missing file is not an
// error. An explicit path must exist.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = FindFile(".")
	}
	if path != "" {
		f, err := LoadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config %s: %w", path, err)
		}
		if err := cfg.ApplyFile(f); err != nil {
			return Config{}, fmt.Errorf("config %s: %w", path, err)
		}
	}

	if err := cfg.ApplyEnv(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ApplyFile overlays the settings present in f.
func (c *Config) ApplyFile(f *File) error {
	if f.Program != "" {
		c.Program = f.Program
	}
	if f.Args != nil {
		c.Args = append([]string(nil), f.Args...)
	}
	if f.Dir != "" {
		c.Dir = f.Dir
	}
	if f.Extension != "" {
		c.Extension = f.Extension
	}
	if f.Timeout != "" {
		d, err := time.ParseDuration(f.Timeout)
		if err != nil {
			return fmt.Errorf("invalid timeout %q: %w", f.Timeout, err)
		}
		c.Timeout = d
	}
	if f.Concurrency != 0 {
		c.Concurrency = f.Concurrency
	}
	if f.Attribute {
		c.Attribute = true
	}
	if f.Database != "" {
		c.Database = f.Database
	}
	if f.Filter != nil {
		c.Filter = append([]string(nil), f.Filter...)
	}
	if f.WorkDir != "" {
		c.WorkDir = f.WorkDir
	}
	if f.Env != nil {
		c.Env = append([]string(nil), f.Env...)
	}
	return nil
}

// ApplyEnv overlays the settings present in the environment.
// DORPCHECK_ARGS is split on whitespace.
func (c *Config) ApplyEnv() error {
	if env.Has(EnvProgram) {
		c.Program = env.Str(EnvProgram, c.Program)
	}
	if env.Has(EnvArgs) {
		c.Args = strings.Fields(env.Str(EnvArgs))
	}
	if env.Has(EnvDir) {
		c.Dir = env.Str(EnvDir, c.Dir)
	}
	if env.Has(EnvExtension) {
		c.Extension = env.Str(EnvExtension, c.Extension)
	}
	if env.Has(EnvTimeout) {
		raw := env.Str(EnvTimeout)
		d, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("%s: invalid duration %q: %w", EnvTimeout, raw, err)
		}
		c.Timeout = d
	}
	if env.Has(EnvConcurrency) {
		raw := env.Str(EnvConcurrency)
		n, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("%s: invalid integer %q: %w", EnvConcurrency, raw, err)
		}
		c.Concurrency = n
	}
	if env.Has(EnvDatabase) {
		c.Database = env.Str(EnvDatabase, c.Database)
	}
	if env.Has(EnvWorkDir) {
		c.WorkDir = env.Str(EnvWorkDir, c.WorkDir)
	}
	return nil
}

// Validate checks that the settings can drive a run.
func (c Config) Validate() error {
	var errs []error
	if c.Program == "" {
		errs = append(errs, errors.New("program is required"))
	}
	if c.Dir == "" {
		errs = append(errs, errors.New("dir is required"))
	}
	if !strings.HasPrefix(c.Extension, ".") {
		errs = append(errs, fmt.Errorf("extension %q must start with '.'", c.Extension))
	}
	if c.Timeout < 0 {
		errs = append(errs, fmt.Errorf("timeout must be non-negative, got %s", c.Timeout))
	}
	if c.Concurrency < 0 {
		errs = append(errs, fmt.Errorf("concurrency must be non-negative, got %d", c.Concurrency))
	}
	for _, kv := range c.Env {
		if key, _, ok := strings.Cut(kv, "="); !ok || key == "" {
			errs = append(errs, fmt.Errorf("env entry %q must have the form KEY=value", kv))
		}
	}
	return errors.Join(errs...)
}
