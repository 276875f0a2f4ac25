package gen

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/syssam/daogen/compiler/diag"
	"github.com/syssam/daogen/compiler/load"
)

// DefaultHeader is written at the top of every generated file.
const DefaultHeader = "// Code generated by daogen. DO NOT EDIT."

// ConfigFile is the name of the optional project configuration file.
const ConfigFile = "daogen.yaml"

// Config holds the process-wide generator settings.
type Config struct {
	// Dir is the directory package patterns are resolved in.
	Dir string
	// BuildFlags are passed to the build system when loading packages.
	BuildFlags []string
	// Dialect selects the placeholder style and the default key strategy.
	Dialect Dialect
	// Package is the import path code is generated into. Empty means the
	// package declaring the repository.
	Package string
	// Target is the directory generated files are written to. Empty means
	// the directory of the repository's package.
	Target string
	// Header is the comment written at the top of every file.
	Header string
	// Defaults holds the process-wide method configuration.
	Defaults load.Config
	// Sink receives diagnostics.
	Sink diag.Sink
	// Workers bounds the number of files rendered concurrently.
	Workers int
}

// Option configures code generation.
type Option func(*Config) error

// WithDir sets the directory package patterns are resolved in.
func WithDir(dir string) Option {
	return func(c *Config) error {
		c.Dir = dir
		return nil
	}
}

// WithBuildFlags sets custom build flags to use when loading packages.
func WithBuildFlags(flags ...string) Option {
	return func(c *Config) error {
		c.BuildFlags = append(c.BuildFlags, flags...)
		return nil
	}
}

// WithDialect selects the SQL dialect by name.
func WithDialect(name string) Option {
	return func(c *Config) error {
		d, err := LookupDialect(name)
		if err != nil {
			return err
		}
		c.Dialect = d
		return nil
	}
}

// WithPackage sets the output package import path.
func WithPackage(pkg string) Option {
	return func(c *Config) error {
		if pkg == "" {
			return NewConfigError("package", nil, "package cannot be empty")
		}
		c.Package = pkg
		return nil
	}
}

// WithTarget sets the output directory.
func WithTarget(dir string) Option {
	return func(c *Config) error {
		if dir == "" {
			return NewConfigError("target", nil, "target directory cannot be empty")
		}
		c.Target = dir
		return nil
	}
}

// WithHeader sets the file header comment.
func WithHeader(header string) Option {
	return func(c *Config) error {
		c.Header = header
		return nil
	}
}

// WithDefault sets a process-wide method configuration value, such as
// WithDefault("batch_size", "500").
func WithDefault(key, value string) Option {
	return func(c *Config) error {
		if err := ValidateSetting(key, value); err != nil {
			return err
		}
		if c.Defaults == nil {
			c.Defaults = make(load.Config)
		}
		c.Defaults[key] = value
		return nil
	}
}

// WithLogger reports diagnostics to l.
func WithLogger(l *slog.Logger) Option {
	return func(c *Config) error {
		c.Sink = diag.NewSlogSink(l)
		return nil
	}
}

// WithSink reports diagnostics to s.
func WithSink(s diag.Sink) Option {
	return func(c *Config) error {
		if s == nil {
			return NewConfigError("sink", nil, "sink cannot be nil")
		}
		c.Sink = s
		return nil
	}
}

// WithWorkers bounds the number of files rendered concurrently.
func WithWorkers(n int) Option {
	return func(c *Config) error {
		if n < 1 {
			return NewConfigError("workers", n, "must be at least 1")
		}
		c.Workers = n
		return nil
	}
}

// fileConfig is the layout of daogen.yaml.
type fileConfig struct {
	Dialect    string         `yaml:"dialect"`
	Package    string         `yaml:"package"`
	Target     string         `yaml:"target"`
	Header     *string        `yaml:"header"`
	BuildFlags []string       `yaml:"build_flags"`
	Defaults   map[string]any `yaml:"defaults"`
}

// WithConfigFile applies the settings of a daogen.yaml file. A missing
// file is an error; use WithOptionalConfigFile to ignore it.
func WithConfigFile(path string) Option {
	return func(c *Config) error {
		data, err := os.ReadFile(path)
		if err != nil {
			return NewConfigError("config", path, err.Error())
		}
		return c.applyFile(path, data)
	}
}

// WithOptionalConfigFile is like WithConfigFile but ignores a missing file.
func WithOptionalConfigFile(path string) Option {
	return func(c *Config) error {
		data, err := os.ReadFile(path)
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		if err != nil {
			return NewConfigError("config", path, err.Error())
		}
		return c.applyFile(path, data)
	}
}

func (c *Config) applyFile(path string, data []byte) error {
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return NewConfigError("config", path, err.Error())
	}
	var opts []Option
	if fc.Dialect != "" {
		opts = append(opts, WithDialect(fc.Dialect))
	}
	if fc.Package != "" {
		opts = append(opts, WithPackage(fc.Package))
	}
	if fc.Target != "" {
		opts = append(opts, WithTarget(fc.Target))
	}
	if fc.Header != nil {
		opts = append(opts, WithHeader(*fc.Header))
	}
	if len(fc.BuildFlags) > 0 {
		opts = append(opts, WithBuildFlags(fc.BuildFlags...))
	}
	for key, v := range fc.Defaults {
		// An unquoted `no_rows: null` decodes to nil.
		value := "null"
		if v != nil {
			value = fmt.Sprint(v)
		}
		opts = append(opts, WithDefault(key, value))
	}
	return c.ApplyAll(opts...)
}

// Apply applies options to the config.
// It returns the first error encountered.
func (c *Config) Apply(opts ...Option) error {
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return err
		}
	}
	return nil
}

// ApplyAll applies options and collects all errors.
// Returns a joined error if any options failed.
func (c *Config) ApplyAll(opts ...Option) error {
	var errs []error
	for _, opt := range opts {
		if err := opt(c); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NewConfig creates a new Config with the given options applied over the
// defaults: sqlite, the standard header, and diagnostics to slog.Default.
func NewConfig(opts ...Option) (*Config, error) {
	c := &Config{Dialect: SQLite, Header: DefaultHeader}
	if err := c.Apply(opts...); err != nil {
		return nil, err
	}
	if c.Sink == nil {
		c.Sink = diag.NewSlogSink(nil)
	}
	return c, nil
}

// MustNewConfig creates a new Config with the given options.
// It panics if any option fails.
func MustNewConfig(opts ...Option) *Config {
	c, err := NewConfig(opts...)
	if err != nil {
		panic(err)
	}
	return c
}
