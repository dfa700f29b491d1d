// Package config loads the meshlink command configuration from TOML.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/chazu/meshlink/pkg/kernel/analytic"
	"github.com/chazu/meshlink/pkg/mlerr"
)

// DefaultConfig is decoded before any user file, so every key has a value.
const DefaultConfig = `
# meshlink configuration.

[kernel]
# geometry kernel used for projection and evaluation
name = "analytic"
# groups with at least this many entities are projected in parallel
parallel-threshold = 64
# marching cubes cells along the longest side when tessellating
mesh-cells = 200

[log]
# debug, info, warn, error
level = "info"
# text or json
format = "text"
`

const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

type Config struct {
	Kernel KernelConfig `toml:"kernel"`
	Log    LogConfig    `toml:"log"`
}

type KernelConfig struct {
	Name              string `toml:"name"`
	ParallelThreshold int    `toml:"parallel-threshold"`
	MeshCells         int    `toml:"mesh-cells"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Load decodes the defaults and then path, if path is not empty. Keys in
// the file override the defaults; unknown keys are an error.
func Load(path string) (*Config, error) {
	c := new(Config)
	if _, err := toml.Decode(DefaultConfig, c); err != nil {
		return nil, fmt.Errorf("config: decode defaults: %v: %w", err, mlerr.ErrInternal)
	}
	if path != "" {
		md, err := toml.DecodeFile(path, c)
		if err != nil {
			return nil, fmt.Errorf("config: decode %s: %v: %w", path, err, mlerr.ErrConfig)
		}
		if undec := md.Undecoded(); len(undec) > 0 {
			keys := make([]string, len(undec))
			for i, k := range undec {
				keys[i] = k.String()
			}
			return nil, fmt.Errorf("config: %s: unknown keys %s: %w", path, strings.Join(keys, ", "), mlerr.ErrConfig)
		}
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) validate() error {
	if c.Kernel.Name != analytic.Name {
		return fmt.Errorf("config: unknown kernel %q: %w", c.Kernel.Name, mlerr.ErrConfig)
	}
	if c.Kernel.ParallelThreshold < 1 {
		return fmt.Errorf("config: parallel-threshold must be positive, got %d: %w", c.Kernel.ParallelThreshold, mlerr.ErrConfig)
	}
	if c.Kernel.MeshCells < 8 {
		return fmt.Errorf("config: mesh-cells must be at least 8, got %d: %w", c.Kernel.MeshCells, mlerr.ErrConfig)
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		return err
	}
	switch c.Log.Format {
	case LogFormatText, LogFormatJSON:
	default:
		return fmt.Errorf("config: unknown log format %q: %w", c.Log.Format, mlerr.ErrConfig)
	}
	return nil
}

// SlogLevel maps the configured level name to a slog.Level.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("config: bad log level %q: %w", l.Level, mlerr.ErrConfig)
	}
	return lvl, nil
}

// NewLogger builds a logger writing to w in the configured format.
func (l LogConfig) NewLogger(w io.Writer) (*slog.Logger, error) {
	lvl, err := l.SlogLevel()
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if l.Format == LogFormatJSON {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

// NewKernel returns an analytic kernel configured from c.
func (c *Config) NewKernel(logger *slog.Logger) *analytic.Kernel {
	return analytic.New(
		analytic.WithLogger(logger),
		analytic.WithParallelThreshold(c.Kernel.ParallelThreshold),
		analytic.WithMeshCells(c.Kernel.MeshCells),
	)
}
