// Package config loads the keyutils server configuration from YAML.
//
// Default returns a complete configuration; a file only needs to name the
// settings it changes. Command-line flags are applied on top by the caller.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/meigma/keyutils/hexdump"
	"github.com/meigma/keyutils/store"
)

// Config is the top-level server configuration.
type Config struct {
	// Listen is the TCP address the HTTP server binds.
	Listen string `yaml:"listen"`

	// PluginPath is the path the explorer is mounted at.
	PluginPath string `yaml:"plugin_path"`

	// OpenPath is the path of the host's content viewer used by "open" links.
	OpenPath string `yaml:"open_path"`

	Explorer ExplorerConfig `yaml:"explorer"`
	Store    StoreConfig    `yaml:"store"`
	Registry RegistryConfig `yaml:"registry"`
	Cache    CacheConfig    `yaml:"cache"`
	Log      LogConfig      `yaml:"log"`
}

// ExplorerConfig holds the defaults for explorer GET requests.
type ExplorerConfig struct {
	HexWidth     int  `yaml:"hex_width"`
	AutoManifest bool `yaml:"auto_manifest"`
	Deep         bool `yaml:"deep"`
	Multilevel   bool `yaml:"multilevel"`
}

// StoreConfig bounds fetches.
type StoreConfig struct {
	MaxSize     int64 `yaml:"max_size"`
	MaxLevels   int   `yaml:"max_levels"`
	Concurrency int   `yaml:"concurrency"`
}

// RegistryConfig selects where keys are read from.
type RegistryConfig struct {
	// Layout, when set, reads keys from OCI layout directories below this
	// path instead of remote registries.
	Layout string `yaml:"layout"`

	PlainHTTP bool   `yaml:"plain_http"`
	Anonymous bool   `yaml:"anonymous"`
	UserAgent string `yaml:"user_agent"`

	// Username and Password are static credentials for Host. When unset,
	// the docker credential store is used.
	Host     string `yaml:"host"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// CacheConfig configures the splitfile block cache. An empty Dir disables it.
type CacheConfig struct {
	Dir      string `yaml:"dir"`
	MaxBytes int64  `yaml:"max_bytes"`
}

// LogConfig configures the server logger.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`

	// Format is text or json.
	Format string `yaml:"format"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Listen:     "127.0.0.1:8888",
		PluginPath: "/keyutils",
		OpenPath:   "/",
		Explorer: ExplorerConfig{
			HexWidth: hexdump.DefaultWidth,
		},
		Store: StoreConfig{
			MaxSize:     store.DefaultMaxSize,
			MaxLevels:   store.DefaultMaxLevels,
			Concurrency: store.DefaultConcurrency,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadFile reads the YAML file at path over the defaults.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults. Unknown fields are rejected.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse: %w", err)
	}
	return cfg, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Listen == "" {
		return errors.New("listen is required")
	}
	if c.PluginPath != "" && !strings.HasPrefix(c.PluginPath, "/") {
		return fmt.Errorf("plugin_path %q must start with /", c.PluginPath)
	}
	if _, err := hexdump.ValidateWidth(c.Explorer.HexWidth); err != nil {
		return fmt.Errorf("explorer.hex_width %d: must be between %d and %d",
			c.Explorer.HexWidth, hexdump.MinWidth, hexdump.MaxWidth)
	}
	if c.Store.MaxSize <= 0 {
		return fmt.Errorf("store.max_size must be > 0, got %d", c.Store.MaxSize)
	}
	if c.Store.MaxLevels < 1 {
		return fmt.Errorf("store.max_levels must be >= 1, got %d", c.Store.MaxLevels)
	}
	if c.Cache.MaxBytes < 0 {
		return fmt.Errorf("cache.max_bytes must be >= 0, got %d", c.Cache.MaxBytes)
	}
	if (c.Registry.Username != "" || c.Registry.Password != "") && c.Registry.Host == "" {
		return errors.New("registry.host is required with registry credentials")
	}
	if c.Registry.Anonymous && c.Registry.Username != "" {
		return errors.New("registry.anonymous conflicts with registry.username")
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level %q: expected debug, info, warn or error", c.Log.Level)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format %q: expected text or json", c.Log.Format)
	}
	return nil
}
