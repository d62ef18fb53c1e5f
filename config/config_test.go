package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/keyutils/store"
)

func TestDefault(t *testing.T) {
	t.Parallel()

	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "/keyutils", cfg.PluginPath)
	assert.Equal(t, 32, cfg.Explorer.HexWidth)
	assert.False(t, cfg.Explorer.AutoManifest)
	assert.Equal(t, int64(store.DefaultMaxSize), cfg.Store.MaxSize)
	assert.Empty(t, cfg.Cache.Dir)
}

func TestLoadFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "keyutils.yaml")
	content := `
listen: ":9000"
explorer:
  hex_width: 16
  auto_manifest: true
  multilevel: true
registry:
  plain_http: true
  host: localhost:5000
  username: alice
  password: secret
cache:
  dir: /var/cache/keyutils
  max_bytes: 1048576
log:
  level: debug
  format: json
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, ":9000", cfg.Listen)
	assert.Equal(t, "/keyutils", cfg.PluginPath, "unset fields keep defaults")
	assert.Equal(t, ExplorerConfig{HexWidth: 16, AutoManifest: true, Multilevel: true}, cfg.Explorer)
	assert.True(t, cfg.Registry.PlainHTTP)
	assert.Equal(t, "alice", cfg.Registry.Username)
	assert.Equal(t, int64(1<<20), cfg.Cache.MaxBytes)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, store.DefaultMaxLevels, cfg.Store.MaxLevels)
}

func TestLoadFileErrors(t *testing.T) {
	t.Parallel()

	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = Parse([]byte("listen: [unclosed"))
	assert.Error(t, err)

	_, err = Parse([]byte("hexwidth: 12\n"))
	assert.Error(t, err, "unknown fields are rejected")
}

func TestParseEmpty(t *testing.T) {
	t.Parallel()

	cfg, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"no listen", func(c *Config) { c.Listen = "" }},
		{"relative plugin path", func(c *Config) { c.PluginPath = "keyutils" }},
		{"hex width zero", func(c *Config) { c.Explorer.HexWidth = 0 }},
		{"hex width too large", func(c *Config) { c.Explorer.HexWidth = 1025 }},
		{"max size", func(c *Config) { c.Store.MaxSize = 0 }},
		{"max levels", func(c *Config) { c.Store.MaxLevels = 0 }},
		{"cache size", func(c *Config) { c.Cache.MaxBytes = -1 }},
		{"credentials without host", func(c *Config) { c.Registry.Username = "bob" }},
		{"anonymous with user", func(c *Config) {
			c.Registry.Host, c.Registry.Username, c.Registry.Anonymous = "r", "bob", true
		}},
		{"log level", func(c *Config) { c.Log.Level = "trace" }},
		{"log format", func(c *Config) { c.Log.Format = "xml" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := Default()
			tt.modify(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
