package keyutils

import (
	"errors"
	"log/slog"

	"github.com/meigma/keyutils/cache"
	"github.com/meigma/keyutils/config"
	"github.com/meigma/keyutils/l10n"
	"github.com/meigma/keyutils/oci"
	"github.com/meigma/keyutils/store"
)

// Option configures a Plugin.
type Option func(*Plugin) error

// DefaultCacheSize is the block cache limit used by WithCacheDir.
const DefaultCacheSize int64 = 256 << 20 // 256 MB

// --- Key Sources ---

// WithTarget reads keys from the targets returned by targets.
func WithTarget(targets store.TargetFunc) Option {
	return func(p *Plugin) error {
		if targets == nil {
			return errors.New("keyutils: target func is nil")
		}
		p.targets = targets
		p.sourceCount++
		return nil
	}
}

// WithRemote reads keys from OCI registries, configured by opts.
func WithRemote(opts ...oci.Option) Option {
	return func(p *Plugin) error {
		p.remote = true
		p.remoteOpts = opts
		p.sourceCount++
		return nil
	}
}

// WithLayout reads keys from OCI layout directories below dir.
func WithLayout(dir string) Option {
	return func(p *Plugin) error {
		if dir == "" {
			return errors.New("keyutils: layout dir is empty")
		}
		p.layoutDir = dir
		p.sourceCount++
		return nil
	}
}

// --- Caching ---

// WithCacheDir caches splitfile blocks in dir, limited to DefaultCacheSize
// unless WithCacheMaxBytes is given.
func WithCacheDir(dir string) Option {
	return func(p *Plugin) error {
		p.cacheDir = dir
		return nil
	}
}

// WithCacheMaxBytes limits the cache created by WithCacheDir. Zero means
// unlimited.
func WithCacheMaxBytes(n int64) Option {
	return func(p *Plugin) error {
		if n < 0 {
			return errors.New("keyutils: cache max bytes must be >= 0")
		}
		p.cacheMaxBytes = n
		return nil
	}
}

// WithCache sets the block cache directly, overriding WithCacheDir.
func WithCache(c cache.Cache) Option {
	return func(p *Plugin) error {
		p.cache = c
		return nil
	}
}

// --- Presentation ---

// WithConfig applies the explorer defaults, paths and store limits of cfg.
// Key source and cache settings in cfg are applied by ConfigOptions.
func WithConfig(cfg *config.Config) Option {
	return func(p *Plugin) error {
		if cfg == nil {
			return errors.New("keyutils: config is nil")
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		p.cfg = cfg
		return nil
	}
}

// WithLocalizer sets the message catalog for page text.
func WithLocalizer(l *l10n.Localizer) Option {
	return func(p *Plugin) error {
		p.localizer = l
		return nil
	}
}

// WithVersion sets the version shown in page footers.
func WithVersion(version string) Option {
	return func(p *Plugin) error {
		p.version = version
		return nil
	}
}

// WithFormPassword sets the token explorer forms must carry. Defaults to
// a random token.
func WithFormPassword(password string) Option {
	return func(p *Plugin) error {
		p.formPassword = password
		return nil
	}
}

// WithLogger sets the logger for the plugin and its components.
// If not set, logging is disabled.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Plugin) error {
		p.logger = logger
		return nil
	}
}

// ConfigOptions returns the options described by cfg: WithConfig, the key
// source and the block cache.
func ConfigOptions(cfg *config.Config) []Option {
	opts := []Option{WithConfig(cfg)}

	if cfg.Registry.Layout != "" {
		opts = append(opts, WithLayout(cfg.Registry.Layout))
	} else {
		var remote []oci.Option
		switch {
		case cfg.Registry.Anonymous:
			remote = append(remote, oci.WithAnonymous())
		case cfg.Registry.Username != "" || cfg.Registry.Password != "":
			remote = append(remote, oci.WithStaticCredentials(cfg.Registry.Host, cfg.Registry.Username, cfg.Registry.Password))
		default:
			remote = append(remote, oci.WithDockerConfig())
		}
		if cfg.Registry.PlainHTTP {
			remote = append(remote, oci.WithPlainHTTP(true))
		}
		if cfg.Registry.UserAgent != "" {
			remote = append(remote, oci.WithUserAgent(cfg.Registry.UserAgent))
		}
		opts = append(opts, WithRemote(remote...))
	}

	if cfg.Cache.Dir != "" {
		opts = append(opts, WithCacheDir(cfg.Cache.Dir))
		if cfg.Cache.MaxBytes > 0 {
			opts = append(opts, WithCacheMaxBytes(cfg.Cache.MaxBytes))
		}
	}
	return opts
}
