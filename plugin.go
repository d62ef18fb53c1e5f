package keyutils

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/meigma/keyutils/cache"
	"github.com/meigma/keyutils/cache/disk"
	"github.com/meigma/keyutils/config"
	"github.com/meigma/keyutils/explorer"
	"github.com/meigma/keyutils/l10n"
	"github.com/meigma/keyutils/oci"
	"github.com/meigma/keyutils/store"
)

// Plugin serves the key explorer and download pages for keys in an OCI
// store.
type Plugin struct {
	// Key source; exactly one is set by the options.
	targets     store.TargetFunc
	remoteOpts  []oci.Option
	remote      bool
	layoutDir   string
	sourceCount int

	cache         cache.Cache
	cacheDir      string
	cacheMaxBytes int64

	cfg          *config.Config
	logger       *slog.Logger
	localizer    *l10n.Localizer
	version      string
	formPassword string

	store    *store.Store
	explorer *explorer.Explorer
}

// New creates a Plugin. Without a key source option, keys are read from
// remote registries with credentials from the docker config.
func New(opts ...Option) (*Plugin, error) {
	p := &Plugin{
		cfg:           config.Default(),
		cacheMaxBytes: DefaultCacheSize,
	}
	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}
	if p.sourceCount > 1 {
		return nil, ErrConflictingSources
	}

	targets, err := p.resolveTargets()
	if err != nil {
		return nil, err
	}

	storeOpts := []store.Option{
		store.WithLogger(p.log().With(slog.String("component", "store"))),
		store.WithMaxSize(p.cfg.Store.MaxSize),
		store.WithMaxLevels(p.cfg.Store.MaxLevels),
		store.WithConcurrency(p.cfg.Store.Concurrency),
	}
	blockCache, err := p.resolveCache()
	if err != nil {
		return nil, err
	}
	if blockCache != nil {
		storeOpts = append(storeOpts, store.WithCache(blockCache))
	}
	if p.store, err = store.New(targets, storeOpts...); err != nil {
		return nil, err
	}

	explorerOpts := []explorer.Option{
		explorer.WithLogger(p.log().With(slog.String("component", "explorer"))),
		explorer.WithPluginPath(p.cfg.PluginPath),
		explorer.WithOpenPath(p.cfg.OpenPath),
		explorer.WithDefaults(explorer.Options{
			HexWidth:     p.cfg.Explorer.HexWidth,
			AutoManifest: p.cfg.Explorer.AutoManifest,
			Deep:         p.cfg.Explorer.Deep,
			Multilevel:   p.cfg.Explorer.Multilevel,
		}),
		explorer.WithVersion(p.version),
		explorer.WithFormPassword(p.formPassword),
	}
	if p.localizer != nil {
		explorerOpts = append(explorerOpts, explorer.WithLocalizer(p.localizer))
	}
	if p.explorer, err = explorer.New(p.store, explorerOpts...); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Plugin) resolveTargets() (store.TargetFunc, error) {
	switch {
	case p.targets != nil:
		return p.targets, nil
	case p.layoutDir != "":
		return oci.NewLayout(p.layoutDir).ReadOnlyTarget, nil
	default:
		opts := p.remoteOpts
		if !p.remote {
			opts = []oci.Option{oci.WithDockerConfig()}
		}
		return oci.New(opts...).ReadOnlyTarget, nil
	}
}

func (p *Plugin) resolveCache() (cache.Cache, error) {
	if p.cache != nil {
		return p.cache, nil
	}
	if p.cacheDir == "" {
		return nil, nil
	}
	c, err := disk.New(p.cacheDir, disk.WithMaxBytes(p.cacheMaxBytes))
	if err != nil {
		return nil, fmt.Errorf("open block cache: %w", err)
	}
	return c, nil
}

// Store returns the store the plugin fetches keys with.
func (p *Plugin) Store() *store.Store {
	return p.store
}

// Explorer returns the explorer page renderer.
func (p *Plugin) Explorer() *explorer.Explorer {
	return p.explorer
}

// Handler returns the HTTP handler serving the plugin pages below the
// plugin path.
func (p *Plugin) Handler() http.Handler {
	base := p.explorer.PluginPath()
	mux := http.NewServeMux()
	mux.Handle(base+"/Download", p.explorer.DownloadHandler())
	mux.Handle(base+"/", p.explorer.Handler())
	return p.logRequests(mux)
}

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (p *Plugin) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		level := slog.LevelDebug
		if rec.status >= http.StatusInternalServerError {
			level = slog.LevelWarn
		}
		p.log().LogAttrs(r.Context(), level, "request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", rec.status),
			slog.Duration("elapsed", time.Since(start)))
	})
}

func (p *Plugin) log() *slog.Logger {
	if p.logger != nil {
		return p.logger
	}
	return slog.New(slog.DiscardHandler)
}
