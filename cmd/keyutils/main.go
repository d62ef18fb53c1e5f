// keyutils serves the key explorer over HTTP.
//
// Settings come from an optional YAML file (--config); flags given on the
// command line override it.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/meigma/keyutils"
	"github.com/meigma/keyutils/config"
	"github.com/meigma/keyutils/internal/cli"
)

var version = "dev"

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	flags := pflag.NewFlagSet("keyutils", pflag.ContinueOnError)
	configPath := flags.String("config", "", "path to a YAML config file")
	listen := flags.String("listen", "", "address to listen on")
	pluginPath := flags.String("plugin-path", "", "path the explorer is mounted at")
	layout := flags.String("layout", "", "read keys from OCI layout directories below this path")
	plainHTTP := flags.Bool("plain-http", false, "use plain HTTP for registries")
	anonymous := flags.Bool("anonymous", false, "do not send registry credentials")
	cacheDir := flags.String("cache-dir", "", "cache splitfile blocks in this directory")
	cacheMax := flags.Int64("cache-max-bytes", 0, "block cache size limit (0 = default)")
	hexWidth := flags.Int("hex-width", 0, "default hex dump columns")
	logLevel := flags.String("log-level", "", "debug, info, warn or error")
	logFormat := flags.String("log-format", "", "text or json")
	showVersion := flags.Bool("version", false, "print the version and exit")

	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if *showVersion {
		fmt.Println("keyutils", version)
		return nil
	}

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.LoadFile(*configPath); err != nil {
			return err
		}
	}

	// Flags set on the command line win over the file.
	set := func(name string, apply func()) {
		if flags.Changed(name) {
			apply()
		}
	}
	set("listen", func() { cfg.Listen = *listen })
	set("plugin-path", func() { cfg.PluginPath = *pluginPath })
	set("layout", func() { cfg.Registry.Layout = *layout })
	set("plain-http", func() { cfg.Registry.PlainHTTP = *plainHTTP })
	set("anonymous", func() { cfg.Registry.Anonymous = *anonymous })
	set("cache-dir", func() { cfg.Cache.Dir = *cacheDir })
	set("cache-max-bytes", func() { cfg.Cache.MaxBytes = *cacheMax })
	set("hex-width", func() { cfg.Explorer.HexWidth = *hexWidth })
	set("log-level", func() { cfg.Log.Level = *logLevel })
	set("log-format", func() { cfg.Log.Format = *logFormat })

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	logger, err := cli.NewLogger(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}

	opts := append(keyutils.ConfigOptions(cfg),
		keyutils.WithLogger(logger),
		keyutils.WithVersion(version),
	)
	plugin, err := keyutils.New(opts...)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return serve(ctx, logger, cfg.Listen, plugin.Handler())
}

// serve runs the HTTP server until ctx is done, then shuts it down.
func serve(ctx context.Context, logger *slog.Logger, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", slog.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
