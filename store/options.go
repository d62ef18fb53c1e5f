package store

import (
	"log/slog"

	"github.com/meigma/keyutils/cache"
)

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger for fetch diagnostics.
// If not set, logging is disabled.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithCache caches splitfile blocks by digest.
func WithCache(c cache.Cache) Option {
	return func(s *Store) {
		s.cache = c
	}
}

// WithMaxSize limits the size of fetched layers and reassembled content.
// Defaults to DefaultMaxSize.
func WithMaxSize(n int64) Option {
	return func(s *Store) {
		s.maxSize = n
	}
}

// WithMaxLevels limits how many redirects and metadata levels Unroll follows.
// Defaults to DefaultMaxLevels.
func WithMaxLevels(n int) Option {
	return func(s *Store) {
		s.maxLevels = n
	}
}

// WithConcurrency sets how many splitfile blocks are fetched in parallel.
// Defaults to DefaultConcurrency.
func WithConcurrency(n int) Option {
	return func(s *Store) {
		s.concurrency = n
	}
}
