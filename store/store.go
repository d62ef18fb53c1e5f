// Package store fetches keys and reassembles their content.
//
// A key resolves to an OCI image manifest with exactly one layer. The layer
// is either plain data or a metadata document; metadata may describe a
// splitfile whose blocks are blobs in the same repository, a redirect to
// another key, or further metadata.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/opencontainers/go-digest"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"oras.land/oras-go/v2"
	"oras.land/oras-go/v2/content"
	"oras.land/oras-go/v2/errdef"

	"github.com/meigma/keyutils/cache"
	"github.com/meigma/keyutils/internal/seal"
	"github.com/meigma/keyutils/key"
	"github.com/meigma/keyutils/metadata"
)

const (
	// DefaultMaxSize caps the size of any fetched layer or reassembled content.
	DefaultMaxSize int64 = 64 << 20

	// DefaultMaxLevels caps redirects and nested metadata followed by Unroll.
	DefaultMaxLevels = 8

	// DefaultConcurrency is the number of splitfile blocks fetched at once.
	DefaultConcurrency = 4

	maxManifestSize int64 = 4 << 20
)

// TargetFunc returns the content target for a "registry/repository" name.
type TargetFunc func(repo string) (oras.ReadOnlyTarget, error)

// Store fetches keys from OCI targets.
type Store struct {
	targets     TargetFunc
	cache       cache.Cache
	logger      *slog.Logger
	maxSize     int64
	maxLevels   int
	concurrency int
}

// New creates a Store that reads from the targets returned by targets.
func New(targets TargetFunc, opts ...Option) (*Store, error) {
	if targets == nil {
		return nil, errors.New("store: target func is nil")
	}
	s := &Store{
		targets:     targets,
		maxSize:     DefaultMaxSize,
		maxLevels:   DefaultMaxLevels,
		concurrency: DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.maxSize <= 0 {
		return nil, fmt.Errorf("store: max size must be > 0, got %d", s.maxSize)
	}
	if s.maxLevels < 1 {
		return nil, fmt.Errorf("store: max levels must be >= 1, got %d", s.maxLevels)
	}
	if s.concurrency < 1 {
		s.concurrency = 1
	}
	return s, nil
}

// MaxSize returns the configured content size limit.
func (s *Store) MaxSize() int64 {
	return s.maxSize
}

// GetResult is the content of one key's layer.
type GetResult struct {
	// Data is the layer content, decrypted when the key carries a crypto key.
	Data []byte

	// Metadata reports whether Data is a metadata document.
	Metadata bool

	MediaType string

	// Digest is the digest of the key's manifest.
	Digest digest.Digest
}

// Get fetches the single layer referenced by k.
func (s *Store) Get(ctx context.Context, k key.Key) (*GetResult, error) {
	target, err := s.target(k)
	if err != nil {
		return nil, err
	}

	desc, err := target.Resolve(ctx, k.Reference)
	if err != nil {
		return nil, classify(err)
	}
	log := s.log().With(slog.String("key", k.String()), slog.String("manifest", desc.Digest.String()))

	layer, err := s.fetchManifest(ctx, target, desc)
	if err != nil {
		return nil, err
	}

	res := &GetResult{MediaType: layer.MediaType, Digest: desc.Digest}
	switch layer.MediaType {
	case metadata.MediaTypeMetadata:
		res.Metadata = true
	case metadata.MediaTypeData:
	default:
		return nil, failf(ModeUnsupported, "layer media type %q", layer.MediaType)
	}

	if layer.Size > s.maxSize {
		return nil, failf(ModeTooBig, "layer is %d bytes, limit %d", layer.Size, s.maxSize)
	}
	data, err := content.FetchAll(ctx, target, layer)
	if err != nil {
		return nil, classify(err)
	}
	log.Debug("fetched layer", slog.Int("size", len(data)), slog.Bool("metadata", res.Metadata))

	if len(k.CryptoKey) > 0 {
		data, err = seal.Open(k.CryptoKey, 0, data)
		if err != nil {
			return nil, fail(ModeDecryptFailed, err)
		}
	}
	res.Data = data
	return res, nil
}

// SimpleManifestGet fetches k and parses it as metadata.
func (s *Store) SimpleManifestGet(ctx context.Context, k key.Key) (*metadata.Metadata, error) {
	res, err := s.Get(ctx, k)
	if err != nil {
		return nil, err
	}
	if !res.Metadata {
		return nil, failf(ModeNotMetadata, "%s references %s", k, res.MediaType)
	}
	md, err := metadata.Parse(res.Data)
	if err != nil {
		return nil, fail(ModeInvalidMetadata, err)
	}
	return md, nil
}

// Fetch returns the final content of k, following metadata until data.
func (s *Store) Fetch(ctx context.Context, k key.Key) ([]byte, error) {
	return s.fetchLevel(ctx, k, 0)
}

// Unroll returns the content described by md, which was fetched from k.
// Redirects, splitfiles and multi-level metadata are followed until plain
// data, at most MaxLevels deep.
func (s *Store) Unroll(ctx context.Context, k key.Key, md *metadata.Metadata) ([]byte, error) {
	return s.unrollLevel(ctx, k, md, 0)
}

func (s *Store) fetchLevel(ctx context.Context, k key.Key, level int) ([]byte, error) {
	res, err := s.Get(ctx, k)
	if err != nil {
		return nil, err
	}
	if !res.Metadata {
		return res.Data, nil
	}
	md, err := metadata.Parse(res.Data)
	if err != nil {
		return nil, fail(ModeInvalidMetadata, err)
	}
	return s.unrollLevel(ctx, k, md, level+1)
}

func (s *Store) unrollLevel(ctx context.Context, k key.Key, md *metadata.Metadata, level int) ([]byte, error) {
	if level > s.maxLevels {
		return nil, failf(ModeTooManyLevels, "more than %d levels", s.maxLevels)
	}
	s.log().Debug("unroll",
		slog.String("key", k.String()),
		slog.Int("level", level),
		slog.String("type", md.Type().String()))

	switch doc := md.Document.(type) {
	case metadata.MultiLevelMetadata:
		data, err := s.SplitGet(ctx, k, md)
		if err != nil {
			return nil, err
		}
		inner, err := metadata.Parse(data)
		if err != nil {
			return nil, fail(ModeInvalidMetadata, err)
		}
		return s.unrollLevel(ctx, k, inner, level+1)
	case metadata.SimpleRedirect:
		if md.IsSplitfile() {
			return s.SplitGet(ctx, k, md)
		}
		if doc.Target.IsZero() {
			return nil, failf(ModeInvalidMetadata, "redirect without target")
		}
		return s.fetchLevel(ctx, doc.Target, level+1)
	default:
		return nil, failf(ModeUnsupported, "cannot unroll %s", md.Type())
	}
}

func (s *Store) target(k key.Key) (oras.ReadOnlyTarget, error) {
	if k.IsZero() {
		return nil, failf(ModeNotFound, "%w: empty key", key.ErrInvalidKey)
	}
	target, err := s.targets(k.Repo())
	if err != nil {
		return nil, fail(ModeNotFound, err)
	}
	return target, nil
}

// fetchManifest fetches and validates the key manifest, returning its layer.
func (s *Store) fetchManifest(ctx context.Context, target oras.ReadOnlyTarget, desc ocispec.Descriptor) (ocispec.Descriptor, error) {
	if desc.MediaType != "" && desc.MediaType != ocispec.MediaTypeImageManifest {
		return ocispec.Descriptor{}, failf(ModeInvalidManifest, "unsupported media type %s", desc.MediaType)
	}
	if desc.Size > maxManifestSize {
		return ocispec.Descriptor{}, failf(ModeInvalidManifest, "manifest is %d bytes", desc.Size)
	}

	raw, err := content.FetchAll(ctx, target, desc)
	if err != nil {
		return ocispec.Descriptor{}, classify(err)
	}

	var manifest ocispec.Manifest
	if err := json.Unmarshal(raw, &manifest); err != nil {
		return ocispec.Descriptor{}, fail(ModeInvalidManifest, err)
	}
	if manifest.ArtifactType != "" && manifest.ArtifactType != metadata.ArtifactType {
		return ocispec.Descriptor{}, failf(ModeUnsupported, "artifact type %q", manifest.ArtifactType)
	}
	if len(manifest.Layers) != 1 {
		return ocispec.Descriptor{}, failf(ModeInvalidManifest, "expected 1 layer, got %d", len(manifest.Layers))
	}
	layer := manifest.Layers[0]
	if err := layer.Digest.Validate(); err != nil {
		return ocispec.Descriptor{}, fail(ModeInvalidManifest, err)
	}
	if layer.Size < 0 {
		return ocispec.Descriptor{}, failf(ModeInvalidManifest, "negative layer size %d", layer.Size)
	}
	return layer, nil
}

// classify maps content access errors to a FetchError.
func classify(err error) error {
	var fe *FetchError
	switch {
	case errors.As(err, &fe):
		return err
	case errors.Is(err, errdef.ErrNotFound):
		return fail(ModeNotFound, err)
	case errors.Is(err, errdef.ErrSizeExceedsLimit):
		return fail(ModeTooBig, err)
	case errors.Is(err, content.ErrMismatchedDigest),
		errors.Is(err, content.ErrTrailingData),
		errors.Is(err, io.ErrUnexpectedEOF):
		return fail(ModeDataMismatch, err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return fail(ModeTransferFailed, err)
	}
}

func (s *Store) log() *slog.Logger {
	if s.logger != nil {
		return s.logger
	}
	return slog.New(slog.DiscardHandler)
}
