// Package insert writes content, metadata and splitfiles to an OCI target in
// the layout the store package reads.
package insert

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"oras.land/oras-go/v2"
	"oras.land/oras-go/v2/registry"

	"github.com/meigma/keyutils/internal/compress"
	"github.com/meigma/keyutils/internal/seal"
	"github.com/meigma/keyutils/key"
	"github.com/meigma/keyutils/metadata"
)

const (
	// DefaultBlockSize is the splitfile block size.
	DefaultBlockSize = 32 << 10

	// DefaultSplitThreshold is the largest payload stored as a single layer.
	DefaultSplitThreshold int64 = 32 << 10

	// DefaultMaxMetadataSize is the largest metadata stored without wrapping.
	DefaultMaxMetadataSize = 4 << 10

	maxWrapLevels = 4
)

var (
	// ErrInvalidOption is returned for out-of-range inserter settings.
	ErrInvalidOption = errors.New("insert: invalid option")

	// ErrMetadataTooLarge is returned when metadata stays too large after
	// the maximum number of multi-level wraps.
	ErrMetadataTooLarge = errors.New("insert: metadata too large")
)

// hashTypes are recorded for all inserted content.
var hashTypes = []metadata.HashType{metadata.HashSHA256, metadata.HashBLAKE3}

// Inserter stores keys in one repository.
type Inserter struct {
	target          oras.Target
	registry        string
	repository      string
	logger          *slog.Logger
	blockSize       int
	splitThreshold  int64
	maxMetadataSize int
	digestTags      bool
}

// New creates an Inserter writing to target. repo is the "registry/repository"
// name used in the returned keys.
func New(target oras.Target, repo string, opts ...Option) (*Inserter, error) {
	if target == nil {
		return nil, fmt.Errorf("%w: target is nil", ErrInvalidOption)
	}
	ref, err := registry.ParseReference(repo)
	if err != nil {
		return nil, fmt.Errorf("%w: repository %q: %v", ErrInvalidOption, repo, err)
	}
	i := &Inserter{
		target:          target,
		registry:        ref.Registry,
		repository:      ref.Repository,
		blockSize:       DefaultBlockSize,
		splitThreshold:  DefaultSplitThreshold,
		maxMetadataSize: DefaultMaxMetadataSize,
		digestTags:      true,
	}
	for _, opt := range opts {
		opt(i)
	}
	if i.blockSize < 1 {
		return nil, fmt.Errorf("%w: block size must be > 0, got %d", ErrInvalidOption, i.blockSize)
	}
	if i.splitThreshold < 0 {
		return nil, fmt.Errorf("%w: split threshold must be >= 0, got %d", ErrInvalidOption, i.splitThreshold)
	}
	if i.maxMetadataSize < 64 {
		return nil, fmt.Errorf("%w: max metadata size must be >= 64, got %d", ErrInvalidOption, i.maxMetadataSize)
	}
	return i, nil
}

// Insert stores data and returns its key. Payloads up to the split threshold
// are stored as a single data layer; larger ones as a compressed splitfile
// described by metadata.
func (i *Inserter) Insert(ctx context.Context, data []byte, opts ...InsertOption) (key.Key, error) {
	cfg := newInsertConfig(opts)
	if err := validateCustomKey(cfg.customKey); err != nil {
		return key.Key{}, err
	}
	hashes, err := metadata.ComputeHashes(data, hashTypes...)
	if err != nil {
		return key.Key{}, err
	}

	if int64(len(data)) <= i.splitThreshold {
		if cfg.mimeType == "" {
			return i.putLayer(ctx, metadata.MediaTypeData, data, cfg)
		}
		target, err := i.putLayer(ctx, metadata.MediaTypeData, data, insertConfig{encrypt: cfg.encrypt})
		if err != nil {
			return key.Key{}, err
		}
		md := &metadata.Metadata{
			Version:            metadata.CurrentVersion,
			Document:           metadata.SimpleRedirect{Target: target},
			MIMEType:           cfg.mimeType,
			DecompressedLength: int64(len(data)),
			Hashes:             hashes,
		}
		return i.InsertMetadata(ctx, md, opts...)
	}

	md, err := i.split(ctx, data, hashes, cfg)
	if err != nil {
		return key.Key{}, err
	}
	md.Document = metadata.SimpleRedirect{}
	md.MIMEType = cfg.mimeType
	return i.InsertMetadata(ctx, md, opts...)
}

// InsertMetadata stores md as a metadata layer. Documents larger than the
// maximum metadata size are stored as a splitfile behind multi-level
// metadata, repeatedly if needed.
func (i *Inserter) InsertMetadata(ctx context.Context, md *metadata.Metadata, opts ...InsertOption) (key.Key, error) {
	cfg := newInsertConfig(opts)
	raw, err := metadata.Marshal(md)
	if err != nil {
		return key.Key{}, err
	}

	for level := 0; len(raw) > i.maxMetadataSize; level++ {
		if level == maxWrapLevels {
			return key.Key{}, fmt.Errorf("%w: %d bytes after %d levels", ErrMetadataTooLarge, len(raw), level)
		}
		hashes, err := metadata.ComputeHashes(raw, hashTypes...)
		if err != nil {
			return key.Key{}, err
		}
		wrapped, err := i.split(ctx, raw, hashes, insertConfig{codec: cfg.codec})
		if err != nil {
			return key.Key{}, err
		}
		wrapped.Document = metadata.MultiLevelMetadata{}
		if raw, err = metadata.Marshal(wrapped); err != nil {
			return key.Key{}, err
		}
		i.log().Debug("wrapped metadata", slog.Int("level", level+1), slog.Int("size", len(raw)))
	}

	return i.putLayer(ctx, metadata.MediaTypeMetadata, raw, cfg)
}

// InsertRedirect stores a simple redirect to target.
func (i *Inserter) InsertRedirect(ctx context.Context, target key.Key, opts ...InsertOption) (key.Key, error) {
	if target.IsZero() {
		return key.Key{}, fmt.Errorf("%w: empty redirect target", key.ErrInvalidKey)
	}
	cfg := newInsertConfig(opts)
	return i.InsertMetadata(ctx, &metadata.Metadata{
		Version:  metadata.CurrentVersion,
		Document: metadata.SimpleRedirect{Target: target},
		MIMEType: cfg.mimeType,
	}, opts...)
}

// InsertManifest stores a simple manifest of named entries.
func (i *Inserter) InsertManifest(ctx context.Context, entries []metadata.ManifestEntry, opts ...InsertOption) (key.Key, error) {
	for _, e := range entries {
		if e.Name == "" || e.Target.IsZero() {
			return key.Key{}, fmt.Errorf("%w: manifest entry %q needs a name and a target", ErrInvalidOption, e.Name)
		}
	}
	return i.InsertMetadata(ctx, &metadata.Metadata{
		Version:  metadata.CurrentVersion,
		Document: metadata.SimpleManifest{Entries: entries},
	}, opts...)
}

// InsertArchiveManifest stores an archive as a splitfile behind an archive
// manifest.
func (i *Inserter) InsertArchiveManifest(ctx context.Context, archive metadata.ArchiveType, data []byte, opts ...InsertOption) (key.Key, error) {
	cfg := newInsertConfig(opts)
	if err := validateCustomKey(cfg.customKey); err != nil {
		return key.Key{}, err
	}
	hashes, err := metadata.ComputeHashes(data, hashTypes...)
	if err != nil {
		return key.Key{}, err
	}
	md, err := i.split(ctx, data, hashes, cfg)
	if err != nil {
		return key.Key{}, err
	}
	md.Document = metadata.ArchiveManifest{Archive: archive}
	md.MIMEType = cfg.mimeType
	if md.MIMEType == "" {
		md.MIMEType = archiveMIMEType(archive)
	}
	return i.InsertMetadata(ctx, md, opts...)
}

// InsertShortlink stores a symbolic shortlink to a path relative to the
// enclosing manifest.
func (i *Inserter) InsertShortlink(ctx context.Context, target string, opts ...InsertOption) (key.Key, error) {
	if target == "" {
		return key.Key{}, fmt.Errorf("%w: empty shortlink target", ErrInvalidOption)
	}
	return i.InsertMetadata(ctx, &metadata.Metadata{
		Version:  metadata.CurrentVersion,
		Document: metadata.SymbolicShortlink{Target: target},
	}, opts...)
}

// split compresses data and pushes it as encrypted blocks. The returned
// metadata has no document set.
func (i *Inserter) split(ctx context.Context, data []byte, hashes []metadata.Hash, cfg insertConfig) (*metadata.Metadata, error) {
	payload, codec := data, cfg.codec
	if codec != metadata.CodecNone {
		compressed, err := compress.Compress(codec, data)
		switch {
		case errors.Is(err, compress.ErrIncompressible):
			codec = metadata.CodecNone
		case err != nil:
			return nil, err
		default:
			payload = compressed
		}
	}

	cryptoKey := cfg.customKey
	if len(cryptoKey) == 0 {
		derived, err := metadata.CryptoKey(hashes)
		if err != nil {
			return nil, err
		}
		cryptoKey = derived
	}

	sf := &metadata.Splitfile{DataLength: int64(len(payload)), CustomKey: cfg.customKey}
	for index, off := 0, 0; off < len(payload); index, off = index+1, off+i.blockSize {
		chunk := payload[off:min(off+i.blockSize, len(payload))]
		stored, err := seal.Seal(cryptoKey, uint64(index), chunk)
		if err != nil {
			return nil, err
		}
		desc, err := i.pushBlob(ctx, metadata.MediaTypeBlock, stored)
		if err != nil {
			return nil, fmt.Errorf("push block %d: %w", index, err)
		}
		sf.Blocks = append(sf.Blocks, metadata.Block{Digest: desc.Digest, Size: desc.Size})
	}

	md := &metadata.Metadata{
		Version:            metadata.CurrentVersion,
		Compression:        codec,
		DecompressedLength: int64(len(data)),
		Splitfile:          sf,
		Hashes:             hashes,
	}
	if cfg.topData {
		md.Top = &metadata.TopBlock{
			DontCompress:     codec == metadata.CodecNone,
			CompressedSize:   int64(len(payload)),
			DecompressedSize: int64(len(data)),
			BlocksRequired:   int32(len(sf.Blocks)), //nolint:gosec // block count is bounded by max content size
			BlocksTotal:      int32(len(sf.Blocks)), //nolint:gosec // block count is bounded by max content size
		}
		md.TopCompatibilityMode = metadata.CompatCurrent
	}
	i.log().Debug("split content",
		slog.Int("size", len(data)),
		slog.String("codec", codec.String()),
		slog.Int("blocks", len(sf.Blocks)))
	return md, nil
}

func validateCustomKey(cryptoKey []byte) error {
	if len(cryptoKey) > 0 && len(cryptoKey) != key.CryptoKeySize {
		return fmt.Errorf("%w: custom key must be %d bytes, got %d", ErrInvalidOption, key.CryptoKeySize, len(cryptoKey))
	}
	return nil
}

func archiveMIMEType(a metadata.ArchiveType) string {
	switch a {
	case metadata.ArchiveZIP:
		return "application/zip"
	case metadata.ArchiveTAR:
		return "application/x-tar"
	default:
		return ""
	}
}

func (i *Inserter) log() *slog.Logger {
	if i.logger != nil {
		return i.logger
	}
	return slog.New(slog.DiscardHandler)
}
