package insert

import (
	"log/slog"

	"github.com/meigma/keyutils/metadata"
)

// Option configures an Inserter.
type Option func(*Inserter)

// WithLogger sets the logger for insert diagnostics.
// If not set, logging is disabled.
func WithLogger(logger *slog.Logger) Option {
	return func(i *Inserter) {
		i.logger = logger
	}
}

// WithBlockSize sets the splitfile block size in bytes.
// Defaults to DefaultBlockSize.
func WithBlockSize(n int) Option {
	return func(i *Inserter) {
		i.blockSize = n
	}
}

// WithSplitThreshold sets the largest payload stored as a single data layer.
// Larger payloads become splitfiles. Defaults to DefaultSplitThreshold.
func WithSplitThreshold(n int64) Option {
	return func(i *Inserter) {
		i.splitThreshold = n
	}
}

// WithMaxMetadataSize sets the largest metadata document stored directly.
// Larger documents are wrapped in multi-level metadata.
// Defaults to DefaultMaxMetadataSize.
func WithMaxMetadataSize(n int) Option {
	return func(i *Inserter) {
		i.maxMetadataSize = n
	}
}

// WithDigestTags controls whether every pushed manifest is also tagged with
// its own digest. Local stores that only resolve tags need this to resolve
// digest keys; registries resolve digests natively. Defaults to true.
func WithDigestTags(enabled bool) Option {
	return func(i *Inserter) {
		i.digestTags = enabled
	}
}

// InsertOption configures a single insert.
type InsertOption func(*insertConfig)

type insertConfig struct {
	codec       metadata.Codec
	mimeType    string
	customKey   []byte
	encrypt     bool
	topData     bool
	tag         string
	annotations map[string]string
}

func newInsertConfig(opts []InsertOption) insertConfig {
	cfg := insertConfig{
		codec:   metadata.CodecZstd,
		encrypt: true,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// WithCompression sets the splitfile compression codec. Defaults to ZSTD.
func WithCompression(codec metadata.Codec) InsertOption {
	return func(c *insertConfig) {
		c.codec = codec
	}
}

// WithMIMEType records a MIME type. Small payloads with a MIME type are
// stored behind a redirect so the type has somewhere to live.
func WithMIMEType(mimeType string) InsertOption {
	return func(c *insertConfig) {
		c.mimeType = mimeType
	}
}

// WithCustomKey encrypts splitfile blocks with cryptoKey instead of the key
// derived from the content hashes.
func WithCustomKey(cryptoKey []byte) InsertOption {
	return func(c *insertConfig) {
		c.customKey = cryptoKey
	}
}

// WithEncryption controls whether the layer referenced by the returned key
// is encrypted. The key then carries the crypto key. Defaults to true.
func WithEncryption(enabled bool) InsertOption {
	return func(c *insertConfig) {
		c.encrypt = enabled
	}
}

// WithTopData records top block summary data in splitfile metadata.
func WithTopData() InsertOption {
	return func(c *insertConfig) {
		c.topData = true
	}
}

// WithTag tags the top-level manifest.
func WithTag(tag string) InsertOption {
	return func(c *insertConfig) {
		c.tag = tag
	}
}

// WithAnnotations sets annotations on the top-level manifest.
func WithAnnotations(annotations map[string]string) InsertOption {
	return func(c *insertConfig) {
		c.annotations = annotations
	}
}
