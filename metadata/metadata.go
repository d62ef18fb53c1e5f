package metadata

import (
	"fmt"
	"strings"

	"github.com/opencontainers/go-digest"

	"github.com/meigma/keyutils/key"
)

// CurrentVersion is the newest metadata version this package reads and writes.
// Version 0 metadata predates crypto keys on redirect targets.
const CurrentVersion uint16 = 1

// Metadata is a decoded metadata document.
type Metadata struct {
	// Version is the parsed format version.
	Version uint16

	Document Document

	// MIMEType is empty when unknown.
	MIMEType string

	// Compression is CodecNone for uncompressed content.
	Compression Codec

	// DecompressedLength is the length of the content after decompression.
	DecompressedLength int64

	// Splitfile is non-nil when the content is split across blocks.
	Splitfile *Splitfile

	// Top is non-nil when summary data for the top block is present.
	Top *TopBlock

	TopCompatibilityMode CompatibilityMode

	// Hashes are computed over the final, decompressed content.
	Hashes []Hash
}

// Splitfile describes content split across fixed-size blocks.
type Splitfile struct {
	// DataLength is the length of the reassembled (still compressed) data.
	DataLength int64

	Blocks []Block

	// CustomKey overrides the hash-derived crypto key for the blocks.
	CustomKey []byte
}

// Block references one splitfile block by digest of its stored bytes.
type Block struct {
	Digest digest.Digest
	Size   int64
}

// TopBlock is summary data recorded for the top block of a splitfile.
type TopBlock struct {
	DontCompress     bool
	CompressedSize   int64
	DecompressedSize int64
	BlocksRequired   int32
	BlocksTotal      int32
}

// Type returns the document type, TypeUnknown for a nil document.
func (m *Metadata) Type() DocumentType {
	if m.Document == nil {
		return TypeUnknown
	}
	return m.Document.Type()
}

// IsSplitfile reports whether the content is a splitfile.
func (m *Metadata) IsSplitfile() bool {
	return m.Splitfile != nil
}

// IsCompressed reports whether the content is compressed.
func (m *Metadata) IsCompressed() bool {
	return m.Compression != CodecNone
}

// HasTopData reports whether top block summary data is present.
func (m *Metadata) HasTopData() bool {
	return m.Top != nil
}

// SingleTarget returns the target key of a simple redirect that is not a
// splitfile.
func (m *Metadata) SingleTarget() (key.Key, bool) {
	if m.IsSplitfile() {
		return key.Key{}, false
	}
	r, ok := m.Document.(SimpleRedirect)
	if !ok || r.Target.IsZero() {
		return key.Key{}, false
	}
	return r.Target, true
}

// ArchiveType returns the archive type of an archive manifest.
func (m *Metadata) ArchiveType() (ArchiveType, bool) {
	a, ok := m.Document.(ArchiveManifest)
	if !ok {
		return 0, false
	}
	return a.Archive, true
}

// SplitfileKey returns the key that decrypts the splitfile blocks: the
// custom key if one is set, otherwise the key derived from the hashes.
func (m *Metadata) SplitfileKey() ([]byte, error) {
	if m.Splitfile != nil && len(m.Splitfile.CustomKey) > 0 {
		return m.Splitfile.CustomKey, nil
	}
	return m.CryptoKey()
}

// CryptoKey derives the default crypto key from the metadata hashes.
func (m *Metadata) CryptoKey() ([]byte, error) {
	return CryptoKey(m.Hashes)
}

// Codec identifies a compression algorithm.
type Codec uint8

const (
	CodecNone Codec = iota
	CodecGzip
	CodecZstd
	CodecLZ4
)

func (c Codec) String() string {
	switch c {
	case CodecNone:
		return "none"
	case CodecGzip:
		return "GZIP"
	case CodecZstd:
		return "ZSTD"
	case CodecLZ4:
		return "LZ4"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(c))
	}
}

// ParseCodec parses a codec name, ignoring case.
func ParseCodec(name string) (Codec, error) {
	switch strings.ToLower(name) {
	case "", "none":
		return CodecNone, nil
	case "gzip":
		return CodecGzip, nil
	case "zstd":
		return CodecZstd, nil
	case "lz4":
		return CodecLZ4, nil
	default:
		return 0, fmt.Errorf("unknown compression codec: %q", name)
	}
}

// CompatibilityMode records which encoding rules produced a splitfile.
// The zero value means no mode was recorded.
type CompatibilityMode uint8

const (
	CompatUnknown CompatibilityMode = iota
	CompatV1
	CompatCurrent
)

func (c CompatibilityMode) String() string {
	switch c {
	case CompatUnknown:
		return "COMPAT_UNKNOWN"
	case CompatV1:
		return "COMPAT_V1"
	case CompatCurrent:
		return "COMPAT_CURRENT"
	default:
		return fmt.Sprintf("COMPAT_%d", uint8(c))
	}
}
