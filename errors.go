package keyutils

import (
	"errors"

	"github.com/meigma/keyutils/hexdump"
	"github.com/meigma/keyutils/key"
	"github.com/meigma/keyutils/metadata"
	"github.com/meigma/keyutils/oci"
)

// ErrConflictingSources is returned by New when more than one key source
// option is given.
var ErrConflictingSources = errors.New("keyutils: WithTarget, WithRemote and WithLayout are mutually exclusive")

// Errors re-exported from the subpackages.
var (
	// ErrInvalidKey is returned when a key string is malformed.
	ErrInvalidKey = key.ErrInvalidKey

	// ErrNotFound is returned when a registry has no content for a key.
	ErrNotFound = oci.ErrNotFound

	// ErrUnauthorized is returned when a registry rejects the credentials.
	ErrUnauthorized = oci.ErrUnauthorized

	// ErrMetadataParse is returned when metadata bytes cannot be decoded.
	ErrMetadataParse = metadata.ErrParse

	// ErrWidthOutOfRange is returned for hex dump widths outside 1-1024.
	ErrWidthOutOfRange = hexdump.ErrWidthOutOfRange
)
