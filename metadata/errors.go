package metadata

import "errors"

// Sentinel errors for metadata operations.
var (
	// ErrParse is returned when metadata bytes cannot be decoded.
	ErrParse = errors.New("metadata: parse error")

	// ErrNoCryptoHash is returned when no crypto key can be derived because
	// the metadata carries no usable SHA256 hash.
	ErrNoCryptoHash = errors.New("metadata: no hash to derive crypto key from")

	// ErrHashMismatch is returned when content does not match a declared hash.
	ErrHashMismatch = errors.New("metadata: hash mismatch")
)
