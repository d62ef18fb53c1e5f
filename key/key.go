// Package key parses and formats content keys.
//
// A key names one OCI manifest in a repository, by tag or by digest, and may
// carry the crypto key needed to decrypt the content it references:
//
//	registry.example.com/site@sha256:4f5e...#9c1d...
//
// The part after '#' is the hex-encoded crypto key.
package key

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/opencontainers/go-digest"
	"oras.land/oras-go/v2/registry"
)

// CryptoKeySize is the length of a content crypto key in bytes.
const CryptoKeySize = 32

// ErrInvalidKey is returned when a key string is malformed.
var ErrInvalidKey = errors.New("key: invalid key")

var schemePrefixes = []string{"oci://", "keyutils:"}

// Key identifies content in a key-addressed store.
type Key struct {
	Registry   string
	Repository string
	// Reference is a tag or a digest.
	Reference string
	CryptoKey []byte
}

// Parse parses a key string, stripping surrounding whitespace and an
// optional "oci://" or "keyutils:" prefix.
func Parse(s string) (Key, error) {
	raw := strings.TrimSpace(s)
	for _, p := range schemePrefixes {
		raw = strings.TrimPrefix(raw, p)
	}
	if raw == "" {
		return Key{}, fmt.Errorf("%w: empty key", ErrInvalidKey)
	}

	var cryptoKey []byte
	if i := strings.LastIndexByte(raw, '#'); i >= 0 {
		ck, err := hex.DecodeString(raw[i+1:])
		if err != nil {
			return Key{}, fmt.Errorf("%w: crypto key: %v", ErrInvalidKey, err)
		}
		if len(ck) != CryptoKeySize {
			return Key{}, fmt.Errorf("%w: crypto key must be %d bytes, got %d", ErrInvalidKey, CryptoKeySize, len(ck))
		}
		cryptoKey = ck
		raw = raw[:i]
	}

	ref, err := registry.ParseReference(raw)
	if err != nil {
		return Key{}, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	if ref.Reference == "" {
		return Key{}, fmt.Errorf("%w: key must include a tag or digest", ErrInvalidKey)
	}

	return Key{
		Registry:   ref.Registry,
		Repository: ref.Repository,
		Reference:  ref.Reference,
		CryptoKey:  cryptoKey,
	}, nil
}

// MustParse is like Parse but panics on error. Intended for tests and constants.
func MustParse(s string) Key {
	k, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return k
}

// String returns the canonical text form of the key.
func (k Key) String() string {
	var sb strings.Builder
	sb.WriteString(k.Repo())
	if k.IsDigest() {
		sb.WriteByte('@')
	} else {
		sb.WriteByte(':')
	}
	sb.WriteString(k.Reference)
	if len(k.CryptoKey) > 0 {
		sb.WriteByte('#')
		sb.WriteString(hex.EncodeToString(k.CryptoKey))
	}
	return sb.String()
}

// Repo returns "registry/repository".
func (k Key) Repo() string {
	return k.Registry + "/" + k.Repository
}

// IsZero reports whether k is the zero key.
func (k Key) IsZero() bool {
	return k.Registry == "" && k.Repository == "" && k.Reference == ""
}

// IsDigest reports whether the key references content by digest.
func (k Key) IsDigest() bool {
	_, err := digest.Parse(k.Reference)
	return err == nil
}

// WithDigest returns a key for dgst in the same repository, without a crypto key.
func (k Key) WithDigest(dgst digest.Digest) Key {
	return Key{
		Registry:   k.Registry,
		Repository: k.Repository,
		Reference:  dgst.String(),
	}
}

// WithCryptoKey returns a copy of k carrying cryptoKey.
func (k Key) WithCryptoKey(cryptoKey []byte) Key {
	k.CryptoKey = bytes.Clone(cryptoKey)
	return k
}

// Equal reports whether two keys are identical, crypto key included.
func (k Key) Equal(other Key) bool {
	return k.Registry == other.Registry &&
		k.Repository == other.Repository &&
		k.Reference == other.Reference &&
		bytes.Equal(k.CryptoKey, other.CryptoKey)
}
