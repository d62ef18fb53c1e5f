package metadata

import (
	"bytes"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"

	"github.com/zeebo/blake3"
)

// HashType identifies a hash algorithm.
type HashType uint8

const (
	HashSHA256 HashType = iota + 1
	HashSHA512
	HashBLAKE3
)

func (h HashType) String() string {
	switch h {
	case HashSHA256:
		return "SHA256"
	case HashSHA512:
		return "SHA512"
	case HashBLAKE3:
		return "BLAKE3"
	default:
		return fmt.Sprintf("HASH_%d", uint8(h))
	}
}

func (h HashType) new() (hash.Hash, error) {
	switch h {
	case HashSHA256:
		return sha256.New(), nil
	case HashSHA512:
		return sha512.New(), nil
	case HashBLAKE3:
		return blake3.New(), nil
	default:
		return nil, fmt.Errorf("unsupported hash type %s", h)
	}
}

// Hash is a digest of content under one algorithm.
type Hash struct {
	Type HashType
	Sum  []byte
}

// Hex returns the digest as lower-case hex.
func (h Hash) Hex() string {
	return hex.EncodeToString(h.Sum)
}

// ComputeHashes hashes data with each of the given algorithms.
func ComputeHashes(data []byte, types ...HashType) ([]Hash, error) {
	out := make([]Hash, 0, len(types))
	for _, t := range types {
		h, err := t.new()
		if err != nil {
			return nil, err
		}
		_, _ = h.Write(data) //nolint:errcheck // hash writes never fail
		out = append(out, Hash{Type: t, Sum: h.Sum(nil)})
	}
	return out, nil
}

// VerifyHashes checks data against every hash whose algorithm is known.
func VerifyHashes(data []byte, hashes []Hash) error {
	for _, want := range hashes {
		h, err := want.Type.new()
		if err != nil {
			continue
		}
		_, _ = h.Write(data) //nolint:errcheck // hash writes never fail
		if !bytes.Equal(h.Sum(nil), want.Sum) {
			return fmt.Errorf("%w: %s", ErrHashMismatch, want.Type)
		}
	}
	return nil
}

// cryptoKeyDomain separates derived crypto keys from other BLAKE3 uses.
var cryptoKeyDomain = sha256.Sum256([]byte("keyutils/v1 content crypto key"))

// CryptoKey derives the default content crypto key from the SHA256 entry of
// hashes. It returns ErrNoCryptoHash when there is no SHA256 entry of the
// right length.
func CryptoKey(hashes []Hash) ([]byte, error) {
	for _, h := range hashes {
		if h.Type != HashSHA256 {
			continue
		}
		if len(h.Sum) != sha256.Size {
			return nil, fmt.Errorf("%w: SHA256 hash has %d bytes", ErrNoCryptoHash, len(h.Sum))
		}
		hasher, err := blake3.NewKeyed(cryptoKeyDomain[:])
		if err != nil {
			return nil, fmt.Errorf("blake3 keyed hash: %w", err)
		}
		_, _ = hasher.Write(h.Sum) //nolint:errcheck // hash writes never fail
		return hasher.Sum(nil)[:32], nil
	}
	return nil, ErrNoCryptoHash
}
