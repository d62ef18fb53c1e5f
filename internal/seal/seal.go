// Package seal encrypts stored content and splitfile blocks.
//
// Content is sealed with ChaCha20-Poly1305. Keys are derived from the content
// itself, so every key seals one logical piece of content; the nonce is the
// block index within that content (zero for single blobs).
package seal

import (
	"encoding/binary"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// KeySize is the required key length.
const KeySize = chacha20poly1305.KeySize

// Overhead is the number of bytes Seal adds to the plaintext.
const Overhead = chacha20poly1305.Overhead

// ErrDecrypt is returned when ciphertext fails authentication.
var ErrDecrypt = errors.New("seal: decryption failed")

// Seal encrypts plaintext as block index under key.
func Seal(key []byte, index uint64, plaintext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("seal: %w", err)
	}
	return aead.Seal(nil, nonce(index), plaintext, nil), nil
}

// Open decrypts ciphertext produced by Seal for the same key and index.
func Open(key []byte, index uint64, ciphertext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecrypt, err)
	}
	plaintext, err := aead.Open(nil, nonce(index), ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: block %d: %v", ErrDecrypt, index, err)
	}
	return plaintext, nil
}

func nonce(index uint64) []byte {
	n := make([]byte, chacha20poly1305.NonceSize)
	binary.BigEndian.PutUint64(n[len(n)-8:], index)
	return n
}
