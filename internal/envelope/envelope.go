// Package envelope seals subscriber PII fields with AES-256-GCM before they
// reach the database and opens them on the way back out.
//
// The stored form is hex(nonce) + ":" + hex(ciphertext||tag). Values written
// before encryption was introduced carry no ":" and are passed through
// unchanged on read; no new plaintext values are ever written.
package envelope

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// Delimiter separates the hex-encoded nonce from the hex-encoded
// ciphertext-plus-tag. ':' is not a hex digit, so its presence marks an
// encrypted value.
const Delimiter = ":"

// KeySize is the AES-256 key length in bytes.
const KeySize = 32

// ParseKey decodes a 64-character hex key into raw AES-256 key bytes.
func ParseKey(hexKey string) ([]byte, error) {
	trimmed := strings.TrimSpace(hexKey)
	key, err := hex.DecodeString(trimmed)
	if err != nil {
		return nil, fmt.Errorf("encryption key is not valid hex: %w", err)
	}
	if len(key) != KeySize {
		return nil, fmt.Errorf("encryption key must be %d bytes (%d hex chars), got %d bytes", KeySize, KeySize*2, len(key))
	}
	return key, nil
}

// Codec encrypts and decrypts individual string fields. The key is loaded
// once at process start and never leaves this struct.
type Codec struct {
	aead cipher.AEAD
}

func NewCodec(key []byte) (*Codec, error) {
	if len(key) != KeySize {
		return nil, errors.New("envelope: key must be 32 bytes (AES-256)")
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &Codec{aead: aead}, nil
}

// Seal encrypts plaintext under a fresh random nonce. Nonce reuse under the
// same key breaks GCM completely, so the nonce is drawn from crypto/rand on
// every call and never derived from the input.
func (c *Codec) Seal(plaintext string) (string, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("envelope: nonce: %w", err)
	}
	sealed := c.aead.Seal(nil, nonce, []byte(plaintext), nil)
	return hex.EncodeToString(nonce) + Delimiter + hex.EncodeToString(sealed), nil
}

// Open decrypts a stored value.
//
// A value without the delimiter is legacy plaintext and is returned as-is.
// Any failure past that point (malformed hex, truncated envelope, GCM
// authentication failure) also returns the stored string verbatim: a single
// bad record must not take down a listing endpoint. Callers who need to
// detect tamper have to check the result for the envelope shape themselves.
func (c *Codec) Open(stored string) string {
	noncePart, ctPart, found := strings.Cut(stored, Delimiter)
	if !found {
		return stored
	}
	nonce, err := hex.DecodeString(noncePart)
	if err != nil || len(nonce) != c.aead.NonceSize() {
		return stored
	}
	sealed, err := hex.DecodeString(ctPart)
	if err != nil || len(sealed) < c.aead.Overhead() {
		return stored
	}
	plaintext, err := c.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return stored
	}
	return string(plaintext)
}
