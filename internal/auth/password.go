package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"

	"golang.org/x/crypto/pbkdf2"
)

// DefaultIterations matches current OWASP guidance for PBKDF2-SHA256.
const DefaultIterations = 600_000

const verifierLen = 32

func RandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	return b, nil
}

// DeriveVerifier hashes the operator password for at-rest storage. The
// verifier and salt are stored hex-encoded in the environment, never the
// password itself.
func DeriveVerifier(password string, salt []byte, iterations int) []byte {
	return pbkdf2.Key([]byte(password), salt, iterations, verifierLen, sha256.New)
}

// VerifyPassword re-derives the verifier from a login attempt and compares
// in constant time.
func VerifyPassword(password string, salt, verifier []byte, iterations int) bool {
	derived := DeriveVerifier(password, salt, iterations)
	return hmac.Equal(derived, verifier)
}

// DecodeHex is a small helper for hex-encoded env secrets.
func DecodeHex(s string) ([]byte, error) {
	return hex.DecodeString(s)
}
