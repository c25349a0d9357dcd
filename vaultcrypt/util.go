package vaultcrypt

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
)

// ErrEntropyBits is returned when the requested entropy strength is not a
// positive multiple of 32 bits.
var ErrEntropyBits = errors.New("entropy strength must be a positive " +
	"multiple of 32")

// Checksum returns the hex encoded SHA-256 digest of data.
func Checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// VerifyChecksum reports whether digest is the checksum of data.
func VerifyChecksum(data []byte, digest string) bool {
	want := Checksum(data)
	return subtle.ConstantTimeCompare([]byte(want), []byte(digest)) == 1
}

// SecureRandom returns n bytes from the system CSPRNG.
func SecureRandom(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return nil, fmt.Errorf("unable to read random bytes: %w", err)
	}

	return b, nil
}

// GenerateEntropy returns bits/8 random bytes suitable for a recovery phrase.
func GenerateEntropy(bits int) ([]byte, error) {
	if bits <= 0 || bits%32 != 0 {
		return nil, fmt.Errorf("%w: %d", ErrEntropyBits, bits)
	}

	return SecureRandom(bits / 8)
}

// Zero overwrites b with zeroes.
func Zero(b []byte) {
	clear(b)
}
