package vaultcfg

import (
	"fmt"

	"github.com/coldvault/coldvault/vaultcrypt"
)

// MinIterations is the smallest key derivation work factor accepted from a
// config file.
const MinIterations = 10000

// Crypto holds the encryption settings used for newly written data. Data
// written earlier always opens with the settings it was sealed with.
//
//nolint:lll
type Crypto struct {
	Cipher     string `long:"cipher" description:"Cipher for newly sealed data." choice:"aes-256-cbc" choice:"xchacha20-poly1305"`
	Iterations int    `long:"iterations" description:"PBKDF2 iterations used to derive encryption keys from the master password."`
}

// DefaultCrypto returns the default encryption settings.
func DefaultCrypto() *Crypto {
	return &Crypto{
		Cipher:     string(vaultcrypt.CipherAESCBC),
		Iterations: vaultcrypt.DefaultIterations,
	}
}

// Validate checks the configured cipher and work factor.
func (c *Crypto) Validate() error {
	if _, err := vaultcrypt.ParseCipher(c.Cipher); err != nil {
		return err
	}

	if c.Iterations < MinIterations {
		return fmt.Errorf("iterations must be at least %d, got %d",
			MinIterations, c.Iterations)
	}

	return nil
}

// Crypter returns the crypter for the configured settings.
func (c *Crypto) Crypter() (*vaultcrypt.Crypter, error) {
	cipher, err := vaultcrypt.ParseCipher(c.Cipher)
	if err != nil {
		return nil, err
	}

	return &vaultcrypt.Crypter{
		Cipher:     cipher,
		Iterations: c.Iterations,
	}, nil
}
