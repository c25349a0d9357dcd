package keychain

import (
	"errors"
	"strings"

	"github.com/coldvault/coldvault/vaultcrypt"
	"github.com/tyler-smith/go-bip39"
)

const (
	// DefaultEntropyBits is the strength of generated phrases, 24 words.
	DefaultEntropyBits = 256
)

// ErrInvalidMnemonic is returned for a phrase that isn't a valid BIP-39
// mnemonic, either because of an unknown word or a bad checksum.
var ErrInvalidMnemonic = errors.New("invalid mnemonic phrase")

// NewMnemonic generates a fresh 24 word recovery phrase.
func NewMnemonic() (string, error) {
	entropy, err := vaultcrypt.GenerateEntropy(DefaultEntropyBits)
	if err != nil {
		return "", err
	}
	defer vaultcrypt.Zero(entropy)

	return bip39.NewMnemonic(entropy)
}

// NormalizeMnemonic collapses all whitespace in a phrase to single spaces.
func NormalizeMnemonic(phrase string) string {
	return strings.Join(strings.Fields(phrase), " ")
}

// ValidateMnemonic reports whether phrase is a valid BIP-39 mnemonic.
func ValidateMnemonic(phrase string) bool {
	phrase = NormalizeMnemonic(phrase)
	if phrase == "" {
		return false
	}

	return bip39.IsMnemonicValid(phrase)
}
