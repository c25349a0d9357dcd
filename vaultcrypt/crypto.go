package vaultcrypt

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha512"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/pbkdf2"
)

const (
	// DefaultIterations is the PBKDF2 work factor used for every secret
	// written to disk.
	DefaultIterations = 100000

	// FastIterations is a work factor for tests only. Blobs record a
	// non-default iteration count, so they stay decryptable.
	FastIterations = 1

	// KeyLen is the length of the derived symmetric key.
	KeyLen = 32

	// SaltLen is the length of the random PBKDF2 salt.
	SaltLen = 32

	// cbcIVLen is the IV length of AES-256-CBC.
	cbcIVLen = aes.BlockSize
)

// Cipher names a symmetric scheme an envelope was sealed with.
type Cipher string

const (
	// CipherAESCBC is AES-256 in CBC mode with PKCS#7 padding. It has no
	// integrity tag: a wrong password is only detected when the padding
	// happens to be invalid.
	CipherAESCBC Cipher = "aes-256-cbc"

	// CipherXChaCha20Poly1305 is the authenticated alternative. A wrong
	// password or a modified ciphertext always fails to open.
	CipherXChaCha20Poly1305 Cipher = "xchacha20-poly1305"
)

var (
	// ErrDecryption is returned when a blob cannot be opened with the
	// given password, either because the password is wrong or because the
	// data has been corrupted. The two cases can't always be told apart.
	ErrDecryption = errors.New("decryption failed: invalid password " +
		"or corrupted data")

	// ErrUnknownCipher is returned for a cipher name we don't implement.
	ErrUnknownCipher = errors.New("unknown cipher")
)

// ParseCipher maps a configured cipher name to a Cipher.
func ParseCipher(name string) (Cipher, error) {
	switch c := Cipher(name); c {
	case CipherAESCBC, CipherXChaCha20Poly1305:
		return c, nil

	case "":
		return CipherAESCBC, nil

	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownCipher, name)
	}
}

// DeriveKey stretches a password into a symmetric key with
// PBKDF2-HMAC-SHA512. The same password, salt and iteration count always
// produce the same key.
func DeriveKey(password, salt []byte, iterations int) []byte {
	return pbkdf2.Key(password, salt, iterations, KeyLen, sha512.New)
}

// Crypter seals and opens Blobs under a password.
type Crypter struct {
	// Cipher is used for new blobs. Opening always honours the cipher
	// recorded in the blob itself.
	Cipher Cipher

	// Iterations is the PBKDF2 work factor for new blobs.
	Iterations int
}

// DefaultCrypter returns a Crypter with the on-disk defaults.
func DefaultCrypter() *Crypter {
	return &Crypter{
		Cipher:     CipherAESCBC,
		Iterations: DefaultIterations,
	}
}

// Encrypt seals plaintext under password. A fresh salt and IV are drawn on
// every call, so sealing the same plaintext twice never yields the same blob.
func (c *Crypter) Encrypt(plaintext, password []byte) (*Blob, error) {
	iterations := c.Iterations
	if iterations <= 0 {
		iterations = DefaultIterations
	}
	suite := c.Cipher
	if suite == "" {
		suite = CipherAESCBC
	}

	salt, err := SecureRandom(SaltLen)
	if err != nil {
		return nil, err
	}

	key := DeriveKey(password, salt, iterations)
	defer Zero(key)

	blob := &Blob{
		Salt:       salt,
		Cipher:     suite,
		Iterations: iterations,
	}

	switch suite {
	case CipherAESCBC:
		blob.IV, err = SecureRandom(cbcIVLen)
		if err != nil {
			return nil, err
		}
		blob.Data, err = sealCBC(key, blob.IV, plaintext)

	case CipherXChaCha20Poly1305:
		blob.IV, err = SecureRandom(chacha20poly1305.NonceSizeX)
		if err != nil {
			return nil, err
		}
		blob.Data, err = sealXChaCha(key, blob.IV, plaintext)

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCipher, suite)
	}
	if err != nil {
		return nil, fmt.Errorf("encryption failed: %w", err)
	}

	return blob, nil
}

// Decrypt opens a blob under password. Any failure to open is reported as
// ErrDecryption.
func (c *Crypter) Decrypt(blob *Blob, password []byte) ([]byte, error) {
	if blob == nil || len(blob.Salt) == 0 {
		return nil, ErrDecryption
	}

	iterations := blob.Iterations
	if iterations <= 0 {
		iterations = DefaultIterations
	}

	key := DeriveKey(password, blob.Salt, iterations)
	defer Zero(key)

	switch blob.Cipher {
	case CipherAESCBC, "":
		return openCBC(key, blob.IV, blob.Data)

	case CipherXChaCha20Poly1305:
		return openXChaCha(key, blob.IV, blob.Data)

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCipher, blob.Cipher)
	}
}

// Encrypt seals plaintext with the default Crypter.
func Encrypt(plaintext, password []byte) (*Blob, error) {
	return DefaultCrypter().Encrypt(plaintext, password)
}

// Decrypt opens a blob with the default Crypter.
func Decrypt(blob *Blob, password []byte) ([]byte, error) {
	return DefaultCrypter().Decrypt(blob, password)
}

func sealCBC(key, iv, plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	padded := pkcs7Pad(plaintext, aes.BlockSize)
	defer Zero(padded)

	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)

	return ciphertext, nil
}

func openCBC(key, iv, ciphertext []byte) ([]byte, error) {
	if len(iv) != cbcIVLen || len(ciphertext) == 0 ||
		len(ciphertext)%aes.BlockSize != 0 {

		return nil, ErrDecryption
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, ErrDecryption
	}

	padded := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(padded, ciphertext)

	plaintext, ok := pkcs7Unpad(padded, aes.BlockSize)
	if !ok {
		Zero(padded)
		return nil, ErrDecryption
	}

	return plaintext, nil
}

func sealXChaCha(key, nonce, plaintext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}

	return aead.Seal(nil, nonce, plaintext, nil), nil
}

func openXChaCha(key, nonce, ciphertext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, ErrDecryption
	}
	if len(nonce) != aead.NonceSize() {
		return nil, ErrDecryption
	}

	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrDecryption
	}

	return plaintext, nil
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize

	out := make([]byte, len(data), len(data)+n)
	copy(out, data)

	return append(out, bytes.Repeat([]byte{byte(n)}, n)...)
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, bool) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, false
	}

	n := int(data[len(data)-1])
	if n == 0 || n > blockSize || n > len(data) {
		return nil, false
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, false
		}
	}

	return data[:len(data)-n], true
}
