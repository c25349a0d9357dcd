package vaultcrypt

import (
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"strings"
)

// Blob is the on-disk envelope of every encrypted secret. Its JSON form is
// {"salt", "iv", "data"} with hex values, plus "cipher" and "iter" when they
// differ from the defaults.
type Blob struct {
	// Salt is the PBKDF2 salt.
	Salt []byte

	// IV is the CBC IV, or the AEAD nonce.
	IV []byte

	// Data is the ciphertext.
	Data []byte

	// Cipher is the scheme the blob was sealed with.
	Cipher Cipher

	// Iterations is the PBKDF2 work factor used for the key.
	Iterations int
}

type blobJSON struct {
	Salt       string `json:"salt"`
	IV         string `json:"iv"`
	Data       string `json:"data"`
	Cipher     string `json:"cipher,omitempty"`
	Iterations int    `json:"iter,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (b *Blob) MarshalJSON() ([]byte, error) {
	enc := blobJSON{
		Salt: hex.EncodeToString(b.Salt),
		IV:   hex.EncodeToString(b.IV),
		Data: hex.EncodeToString(b.Data),
	}
	if b.Cipher != CipherAESCBC {
		enc.Cipher = string(b.Cipher)
	}
	if b.Iterations != DefaultIterations {
		enc.Iterations = b.Iterations
	}

	return json.Marshal(enc)
}

// UnmarshalJSON implements json.Unmarshaler. Any malformed field is reported
// as ErrDecryption since a damaged envelope can't be opened.
func (b *Blob) UnmarshalJSON(data []byte) error {
	var dec blobJSON
	if err := json.Unmarshal(data, &dec); err != nil {
		return ErrDecryption
	}

	var err error
	if b.Salt, err = hex.DecodeString(dec.Salt); err != nil {
		return ErrDecryption
	}
	if b.IV, err = hex.DecodeString(dec.IV); err != nil {
		return ErrDecryption
	}
	if b.Data, err = hex.DecodeString(dec.Data); err != nil {
		return ErrDecryption
	}

	b.Cipher = CipherAESCBC
	if dec.Cipher != "" {
		b.Cipher = Cipher(dec.Cipher)
	}

	b.Iterations = DefaultIterations
	if dec.Iterations != 0 {
		b.Iterations = dec.Iterations
	}

	return nil
}

// Encode returns the text-safe file form of the blob: base64 over its JSON.
func (b *Blob) Encode() (string, error) {
	raw, err := json.Marshal(b)
	if err != nil {
		return "", err
	}

	return base64.StdEncoding.EncodeToString(raw), nil
}

// DecodeBlob parses the output of Blob.Encode.
func DecodeBlob(s string) (*Blob, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, ErrDecryption
	}

	var b Blob
	if err := json.Unmarshal(raw, &b); err != nil {
		return nil, ErrDecryption
	}

	return &b, nil
}

// EncryptString seals a string and returns the encoded envelope.
func (c *Crypter) EncryptString(plaintext, password []byte) (string, error) {
	blob, err := c.Encrypt(plaintext, password)
	if err != nil {
		return "", err
	}

	return blob.Encode()
}

// DecryptString opens an encoded envelope.
func (c *Crypter) DecryptString(encoded string, password []byte) ([]byte,
	error) {

	blob, err := DecodeBlob(encoded)
	if err != nil {
		return nil, err
	}

	return c.Decrypt(blob, password)
}
