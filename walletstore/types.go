package walletstore

import (
	"encoding/json"
	"time"

	"github.com/btcsuite/btcd/btcutil"
)

// BackupVersion is the format version written into every backup snapshot.
const BackupVersion = "1.0.0"

// Address is a receive address of a wallet together with its locally
// recorded balance.
type Address struct {
	// Address is the encoded address string.
	Address string `json:"address"`

	// DerivationPath is the full BIP-32 path of the address key.
	DerivationPath string `json:"derivationPath"`

	// PublicKey is the hex encoded compressed public key.
	PublicKey string `json:"publicKey"`

	// Balance is the last balance recorded for the address, in base
	// units.
	Balance btcutil.Amount `json:"balance"`

	// Used is set once the address has been seen holding funds.
	Used bool `json:"used"`

	// Currency is the symbol of the currency the address belongs to.
	Currency string `json:"currency"`
}

// Wallet is the persisted record of one wallet. The recovery phrase only
// ever appears encrypted.
type Wallet struct {
	// ID uniquely identifies the wallet within a vault.
	ID string `json:"id"`

	// Name is the user chosen label.
	Name string `json:"name"`

	// EncryptedSeed is the recovery phrase sealed under the master
	// password, in encoded envelope form.
	EncryptedSeed string `json:"encryptedSeed"`

	// Addresses lists the generated addresses in generation order.
	Addresses []Address `json:"addresses"`

	// CreatedAt is when the wallet was created or restored.
	CreatedAt time.Time `json:"createdAt"`

	// LastUsed is refreshed on every mutation.
	LastUsed time.Time `json:"lastUsed"`
}

// Copy returns a deep copy of the wallet.
func (w *Wallet) Copy() *Wallet {
	c := *w
	c.Addresses = append([]Address(nil), w.Addresses...)
	if c.Addresses == nil {
		c.Addresses = []Address{}
	}

	return &c
}

// AddressesFor returns the addresses of the given currency in generation
// order.
func (w *Wallet) AddressesFor(symbol string) []Address {
	var out []Address
	for _, addr := range w.Addresses {
		if addr.Currency == symbol {
			out = append(out, addr)
		}
	}

	return out
}

// BackupSnapshot is the decrypted content of a backup file.
type BackupSnapshot struct {
	// Wallets is the exact JSON the checksum was computed over.
	Wallets json.RawMessage `json:"wallets"`

	// Version is the snapshot format version.
	Version string `json:"version"`

	// Timestamp is when the snapshot was taken.
	Timestamp time.Time `json:"timestamp"`

	// Checksum is the hex SHA-256 of Wallets.
	Checksum string `json:"checksum"`
}
