package keychain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/wire"
	"github.com/coldvault/coldvault/coinreg"
)

const (
	// BIP0044Purpose is the purpose of every account path we derive
	// under.
	BIP0044Purpose = 44

	// ExternalBranch is the receive branch below an account. Change is
	// sent back to the first receive address, so the internal branch is
	// never used.
	ExternalBranch = 0

	// HardenedKeyStart is the index of the first hardened child.
	HardenedKeyStart = hdkeychain.HardenedKeyStart
)

var (
	// ErrInvalidPath is returned when a derivation path string can't be
	// parsed.
	ErrInvalidPath = errors.New("invalid derivation path")

	// ErrKeyTreeWiped is returned when a key tree is used after Zero.
	ErrKeyTreeWiped = errors.New("key tree has been wiped")
)

// DerivationPath is a BIP-32 path from the master key. Hardened components
// carry HardenedKeyStart.
//
// The paths used for addresses follow BIP-44:
//
//   - m/44'/coinType'/account'/0/index
type DerivationPath []uint32

// ParsePath parses a path of the form "m/44'/0'/0'/0/5". Both ' and h mark a
// hardened component.
func ParsePath(path string) (DerivationPath, error) {
	parts := strings.Split(strings.TrimSpace(path), "/")
	if len(parts) == 0 || parts[0] != "m" {
		return nil, fmt.Errorf("%w: %q must start with m", ErrInvalidPath,
			path)
	}

	out := make(DerivationPath, 0, len(parts)-1)
	for _, part := range parts[1:] {
		hardened := strings.HasSuffix(part, "'") ||
			strings.HasSuffix(part, "h")
		if hardened {
			part = part[:len(part)-1]
		}

		idx, err := strconv.ParseUint(part, 10, 32)
		if err != nil || idx >= HardenedKeyStart {
			return nil, fmt.Errorf("%w: bad component %q in %q",
				ErrInvalidPath, part, path)
		}

		child := uint32(idx)
		if hardened {
			child += HardenedKeyStart
		}
		out = append(out, child)
	}

	return out, nil
}

// String renders the path using ' for hardened components.
func (p DerivationPath) String() string {
	var b strings.Builder
	b.WriteString("m")
	for _, child := range p {
		b.WriteString("/")
		if child >= HardenedKeyStart {
			b.WriteString(strconv.FormatUint(
				uint64(child-HardenedKeyStart), 10,
			))
			b.WriteString("'")
			continue
		}
		b.WriteString(strconv.FormatUint(uint64(child), 10))
	}

	return b.String()
}

// Child returns a copy of the path extended by the given components.
func (p DerivationPath) Child(children ...uint32) DerivationPath {
	out := make(DerivationPath, 0, len(p)+len(children))
	out = append(out, p...)
	return append(out, children...)
}

// AddressPath returns the receive path of the index-th address under an
// account path.
func AddressPath(account DerivationPath, index uint32) DerivationPath {
	return account.Child(ExternalBranch, index)
}

// DerivedAddress is a receive address produced by a key tree.
type DerivedAddress struct {
	// Address is the encoded P2PKH address.
	Address string

	// Path is the full derivation path of the key.
	Path DerivationPath

	// Index is the last path component.
	Index uint32

	// PubKey is the public key behind the address.
	PubKey *btcec.PublicKey

	// Currency is the symbol of the currency the address belongs to.
	Currency string
}

// PubKeyHex returns the hex encoded compressed public key.
func (d *DerivedAddress) PubKeyHex() string {
	return fmt.Sprintf("%x", d.PubKey.SerializeCompressed())
}

// KeyRing derives public material only.
type KeyRing interface {
	// DeriveAddress derives the index-th receive address of currency.
	DeriveAddress(c *coinreg.Currency,
		index uint32) (*DerivedAddress, error)

	// ExtendedPublicKey returns the account level extended public key
	// of currency.
	ExtendedPublicKey(c *coinreg.Currency) (string, error)
}

// SecretKeyRing is a KeyRing that can also produce private keys and sign.
type SecretKeyRing interface {
	KeyRing

	// DerivePrivateKey derives the private key at path. The caller must
	// Zero the key when done with it.
	DerivePrivateKey(path DerivationPath) (*btcec.PrivateKey, error)

	// SignTx adds a signature script to every input described by descs.
	SignTx(tx *wire.MsgTx, descs []*SignDescriptor) error
}
