package keychain

import (
	"fmt"
	"sync"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/coldvault/coldvault/coinreg"
	"github.com/coldvault/coldvault/vaultcrypt"
	"github.com/tyler-smith/go-bip39"
)

// KeyTree is the hierarchy of keys rooted in a single recovery phrase. All
// derivation is deterministic: the same phrase always yields the same keys
// and addresses.
//
// A KeyTree is safe for concurrent use.
type KeyTree struct {
	mu sync.Mutex

	phrase []byte
	master *hdkeychain.ExtendedKey

	// accounts caches the hardened account keys by their path string, so
	// repeated address derivation only performs the two public steps.
	accounts map[string]*hdkeychain.ExtendedKey
}

// A compile time check to ensure KeyTree implements the SecretKeyRing
// interface.
var _ SecretKeyRing = (*KeyTree)(nil)

// NewKeyTree builds a key tree from a recovery phrase. An empty phrase
// generates a new 24 word phrase.
func NewKeyTree(phrase string) (*KeyTree, error) {
	phrase = NormalizeMnemonic(phrase)
	if phrase == "" {
		var err error
		phrase, err = NewMnemonic()
		if err != nil {
			return nil, fmt.Errorf("unable to generate mnemonic: %w",
				err)
		}
	} else if !bip39.IsMnemonicValid(phrase) {
		return nil, ErrInvalidMnemonic
	}

	seed := bip39.NewSeed(phrase, "")
	defer vaultcrypt.Zero(seed)

	// Extended keys carry the bitcoin mainnet versions; per-currency
	// versions are applied when an extended key is exported.
	master, err := hdkeychain.NewMaster(seed, &chaincfg.MainNetParams)
	if err != nil {
		return nil, fmt.Errorf("unable to create master key: %w", err)
	}

	return &KeyTree{
		phrase:   []byte(phrase),
		master:   master,
		accounts: make(map[string]*hdkeychain.ExtendedKey),
	}, nil
}

// Phrase returns a copy of the recovery phrase.
func (k *KeyTree) Phrase() ([]byte, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.master == nil {
		return nil, ErrKeyTreeWiped
	}

	return append([]byte(nil), k.phrase...), nil
}

// Zero wipes the phrase and every cached private key. The tree is unusable
// afterwards.
func (k *KeyTree) Zero() {
	k.mu.Lock()
	defer k.mu.Unlock()

	vaultcrypt.Zero(k.phrase)
	k.phrase = nil

	if k.master != nil {
		k.master.Zero()
		k.master = nil
	}
	for path, key := range k.accounts {
		key.Zero()
		delete(k.accounts, path)
	}
}

// deriveLocked walks path from the master key, starting at the longest
// cached account prefix. The caller must hold mu.
func (k *KeyTree) deriveLocked(path DerivationPath) (*hdkeychain.ExtendedKey,
	error) {

	if k.master == nil {
		return nil, ErrKeyTreeWiped
	}

	key := k.master
	start := 0
	for i := len(path); i > 0; i-- {
		if cached, ok := k.accounts[path[:i].String()]; ok {
			key, start = cached, i
			break
		}
	}

	for _, child := range path[start:] {
		next, err := key.Derive(child)
		if err != nil {
			return nil, fmt.Errorf("unable to derive %v: %w", path,
				err)
		}
		key = next
	}

	return key, nil
}

// accountKeyLocked returns the cached hardened account key at account. The
// caller must hold mu, and the key must not be used after mu is released.
func (k *KeyTree) accountKeyLocked(
	account DerivationPath) (*hdkeychain.ExtendedKey, error) {

	if key, ok := k.accounts[account.String()]; ok {
		return key, nil
	}

	key, err := k.deriveLocked(account)
	if err != nil {
		return nil, err
	}
	k.accounts[account.String()] = key

	return key, nil
}

// deriveAddressLocked derives the receive address at index below the
// account of c. The caller must hold mu.
func (k *KeyTree) deriveAddressLocked(c *coinreg.Currency,
	accountPath DerivationPath, index uint32) (*DerivedAddress, error) {

	if index >= HardenedKeyStart {
		return nil, fmt.Errorf("%w: address index %d out of range",
			ErrInvalidPath, index)
	}

	account, err := k.accountKeyLocked(accountPath)
	if err != nil {
		return nil, err
	}

	branch, err := account.Derive(ExternalBranch)
	if err != nil {
		return nil, err
	}
	child, err := branch.Derive(index)
	if err != nil {
		return nil, err
	}

	pubKey, err := child.ECPubKey()
	if err != nil {
		return nil, err
	}

	addr, err := btcutil.NewAddressPubKeyHash(
		btcutil.Hash160(pubKey.SerializeCompressed()), c.Params(),
	)
	if err != nil {
		return nil, err
	}

	path := AddressPath(accountPath, index)
	log.Tracef("Derived %v address at %v", c.Symbol, path)

	return &DerivedAddress{
		Address:  addr.EncodeAddress(),
		Path:     path,
		Index:    index,
		PubKey:   pubKey,
		Currency: c.Symbol,
	}, nil
}

// DeriveAddress derives the P2PKH receive address at
// {currency path}/0/index, encoded with the currency's version bytes.
//
// NOTE: This is part of the keychain.KeyRing interface.
func (k *KeyTree) DeriveAddress(c *coinreg.Currency,
	index uint32) (*DerivedAddress, error) {

	accountPath, err := ParsePath(c.DerivationPath)
	if err != nil {
		return nil, err
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	return k.deriveAddressLocked(c, accountPath, index)
}

// DeriveAddresses derives count consecutive receive addresses starting at
// start.
func (k *KeyTree) DeriveAddresses(c *coinreg.Currency, start,
	count uint32) ([]*DerivedAddress, error) {

	accountPath, err := ParsePath(c.DerivationPath)
	if err != nil {
		return nil, err
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	addrs := make([]*DerivedAddress, 0, count)
	for i := uint32(0); i < count; i++ {
		addr, err := k.deriveAddressLocked(c, accountPath, start+i)
		if err != nil {
			return nil, err
		}
		addrs = append(addrs, addr)
	}

	return addrs, nil
}

// OwnsAddress reports whether address is one of the receive addresses
// 0..maxIndex of currency. The probe is linear.
func (k *KeyTree) OwnsAddress(address string, c *coinreg.Currency,
	maxIndex uint32) (bool, error) {

	accountPath, err := ParsePath(c.DerivationPath)
	if err != nil {
		return false, err
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	for i := uint32(0); i <= maxIndex; i++ {
		addr, err := k.deriveAddressLocked(c, accountPath, i)
		if err != nil {
			return false, err
		}
		if addr.Address == address {
			return true, nil
		}

		// Guard the wrap around when maxIndex is the last index.
		if i == HardenedKeyStart-1 {
			break
		}
	}

	return false, nil
}

// DerivePrivateKey derives the private key at path. The caller must Zero it
// when done.
//
// NOTE: This is part of the keychain.SecretKeyRing interface.
func (k *KeyTree) DerivePrivateKey(path DerivationPath) (*btcec.PrivateKey,
	error) {

	k.mu.Lock()
	defer k.mu.Unlock()

	key, err := k.deriveLocked(path)
	if err != nil {
		return nil, err
	}

	return key.ECPrivKey()
}

// ExtendedPublicKey returns the account level extended public key of
// currency, using the currency's HD version bytes.
//
// NOTE: This is part of the keychain.KeyRing interface.
func (k *KeyTree) ExtendedPublicKey(c *coinreg.Currency) (string, error) {
	accountPath, err := ParsePath(c.DerivationPath)
	if err != nil {
		return "", err
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	account, err := k.accountKeyLocked(accountPath)
	if err != nil {
		return "", err
	}

	pub, err := account.Neuter()
	if err != nil {
		return "", err
	}

	params := c.Params()
	pub, err = pub.CloneWithVersion(params.HDPublicKeyID[:])
	if err != nil {
		return "", err
	}

	return pub.String(), nil
}

// MasterPublicKey returns the extended public key of the root.
func (k *KeyTree) MasterPublicKey() (string, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.master == nil {
		return "", ErrKeyTreeWiped
	}

	pub, err := k.master.Neuter()
	if err != nil {
		return "", err
	}

	return pub.String(), nil
}
