package walletmgr

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/coldvault/coldvault/coinreg"
	"github.com/coldvault/coldvault/keychain"
	"github.com/coldvault/coldvault/vaultcrypt"
	"github.com/coldvault/coldvault/walletstore"
	"github.com/lightningnetwork/lnd/fn/v2"
)

const (
	// walletIDPrefix starts every wallet id.
	walletIDPrefix = "wallet_"

	// walletIDRandBytes is the size of the random id suffix.
	walletIDRandBytes = 8

	// maxIDAttempts bounds the re-rolls of a colliding wallet id.
	maxIDAttempts = 8
)

// CreatedWallet is the result of creating a wallet. Mnemonic is the only
// time the plaintext recovery phrase is handed out.
type CreatedWallet struct {
	WalletID string
	Mnemonic string
}

// Balance is the recorded balance of one currency in a wallet. Unconfirmed
// is always zero since the vault never talks to a chain.
type Balance struct {
	Currency    string
	Confirmed   btcutil.Amount
	Unconfirmed btcutil.Amount
	Total       btcutil.Amount
}

// CoinSummary describes one currency of a wallet: its first receive address
// and the recorded balance over all of its addresses.
type CoinSummary struct {
	Currency     string
	Name         string
	Address      string
	AddressCount int
	Balance      btcutil.Amount
}

// CreateWallet creates a wallet from the supplied recovery phrase, or from a
// freshly generated 24 word phrase if none is given. Receive address 0 of
// every supported currency is derived right away. The returned mnemonic is
// exactly the supplied phrase.
func (m *Manager) CreateWallet(name string,
	phrase fn.Option[string]) (*CreatedWallet, error) {

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, invalid("name", "must not be empty")
	}

	var supplied string
	if phrase.IsSome() {
		supplied = phrase.UnwrapOr("")
		if keychain.NormalizeMnemonic(supplied) == "" {
			return nil, ErrInvalidMnemonic
		}
	}

	tree, err := keychain.NewKeyTree(supplied)
	if err != nil {
		return nil, err
	}

	// The tree is only kept once the wallet is committed.
	committed := false
	defer func() {
		if !committed {
			tree.Zero()
		}
	}()

	mnemonic := supplied
	if phrase.IsNone() {
		generated, err := tree.Phrase()
		if err != nil {
			return nil, err
		}
		mnemonic = string(generated)
		vaultcrypt.Zero(generated)
	}

	var addrs []walletstore.Address
	for _, c := range m.cfg.Registry.All() {
		addr, err := tree.DeriveAddress(c, 0)
		if err != nil {
			return nil, fmt.Errorf("unable to derive %v address: %w",
				c.Symbol, err)
		}
		addrs = append(addrs, toAddress(addr))
	}

	seed, err := tree.Phrase()
	if err != nil {
		return nil, err
	}
	defer vaultcrypt.Zero(seed)

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.initialized {
		return nil, ErrNotInitialized
	}

	id, err := m.newWalletIDLocked()
	if err != nil {
		return nil, err
	}

	encryptedSeed, err := m.cfg.Crypter.EncryptString(seed, m.password)
	if err != nil {
		return nil, fmt.Errorf("unable to seal recovery phrase: %w", err)
	}

	now := m.cfg.Clock.Now().UTC()
	w := &walletstore.Wallet{
		ID:            id,
		Name:          name,
		EncryptedSeed: encryptedSeed,
		Addresses:     addrs,
		CreatedAt:     now,
		LastUsed:      now,
	}

	if err := m.commitLocked(id, nil, w); err != nil {
		return nil, err
	}

	committed = true
	m.cacheTree(w, tree)

	log.Infof("Created wallet %v with %d addresses", id, len(addrs))

	return &CreatedWallet{
		WalletID: id,
		Mnemonic: mnemonic,
	}, nil
}

// RestoreWallet recreates a wallet from an existing recovery phrase. Address
// usage history is not replayed: only the index 0 addresses exist
// afterwards.
func (m *Manager) RestoreWallet(name, phrase string) (string, error) {
	if !keychain.ValidateMnemonic(phrase) {
		return "", ErrInvalidMnemonic
	}

	created, err := m.CreateWallet(name, fn.Some(phrase))
	if err != nil {
		return "", err
	}

	return created.WalletID, nil
}

// newWalletIDLocked returns an id of the form wallet_<unix ms>_<16 hex> that
// no wallet uses yet. The caller must hold mu.
func (m *Manager) newWalletIDLocked() (string, error) {
	for i := 0; i < maxIDAttempts; i++ {
		suffix, err := vaultcrypt.SecureRandom(walletIDRandBytes)
		if err != nil {
			return "", err
		}

		id := fmt.Sprintf("%s%d_%s", walletIDPrefix,
			m.cfg.Clock.Now().UnixMilli(), hex.EncodeToString(suffix))
		if _, ok := m.wallets[id]; !ok {
			return id, nil
		}

		log.Warnf("Wallet id %v collided, picking another", id)
	}

	return "", fmt.Errorf("unable to allocate unique wallet id after %d "+
		"attempts", maxIDAttempts)
}

// ListWallets returns copies of all wallets in creation order.
func (m *Manager) ListWallets() ([]*walletstore.Wallet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.initialized {
		return nil, ErrNotInitialized
	}

	return fn.Map(m.collectionLocked(), (*walletstore.Wallet).Copy), nil
}

// GetWallet returns a copy of the wallet with the given id.
func (m *Manager) GetWallet(id string) (*walletstore.Wallet, error) {
	w, err := m.wallet(id)
	if err != nil {
		return nil, err
	}

	return w.Copy(), nil
}

// GenerateNewAddress derives and records the next receive address of
// currency. Indexes are assigned without gaps starting at zero.
func (m *Manager) GenerateNewAddress(id,
	symbol string) (*walletstore.Address, error) {

	c, err := m.currency(symbol)
	if err != nil {
		return nil, err
	}

	m.walletLocks.Lock(id)
	defer m.walletLocks.Unlock(id)

	w, err := m.wallet(id)
	if err != nil {
		return nil, err
	}

	tree, err := m.keyTree(w)
	if err != nil {
		return nil, err
	}

	index := uint32(len(w.AddressesFor(c.Symbol)))
	derived, err := tree.DeriveAddress(c, index)
	if err != nil {
		return nil, err
	}
	addr := toAddress(derived)

	updated := w.Copy()
	updated.Addresses = append(updated.Addresses, addr)
	updated.LastUsed = m.cfg.Clock.Now().UTC()

	if err := m.commit(id, w, updated); err != nil {
		return nil, err
	}

	log.Debugf("Wallet %v: new %v address at index %d", id, c.Symbol,
		index)

	return &addr, nil
}

// ListAddresses returns the addresses of a wallet, optionally restricted to
// one currency.
func (m *Manager) ListAddresses(id string,
	symbol fn.Option[string]) ([]walletstore.Address, error) {

	filter, err := m.currencyFilter(symbol)
	if err != nil {
		return nil, err
	}

	w, err := m.wallet(id)
	if err != nil {
		return nil, err
	}

	return fn.ElimOption(
		filter, func() []walletstore.Address {
			return append([]walletstore.Address{}, w.Addresses...)
		}, func(c *coinreg.Currency) []walletstore.Address {
			return append(
				[]walletstore.Address{},
				w.AddressesFor(c.Symbol)...,
			)
		},
	), nil
}

// GetBalance sums the recorded balances of a currency in a wallet.
func (m *Manager) GetBalance(id, symbol string) (*Balance, error) {
	c, err := m.currency(symbol)
	if err != nil {
		return nil, err
	}

	w, err := m.wallet(id)
	if err != nil {
		return nil, err
	}

	confirmed := sumBalances(w.AddressesFor(c.Symbol))

	return &Balance{
		Currency:  c.Symbol,
		Confirmed: confirmed,
		Total:     confirmed,
	}, nil
}

func sumBalances(addrs []walletstore.Address) btcutil.Amount {
	return fn.Sum(fn.Map(addrs, func(a walletstore.Address) btcutil.Amount {
		return a.Balance
	}))
}

// UpdateBalance records the balance of one of the wallet's addresses. An
// address holding funds is marked used.
func (m *Manager) UpdateBalance(id, address string,
	amount btcutil.Amount) error {

	switch {
	case amount < 0:
		return invalid("balance", "must not be negative")

	case amount > btcutil.MaxSatoshi:
		return invalid("balance", "exceeds the maximum amount")
	}

	m.walletLocks.Lock(id)
	defer m.walletLocks.Unlock(id)

	w, err := m.wallet(id)
	if err != nil {
		return err
	}

	updated := w.Copy()
	symbol := ""
	for i := range updated.Addresses {
		addr := &updated.Addresses[i]
		if addr.Address != address {
			continue
		}

		addr.Balance = amount
		if amount > 0 {
			addr.Used = true
		}
		symbol = addr.Currency
	}
	if symbol == "" {
		return fmt.Errorf("%w: %v", ErrAddressNotFound, address)
	}

	// The other balances already sum to at most MaxSatoshi, so this
	// can't wrap.
	if sumBalances(updated.AddressesFor(symbol)) > btcutil.MaxSatoshi {
		return invalid("balance", "total exceeds the maximum amount")
	}
	updated.LastUsed = m.cfg.Clock.Now().UTC()

	return m.commit(id, w, updated)
}

// CoinSummaries returns, for every supported currency, the wallet's first
// address and its total recorded balance.
func (m *Manager) CoinSummaries(id string) ([]*CoinSummary, error) {
	w, err := m.wallet(id)
	if err != nil {
		return nil, err
	}

	var summaries []*CoinSummary
	for _, c := range m.cfg.Registry.All() {
		addrs := w.AddressesFor(c.Symbol)

		summary := &CoinSummary{
			Currency:     c.Symbol,
			Name:         c.Name,
			AddressCount: len(addrs),
			Balance:      sumBalances(addrs),
		}
		if len(addrs) > 0 {
			summary.Address = addrs[0].Address
		}
		summaries = append(summaries, summary)
	}

	return summaries, nil
}

// OwnsAddress reports whether address is one of the first ProbeLimit+1
// receive addresses of currency in the wallet, whether or not it has been
// generated yet.
func (m *Manager) OwnsAddress(id, symbol, address string) (bool, error) {
	c, err := m.currency(symbol)
	if err != nil {
		return false, err
	}

	w, err := m.wallet(id)
	if err != nil {
		return false, err
	}

	for _, addr := range w.AddressesFor(c.Symbol) {
		if addr.Address == address {
			return true, nil
		}
	}

	tree, err := m.keyTree(w)
	if err != nil {
		return false, err
	}

	return tree.OwnsAddress(address, c, m.cfg.ProbeLimit)
}

// ExtendedPublicKey returns the account extended public key of currency,
// suitable for a watch-only wallet.
func (m *Manager) ExtendedPublicKey(id, symbol string) (string, error) {
	c, err := m.currency(symbol)
	if err != nil {
		return "", err
	}

	w, err := m.wallet(id)
	if err != nil {
		return "", err
	}

	tree, err := m.keyTree(w)
	if err != nil {
		return "", err
	}

	return tree.ExtendedPublicKey(c)
}

// DeleteWallet removes a wallet and wipes its key tree. Backups are not
// touched.
func (m *Manager) DeleteWallet(id string) error {
	m.walletLocks.Lock(id)
	defer m.walletLocks.Unlock(id)

	w, err := m.wallet(id)
	if err != nil {
		return err
	}

	if err := m.commit(id, w, nil); err != nil {
		return err
	}
	m.dropTree(id)

	log.Infof("Deleted wallet %v", id)

	return nil
}

// ChangeMasterPassword re-seals every recovery phrase and the wallet file
// under newPassword. oldPassword must be the active password. Materialized
// key trees stay valid.
func (m *Manager) ChangeMasterPassword(oldPassword, newPassword []byte) error {
	if len(newPassword) == 0 {
		return invalid("new password", "must not be empty")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.initialized {
		return ErrNotInitialized
	}

	if err := m.checkPasswordLocked(oldPassword); err != nil {
		return err
	}

	wallets := make([]*walletstore.Wallet, 0, len(m.order))
	for _, w := range m.collectionLocked() {
		seed, err := m.cfg.Crypter.DecryptString(
			w.EncryptedSeed, oldPassword,
		)
		if err != nil {
			return fmt.Errorf("%w: unable to open recovery phrase "+
				"of %v: %w", ErrInvalidPassword, w.ID, err)
		}

		sealed, err := m.cfg.Crypter.EncryptString(seed, newPassword)
		vaultcrypt.Zero(seed)
		if err != nil {
			return err
		}

		updated := w.Copy()
		updated.EncryptedSeed = sealed
		wallets = append(wallets, updated)
	}

	if err := m.cfg.Store.Save(wallets, newPassword); err != nil {
		return err
	}

	for _, w := range wallets {
		m.wallets[w.ID] = w
	}
	m.resealTrees(wallets)
	m.setPasswordLocked(newPassword)

	log.Infof("Master password changed, %d wallets re-sealed",
		len(wallets))

	return nil
}

// CreateBackup writes an encrypted snapshot of all wallets and returns its
// path.
func (m *Manager) CreateBackup() (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.initialized {
		return "", ErrNotInitialized
	}

	return m.cfg.Store.CreateBackup(m.collectionLocked(), m.password)
}

// ListBackups returns the backup names, newest first.
func (m *Manager) ListBackups() ([]string, error) {
	return m.cfg.Store.ListBackups()
}

// RestoreFromBackup replaces the whole collection with the wallets of the
// backup at path and persists it. The backup must have been taken under
// the active password.
func (m *Manager) RestoreFromBackup(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.initialized {
		return ErrNotInitialized
	}

	wallets, err := m.cfg.Store.RestoreFromBackup(path, m.password)
	if err != nil {
		return err
	}

	ids := fn.Map(wallets, func(w *walletstore.Wallet) string {
		return w.ID
	})
	if fn.HasDuplicates(ids) {
		return fmt.Errorf("%w: duplicate wallet ids", ErrCorruptedBackup)
	}

	if err := m.cfg.Store.Save(wallets, m.password); err != nil {
		return err
	}
	m.replaceLocked(wallets)

	log.Infof("Restored %d wallets from %v", len(wallets), path)

	return nil
}

// toAddress converts a derived address into its persisted form.
func toAddress(d *keychain.DerivedAddress) walletstore.Address {
	return walletstore.Address{
		Address:        d.Address,
		DerivationPath: d.Path.String(),
		PublicKey:      d.PubKeyHex(),
		Currency:       d.Currency,
	}
}
