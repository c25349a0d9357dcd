package walletmgr

import (
	"crypto/subtle"
	"fmt"
	"sync"

	"github.com/coldvault/coldvault/coinreg"
	"github.com/coldvault/coldvault/keychain"
	"github.com/coldvault/coldvault/multimutex"
	"github.com/coldvault/coldvault/vaultcrypt"
	"github.com/coldvault/coldvault/walletstore"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/lightningnetwork/lnd/fn/v2"
)

// DefaultProbeLimit is the highest address index OwnsAddress checks when no
// limit is configured.
const DefaultProbeLimit = 100

// Store is the persistence the manager needs. It is satisfied by
// *walletstore.Store.
type Store interface {
	// Initialize prepares the storage location.
	Initialize() error

	// Save atomically replaces the persisted collection.
	Save(wallets []*walletstore.Wallet, password []byte) error

	// Load returns the persisted collection.
	Load(password []byte) ([]*walletstore.Wallet, error)

	// CreateBackup writes a snapshot and returns its path.
	CreateBackup(wallets []*walletstore.Wallet,
		password []byte) (string, error)

	// RestoreFromBackup reads the wallets of a snapshot.
	RestoreFromBackup(path string,
		password []byte) ([]*walletstore.Wallet, error)

	// ListBackups returns the snapshot names, newest first.
	ListBackups() ([]string, error)
}

// A compile time check to ensure the wallet store satisfies Store.
var _ Store = (*walletstore.Store)(nil)

// Config holds the dependencies of a Manager.
type Config struct {
	// Store persists the wallet collection.
	Store Store

	// Registry is the set of supported currencies.
	Registry *coinreg.Registry

	// Crypter seals recovery phrases under the master password.
	Crypter *vaultcrypt.Crypter

	// Clock stamps wallet timestamps and ids.
	Clock clock.Clock

	// ProbeLimit is the highest index OwnsAddress derives.
	ProbeLimit uint32
}

// cachedTree is a materialized key tree together with the sealed phrase it
// was opened from. A wallet whose sealed phrase no longer matches gets a
// fresh tree.
type cachedTree struct {
	tree          *keychain.KeyTree
	encryptedSeed string
}

// Manager owns the wallet collection of one vault. All wallet state lives in
// the manager: there is no package level state.
//
// Mutations of a single wallet are serialized by a per-wallet lock held over
// the whole read-modify-persist sequence. The collection lock serializes the
// persist and in-memory commit, so the file on disk always holds the latest
// committed collection. Operations spanning every wallet hold the collection
// lock throughout. In-memory state only changes after a successful write.
type Manager struct {
	cfg Config

	walletLocks *multimutex.Mutex[string]

	// mu guards the fields below.
	mu          sync.RWMutex
	initialized bool
	password    []byte
	wallets     map[string]*walletstore.Wallet
	order       []string

	// treeMtx guards trees.
	treeMtx sync.Mutex
	trees   map[string]*cachedTree
}

// New creates a manager. Initialize must be called before use.
func New(cfg Config) *Manager {
	if cfg.Registry == nil {
		cfg.Registry = coinreg.DefaultRegistry()
	}
	if cfg.Crypter == nil {
		cfg.Crypter = vaultcrypt.DefaultCrypter()
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.NewDefaultClock()
	}
	if cfg.ProbeLimit == 0 {
		cfg.ProbeLimit = DefaultProbeLimit
	}

	return &Manager{
		cfg:         cfg,
		walletLocks: multimutex.NewMutex[string](),
		wallets:     make(map[string]*walletstore.Wallet),
		trees:       make(map[string]*cachedTree),
	}
}

// Registry returns the currencies the manager supports.
func (m *Manager) Registry() *coinreg.Registry {
	return m.cfg.Registry
}

// Initialize opens the vault with the master password. A missing wallet file
// is a fresh, empty vault; a wrong password is ErrInvalidPassword.
func (m *Manager) Initialize(password []byte) error {
	if len(password) == 0 {
		return invalid("password", "must not be empty")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.cfg.Store.Initialize(); err != nil {
		return err
	}

	wallets, err := m.cfg.Store.Load(password)
	if err != nil {
		return err
	}

	m.replaceLocked(wallets)
	m.setPasswordLocked(password)
	m.initialized = true

	log.Infof("Loaded %d wallets", len(wallets))

	return nil
}

// Close wipes the master password and every materialized key tree. The
// manager must be initialized again before further use.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	vaultcrypt.Zero(m.password)
	m.password = nil
	m.initialized = false
	m.wallets = make(map[string]*walletstore.Wallet)
	m.order = nil

	m.dropTrees()

	log.Debugf("Wallet manager closed")
}

// setPasswordLocked replaces the master password, wiping the old one. The
// caller must hold mu.
func (m *Manager) setPasswordLocked(password []byte) {
	vaultcrypt.Zero(m.password)
	m.password = append([]byte(nil), password...)
}

// replaceLocked swaps in a whole new collection and drops every key tree.
// The caller must hold mu.
func (m *Manager) replaceLocked(wallets []*walletstore.Wallet) {
	m.wallets = make(map[string]*walletstore.Wallet, len(wallets))
	m.order = make([]string, 0, len(wallets))
	for _, w := range wallets {
		m.wallets[w.ID] = w
		m.order = append(m.order, w.ID)
	}

	m.dropTrees()
}

// collectionLocked returns the wallets in order. The caller must hold mu.
func (m *Manager) collectionLocked() []*walletstore.Wallet {
	wallets := make([]*walletstore.Wallet, 0, len(m.order))
	for _, id := range m.order {
		wallets = append(wallets, m.wallets[id])
	}

	return wallets
}

// checkPasswordLocked verifies password against the active one and the
// persisted file. The caller must hold mu.
func (m *Manager) checkPasswordLocked(password []byte) error {
	if subtle.ConstantTimeCompare(password, m.password) != 1 {
		return ErrInvalidPassword
	}

	_, err := m.cfg.Store.Load(password)
	return err
}

// wallet returns the current record of id.
func (m *Manager) wallet(id string) (*walletstore.Wallet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.initialized {
		return nil, ErrNotInitialized
	}

	w, ok := m.wallets[id]
	if !ok {
		return nil, fmt.Errorf("%w: %v", ErrWalletNotFound, id)
	}

	return w, nil
}

// commit persists the collection with the wallet id replaced by updated, or
// removed when updated is nil, and then swaps it in memory. prev is the
// record the change was computed from; if it is no longer current nothing is
// written and ErrConcurrentUpdate is returned.
func (m *Manager) commit(id string, prev, updated *walletstore.Wallet) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.commitLocked(id, prev, updated)
}

// commitLocked is commit for callers already holding mu.
func (m *Manager) commitLocked(id string, prev,
	updated *walletstore.Wallet) error {

	if !m.initialized {
		return ErrNotInitialized
	}

	current, ok := m.wallets[id]
	switch {
	case !ok && prev != nil:
		return fmt.Errorf("%w: %v", ErrWalletNotFound, id)

	case current != prev:
		return fmt.Errorf("%w: %v", ErrConcurrentUpdate, id)
	}

	wallets := make([]*walletstore.Wallet, 0, len(m.order)+1)
	for _, wid := range m.order {
		w := m.wallets[wid]
		if wid == id {
			if updated == nil {
				continue
			}
			w = updated
		}
		wallets = append(wallets, w)
	}
	if prev == nil {
		wallets = append(wallets, updated)
	}

	if err := m.cfg.Store.Save(wallets, m.password); err != nil {
		return err
	}

	switch {
	case updated == nil:
		delete(m.wallets, id)
		m.order = removeID(m.order, id)

	case prev == nil:
		m.wallets[id] = updated
		m.order = append(m.order, id)

	default:
		m.wallets[id] = updated
	}

	return nil
}

func removeID(ids []string, id string) []string {
	out := make([]string, 0, len(ids))
	for _, other := range ids {
		if other != id {
			out = append(out, other)
		}
	}

	return out
}

// keyTree returns the materialized key tree of w, opening the sealed phrase
// under the master password on first use.
func (m *Manager) keyTree(w *walletstore.Wallet) (*keychain.KeyTree, error) {
	// mu is always taken before treeMtx.
	m.mu.RLock()
	if !m.initialized {
		m.mu.RUnlock()
		return nil, ErrNotInitialized
	}
	password := append([]byte(nil), m.password...)
	m.mu.RUnlock()
	defer vaultcrypt.Zero(password)

	m.treeMtx.Lock()
	defer m.treeMtx.Unlock()

	if cached, ok := m.trees[w.ID]; ok {
		if cached.encryptedSeed == w.EncryptedSeed {
			return cached.tree, nil
		}

		cached.tree.Zero()
		delete(m.trees, w.ID)
	}

	phrase, err := m.cfg.Crypter.DecryptString(w.EncryptedSeed, password)
	if err != nil {
		return nil, fmt.Errorf("%w: unable to open recovery phrase of "+
			"%v: %w", ErrInvalidPassword, w.ID, err)
	}
	defer vaultcrypt.Zero(phrase)

	tree, err := keychain.NewKeyTree(string(phrase))
	if err != nil {
		// A non-authenticated cipher may open to garbage under a
		// wrong password.
		return nil, fmt.Errorf("%w: recovery phrase of %v: %w",
			ErrInvalidPassword, w.ID, err)
	}

	m.trees[w.ID] = &cachedTree{
		tree:          tree,
		encryptedSeed: w.EncryptedSeed,
	}

	log.Debugf("Materialized key tree for wallet %v", w.ID)

	return tree, nil
}

// cacheTree stores an already built tree for a newly committed wallet.
func (m *Manager) cacheTree(w *walletstore.Wallet, tree *keychain.KeyTree) {
	m.treeMtx.Lock()
	defer m.treeMtx.Unlock()

	m.trees[w.ID] = &cachedTree{
		tree:          tree,
		encryptedSeed: w.EncryptedSeed,
	}
}

// dropTree wipes and forgets the key tree of id.
func (m *Manager) dropTree(id string) {
	m.treeMtx.Lock()
	defer m.treeMtx.Unlock()

	if cached, ok := m.trees[id]; ok {
		cached.tree.Zero()
		delete(m.trees, id)
	}
}

// dropTrees wipes and forgets every key tree.
func (m *Manager) dropTrees() {
	m.treeMtx.Lock()
	defer m.treeMtx.Unlock()

	for id, cached := range m.trees {
		cached.tree.Zero()
		delete(m.trees, id)
	}
}

// resealTrees points the cached trees at re-encrypted phrases so they stay
// valid across a password change.
func (m *Manager) resealTrees(wallets []*walletstore.Wallet) {
	m.treeMtx.Lock()
	defer m.treeMtx.Unlock()

	for _, w := range wallets {
		if cached, ok := m.trees[w.ID]; ok {
			cached.encryptedSeed = w.EncryptedSeed
		}
	}
}

// currency resolves a symbol, reporting unknown ones as a validation error.
func (m *Manager) currency(symbol string) (*coinreg.Currency, error) {
	c, err := m.cfg.Registry.Lookup(symbol)
	if err != nil {
		return nil, &ValidationError{
			Field:  "currency",
			Reason: "unsupported",
			Err:    err,
		}
	}

	return c, nil
}

// currencyFilter resolves an optional symbol.
func (m *Manager) currencyFilter(
	symbol fn.Option[string]) (fn.Option[*coinreg.Currency], error) {

	if symbol.IsNone() {
		return fn.None[*coinreg.Currency](), nil
	}

	c, err := m.currency(symbol.UnwrapOr(""))
	if err != nil {
		return fn.None[*coinreg.Currency](), err
	}

	return fn.Some(c), nil
}
