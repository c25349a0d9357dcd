package coldvault

import (
	"github.com/coldvault/coldvault/walletmgr"
	"github.com/coldvault/coldvault/walletstore"
	"github.com/lightningnetwork/lnd/clock"
)

// NewManager assembles a wallet manager from the configuration. The manager
// still needs to be initialized with the master password.
func NewManager(cfg *Config) (*walletmgr.Manager, *walletstore.Store,
	error) {

	crypter, err := cfg.Crypto.Crypter()
	if err != nil {
		return nil, nil, err
	}

	registry, err := cfg.Fees.Registry()
	if err != nil {
		return nil, nil, err
	}

	clk := clock.NewDefaultClock()
	store := walletstore.New(cfg.Storage.StoreConfig(crypter, clk))

	mgr := walletmgr.New(walletmgr.Config{
		Store:      store,
		Registry:   registry,
		Crypter:    crypter,
		Clock:      clk,
		ProbeLimit: cfg.Wallet.ProbeLimit,
	})

	vcltLog.Debugf("Vault storage at %v, cipher %v", store.Root(),
		crypter.Cipher)

	return mgr, store, nil
}
