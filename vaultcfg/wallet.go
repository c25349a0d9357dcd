package vaultcfg

import (
	"fmt"

	"github.com/coldvault/coldvault/walletmgr"
)

// MaxProbeLimit caps how many addresses an ownership check may derive.
const MaxProbeLimit = 100000

// Wallet holds wallet manager settings.
//
//nolint:lll
type Wallet struct {
	ProbeLimit uint32 `long:"probelimit" description:"Highest address index derived when checking whether an address belongs to a wallet."`
}

// DefaultWallet returns the default wallet manager settings.
func DefaultWallet() *Wallet {
	return &Wallet{
		ProbeLimit: walletmgr.DefaultProbeLimit,
	}
}

// Validate checks the wallet manager settings.
func (w *Wallet) Validate() error {
	if w.ProbeLimit == 0 || w.ProbeLimit > MaxProbeLimit {
		return fmt.Errorf("probelimit must be in [1, %d], got %d",
			MaxProbeLimit, w.ProbeLimit)
	}

	return nil
}
