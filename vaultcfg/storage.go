package vaultcfg

import (
	"fmt"

	"github.com/coldvault/coldvault/vaultcrypt"
	"github.com/coldvault/coldvault/walletstore"
	"github.com/lightningnetwork/lnd/clock"
)

// DefaultMinFreeDiskRatio is the default minimum share of free space on the
// storage volume before the vault refuses to write.
const DefaultMinFreeDiskRatio = 0.01

// Storage holds the configuration of the encrypted wallet store.
//
//nolint:lll
type Storage struct {
	Dir              string  `long:"dir" description:"The directory holding the encrypted wallet file and the backups directory. Defaults to <vaultdir>/wallets."`
	MinFreeDiskRatio float64 `long:"minfreediskratio" description:"Minimum ratio of free to total disk space required before writing wallet data, 0 disables the check."`
}

// DefaultStorage returns the default store configuration.
func DefaultStorage() *Storage {
	return &Storage{
		MinFreeDiskRatio: DefaultMinFreeDiskRatio,
	}
}

// Validate checks the values configured for the store.
func (s *Storage) Validate() error {
	if s.MinFreeDiskRatio < 0 || s.MinFreeDiskRatio >= 1 {
		return fmt.Errorf("minfreediskratio must be in [0, 1), got %v",
			s.MinFreeDiskRatio)
	}

	return nil
}

// StoreConfig returns the wallet store configuration.
func (s *Storage) StoreConfig(crypter *vaultcrypt.Crypter,
	clk clock.Clock) walletstore.Config {

	return walletstore.Config{
		Root:             CleanAndExpandPath(s.Dir),
		Crypter:          crypter,
		Clock:            clk,
		MinFreeDiskRatio: s.MinFreeDiskRatio,
	}
}
