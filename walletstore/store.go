package walletstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/coldvault/coldvault/vaultcrypt"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/lightningnetwork/lnd/healthcheck"
)

const (
	// WalletFileName is the name of the encrypted wallet collection.
	WalletFileName = "wallets.encrypted"

	// TempWalletFileName is the staging file a new collection is written
	// to before it is renamed over WalletFileName.
	TempWalletFileName = WalletFileName + ".tmp"

	// BackupDirName is the directory holding backup snapshots.
	BackupDirName = "backups"

	// dirPerm restricts the storage directories to the owner.
	dirPerm fs.FileMode = 0o700

	// filePerm restricts every written file to the owner.
	filePerm fs.FileMode = 0o600
)

// Config holds the dependencies of a Store.
type Config struct {
	// Root is the storage directory.
	Root string

	// Crypter seals the wallet and backup files. Opening honours the
	// parameters recorded in each file.
	Crypter *vaultcrypt.Crypter

	// Clock is used for backup timestamps.
	Clock clock.Clock

	// MinFreeDiskRatio is the minimum ratio of free to total disk space
	// on the storage volume required before writing. Zero disables the
	// check.
	MinFreeDiskRatio float64
}

// Store persists the encrypted wallet collection and its backups below a
// single root directory:
//
//	<root>/wallets.encrypted
//	<root>/backups/wallet-backup-<timestamp>.bak
//
// The store does no locking of its own; callers serialize writes.
type Store struct {
	cfg Config

	walletFile string
	tempFile   string
	backupDir  string
}

// New creates a store rooted at cfg.Root. Nothing is touched on disk until
// Initialize or a write is called.
func New(cfg Config) *Store {
	if cfg.Crypter == nil {
		cfg.Crypter = vaultcrypt.DefaultCrypter()
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.NewDefaultClock()
	}

	return &Store{
		cfg:        cfg,
		walletFile: filepath.Join(cfg.Root, WalletFileName),
		tempFile:   filepath.Join(cfg.Root, TempWalletFileName),
		backupDir:  filepath.Join(cfg.Root, BackupDirName),
	}
}

// Root returns the storage directory.
func (s *Store) Root() string {
	return s.cfg.Root
}

// BackupDir returns the directory holding the backups.
func (s *Store) BackupDir() string {
	return s.backupDir
}

// Initialize creates the storage directories and restricts them to the
// owner. It is safe to call repeatedly.
func (s *Store) Initialize() error {
	for _, dir := range []string{s.cfg.Root, s.backupDir} {
		if err := os.MkdirAll(dir, dirPerm); err != nil {
			return storageErr("initialize", dir, err)
		}
		if err := os.Chmod(dir, dirPerm); err != nil {
			return storageErr("initialize", dir, err)
		}
	}

	return nil
}

// Save encrypts wallets under password and atomically replaces the wallet
// file. On failure the previous file is left untouched.
func (s *Store) Save(wallets []*Wallet, password []byte) error {
	if err := s.Initialize(); err != nil {
		return err
	}
	if err := s.checkDiskSpace("save"); err != nil {
		return err
	}

	if wallets == nil {
		wallets = []*Wallet{}
	}
	plaintext, err := json.MarshalIndent(wallets, "", "  ")
	if err != nil {
		return fmt.Errorf("unable to encode wallets: %w", err)
	}
	defer vaultcrypt.Zero(plaintext)

	encoded, err := s.cfg.Crypter.EncryptString(plaintext, password)
	if err != nil {
		return err
	}

	if err := s.writeAtomic([]byte(encoded)); err != nil {
		return err
	}

	log.Debugf("Saved %d wallets to %v", len(wallets), s.walletFile)

	return nil
}

// Load decrypts the wallet file. A missing file is an empty collection. If
// the file can't be decrypted or parsed, ErrInvalidPassword is returned.
func (s *Store) Load(password []byte) ([]*Wallet, error) {
	encoded, err := os.ReadFile(s.walletFile)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return []*Wallet{}, nil

	case err != nil:
		return nil, storageErr("load", s.walletFile, err)
	}

	plaintext, err := s.cfg.Crypter.DecryptString(string(encoded), password)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPassword, err)
	}
	defer vaultcrypt.Zero(plaintext)

	var wallets []*Wallet
	if err := json.Unmarshal(plaintext, &wallets); err != nil {
		return nil, fmt.Errorf("%w: malformed wallet data",
			ErrInvalidPassword)
	}
	if wallets == nil {
		wallets = []*Wallet{}
	}

	log.Debugf("Loaded %d wallets from %v", len(wallets), s.walletFile)

	return wallets, nil
}

// HasWalletData reports whether a wallet file exists.
func (s *Store) HasWalletData() bool {
	_, err := os.Stat(s.walletFile)
	return err == nil
}

// WalletFileSize returns the size of the wallet file, zero if there is none.
func (s *Store) WalletFileSize() (int64, error) {
	info, err := os.Stat(s.walletFile)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return 0, nil

	case err != nil:
		return 0, storageErr("stat", s.walletFile, err)
	}

	return info.Size(), nil
}

// DeleteWalletData removes the wallet file. Backups are kept.
func (s *Store) DeleteWalletData() error {
	err := os.Remove(s.walletFile)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return storageErr("delete", s.walletFile, err)
	}

	log.Infof("Deleted wallet data at %v", s.walletFile)

	return nil
}

// writeAtomic writes data to the temp file, syncs it, and renames it over
// the wallet file. The temp file never outlives the call.
func (s *Store) writeAtomic(data []byte) error {
	// A stale temp file is the remains of an interrupted write.
	if _, err := os.Stat(s.tempFile); err == nil {
		log.Infof("Found old temp wallet file @ %v, removing before "+
			"swap", s.tempFile)

		if err := os.Remove(s.tempFile); err != nil {
			return storageErr("save", s.tempFile, err)
		}
	}

	tempFile, err := os.OpenFile(
		s.tempFile, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, filePerm,
	)
	if err != nil {
		return storageErr("save", s.tempFile, err)
	}
	defer os.Remove(s.tempFile)

	if _, err := tempFile.Write(data); err != nil {
		_ = tempFile.Close()
		return storageErr("save", s.tempFile, err)
	}
	if err := tempFile.Sync(); err != nil {
		_ = tempFile.Close()
		return storageErr("save", s.tempFile, err)
	}

	// Close before the rename, some platforms can't rename open files.
	if err := tempFile.Close(); err != nil {
		return storageErr("save", s.tempFile, err)
	}

	if err := os.Rename(s.tempFile, s.walletFile); err != nil {
		return storageErr("save", s.walletFile, err)
	}

	return nil
}

// checkDiskSpace refuses writes when the storage volume is nearly full.
func (s *Store) checkDiskSpace(op string) error {
	if s.cfg.MinFreeDiskRatio <= 0 {
		return nil
	}

	ratio, err := healthcheck.AvailableDiskSpaceRatio(s.cfg.Root)
	if err != nil {
		return storageErr(op, s.cfg.Root, err)
	}
	if ratio < s.cfg.MinFreeDiskRatio {
		log.Warnf("Free disk ratio %.3f below minimum %.3f at %v",
			ratio, s.cfg.MinFreeDiskRatio, s.cfg.Root)

		return storageErr(op, s.cfg.Root, fmt.Errorf("%w: %.3f free, "+
			"need %.3f", ErrLowDiskSpace, ratio,
			s.cfg.MinFreeDiskRatio))
	}

	return nil
}
