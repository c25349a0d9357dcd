package walletstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/coldvault/coldvault/vaultcrypt"
)

const (
	// BackupExt is the extension of every backup file.
	BackupExt = ".bak"

	// backupPrefix starts every backup file name.
	backupPrefix = "wallet-backup-"

	// backupTimeFormat is ISO-8601 in UTC with millisecond precision.
	backupTimeFormat = "2006-01-02T15:04:05.000Z"
)

// backupNameReplacer makes a timestamp safe for file names.
var backupNameReplacer = strings.NewReplacer(":", "-", ".", "-")

// BackupFileName returns the name of a backup taken at the current time of
// the store's clock.
func (s *Store) BackupFileName() string {
	stamp := s.cfg.Clock.Now().UTC().Format(backupTimeFormat)
	return backupPrefix + backupNameReplacer.Replace(stamp) + BackupExt
}

// CreateBackup writes an encrypted snapshot of wallets into the backup
// directory and returns its path. An existing backup is never overwritten.
func (s *Store) CreateBackup(wallets []*Wallet, password []byte) (string,
	error) {

	if err := s.Initialize(); err != nil {
		return "", err
	}
	if err := s.checkDiskSpace("backup"); err != nil {
		return "", err
	}

	if wallets == nil {
		wallets = []*Wallet{}
	}
	walletsJSON, err := json.Marshal(wallets)
	if err != nil {
		return "", fmt.Errorf("unable to encode wallets: %w", err)
	}
	defer vaultcrypt.Zero(walletsJSON)

	snapshot := &BackupSnapshot{
		Wallets:   walletsJSON,
		Version:   BackupVersion,
		Timestamp: s.cfg.Clock.Now().UTC(),
		Checksum:  vaultcrypt.Checksum(walletsJSON),
	}

	// The snapshot is encoded compact so the embedded wallet list keeps
	// the exact bytes the checksum covers.
	plaintext, err := json.Marshal(snapshot)
	if err != nil {
		return "", fmt.Errorf("unable to encode backup: %w", err)
	}
	defer vaultcrypt.Zero(plaintext)

	encoded, err := s.cfg.Crypter.EncryptString(plaintext, password)
	if err != nil {
		return "", err
	}

	path := filepath.Join(s.backupDir, s.BackupFileName())
	if err := writeExclusive(path, []byte(encoded)); err != nil {
		return "", err
	}

	log.Infof("Backup of %d wallets created at %v", len(wallets), path)

	return path, nil
}

// RestoreFromBackup decrypts and verifies the backup at path and returns its
// wallets. Persisted state is not touched.
func (s *Store) RestoreFromBackup(path string, password []byte) ([]*Wallet,
	error) {

	encoded, err := os.ReadFile(path)
	if err != nil {
		return nil, storageErr("restore", path, err)
	}

	plaintext, err := s.cfg.Crypter.DecryptString(string(encoded), password)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPassword, err)
	}
	defer vaultcrypt.Zero(plaintext)

	var snapshot BackupSnapshot
	if err := json.Unmarshal(plaintext, &snapshot); err != nil {
		return nil, fmt.Errorf("%w: malformed backup data",
			ErrInvalidPassword)
	}

	if !vaultcrypt.VerifyChecksum(snapshot.Wallets, snapshot.Checksum) {
		return nil, ErrCorruptedBackup
	}

	var wallets []*Wallet
	if err := json.Unmarshal(snapshot.Wallets, &wallets); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptedBackup, err)
	}
	if wallets == nil {
		wallets = []*Wallet{}
	}

	log.Infof("Read %d wallets from backup %v (version %v, taken %v)",
		len(wallets), path, snapshot.Version, snapshot.Timestamp)

	return wallets, nil
}

// ListBackups returns the backup file names, newest first.
func (s *Store) ListBackups() ([]string, error) {
	entries, err := os.ReadDir(s.backupDir)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return []string{}, nil

	case err != nil:
		return nil, storageErr("list", s.backupDir, err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), BackupExt) {
			continue
		}
		names = append(names, entry.Name())
	}

	// The timestamp format sorts lexically.
	sort.Sort(sort.Reverse(sort.StringSlice(names)))

	return names, nil
}

// BackupPath resolves a backup name returned by ListBackups to its path.
func (s *Store) BackupPath(name string) string {
	return filepath.Join(s.backupDir, filepath.Base(name))
}

// writeExclusive creates path with owner-only permissions, failing if it
// already exists. A partially written file is removed.
func writeExclusive(path string, data []byte) error {
	f, err := os.OpenFile(
		path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, filePerm,
	)
	switch {
	case errors.Is(err, fs.ErrExist):
		return fmt.Errorf("%w: %v", ErrBackupExists, path)

	case err != nil:
		return storageErr("backup", path, err)
	}

	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return storageErr("backup", path, err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return storageErr("backup", path, err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return storageErr("backup", path, err)
	}

	return nil
}
