package walletstore

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidPassword is returned when the wallet or backup file can't
	// be opened with the given password.
	ErrInvalidPassword = errors.New("invalid password")

	// ErrCorruptedBackup is returned when a decrypted backup fails its
	// checksum.
	ErrCorruptedBackup = errors.New("backup data is corrupted")

	// ErrBackupExists is returned when a backup of the same name is
	// already on disk. Backups are never overwritten.
	ErrBackupExists = errors.New("backup file already exists")

	// ErrLowDiskSpace is returned when the free disk ratio of the storage
	// root is below the configured minimum.
	ErrLowDiskSpace = errors.New("insufficient free disk space")
)

// StorageError wraps a file system failure with the operation and path that
// caused it.
type StorageError struct {
	// Op is the store operation that failed, e.g. "save".
	Op string

	// Path is the file or directory involved.
	Path string

	// Err is the underlying error.
	Err error
}

// Error returns a human readable description of the failure.
func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s %s: %v", e.Op, e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e *StorageError) Unwrap() error {
	return e.Err
}

func storageErr(op, path string, err error) error {
	return &StorageError{Op: op, Path: path, Err: err}
}
