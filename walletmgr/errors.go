package walletmgr

import (
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/coldvault/coldvault/coinreg"
	"github.com/coldvault/coldvault/keychain"
	"github.com/coldvault/coldvault/vaultcrypt"
	"github.com/coldvault/coldvault/walletstore"
)

var (
	// ErrWalletNotFound is returned when no wallet has the given id.
	ErrWalletNotFound = errors.New("wallet not found")

	// ErrAddressNotFound is returned when an address isn't recorded in
	// the wallet.
	ErrAddressNotFound = errors.New("address not found in wallet")

	// ErrNotInitialized is returned when the manager is used before
	// Initialize or after Close.
	ErrNotInitialized = errors.New("wallet manager not initialized")

	// ErrConcurrentUpdate is returned when a wallet was replaced by
	// another operation between reading it and committing a change to
	// it. Nothing is written; the caller may retry.
	ErrConcurrentUpdate = errors.New("wallet was modified concurrently")
)

// Errors of the lower layers, re-exported so callers only need this
// package to tell failures apart.
var (
	ErrInvalidPassword = walletstore.ErrInvalidPassword
	ErrCorruptedBackup = walletstore.ErrCorruptedBackup
	ErrBackupExists    = walletstore.ErrBackupExists
	ErrInvalidMnemonic = keychain.ErrInvalidMnemonic
	ErrUnknownCurrency = coinreg.ErrUnknownCurrency
	ErrDecryption      = vaultcrypt.ErrDecryption
)

// StorageError is a file system failure of the wallet store.
type StorageError = walletstore.StorageError

// ValidationError is returned for malformed or missing input.
type ValidationError struct {
	// Field names the offending input.
	Field string

	// Reason describes what is wrong with it.
	Reason string

	// Err is an optional underlying cause.
	Err error
}

// Error returns a human readable description of the failure.
func (e *ValidationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid %s: %s: %v", e.Field, e.Reason,
			e.Err)
	}

	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Unwrap returns the underlying cause, if any.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// ErrInsufficientFunds is returned when the recorded balances of a currency
// don't cover the amount plus the fee of a transaction.
type ErrInsufficientFunds struct {
	// Available is the sum of all positive address balances.
	Available btcutil.Amount

	// Needed is the amount plus the fee.
	Needed btcutil.Amount
}

// Error returns a human-readable string describing the error.
func (e *ErrInsufficientFunds) Error() string {
	return fmt.Sprintf("insufficient balance, need %v only have %v "+
		"available", int64(e.Needed), int64(e.Available))
}
