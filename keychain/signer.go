package keychain

import (
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

// ErrUnsignedInput is returned by Finalize when an input has no signature
// script.
var ErrUnsignedInput = errors.New("transaction input is not signed")

// SignDescriptor houses the information needed to sign a single P2PKH input.
type SignDescriptor struct {
	// Path locates the private key controlling the input.
	Path DerivationPath

	// InputIndex is the index of the input within the transaction.
	InputIndex int

	// PkScript is the output script being spent.
	PkScript []byte

	// Amount is the value of the output being spent.
	Amount btcutil.Amount
}

// SignTx signs every input described by descs with SIGHASH_ALL, using the
// compressed form of the derived key. Each private key is wiped right after
// its signature is produced.
//
// NOTE: This is part of the keychain.SecretKeyRing interface.
func (k *KeyTree) SignTx(tx *wire.MsgTx, descs []*SignDescriptor) error {
	for _, desc := range descs {
		if desc.InputIndex < 0 || desc.InputIndex >= len(tx.TxIn) {
			return fmt.Errorf("sign descriptor input index %d out "+
				"of range", desc.InputIndex)
		}

		privKey, err := k.DerivePrivateKey(desc.Path)
		if err != nil {
			return err
		}

		sigScript, err := txscript.SignatureScript(
			tx, desc.InputIndex, desc.PkScript, txscript.SigHashAll,
			privKey, true,
		)
		privKey.Zero()
		if err != nil {
			return fmt.Errorf("unable to sign input %d: %w",
				desc.InputIndex, err)
		}

		tx.TxIn[desc.InputIndex].SignatureScript = sigScript
	}

	return nil
}

// Finalize checks that every input of tx is signed and that each signature
// script satisfies the spent output script under the standard verification
// flags.
func Finalize(tx *wire.MsgTx, descs []*SignDescriptor) error {
	fetcher := txscript.NewMultiPrevOutFetcher(nil)
	for _, desc := range descs {
		if desc.InputIndex < 0 || desc.InputIndex >= len(tx.TxIn) {
			return fmt.Errorf("sign descriptor input index %d out "+
				"of range", desc.InputIndex)
		}

		fetcher.AddPrevOut(
			tx.TxIn[desc.InputIndex].PreviousOutPoint,
			wire.NewTxOut(int64(desc.Amount), desc.PkScript),
		)
	}

	if len(descs) != len(tx.TxIn) {
		return fmt.Errorf("%w: %d of %d inputs described",
			ErrUnsignedInput, len(descs), len(tx.TxIn))
	}

	sigHashes := txscript.NewTxSigHashes(tx, fetcher)
	for _, desc := range descs {
		txIn := tx.TxIn[desc.InputIndex]
		if len(txIn.SignatureScript) == 0 {
			return fmt.Errorf("%w: input %d", ErrUnsignedInput,
				desc.InputIndex)
		}

		vm, err := txscript.NewEngine(
			desc.PkScript, tx, desc.InputIndex,
			txscript.StandardVerifyFlags, nil, sigHashes,
			int64(desc.Amount), fetcher,
		)
		if err != nil {
			return fmt.Errorf("unable to create script engine for "+
				"input %d: %w", desc.InputIndex, err)
		}
		if err := vm.Execute(); err != nil {
			return fmt.Errorf("invalid signature for input %d: %w",
				desc.InputIndex, err)
		}
	}

	return nil
}
