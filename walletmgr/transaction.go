package walletmgr

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcwallet/wallet/txrules"
	"github.com/coldvault/coldvault/coinreg"
	"github.com/coldvault/coldvault/keychain"
	"github.com/coldvault/coldvault/walletstore"
	"github.com/lightningnetwork/lnd/fn/v2"
)

// Transaction is a signed transaction ready for broadcast by other means.
type Transaction struct {
	// TxID is the transaction hash in display order.
	TxID string

	// RawTx is the hex encoded serialized transaction.
	RawTx string

	// Currency is the symbol of the spent currency.
	Currency string

	// Amount is the value paid to the recipient.
	Amount btcutil.Amount

	// Fee is the estimated fee.
	Fee btcutil.Amount

	// Change is the value returned to the wallet, zero if no change
	// output was added.
	Change btcutil.Amount

	// FeeRate is the rate the fee was computed at.
	FeeRate coinreg.SatPerVByte

	// Size is the estimated size the fee was computed for.
	Size int

	// Inputs lists the addresses spent from.
	Inputs []string
}

// CreateTransaction builds and signs a transaction paying amount to
// toAddress from the wallet's recorded balances of currency. Every address
// with a positive balance counts as one spendable output whose outpoint is
// derived from the address script, since the vault keeps no UTXO set.
// Change goes back to the wallet's first address of the currency. Nothing
// is broadcast and no balance is changed.
func (m *Manager) CreateTransaction(id, symbol, toAddress string,
	amount btcutil.Amount,
	feeRate fn.Option[coinreg.SatPerVByte]) (*Transaction, error) {

	c, err := m.currency(symbol)
	if err != nil {
		return nil, err
	}

	if amount <= 0 {
		return nil, invalid("amount", "must be positive")
	}

	rate := feeRate.UnwrapOr(c.FeeRate())
	if rate <= 0 {
		return nil, invalid("fee rate", "must be positive")
	}

	payTo, err := btcutil.DecodeAddress(toAddress, c.Params())
	if err != nil {
		return nil, &ValidationError{
			Field:  "toAddress",
			Reason: "not a " + c.Symbol + " address",
			Err:    err,
		}
	}
	if !payTo.IsForNet(c.Params()) {
		return nil, invalid("toAddress", "not a "+c.Symbol+" address")
	}

	payScript, err := txscript.PayToAddrScript(payTo)
	if err != nil {
		return nil, &ValidationError{
			Field:  "toAddress",
			Reason: "unsupported address type",
			Err:    err,
		}
	}

	payOut := wire.NewTxOut(int64(amount), payScript)
	err = txrules.CheckOutput(payOut, txrules.DefaultRelayFeePerKb)
	switch {
	case errors.Is(err, txrules.ErrOutputIsDust):
		return nil, &ValidationError{
			Field:  "amount",
			Reason: "below the dust limit",
			Err:    err,
		}

	case err != nil:
		return nil, &ValidationError{
			Field:  "amount",
			Reason: "out of range",
			Err:    err,
		}
	}

	w, err := m.wallet(id)
	if err != nil {
		return nil, err
	}

	addrs := w.AddressesFor(c.Symbol)
	selection, err := selectInputs(amount, spendable(addrs), rate)
	if err != nil {
		return nil, err
	}

	tree, err := m.keyTree(w)
	if err != nil {
		return nil, err
	}

	tx, descs, err := buildTx(
		c, selection, payScript, amount, addrs[0].Address,
	)
	if err != nil {
		return nil, err
	}

	if err := signTx(tree, tx, descs); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := tx.Serialize(&buf); err != nil {
		return nil, err
	}

	result := &Transaction{
		TxID:     tx.TxHash().String(),
		RawTx:    hex.EncodeToString(buf.Bytes()),
		Currency: c.Symbol,
		Amount:   amount,
		Fee:      selection.fee,
		Change:   selection.change,
		FeeRate:  rate,
		Size:     selection.size,
		Inputs: fn.Map(
			selection.inputs, func(a walletstore.Address) string {
				return a.Address
			},
		),
	}

	log.Infof("Wallet %v: built %v transaction %v spending %d inputs, "+
		"fee=%v, change=%v", id, c.Symbol, result.TxID,
		len(selection.inputs), int64(result.Fee),
		int64(result.Change))

	return result, nil
}

// buildTx assembles the unsigned transaction of a selection together with
// the sign descriptors of its inputs.
func buildTx(c *coinreg.Currency, selection *coinSelection,
	payScript []byte, amount btcutil.Amount,
	changeAddr string) (*wire.MsgTx, []*keychain.SignDescriptor, error) {

	tx := wire.NewMsgTx(wire.TxVersion)
	descs := make([]*keychain.SignDescriptor, 0, len(selection.inputs))

	for i, input := range selection.inputs {
		pkScript, err := addressScript(input.Address, c)
		if err != nil {
			return nil, nil, err
		}

		path, err := keychain.ParsePath(input.DerivationPath)
		if err != nil {
			return nil, nil, err
		}

		tx.AddTxIn(wire.NewTxIn(syntheticOutPoint(pkScript), nil, nil))
		descs = append(descs, &keychain.SignDescriptor{
			Path:       path,
			InputIndex: i,
			PkScript:   pkScript,
			Amount:     input.Balance,
		})
	}

	tx.AddTxOut(wire.NewTxOut(int64(amount), payScript))

	if selection.change > 0 {
		changeScript, err := addressScript(changeAddr, c)
		if err != nil {
			return nil, nil, err
		}
		tx.AddTxOut(wire.NewTxOut(int64(selection.change), changeScript))
	}

	return tx, descs, nil
}

// signTx signs every input and verifies the result.
func signTx(signer keychain.SecretKeyRing, tx *wire.MsgTx,
	descs []*keychain.SignDescriptor) error {

	if err := signer.SignTx(tx, descs); err != nil {
		return err
	}

	if err := keychain.Finalize(tx, descs); err != nil {
		return fmt.Errorf("transaction failed verification: %w", err)
	}

	return nil
}

// addressScript returns the output script of a wallet address.
func addressScript(address string, c *coinreg.Currency) ([]byte, error) {
	addr, err := btcutil.DecodeAddress(address, c.Params())
	if err != nil {
		return nil, fmt.Errorf("unable to decode wallet address %v: %w",
			address, err)
	}

	return txscript.PayToAddrScript(addr)
}

// syntheticOutPoint stands in for the unknown funding output of an address:
// the double SHA-256 of its script at index 0.
func syntheticOutPoint(pkScript []byte) *wire.OutPoint {
	hash := chainhash.DoubleHashH(pkScript)
	return wire.NewOutPoint(&hash, 0)
}
