package walletmgr

import (
	"bytes"
	"encoding/hex"
	"errors"
	"math"
	"testing"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcwallet/wallet/txrules"
	"github.com/coldvault/coldvault/coinreg"
	"github.com/coldvault/coldvault/keychain"
	"github.com/coldvault/coldvault/walletstore"
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// recipient returns a receive address of an unrelated wallet.
func recipient(t *testing.T, c *coinreg.Currency) string {
	t.Helper()

	tree, err := keychain.NewKeyTree("")
	require.NoError(t, err)
	defer tree.Zero()

	addr, err := tree.DeriveAddress(c, 0)
	require.NoError(t, err)

	return addr.Address
}

// fundWallet records balances on the first len(balances) addresses of
// currency, generating addresses as needed.
func fundWallet(t *testing.T, h *testHarness, id, symbol string,
	balances ...btcutil.Amount) []walletstore.Address {

	t.Helper()

	for i := 1; i < len(balances); i++ {
		_, err := h.mgr.GenerateNewAddress(id, symbol)
		require.NoError(t, err)
	}

	addrs, err := h.mgr.ListAddresses(id, fn.Some(symbol))
	require.NoError(t, err)
	require.Len(t, addrs, len(balances))

	for i, amt := range balances {
		require.NoError(t, h.mgr.UpdateBalance(id, addrs[i].Address, amt))
	}

	addrs, err = h.mgr.ListAddresses(id, fn.Some(symbol))
	require.NoError(t, err)

	return addrs
}

// decodeTx parses a built transaction and verifies every input against the
// script of the address it spends.
func decodeTx(t *testing.T, built *Transaction, c *coinreg.Currency,
	spent []walletstore.Address) *wire.MsgTx {

	t.Helper()

	raw, err := hex.DecodeString(built.RawTx)
	require.NoError(t, err)

	tx := wire.NewMsgTx(wire.TxVersion)
	require.NoError(t, tx.Deserialize(bytes.NewReader(raw)))
	require.Equal(t, built.TxID, tx.TxHash().String())
	require.Len(t, tx.TxIn, len(spent))

	descs := make([]*keychain.SignDescriptor, 0, len(spent))
	for i, addr := range spent {
		pkScript, err := addressScript(addr.Address, c)
		require.NoError(t, err)

		require.Equal(
			t, *syntheticOutPoint(pkScript), tx.TxIn[i].PreviousOutPoint,
		)

		path, err := keychain.ParsePath(addr.DerivationPath)
		require.NoError(t, err)

		descs = append(descs, &keychain.SignDescriptor{
			Path:       path,
			InputIndex: i,
			PkScript:   pkScript,
			Amount:     addr.Balance,
		})
	}
	require.NoError(t, keychain.Finalize(tx, descs))

	return tx
}

func TestCreateTransaction(t *testing.T) {
	t.Parallel()

	h := newTestHarness(t)
	id := h.createWallet(t, "savings")
	btc := lookup(t, "BTC")
	to := recipient(t, btc)

	addrs := fundWallet(t, h, id, "BTC", 50_000, 30_000)

	// Two candidates and two outputs: 10 + 2*148 + 2*34 = 374 bytes.
	built, err := h.mgr.CreateTransaction(
		id, "BTC", to, 60_000, fn.Some(coinreg.SatPerVByte(10)),
	)
	require.NoError(t, err)
	require.Equal(t, 374, built.Size)
	require.Equal(t, btcutil.Amount(3_740), built.Fee)
	require.Equal(t, btcutil.Amount(16_260), built.Change)
	require.Equal(t, btcutil.Amount(60_000), built.Amount)
	require.Equal(
		t, []string{addrs[0].Address, addrs[1].Address}, built.Inputs,
	)

	tx := decodeTx(t, built, btc, addrs)
	require.Len(t, tx.TxOut, 2)

	payScript, err := addressScript(to, btc)
	require.NoError(t, err)
	require.Equal(t, int64(60_000), tx.TxOut[0].Value)
	require.Equal(t, payScript, tx.TxOut[0].PkScript)

	// Change goes back to the first address.
	changeScript, err := addressScript(addrs[0].Address, btc)
	require.NoError(t, err)
	require.Equal(t, int64(16_260), tx.TxOut[1].Value)
	require.Equal(t, changeScript, tx.TxOut[1].PkScript)

	// Inputs plus fee balance the outputs.
	require.Equal(
		t, int64(80_000-3_740), tx.TxOut[0].Value+tx.TxOut[1].Value,
	)

	// Building doesn't touch the recorded balances.
	balance, err := h.mgr.GetBalance(id, "BTC")
	require.NoError(t, err)
	require.Equal(t, btcutil.Amount(80_000), balance.Total)
}

func TestCreateTransactionSelection(t *testing.T) {
	t.Parallel()

	h := newTestHarness(t)
	id := h.createWallet(t, "savings")
	btc := lookup(t, "BTC")
	to := recipient(t, btc)

	// The empty second address is never an input.
	addrs := fundWallet(t, h, id, "BTC", 100_000, 0, 5_000)

	// One input covers it, the fee still accounts for both candidates.
	built, err := h.mgr.CreateTransaction(
		id, "BTC", to, 10_000, fn.None[coinreg.SatPerVByte](),
	)
	require.NoError(t, err)
	require.Equal(t, []string{addrs[0].Address}, built.Inputs)
	require.Equal(t, btc.FeeRate(), built.FeeRate)
	require.Equal(t, btcutil.Amount(374*20), built.Fee)
	require.Equal(t, btcutil.Amount(100_000-10_000-374*20), built.Change)

	decodeTx(t, built, btc, addrs[:1])

	// Spending everything leaves no change output.
	exact := btcutil.Amount(105_000 - 374*20)
	built, err = h.mgr.CreateTransaction(
		id, "BTC", to, exact, fn.None[coinreg.SatPerVByte](),
	)
	require.NoError(t, err)
	require.Zero(t, built.Change)

	tx := decodeTx(
		t, built, btc, []walletstore.Address{addrs[0], addrs[2]},
	)
	require.Len(t, tx.TxOut, 1)
	require.Equal(t, int64(exact), tx.TxOut[0].Value)
}

func TestCreateTransactionInsufficientFunds(t *testing.T) {
	t.Parallel()

	h := newTestHarness(t)
	id := h.createWallet(t, "savings")
	to := recipient(t, lookup(t, "BTC"))

	// Nothing recorded at all.
	_, err := h.mgr.CreateTransaction(
		id, "BTC", to, 10_000, fn.None[coinreg.SatPerVByte](),
	)
	var insufficient *ErrInsufficientFunds
	require.True(t, errors.As(err, &insufficient))
	require.Zero(t, insufficient.Available)

	fundWallet(t, h, id, "BTC", 50_000, 30_000)

	_, err = h.mgr.CreateTransaction(
		id, "BTC", to, 80_000, fn.Some(coinreg.SatPerVByte(10)),
	)
	require.True(t, errors.As(err, &insufficient))
	require.Equal(t, &ErrInsufficientFunds{
		Available: 80_000,
		Needed:    83_740,
	}, insufficient)

	// Any amount above what the balances cover after the fee fails.
	rapid.Check(t, func(rt *rapid.T) {
		amt := rapid.Int64Range(76_261, 1_000_000).Draw(rt, "amount")

		_, err := h.mgr.CreateTransaction(
			id, "BTC", to, btcutil.Amount(amt),
			fn.Some(coinreg.SatPerVByte(10)),
		)

		var insufficient *ErrInsufficientFunds
		require.True(rt, errors.As(err, &insufficient))
		require.Less(rt, insufficient.Available, insufficient.Needed)
	})
}

func TestCreateTransactionValidation(t *testing.T) {
	t.Parallel()

	h := newTestHarness(t)
	id := h.createWallet(t, "savings")
	btc := lookup(t, "BTC")
	to := recipient(t, btc)
	fundWallet(t, h, id, "BTC", 100_000)

	noRate := fn.None[coinreg.SatPerVByte]()

	tests := []struct {
		name   string
		symbol string
		to     string
		amount btcutil.Amount
		rate   fn.Option[coinreg.SatPerVByte]
		field  string
	}{
		{
			name:   "unknown currency",
			symbol: "XMR",
			to:     to,
			amount: 10_000,
			rate:   noRate,
			field:  "currency",
		},
		{
			name:   "zero amount",
			symbol: "BTC",
			to:     to,
			rate:   noRate,
			field:  "amount",
		},
		{
			name:   "negative amount",
			symbol: "BTC",
			to:     to,
			amount: -1,
			rate:   noRate,
			field:  "amount",
		},
		{
			name:   "dust",
			symbol: "BTC",
			to:     to,
			amount: 545,
			rate:   noRate,
			field:  "amount",
		},
		{
			name:   "above max satoshi",
			symbol: "BTC",
			to:     to,
			amount: btcutil.MaxSatoshi + 1,
			rate:   noRate,
			field:  "amount",
		},
		{
			name:   "near max int64",
			symbol: "BTC",
			to:     to,
			amount: math.MaxInt64 - 1000,
			rate:   noRate,
			field:  "amount",
		},
		{
			name:   "zero fee rate",
			symbol: "BTC",
			to:     to,
			amount: 10_000,
			rate:   fn.Some(coinreg.SatPerVByte(0)),
			field:  "fee rate",
		},
		{
			name:   "garbage address",
			symbol: "BTC",
			to:     "not-an-address",
			amount: 10_000,
			rate:   noRate,
			field:  "toAddress",
		},
		{
			name:   "other network",
			symbol: "BTC",
			to:     recipient(t, lookup(t, "LTC")),
			amount: 10_000,
			rate:   noRate,
			field:  "toAddress",
		},
		{
			name:   "testnet address",
			symbol: "BTC",
			to:     recipient(t, lookup(t, "BTC-TEST")),
			amount: 10_000,
			rate:   noRate,
			field:  "toAddress",
		},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			_, err := h.mgr.CreateTransaction(
				id, test.symbol, test.to, test.amount, test.rate,
			)
			requireValidation(t, err, test.field)
		})
	}

	_, err := h.mgr.CreateTransaction(
		"wallet_0_missing", "BTC", to, 10_000, noRate,
	)
	require.ErrorIs(t, err, ErrWalletNotFound)

	// An amount whose dust computation would overflow is a range
	// error, never dust.
	_, err = h.mgr.CreateTransaction(
		id, "BTC", to, math.MaxInt64-1000, noRate,
	)
	require.ErrorIs(t, err, txrules.ErrAmountExceedsMax)
	require.NotErrorIs(t, err, txrules.ErrOutputIsDust)

	_, err = h.mgr.CreateTransaction(id, "BTC", to, 545, noRate)
	require.ErrorIs(t, err, txrules.ErrOutputIsDust)

	// The dust limit itself is spendable.
	_, err = h.mgr.CreateTransaction(id, "BTC", to, 546, noRate)
	require.NoError(t, err)
}

// TestCreateTransactionCurrencies builds and verifies a transaction for
// every supported currency.
func TestCreateTransactionCurrencies(t *testing.T) {
	t.Parallel()

	h := newTestHarness(t)
	id := h.createWallet(t, "savings")

	for _, c := range coinreg.DefaultRegistry().All() {
		c := c
		t.Run(c.Symbol, func(t *testing.T) {
			addrs := fundWallet(t, h, id, c.Symbol, 5_000_000)
			to := recipient(t, c)

			built, err := h.mgr.CreateTransaction(
				id, c.Symbol, to, 1_000_000,
				fn.None[coinreg.SatPerVByte](),
			)
			require.NoError(t, err)
			require.Equal(t, c.Symbol, built.Currency)
			require.Equal(
				t, coinreg.FeeForSize(226, c.FeeRate()), built.Fee,
			)

			tx := decodeTx(t, built, c, addrs)
			require.Len(t, tx.TxOut, 2)

			class := txscript.GetScriptClass(tx.TxOut[0].PkScript)
			require.Equal(t, txscript.PubKeyHashTy, class)
		})
	}
}
