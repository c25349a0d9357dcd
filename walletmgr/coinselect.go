package walletmgr

import (
	"github.com/btcsuite/btcd/btcutil"
	"github.com/coldvault/coldvault/coinreg"
	"github.com/coldvault/coldvault/walletstore"
	"github.com/lightningnetwork/lnd/fn/v2"
)

// spendOutputs is the output count every fee estimate assumes: the payment
// and a change output.
const spendOutputs = 2

// coinSelection is the outcome of selecting addresses to spend from.
type coinSelection struct {
	inputs   []walletstore.Address
	selected btcutil.Amount
	fee      btcutil.Amount
	change   btcutil.Amount
	size     int
}

// spendable returns the addresses with a positive recorded balance, in
// derivation order. Each one is treated as a single spendable output.
func spendable(addrs []walletstore.Address) []walletstore.Address {
	return fn.Filter(addrs, func(a walletstore.Address) bool {
		return a.Balance > 0
	})
}

// selectInputs picks addresses in order until amt plus the fee is covered.
// The fee is estimated once over all candidates, so it never grows as
// inputs are added.
func selectInputs(amt btcutil.Amount, candidates []walletstore.Address,
	feeRate coinreg.SatPerVByte) (*coinSelection, error) {

	size := coinreg.EstimateTxSize(len(candidates), spendOutputs)
	fee := coinreg.FeeForSize(size, feeRate)
	needed := amt + fee

	available := sumBalances(candidates)
	if available < needed {
		return nil, &ErrInsufficientFunds{
			Available: available,
			Needed:    needed,
		}
	}

	var selected btcutil.Amount
	for i, coin := range candidates {
		selected += coin.Balance
		if selected >= needed {
			return &coinSelection{
				inputs:   candidates[:i+1],
				selected: selected,
				fee:      fee,
				change:   selected - needed,
				size:     size,
			}, nil
		}
	}

	// Unreachable since the total covers needed.
	return nil, &ErrInsufficientFunds{Available: selected, Needed: needed}
}
