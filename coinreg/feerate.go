package coinreg

import (
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcwallet/wallet/txrules"
	"github.com/btcsuite/btcwallet/wallet/txsizes"
)

// SatPerVByte represents a fee rate in sat/vbyte. The transactions built
// here are legacy, so a vbyte is a byte.
type SatPerVByte btcutil.Amount

// FeePerKVByte converts the current fee rate from sat/vb to sat/kvb.
func (s SatPerVByte) FeePerKVByte() SatPerKVByte {
	return SatPerKVByte(s * 1000)
}

// String returns a human-readable string of the fee rate.
func (s SatPerVByte) String() string {
	return fmt.Sprintf("%v sat/vb", int64(s))
}

// SatPerKVByte represents a fee rate in sat/kb.
type SatPerKVByte btcutil.Amount

// FeeForVSize calculates the fee resulting from this fee rate and the given
// size in bytes.
func (s SatPerKVByte) FeeForVSize(vbytes int) btcutil.Amount {
	return txrules.FeeForSerializeSize(btcutil.Amount(s), vbytes)
}

// String returns a human-readable string of the fee rate.
func (s SatPerKVByte) String() string {
	return fmt.Sprintf("%v sat/kvb", int64(s))
}

const (
	// txOverheadSize is the version, locktime and both count varints of a
	// legacy transaction with fewer than 253 inputs and outputs.
	txOverheadSize = 10

	// p2pkhInputSize is a P2PKH input with a 72 byte signature and a
	// compressed public key.
	p2pkhInputSize = 148
)

// EstimateTxSize returns the serialized size of a transaction spending
// inputs P2PKH inputs into outputs P2PKH outputs:
// 10 + 148*inputs + 34*outputs.
func EstimateTxSize(inputs, outputs int) int {
	return txOverheadSize + p2pkhInputSize*inputs +
		txsizes.P2PKHOutputSize*outputs
}

// FeeForSize returns the fee for a transaction of size bytes at rate.
func FeeForSize(size int, rate SatPerVByte) btcutil.Amount {
	return rate.FeePerKVByte().FeeForVSize(size)
}
