package coinreg

import (
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	litecoinCfg "github.com/ltcsuite/ltcd/chaincfg"
)

// bitcoinMainNetParams are the address parameters of Bitcoin mainnet. Bitcoin
// Cash addresses are produced in the legacy format and share them.
var bitcoinMainNetParams = &chaincfg.MainNetParams

// bitcoinTestNetParams are the address parameters of the 3rd version of the
// Bitcoin test network.
var bitcoinTestNetParams = &chaincfg.TestNet3Params

// litecoinMainNetParams holds Litecoin's encoding magics typed for btcsuite
// derivation.
var litecoinMainNetParams = newLitecoinParams()

// dogecoinMainNetParams holds Dogecoin's base58 version bytes.
var dogecoinMainNetParams = newBase58Params("dogecoin", 0xc0c0c0c0, 0x1e, 0x16,
	0x9e)

// dashMainNetParams holds Dash's base58 version bytes.
var dashMainNetParams = newBase58Params("dash", 0xbd6b0cbf, 0x4c, 0x10, 0xcc)

var (
	// ltcHDPrivateKeyID is the Ltpv extended private key version.
	ltcHDPrivateKeyID = [4]byte{0x01, 0x9d, 0x9c, 0xfe}

	// ltcHDPublicKeyID is the Ltub extended public key version.
	ltcHDPublicKeyID = [4]byte{0x01, 0x9d, 0xa4, 0x62}
)

// newLitecoinParams applies the chain configuration parameters that differ
// for litecoin to a copy of the bitcoin mainnet parameters.
func newLitecoinParams() *chaincfg.Params {
	params := chaincfg.MainNetParams
	ltc := &litecoinCfg.MainNetParams

	params.Name = ltc.Name
	params.Net = wire.BitcoinNet(ltc.Net)
	params.DefaultPort = ltc.DefaultPort
	params.CoinbaseMaturity = ltc.CoinbaseMaturity

	var genesis chainhash.Hash
	copy(genesis[:], ltc.GenesisHash[:])
	params.GenesisHash = &genesis

	// Address encoding magics.
	params.PubKeyHashAddrID = ltc.PubKeyHashAddrID
	params.ScriptHashAddrID = ltc.ScriptHashAddrID
	params.PrivateKeyID = ltc.PrivateKeyID
	params.WitnessPubKeyHashAddrID = ltc.WitnessPubKeyHashAddrID
	params.WitnessScriptHashAddrID = ltc.WitnessScriptHashAddrID
	params.Bech32HRPSegwit = ltc.Bech32HRPSegwit

	// ltcd still carries the bitcoin xprv/xpub versions, so use the
	// Ltpv/Ltub ones directly.
	params.HDPrivateKeyID = ltcHDPrivateKeyID
	params.HDPublicKeyID = ltcHDPublicKeyID
	params.HDCoinType = ltc.HDCoinType

	// Checkpoints are meaningless offline and belong to another chain.
	params.Checkpoints = nil

	return &params
}

// newBase58Params derives parameters for a chain that only differs from
// bitcoin mainnet in its legacy address version bytes. Extended keys keep
// the bitcoin xpub/xprv versions.
func newBase58Params(name string, net uint32, pubKeyHashID, scriptHashID,
	privKeyID byte) *chaincfg.Params {

	params := chaincfg.MainNetParams

	params.Name = name
	params.Net = wire.BitcoinNet(net)
	params.PubKeyHashAddrID = pubKeyHashID
	params.ScriptHashAddrID = scriptHashID
	params.PrivateKeyID = privKeyID

	// No segwit on these chains; an empty HRP keeps bech32 decoding from
	// matching.
	params.Bech32HRPSegwit = ""
	params.Checkpoints = nil

	return &params
}
