package coinreg

import (
	"testing"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// TestLookup checks case-insensitive lookups and unknown symbols.
func TestLookup(t *testing.T) {
	t.Parallel()

	r := DefaultRegistry()

	tests := []struct {
		symbol string
		want   string
		path   string
		rate   SatPerVByte
	}{
		{"BTC", "BTC", "m/44'/0'/0'", 20},
		{"btc", "BTC", "m/44'/0'/0'", 20},
		{"btc-test", "BTC-TEST", "m/44'/1'/0'", 1},
		{"Ltc", "LTC", "m/44'/2'/0'", 10},
		{"doge", "DOGE", "m/44'/3'/0'", 1000},
		{"BCH", "BCH", "m/44'/145'/0'", 1},
		{"dash", "DASH", "m/44'/5'/0'", 5},
	}
	for _, test := range tests {
		c, err := r.Lookup(test.symbol)
		require.NoError(t, err, test.symbol)
		require.Equal(t, test.want, c.Symbol)
		require.Equal(t, test.path, c.DerivationPath)
		require.Equal(t, test.rate, c.FeeRate())
		require.EqualValues(t, 8, c.Decimals)
		require.NotNil(t, c.Params())
		require.True(t, r.IsSupported(test.symbol))
	}

	_, err := r.Lookup("XMR")
	require.ErrorIs(t, err, ErrUnknownCurrency)
	require.False(t, r.IsSupported("XMR"))
	require.False(t, r.IsSupported(""))
}

func TestNetworkFilters(t *testing.T) {
	t.Parallel()

	r := DefaultRegistry()
	require.Len(t, r.All(), 6)
	require.Len(t, r.Mainnet(), 5)

	testnet := r.Testnet()
	require.Len(t, testnet, 1)
	require.Equal(t, "BTC-TEST", testnet[0].Symbol)

	// Mutating the returned slice must not affect the registry.
	all := r.All()
	all[0] = nil
	require.NotNil(t, r.All()[0])
}

// TestAddressVersionBytes ensures each currency encodes P2PKH addresses with
// its own version byte.
func TestAddressVersionBytes(t *testing.T) {
	t.Parallel()

	r := DefaultRegistry()
	hash := make([]byte, 20)

	tests := []struct {
		symbol string
		prefix string
	}{
		{"BTC", "1"},
		{"BCH", "1"},
		{"BTC-TEST", "m"},
		{"LTC", "L"},
		{"DOGE", "D"},
		{"DASH", "X"},
	}
	for _, test := range tests {
		c, err := r.Lookup(test.symbol)
		require.NoError(t, err)

		addr, err := btcutil.NewAddressPubKeyHash(hash, c.Params())
		require.NoError(t, err)
		require.Equal(t, test.prefix, addr.EncodeAddress()[:1],
			test.symbol)

		decoded, err := btcutil.DecodeAddress(
			addr.EncodeAddress(), c.Params(),
		)
		require.NoError(t, err)
		require.True(t, decoded.IsForNet(c.Params()))
	}

	// A litecoin address is not valid for bitcoin.
	ltc, _ := r.Lookup("LTC")
	btc, _ := r.Lookup("BTC")
	addr, err := btcutil.NewAddressPubKeyHash(hash, ltc.Params())
	require.NoError(t, err)
	decoded, err := btcutil.DecodeAddress(
		addr.EncodeAddress(), btc.Params(),
	)
	if err == nil {
		require.False(t, decoded.IsForNet(btc.Params()))
	}
}

func TestExtendedKeyVersionBytes(t *testing.T) {
	t.Parallel()

	r := DefaultRegistry()

	tests := []struct {
		symbol string
		pub    [4]byte
		priv   [4]byte
	}{
		{"BTC", [4]byte{0x04, 0x88, 0xb2, 0x1e},
			[4]byte{0x04, 0x88, 0xad, 0xe4}},
		{"BTC-TEST", [4]byte{0x04, 0x35, 0x87, 0xcf},
			[4]byte{0x04, 0x35, 0x83, 0x94}},
		{"LTC", [4]byte{0x01, 0x9d, 0xa4, 0x62},
			[4]byte{0x01, 0x9d, 0x9c, 0xfe}},
	}
	for _, test := range tests {
		c, err := r.Lookup(test.symbol)
		require.NoError(t, err)
		require.Equal(t, test.pub, c.Params().HDPublicKeyID, test.symbol)
		require.Equal(t, test.priv, c.Params().HDPrivateKeyID,
			test.symbol)
	}
}

func TestFeeRateOverrides(t *testing.T) {
	t.Parallel()

	r, err := NewRegistry(map[string]SatPerVByte{"btc": 42})
	require.NoError(t, err)

	c, err := r.Lookup("BTC")
	require.NoError(t, err)
	require.Equal(t, SatPerVByte(42), c.FeeRate())

	// The default registry is unaffected.
	c, err = DefaultRegistry().Lookup("BTC")
	require.NoError(t, err)
	require.Equal(t, SatPerVByte(20), c.FeeRate())

	_, err = NewRegistry(map[string]SatPerVByte{"XMR": 1})
	require.ErrorIs(t, err, ErrUnknownCurrency)

	_, err = NewRegistry(map[string]SatPerVByte{"LTC": 0})
	require.Error(t, err)
}

// TestEstimateTxSize checks the P2PKH size model.
func TestEstimateTxSize(t *testing.T) {
	t.Parallel()

	require.Equal(t, 10, EstimateTxSize(0, 0))
	require.Equal(t, 226, EstimateTxSize(1, 2))
	require.Equal(t, 374, EstimateTxSize(2, 2))
	require.Equal(t, 1520, EstimateTxSize(10, 1))

	rapid.Check(t, func(t *rapid.T) {
		inputs := rapid.IntRange(0, 252).Draw(t, "inputs")
		outputs := rapid.IntRange(0, 252).Draw(t, "outputs")

		require.Equal(
			t, 10+148*inputs+34*outputs,
			EstimateTxSize(inputs, outputs),
		)
	})
}

func TestFeeForSize(t *testing.T) {
	t.Parallel()

	require.Equal(t, btcutil.Amount(4520), FeeForSize(226, 20))
	require.Equal(t, btcutil.Amount(226), FeeForSize(226, 1))
	require.Equal(t, SatPerKVByte(1000), SatPerVByte(1).FeePerKVByte())
	require.Equal(t, "20 sat/vb", SatPerVByte(20).String())
}

func TestAmounts(t *testing.T) {
	t.Parallel()

	btc, err := DefaultRegistry().Lookup("BTC")
	require.NoError(t, err)

	tests := []struct {
		in   string
		want btcutil.Amount
	}{
		{"1", 100000000},
		{"0.015", 1500000},
		{".5", 50000000},
		{"0.00000001", 1},
		{"21000000", 2100000000000000},
	}
	for _, test := range tests {
		got, err := ParseAmount(test.in, btc)
		require.NoError(t, err, test.in)
		require.Equal(t, test.want, got, test.in)
	}

	for _, bad := range []string{
		"", "-1", "abc", "0.000000001", "1.2.3", "21000001",
	} {
		_, err := ParseAmount(bad, btc)
		require.Error(t, err, bad)
	}

	require.Equal(t, "0.01500000 BTC", FormatAmount(1500000, btc))
	require.Equal(t, "0.00000001 BTC", FormatAmount(1, btc))
	require.Equal(t, "-1.00000000 BTC", FormatAmount(-100000000, btc))

	rapid.Check(t, func(t *rapid.T) {
		units := btcutil.Amount(rapid.Int64Range(
			0, int64(btcutil.MaxSatoshi),
		).Draw(t, "units"))

		formatted := FormatAmount(units, btc)
		parsed, err := ParseAmount(
			formatted[:len(formatted)-len(" BTC")], btc,
		)
		require.NoError(t, err)
		require.Equal(t, units, parsed)
	})
}
