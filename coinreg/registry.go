package coinreg

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/btcsuite/btcd/chaincfg"
)

// ErrUnknownCurrency is returned when a symbol is not in the registry.
var ErrUnknownCurrency = errors.New("unsupported currency")

// Network tags a currency as living on a main or test network.
type Network string

const (
	// Mainnet marks a production network.
	Mainnet Network = "mainnet"

	// Testnet marks a test network.
	Testnet Network = "testnet"
)

// DefaultFeeRate is used for currencies without a recommended rate.
const DefaultFeeRate SatPerVByte = 10

// Currency describes a supported coin: how its keys are derived and how its
// addresses are encoded.
type Currency struct {
	// Symbol is the unique, upper case ticker, e.g. "BTC".
	Symbol string `json:"symbol"`

	// Name is the human readable name.
	Name string `json:"name"`

	// Network is mainnet or testnet.
	Network Network `json:"network"`

	// Decimals is the number of fractional digits of one whole coin.
	Decimals uint8 `json:"decimals"`

	// DerivationPath is the hardened BIP-44 account path all addresses of
	// this currency hang off, e.g. "m/44'/0'/0'".
	DerivationPath string `json:"derivationPath"`

	params  *chaincfg.Params
	feeRate SatPerVByte
}

// Params returns the chain parameters used to encode addresses and extended
// keys of this currency.
func (c *Currency) Params() *chaincfg.Params {
	return c.params
}

// FeeRate returns the recommended fee rate of the currency.
func (c *Currency) FeeRate() SatPerVByte {
	return c.feeRate
}

// String returns the symbol.
func (c *Currency) String() string {
	return c.Symbol
}

// defaultCurrencies is the built-in table of supported coins.
func defaultCurrencies() []*Currency {
	return []*Currency{
		{
			Symbol:         "BTC",
			Name:           "Bitcoin",
			Network:        Mainnet,
			Decimals:       8,
			DerivationPath: "m/44'/0'/0'",
			params:         bitcoinMainNetParams,
			feeRate:        20,
		},
		{
			Symbol:         "BTC-TEST",
			Name:           "Bitcoin Testnet",
			Network:        Testnet,
			Decimals:       8,
			DerivationPath: "m/44'/1'/0'",
			params:         bitcoinTestNetParams,
			feeRate:        1,
		},
		{
			Symbol:         "LTC",
			Name:           "Litecoin",
			Network:        Mainnet,
			Decimals:       8,
			DerivationPath: "m/44'/2'/0'",
			params:         litecoinMainNetParams,
			feeRate:        10,
		},
		{
			Symbol:         "DOGE",
			Name:           "Dogecoin",
			Network:        Mainnet,
			Decimals:       8,
			DerivationPath: "m/44'/3'/0'",
			params:         dogecoinMainNetParams,
			feeRate:        1000,
		},
		{
			Symbol:         "BCH",
			Name:           "Bitcoin Cash",
			Network:        Mainnet,
			Decimals:       8,
			DerivationPath: "m/44'/145'/0'",
			params:         bitcoinMainNetParams,
			feeRate:        1,
		},
		{
			Symbol:         "DASH",
			Name:           "Dash",
			Network:        Mainnet,
			Decimals:       8,
			DerivationPath: "m/44'/5'/0'",
			params:         dashMainNetParams,
			feeRate:        5,
		},
	}
}

// Registry is the immutable set of supported currencies.
type Registry struct {
	currencies []*Currency
	bySymbol   map[string]*Currency
}

// DefaultRegistry returns a registry of the built-in currencies with their
// recommended fee rates.
func DefaultRegistry() *Registry {
	r, _ := NewRegistry(nil)
	return r
}

// NewRegistry returns a registry of the built-in currencies. Fee rate
// overrides are keyed by symbol, matched case-insensitively.
func NewRegistry(feeRates map[string]SatPerVByte) (*Registry, error) {
	r := &Registry{
		currencies: defaultCurrencies(),
		bySymbol:   make(map[string]*Currency),
	}
	for _, c := range r.currencies {
		r.bySymbol[c.Symbol] = c
	}

	// Apply overrides in a stable order so errors are deterministic.
	symbols := make([]string, 0, len(feeRates))
	for symbol := range feeRates {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)

	for _, symbol := range symbols {
		rate := feeRates[symbol]

		c, err := r.Lookup(symbol)
		if err != nil {
			return nil, err
		}
		if rate <= 0 {
			return nil, fmt.Errorf("fee rate for %v must be "+
				"positive, got %d", c.Symbol, rate)
		}

		c.feeRate = rate
	}

	return r, nil
}

// Lookup returns the currency for symbol, ignoring case.
func (r *Registry) Lookup(symbol string) (*Currency, error) {
	c, ok := r.bySymbol[strings.ToUpper(strings.TrimSpace(symbol))]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCurrency, symbol)
	}

	return c, nil
}

// IsSupported reports whether symbol names a known currency.
func (r *Registry) IsSupported(symbol string) bool {
	_, err := r.Lookup(symbol)
	return err == nil
}

// All returns every currency in table order.
func (r *Registry) All() []*Currency {
	return append([]*Currency(nil), r.currencies...)
}

// Mainnet returns the mainnet currencies.
func (r *Registry) Mainnet() []*Currency {
	return r.filter(Mainnet)
}

// Testnet returns the testnet currencies.
func (r *Registry) Testnet() []*Currency {
	return r.filter(Testnet)
}

func (r *Registry) filter(network Network) []*Currency {
	var out []*Currency
	for _, c := range r.currencies {
		if c.Network == network {
			out = append(out, c)
		}
	}

	return out
}
