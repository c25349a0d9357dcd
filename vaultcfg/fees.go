package vaultcfg

import (
	"github.com/coldvault/coldvault/coinreg"
)

// Fees overrides the recommended fee rates of the built-in currencies.
//
//nolint:lll
type Fees struct {
	Rates map[string]uint64 `long:"rate" description:"Recommended fee rate of a currency in sat/vbyte, as SYMBOL:RATE. May be repeated."`
}

// Registry returns the currency registry with the configured rates applied.
// Unknown symbols and zero rates are rejected.
func (f *Fees) Registry() (*coinreg.Registry, error) {
	rates := make(map[string]coinreg.SatPerVByte, len(f.Rates))
	for symbol, rate := range f.Rates {
		rates[symbol] = coinreg.SatPerVByte(rate)
	}

	return coinreg.NewRegistry(rates)
}

// Validate checks every override names a supported currency with a positive
// rate.
func (f *Fees) Validate() error {
	_, err := f.Registry()
	return err
}
