package coinreg

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/btcutil"
)

// ParseAmount parses a decimal coin amount such as "0.015" into base units
// of c. More fractional digits than the currency has is an error, so no
// value is ever rounded.
func ParseAmount(s string, c *Currency) (btcutil.Amount, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.HasPrefix(s, "-") || strings.HasPrefix(s, "+") {
		return 0, fmt.Errorf("invalid amount %q", s)
	}

	whole, frac, _ := strings.Cut(s, ".")
	if whole == "" {
		whole = "0"
	}
	if len(frac) > int(c.Decimals) {
		return 0, fmt.Errorf("amount %q has more than %d decimals",
			s, c.Decimals)
	}
	frac += strings.Repeat("0", int(c.Decimals)-len(frac))

	units, err := strconv.ParseInt(whole+frac, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	if units > int64(btcutil.MaxSatoshi) {
		return 0, fmt.Errorf("amount %q out of range", s)
	}

	return btcutil.Amount(units), nil
}

// FormatAmount renders base units of c as a decimal coin amount followed by
// the symbol, e.g. "0.01500000 BTC".
func FormatAmount(a btcutil.Amount, c *Currency) string {
	sign := ""
	units := int64(a)
	if units < 0 {
		sign = "-"
		units = -units
	}

	digits := strconv.FormatInt(units, 10)
	if pad := int(c.Decimals) + 1 - len(digits); pad > 0 {
		digits = strings.Repeat("0", pad) + digits
	}

	split := len(digits) - int(c.Decimals)
	if c.Decimals == 0 {
		return fmt.Sprintf("%s%s %s", sign, digits, c.Symbol)
	}

	return fmt.Sprintf("%s%s.%s %s", sign, digits[:split], digits[split:],
		c.Symbol)
}
