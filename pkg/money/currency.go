package money

import (
	"strings"

	gomoney "github.com/Rhymond/go-money"
)

// ISOCurrency is the ISO 4217 metadata of a currency
type ISOCurrency struct {
	Code     string
	Decimals int
	Symbol   string
}

// LookupCurrency finds code in the ISO 4217 table. Codes are matched
// case-insensitively.
func LookupCurrency(code string) (ISOCurrency, bool) {
	c := gomoney.GetCurrency(strings.ToUpper(strings.TrimSpace(code)))
	if c == nil {
		return ISOCurrency{}, false
	}
	return ISOCurrency{Code: c.Code, Decimals: c.Fraction, Symbol: c.Grapheme}, true
}
