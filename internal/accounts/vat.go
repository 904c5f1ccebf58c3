package accounts

import "github.com/shopspring/decimal"

// Swiss VAT rates in percent, valid from 2024.
var (
	RateNormal        = decimal.RequireFromString("8.1")
	RateReduced       = decimal.RequireFromString("2.6")
	RateAccommodation = decimal.RequireFromString("3.8")
	RateExempt        = decimal.Zero
)

// VATCode returns the tax code printed on ledger lines for rate. Unknown
// positive rates are reported as normal rate.
func VATCode(rate decimal.Decimal) string {
	switch {
	case rate.Equal(RateNormal):
		return "N81"
	case rate.Equal(RateReduced):
		return "R26"
	case rate.Equal(RateAccommodation):
		return "H38"
	case rate.IsZero():
		return "E00"
	default:
		return "N81"
	}
}
