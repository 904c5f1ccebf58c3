// Package currencyutils parses and formats monetary amounts found in
// normalized documents and CSV imports.
package currencyutils

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var symbolRe = regexp.MustCompile(`[€$£¥₣\s\x{00A0}]|CHF|EUR|USD|GBP|Fr\.?`)

var hundred = decimal.NewFromInt(100)

// ParseAmount parses a string representation of an amount into a decimal value.
// It handles formats like "1,234.56", "1.234,56", "1'234.56" and "CHF 1234.56".
// An empty string parses as zero.
func ParseAmount(amountStr string) (decimal.Decimal, error) {
	if strings.TrimSpace(amountStr) == "" {
		return decimal.Zero, nil
	}
	standardized := StandardizeAmount(amountStr)
	amount, err := decimal.NewFromString(standardized)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to parse amount '%s': %w", amountStr, err)
	}
	return amount, nil
}

// StandardizeAmount converts various currency string formats to a form
// decimal.NewFromString accepts.
func StandardizeAmount(amountStr string) string {
	s := symbolRe.ReplaceAllString(amountStr, "")
	s = strings.ReplaceAll(s, "'", "")
	s = strings.ReplaceAll(s, "’", "")

	switch {
	case strings.Contains(s, ",") && strings.Contains(s, "."):
		if strings.LastIndex(s, ".") < strings.LastIndex(s, ",") {
			// 1.234,56
			s = strings.ReplaceAll(s, ".", "")
			s = strings.ReplaceAll(s, ",", ".")
		} else {
			// 1,234.56
			s = strings.ReplaceAll(s, ",", "")
		}
	case strings.Contains(s, ","):
		parts := strings.Split(s, ",")
		if len(parts) == 2 && len(parts[1]) <= 2 {
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	}
	return s
}

// ParseRate parses a VAT rate such as "8.1", "8,1%" or "7.7 %".
func ParseRate(rateStr string) (decimal.Decimal, error) {
	return ParseAmount(strings.TrimSuffix(strings.TrimSpace(rateStr), "%"))
}

// ValidRate reports whether ratePercent is a usable VAT rate, i.e. within
// [0, 100).
func ValidRate(ratePercent decimal.Decimal) bool {
	return !ratePercent.IsNegative() && ratePercent.LessThan(hundred)
}

// NetFromGross returns gross / (1 + rate/100) rounded to two decimals. A
// zero rate returns gross unchanged. The rate must satisfy ValidRate.
func NetFromGross(gross, ratePercent decimal.Decimal) decimal.Decimal {
	if ratePercent.IsZero() {
		return gross
	}
	divisor := decimal.NewFromInt(1).Add(ratePercent.Div(hundred))
	return gross.Div(divisor).Round(2)
}
