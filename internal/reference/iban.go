package reference

import (
	"fmt"
	"math/big"
	"strings"

	"fjacquet/recon-ledger/internal/reconerror"
)

const ibanLength = 21

// QR-IBANs carry an institution id in this range.
const (
	qrIIDMin = 30000
	qrIIDMax = 31999
)

// NormalizeIBAN upper-cases an IBAN and removes spaces.
func NormalizeIBAN(iban string) string {
	return strings.ToUpper(Clean(iban))
}

// ValidateIBAN checks a Swiss or Liechtenstein IBAN: country code, length
// and the ISO 13616 MOD-97 check.
func ValidateIBAN(iban string) error {
	iban = NormalizeIBAN(iban)
	if len(iban) != ibanLength {
		return reconerror.NewValidationError("iban", fmt.Sprintf("must be %d characters, got %d", ibanLength, len(iban)))
	}
	if cc := iban[:2]; cc != "CH" && cc != "LI" {
		return reconerror.NewValidationError("iban", "country must be CH or LI, got "+cc)
	}
	rearranged := iban[4:] + iban[:4]
	var digits strings.Builder
	for _, r := range rearranged {
		switch {
		case r >= '0' && r <= '9':
			digits.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			fmt.Fprintf(&digits, "%d", r-'A'+10)
		default:
			return reconerror.NewValidationError("iban", fmt.Sprintf("invalid character %q", r))
		}
	}
	n, ok := new(big.Int).SetString(digits.String(), 10)
	if !ok || new(big.Int).Mod(n, big.NewInt(97)).Int64() != 1 {
		return fmt.Errorf("iban %s: %w", iban, reconerror.ErrInvalidChecksum)
	}
	return nil
}

// IsQRIBAN reports whether iban is a valid QR-IBAN, which requires a QR
// reference on the payment slip.
func IsQRIBAN(iban string) bool {
	iban = NormalizeIBAN(iban)
	if ValidateIBAN(iban) != nil {
		return false
	}
	iid := 0
	for _, r := range iban[4:9] {
		if r < '0' || r > '9' {
			return false
		}
		iid = iid*10 + int(r-'0')
	}
	return iid >= qrIIDMin && iid <= qrIIDMax
}

// FormatIBAN groups an IBAN in blocks of four characters.
func FormatIBAN(iban string) string {
	iban = NormalizeIBAN(iban)
	var b strings.Builder
	for i, r := range iban {
		if i > 0 && i%4 == 0 {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
	}
	return b.String()
}
