// Package reference implements the Swiss structured payment reference
// (QR reference): a 26-digit payload followed by a recursive modulo-10
// check digit.
package reference

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
	"strings"
	"time"

	"fjacquet/recon-ledger/internal/reconerror"
)

const (
	// PayloadLength is the number of digits carrying information.
	PayloadLength = 26
	// Length is the full reference length including the check digit.
	Length = PayloadLength + 1
)

// table is the recursive modulo-10 carry table.
var table = [10]int{0, 9, 4, 6, 8, 2, 7, 1, 3, 5}

// CheckDigit returns the recursive modulo-10 check digit of digits.
// Any non-digit character is rejected.
func CheckDigit(digits string) (int, error) {
	carry := 0
	for i, r := range digits {
		if r < '0' || r > '9' {
			return 0, reconerror.NewValidationError("reference", fmt.Sprintf("non-digit %q at position %d", r, i))
		}
		carry = table[(carry+int(r-'0'))%10]
	}
	return (10 - carry) % 10, nil
}

// Clean removes the grouping spaces of a formatted reference.
func Clean(ref string) string {
	return strings.Join(strings.Fields(ref), "")
}

// Append returns payload followed by its check digit. The payload must be
// exactly 26 digits.
func Append(payload string) (string, error) {
	if len(payload) != PayloadLength {
		return "", reconerror.NewValidationError("payload", fmt.Sprintf("must be %d digits, got %d", PayloadLength, len(payload)))
	}
	cd, err := CheckDigit(payload)
	if err != nil {
		return "", err
	}
	return payload + string(rune('0'+cd)), nil
}

// Validate checks a 27-digit reference. Spaces are ignored. A wrong check
// digit yields reconerror.ErrInvalidChecksum; malformed input yields a
// validation error.
func Validate(ref string) error {
	ref = Clean(ref)
	if len(ref) != Length {
		return reconerror.NewValidationError("reference", fmt.Sprintf("must be %d digits, got %d", Length, len(ref)))
	}
	cd, err := CheckDigit(ref[:PayloadLength])
	if err != nil {
		return err
	}
	last := ref[PayloadLength]
	if last < '0' || last > '9' {
		return reconerror.NewValidationError("reference", fmt.Sprintf("non-digit %q at position %d", last, PayloadLength))
	}
	if int(last-'0') != cd {
		return fmt.Errorf("reference %s: %w", ref, reconerror.ErrInvalidChecksum)
	}
	return nil
}

// IsValid reports whether ref is a well-formed reference with a correct
// check digit.
func IsValid(ref string) bool {
	return Validate(ref) == nil
}

// PayloadFromParts concatenates the digits found in parts and left-pads
// the result with zeros to 26 digits. Non-digit characters are dropped, so
// "CUST-42" and "INV-2024-0007" contribute "42" and "20240007".
func PayloadFromParts(parts ...string) (string, error) {
	var b strings.Builder
	for _, p := range parts {
		for _, r := range p {
			if r >= '0' && r <= '9' {
				b.WriteRune(r)
			}
		}
	}
	digits := b.String()
	if len(digits) > PayloadLength {
		return "", reconerror.NewValidationError("payload", fmt.Sprintf("%d digits exceed %d", len(digits), PayloadLength))
	}
	return strings.Repeat("0", PayloadLength-len(digits)) + digits, nil
}

// Generator produces new references. The zero value is not usable; use
// NewGenerator.
type Generator struct {
	now  func() time.Time
	rand io.Reader
}

// Option configures a Generator.
type Option func(*Generator)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(g *Generator) { g.now = now }
}

// WithRandom overrides the random source.
func WithRandom(r io.Reader) Option {
	return func(g *Generator) { g.rand = r }
}

// NewGenerator returns a Generator backed by the system clock and crypto/rand.
func NewGenerator(opts ...Option) *Generator {
	g := &Generator{now: time.Now, rand: rand.Reader}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

var randomBound = new(big.Int).Exp(big.NewInt(10), big.NewInt(16), nil)

// Generate returns a 27-digit reference. An empty payload is replaced by 10
// digits of the current Unix time followed by 16 random digits.
func (g *Generator) Generate(payload string) (string, error) {
	payload = Clean(payload)
	if payload == "" {
		var err error
		if payload, err = g.randomPayload(); err != nil {
			return "", err
		}
	}
	return Append(payload)
}

func (g *Generator) randomPayload() (string, error) {
	n, err := rand.Int(g.rand, randomBound)
	if err != nil {
		return "", fmt.Errorf("failed to read random digits: %w", err)
	}
	clock := g.now().Unix() % 10_000_000_000
	return fmt.Sprintf("%010d%016d", clock, n.Int64()), nil
}
