// Package tax splits invoice amounts into net and VAT parts under Swiss
// VAT rules.
package tax

import (
	"fmt"

	"fjacquet/recon-ledger/internal/accounts"
	"fjacquet/recon-ledger/internal/currencyutils"
	"fjacquet/recon-ledger/internal/logging"
	"fjacquet/recon-ledger/internal/models"
	"fjacquet/recon-ledger/internal/reconerror"
	"fjacquet/recon-ledger/internal/textutils"

	"github.com/shopspring/decimal"
)

// RateSource tells where the rate of a Split came from.
type RateSource string

const (
	RateExplicit      RateSource = "explicit"
	RateDetected      RateSource = "detected"
	RateDerived       RateSource = "derived"
	RateNotDeductible RateSource = "not_deductible"
)

// Keyword lists for rate detection. They are matched after accent folding.
var (
	ExemptKeywords = []string{
		"medecin", "docteur", "hopital", "clinique", "dentiste", "kine", "physiotherapie",
		"ecole", "universite", "formation professionnelle", "creche", "garderie",
		"assurance maladie", "lamal", "caisse maladie", "banque", "interets",
	}
	AccommodationKeywords = []string{
		"hotel", "motel", "auberge", "airbnb", "booking", "hebergement", "nuitee",
	}
	ReducedKeywords = []string{
		"pharmacie", "medicament", "livre", "librairie", "journal", "magazine",
		"eau potable", "denrees alimentaires", "restaurant", "cafe",
	}
)

var hundred = decimal.NewFromInt(100)

// DefaultTolerance is the drift allowed between net+vat and gross before a
// warning is logged.
var DefaultTolerance = decimal.RequireFromString("0.10")

// Input carries the amounts known for a document. Nil means unknown.
type Input struct {
	Gross *decimal.Decimal
	Net   *decimal.Decimal
	VAT   *decimal.Decimal
	Rate  *decimal.Decimal
	// Text is scanned for rate keywords when no rate is given.
	Text string
}

// InputFromInvoice collects the amounts and searchable text of inv.
func InputFromInvoice(inv models.NormalizedInvoice) Input {
	return Input{
		Gross: inv.Gross,
		Net:   inv.Net,
		VAT:   inv.VATAmount,
		Rate:  inv.VATRate,
		Text:  inv.SearchText(),
	}
}

// Split is the result of splitting a document amount.
type Split struct {
	Net        decimal.Decimal `json:"net"`
	VAT        decimal.Decimal `json:"vat"`
	Gross      decimal.Decimal `json:"gross"`
	Rate       decimal.Decimal `json:"rate"`
	RateSource RateSource      `json:"rate_source"`
	// Drift is set when supplied amounts disagree beyond the tolerance.
	Drift bool `json:"drift,omitempty"`
}

// Splitter computes Splits. It is safe for concurrent use.
type Splitter struct {
	logger    logging.Logger
	tolerance decimal.Decimal
}

// NewSplitter creates a Splitter. A zero tolerance selects DefaultTolerance.
func NewSplitter(logger logging.Logger, tolerance decimal.Decimal) *Splitter {
	if !tolerance.IsPositive() {
		tolerance = DefaultTolerance
	}
	return &Splitter{logger: logging.OrDefault(logger), tolerance: tolerance}
}

// DetectRate scans text for exempt, accommodation and reduced keywords, in
// that order, and falls back to the normal rate.
func DetectRate(text string) decimal.Decimal {
	if _, ok := textutils.MatchAny(text, ExemptKeywords); ok {
		return accounts.RateExempt
	}
	if _, ok := textutils.MatchAny(text, AccommodationKeywords); ok {
		return accounts.RateAccommodation
	}
	if _, ok := textutils.MatchAny(text, ReducedKeywords); ok {
		return accounts.RateReduced
	}
	return accounts.RateNormal
}

// Split derives net, VAT and gross. When deductible is false the whole
// gross is net. The returned amounts always satisfy net + vat == gross.
func (s *Splitter) Split(in Input, deductible bool) (Split, error) {
	if in.Rate != nil && !currencyutils.ValidRate(*in.Rate) {
		return Split{}, reconerror.NewValidationError("vat_rate", fmt.Sprintf("rate %s%% outside [0, 100)", in.Rate.String()))
	}
	gross, err := resolveGross(in)
	if err != nil {
		return Split{}, err
	}

	if !deductible {
		return Split{Net: gross, VAT: decimal.Zero, Gross: gross, Rate: decimal.Zero, RateSource: RateNotDeductible}, nil
	}

	out := Split{Gross: gross}
	switch {
	case in.Net != nil:
		out.Net = in.Net.Round(2)
		out.VAT = gross.Sub(out.Net)
		out.Rate, out.RateSource = rateOf(in.Rate, out.Net, out.VAT)
	case in.VAT != nil:
		out.VAT = in.VAT.Round(2)
		out.Net = gross.Sub(out.VAT)
		out.Rate, out.RateSource = rateOf(in.Rate, out.Net, out.VAT)
	default:
		if in.Rate != nil {
			out.Rate, out.RateSource = *in.Rate, RateExplicit
		} else {
			out.Rate, out.RateSource = DetectRate(in.Text), RateDetected
		}
		out.Net = currencyutils.NetFromGross(gross, out.Rate)
		out.VAT = gross.Sub(out.Net)
	}

	if in.VAT != nil {
		drift := out.Net.Add(*in.VAT).Sub(gross).Abs()
		if drift.GreaterThan(s.tolerance) {
			out.Drift = true
			s.logger.WithFields(
				logging.F("net", out.Net.StringFixed(2)),
				logging.F("vat", in.VAT.StringFixed(2)),
				logging.F("gross", gross.StringFixed(2)),
				logging.F("drift", drift.StringFixed(2)),
			).Warn("VAT amounts inconsistent, using computed split")
		}
	}
	return out, nil
}

func resolveGross(in Input) (decimal.Decimal, error) {
	switch {
	case in.Gross != nil:
		if !in.Gross.IsPositive() {
			return decimal.Zero, reconerror.NewValidationError("gross", "must be positive")
		}
		return in.Gross.Round(2), nil
	case in.Net != nil && in.VAT != nil:
		return in.Net.Add(*in.VAT).Round(2), nil
	case in.Net != nil && in.Rate != nil:
		return in.Net.Mul(decimal.NewFromInt(1).Add(in.Rate.Div(hundred))).Round(2), nil
	default:
		return decimal.Zero, reconerror.NewValidationError("gross", "invoice amount is missing")
	}
}

// rateOf reports the explicit rate when given, else the rate implied by
// net and vat rounded to one decimal.
func rateOf(explicit *decimal.Decimal, net, vat decimal.Decimal) (decimal.Decimal, RateSource) {
	if explicit != nil {
		return *explicit, RateExplicit
	}
	if !net.IsPositive() {
		return decimal.Zero, RateDerived
	}
	return vat.Div(net).Mul(hundred).Round(1), RateDerived
}
