package tax

import (
	"testing"

	"fjacquet/recon-ledger/internal/logging"
	"fjacquet/recon-ledger/internal/models"
	"fjacquet/recon-ledger/internal/reconerror"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) *decimal.Decimal { return models.DecimalPtr(s) }

func TestDetectRate(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"Swisscom (Schweiz) AG abonnement mobile", "8.1"},
		{"Hôtel du Lac, 2 nuitées", "3.8"},
		{"Pharmacie Principale", "2.6"},
		{"Cabinet du Docteur Martin", "0"},
		{"Hôpital cantonal, restaurant", "0"},
		{"Auberge et restaurant", "3.8"},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectRate(tt.text).String())
		})
	}
}

func TestSplit(t *testing.T) {
	tests := []struct {
		name       string
		in         Input
		deductible bool
		net, vat   string
		gross      string
		rate       string
		source     RateSource
	}{
		{
			name: "gross only, normal rate detected", in: Input{Gross: d("1081.00"), Text: "Swisscom telecom"},
			deductible: true, net: "1000", vat: "81", gross: "1081", rate: "8.1", source: RateDetected,
		},
		{
			name: "explicit reduced rate", in: Input{Gross: d("102.60"), Rate: d("2.6")},
			deductible: true, net: "100", vat: "2.6", gross: "102.6", rate: "2.6", source: RateExplicit,
		},
		{
			name: "not deductible", in: Input{Gross: d("2500.00"), Rate: d("8.1")},
			deductible: false, net: "2500", vat: "0", gross: "2500", rate: "0", source: RateNotDeductible,
		},
		{
			name: "net known", in: Input{Gross: d("1081"), Net: d("1000")},
			deductible: true, net: "1000", vat: "81", gross: "1081", rate: "8.1", source: RateDerived,
		},
		{
			name: "vat known", in: Input{Gross: d("538"), VAT: d("38")},
			deductible: true, net: "500", vat: "38", gross: "538", rate: "7.6", source: RateDerived,
		},
		{
			name: "only net and vat", in: Input{Net: d("200"), VAT: d("16.20")},
			deductible: true, net: "200", vat: "16.2", gross: "216.2", rate: "8.1", source: RateDerived,
		},
		{
			name: "exempt keyword", in: Input{Gross: d("180"), Text: "Dentiste Dr Favre"},
			deductible: true, net: "180", vat: "0", gross: "180", rate: "0", source: RateDetected,
		},
		{
			name: "rounding keeps balance", in: Input{Gross: d("99.99")},
			deductible: true, net: "92.5", vat: "7.49", gross: "99.99", rate: "8.1", source: RateDetected,
		},
	}
	s := NewSplitter(logging.NewMockLogger(), decimal.Zero)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.Split(tt.in, tt.deductible)
			require.NoError(t, err)
			assert.Equal(t, tt.net, got.Net.String(), "net")
			assert.Equal(t, tt.vat, got.VAT.String(), "vat")
			assert.Equal(t, tt.gross, got.Gross.String(), "gross")
			assert.Equal(t, tt.rate, got.Rate.String(), "rate")
			assert.Equal(t, tt.source, got.RateSource)
			assert.True(t, got.Net.Add(got.VAT).Equal(got.Gross))
		})
	}
}

func TestSplit_DriftIsOnlyAWarning(t *testing.T) {
	logger := logging.NewMockLogger()
	s := NewSplitter(logger, decimal.Zero)

	got, err := s.Split(Input{Gross: d("100"), Net: d("90"), VAT: d("5")}, true)
	require.NoError(t, err)
	assert.True(t, got.Drift)
	assert.Equal(t, "10", got.VAT.String())
	assert.True(t, logger.HasEntry("WARN", "VAT amounts inconsistent, using computed split"))
}

func TestSplit_WithinToleranceNoWarning(t *testing.T) {
	logger := logging.NewMockLogger()
	s := NewSplitter(logger, decimal.Zero)

	got, err := s.Split(Input{Gross: d("1081"), VAT: d("81.05"), Rate: d("8.1")}, true)
	require.NoError(t, err)
	assert.False(t, got.Drift)
	assert.Empty(t, logger.GetEntriesByLevel("WARN"))
}

func TestSplit_MissingAmount(t *testing.T) {
	s := NewSplitter(nil, decimal.Zero)

	_, err := s.Split(Input{Text: "no amounts"}, true)
	assert.True(t, reconerror.IsValidation(err))

	_, err = s.Split(Input{Gross: d("-5")}, true)
	assert.True(t, reconerror.IsValidation(err))
}

func TestSplit_RateOutOfRange(t *testing.T) {
	s := NewSplitter(logging.NewMockLogger(), decimal.Zero)
	tests := []struct {
		name string
		in   Input
	}{
		{"minus hundred with gross", Input{Gross: d("100.00"), Rate: d("-100")}},
		{"negative with gross", Input{Gross: d("100.00"), Rate: d("-50")}},
		{"hundred", Input{Gross: d("100.00"), Rate: d("100")}},
		{"negative with net only", Input{Net: d("100.00"), Rate: d("-100")}},
		{"negative with net and vat", Input{Gross: d("108.10"), Net: d("100.00"), Rate: d("-8.1")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var err error
			require.NotPanics(t, func() { _, err = s.Split(tt.in, true) })
			var ve *reconerror.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, "vat_rate", ve.Field)
		})
	}
}

func TestInputFromInvoice(t *testing.T) {
	inv := models.NormalizedInvoice{CounterpartyName: "Hotel Central", Gross: d("103.80")}
	in := InputFromInvoice(inv)
	assert.Equal(t, "103.8", in.Gross.String())
	assert.Contains(t, in.Text, "Hotel Central")
}
