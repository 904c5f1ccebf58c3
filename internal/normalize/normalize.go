// Package normalize turns raw invoice and OCR records (JSON or YAML maps)
// into models.NormalizedInvoice. Every field is read from an ordered list
// of candidate keys; the first key present wins and is logged.
package normalize

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"fjacquet/recon-ledger/internal/currencyutils"
	"fjacquet/recon-ledger/internal/dateutils"
	"fjacquet/recon-ledger/internal/logging"
	"fjacquet/recon-ledger/internal/models"
	"fjacquet/recon-ledger/internal/reconerror"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// CandidateKeys lists, per field, the keys tried in order. A dotted key
// walks nested maps, e.g. "ocr_data.total".
type CandidateKeys struct {
	SourceDocumentID []string `mapstructure:"source_document_id" yaml:"source_document_id"`
	CompanyID        []string `mapstructure:"company_id" yaml:"company_id"`
	InvoiceNumber    []string `mapstructure:"invoice_number" yaml:"invoice_number"`
	CounterpartyID   []string `mapstructure:"counterparty_id" yaml:"counterparty_id"`
	CounterpartyName []string `mapstructure:"counterparty_name" yaml:"counterparty_name"`
	Description      []string `mapstructure:"description" yaml:"description"`
	Category         []string `mapstructure:"category" yaml:"category"`
	Currency         []string `mapstructure:"currency" yaml:"currency"`
	Date             []string `mapstructure:"date" yaml:"date"`
	DueDate          []string `mapstructure:"due_date" yaml:"due_date"`
	Gross            []string `mapstructure:"gross" yaml:"gross"`
	Net              []string `mapstructure:"net" yaml:"net"`
	VATAmount        []string `mapstructure:"vat_amount" yaml:"vat_amount"`
	VATRate          []string `mapstructure:"vat_rate" yaml:"vat_rate"`
	Confidence       []string `mapstructure:"confidence" yaml:"confidence"`
}

// DefaultCandidateKeys matches supplier invoice records with embedded OCR
// data.
func DefaultCandidateKeys() CandidateKeys {
	return CandidateKeys{
		SourceDocumentID: []string{"id", "source_document_id", "supplier_invoice_id"},
		CompanyID:        []string{"owner_company", "company_id", "company"},
		InvoiceNumber:    []string{"invoice_number", "ocr_data.invoice_number", "number"},
		CounterpartyID:   []string{"supplier_id", "supplier.id", "counterparty_id"},
		CounterpartyName: []string{"supplier_name", "supplier.name", "ocr_data.vendor", "counterparty_name", "vendor"},
		Description:      []string{"description", "ocr_data.description"},
		Category:         []string{"ocr_data.category", "category"},
		Currency:         []string{"currency", "ocr_data.currency"},
		Date:             []string{"date", "invoice_date", "ocr_data.date"},
		DueDate:          []string{"due_date", "ocr_data.due_date"},
		Gross:            []string{"amount", "ocr_data.total", "total", "amount_ttc"},
		Net:              []string{"ocr_data.subtotal", "amount_ht", "subtotal", "net"},
		VATAmount:        []string{"ocr_data.vat_amount", "vat_amount"},
		VATRate:          []string{"ocr_data.vat_rate", "vat_rate"},
		Confidence:       []string{"ocr_data.confidence", "confidence"},
	}
}

// merge fills empty lists of k with the defaults.
func (k CandidateKeys) merge(def CandidateKeys) CandidateKeys {
	pick := func(a, b []string) []string {
		if len(a) > 0 {
			return a
		}
		return b
	}
	return CandidateKeys{
		SourceDocumentID: pick(k.SourceDocumentID, def.SourceDocumentID),
		CompanyID:        pick(k.CompanyID, def.CompanyID),
		InvoiceNumber:    pick(k.InvoiceNumber, def.InvoiceNumber),
		CounterpartyID:   pick(k.CounterpartyID, def.CounterpartyID),
		CounterpartyName: pick(k.CounterpartyName, def.CounterpartyName),
		Description:      pick(k.Description, def.Description),
		Category:         pick(k.Category, def.Category),
		Currency:         pick(k.Currency, def.Currency),
		Date:             pick(k.Date, def.Date),
		DueDate:          pick(k.DueDate, def.DueDate),
		Gross:            pick(k.Gross, def.Gross),
		Net:              pick(k.Net, def.Net),
		VATAmount:        pick(k.VATAmount, def.VATAmount),
		VATRate:          pick(k.VATRate, def.VATRate),
		Confidence:       pick(k.Confidence, def.Confidence),
	}
}

// Normalizer maps raw records onto NormalizedInvoice.
type Normalizer struct {
	keys            CandidateKeys
	defaultCurrency string
	logger          logging.Logger
}

// New creates a Normalizer. Empty key lists fall back to the defaults.
func New(keys CandidateKeys, defaultCurrency string, logger logging.Logger) *Normalizer {
	return &Normalizer{
		keys:            keys.merge(DefaultCandidateKeys()),
		defaultCurrency: defaultCurrency,
		logger:          logging.OrDefault(logger),
	}
}

// Decode parses a JSON or YAML document into a raw record.
func Decode(data []byte) (map[string]any, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("error parsing invoice record: %w", err)
	}
	if raw == nil {
		return nil, reconerror.NewValidationError("record", "empty document")
	}
	return raw, nil
}

// NormalizeBytes decodes data and normalizes it.
func (n *Normalizer) NormalizeBytes(data []byte) (models.NormalizedInvoice, error) {
	raw, err := Decode(data)
	if err != nil {
		return models.NormalizedInvoice{}, err
	}
	return n.Normalize(raw)
}

// Normalize converts raw. Unknown keys are ignored. Values that are
// present but unparsable are validation errors; absent values stay unset.
func (n *Normalizer) Normalize(raw map[string]any) (models.NormalizedInvoice, error) {
	var (
		inv models.NormalizedInvoice
		err error
	)
	inv.SourceDocumentID = n.str(raw, "source_document_id", n.keys.SourceDocumentID)
	inv.CompanyID = n.str(raw, "company_id", n.keys.CompanyID)
	inv.InvoiceNumber = n.str(raw, "invoice_number", n.keys.InvoiceNumber)
	inv.CounterpartyID = n.str(raw, "counterparty_id", n.keys.CounterpartyID)
	inv.CounterpartyName = n.str(raw, "counterparty_name", n.keys.CounterpartyName)
	inv.Description = n.str(raw, "description", n.keys.Description)
	inv.Category = n.str(raw, "category", n.keys.Category)
	inv.Currency = strings.ToUpper(n.str(raw, "currency", n.keys.Currency))
	if inv.Currency == "" {
		inv.Currency = n.defaultCurrency
	}

	if inv.Date, err = n.date(raw, "date", n.keys.Date); err != nil {
		return inv, err
	}
	if inv.DueDate, err = n.date(raw, "due_date", n.keys.DueDate); err != nil {
		return inv, err
	}
	if inv.Gross, err = n.amount(raw, "gross", n.keys.Gross); err != nil {
		return inv, err
	}
	if inv.Net, err = n.amount(raw, "net", n.keys.Net); err != nil {
		return inv, err
	}
	if inv.VATAmount, err = n.amount(raw, "vat_amount", n.keys.VATAmount); err != nil {
		return inv, err
	}
	if inv.VATRate, err = n.rate(raw, "vat_rate", n.keys.VATRate); err != nil {
		return inv, err
	}
	if c, err := n.amount(raw, "confidence", n.keys.Confidence); err != nil {
		return inv, err
	} else if c != nil {
		f := c.InexactFloat64()
		if f > 1 {
			f /= 100
		}
		inv.Confidence = &f
	}
	return inv, nil
}

// lookup returns the first candidate key present in raw.
func (n *Normalizer) lookup(raw map[string]any, field string, keys []string) (any, bool) {
	for _, key := range keys {
		v, ok := walk(raw, strings.Split(key, "."))
		if !ok || isBlank(v) {
			continue
		}
		n.logger.Debug("Normalized field from candidate key",
			logging.F("field", field),
			logging.F("key", key))
		return v, true
	}
	return nil, false
}

// walk follows path through nested maps. A string holding a JSON object is
// decoded on the way, as OCR payloads are often stored serialized.
func walk(v any, path []string) (any, bool) {
	if len(path) == 0 {
		return v, true
	}
	switch m := v.(type) {
	case map[string]any:
		next, ok := m[path[0]]
		if !ok {
			return nil, false
		}
		return walk(next, path[1:])
	case string:
		var decoded map[string]any
		if err := json.Unmarshal([]byte(m), &decoded); err != nil {
			return nil, false
		}
		return walk(decoded, path)
	}
	return nil, false
}

func isBlank(v any) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) == ""
	}
	return false
}

func (n *Normalizer) str(raw map[string]any, field string, keys []string) string {
	v, ok := n.lookup(raw, field, keys)
	if !ok {
		return ""
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}

func toDecimal(v any) (decimal.Decimal, error) {
	switch t := v.(type) {
	case int:
		return decimal.NewFromInt(int64(t)), nil
	case int64:
		return decimal.NewFromInt(t), nil
	case uint64:
		return decimal.NewFromUint64(t), nil
	case float64:
		return decimal.NewFromFloat(t), nil
	case string:
		return currencyutils.ParseAmount(t)
	}
	return decimal.Zero, fmt.Errorf("unsupported type %T", v)
}

func (n *Normalizer) amount(raw map[string]any, field string, keys []string) (*decimal.Decimal, error) {
	v, ok := n.lookup(raw, field, keys)
	if !ok {
		return nil, nil
	}
	d, err := toDecimal(v)
	if err != nil {
		return nil, reconerror.NewValidationError(field, fmt.Sprintf("invalid amount %v: %v", v, err))
	}
	return &d, nil
}

func (n *Normalizer) rate(raw map[string]any, field string, keys []string) (*decimal.Decimal, error) {
	v, ok := n.lookup(raw, field, keys)
	if !ok {
		return nil, nil
	}
	var (
		d   decimal.Decimal
		err error
	)
	if s, isStr := v.(string); isStr {
		d, err = currencyutils.ParseRate(s)
	} else {
		d, err = toDecimal(v)
	}
	if err != nil {
		return nil, reconerror.NewValidationError(field, fmt.Sprintf("invalid rate %v: %v", v, err))
	}
	// A zero rate in OCR output means "not detected".
	if d.IsZero() {
		return nil, nil
	}
	if !currencyutils.ValidRate(d) {
		return nil, reconerror.NewValidationError(field, fmt.Sprintf("rate %v outside [0, 100)", v))
	}
	return &d, nil
}

func (n *Normalizer) date(raw map[string]any, field string, keys []string) (time.Time, error) {
	v, ok := n.lookup(raw, field, keys)
	if !ok {
		return time.Time{}, nil
	}
	switch t := v.(type) {
	case time.Time:
		return dateutils.StartOfDay(t), nil
	case string:
		d, err := dateutils.ParseDate(t)
		if err != nil {
			return time.Time{}, reconerror.NewValidationError(field, fmt.Sprintf("invalid date %q", t))
		}
		return d, nil
	}
	return time.Time{}, reconerror.NewValidationError(field, fmt.Sprintf("invalid date %v", v))
}
