// Package common holds the CSV import and export shared by the commands.
package common

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"fjacquet/recon-ledger/internal/currencyutils"
	"fjacquet/recon-ledger/internal/dateutils"
	"fjacquet/recon-ledger/internal/fileutils"
	"fjacquet/recon-ledger/internal/logging"
	"fjacquet/recon-ledger/internal/models"
	"fjacquet/recon-ledger/internal/reconerror"

	"github.com/gocarina/gocsv"
	"github.com/shopspring/decimal"
)

// DefaultDelimiter is used when none is configured.
const DefaultDelimiter = ','

// TransactionRow is the CSV layout of an imported bank transaction.
type TransactionRow struct {
	ID           string `csv:"id"`
	CompanyID    string `csv:"company_id"`
	Date         string `csv:"date"`
	Amount       string `csv:"amount"`
	Currency     string `csv:"currency"`
	Description  string `csv:"description"`
	Reference    string `csv:"reference"`
	Counterparty string `csv:"counterparty"`
}

// InvoiceRow is the CSV layout of an imported invoice.
type InvoiceRow struct {
	ID               string `csv:"id"`
	CompanyID        string `csv:"company_id"`
	Number           string `csv:"number"`
	Kind             string `csv:"kind"`
	CounterpartyID   string `csv:"counterparty_id"`
	CounterpartyName string `csv:"counterparty_name"`
	Amount           string `csv:"amount"`
	PaidAmount       string `csv:"paid_amount"`
	Currency         string `csv:"currency"`
	IssueDate        string `csv:"issue_date"`
	DueDate          string `csv:"due_date"`
	Status           string `csv:"status"`
	PaymentReference string `csv:"payment_reference"`
}

// LedgerRow is one exported journal line with its entry header repeated.
type LedgerRow struct {
	EntryID          string `csv:"entry_id"`
	SourceDocumentID string `csv:"source_document_id"`
	EntryDate        string `csv:"entry_date"`
	Reference        string `csv:"reference"`
	Status           string `csv:"status"`
	Currency         string `csv:"currency"`
	models.LedgerLine
}

// Codec reads and writes CSV with a fixed delimiter.
type Codec struct {
	delimiter       rune
	defaultCurrency string
	logger          logging.Logger
}

// NewCodec returns a Codec. A zero delimiter means DefaultDelimiter.
func NewCodec(delimiter rune, defaultCurrency string, logger logging.Logger) *Codec {
	if delimiter == 0 {
		delimiter = DefaultDelimiter
	}
	return &Codec{
		delimiter:       delimiter,
		defaultCurrency: strings.ToUpper(defaultCurrency),
		logger:          logging.OrDefault(logger),
	}
}

// ReadRows parses CSV with a header line into rows of T.
func ReadRows[T any](c *Codec, r io.Reader) ([]T, error) {
	reader := csv.NewReader(r)
	reader.Comma = c.delimiter
	reader.TrimLeadingSpace = true

	var rows []T
	if err := gocsv.UnmarshalCSV(reader, &rows); err != nil {
		return nil, fmt.Errorf("error parsing CSV data: %w", err)
	}
	return rows, nil
}

// ReadCSVFile reads the rows of T from filePath.
func ReadCSVFile[T any](c *Codec, filePath string) ([]T, error) {
	c.logger.Info("Reading CSV file", logging.F(logging.FieldInputFile, filePath))

	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("error opening CSV file: %w", err)
	}
	defer func() {
		if err := file.Close(); err != nil {
			c.logger.WithError(err).Warn("Failed to close file")
		}
	}()

	rows, err := ReadRows[T](c, file)
	if err != nil {
		return nil, err
	}
	c.logger.Info("Successfully read CSV data", logging.F(logging.FieldCount, len(rows)))
	return rows, nil
}

// WriteRows writes rows with a header line.
func WriteRows[T any](c *Codec, w io.Writer, rows []T) error {
	if rows == nil {
		rows = []T{}
	}
	writer := csv.NewWriter(w)
	writer.Comma = c.delimiter
	if err := gocsv.MarshalCSV(rows, gocsv.NewSafeCSVWriter(writer)); err != nil {
		return fmt.Errorf("error writing CSV data: %w", err)
	}
	return nil
}

// WriteCSVFile writes rows to filePath, creating its directory. The path
// "-" writes to stdout.
func WriteCSVFile[T any](c *Codec, filePath string, rows []T) error {
	if filePath == "-" || filePath == "" {
		return WriteRows(c, os.Stdout, rows)
	}
	file, err := fileutils.CreateFile(filePath)
	if err != nil {
		return fmt.Errorf("error creating CSV file: %w", err)
	}
	defer func() {
		if err := file.Close(); err != nil {
			c.logger.WithError(err).Warn("Failed to close file")
		}
	}()

	if err := WriteRows(c, file, rows); err != nil {
		return err
	}
	c.logger.Info("Successfully wrote CSV file",
		logging.F(logging.FieldOutputFile, filePath),
		logging.F(logging.FieldCount, len(rows)))
	return nil
}

// Transactions converts imported rows. company fills rows without one.
// Every transaction starts unmatched.
func (c *Codec) Transactions(rows []TransactionRow, company string) ([]models.BankTransaction, error) {
	out := make([]models.BankTransaction, 0, len(rows))
	for i, row := range rows {
		tx, err := c.transaction(row, company)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i+2, err)
		}
		out = append(out, tx)
	}
	return out, nil
}

func (c *Codec) transaction(row TransactionRow, company string) (models.BankTransaction, error) {
	tx := models.BankTransaction{
		ID:               strings.TrimSpace(row.ID),
		CompanyID:        firstNonEmpty(row.CompanyID, company),
		Currency:         c.currency(row.Currency),
		Description:      strings.TrimSpace(row.Description),
		Reference:        strings.TrimSpace(row.Reference),
		CounterpartyName: strings.TrimSpace(row.Counterparty),
		Status:           models.StatusUnmatched,
	}
	if tx.ID == "" {
		return tx, reconerror.NewValidationError("id", "required")
	}
	if tx.CompanyID == "" {
		return tx, reconerror.NewValidationError("company_id", "required")
	}
	var err error
	if tx.Date, err = requiredDate("date", row.Date); err != nil {
		return tx, err
	}
	if tx.Amount, err = amount("amount", row.Amount, true); err != nil {
		return tx, err
	}
	if tx.Amount.IsZero() {
		return tx, reconerror.NewValidationError("amount", "must not be zero")
	}
	return tx, nil
}

// Invoices converts imported rows. company fills rows without one and an
// empty status means sent.
func (c *Codec) Invoices(rows []InvoiceRow, company string) ([]models.Invoice, error) {
	out := make([]models.Invoice, 0, len(rows))
	for i, row := range rows {
		inv, err := c.invoice(row, company)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i+2, err)
		}
		out = append(out, inv)
	}
	return out, nil
}

func (c *Codec) invoice(row InvoiceRow, company string) (models.Invoice, error) {
	inv := models.Invoice{
		ID:               strings.TrimSpace(row.ID),
		CompanyID:        firstNonEmpty(row.CompanyID, company),
		Number:           strings.TrimSpace(row.Number),
		Kind:             models.InvoiceKind(strings.ToLower(strings.TrimSpace(row.Kind))),
		CounterpartyID:   strings.TrimSpace(row.CounterpartyID),
		CounterpartyName: strings.TrimSpace(row.CounterpartyName),
		Currency:         c.currency(row.Currency),
		Status:           models.InvoiceStatus(strings.ToLower(strings.TrimSpace(row.Status))),
		PaymentReference: strings.ReplaceAll(strings.TrimSpace(row.PaymentReference), " ", ""),
	}
	if inv.ID == "" {
		return inv, reconerror.NewValidationError("id", "required")
	}
	if inv.CompanyID == "" {
		return inv, reconerror.NewValidationError("company_id", "required")
	}
	if !inv.Kind.Valid() {
		return inv, reconerror.NewValidationError("kind", fmt.Sprintf("unknown kind %q", row.Kind))
	}
	if inv.Status == "" {
		inv.Status = models.InvoiceSent
	}
	var err error
	if inv.Amount, err = amount("amount", row.Amount, true); err != nil {
		return inv, err
	}
	if !inv.Amount.IsPositive() {
		return inv, reconerror.NewValidationError("amount", "must be positive")
	}
	if inv.PaidAmount, err = amount("paid_amount", row.PaidAmount, false); err != nil {
		return inv, err
	}
	if inv.IssueDate, err = requiredDate("issue_date", row.IssueDate); err != nil {
		return inv, err
	}
	if inv.DueDate, err = dateutils.ParseDate(row.DueDate); err != nil {
		return inv, reconerror.NewValidationError("due_date", err.Error())
	}
	if inv.DueDate.IsZero() {
		inv.DueDate = inv.IssueDate
	}
	return inv, nil
}

// LedgerRows flattens entries into one row per line.
func LedgerRows(entries []models.LedgerEntry) []LedgerRow {
	var rows []LedgerRow
	for _, e := range entries {
		for _, line := range e.Lines {
			rows = append(rows, LedgerRow{
				EntryID:          e.ID,
				SourceDocumentID: e.SourceDocumentID,
				EntryDate:        dateutils.ToISODate(e.EntryDate),
				Reference:        e.Reference,
				Status:           string(e.Status),
				Currency:         e.Currency,
				LedgerLine:       line,
			})
		}
	}
	return rows
}

func (c *Codec) currency(v string) string {
	if v = strings.ToUpper(strings.TrimSpace(v)); v != "" {
		return v
	}
	return c.defaultCurrency
}

func requiredDate(field, v string) (time.Time, error) {
	t, err := dateutils.ParseDate(v)
	if err != nil {
		return t, reconerror.NewValidationError(field, err.Error())
	}
	if t.IsZero() {
		return t, reconerror.NewValidationError(field, "required")
	}
	return t, nil
}

func amount(field, v string, required bool) (decimal.Decimal, error) {
	if strings.TrimSpace(v) == "" {
		if required {
			return decimal.Zero, reconerror.NewValidationError(field, "required")
		}
		return decimal.Zero, nil
	}
	d, err := currencyutils.ParseAmount(v)
	if err != nil {
		return decimal.Zero, reconerror.NewValidationError(field, fmt.Sprintf("invalid amount %q", v))
	}
	return d, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
