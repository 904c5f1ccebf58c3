// Package report renders reconciliation, aging and ledger reports as JSON,
// CSV or XLSX.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"fjacquet/recon-ledger/internal/common"
	"fjacquet/recon-ledger/internal/dateutils"
	"fjacquet/recon-ledger/internal/logging"
	"fjacquet/recon-ledger/internal/models"
	"fjacquet/recon-ledger/internal/reconciliation"

	"github.com/xuri/excelize/v2"
)

// Format is an output format.
type Format string

// Supported formats.
const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ParseFormat accepts a format name, case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatJSON, FormatCSV, FormatXLSX:
		return f, nil
	case "":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unsupported report format: %s", s)
	}
}

// Generator renders reports.
type Generator struct {
	codec  *common.Codec
	logger logging.Logger
}

// NewGenerator creates a Generator. CSV output uses codec's delimiter.
func NewGenerator(codec *common.Codec, logger logging.Logger) *Generator {
	logger = logging.OrDefault(logger)
	if codec == nil {
		codec = common.NewCodec(common.DefaultDelimiter, "", logger)
	}
	return &Generator{codec: codec, logger: logger}
}

// summaryRow is a metric of the reconciliation report in tabular form.
type summaryRow struct {
	Metric string `csv:"metric"`
	Value  string `csv:"value"`
}

func summaryRows(r reconciliation.Report) []summaryRow {
	return []summaryRow{
		{"company", r.CompanyID},
		{"from", dateutils.ToISODate(r.From)},
		{"to", dateutils.ToISODate(r.To)},
		{"total", fmt.Sprint(r.Total)},
		{"automatic", fmt.Sprint(r.Automatic)},
		{"manual", fmt.Sprint(r.Manual)},
		{"pending", fmt.Sprint(r.Pending)},
		{"unreconciled", fmt.Sprint(r.Unreconciled)},
		{"reconciliation_rate", fmt.Sprint(r.ReconciliationRate)},
		{"automation_rate", fmt.Sprint(r.AutomationRate)},
		{"total_amount", r.TotalAmount.StringFixed(2)},
		{"reconciled_amount", r.ReconciledAmount.StringFixed(2)},
		{"unreconciled_amount", r.UnreconciledAmount.StringFixed(2)},
	}
}

// Reconciliation writes the reconciliation report.
func (g *Generator) Reconciliation(w io.Writer, r reconciliation.Report, format Format) error {
	switch format {
	case FormatJSON:
		return g.writeJSON(w, r)
	case FormatCSV:
		return common.WriteRows(g.codec, w, summaryRows(r))
	case FormatXLSX:
		return g.writeWorkbook(w, func(b *workbook) error {
			rows := make([][]any, 0, 13)
			for _, row := range summaryRows(r) {
				rows = append(rows, []any{row.Metric, row.Value})
			}
			return b.sheet("Summary", []string{"metric", "value"}, rows)
		})
	default:
		return fmt.Errorf("unsupported report format: %s", format)
	}
}

// Aging writes the aging report. CSV carries the items only.
func (g *Generator) Aging(w io.Writer, a reconciliation.AgingReport, format Format) error {
	switch format {
	case FormatJSON:
		return g.writeJSON(w, a)
	case FormatCSV:
		return common.WriteRows(g.codec, w, a.Items)
	case FormatXLSX:
		return g.writeWorkbook(w, func(b *workbook) error {
			buckets := make([][]any, 0, len(a.Buckets)+1)
			for _, bucket := range a.Buckets {
				buckets = append(buckets, []any{bucket.Name, bucket.Count, bucket.Amount.InexactFloat64()})
			}
			buckets = append(buckets, []any{"total", len(a.Items), a.Total.InexactFloat64()})
			if err := b.sheet("Buckets", []string{"bucket", "count", "amount"}, buckets); err != nil {
				return err
			}
			items := make([][]any, 0, len(a.Items))
			for _, it := range a.Items {
				items = append(items, []any{it.InvoiceID, it.Number, it.Counterparty,
					dateutils.ToISODate(it.DueDate), it.DaysOverdue, it.Remaining.InexactFloat64(), it.Currency, it.Bucket})
			}
			return b.sheet("Items", []string{"invoice_id", "number", "counterparty", "due_date", "days_overdue", "remaining", "currency", "bucket"}, items)
		})
	default:
		return fmt.Errorf("unsupported report format: %s", format)
	}
}

// Ledger writes journal entries, one row per line in CSV and XLSX.
func (g *Generator) Ledger(w io.Writer, entries []models.LedgerEntry, format Format) error {
	switch format {
	case FormatJSON:
		if entries == nil {
			entries = []models.LedgerEntry{}
		}
		return g.writeJSON(w, entries)
	case FormatCSV:
		return common.WriteRows(g.codec, w, common.LedgerRows(entries))
	case FormatXLSX:
		return g.writeWorkbook(w, func(b *workbook) error {
			lines := common.LedgerRows(entries)
			rows := make([][]any, 0, len(lines))
			for _, l := range lines {
				rows = append(rows, []any{l.EntryID, l.EntryDate, l.Reference, l.Status, l.Currency, l.LineNumber,
					l.AccountNumber, l.AccountName, l.Debit.InexactFloat64(), l.Credit.InexactFloat64(), l.Description, l.VATCode})
			}
			return b.sheet("Journal", []string{"entry_id", "entry_date", "reference", "status", "currency", "line",
				"account", "account_name", "debit", "credit", "description", "vat_code"}, rows)
		})
	default:
		return fmt.Errorf("unsupported report format: %s", format)
	}
}

func (g *Generator) writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		g.logger.WithError(err).Error("Failed to marshal JSON report")
		return fmt.Errorf("failed to marshal JSON report: %w", err)
	}
	return nil
}

// workbook wraps an excelize file whose first sheet gets renamed by the
// first call to sheet.
type workbook struct {
	f      *excelize.File
	header int
	used   bool
}

func (g *Generator) writeWorkbook(w io.Writer, fill func(b *workbook) error) error {
	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			g.logger.WithError(err).Warn("Failed to close workbook")
		}
	}()
	header, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"D9E1F2"}},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}
	b := &workbook{f: f, header: header}
	if err := fill(b); err != nil {
		return fmt.Errorf("failed to build workbook: %w", err)
	}
	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func (b *workbook) sheet(name string, header []string, rows [][]any) error {
	if !b.used {
		if err := b.f.SetSheetName(b.f.GetSheetName(0), name); err != nil {
			return err
		}
		b.used = true
	} else if _, err := b.f.NewSheet(name); err != nil {
		return err
	}

	cells := make([]any, len(header))
	for i, h := range header {
		cells[i] = h
	}
	if err := b.f.SetSheetRow(name, "A1", &cells); err != nil {
		return err
	}
	last, err := excelize.ColumnNumberToName(len(header))
	if err != nil {
		return err
	}
	if err := b.f.SetCellStyle(name, "A1", last+"1", b.header); err != nil {
		return err
	}
	if err := b.f.SetColWidth(name, "A", last, 18); err != nil {
		return err
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := b.f.SetSheetRow(name, cell, &row); err != nil {
			return err
		}
	}
	return nil
}
