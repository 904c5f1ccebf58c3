package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"fjacquet/recon-ledger/internal/logging"
	"fjacquet/recon-ledger/internal/models"
	"fjacquet/recon-ledger/internal/reconerror"
	"fjacquet/recon-ledger/internal/repository"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

// Supported database/sql driver names.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "pgx"
)

const (
	dateLayout      = "2006-01-02"
	timestampLayout = "2006-01-02T15:04:05.000000Z"
)

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLStore is a repository.Store on SQLite (modernc) or PostgreSQL (pgx).
type SQLStore struct {
	db     *sql.DB
	q      querier
	tx     *sql.Tx
	driver string
	logger logging.Logger
	// mappings, when set, serves overrides instead of the SQL table.
	mappings repository.OverrideRepository
}

// OpenSQL opens dsn with driver and applies the migrations.
func OpenSQL(ctx context.Context, driver, dsn string, logger logging.Logger) (*SQLStore, error) {
	if driver != DriverSQLite && driver != DriverPostgres {
		return nil, fmt.Errorf("unsupported storage driver %q", driver)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if driver == DriverSQLite {
		// A single connection keeps :memory: databases alive and avoids
		// SQLITE_BUSY between pooled writers.
		db.SetMaxOpenConns(1)
	}
	s := &SQLStore{db: db, q: db, driver: driver, logger: logging.OrDefault(logger)}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// UseMappings routes the Overrides port to an external repository.
func (s *SQLStore) UseMappings(m repository.OverrideRepository) {
	s.mappings = m
}

func (s *SQLStore) migrate(ctx context.Context) error {
	for _, stmt := range Migrations() {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	s.logger.Debug("Schema ready", logging.F("driver", s.driver))
	return nil
}

// rebind turns ? placeholders into $n for PostgreSQL.
func (s *SQLStore) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *SQLStore) exec(ctx context.Context, op, query string, args ...any) (sql.Result, error) {
	res, err := s.q.ExecContext(ctx, s.rebind(query), args...)
	return res, classify(op, err)
}

func (s *SQLStore) query(ctx context.Context, op, query string, args ...any) (*sql.Rows, error) {
	rows, err := s.q.QueryContext(ctx, s.rebind(query), args...)
	return rows, classify(op, err)
}

func (s *SQLStore) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return s.q.QueryRowContext(ctx, s.rebind(query), args...)
}

// WithinTx implements repository.Store.
func (s *SQLStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx repository.Store) error) error {
	if s.tx != nil {
		return fn(ctx, s)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return classify("begin", err)
	}
	view := &SQLStore{db: s.db, q: tx, tx: tx, driver: s.driver, logger: s.logger, mappings: s.mappings}
	if err := fn(ctx, view); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.WithError(rbErr).Warn("Rollback failed")
		}
		return err
	}
	return classify("commit", tx.Commit())
}

// Close implements repository.Store.
func (s *SQLStore) Close() error {
	if s.tx != nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLStore) Transactions() repository.TransactionRepository { return sqlTransactions{s} }
func (s *SQLStore) Invoices() repository.InvoiceRepository         { return sqlInvoices{s} }
func (s *SQLStore) Payments() repository.PaymentRepository         { return sqlPayments{s} }
func (s *SQLStore) Suggestions() repository.SuggestionRepository   { return sqlSuggestions{s} }
func (s *SQLStore) Ledger() repository.LedgerRepository            { return sqlLedger{s} }

func (s *SQLStore) Overrides() repository.OverrideRepository {
	if s.mappings != nil {
		return s.mappings
	}
	return sqlOverrides{s}
}

// ─── encoding helpers ───────────────────────────────────────────────────────

func fmtDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateLayout)
}

func fmtTime(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func fmtTimePtr(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: fmtTime(*t), Valid: true}
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(dateLayout, s)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timestampLayout, s)
}

func parseTimePtr(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	t, err := parseTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// ─── transactions ───────────────────────────────────────────────────────────

const txColumns = `id, company_id, tx_date, amount, currency, description, reference, counterparty_name,
	status, matched_invoice_id, matched_kind, confidence, reconciled_at`

type sqlTransactions struct{ s *SQLStore }

func scanTransaction(sc interface{ Scan(...any) error }) (models.BankTransaction, error) {
	var (
		tx           models.BankTransaction
		date, amount string
		status, kind string
		reconciledAt sql.NullString
	)
	if err := sc.Scan(&tx.ID, &tx.CompanyID, &date, &amount, &tx.Currency, &tx.Description, &tx.Reference,
		&tx.CounterpartyName, &status, &tx.MatchedInvoiceID, &kind, &tx.Confidence, &reconciledAt); err != nil {
		return tx, err
	}
	var err error
	if tx.Date, err = parseDate(date); err != nil {
		return tx, fmt.Errorf("transaction %s date: %w", tx.ID, err)
	}
	if tx.Amount, err = decimal.NewFromString(amount); err != nil {
		return tx, fmt.Errorf("transaction %s amount: %w", tx.ID, err)
	}
	tx.Status = models.ReconciliationStatus(status)
	tx.MatchedKind = models.InvoiceKind(kind)
	tx.ReconciledAt, err = parseTimePtr(reconciledAt)
	return tx, err
}

func (r sqlTransactions) list(ctx context.Context, op, query string, args ...any) ([]models.BankTransaction, error) {
	rows, err := r.s.query(ctx, op, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.BankTransaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, classify(op, err)
		}
		out = append(out, tx)
	}
	return out, classify(op, rows.Err())
}

func (r sqlTransactions) ListUnreconciled(ctx context.Context, companyID string, limit int) ([]models.BankTransaction, error) {
	q := `SELECT ` + txColumns + ` FROM bank_transactions WHERE company_id = ? AND status = ? ORDER BY tx_date, id`
	args := []any{companyID, string(models.StatusUnmatched)}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	return r.list(ctx, "list unreconciled", q, args...)
}

func (r sqlTransactions) Get(ctx context.Context, id string) (models.BankTransaction, error) {
	tx, err := scanTransaction(r.s.queryRow(ctx, `SELECT `+txColumns+` FROM bank_transactions WHERE id = ?`, id))
	if err != nil {
		return tx, classify("get transaction "+id, err)
	}
	return tx, nil
}

func (r sqlTransactions) UpdateReconciliation(ctx context.Context, id string, expected models.ReconciliationStatus, u models.ReconciliationUpdate) error {
	res, err := r.s.exec(ctx, "update reconciliation", `
		UPDATE bank_transactions
		SET status = ?, matched_invoice_id = ?, matched_kind = ?, confidence = ?, reconciled_at = ?
		WHERE id = ? AND status = ?`,
		string(u.Status), u.InvoiceID, string(u.InvoiceKind), u.Confidence, fmtTimePtr(u.ReconciledAt),
		id, string(expected))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return classify("update reconciliation", err)
	}
	if n == 1 {
		return nil
	}
	if _, err := r.Get(ctx, id); err != nil {
		return err
	}
	return fmt.Errorf("transaction %s not in status %s: %w", id, expected, reconerror.ErrConflict)
}

func (r sqlTransactions) ListByCompany(ctx context.Context, companyID string, from, to time.Time) ([]models.BankTransaction, error) {
	q := `SELECT ` + txColumns + ` FROM bank_transactions WHERE company_id = ?`
	args := []any{companyID}
	if !from.IsZero() {
		q += ` AND tx_date >= ?`
		args = append(args, fmtDate(from))
	}
	if !to.IsZero() {
		q += ` AND tx_date <= ?`
		args = append(args, fmtDate(to))
	}
	return r.list(ctx, "list transactions", q+` ORDER BY tx_date, id`, args...)
}

func (r sqlTransactions) Insert(ctx context.Context, tx models.BankTransaction) error {
	if tx.Status == "" {
		tx.Status = models.StatusUnmatched
	}
	_, err := r.s.exec(ctx, "insert transaction", `
		INSERT INTO bank_transactions (`+txColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tx.ID, tx.CompanyID, fmtDate(tx.Date), tx.Amount.String(), tx.Currency, tx.Description, tx.Reference,
		tx.CounterpartyName, string(tx.Status), tx.MatchedInvoiceID, string(tx.MatchedKind), tx.Confidence,
		fmtTimePtr(tx.ReconciledAt))
	return err
}

// ─── invoices ───────────────────────────────────────────────────────────────

const invoiceColumns = `id, kind, company_id, number, counterparty_id, counterparty_name, amount, paid_amount,
	currency, issue_date, due_date, status, payment_reference`

type sqlInvoices struct{ s *SQLStore }

func scanInvoice(sc interface{ Scan(...any) error }) (models.Invoice, error) {
	var (
		inv          models.Invoice
		kind, status string
		amount, paid string
		issue, due   string
	)
	if err := sc.Scan(&inv.ID, &kind, &inv.CompanyID, &inv.Number, &inv.CounterpartyID, &inv.CounterpartyName,
		&amount, &paid, &inv.Currency, &issue, &due, &status, &inv.PaymentReference); err != nil {
		return inv, err
	}
	inv.Kind = models.InvoiceKind(kind)
	inv.Status = models.InvoiceStatus(status)
	var err error
	if inv.Amount, err = decimal.NewFromString(amount); err != nil {
		return inv, fmt.Errorf("invoice %s amount: %w", inv.ID, err)
	}
	if inv.PaidAmount, err = decimal.NewFromString(paid); err != nil {
		return inv, fmt.Errorf("invoice %s paid amount: %w", inv.ID, err)
	}
	if inv.IssueDate, err = parseDate(issue); err != nil {
		return inv, err
	}
	inv.DueDate, err = parseDate(due)
	return inv, err
}

func (r sqlInvoices) list(ctx context.Context, op, query string, args ...any) ([]models.Invoice, error) {
	rows, err := r.s.query(ctx, op, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, classify(op, err)
		}
		out = append(out, inv)
	}
	return out, classify(op, rows.Err())
}

func (r sqlInvoices) ListOpen(ctx context.Context, companyID string, kind models.InvoiceKind) ([]models.Invoice, error) {
	placeholders := make([]string, len(models.OpenInvoiceStatuses))
	args := []any{companyID, string(kind)}
	for i, st := range models.OpenInvoiceStatuses {
		placeholders[i] = "?"
		args = append(args, string(st))
	}
	q := `SELECT ` + invoiceColumns + ` FROM invoices WHERE company_id = ? AND kind = ? AND status IN (` +
		strings.Join(placeholders, ", ") + `) ORDER BY due_date, id`
	return r.list(ctx, "list open invoices", q, args...)
}

func (r sqlInvoices) Get(ctx context.Context, id string, kind models.InvoiceKind) (models.Invoice, error) {
	inv, err := scanInvoice(r.s.queryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id = ? AND kind = ?`, id, string(kind)))
	if err != nil {
		return inv, classify(fmt.Sprintf("get %s invoice %s", kind, id), err)
	}
	return inv, nil
}

func (r sqlInvoices) UpdateStatus(ctx context.Context, id string, kind models.InvoiceKind, status models.InvoiceStatus, paid decimal.Decimal) error {
	res, err := r.s.exec(ctx, "update invoice status",
		`UPDATE invoices SET status = ?, paid_amount = ? WHERE id = ? AND kind = ?`,
		string(status), paid.String(), id, string(kind))
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%s invoice %s: %w", kind, id, reconerror.ErrNotFound)
	}
	return nil
}

func (r sqlInvoices) ListByCompany(ctx context.Context, companyID string, kind models.InvoiceKind) ([]models.Invoice, error) {
	q := `SELECT ` + invoiceColumns + ` FROM invoices WHERE company_id = ?`
	args := []any{companyID}
	if kind != "" {
		q += ` AND kind = ?`
		args = append(args, string(kind))
	}
	return r.list(ctx, "list invoices", q+` ORDER BY due_date, id`, args...)
}

func (r sqlInvoices) Insert(ctx context.Context, inv models.Invoice) error {
	if !inv.Kind.Valid() {
		return reconerror.NewValidationError("kind", fmt.Sprintf("unknown invoice kind %q", inv.Kind))
	}
	_, err := r.s.exec(ctx, "insert invoice", `
		INSERT INTO invoices (`+invoiceColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		inv.ID, string(inv.Kind), inv.CompanyID, inv.Number, inv.CounterpartyID, inv.CounterpartyName,
		inv.Amount.String(), inv.PaidAmount.String(), inv.Currency, fmtDate(inv.IssueDate), fmtDate(inv.DueDate),
		string(inv.Status), inv.PaymentReference)
	return err
}

// ─── payments ───────────────────────────────────────────────────────────────

const paymentColumns = `id, transaction_id, invoice_id, invoice_kind, amount, currency, method,
	reconciliation_type, status, payment_date, created_at, cancelled_at, cancel_reason`

type sqlPayments struct{ s *SQLStore }

func (r sqlPayments) Create(ctx context.Context, p models.PaymentRecord) error {
	_, err := r.s.q.ExecContext(ctx, r.s.rebind(`
		INSERT INTO payments (`+paymentColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		p.ID, p.TransactionID, p.InvoiceID, string(p.InvoiceKind), p.Amount.Amount.String(), p.Amount.Currency,
		p.Method, string(p.ReconciliationType), string(p.Status), fmtDate(p.PaymentDate), fmtTime(p.CreatedAt),
		fmtTimePtr(p.CancelledAt), p.CancelReason)
	if isUniqueViolation(err) {
		return fmt.Errorf("payment for transaction %s: %w", p.TransactionID, reconerror.ErrAlreadyReconciled)
	}
	return classify("create payment", err)
}

func (r sqlPayments) GetActiveByTransaction(ctx context.Context, transactionID string) (models.PaymentRecord, error) {
	var (
		p                           models.PaymentRecord
		kind, amount, rtype, status string
		paymentDate, createdAt      string
		cancelledAt                 sql.NullString
	)
	err := r.s.queryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE transaction_id = ? AND status = ?`,
		transactionID, string(models.PaymentActive)).
		Scan(&p.ID, &p.TransactionID, &p.InvoiceID, &kind, &amount, &p.Amount.Currency, &p.Method,
			&rtype, &status, &paymentDate, &createdAt, &cancelledAt, &p.CancelReason)
	if err != nil {
		return p, classify("payment for transaction "+transactionID, err)
	}
	p.InvoiceKind = models.InvoiceKind(kind)
	p.ReconciliationType = models.ReconciliationType(rtype)
	p.Status = models.PaymentStatus(status)
	if p.Amount.Amount, err = decimal.NewFromString(amount); err != nil {
		return p, err
	}
	if p.PaymentDate, err = parseDate(paymentDate); err != nil {
		return p, err
	}
	if p.CreatedAt, err = parseTime(createdAt); err != nil {
		return p, err
	}
	p.CancelledAt, err = parseTimePtr(cancelledAt)
	return p, err
}

func (r sqlPayments) Cancel(ctx context.Context, id string, at time.Time, reason string) error {
	res, err := r.s.exec(ctx, "cancel payment",
		`UPDATE payments SET status = ?, cancelled_at = ?, cancel_reason = ? WHERE id = ? AND status = ?`,
		string(models.PaymentCancelled), fmtTime(at), reason, id, string(models.PaymentActive))
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		var status string
		err := r.s.queryRow(ctx, `SELECT status FROM payments WHERE id = ?`, id).Scan(&status)
		if err != nil {
			return classify("payment "+id, err)
		}
		return fmt.Errorf("payment %s already %s: %w", id, status, reconerror.ErrInvalidState)
	}
	return nil
}

// ─── suggestions ────────────────────────────────────────────────────────────

type sqlSuggestions struct{ s *SQLStore }

func scanSuggestion(sc interface{ Scan(...any) error }) (models.Suggestion, error) {
	var (
		sg        models.Suggestion
		kind      string
		createdAt string
	)
	if err := sc.Scan(&sg.TransactionID, &sg.InvoiceID, &kind, &sg.InvoiceNumber, &sg.CompanyID, &sg.Score, &createdAt); err != nil {
		return sg, err
	}
	sg.InvoiceKind = models.InvoiceKind(kind)
	var err error
	sg.CreatedAt, err = parseTime(createdAt)
	return sg, err
}

const suggestionColumns = `transaction_id, invoice_id, invoice_kind, invoice_number, company_id, score, created_at`

func (r sqlSuggestions) Save(ctx context.Context, sg models.Suggestion) error {
	_, err := r.s.exec(ctx, "save suggestion", `
		INSERT INTO suggestions (`+suggestionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (transaction_id) DO UPDATE SET
			invoice_id     = excluded.invoice_id,
			invoice_kind   = excluded.invoice_kind,
			invoice_number = excluded.invoice_number,
			company_id     = excluded.company_id,
			score          = excluded.score,
			created_at     = excluded.created_at`,
		sg.TransactionID, sg.InvoiceID, string(sg.InvoiceKind), sg.InvoiceNumber, sg.CompanyID, sg.Score, fmtTime(sg.CreatedAt))
	return err
}

func (r sqlSuggestions) Get(ctx context.Context, transactionID string) (models.Suggestion, error) {
	sg, err := scanSuggestion(r.s.queryRow(ctx, `SELECT `+suggestionColumns+` FROM suggestions WHERE transaction_id = ?`, transactionID))
	if err != nil {
		return sg, classify("suggestion for "+transactionID, err)
	}
	return sg, nil
}

func (r sqlSuggestions) Delete(ctx context.Context, transactionID string) error {
	_, err := r.s.exec(ctx, "delete suggestion", `DELETE FROM suggestions WHERE transaction_id = ?`, transactionID)
	return err
}

func (r sqlSuggestions) ListByCompany(ctx context.Context, companyID string) ([]models.Suggestion, error) {
	rows, err := r.s.query(ctx, "list suggestions",
		`SELECT `+suggestionColumns+` FROM suggestions WHERE company_id = ? ORDER BY score DESC, transaction_id`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.Suggestion
	for rows.Next() {
		sg, err := scanSuggestion(rows)
		if err != nil {
			return nil, classify("list suggestions", err)
		}
		out = append(out, sg)
	}
	return out, classify("list suggestions", rows.Err())
}

// ─── ledger ─────────────────────────────────────────────────────────────────

const entryColumns = `id, company_id, source_document_id, entry_date, posting_date, reference, description,
	currency, total_debit, total_credit, vat_amount, status, created_at`

type sqlLedger struct{ s *SQLStore }

func (r sqlLedger) Create(ctx context.Context, e models.LedgerEntry) error {
	return r.s.WithinTx(ctx, func(ctx context.Context, tx repository.Store) error {
		view := tx.(*SQLStore)
		_, err := view.q.ExecContext(ctx, view.rebind(`
			INSERT INTO ledger_entries (`+entryColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
			e.ID, e.CompanyID, e.SourceDocumentID, fmtDate(e.EntryDate), fmtTimePtr(e.PostingDate), e.Reference,
			e.Description, e.Currency, e.TotalDebit.String(), e.TotalCredit.String(), e.VATAmount.String(),
			string(e.Status), fmtTime(e.CreatedAt))
		if isUniqueViolation(err) {
			return fmt.Errorf("source %s: %w", e.SourceDocumentID, reconerror.ErrDuplicateLedgerEntry)
		}
		if err != nil {
			return classify("create ledger entry", err)
		}
		for _, l := range e.Lines {
			var rate sql.NullString
			if l.VATRate != nil {
				rate = sql.NullString{String: l.VATRate.String(), Valid: true}
			}
			if _, err := view.exec(ctx, "create ledger line", `
				INSERT INTO ledger_lines (entry_id, line_number, account_number, account_name, debit, credit, description, vat_rate, vat_code)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				e.ID, l.LineNumber, l.AccountNumber, l.AccountName, l.Debit.String(), l.Credit.String(),
				l.Description, rate, l.VATCode); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r sqlLedger) Exists(ctx context.Context, sourceDocumentID string) (bool, error) {
	var n int
	err := r.s.queryRow(ctx, `SELECT COUNT(*) FROM ledger_entries WHERE source_document_id = ?`, sourceDocumentID).Scan(&n)
	if err != nil {
		return false, classify("ledger exists", err)
	}
	return n > 0, nil
}

func scanEntry(sc interface{ Scan(...any) error }) (models.LedgerEntry, error) {
	var (
		e                            models.LedgerEntry
		entryDate, createdAt, status string
		debit, credit, vat           string
		postingDate                  sql.NullString
	)
	if err := sc.Scan(&e.ID, &e.CompanyID, &e.SourceDocumentID, &entryDate, &postingDate, &e.Reference,
		&e.Description, &e.Currency, &debit, &credit, &vat, &status, &createdAt); err != nil {
		return e, err
	}
	e.Status = models.EntryStatus(status)
	var err error
	if e.EntryDate, err = parseDate(entryDate); err != nil {
		return e, err
	}
	if e.PostingDate, err = parseTimePtr(postingDate); err != nil {
		return e, err
	}
	if e.CreatedAt, err = parseTime(createdAt); err != nil {
		return e, err
	}
	if e.TotalDebit, err = decimal.NewFromString(debit); err != nil {
		return e, err
	}
	if e.TotalCredit, err = decimal.NewFromString(credit); err != nil {
		return e, err
	}
	e.VATAmount, err = decimal.NewFromString(vat)
	return e, err
}

func (r sqlLedger) lines(ctx context.Context, entryID string) ([]models.LedgerLine, error) {
	rows, err := r.s.query(ctx, "list ledger lines", `
		SELECT line_number, account_number, account_name, debit, credit, description, vat_rate, vat_code
		FROM ledger_lines WHERE entry_id = ? ORDER BY line_number`, entryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.LedgerLine
	for rows.Next() {
		var (
			l             models.LedgerLine
			debit, credit string
			rate          sql.NullString
		)
		if err := rows.Scan(&l.LineNumber, &l.AccountNumber, &l.AccountName, &debit, &credit, &l.Description, &rate, &l.VATCode); err != nil {
			return nil, classify("scan ledger line", err)
		}
		if l.Debit, err = decimal.NewFromString(debit); err != nil {
			return nil, err
		}
		if l.Credit, err = decimal.NewFromString(credit); err != nil {
			return nil, err
		}
		if rate.Valid {
			d, err := decimal.NewFromString(rate.String)
			if err != nil {
				return nil, err
			}
			l.VATRate = &d
		}
		out = append(out, l)
	}
	return out, classify("list ledger lines", rows.Err())
}

func (r sqlLedger) Get(ctx context.Context, id string) (models.LedgerEntry, error) {
	e, err := scanEntry(r.s.queryRow(ctx, `SELECT `+entryColumns+` FROM ledger_entries WHERE id = ?`, id))
	if err != nil {
		return e, classify("get ledger entry "+id, err)
	}
	e.Lines, err = r.lines(ctx, id)
	return e, err
}

func (r sqlLedger) List(ctx context.Context, companyID string) ([]models.LedgerEntry, error) {
	q := `SELECT ` + entryColumns + ` FROM ledger_entries`
	var args []any
	if companyID != "" {
		q += ` WHERE company_id = ?`
		args = append(args, companyID)
	}
	rows, err := r.s.query(ctx, "list ledger entries", q+` ORDER BY entry_date, reference`, args...)
	if err != nil {
		return nil, err
	}
	var out []models.LedgerEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			rows.Close()
			return nil, classify("list ledger entries", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, classify("list ledger entries", err)
	}
	rows.Close()
	// Lines are loaded after the cursor is closed; SQLite runs on one connection.
	for i := range out {
		if out[i].Lines, err = r.lines(ctx, out[i].ID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// ─── overrides ──────────────────────────────────────────────────────────────

type sqlOverrides struct{ s *SQLStore }

func (r sqlOverrides) GetOverride(ctx context.Context, counterpartyID string) (*models.AccountMapping, error) {
	var (
		m          models.AccountMapping
		deductible int
	)
	err := r.s.queryRow(ctx, `SELECT account, label, vat_deductible FROM account_overrides WHERE counterparty_key = ?`,
		OverrideKey(counterpartyID)).Scan(&m.Account, &m.Label, &deductible)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, classify("get override", err)
	}
	m.VATDeductible = deductible == 1
	return &m, nil
}

func (r sqlOverrides) SaveOverride(ctx context.Context, counterpartyID string, m models.AccountMapping) error {
	_, err := r.s.exec(ctx, "save override", `
		INSERT INTO account_overrides (counterparty_key, account, label, vat_deductible) VALUES (?, ?, ?, ?)
		ON CONFLICT (counterparty_key) DO UPDATE SET
			account = excluded.account, label = excluded.label, vat_deductible = excluded.vat_deductible`,
		OverrideKey(counterpartyID), m.Account, m.Label, boolInt(m.VATDeductible))
	return err
}

func (r sqlOverrides) ListOverrides(ctx context.Context) (map[string]models.AccountMapping, error) {
	rows, err := r.s.query(ctx, "list overrides", `SELECT counterparty_key, account, label, vat_deductible FROM account_overrides`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string]models.AccountMapping{}
	for rows.Next() {
		var (
			key        string
			m          models.AccountMapping
			deductible int
		)
		if err := rows.Scan(&key, &m.Account, &m.Label, &deductible); err != nil {
			return nil, classify("list overrides", err)
		}
		m.VATDeductible = deductible == 1
		out[key] = m
	}
	return out, classify("list overrides", rows.Err())
}
