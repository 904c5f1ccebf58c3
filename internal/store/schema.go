package store

// Migrations returns the schema statements, one per Exec. Amounts and dates
// are TEXT so that decimals keep their exact value on every driver.
func Migrations() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS bank_transactions (
			id                 TEXT PRIMARY KEY,
			company_id         TEXT NOT NULL,
			tx_date            TEXT NOT NULL,
			amount             TEXT NOT NULL,
			currency           TEXT NOT NULL,
			description        TEXT NOT NULL DEFAULT '',
			reference          TEXT NOT NULL DEFAULT '',
			counterparty_name  TEXT NOT NULL DEFAULT '',
			status             TEXT NOT NULL DEFAULT 'unmatched',
			matched_invoice_id TEXT NOT NULL DEFAULT '',
			matched_kind       TEXT NOT NULL DEFAULT '',
			confidence         DOUBLE PRECISION NOT NULL DEFAULT 0,
			reconciled_at      TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_bank_transactions_status ON bank_transactions(company_id, status, tx_date)`,

		`CREATE TABLE IF NOT EXISTS invoices (
			id                TEXT NOT NULL,
			kind              TEXT NOT NULL,
			company_id        TEXT NOT NULL,
			number            TEXT NOT NULL DEFAULT '',
			counterparty_id   TEXT NOT NULL DEFAULT '',
			counterparty_name TEXT NOT NULL DEFAULT '',
			amount            TEXT NOT NULL,
			paid_amount       TEXT NOT NULL DEFAULT '0',
			currency          TEXT NOT NULL,
			issue_date        TEXT NOT NULL DEFAULT '',
			due_date          TEXT NOT NULL DEFAULT '',
			status            TEXT NOT NULL,
			payment_reference TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (id, kind)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_invoices_open ON invoices(company_id, kind, status)`,

		`CREATE TABLE IF NOT EXISTS payments (
			id                  TEXT PRIMARY KEY,
			transaction_id      TEXT NOT NULL,
			invoice_id          TEXT NOT NULL,
			invoice_kind        TEXT NOT NULL,
			amount              TEXT NOT NULL,
			currency            TEXT NOT NULL,
			method              TEXT NOT NULL,
			reconciliation_type TEXT NOT NULL,
			status              TEXT NOT NULL,
			payment_date        TEXT NOT NULL,
			created_at          TEXT NOT NULL,
			cancelled_at        TEXT,
			cancel_reason       TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS ux_payments_active_tx ON payments(transaction_id) WHERE status = 'active'`,

		`CREATE TABLE IF NOT EXISTS suggestions (
			transaction_id TEXT PRIMARY KEY,
			invoice_id     TEXT NOT NULL,
			invoice_kind   TEXT NOT NULL,
			invoice_number TEXT NOT NULL DEFAULT '',
			company_id     TEXT NOT NULL,
			score          DOUBLE PRECISION NOT NULL,
			created_at     TEXT NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS ledger_entries (
			id                 TEXT PRIMARY KEY,
			company_id         TEXT NOT NULL DEFAULT '',
			source_document_id TEXT NOT NULL UNIQUE,
			entry_date         TEXT NOT NULL,
			posting_date       TEXT,
			reference          TEXT NOT NULL,
			description        TEXT NOT NULL DEFAULT '',
			currency           TEXT NOT NULL,
			total_debit        TEXT NOT NULL,
			total_credit       TEXT NOT NULL,
			vat_amount         TEXT NOT NULL DEFAULT '0',
			status             TEXT NOT NULL,
			created_at         TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS ledger_lines (
			entry_id       TEXT NOT NULL REFERENCES ledger_entries(id),
			line_number    INTEGER NOT NULL,
			account_number TEXT NOT NULL,
			account_name   TEXT NOT NULL DEFAULT '',
			debit          TEXT NOT NULL,
			credit         TEXT NOT NULL,
			description    TEXT NOT NULL DEFAULT '',
			vat_rate       TEXT,
			vat_code       TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (entry_id, line_number)
		)`,

		`CREATE TABLE IF NOT EXISTS account_overrides (
			counterparty_key TEXT PRIMARY KEY,
			account          TEXT NOT NULL,
			label            TEXT NOT NULL DEFAULT '',
			vat_deductible   INTEGER NOT NULL DEFAULT 1
		)`,
	}
}
