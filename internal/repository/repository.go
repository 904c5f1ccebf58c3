// Package repository declares the persistence ports of reconciliation and
// posting. Implementations live in internal/store.
package repository

import (
	"context"
	"time"

	"fjacquet/recon-ledger/internal/models"

	"github.com/shopspring/decimal"
)

// TransactionRepository reads and updates bank transactions.
type TransactionRepository interface {
	// ListUnreconciled returns up to limit transactions of company with
	// status unmatched, oldest first.
	ListUnreconciled(ctx context.Context, companyID string, limit int) ([]models.BankTransaction, error)
	Get(ctx context.Context, id string) (models.BankTransaction, error)
	// UpdateReconciliation sets the reconciliation fields of transaction id
	// if its current status equals expected. Otherwise it returns
	// reconerror.ErrConflict.
	UpdateReconciliation(ctx context.Context, id string, expected models.ReconciliationStatus, update models.ReconciliationUpdate) error
	ListByCompany(ctx context.Context, companyID string, from, to time.Time) ([]models.BankTransaction, error)
	Insert(ctx context.Context, tx models.BankTransaction) error
}

// InvoiceRepository reads and updates invoices.
type InvoiceRepository interface {
	ListOpen(ctx context.Context, companyID string, kind models.InvoiceKind) ([]models.Invoice, error)
	Get(ctx context.Context, id string, kind models.InvoiceKind) (models.Invoice, error)
	UpdateStatus(ctx context.Context, id string, kind models.InvoiceKind, status models.InvoiceStatus, paid decimal.Decimal) error
	ListByCompany(ctx context.Context, companyID string, kind models.InvoiceKind) ([]models.Invoice, error)
	Insert(ctx context.Context, inv models.Invoice) error
}

// PaymentRepository records payments created by confirmations.
type PaymentRepository interface {
	Create(ctx context.Context, p models.PaymentRecord) error
	// GetActiveByTransaction returns the non-cancelled payment of a
	// transaction, or reconerror.ErrNotFound.
	GetActiveByTransaction(ctx context.Context, transactionID string) (models.PaymentRecord, error)
	Cancel(ctx context.Context, id string, at time.Time, reason string) error
}

// SuggestionRepository stores pending suggestions, one per transaction.
type SuggestionRepository interface {
	Save(ctx context.Context, s models.Suggestion) error
	Get(ctx context.Context, transactionID string) (models.Suggestion, error)
	Delete(ctx context.Context, transactionID string) error
	ListByCompany(ctx context.Context, companyID string) ([]models.Suggestion, error)
}

// LedgerRepository persists journal entries, one per source document.
type LedgerRepository interface {
	// Create stores entry or returns reconerror.ErrDuplicateLedgerEntry when
	// an entry for the same source document exists.
	Create(ctx context.Context, entry models.LedgerEntry) error
	Exists(ctx context.Context, sourceDocumentID string) (bool, error)
	Get(ctx context.Context, id string) (models.LedgerEntry, error)
	List(ctx context.Context, companyID string) ([]models.LedgerEntry, error)
}

// OverrideRepository stores learned per-counterparty account mappings.
type OverrideRepository interface {
	// GetOverride returns nil without error when no override exists.
	GetOverride(ctx context.Context, counterpartyID string) (*models.AccountMapping, error)
	SaveOverride(ctx context.Context, counterpartyID string, mapping models.AccountMapping) error
	ListOverrides(ctx context.Context) (map[string]models.AccountMapping, error)
}

// Store groups the repositories of one backend.
type Store interface {
	Transactions() TransactionRepository
	Invoices() InvoiceRepository
	Payments() PaymentRepository
	Suggestions() SuggestionRepository
	Ledger() LedgerRepository
	Overrides() OverrideRepository
	// WithinTx runs fn with a Store whose writes commit together when fn
	// returns nil and are discarded otherwise. Nested calls join the outer
	// transaction.
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error
	Close() error
}
