package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"fjacquet/recon-ledger/internal/models"
	"fjacquet/recon-ledger/internal/reconerror"
	"fjacquet/recon-ledger/internal/repository"

	"github.com/shopspring/decimal"
)

type invoiceKey struct {
	id   string
	kind models.InvoiceKind
}

type memData struct {
	transactions map[string]models.BankTransaction
	invoices     map[invoiceKey]models.Invoice
	payments     map[string]models.PaymentRecord
	suggestions  map[string]models.Suggestion
	entries      map[string]models.LedgerEntry
	bySource     map[string]string
	overrides    map[string]models.AccountMapping
}

func newMemData() *memData {
	return &memData{
		transactions: map[string]models.BankTransaction{},
		invoices:     map[invoiceKey]models.Invoice{},
		payments:     map[string]models.PaymentRecord{},
		suggestions:  map[string]models.Suggestion{},
		entries:      map[string]models.LedgerEntry{},
		bySource:     map[string]string{},
		overrides:    map[string]models.AccountMapping{},
	}
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (d *memData) clone() *memData {
	return &memData{
		transactions: cloneMap(d.transactions),
		invoices:     cloneMap(d.invoices),
		payments:     cloneMap(d.payments),
		suggestions:  cloneMap(d.suggestions),
		entries:      cloneMap(d.entries),
		bySource:     cloneMap(d.bySource),
		overrides:    cloneMap(d.overrides),
	}
}

type memState struct {
	mu   sync.Mutex
	data *memData
}

// MemoryStore is an in-process repository.Store. Transactions serialize all
// access and roll back by restoring a snapshot.
type MemoryStore struct {
	state *memState
	inTx  bool
	// mappings, when set, serves overrides instead of the in-memory map.
	mappings repository.OverrideRepository
}

// NewMemoryStore returns an empty store. A non-nil mappings repository
// takes over the Overrides() port.
func NewMemoryStore(mappings repository.OverrideRepository) *MemoryStore {
	return &MemoryStore{state: &memState{data: newMemData()}, mappings: mappings}
}

func (s *MemoryStore) with(fn func(d *memData) error) error {
	if !s.inTx {
		s.state.mu.Lock()
		defer s.state.mu.Unlock()
	}
	return fn(s.state.data)
}

// WithinTx implements repository.Store.
func (s *MemoryStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx repository.Store) error) error {
	if s.inTx {
		return fn(ctx, s)
	}
	s.state.mu.Lock()
	defer s.state.mu.Unlock()

	snapshot := s.state.data.clone()
	view := &MemoryStore{state: s.state, inTx: true, mappings: s.mappings}
	if err := fn(ctx, view); err != nil {
		s.state.data = snapshot
		return err
	}
	return nil
}

// Close implements repository.Store.
func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) Transactions() repository.TransactionRepository { return memTransactions{s} }
func (s *MemoryStore) Invoices() repository.InvoiceRepository         { return memInvoices{s} }
func (s *MemoryStore) Payments() repository.PaymentRepository         { return memPayments{s} }
func (s *MemoryStore) Suggestions() repository.SuggestionRepository   { return memSuggestions{s} }
func (s *MemoryStore) Ledger() repository.LedgerRepository            { return memLedger{s} }

func (s *MemoryStore) Overrides() repository.OverrideRepository {
	if s.mappings != nil {
		return s.mappings
	}
	return memOverrides{s}
}

type memTransactions struct{ s *MemoryStore }

func (r memTransactions) ListUnreconciled(_ context.Context, companyID string, limit int) ([]models.BankTransaction, error) {
	var out []models.BankTransaction
	err := r.s.with(func(d *memData) error {
		for _, tx := range d.transactions {
			if tx.CompanyID == companyID && tx.Status == models.StatusUnmatched {
				out = append(out, tx)
			}
		}
		return nil
	})
	sortTransactions(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, err
}

func (r memTransactions) Get(_ context.Context, id string) (models.BankTransaction, error) {
	var out models.BankTransaction
	err := r.s.with(func(d *memData) error {
		tx, ok := d.transactions[id]
		if !ok {
			return fmt.Errorf("transaction %s: %w", id, reconerror.ErrNotFound)
		}
		out = tx
		return nil
	})
	return out, err
}

func (r memTransactions) UpdateReconciliation(_ context.Context, id string, expected models.ReconciliationStatus, u models.ReconciliationUpdate) error {
	return r.s.with(func(d *memData) error {
		tx, ok := d.transactions[id]
		if !ok {
			return fmt.Errorf("transaction %s: %w", id, reconerror.ErrNotFound)
		}
		if tx.Status != expected {
			return fmt.Errorf("transaction %s is %s, expected %s: %w", id, tx.Status, expected, reconerror.ErrConflict)
		}
		tx.Status = u.Status
		tx.MatchedInvoiceID = u.InvoiceID
		tx.MatchedKind = u.InvoiceKind
		tx.Confidence = u.Confidence
		tx.ReconciledAt = u.ReconciledAt
		d.transactions[id] = tx
		return nil
	})
}

func (r memTransactions) ListByCompany(_ context.Context, companyID string, from, to time.Time) ([]models.BankTransaction, error) {
	var out []models.BankTransaction
	err := r.s.with(func(d *memData) error {
		for _, tx := range d.transactions {
			if tx.CompanyID != companyID || !inPeriod(tx.Date, from, to) {
				continue
			}
			out = append(out, tx)
		}
		return nil
	})
	sortTransactions(out)
	return out, err
}

func (r memTransactions) Insert(_ context.Context, tx models.BankTransaction) error {
	if tx.Status == "" {
		tx.Status = models.StatusUnmatched
	}
	return r.s.with(func(d *memData) error {
		if _, ok := d.transactions[tx.ID]; ok {
			return fmt.Errorf("transaction %s already exists", tx.ID)
		}
		d.transactions[tx.ID] = tx
		return nil
	})
}

type memInvoices struct{ s *MemoryStore }

func (r memInvoices) ListOpen(_ context.Context, companyID string, kind models.InvoiceKind) ([]models.Invoice, error) {
	var out []models.Invoice
	err := r.s.with(func(d *memData) error {
		for k, inv := range d.invoices {
			if k.kind == kind && inv.CompanyID == companyID && inv.Status.IsOpen() {
				out = append(out, inv)
			}
		}
		return nil
	})
	sortInvoices(out)
	return out, err
}

func (r memInvoices) Get(_ context.Context, id string, kind models.InvoiceKind) (models.Invoice, error) {
	var out models.Invoice
	err := r.s.with(func(d *memData) error {
		inv, ok := d.invoices[invoiceKey{id, kind}]
		if !ok {
			return fmt.Errorf("%s invoice %s: %w", kind, id, reconerror.ErrNotFound)
		}
		out = inv
		return nil
	})
	return out, err
}

func (r memInvoices) UpdateStatus(_ context.Context, id string, kind models.InvoiceKind, status models.InvoiceStatus, paid decimal.Decimal) error {
	return r.s.with(func(d *memData) error {
		key := invoiceKey{id, kind}
		inv, ok := d.invoices[key]
		if !ok {
			return fmt.Errorf("%s invoice %s: %w", kind, id, reconerror.ErrNotFound)
		}
		inv.Status = status
		inv.PaidAmount = paid
		d.invoices[key] = inv
		return nil
	})
}

func (r memInvoices) ListByCompany(_ context.Context, companyID string, kind models.InvoiceKind) ([]models.Invoice, error) {
	var out []models.Invoice
	err := r.s.with(func(d *memData) error {
		for k, inv := range d.invoices {
			if inv.CompanyID == companyID && (kind == "" || k.kind == kind) {
				out = append(out, inv)
			}
		}
		return nil
	})
	sortInvoices(out)
	return out, err
}

func (r memInvoices) Insert(_ context.Context, inv models.Invoice) error {
	if !inv.Kind.Valid() {
		return reconerror.NewValidationError("kind", fmt.Sprintf("unknown invoice kind %q", inv.Kind))
	}
	return r.s.with(func(d *memData) error {
		key := invoiceKey{inv.ID, inv.Kind}
		if _, ok := d.invoices[key]; ok {
			return fmt.Errorf("%s invoice %s already exists", inv.Kind, inv.ID)
		}
		d.invoices[key] = inv
		return nil
	})
}

type memPayments struct{ s *MemoryStore }

func (r memPayments) Create(_ context.Context, p models.PaymentRecord) error {
	return r.s.with(func(d *memData) error {
		if _, ok := d.payments[p.ID]; ok {
			return fmt.Errorf("payment %s already exists", p.ID)
		}
		for _, existing := range d.payments {
			if existing.TransactionID == p.TransactionID && existing.Status == models.PaymentActive {
				return fmt.Errorf("transaction %s already has payment %s: %w", p.TransactionID, existing.ID, reconerror.ErrAlreadyReconciled)
			}
		}
		d.payments[p.ID] = p
		return nil
	})
}

func (r memPayments) GetActiveByTransaction(_ context.Context, transactionID string) (models.PaymentRecord, error) {
	var out models.PaymentRecord
	err := r.s.with(func(d *memData) error {
		for _, p := range d.payments {
			if p.TransactionID == transactionID && p.Status == models.PaymentActive {
				out = p
				return nil
			}
		}
		return fmt.Errorf("payment for transaction %s: %w", transactionID, reconerror.ErrNotFound)
	})
	return out, err
}

func (r memPayments) Cancel(_ context.Context, id string, at time.Time, reason string) error {
	return r.s.with(func(d *memData) error {
		p, ok := d.payments[id]
		if !ok {
			return fmt.Errorf("payment %s: %w", id, reconerror.ErrNotFound)
		}
		if p.Status == models.PaymentCancelled {
			return fmt.Errorf("payment %s already cancelled: %w", id, reconerror.ErrInvalidState)
		}
		p.Status = models.PaymentCancelled
		p.CancelledAt = &at
		p.CancelReason = reason
		d.payments[id] = p
		return nil
	})
}

// AllPayments returns every payment, for reports and tests.
func (s *MemoryStore) AllPayments() []models.PaymentRecord {
	var out []models.PaymentRecord
	_ = s.with(func(d *memData) error {
		for _, p := range d.payments {
			out = append(out, p)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

type memSuggestions struct{ s *MemoryStore }

func (r memSuggestions) Save(_ context.Context, sg models.Suggestion) error {
	return r.s.with(func(d *memData) error {
		d.suggestions[sg.TransactionID] = sg
		return nil
	})
}

func (r memSuggestions) Get(_ context.Context, transactionID string) (models.Suggestion, error) {
	var out models.Suggestion
	err := r.s.with(func(d *memData) error {
		sg, ok := d.suggestions[transactionID]
		if !ok {
			return fmt.Errorf("suggestion for %s: %w", transactionID, reconerror.ErrNotFound)
		}
		out = sg
		return nil
	})
	return out, err
}

func (r memSuggestions) Delete(_ context.Context, transactionID string) error {
	return r.s.with(func(d *memData) error {
		delete(d.suggestions, transactionID)
		return nil
	})
}

func (r memSuggestions) ListByCompany(_ context.Context, companyID string) ([]models.Suggestion, error) {
	var out []models.Suggestion
	err := r.s.with(func(d *memData) error {
		for _, sg := range d.suggestions {
			if sg.CompanyID == companyID {
				out = append(out, sg)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].TransactionID < out[j].TransactionID
	})
	return out, err
}

type memLedger struct{ s *MemoryStore }

func (r memLedger) Create(_ context.Context, e models.LedgerEntry) error {
	return r.s.with(func(d *memData) error {
		if _, dup := d.bySource[e.SourceDocumentID]; dup {
			return fmt.Errorf("source %s: %w", e.SourceDocumentID, reconerror.ErrDuplicateLedgerEntry)
		}
		e.Lines = append([]models.LedgerLine(nil), e.Lines...)
		d.entries[e.ID] = e
		d.bySource[e.SourceDocumentID] = e.ID
		return nil
	})
}

func (r memLedger) Exists(_ context.Context, sourceDocumentID string) (bool, error) {
	var ok bool
	err := r.s.with(func(d *memData) error {
		_, ok = d.bySource[sourceDocumentID]
		return nil
	})
	return ok, err
}

func (r memLedger) Get(_ context.Context, id string) (models.LedgerEntry, error) {
	var out models.LedgerEntry
	err := r.s.with(func(d *memData) error {
		e, ok := d.entries[id]
		if !ok {
			return fmt.Errorf("ledger entry %s: %w", id, reconerror.ErrNotFound)
		}
		e.Lines = append([]models.LedgerLine(nil), e.Lines...)
		out = e
		return nil
	})
	return out, err
}

func (r memLedger) List(_ context.Context, companyID string) ([]models.LedgerEntry, error) {
	var out []models.LedgerEntry
	err := r.s.with(func(d *memData) error {
		for _, e := range d.entries {
			if companyID == "" || e.CompanyID == companyID {
				e.Lines = append([]models.LedgerLine(nil), e.Lines...)
				out = append(out, e)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if !out[i].EntryDate.Equal(out[j].EntryDate) {
			return out[i].EntryDate.Before(out[j].EntryDate)
		}
		return out[i].Reference < out[j].Reference
	})
	return out, err
}

type memOverrides struct{ s *MemoryStore }

func (r memOverrides) GetOverride(_ context.Context, counterpartyID string) (*models.AccountMapping, error) {
	var out *models.AccountMapping
	err := r.s.with(func(d *memData) error {
		if m, ok := d.overrides[OverrideKey(counterpartyID)]; ok {
			out = &m
		}
		return nil
	})
	return out, err
}

func (r memOverrides) SaveOverride(_ context.Context, counterpartyID string, mapping models.AccountMapping) error {
	return r.s.with(func(d *memData) error {
		d.overrides[OverrideKey(counterpartyID)] = mapping
		return nil
	})
}

func (r memOverrides) ListOverrides(_ context.Context) (map[string]models.AccountMapping, error) {
	var out map[string]models.AccountMapping
	err := r.s.with(func(d *memData) error {
		out = cloneMap(d.overrides)
		return nil
	})
	return out, err
}

func sortTransactions(txs []models.BankTransaction) {
	sort.Slice(txs, func(i, j int) bool {
		if !txs[i].Date.Equal(txs[j].Date) {
			return txs[i].Date.Before(txs[j].Date)
		}
		return txs[i].ID < txs[j].ID
	})
}

func sortInvoices(invs []models.Invoice) {
	sort.Slice(invs, func(i, j int) bool {
		if !invs[i].DueDate.Equal(invs[j].DueDate) {
			return invs[i].DueDate.Before(invs[j].DueDate)
		}
		return invs[i].ID < invs[j].ID
	})
}

// inPeriod reports whether t lies in [from, to]. Zero bounds are open.
func inPeriod(t, from, to time.Time) bool {
	if !from.IsZero() && t.Before(from) {
		return false
	}
	if !to.IsZero() && t.After(to) {
		return false
	}
	return true
}
