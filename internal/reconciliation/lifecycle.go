package reconciliation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"fjacquet/recon-ledger/internal/logging"
	"fjacquet/recon-ledger/internal/models"
	"fjacquet/recon-ledger/internal/reconerror"
	"fjacquet/recon-ledger/internal/repository"
	"fjacquet/recon-ledger/internal/retry"

	"github.com/shopspring/decimal"
)

const defaultUndoReason = "reconciliation undone"

// Result reports a single-transaction operation.
type Result struct {
	TransactionID string                      `json:"transaction_id"`
	Status        models.ReconciliationStatus `json:"status"`
	InvoiceID     string                      `json:"invoice_id,omitempty"`
	InvoiceKind   models.InvoiceKind          `json:"invoice_kind,omitempty"`
	InvoiceStatus models.InvoiceStatus        `json:"invoice_status,omitempty"`
	PaidAmount    *decimal.Decimal            `json:"paid_amount,omitempty"`
	PaymentID     string                      `json:"payment_id,omitempty"`
}

// Confirm manually links transaction txID to an invoice. It is allowed from
// unmatched and suggested and fails with reconerror.ErrAlreadyReconciled
// when the transaction is already matched.
func (o *Orchestrator) Confirm(ctx context.Context, txID string, ref models.InvoiceRef) (Result, error) {
	if strings.TrimSpace(txID) == "" {
		return Result{}, reconerror.NewValidationError("transaction_id", "required")
	}
	if ref.ID == "" {
		return Result{}, reconerror.NewValidationError("invoice_id", "required")
	}
	if !ref.Kind.Valid() {
		return Result{}, reconerror.NewValidationError("invoice_kind", fmt.Sprintf("unknown kind %q", ref.Kind))
	}
	return o.confirm(ctx, txID, ref, models.ReconciliationManual, -1)
}

// confirm serializes confirmations per transaction and retries the whole
// step once on a compare-and-set conflict. A negative score keeps the
// transaction's current confidence.
func (o *Orchestrator) confirm(ctx context.Context, txID string, ref models.InvoiceRef, kind models.ReconciliationType, score float64) (Result, error) {
	unlock := o.locks.Lock(txID)
	defer unlock()

	log := o.logger.WithFields(
		logging.F(logging.FieldTransactionID, txID),
		logging.F(logging.FieldInvoiceID, ref.ID),
		logging.F(logging.FieldInvoiceKind, string(ref.Kind)),
	)

	var res Result
	var err error
	for attempt := 1; attempt <= 2; attempt++ {
		res, err = retry.Value(ctx, o.retry, o.logger, "reconciliation.confirm", func(ctx context.Context) (Result, error) {
			return o.tryConfirm(ctx, txID, ref, kind, score)
		})
		if !errors.Is(err, reconerror.ErrConflict) {
			break
		}
		log.Warn("Confirm conflicted with a concurrent update", logging.F(logging.FieldAttempt, attempt))
	}
	if errors.Is(err, reconerror.ErrConflict) {
		return Result{}, fmt.Errorf("confirm %s: %w", txID, reconerror.ErrConcurrentModification)
	}
	if err != nil {
		return Result{}, err
	}

	o.metrics.Confirmation(string(kind))
	log.Info("Transaction reconciled",
		logging.F(logging.FieldStatus, string(res.Status)),
		logging.F("payment_id", res.PaymentID))
	return res, nil
}

func (o *Orchestrator) tryConfirm(ctx context.Context, txID string, ref models.InvoiceRef, kind models.ReconciliationType, score float64) (Result, error) {
	var res Result
	err := o.store.WithinTx(ctx, func(ctx context.Context, st repository.Store) error {
		tx, err := st.Transactions().Get(ctx, txID)
		if err != nil {
			return err
		}
		if tx.Status.IsMatched() {
			return fmt.Errorf("transaction %s is %s: %w", txID, tx.Status, reconerror.ErrAlreadyReconciled)
		}

		inv, err := st.Invoices().Get(ctx, ref.ID, ref.Kind)
		if err != nil {
			return err
		}
		if inv.Kind != tx.CandidateKind() {
			return reconerror.NewValidationError("invoice_kind",
				fmt.Sprintf("%s transaction cannot settle a %s invoice", amountSign(tx), inv.Kind))
		}
		if tx.Currency != "" && inv.Currency != "" && !strings.EqualFold(tx.Currency, inv.Currency) {
			return reconerror.NewValidationError("currency",
				fmt.Sprintf("%s transaction cannot settle a %s invoice", tx.Currency, inv.Currency))
		}
		if !inv.Status.IsOpen() {
			return fmt.Errorf("invoice %s is %s: %w", inv.ID, inv.Status, reconerror.ErrInvalidState)
		}

		now := o.clock.Now().UTC()
		status := models.StatusManualMatched
		if kind == models.ReconciliationAuto {
			status = models.StatusAutoMatched
		}
		confidence := score
		if confidence < 0 {
			confidence = tx.Confidence
		}
		err = st.Transactions().UpdateReconciliation(ctx, txID, tx.Status, models.ReconciliationUpdate{
			Status:       status,
			InvoiceID:    inv.ID,
			InvoiceKind:  inv.Kind,
			Confidence:   confidence,
			ReconciledAt: &now,
		})
		if err != nil {
			return err
		}

		amount := tx.AbsAmount()
		paid := inv.PaidAmount.Add(amount)
		invStatus := models.InvoicePartial
		if inv.Amount.Sub(paid).LessThanOrEqual(models.Cent) {
			invStatus = models.InvoicePaid
		}
		if err := st.Invoices().UpdateStatus(ctx, inv.ID, inv.Kind, invStatus, paid); err != nil {
			return err
		}

		payment := models.PaymentRecord{
			ID:                 o.newID(),
			TransactionID:      txID,
			InvoiceID:          inv.ID,
			InvoiceKind:        inv.Kind,
			Amount:             models.NewMoney(amount, tx.Currency),
			Method:             models.PaymentMethodBankTransfer,
			ReconciliationType: kind,
			Status:             models.PaymentActive,
			PaymentDate:        tx.Date,
			CreatedAt:          now,
		}
		if err := st.Payments().Create(ctx, payment); err != nil {
			return err
		}
		if err := st.Suggestions().Delete(ctx, txID); err != nil && !errors.Is(err, reconerror.ErrNotFound) {
			return err
		}

		res = Result{
			TransactionID: txID,
			Status:        status,
			InvoiceID:     inv.ID,
			InvoiceKind:   inv.Kind,
			InvoiceStatus: invStatus,
			PaidAmount:    &paid,
			PaymentID:     payment.ID,
		}
		return nil
	})
	return res, err
}

func amountSign(tx models.BankTransaction) string {
	if tx.IsOutgoing() {
		return "outgoing"
	}
	return "incoming"
}

// Reject discards the pending suggestion of txID and returns it to
// unmatched.
func (o *Orchestrator) Reject(ctx context.Context, txID, reason string) (Result, error) {
	unlock := o.locks.Lock(txID)
	defer unlock()

	err := retry.Do(ctx, o.retry, o.logger, "reconciliation.reject", func(ctx context.Context) error {
		return o.store.WithinTx(ctx, func(ctx context.Context, st repository.Store) error {
			tx, err := st.Transactions().Get(ctx, txID)
			if err != nil {
				return err
			}
			if tx.Status != models.StatusSuggested {
				return fmt.Errorf("transaction %s is %s, not suggested: %w", txID, tx.Status, reconerror.ErrInvalidState)
			}
			if err := st.Transactions().UpdateReconciliation(ctx, txID, models.StatusSuggested, models.ReconciliationUpdate{
				Status: models.StatusUnmatched,
			}); err != nil {
				return err
			}
			if err := st.Suggestions().Delete(ctx, txID); err != nil && !errors.Is(err, reconerror.ErrNotFound) {
				return err
			}
			return nil
		})
	})
	if err != nil {
		return Result{}, conflictAsConcurrent(txID, err)
	}

	o.metrics.Rejection()
	o.logger.Info("Suggestion rejected",
		logging.F(logging.FieldTransactionID, txID),
		logging.F(logging.FieldReason, reason))
	return Result{TransactionID: txID, Status: models.StatusUnmatched}, nil
}

// Undo reverses a confirmed reconciliation: the transaction returns to
// unmatched, the invoice paid amount is reduced and the payment record is
// cancelled.
func (o *Orchestrator) Undo(ctx context.Context, txID, reason string) (Result, error) {
	if strings.TrimSpace(reason) == "" {
		reason = defaultUndoReason
	}
	unlock := o.locks.Lock(txID)
	defer unlock()

	res, err := retry.Value(ctx, o.retry, o.logger, "reconciliation.undo", func(ctx context.Context) (Result, error) {
		return o.tryUndo(ctx, txID, reason)
	})
	if err != nil {
		return Result{}, conflictAsConcurrent(txID, err)
	}

	o.metrics.Undo()
	o.logger.Info("Reconciliation undone",
		logging.F(logging.FieldTransactionID, txID),
		logging.F(logging.FieldInvoiceID, res.InvoiceID),
		logging.F(logging.FieldReason, reason))
	return res, nil
}

func (o *Orchestrator) tryUndo(ctx context.Context, txID, reason string) (Result, error) {
	var res Result
	err := o.store.WithinTx(ctx, func(ctx context.Context, st repository.Store) error {
		tx, err := st.Transactions().Get(ctx, txID)
		if err != nil {
			return err
		}
		if !tx.Status.IsMatched() {
			return fmt.Errorf("transaction %s is %s, not reconciled: %w", txID, tx.Status, reconerror.ErrInvalidState)
		}

		payment, err := st.Payments().GetActiveByTransaction(ctx, txID)
		if err != nil {
			return err
		}
		inv, err := st.Invoices().Get(ctx, payment.InvoiceID, payment.InvoiceKind)
		if err != nil {
			return err
		}

		paid := inv.PaidAmount.Sub(payment.Amount.Amount)
		if paid.IsNegative() {
			paid = decimal.Zero
		}
		invStatus := models.InvoicePartial
		if !paid.IsPositive() {
			invStatus = models.InvoicePending
		}
		if err := st.Invoices().UpdateStatus(ctx, inv.ID, inv.Kind, invStatus, paid); err != nil {
			return err
		}

		now := o.clock.Now().UTC()
		if err := st.Payments().Cancel(ctx, payment.ID, now, reason); err != nil {
			return err
		}
		if err := st.Transactions().UpdateReconciliation(ctx, txID, tx.Status, models.ReconciliationUpdate{
			Status: models.StatusUnmatched,
		}); err != nil {
			return err
		}

		res = Result{
			TransactionID: txID,
			Status:        models.StatusUnmatched,
			InvoiceID:     inv.ID,
			InvoiceKind:   inv.Kind,
			InvoiceStatus: invStatus,
			PaidAmount:    &paid,
			PaymentID:     payment.ID,
		}
		return nil
	})
	return res, err
}

func conflictAsConcurrent(txID string, err error) error {
	if errors.Is(err, reconerror.ErrConflict) {
		return fmt.Errorf("transaction %s: %w", txID, reconerror.ErrConcurrentModification)
	}
	return err
}
