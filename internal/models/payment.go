package models

import (
	"time"
)

// PaymentMethod of a recorded payment.
const PaymentMethodBankTransfer = "bank_transfer"

// ReconciliationType records how a payment was matched.
type ReconciliationType string

const (
	ReconciliationAuto   ReconciliationType = "auto"
	ReconciliationManual ReconciliationType = "manual"
)

// PaymentStatus of a payment record. Cancelled records are the reversal of an undo.
type PaymentStatus string

const (
	PaymentActive    PaymentStatus = "active"
	PaymentCancelled PaymentStatus = "cancelled"
)

// PaymentRecord is created exactly once per confirmed reconciliation.
type PaymentRecord struct {
	ID                 string             `json:"id"`
	TransactionID      string             `json:"transaction_id"`
	InvoiceID          string             `json:"invoice_id"`
	InvoiceKind        InvoiceKind        `json:"invoice_kind"`
	Amount             Money              `json:"amount"`
	Method             string             `json:"method"`
	ReconciliationType ReconciliationType `json:"reconciliation_type"`
	Status             PaymentStatus      `json:"status"`
	PaymentDate        time.Time          `json:"payment_date"`
	CreatedAt          time.Time          `json:"created_at"`
	CancelledAt        *time.Time         `json:"cancelled_at,omitempty"`
	CancelReason       string             `json:"cancel_reason,omitempty"`
}
