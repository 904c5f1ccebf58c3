package models

import "time"

// Suggestion is a tentative match awaiting confirmation. It is removed on
// confirm or reject.
type Suggestion struct {
	TransactionID string      `json:"transaction_id"`
	InvoiceID     string      `json:"invoice_id"`
	InvoiceKind   InvoiceKind `json:"invoice_kind"`
	InvoiceNumber string      `json:"invoice_number,omitempty"`
	CompanyID     string      `json:"company_id"`
	Score         float64     `json:"score"`
	CreatedAt     time.Time   `json:"created_at"`
}
