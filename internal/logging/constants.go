package logging

// Standardized field names for structured logging.
const (
	FieldCompany       = "company"
	FieldTransactionID = "transaction_id"
	FieldInvoiceID     = "invoice_id"
	FieldInvoiceKind   = "invoice_kind"
	FieldSourceDoc     = "source_document_id"
	FieldCounterparty  = "counterparty"
	FieldAccount       = "account"
	FieldCategory      = "category"
	FieldScore         = "score"
	FieldOutcome       = "outcome"
	FieldStrategy      = "strategy"
	FieldOperation     = "operation"
	FieldStatus        = "status"
	FieldReason        = "reason"
	FieldAttempt       = "attempt"
	FieldDuration      = "duration_ms"
	FieldCount         = "count"
	FieldInputFile     = "input_file"
	FieldOutputFile    = "output_file"
)
