package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"fjacquet/recon-ledger/internal/logging"
	"fjacquet/recon-ledger/internal/reconerror"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

type errorBody struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps a service error onto an HTTP status.
func statusFor(err error) int {
	var verr *reconerror.ValidationError
	switch {
	case errors.Is(err, reconerror.ErrNotFound):
		return http.StatusNotFound
	case errors.As(err, &verr), errors.Is(err, reconerror.ErrInvalidChecksum):
		return http.StatusUnprocessableEntity
	case errors.Is(err, reconerror.ErrAlreadyReconciled),
		errors.Is(err, reconerror.ErrDuplicateLedgerEntry),
		errors.Is(err, reconerror.ErrConcurrentModification),
		errors.Is(err, reconerror.ErrInvalidState):
		return http.StatusConflict
	case errors.Is(err, reconerror.ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	body := errorBody{Error: err.Error()}
	var verr *reconerror.ValidationError
	if errors.As(err, &verr) {
		body.Field = verr.Field
	}
	if status == http.StatusInternalServerError {
		s.logger.WithError(err).Error("Request failed",
			logging.F("path", r.URL.Path))
		body.Error = "internal error"
	}
	writeJSON(w, status, body)
}

// decode reads a JSON body into v. An empty body leaves v untouched.
func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return reconerror.NewValidationError("body", fmt.Sprintf("invalid JSON: %v", err))
	}
	return nil
}
