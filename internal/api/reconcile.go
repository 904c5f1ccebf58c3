package api

import (
	"net/http"
	"strconv"
	"time"

	"fjacquet/recon-ledger/internal/models"
	"fjacquet/recon-ledger/internal/reconciliation"
	"fjacquet/recon-ledger/internal/reconerror"

	"github.com/go-chi/chi/v5"
)

const dateLayout = "2006-01-02"

type confirmRequest struct {
	InvoiceID   string             `json:"invoice_id"`
	InvoiceKind models.InvoiceKind `json:"invoice_kind"`
}

type reasonRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) handleReconcile(w http.ResponseWriter, r *http.Request) {
	opts := reconciliation.BatchOptions{}
	if v := r.URL.Query().Get("dry_run"); v != "" {
		dry, err := strconv.ParseBool(v)
		if err != nil {
			s.writeError(w, r, reconerror.NewValidationError("dry_run", "must be a boolean"))
			return
		}
		opts.DryRun = dry
	}
	summary, err := s.deps.Orchestrator.ReconcileBatch(r.Context(), chi.URLParam(r, "company"), opts)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleSuggestions(w http.ResponseWriter, r *http.Request) {
	suggestions, err := s.deps.Orchestrator.PendingSuggestions(r.Context(), chi.URLParam(r, "company"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if suggestions == nil {
		suggestions = []models.Suggestion{}
	}
	writeJSON(w, http.StatusOK, suggestions)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	from, err := queryDate(r, "from")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	to, err := queryDate(r, "to")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if !to.IsZero() {
		// inclusive upper bound
		to = to.Add(24*time.Hour - time.Nanosecond)
	}
	report, err := s.deps.Orchestrator.ReconciliationReport(r.Context(), chi.URLParam(r, "company"), from, to)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleAging(w http.ResponseWriter, r *http.Request) {
	kind := models.InvoiceKind(r.URL.Query().Get("kind"))
	if kind == "" {
		kind = models.KindReceivable
	}
	asOf, err := queryDate(r, "as_of")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	report, err := s.deps.Orchestrator.Aging(r.Context(), chi.URLParam(r, "company"), kind, asOf)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleConfirm(w http.ResponseWriter, r *http.Request) {
	var req confirmRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.deps.Orchestrator.Confirm(r.Context(), chi.URLParam(r, "id"),
		models.InvoiceRef{ID: req.InvoiceID, Kind: req.InvoiceKind})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleReject(w http.ResponseWriter, r *http.Request) {
	var req reasonRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.deps.Orchestrator.Reject(r.Context(), chi.URLParam(r, "id"), req.Reason)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleUndo(w http.ResponseWriter, r *http.Request) {
	var req reasonRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.deps.Orchestrator.Undo(r.Context(), chi.URLParam(r, "id"), req.Reason)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// queryDate parses an optional YYYY-MM-DD query parameter.
func queryDate(r *http.Request, name string) (time.Time, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(dateLayout, v)
	if err != nil {
		return time.Time{}, reconerror.NewValidationError(name, "expected YYYY-MM-DD")
	}
	return t, nil
}
