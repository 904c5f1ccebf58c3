package api

import (
	"net/http"
	"strings"

	"fjacquet/recon-ledger/internal/ledger"
	"fjacquet/recon-ledger/internal/models"
	"fjacquet/recon-ledger/internal/reconerror"
	"fjacquet/recon-ledger/internal/reference"

	"github.com/go-chi/chi/v5"
)

type postRequest struct {
	Invoice  map[string]any   `json:"invoice"`
	Override *ledger.Override `json:"override,omitempty"`
	AutoPost bool             `json:"auto_post"`
}

type referenceRequest struct {
	Payload string `json:"payload"`
}

type referenceResponse struct {
	Reference string `json:"reference"`
	Formatted string `json:"formatted"`
	Valid     bool   `json:"valid"`
}

func (s *Server) normalize(raw map[string]any) (models.NormalizedInvoice, error) {
	if len(raw) == 0 {
		return models.NormalizedInvoice{}, reconerror.NewValidationError("invoice", "required")
	}
	return s.deps.Normalizer.Normalize(raw)
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	var raw map[string]any
	if err := decode(r, &raw); err != nil {
		s.writeError(w, r, err)
		return
	}
	inv, err := s.normalize(raw)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	preview, err := s.deps.Ledger.PreviewEntry(r.Context(), inv, nil)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, preview)
}

func (s *Server) handlePost(w http.ResponseWriter, r *http.Request) {
	var req postRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	inv, err := s.normalize(req.Invoice)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	entry, err := s.deps.Ledger.PostEntry(r.Context(), inv, ledger.PostOptions{
		Override: req.Override,
		AutoPost: req.AutoPost,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

func (s *Server) handleGetEntry(w http.ResponseWriter, r *http.Request) {
	entry, err := s.deps.Ledger.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (s *Server) handleGenerateReference(w http.ResponseWriter, r *http.Request) {
	var req referenceRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	ref, err := s.deps.References.Generate(req.Payload)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, referenceResponse{Reference: ref, Formatted: reference.Format(ref), Valid: true})
}

func (s *Server) handleValidateReference(w http.ResponseWriter, r *http.Request) {
	ref := reference.Clean(chi.URLParam(r, "reference"))
	err := reference.Validate(ref)
	s.deps.Metrics.ReferenceCheck(err == nil)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, referenceResponse{Reference: ref, Formatted: reference.Format(ref), Valid: true})
}

func (s *Server) handleSaveMapping(w http.ResponseWriter, r *http.Request) {
	var mapping models.AccountMapping
	if err := decode(r, &mapping); err != nil {
		s.writeError(w, r, err)
		return
	}
	counterparty := chi.URLParam(r, "counterparty")
	if err := s.deps.Classifier.SaveMapping(r.Context(), counterparty, mapping); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"counterparty": counterparty, "mapping": mapping})
}

func (s *Server) handleSearchMappings(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	writeJSON(w, http.StatusOK, s.deps.Classifier.SearchMappings(q))
}
