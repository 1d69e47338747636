package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iho/offledger/internal/adapter/http/dto"
)

// EntryHandler handles ledger entry queries.
type EntryHandler struct {
	svc ReconciliationService
}

// NewEntryHandler creates a new EntryHandler.
func NewEntryHandler(svc ReconciliationService) *EntryHandler {
	return &EntryHandler{svc: svc}
}

// List returns a user's entries in application order.
func (h *EntryHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := parseIntQuery(r, "limit", 50)
	offset := parseIntQuery(r, "offset", 0)

	entries, err := h.svc.ListEntries(r.Context(), chi.URLParam(r, "userID"), limit, offset)
	if err != nil {
		writeDomainError(w, "failed to list entries", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.EntriesFromDomain(entries))
}
