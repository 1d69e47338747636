package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iho/offledger/internal/domain"
)

// MaxBatchBodyBytes bounds the size of a submitted batch.
const MaxBatchBodyBytes = 1 << 20

// BatchHandler accepts batches of offline entries.
type BatchHandler struct {
	svc ReconciliationService
}

// NewBatchHandler creates a new BatchHandler.
func NewBatchHandler(svc ReconciliationService) *BatchHandler {
	return &BatchHandler{svc: svc}
}

// Apply reconciles a batch and returns the per-entry outcome. Rejected
// entries are part of a successful response; only envelope problems fail
// the request.
func (h *BatchHandler) Apply(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxBatchBodyBytes)

	req, err := domain.DecodeBatchRequest(r.Body)
	if err != nil {
		writeDomainError(w, "invalid batch", err)
		return
	}

	if req.UserID != chi.URLParam(r, "userID") {
		writeError(w, http.StatusBadRequest, "invalid batch", "batch user_id does not match path")
		return
	}

	result, err := h.svc.ApplyBatch(r.Context(), req)
	if err != nil {
		writeDomainError(w, "failed to apply batch", err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}
