package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iho/offledger/internal/adapter/http/dto"
	"github.com/iho/offledger/internal/adapter/http/middleware"
	"github.com/iho/offledger/internal/domain"
)

// ProfileHandler handles authoritative profile requests.
type ProfileHandler struct {
	svc ReconciliationService
}

// NewProfileHandler creates a new ProfileHandler.
func NewProfileHandler(svc ReconciliationService) *ProfileHandler {
	return &ProfileHandler{svc: svc}
}

// Create opens an authoritative balance for a user.
func (h *ProfileHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	req.Normalize()

	if userID, ok := middleware.UserIDFromContext(r.Context()); ok && userID != req.UserID {
		writeError(w, http.StatusForbidden, "cannot create profile", domain.ErrForbidden.Error())
		return
	}

	profile, err := h.svc.CreateProfile(r.Context(), req.UserID, req.OpeningBalance)
	if err != nil {
		writeDomainError(w, "failed to create profile", err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.ProfileFromDomain(profile))
}

// Get returns the full profile, read from the database.
func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	profile, err := h.svc.GetProfile(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		writeDomainError(w, "failed to get profile", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ProfileFromDomain(profile))
}

// Balance returns the authoritative balance, served from cache when warm.
func (h *ProfileHandler) Balance(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	balance, err := h.svc.GetBalance(r.Context(), userID)
	if err != nil {
		writeDomainError(w, "failed to get balance", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.BalanceResponse{UserID: userID, Balance: balance})
}

// Reconcile checks the stored balance against the ledger.
func (h *ProfileHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.ReconcileProfile(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		writeDomainError(w, "failed to reconcile profile", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ReconciliationFromUseCase(result))
}
