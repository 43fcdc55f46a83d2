package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/insights-engine/internal/credential"
	"github.com/insights-engine/internal/models"
	"github.com/insights-engine/internal/types"
)

// CreateAccountRequest is the body of POST /api/accounts
type CreateAccountRequest struct {
	BusinessID string `json:"business_id"`
	Credential string `json:"credential"`
	Timezone   string `json:"timezone"`
}

// AccountResponse pairs an account with its stored sync state
type AccountResponse struct {
	Account      *models.Account      `json:"account"`
	SyncMetadata *models.SyncMetadata `json:"sync_metadata,omitempty"`
}

// handleCreateAccount handles POST /api/accounts. The credential is
// classified by its token prefix and stored encrypted.
func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var req CreateAccountRequest
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "invalid request body", nil)
		return
	}

	req.BusinessID = strings.TrimSpace(req.BusinessID)
	req.Credential = strings.TrimSpace(req.Credential)
	if req.BusinessID == "" || req.Credential == "" {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "business_id and credential are required", nil)
		return
	}
	if req.Timezone == "" {
		req.Timezone = "UTC"
	}

	family := credential.Classify(req.Credential)
	if family == types.FamilyUnknown {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "credential format not recognized", nil)
		return
	}

	encrypted, err := s.resolver.Encrypt(req.Credential)
	if err != nil {
		respondError(w, http.StatusInternalServerError, ErrCodeInternalError, "failed to protect credential", nil)
		return
	}

	now := time.Now().UTC()
	account := &models.Account{
		Provider:   family,
		BusinessID: req.BusinessID,
		Credential: encrypted,
		Timezone:   req.Timezone,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.accounts.Create(r.Context(), account); err != nil {
		status, code, message := mapServiceError(err)
		respondError(w, status, code, message, nil)
		return
	}

	respondJSON(w, http.StatusCreated, AccountResponse{Account: account})
}

// handleGetAccount handles GET /api/accounts/{id}
func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	account, err := s.accounts.Get(r.Context(), id)
	if err != nil {
		status, code, message := mapServiceError(err)
		respondError(w, status, code, message, nil)
		return
	}

	meta, err := s.syncMetadata.Get(r.Context(), id)
	if err != nil {
		// Account data is still useful without its sync state
		meta = nil
	}

	respondJSON(w, http.StatusOK, AccountResponse{Account: account, SyncMetadata: meta})
}
