package api

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/insights-engine/internal/service"
)

// SyncResponse is the body of a successful explicit sync trigger
type SyncResponse struct {
	Success    bool                `json:"success"`
	DurationMs int64               `json:"duration_ms"`
	Result     *service.SyncResult `json:"result"`
}

// handleTriggerSync handles POST /api/accounts/{id}/sync. When another
// live sync holds the account's lease the response is a 409 advisory,
// not a failure of the running sync.
func (s *Server) handleTriggerSync(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	window, err := parseWindow(r)
	if err != nil {
		status, code, message := mapServiceError(err)
		respondError(w, status, code, message, nil)
		return
	}

	account, err := s.accounts.Get(r.Context(), id)
	if err != nil {
		status, code, message := mapServiceError(err)
		respondError(w, status, code, message, nil)
		return
	}

	result, err := s.syncService.Run(r.Context(), account, window)
	if err != nil {
		if errors.Is(err, service.ErrSyncInProgress) {
			respondError(w, http.StatusConflict, ErrCodeConflict,
				"a sync is already running for this account; retry later or query insights for stored data", nil)
			return
		}
		status, code, message := mapServiceError(err)
		respondError(w, status, code, message, nil)
		return
	}

	respondJSON(w, http.StatusOK, SyncResponse{
		Success:    true,
		DurationMs: result.Duration.Milliseconds(),
		Result:     result,
	})
}
