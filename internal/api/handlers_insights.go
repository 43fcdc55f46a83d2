package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/insights-engine/internal/types"
)

const (
	dateLayout    = "2006-01-02"
	maxWindowDays = 93
)

// parseWindow reads since/until query parameters; both default to the
// trailing 7 days ending today.
func parseWindow(r *http.Request) (types.DateWindow, error) {
	today := types.TruncateDay(time.Now().UTC())
	window := types.DateWindow{Since: today.AddDate(0, 0, -6), Until: today}

	if v := r.URL.Query().Get("since"); v != "" {
		t, err := time.Parse(dateLayout, v)
		if err != nil {
			return types.DateWindow{}, &types.ServiceError{Code: "invalid_window", Message: "since must be YYYY-MM-DD"}
		}
		window.Since = types.TruncateDay(t)
	}
	if v := r.URL.Query().Get("until"); v != "" {
		t, err := time.Parse(dateLayout, v)
		if err != nil {
			return types.DateWindow{}, &types.ServiceError{Code: "invalid_window", Message: "until must be YYYY-MM-DD"}
		}
		window.Until = types.TruncateDay(t)
	}

	if window.Until.Before(window.Since) {
		return types.DateWindow{}, &types.ServiceError{Code: "invalid_window", Message: "until must not precede since"}
	}
	if window.Days() > maxWindowDays {
		return types.DateWindow{}, &types.ServiceError{Code: "invalid_window", Message: "window too large"}
	}
	return window, nil
}

// handleGetInsights handles GET /api/accounts/{id}/insights
func (s *Server) handleGetInsights(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	window, err := parseWindow(r)
	if err != nil {
		status, code, message := mapServiceError(err)
		respondError(w, status, code, message, nil)
		return
	}
	force := r.URL.Query().Get("force") == "true"

	resp, err := s.insightsService.GetInsights(r.Context(), id, window, force)
	if err != nil {
		status, code, message := mapServiceError(err)
		respondError(w, status, code, message, nil)
		return
	}

	respondJSON(w, http.StatusOK, resp)
}

// handleGetPosts handles GET /api/accounts/{id}/posts
func (s *Server) handleGetPosts(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	// Posts belong to a registered account only
	if _, err := s.accounts.Get(r.Context(), id); err != nil {
		status, code, message := mapServiceError(err)
		respondError(w, status, code, message, nil)
		return
	}

	limit := 25
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 100 {
			respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "limit must be between 1 and 100", nil)
			return
		}
		limit = n
	}

	posts, err := s.posts.ListByAccount(r.Context(), id, limit)
	if err != nil {
		status, code, message := mapServiceError(err)
		respondError(w, status, code, message, nil)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"posts":   posts,
		"count":   len(posts),
	})
}
