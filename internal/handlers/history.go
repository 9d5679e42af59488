package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/benvon/smart-autotrader/internal/models"
	"github.com/benvon/smart-autotrader/internal/request"
	"github.com/gorilla/mux"
)

const (
	// DefaultHistoryLimit is the number of turns returned without ?limit
	DefaultHistoryLimit = 20
	// MaxHistoryLimit caps ?limit
	MaxHistoryLimit = 100
)

var errInvalidLimit = errors.New("limit must be a positive integer")

// HistoryLister reads persisted turns
type HistoryLister interface {
	ListByUser(ctx context.Context, userID string, limit int) ([]*models.ChatTurn, error)
}

// HistoryHandler serves a user's persisted chat turns
type HistoryHandler struct {
	history HistoryLister
}

// NewHistoryHandler creates a new history handler
func NewHistoryHandler(history HistoryLister) *HistoryHandler {
	return &HistoryHandler{history: history}
}

// RegisterRoutes registers history routes on a router already prefixed with /api/v1/chat
func (h *HistoryHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/history", h.ListHistory).Methods(http.MethodGet)
}

// ListHistory returns the most recent turns, newest first
func (h *HistoryHandler) ListHistory(w http.ResponseWriter, r *http.Request) {
	userID := request.UserIDFromContext(r)
	if userID == "" {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "User not found in context")
		return
	}

	limit, err := parseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}

	turns, err := h.history.ListByUser(r.Context(), userID, limit)
	if err != nil {
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to load chat history")
		return
	}
	if turns == nil {
		turns = []*models.ChatTurn{}
	}
	respondJSON(w, http.StatusOK, turns)
}

func parseLimit(raw string) (int, error) {
	if raw == "" {
		return DefaultHistoryLimit, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 {
		return 0, errInvalidLimit
	}
	return min(limit, MaxHistoryLimit), nil
}
