package handlers

import (
	"context"
	"net/http"

	"github.com/benvon/smart-autotrader/internal/models"
	"github.com/benvon/smart-autotrader/internal/request"
	"github.com/benvon/smart-autotrader/internal/services/conversation"
	"github.com/benvon/smart-autotrader/internal/validation"
	"github.com/gorilla/mux"
)

// TurnHandler runs one chat turn
type TurnHandler interface {
	HandleMessage(ctx context.Context, userID, utterance string) *conversation.TurnResponse
}

// ContextStore exposes a user's conversation state
type ContextStore interface {
	GetOrCreate(ctx context.Context, userID string) *models.ConversationContext
	Reset(ctx context.Context, userID string) (*models.ConversationContext, error)
}

// ChatHandler handles chat requests
type ChatHandler struct {
	turns    TurnHandler
	contexts ContextStore
}

// NewChatHandler creates a new chat handler
func NewChatHandler(turns TurnHandler, contexts ContextStore) *ChatHandler {
	return &ChatHandler{turns: turns, contexts: contexts}
}

// RegisterRoutes registers chat routes on a router already prefixed with /api/v1/chat
func (h *ChatHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/messages", h.SendMessage).Methods(http.MethodPost)
	r.HandleFunc("/context", h.GetContext).Methods(http.MethodGet)
	r.HandleFunc("/context", h.ResetContext).Methods(http.MethodDelete)
}

// ChatMessageRequest represents a chat message request
type ChatMessageRequest struct {
	Message string `json:"message" validate:"required,max=2000,printable"`
}

// SendMessage runs one turn of the conversation
func (h *ChatHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	userID := request.UserIDFromContext(r)
	if userID == "" {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "User not found in context")
		return
	}

	var req ChatMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	if err := validation.Validate.Struct(req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", validationMessage(err))
		return
	}
	if validation.SanitizeText(req.Message) == "" {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "message is required")
		return
	}

	respondJSON(w, http.StatusOK, h.turns.HandleMessage(r.Context(), userID, req.Message))
}

// GetContext returns the caller's current conversation state
func (h *ChatHandler) GetContext(w http.ResponseWriter, r *http.Request) {
	userID := request.UserIDFromContext(r)
	if userID == "" {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "User not found in context")
		return
	}
	respondJSON(w, http.StatusOK, h.contexts.GetOrCreate(r.Context(), userID))
}

// ResetContext discards the caller's session and starts a new one
func (h *ChatHandler) ResetContext(w http.ResponseWriter, r *http.Request) {
	userID := request.UserIDFromContext(r)
	if userID == "" {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "User not found in context")
		return
	}
	cc, err := h.contexts.Reset(r.Context(), userID)
	if err != nil {
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to reset conversation")
		return
	}
	respondJSON(w, http.StatusOK, cc)
}
