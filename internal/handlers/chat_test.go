package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/benvon/smart-autotrader/internal/models"
	"github.com/benvon/smart-autotrader/internal/request"
	"github.com/benvon/smart-autotrader/internal/services/conversation"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

type mockTurnHandler struct {
	handleFunc func(ctx context.Context, userID, utterance string) *conversation.TurnResponse
	calls      int
}

func (m *mockTurnHandler) HandleMessage(ctx context.Context, userID, utterance string) *conversation.TurnResponse {
	m.calls++
	return m.handleFunc(ctx, userID, utterance)
}

type mockContextStore struct {
	getFunc   func(ctx context.Context, userID string) *models.ConversationContext
	resetFunc func(ctx context.Context, userID string) (*models.ConversationContext, error)
}

func (m *mockContextStore) GetOrCreate(ctx context.Context, userID string) *models.ConversationContext {
	return m.getFunc(ctx, userID)
}

func (m *mockContextStore) Reset(ctx context.Context, userID string) (*models.ConversationContext, error) {
	return m.resetFunc(ctx, userID)
}

func newChatRouter(turns TurnHandler, contexts ContextStore) *mux.Router {
	r := mux.NewRouter()
	NewChatHandler(turns, contexts).RegisterRoutes(r.PathPrefix("/api/v1/chat").Subrouter())
	return r
}

func withUser(req *http.Request, userID string) *http.Request {
	return req.WithContext(request.WithUserID(req.Context(), userID))
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Message string          `json:"message"`
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.NewDecoder(w.Body).Decode(&env); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	return env
}

func TestChatHandler_SendMessage(t *testing.T) {
	t.Parallel()

	sessionID := uuid.New()

	tests := []struct {
		name        string
		userID      string
		body        any
		wantStatus  int
		wantCalls   int
		wantMessage string
	}{
		{
			name:       "runs turn",
			userID:     "user-1",
			body:       ChatMessageRequest{Message: "cheap SUV"},
			wantStatus: http.StatusOK,
			wantCalls:  1,
		},
		{
			name:       "unauthenticated",
			body:       ChatMessageRequest{Message: "cheap SUV"},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:        "missing message",
			userID:      "user-1",
			body:        `{}`,
			wantStatus:  http.StatusBadRequest,
			wantMessage: "message is required",
		},
		{
			name:        "too long",
			userID:      "user-1",
			body:        ChatMessageRequest{Message: strings.Repeat("a", 2001)},
			wantStatus:  http.StatusBadRequest,
			wantMessage: "message must be at most 2000 characters",
		},
		{
			name:        "control characters",
			userID:      "user-1",
			body:        ChatMessageRequest{Message: "hi\x00there"},
			wantStatus:  http.StatusBadRequest,
			wantMessage: "message contains control characters",
		},
		{
			name:        "whitespace only",
			userID:      "user-1",
			body:        ChatMessageRequest{Message: "   "},
			wantStatus:  http.StatusBadRequest,
			wantMessage: "message is required",
		},
		{
			name:       "malformed body",
			userID:     "user-1",
			body:       `{"message":`,
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			turns := &mockTurnHandler{handleFunc: func(_ context.Context, userID, utterance string) *conversation.TurnResponse {
				if userID != "user-1" || utterance != "cheap SUV" {
					t.Errorf("Unexpected turn input %q %q", userID, utterance)
				}
				return &conversation.TurnResponse{SessionID: sessionID, Outcome: models.OutcomeClarification, Message: "What's your budget?"}
			}}

			req := newTestRequest(http.MethodPost, "/api/v1/chat/messages", tt.body)
			if tt.userID != "" {
				req = withUser(req, tt.userID)
			}
			w := httptest.NewRecorder()
			newChatRouter(turns, nil).ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("Expected status %d, got %d: %s", tt.wantStatus, w.Code, w.Body.String())
			}
			if turns.calls != tt.wantCalls {
				t.Errorf("Expected %d turn calls, got %d", tt.wantCalls, turns.calls)
			}

			env := decodeEnvelope(t, w)
			if tt.wantMessage != "" && env.Message != tt.wantMessage {
				t.Errorf("Expected message %q, got %q", tt.wantMessage, env.Message)
			}
			if tt.wantStatus != http.StatusOK {
				return
			}
			var resp conversation.TurnResponse
			if err := json.Unmarshal(env.Data, &resp); err != nil {
				t.Fatalf("Failed to decode turn: %v", err)
			}
			if resp.SessionID != sessionID || resp.Outcome != models.OutcomeClarification {
				t.Errorf("Unexpected turn response: %+v", resp)
			}
		})
	}
}

func TestChatHandler_Context(t *testing.T) {
	t.Parallel()

	sessionID := uuid.New()
	store := &mockContextStore{
		getFunc: func(_ context.Context, userID string) *models.ConversationContext {
			return &models.ConversationContext{SessionID: sessionID, UserID: userID, MessageCount: 3}
		},
		resetFunc: func(_ context.Context, userID string) (*models.ConversationContext, error) {
			if userID == "broken" {
				return nil, errors.New("db down")
			}
			return &models.ConversationContext{SessionID: uuid.New(), UserID: userID}, nil
		},
	}
	router := newChatRouter(nil, store)

	tests := []struct {
		name       string
		method     string
		userID     string
		wantStatus int
		validate   func(*testing.T, *models.ConversationContext)
	}{
		{
			name:       "get current",
			method:     http.MethodGet,
			userID:     "user-1",
			wantStatus: http.StatusOK,
			validate: func(t *testing.T, cc *models.ConversationContext) {
				if cc.SessionID != sessionID || cc.MessageCount != 3 {
					t.Errorf("Unexpected context: %+v", cc)
				}
			},
		},
		{
			name:       "reset",
			method:     http.MethodDelete,
			userID:     "user-1",
			wantStatus: http.StatusOK,
			validate: func(t *testing.T, cc *models.ConversationContext) {
				if cc.SessionID == sessionID || cc.MessageCount != 0 {
					t.Errorf("Expected a fresh session, got %+v", cc)
				}
			},
		},
		{name: "reset failure", method: http.MethodDelete, userID: "broken", wantStatus: http.StatusInternalServerError},
		{name: "unauthenticated get", method: http.MethodGet, wantStatus: http.StatusUnauthorized},
		{name: "unauthenticated reset", method: http.MethodDelete, wantStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest(tt.method, "/api/v1/chat/context", nil)
			if tt.userID != "" {
				req = withUser(req, tt.userID)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("Expected status %d, got %d", tt.wantStatus, w.Code)
			}
			if tt.validate == nil {
				return
			}
			var cc models.ConversationContext
			if err := json.Unmarshal(decodeEnvelope(t, w).Data, &cc); err != nil {
				t.Fatalf("Failed to decode context: %v", err)
			}
			tt.validate(t, &cc)
		})
	}
}
