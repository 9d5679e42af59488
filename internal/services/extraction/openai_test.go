package extraction

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/benvon/smart-autotrader/internal/models"
	"github.com/google/go-cmp/cmp"
)

// completionServer answers chat completion calls with content and records
// the requested model.
type completionServer struct {
	mu      sync.Mutex
	models  []string
	content string
	status  int
}

func (s *completionServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
		http.NotFound(w, r)
		return
	}
	body, _ := io.ReadAll(r.Body)
	var req struct {
		Model string `json:"model"`
	}
	_ = json.Unmarshal(body, &req)
	s.mu.Lock()
	s.models = append(s.models, req.Model)
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if s.status != 0 {
		w.WriteHeader(s.status)
		_, _ = w.Write([]byte(`{"error":{"message":"bad request","type":"invalid_request_error"}}`))
		return
	}
	resp := map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"created": 0,
		"model":   req.Model,
		"choices": []map[string]any{{
			"index":         0,
			"finish_reason": "stop",
			"message":       map[string]any{"role": "assistant", "content": s.content},
		}},
	}
	_ = json.NewEncoder(w).Encode(resp)
}

func TestOpenAIExtractor_ExtractParameters(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		content   string
		status    int
		label     string
		query     string
		wantModel string
		expectErr bool
		validate  func(*testing.T, models.ExtractionResult)
	}{
		{
			name:      "adapts content and applies negations",
			content:   `{"preferredMakes":["Toyota","Honda"],"intent":"new_query"}`,
			label:     "smart",
			query:     "Honda please, no toyota",
			wantModel: "gpt-4o",
			validate: func(t *testing.T, r models.ExtractionResult) {
				if diff := cmp.Diff([]string{"Honda"}, r.Criteria.Makes); diff != "" {
					t.Errorf("Makes mismatch (-want +got):\n%s", diff)
				}
				if diff := cmp.Diff([]string{"Toyota"}, r.Negated.Makes); diff != "" {
					t.Errorf("Negated makes mismatch (-want +got):\n%s", diff)
				}
				if r.Intent != models.IntentRefineCriteria {
					t.Errorf("Expected refine_criteria, got %s", r.Intent)
				}
			},
		},
		{
			name:      "unknown label uses default model",
			content:   `{"preferredVehicleTypes":["SUV"]}`,
			label:     "unknown",
			query:     "an suv",
			wantModel: "gpt-4o-mini",
			validate: func(t *testing.T, r models.ExtractionResult) {
				if len(r.Criteria.VehicleTypes) != 1 {
					t.Errorf("Expected one vehicle type, got %v", r.Criteria.VehicleTypes)
				}
			},
		},
		{
			name:      "unparsable content degrades without error",
			content:   "I am not sure what you mean.",
			query:     "blorp",
			wantModel: "gpt-4o-mini",
			validate: func(t *testing.T, r models.ExtractionResult) {
				if !r.Degraded || r.TextPrompt != "blorp" {
					t.Errorf("Expected degraded result, got %+v", r)
				}
			},
		},
		{
			name:      "api error degrades with error",
			status:    http.StatusBadRequest,
			query:     "suv",
			wantModel: "gpt-4o-mini",
			expectErr: true,
			validate: func(t *testing.T, r models.ExtractionResult) {
				if !r.Degraded {
					t.Error("Expected degraded result")
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			srv := &completionServer{content: tt.content, status: tt.status}
			server := httptest.NewServer(srv)
			defer server.Close()

			e := NewOpenAIExtractor(OpenAIExtractorConfig{
				APIKey:  "sk-test",
				BaseURL: server.URL + "/v1",
				Models:  map[string]string{"smart": "gpt-4o"},
			}, nil)

			result, err := e.ExtractParameters(context.Background(), ExtractionRequest{
				Query:      tt.query,
				ForceModel: tt.label,
				History: []models.ChatMessage{
					{Role: models.ChatRoleUser, Content: "hello"},
					{Role: models.ChatRoleAssistant, Content: "What are you looking for?"},
				},
			})
			if tt.expectErr != (err != nil) {
				t.Fatalf("Expected error=%v, got %v", tt.expectErr, err)
			}
			tt.validate(t, result)

			srv.mu.Lock()
			defer srv.mu.Unlock()
			if len(srv.models) == 0 || srv.models[0] != tt.wantModel {
				t.Errorf("Expected model %q, got %v", tt.wantModel, srv.models)
			}
		})
	}
}

func TestBuildSystemPrompt(t *testing.T) {
	t.Parallel()

	prompt := buildSystemPrompt(
		models.Criteria{Makes: []string{"BMW"}},
		models.Rejections{FuelTypes: []models.FuelType{models.FuelTypeDiesel}},
	)

	for _, want := range []string{
		`"Volkswagen"`, `"SemiAutomatic"`, `"Pickup"`,
		"maxPrice to at most 15000",
		`Already confirmed by the user: {"preferredMakes":["BMW"]}`,
		`Already rejected by the user: {"rejectedFuelTypes":["Diesel"]}`,
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("Expected prompt to contain %q", want)
		}
	}

	if strings.Contains(prompt, `"clarificationNeededFor": []`) {
		t.Error("Expected clarificationNeededFor not to default to an explicit empty list")
	}
	if !strings.Contains(prompt, `"clarificationNeededFor": null`) {
		t.Error("Expected clarificationNeededFor to default to null")
	}

	if strings.Contains(buildSystemPrompt(models.Criteria{}, models.Rejections{}), "Already") {
		t.Error("Expected no context lines for an empty context")
	}
}
