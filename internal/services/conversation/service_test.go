package conversation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/benvon/smart-autotrader/internal/models"
	"github.com/benvon/smart-autotrader/internal/services/clarify"
	"github.com/benvon/smart-autotrader/internal/services/extraction"
	"github.com/google/go-cmp/cmp"
)

type mockExtractor struct {
	mu       sync.Mutex
	requests []extraction.ExtractionRequest
	extract  func(ctx context.Context, req extraction.ExtractionRequest) (models.ExtractionResult, error)
}

func (m *mockExtractor) ExtractParameters(ctx context.Context, req extraction.ExtractionRequest) (models.ExtractionResult, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()
	if m.extract != nil {
		return m.extract(ctx, req)
	}
	return models.ExtractionResult{Intent: models.IntentNewQuery}, nil
}

type mockSearcher struct {
	searchFunc func(ctx context.Context, criteria models.Criteria) ([]models.VehicleRef, error)
	calls      int
	excluded   models.Rejections
}

func (m *mockSearcher) SearchVehicles(ctx context.Context, criteria models.Criteria, excluded models.Rejections) ([]models.VehicleRef, error) {
	m.calls++
	m.excluded = excluded
	if m.searchFunc != nil {
		return m.searchFunc(ctx, criteria)
	}
	return nil, nil
}

type mockHistory struct {
	mu    sync.Mutex
	turns []*models.ChatTurn
	err   error
}

func (m *mockHistory) SaveChatHistory(ctx context.Context, turn *models.ChatTurn) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.turns = append(m.turns, turn)
	return m.err
}

type harness struct {
	service   *Service
	repo      *MemoryRepository
	extractor *mockExtractor
	searcher  *mockSearcher
	history   *mockHistory
	clock     *time.Time
}

func newHarness(extractor *mockExtractor, searcher *mockSearcher) *harness {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	h := &harness{
		repo:      NewMemoryRepository(),
		extractor: extractor,
		searcher:  searcher,
		history:   &mockHistory{},
		clock:     &now,
	}
	clock := func() time.Time { return *h.clock }
	store := NewStore(h.repo, StoreConfig{Now: clock, SelectModel: func() string { return "default" }}, nil)
	h.service = NewService(store, extractor, searcher, h.history, clarify.NewPolicy(nil), ServiceConfig{Now: clock}, nil)
	return h
}

func (h *harness) advance(d time.Duration) {
	*h.clock = h.clock.Add(d)
}

func (h *harness) stored(t *testing.T) *models.ConversationContext {
	t.Helper()
	return h.service.Store().GetOrCreate(context.Background(), "u1")
}

func vehicles(ids ...int64) []models.VehicleRef {
	out := make([]models.VehicleRef, len(ids))
	for i, id := range ids {
		out[i] = models.VehicleRef{ID: id, Make: "Toyota", Model: "RAV4", VehicleType: "SUV"}
	}
	return out
}

func TestService_HandleMessage_SearchAndDedup(t *testing.T) {
	t.Parallel()

	extractor := &mockExtractor{extract: func(ctx context.Context, req extraction.ExtractionRequest) (models.ExtractionResult, error) {
		return models.ExtractionResult{
			Intent:   models.IntentNewQuery,
			Criteria: models.Criteria{VehicleTypes: []models.VehicleType{models.VehicleTypeSUV}, Makes: []string{"Toyota"}},
		}, nil
	}}
	searcher := &mockSearcher{searchFunc: func(ctx context.Context, c models.Criteria) ([]models.VehicleRef, error) {
		return vehicles(1, 2, 2), nil
	}}
	h := newHarness(extractor, searcher)

	first := h.service.HandleMessage(context.Background(), "u1", "Toyota SUV")
	if first.Outcome != models.OutcomeResults {
		t.Fatalf("Expected results, got %s (%s)", first.Outcome, first.Message)
	}
	if got := ids(first.Vehicles); !cmp.Equal(got, []int64{1, 2}) {
		t.Errorf("Expected vehicles [1 2], got %v", got)
	}

	h.advance(5 * time.Minute)
	second := h.service.HandleMessage(context.Background(), "u1", "Toyota SUV again please, any colour")
	if second.Outcome != models.OutcomeNoNewResults {
		t.Errorf("Expected no_new_results, got %s", second.Outcome)
	}
	if len(second.Vehicles) != 0 {
		t.Errorf("Expected no vehicles, got %v", second.Vehicles)
	}

	cc := h.stored(t)
	if diff := cmp.Diff([]int64{1, 2}, cc.ShownItemIDs); diff != "" {
		t.Errorf("ShownItemIDs mismatch (-want +got):\n%s", diff)
	}
	if cc.MessageCount != 2 {
		t.Errorf("Expected message count 2, got %d", cc.MessageCount)
	}
	if len(cc.History) != 4 {
		t.Errorf("Expected 4 history messages, got %d", len(cc.History))
	}
	if len(h.history.turns) != 2 {
		t.Errorf("Expected 2 recorded turns, got %d", len(h.history.turns))
	}
}

func TestService_HandleMessage_MalformedExtraction(t *testing.T) {
	t.Parallel()

	extractor := &mockExtractor{extract: func(ctx context.Context, req extraction.ExtractionRequest) (models.ExtractionResult, error) {
		return models.DegradedResult(req.Query), nil
	}}
	searcher := &mockSearcher{}
	h := newHarness(extractor, searcher)

	resp := h.service.HandleMessage(context.Background(), "u1", "asdf qwerty")
	if resp.Outcome != models.OutcomeRephrase || resp.Message != RephraseMessage {
		t.Errorf("Expected rephrase prompt, got %s %q", resp.Outcome, resp.Message)
	}
	if searcher.calls != 0 {
		t.Error("Expected no search")
	}
	if len(h.history.turns) != 1 || h.history.turns[0].Outcome != models.OutcomeRephrase {
		t.Errorf("Expected the failure path recorded in history, got %+v", h.history.turns)
	}
	if _, err := h.repo.Load(context.Background(), "u1"); !errors.Is(err, models.ErrContextNotFound) {
		t.Errorf("Expected context not saved, got %v", err)
	}
}

func TestService_HandleMessage_CollaboratorFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		extract     func(ctx context.Context, req extraction.ExtractionRequest) (models.ExtractionResult, error)
		search      func(ctx context.Context, c models.Criteria) ([]models.VehicleRef, error)
		wantOutcome models.TurnOutcome
		wantMessage string
	}{
		{
			name: "extraction error",
			extract: func(ctx context.Context, req extraction.ExtractionRequest) (models.ExtractionResult, error) {
				return models.DegradedResult(req.Query), &extraction.APIError{Backend: "http", StatusCode: 503}
			},
			wantOutcome: models.OutcomeExtractionFailed,
			wantMessage: ExtractionFailedMessage,
		},
		{
			name: "extraction timeout",
			extract: func(ctx context.Context, req extraction.ExtractionRequest) (models.ExtractionResult, error) {
				return models.DegradedResult(req.Query), context.DeadlineExceeded
			},
			wantOutcome: models.OutcomeExtractionFailed,
			wantMessage: ExtractionFailedMessage,
		},
		{
			name: "search error",
			extract: func(ctx context.Context, req extraction.ExtractionRequest) (models.ExtractionResult, error) {
				return models.ExtractionResult{
					Intent:   models.IntentNewQuery,
					Criteria: models.Criteria{VehicleTypes: []models.VehicleType{models.VehicleTypeSUV}, MaxPrice: models.Ptr(20000.0)},
				}, nil
			},
			search: func(ctx context.Context, c models.Criteria) ([]models.VehicleRef, error) {
				return nil, errors.New("catalog down")
			},
			wantOutcome: models.OutcomeSearchFailed,
			wantMessage: SearchFailedMessage,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h := newHarness(&mockExtractor{extract: tt.extract}, &mockSearcher{searchFunc: tt.search})
			resp := h.service.HandleMessage(context.Background(), "u1", "SUV under 20k")
			if resp.Outcome != tt.wantOutcome || resp.Message != tt.wantMessage {
				t.Errorf("Expected %s %q, got %s %q", tt.wantOutcome, tt.wantMessage, resp.Outcome, resp.Message)
			}
			if _, err := h.repo.Load(context.Background(), "u1"); !errors.Is(err, models.ErrContextNotFound) {
				t.Errorf("Expected context left unmodified, got %v", err)
			}
			if len(h.history.turns) != 1 {
				t.Errorf("Expected failed turn recorded, got %d turns", len(h.history.turns))
			}
		})
	}
}

func TestService_HandleMessage_OffTopicAndSuggestion(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		result      models.ExtractionResult
		wantOutcome models.TurnOutcome
		wantMessage string
	}{
		{
			name:        "off topic with canned response",
			result:      models.ExtractionResult{IsOffTopic: true, OffTopicResponse: "I only know cars."},
			wantOutcome: models.OutcomeOffTopic,
			wantMessage: "I only know cars.",
		},
		{
			name:        "off topic without response",
			result:      models.ExtractionResult{IsOffTopic: true},
			wantOutcome: models.OutcomeOffTopic,
			wantMessage: DefaultOffTopicMessage,
		},
		{
			name:        "suggestion",
			result:      models.ExtractionResult{Intent: models.IntentNewQuery, RetrieverSuggestion: "a Toyota RAV4"},
			wantOutcome: models.OutcomeSuggestion,
			wantMessage: "Did you mean a Toyota RAV4?",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			extractor := &mockExtractor{extract: func(ctx context.Context, req extraction.ExtractionRequest) (models.ExtractionResult, error) {
				return tt.result, nil
			}}
			searcher := &mockSearcher{}
			h := newHarness(extractor, searcher)

			resp := h.service.HandleMessage(context.Background(), "u1", "what's the weather like")
			if resp.Outcome != tt.wantOutcome || resp.Message != tt.wantMessage {
				t.Errorf("Expected %s %q, got %s %q", tt.wantOutcome, tt.wantMessage, resp.Outcome, resp.Message)
			}
			if searcher.calls != 0 {
				t.Error("Expected no search")
			}
			if cc := h.stored(t); cc.MessageCount != 1 || !cc.Confirmed.IsEmpty() {
				t.Errorf("Expected context touched only, got %+v", cc)
			}
		})
	}
}

func TestService_HandleMessage_ClarificationFlow(t *testing.T) {
	t.Parallel()

	extractor := &mockExtractor{}
	extractor.extract = func(ctx context.Context, req extraction.ExtractionRequest) (models.ExtractionResult, error) {
		extractor.mu.Lock()
		n := len(extractor.requests)
		extractor.mu.Unlock()
		if n == 1 {
			return models.ExtractionResult{
				Intent:   models.IntentNewQuery,
				Criteria: models.Criteria{VehicleTypes: []models.VehicleType{models.VehicleTypeSUV}},
			}, nil
		}
		return models.ExtractionResult{Intent: models.IntentRefineCriteria, Criteria: models.Criteria{MaxPrice: models.Ptr(25000.0)}}, nil
	}
	searcher := &mockSearcher{searchFunc: func(ctx context.Context, c models.Criteria) ([]models.VehicleRef, error) {
		if c.MaxPrice == nil || len(c.VehicleTypes) != 1 {
			return nil, errors.New("unexpected criteria")
		}
		return vehicles(10), nil
	}}
	h := newHarness(extractor, searcher)

	first := h.service.HandleMessage(context.Background(), "u1", "I need an SUV for the family")
	if first.Outcome != models.OutcomeClarification {
		t.Fatalf("Expected clarification, got %s", first.Outcome)
	}
	if len(first.Questions) == 0 || first.Questions[0].Field != models.FieldPrice {
		t.Errorf("Expected price asked first, got %+v", first.Questions)
	}

	h.advance(time.Minute)
	second := h.service.HandleMessage(context.Background(), "u1", "about 25k")
	if second.TurnType != TurnClarificationAnswer {
		t.Errorf("Expected clarification answer, got %s", second.TurnType)
	}
	if second.Outcome != models.OutcomeResults {
		t.Fatalf("Expected results, got %s (%s)", second.Outcome, second.Message)
	}

	extractor.mu.Lock()
	query := extractor.requests[1].Query
	history := extractor.requests[1].History
	extractor.mu.Unlock()
	want := "I need an SUV for the family (answering: price, year, fuelType) about 25k"
	if query != want {
		t.Errorf("Expected query %q, got %q", want, query)
	}
	if len(history) != 2 {
		t.Errorf("Expected prior exchange forwarded as history, got %d messages", len(history))
	}

	cc := h.stored(t)
	if cc.LastQuestionAskedByAI != "" || len(cc.PendingClarification) != 0 {
		t.Errorf("Expected pending question cleared, got %q %v", cc.LastQuestionAskedByAI, cc.PendingClarification)
	}
	if !cc.TopicContext.Has(models.TopicFamily) {
		t.Error("Expected family topic recorded")
	}
}

func TestService_HandleMessage_LoopEscape(t *testing.T) {
	t.Parallel()

	extractor := &mockExtractor{extract: func(ctx context.Context, req extraction.ExtractionRequest) (models.ExtractionResult, error) {
		return models.ExtractionResult{Intent: models.IntentNewQuery}, nil
	}}
	h := newHarness(extractor, &mockSearcher{})

	first := h.service.HandleMessage(context.Background(), "u1", "hello there, I want a car")
	if first.Outcome != models.OutcomeClarification {
		t.Fatalf("Expected clarification, got %s", first.Outcome)
	}

	h.advance(time.Minute)
	second := h.service.HandleMessage(context.Background(), "u1", "hmm not sure")
	if second.Outcome != models.OutcomeClarificationLoop || second.Message != clarify.StuckMessage {
		t.Errorf("Expected stuck message, got %s %q", second.Outcome, second.Message)
	}
	if cc := h.stored(t); cc.LastQuestionAskedByAI != clarify.StuckMessage {
		t.Errorf("Expected stuck message recorded as last question, got %q", cc.LastQuestionAskedByAI)
	}
}

func TestService_HandleMessage_ScenarioB(t *testing.T) {
	t.Parallel()

	extractor := &mockExtractor{}
	searcher := &mockSearcher{searchFunc: func(ctx context.Context, c models.Criteria) ([]models.VehicleRef, error) {
		return nil, nil
	}}
	h := newHarness(extractor, searcher)

	cc := h.stored(t)
	cc.Confirmed = models.Criteria{VehicleTypes: []models.VehicleType{models.VehicleTypeSUV}, Makes: []string{"Toyota"}}
	cc.CurrentParameters = cc.Confirmed.Clone()
	cc.MessageCount = 1
	if err := h.service.Store().Save(context.Background(), "u1", cc); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	h.advance(10 * time.Minute)
	resp := h.service.HandleMessage(context.Background(), "u1", "show me what you have in stock today")
	if resp.Outcome != models.OutcomeNoResults {
		t.Errorf("Expected a search with no results, got %s", resp.Outcome)
	}
	if diff := cmp.Diff([]string{"Toyota"}, resp.Parameters.Makes); diff != "" {
		t.Errorf("Makes mismatch (-want +got):\n%s", diff)
	}
	if searcher.calls != 1 {
		t.Errorf("Expected one search, got %d", searcher.calls)
	}
}

func TestService_HandleMessage_HistoryFailureIsIgnored(t *testing.T) {
	t.Parallel()

	extractor := &mockExtractor{extract: func(ctx context.Context, req extraction.ExtractionRequest) (models.ExtractionResult, error) {
		return models.ExtractionResult{IsOffTopic: true}, nil
	}}
	h := newHarness(extractor, &mockSearcher{})
	h.history.err = errors.New("queue down")

	resp := h.service.HandleMessage(context.Background(), "u1", "tell me a joke")
	if resp.Outcome != models.OutcomeOffTopic {
		t.Errorf("Expected off_topic, got %s", resp.Outcome)
	}
}

func TestService_HandleMessage_SearchExcludesRejections(t *testing.T) {
	t.Parallel()

	extractor := &mockExtractor{extract: func(ctx context.Context, req extraction.ExtractionRequest) (models.ExtractionResult, error) {
		return models.ExtractionResult{
			Intent:   models.IntentRefineCriteria,
			Criteria: models.Criteria{VehicleTypes: []models.VehicleType{models.VehicleTypeSUV}, MaxPrice: models.Ptr(25000.0)},
			Negated:  models.Rejections{Makes: []string{"BMW"}},
		}, nil
	}}
	searcher := &mockSearcher{}
	h := newHarness(extractor, searcher)

	resp := h.service.HandleMessage(context.Background(), "u1", "an SUV under 25k, no BMW")
	if searcher.calls != 1 {
		t.Fatalf("Expected one search, got %d (%s)", searcher.calls, resp.Outcome)
	}
	if diff := cmp.Diff([]string{"BMW"}, searcher.excluded.Makes); diff != "" {
		t.Errorf("Excluded makes mismatch (-want +got):\n%s", diff)
	}
}
