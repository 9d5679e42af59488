package conversation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/benvon/smart-autotrader/internal/logger"
	"github.com/benvon/smart-autotrader/internal/models"
	"github.com/benvon/smart-autotrader/internal/services/clarify"
	"github.com/benvon/smart-autotrader/internal/services/extraction"
	"github.com/benvon/smart-autotrader/internal/services/reconcile"
	"github.com/benvon/smart-autotrader/internal/validation"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

const tracerName = "github.com/benvon/smart-autotrader/internal/services/conversation"

// Reply texts for turns that end without a search.
const (
	ExtractionFailedMessage = "Sorry, I'm having trouble understanding requests right now. Please try again in a moment."
	SearchFailedMessage     = "Sorry, I couldn't search the listings right now. Please try again shortly."
	RephraseMessage         = "I couldn't quite work out what you're looking for. Could you rephrase with details such as your budget or the type of vehicle?"
	DefaultOffTopicMessage  = "I can only help with finding vehicles. What kind of car are you looking for?"
)

// Searcher finds catalog vehicles matching criteria, leaving out the
// values the user rejected.
type Searcher interface {
	SearchVehicles(ctx context.Context, criteria models.Criteria, excluded models.Rejections) ([]models.VehicleRef, error)
}

// HistoryRecorder stores completed turns.
type HistoryRecorder interface {
	SaveChatHistory(ctx context.Context, turn *models.ChatTurn) error
}

// TurnResponse is the reply to one chat message.
type TurnResponse struct {
	SessionID  uuid.UUID           `json:"session_id"`
	Outcome    models.TurnOutcome  `json:"outcome"`
	Message    string              `json:"message"`
	TurnType   TurnType            `json:"turn_type"`
	Intent     models.Intent       `json:"intent,omitempty"`
	Questions  []clarify.Question  `json:"questions,omitempty"`
	Vehicles   []models.VehicleRef `json:"vehicles,omitempty"`
	Parameters models.Criteria     `json:"parameters"`
	Rejected   models.Rejections   `json:"rejected"`
	ModelUsed  string              `json:"model_used,omitempty"`
}

// ServiceConfig configures a Service.
type ServiceConfig struct {
	ExtractionTimeout time.Duration
	Now               func() time.Time
}

// Service runs chat turns end to end.
type Service struct {
	store     *Store
	extractor extraction.Extractor
	searcher  Searcher
	history   HistoryRecorder
	policy    *clarify.Policy
	timeout   time.Duration
	now       func() time.Time
	logger    *zap.Logger
}

// NewService creates a new conversation service. history may be nil.
func NewService(store *Store, extractor extraction.Extractor, searcher Searcher, history HistoryRecorder, policy *clarify.Policy, cfg ServiceConfig, log *zap.Logger) *Service {
	if cfg.ExtractionTimeout <= 0 {
		cfg.ExtractionTimeout = extraction.DefaultTimeout
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if policy == nil {
		policy = clarify.NewPolicy(nil)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		store:     store,
		extractor: extractor,
		searcher:  searcher,
		history:   history,
		policy:    policy,
		timeout:   cfg.ExtractionTimeout,
		now:       cfg.Now,
		logger:    log,
	}
}

// Store returns the context store the service works against.
func (s *Service) Store() *Store {
	return s.store
}

// HandleMessage runs one turn for userID. Collaborator failures are turned
// into conversational replies, so a response is always returned.
func (s *Service) HandleMessage(ctx context.Context, userID, utterance string) *TurnResponse {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "conversation.HandleMessage")
	defer span.End()

	utterance = validation.SanitizeText(utterance)
	now := s.now()
	cc := s.store.GetOrCreate(ctx, userID)
	turnType := ClassifyTurn(cc, utterance, now)
	s.logger.Debug("turn_received",
		zap.String("user_id", logger.SanitizeUserID(userID)),
		zap.String("utterance", logger.SanitizeUtterance(utterance)),
		zap.String("turn_type", string(turnType)))

	span.SetAttributes(
		attribute.String("chat.session_id", cc.SessionID.String()),
		attribute.String("chat.turn_type", string(turnType)),
		attribute.String("chat.model", cc.ModelUsed),
	)

	resp := s.runTurn(ctx, cc, userID, utterance, turnType)

	span.SetAttributes(
		attribute.String("chat.outcome", string(resp.Outcome)),
		attribute.Int("chat.vehicles", len(resp.Vehicles)),
	)
	if resp.Outcome == models.OutcomeExtractionFailed || resp.Outcome == models.OutcomeSearchFailed {
		span.SetStatus(codes.Error, string(resp.Outcome))
	}

	s.recordHistory(ctx, cc, userID, utterance, resp)
	s.logger.Info("turn_completed",
		zap.String("user_id", logger.SanitizeUserID(userID)),
		zap.String("session_id", cc.SessionID.String()),
		zap.String("turn_type", string(turnType)),
		zap.String("outcome", string(resp.Outcome)),
		zap.Int("vehicles", len(resp.Vehicles)))
	return resp
}

func (s *Service) runTurn(ctx context.Context, cc *models.ConversationContext, userID, utterance string, turnType TurnType) *TurnResponse {
	resp := &TurnResponse{
		SessionID:  cc.SessionID,
		TurnType:   turnType,
		Parameters: cc.CurrentParameters,
		Rejected:   cc.Rejected,
		ModelUsed:  cc.ModelUsed,
	}

	query := utterance
	if turnType == TurnClarificationAnswer {
		query = clarificationQuery(cc, utterance)
	}

	result, err := s.extract(ctx, cc, query)
	if err != nil {
		s.logger.Warn("extraction_failed",
			zap.String("user_id", logger.SanitizeUserID(userID)),
			zap.String("kind", extraction.ErrorKind(err)),
			zap.String("error", logger.SanitizeError(err)))
		resp.Outcome = models.OutcomeExtractionFailed
		resp.Message = ExtractionFailedMessage
		return resp
	}
	resp.Intent = result.Intent

	if result.Degraded {
		resp.Outcome = models.OutcomeRephrase
		resp.Message = RephraseMessage
		return resp
	}

	if result.IsOffTopic {
		resp.Outcome = models.OutcomeOffTopic
		resp.Message = result.OffTopicResponse
		if resp.Message == "" {
			resp.Message = DefaultOffTopicMessage
		}
		s.touch(ctx, cc, userID, utterance, resp.Message)
		return resp
	}

	if result.RetrieverSuggestion != "" && result.Criteria.IsEmpty() && result.Negated.IsEmpty() {
		resp.Outcome = models.OutcomeSuggestion
		resp.Message = fmt.Sprintf("Did you mean %s?", result.RetrieverSuggestion)
		s.touch(ctx, cc, userID, utterance, resp.Message)
		return resp
	}

	next := reconcile.Apply(cc, result)
	next.TopicContext = next.TopicContext.Merge(clarify.DetectTopics(utterance))
	next.MessageCount++
	if turnType != TurnClarificationAnswer || next.LastUserIntent == "" {
		next.LastUserIntent = utterance
	}
	resp.Parameters = next.CurrentParameters
	resp.Rejected = next.Rejected

	decision := s.policy.Decide(next, result)
	if decision.State == clarify.NeedsMoreInfo {
		next.LastQuestionAskedByAI = decision.Message
		next.PendingClarification = decision.Fields
		resp.Questions = decision.Questions
		resp.Message = decision.Message
		resp.Outcome = models.OutcomeClarification
		if decision.LoopDetected {
			resp.Outcome = models.OutcomeClarificationLoop
			resp.Questions = nil
		}
		s.save(ctx, userID, next, utterance, resp.Message)
		return resp
	}

	vehicles, err := s.searcher.SearchVehicles(ctx, next.CurrentParameters, next.Rejected)
	if err != nil {
		s.logger.Error("search_failed",
			zap.String("user_id", logger.SanitizeUserID(userID)),
			zap.Error(err))
		resp.Outcome = models.OutcomeSearchFailed
		resp.Message = SearchFailedMessage
		return resp
	}

	fresh := unseen(next, vehicles)
	next.MarkShown(ids(fresh))
	next.PendingClarification = nil
	next.LastQuestionAskedByAI = ""

	summary := next.CurrentParameters.Summary()
	switch {
	case len(fresh) > 0:
		resp.Outcome = models.OutcomeResults
		resp.Vehicles = fresh
		resp.Message = fmt.Sprintf("I found %d %s matching %s.", len(fresh), plural(len(fresh), "vehicle", "vehicles"), describe(summary))
	case len(vehicles) > 0:
		resp.Outcome = models.OutcomeNoNewResults
		resp.Message = fmt.Sprintf("I don't have any new matches for %s beyond what I've already shown. Try adjusting your criteria.", describe(summary))
	default:
		resp.Outcome = models.OutcomeNoResults
		resp.Message = fmt.Sprintf("I couldn't find any vehicles matching %s. Try widening your search.", describe(summary))
	}

	s.save(ctx, userID, next, utterance, resp.Message)
	return resp
}

func (s *Service) extract(ctx context.Context, cc *models.ConversationContext, query string) (models.ExtractionResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	return s.extractor.ExtractParameters(ctx, extraction.ExtractionRequest{
		Query:      query,
		ForceModel: cc.ModelUsed,
		History:    cc.History,
		Confirmed:  cc.Confirmed,
		Rejected:   cc.Rejected,
	})
}

// touch records a turn that changed no criteria.
func (s *Service) touch(ctx context.Context, cc *models.ConversationContext, userID, utterance, reply string) {
	next := cc.Clone()
	next.MessageCount++
	s.save(ctx, userID, next, utterance, reply)
}

func (s *Service) save(ctx context.Context, userID string, cc *models.ConversationContext, utterance, reply string) {
	cc.AppendHistory(models.ChatRoleUser, utterance)
	cc.AppendHistory(models.ChatRoleAssistant, reply)

	if err := s.store.Save(ctx, userID, cc); err != nil {
		if errors.Is(err, models.ErrVersionConflict) {
			s.logger.Warn("context_version_conflict",
				zap.String("user_id", logger.SanitizeUserID(userID)),
				zap.String("session_id", cc.SessionID.String()))
			return
		}
		s.logger.Error("context_save_failed",
			zap.String("user_id", logger.SanitizeUserID(userID)),
			zap.Error(err))
	}
}

func (s *Service) recordHistory(ctx context.Context, cc *models.ConversationContext, userID, utterance string, resp *TurnResponse) {
	if s.history == nil {
		return
	}
	params := resp.Parameters.Clone()
	turn := &models.ChatTurn{
		ID:               uuid.New(),
		UserID:           userID,
		SessionID:        cc.SessionID,
		UserMessage:      utterance,
		AssistantMessage: resp.Message,
		Outcome:          resp.Outcome,
		Parameters:       &params,
		ShownVehicleIDs:  ids(resp.Vehicles),
		CreatedAt:        s.now(),
	}
	if err := s.history.SaveChatHistory(ctx, turn); err != nil {
		s.logger.Warn("chat_history_failed",
			zap.String("user_id", logger.SanitizeUserID(userID)),
			zap.Error(err))
	}
}

func unseen(cc *models.ConversationContext, vehicles []models.VehicleRef) []models.VehicleRef {
	var out []models.VehicleRef
	seen := make(map[int64]struct{}, len(vehicles))
	for _, v := range vehicles {
		if _, dup := seen[v.ID]; dup || cc.HasShown(v.ID) {
			continue
		}
		seen[v.ID] = struct{}{}
		out = append(out, v)
	}
	return out
}

func ids(vehicles []models.VehicleRef) []int64 {
	if len(vehicles) == 0 {
		return nil
	}
	out := make([]int64, len(vehicles))
	for i, v := range vehicles {
		out[i] = v.ID
	}
	return out
}

func describe(summary string) string {
	if summary == "" {
		return "your search"
	}
	return summary
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
