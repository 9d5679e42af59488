package extraction

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/benvon/smart-autotrader/internal/logger"
	"github.com/benvon/smart-autotrader/internal/models"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
	"go.uber.org/zap"
)

const (
	// DefaultOpenAIModel is the default model to use
	DefaultOpenAIModel = "gpt-4o-mini"
	// DefaultOpenAIBaseURL is the default OpenAI API base URL
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"
)

// OpenAIExtractorConfig configures the in-process LLM extractor
type OpenAIExtractorConfig struct {
	APIKey  string
	BaseURL string
	// Model is used when the session's label has no entry in Models.
	Model     string
	Models    map[string]string
	Timeout   time.Duration
	DebugMode bool
}

// OpenAIExtractor extracts parameters with an OpenAI-compatible chat
// completion in JSON mode
type OpenAIExtractor struct {
	client    openai.Client
	model     string
	models    map[string]string
	logger    *zap.Logger
	debugMode bool
}

// NewOpenAIExtractor creates an extractor backed by the chat completions API
func NewOpenAIExtractor(cfg OpenAIExtractorConfig, log *zap.Logger) *OpenAIExtractor {
	if cfg.Model == "" {
		cfg.Model = DefaultOpenAIModel
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultOpenAIBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if log == nil {
		log = zap.NewNop()
	}

	client := openai.NewClient(
		option.WithAPIKey(cfg.APIKey),
		option.WithBaseURL(cfg.BaseURL),
		option.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
	)

	return &OpenAIExtractor{
		client:    client,
		model:     cfg.Model,
		models:    cfg.Models,
		logger:    log,
		debugMode: cfg.DebugMode,
	}
}

// modelFor resolves a session's sticky label to a concrete model name.
func (e *OpenAIExtractor) modelFor(label string) string {
	if m, ok := e.models[label]; ok && m != "" {
		return m
	}
	return e.model
}

// ExtractParameters implements Extractor
func (e *OpenAIExtractor) ExtractParameters(ctx context.Context, req ExtractionRequest) (models.ExtractionResult, error) {
	model := e.modelFor(req.ForceModel)
	messages := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(buildSystemPrompt(req.Confirmed, req.Rejected)),
	}
	for _, m := range req.History {
		switch m.Role {
		case models.ChatRoleUser:
			messages = append(messages, openai.UserMessage(m.Content))
		case models.ChatRoleAssistant:
			messages = append(messages, openai.AssistantMessage(m.Content))
		}
	}
	messages = append(messages, openai.UserMessage(req.Query))

	params := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(model),
		Messages: messages,
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		},
	}

	if e.debugMode {
		e.logger.Debug("llm_api_request",
			zap.String("operation", "extract_parameters"),
			zap.String("model", model),
			zap.Int("message_count", len(messages)),
			zap.String("query_preview", logger.SanitizeDebugContent(req.Query)),
		)
	}

	start := time.Now()
	resp, err := e.client.Chat.Completions.New(ctx, params)
	latency := time.Since(start)
	if err != nil {
		e.logger.Warn("llm_api_error",
			zap.String("operation", "extract_parameters"),
			zap.String("model", model),
			zap.String("error_kind", ErrorKind(err)),
			zap.String("error", logger.SanitizeError(err)),
			zap.Duration("latency", latency),
		)
		return models.DegradedResult(req.Query), fmt.Errorf("failed to extract parameters: %w", err)
	}
	if len(resp.Choices) == 0 {
		return models.DegradedResult(req.Query), ErrNoChoicesInResponse
	}

	content := resp.Choices[0].Message.Content
	if e.debugMode {
		e.logger.Debug("llm_api_response",
			zap.String("operation", "extract_parameters"),
			zap.String("model", model),
			zap.Int("response_length", len(content)),
			zap.String("response_preview", logger.SanitizeDebugContent(content)),
			zap.Int64("latency_ms", latency.Milliseconds()),
		)
	}

	result := Adapt([]byte(content), req.Query)
	if result.Degraded {
		return result, nil
	}
	return ApplyNegations(result, req.Query), nil
}

// buildSystemPrompt describes the payload contract, the allowed values and
// what the user has already confirmed or rejected.
func buildSystemPrompt(confirmed models.Criteria, rejected models.Rejections) string {
	var b strings.Builder
	b.WriteString(`You are the search assistant of a used vehicle marketplace.
Extract vehicle search parameters from the user's latest message and answer with one JSON object only, using exactly these keys:

{
  "minPrice": number|null, "maxPrice": number|null,
  "minYear": integer|null, "maxYear": integer|null,
  "maxMileage": integer|null,
  "transmission": string|null,
  "minEngineSize": number|null, "maxEngineSize": number|null,
  "minHorsepower": integer|null, "maxHorsepower": integer|null,
  "preferredMakes": [], "preferredFuelTypes": [], "preferredVehicleTypes": [], "desiredFeatures": [],
  "explicitly_negated_makes": [], "explicitly_negated_fuel_types": [], "explicitly_negated_vehicle_types": [],
  "intent": "new_query|refine_criteria|add_criteria|replace_criteria|clarify",
  "clarificationNeeded": boolean, "clarificationNeededFor": null,
  "isOffTopic": boolean, "offTopicResponse": string|null,
  "retrieverSuggestion": string|null
}

Rules:
- Use null or [] for criteria the user did not state. Never invent values.
- clarificationNeededFor: list the field names still needed to search (e.g. ["preferredVehicleTypes","maxPrice"]). Leave it null when unsure. Send [] only when the request is already complete enough to search.
- If the user says "cheap" or "affordable", set maxPrice to at most 15000.
- If the user says "expensive", set minPrice to at least 30000.
- If the user says "new" or "recent", set minYear to at least 2020.
- If the user says "low mileage", set maxMileage to 30000.
- Values the user excludes ("no Toyota", "not diesel") go in the explicitly_negated lists, never in the preferred lists.
- intent is add_criteria when the user adds to earlier wishes, refine_criteria when narrowing or changing them, replace_criteria when starting over on a field, clarify when the user asks a question instead of stating criteria.
- Set isOffTopic with a short polite offTopicResponse when the message has nothing to do with vehicles.
`)
	b.WriteString("\nAllowed values:\n")
	fmt.Fprintf(&b, "- preferredMakes: %s\n", quoteList(models.KnownMakes))
	fmt.Fprintf(&b, "- preferredFuelTypes: %s\n", quoteList(models.AllFuelTypes))
	fmt.Fprintf(&b, "- preferredVehicleTypes: %s\n", quoteList(models.AllVehicleTypes))
	fmt.Fprintf(&b, "- transmission: %s\n", quoteList(models.AllTransmissions))

	if !confirmed.IsEmpty() {
		if data, err := json.Marshal(confirmed); err == nil {
			fmt.Fprintf(&b, "\nAlready confirmed by the user: %s\n", data)
		}
	}
	if !rejected.IsEmpty() {
		if data, err := json.Marshal(rejected); err == nil {
			fmt.Fprintf(&b, "Already rejected by the user: %s\n", data)
		}
	}
	return b.String()
}

func quoteList[T ~string](vs []T) string {
	quoted := make([]string, len(vs))
	for i, v := range vs {
		quoted[i] = fmt.Sprintf("%q", string(v))
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}
