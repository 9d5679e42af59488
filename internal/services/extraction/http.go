package extraction

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/benvon/smart-autotrader/internal/logger"
	"github.com/benvon/smart-autotrader/internal/models"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	extractPath = "/extract_parameters"
	// maxResponseBytes caps how much of an extractor response is read.
	maxResponseBytes = 1 << 20
)

// HTTPExtractorConfig configures the remote extraction service client
type HTTPExtractorConfig struct {
	BaseURL string
	Timeout time.Duration
	// Client credentials are optional; when set every request carries a
	// bearer token from TokenURL.
	ClientID     string
	ClientSecret string
	TokenURL     string
	DebugMode    bool
}

// HTTPExtractor calls the parameter extraction service over HTTP
type HTTPExtractor struct {
	endpoint  string
	client    *http.Client
	logger    *zap.Logger
	debugMode bool
}

// wireRequest is the extraction service's request body
type wireRequest struct {
	Query               string               `json:"query"`
	ForceModel          string               `json:"force_model,omitempty"`
	ConversationHistory []models.ChatMessage `json:"conversation_history"`
	ConfirmedContext    models.Criteria      `json:"confirmed_context"`
	RejectedContext     models.Rejections    `json:"rejected_context"`
}

// NewHTTPExtractor creates a client for the extraction service at cfg.BaseURL
func NewHTTPExtractor(cfg HTTPExtractorConfig, log *zap.Logger) *HTTPExtractor {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if log == nil {
		log = zap.NewNop()
	}

	client := &http.Client{Timeout: cfg.Timeout}
	if cfg.ClientID != "" && cfg.TokenURL != "" {
		cc := clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
		}
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, &http.Client{Timeout: cfg.Timeout})
		client = cc.Client(ctx)
		client.Timeout = cfg.Timeout
	}

	return &HTTPExtractor{
		endpoint:  strings.TrimRight(cfg.BaseURL, "/") + extractPath,
		client:    client,
		logger:    log,
		debugMode: cfg.DebugMode,
	}
}

// ExtractParameters implements Extractor
func (e *HTTPExtractor) ExtractParameters(ctx context.Context, req ExtractionRequest) (models.ExtractionResult, error) {
	body, err := json.Marshal(wireRequest{
		Query:               req.Query,
		ForceModel:          req.ForceModel,
		ConversationHistory: req.History,
		ConfirmedContext:    req.Confirmed,
		RejectedContext:     req.Rejected,
	})
	if err != nil {
		return models.DegradedResult(req.Query), fmt.Errorf("failed to encode extraction request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(body))
	if err != nil {
		return models.DegradedResult(req.Query), fmt.Errorf("failed to build extraction request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := e.client.Do(httpReq)
	if err != nil {
		return models.DegradedResult(req.Query), fmt.Errorf("failed to call extraction service: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return models.DegradedResult(req.Query), fmt.Errorf("failed to read extraction response: %w", err)
	}

	if e.debugMode {
		e.logger.Debug("extraction_service_response",
			zap.Int("status", resp.StatusCode),
			zap.Duration("latency", time.Since(start)),
			zap.String("model", req.ForceModel),
			zap.String("response_preview", logger.SanitizeDebugContent(string(raw))),
		)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return models.DegradedResult(req.Query), &APIError{
			Backend:    "extraction_service",
			StatusCode: resp.StatusCode,
			Message:    logger.SanitizeErrorString(string(raw)),
		}
	}

	result := Adapt(raw, req.Query)
	if result.Degraded {
		e.logger.Warn("extraction_payload_unusable",
			zap.Int("response_length", len(raw)),
			zap.String("response_preview", logger.SanitizeString(string(raw), 200)),
		)
	}
	return result, nil
}
