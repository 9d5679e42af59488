package extraction

import (
	"context"
	"time"

	"github.com/benvon/smart-autotrader/internal/models"
)

// DefaultTimeout bounds a single extraction call.
const DefaultTimeout = 30 * time.Second

// ExtractionRequest is everything an extractor may use to interpret a turn
type ExtractionRequest struct {
	Query      string
	ForceModel string
	History    []models.ChatMessage
	Confirmed  models.Criteria
	Rejected   models.Rejections
}

// Extractor turns an utterance into structured criteria. When the backing
// service cannot be reached the returned result is degraded and err is
// non-nil; an unusable body from a reachable service yields a degraded
// result and a nil error.
type Extractor interface {
	ExtractParameters(ctx context.Context, req ExtractionRequest) (models.ExtractionResult, error)
}
