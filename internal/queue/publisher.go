package queue

import (
	"context"
	"fmt"

	"github.com/benvon/smart-autotrader/internal/models"
)

// HistoryPublisher records chat turns by enqueueing them for the worker
type HistoryPublisher struct {
	queue JobQueue
}

// NewHistoryPublisher creates a new history publisher
func NewHistoryPublisher(queue JobQueue) *HistoryPublisher {
	return &HistoryPublisher{queue: queue}
}

// SaveChatHistory enqueues turn without waiting for it to be written
func (p *HistoryPublisher) SaveChatHistory(ctx context.Context, turn *models.ChatTurn) error {
	if err := p.queue.Enqueue(ctx, NewChatHistoryJob(turn)); err != nil {
		return fmt.Errorf("failed to enqueue chat history: %w", err)
	}
	return nil
}
