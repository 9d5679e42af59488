package queue

import (
	"time"

	"github.com/benvon/smart-autotrader/internal/models"
	"github.com/google/uuid"
)

// JobType represents the type of job
type JobType string

const (
	// JobTypeChatHistory persists one completed chat turn
	JobTypeChatHistory JobType = "chat_history"
	// JobTypeSessionCleanup deletes sessions idle past the retention window
	JobTypeSessionCleanup JobType = "session_cleanup"
)

// Job represents a job in the queue
type Job struct {
	ID         uuid.UUID        `json:"id"`
	Type       JobType          `json:"type"`
	UserID     string           `json:"user_id,omitempty"`
	Turn       *models.ChatTurn `json:"turn,omitempty"`         // Set for chat history jobs
	NotBefore  *time.Time       `json:"not_before,omitempty"`   // Earliest time to process job (nil = immediate)
	NotAfter   *time.Time       `json:"not_after,omitempty"`    // Latest time to process job (nil = no expiration)
	CreatedAt  time.Time        `json:"created_at"`
	RetryCount int              `json:"retry_count"`
	MaxRetries int              `json:"max_retries"`
}

// NewJob creates a new job
func NewJob(jobType JobType, userID string) *Job {
	return &Job{
		ID:         uuid.New(),
		Type:       jobType,
		UserID:     userID,
		CreatedAt:  time.Now(),
		RetryCount: 0,
		MaxRetries: 3,
	}
}

// NewChatHistoryJob wraps a turn in a chat history job
func NewChatHistoryJob(turn *models.ChatTurn) *Job {
	job := NewJob(JobTypeChatHistory, turn.UserID)
	job.Turn = turn
	return job
}

// ShouldProcess checks if the job should be processed now
func (j *Job) ShouldProcess() bool {
	now := time.Now()

	if j.NotBefore != nil && now.Before(*j.NotBefore) {
		return false
	}
	if j.NotAfter != nil && now.After(*j.NotAfter) {
		return false
	}
	return true
}

// IsExpired checks if the job has expired
func (j *Job) IsExpired() bool {
	if j.NotAfter == nil {
		return false
	}
	return time.Now().After(*j.NotAfter)
}

// CanRetry checks if the job can be retried
func (j *Job) CanRetry() bool {
	return j.RetryCount < j.MaxRetries
}

// IncrementRetry increments the retry count and delays the next attempt
// with exponential backoff
func (j *Job) IncrementRetry() {
	j.RetryCount++
	next := time.Now().Add(time.Duration(1<<j.RetryCount) * time.Second)
	j.NotBefore = &next
}
