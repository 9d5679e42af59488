package workers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/benvon/smart-autotrader/internal/logger"
	"github.com/benvon/smart-autotrader/internal/models"
	"github.com/benvon/smart-autotrader/internal/queue"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ChatHistoryStore persists a completed turn
type ChatHistoryStore interface {
	SaveChatHistory(ctx context.Context, turn *models.ChatTurn) error
}

// SessionPruner deletes sessions idle since before cutoff
type SessionPruner interface {
	DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error)
}

// HistoryWriterConfig tunes the writer
type HistoryWriterConfig struct {
	// SessionRetention is how long an idle session is kept before cleanup jobs delete it
	SessionRetention time.Duration
	// Concurrency is the number of goroutines processing deliveries
	Concurrency int
}

// HistoryWriter processes chat history and session cleanup jobs
type HistoryWriter struct {
	history  ChatHistoryStore
	sessions SessionPruner
	jobQueue queue.JobQueue // For re-enqueueing failed jobs with a backoff
	cfg      HistoryWriterConfig
	log      *zap.Logger
}

// NewHistoryWriter creates a new history writer. sessions may be nil when
// cleanup jobs are not expected.
func NewHistoryWriter(history ChatHistoryStore, sessions SessionPruner, jobQueue queue.JobQueue, cfg HistoryWriterConfig, log *zap.Logger) *HistoryWriter {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.SessionRetention <= 0 {
		cfg.SessionRetention = 7 * 24 * time.Hour
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &HistoryWriter{
		history:  history,
		sessions: sessions,
		jobQueue: jobQueue,
		cfg:      cfg,
		log:      log,
	}
}

// Run consumes deliveries until ctx is cancelled or the broker drops the
// stream. A cancelled ctx is a clean shutdown and returns nil.
func (w *HistoryWriter) Run(ctx context.Context) error {
	msgs, errs, err := w.jobQueue.Consume(ctx, w.cfg.Concurrency)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < w.cfg.Concurrency; i++ {
		g.Go(func() error {
			for msg := range msgs {
				if err := w.ProcessJob(gctx, msg); err != nil {
					w.log.Warn("job_failed", zap.String("job_id", msg.Job().ID.String()), zap.Error(err))
				}
			}
			return nil
		})
	}
	g.Go(func() error {
		for err := range errs {
			if errors.Is(err, queue.ErrQueueClosed) {
				return err
			}
			w.log.Warn("consume_error", zap.Error(err))
		}
		return nil
	})

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

// ProcessJob handles one delivery and settles it with the broker
func (w *HistoryWriter) ProcessJob(ctx context.Context, msg queue.Delivery) error {
	job := msg.Job()

	if job.IsExpired() {
		w.log.Info("job_expired", zap.String("job_id", job.ID.String()))
		if nackErr := msg.Nack(false); nackErr != nil {
			return fmt.Errorf("failed to nack expired job: %w", nackErr)
		}
		return nil
	}

	// Without the delayed exchange a retried job can arrive before its backoff ends
	if !job.ShouldProcess() {
		select {
		case <-ctx.Done():
			_ = msg.Nack(true)
			return ctx.Err()
		case <-time.After(time.Until(*job.NotBefore)):
		}
	}

	switch job.Type {
	case queue.JobTypeChatHistory:
		if job.Turn == nil {
			_ = msg.Nack(false)
			return fmt.Errorf("chat history job %s has no turn", job.ID)
		}
		if err := w.history.SaveChatHistory(ctx, job.Turn); err != nil {
			return w.handleJobError(ctx, msg, job, err)
		}
		w.log.Debug("chat_history_saved",
			zap.String("job_id", job.ID.String()),
			zap.String("user_id", logger.SanitizeUserID(job.UserID)),
			zap.String("outcome", string(job.Turn.Outcome)))

	case queue.JobTypeSessionCleanup:
		if w.sessions == nil {
			_ = msg.Nack(false)
			return fmt.Errorf("no session store for cleanup job %s", job.ID)
		}
		n, err := w.sessions.DeleteExpired(ctx, time.Now().Add(-w.cfg.SessionRetention))
		if err != nil {
			return w.handleJobError(ctx, msg, job, err)
		}
		w.log.Info("sessions_pruned", zap.Int64("count", n), zap.Duration("retention", w.cfg.SessionRetention))

	default:
		_ = msg.Nack(false)
		return fmt.Errorf("unknown job type: %s", job.Type)
	}

	if ackErr := msg.Ack(); ackErr != nil {
		return fmt.Errorf("failed to ack job: %w", ackErr)
	}
	return nil
}

// handleJobError re-enqueues a failed job with backoff while retries remain
// and dead-letters it otherwise
func (w *HistoryWriter) handleJobError(ctx context.Context, msg queue.Delivery, job *queue.Job, cause error) error {
	if !job.CanRetry() {
		w.log.Warn("job_dead_lettered", zap.String("job_id", job.ID.String()), zap.Int("retries", job.RetryCount), zap.Error(cause))
		if nackErr := msg.Nack(false); nackErr != nil {
			w.log.Error("nack_failed", zap.String("job_id", job.ID.String()), zap.Error(nackErr))
		}
		return fmt.Errorf("job %s exhausted retries: %w", job.ID, cause)
	}

	retry := *job
	retry.IncrementRetry()
	if err := w.jobQueue.Enqueue(ctx, &retry); err != nil {
		// Leave the original on the queue rather than lose it
		if nackErr := msg.Nack(true); nackErr != nil {
			w.log.Error("nack_failed", zap.String("job_id", job.ID.String()), zap.Error(nackErr))
		}
		return fmt.Errorf("failed to re-enqueue job %s: %w", job.ID, err)
	}
	if ackErr := msg.Ack(); ackErr != nil {
		w.log.Error("ack_failed", zap.String("job_id", job.ID.String()), zap.Error(ackErr))
	}

	w.log.Info("job_retry_scheduled",
		zap.String("job_id", job.ID.String()),
		zap.Int("attempt", retry.RetryCount),
		zap.Timep("not_before", retry.NotBefore),
		zap.Error(cause))
	return cause
}

// ScheduleCleanup enqueues a session cleanup job every interval until ctx is cancelled
func ScheduleCleanup(ctx context.Context, jobQueue queue.JobQueue, interval time.Duration, log *zap.Logger) error {
	if log == nil {
		log = zap.NewNop()
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			job := queue.NewJob(queue.JobTypeSessionCleanup, "")
			expires := time.Now().Add(interval)
			job.NotAfter = &expires
			if err := jobQueue.Enqueue(ctx, job); err != nil {
				log.Warn("cleanup_enqueue_failed", zap.Error(err))
			}
		}
	}
}
