package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"gitlab.ozon.dev/pupkingeorgij/foodshare/internal/db"
	"gitlab.ozon.dev/pupkingeorgij/foodshare/internal/metrics"
	"gitlab.ozon.dev/pupkingeorgij/foodshare/internal/repository"
	"gitlab.ozon.dev/pupkingeorgij/foodshare/internal/storage"
)

// statusWriteTimeout bounds task status writes, which outlive a cancelled
// poll context so that a task never stays PROCESSING after shutdown.
const statusWriteTimeout = 5 * time.Second

type PublisherConfig struct {
	PollInterval time.Duration
	BatchSize    int
	MaxAttempts  int
}

// Publisher drains the outbox into the producer. Tasks are claimed in one
// transaction and sent outside it; a failed send is retried on a later tick
// until MaxAttempts is reached.
type Publisher struct {
	db       db.DB
	repo     storage.OutboxTaskRepository
	producer Producer
	config   PublisherConfig
	logger   *zap.Logger
	now      func() time.Time
}

func NewPublisher(database db.DB, repo storage.OutboxTaskRepository, producer Producer, config PublisherConfig, logger *zap.Logger) *Publisher {
	return &Publisher{
		db:       database,
		repo:     repo,
		producer: producer,
		config:   config,
		logger:   logger,
		now:      time.Now,
	}
}

// Run polls until ctx is cancelled, then closes the producer.
func (p *Publisher) Run(ctx context.Context) error {
	p.logger.Info("outbox publisher started",
		zap.Duration("poll_interval", p.config.PollInterval),
		zap.Int("batch_size", p.config.BatchSize),
	)
	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := p.ProcessBatch(ctx); err != nil && ctx.Err() == nil {
				p.logger.Error("outbox publisher batch failed", zap.Error(err))
			}
		case <-ctx.Done():
			p.logger.Info("outbox publisher stopping")
			if err := p.producer.Close(); err != nil {
				p.logger.Error("failed to close producer", zap.Error(err))
			}
			return nil
		}
	}
}

// ProcessBatch publishes up to BatchSize tasks and reports how many were sent.
func (p *Publisher) ProcessBatch(ctx context.Context) (int, error) {
	tasks, err := p.claim(ctx)
	if err != nil {
		return 0, err
	}
	if len(tasks) == 0 {
		return 0, nil
	}
	p.logger.Debug("outbox publisher fetched tasks", zap.Int("count", len(tasks)))

	sent := 0
	for i, task := range tasks {
		if err := ctx.Err(); err != nil {
			p.release(ctx, tasks[i:])
			return sent, err
		}
		if err := p.publish(ctx, task); err != nil {
			p.logger.Warn("outbox task not published",
				zap.String("task_id", task.ID.String()),
				zap.Int("attempt", task.Attempts+1),
				zap.Error(err),
			)
			continue
		}
		sent++
	}
	return sent, nil
}

func (p *Publisher) claim(ctx context.Context) ([]*repository.OutboxTask, error) {
	tx, err := p.db.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction for fetching tasks: %w", err)
	}
	defer func() {
		_ = tx.Rollback(context.Background())
	}()

	tasks, err := p.repo.GetProcessableTasksTx(ctx, tx, p.config.BatchSize, p.config.MaxAttempts)
	if err != nil {
		return nil, fmt.Errorf("failed to get processable tasks: %w", err)
	}
	for _, task := range tasks {
		err := p.repo.UpdateTaskStatusTx(ctx, tx, task.ID, repository.TaskStatusProcessing, task.Attempts, nil, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to mark task %s as PROCESSING: %w", task.ID, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit claimed tasks: %w", err)
	}
	return tasks, nil
}

// release hands claimed but unsent tasks back in the state they were
// claimed from.
func (p *Publisher) release(ctx context.Context, tasks []*repository.OutboxTask) {
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), statusWriteTimeout)
	defer cancel()
	for _, task := range tasks {
		err := p.repo.UpdateTaskStatus(writeCtx, p.db, task.ID, task.Status, task.Attempts, task.LastError, nil)
		if err != nil {
			p.logger.Error("failed to release outbox task",
				zap.String("task_id", task.ID.String()),
				zap.Error(err),
			)
		}
	}
}

func (p *Publisher) publish(ctx context.Context, task *repository.OutboxTask) error {
	sendErr := p.producer.SendMessage(ctx, task.Topic, messageKey(task), task.Payload)

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), statusWriteTimeout)
	defer cancel()
	if sendErr != nil {
		metrics.OutboxPublishedTotal.WithLabelValues("failed").Inc()
		attempts := task.Attempts + 1
		errMsg := sendErr.Error()
		if attempts >= p.config.MaxAttempts {
			p.logger.Error("outbox task exhausted its attempts",
				zap.String("task_id", task.ID.String()),
				zap.Int("attempts", attempts),
			)
		}
		if err := p.repo.UpdateTaskStatus(writeCtx, p.db, task.ID, repository.TaskStatusFailed, attempts, &errMsg, nil); err != nil {
			return fmt.Errorf("failed to record send failure (%v): %w", sendErr, err)
		}
		return sendErr
	}

	metrics.OutboxPublishedTotal.WithLabelValues("done").Inc()
	done := p.now().UTC()
	if err := p.repo.UpdateTaskStatus(writeCtx, p.db, task.ID, repository.TaskStatusDone, task.Attempts+1, nil, &done); err != nil {
		return fmt.Errorf("failed to mark task %s as DONE: %w", task.ID, err)
	}
	return nil
}

// messageKey keys listing events by listing so that one listing's events
// land on one partition in order.
func messageKey(task *repository.OutboxTask) []byte {
	var event struct {
		ListingID string `json:"listing_id"`
	}
	if err := json.Unmarshal(task.Payload, &event); err == nil && event.ListingID != "" {
		return []byte(event.ListingID)
	}
	return []byte(task.ID.String())
}
