package outbox

import (
	"context"
	"time"

	"ledger/internal/domain"
	kafka_infra "ledger/internal/infrastructure/kafka"

	"go.uber.org/zap"
)

type OutboxRepository interface {
	GetPendingMessagesTx(ctx context.Context, querier domain.Querier, limit int) ([]domain.OutboxMessage, error)
	MarkMessagesAsSentTx(ctx context.Context, querier domain.Querier, ids []string) error
	MarkMessagesAsFailedTx(ctx context.Context, querier domain.Querier, ids []string) error
}

// Processor drains the transactional outbox: every poll interval it claims a
// batch of pending messages, publishes them to Kafka and marks them sent (or
// failed) in the same database transaction that claimed them.
type Processor struct {
	tx           domain.TxManager
	outboxRepo   OutboxRepository
	producer     kafka_infra.Producer
	pollInterval time.Duration
	batchSize    int
	logger       *zap.Logger
}

func NewProcessor(
	tx domain.TxManager,
	outboxRepo OutboxRepository,
	producer kafka_infra.Producer,
	pollInterval time.Duration,
	batchSize int,
	logger *zap.Logger,
) *Processor {
	return &Processor{
		tx:           tx,
		outboxRepo:   outboxRepo,
		producer:     producer,
		pollInterval: pollInterval,
		batchSize:    batchSize,
		logger:       logger,
	}
}

// Start blocks until ctx is cancelled.
func (p *Processor) Start(ctx context.Context) {
	p.logger.Info("Starting outbox processor", zap.Duration("poll_interval", p.pollInterval))
	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Outbox processor stopping")
			return
		case <-ticker.C:
			p.ProcessBatch(ctx)
		}
	}
}

// ProcessBatch runs one claim-publish-mark cycle.
func (p *Processor) ProcessBatch(ctx context.Context) {
	err := p.tx.WithinTx(ctx, func(ctx context.Context, q domain.Querier) error {
		messages, err := p.outboxRepo.GetPendingMessagesTx(ctx, q, p.batchSize)
		if err != nil {
			return err
		}
		if len(messages) == 0 {
			return nil
		}

		p.logger.Debug("Publishing pending outbox messages", zap.Int("count", len(messages)))

		var sent, failed []string
		for _, msg := range messages {
			if err := p.producer.Produce(ctx, msg.Topic, msg.Key, msg.Payload); err != nil {
				p.logger.Error("Failed to publish outbox message",
					zap.String("message_id", msg.ID),
					zap.String("topic", msg.Topic),
					zap.Error(err))
				failed = append(failed, msg.ID)
				continue
			}
			sent = append(sent, msg.ID)
		}

		if err := p.outboxRepo.MarkMessagesAsSentTx(ctx, q, sent); err != nil {
			return err
		}
		return p.outboxRepo.MarkMessagesAsFailedTx(ctx, q, failed)
	})
	if err != nil {
		p.logger.Error("Outbox batch failed", zap.Error(err))
	}
}
