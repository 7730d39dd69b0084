package worker

import (
	"context"
	"time"

	"github.com/RoyceAzure/lab/storefront/internal/domain/model"
	"github.com/RoyceAzure/lab/storefront/internal/infra/repository/db"
	"github.com/RoyceAzure/lab/storefront/internal/metrics"
	"github.com/rs/zerolog"
)

type Publisher interface {
	Publish(ctx context.Context, msgs ...model.OutboxMessage) error
}

type RelayConfig struct {
	PollInterval time.Duration
	BatchSize    int
}

// OutboxRelay 定期把未送出的 outbox 訊息送到 kafka, 成功後標記 sent_at
// 至少送達一次, 消費端以 event_id 去重
type OutboxRelay struct {
	store     db.IOutboxRepository
	publisher Publisher
	cfg       RelayConfig
	metrics   *metrics.ServerMetrics
	logger    zerolog.Logger
}

func NewOutboxRelay(store db.IOutboxRepository, publisher Publisher, cfg RelayConfig, m *metrics.ServerMetrics, logger zerolog.Logger) *OutboxRelay {
	if store == nil {
		panic("store cannot be nil")
	}
	if publisher == nil {
		panic("publisher cannot be nil")
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	return &OutboxRelay{
		store:     store,
		publisher: publisher,
		cfg:       cfg,
		metrics:   m,
		logger:    logger.With().Str("worker", "outbox_relay").Logger(),
	}
}

// Run 阻塞直到 ctx 結束
func (r *OutboxRelay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()

	r.logger.Info().Dur("interval", r.cfg.PollInterval).Msg("outbox relay started")
	for {
		select {
		case <-ctx.Done():
			r.logger.Info().Msg("outbox relay stopped")
			return nil
		case <-ticker.C:
			if _, err := r.Flush(ctx); err != nil && ctx.Err() == nil {
				r.logger.Error().Err(err).Msg("outbox flush failed")
			}
		}
	}
}

// Flush 送出一批, 遇到失敗就停止, 剩下的留給下一輪
func (r *OutboxRelay) Flush(ctx context.Context) (int, error) {
	msgs, err := r.store.FetchPendingOutbox(ctx, r.cfg.BatchSize)
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, msg := range msgs {
		if err := r.publisher.Publish(ctx, msg); err != nil {
			r.metrics.ObserveOutbox(msg.Topic, "error")
			r.logger.Warn().Err(err).
				Int64("outbox_id", msg.ID).
				Str("event_id", msg.EventID).
				Str("topic", msg.Topic).
				Msg("publish outbox message failed")
			return sent, err
		}
		if err := r.store.MarkOutboxSent(ctx, msg.ID); err != nil {
			return sent, err
		}
		r.metrics.ObserveOutbox(msg.Topic, "ok")
		sent++
	}
	return sent, nil
}
