package producer

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"github.com/RoyceAzure/lab/storefront/internal/domain/model"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

var ErrProducerClosed = errors.New("producer is closed")

// IOrderEventProducer 將 outbox 訊息送到 kafka
type IOrderEventProducer interface {
	Publish(ctx context.Context, msgs ...model.OutboxMessage) error
	Close() error
}

// MessageWriter *kafka.Writer 的子集合
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Config struct {
	Brokers      []string
	BatchTimeout time.Duration
	MaxAttempts  int
}

type OrderEventProducer struct {
	writer MessageWriter
	closed atomic.Bool
}

// NewOrderEventProducer writer 不指定 topic, 由每則訊息自帶
// 同一訂單的事件以訂單 id 為 key, Hash balancer 保證進同一個 partition
func NewOrderEventProducer(cfg Config, logger zerolog.Logger) (*OrderEventProducer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers are required")
	}
	if cfg.BatchTimeout <= 0 {
		cfg.BatchTimeout = 50 * time.Millisecond
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.Hash{},
		BatchTimeout:           cfg.BatchTimeout,
		RequiredAcks:           kafka.RequireAll,
		MaxAttempts:            cfg.MaxAttempts,
		AllowAutoTopicCreation: true,
		Transport: &kafka.Transport{
			Dial: func(ctx context.Context, network string, address string) (net.Conn, error) {
				dialer := &kafka.Dialer{
					Timeout:   10 * time.Second,
					DualStack: true,
					KeepAlive: 30 * time.Second,
				}
				return dialer.DialContext(ctx, network, address)
			},
		},
		ErrorLogger: kafka.LoggerFunc(func(msg string, args ...interface{}) {
			logger.Error().Msgf("kafka producer error: "+msg, args...)
		}),
	}
	return NewOrderEventProducerWithWriter(writer), nil
}

func NewOrderEventProducerWithWriter(writer MessageWriter) *OrderEventProducer {
	if writer == nil {
		panic("writer cannot be nil")
	}
	return &OrderEventProducer{writer: writer}
}

// Publish 同步送出, 全部寫入才回傳
func (p *OrderEventProducer) Publish(ctx context.Context, msgs ...model.OutboxMessage) error {
	if p.closed.Load() {
		return ErrProducerClosed
	}
	if len(msgs) == 0 {
		return nil
	}

	kafkaMsgs := make([]kafka.Message, len(msgs))
	for i, msg := range msgs {
		kafkaMsgs[i] = toKafkaMessage(msg)
	}
	if err := p.writer.WriteMessages(ctx, kafkaMsgs...); err != nil {
		return fmt.Errorf("publish %d order events: %w", len(msgs), err)
	}
	return nil
}

func (p *OrderEventProducer) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	return p.writer.Close()
}

func toKafkaMessage(msg model.OutboxMessage) kafka.Message {
	return kafka.Message{
		Topic: msg.Topic,
		Key:   []byte(msg.Key),
		Value: msg.Payload,
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(msg.EventID)},
		},
		Time: msg.CreatedAt,
	}
}

var _ IOrderEventProducer = (*OrderEventProducer)(nil)
