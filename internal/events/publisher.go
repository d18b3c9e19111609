package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
	"go.uber.org/zap"

	"github.com/stagepass/backoffice/internal/domain"
)

const (
	TopicSaleCompleted = "sale.completed"
	TopicSaleRefunded  = "sale.refunded"
)

// SaleEvent is the payload published for sale lifecycle changes.
type SaleEvent struct {
	SaleID      string    `json:"sale_id"`
	UserID      string    `json:"user_id"`
	Status      string    `json:"status"`
	TotalAmount string    `json:"total_amount"`
	TicketCount int       `json:"ticket_count"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// Publisher emits sale lifecycle events. Publishing is best effort and
// must never fail the sale itself.
type Publisher interface {
	SaleCompleted(ctx context.Context, sale *domain.RecordedSale)
	SaleRefunded(ctx context.Context, sale *domain.RecordedSale)
	Close()
}

type kafkaPublisher struct {
	client *kgo.Client
	logger *zap.Logger
}

// NewKafkaPublisher connects a franz-go producer to the given brokers.
func NewKafkaPublisher(brokers []string, logger *zap.Logger) (Publisher, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ProducerBatchMaxBytes(1e6),
		kgo.RequiredAcks(kgo.AllISRAcks()),
	)
	if err != nil {
		return nil, err
	}
	return &kafkaPublisher{client: client, logger: logger}, nil
}

func (p *kafkaPublisher) SaleCompleted(ctx context.Context, sale *domain.RecordedSale) {
	p.publish(ctx, TopicSaleCompleted, sale)
}

func (p *kafkaPublisher) SaleRefunded(ctx context.Context, sale *domain.RecordedSale) {
	p.publish(ctx, TopicSaleRefunded, sale)
}

func (p *kafkaPublisher) publish(ctx context.Context, topic string, sale *domain.RecordedSale) {
	event := SaleEvent{
		SaleID:      sale.ID,
		UserID:      sale.UserID,
		Status:      sale.TransactionStatus,
		TotalAmount: sale.TotalAmount.String(),
		TicketCount: len(sale.TicketIDs),
		OccurredAt:  time.Now().UTC(),
	}
	payload, err := json.Marshal(event)
	if err != nil {
		p.logger.Error("failed to marshal sale event", zap.Error(err))
		return
	}

	record := &kgo.Record{Topic: topic, Key: []byte(sale.ID), Value: payload}
	p.client.Produce(ctx, record, func(_ *kgo.Record, err error) {
		if err != nil {
			p.logger.Error("failed to publish sale event",
				zap.String("topic", topic),
				zap.String("sale_id", sale.ID),
				zap.Error(err))
		}
	})
}

func (p *kafkaPublisher) Close() {
	p.client.Close()
}

// NoopPublisher drops all events. Used when Kafka is disabled and in
// tests.
type NoopPublisher struct{}

func (NoopPublisher) SaleCompleted(context.Context, *domain.RecordedSale) {}
func (NoopPublisher) SaleRefunded(context.Context, *domain.RecordedSale)  {}
func (NoopPublisher) Close()                                              {}
