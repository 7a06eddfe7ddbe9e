package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

// Publisher emits order lifecycle events. Implemented by Producer; a no-op
// stands in when no brokers are configured.
type Publisher interface {
	PublishOrderCreated(storeID string, payload OrderCreatedPayload)
	PublishOrderStatusChanged(storeID string, payload OrderStatusChangedPayload)
	Close() error
}

// Producer buffers events in a channel and flushes them to Kafka from a
// single goroutine. Publishing never blocks order commits: when the
// buffer is full the event is dropped and logged.
type Producer struct {
	writer  *kafka.Writer
	inbox   chan kafka.Message
	done    chan struct{}
	service string
	logger  *slog.Logger
}

// NewProducer creates a producer for the given brokers. Start must be
// called before publishing.
func NewProducer(brokers []string, service string, buf int, logger *slog.Logger) *Producer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Producer{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
		},
		inbox:   make(chan kafka.Message, buf),
		done:    make(chan struct{}),
		service: service,
		logger:  logger,
	}
}

// Start runs the flush loop until ctx is canceled, then drains whatever
// is buffered and closes the writer.
func (p *Producer) Start(ctx context.Context) {
	go func() {
		defer close(p.done)
		for {
			select {
			case <-ctx.Done():
				for {
					select {
					case m := <-p.inbox:
						p.write(m)
					default:
						_ = p.writer.Close()
						return
					}
				}
			case m := <-p.inbox:
				p.write(m)
			}
		}
	}()
}

func (p *Producer) write(m kafka.Message) {
	if err := p.writer.WriteMessages(context.Background(), m); err != nil {
		p.logger.Error("failed to publish event",
			slog.String("topic", m.Topic),
			slog.String("error", err.Error()),
		)
	}
}

// PublishOrderCreated emits an OrderCreated event.
func (p *Producer) PublishOrderCreated(storeID string, payload OrderCreatedPayload) {
	p.publish(TopicOrderCreated, TypeOrderCreated, storeID, payload.OrderID, payload)
}

// PublishOrderStatusChanged emits an OrderStatusChanged event.
func (p *Producer) PublishOrderStatusChanged(storeID string, payload OrderStatusChangedPayload) {
	p.publish(TopicOrderStatusChanged, TypeOrderStatusChanged, storeID, payload.OrderID, payload)
}

func (p *Producer) publish(topic, eventType, storeID, orderID string, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		p.logger.Error("failed to marshal event payload", slog.String("error", err.Error()))
		return
	}
	env := Envelope{
		EventID:    uuid.NewString(),
		EventType:  eventType,
		OccurredAt: time.Now().UTC(),
		Producer:   p.service,
		StoreID:    storeID,
		Payload:    raw,
	}
	value, err := json.Marshal(env)
	if err != nil {
		p.logger.Error("failed to marshal event envelope", slog.String("error", err.Error()))
		return
	}

	msg := kafka.Message{
		Topic: topic,
		Key:   PartitionKey(orderID),
		Value: value,
		Time:  env.OccurredAt,
	}
	select {
	case p.inbox <- msg:
	default:
		p.logger.Warn("event buffer full, dropping event",
			slog.String("event_type", eventType),
			slog.String("order_id", orderID),
		)
	}
}

// Close waits for the flush loop (stopped by canceling the Start context)
// to finish draining.
func (p *Producer) Close() error {
	<-p.done
	return nil
}

// NopPublisher discards events; used when no brokers are configured and
// in tests.
type NopPublisher struct{}

func (NopPublisher) PublishOrderCreated(string, OrderCreatedPayload)             {}
func (NopPublisher) PublishOrderStatusChanged(string, OrderStatusChangedPayload) {}
func (NopPublisher) Close() error                                               { return nil }
