package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/dejobratic/stockledger/internal/orders/domain"
	kafkago "github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
)

// MessageWriter is the subset of *kafkago.Writer used by the producer.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Producer publishes order lifecycle events as JSON messages keyed by order id.
type Producer struct {
	writer MessageWriter
	now    func() time.Time
}

// NewWriter builds a kafka-go writer that routes each message to its own topic.
func NewWriter(brokers []string) *kafkago.Writer {
	return &kafkago.Writer{
		Addr:                   kafkago.TCP(brokers...),
		Balancer:               &kafkago.Hash{},
		BatchTimeout:           10 * time.Millisecond,
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
}

func NewProducer(writer MessageWriter) *Producer {
	return &Producer{
		writer: writer,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (p *Producer) PublishOrderPlaced(ctx context.Context, order domain.Order) error {
	return p.publish(ctx, TopicOrderPlaced, newOrderEvent(TopicOrderPlaced, order, p.now()))
}

func (p *Producer) PublishOrderCancelled(ctx context.Context, order domain.Order) error {
	return p.publish(ctx, TopicOrderCancelled, newOrderEvent(TopicOrderCancelled, order, p.now()))
}

func (p *Producer) PublishOrderStatusChanged(ctx context.Context, order domain.Order, from domain.OrderStatus) error {
	event := newOrderEvent(TopicOrderStatusChanged, order, p.now())
	event.PreviousStatus = string(from)
	return p.publish(ctx, TopicOrderStatusChanged, event)
}

func (p *Producer) Close() error {
	return p.writer.Close()
}

func (p *Producer) publish(ctx context.Context, topic string, event OrderEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", topic, err)
	}

	carrier := headerCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, &carrier)

	msg := kafkago.Message{
		Topic:   topic,
		Key:     []byte(strconv.FormatInt(event.OrderID, 10)),
		Value:   payload,
		Headers: carrier.headers,
		Time:    event.OccurredAt,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write %s event: %w", topic, err)
	}
	return nil
}

// headerCarrier adapts kafka message headers to the otel text map carrier.
type headerCarrier struct {
	headers []kafkago.Header
}

func (c *headerCarrier) Get(key string) string {
	for _, h := range c.headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func (c *headerCarrier) Set(key, value string) {
	for i, h := range c.headers {
		if h.Key == key {
			c.headers[i].Value = []byte(value)
			return
		}
	}
	c.headers = append(c.headers, kafkago.Header{Key: key, Value: []byte(value)})
}

func (c *headerCarrier) Keys() []string {
	keys := make([]string, 0, len(c.headers))
	for _, h := range c.headers {
		keys = append(keys, h.Key)
	}
	return keys
}
