package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
)

// KafkaConfig holds producer settings.
type KafkaConfig struct {
	Brokers           string
	Topic             string
	EnableIdempotence bool
	Acks              string
}

// KafkaPublisher writes moderation events to a Kafka topic keyed by post id, so all
// events for one post land on the same partition in order.
type KafkaPublisher struct {
	producer *kafka.Producer
	topic    string
	logger   *slog.Logger
	done     chan struct{}
}

var _ SyncPublisher = (*KafkaPublisher)(nil)

// NewKafkaPublisher creates an idempotent producer and starts its delivery report loop.
func NewKafkaPublisher(cfg KafkaConfig, logger *slog.Logger) (*KafkaPublisher, error) {
	if cfg.Acks == "" {
		cfg.Acks = "all"
	}
	p, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers":                     cfg.Brokers,
		"enable.idempotence":                    cfg.EnableIdempotence,
		"acks":                                  cfg.Acks,
		"max.in.flight.requests.per.connection": 5,
		"retries":                               2147483647,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create producer: %w", err)
	}

	pub := &KafkaPublisher{
		producer: p,
		topic:    cfg.Topic,
		logger:   logger,
		done:     make(chan struct{}),
	}
	go pub.handleDeliveryReports()

	logger.Info("Kafka moderation publisher initialized",
		"brokers", cfg.Brokers,
		"topic", cfg.Topic,
		"idempotence", cfg.EnableIdempotence)

	return pub, nil
}

// Publish enqueues the event; delivery is confirmed asynchronously.
func (p *KafkaPublisher) Publish(ctx context.Context, event ModerationEvent) error {
	msg, err := p.message(event)
	if err != nil {
		return err
	}
	if err := p.producer.Produce(msg, nil); err != nil {
		return fmt.Errorf("failed to produce %s event: %w", event.Type, err)
	}
	p.logger.DebugContext(ctx, "moderation event queued",
		"type", event.Type,
		"post_id", event.PostID,
		"size", len(msg.Value))
	return nil
}

// PublishSync produces the event and waits for the broker's acknowledgement.
func (p *KafkaPublisher) PublishSync(ctx context.Context, event ModerationEvent) error {
	msg, err := p.message(event)
	if err != nil {
		return err
	}

	deliveryChan := make(chan kafka.Event, 1)
	if err := p.producer.Produce(msg, deliveryChan); err != nil {
		return fmt.Errorf("failed to produce %s event: %w", event.Type, err)
	}

	select {
	case e := <-deliveryChan:
		m, ok := e.(*kafka.Message)
		if !ok {
			return fmt.Errorf("unexpected delivery event %T", e)
		}
		if m.TopicPartition.Error != nil {
			return fmt.Errorf("delivery failed: %w", m.TopicPartition.Error)
		}
		p.logger.InfoContext(ctx, "moderation event delivered",
			"type", event.Type,
			"partition", m.TopicPartition.Partition,
			"offset", m.TopicPartition.Offset)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *KafkaPublisher) message(event ModerationEvent) (*kafka.Message, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event: %w", err)
	}
	topic := p.topic
	return &kafka.Message{
		TopicPartition: kafka.TopicPartition{
			Topic:     &topic,
			Partition: kafka.PartitionAny,
		},
		Key:   []byte(event.PostID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(event.Type)},
		},
	}, nil
}

func (p *KafkaPublisher) handleDeliveryReports() {
	defer close(p.done)
	for e := range p.producer.Events() {
		switch ev := e.(type) {
		case *kafka.Message:
			if ev.TopicPartition.Error != nil {
				p.logger.Error("Moderation event delivery failed",
					"topic", *ev.TopicPartition.Topic,
					"error", ev.TopicPartition.Error)
			}
		case kafka.Error:
			p.logger.Warn("Kafka producer error", "code", ev.Code(), "error", ev)
		}
	}
}

// Close flushes outstanding messages for up to ten seconds and closes the producer.
func (p *KafkaPublisher) Close() {
	p.logger.Info("Closing Kafka producer...")
	if remaining := p.producer.Flush(10000); remaining > 0 {
		p.logger.Error("Some moderation events were not delivered", "count", remaining)
	}
	p.producer.Close()
	<-p.done
	p.logger.Info("Kafka producer closed")
}
