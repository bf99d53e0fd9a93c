package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"adminauth-service/internal/domain/auth"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const schemaVersion = "1.0"

// NewSaramaProducer builds the async producer used for audit events.
func NewSaramaProducer(brokers []string) (sarama.AsyncProducer, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.RequiredAcks = sarama.WaitForLocal
	cfg.Producer.Compression = sarama.CompressionSnappy
	cfg.Producer.Flush.Frequency = 100 * time.Millisecond
	cfg.Producer.Flush.Messages = 100
	cfg.Producer.Retry.Max = 3
	cfg.Producer.Return.Successes = false
	cfg.Producer.Return.Errors = true
	cfg.Metadata.Retry.Max = 3
	cfg.Metadata.Retry.Backoff = 250 * time.Millisecond

	producer, err := sarama.NewAsyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	return producer, nil
}

// KafkaPublisher writes events as JSON envelopes to one topic, keyed by user
// id so a user's events stay in order within a partition.
type KafkaPublisher struct {
	producer sarama.AsyncProducer
	topic    string
	service  string
	logger   *zap.Logger
	done     chan struct{}
}

type envelope struct {
	EventID   string            `json:"event_id"`
	EventType string            `json:"event_type"`
	UserID    string            `json:"user_id,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	Version   string            `json:"version"`
	Payload   auth.Event        `json:"payload"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

func NewKafkaPublisher(producer sarama.AsyncProducer, topic, service string, logger *zap.Logger) *KafkaPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &KafkaPublisher{
		producer: producer,
		topic:    topic,
		service:  service,
		logger:   logger,
		done:     make(chan struct{}),
	}
	go p.handleErrors()
	return p
}

func (p *KafkaPublisher) handleErrors() {
	defer close(p.done)
	for perr := range p.producer.Errors() {
		if perr == nil {
			continue
		}
		p.logger.Error("Kafka producer error",
			zap.Error(perr.Err),
			zap.String("topic", perr.Msg.Topic),
		)
	}
}

// Publish hands the message to the producer without waiting. With the
// brokers down the producer's input buffer fills up and events are dropped.
func (p *KafkaPublisher) Publish(_ context.Context, ev auth.Event) error {
	ts := ev.OccurredAt
	if ts.IsZero() {
		ts = time.Now()
	}

	env := envelope{
		EventID:   uuid.NewString(),
		EventType: string(ev.Type),
		Timestamp: ts.UTC(),
		Version:   schemaVersion,
		Payload:   ev,
		Metadata:  map[string]string{"service": p.service},
	}
	if ev.UserID != 0 {
		env.UserID = strconv.FormatInt(ev.UserID, 10)
	}

	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal event envelope: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(env.UserID),
		Value: sarama.ByteEncoder(data),
	}

	select {
	case p.producer.Input() <- msg:
		return nil
	default:
		p.logger.Warn("kafka input full, dropping event",
			zap.String("event", string(ev.Type)),
			zap.Int64("user_id", ev.UserID),
		)
		return ErrQueueFull
	}
}

// Close flushes pending messages and waits for the error drain to finish.
func (p *KafkaPublisher) Close() error {
	err := p.producer.Close()
	<-p.done
	if err != nil {
		return fmt.Errorf("close kafka producer: %w", err)
	}
	return nil
}
