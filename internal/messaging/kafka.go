package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"github.com/moviepulse/kino/internal/config"
	"github.com/moviepulse/kino/pkg/models"
)

const (
	WatchEventsDLQTopic = "watch-events-dlq"
	ConsumerGroup       = "watch-log-writers"
)

// WatchEventMessage is the wire envelope for one watch event. Messages are
// keyed by user so a user's events stay ordered within a partition.
type WatchEventMessage struct {
	Event      models.WatchEvent `json:"event"`
	Timestamp  time.Time         `json:"timestamp"`
	RetryCount int               `json:"retry_count"`
}

type KafkaProducer struct {
	writer *kafka.Writer
	logger *logrus.Logger
}

type KafkaConsumer struct {
	reader *kafka.Reader
	logger *logrus.Logger
}

type MessageBus struct {
	producer  *KafkaProducer
	consumer  *KafkaConsumer
	dlqWriter *kafka.Writer
	logger    *logrus.Logger
}

func NewMessageBus(cfg *config.Config, logger *logrus.Logger) (*MessageBus, error) {
	topic := cfg.Kafka.Topics.WatchEvents

	producer := &KafkaProducer{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Kafka.Brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{}, // keyed by user id
			RequiredAcks: kafka.RequireOne,
			Async:        false,
			BatchTimeout: 10 * time.Millisecond,
			BatchSize:    100,
		},
		logger: logger,
	}

	consumer := &KafkaConsumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:        cfg.Kafka.Brokers,
			Topic:          topic,
			GroupID:        ConsumerGroup,
			MinBytes:       10e3, // 10KB
			MaxBytes:       10e6, // 10MB
			CommitInterval: time.Second,
			StartOffset:    kafka.LastOffset,
		}),
		logger: logger,
	}

	dlqWriter := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Kafka.Brokers...),
		Topic:        WatchEventsDLQTopic,
		RequiredAcks: kafka.RequireOne,
		Async:        false,
	}

	return &MessageBus{
		producer:  producer,
		consumer:  consumer,
		dlqWriter: dlqWriter,
		logger:    logger,
	}, nil
}

// PublishWatchEvent enqueues a watch event for asynchronous persistence.
func (mb *MessageBus) PublishWatchEvent(event models.WatchEvent) error {
	message := WatchEventMessage{
		Event:     event,
		Timestamp: time.Now(),
	}

	messageBytes, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal watch event: %w", err)
	}

	kafkaMessage := kafka.Message{
		Key:   []byte(event.UserID.String()),
		Value: messageBytes,
		Headers: []kafka.Header{
			{Key: "log_id", Value: []byte(event.LogID.String())},
			{Key: "user_id", Value: []byte(event.UserID.String())},
			{Key: "timestamp", Value: []byte(message.Timestamp.Format(time.RFC3339))},
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := mb.producer.writer.WriteMessages(ctx, kafkaMessage); err != nil {
		mb.logger.WithError(err).WithField("log_id", event.LogID).Error("Failed to publish watch event to Kafka")
		return fmt.Errorf("failed to write watch event to Kafka: %w", err)
	}

	mb.logger.WithFields(logrus.Fields{
		"log_id":   event.LogID,
		"user_id":  event.UserID,
		"movie_id": event.MovieID,
	}).Debug("Watch event published to Kafka")

	return nil
}

// ConsumeWatchEvents reads watch events and hands each to the handler with
// retry and dead-lettering. Blocks until the context is cancelled.
func (mb *MessageBus) ConsumeWatchEvents(ctx context.Context, handler func(WatchEventMessage) error) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			message, err := mb.consumer.reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				mb.logger.WithError(err).Error("Failed to read watch event from Kafka")
				continue
			}

			var watchMessage WatchEventMessage
			if err := json.Unmarshal(message.Value, &watchMessage); err != nil {
				mb.logger.WithError(err).Error("Failed to unmarshal watch event message")
				continue
			}

			if err := mb.processWithRetry(ctx, watchMessage, handler); err != nil {
				mb.logger.WithError(err).WithField("log_id", watchMessage.Event.LogID).Error("Failed to process watch event after retries")

				if dlqErr := mb.sendToDLQ(ctx, watchMessage, err); dlqErr != nil {
					mb.logger.WithError(dlqErr).Error("Failed to send watch event to DLQ")
				}
			}
		}
	}
}

func (mb *MessageBus) processWithRetry(ctx context.Context, message WatchEventMessage, handler func(WatchEventMessage) error) error {
	maxRetries := 3
	baseDelay := time.Second

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			delay := baseDelay * time.Duration(1<<uint(attempt-1))
			mb.logger.WithFields(logrus.Fields{
				"log_id":  message.Event.LogID,
				"attempt": attempt,
				"delay":   delay,
			}).Info("Retrying watch event processing")

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		message.RetryCount = attempt
		if err := handler(message); err != nil {
			mb.logger.WithError(err).WithFields(logrus.Fields{
				"log_id":  message.Event.LogID,
				"attempt": attempt,
			}).Warn("Watch event processing failed")

			if attempt == maxRetries {
				return fmt.Errorf("max retries exceeded: %w", err)
			}
			continue
		}

		return nil
	}

	return fmt.Errorf("unexpected retry loop exit")
}

func (mb *MessageBus) sendToDLQ(ctx context.Context, message WatchEventMessage, originalError error) error {
	dlqMessage := map[string]interface{}{
		"original_message": message,
		"error":            originalError.Error(),
		"dlq_timestamp":    time.Now(),
	}

	dlqBytes, err := json.Marshal(dlqMessage)
	if err != nil {
		return fmt.Errorf("failed to marshal DLQ message: %w", err)
	}

	kafkaMessage := kafka.Message{
		Key:   []byte(message.Event.LogID.String()),
		Value: dlqBytes,
		Headers: []kafka.Header{
			{Key: "log_id", Value: []byte(message.Event.LogID.String())},
			{Key: "error", Value: []byte(originalError.Error())},
		},
	}

	if err := mb.dlqWriter.WriteMessages(ctx, kafkaMessage); err != nil {
		return fmt.Errorf("failed to write message to DLQ: %w", err)
	}

	mb.logger.WithFields(logrus.Fields{
		"log_id": message.Event.LogID,
		"error":  originalError.Error(),
	}).Warn("Watch event sent to DLQ")

	return nil
}

func (mb *MessageBus) Close() error {
	var errors []error

	if err := mb.producer.writer.Close(); err != nil {
		errors = append(errors, fmt.Errorf("failed to close producer: %w", err))
	}

	if err := mb.consumer.reader.Close(); err != nil {
		errors = append(errors, fmt.Errorf("failed to close consumer: %w", err))
	}

	if err := mb.dlqWriter.Close(); err != nil {
		errors = append(errors, fmt.Errorf("failed to close DLQ writer: %w", err))
	}

	if len(errors) > 0 {
		return fmt.Errorf("errors closing message bus: %v", errors)
	}

	return nil
}

// GetMetrics returns consumer statistics for monitoring.
func (mb *MessageBus) GetMetrics() map[string]interface{} {
	stats := mb.consumer.reader.Stats()
	return map[string]interface{}{
		"consumer_lag":    stats.Lag,
		"consumer_offset": stats.Offset,
		"messages_read":   stats.Messages,
		"bytes_read":      stats.Bytes,
		"rebalances":      stats.Rebalances,
		"timeouts":        stats.Timeouts,
		"errors":          stats.Errors,
	}
}
