package kafka_client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/confluentinc/confluent-kafka-go/kafka"
)

type MessageIterator struct {
	consumer *kafka.Consumer
}

func NewMessageIterator(consumer *kafka.Consumer) *MessageIterator {
	return &MessageIterator{consumer: consumer}
}

// Next blocks until a message arrives, the context ends, or reads keep
// failing. Poll timeouts are not failures; they just re-check the context.
func (it *MessageIterator) Next(ctx context.Context) (*kafka.Message, error) {
	if it.consumer == nil {
		return nil, errors.New("kafka consumer has not been initialized")
	}

	failures := 0
	for {
		select {
		case <-ctx.Done():
			slog.Warn("[MessageIterator] Context cancelled, stopping iterator")
			return nil, ctx.Err()
		default:
		}

		msg, err := it.consumer.ReadMessage(POLL_TIMEOUT)
		if err == nil {
			return msg, nil
		}

		if kafkaErr, ok := err.(kafka.Error); ok {
			if kafkaErr.Code() == kafka.ErrTimedOut {
				continue
			}
			if kafkaErr.Code() == kafka.ErrAllBrokersDown {
				slog.Error("[MessageIterator] All Kafka brokers are down. Aborting")
				return nil, err
			}
		}

		failures++
		if failures >= MAX_RETRIES {
			return nil, fmt.Errorf("failed to read message after %d retries: %w", MAX_RETRIES, err)
		}

		slog.Warn("[MessageIterator] Failed to read message, retrying...",
			slog.Int("attempt", failures),
			slog.Int("max_retries", MAX_RETRIES),
			slog.String("error", err.Error()))
		time.Sleep(RETRY_DELAY)
	}
}
