package kafka_client

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/confluentinc/confluent-kafka-go/kafka"

	"github.com/tidewave/threadflow/internal/models"
)

// Publisher enqueues work items for the consumer fleet. It is used by admin
// tooling, not the pipeline itself.
type Publisher struct {
	producer *kafka.Producer
}

func NewPublisher(cfg KafkaConfig) (*Publisher, error) {
	slog.Info("[KafkaClient] Initializing Kafka Producer...")

	p, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers":  cfg.Broker,
		"enable.idempotence": true,
		"acks":               "all",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create producer: %w", err)
	}

	slog.Info("[KafkaClient] Kafka Producer initialized successfully")
	return &Publisher{producer: p}, nil
}

func (p *Publisher) Close() {
	slog.Info("[KafkaClient] Flushing Kafka producer before shutdown...")
	if remaining := p.producer.Flush(5000); remaining > 0 {
		slog.Warn("[KafkaClient] Not all messages were delivered before shutdown",
			slog.Int("remaining", remaining))
	}
	p.producer.Close()
}

// PublishWorkItem sends one dump key to topic and waits for the delivery
// report, so callers learn about broker rejections synchronously.
func (p *Publisher) PublishWorkItem(topic string, item models.WorkItem) error {
	jsonData, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("failed to marshal work item: %w", err)
	}

	deliveries := make(chan kafka.Event, 1)
	msg := &kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &topic, Partition: kafka.PartitionAny},
		Key:            []byte(item.Key),
		Value:          jsonData,
	}

	if err := p.producer.Produce(msg, deliveries); err != nil {
		return fmt.Errorf("failed to produce message: %w", err)
	}

	ev := <-deliveries
	delivered, ok := ev.(*kafka.Message)
	if !ok {
		return fmt.Errorf("unexpected delivery event: %v", ev)
	}
	if delivered.TopicPartition.Error != nil {
		return fmt.Errorf("delivery failed: %w", delivered.TopicPartition.Error)
	}

	slog.Info("[KafkaClient] Work item published",
		slog.String("topic", topic),
		slog.String("key", item.Key))
	return nil
}
