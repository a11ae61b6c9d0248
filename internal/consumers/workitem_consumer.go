package consumers

import (
	"context"
	"log/slog"

	"github.com/confluentinc/confluent-kafka-go/kafka"

	"github.com/tidewave/threadflow/internal/clients/kafka_client"
	"github.com/tidewave/threadflow/internal/models"
	"github.com/tidewave/threadflow/internal/pipeline"
)

// StartWorkItemConsumer reads work-item messages and drives each through the
// coordinator. Offsets commit only after processing, so a crash mid-item
// redelivers it; upsert semantics make the redelivery harmless.
func StartWorkItemConsumer(ctx context.Context, consumer *kafka.Consumer, coordinator *pipeline.Coordinator) {
	iterator := kafka_client.NewMessageIterator(consumer)
	committer := kafka_client.NewCommitHandler(consumer)

	slog.Info("[WorkItemConsumer] Listening for messages...")

	for {
		select {
		case <-ctx.Done():
			slog.Warn("[WorkItemConsumer] Stopping consumer...")
			return
		default:
			msg, err := iterator.Next(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				slog.Error("[WorkItemConsumer] Failed to read message",
					slog.String("error", err.Error()))
				continue
			}

			items, err := models.DecodeWorkItems(msg.Value)
			if err != nil {
				slog.Warn("[WorkItemConsumer] Skipping undecodable message",
					slog.String("error", err.Error()))
				// Commit anyway: redelivering garbage never makes it parse.
				commitMessage(ctx, committer, msg)
				continue
			}

			coordinator.Process(ctx, items)
			commitMessage(ctx, committer, msg)
		}
	}
}

func commitMessage(ctx context.Context, committer *kafka_client.CommitHandler, msg *kafka.Message) {
	if err := committer.Commit(ctx, msg); err != nil {
		slog.Warn("[WorkItemConsumer] Failed to commit offset",
			slog.String("error", err.Error()))
	}
}
