package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"github.com/tidewave/threadflow/config"
	"github.com/tidewave/threadflow/internal/ai"
	"github.com/tidewave/threadflow/internal/clients"
	"github.com/tidewave/threadflow/internal/logging"
	"github.com/tidewave/threadflow/internal/models"
	"github.com/tidewave/threadflow/internal/pipeline"
)

// Queue-triggered entry point: one Lambda invocation carries a batch of SQS
// records, each holding a work item. Wiring happens once per cold start in
// main; the handler closure reuses it across invocations.
func main() {
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "dev"
	}
	config.LoadEnv(env)
	logging.InitLogger()

	cfg := config.FromEnv()

	coordinator, cleanup, err := buildCoordinator(context.Background(), cfg)
	if err != nil {
		slog.Error("[Worker] Failed to build pipeline", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer cleanup()

	handler := func(ctx context.Context, event events.SQSEvent) error {
		slog.Info("[Worker] Received SQS event", slog.Int("records", len(event.Records)))

		items := make([]models.WorkItem, 0, len(event.Records))
		for _, record := range event.Records {
			decoded, err := models.DecodeWorkItems([]byte(record.Body))
			if err != nil {
				slog.Warn("[Worker] Skipping undecodable record",
					slog.String("message_id", record.MessageId),
					slog.String("error", err.Error()))
				continue
			}
			items = append(items, decoded...)
		}

		// Item failures are absorbed and logged inside the pipeline; the
		// batch never errors back to the queue.
		coordinator.Process(ctx, items)
		return nil
	}

	lambda.Start(handler)
}

func buildCoordinator(ctx context.Context, cfg config.Config) (*pipeline.Coordinator, func(), error) {
	s3Client, err := clients.NewS3Client(ctx, cfg.AWSRegion, cfg.AWSEndpoint)
	if err != nil {
		return nil, nil, err
	}
	blob := clients.NewBlobClient(s3Client, cfg.BlobBucket)

	markers, err := clients.NewMarkerClient(clients.MarkerOptions{
		Address:  cfg.ValkeyAddress,
		Password: cfg.ValkeyPassword,
		UseTLS:   cfg.ValkeyTLS,
	})
	if err != nil {
		return nil, nil, err
	}

	events := clients.NewLogSinkClient(cfg.LogSinkURL)

	gen, model, err := newGenerator(cfg)
	if err != nil {
		markers.Close()
		return nil, nil, err
	}

	var enricherOpts []pipeline.EnricherOption
	if cfg.EnrichmentBatchSize > 0 {
		enricherOpts = append(enricherOpts, pipeline.WithBatchSize(cfg.EnrichmentBatchSize))
	}
	if cfg.SummaryWorkers > 0 {
		enricherOpts = append(enricherOpts, pipeline.WithSummaryWorkers(cfg.SummaryWorkers))
	}
	enricher := pipeline.NewEnricher(gen, model, enricherOpts...)

	var persisterOpts []pipeline.PersisterOption
	if cfg.PostBatchSize > 0 {
		persisterOpts = append(persisterOpts, pipeline.WithPostBatchSize(cfg.PostBatchSize))
	}
	if cfg.CommentBatchSize > 0 {
		persisterOpts = append(persisterOpts, pipeline.WithCommentBatchSize(cfg.CommentBatchSize))
	}
	supabase := clients.NewSupabaseClient(cfg.SupabaseURL, cfg.SupabaseServiceKey)
	persister := pipeline.NewPersister(supabase, events, persisterOpts...)

	coordinator, err := pipeline.NewCoordinator(pipeline.Deps{
		Blob:      blob,
		Markers:   markers,
		Events:    events,
		Enricher:  enricher,
		Persister: persister,
		Logger:    slog.Default(),
	})
	if err != nil {
		enricher.Close()
		markers.Close()
		return nil, nil, err
	}

	cleanup := func() {
		enricher.Close()
		markers.Close()
	}
	return coordinator, cleanup, nil
}

func newGenerator(cfg config.Config) (ai.Generator, string, error) {
	switch cfg.AIProvider {
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			return nil, "", fmt.Errorf("AI_PROVIDER=openai requires OPENAI_API_KEY")
		}
		return ai.NewOpenAIGenerator(cfg.OpenAIAPIKey), cfg.OpenAIModel, nil
	default:
		if cfg.AIGatewayURL == "" {
			return nil, "", fmt.Errorf("AI_GATEWAY_URL is required")
		}
		return ai.NewGatewayClient(cfg.AIGatewayURL, cfg.AIGatewayToken), cfg.AITextModel, nil
	}
}
