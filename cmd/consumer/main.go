package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/tidewave/threadflow/config"
	"github.com/tidewave/threadflow/internal/ai"
	"github.com/tidewave/threadflow/internal/clients"
	"github.com/tidewave/threadflow/internal/clients/kafka_client"
	"github.com/tidewave/threadflow/internal/consumers"
	"github.com/tidewave/threadflow/internal/logging"
	"github.com/tidewave/threadflow/internal/monitoring"
	"github.com/tidewave/threadflow/internal/pipeline"
)

func main() {
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "dev"
	}
	config.LoadEnv(env)
	logging.InitLogger()

	cfg := config.FromEnv()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	gen, model, err := newGenerator(cfg)
	if err != nil {
		slog.Error("[Main] Failed to build text generator", slog.String("error", err.Error()))
		os.Exit(1)
	}
	go monitoring.MonitorGeneratorHealth(ctx, gen, model)

	coordinator, cleanup, err := buildCoordinator(ctx, cfg, gen, model)
	if err != nil {
		slog.Error("[Main] Failed to build pipeline", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer cleanup()

	consumer, err := kafka_client.NewConsumer(kafka_client.KafkaConfig{
		Broker:  cfg.KafkaBroker,
		GroupID: cfg.KafkaGroupID,
		Topic:   cfg.KafkaTopic,
	})
	if err != nil {
		slog.Error("[Main] Failed to start consumer", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer consumer.Close()

	consumers.StartWorkItemConsumer(ctx, consumer, coordinator)
}

// buildCoordinator wires every pipeline collaborator explicitly. Nothing in
// the pipeline reaches for globals, so everything it talks to is visible
// right here.
func buildCoordinator(ctx context.Context, cfg config.Config, gen ai.Generator, model string) (*pipeline.Coordinator, func(), error) {
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
