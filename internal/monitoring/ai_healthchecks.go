package monitoring

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/tidewave/threadflow/internal/ai"
)

const (
	HEALTHCHECK_INTERVAL = 60 * time.Second
	HEALTHCHECK_TIMEOUT  = 10 * time.Second
)

// MonitorGeneratorHealth pings the text model on a fixed cadence and logs
// the result. Enrichment degrades to fallback values on its own; this exists
// so a dead provider shows up in logs before anyone wonders why every post is
// suddenly in the default category.
func MonitorGeneratorHealth(ctx context.Context, gen ai.Generator, model string) {
	ticker := time.NewTicker(HEALTHCHECK_INTERVAL)
	defer ticker.Stop()

	healthy := true
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			checkCtx, cancel := context.WithTimeout(ctx, HEALTHCHECK_TIMEOUT)
			_, err := gen.Run(checkCtx, model, ai.Request{Prompt: "ping", MaxTokens: 1})
			cancel()

			// An empty or odd reply still proves the provider answered;
			// only transport and auth failures count as unhealthy.
			isHealthy := err == nil ||
				errors.Is(err, ai.ErrEmptyResponse) ||
				errors.Is(err, ai.ErrMalformedResponse)

			if !isHealthy {
				slog.Warn("[HealthCheck] Text model unreachable",
					slog.String("model", model),
					slog.String("error", err.Error()))
			} else if !healthy {
				slog.Info("[HealthCheck] Text model reachable again",
					slog.String("model", model))
			}
			healthy = isHealthy
		}
	}
}
