package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/tidewave/threadflow/internal/clients"
	"github.com/tidewave/threadflow/internal/models"
)

const (
	STATE_RECEIVED    = "RECEIVED"
	STATE_FETCHED     = "FETCHED"
	STATE_EXTRACTED   = "EXTRACTED"
	STATE_ENRICHED    = "ENRICHED"
	STATE_PERSISTED   = "PERSISTED"
	STATE_MARKED_DONE = "MARKED_DONE"
	STATE_FAILED      = "FAILED"
)

// BlobStore is the blob capability the coordinator drives: dumps in, text
// bodies out.
type BlobStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, data []byte) error
}

// MarkerStore records processed keys with a finite retention window.
type MarkerStore interface {
	Put(ctx context.Context, key, value string, ttl time.Duration) error
	WasProcessed(ctx context.Context, key string) bool
}

// Deps carries the collaborators one coordinator drives. Everything is
// explicit; nothing reaches for process globals.
type Deps struct {
	Blob      BlobStore
	Markers   MarkerStore
	Events    EventLogger
	Enricher  *Enricher
	Persister *Persister
	Logger    *slog.Logger
}

// Coordinator walks work items through fetch, extract, enrich, persist and
// marker bookkeeping. Items are independent: one item's failure never
// touches its siblings.
type Coordinator struct {
	deps Deps
}

// NewCoordinator validates deps and returns a coordinator. Markers and
// Events may be nil; marking and event shipping are then skipped.
func NewCoordinator(deps Deps) (*Coordinator, error) {
	if deps.Blob == nil {
		return nil, fmt.Errorf("coordinator needs a blob store")
	}
	if deps.Enricher == nil {
		return nil, fmt.Errorf("coordinator needs an enricher")
	}
	if deps.Persister == nil {
		return nil, fmt.Errorf("coordinator needs a persister")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	return &Coordinator{deps: deps}, nil
}

// Process runs every work item in arrival order. It never returns an error:
// each item either completes or is logged as FAILED, and the next one runs
// regardless.
func (c *Coordinator) Process(ctx context.Context, items []models.WorkItem) {
	runID := uuid.NewString()
	logger := c.deps.Logger.With(slog.String("run_id", runID))

	logger.Info("[Coordinator] Run started", slog.Int("work_items", len(items)))

	for _, item := range items {
		key := item.Key
		if key == "" {
			key = DEFAULT_WORK_ITEM_KEY
		}
		c.processItem(ctx, logger.With(slog.String("key", key)), key)
	}

	logger.Info("[Coordinator] Run finished")
}

func (c *Coordinator) processItem(ctx context.Context, logger *slog.Logger, key string) {
	state := STATE_RECEIVED
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			logger.Error("[Coordinator] Item processing panicked",
				slog.String("state", state),
				slog.Any("panic", r))
			c.postEvent(ctx, "process_item", "failed", fmt.Sprintf("panic in state %s: %v", state, r))
		}
	}()

	if c.deps.Markers != nil && c.deps.Markers.WasProcessed(ctx, markerKey(key)) {
		logger.Info("[Coordinator] Key was processed recently, reprocessing anyway")
	}

	data, err := c.deps.Blob.Get(ctx, key)
	if err != nil {
		if errors.Is(err, clients.ErrObjectNotFound) {
			logger.Warn("[Coordinator] No dump at key, skipping item")
			c.postEvent(ctx, "fetch_dump", "skipped", err.Error())
			return
		}
		c.failItem(ctx, logger, state, err)
		return
	}
	state = STATE_FETCHED

	rawItems, err := models.DecodeRawItems(data)
	if err != nil {
		c.failItem(ctx, logger, state, err)
		return
	}

	result := ExtractDocuments(rawItems)
	state = STATE_EXTRACTED
	logger.Info("[Coordinator] Extraction complete",
		slog.Int("raw_items", len(rawItems)),
		slog.Int("posts", len(result.Posts)),
		slog.Int("comments", len(result.Comments)))

	c.storeBodies(ctx, logger, result.Bodies)

	enriched := c.deps.Enricher.Enrich(ctx, result.Posts, c.bodyResolver(result.Bodies))
	state = STATE_ENRICHED

	report := c.deps.Persister.Persist(ctx, enriched, result.Comments)
	state = STATE_PERSISTED
	if report.Failed() > 0 {
		logger.Warn("[Coordinator] Persistence finished with failed batches",
			slog.Int("failed_batches", report.Failed()))
	}

	if c.markDone(ctx, logger, key) {
		state = STATE_MARKED_DONE
	}

	logger.Info("[Coordinator] Item processed",
		slog.String("state", state),
		slog.Duration("elapsed", time.Since(start)))
	c.postEvent(ctx, "process_item", "ok", "")
}

func (c *Coordinator) failItem(ctx context.Context, logger *slog.Logger, state string, err error) {
	logger.Error("[Coordinator] Item failed",
		slog.String("state", STATE_FAILED),
		slog.String("state_reached", state),
		slog.String("error", err.Error()))
	c.postEvent(ctx, "process_item", "failed", err.Error())
}

// storeBodies writes each extracted text body under its reference. A failed
// write costs that body's availability to prompts, not the item.
func (c *Coordinator) storeBodies(ctx context.Context, logger *slog.Logger, bodies map[string]string) {
	for ref, body := range bodies {
		if err := c.deps.Blob.Put(ctx, ref, []byte(body)); err != nil {
			logger.Warn("[Coordinator] Failed to store text body",
				slog.String("text_ref", ref),
				slog.String("error", err.Error()))
		}
	}
}

// bodyResolver serves prompt text from the freshly extracted bodies and
// falls back to the blob store for references written by an earlier run.
func (c *Coordinator) bodyResolver(bodies map[string]string) BodyResolver {
	return func(ctx context.Context, ref string) string {
		if body, ok := bodies[ref]; ok {
			return body
		}

		data, err := c.deps.Blob.Get(ctx, ref)
		if err != nil {
			return ""
		}
		return string(data)
	}
}

// markDone records the key as processed. Marker failures are bookkeeping
// losses, not item failures.
func (c *Coordinator) markDone(ctx context.Context, logger *slog.Logger, key string) bool {
	if c.deps.Markers == nil {
		return false
	}

	completedAt := time.Now().UTC().Format(time.RFC3339)
	if err := c.deps.Markers.Put(ctx, markerKey(key), completedAt, PROCESSED_MARKER_TTL); err != nil {
		logger.Warn("[Coordinator] Failed to store processed marker",
			slog.String("error", err.Error()))
		return false
	}
	return true
}

func (c *Coordinator) postEvent(ctx context.Context, event, status, detail string) {
	if c.deps.Events == nil {
		return
	}
	c.deps.Events.Post(ctx, event, status, detail)
}

func markerKey(key string) string {
	return PROCESSED_MARKER_PREFIX + key
}
