package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/panjf2000/ants/v2"

	"github.com/tidewave/threadflow/internal/ai"
	"github.com/tidewave/threadflow/internal/models"
	"github.com/tidewave/threadflow/internal/utils"
)

// BodyResolver resolves a text reference to its raw body. Missing bodies
// resolve to the empty string.
type BodyResolver func(ctx context.Context, ref string) string

// Enricher attaches AI-derived metadata to extracted posts: one topic
// classification call per batch, one summary call per post. Every failure
// degrades to deterministic fallback values; enrichment output always has
// the same length and identity set as its input.
type Enricher struct {
	gen       ai.Generator
	model     string
	batchSize int
	logger    *slog.Logger

	workers int
	pool    *ants.Pool
}

type EnricherOption func(*Enricher)

// WithBatchSize overrides how many posts share one classification call.
func WithBatchSize(n int) EnricherOption {
	return func(e *Enricher) {
		if n > 0 {
			e.batchSize = n
		}
	}
}

// WithSummaryWorkers overrides how many summary calls may run at once.
func WithSummaryWorkers(n int) EnricherOption {
	return func(e *Enricher) {
		if n > 0 {
			e.workers = n
		}
	}
}

func WithEnrichLogger(logger *slog.Logger) EnricherOption {
	return func(e *Enricher) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewEnricher builds an Enricher around gen, addressing model on every call.
func NewEnricher(gen ai.Generator, model string, opts ...EnricherOption) *Enricher {
	e := &Enricher{
		gen:       gen,
		model:     model,
		batchSize: ENRICHMENT_BATCH_SIZE,
		workers:   SUMMARY_WORKER_COUNT,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}

	pool, err := ants.NewPool(e.workers)
	if err != nil {
		// No pool means summaries run sequentially; enrichment still works.
		e.logger.Warn("[Enricher] Summary worker pool unavailable",
			slog.String("error", err.Error()))
	} else {
		e.pool = pool
	}

	return e
}

// Close releases the summary worker pool.
func (e *Enricher) Close() {
	if e.pool != nil {
		e.pool.Release()
	}
}

// Enrich returns one enriched post per input post, in input order. It never
// returns an error: AI failures are absorbed per batch or per post.
func (e *Enricher) Enrich(ctx context.Context, posts []models.Post, resolve BodyResolver) []models.EnrichedPost {
	if len(posts) == 0 {
		return nil
	}
	if resolve == nil {
		resolve = func(context.Context, string) string { return "" }
	}

	enriched := make([]models.EnrichedPost, 0, len(posts))
	for _, batch := range utils.Chunk(posts, e.batchSize) {
		enriched = append(enriched, e.enrichBatch(ctx, batch, resolve)...)
	}

	e.logger.Info("[Enricher] Enrichment complete",
		slog.Int("posts", len(posts)),
		slog.Int("batch_size", e.batchSize))
	return enriched
}

type classification struct {
	cluster   string
	relevance float64
}

func (e *Enricher) enrichBatch(ctx context.Context, batch []models.Post, resolve BodyResolver) []models.EnrichedPost {
	bodies := make([]string, len(batch))
	for i, post := range batch {
		bodies[i] = resolve(ctx, post.TextRef)
	}

	classifications := e.classifyBatch(ctx, batch, bodies)
	summaries := e.summarizeBatch(ctx, batch, bodies)

	out := make([]models.EnrichedPost, len(batch))
	for i, post := range batch {
		cluster, relevance := DEFAULT_CATEGORY, NEUTRAL_RELEVANCE
		if c, ok := classifications[i]; ok {
			cluster, relevance = c.cluster, c.relevance
		}

		out[i] = models.EnrichedPost{
			Post:             post,
			Summary:          summaries[i],
			ClusterID:        cluster,
			AIRelevanceScore: relevance,
		}
	}
	return out
}

// classificationInput is one post as the classifier sees it, keyed by its
// batch-local index.
type classificationInput struct {
	Index int    `json:"index"`
	ID    string `json:"id"`
	Title string `json:"title"`
	Text  string `json:"text"`
}

type classificationEntry struct {
	Index     int     `json:"index"`
	ClusterID string  `json:"cluster_id"`
	Relevance float64 `json:"relevance"`
}

// classifyBatch sends one classification call for the whole batch and maps
// replies back by batch-local index. A nil return means the call failed and
// the whole batch takes default values; a partial map means only the missing
// indexes do.
func (e *Enricher) classifyBatch(ctx context.Context, batch []models.Post, bodies []string) map[int]classification {
	reply, err := e.gen.Run(ctx, e.model, ai.Request{
		Prompt:    buildClassificationPrompt(batch, bodies),
		MaxTokens: CLASSIFY_MAX_TOKENS,
	})
	if err != nil {
		e.logger.Warn("[Enricher] Classification call failed, batch gets default category",
			slog.Int("batch_size", len(batch)),
			slog.String("error", err.Error()))
		return nil
	}

	cleaned, err := ai.CleanJSONResponse(reply)
	if err != nil {
		e.logger.Warn("[Enricher] Classification reply is not JSON, batch gets default category",
			slog.Int("batch_size", len(batch)),
			slog.String("raw_reply", utils.TruncateRunes(reply, 50)))
		return nil
	}

	entries, err := decodeClassificationEntries(cleaned)
	if err != nil {
		e.logger.Warn("[Enricher] Failed to decode classification reply, batch gets default category",
			slog.Int("batch_size", len(batch)),
			slog.String("error", err.Error()),
			slog.String("cleaned_reply", utils.TruncateRunes(cleaned, 50)))
		return nil
	}

	byIndex := make(map[int]classification, len(entries))
	for _, entry := range entries {
		if entry.Index < 0 || entry.Index >= len(batch) {
			continue
		}

		cluster := entry.ClusterID
		if !IsKnownCategory(cluster) {
			cluster = DEFAULT_CATEGORY
		}
		byIndex[entry.Index] = classification{
			cluster:   cluster,
			relevance: clampScore(entry.Relevance),
		}
	}
	return byIndex
}

// decodeClassificationEntries accepts the bare array the prompt asks for and
// the {"results": [...]} wrapping some models insist on.
func decodeClassificationEntries(cleaned string) ([]classificationEntry, error) {
	var entries []classificationEntry
	if err := json.Unmarshal([]byte(cleaned), &entries); err == nil {
		return entries, nil
	}

	var wrapped struct {
		Results []classificationEntry `json:"results"`
	}
	if err := json.Unmarshal([]byte(cleaned), &wrapped); err != nil {
		return nil, err
	}
	if wrapped.Results == nil {
		return nil, ai.ErrMalformedResponse
	}
	return wrapped.Results, nil
}

func buildClassificationPrompt(batch []models.Post, bodies []string) string {
	var sb strings.Builder
	sb.WriteString(`You will receive forum posts as JSON objects, one per line.
Classify each post into exactly one category from this list:

database, api-design, frontend, devops, security, performance, architecture, mobile

Respond only with a valid JSON array. Do not include any additional text or commentary.
One element per input post, shaped as:
{"index": <the post's index as provided>, "cluster_id": "<one category from the list>", "relevance": <confidence between 0 and 1>}

Posts:
`)

	for i, post := range batch {
		line, err := json.Marshal(classificationInput{
			Index: i,
			ID:    post.ID,
			Title: post.Title,
			Text:  utils.TruncateRunes(utils.MarkdownToText(bodies[i]), CLASSIFY_PREFIX_LEN),
		})
		if err != nil {
			continue
		}
		sb.Write(line)
		sb.WriteByte('\n')
	}

	return sb.String()
}

// summarizeBatch produces one summary per post, fanning calls out on the
// worker pool when one is available. Indexes line up with batch.
func (e *Enricher) summarizeBatch(ctx context.Context, batch []models.Post, bodies []string) []string {
	summaries := make([]string, len(batch))

	if e.pool == nil {
		for i := range batch {
			summaries[i] = e.summarizeOne(ctx, batch[i], bodies[i])
		}
		return summaries
	}

	var wg sync.WaitGroup
	for i := range batch {
		i := i
		wg.Add(1)
		err := e.pool.Submit(func() {
			defer wg.Done()
			summaries[i] = e.summarizeOne(ctx, batch[i], bodies[i])
		})
		if err != nil {
			wg.Done()
			summaries[i] = e.summarizeOne(ctx, batch[i], bodies[i])
		}
	}
	wg.Wait()

	return summaries
}

// summarizeOne asks for a one-sentence summary and falls back to a prefix of
// the raw body when the call fails or comes back blank.
func (e *Enricher) summarizeOne(ctx context.Context, post models.Post, body string) string {
	fallback := utils.TruncateRunes(body, SUMMARY_MAX_LEN)

	prompt := fmt.Sprintf(`Summarize the following forum post in one sentence of at most 100 characters.
Respond with the sentence only.

Title: %s

%s`, post.Title, utils.TruncateRunes(utils.MarkdownToText(body), SUMMARY_PREFIX_LEN))

	reply, err := e.gen.Run(ctx, e.model, ai.Request{
		Prompt:      prompt,
		MaxTokens:   SUMMARY_MAX_TOKENS,
		Temperature: SUMMARY_TEMPERATURE,
	})
	if err != nil {
		e.logger.Warn("[Enricher] Summary call failed, falling back to body prefix",
			slog.String("post_id", post.ID),
			slog.String("error", err.Error()))
		return fallback
	}

	summary := strings.TrimSpace(reply)
	summary = strings.Trim(summary, `"`) // models love quoting their one sentence
	if summary == "" {
		return fallback
	}

	return utils.TruncateRunes(summary, SUMMARY_MAX_LEN)
}

func clampScore(score float64) float64 {
	switch {
	case score < 0:
		return 0
	case score > 1:
		return 1
	}
	return score
}
