package pipeline

import (
	"context"
	"log/slog"

	"github.com/tidewave/threadflow/internal/models"
	"github.com/tidewave/threadflow/internal/utils"
)

// Upserter writes one batch of records to a named table with merge-on-
// conflict semantics keyed by record identity.
type Upserter interface {
	Upsert(ctx context.Context, table string, records any) error
}

// EventLogger ships pipeline events to a best-effort side channel. Post
// never fails from the caller's point of view.
type EventLogger interface {
	Post(ctx context.Context, event, status, errorDetail string)
}

// Report counts batch outcomes of one persistence pass. Failed batches are
// logged rather than returned as errors; the report is how callers see
// partial failure.
type Report struct {
	PostBatches          int
	FailedPostBatches    int
	CommentBatches       int
	FailedCommentBatches int
}

// Failed is the total number of batches that did not make it to storage.
func (r Report) Failed() int {
	return r.FailedPostBatches + r.FailedCommentBatches
}

// postRecord is the exact field set written to the posts table. Records are
// built explicitly so extraneous fields never ride along into storage, and
// every field is always serialized: rows in a bulk payload share one key set
// and a merge write replaces stale column values.
type postRecord struct {
	ID               string  `json:"id"`
	Title            string  `json:"title"`
	TextRef          string  `json:"text_ref"`
	UserName         string  `json:"user_name"`
	Date             any     `json:"date"`
	URL              string  `json:"url"`
	CommentCount     int     `json:"comment_count"`
	Summary          string  `json:"summary"`
	ClusterID        string  `json:"cluster_id"`
	AIRelevanceScore float64 `json:"ai_relevance_score"`
}

type commentRecord struct {
	ID       string `json:"id"`
	PostID   string `json:"post_id"`
	TextRef  string `json:"text_ref"`
	UserName string `json:"user_name"`
	Date     any    `json:"date"`
	URL      string `json:"url"`
}

func newPostRecord(post models.EnrichedPost) postRecord {
	return postRecord{
		ID:               post.ID,
		Title:            post.Title,
		TextRef:          post.TextRef,
		UserName:         post.UserName,
		Date:             post.Date,
		URL:              post.URL,
		CommentCount:     post.CommentCount,
		Summary:          post.Summary,
		ClusterID:        post.ClusterID,
		AIRelevanceScore: post.AIRelevanceScore,
	}
}

func newCommentRecord(comment models.Comment) commentRecord {
	return commentRecord{
		ID:       comment.ID,
		PostID:   comment.PostID,
		TextRef:  comment.TextRef,
		UserName: comment.UserName,
		Date:     comment.Date,
		URL:      comment.URL,
	}
}

// Persister writes enriched posts and comments in fixed-size batches.
type Persister struct {
	up               Upserter
	events           EventLogger
	postBatchSize    int
	commentBatchSize int
	logger           *slog.Logger
}

type PersisterOption func(*Persister)

func WithPostBatchSize(n int) PersisterOption {
	return func(p *Persister) {
		if n > 0 {
			p.postBatchSize = n
		}
	}
}

func WithCommentBatchSize(n int) PersisterOption {
	return func(p *Persister) {
		if n > 0 {
			p.commentBatchSize = n
		}
	}
}

func WithPersistLogger(logger *slog.Logger) PersisterOption {
	return func(p *Persister) {
		if logger != nil {
			p.logger = logger
		}
	}
}

func NewPersister(up Upserter, events EventLogger, opts ...PersisterOption) *Persister {
	p := &Persister{
		up:               up,
		events:           events,
		postBatchSize:    POST_BATCH_SIZE,
		commentBatchSize: COMMENT_BATCH_SIZE,
		logger:           slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Persist writes all posts, then all comments. A failed batch is logged,
// counted and skipped; the remaining batches still go out.
func (p *Persister) Persist(ctx context.Context, posts []models.EnrichedPost, comments []models.Comment) Report {
	var report Report

	for _, batch := range utils.Chunk(posts, p.postBatchSize) {
		records := make([]postRecord, len(batch))
		for i, post := range batch {
			records[i] = newPostRecord(post)
		}

		report.PostBatches++
		if err := p.up.Upsert(ctx, TABLE_POSTS, records); err != nil {
			report.FailedPostBatches++
			p.logger.Error("[Persister] Post batch write failed",
				slog.Int("batch_size", len(batch)),
				slog.String("error", err.Error()))
			p.postEvent(ctx, "persist_posts", "error", err.Error())
		}
	}

	for _, batch := range utils.Chunk(comments, p.commentBatchSize) {
		records := make([]commentRecord, len(batch))
		for i, comment := range batch {
			records[i] = newCommentRecord(comment)
		}

		report.CommentBatches++
		if err := p.up.Upsert(ctx, TABLE_COMMENTS, records); err != nil {
			report.FailedCommentBatches++
			p.logger.Error("[Persister] Comment batch write failed",
				slog.Int("batch_size", len(batch)),
				slog.String("error", err.Error()))
			p.postEvent(ctx, "persist_comments", "error", err.Error())
		}
	}

	p.logger.Info("[Persister] Persistence pass complete",
		slog.Int("posts", len(posts)),
		slog.Int("comments", len(comments)),
		slog.Int("post_batches", report.PostBatches),
		slog.Int("failed_post_batches", report.FailedPostBatches),
		slog.Int("comment_batches", report.CommentBatches),
		slog.Int("failed_comment_batches", report.FailedCommentBatches))

	return report
}

func (p *Persister) postEvent(ctx context.Context, event, status, detail string) {
	if p.events == nil {
		return
	}
	p.events.Post(ctx, event, status, detail)
}
