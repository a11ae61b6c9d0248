package pipeline

import "time"

const (
	ENRICHMENT_BATCH_SIZE = 25
	POST_BATCH_SIZE       = 50
	COMMENT_BATCH_SIZE    = 100

	TITLE_MAX_LEN     = 512
	USER_NAME_MAX_LEN = 100

	CLASSIFY_PREFIX_LEN = 250
	SUMMARY_PREFIX_LEN  = 500
	SUMMARY_MAX_LEN     = 100

	CLASSIFY_MAX_TOKENS = 1024
	SUMMARY_MAX_TOKENS  = 64
	SUMMARY_TEMPERATURE = 0.2

	SUMMARY_WORKER_COUNT = 8

	TABLE_POSTS    = "posts"
	TABLE_COMMENTS = "comments"

	ANONYMOUS_USER = "anonymous"

	DEFAULT_WORK_ITEM_KEY = "ingest/latest.json"

	PROCESSED_MARKER_PREFIX = "processed:"
	PROCESSED_MARKER_TTL    = 7 * 24 * time.Hour
)
