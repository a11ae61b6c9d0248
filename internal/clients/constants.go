package clients

import "time"

const (
	MAX_RETRIES     = 5
	INITIAL_BACKOFF = 1 * time.Second
	MAX_BACKOFF     = 32 * time.Second
	USER_AGENT      = "threadflow-client/1.0 (+https://github.com/tidewave/threadflow)"

	SUPABASE_REQUEST_TIMEOUT = 30 * time.Second
	LOG_SINK_TIMEOUT         = 5 * time.Second
)
