package ai

import "time"

const (
	MAX_RETRIES     = 5
	INITIAL_BACKOFF = 1 * time.Second

	GATEWAY_REQUEST_TIMEOUT = 60 * time.Second
	OPENAI_REQUEST_TIMEOUT  = 60 * time.Second
)
