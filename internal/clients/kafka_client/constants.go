package kafka_client

import "time"

const (
	KAFKA_TOPIC_WORK_ITEMS = "work-items" // keys of raw dumps awaiting ingestion
)

const (
	MAX_RETRIES  = 5
	RETRY_DELAY  = 2 * time.Second
	POLL_TIMEOUT = 1 * time.Second
)
