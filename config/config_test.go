package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func unsetenv(t *testing.T, keys ...string) {
	t.Helper()
	for _, key := range keys {
		key := key
		if v, ok := os.LookupEnv(key); ok {
			t.Cleanup(func() { os.Setenv(key, v) })
			os.Unsetenv(key)
		}
	}
}

func TestFromEnvDefaults(t *testing.T) {
	unsetenv(t, "BLOB_BUCKET", "AI_PROVIDER", "AI_TEXT_MODEL",
		"VALKEY_INIT_ADDRESS", "KAFKA_CONSUMER_TOPIC", "ENRICHMENT_BATCH_SIZE")

	cfg := FromEnv()

	assert.Equal(t, "threadflow-dumps", cfg.BlobBucket)
	assert.Equal(t, "gateway", cfg.AIProvider)
	assert.Equal(t, "@cf/meta/llama-3.1-8b-instruct", cfg.AITextModel)
	assert.Equal(t, "localhost:6379", cfg.ValkeyAddress)
	assert.Equal(t, "work-items", cfg.KafkaTopic)
	assert.Zero(t, cfg.EnrichmentBatchSize, "zero lets the pipeline pick its own default")
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("BLOB_BUCKET", "custom-dumps")
	t.Setenv("AI_PROVIDER", "openai")
	t.Setenv("VALKEY_TLS", "true")
	t.Setenv("KAFKA_BROKER", "kafka.internal:9092")
	t.Setenv("ENRICHMENT_BATCH_SIZE", "10")

	cfg := FromEnv()

	assert.Equal(t, "custom-dumps", cfg.BlobBucket)
	assert.Equal(t, "openai", cfg.AIProvider)
	assert.True(t, cfg.ValkeyTLS)
	assert.Equal(t, "kafka.internal:9092", cfg.KafkaBroker)
	assert.Equal(t, 10, cfg.EnrichmentBatchSize)
}

func TestFromEnvBadIntFallsBack(t *testing.T) {
	t.Setenv("POST_BATCH_SIZE", "not a number")

	cfg := FromEnv()

	assert.Zero(t, cfg.PostBatchSize)
}
