package config

import (
	"os"
	"strconv"
)

// Config is everything the binaries need, resolved from the environment in
// one place. Components receive values from here; none of them read env
// vars themselves.
type Config struct {
	AppEnv string

	BlobBucket  string
	AWSRegion   string
	AWSEndpoint string

	AIProvider     string
	AIGatewayURL   string
	AIGatewayToken string
	AITextModel    string
	OpenAIAPIKey   string
	OpenAIModel    string

	SupabaseURL        string
	SupabaseServiceKey string

	ValkeyAddress  string
	ValkeyPassword string
	ValkeyTLS      bool

	LogSinkURL string

	KafkaBroker  string
	KafkaGroupID string
	KafkaTopic   string

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// Zero means the pipeline default for that knob.
	EnrichmentBatchSize int
	PostBatchSize       int
	CommentBatchSize    int
	SummaryWorkers      int
}

func FromEnv() Config {
	return Config{
		AppEnv: getEnv("APP_ENV", "development"),

		BlobBucket:  getEnv("BLOB_BUCKET", "threadflow-dumps"),
		AWSRegion:   getEnv("AWS_REGION", "us-west-2"),
		AWSEndpoint: os.Getenv("AWS_ENDPOINT"),

		AIProvider:     getEnv("AI_PROVIDER", "gateway"),
		AIGatewayURL:   os.Getenv("AI_GATEWAY_URL"),
		AIGatewayToken: os.Getenv("AI_GATEWAY_TOKEN"),
		AITextModel:    getEnv("AI_TEXT_MODEL", "@cf/meta/llama-3.1-8b-instruct"),
		OpenAIAPIKey:   os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:    getEnv("OPENAI_MODEL", "gpt-4o-mini"),

		SupabaseURL:        os.Getenv("SUPABASE_URL"),
		SupabaseServiceKey: os.Getenv("SUPABASE_SERVICE_KEY"),

		ValkeyAddress:  getEnv("VALKEY_INIT_ADDRESS", "localhost:6379"),
		ValkeyPassword: os.Getenv("VALKEY_PASSWORD"),
		ValkeyTLS:      os.Getenv("VALKEY_TLS") == "true",

		LogSinkURL: os.Getenv("LOG_SINK_URL"),

		KafkaBroker:  getEnv("KAFKA_BROKER", "localhost:29092"),
		KafkaGroupID: getEnv("KAFKA_CONSUMER_GROUP_ID", "threadflow-consumer-group"),
		KafkaTopic:   getEnv("KAFKA_CONSUMER_TOPIC", "work-items"),

		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBName:     getEnv("DB_NAME", "threadflow"),

		EnrichmentBatchSize: getEnvInt("ENRICHMENT_BATCH_SIZE", 0),
		PostBatchSize:       getEnvInt("POST_BATCH_SIZE", 0),
		CommentBatchSize:    getEnvInt("COMMENT_BATCH_SIZE", 0),
		SummaryWorkers:      getEnvInt("SUMMARY_WORKERS", 0),
	}
}

func getEnv(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
