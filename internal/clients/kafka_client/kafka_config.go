package kafka_client

// KafkaConfig carries the connection settings for consumers and publishers.
// Values come from the application config; this package never reads the
// environment itself.
type KafkaConfig struct {
	Broker  string
	GroupID string
	Topic   string
}
