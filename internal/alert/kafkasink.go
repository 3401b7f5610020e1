package alert

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"

	"github.com/medichain/medguard/internal/logging"
)

// KafkaConfig holds producer settings for the Kafka alert forwarder.
type KafkaConfig struct {
	Brokers     []string
	Topic       string
	Acks        string
	Compression string

	SASLMechanism string
	SASLUser      string
	SASLPassword  string

	TLSCAPath     string
	TLSSkipVerify bool
}

// KafkaSink mirrors every alert to a Kafka topic for SIEM consumption,
// keyed by alert ID so downstream consumers can deduplicate.
type KafkaSink struct {
	config   KafkaConfig
	producer *kafka.Producer
}

// NewKafkaSinkFromEnv builds a KafkaSink from KAFKA_* environment variables.
func NewKafkaSinkFromEnv() *KafkaSink {
	brokersStr := os.Getenv("KAFKA_BROKERS")
	if brokersStr == "" {
		brokersStr = "localhost:9092"
	}
	brokers := strings.Split(brokersStr, ",")
	for i, broker := range brokers {
		brokers[i] = strings.TrimSpace(broker)
	}

	return &KafkaSink{config: KafkaConfig{
		Brokers:       brokers,
		Topic:         envOr("KAFKA_TOPIC", "medguard.alerts"),
		Acks:          envOr("KAFKA_ACKS", "all"),
		Compression:   envOr("KAFKA_COMPRESSION", ""),
		SASLMechanism: os.Getenv("KAFKA_SASL_MECHANISM"),
		SASLUser:      os.Getenv("KAFKA_SASL_USER"),
		SASLPassword:  os.Getenv("KAFKA_SASL_PASSWORD"),
		TLSCAPath:     os.Getenv("KAFKA_TLS_CA"),
		TLSSkipVerify: envBool("KAFKA_TLS_SKIP_VERIFY"),
	}}
}

// NewKafkaSink creates a KafkaSink with explicit brokers and topic.
func NewKafkaSink(brokers []string, topic string) *KafkaSink {
	return &KafkaSink{config: KafkaConfig{Brokers: brokers, Topic: topic, Acks: "all"}}
}

func (s *KafkaSink) Start(ctx context.Context) error {
	configMap := kafka.ConfigMap{
		"bootstrap.servers": strings.Join(s.config.Brokers, ","),
		"acks":              s.config.Acks,
		"retries":           10,
		"retry.backoff.ms":  100,
		"linger.ms":         10,
	}
	if s.config.Compression != "" {
		configMap["compression.type"] = s.config.Compression
	}
	if s.config.SASLMechanism != "" {
		configMap["security.protocol"] = "SASL_SSL"
		configMap["sasl.mechanism"] = s.config.SASLMechanism
		if s.config.SASLUser != "" {
			configMap["sasl.username"] = s.config.SASLUser
		}
		if s.config.SASLPassword != "" {
			configMap["sasl.password"] = s.config.SASLPassword
		}
	}
	if s.config.TLSCAPath != "" {
		if s.config.SASLMechanism == "" {
			configMap["security.protocol"] = "SSL"
		}
		configMap["ssl.ca.location"] = s.config.TLSCAPath
	}
	if s.config.TLSSkipVerify {
		configMap["ssl.endpoint.identification.algorithm"] = "none"
	}

	producer, err := kafka.NewProducer(&configMap)
	if err != nil {
		return fmt.Errorf("failed to create Kafka producer: %w", err)
	}
	s.producer = producer

	go s.handleDeliveryReports(ctx)
	return nil
}

func (s *KafkaSink) Enqueue(a Alert) error {
	if s.producer == nil {
		return fmt.Errorf("kafka producer not initialized")
	}

	value, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("failed to serialize alert: %w", err)
	}

	msg := &kafka.Message{
		TopicPartition: kafka.TopicPartition{
			Topic:     &s.config.Topic,
			Partition: kafka.PartitionAny,
		},
		Key:   []byte(a.ID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "alert_class", Value: []byte(a.Class)},
			{Key: "schema", Value: []byte("v1")},
		},
	}

	if err := s.producer.Produce(msg, nil); err != nil {
		return fmt.Errorf("failed to produce message: %w", err)
	}
	return nil
}

func (s *KafkaSink) Close() error {
	if s.producer == nil {
		return nil
	}
	// Wait up to 10 seconds for in-flight messages.
	remaining := s.producer.Flush(10 * 1000)
	if remaining > 0 {
		return fmt.Errorf("failed to flush %d remaining messages", remaining)
	}
	s.producer.Close()
	return nil
}

func (s *KafkaSink) Name() string { return "kafka" }

func (s *KafkaSink) handleDeliveryReports(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-s.producer.Events():
			switch e := ev.(type) {
			case *kafka.Message:
				if e.TopicPartition.Error != nil {
					logging.L.Errorw("kafka delivery failed", "err", e.TopicPartition.Error)
				}
			case kafka.Error:
				logging.L.Errorw("kafka client error", "err", e)
			}
		}
	}
}

func envOr(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func envBool(key string) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "t", "true", "y", "yes":
		return true
	}
	return false
}
