package messagebus

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
)

const flushTimeoutMs = 5000

// KafkaProducer Kafka implementation for production
type KafkaProducer struct {
	producer *kafka.Producer
}

// NewKafkaProducer creates a new Kafka producer with configuration from YAML file
func NewKafkaProducer(configPath string) (*KafkaProducer, error) {
	configMap, err := LoadProducerConfigMap(configPath)
	if err != nil {
		return nil, err
	}

	producer, err := kafka.NewProducer(producerConfig(configMap))
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}
	return &KafkaProducer{producer: producer}, nil
}

// producerConfig maps the YAML settings onto librdkafka keys, with fallback defaults
func producerConfig(configMap map[string]interface{}) *kafka.ConfigMap {
	config := &kafka.ConfigMap{}
	config.SetKey("bootstrap.servers", GetStringValue(configMap, "bootstrap.servers", "localhost:9092"))
	config.SetKey("client.id", GetStringValue(configMap, "client.id", os.Getenv("HOSTNAME")))
	config.SetKey("acks", GetStringValue(configMap, "acks", "all"))
	config.SetKey("retries", GetIntValue(configMap, "retries", 3))
	config.SetKey("linger.ms", GetIntValue(configMap, "linger.ms", 5))
	config.SetKey("enable.idempotence", GetBoolValue(configMap, "enable.idempotence", false))
	config.SetKey("security.protocol", GetStringValue(configMap, "security.protocol", "PLAINTEXT"))
	for _, key := range []string{"ssl.ca.location", "ssl.certificate.location", "ssl.key.location"} {
		if v := GetStringValue(configMap, key, ""); v != "" {
			config.SetKey(key, v)
		}
	}
	if _, ok := configMap["enable.ssl.certificate.verification"]; ok {
		config.SetKey("enable.ssl.certificate.verification", GetBoolValue(configMap, "enable.ssl.certificate.verification", true))
	}
	return config
}

func toKafkaMessage(message *Message) *kafka.Message {
	message.Timestamp = time.Now()
	partition := message.Partition
	if partition == 0 {
		partition = kafka.PartitionAny
	}
	km := &kafka.Message{
		TopicPartition: kafka.TopicPartition{
			Topic:     &message.Topic,
			Partition: partition,
		},
		Key:       []byte(message.Key),
		Value:     message.Value,
		Timestamp: message.Timestamp,
	}
	for key, value := range message.Headers {
		km.Headers = append(km.Headers, kafka.Header{Key: key, Value: []byte(value)})
	}
	return km
}

// Send sends a message to Kafka and waits for the delivery report
func (p *KafkaProducer) Send(ctx context.Context, message *Message) (int32, int64, error) {
	// buffered so a late report never blocks librdkafka after ctx is done
	deliveryChan := make(chan kafka.Event, 1)
	if err := p.producer.Produce(toKafkaMessage(message), deliveryChan); err != nil {
		return 0, 0, fmt.Errorf("failed to produce message: %w", err)
	}

	select {
	case event := <-deliveryChan:
		msg, ok := event.(*kafka.Message)
		if !ok {
			return 0, 0, fmt.Errorf("unexpected event type %T", event)
		}
		if msg.TopicPartition.Error != nil {
			return 0, 0, fmt.Errorf("delivery failed: %w", msg.TopicPartition.Error)
		}
		message.Partition = msg.TopicPartition.Partition
		message.Offset = int64(msg.TopicPartition.Offset)
		return message.Partition, message.Offset, nil
	case <-ctx.Done():
		return 0, 0, ctx.Err()
	}
}

// SendAsync sends a message to Kafka asynchronously
func (p *KafkaProducer) SendAsync(ctx context.Context, message *Message) <-chan SendResult {
	resultChan := make(chan SendResult, 1)
	go func() {
		defer close(resultChan)
		partition, offset, err := p.Send(ctx, message)
		resultChan <- SendResult{Partition: partition, Offset: offset, Error: err}
	}()
	return resultChan
}

// Close flushes outstanding messages and closes the Kafka producer
func (p *KafkaProducer) Close() error {
	remaining := p.producer.Flush(flushTimeoutMs)
	p.producer.Close()
	if remaining > 0 {
		return fmt.Errorf("%d messages not delivered before close", remaining)
	}
	return nil
}
