package messagebus

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Message represents a message in the message bus
type Message struct {
	Topic     string            `json:"topic"`
	Key       string            `json:"key,omitempty"`
	Value     []byte            `json:"value"`
	Headers   map[string]string `json:"headers,omitempty"`
	Partition int32             `json:"partition,omitempty"`
	Offset    int64             `json:"offset,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// Producer interface for publishing messages
type Producer interface {
	// Send sends a message synchronously and returns the partition and offset
	Send(ctx context.Context, message *Message) (partition int32, offset int64, err error)

	// SendAsync sends a message asynchronously and returns a channel for the result
	// The channel will receive a SendResult when the operation completes
	SendAsync(ctx context.Context, message *Message) <-chan SendResult

	// Close flushes pending messages and closes the producer
	Close() error
}

// SendResult represents the result of an asynchronous send operation
type SendResult struct {
	Partition int32 // The partition the message was sent to
	Offset    int64 // The offset of the message
	Error     error // Any error that occurred during sending
}

const (
	BackendKafka = "kafka"
	BackendLocal = "local"
)

// ProducerConfig selects the producer implementation
type ProducerConfig struct {
	Backend string
	// ConfigFile is the Kafka client YAML (bootstrap.servers, acks, TLS files...)
	ConfigFile string
	// LocalDir mirrors local messages to disk when set
	LocalDir string
	// LocalRetention caps in-memory local messages per topic
	LocalRetention int
}

// NewProducer builds the producer selected by cfg.Backend
func NewProducer(cfg ProducerConfig) (Producer, error) {
	switch strings.ToLower(cfg.Backend) {
	case "", BackendLocal:
		p, err := NewLocalProducer(cfg.LocalDir, WithRetention(cfg.LocalRetention))
		if err != nil {
			return nil, err
		}
		return p, nil
	case BackendKafka:
		p, err := NewKafkaProducer(cfg.ConfigFile)
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unknown message bus backend %q", cfg.Backend)
	}
}
