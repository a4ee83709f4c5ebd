package messagebus

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"
)

// DefaultLocalRetention is how many messages per topic a LocalProducer keeps in memory
const DefaultLocalRetention = 1000

// LocalProducer keeps the most recent messages of each topic in memory for
// development. When a directory is configured every message is also written
// to <dir>/<topic>/<offset>.json.
type LocalProducer struct {
	mutex     sync.RWMutex
	dir       string
	retention int
	messages  map[string][]Message
	next      map[string]int64
	closed    bool
}

type LocalOption func(*LocalProducer)

// WithRetention caps the in-memory messages per topic; n <= 0 keeps the default
func WithRetention(n int) LocalOption {
	return func(p *LocalProducer) {
		if n > 0 {
			p.retention = n
		}
	}
}

// NewLocalProducer creates a local producer, mirroring to dir when not empty
func NewLocalProducer(dir string, opts ...LocalOption) (*LocalProducer, error) {
	if dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, errors.Wrapf(err, "create message bus directory %s", dir)
		}
	}
	p := &LocalProducer{
		dir:       dir,
		retention: DefaultLocalRetention,
		messages:  make(map[string][]Message),
		next:      make(map[string]int64),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Send stores the message, single partition, offsets counting from 0 per topic.
// Offsets keep growing after old messages are dropped.
func (p *LocalProducer) Send(ctx context.Context, message *Message) (int32, int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, 0, err
	}

	p.mutex.Lock()
	defer p.mutex.Unlock()
	if p.closed {
		return 0, 0, errors.New("producer is closed")
	}

	message.Timestamp = time.Now()
	message.Partition = 0
	message.Offset = p.next[message.Topic]

	if p.dir != "" {
		if err := p.mirror(message); err != nil {
			return 0, 0, err
		}
	}
	p.next[message.Topic]++
	kept := append(p.messages[message.Topic], *message)
	if over := len(kept) - p.retention; over > 0 {
		kept = append(kept[:0:0], kept[over:]...)
	}
	p.messages[message.Topic] = kept
	return message.Partition, message.Offset, nil
}

func (p *LocalProducer) mirror(message *Message) error {
	topicDir := filepath.Join(p.dir, message.Topic)
	if err := os.MkdirAll(topicDir, 0755); err != nil {
		return errors.Wrapf(err, "create topic directory %s", topicDir)
	}
	data, err := sonic.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	filename := filepath.Join(topicDir, fmt.Sprintf("%010d.json", message.Offset))
	return errors.Wrapf(os.WriteFile(filename, data, 0644), "write message file %s", filename)
}

// SendAsync sends a message asynchronously
func (p *LocalProducer) SendAsync(ctx context.Context, message *Message) <-chan SendResult {
	resultChan := make(chan SendResult, 1)
	go func() {
		defer close(resultChan)
		partition, offset, err := p.Send(ctx, message)
		resultChan <- SendResult{Partition: partition, Offset: offset, Error: err}
	}()
	return resultChan
}

// Messages returns a copy of the retained messages of topic, oldest first
func (p *LocalProducer) Messages(topic string) []Message {
	p.mutex.RLock()
	defer p.mutex.RUnlock()
	out := make([]Message, len(p.messages[topic]))
	copy(out, p.messages[topic])
	return out
}

// Close closes the local producer
func (p *LocalProducer) Close() error {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.closed = true
	return nil
}
