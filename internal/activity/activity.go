// Package activity keeps the lifecycle history of tasks. Every successful
// mutation is published on the message bus and stored in the config store.
package activity

import (
	"context"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"todoservice/internal/identity"
	"todoservice/internal/todo"
	"todoservice/shared/configstore"
	"todoservice/shared/logging"
	"todoservice/shared/messagebus"
	"todoservice/shared/utils"
)

const (
	DefaultTopic      = "todo-events"
	DefaultCollection = "todo_activity"
)

// Entry is one recorded lifecycle event.
type Entry struct {
	ID        string                 `json:"id" bson:"_id"`
	TodoID    string                 `json:"todoId" bson:"todoId"`
	Type      todo.EventType         `json:"type" bson:"type"`
	Actor     string                 `json:"actor" bson:"actor"`
	TraceID   string                 `json:"traceId,omitempty" bson:"traceId,omitempty"`
	Changes   map[string]interface{} `json:"changes,omitempty" bson:"changes,omitempty"`
	Todo      *todo.Todo             `json:"todo,omitempty" bson:"todo,omitempty"`
	Timestamp time.Time              `json:"timestamp" bson:"timestamp"`
}

type Config struct {
	Topic      string
	Collection string
}

// Recorder implements todo.Notifier. Either sink may be nil.
type Recorder struct {
	producer   messagebus.Producer
	store      configstore.ConfigStore
	topic      string
	collection string
	logger     logging.Logger
}

func NewRecorder(cfg Config, producer messagebus.Producer, store configstore.ConfigStore, logger logging.Logger) *Recorder {
	if cfg.Topic == "" {
		cfg.Topic = DefaultTopic
	}
	if cfg.Collection == "" {
		cfg.Collection = DefaultCollection
	}
	return &Recorder{
		producer:   producer,
		store:      store,
		topic:      cfg.Topic,
		collection: cfg.Collection,
		logger:     logger,
	}
}

// NewEntry turns a service event into a history entry stamped with the
// caller and trace id found in ctx.
func NewEntry(ctx context.Context, event todo.Event) Entry {
	at := event.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	traceID, _ := utils.GetTraceID(ctx)
	return Entry{
		ID:        uuid.NewString(),
		TodoID:    event.TodoID,
		Type:      event.Type,
		Actor:     identity.FromContext(ctx).Name,
		TraceID:   traceID,
		Changes:   event.Changes,
		Todo:      event.Todo,
		Timestamp: at,
	}
}

// Notify publishes the event without waiting for delivery and stores it.
// Only a store failure is returned; delivery failures are logged.
func (r *Recorder) Notify(ctx context.Context, event todo.Event) error {
	entry := NewEntry(ctx, event)
	logger := r.logger.WithContext(ctx)

	if r.producer != nil {
		if err := r.publish(ctx, entry, logger); err != nil {
			logger.WithError(err).Warnw("Failed to publish todo event", "todoId", entry.TodoID)
		}
	}
	if r.store == nil {
		return nil
	}
	if _, err := r.store.InsertOne(ctx, r.collection, entry); err != nil {
		return errors.Wrapf(err, "record %s event for todo %s", entry.Type, entry.TodoID)
	}
	return nil
}

func (r *Recorder) publish(ctx context.Context, entry Entry, logger logging.Logger) error {
	value, err := EncodeEntry(entry)
	if err != nil {
		return err
	}
	msg := &messagebus.Message{
		Topic:     r.topic,
		Key:       entry.TodoID,
		Value:     value,
		Headers:   map[string]string{"eventType": string(entry.Type), ContentTypeHeader: ContentTypeProtobuf},
		Timestamp: entry.Timestamp,
	}
	if entry.TraceID != "" {
		msg.Headers[utils.TraceIDHeader] = entry.TraceID
	}
	// delivery outlives the request
	results := r.producer.SendAsync(context.WithoutCancel(ctx), msg)
	go func() {
		if res := <-results; res.Error != nil {
			logger.WithError(res.Error).Warnw("Todo event not delivered", "todoId", entry.TodoID, "topic", r.topic)
		}
	}()
	return nil
}

// List returns the history of one task, oldest first. A positive limit
// keeps only the most recent entries.
func (r *Recorder) List(ctx context.Context, todoID string, limit int) ([]Entry, error) {
	entries := make([]Entry, 0)
	if r.store == nil {
		return entries, nil
	}
	opts := configstore.FindOptions{SortField: "timestamp"}
	if limit > 0 {
		opts.Descending = true
		opts.Limit = int64(limit)
	}
	err := r.store.FindMany(ctx, r.collection, map[string]interface{}{"todoId": todoID}, opts, &entries)
	if err != nil {
		return nil, errors.Wrapf(err, "list activity for todo %s", todoID)
	}
	if opts.Descending {
		slices.Reverse(entries)
	}
	return entries, nil
}
