package activity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"todoservice/internal/identity"
	"todoservice/internal/todo"
	"todoservice/shared/configstore"
	"todoservice/shared/logging"
	"todoservice/shared/messagebus"
	"todoservice/shared/utils"
)

type failingStore struct {
	configstore.ConfigStore
}

func (failingStore) InsertOne(context.Context, string, interface{}) (interface{}, error) {
	return nil, errors.New("disk full")
}

func newRecorder(t *testing.T) (*Recorder, *messagebus.LocalProducer) {
	t.Helper()
	producer, err := messagebus.NewLocalProducer("")
	require.NoError(t, err)
	store, err := configstore.NewLocalFileConfigStore("")
	require.NoError(t, err)
	return NewRecorder(Config{}, producer, store, logging.NewMockLogger()), producer
}

func TestNotifyPublishesAndStores(t *testing.T) {
	rec, producer := newRecorder(t)
	ctx := utils.WithTraceID(context.Background(), "trace-1")
	ctx = identity.WithCaller(ctx, identity.Caller{Name: "alice"})
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	err := rec.Notify(ctx, todo.Event{
		Type: todo.EventUpdated, TodoID: "t1", At: at,
		Changes: map[string]interface{}{"status": "completed"},
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool { return len(producer.Messages(DefaultTopic)) == 1 }, time.Second, 10*time.Millisecond)
	msg := producer.Messages(DefaultTopic)[0]
	assert.Equal(t, "t1", msg.Key)
	assert.Equal(t, "trace-1", msg.Headers[utils.TraceIDHeader])
	assert.Equal(t, "updated", msg.Headers["eventType"])

	assert.Equal(t, ContentTypeProtobuf, msg.Headers[ContentTypeHeader])

	published, err := DecodeEntry(msg.Value)
	require.NoError(t, err)
	assert.Equal(t, "alice", published.Actor)
	assert.Equal(t, todo.EventUpdated, published.Type)

	entries, err := rec.List(context.Background(), "t1", 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "alice", entries[0].Actor)
	assert.Equal(t, "trace-1", entries[0].TraceID)
	assert.Equal(t, "completed", entries[0].Changes["status"])
	assert.True(t, at.Equal(entries[0].Timestamp))
}

func TestListOldestFirstPerTodo(t *testing.T) {
	rec, _ := newRecorder(t)
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, rec.Notify(ctx, todo.Event{Type: todo.EventDeleted, TodoID: "a", At: base.Add(2 * time.Minute)}))
	require.NoError(t, rec.Notify(ctx, todo.Event{Type: todo.EventCreated, TodoID: "a", At: base}))
	require.NoError(t, rec.Notify(ctx, todo.Event{Type: todo.EventCreated, TodoID: "b", At: base.Add(time.Minute)}))

	entries, err := rec.List(ctx, "a", 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, todo.EventCreated, entries[0].Type)
	assert.Equal(t, todo.EventDeleted, entries[1].Type)
	assert.Equal(t, identity.Anonymous, entries[0].Actor)

	none, err := rec.List(ctx, "zzz", 0)
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestListLimitKeepsMostRecent(t *testing.T) {
	rec, _ := newRecorder(t)
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, rec.Notify(ctx, todo.Event{Type: todo.EventUpdated, TodoID: "a", At: base.Add(time.Minute)}))
	require.NoError(t, rec.Notify(ctx, todo.Event{Type: todo.EventDeleted, TodoID: "a", At: base.Add(2 * time.Minute)}))
	require.NoError(t, rec.Notify(ctx, todo.Event{Type: todo.EventCreated, TodoID: "a", At: base}))

	entries, err := rec.List(ctx, "a", 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, todo.EventUpdated, entries[0].Type)
	assert.Equal(t, todo.EventDeleted, entries[1].Type)

	all, err := rec.List(ctx, "a", 10)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, todo.EventCreated, all[0].Type)
}

func TestRecorderWithoutSinks(t *testing.T) {
	rec := NewRecorder(Config{}, nil, nil, logging.NewMockLogger())
	require.NoError(t, rec.Notify(context.Background(), todo.Event{Type: todo.EventCreated, TodoID: "a"}))
	entries, err := rec.List(context.Background(), "a", 0)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestNotifyStoreFailure(t *testing.T) {
	rec := NewRecorder(Config{Collection: "c"}, nil, failingStore{}, logging.NewMockLogger())
	err := rec.Notify(context.Background(), todo.Event{Type: todo.EventCreated, TodoID: "a"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Contains(t, err.Error(), "todo a")
}

func TestNotifyLogsDeliveryFailure(t *testing.T) {
	producer, err := messagebus.NewLocalProducer("")
	require.NoError(t, err)
	require.NoError(t, producer.Close())
	logger := logging.NewMockLogger()
	rec := NewRecorder(Config{}, producer, nil, logger)

	require.NoError(t, rec.Notify(context.Background(), todo.Event{Type: todo.EventCreated, TodoID: "a"}))
	require.Eventually(t, func() bool {
		return logger.HasLogEntryContaining(logging.WarnLevel, "not delivered")
	}, time.Second, 10*time.Millisecond)
}
