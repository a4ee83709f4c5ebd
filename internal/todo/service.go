package todo

import (
	"context"
	"fmt"
	"time"

	"github.com/bytedance/sonic"

	"todoservice/shared/datastore"
	"todoservice/shared/logging"
)

const (
	DefaultIndex      = "todos"
	DefaultSearchSize = 10000
	DefaultScrollSize = 500
	DefaultTopTags    = 10
)

// createdAtLayout keeps millisecond precision fixed so stored values sort lexically too.
const createdAtLayout = "2006-01-02T15:04:05.000Z07:00"

// Config holds the per-deployment knobs of the service.
type Config struct {
	Index      string
	SearchSize int
	ScrollSize int
	TopTags    int
}

// DefaultConfig returns the defaults used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		Index:      DefaultIndex,
		SearchSize: DefaultSearchSize,
		ScrollSize: DefaultScrollSize,
		TopTags:    DefaultTopTags,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Index == "" {
		c.Index = d.Index
	}
	if c.SearchSize <= 0 {
		c.SearchSize = d.SearchSize
	}
	if c.ScrollSize <= 0 {
		c.ScrollSize = d.ScrollSize
	}
	if c.TopTags <= 0 {
		c.TopTags = d.TopTags
	}
	return c
}

// EventType names a successful mutation.
type EventType string

const (
	EventCreated EventType = "created"
	EventUpdated EventType = "updated"
	EventDeleted EventType = "deleted"
)

// Event describes one successful mutation.
type Event struct {
	Type    EventType
	TodoID  string
	Todo    *Todo
	Changes map[string]interface{}
	At      time.Time
}

// Notifier is told about every successful mutation. Its errors are logged
// and never change the outcome of the operation.
type Notifier interface {
	Notify(ctx context.Context, event Event) error
}

type Option func(*Service)

func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithClock overrides the time source used for createdAt.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// Service performs task operations against one index. It is cheap to build
// and is normally constructed per request around a caller-scoped client.
type Service struct {
	client   datastore.OpenSearchClient
	cfg      Config
	logger   logging.Logger
	notifier Notifier
	now      func() time.Time
}

func NewService(client datastore.OpenSearchClient, cfg Config, logger logging.Logger, opts ...Option) *Service {
	s := &Service{
		client: client,
		cfg:    cfg.withDefaults(),
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Index returns the index the service reads and writes.
func (s *Service) Index() string {
	return s.cfg.Index
}

// EnsureCollection creates the index with the task mapping when it is absent.
func (s *Service) EnsureCollection(ctx context.Context) error {
	exists, err := s.client.IndexExists(ctx, s.cfg.Index)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	s.logger.WithContext(ctx).Infow("Creating todo index", "index", s.cfg.Index)
	return s.client.CreateIndex(ctx, s.cfg.Index, indexBody())
}

// ListAll returns every task, newest first.
func (s *Service) ListAll(ctx context.Context) ([]Todo, error) {
	if err := s.EnsureCollection(ctx); err != nil {
		return nil, err
	}
	todos := make([]Todo, 0)
	var decodeErr error
	err := s.client.ScrollQuery(ctx, s.cfg.Index, listQuery(), s.cfg.ScrollSize, func(batch []datastore.Document) bool {
		for _, doc := range batch {
			t, err := fromDocument(doc)
			if err != nil {
				decodeErr = err
				return false
			}
			todos = append(todos, t)
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	if decodeErr != nil {
		return nil, decodeErr
	}
	return todos, nil
}

// GetByID returns the task and true, or false with a nil error when no
// task has that id.
func (s *Service) GetByID(ctx context.Context, id string) (Todo, bool, error) {
	doc, err := s.client.Get(ctx, s.cfg.Index, id)
	if err != nil {
		if datastore.IsNotFound(err) {
			return Todo{}, false, nil
		}
		return Todo{}, false, err
	}
	t, err := fromDocument(*doc)
	if err != nil {
		return Todo{}, false, err
	}
	return t, true, nil
}

// Create stores a new task and returns it with its assigned id.
func (s *Service) Create(ctx context.Context, f Fields) (Todo, error) {
	if err := f.Validate(); err != nil {
		return Todo{}, err
	}
	if err := s.EnsureCollection(ctx); err != nil {
		return Todo{}, err
	}
	t := Todo{
		Title:       f.Title,
		Description: f.Description,
		Status:      f.Status,
		Priority:    f.Priority,
		Tags:        normalizeTags(f.Tags),
		CreatedAt:   s.now().UTC().Truncate(time.Millisecond),
	}
	id, err := s.client.Index(ctx, s.cfg.Index, "", toDocument(t))
	if err != nil {
		return Todo{}, err
	}
	t.ID = id
	s.logger.WithContext(ctx).Debugw("Created todo", "todoId", id)
	s.notify(ctx, Event{Type: EventCreated, TodoID: id, Todo: &t})
	return t, nil
}

// Update merges the patch into an existing task and returns the stored result.
func (s *Service) Update(ctx context.Context, id string, p Patch) (Todo, error) {
	if err := p.Validate(); err != nil {
		return Todo{}, err
	}
	if err := s.EnsureCollection(ctx); err != nil {
		return Todo{}, err
	}
	exists, err := s.client.Exists(ctx, s.cfg.Index, id)
	if err != nil {
		return Todo{}, err
	}
	if !exists {
		return Todo{}, &NotFoundError{ID: id}
	}
	changes := p.Doc()
	if !p.IsEmpty() {
		if err := s.client.Update(ctx, s.cfg.Index, id, changes); err != nil {
			return Todo{}, err
		}
	}
	t, found, err := s.GetByID(ctx, id)
	if err != nil {
		return Todo{}, err
	}
	if !found {
		// deleted between the write and the read
		return Todo{}, &NotFoundError{ID: id}
	}
	if !p.IsEmpty() {
		s.logger.WithContext(ctx).Debugw("Updated todo", "todoId", id, "fields", len(changes))
		s.notify(ctx, Event{Type: EventUpdated, TodoID: id, Todo: &t, Changes: changes})
	}
	return t, nil
}

// DeleteByID removes the task. Deleting an id that does not exist succeeds.
func (s *Service) DeleteByID(ctx context.Context, id string) error {
	if err := s.EnsureCollection(ctx); err != nil {
		return err
	}
	if err := s.client.Delete(ctx, s.cfg.Index, id); err != nil {
		if datastore.IsNotFound(err) {
			s.logger.WithContext(ctx).Debugw("Todo already absent", "todoId", id)
			return nil
		}
		return err
	}
	s.notify(ctx, Event{Type: EventDeleted, TodoID: id})
	return nil
}

// Search runs one full-text query over title, description and tags and
// returns matches newest first.
func (s *Service) Search(ctx context.Context, q string) ([]Todo, error) {
	if err := s.EnsureCollection(ctx); err != nil {
		return nil, err
	}
	res, err := s.client.Search(ctx, s.cfg.Index, searchQuery(q, s.cfg.SearchSize))
	if err != nil {
		return nil, err
	}
	todos := make([]Todo, 0, len(res.Hits))
	for _, doc := range res.Hits {
		t, err := fromDocument(doc)
		if err != nil {
			return nil, err
		}
		todos = append(todos, t)
	}
	return todos, nil
}

func (s *Service) notify(ctx context.Context, event Event) {
	if s.notifier == nil {
		return
	}
	event.At = s.now().UTC()
	if err := s.notifier.Notify(ctx, event); err != nil {
		s.logger.WithContext(ctx).WithError(err).Warnw("Failed to record todo event",
			"todoId", event.TodoID, "event", string(event.Type))
	}
}

// document is the stored source. The id lives in the document metadata.
type document struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Status      Status   `json:"status"`
	Priority    Priority `json:"priority"`
	Tags        []string `json:"tags"`
	CreatedAt   string   `json:"createdAt"`
}

func toDocument(t Todo) document {
	return document{
		Title:       t.Title,
		Description: t.Description,
		Status:      t.Status,
		Priority:    t.Priority,
		Tags:        normalizeTags(t.Tags),
		CreatedAt:   t.CreatedAt.UTC().Format(createdAtLayout),
	}
}

func fromDocument(doc datastore.Document) (Todo, error) {
	var d document
	if err := sonic.Unmarshal(doc.Source, &d); err != nil {
		return Todo{}, fmt.Errorf("decode todo %s: %w", doc.ID, err)
	}
	t := Todo{
		ID:          doc.ID,
		Title:       d.Title,
		Description: d.Description,
		Status:      d.Status,
		Priority:    d.Priority,
		Tags:        normalizeTags(d.Tags),
	}
	if d.CreatedAt != "" {
		created, err := time.Parse(time.RFC3339Nano, d.CreatedAt)
		if err != nil {
			return Todo{}, fmt.Errorf("decode todo %s createdAt: %w", doc.ID, err)
		}
		t.CreatedAt = created.UTC()
	}
	return t, nil
}
