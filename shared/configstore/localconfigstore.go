package configstore

import (
	"context"
	"encoding/json"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// matchesFilter returns true if all key-value pairs in filter match those in doc.
func matchesFilter(doc, filter map[string]interface{}) bool {
	for k, v := range filter {
		if doc[k] != v {
			return false
		}
	}
	return true
}

// LocalFileConfigStore keeps documents in memory, persisted to a JSON file when a path is set
type LocalFileConfigStore struct {
	filePath string
	mu       sync.RWMutex
	data     map[string][]json.RawMessage // collection -> documents in insertion order
}

func NewLocalFileConfigStore(filePath string) (*LocalFileConfigStore, error) {
	store := &LocalFileConfigStore{
		filePath: filePath,
		data:     make(map[string][]json.RawMessage),
	}
	if filePath != "" {
		if err := store.load(); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, errors.Wrapf(err, "load config store %s", filePath)
		}
	}
	return store, nil
}

func (l *LocalFileConfigStore) InsertOne(_ context.Context, collection string, document interface{}) (interface{}, error) {
	b, err := sonic.Marshal(document)
	if err != nil {
		return nil, err
	}
	var doc map[string]interface{}
	if err := sonic.Unmarshal(b, &doc); err != nil {
		return nil, errors.Wrap(err, "document must be a JSON object")
	}
	id, ok := doc["_id"]
	if !ok {
		id = uuid.NewString()
		doc["_id"] = id
		if b, err = sonic.Marshal(doc); err != nil {
			return nil, err
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.data[collection] = append(l.data[collection], b)
	if err := l.save(); err != nil {
		l.data[collection] = l.data[collection][:len(l.data[collection])-1]
		return nil, err
	}
	return id, nil
}

// FindMany decodes every matching document into results, a pointer to a slice.
// A collection never written to yields no results.
func (l *LocalFileConfigStore) FindMany(_ context.Context, collection string, filter map[string]interface{}, opts FindOptions, results interface{}) error {
	// normalise filter values the same way stored documents were
	var normFilter map[string]interface{}
	if err := roundTrip(filter, &normFilter); err != nil {
		return err
	}

	l.mu.RLock()
	var matched []map[string]interface{}
	for _, raw := range l.data[collection] {
		var doc map[string]interface{}
		if err := sonic.Unmarshal(raw, &doc); err != nil {
			l.mu.RUnlock()
			return err
		}
		if matchesFilter(doc, normFilter) {
			matched = append(matched, doc)
		}
	}
	l.mu.RUnlock()

	if opts.SortField != "" {
		sort.SliceStable(matched, func(i, j int) bool {
			c := compareField(matched[i][opts.SortField], matched[j][opts.SortField])
			if opts.Descending {
				return c > 0
			}
			return c < 0
		})
	}
	if opts.Limit > 0 && int64(len(matched)) > opts.Limit {
		matched = matched[:opts.Limit]
	}
	if matched == nil {
		matched = []map[string]interface{}{}
	}
	return roundTrip(matched, results)
}

func (l *LocalFileConfigStore) Ping(context.Context) error { return nil }

func (l *LocalFileConfigStore) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.save()
}

func (l *LocalFileConfigStore) save() error {
	if l.filePath == "" {
		return nil
	}
	b, err := sonic.Marshal(l.data)
	if err != nil {
		return err
	}
	return errors.Wrapf(os.WriteFile(l.filePath, b, 0644), "save config store %s", l.filePath)
}

func (l *LocalFileConfigStore) load() error {
	b, err := os.ReadFile(l.filePath)
	if err != nil {
		return err
	}
	return sonic.Unmarshal(b, &l.data)
}

func roundTrip(in, out interface{}) error {
	b, err := sonic.Marshal(in)
	if err != nil {
		return err
	}
	return sonic.Unmarshal(b, out)
}

// compareField orders numbers numerically, RFC 3339 timestamps chronologically
// and anything else as strings
func compareField(a, b interface{}) int {
	if af, ok := a.(float64); ok {
		if bf, ok := b.(float64); ok {
			switch {
			case af < bf:
				return -1
			case af > bf:
				return 1
			}
			return 0
		}
	}
	as, _ := a.(string)
	bs, _ := b.(string)
	at, errA := time.Parse(time.RFC3339Nano, as)
	bt, errB := time.Parse(time.RFC3339Nano, bs)
	if errA == nil && errB == nil {
		return at.Compare(bt)
	}
	return strings.Compare(as, bs)
}
