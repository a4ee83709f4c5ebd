package configstore

import (
	"context"
	"fmt"
	"strings"
)

// ConfigStore defines a document store modeled after common MongoDB operations.
// Filters are equality matches on top-level fields.
type ConfigStore interface {
	InsertOne(ctx context.Context, collection string, document interface{}) (insertedID interface{}, err error)
	FindMany(ctx context.Context, collection string, filter map[string]interface{}, opts FindOptions, results interface{}) error
	Ping(ctx context.Context) error
	Close() error
}

// FindOptions controls ordering and size of FindMany results
type FindOptions struct {
	SortField  string
	Descending bool
	Limit      int64
}

const (
	BackendMongo = "mongo"
	BackendLocal = "local"
)

// Config selects the store implementation
type Config struct {
	Backend  string
	URI      string
	Database string
	// LocalFile persists the local store, memory only when empty
	LocalFile string
}

// New builds the store selected by cfg.Backend
func New(ctx context.Context, cfg Config) (ConfigStore, error) {
	switch strings.ToLower(cfg.Backend) {
	case "", BackendLocal:
		s, err := NewLocalFileConfigStore(cfg.LocalFile)
		if err != nil {
			return nil, err
		}
		return s, nil
	case BackendMongo:
		s, err := NewMongoConfigStore(ctx, cfg.URI, cfg.Database)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown config store backend %q", cfg.Backend)
	}
}
