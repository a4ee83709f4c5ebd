package datastore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/disaster37/opensearch/v2"

	"todoservice/shared/logging"
)

// ErrNotFound is returned when a document (or the index holding it) does not exist.
var ErrNotFound = errors.New("document not found")

// IsNotFound reports whether err means "absent", either ErrNotFound or a
// backend 404 response.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrNotFound) || opensearch.IsNotFound(err)
}

// OpenSearchClient defines the document-store operations used by the services.
// Every call is a single backend round trip unless noted otherwise.
type OpenSearchClient interface {
	// IndexExists checks whether the index is present
	IndexExists(ctx context.Context, index string) (bool, error)

	// CreateIndex creates the index with the given settings/mappings body.
	// An index that already exists is not an error.
	CreateIndex(ctx context.Context, index string, body interface{}) error

	// Index writes a document. An empty id lets the store assign one; the stored id is returned.
	Index(ctx context.Context, index string, id string, body interface{}) (string, error)

	// Get retrieves a document by ID, ErrNotFound when absent
	Get(ctx context.Context, index string, id string) (*Document, error)

	// Exists checks for a document by ID
	Exists(ctx context.Context, index string, id string) (bool, error)

	// Update merges doc into the stored document
	Update(ctx context.Context, index string, id string, doc interface{}) error

	// Delete removes a document by ID. A missing document yields an error satisfying IsNotFound.
	Delete(ctx context.Context, index string, id string) error

	// Search runs a full request body (query, sort, size, aggs) once
	Search(ctx context.Context, index string, query interface{}) (*SearchResult, error)

	// ScrollQuery executes a query with scroll and invokes callback for each batch of results
	// until the callback returns false or the hits are exhausted
	ScrollQuery(ctx context.Context, index string, query interface{}, pageSize int, callback func([]Document) bool) error

	// Ping checks that the store is reachable
	Ping(ctx context.Context) error

	// WithHeaders returns a handle sending the given headers on every request
	WithHeaders(headers http.Header) OpenSearchClient

	// Close releases any resources held by the client
	Close() error
}

// Document is one stored document with its raw source
type Document struct {
	ID     string
	Source json.RawMessage
}

// SearchResult holds the hits of a single search request
type SearchResult struct {
	Hits         []Document
	Total        int64
	Aggregations map[string]json.RawMessage
}

// TermsBucket is one bucket of a terms aggregation
type TermsBucket struct {
	Key      string `json:"key"`
	DocCount int64  `json:"doc_count"`
}

// TermsBuckets decodes the named terms aggregation. A missing aggregation yields no buckets.
func (r *SearchResult) TermsBuckets(name string) ([]TermsBucket, error) {
	raw, ok := r.Aggregations[name]
	if !ok {
		return nil, nil
	}
	var agg struct {
		Buckets []TermsBucket `json:"buckets"`
	}
	if err := sonic.Unmarshal(raw, &agg); err != nil {
		return nil, fmt.Errorf("decode aggregation %s: %w", name, err)
	}
	return agg.Buckets, nil
}

const (
	BackendOpenSearch = "opensearch"
	BackendLocal      = "local"

	DefaultRefresh = "wait_for"
)

// Config selects and configures the document store
type Config struct {
	Backend     string
	URLs        []string
	Username    string
	Password    string
	Refresh     string
	Sniff       bool
	Healthcheck bool
}

// New builds the client selected by cfg.Backend
func New(cfg Config, logger logging.Logger) (OpenSearchClient, error) {
	switch strings.ToLower(cfg.Backend) {
	case BackendLocal:
		logger.Infow("Using in-memory datastore")
		return NewLocalClient(), nil
	case "", BackendOpenSearch:
		if len(cfg.URLs) == 0 {
			return nil, errors.New("at least one opensearch url is required")
		}
		options := []opensearch.ClientOptionFunc{
			opensearch.SetURL(cfg.URLs...),
			opensearch.SetSniff(cfg.Sniff),
			opensearch.SetHealthcheck(cfg.Healthcheck),
		}
		if cfg.Username != "" {
			options = append(options, opensearch.SetBasicAuth(cfg.Username, cfg.Password))
		}
		client, err := NewOpenSearchClient(options...)
		if err != nil {
			return nil, err
		}
		refresh := cfg.Refresh
		if refresh == "" {
			refresh = DefaultRefresh
		}
		logger.Infow("Using opensearch datastore", "urls", cfg.URLs, "refresh", refresh)
		return client.WithRefresh(refresh), nil
	default:
		return nil, fmt.Errorf("unknown datastore backend %q", cfg.Backend)
	}
}
