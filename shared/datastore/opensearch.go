package datastore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/bytedance/sonic"
	"github.com/disaster37/opensearch/v2"
)

const resourceAlreadyExists = "resource_already_exists_exception"

type OpenSearchClientImpl struct {
	client  *opensearch.Client
	headers http.Header
	refresh string
}

// NewOpenSearchClient creates a new OpenSearch client.
// Example usage:
//
//	client, err := NewOpenSearchClient(opensearch.SetURL("http://localhost:9200"))
func NewOpenSearchClient(options ...opensearch.ClientOptionFunc) (*OpenSearchClientImpl, error) {
	client, err := opensearch.NewClient(options...)
	if err != nil {
		return nil, err
	}
	return &OpenSearchClientImpl{client: client, refresh: DefaultRefresh}, nil
}

// WithRefresh returns a copy using the given refresh policy on writes ("true", "false", "wait_for")
func (c *OpenSearchClientImpl) WithRefresh(refresh string) *OpenSearchClientImpl {
	clone := *c
	clone.refresh = refresh
	return &clone
}

func (c *OpenSearchClientImpl) WithHeaders(headers http.Header) OpenSearchClient {
	clone := *c
	clone.headers = headers.Clone()
	return &clone
}

func (c *OpenSearchClientImpl) IndexExists(ctx context.Context, index string) (bool, error) {
	return c.client.IndexExists(index).Headers(c.headers).Do(ctx)
}

func (c *OpenSearchClientImpl) CreateIndex(ctx context.Context, index string, body interface{}) error {
	resp, err := c.client.CreateIndex(index).BodyJson(body).Headers(c.headers).Do(ctx)
	if err != nil {
		var osErr *opensearch.Error
		if errors.As(err, &osErr) && osErr.Details != nil && osErr.Details.Type == resourceAlreadyExists {
			return nil
		}
		return err
	}
	if !resp.Acknowledged {
		return fmt.Errorf("create index %s not acknowledged", index)
	}
	return nil
}

func (c *OpenSearchClientImpl) Index(ctx context.Context, index, id string, body interface{}) (string, error) {
	svc := c.client.Index().Index(index).BodyJson(body).Refresh(c.refresh).Headers(c.headers)
	if id != "" {
		svc = svc.Id(id)
	}
	resp, err := svc.Do(ctx)
	if err != nil {
		return "", err
	}
	if resp.Result != "created" && resp.Result != "updated" {
		return "", fmt.Errorf("index error: %v", resp.Result)
	}
	return resp.Id, nil
}

func (c *OpenSearchClientImpl) Get(ctx context.Context, index, id string) (*Document, error) {
	resp, err := c.client.Get().Index(index).Id(id).Headers(c.headers).Do(ctx)
	if err != nil {
		if opensearch.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if !resp.Found {
		return nil, ErrNotFound
	}
	return &Document{ID: resp.Id, Source: resp.Source}, nil
}

func (c *OpenSearchClientImpl) Exists(ctx context.Context, index, id string) (bool, error) {
	return c.client.Exists().Index(index).Id(id).Headers(c.headers).Do(ctx)
}

func (c *OpenSearchClientImpl) Update(ctx context.Context, index, id string, doc interface{}) error {
	_, err := c.client.Update().Index(index).Id(id).Doc(doc).Refresh(c.refresh).Headers(c.headers).Do(ctx)
	return err
}

func (c *OpenSearchClientImpl) Delete(ctx context.Context, index, id string) error {
	resp, err := c.client.Delete().Index(index).Id(id).Refresh(c.refresh).Headers(c.headers).Do(ctx)
	if err != nil {
		return err
	}
	if resp.Result != "deleted" {
		return fmt.Errorf("delete error: %v", resp.Result)
	}
	return nil
}

func (c *OpenSearchClientImpl) Search(ctx context.Context, index string, query interface{}) (*SearchResult, error) {
	resp, err := c.client.Search(index).Source(query).Headers(c.headers).Do(ctx)
	if err != nil {
		return nil, err
	}
	result := &SearchResult{Aggregations: make(map[string]json.RawMessage)}
	if resp.Hits != nil {
		if resp.Hits.TotalHits != nil {
			result.Total = resp.Hits.TotalHits.Value
		}
		result.Hits = make([]Document, 0, len(resp.Hits.Hits))
		for _, hit := range resp.Hits.Hits {
			result.Hits = append(result.Hits, Document{ID: hit.Id, Source: hit.Source})
		}
	}
	for name, raw := range resp.Aggregations {
		result.Aggregations[name] = raw
	}
	return result, nil
}

func (c *OpenSearchClientImpl) Ping(ctx context.Context) error {
	_, err := c.client.ClusterHealth().Headers(c.headers).Do(ctx)
	return err
}

func (c *OpenSearchClientImpl) Close() error {
	// opensearch.Client does not require explicit close
	return nil
}

// ScrollQuery executes a query with scroll and invokes callback for each batch of results
func (c *OpenSearchClientImpl) ScrollQuery(ctx context.Context, index string, query interface{}, pageSize int, callback func([]Document) bool) error {
	body, err := sonic.Marshal(query)
	if err != nil {
		return fmt.Errorf("failed to marshal query: %w", err)
	}
	scroll := c.client.Scroll(index).Size(pageSize).Body(string(body)).Headers(c.headers)
	scrollID := ""
	defer func() {
		if scrollID != "" {
			// best effort, the context expires on its own otherwise
			_, _ = c.client.ClearScroll().ScrollId(scrollID).Headers(c.headers).Do(context.Background())
		}
	}()
	for {
		resp, err := scroll.Do(ctx)
		if resp != nil && resp.ScrollId != "" {
			scrollID = resp.ScrollId
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if resp.Hits == nil || len(resp.Hits.Hits) == 0 {
			return nil
		}
		batch := make([]Document, 0, len(resp.Hits.Hits))
		for _, hit := range resp.Hits.Hits {
			batch = append(batch, Document{ID: hit.Id, Source: hit.Source})
		}
		if !callback(batch) {
			return nil
		}
		if resp.ScrollId == "" {
			return nil
		}
		scroll = c.client.Scroll().ScrollId(resp.ScrollId).Headers(c.headers)
	}
}
