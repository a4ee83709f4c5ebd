package datastore

import (
	"context"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"todoservice/shared/logging"
)

var testMapping = map[string]interface{}{
	"mappings": map[string]interface{}{
		"properties": map[string]interface{}{
			"title":     map[string]string{"type": "text"},
			"status":    map[string]string{"type": "keyword"},
			"tags":      map[string]string{"type": "keyword"},
			"createdAt": map[string]string{"type": "date"},
		},
	},
}

type localTestDoc struct {
	Title     string   `json:"title"`
	Status    string   `json:"status"`
	Tags      []string `json:"tags"`
	CreatedAt string   `json:"createdAt"`
}

func seedLocal(t *testing.T) *LocalClient {
	t.Helper()
	ctx := context.Background()
	lc := NewLocalClient()
	require.NoError(t, lc.CreateIndex(ctx, "todos", testMapping))
	docs := []localTestDoc{
		{Title: "Project Alpha kickoff", Status: "planned", Tags: []string{"work", "alpha"}, CreatedAt: "2024-01-01T00:00:00.000Z"},
		{Title: "Buy milk", Status: "completed", Tags: []string{"home"}, CreatedAt: "2024-01-03T00:00:00.000Z"},
		{Title: "Alpha retro", Status: "planned", Tags: []string{"work"}, CreatedAt: "2024-01-02T00:00:00.000Z"},
	}
	for i, d := range docs {
		_, err := lc.Index(ctx, "todos", string(rune('a'+i)), d)
		require.NoError(t, err)
	}
	return lc
}

func hitIDs(docs []Document) []string {
	ids := make([]string, 0, len(docs))
	for _, d := range docs {
		ids = append(ids, d.ID)
	}
	return ids
}

func TestLocalClientCRUD(t *testing.T) {
	ctx := context.Background()
	lc := NewLocalClient()

	exists, err := lc.IndexExists(ctx, "todos")
	require.NoError(t, err)
	assert.False(t, exists)
	require.NoError(t, lc.CreateIndex(ctx, "todos", testMapping))
	require.NoError(t, lc.CreateIndex(ctx, "todos", testMapping))

	id, err := lc.Index(ctx, "todos", "", localTestDoc{Title: "first", Status: "planned"})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	ok, err := lc.Exists(ctx, "todos", id)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, lc.Update(ctx, "todos", id, map[string]string{"status": "completed"}))
	doc, err := lc.Get(ctx, "todos", id)
	require.NoError(t, err)
	var got localTestDoc
	require.NoError(t, sonic.Unmarshal(doc.Source, &got))
	assert.Equal(t, "first", got.Title)
	assert.Equal(t, "completed", got.Status)

	require.NoError(t, lc.Delete(ctx, "todos", id))
	_, err = lc.Get(ctx, "todos", id)
	assert.True(t, IsNotFound(err))
	assert.True(t, IsNotFound(lc.Delete(ctx, "todos", id)))
	assert.True(t, IsNotFound(lc.Update(ctx, "todos", id, map[string]string{"status": "error"})))

	ok, err = lc.Exists(ctx, "todos", id)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLocalClientSearchSortAndMatch(t *testing.T) {
	lc := seedLocal(t)
	ctx := context.Background()
	byDate := []map[string]interface{}{{"createdAt": map[string]string{"order": "desc"}}}

	all, err := lc.Search(ctx, "todos", map[string]interface{}{
		"query": map[string]interface{}{"match_all": map[string]interface{}{}},
		"sort":  byDate,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3), all.Total)
	assert.Equal(t, []string{"b", "c", "a"}, hitIDs(all.Hits))

	alpha, err := lc.Search(ctx, "todos", map[string]interface{}{
		"query": map[string]interface{}{"multi_match": map[string]interface{}{
			"query":  "ALPHA",
			"fields": []string{"title^2", "description", "tags"},
		}},
		"sort": byDate,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "a"}, hitIDs(alpha.Hits))

	// keyword fields need the exact value
	tagged, err := lc.Search(ctx, "todos", map[string]interface{}{
		"query": map[string]interface{}{"multi_match": map[string]interface{}{
			"query":  "home",
			"fields": []string{"tags"},
		}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, hitIDs(tagged.Hits))

	none, err := lc.Search(ctx, "todos", map[string]interface{}{
		"query": map[string]interface{}{"multi_match": map[string]interface{}{
			"query": "nothing here", "fields": []string{"title"},
		}},
	})
	require.NoError(t, err)
	assert.Empty(t, none.Hits)
	assert.NotNil(t, none.Hits)
}

func TestLocalClientScoreOrderWithoutSort(t *testing.T) {
	lc := seedLocal(t)

	res, err := lc.Search(context.Background(), "todos", map[string]interface{}{
		"query": map[string]interface{}{"multi_match": map[string]interface{}{
			"query":  "work alpha",
			"fields": []string{"title^2", "tags"},
		}},
	})
	require.NoError(t, err)
	// a and c both score 2 on the title, ties keep insertion order
	assert.Equal(t, []string{"a", "c"}, hitIDs(res.Hits))
}

func TestLocalClientSizeAndIDs(t *testing.T) {
	lc := seedLocal(t)
	ctx := context.Background()

	res, err := lc.Search(ctx, "todos", map[string]interface{}{"size": 1})
	require.NoError(t, err)
	assert.Equal(t, int64(3), res.Total)
	assert.Len(t, res.Hits, 1)

	res, err = lc.Search(ctx, "todos", map[string]interface{}{
		"query": map[string]interface{}{"ids": map[string]interface{}{"values": []string{"c", "zz"}}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, hitIDs(res.Hits))

	_, err = lc.Search(ctx, "todos", map[string]interface{}{
		"query": map[string]interface{}{"wildcard": map[string]interface{}{}},
	})
	assert.Error(t, err)

	_, err = lc.Search(ctx, "other", map[string]interface{}{})
	assert.True(t, IsNotFound(err))
}

func TestLocalClientTermsAggregation(t *testing.T) {
	lc := seedLocal(t)

	res, err := lc.Search(context.Background(), "todos", map[string]interface{}{
		"size": 0,
		"aggs": map[string]interface{}{
			"by_status": map[string]interface{}{"terms": map[string]interface{}{"field": "status"}},
			"by_tag":    map[string]interface{}{"terms": map[string]interface{}{"field": "tags", "size": 1}},
		},
	})
	require.NoError(t, err)
	assert.Empty(t, res.Hits)

	status, err := res.TermsBuckets("by_status")
	require.NoError(t, err)
	assert.Equal(t, []TermsBucket{{Key: "planned", DocCount: 2}, {Key: "completed", DocCount: 1}}, status)

	tags, err := res.TermsBuckets("by_tag")
	require.NoError(t, err)
	assert.Equal(t, []TermsBucket{{Key: "work", DocCount: 2}}, tags)
}

func TestLocalClientScrollQuery(t *testing.T) {
	lc := seedLocal(t)

	var batches [][]string
	err := lc.ScrollQuery(context.Background(), "todos", map[string]interface{}{
		"query": map[string]interface{}{"match_all": map[string]interface{}{}},
		"sort":  []map[string]interface{}{{"createdAt": "asc"}},
		"size":  1,
	}, 2, func(docs []Document) bool {
		batches = append(batches, hitIDs(docs))
		return true
	})
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"a", "c"}, {"b"}}, batches)

	calls := 0
	err = lc.ScrollQuery(context.Background(), "todos", map[string]interface{}{}, 1, func([]Document) bool {
		calls++
		return false
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestNewSelectsBackend(t *testing.T) {
	logger := logging.NewMockLogger()

	client, err := New(Config{Backend: BackendLocal}, logger)
	require.NoError(t, err)
	assert.IsType(t, &LocalClient{}, client)

	_, err = New(Config{Backend: BackendOpenSearch}, logger)
	assert.Error(t, err)

	client, err = New(Config{URLs: []string{"http://127.0.0.1:9200"}}, logger)
	require.NoError(t, err)
	assert.IsType(t, &OpenSearchClientImpl{}, client)

	_, err = New(Config{Backend: "cassandra"}, logger)
	assert.Error(t, err)
}

func TestPrefixedIndex(t *testing.T) {
	t.Setenv("SERVICE_HOME", t.TempDir())
	t.Setenv("ES_INDEX_PREFIX", "")
	t.Setenv("OPENSEARCH_INDEX_PREFIX", "")
	assert.Equal(t, "todos", PrefixedIndex("todos"))

	t.Setenv("OPENSEARCH_INDEX_PREFIX", "dev-")
	assert.Equal(t, "dev-todos", PrefixedIndex("todos"))
	assert.Equal(t, "dev-todos", PrefixedIndex("dev-todos"))

	t.Setenv("ES_INDEX_PREFIX", "prod-")
	assert.Equal(t, "prod-todos", PrefixedIndex("todos"))
}
