package datastore

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
)

// LocalClient implements OpenSearchClient in memory for development and tests.
// It understands the subset of the query DSL the services send: match_all,
// multi_match, ids, sort on a single field, size/from and terms aggregations.
type LocalClient struct {
	mutex   sync.RWMutex
	indices map[string]*localIndex
}

type localIndex struct {
	keywords map[string]bool
	docs     map[string]*localDoc
	seq      int64
}

type localDoc struct {
	seq    int64
	source map[string]interface{}
}

// localRequest is the part of a search body LocalClient evaluates
type localRequest struct {
	Query map[string]json.RawMessage `json:"query"`
	Sort  []map[string]interface{}   `json:"sort"`
	Size  *int                       `json:"size"`
	From  int                        `json:"from"`
	Aggs  map[string]struct {
		Terms *struct {
			Field string `json:"field"`
			Size  int    `json:"size"`
		} `json:"terms"`
	} `json:"aggs"`
}

type multiMatch struct {
	Query  string   `json:"query"`
	Fields []string `json:"fields"`
}

// NewLocalClient creates an empty in-memory datastore
func NewLocalClient() *LocalClient {
	return &LocalClient{indices: make(map[string]*localIndex)}
}

func (lc *LocalClient) WithHeaders(http.Header) OpenSearchClient { return lc }

func (lc *LocalClient) Ping(context.Context) error { return nil }

func (lc *LocalClient) Close() error { return nil }

func (lc *LocalClient) IndexExists(_ context.Context, index string) (bool, error) {
	lc.mutex.RLock()
	defer lc.mutex.RUnlock()
	_, ok := lc.indices[index]
	return ok, nil
}

func (lc *LocalClient) CreateIndex(_ context.Context, index string, body interface{}) error {
	var def struct {
		Mappings struct {
			Properties map[string]struct {
				Type string `json:"type"`
			} `json:"properties"`
		} `json:"mappings"`
	}
	if body != nil {
		if err := convert(body, &def); err != nil {
			return fmt.Errorf("invalid index definition: %w", err)
		}
	}

	lc.mutex.Lock()
	defer lc.mutex.Unlock()
	if _, ok := lc.indices[index]; ok {
		return nil
	}
	idx := lc.newIndex()
	for field, prop := range def.Mappings.Properties {
		if prop.Type == "keyword" {
			idx.keywords[field] = true
		}
	}
	lc.indices[index] = idx
	return nil
}

func (lc *LocalClient) Index(_ context.Context, index, id string, body interface{}) (string, error) {
	var source map[string]interface{}
	if err := convert(body, &source); err != nil {
		return "", fmt.Errorf("invalid document: %w", err)
	}
	if id == "" {
		id = uuid.NewString()
	}

	lc.mutex.Lock()
	defer lc.mutex.Unlock()
	idx, ok := lc.indices[index]
	if !ok {
		// like the real store, writing to a missing index creates it
		idx = lc.newIndex()
		lc.indices[index] = idx
	}
	idx.seq++
	idx.docs[id] = &localDoc{seq: idx.seq, source: source}
	return id, nil
}

func (lc *LocalClient) Get(_ context.Context, index, id string) (*Document, error) {
	lc.mutex.RLock()
	defer lc.mutex.RUnlock()
	doc, err := lc.lookup(index, id)
	if err != nil {
		return nil, err
	}
	raw, err := sonic.Marshal(doc.source)
	if err != nil {
		return nil, err
	}
	return &Document{ID: id, Source: raw}, nil
}

func (lc *LocalClient) Exists(_ context.Context, index, id string) (bool, error) {
	lc.mutex.RLock()
	defer lc.mutex.RUnlock()
	_, err := lc.lookup(index, id)
	return err == nil, nil
}

func (lc *LocalClient) Update(_ context.Context, index, id string, doc interface{}) error {
	var patch map[string]interface{}
	if err := convert(doc, &patch); err != nil {
		return fmt.Errorf("invalid partial document: %w", err)
	}

	lc.mutex.Lock()
	defer lc.mutex.Unlock()
	stored, err := lc.lookup(index, id)
	if err != nil {
		return err
	}
	for k, v := range patch {
		stored.source[k] = v
	}
	return nil
}

func (lc *LocalClient) Delete(_ context.Context, index, id string) error {
	lc.mutex.Lock()
	defer lc.mutex.Unlock()
	if _, err := lc.lookup(index, id); err != nil {
		return err
	}
	delete(lc.indices[index].docs, id)
	return nil
}

func (lc *LocalClient) Search(_ context.Context, index string, query interface{}) (*SearchResult, error) {
	var req localRequest
	if err := convert(query, &req); err != nil {
		return nil, fmt.Errorf("invalid search body: %w", err)
	}

	lc.mutex.RLock()
	defer lc.mutex.RUnlock()
	idx, ok := lc.indices[index]
	if !ok {
		return nil, fmt.Errorf("index %s: %w", index, ErrNotFound)
	}
	hits, err := idx.match(req)
	if err != nil {
		return nil, err
	}

	result := &SearchResult{
		Total:        int64(len(hits)),
		Aggregations: make(map[string]json.RawMessage),
	}
	for name, agg := range req.Aggs {
		if agg.Terms == nil {
			return nil, fmt.Errorf("aggregation %s: only terms aggregations are supported", name)
		}
		raw, err := termsAggregation(hits, agg.Terms.Field, agg.Terms.Size)
		if err != nil {
			return nil, err
		}
		result.Aggregations[name] = raw
	}

	size := 10
	if req.Size != nil {
		size = *req.Size
	}
	page := window(hits, req.From, size)
	result.Hits = make([]Document, 0, len(page))
	for _, h := range page {
		raw, err := sonic.Marshal(h.source)
		if err != nil {
			return nil, err
		}
		result.Hits = append(result.Hits, Document{ID: h.id, Source: raw})
	}
	return result, nil
}

func (lc *LocalClient) ScrollQuery(ctx context.Context, index string, query interface{}, pageSize int, callback func([]Document) bool) error {
	if pageSize <= 0 {
		pageSize = 10
	}
	var req map[string]interface{}
	if err := convert(query, &req); err != nil {
		return fmt.Errorf("invalid search body: %w", err)
	}
	if req == nil {
		req = make(map[string]interface{})
	}
	req["size"] = -1
	delete(req, "from")

	result, err := lc.Search(ctx, index, req)
	if err != nil {
		return err
	}
	for start := 0; start < len(result.Hits); start += pageSize {
		end := start + pageSize
		if end > len(result.Hits) {
			end = len(result.Hits)
		}
		if !callback(result.Hits[start:end]) {
			return nil
		}
	}
	return nil
}

func (lc *LocalClient) newIndex() *localIndex {
	return &localIndex{keywords: make(map[string]bool), docs: make(map[string]*localDoc)}
}

func (lc *LocalClient) lookup(index, id string) (*localDoc, error) {
	idx, ok := lc.indices[index]
	if !ok {
		return nil, fmt.Errorf("index %s: %w", index, ErrNotFound)
	}
	doc, ok := idx.docs[id]
	if !ok {
		return nil, fmt.Errorf("%s/%s: %w", index, id, ErrNotFound)
	}
	return doc, nil
}

type scoredDoc struct {
	id     string
	seq    int64
	score  float64
	source map[string]interface{}
}

func (idx *localIndex) match(req localRequest) ([]scoredDoc, error) {
	var hits []scoredDoc
	for id, doc := range idx.docs {
		score, ok, err := idx.score(req.Query, id, doc)
		if err != nil {
			return nil, err
		}
		if ok {
			hits = append(hits, scoredDoc{id: id, seq: doc.seq, score: score, source: doc.source})
		}
	}

	field, desc := "_score", true
	if len(req.Sort) > 0 {
		for f, clause := range req.Sort[0] {
			field = f
			desc = sortOrder(clause) == "desc"
		}
	}
	sort.SliceStable(hits, func(i, j int) bool {
		var c int
		if field == "_score" {
			c = compareValues(hits[i].score, hits[j].score)
		} else {
			c = compareValues(hits[i].source[field], hits[j].source[field])
		}
		if c == 0 {
			return hits[i].seq < hits[j].seq
		}
		if desc {
			return c > 0
		}
		return c < 0
	})
	return hits, nil
}

func (idx *localIndex) score(query map[string]json.RawMessage, id string, doc *localDoc) (float64, bool, error) {
	if len(query) == 0 {
		return 1, true, nil
	}
	for kind, raw := range query {
		switch kind {
		case "match_all":
			return 1, true, nil
		case "ids":
			var ids struct {
				Values []string `json:"values"`
			}
			if err := sonic.Unmarshal(raw, &ids); err != nil {
				return 0, false, err
			}
			for _, v := range ids.Values {
				if v == id {
					return 1, true, nil
				}
			}
			return 0, false, nil
		case "multi_match":
			var mm multiMatch
			if err := sonic.Unmarshal(raw, &mm); err != nil {
				return 0, false, err
			}
			score := idx.multiMatch(mm, doc.source)
			return score, score > 0, nil
		default:
			return 0, false, fmt.Errorf("unsupported query type %q", kind)
		}
	}
	return 0, false, nil
}

// multiMatch sums the boosts of every field matching the query. Text fields
// match on any shared lowercase token, keyword fields on the whole query.
func (idx *localIndex) multiMatch(mm multiMatch, source map[string]interface{}) float64 {
	terms := tokenize(mm.Query)
	total := 0.0
	for _, f := range mm.Fields {
		name, boost := parseBoost(f)
		for _, value := range fieldValues(source[name]) {
			matched := false
			if idx.keywords[name] {
				matched = value == mm.Query
			} else {
				matched = sharesToken(terms, tokenize(value))
			}
			if matched {
				total += boost
				break
			}
		}
	}
	return total
}

func termsAggregation(hits []scoredDoc, field string, size int) (json.RawMessage, error) {
	if size <= 0 {
		size = 10
	}
	counts := make(map[string]int64)
	for _, h := range hits {
		seen := make(map[string]bool)
		for _, v := range fieldValues(h.source[field]) {
			// a document counts once per distinct value
			if !seen[v] {
				seen[v] = true
				counts[v]++
			}
		}
	}
	buckets := make([]TermsBucket, 0, len(counts))
	for k, n := range counts {
		buckets = append(buckets, TermsBucket{Key: k, DocCount: n})
	}
	sort.Slice(buckets, func(i, j int) bool {
		if buckets[i].DocCount != buckets[j].DocCount {
			return buckets[i].DocCount > buckets[j].DocCount
		}
		return buckets[i].Key < buckets[j].Key
	})
	var other int64
	if len(buckets) > size {
		for _, b := range buckets[size:] {
			other += b.DocCount
		}
		buckets = buckets[:size]
	}
	return sonic.Marshal(map[string]interface{}{
		"doc_count_error_upper_bound": 0,
		"sum_other_doc_count":         other,
		"buckets":                     buckets,
	})
}

func window(hits []scoredDoc, from, size int) []scoredDoc {
	if from < 0 || from >= len(hits) {
		return nil
	}
	hits = hits[from:]
	if size >= 0 && size < len(hits) {
		hits = hits[:size]
	}
	return hits
}

func sortOrder(clause interface{}) string {
	switch s := clause.(type) {
	case string:
		return strings.ToLower(s)
	case map[string]interface{}:
		if o, ok := s["order"].(string); ok {
			return strings.ToLower(o)
		}
	}
	return "asc"
}

func compareValues(a, b interface{}) int {
	switch av := a.(type) {
	case float64:
		if bv, ok := b.(float64); ok {
			switch {
			case av < bv:
				return -1
			case av > bv:
				return 1
			}
			return 0
		}
	case string:
		if bv, ok := b.(string); ok {
			return strings.Compare(av, bv)
		}
	}
	// missing values sort last in ascending order
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func parseBoost(field string) (string, float64) {
	name, boost, found := strings.Cut(field, "^")
	if !found {
		return field, 1
	}
	var b float64
	if _, err := fmt.Sscanf(boost, "%g", &b); err != nil || b <= 0 {
		b = 1
	}
	return name, b
}

func fieldValues(v interface{}) []string {
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		return []string{t}
	case []interface{}:
		out := make([]string, 0, len(t))
		for _, e := range t {
			out = append(out, fieldValues(e)...)
		}
		return out
	default:
		return []string{fmt.Sprint(t)}
	}
}

func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func sharesToken(a, b []string) bool {
	set := make(map[string]bool, len(a))
	for _, t := range a {
		set[t] = true
	}
	for _, t := range b {
		if set[t] {
			return true
		}
	}
	return false
}

// convert round-trips v through JSON into out
func convert(v interface{}, out interface{}) error {
	raw, err := sonic.Marshal(v)
	if err != nil {
		return err
	}
	return sonic.Unmarshal(raw, out)
}
