package todo

// searchFields is the multi_match field list; title matches weigh double.
var searchFields = []string{"title^2", "description", "tags"}

func indexBody() map[string]interface{} {
	return map[string]interface{}{
		"mappings": map[string]interface{}{
			"properties": map[string]interface{}{
				"title":       map[string]interface{}{"type": "text"},
				"description": map[string]interface{}{"type": "text"},
				"status":      map[string]interface{}{"type": "keyword"},
				"priority":    map[string]interface{}{"type": "keyword"},
				"tags":        map[string]interface{}{"type": "keyword"},
				"createdAt":   map[string]interface{}{"type": "date"},
			},
		},
	}
}

func newestFirst() []interface{} {
	return []interface{}{
		map[string]interface{}{"createdAt": map[string]interface{}{"order": "desc"}},
	}
}

func listQuery() map[string]interface{} {
	return map[string]interface{}{
		"query": map[string]interface{}{"match_all": map[string]interface{}{}},
		"sort":  newestFirst(),
	}
}

func searchQuery(q string, size int) map[string]interface{} {
	return map[string]interface{}{
		"query": map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":  q,
				"fields": searchFields,
			},
		},
		"sort": newestFirst(),
		"size": size,
	}
}

const (
	aggByStatus   = "by_status"
	aggByPriority = "by_priority"
	aggByTag      = "by_tag"
)

func statsQuery(topTags int) map[string]interface{} {
	terms := func(field string, size int) map[string]interface{} {
		return map[string]interface{}{"terms": map[string]interface{}{"field": field, "size": size}}
	}
	query := map[string]interface{}{
		"size": 0,
		"aggs": map[string]interface{}{
			aggByStatus:   terms("status", len(Statuses)),
			aggByPriority: terms("priority", len(Priorities)),
			aggByTag:      terms("tags", topTags),
		},
	}
	// exact total, the default stops counting at 10000
	query["track_total_hits"] = true
	return query
}
