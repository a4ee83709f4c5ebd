package todo

import (
	"context"
)

// TagCount is one entry of the tag frequency report.
type TagCount struct {
	Tag   string `json:"tag"`
	Count int64  `json:"count"`
}

// Stats summarises the stored tasks. Every status and priority is present,
// zero when no task carries it.
type Stats struct {
	Total      int64              `json:"total"`
	ByStatus   map[Status]int64   `json:"byStatus"`
	ByPriority map[Priority]int64 `json:"byPriority"`
	TopTags    []TagCount         `json:"tags"`
}

// Stats computes the report with a single aggregation request.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	if err := s.EnsureCollection(ctx); err != nil {
		return Stats{}, err
	}
	res, err := s.client.Search(ctx, s.cfg.Index, statsQuery(s.cfg.TopTags))
	if err != nil {
		return Stats{}, err
	}

	stats := Stats{
		Total:      res.Total,
		ByStatus:   make(map[Status]int64, len(Statuses)),
		ByPriority: make(map[Priority]int64, len(Priorities)),
		TopTags:    make([]TagCount, 0),
	}
	for _, st := range Statuses {
		stats.ByStatus[st] = 0
	}
	for _, p := range Priorities {
		stats.ByPriority[p] = 0
	}

	buckets, err := res.TermsBuckets(aggByStatus)
	if err != nil {
		return Stats{}, err
	}
	for _, b := range buckets {
		if st := Status(b.Key); st.Valid() {
			stats.ByStatus[st] = b.DocCount
		}
	}
	if buckets, err = res.TermsBuckets(aggByPriority); err != nil {
		return Stats{}, err
	}
	for _, b := range buckets {
		if p := Priority(b.Key); p.Valid() {
			stats.ByPriority[p] = b.DocCount
		}
	}
	if buckets, err = res.TermsBuckets(aggByTag); err != nil {
		return Stats{}, err
	}
	for _, b := range buckets {
		stats.TopTags = append(stats.TopTags, TagCount{Tag: b.Key, Count: b.DocCount})
	}
	return stats, nil
}
