package es

import (
	"encoding/json"
	"io"

	"github.com/pcmops/jobmetrics/internal/models"
)

// SearchResult is the decoded aggregation envelope of one search response.
type SearchResult struct {
	Total        int64
	Relation     string
	aggregations map[string]aggregation
}

type searchResponse struct {
	Hits struct {
		Total struct {
			Value    int64  `json:"value"`
			Relation string `json:"relation"`
		} `json:"total"`
	} `json:"hits"`
	Aggregations map[string]aggregation `json:"aggregations"`
}

type aggregation struct {
	Value   *float64 `json:"value"`
	Buckets []bucket `json:"buckets"`
}

type bucket struct {
	Key      string `json:"key"`
	DocCount int64  `json:"doc_count"`
}

func decodeSearchResponse(r io.Reader) (*SearchResult, error) {
	var resp searchResponse
	if err := json.NewDecoder(r).Decode(&resp); err != nil {
		return nil, err
	}
	return &SearchResult{
		Total:        resp.Hits.Total.Value,
		Relation:     resp.Hits.Total.Relation,
		aggregations: resp.Aggregations,
	}, nil
}

// BucketKeys flattens every terms bucket in the response, preserving the
// order Elasticsearch returned them in.
func (r *SearchResult) BucketKeys() []models.KeyCount {
	var keys []models.KeyCount
	for _, agg := range r.aggregations {
		for _, b := range agg.Buckets {
			keys = append(keys, models.KeyCount{Key: b.Key, Count: b.DocCount})
		}
	}
	return keys
}

// FirstValue returns the value of the single-value aggregation in the
// response, or nil when the aggregation produced none. The queries this tool
// issues never carry more than one.
func (r *SearchResult) FirstValue() *float64 {
	for _, agg := range r.aggregations {
		if agg.Value != nil {
			return agg.Value
		}
	}
	return nil
}
