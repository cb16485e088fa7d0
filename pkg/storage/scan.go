package storage

import (
	"sort"

	"github.com/Zereker/corpus/pkg/similarity"
)

// ScanVectorSearch is the shared fallback similarity search: an exhaustive
// cosine scan over in-process records. Every backend uses it when its native
// vector path is unavailable or fails. Records without a vector at field, or
// whose vector length differs from the query, are skipped. The sort is
// stable so equal scores keep encounter order.
//
// The scan is deliberately exhaustive: it re-reads the whole collection on
// every call. That is a known scaling limit, kept because the scan is the
// correctness guarantee behind every native path.
func ScanVectorSearch(records []Record, field string, query []float32, opts VectorSearchOptions) []VectorSearchResult {
	results := make([]VectorSearchResult, 0, len(records))

	for _, rec := range records {
		vec := rec.VectorAt(field)
		if vec == nil || len(vec) != len(query) {
			continue
		}

		score, err := similarity.Cosine(vec, query)
		if err != nil || score < opts.MinScore {
			continue
		}

		results = append(results, VectorSearchResult{Item: rec, Score: score})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultVectorLimit
	}
	if len(results) > limit {
		results = results[:limit]
	}

	return results
}
