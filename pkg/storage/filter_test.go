package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFilterValidate(t *testing.T) {
	t.Run("empty filter is valid", func(t *testing.T) {
		assert.NoError(t, Filter{}.Validate())
	})

	t.Run("valid conditions", func(t *testing.T) {
		f := Filter{
			Eq("platform", "twitter"),
			In("language", "en", "de"),
			Gte("timestamp", 0),
			Lte("timestamp", 100),
			Contains("text", "storm"),
		}
		assert.NoError(t, f.Validate())
	})

	t.Run("missing field", func(t *testing.T) {
		assert.ErrorIs(t, Filter{{Op: OpEq, Value: 1}}.Validate(), ErrInvalidFilter)
	})

	t.Run("unknown operator", func(t *testing.T) {
		assert.ErrorIs(t, Filter{{Field: "a", Op: "like", Value: 1}}.Validate(), ErrInvalidFilter)
	})

	t.Run("in without slice", func(t *testing.T) {
		assert.ErrorIs(t, Filter{{Field: "a", Op: OpIn, Value: "x"}}.Validate(), ErrInvalidFilter)
	})
}

func TestFilterMatch(t *testing.T) {
	rec := Record{
		"id":        "a",
		"platform":  "twitter",
		"author":    "ada",
		"views":     float64(120),
		"topics":    []any{"go", "storage"},
		"text":      "cosine similarity in production",
		"timestamp": "2026-08-01T10:00:00Z",
	}

	tests := []struct {
		name   string
		filter Filter
		want   bool
	}{
		{"empty filter matches all", Filter{}, true},
		{"eq match", Filter{Eq("platform", "twitter")}, true},
		{"eq mismatch", Filter{Eq("platform", "mastodon")}, false},
		{"eq numeric across types", Filter{Eq("views", 120)}, true},
		{"in match", Filter{In("platform", "mastodon", "twitter")}, true},
		{"in mismatch", Filter{In("platform", "mastodon", "bluesky")}, false},
		{"gte match", Filter{Gte("views", 100)}, true},
		{"gte boundary", Filter{Gte("views", 120)}, true},
		{"gte mismatch", Filter{Gte("views", 121)}, false},
		{"lte match", Filter{Lte("views", 200)}, true},
		{"contains substring", Filter{Contains("text", "similarity")}, true},
		{"contains substring miss", Filter{Contains("text", "euclidean")}, false},
		{"contains slice element", Filter{Contains("topics", "go")}, true},
		{"contains slice miss", Filter{Contains("topics", "rust")}, false},
		{"missing field never matches", Filter{Eq("missing", 1)}, false},
		{"and semantics", Filter{Eq("platform", "twitter"), Gte("views", 500)}, false},
		{"time range", Filter{Gte("timestamp", "2026-08-01T00:00:00Z"), Lte("timestamp", "2026-08-02T00:00:00Z")}, true},
		{"time range before", Filter{Gte("timestamp", "2026-08-02T00:00:00Z")}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.filter.Match(rec))
		})
	}
}

func TestFilterMatchTimeValues(t *testing.T) {
	now := time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC)
	rec := Record{"created_at": now}

	assert.True(t, Filter{Eq("created_at", now)}.Match(rec))
	assert.True(t, Filter{Gte("created_at", now.Add(-time.Hour))}.Match(rec))
	assert.False(t, Filter{Lte("created_at", now.Add(-time.Hour))}.Match(rec))

	// String timestamps compare against time values.
	assert.True(t, Filter{Gte("created_at", "2026-08-15T00:00:00Z")}.Match(rec))
}
