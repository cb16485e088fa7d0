package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func seedRecords() []Record {
	return []Record{
		{"id": "1", "platform": "twitter", "timestamp": "2026-08-01T00:00:00Z"},
		{"id": "2", "platform": "mastodon", "timestamp": "2026-08-02T00:00:00Z"},
		{"id": "3", "platform": "twitter", "timestamp": "2026-08-03T00:00:00Z"},
		{"id": "4", "platform": "twitter", "timestamp": "2026-08-04T00:00:00Z"},
		{"id": "5", "platform": "bluesky", "timestamp": "2026-08-05T00:00:00Z"},
	}
}

func TestSortRecords(t *testing.T) {
	t.Run("descending by timestamp", func(t *testing.T) {
		records := seedRecords()
		SortRecords(records, []SortField{{Field: "timestamp", Desc: true}})

		assert.Equal(t, "5", records[0].ID())
		assert.Equal(t, "1", records[4].ID())
	})

	t.Run("ascending by id", func(t *testing.T) {
		records := []Record{{"id": "b"}, {"id": "a"}, {"id": "c"}}
		SortRecords(records, []SortField{{Field: "id"}})

		assert.Equal(t, "a", records[0].ID())
		assert.Equal(t, "c", records[2].ID())
	})

	t.Run("stable on ties", func(t *testing.T) {
		records := []Record{
			{"id": "first", "rank": 1},
			{"id": "second", "rank": 1},
			{"id": "third", "rank": 1},
		}
		SortRecords(records, []SortField{{Field: "rank", Desc: true}})

		assert.Equal(t, "first", records[0].ID())
		assert.Equal(t, "second", records[1].ID())
		assert.Equal(t, "third", records[2].ID())
	})

	t.Run("no sort fields leaves order", func(t *testing.T) {
		records := []Record{{"id": "b"}, {"id": "a"}}
		SortRecords(records, nil)
		assert.Equal(t, "b", records[0].ID())
	})
}

func TestApplyFindOptions(t *testing.T) {
	t.Run("filter sort skip limit scenario", func(t *testing.T) {
		// Three of five records match the platform filter; with sort by
		// timestamp desc, skip 1 and limit 2 the result is the 2nd and 3rd
		// most recent among the matches.
		var matched []Record
		filter := Filter{Eq("platform", "twitter")}
		for _, rec := range seedRecords() {
			if filter.Match(rec) {
				matched = append(matched, rec)
			}
		}
		assert.Len(t, matched, 3)

		result := ApplyFindOptions(matched, FindOptions{
			Skip:  1,
			Limit: 2,
			Sort:  []SortField{{Field: "timestamp", Desc: true}},
		})

		assert.Len(t, result, 2)
		assert.Equal(t, "3", result[0].ID())
		assert.Equal(t, "1", result[1].ID())
	})

	t.Run("skip beyond length", func(t *testing.T) {
		result := ApplyFindOptions(seedRecords(), FindOptions{Skip: 10})
		assert.Empty(t, result)
		assert.NotNil(t, result)
	})

	t.Run("negative skip treated as zero", func(t *testing.T) {
		result := ApplyFindOptions(seedRecords(), FindOptions{Skip: -3, Limit: 2})
		assert.Len(t, result, 2)
	})

	t.Run("zero limit uses default", func(t *testing.T) {
		result := ApplyFindOptions(seedRecords(), FindOptions{})
		assert.Len(t, result, 5)
	})
}
