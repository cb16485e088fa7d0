package storage

import "sort"

// DefaultLimit bounds queries that do not ask for an explicit limit.
const DefaultLimit = 100

// SortField orders results by one field.
type SortField struct {
	Field string
	Desc  bool
}

// FindOptions paginates and orders a find. A zero Limit means DefaultLimit;
// a negative Skip is treated as zero.
type FindOptions struct {
	Skip  int
	Limit int
	Sort  []SortField
}

func (o FindOptions) limit() int {
	if o.Limit <= 0 {
		return DefaultLimit
	}
	return o.Limit
}

func (o FindOptions) skip() int {
	if o.Skip < 0 {
		return 0
	}
	return o.Skip
}

// SortRecords orders records in place by the given sort fields. The sort is
// stable so records that compare equal keep their encounter order.
func SortRecords(records []Record, fields []SortField) {
	if len(fields) == 0 {
		return
	}

	sort.SliceStable(records, func(i, j int) bool {
		for _, sf := range fields {
			a, _ := records[i].FieldValue(sf.Field)
			b, _ := records[j].FieldValue(sf.Field)

			cmp, ok := compareValues(a, b)
			if !ok || cmp == 0 {
				continue
			}
			if sf.Desc {
				return cmp > 0
			}
			return cmp < 0
		}
		return false
	})
}

// ApplyFindOptions sorts, skips, and truncates a result list in process.
// Backends that cannot push sort or pagination down use this on the
// records they fetched.
func ApplyFindOptions(records []Record, opts FindOptions) []Record {
	SortRecords(records, opts.Sort)

	skip := opts.skip()
	if skip >= len(records) {
		return []Record{}
	}
	records = records[skip:]

	if limit := opts.limit(); len(records) > limit {
		records = records[:limit]
	}

	return records
}
