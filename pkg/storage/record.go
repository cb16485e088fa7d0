package storage

import (
	"strings"
	"time"
)

// IDField is the field every stored record is identified by.
const IDField = "id"

// Record is a backend-agnostic entity: a field map carrying an "id" plus
// arbitrary fields, one of which may be an embedding vector. Records are
// transient copies; the backend owns the stored form.
type Record map[string]any

// ID returns the record identity, or "" when none is set.
func (r Record) ID() string {
	if r == nil {
		return ""
	}
	if id, ok := r[IDField].(string); ok {
		return id
	}
	return ""
}

// Clone returns a shallow copy of the record. Nested values are shared.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Merge overlays patch onto a copy of the record. Top-level fields only;
// the id cannot be changed through a patch.
func (r Record) Merge(patch Record) Record {
	out := r.Clone()
	for k, v := range patch {
		if k == IDField {
			continue
		}
		out[k] = v
	}
	return out
}

// FieldValue resolves a dot-separated field path through nested maps.
// Returns nil, false when any segment is missing.
func (r Record) FieldValue(path string) (any, bool) {
	var current any = map[string]any(r)

	for _, part := range strings.Split(path, ".") {
		m, ok := current.(map[string]any)
		if !ok {
			if rec, isRecord := current.(Record); isRecord {
				m = map[string]any(rec)
			} else {
				return nil, false
			}
		}
		current, ok = m[part]
		if !ok {
			return nil, false
		}
	}

	return current, true
}

// VectorAt returns the embedding vector stored at path, coercing the
// JSON-decoded forms backends hand back. Returns nil when the field is
// absent or not a numeric slice.
func (r Record) VectorAt(path string) []float32 {
	val, ok := r.FieldValue(path)
	if !ok || val == nil {
		return nil
	}

	switch v := val.(type) {
	case []float32:
		return v
	case []float64:
		out := make([]float32, len(v))
		for i, f := range v {
			out[i] = float32(f)
		}
		return out
	case []any:
		out := make([]float32, len(v))
		for i, item := range v {
			switch f := item.(type) {
			case float64:
				out[i] = float32(f)
			case float32:
				out[i] = f
			case int:
				out[i] = float32(f)
			default:
				return nil
			}
		}
		return out
	default:
		return nil
	}
}

// fieldTime coerces a field value into a time.Time for comparison.
func fieldTime(val any) (time.Time, bool) {
	switch v := val.(type) {
	case time.Time:
		return v, true
	case string:
		for _, format := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
			if t, err := time.Parse(format, v); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

// fieldNumber coerces a field value into a float64 for comparison.
func fieldNumber(val any) (float64, bool) {
	switch v := val.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}
