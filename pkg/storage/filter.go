package storage

import (
	"fmt"
	"reflect"
	"strings"
)

// Op is a filter comparison operator.
type Op string

const (
	OpEq       Op = "eq"
	OpIn       Op = "in"
	OpGte      Op = "gte"
	OpLte      Op = "lte"
	OpContains Op = "contains"
)

// Condition compares one field against a value.
type Condition struct {
	Field string
	Op    Op
	Value any
}

// Filter is an AND-set of conditions. The empty filter matches every record.
type Filter []Condition

// Eq matches records whose field equals value.
func Eq(field string, value any) Condition {
	return Condition{Field: field, Op: OpEq, Value: value}
}

// In matches records whose field equals any of the given values.
func In(field string, values ...any) Condition {
	return Condition{Field: field, Op: OpIn, Value: values}
}

// Gte matches records whose field is >= value.
func Gte(field string, value any) Condition {
	return Condition{Field: field, Op: OpGte, Value: value}
}

// Lte matches records whose field is <= value.
func Lte(field string, value any) Condition {
	return Condition{Field: field, Op: OpLte, Value: value}
}

// Contains matches string fields containing value as a substring, and
// slice fields containing value as an element.
func Contains(field string, value any) Condition {
	return Condition{Field: field, Op: OpContains, Value: value}
}

// Validate rejects malformed filters before they reach a backend.
func (f Filter) Validate() error {
	for i, cond := range f {
		if cond.Field == "" {
			return fmt.Errorf("%w: condition %d has no field", ErrInvalidFilter, i)
		}
		switch cond.Op {
		case OpEq, OpGte, OpLte, OpContains:
			// valid
		case OpIn:
			kind := reflect.ValueOf(cond.Value).Kind()
			if kind != reflect.Slice && kind != reflect.Array {
				return fmt.Errorf("%w: in condition on %q needs a slice value", ErrInvalidFilter, cond.Field)
			}
		default:
			return fmt.Errorf("%w: unknown operator %q on %q", ErrInvalidFilter, cond.Op, cond.Field)
		}
	}
	return nil
}

// Match reports whether a record satisfies every condition. This is the
// shared client-side predicate used by the key-value backend and the scan
// fallback; the document and graph backends translate the same conditions
// into native queries instead.
func (f Filter) Match(rec Record) bool {
	for _, cond := range f {
		if !cond.match(rec) {
			return false
		}
	}
	return true
}

func (c Condition) match(rec Record) bool {
	val, ok := rec.FieldValue(c.Field)
	if !ok {
		return false
	}

	switch c.Op {
	case OpEq:
		return looseEqual(val, c.Value)
	case OpIn:
		rv := reflect.ValueOf(c.Value)
		if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
			return false
		}
		for i := 0; i < rv.Len(); i++ {
			if looseEqual(val, rv.Index(i).Interface()) {
				return true
			}
		}
		return false
	case OpGte:
		cmp, ok := compareValues(val, c.Value)
		return ok && cmp >= 0
	case OpLte:
		cmp, ok := compareValues(val, c.Value)
		return ok && cmp <= 0
	case OpContains:
		return containsValue(val, c.Value)
	default:
		return false
	}
}

// looseEqual compares across the numeric representations JSON decoding
// produces, so a filter built with int 3 still matches a stored float64 3.
func looseEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == b
	}

	if na, ok := fieldNumber(a); ok {
		if nb, ok := fieldNumber(b); ok {
			return na == nb
		}
		return false
	}

	if ta, ok := fieldTime(a); ok {
		if tb, ok := fieldTime(b); ok {
			return ta.Equal(tb)
		}
	}

	return reflect.DeepEqual(a, b)
}

// compareValues returns -1/0/1 for ordered types, or false when the two
// values have no natural order.
func compareValues(a, b any) (int, bool) {
	if na, ok := fieldNumber(a); ok {
		if nb, ok := fieldNumber(b); ok {
			switch {
			case na < nb:
				return -1, true
			case na > nb:
				return 1, true
			default:
				return 0, true
			}
		}
		return 0, false
	}

	if ta, ok := fieldTime(a); ok {
		if tb, ok := fieldTime(b); ok {
			return ta.Compare(tb), true
		}
	}

	sa, okA := a.(string)
	sb, okB := b.(string)
	if okA && okB {
		return strings.Compare(sa, sb), true
	}

	return 0, false
}

func containsValue(val, want any) bool {
	switch v := val.(type) {
	case string:
		s, ok := want.(string)
		return ok && strings.Contains(v, s)
	case []string:
		for _, item := range v {
			if looseEqual(item, want) {
				return true
			}
		}
	case []any:
		for _, item := range v {
			if looseEqual(item, want) {
				return true
			}
		}
	}
	return false
}
