package domain

import (
	"fmt"
	"reflect"
	"time"

	"github.com/mitchellh/mapstructure"
)

var timeFormats = []string{
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02T15:04:05Z",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// decodeRecord maps a record into a struct using json tags, coercing the
// loose types backends return into the struct's field types.
func decodeRecord(input map[string]any, result any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           result,
		TagName:          "json",
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			float32SliceHook,
			stringSliceHook,
			timeHook,
		),
	})
	if err != nil {
		return err
	}
	return decoder.Decode(input)
}

// float32SliceHook handles []any/[]float64 -> []float32 conversion.
func float32SliceHook(_, to reflect.Type, data any) (any, error) {
	if to != reflect.TypeOf([]float32{}) {
		return data, nil
	}

	switch v := data.(type) {
	case []float32:
		return v, nil
	case []float64:
		result := make([]float32, len(v))
		for i, f := range v {
			result[i] = float32(f)
		}
		return result, nil
	case []any:
		result := make([]float32, len(v))
		for i, item := range v {
			switch f := item.(type) {
			case float64:
				result[i] = float32(f)
			case float32:
				result[i] = f
			}
		}
		return result, nil
	default:
		return data, nil
	}
}

// stringSliceHook handles []any -> []string conversion.
func stringSliceHook(_, to reflect.Type, data any) (any, error) {
	if to != reflect.TypeOf([]string{}) {
		return data, nil
	}

	slice, ok := data.([]any)
	if !ok {
		return data, nil
	}

	result := make([]string, 0, len(slice))
	for _, v := range slice {
		if s, ok := v.(string); ok {
			result = append(result, s)
		}
	}
	return result, nil
}

// timeHook handles string -> time.Time conversion across the formats the
// backends emit.
func timeHook(_, to reflect.Type, data any) (any, error) {
	if to != reflect.TypeOf(time.Time{}) {
		return data, nil
	}

	if t, ok := data.(time.Time); ok {
		return t, nil
	}

	str, ok := data.(string)
	if !ok {
		return data, nil
	}
	if str == "" {
		return time.Time{}, nil
	}

	for _, format := range timeFormats {
		if t, err := time.Parse(format, str); err == nil {
			return t, nil
		}
	}

	return data, fmt.Errorf("unable to parse time: %s", str)
}
