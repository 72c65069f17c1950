package store

import "reflect"

// Per-entry bookkeeping overhead: map bucket slot, entry struct, key header.
const entryOverhead = 64

func entryWeight(key string, value any) int64 {
	return int64(len(key)) + approxSize(value) + entryOverhead
}

// approxSize estimates the memory footprint of a value. Exact accounting
// is not worth the CPU on the hot path; Stats reports this as
// approximate bytes and nothing else consumes it.
func approxSize(value any) int64 {
	if value == nil {
		return 0
	}

	switch v := value.(type) {
	case string:
		return int64(len(v))
	case []byte:
		return int64(len(v))
	case bool:
		return 1
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return 8
	default:
		rv := reflect.ValueOf(value)
		switch rv.Kind() {
		case reflect.Slice, reflect.Array:
			return int64(rv.Len()) * 8
		case reflect.Map:
			return int64(rv.Len()) * 16
		case reflect.Struct:
			return int64(rv.NumField()) * 8
		case reflect.Pointer:
			if rv.IsNil() {
				return 8
			}
			return 8 + approxSize(rv.Elem().Interface())
		default:
			return 64
		}
	}
}
