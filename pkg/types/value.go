package types

import (
	"time"
)

// Text layouts used when temporal values are stored as text.
const (
	DateLayout     = "2006-01-02"
	DateTimeLayout = "2006-01-02T15:04:05.000Z"
)

// FormatDate renders t as an ISO-8601 calendar date.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// FormatDateTime renders t as an ISO-8601 UTC timestamp with milliseconds.
func FormatDateTime(t time.Time) string {
	return t.UTC().Format(DateTimeLayout)
}

// StorageValue converts a record value into the representation a text-based
// store keeps for a field of type ft. Temporal values become ISO-8601 text,
// booleans become integers, narrower numeric kinds widen to int64/float64.
// Everything else passes through unchanged.
func StorageValue(ft FieldType, v interface{}) interface{} {
	switch x := v.(type) {
	case nil:
		return nil
	case time.Time:
		if ft == FieldDate {
			return FormatDate(x)
		}
		return FormatDateTime(x)
	case *time.Time:
		if x == nil {
			return nil
		}
		return StorageValue(ft, *x)
	case bool:
		if x {
			return int64(1)
		}
		return int64(0)
	case int:
		return int64(x)
	case int32:
		return int64(x)
	case int16:
		return int64(x)
	case int8:
		return int64(x)
	case uint8:
		return int64(x)
	case uint16:
		return int64(x)
	case uint32:
		return int64(x)
	case float32:
		return float64(x)
	default:
		return v
	}
}
