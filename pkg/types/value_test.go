package types

import (
	"testing"
	"time"
)

func TestStorageValue(t *testing.T) {
	ts := time.Date(2024, 3, 9, 14, 5, 6, 789000000, time.FixedZone("CET", 3600))

	tests := []struct {
		name string
		ft   FieldType
		in   interface{}
		want interface{}
	}{
		{"nil", FieldText, nil, nil},
		{"date", FieldDate, ts, "2024-03-09"},
		{"datetime in utc", FieldDateTime, ts, "2024-03-09T13:05:06.789Z"},
		{"time pointer", FieldDate, &ts, "2024-03-09"},
		{"nil time pointer", FieldDate, (*time.Time)(nil), nil},
		{"bool true", FieldInteger, true, int64(1)},
		{"bool false", FieldInteger, false, int64(0)},
		{"int", FieldInteger, 7, int64(7)},
		{"int32", FieldInteger, int32(-3), int64(-3)},
		{"float32", FieldReal, float32(0.5), float64(0.5)},
		{"string passthrough", FieldText, "abc", "abc"},
		{"int64 passthrough", FieldInteger, int64(42), int64(42)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StorageValue(tt.ft, tt.in); got != tt.want {
				t.Errorf("StorageValue(%s, %v) = %#v, want %#v", tt.ft, tt.in, got, tt.want)
			}
		})
	}
}

func TestStorageValue_BytesPassThrough(t *testing.T) {
	in := []byte{1, 2, 3}
	got, ok := StorageValue(FieldBlob, in).([]byte)
	if !ok || len(got) != 3 || &got[0] != &in[0] {
		t.Errorf("expected identical byte slice, got %#v", got)
	}
}
