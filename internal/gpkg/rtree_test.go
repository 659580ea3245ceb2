package gpkg

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/twpayne/go-geom"

	"github.com/fgdb2gpkg/fgdb2gpkg/pkg/types"
)

func TestBlobEnvelope(t *testing.T) {
	line, _, err := EncodeGeometry(mustWKB(t, geom.NewLineStringFlat(geom.XY, []float64{3, -1, -2, 8})), 0)
	if err != nil {
		t.Fatal(err)
	}
	empty, _, err := EncodeGeometry(mustWKB(t, geom.NewPolygon(geom.XY)), 0)
	if err != nil {
		t.Fatal(err)
	}
	// A header without an envelope falls back to the WKB.
	bare := append([]byte{'G', 'P', 0, flagLittleEndian, 0, 0, 0, 0},
		mustWKB(t, geom.NewPointFlat(geom.XY, []float64{5, 6}))...)

	tests := []struct {
		name string
		in   interface{}
		env  Envelope
		ok   bool
	}{
		{"null", nil, Envelope{}, false},
		{"null blob", []byte(nil), Envelope{}, false},
		{"line", line, Envelope{MinX: -2, MaxX: 3, MinY: -1, MaxY: 8}, true},
		{"empty", empty, Envelope{}, false},
		{"no header envelope", bare, Envelope{MinX: 5, MaxX: 5, MinY: 6, MaxY: 6}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, ok, err := blobEnvelope(tt.in)
			if err != nil {
				t.Fatalf("blobEnvelope failed: %v", err)
			}
			if ok != tt.ok || env != tt.env {
				t.Errorf("blobEnvelope = %+v %v, want %+v %v", env, ok, tt.env, tt.ok)
			}
			isEmpty, err := stIsEmpty(tt.in)
			if err != nil || isEmpty == tt.ok {
				t.Errorf("stIsEmpty = %v, %v", isEmpty, err)
			}
		})
	}

	for _, bad := range []interface{}{"text", int64(1), []byte("XX000000")} {
		if _, _, err := blobEnvelope(bad); err == nil {
			t.Errorf("blobEnvelope(%#v): expected error", bad)
		}
	}
}

func TestSpatialIndex_Triggers(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "out.gpkg")
	store := NewStore()

	layer := &types.Layer{
		Name:     "pins",
		Geometry: &types.GeometryColumn{Type: types.GeometryPoint},
		Records: []types.Record{
			{Geometry: mustWKB(t, geom.NewPointFlat(geom.XY, []float64{1, 1}))},
			{Geometry: mustWKB(t, geom.NewPointFlat(geom.XY, []float64{2, 2}))},
		},
	}
	if err := store.WriteFeatures(ctx, path, layer, nil); err != nil {
		t.Fatalf("WriteFeatures failed: %v", err)
	}

	db, err := sql.Open(DriverName, path)
	if err != nil {
		t.Fatalf("failed to open SQLite: %v", err)
	}
	defer db.Close()

	moved, _, err := EncodeGeometry(mustWKB(t, geom.NewPointFlat(geom.XY, []float64{9, -9})), 0)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Exec(`UPDATE pins SET geom = ? WHERE fid = 1`, moved); err != nil {
		t.Fatalf("move: %v", err)
	}
	if _, err := db.Exec(`UPDATE pins SET geom = NULL WHERE fid = 2`); err != nil {
		t.Fatalf("clear: %v", err)
	}

	var minX, maxY float64
	if err := db.QueryRow(`SELECT minx, maxy FROM rtree_pins_geom WHERE id = 1`).Scan(&minX, &maxY); err != nil {
		t.Fatalf("query rtree: %v", err)
	}
	if minX != 9 || maxY != -9 {
		t.Errorf("moved bounds = (%v, %v), want (9, -9)", minX, maxY)
	}
	if n := countRows(t, db, `SELECT count(*) FROM rtree_pins_geom`); n != 1 {
		t.Errorf("indexed rows after clearing fid 2 = %d, want 1", n)
	}

	if _, err := db.Exec(`DELETE FROM pins WHERE fid = 1`); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if n := countRows(t, db, `SELECT count(*) FROM rtree_pins_geom`); n != 0 {
		t.Errorf("indexed rows after delete = %d, want 0", n)
	}
}
