package migrate

import (
	"sync"
	"testing"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/wkb"

	"github.com/fgdb2gpkg/fgdb2gpkg/pkg/types"
)

// recorder is an Observer that keeps every event.
type recorder struct {
	mu       sync.Mutex
	runID    string
	total    int
	done     []LayerResult
	warnings []error
	failures []error
}

func (r *recorder) Started(runID string, total int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runID, r.total = runID, total
}

func (r *recorder) LayerDone(res LayerResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.done = append(r.done, res)
}

func (r *recorder) Warning(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.warnings = append(r.warnings, err)
}

func (r *recorder) Failed(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures = append(r.failures, err)
}

func pointWKB(t *testing.T, x, y float64) []byte {
	t.Helper()
	data, err := wkb.Marshal(geom.NewPointFlat(geom.XY, []float64{x, y}), wkb.NDR)
	if err != nil {
		t.Fatalf("wkb.Marshal failed: %v", err)
	}
	return data
}

func pointMWKB(t *testing.T, x, y, m float64) []byte {
	t.Helper()
	data, err := wkb.Marshal(geom.NewPointFlat(geom.XYM, []float64{x, y, m}), wkb.NDR)
	if err != nil {
		t.Fatalf("wkb.Marshal failed: %v", err)
	}
	return data
}

func polygonWKB(t *testing.T, x, y, size float64) []byte {
	t.Helper()
	ring := []float64{x, y, x + size, y, x + size, y + size, x, y + size, x, y}
	data, err := wkb.Marshal(geom.NewPolygonFlat(geom.XY, ring, []int{len(ring)}), wkb.NDR)
	if err != nil {
		t.Fatalf("wkb.Marshal failed: %v", err)
	}
	return data
}

func roads(t *testing.T) *types.Layer {
	t.Helper()
	return &types.Layer{
		Name: "roads",
		Fields: []types.FieldDef{
			{Name: "name", Type: types.FieldText},
			{Name: "lanes", Type: types.FieldInteger},
		},
		Geometry: &types.GeometryColumn{
			Type: types.GeometryPoint,
			SRS:  types.SpatialRef{Organization: "EPSG", Code: 4326, Name: "WGS 84"},
		},
		Records: []types.Record{
			{Values: []interface{}{"Main St", int64(2)}, Geometry: pointWKB(t, 1, 2)},
			{Values: []interface{}{"High St", int64(4)}, Geometry: pointWKB(t, 3, 4)},
		},
	}
}

func parcels(t *testing.T) *types.Layer {
	t.Helper()
	return &types.Layer{
		Name: "parcels",
		Fields: []types.FieldDef{
			{Name: "parcel_id", Type: types.FieldText},
			{Name: "area", Type: types.FieldReal},
		},
		Geometry: &types.GeometryColumn{
			Type: types.GeometryPolygon,
			SRS:  types.SpatialRef{Organization: "EPSG", Code: 4326, Name: "WGS 84"},
		},
		Records: []types.Record{
			{Values: []interface{}{"P-1", 100.0}, Geometry: polygonWKB(t, 0, 0, 10)},
			{Values: []interface{}{"P-2", 25.5}, Geometry: polygonWKB(t, 10, 0, 5)},
			{Values: []interface{}{"P-3", nil}, Geometry: nil},
		},
	}
}

func owners() *types.Layer {
	return &types.Layer{
		Name: "owners",
		Fields: []types.FieldDef{
			{Name: "owner", Type: types.FieldText},
			{Name: "parcel_id", Type: types.FieldText},
		},
		Records: []types.Record{
			{Values: []interface{}{"Ada", "P-1"}},
			{Values: []interface{}{"Grace", "P-2"}},
		},
	}
}

// renamed returns a copy of l under a new name.
func renamed(l *types.Layer, name string) *types.Layer {
	cp := *l
	cp.Name = name
	return &cp
}
