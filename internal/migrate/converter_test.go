package migrate

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/fgdb2gpkg/fgdb2gpkg/internal/container"
	apperrors "github.com/fgdb2gpkg/fgdb2gpkg/internal/errors"
	"github.com/fgdb2gpkg/fgdb2gpkg/internal/gpkg"
	"github.com/fgdb2gpkg/fgdb2gpkg/pkg/types"
)

func TestConverter_SkipsExistingLayer(t *testing.T) {
	mem := container.NewMemory()
	mem.Put("src", roads(t))
	obs := &recorder{}
	conv := NewConverter(mem, mem, obs)

	res, err := conv.ConvertLayer(context.Background(), "roads", "src", "dst", false, NewLayerSet("roads"), nil)
	if err != nil {
		t.Fatalf("ConvertLayer failed: %v", err)
	}
	if res.Outcome != OutcomeSkipped {
		t.Errorf("expected skipped, got %s", res.Outcome)
	}
	if len(obs.warnings) != 1 {
		t.Fatalf("expected 1 warning, got %d", len(obs.warnings))
	}
	if !errors.Is(obs.warnings[0], apperrors.ErrLayerAlreadyExists) {
		t.Errorf("expected LAYER_ALREADY_EXISTS warning, got %v", obs.warnings[0])
	}
	if apperrors.GetLayer(obs.warnings[0]) != "roads" {
		t.Errorf("warning layer = %q", apperrors.GetLayer(obs.warnings[0]))
	}
	if len(mem.Calls()) != 0 {
		t.Errorf("skipped layer must not be written, got %v", mem.Calls())
	}
}

func TestConverter_OverwriteIgnoresExisting(t *testing.T) {
	mem := container.NewMemory()
	mem.Put("src", roads(t))
	obs := &recorder{}
	conv := NewConverter(mem, mem, obs)

	res, err := conv.ConvertLayer(context.Background(), "roads", "src", "dst", true, NewLayerSet("roads"), nil)
	if err != nil {
		t.Fatalf("ConvertLayer failed: %v", err)
	}
	if res.Outcome != OutcomeConverted || res.Records != 2 {
		t.Errorf("unexpected result %+v", res)
	}
	if len(obs.warnings) != 0 {
		t.Errorf("expected no warnings, got %v", obs.warnings)
	}
}

func TestConverter_Routing(t *testing.T) {
	mem := container.NewMemory()
	mem.Put("src", roads(t), owners())
	conv := NewConverter(mem, mem, nil)
	opts := container.WriteOptions{"GEOMETRY_NAME": "shape"}
	ctx := context.Background()

	for _, name := range []string{"roads", "owners"} {
		if _, err := conv.ConvertLayer(ctx, name, "src", "dst", true, NewLayerSet(), opts); err != nil {
			t.Fatalf("ConvertLayer(%s) failed: %v", name, err)
		}
	}

	calls := mem.Calls()
	if len(calls) != 2 {
		t.Fatalf("expected 2 writes, got %d", len(calls))
	}
	if !calls[0].Features || calls[0].Options["GEOMETRY_NAME"] != "shape" {
		t.Errorf("roads should use the feature writer with options, got %+v", calls[0])
	}
	if calls[1].Features || calls[1].Options != nil {
		t.Errorf("owners should use the attribute writer without options, got %+v", calls[1])
	}

	got, err := mem.ReadLayer(ctx, "dst", "owners")
	if err != nil {
		t.Fatal(err)
	}
	if got.HasGeometry() {
		t.Error("attribute layer gained a geometry column")
	}
}

func TestConverter_Failures(t *testing.T) {
	readErr := errors.New("corrupt table")
	writeErr := errors.New("disk full")

	tests := []struct {
		name  string
		setup func(m *container.Memory)
		cause error
	}{
		{"read", func(m *container.Memory) { m.FailRead["roads"] = readErr }, readErr},
		{"write", func(m *container.Memory) { m.FailWrite["roads"] = writeErr }, writeErr},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mem := container.NewMemory()
			mem.Put("src", roads(t))
			tt.setup(mem)
			conv := NewConverter(mem, mem, nil)

			_, err := conv.ConvertLayer(context.Background(), "roads", "src", "dst", true, NewLayerSet(), nil)
			if !errors.Is(err, apperrors.ErrConversionFailure) {
				t.Fatalf("expected CONVERSION_FAILED, got %v", err)
			}
			if !errors.Is(err, tt.cause) {
				t.Errorf("expected cause %v in chain, got %v", tt.cause, err)
			}
			if apperrors.GetLayer(err) != "roads" {
				t.Errorf("error layer = %q", apperrors.GetLayer(err))
			}
		})
	}
}

func TestLayerSet(t *testing.T) {
	s := NewLayerSet("a", "b")
	if !s.Has("a") || !s.Has("b") || s.Has("c") {
		t.Errorf("unexpected membership: %v", s)
	}
	s.Add("c")
	if !s.Has("c") {
		t.Error("Add did not insert")
	}
}

func TestConverter_NullValuesReachGeoPackage(t *testing.T) {
	ctx := context.Background()
	dst := filepath.Join(t.TempDir(), "out.gpkg")

	fields := []types.FieldDef{
		{Name: "i", Type: types.FieldInteger},
		{Name: "r", Type: types.FieldReal},
		{Name: "s", Type: types.FieldText},
		{Name: "b", Type: types.FieldBlob},
		{Name: "d", Type: types.FieldDate},
		{Name: "dt", Type: types.FieldDateTime},
	}
	sparse := &types.Layer{
		Name:     "sparse",
		Fields:   fields,
		Geometry: &types.GeometryColumn{Type: types.GeometryPoint, HasM: true},
		Records: []types.Record{
			{Values: make([]interface{}, len(fields))},
			{
				Values:   []interface{}{int64(0), 0.0, "", []byte{0}, time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC), time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC)},
				Geometry: pointMWKB(t, 1, 2, 3),
			},
		},
	}
	mem := container.NewMemory()
	mem.Put("src", sparse)
	store := gpkg.NewStore()

	res, err := NewConverter(mem, store, nil).ConvertLayer(ctx, "sparse", "src", dst, true, NewLayerSet(), nil)
	if err != nil {
		t.Fatalf("ConvertLayer failed: %v", err)
	}
	if res.Outcome != OutcomeConverted || res.Records != 2 {
		t.Errorf("unexpected result %+v", res)
	}

	got, err := store.ReadLayer(ctx, dst, "sparse")
	if err != nil {
		t.Fatalf("ReadLayer failed: %v", err)
	}
	if !got.Geometry.HasM || got.Geometry.HasZ {
		t.Errorf("geometry column z=%v m=%v", got.Geometry.HasZ, got.Geometry.HasM)
	}
	for i, v := range got.Records[0].Values {
		if v != nil {
			t.Errorf("field %s = %#v, want NULL", fields[i].Name, v)
		}
	}
	if got.Records[0].Geometry != nil {
		t.Error("NULL geometry read back as a value")
	}

	// Zero values are values, not NULLs.
	zero := got.Records[1].Values
	if zero[0] != int64(0) || zero[1] != 0.0 || zero[2] != "" {
		t.Errorf("zero values = %#v", zero[:3])
	}
	if !bytes.Equal(got.Records[1].Geometry, sparse.Records[1].Geometry) {
		t.Errorf("measured point = %x", got.Records[1].Geometry)
	}
}
