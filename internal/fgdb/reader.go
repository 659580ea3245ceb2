// Package fgdb reads Esri File GeoDatabases through GDAL's OpenFileGDB
// driver. It is the only package that talks to GDAL.
package fgdb

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/lukeroth/gdal"

	"github.com/fgdb2gpkg/fgdb2gpkg/internal/container"
	apperrors "github.com/fgdb2gpkg/fgdb2gpkg/internal/errors"
	"github.com/fgdb2gpkg/fgdb2gpkg/pkg/types"
)

// Drivers tried, in order, when opening a File GeoDatabase.
var Drivers = []string{"OpenFileGDB", "FileGDB"}

var registerOnce sync.Once

// Reader is a read-only File GeoDatabase container.
type Reader struct {
	drivers []string
}

// NewReader creates a File GeoDatabase reader and registers GDAL drivers.
func NewReader() *Reader {
	registerOnce.Do(gdal.AllRegister)
	return &Reader{drivers: Drivers}
}

// Exists reports whether path is a directory, the on-disk shape of a
// File GeoDatabase.
func (r *Reader) Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func (r *Reader) open(path string) (gdal.Dataset, error) {
	if !r.Exists(path) {
		return gdal.Dataset{}, apperrors.NewContainerUnreadable(apperrors.ErrCategorySource, path,
			fmt.Errorf("not a directory"))
	}
	ds, err := gdal.OpenEx(path, gdal.OFReadOnly|gdal.OFVector, r.drivers, nil, nil)
	if err != nil {
		return gdal.Dataset{}, apperrors.NewContainerUnreadable(apperrors.ErrCategorySource, path, err)
	}
	return ds, nil
}

// ListLayers returns the feature classes and tables of the geodatabase in
// GDAL's layer index order.
func (r *Reader) ListLayers(ctx context.Context, path string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ds, err := r.open(path)
	if err != nil {
		return nil, err
	}
	defer ds.Close()

	n := ds.LayerCount()
	names := make([]string, 0, n)
	for i := 0; i < n; i++ {
		names = append(names, ds.LayerByIndex(i).Name())
	}
	return names, nil
}

// ReadLayer reads every feature of the named layer into memory.
func (r *Reader) ReadLayer(ctx context.Context, path, name string) (*types.Layer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ds, err := r.open(path)
	if err != nil {
		return nil, err
	}
	defer ds.Close()

	idx := -1
	for i := 0; i < ds.LayerCount(); i++ {
		if ds.LayerByIndex(i).Name() == name {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("fgdb: layer %q not found in %s", name, path)
	}
	lyr := ds.LayerByIndex(idx)
	defn := lyr.Definition()

	layer := &types.Layer{Name: name}
	kinds := make([]gdal.FieldType, defn.FieldCount())
	for i := 0; i < defn.FieldCount(); i++ {
		fd := defn.FieldDefinition(i)
		kinds[i] = fd.Type()
		ft, err := fieldType(fd.Type())
		if err != nil {
			return nil, fmt.Errorf("fgdb: layer %q field %q: %w", name, fd.Name(), err)
		}
		layer.Fields = append(layer.Fields, types.FieldDef{Name: fd.Name(), Type: ft})
	}

	gt := defn.GeometryType()
	if gt != gdal.GT_None {
		gc, err := geometryColumn(gt)
		if err != nil {
			return nil, fmt.Errorf("fgdb: layer %q: %w", name, err)
		}
		gc.SRS = spatialRef(lyr.SpatialReference())
		layer.Geometry = gc
	}

	lyr.ResetReading()
	for {
		feat := lyr.NextFeature()
		if feat == nil {
			break
		}
		rec := types.Record{Values: readValues(feat, kinds)}
		var gerr error
		if layer.Geometry != nil {
			rec.Geometry, gerr = exportGeometry(feat.Geometry())
		}
		feat.Destroy()
		if gerr != nil {
			return nil, fmt.Errorf("fgdb: layer %q record %d: %w", name, len(layer.Records), gerr)
		}
		layer.Records = append(layer.Records, rec)
	}
	return layer, nil
}

// fieldValues is the part of an OGR feature the attribute reader needs.
type fieldValues interface {
	IsFieldSet(index int) bool
	IsFieldNull(index int) bool
	FieldAsInteger64(index int) int64
	FieldAsFloat64(index int) float64
	FieldAsString(index int) string
	FieldAsBinary(index int) []uint8
	FieldAsDateTime(index int) (*time.Time, bool)
}

// readValues converts the attributes of one feature. Unset and NULL fields
// both become nil.
func readValues(feat fieldValues, kinds []gdal.FieldType) []interface{} {
	values := make([]interface{}, len(kinds))
	for i, kind := range kinds {
		if !feat.IsFieldSet(i) || feat.IsFieldNull(i) {
			continue
		}
		switch kind {
		case gdal.FT_Integer, gdal.FT_Integer64:
			values[i] = feat.FieldAsInteger64(i)
		case gdal.FT_Real:
			values[i] = feat.FieldAsFloat64(i)
		case gdal.FT_Binary:
			values[i] = feat.FieldAsBinary(i)
		case gdal.FT_Date, gdal.FT_DateTime:
			if t, ok := feat.FieldAsDateTime(i); ok && t != nil {
				values[i] = *t
			}
		default:
			values[i] = feat.FieldAsString(i)
		}
	}
	return values
}

// wkbExporter is the part of an OGR geometry the geometry reader needs.
type wkbExporter interface {
	IsNull() bool
	ToWKB() ([]uint8, error)
}

// exportGeometry returns the feature geometry as ISO WKB. A feature without
// a geometry yields nil; an empty geometry is kept as empty WKB.
func exportGeometry(g wkbExporter) ([]byte, error) {
	if g.IsNull() {
		return nil, nil
	}
	data, err := g.ToWKB()
	if err != nil {
		return nil, fmt.Errorf("export geometry: %w", err)
	}
	data, err = types.ISOWKB(data)
	if err != nil {
		return nil, fmt.Errorf("export geometry: %w", err)
	}
	return data, nil
}

func fieldType(ft gdal.FieldType) (types.FieldType, error) {
	switch ft {
	case gdal.FT_Integer, gdal.FT_Integer64:
		return types.FieldInteger, nil
	case gdal.FT_Real:
		return types.FieldReal, nil
	case gdal.FT_String, gdal.FT_Time:
		return types.FieldText, nil
	case gdal.FT_Binary:
		return types.FieldBlob, nil
	case gdal.FT_Date:
		return types.FieldDate, nil
	case gdal.FT_DateTime:
		return types.FieldDateTime, nil
	default:
		return "", fmt.Errorf("unsupported field type %d", ft)
	}
}

// wkb25DBit marks Z in OGR's legacy 2.5D geometry type codes.
const wkb25DBit = 0x80000000

var geometryTypes = map[uint32]types.GeometryType{
	0: types.GeometryAny,
	1: types.GeometryPoint,
	2: types.GeometryLineString,
	3: types.GeometryPolygon,
	4: types.GeometryMultiPoint,
	5: types.GeometryMultiLineString,
	6: types.GeometryMultiPolygon,
	7: types.GeometryGeometryCollection,
}

// geometryColumn maps an OGR layer geometry type onto a geometry column
// description. Both the legacy 2.5D codes and the ISO Z, M and ZM ranges
// are understood. Curve and surface types are rejected.
func geometryColumn(gt gdal.GeometryType) (*types.GeometryColumn, error) {
	code := uint32(gt)
	gc := &types.GeometryColumn{}
	if code&wkb25DBit != 0 {
		gc.HasZ = true
		code &^= wkb25DBit
	}
	switch code / 1000 {
	case 1:
		gc.HasZ = true
	case 2:
		gc.HasM = true
	case 3:
		gc.HasZ, gc.HasM = true, true
	}
	t, ok := geometryTypes[code%1000]
	if !ok {
		return nil, fmt.Errorf("%w: %s", types.ErrUnsupportedGeometry, types.WKBTypeName(code))
	}
	gc.Type = t
	return gc, nil
}

// spatialRef extracts authority and WKT from a layer's spatial reference.
func spatialRef(sr gdal.SpatialReference) types.SpatialRef {
	wkt, err := sr.ToWKT()
	if err != nil || wkt == "" {
		return types.SpatialRef{}
	}
	ref := types.SpatialRef{
		Organization: strings.ToUpper(sr.AuthorityName("")),
		Definition:   wkt,
	}
	if code, err := strconv.Atoi(sr.AuthorityCode("")); err == nil {
		ref.Code = code
	}
	if ref.Organization != "" {
		ref.Name = ref.Organization + ":" + strconv.Itoa(ref.Code)
	}
	return ref
}

var (
	_ container.Reader  = (*Reader)(nil)
	_ container.Exister = (*Reader)(nil)
	_ fieldValues       = (*gdal.Feature)(nil)
	_ wkbExporter       = gdal.Geometry{}
)
