package types

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/twpayne/go-geom/encoding/ewkb"
	"github.com/twpayne/go-geom/encoding/wkb"
	"github.com/twpayne/go-geom/encoding/wkbcommon"
)

// High bits of a WKB type code used by OGC 2.5D (Z) and EWKB (Z, M, SRID)
// encodings instead of the ISO 1000/2000/3000 offsets.
const (
	wkbFlagZ    = 0x80000000
	wkbFlagM    = 0x40000000
	wkbFlagSRID = 0x20000000
	wkbFlags    = wkbFlagZ | wkbFlagM | wkbFlagSRID
)

// ErrUnsupportedGeometry is returned for geometry types that have no
// GeoPackage core representation, such as curves and surfaces.
var ErrUnsupportedGeometry = errors.New("unsupported geometry type")

var wkbTypeNames = map[uint32]string{
	0:  "Geometry",
	1:  "Point",
	2:  "LineString",
	3:  "Polygon",
	4:  "MultiPoint",
	5:  "MultiLineString",
	6:  "MultiPolygon",
	7:  "GeometryCollection",
	8:  "CircularString",
	9:  "CompoundCurve",
	10: "CurvePolygon",
	11: "MultiCurve",
	12: "MultiSurface",
	13: "Curve",
	14: "Surface",
	15: "PolyhedralSurface",
	16: "TIN",
	17: "Triangle",
}

// WKBTypeName names the base geometry type of a WKB type code, ignoring
// dimension offsets and flags.
func WKBTypeName(code uint32) string {
	base := (code &^ wkbFlags) % 1000
	if name, ok := wkbTypeNames[base]; ok {
		return name
	}
	return fmt.Sprintf("type %d", base)
}

// LinearWKBType reports whether code names one of the seven linear geometry
// types a GeoPackage stores without extensions.
func LinearWKBType(code uint32) bool {
	base := (code &^ wkbFlags) % 1000
	return base >= 1 && base <= 7
}

func wkbTypeCode(data []byte) (uint32, error) {
	if len(data) < 5 {
		return 0, fmt.Errorf("wkb: truncated header (%d bytes)", len(data))
	}
	switch data[0] {
	case wkbcommon.XDRID:
		return binary.BigEndian.Uint32(data[1:5]), nil
	case wkbcommon.NDRID:
		return binary.LittleEndian.Uint32(data[1:5]), nil
	default:
		return 0, fmt.Errorf("wkb: unknown byte order %d", data[0])
	}
}

// ISOWKB returns data as ISO WKB. ISO input is returned unchanged. Input
// that marks Z or M with the high type bits (GDAL's OGC export of 2.5D
// geometries, EWKB) is decoded and re-encoded little-endian with ISO type
// codes. Curve and surface types fail with ErrUnsupportedGeometry.
func ISOWKB(data []byte) ([]byte, error) {
	code, err := wkbTypeCode(data)
	if err != nil {
		return nil, err
	}
	if !LinearWKBType(code) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedGeometry, WKBTypeName(code))
	}
	if code&wkbFlags == 0 {
		return data, nil
	}

	g, err := ewkb.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("wkb: decode %s with flags %#x: %w", WKBTypeName(code), code&wkbFlags, err)
	}
	out, err := wkb.Marshal(g, wkb.NDR, wkbcommon.WKBOptionEmptyPointHandling(wkbcommon.EmptyPointHandlingNaN))
	if err != nil {
		return nil, fmt.Errorf("wkb: encode %s: %w", WKBTypeName(code), err)
	}
	return out, nil
}
