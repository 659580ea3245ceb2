package types

import "strings"

// FieldType is the storage type of an attribute field.
type FieldType string

const (
	FieldInteger  FieldType = "INTEGER"
	FieldReal     FieldType = "REAL"
	FieldText     FieldType = "TEXT"
	FieldBlob     FieldType = "BLOB"
	FieldDate     FieldType = "DATE"
	FieldDateTime FieldType = "DATETIME"
)

// Valid reports whether t is one of the known field types.
func (t FieldType) Valid() bool {
	switch t {
	case FieldInteger, FieldReal, FieldText, FieldBlob, FieldDate, FieldDateTime:
		return true
	}
	return false
}

// FieldDef defines a single attribute field of a layer.
type FieldDef struct {
	// Name is the field name as reported by the source container
	Name string `json:"name" yaml:"name"`

	// Type is the storage type of the field
	Type FieldType `json:"type" yaml:"type"`

	// NotNull marks fields the source declares as non-nullable
	NotNull bool `json:"not_null" yaml:"not_null"`
}

// GeometryType names the declared geometry type of a geometry column.
type GeometryType string

const (
	GeometryAny                GeometryType = "GEOMETRY"
	GeometryPoint              GeometryType = "POINT"
	GeometryLineString         GeometryType = "LINESTRING"
	GeometryPolygon            GeometryType = "POLYGON"
	GeometryMultiPoint         GeometryType = "MULTIPOINT"
	GeometryMultiLineString    GeometryType = "MULTILINESTRING"
	GeometryMultiPolygon       GeometryType = "MULTIPOLYGON"
	GeometryGeometryCollection GeometryType = "GEOMETRYCOLLECTION"
)

// ParseGeometryType maps a GeoPackage geometry_type_name onto a GeometryType.
// Unknown names map to GeometryAny.
func ParseGeometryType(name string) GeometryType {
	switch t := GeometryType(strings.ToUpper(strings.TrimSpace(name))); t {
	case GeometryPoint, GeometryLineString, GeometryPolygon,
		GeometryMultiPoint, GeometryMultiLineString, GeometryMultiPolygon,
		GeometryGeometryCollection:
		return t
	}
	return GeometryAny
}

// SpatialRef identifies the coordinate reference system of a geometry column.
// A zero SpatialRef means "undefined".
type SpatialRef struct {
	// Organization is the defining authority, e.g. "EPSG"
	Organization string `json:"organization" yaml:"organization"`

	// Code is the authority's identifier for the system
	Code int `json:"code" yaml:"code"`

	// Name is a human readable name
	Name string `json:"name" yaml:"name"`

	// Definition is the WKT definition of the system
	Definition string `json:"definition" yaml:"definition"`
}

// IsZero reports whether the spatial reference is undefined.
func (s SpatialRef) IsZero() bool {
	return s.Organization == "" && s.Code == 0 && s.Definition == ""
}

// GeometryColumn describes the geometry column of a feature layer.
type GeometryColumn struct {
	// Name is the column name; empty lets the writer choose
	Name string `json:"name" yaml:"name"`

	// Type is the declared geometry type
	Type GeometryType `json:"type" yaml:"type"`

	// HasZ and HasM report the coordinate dimensions
	HasZ bool `json:"has_z" yaml:"has_z"`
	HasM bool `json:"has_m" yaml:"has_m"`

	// SRS is the spatial reference of every geometry in the column
	SRS SpatialRef `json:"srs" yaml:"srs"`
}
