// Package types provides the in-memory layer model shared by source readers,
// destination writers and the migration driver.
package types

import "fmt"

// Record is a single row of a layer.
type Record struct {
	// Values holds one value per field, aligned with Layer.Fields.
	// Supported dynamic types: nil, int64, float64, string, []byte, time.Time.
	Values []interface{} `json:"values"`

	// Geometry is the WKB encoding of the record's geometry, nil for NULL.
	// Always nil in attribute layers.
	Geometry []byte `json:"geometry,omitempty"`
}

// Layer is a fully materialized named collection of records.
type Layer struct {
	// Name is the layer name, unique within its container
	Name string `json:"name"`

	// Fields lists the attribute fields in source order
	Fields []FieldDef `json:"fields"`

	// Geometry is nil for attribute layers
	Geometry *GeometryColumn `json:"geometry,omitempty"`

	// Records holds every record of the layer
	Records []Record `json:"records"`
}

// HasGeometry reports whether the layer carries a geometry column.
func (l *Layer) HasGeometry() bool {
	return l.Geometry != nil
}

// FieldNames returns the ordered list of field names.
func (l *Layer) FieldNames() []string {
	names := make([]string, len(l.Fields))
	for i, f := range l.Fields {
		names[i] = f.Name
	}
	return names
}

// FieldIndex returns the position of the named field, or -1.
func (l *Layer) FieldIndex(name string) int {
	for i, f := range l.Fields {
		if f.Name == name {
			return i
		}
	}
	return -1
}

// Validate checks the structural invariants of the layer: a name, unique
// known fields, and records shaped like the schema.
func (l *Layer) Validate() error {
	if l.Name == "" {
		return ErrEmptyLayerName
	}

	var errs ValidationErrors
	seen := make(map[string]struct{}, len(l.Fields))
	for _, f := range l.Fields {
		if f.Name == "" {
			errs = append(errs, &ValidationError{RecordIndex: -1, Message: "field with empty name"})
			continue
		}
		if _, dup := seen[f.Name]; dup {
			errs = append(errs, &ValidationError{RecordIndex: -1, Field: f.Name, Message: "duplicate field name"})
		}
		seen[f.Name] = struct{}{}
		if !f.Type.Valid() {
			errs = append(errs, &ValidationError{RecordIndex: -1, Field: f.Name, Message: fmt.Sprintf("unknown field type %q", f.Type)})
		}
	}
	if l.Geometry != nil {
		if _, clash := seen[l.Geometry.Name]; clash && l.Geometry.Name != "" {
			errs = append(errs, &ValidationError{RecordIndex: -1, Field: l.Geometry.Name, Message: "geometry column name clashes with a field"})
		}
	}

	for i, rec := range l.Records {
		if len(rec.Values) != len(l.Fields) {
			errs = append(errs, &ValidationError{
				RecordIndex: i,
				Message:     fmt.Sprintf("record has %d values, schema has %d fields", len(rec.Values), len(l.Fields)),
			})
		}
		if l.Geometry == nil && rec.Geometry != nil {
			errs = append(errs, &ValidationError{RecordIndex: i, Message: "geometry value in attribute layer"})
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}
