package gpkg

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/fgdb2gpkg/fgdb2gpkg/internal/container"
	apperrors "github.com/fgdb2gpkg/fgdb2gpkg/internal/errors"
	"github.com/fgdb2gpkg/fgdb2gpkg/pkg/types"
)

// ListLayers returns the feature and attribute layers registered in
// gpkg_contents, in registration order. The file is opened read-only.
func (s *Store) ListLayers(ctx context.Context, path string) ([]string, error) {
	db, err := openReadOnly(path)
	if err != nil {
		return nil, apperrors.NewContainerUnreadable(apperrors.ErrCategoryDestination, path, err)
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx,
		`SELECT table_name FROM gpkg_contents WHERE data_type IN (?, ?) ORDER BY rowid`,
		DataTypeFeatures, DataTypeAttributes)
	if err != nil {
		return nil, apperrors.NewContainerUnreadable(apperrors.ErrCategoryDestination, path, err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, apperrors.NewContainerUnreadable(apperrors.ErrCategoryDestination, path, err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewContainerUnreadable(apperrors.ErrCategoryDestination, path, err)
	}
	return names, nil
}

// ReadLayer materializes a layer. Geometry blobs are unwrapped back to WKB.
func (s *Store) ReadLayer(ctx context.Context, path, name string) (*types.Layer, error) {
	db, err := openReadOnly(path)
	if err != nil {
		return nil, apperrors.NewContainerUnreadable(apperrors.ErrCategoryDestination, path, err)
	}
	defer db.Close()

	var dataType string
	if err := db.QueryRowContext(ctx, `SELECT data_type FROM gpkg_contents WHERE table_name = ?`, name).Scan(&dataType); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("gpkg: layer %q not found in %s", name, path)
		}
		return nil, apperrors.NewContainerUnreadable(apperrors.ErrCategoryDestination, path, err)
	}

	layer := &types.Layer{Name: name}
	if dataType == DataTypeFeatures {
		gc, err := readGeometryColumn(ctx, db, name)
		if err != nil {
			return nil, err
		}
		layer.Geometry = gc
	}

	cols, err := tableColumnList(ctx, db, name)
	if err != nil {
		return nil, err
	}
	var pk string
	for _, c := range cols {
		switch {
		case c.pk:
			pk = c.name
		case layer.Geometry != nil && c.name == layer.Geometry.Name:
		default:
			layer.Fields = append(layer.Fields, types.FieldDef{
				Name:    c.name,
				Type:    fieldTypeFromDecl(c.declType),
				NotNull: c.notNull,
			})
		}
	}

	var selectCols []string
	if layer.Geometry != nil {
		selectCols = append(selectCols, quoteIdent(layer.Geometry.Name))
	}
	for _, f := range layer.Fields {
		selectCols = append(selectCols, quoteIdent(f.Name))
	}
	if len(selectCols) == 0 {
		selectCols = append(selectCols, "NULL")
	}
	query := fmt.Sprintf("SELECT %s FROM %s", strings.Join(selectCols, ", "), quoteIdent(name))
	if pk != "" {
		query += " ORDER BY " + quoteIdent(pk)
	}

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("gpkg: read layer %q: %w", name, err)
	}
	defer rows.Close()

	for rows.Next() {
		dest := make([]interface{}, len(selectCols))
		ptrs := make([]interface{}, len(selectCols))
		for i := range dest {
			ptrs[i] = &dest[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("gpkg: scan layer %q: %w", name, err)
		}

		rec := types.Record{}
		vals := dest
		if layer.Geometry != nil {
			if blob, ok := dest[0].([]byte); ok && blob != nil {
				_, data, err := DecodeGeometry(blob)
				if err != nil {
					return nil, fmt.Errorf("gpkg: layer %q record %d: %w", name, len(layer.Records), err)
				}
				rec.Geometry = append([]byte(nil), data...)
			}
			vals = dest[1:]
		}
		rec.Values = make([]interface{}, len(layer.Fields))
		copy(rec.Values, vals)
		layer.Records = append(layer.Records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("gpkg: read layer %q: %w", name, err)
	}
	return layer, nil
}

func readGeometryColumn(ctx context.Context, db *sql.DB, table string) (*types.GeometryColumn, error) {
	var (
		gc       types.GeometryColumn
		typeName string
		srsID    int32
		z, m     int
	)
	err := db.QueryRowContext(ctx,
		`SELECT column_name, geometry_type_name, srs_id, z, m FROM gpkg_geometry_columns WHERE table_name = ?`, table,
	).Scan(&gc.Name, &typeName, &srsID, &z, &m)
	if err != nil {
		return nil, fmt.Errorf("gpkg: geometry column of %q: %w", table, err)
	}
	gc.Type = types.ParseGeometryType(typeName)
	gc.HasZ = z == 1
	gc.HasM = m == 1

	if srsID != SRSUndefinedCartesian && srsID != SRSUndefinedGeographic {
		var (
			org, def, srsName string
			code              int
		)
		err := db.QueryRowContext(ctx,
			`SELECT srs_name, organization, organization_coordsys_id, definition FROM gpkg_spatial_ref_sys WHERE srs_id = ?`, srsID,
		).Scan(&srsName, &org, &code, &def)
		if err != nil {
			return nil, fmt.Errorf("gpkg: srs %d of %q: %w", srsID, table, err)
		}
		if strings.EqualFold(org, "NONE") {
			org, code = "", 0
		}
		gc.SRS = types.SpatialRef{Organization: org, Code: code, Name: srsName, Definition: def}
	}
	return &gc, nil
}

type columnInfo struct {
	name     string
	declType string
	notNull  bool
	pk       bool
}

func tableColumnList(ctx context.Context, db *sql.DB, table string) ([]columnInfo, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", quoteIdent(table)))
	if err != nil {
		return nil, fmt.Errorf("gpkg: table info of %q: %w", table, err)
	}
	defer rows.Close()

	var cols []columnInfo
	for rows.Next() {
		var (
			cid     int
			c       columnInfo
			notNull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &c.name, &c.declType, &notNull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("gpkg: table info of %q: %w", table, err)
		}
		c.notNull = notNull == 1
		c.pk = pk > 0
		cols = append(cols, c)
	}
	return cols, rows.Err()
}

type txQueryer interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

// tableColumns returns the column names of a table as a set.
func tableColumns(ctx context.Context, q txQueryer, table string) (map[string]struct{}, error) {
	rows, err := q.QueryContext(ctx, fmt.Sprintf("SELECT * FROM %s LIMIT 0", quoteIdent(table)))
	if err != nil {
		return nil, fmt.Errorf("gpkg: columns of %q: %w", table, err)
	}
	defer rows.Close()

	names, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("gpkg: columns of %q: %w", table, err)
	}
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return set, nil
}

// fieldTypeFromDecl maps a declared SQLite column type onto a field type,
// following SQLite's affinity rules for anything unrecognised.
func fieldTypeFromDecl(decl string) types.FieldType {
	d := strings.ToUpper(strings.TrimSpace(decl))
	switch {
	case d == "DATE":
		return types.FieldDate
	case d == "DATETIME":
		return types.FieldDateTime
	case strings.Contains(d, "INT") || d == "BOOLEAN":
		return types.FieldInteger
	case strings.Contains(d, "CHAR") || strings.Contains(d, "CLOB") || strings.Contains(d, "TEXT"):
		return types.FieldText
	case d == "" || strings.Contains(d, "BLOB"):
		return types.FieldBlob
	case strings.Contains(d, "REAL") || strings.Contains(d, "FLOA") || strings.Contains(d, "DOUB"):
		return types.FieldReal
	default:
		return types.FieldReal
	}
}

var _ container.Reader = (*Store)(nil)
