package gpkg

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/fgdb2gpkg/fgdb2gpkg/internal/container"
	apperrors "github.com/fgdb2gpkg/fgdb2gpkg/internal/errors"
	"github.com/fgdb2gpkg/fgdb2gpkg/pkg/types"
)

// Write options understood by WriteFeatures.
const (
	OptGeometryName = "GEOMETRY_NAME"
	OptFID          = "FID"
	OptIdentifier   = "IDENTIFIER"
	OptDescription  = "DESCRIPTION"
	OptSpatialIndex = "SPATIAL_INDEX"
)

var knownOptions = map[string]struct{}{
	OptGeometryName: {},
	OptFID:          {},
	OptIdentifier:   {},
	OptDescription:  {},
	OptSpatialIndex: {},
}

// featureOptions are the resolved write options for one feature layer.
type featureOptions struct {
	geometryName string
	fid          string
	identifier   string
	description  string
	spatialIndex bool
}

// ValidateOptions rejects unknown or empty write options.
func (s *Store) ValidateOptions(opts container.WriteOptions) error {
	var unknown []string
	for k, v := range opts {
		key := strings.ToUpper(k)
		if _, ok := knownOptions[key]; !ok {
			unknown = append(unknown, k)
			continue
		}
		if (key == OptGeometryName || key == OptFID) && strings.TrimSpace(v) == "" {
			return apperrors.NewValidationError(apperrors.CodeInvalidOptions,
				fmt.Sprintf("write option %s must not be empty", key))
		}
		if key == OptSpatialIndex {
			if _, ok := parseYesNo(v); !ok {
				return apperrors.NewValidationError(apperrors.CodeInvalidOptions,
					fmt.Sprintf("write option %s must be YES or NO, got %q", key, v))
			}
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return apperrors.NewValidationError(apperrors.CodeInvalidOptions,
			fmt.Sprintf("unsupported write options: %s", strings.Join(unknown, ", "))).
			WithDetails(map[string]interface{}{"unknown": unknown})
	}
	return nil
}

func resolveOptions(layer *types.Layer, opts container.WriteOptions) featureOptions {
	fo := featureOptions{
		geometryName: DefaultGeometryColumn,
		fid:          DefaultFIDColumn,
		identifier:   layer.Name,
		spatialIndex: true,
	}
	if layer.Geometry != nil && layer.Geometry.Name != "" {
		fo.geometryName = layer.Geometry.Name
	}
	for k, v := range opts {
		switch strings.ToUpper(k) {
		case OptGeometryName:
			fo.geometryName = v
		case OptFID:
			fo.fid = v
		case OptIdentifier:
			fo.identifier = v
		case OptDescription:
			fo.description = v
		case OptSpatialIndex:
			fo.spatialIndex, _ = parseYesNo(v)
		}
	}
	return fo
}

func parseYesNo(v string) (value, ok bool) {
	switch strings.ToUpper(strings.TrimSpace(v)) {
	case "YES", "TRUE", "ON", "1":
		return true, true
	case "NO", "FALSE", "OFF", "0":
		return false, true
	}
	return false, false
}

// WriteAttributes appends a layer without geometry as an "attributes" table.
func (s *Store) WriteAttributes(ctx context.Context, path string, layer *types.Layer) error {
	if layer.HasGeometry() {
		return fmt.Errorf("gpkg: layer %q has a geometry column; use WriteFeatures", layer.Name)
	}
	return s.write(ctx, path, layer, featureOptions{fid: DefaultFIDColumn, identifier: layer.Name})
}

// WriteFeatures appends a geometry-bearing layer as a "features" table.
func (s *Store) WriteFeatures(ctx context.Context, path string, layer *types.Layer, opts container.WriteOptions) error {
	if !layer.HasGeometry() {
		return fmt.Errorf("gpkg: layer %q has no geometry column; use WriteAttributes", layer.Name)
	}
	if err := s.ValidateOptions(opts); err != nil {
		return err
	}
	return s.write(ctx, path, layer, resolveOptions(layer, opts))
}

// write appends layer inside a single transaction. The file, the metadata
// tables and the layer table are created when absent.
func (s *Store) write(ctx context.Context, path string, layer *types.Layer, fo featureOptions) error {
	if err := layer.Validate(); err != nil {
		return fmt.Errorf("gpkg: invalid layer %q: %w", layer.Name, err)
	}
	features := layer.HasGeometry()
	if features && layer.FieldIndex(fo.geometryName) >= 0 {
		return fmt.Errorf("gpkg: geometry column %q clashes with a field of layer %q", fo.geometryName, layer.Name)
	}
	if layer.FieldIndex(fo.fid) >= 0 {
		return fmt.Errorf("gpkg: FID column %q clashes with a field of layer %q", fo.fid, layer.Name)
	}

	db, err := openReadWrite(ctx, path)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := ensureSchema(ctx, db, path); err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("gpkg: begin transaction: %w", err)
	}
	defer tx.Rollback()

	tbl, err := s.prepareTable(ctx, tx, layer, fo)
	if err != nil {
		return err
	}

	extent, err := insertRecords(ctx, tx, layer, tbl)
	if err != nil {
		return err
	}

	if err := s.touchContents(ctx, tx, layer.Name, extent); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("gpkg: commit layer %q: %w", layer.Name, err)
	}
	return nil
}

// tableInfo is the target of an append: existing or freshly created.
type tableInfo struct {
	geometryColumn string
	srsID          int32
	columns        []string
}

func (s *Store) prepareTable(ctx context.Context, tx *sql.Tx, layer *types.Layer, fo featureOptions) (*tableInfo, error) {
	var dataType string
	err := tx.QueryRowContext(ctx, `SELECT data_type FROM gpkg_contents WHERE table_name = ?`, layer.Name).Scan(&dataType)
	switch {
	case err == sql.ErrNoRows:
		return s.createTable(ctx, tx, layer, fo)
	case err != nil:
		return nil, fmt.Errorf("gpkg: look up layer %q: %w", layer.Name, err)
	}

	want := DataTypeAttributes
	if layer.HasGeometry() {
		want = DataTypeFeatures
	}
	if dataType != want {
		return nil, fmt.Errorf("gpkg: cannot append %s to existing %s layer %q", want, dataType, layer.Name)
	}

	tbl := &tableInfo{columns: layer.FieldNames()}
	if layer.HasGeometry() {
		if err := tx.QueryRowContext(ctx,
			`SELECT column_name, srs_id FROM gpkg_geometry_columns WHERE table_name = ?`, layer.Name,
		).Scan(&tbl.geometryColumn, &tbl.srsID); err != nil {
			return nil, fmt.Errorf("gpkg: look up geometry column of %q: %w", layer.Name, err)
		}
	}

	existing, err := tableColumns(ctx, tx, layer.Name)
	if err != nil {
		return nil, err
	}
	for _, name := range tbl.columns {
		if _, ok := existing[name]; !ok {
			return nil, fmt.Errorf("gpkg: existing layer %q has no column %q", layer.Name, name)
		}
	}
	return tbl, nil
}

func (s *Store) createTable(ctx context.Context, tx *sql.Tx, layer *types.Layer, fo featureOptions) (*tableInfo, error) {
	tbl := &tableInfo{columns: layer.FieldNames()}

	cols := []string{quoteIdent(fo.fid) + " INTEGER PRIMARY KEY AUTOINCREMENT NOT NULL"}
	if layer.HasGeometry() {
		srsID, err := registerSRS(ctx, tx, layer.Geometry.SRS)
		if err != nil {
			return nil, err
		}
		tbl.geometryColumn = fo.geometryName
		tbl.srsID = srsID
		cols = append(cols, quoteIdent(fo.geometryName)+" "+string(geometryTypeName(layer.Geometry)))
	}
	for _, f := range layer.Fields {
		col := quoteIdent(f.Name) + " " + string(f.Type)
		if f.NotNull {
			col += " NOT NULL"
		}
		cols = append(cols, col)
	}

	createSQL := fmt.Sprintf("CREATE TABLE %s (%s)", quoteIdent(layer.Name), strings.Join(cols, ", "))
	if _, err := tx.ExecContext(ctx, createSQL); err != nil {
		return nil, fmt.Errorf("gpkg: create table %q: %w", layer.Name, err)
	}

	dataType := DataTypeAttributes
	var srs interface{}
	if layer.HasGeometry() {
		dataType = DataTypeFeatures
		srs = tbl.srsID
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO gpkg_contents (table_name, data_type, identifier, description, last_change, srs_id) VALUES (?, ?, ?, ?, ?, ?)`,
		layer.Name, dataType, fo.identifier, fo.description, types.FormatDateTime(s.now()), srs,
	); err != nil {
		return nil, fmt.Errorf("gpkg: register layer %q: %w", layer.Name, err)
	}

	if layer.HasGeometry() {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO gpkg_geometry_columns (table_name, column_name, geometry_type_name, srs_id, z, m) VALUES (?, ?, ?, ?, ?, ?)`,
			layer.Name, fo.geometryName, string(geometryTypeName(layer.Geometry)), tbl.srsID,
			boolFlag(layer.Geometry.HasZ), boolFlag(layer.Geometry.HasM),
		); err != nil {
			return nil, fmt.Errorf("gpkg: register geometry column of %q: %w", layer.Name, err)
		}
		if fo.spatialIndex {
			if err := createSpatialIndex(ctx, tx, layer.Name, fo.geometryName, fo.fid); err != nil {
				return nil, err
			}
		}
	}
	return tbl, nil
}

func insertRecords(ctx context.Context, tx *sql.Tx, layer *types.Layer, tbl *tableInfo) (*Envelope, error) {
	var cols []string
	if tbl.geometryColumn != "" {
		cols = append(cols, quoteIdent(tbl.geometryColumn))
	}
	for _, c := range tbl.columns {
		cols = append(cols, quoteIdent(c))
	}

	var insertSQL string
	if len(cols) == 0 {
		insertSQL = fmt.Sprintf("INSERT INTO %s DEFAULT VALUES", quoteIdent(layer.Name))
	} else {
		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
		insertSQL = fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", quoteIdent(layer.Name), strings.Join(cols, ", "), placeholders)
	}

	stmt, err := tx.PrepareContext(ctx, insertSQL)
	if err != nil {
		return nil, fmt.Errorf("gpkg: prepare insert into %q: %w", layer.Name, err)
	}
	defer stmt.Close()

	var extent *Envelope
	args := make([]interface{}, 0, len(cols))
	for i, rec := range layer.Records {
		args = args[:0]
		if tbl.geometryColumn != "" {
			if rec.Geometry == nil {
				args = append(args, nil)
			} else {
				blob, env, err := EncodeGeometry(rec.Geometry, tbl.srsID)
				if err != nil {
					return nil, fmt.Errorf("gpkg: record %d of %q: %w", i, layer.Name, err)
				}
				if env != nil {
					if extent == nil {
						e := *env
						extent = &e
					} else {
						extent.Extend(*env)
					}
				}
				args = append(args, blob)
			}
		}
		for j, f := range layer.Fields {
			args = append(args, types.StorageValue(f.Type, rec.Values[j]))
		}

		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return nil, fmt.Errorf("gpkg: insert record %d into %q: %w", i, layer.Name, err)
		}
	}
	return extent, nil
}

// touchContents refreshes last_change and widens the stored extent.
func (s *Store) touchContents(ctx context.Context, tx *sql.Tx, table string, extent *Envelope) error {
	if extent != nil {
		var minX, minY, maxX, maxY sql.NullFloat64
		if err := tx.QueryRowContext(ctx,
			`SELECT min_x, min_y, max_x, max_y FROM gpkg_contents WHERE table_name = ?`, table,
		).Scan(&minX, &minY, &maxX, &maxY); err != nil {
			return fmt.Errorf("gpkg: read extent of %q: %w", table, err)
		}
		if minX.Valid && minY.Valid && maxX.Valid && maxY.Valid {
			extent.Extend(Envelope{MinX: minX.Float64, MaxX: maxX.Float64, MinY: minY.Float64, MaxY: maxY.Float64})
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE gpkg_contents SET min_x = ?, min_y = ?, max_x = ?, max_y = ? WHERE table_name = ?`,
			extent.MinX, extent.MinY, extent.MaxX, extent.MaxY, table,
		); err != nil {
			return fmt.Errorf("gpkg: update extent of %q: %w", table, err)
		}
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE gpkg_contents SET last_change = ? WHERE table_name = ?`,
		types.FormatDateTime(s.now()), table,
	); err != nil {
		return fmt.Errorf("gpkg: update last_change of %q: %w", table, err)
	}
	return nil
}

// registerSRS returns the srs_id for ref, inserting a row when needed.
// Undefined references map to the undefined cartesian system; EPSG systems
// keep their code; others get ids from firstCustomSRSID upwards.
func registerSRS(ctx context.Context, tx *sql.Tx, ref types.SpatialRef) (int32, error) {
	if ref.IsZero() {
		return SRSUndefinedCartesian, nil
	}

	org := strings.ToUpper(ref.Organization)
	if org == "EPSG" && ref.Code > 0 {
		var n int
		if err := tx.QueryRowContext(ctx, `SELECT count(*) FROM gpkg_spatial_ref_sys WHERE srs_id = ?`, ref.Code).Scan(&n); err != nil {
			return 0, fmt.Errorf("gpkg: look up srs %d: %w", ref.Code, err)
		}
		if n == 0 {
			if err := insertSRS(ctx, tx, int32(ref.Code), ref); err != nil {
				return 0, err
			}
		}
		return int32(ref.Code), nil
	}

	// Reuse an identical custom definition.
	var id int32
	err := tx.QueryRowContext(ctx,
		`SELECT srs_id FROM gpkg_spatial_ref_sys WHERE definition = ? AND srs_id >= ? ORDER BY srs_id LIMIT 1`,
		ref.Definition, firstCustomSRSID,
	).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return 0, fmt.Errorf("gpkg: look up custom srs: %w", err)
	}

	var maxID sql.NullInt64
	if err := tx.QueryRowContext(ctx, `SELECT max(srs_id) FROM gpkg_spatial_ref_sys`).Scan(&maxID); err != nil {
		return 0, fmt.Errorf("gpkg: allocate srs id: %w", err)
	}
	id = firstCustomSRSID
	if maxID.Valid && maxID.Int64 >= firstCustomSRSID {
		id = int32(maxID.Int64 + 1)
	}
	if err := insertSRS(ctx, tx, id, ref); err != nil {
		return 0, err
	}
	return id, nil
}

func insertSRS(ctx context.Context, tx *sql.Tx, id int32, ref types.SpatialRef) error {
	org := ref.Organization
	code := ref.Code
	if org == "" {
		org = "NONE"
		code = int(id)
	}
	name := ref.Name
	if name == "" {
		name = org + ":" + strconv.Itoa(code)
	}
	def := ref.Definition
	if def == "" {
		def = "undefined"
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO gpkg_spatial_ref_sys (srs_name, srs_id, organization, organization_coordsys_id, definition) VALUES (?, ?, ?, ?, ?)`,
		name, id, org, code, def,
	); err != nil {
		return fmt.Errorf("gpkg: register srs %d: %w", id, err)
	}
	return nil
}

func geometryTypeName(gc *types.GeometryColumn) types.GeometryType {
	if gc.Type == "" {
		return types.GeometryAny
	}
	return gc.Type
}

func boolFlag(b bool) int {
	if b {
		return 1
	}
	return 0
}

var _ container.Writer = (*Store)(nil)
var _ container.OptionValidator = (*Store)(nil)
