// Package gpkg reads and writes OGC GeoPackage files on top of SQLite.
// It keeps the GeoPackage metadata tables (gpkg_spatial_ref_sys,
// gpkg_contents, gpkg_geometry_columns, gpkg_extensions) consistent with the
// layer tables, indexes feature tables with the rtree extension and stores
// geometries as GeoPackage binary blobs wrapping ISO WKB.
package gpkg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	apperrors "github.com/fgdb2gpkg/fgdb2gpkg/internal/errors"
)

const (
	// ApplicationID is the SQLite application_id of a GeoPackage ("GPKG").
	ApplicationID = 0x47504B47
	// UserVersion identifies GeoPackage 1.3.
	UserVersion = 10300

	DataTypeFeatures   = "features"
	DataTypeAttributes = "attributes"

	DefaultGeometryColumn = "geom"
	DefaultFIDColumn      = "fid"

	// SRS ids GeoPackage reserves for undefined systems.
	SRSUndefinedCartesian  = -1
	SRSUndefinedGeographic = 0

	// firstCustomSRSID is where ids for systems without an EPSG code start.
	firstCustomSRSID = 100000
)

const wgs84WKT = `GEOGCS["WGS 84",DATUM["WGS_1984",SPHEROID["WGS 84",6378137,298.257223563,AUTHORITY["EPSG","7030"]],AUTHORITY["EPSG","6326"]],PRIMEM["Greenwich",0,AUTHORITY["EPSG","8901"]],UNIT["degree",0.0174532925199433,AUTHORITY["EPSG","9122"]],AXIS["Latitude",NORTH],AXIS["Longitude",EAST],AUTHORITY["EPSG","4326"]]`

// bootstrapStatements create the mandatory GeoPackage tables and default
// spatial reference systems in an empty database.
var bootstrapStatements = []string{
	fmt.Sprintf("PRAGMA application_id = %d", ApplicationID),
	fmt.Sprintf("PRAGMA user_version = %d", UserVersion),
	`CREATE TABLE gpkg_spatial_ref_sys (
		srs_name TEXT NOT NULL,
		srs_id INTEGER NOT NULL PRIMARY KEY,
		organization TEXT NOT NULL,
		organization_coordsys_id INTEGER NOT NULL,
		definition TEXT NOT NULL,
		description TEXT
	)`,
	`CREATE TABLE gpkg_contents (
		table_name TEXT NOT NULL PRIMARY KEY,
		data_type TEXT NOT NULL,
		identifier TEXT UNIQUE,
		description TEXT DEFAULT '',
		last_change DATETIME NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now')),
		min_x DOUBLE,
		min_y DOUBLE,
		max_x DOUBLE,
		max_y DOUBLE,
		srs_id INTEGER,
		CONSTRAINT fk_gc_r_srs_id FOREIGN KEY (srs_id) REFERENCES gpkg_spatial_ref_sys(srs_id)
	)`,
	`CREATE TABLE gpkg_geometry_columns (
		table_name TEXT NOT NULL,
		column_name TEXT NOT NULL,
		geometry_type_name TEXT NOT NULL,
		srs_id INTEGER NOT NULL,
		z TINYINT NOT NULL,
		m TINYINT NOT NULL,
		CONSTRAINT pk_geom_cols PRIMARY KEY (table_name, column_name),
		CONSTRAINT uk_gc_table_name UNIQUE (table_name),
		CONSTRAINT fk_gc_tn FOREIGN KEY (table_name) REFERENCES gpkg_contents(table_name),
		CONSTRAINT fk_gc_srs FOREIGN KEY (srs_id) REFERENCES gpkg_spatial_ref_sys(srs_id)
	)`,
	`INSERT INTO gpkg_spatial_ref_sys (srs_name, srs_id, organization, organization_coordsys_id, definition, description)
		VALUES ('Undefined cartesian SRS', -1, 'NONE', -1, 'undefined', 'undefined cartesian coordinate reference system')`,
	`INSERT INTO gpkg_spatial_ref_sys (srs_name, srs_id, organization, organization_coordsys_id, definition, description)
		VALUES ('Undefined geographic SRS', 0, 'NONE', 0, 'undefined', 'undefined geographic coordinate reference system')`,
	`INSERT INTO gpkg_spatial_ref_sys (srs_name, srs_id, organization, organization_coordsys_id, definition, description)
		VALUES ('WGS 84 geodetic', 4326, 'EPSG', 4326, '` + wgs84WKT + `', 'longitude/latitude coordinates in decimal degrees on the WGS 84 spheroid')`,
}

// Store reads and writes GeoPackage files. It holds no open handles; every
// call opens the file, does its work and closes it again.
type Store struct {
	now func() time.Time
}

// NewStore creates a GeoPackage store.
func NewStore() *Store {
	return &Store{now: time.Now}
}

// Exists reports whether a regular file exists at path.
func (s *Store) Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// openReadOnly opens an existing GeoPackage without ever creating it.
func openReadOnly(path string) (*sql.DB, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("gpkg: %s is not a regular file", path)
	}
	db, err := sql.Open(DriverName, "file:"+escapePath(path)+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("gpkg: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	return db, nil
}

// openReadWrite opens path for writing, creating the file when absent.
func openReadWrite(ctx context.Context, path string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, "file:"+escapePath(path)+"?mode=rwc&_foreign_keys=1")
	if err != nil {
		return nil, fmt.Errorf("gpkg: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("gpkg: open %s: %w", path, err)
	}
	return db, nil
}

func escapePath(path string) string {
	return strings.NewReplacer("%", "%25", "?", "%3f", "#", "%23").Replace(path)
}

// ensureSchema bootstraps an empty database as a GeoPackage. A database that
// already has tables must already be a GeoPackage.
func ensureSchema(ctx context.Context, db *sql.DB, path string) error {
	var tables int
	if err := db.QueryRowContext(ctx, `SELECT count(*) FROM sqlite_master WHERE type = 'table'`).Scan(&tables); err != nil {
		return apperrors.NewContainerUnreadable(apperrors.ErrCategoryDestination, path, err)
	}
	if tables > 0 {
		ok, err := hasTable(ctx, db, "gpkg_contents")
		if err != nil {
			return apperrors.NewContainerUnreadable(apperrors.ErrCategoryDestination, path, err)
		}
		if !ok {
			return apperrors.NewContainerUnreadable(apperrors.ErrCategoryDestination, path,
				errors.New("sqlite database without gpkg_contents"))
		}
		return nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("gpkg: begin bootstrap: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range bootstrapStatements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("gpkg: bootstrap: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("gpkg: commit bootstrap: %w", err)
	}
	return nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func hasTable(ctx context.Context, q queryer, name string) (bool, error) {
	var n int
	err := q.QueryRowContext(ctx, `SELECT count(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, name).Scan(&n)
	return n > 0, err
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
