package gpkg

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/mattn/go-sqlite3"
)

// DriverName is the database/sql driver registered by this package. It is
// mattn/go-sqlite3 with the SQL functions the rtree triggers call.
const DriverName = "sqlite3_gpkg"

const (
	ExtensionRTree  = "gpkg_rtree_index"
	rtreeDefinition = "http://www.geopackage.org/spec120/#extension_rtree"
	rtreeScope      = "write-only"
)

func init() {
	sql.Register(DriverName, &sqlite3.SQLiteDriver{ConnectHook: registerFunctions})
}

// registerFunctions installs ST_IsEmpty and ST_MinX/MaxX/MinY/MaxY on conn.
func registerFunctions(conn *sqlite3.SQLiteConn) error {
	funcs := []struct {
		name string
		impl interface{}
	}{
		{"ST_IsEmpty", stIsEmpty},
		{"ST_MinX", envelopeFunc(func(e Envelope) float64 { return e.MinX })},
		{"ST_MaxX", envelopeFunc(func(e Envelope) float64 { return e.MaxX })},
		{"ST_MinY", envelopeFunc(func(e Envelope) float64 { return e.MinY })},
		{"ST_MaxY", envelopeFunc(func(e Envelope) float64 { return e.MaxY })},
	}
	for _, f := range funcs {
		if err := conn.RegisterFunc(f.name, f.impl, true); err != nil {
			return fmt.Errorf("gpkg: register %s: %w", f.name, err)
		}
	}
	return nil
}

// blobEnvelope returns the XY envelope of a GeoPackage geometry blob, taken
// from the header when present and computed from the WKB otherwise. SQL
// NULL arrives as a nil slice.
func blobEnvelope(v interface{}) (Envelope, bool, error) {
	if v == nil {
		return Envelope{}, false, nil
	}
	blob, ok := v.([]byte)
	if !ok {
		return Envelope{}, false, fmt.Errorf("gpkg: geometry must be a BLOB, got %T", v)
	}
	if len(blob) == 0 {
		return Envelope{}, false, nil
	}
	h, data, err := DecodeGeometry(blob)
	if err != nil {
		return Envelope{}, false, err
	}
	if h.Empty {
		return Envelope{}, false, nil
	}
	if len(h.Envelope) >= 4 {
		e := h.Envelope
		return Envelope{MinX: e[0], MaxX: e[1], MinY: e[2], MaxY: e[3]}, true, nil
	}
	return envelopeOf(data)
}

func stIsEmpty(v interface{}) (bool, error) {
	_, ok, err := blobEnvelope(v)
	return !ok, err
}

func envelopeFunc(pick func(Envelope) float64) func(interface{}) (interface{}, error) {
	return func(v interface{}) (interface{}, error) {
		env, ok, err := blobEnvelope(v)
		if err != nil || !ok {
			return nil, err
		}
		return pick(env), nil
	}
}

func rtreeName(table, column string) string {
	return "rtree_" + table + "_" + column
}

// createSpatialIndex adds the gpkg_rtree_index extension for a feature
// table: the rtree virtual table, the triggers that keep it in step with the
// table and the gpkg_extensions row. Rows inserted afterwards in the same
// transaction are indexed by the insert trigger.
func createSpatialIndex(ctx context.Context, tx *sql.Tx, table, column, fid string) error {
	if _, err := tx.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS gpkg_extensions (
		table_name TEXT,
		column_name TEXT,
		extension_name TEXT NOT NULL,
		definition TEXT NOT NULL,
		scope TEXT NOT NULL,
		CONSTRAINT ge_tce UNIQUE (table_name, column_name, extension_name)
	)`); err != nil {
		return fmt.Errorf("gpkg: create gpkg_extensions: %w", err)
	}

	stmts := append([]string{
		fmt.Sprintf("CREATE VIRTUAL TABLE %s USING rtree(id, minx, maxx, miny, maxy)", quoteIdent(rtreeName(table, column))),
	}, rtreeTriggers(table, column, fid)...)
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("gpkg: spatial index of %q: %w", table, err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO gpkg_extensions (table_name, column_name, extension_name, definition, scope) VALUES (?, ?, ?, ?, ?)`,
		table, column, ExtensionRTree, rtreeDefinition, rtreeScope,
	); err != nil {
		return fmt.Errorf("gpkg: register spatial index of %q: %w", table, err)
	}
	return nil
}

// rtreeTriggers returns the six triggers of GeoPackage 1.3 Annex F.3.
func rtreeTriggers(table, column, fid string) []string {
	name := rtreeName(table, column)
	r := quoteIdent(name)
	t, c, i := quoteIdent(table), quoteIdent(column), quoteIdent(fid)
	trigger := func(suffix string) string { return quoteIdent(name + "_" + suffix) }

	values := fmt.Sprintf("NEW.%[1]s, ST_MinX(NEW.%[2]s), ST_MaxX(NEW.%[2]s), ST_MinY(NEW.%[2]s), ST_MaxY(NEW.%[2]s)", i, c)
	present := fmt.Sprintf("NEW.%[1]s NOT NULL AND NOT ST_IsEmpty(NEW.%[1]s)", c)
	absent := fmt.Sprintf("NEW.%[1]s IS NULL OR ST_IsEmpty(NEW.%[1]s)", c)

	return []string{
		fmt.Sprintf(`CREATE TRIGGER %s AFTER INSERT ON %s WHEN (%s)
			BEGIN INSERT OR REPLACE INTO %s VALUES (%s); END`,
			trigger("insert"), t, present, r, values),
		fmt.Sprintf(`CREATE TRIGGER %s AFTER UPDATE OF %s ON %s WHEN OLD.%s = NEW.%s AND (%s)
			BEGIN INSERT OR REPLACE INTO %s VALUES (%s); END`,
			trigger("update1"), c, t, i, i, present, r, values),
		fmt.Sprintf(`CREATE TRIGGER %s AFTER UPDATE OF %s ON %s WHEN OLD.%s = NEW.%s AND (%s)
			BEGIN DELETE FROM %s WHERE id = OLD.%s; END`,
			trigger("update2"), c, t, i, i, absent, r, i),
		fmt.Sprintf(`CREATE TRIGGER %s AFTER UPDATE ON %s WHEN OLD.%s != NEW.%s AND (%s)
			BEGIN DELETE FROM %s WHERE id = OLD.%s; INSERT OR REPLACE INTO %s VALUES (%s); END`,
			trigger("update3"), t, i, i, present, r, i, r, values),
		fmt.Sprintf(`CREATE TRIGGER %s AFTER UPDATE ON %s WHEN OLD.%s != NEW.%s AND (%s)
			BEGIN DELETE FROM %s WHERE id IN (OLD.%s, NEW.%s); END`,
			trigger("update4"), t, i, i, absent, r, i, i),
		fmt.Sprintf(`CREATE TRIGGER %s AFTER DELETE ON %s WHEN OLD.%s NOT NULL
			BEGIN DELETE FROM %s WHERE id = OLD.%s; END`,
			trigger("delete"), t, c, r, i),
	}
}
