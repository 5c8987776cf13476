package trajectory

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/matzehuels/evdisplay/pkg/cache"
	"github.com/matzehuels/evdisplay/pkg/errors"
)

// SQLiteSource reads the trk table of a SQLite database. Point arrays are
// stored either as little-endian float64 BLOBs or as JSON number arrays.
type SQLiteSource struct {
	path string
	db   *sql.DB
}

// OpenSQLite opens the database at path and checks the trk schema. The
// first row is decoded as well, so column types that cannot hold a
// Record fail here rather than on the first event load.
func OpenSQLite(ctx context.Context, path string) (*SQLiteSource, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, errors.Wrap(errors.ErrCodeDataSource, err, "open %s", path)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeDataSource, err, "open %s", path)
	}
	s := &SQLiteSource{path: path, db: db}
	if err := s.checkSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	if err := s.checkRow(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteSource) checkSchema(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx, "SELECT name FROM pragma_table_info(?)", Table)
	if err != nil {
		return errors.Wrap(errors.ErrCodeDataSource, err, "read schema of %s", s.path)
	}
	defer rows.Close()

	have := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return errors.Wrap(errors.ErrCodeDataSource, err, "read schema of %s", s.path)
		}
		have[name] = true
	}
	if err := rows.Err(); err != nil {
		return errors.Wrap(errors.ErrCodeDataSource, err, "read schema of %s", s.path)
	}
	if len(have) == 0 {
		return errors.New(errors.ErrCodeDataSource, "%s has no %q table", s.path, Table)
	}
	var missing []string
	for _, f := range Fields {
		if !have[f] {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		return errors.New(errors.ErrCodeDataSource, "table %q in %s lacks fields: %s", Table, s.path, strings.Join(missing, ", "))
	}
	return nil
}

func (s *SQLiteSource) checkRow(ctx context.Context) error {
	q := fmt.Sprintf("SELECT %s FROM %s ORDER BY rowid LIMIT 1", strings.Join(Fields, ", "), Table)
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return errors.Wrap(errors.ErrCodeDataSource, err, "read %s", s.path)
	}
	defer rows.Close()
	if rows.Next() {
		if _, err := scanRecord(rows); err != nil {
			return errors.Wrap(errors.ErrCodeDataSource, err, "table %q in %s has unusable column types", Table, s.path)
		}
	}
	if err := rows.Err(); err != nil {
		return errors.Wrap(errors.ErrCodeDataSource, err, "read %s", s.path)
	}
	return nil
}

func (s *SQLiteSource) Name() string { return s.path }

// ID identifies the database by content.
func (s *SQLiteSource) ID() (string, error) {
	sum, err := cache.HashFile(s.path)
	if err != nil {
		return "", err
	}
	return "sqlite:" + sum, nil
}

// EventIDs lists the distinct event ids in ascending order.
func (s *SQLiteSource) EventIDs(ctx context.Context) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("SELECT DISTINCT %s FROM %s ORDER BY %s", FieldEvent, Table, FieldEvent))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *SQLiteSource) Scan(ctx context.Context, fn func(*Record) error) error {
	return s.query(ctx, fn, "")
}

func (s *SQLiteSource) ScanEvent(ctx context.Context, id int64, fn func(*Record) error) error {
	return s.query(ctx, fn, fmt.Sprintf(" WHERE %s = ?", FieldEvent), id)
}

func (s *SQLiteSource) query(ctx context.Context, fn func(*Record) error, where string, args ...any) error {
	q := fmt.Sprintf("SELECT %s FROM %s%s ORDER BY rowid", strings.Join(Fields, ", "), Table, where)
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return err
		}
		if err := fn(r); err != nil {
			return err
		}
	}
	return rows.Err()
}

// scanRecord decodes one row selected in Fields order.
func scanRecord(rows *sql.Rows) (*Record, error) {
	var (
		r       Record
		x, y, z any
		err     error
	)
	if err := rows.Scan(&r.EventID, &r.TrackID, &r.ParentID, &r.PDG, &r.KinE, &r.NPoints, &x, &y, &z); err != nil {
		return nil, err
	}
	if r.X, err = decodeArray(x); err != nil {
		return nil, fmt.Errorf("%s of track %d: %w", FieldX, r.TrackID, err)
	}
	if r.Y, err = decodeArray(y); err != nil {
		return nil, fmt.Errorf("%s of track %d: %w", FieldY, r.TrackID, err)
	}
	if r.Z, err = decodeArray(z); err != nil {
		return nil, fmt.Errorf("%s of track %d: %w", FieldZ, r.TrackID, err)
	}
	return &r, nil
}

func (s *SQLiteSource) Close() error { return s.db.Close() }

// decodeArray accepts JSON text or a little-endian float64 BLOB.
func decodeArray(v any) ([]float64, error) {
	var raw []byte
	switch t := v.(type) {
	case nil:
		return nil, nil
	case string:
		raw = []byte(t)
	case []byte:
		raw = t
	default:
		return nil, fmt.Errorf("unexpected array type %T", v)
	}

	if trimmed := bytes.TrimSpace(raw); len(trimmed) > 1 && trimmed[0] == '[' && trimmed[len(trimmed)-1] == ']' {
		var out []float64
		if err := json.Unmarshal(trimmed, &out); err == nil {
			return out, nil
		}
	}
	if _, ok := v.(string); ok {
		return nil, fmt.Errorf("invalid JSON array")
	}
	if len(raw)%8 != 0 {
		return nil, fmt.Errorf("blob length %d is not a multiple of 8", len(raw))
	}
	out := make([]float64, len(raw)/8)
	for i := range out {
		out[i] = math.Float64frombits(binary.LittleEndian.Uint64(raw[i*8:]))
	}
	return out, nil
}

func encodeArray(v []float64) []byte {
	out := make([]byte, 8*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint64(out[i*8:], math.Float64bits(f))
	}
	return out
}

// WriteSQLite creates a database at path holding records in a trk table,
// with point arrays as float64 BLOBs. An existing file is replaced.
func WriteSQLite(ctx context.Context, path string, records []Record) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return err
	}
	defer db.Close()

	ddl := fmt.Sprintf(`CREATE TABLE %s (
	%s INTEGER, %s INTEGER, %s INTEGER, %s INTEGER,
	%s REAL, %s INTEGER, %s BLOB, %s BLOB, %s BLOB)`,
		Table, FieldEvent, FieldTrack, FieldParent, FieldPDG,
		FieldKinE, FieldNPoints, FieldX, FieldY, FieldZ)
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s (%s) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)", Table, strings.Join(Fields, ", ")))
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, r := range records {
		_, err := stmt.ExecContext(ctx, r.EventID, r.TrackID, r.ParentID, r.PDG, r.KinE, r.NPoints,
			encodeArray(r.X), encodeArray(r.Y), encodeArray(r.Z))
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}
