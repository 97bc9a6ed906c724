package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"iter"
	"net/url"
	"strings"
	"time"

	"github.com/tendant/content-unit/pkg/contentunit"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const (
	busyTimeoutMS   = 5000
	maxOpenConns    = 1
	maxIdleConns    = 1
	connMaxLifetime = 5 * time.Minute
)

const schema = `
CREATE TABLE IF NOT EXISTS content_unit (
  id         TEXT PRIMARY KEY,
  title      TEXT NOT NULL,
  body       TEXT NOT NULL DEFAULT '',
  asset_ref  TEXT,
  status     TEXT NOT NULL,
  owner_id   TEXT NOT NULL DEFAULT '',
  created_at TEXT NOT NULL,
  updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS content_unit_status_idx ON content_unit (status);
CREATE INDEX IF NOT EXISTS content_unit_owner_idx ON content_unit (owner_id);
`

// timeLayout has a fixed width so TEXT ordering matches time ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const unitColumns = `id, title, body, asset_ref, status, owner_id, created_at, updated_at`

// Repository implements contentunit.DocumentRepository on an embedded SQLite database.
type Repository struct {
	db *sql.DB
}

// Open opens the SQLite database at path and bootstraps the schema.
// Use ":memory:" for a throwaway database.
func Open(path string) (*Repository, error) {
	dsn, err := sqliteDSN(path)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	if err := configureDB(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if path == ":memory:" {
		// Recycling the only connection would drop the database.
		db.SetConnMaxLifetime(0)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap schema: %w", err)
	}

	return &Repository{db: db}, nil
}

// Close closes the underlying database connection.
func (r *Repository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

func configureDB(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL;",
		"PRAGMA synchronous = NORMAL;",
		fmt.Sprintf("PRAGMA busy_timeout = %d;", busyTimeoutMS),
	}
	for _, stmt := range pragmas {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}

	// A single connection also keeps ":memory:" databases alive and shared.
	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(connMaxLifetime)

	return nil
}

func sqliteDSN(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("db path is required")
	}
	if path == ":memory:" {
		return path, nil
	}
	u := url.URL{Scheme: "file", Path: path}
	return u.String(), nil
}

func (r *Repository) Create(ctx context.Context, unit *contentunit.Unit) (*contentunit.Unit, error) {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO content_unit (`+unitColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		unit.ID, unit.Title, unit.Body, nullable(unit.AssetRef), string(unit.Status),
		unit.OwnerID, formatTime(unit.CreatedAt), formatTime(unit.UpdatedAt))
	if err != nil {
		return nil, classify("create unit", err)
	}

	stored := *unit
	return &stored, nil
}

func (r *Repository) Update(ctx context.Context, id string, patch contentunit.UnitPatch) (*contentunit.Unit, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, classify("update unit", err)
	}
	defer tx.Rollback()

	var status *string
	if patch.Status != nil {
		s := string(*patch.Status)
		status = &s
	}

	res, err := tx.ExecContext(ctx, `
UPDATE content_unit SET
  title = COALESCE(?, title),
  body = COALESCE(?, body),
  status = COALESCE(?, status),
  asset_ref = COALESCE(?, asset_ref),
  updated_at = ?
WHERE id = ?`,
		patch.Title, patch.Body, status, patch.AssetRef, formatTime(patch.UpdatedAt), id)
	if err != nil {
		return nil, classify("update unit", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, fmt.Errorf("%w: unit %s", contentunit.ErrNotFound, id)
	}

	unit, err := scanUnit(tx.QueryRowContext(ctx, `SELECT `+unitColumns+` FROM content_unit WHERE id = ?`, id))
	if err != nil {
		return nil, classify("update unit", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, classify("update unit", err)
	}
	return unit, nil
}

func (r *Repository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM content_unit WHERE id = ?`, id)
	if err != nil {
		return classify("delete unit", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return classify("delete unit", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: unit %s", contentunit.ErrNotFound, id)
	}
	return nil
}

func (r *Repository) Get(ctx context.Context, id string) (*contentunit.Unit, error) {
	unit, err := scanUnit(r.db.QueryRowContext(ctx, `SELECT `+unitColumns+` FROM content_unit WHERE id = ?`, id))
	if err != nil {
		return nil, classify("get unit "+id, err)
	}
	return unit, nil
}

// List runs the query each time the sequence is ranged over. Rows are read
// fully before yielding because the pool holds a single connection.
func (r *Repository) List(ctx context.Context, filter contentunit.ListFilter) iter.Seq2[*contentunit.Unit, error] {
	return func(yield func(*contentunit.Unit, error) bool) {
		units, err := r.list(ctx, filter)
		if err != nil {
			yield(nil, err)
			return
		}
		for _, unit := range units {
			if !yield(unit, nil) {
				return
			}
		}
	}
}

func (r *Repository) list(ctx context.Context, filter contentunit.ListFilter) ([]*contentunit.Unit, error) {
	var (
		conditions []string
		args       []any
	)
	if filter.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.OwnerID != "" {
		conditions = append(conditions, "owner_id = ?")
		args = append(args, filter.OwnerID)
	}

	query := `SELECT ` + unitColumns + ` FROM content_unit`
	if len(conditions) > 0 {
		query += ` WHERE ` + strings.Join(conditions, " AND ")
	}
	query += ` ORDER BY created_at DESC, id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify("list units", err)
	}
	defer rows.Close()

	var units []*contentunit.Unit
	for rows.Next() {
		unit, err := scanUnit(rows)
		if err != nil {
			return nil, classify("list units", err)
		}
		units = append(units, unit)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("list units", err)
	}
	return units, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUnit(row scanner) (*contentunit.Unit, error) {
	var (
		unit                 contentunit.Unit
		assetRef             sql.NullString
		status               string
		createdAt, updatedAt string
	)
	if err := row.Scan(&unit.ID, &unit.Title, &unit.Body, &assetRef, &status,
		&unit.OwnerID, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	unit.AssetRef = assetRef.String
	unit.Status = contentunit.Status(status)

	var err error
	if unit.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if unit.UpdatedAt, err = time.Parse(timeLayout, updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	return &unit, nil
}

func classify(operation string, err error) error {
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("%w: %s", contentunit.ErrNotFound, operation)
	case isUniqueViolation(err):
		return fmt.Errorf("%w: %s", contentunit.ErrConflict, operation)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	}
	return fmt.Errorf("%w: %s: %w", contentunit.ErrStore, operation, err)
}

func isUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	switch sqliteErr.Code() {
	case sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3.SQLITE_CONSTRAINT_UNIQUE:
		return true
	}
	return false
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
