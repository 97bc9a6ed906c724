package postgres

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tendant/content-unit/pkg/contentunit"
)

// Schema creates the table used by Repository
const Schema = `
CREATE TABLE IF NOT EXISTS content_unit (
	id         TEXT PRIMARY KEY,
	title      TEXT NOT NULL,
	body       TEXT NOT NULL DEFAULT '',
	asset_ref  TEXT,
	status     TEXT NOT NULL,
	owner_id   TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS content_unit_status_idx ON content_unit (status);
CREATE INDEX IF NOT EXISTS content_unit_owner_idx ON content_unit (owner_id);
`

const unitColumns = `id, title, body, asset_ref, status, owner_id, created_at, updated_at`

// DBTX is an interface that allows us to use either a database connection or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Repository implements contentunit.DocumentRepository using PostgreSQL
type Repository struct {
	db DBTX
}

// New creates a new PostgreSQL repository
func New(db DBTX) *Repository {
	return &Repository{db: db}
}

// NewWithPool creates a new PostgreSQL repository with connection pool
func NewWithPool(pool *pgxpool.Pool) *Repository {
	return &Repository{db: pool}
}

// NewPool opens a connection pool. When schema is set, every connection
// resolves unqualified names in it.
func NewPool(ctx context.Context, databaseURL, schema string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DATABASE_URL: %w", err)
	}
	if schema != "" {
		cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
			_, err := conn.Exec(ctx, "SET search_path TO "+pgx.Identifier{schema}.Sanitize())
			return err
		}
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create pgx pool: %w", err)
	}
	return pool, nil
}

// EnsureSchema creates the named schema if it does not exist. It must run
// before Migrate on a pool built by NewPool with the same schema.
func EnsureSchema(ctx context.Context, db DBTX, schema string) error {
	if schema == "" {
		return nil
	}
	if _, err := db.Exec(ctx, createSchemaSQL(schema)); err != nil {
		return fmt.Errorf("%w: create schema %s: %w", contentunit.ErrStore, schema, err)
	}
	return nil
}

func createSchemaSQL(schema string) string {
	return "CREATE SCHEMA IF NOT EXISTS " + pgx.Identifier{schema}.Sanitize()
}

// Migrate creates the table if it does not exist
func (r *Repository) Migrate(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, Schema); err != nil {
		return r.handlePostgresError("migrate", err)
	}
	return nil
}

// Error handling helper
func (r *Repository) handlePostgresError(operation string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: %s", contentunit.ErrNotFound, operation)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return fmt.Errorf("%w: %s", contentunit.ErrConflict, pgErr.Detail)
		case "23502": // not_null_violation
			return fmt.Errorf("%w: required field %s is missing", contentunit.ErrValidation, pgErr.ColumnName)
		case "42P01": // undefined_table
			return fmt.Errorf("%w: table does not exist - database migration required", contentunit.ErrStore)
		default:
			return fmt.Errorf("%w: database error in %s: %s (code: %s)", contentunit.ErrStore, operation, pgErr.Message, pgErr.Code)
		}
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	return fmt.Errorf("%w: database error in %s: %w", contentunit.ErrStore, operation, err)
}

func (r *Repository) Create(ctx context.Context, unit *contentunit.Unit) (*contentunit.Unit, error) {
	query := `
		INSERT INTO content_unit (` + unitColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING ` + unitColumns

	row := r.db.QueryRow(ctx, query,
		unit.ID, unit.Title, unit.Body, nullable(unit.AssetRef),
		string(unit.Status), unit.OwnerID, unit.CreatedAt, unit.UpdatedAt)

	stored, err := scanUnit(row)
	if err != nil {
		return nil, r.handlePostgresError("create unit", err)
	}
	return stored, nil
}

func (r *Repository) Update(ctx context.Context, id string, patch contentunit.UnitPatch) (*contentunit.Unit, error) {
	query := `
		UPDATE content_unit SET
			title = COALESCE($2, title),
			body = COALESCE($3, body),
			status = COALESCE($4, status),
			asset_ref = COALESCE($5, asset_ref),
			updated_at = $6
		WHERE id = $1
		RETURNING ` + unitColumns

	var status *string
	if patch.Status != nil {
		s := string(*patch.Status)
		status = &s
	}

	row := r.db.QueryRow(ctx, query, id, patch.Title, patch.Body, status, patch.AssetRef, patch.UpdatedAt)
	stored, err := scanUnit(row)
	if err != nil {
		return nil, r.handlePostgresError("update unit "+id, err)
	}
	return stored, nil
}

func (r *Repository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM content_unit WHERE id = $1`, id)
	if err != nil {
		return r.handlePostgresError("delete unit", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: unit %s", contentunit.ErrNotFound, id)
	}
	return nil
}

func (r *Repository) Get(ctx context.Context, id string) (*contentunit.Unit, error) {
	query := `SELECT ` + unitColumns + ` FROM content_unit WHERE id = $1`

	unit, err := scanUnit(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, r.handlePostgresError("get unit "+id, err)
	}
	return unit, nil
}

func (r *Repository) List(ctx context.Context, filter contentunit.ListFilter) iter.Seq2[*contentunit.Unit, error] {
	return func(yield func(*contentunit.Unit, error) bool) {
		query, args := listQuery(filter)

		rows, err := r.db.Query(ctx, query, args...)
		if err != nil {
			yield(nil, r.handlePostgresError("list units", err))
			return
		}
		defer rows.Close()

		for rows.Next() {
			unit, err := scanUnit(rows)
			if err != nil {
				yield(nil, r.handlePostgresError("list units", err))
				return
			}
			if !yield(unit, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(nil, r.handlePostgresError("list units", err))
		}
	}
}

func listQuery(filter contentunit.ListFilter) (string, []any) {
	var (
		conditions []string
		args       []any
	)
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.OwnerID != "" {
		args = append(args, filter.OwnerID)
		conditions = append(conditions, fmt.Sprintf("owner_id = $%d", len(args)))
	}

	query := `SELECT ` + unitColumns + ` FROM content_unit`
	if len(conditions) > 0 {
		query += ` WHERE ` + strings.Join(conditions, " AND ")
	}
	query += ` ORDER BY created_at DESC, id`
	return query, args
}

func scanUnit(row pgx.Row) (*contentunit.Unit, error) {
	var (
		unit     contentunit.Unit
		assetRef *string
		status   string
	)
	err := row.Scan(&unit.ID, &unit.Title, &unit.Body, &assetRef, &status,
		&unit.OwnerID, &unit.CreatedAt, &unit.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if assetRef != nil {
		unit.AssetRef = *assetRef
	}
	unit.Status = contentunit.Status(status)
	return &unit, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
