package store

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

//go:embed migration/*.sql
var migrationFS embed.FS

const pgUniqueViolation = "23505"

// Postgres is the RecordStore backed by a pgx connection pool.
type Postgres struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

func NewPostgres(pool *pgxpool.Pool, logger *zap.Logger) *Postgres {
	return &Postgres{pool: pool, logger: logger}
}

// Connect opens a pool for databaseURL and verifies it with a ping.
func Connect(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("db connection string required")
	}

	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

func (p *Postgres) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

func (p *Postgres) Query(ctx context.Context, collection string, filters ...Filter) ([]Row, error) {
	t, err := lookupTable(collection)
	if err != nil {
		return nil, err
	}

	stmt, ok, err := buildSelect(collection, t, filters)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	rows, err := p.pool.Query(ctx, stmt.sql, stmt.args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", collection, err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", collection, err)
		}
		out = append(out, toRow(t, values))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query %s: %w", collection, err)
	}
	return out, nil
}

func (p *Postgres) Insert(ctx context.Context, collection string, row Row) (Row, error) {
	t, err := lookupTable(collection)
	if err != nil {
		return nil, err
	}

	stmt, err := buildInsert(collection, t, row)
	if err != nil {
		return nil, err
	}

	r, err := p.pool.Query(ctx, stmt.sql, stmt.args...)
	if err != nil {
		return nil, p.translate(collection, err)
	}
	defer r.Close()

	if !r.Next() {
		if err := r.Err(); err != nil {
			return nil, p.translate(collection, err)
		}
		return nil, fmt.Errorf("insert %s: no row returned", collection)
	}
	values, err := r.Values()
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", collection, err)
	}
	inserted := toRow(t, values)
	r.Close()
	if err := r.Err(); err != nil {
		return nil, p.translate(collection, err)
	}
	return inserted, nil
}

func (p *Postgres) Update(ctx context.Context, collection, id string, patch Row) error {
	t, err := lookupTable(collection)
	if err != nil {
		return err
	}

	stmt, err := buildUpdate(collection, t, id, patch)
	if err != nil {
		return err
	}
	if _, err := uuid.Parse(id); err != nil {
		return ErrNotFound
	}
	if len(patch) == 0 {
		return nil
	}

	result, err := p.pool.Exec(ctx, stmt.sql, stmt.args...)
	if err != nil {
		return p.translate(collection, err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) translate(collection string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return &ConstraintError{Constraint: pgErr.ConstraintName, Err: err}
	}
	return fmt.Errorf("write %s: %w", collection, err)
}

// Migrate applies the embedded migration files in name order. Each file runs
// once; applied names are kept in the migrations table.
func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS migrations (name TEXT PRIMARY KEY);`); err != nil {
		return fmt.Errorf("cannot create migrations table: %w", err)
	}

	names, err := fs.Glob(migrationFS, "migration/*.sql")
	if err != nil {
		return err
	}
	sort.Strings(names)

	for _, name := range names {
		if err := p.migrateFile(ctx, name); err != nil {
			return fmt.Errorf("migration error: name=%q err=%w", name, err)
		}
	}
	return nil
}

func (p *Postgres) migrateFile(ctx context.Context, name string) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var n int
	if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM migrations WHERE name = $1`, name).Scan(&n); err != nil {
		return err
	} else if n != 0 {
		return nil
	}

	buf, err := fs.ReadFile(migrationFS, name)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, string(buf)); err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `INSERT INTO migrations (name) VALUES ($1)`, name); err != nil {
		return err
	}

	p.logger.Info("applied migration", zap.String("name", name))
	return tx.Commit(ctx)
}

// selectList renders the column list; uuid and date columns come back as text.
func selectList(t table) string {
	cols := make([]string, len(t.columns))
	for i, c := range t.columns {
		if c.cast != "" {
			cols[i] = c.name + "::text"
		} else {
			cols[i] = c.name
		}
	}
	return strings.Join(cols, ", ")
}

func toRow(t table, values []any) Row {
	r := make(Row, len(t.columns))
	for i, c := range t.columns {
		if i < len(values) {
			r[c.name] = values[i]
		}
	}
	return r
}

func isUUID(v any) bool {
	s, ok := v.(string)
	if !ok {
		return false
	}
	_, err := uuid.Parse(s)
	return err == nil
}
