package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"csv-share-access/internal/config"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

// SQLProvider implements Provider on top of sqlx. Queries are written with
// '?' placeholders and rebound for the driver.
type SQLProvider struct {
	db *sqlx.DB

	driver string
	config *config.Storage

	logger *slog.Logger
}

func NewSQLProvider(config *config.Storage, driverName string, dataSource string) (*SQLProvider, error) {
	db, err := sqlx.Open(driverName, dataSource)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", driverName, err)
	}

	logger := slog.With("component", "storage", "driver", driverName)

	return &SQLProvider{
		db:     db,
		driver: driverName,
		config: config,
		logger: logger,
	}, nil
}

func (p *SQLProvider) Close() error {
	if p.db != nil {
		return p.db.Close()
	}
	return nil
}

func (p *SQLProvider) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

func (p *SQLProvider) q(query string) string {
	return p.db.Rebind(query)
}

// translate maps driver errors onto the package sentinels.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	}
	if isForeignKeyViolation(err) {
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return err
}

// isForeignKeyViolation reports a write referencing a row that does not exist.
func isForeignKeyViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintForeignKey
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23503"
	}
	return false
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}

// conditional runs an UPDATE ... RETURNING id and reports whether a row matched.
func (p *SQLProvider) conditional(ctx context.Context, query string, args ...any) (bool, error) {
	var id string
	err := p.db.QueryRowxContext(ctx, p.q(query), args...).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// exec runs a statement that must touch at least one row.
func (p *SQLProvider) exec(ctx context.Context, query string, args ...any) error {
	res, err := p.db.ExecContext(ctx, p.q(query), args...)
	if err != nil {
		return translate(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *SQLProvider) prune(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := p.db.ExecContext(ctx, p.q(query), args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func utc(t time.Time) time.Time {
	return t.UTC()
}
