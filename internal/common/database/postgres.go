// internal/common/database/postgres.go
package database

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"deal-analyzer/internal/common/config"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"
)

const (
	connMaxLifetime = 5 * time.Minute
	connMaxIdleTime = 5 * time.Minute
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PostgresClient holds the pool backing the criteria store.
type PostgresClient struct {
	DB  *sql.DB
	url string
}

func NewPostgres(cfg config.PostgresConfig) (*PostgresClient, error) {
	db, err := sql.Open("postgres", cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxIdle)
	db.SetConnMaxLifetime(connMaxLifetime)
	db.SetConnMaxIdleTime(connMaxIdleTime)

	return &PostgresClient{DB: db, url: cfg.GetURL()}, nil
}

// NewPostgresFromDB wraps an already opened handle, e.g. a sqlmock.
func NewPostgresFromDB(db *sql.DB) *PostgresClient {
	return &PostgresClient{DB: db}
}

func (c *PostgresClient) Ping(ctx context.Context) error {
	return c.DB.PingContext(ctx)
}

func (c *PostgresClient) Close() error {
	if c.DB == nil {
		return nil
	}
	return c.DB.Close()
}

// ErrNoMigrationURL is returned by Migrate on a client built from a bare handle.
var ErrNoMigrationURL = errors.New("MIGRATION_URL_MISSING")

// Migrate applies the embedded schema migrations over a separate connection.
func (c *PostgresClient) Migrate(ctx context.Context) error {
	if c.url == "" {
		return ErrNoMigrationURL
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("migration source: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, c.url)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	defer func() { _, _ = m.Close() }()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration failed: %w", err)
	}
	return nil
}

const (
	deactivateCriteriaSQL = `UPDATE investment_criteria SET active = false WHERE profile = $1 AND active = true`
	insertCriteriaSQL     = `INSERT INTO investment_criteria (profile, name, criteria, active, updated_at) VALUES ($1, $2, $3, true, NOW())`
)

// SaveCriteria stores a new active criteria document for profile. Earlier
// versions stay in the table, inactive.
func (c *PostgresClient) SaveCriteria(ctx context.Context, profile, name string, document []byte) error {
	tx, err := c.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, deactivateCriteriaSQL, profile); err != nil {
		return fmt.Errorf("deactivate criteria %q: %w", profile, err)
	}
	if _, err := tx.ExecContext(ctx, insertCriteriaSQL, profile, name, string(document)); err != nil {
		return fmt.Errorf("insert criteria %q: %w", profile, err)
	}
	return tx.Commit()
}

func (c *PostgresClient) QueryRow(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return c.DB.QueryRowContext(ctx, query, args...)
}

func (c *PostgresClient) Exec(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return c.DB.ExecContext(ctx, query, args...)
}
