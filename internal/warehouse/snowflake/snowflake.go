// Package snowflake implements warehouse.Warehouse on database/sql with the
// gosnowflake driver.
package snowflake

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	sf "github.com/snowflakedb/gosnowflake"

	"github.com/subhajitsr/data-assignment-SPH/internal/sqlgen"
	"github.com/subhajitsr/data-assignment-SPH/internal/warehouse"
)

const (
	maxRetries    = 5
	retryInterval = 2 * time.Second
)

// Config holds the connection settings.
type Config struct {
	Account   string
	User      string
	Password  string
	Warehouse string
	Database  string
	Schema    string
	Role      string
}

// DSN renders the driver connection string.
func (c Config) DSN() (string, error) {
	return sf.DSN(&sf.Config{
		Account:   c.Account,
		User:      c.User,
		Password:  c.Password,
		Warehouse: c.Warehouse,
		Database:  c.Database,
		Schema:    c.Schema,
		Role:      c.Role,
	})
}

// Warehouse owns the connection pool. *sql.DB is safe for concurrent use;
// every cursor pins its own *sql.Conn.
type Warehouse struct {
	db *sql.DB
}

var _ warehouse.Warehouse = (*Warehouse)(nil)

// Open connects and pings, retrying a few times before giving up.
func Open(ctx context.Context, cfg Config, log zerolog.Logger) (*Warehouse, error) {
	dsn, err := cfg.DSN()
	if err != nil {
		return nil, fmt.Errorf("build snowflake dsn: %w", err)
	}

	db, err := sql.Open("snowflake", dsn)
	if err != nil {
		return nil, fmt.Errorf("open snowflake: %w", err)
	}
	db.SetMaxOpenConns(8)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(time.Hour)
	db.SetConnMaxIdleTime(30 * time.Minute)

	for attempt := 1; attempt <= maxRetries; attempt++ {
		if err = db.PingContext(ctx); err == nil {
			log.Info().Str("account", cfg.Account).Str("database", cfg.Database).Msg("snowflake connected")
			return &Warehouse{db: db}, nil
		}

		log.Warn().Err(err).Int("attempt", attempt).Int("max", maxRetries).Msg("snowflake connection attempt failed")
		if attempt < maxRetries {
			select {
			case <-time.After(retryInterval):
			case <-ctx.Done():
				db.Close()
				return nil, ctx.Err()
			}
		}
	}

	db.Close()
	return nil, fmt.Errorf("snowflake connection failed after %d attempts: %w", maxRetries, err)
}

// Stats exposes pool statistics for metrics.
func (w *Warehouse) Stats() sql.DBStats {
	return w.db.Stats()
}

func (w *Warehouse) Cursor(ctx context.Context) (warehouse.Cursor, error) {
	conn, err := w.db.Conn(ctx)
	if err != nil {
		return nil, err
	}
	return &cursor{conn: conn}, nil
}

func (w *Warehouse) Ping(ctx context.Context) error {
	return w.db.PingContext(ctx)
}

func (w *Warehouse) Close() error {
	return w.db.Close()
}

type cursor struct {
	conn *sql.Conn
}

func (c *cursor) Columns(ctx context.Context, t sqlgen.Table) ([]string, error) {
	query, args := sqlgen.ColumnsQuery(t)
	rows, err := c.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		cols = append(cols, name)
	}
	return cols, rows.Err()
}

func (c *cursor) Exec(ctx context.Context, stmt sqlgen.Statement) error {
	_, err := c.conn.ExecContext(ctx, stmt.SQL())
	return err
}

func (c *cursor) Close() error {
	return c.conn.Close()
}
