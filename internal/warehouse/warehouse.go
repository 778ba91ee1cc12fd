// Package warehouse defines the SQL execution interface the staged loader
// runs against.
//
// Backends:
//   - snowflake: database/sql over gosnowflake, one *sql.Conn per cursor
//   - memory:    in-process tables for tests and dry runs
package warehouse

import (
	"context"

	"github.com/subhajitsr/data-assignment-SPH/internal/etlerr"
	"github.com/subhajitsr/data-assignment-SPH/internal/sqlgen"
)

// Cursor is a short-lived handle on one warehouse session.
type Cursor interface {
	// Columns lists the column names of t from the catalog. A missing table
	// yields an empty list, not an error.
	Columns(ctx context.Context, t sqlgen.Table) ([]string, error)

	// Exec runs one statement.
	Exec(ctx context.Context, stmt sqlgen.Statement) error

	// Close releases the session.
	Close() error
}

// Warehouse hands out cursors. Implementations must be safe for concurrent use.
type Warehouse interface {
	Cursor(ctx context.Context) (Cursor, error)
	Ping(ctx context.Context) error
	Close() error
}

// WithCursor acquires a cursor, runs fn and releases the cursor on every exit
// path, including panics inside fn. subject names what the cursor is for in
// open and close errors.
func WithCursor(ctx context.Context, wh Warehouse, subject string, fn func(Cursor) error) (err error) {
	cur, err := wh.Cursor(ctx)
	if err != nil {
		return etlerr.Wrap(etlerr.ErrExecution, "open_cursor", subject, err)
	}
	defer func() {
		if cerr := cur.Close(); cerr != nil && err == nil {
			err = etlerr.Wrap(etlerr.ErrExecution, "close_cursor", subject, cerr)
		}
	}()
	return fn(cur)
}
