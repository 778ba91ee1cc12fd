// Package memory is an in-process warehouse that applies the staged
// loader's statements to plain Go tables.
package memory

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/subhajitsr/data-assignment-SPH/internal/sqlgen"
	"github.com/subhajitsr/data-assignment-SPH/internal/warehouse"
)

// Row maps column name to value.
type Row map[string]any

// StageReader supplies the rows a COPY reads from an external stage. Each
// record maps source field name to value.
type StageReader interface {
	ReadStage(ctx context.Context, loc sqlgen.Location) ([]map[string]any, error)
}

// StageReaderFunc adapts a function to StageReader.
type StageReaderFunc func(ctx context.Context, loc sqlgen.Location) ([]map[string]any, error)

func (f StageReaderFunc) ReadStage(ctx context.Context, loc sqlgen.Location) ([]map[string]any, error) {
	return f(ctx, loc)
}

type table struct {
	columns []string
	rows    []Row
}

// Warehouse holds tables in memory. Safe for concurrent use; every statement
// is applied atomically.
type Warehouse struct {
	mu       sync.Mutex
	tables   map[sqlgen.Table]*table
	stages   StageReader
	executed []sqlgen.Statement
	fault    func(sqlgen.Statement) error
	open     int
}

// Option configures the Warehouse.
type Option func(*Warehouse)

// WithStageReader sets the source of COPY rows.
func WithStageReader(r StageReader) Option {
	return func(w *Warehouse) { w.stages = r }
}

// New creates an empty warehouse.
func New(opts ...Option) *Warehouse {
	w := &Warehouse{tables: make(map[sqlgen.Table]*table)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

var _ warehouse.Warehouse = (*Warehouse)(nil)

// CreateTable creates (or resets) t with the given columns, uppercased.
func (w *Warehouse) CreateTable(t sqlgen.Table, columns ...string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.tables[t] = &table{columns: sqlgen.Upper(columns)}
}

// Insert appends rows to t. Row keys are uppercased.
func (w *Warehouse) Insert(t sqlgen.Table, rows ...Row) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	tbl, ok := w.tables[t]
	if !ok {
		return fmt.Errorf("table %s does not exist", t)
	}
	for _, r := range rows {
		up := make(Row, len(r))
		for k, v := range r {
			up[strings.ToUpper(k)] = v
		}
		tbl.rows = append(tbl.rows, tbl.project(up))
	}
	return nil
}

// Rows returns a copy of the rows of t.
func (w *Warehouse) Rows(t sqlgen.Table) []Row {
	w.mu.Lock()
	defer w.mu.Unlock()
	tbl, ok := w.tables[t]
	if !ok {
		return nil
	}
	out := make([]Row, len(tbl.rows))
	for i, r := range tbl.rows {
		out[i] = maps.Clone(r)
	}
	return out
}

// Executed returns every statement applied so far, in order.
func (w *Warehouse) Executed() []sqlgen.Statement {
	w.mu.Lock()
	defer w.mu.Unlock()
	return slices.Clone(w.executed)
}

// SetFault makes Exec fail whenever fn returns a non-nil error. The failing
// statement is not applied.
func (w *Warehouse) SetFault(fn func(sqlgen.Statement) error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.fault = fn
}

// OpenCursors reports cursors acquired and not yet closed.
func (w *Warehouse) OpenCursors() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.open
}

// Cursor hands out a session on the shared tables.
func (w *Warehouse) Cursor(ctx context.Context) (warehouse.Cursor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	w.mu.Lock()
	w.open++
	w.mu.Unlock()
	return &cursor{w: w}, nil
}

// Ping always succeeds.
func (w *Warehouse) Ping(context.Context) error { return nil }

// Close is a no-op.
func (w *Warehouse) Close() error { return nil }

type cursor struct {
	w      *Warehouse
	closed bool
}

func (c *cursor) Columns(ctx context.Context, t sqlgen.Table) ([]string, error) {
	if c.closed {
		return nil, errors.New("cursor is closed")
	}
	c.w.mu.Lock()
	defer c.w.mu.Unlock()
	tbl, ok := c.w.tables[t]
	if !ok {
		return nil, nil
	}
	return slices.Clone(tbl.columns), nil
}

func (c *cursor) Exec(ctx context.Context, stmt sqlgen.Statement) error {
	if c.closed {
		return errors.New("cursor is closed")
	}

	// Stage reads happen outside the lock; they may do I/O.
	var staged []map[string]any
	if stmt.Kind == sqlgen.KindCopy {
		if c.w.stages == nil {
			return fmt.Errorf("stage %s: no stage reader configured", stmt.From)
		}
		var err error
		staged, err = c.w.stages.ReadStage(ctx, stmt.From)
		if err != nil {
			return fmt.Errorf("read stage %s: %w", stmt.From, err)
		}
	}

	c.w.mu.Lock()
	defer c.w.mu.Unlock()

	if c.w.fault != nil {
		if err := c.w.fault(stmt); err != nil {
			return err
		}
	}
	if err := c.w.apply(stmt, staged); err != nil {
		return err
	}
	c.w.executed = append(c.w.executed, stmt)
	return nil
}

func (c *cursor) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	c.w.mu.Lock()
	c.w.open--
	c.w.mu.Unlock()
	return nil
}

func (w *Warehouse) table(t sqlgen.Table) (*table, error) {
	tbl, ok := w.tables[t]
	if !ok {
		return nil, fmt.Errorf("table %s does not exist", t)
	}
	return tbl, nil
}

// apply runs stmt against the tables. Caller holds w.mu.
func (w *Warehouse) apply(stmt sqlgen.Statement, staged []map[string]any) error {
	target, err := w.table(stmt.Target)
	if err != nil {
		return err
	}

	switch stmt.Kind {
	case sqlgen.KindDelete:
		target.rows = nil
		return nil

	case sqlgen.KindInsert:
		source, err := w.table(stmt.Source)
		if err != nil {
			return err
		}
		if err := requireColumns(target, stmt.Columns); err != nil {
			return err
		}
		if err := requireColumns(source, stmt.Columns); err != nil {
			return err
		}
		for _, r := range source.rows {
			target.rows = append(target.rows, target.project(pick(r, stmt.Columns)))
		}
		return nil

	case sqlgen.KindMerge:
		source, err := w.table(stmt.Source)
		if err != nil {
			return err
		}
		if err := requireColumns(target, stmt.Columns); err != nil {
			return err
		}
		if err := requireColumns(source, stmt.Columns); err != nil {
			return err
		}
		return merge(target, source, stmt)

	case sqlgen.KindCopy:
		cols := make([]string, len(stmt.Fields))
		for i, f := range stmt.Fields {
			cols[i] = f.Column
		}
		if err := requireColumns(target, cols); err != nil {
			return err
		}
		for _, rec := range staged {
			r := make(Row, len(stmt.Fields))
			for _, f := range stmt.Fields {
				r[f.Column] = rec[f.Field]
			}
			target.rows = append(target.rows, target.project(r))
		}
		return nil
	}
	return fmt.Errorf("unsupported statement kind %q", stmt.Kind)
}

// merge matches every source row against the target as it was before the
// statement; rows inserted by this merge never match later source rows.
func merge(target, source *table, stmt sqlgen.Statement) error {
	index := make(map[string][]int, len(target.rows))
	for i, r := range target.rows {
		if k, ok := keyOf(r, stmt.Keys); ok {
			index[k] = append(index[k], i)
		}
	}

	nonKey := stmt.NonKeyColumns()
	var inserts []Row
	for _, s := range source.rows {
		k, ok := keyOf(s, stmt.Keys)
		matches := index[k]
		if !ok || len(matches) == 0 {
			inserts = append(inserts, target.project(pick(s, stmt.Columns)))
			continue
		}
		for _, i := range matches {
			for _, c := range nonKey {
				target.rows[i][c] = s[c]
			}
		}
	}
	target.rows = append(target.rows, inserts...)
	return nil
}

// keyOf renders the key columns of r. A NULL key never matches.
func keyOf(r Row, keys []string) (string, bool) {
	var b strings.Builder
	for _, k := range keys {
		v, ok := r[k]
		if !ok || v == nil {
			return "", false
		}
		fmt.Fprintf(&b, "%T:%v\x00", v, v)
	}
	return b.String(), true
}

func pick(r Row, columns []string) Row {
	out := make(Row, len(columns))
	for _, c := range columns {
		out[c] = r[c]
	}
	return out
}

// project returns r restricted to the table's columns, absent ones NULL.
func (t *table) project(r Row) Row {
	out := make(Row, len(t.columns))
	for _, c := range t.columns {
		out[c] = r[c]
	}
	return out
}

func requireColumns(t *table, columns []string) error {
	for _, c := range columns {
		if !slices.Contains(t.columns, c) {
			return fmt.Errorf("invalid identifier %q", c)
		}
	}
	return nil
}
