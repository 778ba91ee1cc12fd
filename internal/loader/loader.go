// Package loader reconciles a staging table into its core table.
//
// A Loader owns one (staging, core) pair. Construction checks the pair
// against warehouse metadata before any data moves; Ingest replaces the
// staging contents from an external stage; Reconcile applies the pair's
// discipline (FULL or MERGE) to the core table.
package loader

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/rs/zerolog"

	"github.com/subhajitsr/data-assignment-SPH/internal/etlerr"
	"github.com/subhajitsr/data-assignment-SPH/internal/metrics"
	"github.com/subhajitsr/data-assignment-SPH/internal/sqlgen"
	"github.com/subhajitsr/data-assignment-SPH/internal/warehouse"
)

// TablePair is the configuration of one staged load.
type TablePair struct {
	Schema       string
	Stage        string
	StagingTable string
	CoreTable    string
	Fields       []sqlgen.FieldMapping // source field -> staging column, in COPY order
	Discipline   sqlgen.Discipline
	MergeKeys    []string
}

// Loader owns one table pair. Every operation acquires and releases its own
// cursor.
type Loader struct {
	wh         warehouse.Warehouse
	log        zerolog.Logger
	schema     string
	stage      string
	staging    sqlgen.Table
	core       sqlgen.Table
	discipline sqlgen.Discipline
	keys       []string
	fields     []sqlgen.FieldMapping
	stagingCol []string
	coreCol    []string
}

// New validates the pair against the warehouse and returns a ready Loader.
// Nothing is written on failure.
func New(ctx context.Context, wh warehouse.Warehouse, pair TablePair, log zerolog.Logger) (*Loader, error) {
	core := sqlgen.NewTable(pair.Schema, pair.CoreTable)
	subject := core.String()

	if err := validateNames(pair); err != nil {
		return nil, etlerr.Wrap(etlerr.ErrConfiguration, "new_loader", subject, err)
	}

	discipline := pair.Discipline
	if discipline == "" {
		discipline = sqlgen.Full
	}
	if discipline != sqlgen.Full && discipline != sqlgen.Merge {
		return nil, etlerr.New(etlerr.ErrConfiguration, "new_loader", subject, "unknown load type %q", discipline)
	}

	l := &Loader{
		wh:         wh,
		schema:     strings.ToUpper(pair.Schema),
		stage:      strings.ToUpper(pair.Stage),
		staging:    sqlgen.NewTable(pair.Schema, pair.StagingTable),
		core:       core,
		discipline: discipline,
		keys:       sqlgen.Upper(pair.MergeKeys),
		fields:     make([]sqlgen.FieldMapping, len(pair.Fields)),
	}
	for i, f := range pair.Fields {
		l.fields[i] = sqlgen.FieldMapping{Field: f.Field, Column: strings.ToUpper(f.Column)}
	}
	l.log = log.With().
		Str("staging_table", l.staging.String()).
		Str("core_table", l.core.String()).
		Str("load_type", string(discipline)).
		Logger()

	err := warehouse.WithCursor(ctx, wh, subject, func(cur warehouse.Cursor) error {
		if discipline == sqlgen.Merge && len(l.keys) == 0 {
			return etlerr.New(etlerr.ErrConfiguration, "new_loader", subject, "merge keys are mandatory for load type %s", sqlgen.Merge)
		}

		var err error
		if l.stagingCol, err = cur.Columns(ctx, l.staging); err != nil {
			return etlerr.Wrap(etlerr.ErrExecution, "list_columns", l.staging.String(), err)
		}
		if l.coreCol, err = cur.Columns(ctx, l.core); err != nil {
			return etlerr.Wrap(etlerr.ErrExecution, "list_columns", l.core.String(), err)
		}
		return l.checkColumns()
	})
	if err != nil {
		return nil, err
	}
	return l, nil
}

func validateNames(pair TablePair) error {
	checks := []struct{ kind, name string }{
		{"schema", pair.Schema},
		{"stage", pair.Stage},
		{"staging table", pair.StagingTable},
		{"core table", pair.CoreTable},
	}
	for _, c := range checks {
		if err := sqlgen.ValidateIdent(c.kind, c.name); err != nil {
			return err
		}
	}
	if len(pair.Fields) == 0 {
		return fmt.Errorf("field mapping is empty")
	}
	for _, f := range pair.Fields {
		if err := sqlgen.ValidateField(f.Field); err != nil {
			return err
		}
		if err := sqlgen.ValidateIdent("column", f.Column); err != nil {
			return err
		}
	}
	for _, k := range pair.MergeKeys {
		if err := sqlgen.ValidateIdent("merge key", k); err != nil {
			return err
		}
	}
	return nil
}

// checkColumns enforces set equality of the staging and core columns and the
// presence of every merge key in both.
func (l *Loader) checkColumns() error {
	subject := l.core.String()
	if len(l.stagingCol) == 0 {
		return etlerr.New(etlerr.ErrConfiguration, "new_loader", subject, "table %s not found or has no columns", l.staging)
	}
	if len(l.coreCol) == 0 {
		return etlerr.New(etlerr.ErrConfiguration, "new_loader", subject, "table %s not found or has no columns", l.core)
	}

	onlyStaging := difference(l.stagingCol, l.coreCol)
	onlyCore := difference(l.coreCol, l.stagingCol)
	if len(onlyStaging) > 0 || len(onlyCore) > 0 {
		return etlerr.New(etlerr.ErrConfiguration, "new_loader", subject,
			"stage and core table column mismatch: only in %s %v, only in %s %v",
			l.staging, onlyStaging, l.core, onlyCore)
	}

	if l.discipline == sqlgen.Merge {
		var missing []string
		for _, k := range l.keys {
			if !slices.Contains(l.coreCol, k) || !slices.Contains(l.stagingCol, k) {
				missing = append(missing, k)
			}
		}
		if len(missing) > 0 {
			return etlerr.New(etlerr.ErrConfiguration, "new_loader", subject,
				"merge keys %v must be present in both stage and core table", missing)
		}
	}
	return nil
}

// difference returns the members of a missing from b, in a's order.
func difference(a, b []string) []string {
	var out []string
	for _, x := range a {
		if !slices.Contains(b, x) && !slices.Contains(out, x) {
			out = append(out, x)
		}
	}
	return out
}

// Discipline reports the pair's reconciliation strategy.
func (l *Loader) Discipline() sqlgen.Discipline { return l.discipline }

// StagingTable returns the uppercased staging table.
func (l *Loader) StagingTable() sqlgen.Table { return l.staging }

// CoreTable returns the uppercased core table.
func (l *Loader) CoreTable() sqlgen.Table { return l.core }

// Columns returns the core table columns in catalog order.
func (l *Loader) Columns() []string { return slices.Clone(l.coreCol) }

// Location returns the stage of this pair narrowed to path (empty = whole stage).
func (l *Loader) Location(path string) sqlgen.Location {
	return sqlgen.Location{Schema: l.schema, Stage: l.stage, Path: path}
}

// Ingest replaces the staging table contents with the file(s) at loc.
func (l *Loader) Ingest(ctx context.Context, loc sqlgen.Location) error {
	subject := l.staging.String()
	for _, f := range l.fields {
		if !slices.Contains(l.stagingCol, f.Column) {
			return etlerr.New(etlerr.ErrConfiguration, "ingest", subject,
				"column %s not present in the table %s", f.Column, l.staging)
		}
	}
	if err := sqlgen.ValidateStagePath(loc.Path); err != nil {
		return etlerr.Wrap(etlerr.ErrConfiguration, "ingest", subject, err)
	}

	return l.run(ctx, "ingest",
		sqlgen.Delete(l.staging),
		sqlgen.Copy(l.staging, loc, l.fields),
	)
}

// Reconcile applies the staging snapshot to the core table.
func (l *Loader) Reconcile(ctx context.Context) error {
	return l.run(ctx, "reconcile", sqlgen.Reconcile(l.discipline, l.core, l.staging, l.coreCol, l.keys)...)
}

// run executes stmts in order on one cursor, logging each before it runs.
// The first failure stops the sequence.
func (l *Loader) run(ctx context.Context, op string, stmts ...sqlgen.Statement) error {
	return warehouse.WithCursor(ctx, l.wh, l.core.String(), func(cur warehouse.Cursor) error {
		for _, stmt := range stmts {
			l.log.Info().Str("op", op).Str("kind", string(stmt.Kind)).Str("sql", stmt.SQL()).Msg("executing statement")
			if err := cur.Exec(ctx, stmt); err != nil {
				metrics.Statements.WithLabelValues(string(stmt.Kind), "error").Inc()
				return etlerr.Wrap(etlerr.ErrExecution, op, fmt.Sprintf("%s %s", stmt.Kind, stmt.Target), err)
			}
			metrics.Statements.WithLabelValues(string(stmt.Kind), "ok").Inc()
		}
		return nil
	})
}
