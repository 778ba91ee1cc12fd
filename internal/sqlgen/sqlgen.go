// Package sqlgen builds the DML issued by the staged loader. All identifiers
// pass through QuoteIdent so configured names cannot alter statement shape.
package sqlgen

import (
	"fmt"
	"slices"
	"strings"
)

// Discipline is the reconciliation strategy of a core table.
type Discipline string

const (
	Full  Discipline = "FULL"
	Merge Discipline = "MERGE"
)

// ParseDiscipline accepts FULL or MERGE in any case. Empty means FULL.
func ParseDiscipline(s string) (Discipline, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", string(Full):
		return Full, nil
	case string(Merge):
		return Merge, nil
	}
	return "", fmt.Errorf("unknown load type %q (want FULL or MERGE)", s)
}

// Kind is the statement type.
type Kind string

const (
	KindDelete Kind = "DELETE"
	KindInsert Kind = "INSERT"
	KindMerge  Kind = "MERGE"
	KindCopy   Kind = "COPY"
)

// Table is a schema-qualified table name, stored uppercased.
type Table struct {
	Schema string
	Name   string
}

// NewTable uppercases both parts.
func NewTable(schema, name string) Table {
	return Table{Schema: strings.ToUpper(schema), Name: strings.ToUpper(name)}
}

func (t Table) String() string {
	return t.Schema + "." + t.Name
}

func (t Table) quoted() string {
	return QuoteIdent(t.Schema) + "." + QuoteIdent(t.Name)
}

// Location is an external stage, optionally narrowed to one file below it.
type Location struct {
	Schema string
	Stage  string
	Path   string
}

func (l Location) String() string {
	s := "@" + l.Schema + "." + l.Stage
	if l.Path != "" {
		s += "/" + l.Path
	}
	return s
}

func (l Location) quoted() string {
	s := "@" + QuoteIdent(l.Schema) + "." + QuoteIdent(l.Stage)
	if l.Path != "" {
		s += "/" + l.Path
	}
	return s
}

// FieldMapping maps a field of the columnar source file to a staging column.
type FieldMapping struct {
	Field  string
	Column string
}

// Statement is one DML statement against the warehouse.
type Statement struct {
	Kind    Kind
	Target  Table
	Source  Table          // INSERT and MERGE
	Columns []string       // INSERT and MERGE: the full column list, core order
	Keys    []string       // MERGE
	From    Location       // COPY
	Fields  []FieldMapping // COPY
}

// Delete removes every row of t.
func Delete(t Table) Statement {
	return Statement{Kind: KindDelete, Target: t}
}

// InsertSelect copies every row of source into target column-for-column by name.
func InsertSelect(target, source Table, columns []string) Statement {
	return Statement{Kind: KindInsert, Target: target, Source: source, Columns: slices.Clone(columns)}
}

// MergeByKey upserts source into target: rows matching on keys get every
// non-key column updated, the rest are inserted.
func MergeByKey(target, source Table, columns, keys []string) Statement {
	return Statement{
		Kind:    KindMerge,
		Target:  target,
		Source:  source,
		Columns: slices.Clone(columns),
		Keys:    slices.Clone(keys),
	}
}

// Copy bulk-loads Parquet files from a stage into target, casting every
// mapped field to VARIANT.
func Copy(target Table, from Location, fields []FieldMapping) Statement {
	return Statement{Kind: KindCopy, Target: target, From: from, Fields: slices.Clone(fields)}
}

// Reconcile returns the statements that bring core in line with staging.
func Reconcile(d Discipline, core, staging Table, columns, keys []string) []Statement {
	if d == Merge {
		return []Statement{MergeByKey(core, staging, columns, keys)}
	}
	return []Statement{
		Delete(core),
		InsertSelect(core, staging, columns),
	}
}

// NonKeyColumns returns columns minus keys, preserving order.
func (s Statement) NonKeyColumns() []string {
	var out []string
	for _, c := range s.Columns {
		if !slices.Contains(s.Keys, c) {
			out = append(out, c)
		}
	}
	return out
}

// SQL renders the statement text.
func (s Statement) SQL() string {
	var b strings.Builder
	switch s.Kind {
	case KindDelete:
		fmt.Fprintf(&b, "DELETE FROM %s", s.Target.quoted())

	case KindInsert:
		cols := quoteList(s.Columns, "")
		fmt.Fprintf(&b, "INSERT INTO %s (%s) SELECT %s FROM %s",
			s.Target.quoted(), cols, cols, s.Source.quoted())

	case KindMerge:
		fmt.Fprintf(&b, "MERGE INTO %s AS t USING %s AS d ON ", s.Target.quoted(), s.Source.quoted())
		for i, k := range s.Keys {
			if i > 0 {
				b.WriteString(" AND ")
			}
			q := QuoteIdent(k)
			fmt.Fprintf(&b, "d.%s = t.%s", q, q)
		}
		if nonKey := s.NonKeyColumns(); len(nonKey) > 0 {
			b.WriteString(" WHEN MATCHED THEN UPDATE SET ")
			for i, c := range nonKey {
				if i > 0 {
					b.WriteString(", ")
				}
				q := QuoteIdent(c)
				fmt.Fprintf(&b, "t.%s = d.%s", q, q)
			}
		}
		fmt.Fprintf(&b, " WHEN NOT MATCHED THEN INSERT (%s) VALUES (%s)",
			quoteList(s.Columns, ""), quoteList(s.Columns, "d."))

	case KindCopy:
		cols := make([]string, len(s.Fields))
		sel := make([]string, len(s.Fields))
		for i, f := range s.Fields {
			q := QuoteIdent(f.Column)
			cols[i] = q
			sel[i] = fmt.Sprintf(`$1:"%s"::VARIANT AS %s`, f.Field, q)
		}
		fmt.Fprintf(&b, "COPY INTO %s (%s) FROM (SELECT %s FROM %s) FILE_FORMAT = (TYPE = 'PARQUET')",
			s.Target.quoted(), strings.Join(cols, ", "), strings.Join(sel, ", "), s.From.quoted())
		if s.From.Path != "" {
			// Named files reload even when already in the load history.
			b.WriteString(" FORCE = TRUE")
		}
	}
	return b.String()
}

func quoteList(names []string, prefix string) string {
	q := make([]string, len(names))
	for i, n := range names {
		q[i] = prefix + QuoteIdent(n)
	}
	return strings.Join(q, ", ")
}

// ColumnsQuery returns the catalog query listing the columns of t together
// with its bind arguments.
func ColumnsQuery(t Table) (string, []any) {
	return `SELECT COLUMN_NAME FROM INFORMATION_SCHEMA.COLUMNS WHERE TABLE_SCHEMA = ? AND TABLE_NAME = ? ORDER BY ORDINAL_POSITION`,
		[]any{t.Schema, t.Name}
}
