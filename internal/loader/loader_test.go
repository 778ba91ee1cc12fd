package loader

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/subhajitsr/data-assignment-SPH/internal/etlerr"
	"github.com/subhajitsr/data-assignment-SPH/internal/sqlgen"
	"github.com/subhajitsr/data-assignment-SPH/internal/warehouse"
	"github.com/subhajitsr/data-assignment-SPH/internal/warehouse/memory"
)

var (
	stagingTbl = sqlgen.NewTable("core", "tbl_stg_kv")
	coreTbl    = sqlgen.NewTable("core", "tbl_kv")
)

// stageRows serves the same file contents for every COPY.
func stageRows(rows ...map[string]any) memory.Option {
	return memory.WithStageReader(memory.StageReaderFunc(func(context.Context, sqlgen.Location) ([]map[string]any, error) {
		return rows, nil
	}))
}

func pair(d sqlgen.Discipline, keys ...string) TablePair {
	return TablePair{
		Schema:       "core",
		Stage:        "stg_kv",
		StagingTable: "tbl_stg_kv",
		CoreTable:    "tbl_kv",
		Fields: []sqlgen.FieldMapping{
			{Field: "k", Column: "k"},
			{Field: "v", Column: "v"},
		},
		Discipline: d,
		MergeKeys:  keys,
	}
}

func newKV(opts ...memory.Option) *memory.Warehouse {
	wh := memory.New(opts...)
	wh.CreateTable(stagingTbl, "k", "v")
	wh.CreateTable(coreTbl, "v", "k")
	return wh
}

func load(t *testing.T, l *Loader) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, l.Ingest(ctx, l.Location("kv_data_1.parquet")))
	require.NoError(t, l.Reconcile(ctx))
}

func TestNewUppercasesIdentifiers(t *testing.T) {
	wh := newKV()
	l, err := New(context.Background(), wh, pair(sqlgen.Merge, "k"), zerolog.Nop())
	require.NoError(t, err)

	require.Equal(t, sqlgen.Table{Schema: "CORE", Name: "TBL_STG_KV"}, l.StagingTable())
	require.Equal(t, sqlgen.Table{Schema: "CORE", Name: "TBL_KV"}, l.CoreTable())
	require.Equal(t, sqlgen.Location{Schema: "CORE", Stage: "STG_KV", Path: "f.parquet"}, l.Location("f.parquet"))
	require.Equal(t, []string{"V", "K"}, l.Columns())
	require.Equal(t, sqlgen.Merge, l.Discipline())
	require.Zero(t, wh.OpenCursors())
}

func TestNewDefaultsToFull(t *testing.T) {
	l, err := New(context.Background(), newKV(), pair(""), zerolog.Nop())
	require.NoError(t, err)
	require.Equal(t, sqlgen.Full, l.Discipline())
}

func TestNewFailsBeforeAnySideEffect(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*memory.Warehouse)
		pair  TablePair
	}{
		{
			name:  "column mismatch",
			setup: func(wh *memory.Warehouse) { wh.CreateTable(coreTbl, "k", "v", "extra") },
			pair:  pair(sqlgen.Full),
		},
		{
			name: "merge without keys",
			pair: pair(sqlgen.Merge),
		},
		{
			name:  "merge key absent from both tables",
			setup: func(*memory.Warehouse) {},
			pair:  pair(sqlgen.Merge, "id"),
		},
		{
			name: "merge key is not a column",
			setup: func(wh *memory.Warehouse) {
				wh.CreateTable(stagingTbl, "k", "x")
				wh.CreateTable(coreTbl, "k", "x")
			},
			pair: pair(sqlgen.Merge, "v"),
		},
		{
			name:  "core table missing",
			setup: func(wh *memory.Warehouse) { wh.CreateTable(coreTbl) },
			pair:  pair(sqlgen.Full),
		},
		{
			name: "unknown load type",
			pair: pair("UPSERT"),
		},
		{
			name: "empty field mapping",
			pair: TablePair{Schema: "core", Stage: "s", StagingTable: "tbl_stg_kv", CoreTable: "tbl_kv"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wh := newKV()
			if tt.setup != nil {
				tt.setup(wh)
			}
			_, err := New(context.Background(), wh, tt.pair, zerolog.Nop())
			require.ErrorIs(t, err, etlerr.ErrConfiguration)
			require.Empty(t, wh.Executed())
			require.Zero(t, wh.OpenCursors())
		})
	}
}

func TestNewMismatchNamesColumns(t *testing.T) {
	wh := newKV()
	wh.CreateTable(coreTbl, "k", "w")

	_, err := New(context.Background(), wh, pair(sqlgen.Full), zerolog.Nop())
	require.ErrorIs(t, err, etlerr.ErrConfiguration)
	require.ErrorContains(t, err, "only in CORE.TBL_STG_KV [V]")
	require.ErrorContains(t, err, "only in CORE.TBL_KV [W]")
}

type failingWarehouse struct{ warehouse.Warehouse }

func (failingWarehouse) Cursor(context.Context) (warehouse.Cursor, error) {
	return nil, errors.New("connection refused")
}

func TestNewFailsWithoutCursor(t *testing.T) {
	_, err := New(context.Background(), failingWarehouse{}, pair(sqlgen.Merge), zerolog.Nop())
	require.ErrorIs(t, err, etlerr.ErrExecution)
	require.ErrorContains(t, err, "open_cursor "+coreTbl.String())
}

func TestIngestRejectsUnmappedColumn(t *testing.T) {
	wh := newKV(stageRows(map[string]any{"k": 1, "v": 1}))
	require.NoError(t, wh.Insert(stagingTbl, memory.Row{"k": "prior", "v": 0}))

	l, err := New(context.Background(), wh, pair(sqlgen.Full), zerolog.Nop())
	require.NoError(t, err)
	l.fields = append(l.fields, sqlgen.FieldMapping{Field: "w", Column: "W"})

	err = l.Ingest(context.Background(), l.Location(""))
	require.ErrorIs(t, err, etlerr.ErrConfiguration)
	require.ErrorContains(t, err, "column W not present")
	require.Empty(t, wh.Executed())
	require.Equal(t, []memory.Row{{"K": "prior", "V": 0}}, wh.Rows(stagingTbl))
}

func TestIngestReplacesStagingOnly(t *testing.T) {
	wh := newKV(stageRows(map[string]any{"k": 1, "v": 2}))
	require.NoError(t, wh.Insert(stagingTbl, memory.Row{"k": 9, "v": 9}))
	require.NoError(t, wh.Insert(coreTbl, memory.Row{"k": 5, "v": 5}))

	l, err := New(context.Background(), wh, pair(sqlgen.Full), zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, l.Ingest(context.Background(), l.Location("kv_data_1.parquet")))

	require.Equal(t, []memory.Row{{"K": 1, "V": 2}}, wh.Rows(stagingTbl))
	require.Equal(t, []memory.Row{{"K": 5, "V": 5}}, wh.Rows(coreTbl))

	executed := wh.Executed()
	require.Len(t, executed, 2)
	require.Equal(t, sqlgen.KindDelete, executed[0].Kind)
	require.Equal(t, sqlgen.KindCopy, executed[1].Kind)
	require.Equal(t, "kv_data_1.parquet", executed[1].From.Path)
}

func TestIngestRejectsBadPath(t *testing.T) {
	wh := newKV()
	l, err := New(context.Background(), wh, pair(sqlgen.Full), zerolog.Nop())
	require.NoError(t, err)

	err = l.Ingest(context.Background(), l.Location("../escape.parquet"))
	require.ErrorIs(t, err, etlerr.ErrConfiguration)
	require.Empty(t, wh.Executed())
}

func TestMergeCorrectness(t *testing.T) {
	wh := newKV(stageRows(
		map[string]any{"k": 1, "v": 99},
		map[string]any{"k": 2, "v": 5},
	))
	require.NoError(t, wh.Insert(coreTbl, memory.Row{"k": 1, "v": 10}))

	l, err := New(context.Background(), wh, pair(sqlgen.Merge, "k"), zerolog.Nop())
	require.NoError(t, err)
	load(t, l)

	require.ElementsMatch(t, []memory.Row{{"K": 1, "V": 99}, {"K": 2, "V": 5}}, wh.Rows(coreTbl))
}

func TestFullReplaceCorrectness(t *testing.T) {
	wh := newKV(stageRows(
		map[string]any{"k": "a"},
		map[string]any{"k": "b"},
	))
	require.NoError(t, wh.Insert(coreTbl, memory.Row{"k": "old", "v": 1}, memory.Row{"k": "a", "v": 2}))

	l, err := New(context.Background(), wh, pair(sqlgen.Full), zerolog.Nop())
	require.NoError(t, err)
	load(t, l)

	require.ElementsMatch(t, []memory.Row{{"K": "a", "V": nil}, {"K": "b", "V": nil}}, wh.Rows(coreTbl))
}

func TestLoadIsIdempotent(t *testing.T) {
	for _, d := range []sqlgen.Discipline{sqlgen.Full, sqlgen.Merge} {
		t.Run(string(d), func(t *testing.T) {
			wh := newKV(stageRows(
				map[string]any{"k": 1, "v": 99},
				map[string]any{"k": 2, "v": 5},
			))
			require.NoError(t, wh.Insert(coreTbl, memory.Row{"k": 1, "v": 10}, memory.Row{"k": 3, "v": 3}))

			l, err := New(context.Background(), wh, pair(d, "k"), zerolog.Nop())
			require.NoError(t, err)

			load(t, l)
			once := wh.Rows(coreTbl)
			load(t, l)

			require.ElementsMatch(t, once, wh.Rows(coreTbl))
		})
	}
}

func TestReconcileStopsAtFirstFailure(t *testing.T) {
	wh := newKV(stageRows(map[string]any{"k": 1, "v": 1}))
	require.NoError(t, wh.Insert(coreTbl, memory.Row{"k": 7, "v": 7}))

	l, err := New(context.Background(), wh, pair(sqlgen.Full), zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, l.Ingest(context.Background(), l.Location("")))

	wh.SetFault(func(s sqlgen.Statement) error {
		if s.Kind == sqlgen.KindInsert {
			return errors.New("warehouse suspended")
		}
		return nil
	})

	err = l.Reconcile(context.Background())
	require.ErrorIs(t, err, etlerr.ErrExecution)
	require.ErrorContains(t, err, "INSERT CORE.TBL_KV")

	// The DELETE already applied; the core table is left as it produced.
	require.Empty(t, wh.Rows(coreTbl))
	require.Zero(t, wh.OpenCursors())
}
