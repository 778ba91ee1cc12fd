package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/subhajitsr/data-assignment-SPH/internal/sqlgen"
)

var (
	core    = sqlgen.NewTable("core", "t")
	staging = sqlgen.NewTable("core", "stg_t")
)

func newKV(t *testing.T) *Warehouse {
	t.Helper()
	w := New()
	w.CreateTable(core, "k", "v")
	w.CreateTable(staging, "k", "v")
	return w
}

func exec(t *testing.T, w *Warehouse, stmts ...sqlgen.Statement) {
	t.Helper()
	cur, err := w.Cursor(context.Background())
	require.NoError(t, err)
	defer cur.Close()
	for _, s := range stmts {
		require.NoError(t, cur.Exec(context.Background(), s))
	}
}

func TestMergeUpdatesMatchedAndInsertsUnmatched(t *testing.T) {
	w := newKV(t)
	require.NoError(t, w.Insert(core, Row{"k": 1, "v": 10}))
	require.NoError(t, w.Insert(staging, Row{"k": 1, "v": 99}, Row{"k": 2, "v": 5}))

	exec(t, w, sqlgen.Reconcile(sqlgen.Merge, core, staging, []string{"K", "V"}, []string{"K"})...)

	require.ElementsMatch(t, []Row{{"K": 1, "V": 99}, {"K": 2, "V": 5}}, w.Rows(core))
}

func TestMergeNullKeyNeverMatches(t *testing.T) {
	w := newKV(t)
	require.NoError(t, w.Insert(core, Row{"k": nil, "v": 1}))
	require.NoError(t, w.Insert(staging, Row{"k": nil, "v": 2}))

	exec(t, w, sqlgen.MergeByKey(core, staging, []string{"K", "V"}, []string{"K"}))

	require.Len(t, w.Rows(core), 2)
}

func TestFullReplace(t *testing.T) {
	w := newKV(t)
	require.NoError(t, w.Insert(core, Row{"k": 7, "v": 7}, Row{"k": 8, "v": 8}))
	require.NoError(t, w.Insert(staging, Row{"k": "a"}, Row{"k": "b"}))

	exec(t, w, sqlgen.Reconcile(sqlgen.Full, core, staging, []string{"K", "V"}, nil)...)

	require.ElementsMatch(t, []Row{{"K": "a", "V": nil}, {"K": "b", "V": nil}}, w.Rows(core))
}

func TestCopyMapsFields(t *testing.T) {
	var gotLoc sqlgen.Location
	w := New(WithStageReader(StageReaderFunc(func(_ context.Context, loc sqlgen.Location) ([]map[string]any, error) {
		gotLoc = loc
		return []map[string]any{{"key": 1, "value": 2, "ignored": 3}}, nil
	})))
	w.CreateTable(staging, "k", "v")

	loc := sqlgen.Location{Schema: "CORE", Stage: "S", Path: "f.parquet"}
	exec(t, w, sqlgen.Copy(staging, loc, []sqlgen.FieldMapping{{Field: "key", Column: "K"}, {Field: "value", Column: "V"}}))

	require.Equal(t, loc, gotLoc)
	require.Equal(t, []Row{{"K": 1, "V": 2}}, w.Rows(staging))
}

func TestExecRejectsUnknownColumn(t *testing.T) {
	w := newKV(t)
	cur, err := w.Cursor(context.Background())
	require.NoError(t, err)
	defer cur.Close()

	err = cur.Exec(context.Background(), sqlgen.InsertSelect(core, staging, []string{"K", "MISSING"}))
	require.Error(t, err)
	require.Empty(t, w.Executed())
}

func TestFaultSkipsStatement(t *testing.T) {
	w := newKV(t)
	require.NoError(t, w.Insert(core, Row{"k": 1, "v": 1}))
	boom := errors.New("warehouse unavailable")
	w.SetFault(func(s sqlgen.Statement) error {
		if s.Kind == sqlgen.KindDelete {
			return boom
		}
		return nil
	})

	cur, err := w.Cursor(context.Background())
	require.NoError(t, err)
	require.ErrorIs(t, cur.Exec(context.Background(), sqlgen.Delete(core)), boom)
	require.NoError(t, cur.Close())

	require.Len(t, w.Rows(core), 1)
	require.Zero(t, w.OpenCursors())
}

func TestColumnsOfMissingTableIsEmpty(t *testing.T) {
	w := New()
	cur, err := w.Cursor(context.Background())
	require.NoError(t, err)
	defer cur.Close()

	cols, err := cur.Columns(context.Background(), core)
	require.NoError(t, err)
	require.Empty(t, cols)
}
