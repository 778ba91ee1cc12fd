package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/subhajitsr/data-assignment-SPH/internal/columnar"
	"github.com/subhajitsr/data-assignment-SPH/internal/config"
	"github.com/subhajitsr/data-assignment-SPH/internal/etlerr"
	"github.com/subhajitsr/data-assignment-SPH/internal/loader"
	"github.com/subhajitsr/data-assignment-SPH/internal/model"
	"github.com/subhajitsr/data-assignment-SPH/internal/objstore"
	"github.com/subhajitsr/data-assignment-SPH/internal/sqlgen"
	"github.com/subhajitsr/data-assignment-SPH/internal/warehouse/memory"
)

type ledgerEntry struct {
	rs     model.RecordSet
	status model.RunStatus
}

type fakeLedger struct {
	mu      sync.Mutex
	entries []ledgerEntry
}

func (l *fakeLedger) Start(_ context.Context, _ string, rs model.RecordSet, _ string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, ledgerEntry{rs, model.RunExecuting})
	return nil
}

func (l *fakeLedger) SetStatus(_ context.Context, _ string, rs model.RecordSet, status model.RunStatus, _ string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, ledgerEntry{rs, status})
	return nil
}

func (l *fakeLedger) statuses(rs model.RecordSet) []model.RunStatus {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []model.RunStatus
	for _, e := range l.entries {
		if e.rs == rs {
			out = append(out, e.status)
		}
	}
	return out
}

type harness struct {
	pipeline *Pipeline
	wh       *memory.Warehouse
	store    *objstore.Memory
	ledger   *fakeLedger
	pairs    map[model.RecordSet]loader.TablePair
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	api := newFakeAPI()
	api.addChannel("straitstimesonline", model.Channel{ID: "UC1", Title: "The Straits Times", ViewCount: 100})
	api.addChannel("zaobaodotsg", model.Channel{ID: "UC2", Title: "zaobao"})
	api.pages["UC1"] = [][]string{{"v1", "v2"}, {"v3"}}
	api.pages["UC2"] = [][]string{{"v4"}}
	for i, id := range []string{"v1", "v2", "v3", "v4"} {
		api.addVideo(id, int64(10*(i+1)))
	}

	p, err := config.LoadPipeline("", "CORE")
	require.NoError(t, err)
	pairs := p.Pairs()

	store := objstore.NewMemory()
	export := NewExportService(store, "", zerolog.Nop())
	ledger := &fakeLedger{}

	h := &harness{store: store, ledger: ledger, pairs: pairs}
	channels := []model.ChannelRef{{Name: "straitstimesonline"}, {Name: "zaobaodotsg"}}
	h.pipeline = NewPipeline(newTestExtractor(api), export, nil, channels, pairs, ledger, zerolog.Nop())

	h.wh = memory.New(memory.WithStageReader(columnar.StageReader{Store: store, Prefixes: h.pipeline.StagePrefixes()}))
	h.pipeline.wh = h.wh
	for _, pair := range pairs {
		var cols []string
		for _, f := range pair.Fields {
			cols = append(cols, f.Column)
		}
		h.wh.CreateTable(sqlgen.NewTable(pair.Schema, pair.StagingTable), cols...)
		h.wh.CreateTable(sqlgen.NewTable(pair.Schema, pair.CoreTable), cols...)
	}
	return h
}

func (h *harness) core(rs model.RecordSet) []memory.Row {
	pair := h.pairs[rs]
	return h.wh.Rows(sqlgen.NewTable(pair.Schema, pair.CoreTable))
}

func TestPipelineRunLoadsEveryRecordSet(t *testing.T) {
	h := newHarness(t)

	report, err := h.pipeline.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Units, 4)
	require.Empty(t, report.Failed())
	for _, u := range report.Units {
		require.Equal(t, model.RunReconciled, u.Status, u.RecordSet)
		require.Equal(t, []model.RunStatus{model.RunExecuting, model.RunIngested, model.RunReconciled}, h.ledger.statuses(u.RecordSet))
	}

	require.Len(t, h.core(model.ChannelMeta), 2)
	require.Len(t, h.core(model.ChannelStats), 2)
	require.Len(t, h.core(model.VideoMeta), 4)
	stats := h.core(model.VideoStats)
	require.Len(t, stats, 4)
	require.Equal(t, "2024-03-01", stats[0]["RPTG_DT"])
	require.Equal(t, 0, h.wh.OpenCursors())
}

func TestPipelineRunIsIdempotent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.pipeline.Run(ctx)
	require.NoError(t, err)
	first := h.core(model.VideoStats)

	_, err = h.pipeline.Run(ctx)
	require.NoError(t, err)
	require.ElementsMatch(t, first, h.core(model.VideoStats))
	require.Len(t, h.core(model.ChannelMeta), 2)
}

func TestPipelineUnitFailureLeavesSiblings(t *testing.T) {
	h := newHarness(t)
	vm := h.pairs[model.VideoMeta]
	videoCore := sqlgen.NewTable(vm.Schema, vm.CoreTable)
	h.wh.SetFault(func(stmt sqlgen.Statement) error {
		if stmt.Kind == sqlgen.KindMerge && stmt.Target == videoCore {
			return errors.New("warehouse unavailable")
		}
		return nil
	})

	report, err := h.pipeline.Run(context.Background())
	require.ErrorIs(t, err, etlerr.ErrExecution)
	require.Contains(t, err.Error(), "video_md")

	failed := report.Failed()
	require.Len(t, failed, 1)
	require.Equal(t, model.VideoMeta, failed[0].RecordSet)
	require.Equal(t, model.RunFailed, failed[0].Status)
	require.Equal(t, []model.RunStatus{model.RunExecuting, model.RunIngested, model.RunFailed}, h.ledger.statuses(model.VideoMeta))

	require.Empty(t, h.core(model.VideoMeta))
	require.Len(t, h.core(model.VideoStats), 4)
	require.Len(t, h.core(model.ChannelMeta), 2)
}

func TestPipelineConfigurationFailureIsPerUnit(t *testing.T) {
	h := newHarness(t)
	cs := h.pairs[model.ChannelStats]
	h.wh.CreateTable(sqlgen.NewTable(cs.Schema, cs.CoreTable), "channel_id", "rptg_dt")

	report, err := h.pipeline.Run(context.Background())
	require.ErrorIs(t, err, etlerr.ErrConfiguration)
	require.Len(t, report.Failed(), 1)
	require.Len(t, h.core(model.ChannelMeta), 2)
}

func TestPipelineExtractFailureLoadsNothing(t *testing.T) {
	h := newHarness(t)
	h.pipeline.channels = append(h.pipeline.channels, model.ChannelRef{Name: "unknown"})

	report, err := h.pipeline.Run(context.Background())
	require.ErrorIs(t, err, etlerr.ErrNotFound)
	require.Empty(t, report.Units)
	require.Empty(t, h.wh.Executed())
}

func TestLoadUnitReplaysStoredFile(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	report, err := h.pipeline.Run(ctx)
	require.NoError(t, err)

	// Lose the core rows, then replay the exported file alone.
	vs := h.pairs[model.VideoStats]
	var cols []string
	for _, f := range vs.Fields {
		cols = append(cols, f.Column)
	}
	h.wh.CreateTable(sqlgen.NewTable(vs.Schema, vs.CoreTable), cols...)

	u, err := h.pipeline.LoadUnit(ctx, model.VideoStats, report.Files[model.VideoStats].FileName)
	require.NoError(t, err)
	require.Equal(t, model.RunReconciled, u.Status)
	require.Equal(t, report.Files[model.VideoStats].Key, u.FileKey)
	require.Len(t, h.core(model.VideoStats), 4)
}

func TestLoadUnitFullReplaceRequiresFile(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.pipeline.Run(ctx)
	require.NoError(t, err)
	executed := len(h.wh.Executed())
	entries := len(h.ledger.entries)

	u, err := h.pipeline.LoadUnit(ctx, model.ChannelMeta, "")
	require.ErrorIs(t, err, etlerr.ErrInsufficientInput)
	require.Equal(t, model.RunFailed, u.Status)
	require.Len(t, h.wh.Executed(), executed)
	require.Len(t, h.ledger.entries, entries)
	require.Len(t, h.core(model.ChannelMeta), 2)
}

func TestLoadUnitMergeAcceptsWholeStage(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.pipeline.Run(ctx)
	require.NoError(t, err)

	u, err := h.pipeline.LoadUnit(ctx, model.VideoStats, "")
	require.NoError(t, err)
	require.Equal(t, model.RunReconciled, u.Status)
	require.Len(t, h.core(model.VideoStats), 4)
}

func TestLoadUnitUnknownPair(t *testing.T) {
	h := newHarness(t)
	delete(h.pipeline.pairs, model.ChannelMeta)

	_, err := h.pipeline.LoadUnit(context.Background(), model.ChannelMeta, "")
	require.ErrorIs(t, err, etlerr.ErrConfiguration)
}
