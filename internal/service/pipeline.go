package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/subhajitsr/data-assignment-SPH/internal/etlerr"
	"github.com/subhajitsr/data-assignment-SPH/internal/loader"
	"github.com/subhajitsr/data-assignment-SPH/internal/metrics"
	"github.com/subhajitsr/data-assignment-SPH/internal/model"
	"github.com/subhajitsr/data-assignment-SPH/internal/objstore"
	"github.com/subhajitsr/data-assignment-SPH/internal/sqlgen"
	"github.com/subhajitsr/data-assignment-SPH/internal/warehouse"
)

// Ledger records load unit progress. Implemented by repository.RunRepo.
type Ledger interface {
	Start(ctx context.Context, runID string, rs model.RecordSet, fileKey string) error
	SetStatus(ctx context.Context, runID string, rs model.RecordSet, status model.RunStatus, errMsg string) error
}

// UnitResult is the outcome of one staged load.
type UnitResult struct {
	RecordSet model.RecordSet
	FileKey   string
	Status    model.RunStatus
	Err       error
	Duration  time.Duration
}

// RunReport summarizes a cycle.
type RunReport struct {
	RunID string
	Files map[model.RecordSet]ExportedFile
	Units []UnitResult
}

// Failed returns the units that did not reconcile.
func (r *RunReport) Failed() []UnitResult {
	var out []UnitResult
	for _, u := range r.Units {
		if u.Err != nil {
			out = append(out, u)
		}
	}
	return out
}

// Pipeline runs extraction, export and the four staged loads of a cycle.
type Pipeline struct {
	extract  *ExtractService
	export   *ExportService
	wh       warehouse.Warehouse
	channels []model.ChannelRef
	pairs    map[model.RecordSet]loader.TablePair
	ledger   Ledger
	log      zerolog.Logger
}

// NewPipeline wires a cycle. ledger may be nil.
func NewPipeline(
	extract *ExtractService,
	export *ExportService,
	wh warehouse.Warehouse,
	channels []model.ChannelRef,
	pairs map[model.RecordSet]loader.TablePair,
	ledger Ledger,
	log zerolog.Logger,
) *Pipeline {
	return &Pipeline{
		extract:  extract,
		export:   export,
		wh:       wh,
		channels: channels,
		pairs:    pairs,
		ledger:   ledger,
		log:      log.With().Str("component", "pipeline").Logger(),
	}
}

// StagePrefixes maps each uppercased external stage name to the object
// prefix its record set is exported under.
func (p *Pipeline) StagePrefixes() map[string]string {
	out := make(map[string]string, len(p.pairs))
	for rs, pair := range p.pairs {
		out[strings.ToUpper(pair.Stage)] = p.export.Prefix(rs)
	}
	return out
}

// Run executes one full cycle. Extraction and export failures abort the
// cycle before any load. Load units then run concurrently and
// independently: a failed unit never cancels or rolls back its siblings,
// and every unit failure is joined into the returned error.
func (p *Pipeline) Run(ctx context.Context) (*RunReport, error) {
	start := time.Now()
	report := &RunReport{RunID: uuid.NewString()}
	log := p.log.With().Str("run_id", report.RunID).Logger()
	log.Info().Int("channels", len(p.channels)).Msg("cycle started")

	snap, err := p.extract.Extract(ctx, p.channels)
	if err != nil {
		return report, fmt.Errorf("extract: %w", err)
	}
	report.Files, err = p.export.Export(ctx, snap)
	if err != nil {
		return report, fmt.Errorf("export: %w", err)
	}

	units := make([]UnitResult, len(model.RecordSets))
	var g errgroup.Group
	for i, rs := range model.RecordSets {
		f := report.Files[rs]
		g.Go(func() error {
			units[i] = p.load(ctx, report.RunID, rs, f.FileName, f.Key)
			return nil
		})
	}
	_ = g.Wait()
	report.Units = units

	metrics.CycleDuration.Observe(time.Since(start).Seconds())

	var errs []error
	for _, u := range units {
		if u.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", u.RecordSet, u.Err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		log.Error().Err(err).Int("failed_units", len(errs)).Dur("elapsed", time.Since(start)).Msg("cycle finished with failures")
		return report, err
	}
	log.Info().Dur("elapsed", time.Since(start)).Msg("cycle finished")
	return report, nil
}

// LoadUnit re-runs the staged load of one record set from a file already in
// object storage. An empty file name copies everything under the stage, which
// only MERGE pairs accept: the warehouse skips files it has loaded before, so
// a FULL replace from that copy would empty the core table.
func (p *Pipeline) LoadUnit(ctx context.Context, rs model.RecordSet, fileName string) (UnitResult, error) {
	if pair, ok := p.pairs[rs]; ok && fileName == "" && pair.Discipline != sqlgen.Merge {
		err := etlerr.New(etlerr.ErrInsufficientInput, "load", string(rs),
			"a file name is required to replay a %s load", sqlgen.Full)
		return UnitResult{RecordSet: rs, Status: model.RunFailed, Err: err}, err
	}
	key := objstore.Join(p.export.Prefix(rs), fileName)
	u := p.load(ctx, uuid.NewString(), rs, fileName, key)
	return u, u.Err
}

func (p *Pipeline) load(ctx context.Context, runID string, rs model.RecordSet, fileName, key string) UnitResult {
	start := time.Now()
	u := UnitResult{RecordSet: rs, FileKey: key, Status: model.RunExecuting}
	log := p.log.With().Str("run_id", runID).Str("record_set", string(rs)).Logger()

	defer func() {
		u.Duration = time.Since(start)
		metrics.UnitDuration.WithLabelValues(string(rs), string(u.Status)).Observe(u.Duration.Seconds())
		if u.Err == nil {
			metrics.LastSuccess.WithLabelValues(string(rs)).SetToCurrentTime()
		}
	}()

	fail := func(err error) UnitResult {
		u.Status, u.Err = model.RunFailed, err
		p.mark(ctx, log, runID, rs, model.RunFailed, err.Error())
		log.Error().Err(err).Msg("load failed")
		return u
	}

	pair, ok := p.pairs[rs]
	if !ok {
		return fail(etlerr.New(etlerr.ErrConfiguration, "load", string(rs), "no table pair configured"))
	}

	if p.ledger != nil {
		if err := p.ledger.Start(ctx, runID, rs, key); err != nil {
			log.Warn().Err(err).Msg("ledger start failed")
		}
	}
	log.Info().Str("file", key).Msg("load started")

	ld, err := loader.New(ctx, p.wh, pair, log)
	if err != nil {
		return fail(err)
	}
	if err := ld.Ingest(ctx, ld.Location(fileName)); err != nil {
		return fail(err)
	}
	u.Status = model.RunIngested
	p.mark(ctx, log, runID, rs, model.RunIngested, "")

	if err := ld.Reconcile(ctx); err != nil {
		return fail(err)
	}
	u.Status = model.RunReconciled
	p.mark(ctx, log, runID, rs, model.RunReconciled, "")
	log.Info().Str("discipline", string(ld.Discipline())).Dur("elapsed", time.Since(start)).Msg("load complete")
	return u
}

func (p *Pipeline) mark(ctx context.Context, log zerolog.Logger, runID string, rs model.RecordSet, status model.RunStatus, msg string) {
	if p.ledger == nil {
		return
	}
	if err := p.ledger.SetStatus(ctx, runID, rs, status, msg); err != nil {
		log.Warn().Err(err).Str("status", string(status)).Msg("ledger update failed")
	}
}
