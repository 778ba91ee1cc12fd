package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/subhajitsr/data-assignment-SPH/internal/columnar"
	"github.com/subhajitsr/data-assignment-SPH/internal/config"
	"github.com/subhajitsr/data-assignment-SPH/internal/db"
	"github.com/subhajitsr/data-assignment-SPH/internal/logging"
	"github.com/subhajitsr/data-assignment-SPH/internal/metrics"
	"github.com/subhajitsr/data-assignment-SPH/internal/model"
	"github.com/subhajitsr/data-assignment-SPH/internal/objstore"
	"github.com/subhajitsr/data-assignment-SPH/internal/repository"
	"github.com/subhajitsr/data-assignment-SPH/internal/service"
	"github.com/subhajitsr/data-assignment-SPH/internal/sqlgen"
	"github.com/subhajitsr/data-assignment-SPH/internal/warehouse"
	"github.com/subhajitsr/data-assignment-SPH/internal/warehouse/memory"
	"github.com/subhajitsr/data-assignment-SPH/internal/warehouse/snowflake"
	"github.com/subhajitsr/data-assignment-SPH/internal/youtube"
)

// app holds the process-wide dependencies of one command.
type app struct {
	cfg      *config.Config
	pipeline *config.Pipeline
	log      zerolog.Logger
	reg      *prometheus.Registry

	store objstore.Store
	wh    warehouse.Warehouse
	dry   *memory.Warehouse // set in dry-run mode
	cache *service.CacheService
	runs  *repository.RunRepo // nil when DATABASE_URL is empty

	closers []func()
}

type need struct {
	store     bool
	warehouse bool
	ledger    bool
	dryRun    bool
}

func newApp(ctx context.Context, n need) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if rootFlags.pipelineFile != "" {
		cfg.PipelineFile = rootFlags.pipelineFile
	}

	a := &app{
		cfg: cfg,
		log: logging.New(cfg.LogLevel, "ytload").With().Str("env", cfg.Environment).Logger(),
		reg: prometheus.NewRegistry(),
	}
	a.reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics.Register(a.reg)

	if a.pipeline, err = config.LoadPipeline(cfg.PipelineFile, cfg.Snowflake.Schema); err != nil {
		return nil, err
	}
	a.log.Info().Str("tables", a.pipeline.String()).Int("channels", len(a.pipeline.Channels)).Msg("pipeline loaded")

	if err := a.connect(ctx, n); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) connect(ctx context.Context, n need) error {
	if n.dryRun {
		a.log.Warn().Msg("dry run: using in-memory object storage and warehouse")
		a.store = objstore.NewMemory()
		a.dry = a.dryWarehouse()
		a.wh = a.dry
	} else {
		if n.store {
			s3, err := objstore.NewS3(ctx, a.cfg.S3, a.log)
			if err != nil {
				return err
			}
			a.store = s3
		}
		if n.warehouse {
			sfw, err := snowflake.Open(ctx, a.cfg.Snowflake, a.log)
			if err != nil {
				return err
			}
			a.wh = sfw
			a.closers = append(a.closers, func() { _ = sfw.Close() })
			metrics.RegisterPool(a.reg, "snowflake",
				func() float64 { return float64(sfw.Stats().InUse) },
				func() float64 { return float64(sfw.Stats().Idle) },
			)
		}
	}

	a.cache = service.NewCacheService(ctx, a.cfg.RedisURL, a.log)
	a.closers = append(a.closers, func() { _ = a.cache.Close() })

	if n.ledger && !n.dryRun && a.cfg.DatabaseURL != "" {
		pool, err := db.NewPool(ctx, a.cfg.DatabaseURL, a.log)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, pool.Close)
		metrics.RegisterPool(a.reg, "ledger",
			func() float64 { return float64(pool.Stat().AcquiredConns()) },
			func() float64 { return float64(pool.Stat().IdleConns()) },
		)
		a.runs = repository.NewRunRepo(pool)
		if err := a.runs.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("create ledger schema: %w", err)
		}
	}
	return nil
}

// dryWarehouse creates every staging and core table of the pipeline in memory,
// with COPY reading the exported files back from the in-memory store.
func (a *app) dryWarehouse() *memory.Warehouse {
	prefixes := make(map[string]string, len(a.pipeline.Tables))
	for rs, t := range a.pipeline.Tables {
		prefixes[strings.ToUpper(t.Stage)] = objstore.Join(a.cfg.S3BasePrefix, rs.Prefix())
	}
	wh := memory.New(memory.WithStageReader(columnar.StageReader{Store: a.store, Prefixes: prefixes}))
	for _, pair := range a.pipeline.Pairs() {
		cols := make([]string, 0, len(pair.Fields))
		for _, f := range pair.Fields {
			cols = append(cols, f.Column)
		}
		wh.CreateTable(sqlgen.NewTable(pair.Schema, pair.StagingTable), cols...)
		wh.CreateTable(sqlgen.NewTable(pair.Schema, pair.CoreTable), cols...)
	}
	return wh
}

func (a *app) extractor(ctx context.Context) (*service.ExtractService, error) {
	creds, err := os.ReadFile(a.cfg.YouTubeCredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("read youtube credentials: %w", err)
	}
	var limiter *rate.Limiter
	if a.cfg.YouTubeAPIRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(a.cfg.YouTubeAPIRPS), 1)
	}
	api, err := youtube.New(ctx, creds, limiter)
	if err != nil {
		return nil, err
	}
	return service.NewExtractService(api, a.cache, a.log,
		service.WithWindow(a.pipeline.WindowDays),
		service.WithPageSize(a.pipeline.PageSize),
	), nil
}

// newPipeline wires a cycle. extract may be nil for load-only commands.
func (a *app) newPipeline(extract *service.ExtractService) *service.Pipeline {
	var ledger service.Ledger
	if a.runs != nil {
		ledger = a.runs
	}
	export := service.NewExportService(a.store, a.cfg.S3BasePrefix, a.log)
	return service.NewPipeline(extract, export, a.wh, a.pipeline.Channels, a.pipeline.Pairs(), ledger, a.log)
}

// printDryRun lists the statements the in-memory warehouse executed.
func (a *app) printDryRun() {
	if a.dry == nil {
		return
	}
	for _, stmt := range a.dry.Executed() {
		fmt.Println(stmt.SQL() + ";")
	}
	for _, rs := range model.RecordSets {
		pair := a.pipeline.Tables[rs]
		rows := a.dry.Rows(sqlgen.NewTable(pair.Schema, pair.CoreTable))
		fmt.Printf("-- %s: %d rows in %s.%s\n", rs, len(rows), strings.ToUpper(pair.Schema), strings.ToUpper(pair.CoreTable))
	}
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// summarize names the failed load units ahead of their joined errors.
func summarize(report *service.RunReport, err error) error {
	if err == nil || report == nil || len(report.Units) == 0 {
		return err
	}
	var names []string
	for _, u := range report.Failed() {
		names = append(names, string(u.RecordSet))
	}
	return errors.Join(fmt.Errorf("run %s: %d of %d load units failed: %s",
		report.RunID, len(names), len(report.Units), strings.Join(names, ", ")), err)
}
