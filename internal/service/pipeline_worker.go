package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Runner runs one cycle. Implemented by *Pipeline.
type Runner interface {
	Run(ctx context.Context) (*RunReport, error)
}

// PipelineWorker runs a cycle at the top of every interval. At most one
// cycle is active: a tick that finds one still running in this process, or
// finds the Redis run lock held by another process, is skipped.
type PipelineWorker struct {
	runner     Runner
	cache      *CacheService
	interval   time.Duration
	runAtStart bool
	owner      string
	log        zerolog.Logger
	now        func() time.Time

	running atomic.Bool
	wg      sync.WaitGroup
	stopCh  chan struct{}
	stop    sync.Once
}

// NewPipelineWorker creates a worker that ticks every interval. cache may be
// nil, in which case only the in-process guard applies.
func NewPipelineWorker(runner Runner, cache *CacheService, interval time.Duration, runAtStart bool, log zerolog.Logger) *PipelineWorker {
	return &PipelineWorker{
		runner:     runner,
		cache:      cache,
		interval:   interval,
		runAtStart: runAtStart,
		owner:      uuid.NewString(),
		log:        log.With().Str("component", "pipeline-worker").Logger(),
		now:        time.Now,
		stopCh:     make(chan struct{}),
	}
}

// nextTick returns the first interval boundary strictly after now.
func nextTick(now time.Time, interval time.Duration) time.Time {
	return now.Truncate(interval).Add(interval)
}

// Start blocks running the schedule until ctx is cancelled or Stop is
// called, then waits for an active cycle to finish.
func (w *PipelineWorker) Start(ctx context.Context) {
	w.log.Info().Dur("interval", w.interval).Bool("run_at_start", w.runAtStart).Msg("starting")
	defer w.wg.Wait()

	if w.runAtStart {
		w.tick(ctx)
	}

	for {
		next := nextTick(w.now(), w.interval)
		timer := time.NewTimer(time.Until(next))
		w.log.Debug().Time("next_run", next).Msg("scheduled")

		select {
		case <-timer.C:
			w.tick(ctx)
		case <-ctx.Done():
			timer.Stop()
			w.log.Info().Msg("stopping (context cancelled)")
			return
		case <-w.stopCh:
			timer.Stop()
			w.log.Info().Msg("stopping (stop signal)")
			return
		}
	}
}

// Stop signals the worker to stop.
func (w *PipelineWorker) Stop() {
	w.stop.Do(func() { close(w.stopCh) })
}

// Running reports whether a cycle is active in this process.
func (w *PipelineWorker) Running() bool {
	return w.running.Load()
}

// tick launches one cycle in the background unless one is already active.
func (w *PipelineWorker) tick(ctx context.Context) {
	if !w.running.CompareAndSwap(false, true) {
		w.log.Warn().Msg("previous cycle still running, tick skipped")
		return
	}

	ok, err := w.cache.AcquireRunLock(ctx, w.owner, RunLockTTL(w.interval))
	if err != nil || !ok {
		w.running.Store(false)
		if err != nil {
			w.log.Error().Err(err).Msg("run lock unavailable, tick skipped")
		} else {
			w.log.Warn().Msg("run lock held by another process, tick skipped")
		}
		return
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer w.running.Store(false)
		defer func() {
			if err := w.cache.ReleaseRunLock(context.WithoutCancel(ctx), w.owner); err != nil {
				w.log.Warn().Err(err).Msg("run lock release failed")
			}
		}()

		report, err := w.runner.Run(ctx)
		runID := ""
		if report != nil {
			runID = report.RunID
		}
		if err != nil {
			w.log.Error().Err(err).Str("run_id", runID).Msg("cycle failed")
			return
		}
		w.log.Info().Str("run_id", runID).Msg("cycle complete")
	}()
}
