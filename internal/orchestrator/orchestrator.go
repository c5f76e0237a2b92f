// Package orchestrator composes the crawl collaborators into a single
// run loop: checkpoint-resumed state, the authenticated driver pool,
// and the configured parallel strategy.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/beborico/runway-crawler/internal/coordinator"
	"github.com/beborico/runway-crawler/internal/driverpool"
	"github.com/beborico/runway-crawler/internal/progress"
	"github.com/beborico/runway-crawler/internal/retry"
	"github.com/beborico/runway-crawler/internal/runway"
	"github.com/beborico/runway-crawler/internal/session"
	"github.com/beborico/runway-crawler/internal/state"
)

// Config carries the run parameters.
type Config struct {
	Mode       coordinator.Mode
	MaxWorkers int
	AuthURL    string
	RunID      string
}

// Deps carries the long-lived collaborators. The driver pool is not
// among them: it is expensive and session-bound, so each run builds and
// tears down its own.
type Deps struct {
	State    *state.Store
	Sessions *session.Manager
	Factory  runway.DriverFactory
	Looks    coordinator.LookLocator
	Retry    retry.Config
	Emitter  progress.Emitter
	Logger   *zap.Logger
}

// Orchestrator owns the crawl run loop.
type Orchestrator struct {
	cfg      Config
	state    *state.Store
	sessions *session.Manager
	factory  runway.DriverFactory
	looks    coordinator.LookLocator
	retryCfg retry.Config
	emitter  progress.Emitter
	logger   *zap.Logger

	mu   sync.Mutex
	pool *driverpool.Pool
}

// New validates the configuration and builds an Orchestrator.
func New(cfg Config, deps Deps) (*Orchestrator, error) {
	if cfg.MaxWorkers <= 0 {
		return nil, fmt.Errorf("max workers must be > 0, got %d", cfg.MaxWorkers)
	}
	mode, err := coordinator.ParseMode(string(cfg.Mode))
	if err != nil {
		return nil, err
	}
	cfg.Mode = mode
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Emitter == nil {
		deps.Emitter = noopEmitter{}
	}
	if deps.Retry.Attempts <= 0 {
		deps.Retry = retry.DefaultConfig()
	}
	return &Orchestrator{
		cfg:      cfg,
		state:    deps.State,
		sessions: deps.Sessions,
		factory:  deps.Factory,
		looks:    deps.Looks,
		retryCfg: deps.Retry,
		emitter:  deps.Emitter,
		logger:   deps.Logger,
	}, nil
}

type noopEmitter struct{}

func (noopEmitter) Emit(progress.Event) {}

// Report summarizes one run.
type Report struct {
	Result   coordinator.BatchResult
	Duration time.Duration
}

// Run executes one crawl. A failed pool initialization is fatal; a
// failed season is logged and the loop continues; driver teardown and a
// final progress save always happen, however the loop exits.
func (o *Orchestrator) Run(ctx context.Context) (report Report, err error) {
	start := time.Now()
	o.emitRun(progress.StageRunStart, "")

	pool, poolErr := driverpool.New(ctx, o.factory, o.cfg.MaxWorkers, o.cfg.AuthURL, o.logger)
	if poolErr != nil {
		// No pool, no work possible.
		o.emitRun(progress.StageRunError, poolErr.Error())
		return Report{}, poolErr
	}
	o.setPool(pool)

	defer func() {
		o.setPool(nil)
		pool.Close(ctx)
		if saveErr := o.state.SaveProgress(ctx); saveErr != nil {
			o.logger.Error("final progress save failed", zap.Error(saveErr))
			if err == nil {
				err = saveErr
			}
		}
		report.Duration = time.Since(start)
		if err != nil {
			o.emitRun(progress.StageRunError, err.Error())
		} else {
			o.emitRun(progress.StageRunDone, "")
		}
	}()

	coord := coordinator.New(coordinator.Deps{
		State:    o.state,
		Sessions: o.sessions,
		Pool:     pool,
		Factory:  o.factory,
		Looks:    o.looks,
		Retry:    o.retryCfg,
		Emitter:  o.emitter,
		Logger:   o.logger,
		RunID:    o.cfg.RunID,
	})

	seasons, err := o.discoverSeasons(ctx, pool.Driver(0))
	if err != nil {
		return report, err
	}
	o.logger.Info("crawl starting",
		zap.String("mode", string(o.cfg.Mode)),
		zap.Int("pending_seasons", len(seasons)),
		zap.Int("workers", pool.Size()),
	)

	if o.cfg.Mode == coordinator.ModeSeasonParallel {
		res, runErr := coord.ProcessSeasons(ctx, seasons)
		report.Result.Merge(res)
		return report, runErr
	}

	for _, season := range seasons {
		var res coordinator.BatchResult
		var seasonErr error
		if o.cfg.Mode == coordinator.ModeLookParallel {
			res, seasonErr = coord.ProcessSeasonLooks(ctx, season)
		} else {
			res, seasonErr = coord.ProcessSeasonDesigners(ctx, season)
		}
		report.Result.Merge(res)
		if seasonErr == nil {
			continue
		}
		if errors.Is(seasonErr, runway.ErrAuthentication) || ctx.Err() != nil {
			return report, seasonErr
		}
		// A failed season never aborts the run; the next run re-drives it.
		o.logger.Error("season failed, continuing",
			zap.String("season", season.Key().String()),
			zap.Error(seasonErr),
		)
		report.Result.Errors = append(report.Result.Errors, coordinator.UnitError{
			Unit: "season " + season.Key().String(),
			Err:  seasonErr,
		})
	}
	return report, nil
}

// discoverSeasons lists seasons from the site, records them, and
// returns the pending ones in the store's chronological order.
func (o *Orchestrator) discoverSeasons(ctx context.Context, driver runway.PageDriver) ([]runway.Season, error) {
	var listed []runway.Season
	if err := retry.Do(ctx, o.retryCfg, func(ctx context.Context) error {
		var listErr error
		listed, listErr = driver.ListSeasons(ctx)
		return listErr
	}); err != nil {
		return nil, fmt.Errorf("list seasons: %w", err)
	}

	for _, season := range listed {
		if err := o.state.UpsertSeason(ctx, season); err != nil {
			return nil, err
		}
	}

	snap, err := o.state.ReadAll(ctx)
	if err != nil {
		return nil, err
	}
	pending := make([]runway.Season, 0, len(snap.Seasons))
	for _, season := range snap.Seasons {
		if season.Completed {
			o.logger.Debug("skipping completed season", zap.String("season", season.Key().String()))
			continue
		}
		pending = append(pending, season)
	}
	return pending, nil
}

// WorkerStatus exposes the live pool's worker map for the status API.
// Between runs it is empty.
func (o *Orchestrator) WorkerStatus() map[driverpool.WorkerID]driverpool.Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.pool == nil {
		return map[driverpool.WorkerID]driverpool.Status{}
	}
	return o.pool.StatusSnapshot()
}

// Progress reports the derived run-wide statistics.
func (o *Orchestrator) Progress(ctx context.Context) (runway.Progress, error) {
	snap, err := o.state.ReadAll(ctx)
	if err != nil {
		return runway.Progress{}, err
	}
	return snap.Metadata.Progress, nil
}

func (o *Orchestrator) setPool(pool *driverpool.Pool) {
	o.mu.Lock()
	o.pool = pool
	o.mu.Unlock()
}

func (o *Orchestrator) emitRun(stage progress.Stage, note string) {
	o.emitter.Emit(progress.Event{
		RunID: o.cfg.RunID,
		TS:    time.Now().UTC(),
		Stage: stage,
		Note:  note,
	})
}
