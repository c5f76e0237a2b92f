// Package coordinator decomposes a crawl into per-season, per-designer,
// or per-look units of work and executes them against the driver pool,
// aggregating results and errors per batch.
package coordinator

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/beborico/runway-crawler/internal/driverpool"
	"github.com/beborico/runway-crawler/internal/progress"
	"github.com/beborico/runway-crawler/internal/retry"
	"github.com/beborico/runway-crawler/internal/runway"
	"github.com/beborico/runway-crawler/internal/session"
	"github.com/beborico/runway-crawler/internal/state"
)

// Mode selects the parallel decomposition of a crawl.
type Mode string

// Supported parallelism strategies.
const (
	// ModeSeasonParallel runs each season as one unit; designers inside
	// a season are processed sequentially by the assigned driver.
	ModeSeasonParallel Mode = "seasons"
	// ModeDesignerParallel expands one season at a time and distributes
	// its designers across the pool. The default.
	ModeDesignerParallel Mode = "designers"
	// ModeLookParallel discovers all look URLs of one show and opens a
	// disposable driver per look.
	ModeLookParallel Mode = "looks"
)

// ParseMode maps a config string onto a Mode, defaulting to
// designer-parallel.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeSeasonParallel:
		return ModeSeasonParallel, nil
	case ModeDesignerParallel, "":
		return ModeDesignerParallel, nil
	case ModeLookParallel:
		return ModeLookParallel, nil
	default:
		return "", fmt.Errorf("unknown parallel mode %q", s)
	}
}

// UnitError records one failed unit of work.
type UnitError struct {
	Unit string
	Err  error
}

func (e UnitError) Error() string {
	return fmt.Sprintf("%s: %v", e.Unit, e.Err)
}

func (e UnitError) Unwrap() error {
	return e.Err
}

// BatchResult aggregates one batch. Processed counts every attempted
// unit, including failed ones; failed units are left pending in
// persisted state so the next run picks them up again.
type BatchResult struct {
	Processed int
	Errors    []UnitError
}

// Merge folds another batch result into this one.
func (r *BatchResult) Merge(other BatchResult) {
	r.Processed += other.Processed
	r.Errors = append(r.Errors, other.Errors...)
}

// LookLocator discovers the individually addressable look URLs of a
// slideshow, enabling look-parallel dispatch without walking "next"
// through a shared driver.
type LookLocator interface {
	DiscoverLookURLs(ctx context.Context, slideshowURL string, total int) ([]string, error)
}

// Deps carries the collaborators the coordinator composes.
type Deps struct {
	State    *state.Store
	Sessions *session.Manager
	Pool     *driverpool.Pool
	Factory  runway.DriverFactory
	Looks    LookLocator
	Retry    retry.Config
	Emitter  progress.Emitter
	Logger   *zap.Logger
	RunID    string
}

// Coordinator executes crawl batches over the driver pool.
type Coordinator struct {
	state    *state.Store
	sessions *session.Manager
	pool     *driverpool.Pool
	factory  runway.DriverFactory
	looks    LookLocator
	retryCfg retry.Config
	emitter  progress.Emitter
	logger   *zap.Logger
	runID    string

	// commitMu serializes designer commit sections; the session manager
	// allows one open session at a time.
	commitMu sync.Mutex
}

// New builds a Coordinator from its collaborators.
func New(deps Deps) *Coordinator {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Emitter == nil {
		deps.Emitter = noopEmitter{}
	}
	if deps.Retry.Attempts <= 0 {
		deps.Retry = retry.DefaultConfig()
	}
	return &Coordinator{
		state:    deps.State,
		sessions: deps.Sessions,
		pool:     deps.Pool,
		factory:  deps.Factory,
		looks:    deps.Looks,
		retryCfg: deps.Retry,
		emitter:  deps.Emitter,
		logger:   deps.Logger,
		runID:    deps.RunID,
	}
}

type noopEmitter struct{}

func (noopEmitter) Emit(progress.Event) {}

// unit is one schedulable piece of crawl work.
type unit struct {
	name string
	run  func(ctx context.Context, driver runway.PageDriver) error
}

type unitOutcome struct {
	name string
	err  error
}

// runUnits executes units over min(poolSize, len(units)) workers.
// Driver assignment is static per worker slot, so a handle is reused
// across sequential units but never by two in-flight units. With
// disposable set, each unit gets a throwaway driver instead.
func (c *Coordinator) runUnits(ctx context.Context, units []unit, disposable bool) BatchResult {
	if len(units) == 0 {
		return BatchResult{}
	}

	workers := c.pool.Size()
	if len(units) < workers {
		workers = len(units)
	}

	outcomes := make(chan unitOutcome, len(units))
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			id := driverpool.NewWorkerID()
			for i := slot; i < len(units); i += workers {
				u := units[i]
				c.pool.SetStatus(id, u.name, "in_progress")
				outcomes <- unitOutcome{name: u.name, err: c.runUnit(ctx, u, slot, disposable)}
				c.pool.ClearStatus(id)
			}
		}(w)
	}
	go func() {
		wg.Wait()
		close(outcomes)
	}()

	// Collect in completion order, not submission order.
	var result BatchResult
	for out := range outcomes {
		result.Processed++
		if out.err != nil {
			c.logger.Error("crawl unit failed",
				zap.String("unit", out.name),
				zap.Error(out.err),
			)
			c.emitter.Emit(progress.Event{
				RunID: c.runID,
				TS:    time.Now().UTC(),
				Stage: progress.StageUnitError,
				Note:  out.err.Error(),
			})
			result.Errors = append(result.Errors, UnitError{Unit: out.name, Err: out.err})
		}
	}

	// One persisted progress save per batch, not per unit.
	if err := c.state.SaveProgress(ctx); err != nil {
		c.logger.Error("save progress after batch", zap.Error(err))
		result.Errors = append(result.Errors, UnitError{Unit: "batch progress save", Err: err})
	}
	return result
}

// runUnit executes one unit with a single internal re-drive. Further
// failures leave the entity pending for the next run.
func (c *Coordinator) runUnit(ctx context.Context, u unit, slot int, disposable bool) error {
	cfg := c.retryCfg
	cfg.Attempts = 2
	cfg.OnRetry = func(attempt int, err error) {
		c.logger.Warn("retrying crawl unit",
			zap.String("unit", u.name),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}

	return retry.Do(ctx, cfg, func(ctx context.Context) error {
		driver := c.pool.Driver(slot)
		var cleanup func()
		if disposable {
			d, err := c.disposableDriver(ctx)
			if err != nil {
				return err
			}
			driver = d
			cleanup = func() {
				if err := d.Quit(ctx); err != nil {
					c.logger.Warn("disposable driver quit failed", zap.Error(err))
				}
			}
		}
		if cleanup != nil {
			defer cleanup()
		}
		return u.run(ctx, driver)
	})
}

// disposableDriver opens a throwaway handle carrying the pool's
// authenticated session.
func (c *Coordinator) disposableDriver(ctx context.Context) (runway.PageDriver, error) {
	d, err := c.factory(ctx)
	if err != nil {
		return nil, fmt.Errorf("create disposable driver: %w", err)
	}
	if err := c.pool.Driver(0).ShareSession(ctx, d); err != nil {
		if quitErr := d.Quit(ctx); quitErr != nil {
			c.logger.Warn("disposable driver quit failed", zap.Error(quitErr))
		}
		return nil, fmt.Errorf("%w: share session with disposable driver: %v", runway.ErrAuthentication, err)
	}
	return d, nil
}
