// Package driverpool manages the fixed set of expensive, authenticated
// page-driver handles shared by a crawl run.
package driverpool

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/beborico/runway-crawler/internal/runway"
)

// WorkerID identifies a logical worker slot. IDs are assigned by the
// pool, never derived from runtime thread/goroutine identity.
type WorkerID string

// NewWorkerID allocates a fresh worker ID.
func NewWorkerID() WorkerID {
	return WorkerID(uuid.NewString())
}

// Status describes what a worker slot is currently doing.
type Status struct {
	Unit      string    `json:"unit"`
	State     string    `json:"state"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Pool holds maxWorkers page-driver handles. The first handle performs
// the full authentication handshake; every later handle receives a
// copy of its session state and is verified before joining.
type Pool struct {
	mu      sync.Mutex
	drivers []runway.PageDriver
	status  map[WorkerID]Status
	logger  *zap.Logger
}

// New builds and authenticates the pool. A failed primary
// authentication, or a secondary handle that can neither adopt the
// shared session nor authenticate directly, fails initialization.
func New(ctx context.Context, factory runway.DriverFactory, size int, authURL string, logger *zap.Logger) (*Pool, error) {
	if size <= 0 {
		return nil, fmt.Errorf("pool size must be > 0")
	}

	p := &Pool{
		status: make(map[WorkerID]Status),
		logger: logger,
	}

	primary, err := factory(ctx)
	if err != nil {
		return nil, fmt.Errorf("create primary driver: %w", err)
	}
	if err := primary.Authenticate(ctx, authURL); err != nil {
		p.quitDriver(ctx, primary)
		return nil, fmt.Errorf("%w: primary driver: %v", runway.ErrAuthentication, err)
	}
	if ok, err := primary.VerifyAuthenticated(ctx); err != nil || !ok {
		p.quitDriver(ctx, primary)
		return nil, fmt.Errorf("%w: primary driver verification failed", runway.ErrAuthentication)
	}
	p.drivers = append(p.drivers, primary)
	logger.Info("primary driver authenticated")

	for i := 1; i < size; i++ {
		driver, err := factory(ctx)
		if err != nil {
			p.Close(ctx)
			return nil, fmt.Errorf("create driver %d: %w", i+1, err)
		}
		if err := p.adoptSession(ctx, primary, driver, authURL); err != nil {
			p.quitDriver(ctx, driver)
			p.Close(ctx)
			return nil, fmt.Errorf("driver %d/%d: %w", i+1, size, err)
		}
		p.drivers = append(p.drivers, driver)
		logger.Info("driver authenticated via shared session",
			zap.Int("driver", i+1), zap.Int("pool_size", size))
	}

	return p, nil
}

// adoptSession copies the primary session onto the new handle and
// verifies it, retrying direct authentication once before giving up.
func (p *Pool) adoptSession(ctx context.Context, primary, driver runway.PageDriver, authURL string) error {
	shareErr := primary.ShareSession(ctx, driver)
	if shareErr == nil {
		if ok, err := driver.VerifyAuthenticated(ctx); err == nil && ok {
			return nil
		}
	} else {
		p.logger.Warn("session share failed, trying direct authentication", zap.Error(shareErr))
	}

	if err := driver.Authenticate(ctx, authURL); err != nil {
		return fmt.Errorf("%w: direct authentication fallback: %v", runway.ErrAuthentication, err)
	}
	if ok, err := driver.VerifyAuthenticated(ctx); err != nil || !ok {
		return fmt.Errorf("%w: verification failed after direct authentication", runway.ErrAuthentication)
	}
	return nil
}

// Size returns the number of handles in the pool.
func (p *Pool) Size() int {
	return len(p.drivers)
}

// Driver returns the handle statically assigned to a task index. The
// same handle may serve many sequential tasks but never two in-flight
// tasks, because assignment is computed before dispatch.
func (p *Pool) Driver(taskIndex int) runway.PageDriver {
	return p.drivers[taskIndex%len(p.drivers)]
}

// SetStatus records what a worker slot is doing, for observability.
func (p *Pool) SetStatus(id WorkerID, unit, state string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status[id] = Status{Unit: unit, State: state, UpdatedAt: time.Now()}
}

// ClearStatus removes a worker slot once its task finishes.
func (p *Pool) ClearStatus(id WorkerID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.status, id)
}

// StatusSnapshot returns a copy of the worker status map.
func (p *Pool) StatusSnapshot() map[WorkerID]Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[WorkerID]Status, len(p.status))
	for id, st := range p.status {
		out[id] = st
	}
	return out
}

// Close quits every handle. Individual quit failures are logged, not
// fatal.
func (p *Pool) Close(ctx context.Context) {
	for _, driver := range p.drivers {
		p.quitDriver(ctx, driver)
	}
	p.drivers = nil
}

func (p *Pool) quitDriver(ctx context.Context, driver runway.PageDriver) {
	if err := driver.Quit(ctx); err != nil {
		p.logger.Error("driver quit failed", zap.Error(err))
	}
}
