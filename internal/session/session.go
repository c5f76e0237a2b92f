// Package session demarcates one designer processing session at a
// time, with restore points for rolling back failed commits so a
// half-written designer never becomes visible to readers.
package session

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/beborico/runway-crawler/internal/runway"
)

// maxRestorePoints caps the restore-point history.
const maxRestorePoints = 5

// Stateful is the slice of the state store the session manager needs.
type Stateful interface {
	ReadAll(ctx context.Context) (runway.Snapshot, error)
	Replace(ctx context.Context, snap runway.Snapshot) error
	SaveProgress(ctx context.Context) error
}

type restorePoint struct {
	hash    string
	payload []byte
}

type activeSession struct {
	designerURL string
	startedAt   time.Time
}

// Manager enforces single-session-at-a-time semantics and keeps a
// bounded history of restore points keyed by content hash.
type Manager struct {
	mu      sync.Mutex
	state   Stateful
	active  *activeSession
	history []restorePoint
	logger  *zap.Logger
}

// New constructs a Manager over the given state store.
func New(state Stateful, logger *zap.Logger) *Manager {
	return &Manager{state: state, logger: logger}
}

// Start opens a designer session, snapshotting the current state as a
// restore point. A second concurrent session is a conflict.
func (m *Manager) Start(ctx context.Context, designerURL string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active != nil {
		return fmt.Errorf("%w: designer session for %s still open", runway.ErrConflict, m.active.designerURL)
	}

	snap, err := m.state.ReadAll(ctx)
	if err != nil {
		return fmt.Errorf("snapshot state before session: %w", err)
	}
	if err := m.pushRestorePoint(snap); err != nil {
		return err
	}

	m.active = &activeSession{designerURL: designerURL, startedAt: time.Now()}
	m.logger.Info("designer session started", zap.String("designer_url", designerURL))
	return nil
}

// End closes the active session and forces a progress save.
func (m *Manager) End(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active == nil {
		return runway.ErrNoActiveSession
	}

	url := m.active.designerURL
	elapsed := time.Since(m.active.startedAt)
	m.active = nil

	if err := m.state.SaveProgress(ctx); err != nil {
		return fmt.Errorf("save progress at session end: %w", err)
	}
	m.logger.Info("designer session ended",
		zap.String("designer_url", url),
		zap.Duration("elapsed", elapsed),
	)
	return nil
}

// Record pushes a restore point capturing the current state, so a
// later rollback returns here instead of to the session start. Called
// after each successful update inside a session.
func (m *Manager) Record(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active == nil {
		return runway.ErrNoActiveSession
	}
	snap, err := m.state.ReadAll(ctx)
	if err != nil {
		return fmt.Errorf("snapshot state for restore point: %w", err)
	}
	return m.pushRestorePoint(snap)
}

// Rollback restores the most recent restore point. It requires an
// active session; the caller invokes it when an update inside the
// session fails, before propagating the error.
func (m *Manager) Rollback(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active == nil {
		return runway.ErrNoActiveSession
	}
	if len(m.history) == 0 {
		return fmt.Errorf("%w: no restore point recorded", runway.ErrStorage)
	}

	latest := m.history[len(m.history)-1]
	var snap runway.Snapshot
	if err := json.Unmarshal(latest.payload, &snap); err != nil {
		return fmt.Errorf("%w: decode restore point %s: %v", runway.ErrStorage, latest.hash, err)
	}
	if err := m.state.Replace(ctx, snap); err != nil {
		return fmt.Errorf("restore state: %w", err)
	}
	m.logger.Warn("rolled back to restore point",
		zap.String("designer_url", m.active.designerURL),
		zap.String("restore_point", latest.hash),
	)
	return nil
}

// Active returns the designer URL of the open session, if any.
func (m *Manager) Active() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil {
		return "", false
	}
	return m.active.designerURL, true
}

func (m *Manager) pushRestorePoint(snap runway.Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("%w: encode restore point: %v", runway.ErrStorage, err)
	}
	sum := sha256.Sum256(payload)
	hash := hex.EncodeToString(sum[:])

	// Re-snapshotting identical state moves the entry to the front
	// instead of duplicating it.
	for i, point := range m.history {
		if point.hash == hash {
			m.history = append(m.history[:i], m.history[i+1:]...)
			break
		}
	}
	m.history = append(m.history, restorePoint{hash: hash, payload: payload})
	if len(m.history) > maxRestorePoints {
		m.history = m.history[len(m.history)-maxRestorePoints:]
	}
	return nil
}
