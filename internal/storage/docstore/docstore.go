// Package docstore persists the whole crawl snapshot as one JSON
// document on the local filesystem.
package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/beborico/runway-crawler/internal/runway"
)

const timestampLayout = "20060102_150405"

// Config captures the parameters of the document store.
type Config struct {
	// Dir is the data directory holding snapshot files.
	Dir string
	// FilePrefix names snapshot files: <prefix>_<timestamp>.json.
	FilePrefix string
	// Checkpoint is an existing snapshot file to resume. Empty creates
	// a new timestamped file on first write.
	Checkpoint string
}

// Store is a document-mode backend. All writes funnel through one
// mutex: whole-file rewrites are not commutative, so a single logical
// writer is required to avoid lost updates.
type Store struct {
	mu     sync.Mutex
	path   string
	logger *zap.Logger
}

// New creates the document store, ensuring the data directory exists.
func New(cfg Config, logger *zap.Logger) (*Store, error) {
	if strings.TrimSpace(cfg.Dir) == "" {
		return nil, fmt.Errorf("%w: data directory is required", runway.ErrStorage)
	}
	if err := os.MkdirAll(cfg.Dir, 0o750); err != nil {
		return nil, fmt.Errorf("%w: create data directory: %v", runway.ErrStorage, err)
	}

	prefix := cfg.FilePrefix
	if prefix == "" {
		prefix = "runway"
	}

	path := cfg.Checkpoint
	if path == "" {
		name := fmt.Sprintf("%s_%s.json", prefix, time.Now().Format(timestampLayout))
		path = filepath.Join(cfg.Dir, name)
	}

	return &Store{path: path, logger: logger}, nil
}

// Location returns the snapshot file path.
func (s *Store) Location() string {
	return s.path
}

// Exists reports whether the snapshot file is present on disk.
func (s *Store) Exists(_ context.Context) (bool, error) {
	_, err := os.Stat(s.path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("%w: stat %s: %v", runway.ErrStorage, s.path, err)
}

// Read loads the snapshot, returning an initialized empty structure
// when the file does not exist yet.
func (s *Store) Read(_ context.Context) (runway.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return runway.NewSnapshot(time.Now().UTC()), nil
		}
		return runway.Snapshot{}, fmt.Errorf("%w: read %s: %v", runway.ErrStorage, s.path, err)
	}

	var snap runway.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return runway.Snapshot{}, fmt.Errorf("%w: decode %s: %v", runway.ErrStorage, s.path, err)
	}
	return snap, nil
}

// Write rewrites the snapshot file atomically: encode to a temp file in
// the same directory, fsync it, rename over the target, fsync the
// directory. A crash at any point leaves either the previous snapshot
// or the new one, never a torn file.
func (s *Store) Write(_ context.Context, snap runway.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode snapshot: %v", runway.ErrStorage, err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("%w: create temp file: %v", runway.ErrStorage, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: write temp file: %v", runway.ErrStorage, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: sync temp file: %v", runway.ErrStorage, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: close temp file: %v", runway.ErrStorage, err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("%w: rename %s: %v", runway.ErrStorage, s.path, err)
	}
	if err := syncDir(dir); err != nil {
		s.logger.Warn("directory sync failed after rename", zap.String("dir", dir), zap.Error(err))
	}
	return nil
}

// Close is a no-op; the store holds no open handles between calls.
func (s *Store) Close() error {
	return nil
}

// LatestSnapshotFile returns the most recently modified *.json file in
// dir, or "" when none exists. Leftover temp files from interrupted
// writes are skipped and removed.
func LatestSnapshotFile(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("%w: read dir %s: %v", runway.ErrStorage, dir, err)
	}

	var latest string
	var latestMod time.Time
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.Contains(name, ".tmp-") {
			os.Remove(filepath.Join(dir, name))
			continue
		}
		if !strings.HasSuffix(name, ".json") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(latestMod) {
			latestMod = info.ModTime()
			latest = filepath.Join(dir, name)
		}
	}
	return latest, nil
}

func syncDir(dir string) error {
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}
