// Package storage defines the durable persistence contract for crawl
// snapshots and the factory that selects a concrete backend.
package storage

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/beborico/runway-crawler/internal/runway"
	"github.com/beborico/runway-crawler/internal/storage/docstore"
	"github.com/beborico/runway-crawler/internal/storage/redisstore"
)

// Backend persists crawl snapshots. Implementations must make Write
// atomic enough to survive a crash mid-write and must serialize
// conflicting writes so concurrent upserts never lose updates.
type Backend interface {
	// Read loads the full snapshot, initializing an empty structure
	// when none exists yet.
	Read(ctx context.Context) (runway.Snapshot, error)

	// Write persists the full snapshot.
	Write(ctx context.Context, snap runway.Snapshot) error

	// Exists reports whether any persisted state is present.
	Exists(ctx context.Context) (bool, error)

	// Location identifies the persisted instance (file path or
	// key-value instance ID) for checkpoint/resume purposes.
	Location() string

	// Close releases backend resources.
	Close() error
}

// Mode selects the backend implementation.
type Mode string

// Supported storage modes.
const (
	ModeDocument Mode = "document"
	ModeRedis    Mode = "redis"
)

// Config carries everything the factory needs to build a backend.
type Config struct {
	Mode       Mode
	DataDir    string
	FilePrefix string
	RedisAddr  string
	RedisDB    int
	RedisPass  string
	// Checkpoint is the instance to resume: a file path in document
	// mode, an instance ID in redis mode. Empty starts fresh.
	Checkpoint string
}

// New builds the configured Backend.
func New(ctx context.Context, cfg Config, logger *zap.Logger) (Backend, error) {
	switch cfg.Mode {
	case ModeDocument:
		store, err := docstore.New(docstore.Config{
			Dir:        cfg.DataDir,
			FilePrefix: cfg.FilePrefix,
			Checkpoint: cfg.Checkpoint,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("document store: %w", err)
		}
		return store, nil
	case ModeRedis:
		store, err := redisstore.New(ctx, redisstore.Config{
			Addr:       cfg.RedisAddr,
			DB:         cfg.RedisDB,
			Password:   cfg.RedisPass,
			Checkpoint: cfg.Checkpoint,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("redis store: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage mode %q", cfg.Mode)
	}
}
