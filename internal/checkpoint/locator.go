// Package checkpoint locates the most recent persisted run to resume
// from, across either storage backend.
package checkpoint

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/beborico/runway-crawler/internal/storage"
	"github.com/beborico/runway-crawler/internal/storage/docstore"
	"github.com/beborico/runway-crawler/internal/storage/redisstore"
)

// Locator resolves resume points. Backend failures are reported but
// never fatal: the caller falls back to starting fresh.
type Locator struct {
	cfg    storage.Config
	logger *zap.Logger
}

// NewLocator constructs a Locator for the configured backend.
func NewLocator(cfg storage.Config, logger *zap.Logger) *Locator {
	return &Locator{cfg: cfg, logger: logger}
}

// Latest returns the identifier of the most recent persisted run: a
// snapshot file path in document mode, an instance ID in redis mode.
// "" means no checkpoint exists and the run starts fresh.
func (l *Locator) Latest(ctx context.Context) string {
	switch l.cfg.Mode {
	case storage.ModeRedis:
		return l.latestRedis(ctx)
	default:
		return l.latestFile()
	}
}

func (l *Locator) latestFile() string {
	path, err := docstore.LatestSnapshotFile(l.cfg.DataDir)
	if err != nil {
		l.logger.Error("checkpoint scan failed, starting fresh",
			zap.String("dir", l.cfg.DataDir), zap.Error(err))
		return ""
	}
	if path == "" {
		l.logger.Info("no checkpoint files found", zap.String("dir", l.cfg.DataDir))
		return ""
	}
	l.logger.Info("found latest checkpoint file", zap.String("path", path))
	return path
}

func (l *Locator) latestRedis(ctx context.Context) string {
	client := redis.NewClient(&redis.Options{
		Addr:     l.cfg.RedisAddr,
		DB:       l.cfg.RedisDB,
		Password: l.cfg.RedisPass,
	})
	defer client.Close()

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		l.logger.Error("redis unreachable during checkpoint lookup, starting fresh", zap.Error(err))
		return ""
	}

	id, err := redisstore.LatestInstanceID(ctx, client)
	if err != nil {
		l.logger.Error("redis checkpoint lookup failed, starting fresh", zap.Error(err))
		return ""
	}
	if id == "" {
		l.logger.Info("no redis checkpoint metadata found")
		return ""
	}
	l.logger.Info("found redis checkpoint", zap.String("instance_id", id))
	return id
}
