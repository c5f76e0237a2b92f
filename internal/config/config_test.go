package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/beborico/runway-crawler/internal/storage"
)

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
crawl:
  mode: looks
  workers: 6
  sort_order: ascending
  auth_url: https://example.com/magic-link
  checkpoint: runway_20260101_120000.json
browser:
  user_agent: runway-agent
  page_load_wait_seconds: 3
storage:
  mode: redis
redis:
  host: redis.internal
  port: 6380
  db: 2
  password: hunter2
retry:
  attempts: 5
  delay_seconds: 1
status:
  port: 9090
logging:
  development: false
`
	if err := os.WriteFile(path, []byte(configYAML), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Crawl.Mode != "looks" || cfg.Crawl.Workers != 6 {
		t.Fatalf("expected crawl overrides to apply, got %+v", cfg.Crawl)
	}
	if cfg.Descending() {
		t.Fatal("expected ascending sort order")
	}
	if cfg.Browser.UserAgent != "runway-agent" || cfg.Browser.PageLoadWaitSec != 3 {
		t.Fatalf("expected browser overrides to apply, got %+v", cfg.Browser)
	}
	if cfg.Browser.ElementWaitSec != 10 {
		t.Fatalf("expected element wait default to survive, got %d", cfg.Browser.ElementWaitSec)
	}

	sc := cfg.StorageConfig()
	if sc.Mode != storage.ModeRedis || sc.RedisAddr != "redis.internal:6380" || sc.RedisDB != 2 {
		t.Fatalf("unexpected storage config: %+v", sc)
	}
	if sc.Checkpoint != "runway_20260101_120000.json" {
		t.Fatalf("expected checkpoint to flow through, got %q", sc.Checkpoint)
	}

	rp := cfg.RetryPolicy()
	if rp.Attempts != 5 || rp.BaseDelay != time.Second || rp.MaxDelay != 30*time.Second {
		t.Fatalf("unexpected retry policy: %+v", rp)
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Crawl.Mode != "designers" || cfg.Crawl.Workers != 4 {
		t.Fatalf("unexpected crawl defaults: %+v", cfg.Crawl)
	}
	if !cfg.Descending() {
		t.Fatal("expected descending sort by default")
	}
	if cfg.Storage.Mode != "document" || cfg.Storage.DataDir != "data" || cfg.Storage.FilePrefix != "runway" {
		t.Fatalf("unexpected storage defaults: %+v", cfg.Storage)
	}
	if cfg.Status.Port != 8080 {
		t.Fatalf("unexpected status defaults: %+v", cfg.Status)
	}
}

func TestConfigValidateErrors(t *testing.T) {
	t.Parallel()

	base := Config{
		Crawl:   CrawlConfig{Mode: "designers", Workers: 4, SortOrder: "descending"},
		Storage: StorageConfig{Mode: "document", DataDir: "data", FilePrefix: "runway"},
		Redis:   RedisConfig{Host: "localhost", Port: 6379},
		Retry:   RetryConfig{Attempts: 3, DelaySeconds: 2},
		Status:  StatusConfig{Port: 8080},
	}

	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{
			name: "invalid mode",
			cfg: func() Config {
				c := base
				c.Crawl.Mode = "everything"
				return c
			}(),
			want: "crawl.mode",
		},
		{
			name: "invalid workers",
			cfg: func() Config {
				c := base
				c.Crawl.Workers = 0
				return c
			}(),
			want: "crawl.workers",
		},
		{
			name: "invalid sort order",
			cfg: func() Config {
				c := base
				c.Crawl.SortOrder = "sideways"
				return c
			}(),
			want: "crawl.sort_order",
		},
		{
			name: "document storage without data dir",
			cfg: func() Config {
				c := base
				c.Storage.DataDir = ""
				return c
			}(),
			want: "storage.data_dir",
		},
		{
			name: "redis storage without host",
			cfg: func() Config {
				c := base
				c.Storage.Mode = "redis"
				c.Redis.Host = ""
				return c
			}(),
			want: "redis.host",
		},
		{
			name: "unknown storage mode",
			cfg: func() Config {
				c := base
				c.Storage.Mode = "s3"
				return c
			}(),
			want: "storage.mode",
		},
		{
			name: "invalid retry attempts",
			cfg: func() Config {
				c := base
				c.Retry.Attempts = 0
				return c
			}(),
			want: "retry.attempts",
		},
		{
			name: "invalid status port",
			cfg: func() Config {
				c := base
				c.Status.Port = 0
				return c
			}(),
			want: "status.port",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}
