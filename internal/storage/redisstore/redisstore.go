// Package redisstore persists crawl state in Redis, one key per
// entity, so concurrent upserts touch disjoint keys instead of
// rewriting a whole document.
package redisstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/beborico/runway-crawler/internal/runway"
)

// Key layout. Index sets exist because entity keys are not enumerable
// without SCAN.
const (
	MetadataKey     = "runway:metadata"
	seasonKeyFmt    = "runway:season:%s:%s"
	designerKeyFmt  = "runway:designer:%s"
	lookKeyFmt      = "runway:look:%s:%d"
	lookIndexFmt    = "runway:designer:%s:looks"
	AllSeasonsKey   = "runway:seasons"
	AllDesignersKey = "runway:designers"
)

const instanceIDLayout = "20060102_150405"

// Config captures Redis connection parameters.
type Config struct {
	Addr     string
	DB       int
	Password string
	// Checkpoint is a specific instance ID to resume; empty or
	// "latest" adopts the instance recorded in metadata, creating a
	// new one when none exists.
	Checkpoint string
}

// Store is a key-value backend over Redis.
type Store struct {
	client     *redis.Client
	instanceID string
	logger     *zap.Logger
}

// seasonRecord is the per-key form of a Season: nested designers are
// stored under their own keys, referenced by URL.
type seasonRecord struct {
	runway.Season
	DesignerURLs []string `json:"designer_urls"`
}

// designerRecord is the per-key form of a Designer: looks live under
// their own keys, and the owning season is recorded so the hierarchy
// can be reassembled.
type designerRecord struct {
	runway.Designer
	SeasonName string `json:"season_name"`
	SeasonYear string `json:"season_year"`
}

type metadataRecord struct {
	runway.Metadata
}

// New connects to Redis, verifies the connection, and resolves the
// instance to resume.
func New(ctx context.Context, cfg Config, logger *zap.Logger) (*Store, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("%w: redis address is required", runway.ErrStorage)
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		DB:       cfg.DB,
		Password: cfg.Password,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: redis ping: %v", runway.ErrStorage, err)
	}

	s := &Store{client: client, logger: logger}
	if err := s.resolveInstance(ctx, cfg.Checkpoint); err != nil {
		client.Close()
		return nil, err
	}
	logger.Info("connected to redis storage",
		zap.String("addr", cfg.Addr),
		zap.Int("db", cfg.DB),
		zap.String("instance_id", s.instanceID),
	)
	return s, nil
}

func (s *Store) resolveInstance(ctx context.Context, checkpoint string) error {
	if checkpoint != "" && checkpoint != "latest" {
		s.instanceID = checkpoint
		return nil
	}

	raw, err := s.client.Get(ctx, MetadataKey).Result()
	switch {
	case err == redis.Nil:
		s.instanceID = time.Now().Format(instanceIDLayout)
		return s.initializeMetadata(ctx)
	case err != nil:
		return fmt.Errorf("%w: read metadata: %v", runway.ErrStorage, err)
	}

	var meta metadataRecord
	if err := json.Unmarshal([]byte(raw), &meta); err != nil || meta.InstanceID == "" {
		s.instanceID = time.Now().Format(instanceIDLayout)
		return nil
	}
	s.instanceID = meta.InstanceID
	return nil
}

func (s *Store) initializeMetadata(ctx context.Context) error {
	now := time.Now().UTC()
	meta := metadataRecord{Metadata: runway.Metadata{
		CreatedAt:   now,
		LastUpdated: now,
		InstanceID:  s.instanceID,
	}}
	data, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("%w: encode metadata: %v", runway.ErrStorage, err)
	}
	if err := s.client.Set(ctx, MetadataKey, data, 0).Err(); err != nil {
		return fmt.Errorf("%w: initialize metadata: %v", runway.ErrStorage, err)
	}
	return nil
}

// Location returns the resolved instance ID.
func (s *Store) Location() string {
	return s.instanceID
}

// Exists reports whether the metadata key is present.
func (s *Store) Exists(ctx context.Context) (bool, error) {
	n, err := s.client.Exists(ctx, MetadataKey).Result()
	if err != nil {
		return false, fmt.Errorf("%w: exists check: %v", runway.ErrStorage, err)
	}
	return n > 0, nil
}

// Read fans out across the index sets and reassembles the full
// hierarchical snapshot.
func (s *Store) Read(ctx context.Context) (runway.Snapshot, error) {
	snap := runway.NewSnapshot(time.Now().UTC())

	raw, err := s.client.Get(ctx, MetadataKey).Result()
	if err != nil && err != redis.Nil {
		return runway.Snapshot{}, fmt.Errorf("%w: read metadata: %v", runway.ErrStorage, err)
	}
	if err == nil {
		var meta metadataRecord
		if jsonErr := json.Unmarshal([]byte(raw), &meta); jsonErr == nil {
			snap.Metadata = meta.Metadata
		}
	}

	seasonIDs, err := s.client.SMembers(ctx, AllSeasonsKey).Result()
	if err != nil {
		return runway.Snapshot{}, fmt.Errorf("%w: list seasons: %v", runway.ErrStorage, err)
	}

	for _, id := range seasonIDs {
		record, err := s.readSeason(ctx, id)
		if err != nil {
			return runway.Snapshot{}, err
		}
		if record == nil {
			continue
		}
		season := record.Season
		season.Designers = nil
		for _, url := range record.DesignerURLs {
			designer, err := s.readDesigner(ctx, url)
			if err != nil {
				return runway.Snapshot{}, err
			}
			if designer != nil {
				season.Designers = append(season.Designers, *designer)
			}
		}
		snap.Seasons = append(snap.Seasons, season)
	}
	return snap, nil
}

func (s *Store) readSeason(ctx context.Context, id string) (*seasonRecord, error) {
	name, year, ok := splitSeasonID(id)
	if !ok {
		s.logger.Warn("skipping malformed season index entry", zap.String("entry", id))
		return nil, nil
	}
	raw, err := s.client.Get(ctx, seasonKey(name, year)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read season %s: %v", runway.ErrStorage, id, err)
	}
	var record seasonRecord
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		return nil, fmt.Errorf("%w: decode season %s: %v", runway.ErrStorage, id, err)
	}
	return &record, nil
}

func (s *Store) readDesigner(ctx context.Context, url string) (*runway.Designer, error) {
	raw, err := s.client.Get(ctx, designerKey(url)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read designer %s: %v", runway.ErrStorage, url, err)
	}
	var record designerRecord
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		return nil, fmt.Errorf("%w: decode designer %s: %v", runway.ErrStorage, url, err)
	}
	designer := record.Designer
	designer.Looks = nil

	numbers, err := s.client.SMembers(ctx, lookIndex(url)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: list looks for %s: %v", runway.ErrStorage, url, err)
	}
	for _, num := range numbers {
		lookRaw, err := s.client.Get(ctx, fmt.Sprintf("runway:look:%s:%s", url, num)).Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("%w: read look %s/%s: %v", runway.ErrStorage, url, num, err)
		}
		var look runway.Look
		if err := json.Unmarshal([]byte(lookRaw), &look); err != nil {
			return nil, fmt.Errorf("%w: decode look %s/%s: %v", runway.ErrStorage, url, num, err)
		}
		designer.Looks = append(designer.Looks, look)
	}
	sortLooks(designer.Looks)
	return &designer, nil
}

// Write persists every entity under its own key in one pipeline.
// Per-key writes keep concurrent upserts serializable without a
// whole-document rewrite.
func (s *Store) Write(ctx context.Context, snap runway.Snapshot) error {
	snap.Metadata.InstanceID = s.instanceID
	pipe := s.client.TxPipeline()

	metaData, err := json.Marshal(metadataRecord{Metadata: snap.Metadata})
	if err != nil {
		return fmt.Errorf("%w: encode metadata: %v", runway.ErrStorage, err)
	}
	pipe.Set(ctx, MetadataKey, metaData, 0)

	for _, season := range snap.Seasons {
		record := seasonRecord{Season: season}
		record.Designers = nil
		for _, designer := range season.Designers {
			record.DesignerURLs = append(record.DesignerURLs, designer.URL)
		}
		data, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("%w: encode season %s: %v", runway.ErrStorage, season.Key(), err)
		}
		pipe.Set(ctx, seasonKey(season.Name, season.Year), data, 0)
		pipe.SAdd(ctx, AllSeasonsKey, seasonID(season.Name, season.Year))

		for _, designer := range season.Designers {
			dRecord := designerRecord{
				Designer:   designer,
				SeasonName: season.Name,
				SeasonYear: season.Year,
			}
			dRecord.Looks = nil
			dData, err := json.Marshal(dRecord)
			if err != nil {
				return fmt.Errorf("%w: encode designer %s: %v", runway.ErrStorage, designer.URL, err)
			}
			pipe.Set(ctx, designerKey(designer.URL), dData, 0)
			pipe.SAdd(ctx, AllDesignersKey, designer.URL)

			for _, look := range designer.Looks {
				lData, err := json.Marshal(look)
				if err != nil {
					return fmt.Errorf("%w: encode look %s/%d: %v", runway.ErrStorage, designer.URL, look.Number, err)
				}
				pipe.Set(ctx, lookKey(designer.URL, look.Number), lData, 0)
				pipe.SAdd(ctx, lookIndex(designer.URL), look.Number)
			}
		}
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: pipeline exec: %v", runway.ErrStorage, err)
	}
	return nil
}

// Close releases the Redis connection.
func (s *Store) Close() error {
	return s.client.Close()
}

// LatestInstanceID reads the resume identifier recorded in metadata,
// returning "" when no prior state exists.
func LatestInstanceID(ctx context.Context, client *redis.Client) (string, error) {
	raw, err := client.Get(ctx, MetadataKey).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("%w: read metadata: %v", runway.ErrStorage, err)
	}
	var meta metadataRecord
	if err := json.Unmarshal([]byte(raw), &meta); err != nil {
		return "", fmt.Errorf("%w: decode metadata: %v", runway.ErrStorage, err)
	}
	return meta.InstanceID, nil
}

func seasonKey(name, year string) string {
	return fmt.Sprintf(seasonKeyFmt, name, year)
}

func seasonID(name, year string) string {
	return name + "|" + year
}

func splitSeasonID(id string) (name, year string, ok bool) {
	for i := len(id) - 1; i >= 0; i-- {
		if id[i] == '|' {
			return id[:i], id[i+1:], true
		}
	}
	return "", "", false
}

func designerKey(url string) string {
	return fmt.Sprintf(designerKeyFmt, url)
}

func lookKey(url string, number int) string {
	return fmt.Sprintf(lookKeyFmt, url, number)
}

func lookIndex(url string) string {
	return fmt.Sprintf(lookIndexFmt, url)
}

func sortLooks(looks []runway.Look) {
	sort.Slice(looks, func(i, j int) bool {
		return looks[i].Number < looks[j].Number
	})
}
