// Package state implements the typed store over a storage backend:
// merge-preserving upserts, derived completion roll-up, and
// chronologically ordered reads.
package state

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/beborico/runway-crawler/internal/completion"
	"github.com/beborico/runway-crawler/internal/runway"
	"github.com/beborico/runway-crawler/internal/storage"
)

// Store provides entity-level read/write/upsert operations. Every
// upsert is a read-modify-recompute-write cycle guarded by one mutex,
// so concurrent workers cannot lose each other's updates on the shared
// snapshot.
type Store struct {
	mu        sync.Mutex
	backend   storage.Backend
	estimator *completion.RateEstimator
	sortDesc  bool
	logger    *zap.Logger
	now       func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithDescendingSeasons orders reads newest-first.
func WithDescendingSeasons(desc bool) Option {
	return func(s *Store) { s.sortDesc = desc }
}

// New constructs a Store over the given backend.
func New(backend storage.Backend, logger *zap.Logger, opts ...Option) *Store {
	s := &Store{
		backend:   backend,
		estimator: &completion.RateEstimator{},
		logger:    logger,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ReadAll returns the current snapshot with seasons in chronological
// order, so consumers never sort themselves.
func (s *Store) ReadAll(ctx context.Context) (runway.Snapshot, error) {
	snap, err := s.backend.Read(ctx)
	if err != nil {
		return runway.Snapshot{}, err
	}
	runway.SortSeasons(snap.Seasons, s.sortDesc)
	return snap, nil
}

// UpsertSeason inserts or updates a season by natural key, preserving
// its nested designers and derived fields.
func (s *Store) UpsertSeason(ctx context.Context, season runway.Season) error {
	if season.Name == "" || season.Year == "" {
		return fmt.Errorf("%w: season requires name and year", runway.ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snap, err := s.backend.Read(ctx)
	if err != nil {
		return err
	}

	if existing := snap.FindSeason(season.Key()); existing != nil {
		existing.URL = season.URL
	} else {
		season.Designers = nil
		season.Completed = false
		season.TotalDesigners = 0
		season.CompletedDesigners = 0
		snap.Seasons = append(snap.Seasons, season)
	}

	return s.persist(ctx, snap)
}

// UpsertDesigner inserts or updates a designer inside a season,
// preserving its looks. The season must already exist.
func (s *Store) UpsertDesigner(ctx context.Context, key runway.SeasonKey, designer runway.Designer) error {
	if designer.URL == "" {
		return fmt.Errorf("%w: designer requires a url", runway.ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snap, err := s.backend.Read(ctx)
	if err != nil {
		return err
	}

	season := snap.FindSeason(key)
	if season == nil {
		return fmt.Errorf("%w: unknown season %s", runway.ErrValidation, key)
	}

	merged := false
	for i := range season.Designers {
		if season.Designers[i].URL == designer.URL {
			existing := &season.Designers[i]
			if designer.Name != "" {
				existing.Name = designer.Name
			}
			if designer.TotalLooks > 0 {
				existing.TotalLooks = designer.TotalLooks
			}
			merged = true
			break
		}
	}
	if !merged {
		designer.Looks = nil
		designer.Completed = false
		designer.ExtractedLooks = 0
		season.Designers = append(season.Designers, designer)
	}

	return s.persist(ctx, snap)
}

// UpsertLook records images for one look of a designer. The operation
// is additive: new images are appended and deduplicated by URL so
// repeated partial extraction passes converge instead of losing data.
func (s *Store) UpsertLook(ctx context.Context, designerURL string, lookNumber int, images []runway.Image) error {
	if lookNumber <= 0 {
		return fmt.Errorf("%w: look number %d out of range", runway.ErrValidation, lookNumber)
	}
	if len(images) == 0 {
		return fmt.Errorf("%w: look %d has no images", runway.ErrValidation, lookNumber)
	}
	for _, img := range images {
		if err := validateImage(img, lookNumber); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snap, err := s.backend.Read(ctx)
	if err != nil {
		return err
	}

	_, designer := snap.FindDesigner(designerURL)
	if designer == nil {
		return fmt.Errorf("%w: unknown designer %s", runway.ErrValidation, designerURL)
	}
	if designer.TotalLooks > 0 && lookNumber > designer.TotalLooks {
		return fmt.Errorf("%w: look %d exceeds total looks %d", runway.ErrValidation, lookNumber, designer.TotalLooks)
	}

	var look *runway.Look
	for i := range designer.Looks {
		if designer.Looks[i].Number == lookNumber {
			look = &designer.Looks[i]
			break
		}
	}
	if look == nil {
		designer.Looks = append(designer.Looks, runway.Look{Number: lookNumber})
		look = &designer.Looks[len(designer.Looks)-1]
	}

	seen := make(map[string]bool, len(look.Images))
	for _, img := range look.Images {
		seen[img.URL] = true
	}
	for _, img := range images {
		if seen[img.URL] {
			continue
		}
		seen[img.URL] = true
		look.Images = append(look.Images, img)
	}

	return s.persist(ctx, snap)
}

// IsSeasonComplete reports whether the season is fully extracted. Used
// as the cheap pre-dispatch check making re-processing a no-op.
func (s *Store) IsSeasonComplete(ctx context.Context, key runway.SeasonKey) (bool, error) {
	snap, err := s.backend.Read(ctx)
	if err != nil {
		return false, err
	}
	season := snap.FindSeason(key)
	return season != nil && season.Completed, nil
}

// IsDesignerComplete reports whether the designer is fully extracted.
func (s *Store) IsDesignerComplete(ctx context.Context, url string) (bool, error) {
	snap, err := s.backend.Read(ctx)
	if err != nil {
		return false, err
	}
	_, designer := snap.FindDesigner(url)
	return designer != nil && designer.Completed, nil
}

// Replace overwrites the whole snapshot. The session manager uses it to
// roll back to a restore point.
func (s *Store) Replace(ctx context.Context, snap runway.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persist(ctx, snap)
}

// SaveProgress forces a recompute-and-persist of the current state.
func (s *Store) SaveProgress(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, err := s.backend.Read(ctx)
	if err != nil {
		return err
	}
	return s.persist(ctx, snap)
}

// Location exposes the backing instance identifier.
func (s *Store) Location() string {
	return s.backend.Location()
}

func (s *Store) persist(ctx context.Context, snap runway.Snapshot) error {
	now := s.now()
	snap = completion.Recompute(snap, now)

	progress := &snap.Metadata.Progress
	rate, eta := s.estimator.Sample(progress.ExtractedLooks, progress.TotalLooks, now)
	progress.ExtractionRate = rate
	progress.EstimatedCompletion = eta

	runway.SortSeasons(snap.Seasons, s.sortDesc)

	if err := s.backend.Write(ctx, snap); err != nil {
		return err
	}
	return nil
}

func validateImage(img runway.Image, lookNumber int) error {
	switch {
	case img.URL == "":
		return fmt.Errorf("%w: image missing url", runway.ErrValidation)
	case img.LookNumber != lookNumber:
		return fmt.Errorf("%w: image look number %d does not match look %d", runway.ErrValidation, img.LookNumber, lookNumber)
	case img.Type == "":
		return fmt.Errorf("%w: image missing type", runway.ErrValidation)
	case img.Timestamp.IsZero():
		return fmt.Errorf("%w: image missing timestamp", runway.ErrValidation)
	}
	return nil
}
