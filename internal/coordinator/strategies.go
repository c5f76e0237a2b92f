package coordinator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/beborico/runway-crawler/internal/progress"
	"github.com/beborico/runway-crawler/internal/retry"
	"github.com/beborico/runway-crawler/internal/runway"
)

// ProcessSeasons runs the season-parallel strategy: each pending season
// is one unit, and a unit walks its designers sequentially on the
// driver assigned to its worker slot.
func (c *Coordinator) ProcessSeasons(ctx context.Context, seasons []runway.Season) (BatchResult, error) {
	pending, err := c.pendingSeasons(ctx, seasons)
	if err != nil {
		return BatchResult{}, err
	}

	units := make([]unit, 0, len(pending))
	for _, season := range pending {
		season := season
		units = append(units, unit{
			name: "season " + season.Key().String(),
			run: func(ctx context.Context, driver runway.PageDriver) error {
				return c.crawlSeason(ctx, driver, season)
			},
		})
	}
	return c.runUnits(ctx, units, false), nil
}

// ProcessSeasonDesigners runs the designer-parallel strategy for one
// season: the designer list is expanded with a single driver call, then
// pending designers are distributed across the pool.
func (c *Coordinator) ProcessSeasonDesigners(ctx context.Context, season runway.Season) (BatchResult, error) {
	key := season.Key()
	c.emitSeason(progress.StageSeasonStart, key)

	designers, err := c.expandSeason(ctx, c.pool.Driver(0), season)
	if err != nil {
		return BatchResult{}, err
	}

	pending, err := c.pendingDesigners(ctx, designers)
	if err != nil {
		return BatchResult{}, err
	}

	units := make([]unit, 0, len(pending))
	for _, designer := range pending {
		designer := designer
		units = append(units, unit{
			name: "designer " + designer.URL,
			run: func(ctx context.Context, driver runway.PageDriver) error {
				return c.processDesigner(ctx, driver, key, designer)
			},
		})
	}

	result := c.runUnits(ctx, units, false)
	c.emitSeason(progress.StageSeasonDone, key)
	return result, nil
}

// ProcessSeasonLooks runs the look-parallel strategy across one
// season: designers are expanded and walked one at a time, each show's
// looks dispatched to disposable drivers.
func (c *Coordinator) ProcessSeasonLooks(ctx context.Context, season runway.Season) (BatchResult, error) {
	key := season.Key()
	c.emitSeason(progress.StageSeasonStart, key)

	designers, err := c.expandSeason(ctx, c.pool.Driver(0), season)
	if err != nil {
		return BatchResult{}, err
	}
	pending, err := c.pendingDesigners(ctx, designers)
	if err != nil {
		return BatchResult{}, err
	}

	var result BatchResult
	for _, designer := range pending {
		res, err := c.ProcessDesignerLooks(ctx, key, designer)
		result.Merge(res)
		if err != nil {
			c.logger.Error("designer failed in look-parallel run",
				zap.String("designer_url", designer.URL),
				zap.Error(err),
			)
			result.Errors = append(result.Errors, UnitError{Unit: "designer " + designer.URL, Err: err})
		}
	}
	c.emitSeason(progress.StageSeasonDone, key)
	return result, nil
}

// ProcessDesignerLooks runs the look-parallel strategy for one show:
// look URLs are discovered up front, then each look is fetched by a
// disposable driver carrying the shared session.
func (c *Coordinator) ProcessDesignerLooks(ctx context.Context, key runway.SeasonKey, designer runway.Designer) (BatchResult, error) {
	done, err := c.state.IsDesignerComplete(ctx, designer.URL)
	if err != nil {
		return BatchResult{}, err
	}
	if done {
		return BatchResult{}, nil
	}

	driver := c.pool.Driver(0)
	slideshowURL, total, err := c.openShow(ctx, driver, designer.URL)
	if err != nil {
		return BatchResult{}, err
	}

	designer.TotalLooks = total
	if err := c.state.UpsertDesigner(ctx, key, designer); err != nil {
		return BatchResult{}, err
	}

	lookURLs := c.discoverLookURLs(ctx, slideshowURL, total)

	if err := c.sessions.Start(ctx, designer.URL); err != nil {
		return BatchResult{}, err
	}

	start := time.Now()
	c.emitDesigner(progress.StageDesignerStart, key, designer.URL, 0)

	units := make([]unit, 0, len(lookURLs))
	for i, lookURL := range lookURLs {
		number := i + 1
		lookURL := lookURL
		units = append(units, unit{
			name: fmt.Sprintf("look %d of %s", number, designer.URL),
			run: func(ctx context.Context, d runway.PageDriver) error {
				return c.processLook(ctx, d, designer.URL, number, lookURL)
			},
		})
	}

	result := c.runUnits(ctx, units, true)

	if err := c.sessions.End(ctx); err != nil {
		return result, err
	}
	c.emitDesignerDone(key, designer.URL, time.Since(start))
	return result, nil
}

// crawlSeason expands one season and processes its designers
// sequentially on one driver.
func (c *Coordinator) crawlSeason(ctx context.Context, driver runway.PageDriver, season runway.Season) error {
	key := season.Key()
	c.emitSeason(progress.StageSeasonStart, key)

	designers, err := c.expandSeason(ctx, driver, season)
	if err != nil {
		return err
	}
	pending, err := c.pendingDesigners(ctx, designers)
	if err != nil {
		return err
	}

	var failed int
	for _, designer := range pending {
		if err := c.processDesigner(ctx, driver, key, designer); err != nil {
			failed++
			c.logger.Error("designer failed inside season",
				zap.String("season", key.String()),
				zap.String("designer_url", designer.URL),
				zap.Error(err),
			)
		}
	}
	c.emitSeason(progress.StageSeasonDone, key)
	if failed > 0 {
		return fmt.Errorf("%d of %d designers failed in season %s", failed, len(pending), key)
	}
	return nil
}

// expandSeason lists a season's designers and records the season plus
// designer metadata in the store.
func (c *Coordinator) expandSeason(ctx context.Context, driver runway.PageDriver, season runway.Season) ([]runway.Designer, error) {
	var designers []runway.Designer
	err := retry.Do(ctx, c.retryCfg, func(ctx context.Context) error {
		var listErr error
		designers, listErr = driver.ListDesigners(ctx, season.URL)
		return listErr
	})
	if err != nil {
		return nil, fmt.Errorf("list designers for %s: %w", season.Key(), err)
	}

	if err := c.state.UpsertSeason(ctx, season); err != nil {
		return nil, err
	}
	key := season.Key()
	for _, designer := range designers {
		if err := c.state.UpsertDesigner(ctx, key, designer); err != nil {
			return nil, err
		}
	}
	return designers, nil
}

// processDesigner extracts a full show on one driver, then commits the
// results inside a designer session. Extraction happens before the
// session opens so the expensive page walking never holds the commit
// lock.
func (c *Coordinator) processDesigner(ctx context.Context, driver runway.PageDriver, key runway.SeasonKey, designer runway.Designer) error {
	done, err := c.state.IsDesignerComplete(ctx, designer.URL)
	if err != nil {
		return err
	}
	if done {
		return nil
	}

	start := time.Now()
	c.emitDesigner(progress.StageDesignerStart, key, designer.URL, 0)

	_, total, err := c.openShow(ctx, driver, designer.URL)
	if err != nil {
		return err
	}

	looks, err := extractLooks(ctx, driver, designer.URL)
	if err != nil {
		return err
	}

	designer.TotalLooks = total
	if err := c.commitDesigner(ctx, key, designer, looks); err != nil {
		return err
	}

	c.emitDesignerDone(key, designer.URL, time.Since(start))
	return nil
}

// processLook extracts one look page on a disposable driver and commits
// it.
func (c *Coordinator) processLook(ctx context.Context, driver runway.PageDriver, designerURL string, number int, lookURL string) error {
	if _, err := driver.OpenShow(ctx, lookURL); err != nil {
		return fmt.Errorf("open look %d at %s: %w", number, lookURL, err)
	}
	images, err := driver.CurrentLookImages(ctx)
	if err != nil {
		return fmt.Errorf("look %d of %s: %w", number, designerURL, err)
	}
	return c.commitLook(ctx, designerURL, number, images)
}

type lookData struct {
	number int
	images []runway.Image
}

// extractLooks walks the open slideshow collecting every look's images.
func extractLooks(ctx context.Context, driver runway.PageDriver, designerURL string) ([]lookData, error) {
	var looks []lookData
	for number := 1; ; number++ {
		images, err := driver.CurrentLookImages(ctx)
		if err != nil {
			return nil, fmt.Errorf("look %d of %s: %w", number, designerURL, err)
		}
		looks = append(looks, lookData{number: number, images: images})

		more, err := driver.AdvanceToNextLook(ctx)
		if err != nil {
			return nil, fmt.Errorf("advance past look %d of %s: %w", number, designerURL, err)
		}
		if !more {
			return looks, nil
		}
	}
}

// commitDesigner writes one show's results inside a designer session.
// A failed write rolls back to the last restore point before the error
// propagates, so a half-written designer never becomes visible.
func (c *Coordinator) commitDesigner(ctx context.Context, key runway.SeasonKey, designer runway.Designer, looks []lookData) error {
	c.commitMu.Lock()
	defer c.commitMu.Unlock()

	if err := c.sessions.Start(ctx, designer.URL); err != nil {
		return err
	}

	commit := func() error {
		if err := c.state.UpsertDesigner(ctx, key, designer); err != nil {
			return err
		}
		if err := c.sessions.Record(ctx); err != nil {
			return err
		}
		for _, look := range looks {
			if err := c.state.UpsertLook(ctx, designer.URL, look.number, look.images); err != nil {
				return err
			}
			if err := c.sessions.Record(ctx); err != nil {
				return err
			}
			c.emitLook(key, designer.URL, look.number, len(look.images))
		}
		return nil
	}

	if err := commit(); err != nil {
		if rbErr := c.sessions.Rollback(ctx); rbErr != nil {
			c.logger.Error("rollback after failed commit", zap.Error(rbErr))
		}
		if endErr := c.sessions.End(ctx); endErr != nil {
			c.logger.Error("end session after failed commit", zap.Error(endErr))
		}
		return err
	}
	return c.sessions.End(ctx)
}

// commitLook writes one look inside the already-open designer session.
// Storage failures roll back before propagating.
func (c *Coordinator) commitLook(ctx context.Context, designerURL string, number int, images []runway.Image) error {
	c.commitMu.Lock()
	defer c.commitMu.Unlock()

	if err := c.state.UpsertLook(ctx, designerURL, number, images); err != nil {
		if errors.Is(err, runway.ErrStorage) {
			if rbErr := c.sessions.Rollback(ctx); rbErr != nil {
				c.logger.Error("rollback after failed look write", zap.Error(rbErr))
			}
		}
		return err
	}
	if err := c.sessions.Record(ctx); err != nil {
		return err
	}
	c.emitLook(runway.SeasonKey{}, designerURL, number, len(images))
	return nil
}

// openShow navigates to a designer's slideshow and reads its size.
func (c *Coordinator) openShow(ctx context.Context, driver runway.PageDriver, designerURL string) (string, int, error) {
	slideshowURL, err := driver.OpenShow(ctx, designerURL)
	if err != nil {
		return "", 0, fmt.Errorf("open show %s: %w", designerURL, err)
	}
	if slideshowURL == "" {
		return "", 0, fmt.Errorf("%w: no slideshow for %s", runway.ErrElementNotFound, designerURL)
	}
	total, err := driver.TotalLooks(ctx)
	if err != nil {
		return "", 0, fmt.Errorf("total looks for %s: %w", designerURL, err)
	}
	if total <= 0 {
		return "", 0, fmt.Errorf("%w: show %s reports no looks", runway.ErrDataExtraction, designerURL)
	}
	return slideshowURL, total, nil
}

// discoverLookURLs resolves per-look addresses, preferring the fast
// pagination probe and deriving fragment URLs otherwise.
func (c *Coordinator) discoverLookURLs(ctx context.Context, slideshowURL string, total int) []string {
	if c.looks != nil {
		urls, err := c.looks.DiscoverLookURLs(ctx, slideshowURL, total)
		if err == nil && len(urls) == total {
			return urls
		}
		if err != nil {
			c.logger.Warn("look url discovery fell back to derived addresses",
				zap.String("slideshow_url", slideshowURL),
				zap.Error(err),
			)
		}
	}
	urls := make([]string, total)
	for i := range urls {
		urls[i] = fmt.Sprintf("%s#%d", slideshowURL, i+1)
	}
	return urls
}

// pendingSeasons filters out seasons already marked complete. The cheap
// pre-dispatch check is what makes re-processing a no-op.
func (c *Coordinator) pendingSeasons(ctx context.Context, seasons []runway.Season) ([]runway.Season, error) {
	pending := make([]runway.Season, 0, len(seasons))
	for _, season := range seasons {
		done, err := c.state.IsSeasonComplete(ctx, season.Key())
		if err != nil {
			return nil, err
		}
		if done {
			c.logger.Debug("skipping completed season", zap.String("season", season.Key().String()))
			continue
		}
		pending = append(pending, season)
	}
	return pending, nil
}

func (c *Coordinator) pendingDesigners(ctx context.Context, designers []runway.Designer) ([]runway.Designer, error) {
	pending := make([]runway.Designer, 0, len(designers))
	for _, designer := range designers {
		done, err := c.state.IsDesignerComplete(ctx, designer.URL)
		if err != nil {
			return nil, err
		}
		if done {
			c.logger.Debug("skipping completed designer", zap.String("designer_url", designer.URL))
			continue
		}
		pending = append(pending, designer)
	}
	return pending, nil
}

func (c *Coordinator) emitSeason(stage progress.Stage, key runway.SeasonKey) {
	c.emitter.Emit(progress.Event{
		RunID:  c.runID,
		TS:     time.Now().UTC(),
		Stage:  stage,
		Season: key.String(),
	})
}

func (c *Coordinator) emitDesigner(stage progress.Stage, key runway.SeasonKey, url string, dur time.Duration) {
	c.emitter.Emit(progress.Event{
		RunID:    c.runID,
		TS:       time.Now().UTC(),
		Stage:    stage,
		Season:   key.String(),
		Designer: url,
		Dur:      dur,
	})
}

func (c *Coordinator) emitDesignerDone(key runway.SeasonKey, url string, dur time.Duration) {
	c.emitDesigner(progress.StageDesignerDone, key, url, dur)
}

func (c *Coordinator) emitLook(key runway.SeasonKey, designerURL string, number, images int) {
	var season string
	if key != (runway.SeasonKey{}) {
		season = key.String()
	}
	c.emitter.Emit(progress.Event{
		RunID:    c.runID,
		TS:       time.Now().UTC(),
		Stage:    progress.StageLookDone,
		Season:   season,
		Designer: designerURL,
		Look:     number,
		Images:   images,
	})
}
