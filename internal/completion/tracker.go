// Package completion derives completion state and aggregate progress
// from a snapshot. Everything here is pure: no I/O, no clocks except
// the ones passed in, so invariants are testable in isolation.
package completion

import (
	"math"
	"sync"
	"time"

	"github.com/beborico/runway-crawler/internal/runway"
)

// Recompute applies the completion invariants bottom-up and returns the
// updated snapshot. Image validity decides Look.Completed, completed
// looks decide Designer.ExtractedLooks/Completed, completed designers
// decide Season counters, and the roll-up lands in Metadata.Progress.
// Counters are always derived from the collections, never incremented,
// so out-of-order concurrent completions cannot drift them.
func Recompute(snap runway.Snapshot, now time.Time) runway.Snapshot {
	var progress runway.Progress

	for i := range snap.Seasons {
		season := &snap.Seasons[i]
		completedDesigners := 0
		for j := range season.Designers {
			designer := &season.Designers[j]
			extracted := 0
			for k := range designer.Looks {
				look := &designer.Looks[k]
				look.Completed = lookComplete(*look)
				if look.Completed {
					extracted++
				}
			}
			designer.ExtractedLooks = extracted
			designer.Completed = designer.TotalLooks > 0 && extracted >= designer.TotalLooks
			if designer.Completed {
				completedDesigners++
			}
			progress.TotalDesigners++
			progress.TotalLooks += designer.TotalLooks
			progress.ExtractedLooks += extracted
		}
		season.TotalDesigners = len(season.Designers)
		season.CompletedDesigners = completedDesigners
		season.Completed = season.TotalDesigners > 0 && completedDesigners >= season.TotalDesigners

		progress.TotalSeasons++
		if season.Completed {
			progress.CompletedSeasons++
		}
		progress.CompletedDesigners += completedDesigners
	}

	progress.CompletionPercentage = percentage(progress.ExtractedLooks, progress.TotalLooks)
	// Preserve the previously sampled rate estimate; only the estimator
	// overwrites it.
	progress.ExtractionRate = snap.Metadata.Progress.ExtractionRate
	progress.EstimatedCompletion = snap.Metadata.Progress.EstimatedCompletion

	snap.Metadata.Progress = progress
	snap.Metadata.LastUpdated = now
	return snap
}

func lookComplete(look runway.Look) bool {
	if len(look.Images) == 0 {
		return false
	}
	for _, img := range look.Images {
		if img.URL == "" || img.LookNumber == 0 || img.Type == "" || img.Timestamp.IsZero() {
			return false
		}
	}
	return true
}

func percentage(done, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(done)/float64(total)*10000) / 100
}

// RateEstimator samples extracted-look counts over time and derives an
// extraction rate plus an ETA. Safe for concurrent use.
type RateEstimator struct {
	mu            sync.Mutex
	lastSample    time.Time
	lastExtracted int
	rate          float64
}

// Sample records the current extracted count. It returns the looks/sec
// rate and, when the rate is positive, the estimated completion time.
func (e *RateEstimator) Sample(extracted, total int, now time.Time) (float64, *time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.lastSample.IsZero() {
		elapsed := now.Sub(e.lastSample).Seconds()
		delta := extracted - e.lastExtracted
		if elapsed > 0 && delta > 0 {
			e.rate = float64(delta) / elapsed
		}
	}
	e.lastSample = now
	e.lastExtracted = extracted

	if e.rate <= 0 || total <= extracted {
		return e.rate, nil
	}
	remaining := float64(total-extracted) / e.rate
	eta := now.Add(time.Duration(remaining * float64(time.Second)))
	return e.rate, &eta
}
