// Package progress defines the event structures emitted by the crawl workers.
package progress

import (
	"errors"
	"fmt"
	"time"
)

// Stage denotes the milestone an Event represents.
type Stage string

// Supported crawl stages.
const (
	StageRunStart      Stage = "RUN_START"
	StageRunDone       Stage = "RUN_DONE"
	StageRunError      Stage = "RUN_ERROR"
	StageSeasonStart   Stage = "SEASON_START"
	StageSeasonDone    Stage = "SEASON_DONE"
	StageDesignerStart Stage = "DESIGNER_START"
	StageDesignerDone  Stage = "DESIGNER_DONE"
	StageLookDone      Stage = "LOOK_DONE"
	StageUnitError     Stage = "UNIT_ERROR"
)

// Event captures a single crawl milestone.
type Event struct {
	// RunID identifies the crawl instance (the checkpoint timestamp).
	RunID string
	// TS is the UTC timestamp recorded by the emitter.
	TS time.Time
	// Stage denotes which milestone occurred.
	Stage Stage
	// Season labels season-scoped events as "name year".
	Season string
	// Designer carries the designer URL for designer and look events.
	Designer string
	// Look is the look number for LOOK_DONE events.
	Look int
	// Images is the number of images extracted by this milestone.
	Images int
	// Dur captures wall time for completed units.
	Dur time.Duration
	// Note lets emitters attach low-volume context (e.g. error text).
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.RunID == "" {
		return errors.New("run id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageRunStart, StageRunDone, StageRunError, StageUnitError:
	case StageSeasonStart, StageSeasonDone:
		if e.Season == "" {
			return errors.New("season events require a season label")
		}
	case StageDesignerStart, StageDesignerDone:
		if e.Designer == "" {
			return errors.New("designer events require a designer url")
		}
	case StageLookDone:
		if e.Designer == "" || e.Look <= 0 {
			return errors.New("look events require a designer url and look number")
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}
