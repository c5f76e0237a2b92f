package sinks

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/beborico/runway-crawler/internal/progress"
)

// TestPrometheusSinkRecordsMetrics ensures counters and histograms are incremented from events.
func TestPrometheusSinkRecordsMetrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	sink, err := NewPrometheusSink(reg)
	require.NoError(t, err)

	runID := "20250301_120000"
	designer := "https://example.test/shows/chanel"
	season := "Spring Ready-to-Wear 2025"
	batch := []progress.Event{
		{RunID: runID, TS: time.Now(), Stage: progress.StageRunStart},
		{RunID: runID, TS: time.Now(), Stage: progress.StageLookDone, Designer: designer, Look: 1, Images: 3},
		{RunID: runID, TS: time.Now(), Stage: progress.StageLookDone, Designer: designer, Look: 2, Images: 2},
		{
			RunID:    runID,
			TS:       time.Now(),
			Stage:    progress.StageDesignerDone,
			Season:   season,
			Designer: designer,
			Dur:      42 * time.Second,
		},
		{RunID: runID, TS: time.Now(), Stage: progress.StageSeasonDone, Season: season},
		{RunID: runID, TS: time.Now(), Stage: progress.StageRunDone},
	}

	require.NoError(t, sink.Consume(context.Background(), batch))

	require.Equal(t, 1.0, testutil.ToFloat64(sink.runsStarted))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.runsCompleted.WithLabelValues("success")))
	require.Equal(t, 0.0, testutil.ToFloat64(sink.runsCompleted.WithLabelValues("error")))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.seasonsCompleted))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.designersCompleted.WithLabelValues(season)))
	require.Equal(t, 2.0, testutil.ToFloat64(sink.looksExtracted))
	require.Equal(t, 5.0, testutil.ToFloat64(sink.imagesExtracted))
	require.Equal(t, 1, testutil.CollectAndCount(sink.designerRuntime, "runway_designer_runtime_seconds"))
}

// TestPrometheusSinkUnitErrors verifies failures are partitioned by the failing stage.
func TestPrometheusSinkUnitErrors(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	sink, err := NewPrometheusSink(reg)
	require.NoError(t, err)

	runID := "20250301_120000"
	batch := []progress.Event{
		{RunID: runID, TS: time.Now(), Stage: progress.StageUnitError, Season: "Fall Couture 2024"},
		{RunID: runID, TS: time.Now(), Stage: progress.StageUnitError, Designer: "https://example.test/shows/dior"},
		{
			RunID:    runID,
			TS:       time.Now(),
			Stage:    progress.StageUnitError,
			Designer: "https://example.test/shows/dior",
			Look:     7,
		},
	}

	require.NoError(t, sink.Consume(context.Background(), batch))

	require.Equal(t, 1.0, testutil.ToFloat64(sink.unitErrors.WithLabelValues("season")))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.unitErrors.WithLabelValues("designer")))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.unitErrors.WithLabelValues("look")))
}

// TestPrometheusSinkDuplicateRegistration surfaces registry conflicts.
func TestPrometheusSinkDuplicateRegistration(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	_, err := NewPrometheusSink(reg)
	require.NoError(t, err)

	_, err = NewPrometheusSink(reg)
	require.Error(t, err)
}
