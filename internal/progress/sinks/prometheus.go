package sinks

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/beborico/runway-crawler/internal/progress"
)

// PrometheusSink exports crawl progress metrics. It owns all collectors
// for run lifecycle, per-season designer completions, look throughput,
// and unit failures.
type PrometheusSink struct {
	runsStarted        prometheus.Counter
	runsCompleted      *prometheus.CounterVec
	seasonsCompleted   prometheus.Counter
	designersCompleted *prometheus.CounterVec
	looksExtracted     prometheus.Counter
	imagesExtracted    prometheus.Counter
	unitErrors         *prometheus.CounterVec
	designerRuntime    prometheus.Histogram
}

// NewPrometheusSink registers the collectors against the provided
// registry.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		runsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "runway_runs_started_total",
			Help: "Total crawl runs that have started.",
		}),
		runsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "runway_runs_completed_total",
			Help: "Total crawl runs completed partitioned by result.",
		}, []string{"result"}),
		seasonsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "runway_seasons_completed_total",
			Help: "Seasons fully processed.",
		}),
		designersCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "runway_designers_completed_total",
			Help: "Designer shows fully extracted, partitioned by season.",
		}, []string{"season"}),
		looksExtracted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "runway_looks_extracted_total",
			Help: "Looks extracted with at least one valid image.",
		}),
		imagesExtracted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "runway_images_extracted_total",
			Help: "Images recorded across all looks.",
		}),
		unitErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "runway_unit_errors_total",
			Help: "Unit-level failures partitioned by crawl stage.",
		}, []string{"stage"}),
		designerRuntime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "runway_designer_runtime_seconds",
			Help:    "Wall time per completed designer show.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}),
	}
	for _, collector := range []prometheus.Collector{
		s.runsStarted,
		s.runsCompleted,
		s.seasonsCompleted,
		s.designersCompleted,
		s.looksExtracted,
		s.imagesExtracted,
		s.unitErrors,
		s.designerRuntime,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the collectors using the provided batch. It is safe
// for concurrent use by multiple goroutines.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		s.consumeEvent(evt)
	}
	return nil
}

func (s *PrometheusSink) consumeEvent(evt progress.Event) {
	switch evt.Stage {
	case progress.StageRunStart:
		s.runsStarted.Inc()
	case progress.StageRunDone:
		s.runsCompleted.WithLabelValues("success").Inc()
	case progress.StageRunError:
		s.runsCompleted.WithLabelValues("error").Inc()
	case progress.StageSeasonDone:
		s.seasonsCompleted.Inc()
	case progress.StageDesignerDone:
		season := evt.Season
		if season == "" {
			season = "unknown"
		}
		s.designersCompleted.WithLabelValues(season).Inc()
		if evt.Dur > 0 {
			s.designerRuntime.Observe(evt.Dur.Seconds())
		}
	case progress.StageLookDone:
		s.looksExtracted.Inc()
		if evt.Images > 0 {
			s.imagesExtracted.Add(float64(evt.Images))
		}
	case progress.StageUnitError:
		stage := "unknown"
		switch {
		case evt.Look > 0:
			stage = "look"
		case evt.Designer != "":
			stage = "designer"
		case evt.Season != "":
			stage = "season"
		}
		s.unitErrors.WithLabelValues(stage).Inc()
	}
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}
