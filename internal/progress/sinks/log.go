package sinks

import (
	"context"

	"go.uber.org/zap"

	"github.com/beborico/runway-crawler/internal/progress"
)

// LogSink emits structured logs for crawl milestones. It is useful
// during development or audits where a metrics backend is unavailable.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink wires a Zap logger to the sink interface.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Consume logs each event in the batch using structured fields.
func (s *LogSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		fields := []zap.Field{
			zap.String("run_id", evt.RunID),
			zap.String("stage", string(evt.Stage)),
		}
		if evt.Season != "" {
			fields = append(fields, zap.String("season", evt.Season))
		}
		if evt.Designer != "" {
			fields = append(fields, zap.String("designer", evt.Designer))
		}
		if evt.Look > 0 {
			fields = append(fields, zap.Int("look", evt.Look))
		}
		if evt.Images > 0 {
			fields = append(fields, zap.Int("images", evt.Images))
		}
		if evt.Dur > 0 {
			fields = append(fields, zap.Duration("dur", evt.Dur))
		}
		if evt.Note != "" {
			fields = append(fields, zap.String("note", evt.Note))
		}
		s.logger.Info("crawl progress", fields...)
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *LogSink) Close(context.Context) error {
	return nil
}
