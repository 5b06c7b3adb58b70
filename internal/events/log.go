package events

import (
	"context"
	"log/slog"

	"docverify/internal/verification/models"
)

// LogPublisher records events in the log when no broker is configured.
type LogPublisher struct {
	logger *slog.Logger
}

func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) PublishRunCompleted(ctx context.Context, ev models.RunCompleted) error {
	p.logger.InfoContext(ctx, "run completed",
		"run_id", ev.RunID,
		"verdict", ev.Verdict,
		"error_codes", ev.ErrorCodes,
		"doc_type", ev.DocType,
		"processing_time_seconds", ev.ProcessingTimeSeconds,
	)
	return nil
}
