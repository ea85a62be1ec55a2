package notify

import (
	"context"
	"log/slog"
)

// LogChannel writes notifications to the structured log, so every
// invocation leaves a record in CloudWatch Logs even when no external
// channel is configured.
type LogChannel struct {
	log *slog.Logger
}

// NewLogChannel returns a channel logging through log.
func NewLogChannel(log *slog.Logger) *LogChannel {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &LogChannel{log: log}
}

func (l *LogChannel) Name() string { return "log" }

func (l *LogChannel) Send(ctx context.Context, msg Message) error {
	attrs := []any{
		"kind", msg.Kind,
		"subject", msg.Subject,
		"severity", msg.Severity,
		"playbook", msg.Playbook,
	}
	if msg.Finding != nil {
		attrs = append(attrs, "finding_id", msg.Finding.ID, "finding_type", msg.Finding.Type)
	}
	level := slog.LevelInfo
	if msg.Kind == KindComplete {
		attrs = append(attrs,
			"actions_succeeded", msg.Counts.Success,
			"actions_failed", msg.Counts.Error,
			"actions_skipped", msg.Counts.Skipped,
			"failed", msg.Failed,
		)
		if msg.Failed {
			level = slog.LevelWarn
		}
	}
	l.log.Log(ctx, level, "notification", attrs...)
	return nil
}
