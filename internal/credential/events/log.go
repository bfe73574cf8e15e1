package events

import (
	"context"
	"log/slog"
)

// LogPublisher writes each event as a structured audit line.
type LogPublisher struct {
	logger *slog.Logger
}

// NewLogPublisher creates a publisher writing to logger.
func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(ctx context.Context, event Event) error {
	if p.logger == nil {
		return nil
	}
	args := []any{
		"event", string(event.Kind),
		"log_type", "audit",
		"occurred_at", event.OccurredAt,
	}
	if !event.CredentialID.IsNil() {
		args = append(args, "credential_id", uint64(event.CredentialID))
	}
	if !event.Identity.IsNil() {
		args = append(args, "identity", event.Identity.String())
	}
	if event.StudentName != "" {
		args = append(args, "student_name", event.StudentName)
	}
	if event.CourseName != "" {
		args = append(args, "course_name", event.CourseName)
	}
	if event.RequestID != "" {
		args = append(args, "request_id", event.RequestID)
	}
	p.logger.InfoContext(ctx, string(event.Kind), args...)
	return nil
}

var _ Publisher = (*LogPublisher)(nil)
