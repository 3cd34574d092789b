package notifier

import (
	"context"

	"agromart/pkg/telemetry"

	"go.uber.org/zap"
)

type Email struct {
	To      string
	Subject string
	Body    string
	// Sensitive bodies are never logged.
	Sensitive bool
}

type Sender interface {
	Send(ctx context.Context, e Email) error
}

// LogSender writes emails to the log instead of delivering them.
type LogSender struct {
	logger *zap.Logger
}

func NewLogSender(logger *zap.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(ctx context.Context, e Email) error {
	body := e.Body
	if e.Sensitive {
		body = "[redacted]"
	}
	s.logger.Info("Email sent",
		zap.String("trace_id", telemetry.GetTraceID(ctx)),
		zap.String("to", e.To),
		zap.String("subject", e.Subject),
		zap.String("body", body),
	)
	return nil
}
