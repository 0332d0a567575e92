package mail

import (
	"context"

	"github.com/dmitrijs2005/gophaccounts/internal/logging"
)

// LogSender writes messages to the log instead of delivering them. It is the
// default transport for local runs.
type LogSender struct {
	logger logging.Logger
}

func NewLogSender(logger logging.Logger) *LogSender {
	return &LogSender{logger: logger.With("module", "mail")}
}

func (s *LogSender) Send(ctx context.Context, msg Message) error {
	s.logger.Info(ctx, "mail message", "to", msg.To, "subject", msg.Subject, "body", msg.Body)
	return nil
}
