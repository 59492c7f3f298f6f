package mail

import (
	"context"
	"log/slog"

	goLinkAuth "github.com/MrEthical07/goLinkAuth"
)

// LogMailer writes messages to a logger instead of delivering them. The text body
// carries the link or code, so it is for local development only.
type LogMailer struct {
	logger *slog.Logger
}

func NewLogMailer(logger *slog.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

func (m *LogMailer) Send(ctx context.Context, msg goLinkAuth.Message) error {
	m.logger.InfoContext(ctx, "mail: message",
		slog.String("kind", msg.Kind.String()),
		slog.String("from", msg.From),
		slog.String("to", msg.To),
		slog.String("subject", msg.Subject),
		slog.String("body", msg.Text),
	)
	return nil
}
