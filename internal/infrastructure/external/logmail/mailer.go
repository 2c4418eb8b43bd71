// Package logmail provides a port.Mailer that writes messages to the log
// instead of delivering them. Used when no mail backend is configured.
package logmail

import (
	"context"

	"go.uber.org/zap"

	"github.com/garyjia/receipt-approval/internal/application/port"
)

// Mailer logs every message it is asked to send
type Mailer struct {
	logger *zap.Logger
}

// NewMailer creates a new log mailer
func NewMailer(logger *zap.Logger) *Mailer {
	return &Mailer{logger: logger}
}

// Send logs the message and never fails
func (m *Mailer) Send(ctx context.Context, to []string, subject, html string) error {
	m.logger.Info("Mail (log backend)",
		zap.Strings("to", to),
		zap.String("subject", subject),
		zap.Int("body_size", len(html)))
	m.logger.Debug("Mail body", zap.String("subject", subject), zap.String("html", html))
	return nil
}

var _ port.Mailer = (*Mailer)(nil)
