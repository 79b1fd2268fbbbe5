package mailer

import (
	"context"

	"github.com/rs/zerolog"
)

// LogTransport is the development fallback used when no provider is
// configured. It writes the message to the log and reports a simulated
// receipt; nothing is delivered.
type LogTransport struct {
	logger *zerolog.Logger
}

// NewLogTransport creates a new LogTransport.
func NewLogTransport(logger *zerolog.Logger) *LogTransport {
	return &LogTransport{logger: logger}
}

func (t *LogTransport) Name() string {
	return TransportLog
}

func (t *LogTransport) Send(_ context.Context, email Email) (Receipt, error) {
	if err := email.validate(); err != nil {
		return Receipt{}, err
	}

	t.logger.Warn().
		Str("transport", TransportLog).
		Bool("simulated", true).
		Str("from", email.From.Address).
		Strs("to", email.To).
		Str("subject", email.Subject).
		Str("body", email.Body).
		Msg("email logged, not sent")

	return Receipt{Transport: TransportLog, Simulated: true}, nil
}
