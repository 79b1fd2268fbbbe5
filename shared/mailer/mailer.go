package mailer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// Transport names.
const (
	TransportSMTP     = "smtp"
	TransportSendGrid = "sendgrid"
	TransportLog      = "log"
)

var (
	ErrNoRecipients      = errors.New("no recipients specified")
	ErrMissingSender     = errors.New("sender address is required")
	ErrUnknownTransport  = errors.New("unknown mail transport")
	ErrSimulatedDisabled = errors.New("log-only mail transport is not allowed in production")
)

// Transport delivers a single outbound email. Implementations never retry;
// any returned error means the message was not handed to the provider.
type Transport interface {
	Send(ctx context.Context, email Email) (Receipt, error)
	Name() string
}

// Sender identifies who a message is sent on behalf of. Password is only used
// by transports that authenticate as the sender.
type Sender struct {
	Address  string
	Password string
}

// Email represents an email message.
type Email struct {
	From     Sender
	To       []string
	Subject  string
	Body     string
	HTMLBody string
}

// Receipt describes an accepted message. Simulated is set when the message was
// only logged and never left the process.
type Receipt struct {
	Transport string
	Simulated bool
}

func (e Email) validate() error {
	if len(e.To) == 0 {
		return ErrNoRecipients
	}
	if strings.TrimSpace(e.From.Address) == "" {
		return ErrMissingSender
	}
	return nil
}

// NewTransport builds the transport selected by cfg.
func NewTransport(logger *zerolog.Logger, cfg Config) (Transport, error) {
	kind := cfg.resolveKind()

	switch kind {
	case TransportSMTP:
		return NewSMTPTransport(cfg.SMTPHost, cfg.SMTPPort), nil
	case TransportSendGrid:
		return NewSendGridTransport(cfg.SendGridAPIKey), nil
	case TransportLog:
		logger.Warn().
			Str("transport", TransportLog).
			Msg("no mail provider configured, reminder emails will be logged and not sent")
		return NewLogTransport(logger), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownTransport, kind)
	}
}
