package mailer

import (
	"fmt"
)

// Config holds the outbound mail configuration.
type Config struct {
	Transport      string `env:"MAIL_TRANSPORT"`
	AllowSimulated bool   `env:"MAIL_ALLOW_SIMULATED" envDefault:"false"`
	SMTPHost       string `env:"SMTP_HOST"`
	SMTPPort       int    `env:"SMTP_PORT"            envDefault:"587"`
	SendGridAPIKey string `env:"SENDGRID_API_KEY"`
}

// resolveKind returns the configured transport, or picks one from the
// available credentials when MAIL_TRANSPORT is empty.
func (c Config) resolveKind() string {
	if c.Transport != "" {
		return c.Transport
	}
	switch {
	case c.SendGridAPIKey != "":
		return TransportSendGrid
	case c.SMTPHost != "":
		return TransportSMTP
	default:
		return TransportLog
	}
}

// Validate checks the mail configuration. In production the log-only
// transport must be opted into explicitly.
func (c Config) Validate(production bool) error {
	switch c.resolveKind() {
	case TransportSMTP:
		if c.SMTPHost == "" {
			return fmt.Errorf("missing SMTP_HOST environment variable")
		}
		if c.SMTPPort == 0 {
			return fmt.Errorf("missing SMTP_PORT environment variable")
		}
	case TransportSendGrid:
		if c.SendGridAPIKey == "" {
			return fmt.Errorf("missing SENDGRID_API_KEY environment variable")
		}
	case TransportLog:
		if production && !c.AllowSimulated {
			return ErrSimulatedDisabled
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownTransport, c.Transport)
	}

	return nil
}
