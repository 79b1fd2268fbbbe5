package mailer

import (
	"context"

	"gopkg.in/gomail.v2"
)

// dialFunc opens an authenticated SMTP session.
type dialFunc func(host string, port int, username, password string) (gomail.SendCloser, error)

// SMTPTransport sends mail over SMTP, authenticating as the message sender.
// Each sender brings its own app password, so a session is dialed per message.
type SMTPTransport struct {
	host string
	port int
	dial dialFunc
}

// NewSMTPTransport creates a new SMTPTransport for the given server.
func NewSMTPTransport(host string, port int) *SMTPTransport {
	return &SMTPTransport{
		host: host,
		port: port,
		dial: func(host string, port int, username, password string) (gomail.SendCloser, error) {
			return gomail.NewDialer(host, port, username, password).Dial()
		},
	}
}

func (t *SMTPTransport) Name() string {
	return TransportSMTP
}

// Send sends a single email. gomail has no context support, so a cancelled
// ctx abandons the wait and reports ctx.Err() while the dial finishes in the
// background.
func (t *SMTPTransport) Send(ctx context.Context, email Email) (Receipt, error) {
	if err := email.validate(); err != nil {
		return Receipt{}, err
	}

	msg := gomail.NewMessage()
	setEmailMessage(msg, email)

	done := make(chan error, 1)
	go func() {
		done <- t.dialAndSend(email.From, msg)
	}()

	select {
	case err := <-done:
		if err != nil {
			return Receipt{}, err
		}
		return Receipt{Transport: TransportSMTP}, nil
	case <-ctx.Done():
		return Receipt{}, ctx.Err()
	}
}

func (t *SMTPTransport) dialAndSend(from Sender, msg *gomail.Message) error {
	sender, err := t.dial(t.host, t.port, from.Address, from.Password)
	if err != nil {
		return err
	}
	defer sender.Close()

	return gomail.Send(sender, msg)
}

func setEmailMessage(msg *gomail.Message, email Email) {
	// Set headers
	msg.SetHeader("From", email.From.Address)
	msg.SetHeader("To", email.To...)
	msg.SetHeader("Subject", email.Subject)

	// Set body
	if email.HTMLBody != "" {
		msg.SetBody("text/plain", email.Body)
		msg.AddAlternative("text/html", email.HTMLBody)
	} else {
		msg.SetBody("text/plain", email.Body)
	}
}
