package mailer

import (
	"context"
	"fmt"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
)

type sendGridClient interface {
	SendWithContext(ctx context.Context, email *sgmail.SGMailV3) (*rest.Response, error)
}

// SendGridTransport sends mail through the SendGrid v3 API. The message is
// sent from the sender address; the API key authorizes the account.
type SendGridTransport struct {
	client sendGridClient
}

// NewSendGridTransport creates a new SendGridTransport using apiKey.
func NewSendGridTransport(apiKey string) *SendGridTransport {
	return &SendGridTransport{client: sendgrid.NewSendClient(apiKey)}
}

func (t *SendGridTransport) Name() string {
	return TransportSendGrid
}

func (t *SendGridTransport) Send(ctx context.Context, email Email) (Receipt, error) {
	if err := email.validate(); err != nil {
		return Receipt{}, err
	}

	resp, err := t.client.SendWithContext(ctx, buildSendGridMessage(email))
	if err != nil {
		return Receipt{}, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Receipt{}, fmt.Errorf("sendgrid rejected message with status %d: %s", resp.StatusCode, resp.Body)
	}

	return Receipt{Transport: TransportSendGrid}, nil
}

func buildSendGridMessage(email Email) *sgmail.SGMailV3 {
	msg := sgmail.NewV3Mail()
	msg.SetFrom(sgmail.NewEmail("", email.From.Address))
	msg.Subject = email.Subject

	p := sgmail.NewPersonalization()
	for _, to := range email.To {
		p.AddTos(sgmail.NewEmail("", to))
	}
	msg.AddPersonalizations(p)

	msg.AddContent(sgmail.NewContent("text/plain", email.Body))
	if email.HTMLBody != "" {
		msg.AddContent(sgmail.NewContent("text/html", email.HTMLBody))
	}

	return msg
}
