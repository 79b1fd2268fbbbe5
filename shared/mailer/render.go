package mailer

import (
	"fmt"
	"html"
	"time"
)

const displayTimeLayout = "2006-01-02 15:04"

// ReminderEmail renders the notification for a due reminder.
func ReminderEmail(from Sender, to, title, description string, scheduledAt time.Time) Email {
	if description == "" {
		description = "No description provided"
	}
	when := scheduledAt.Format(displayTimeLayout)

	body := fmt.Sprintf(`Hello!

This is a reminder for: %s

Description: %s

Scheduled Time: %s

---
This is an automated reminder from the Reminder App.
`, title, description, when)

	htmlBody := fmt.Sprintf(`
		<p>Hello!</p>
		<p>This is a reminder for: <strong>%s</strong></p>
		<p>Description: %s</p>
		<p>Scheduled Time: %s</p>
		<hr>
		<p>This is an automated reminder from the Reminder App.</p>
	`, html.EscapeString(title), html.EscapeString(description), when)

	return Email{
		From:     from,
		To:       []string{to},
		Subject:  "Reminder: " + title,
		Body:     body,
		HTMLBody: htmlBody,
	}
}

// TestEmail renders the message used to verify a user's sender credentials.
func TestEmail(from Sender, to string) Email {
	return Email{
		From:    from,
		To:      []string{to},
		Subject: "Test Email from Reminder App",
		Body: `Hello!

This is a test email from the Reminder App to verify your email credentials are working correctly.

If you received this email, your settings are configured properly.

---
This is an automated test email from the Reminder App.
`,
	}
}
