package model

import (
	"time"
)

// User is the owner of reminders. The dispatch engine only reads it.
//
// EmailCredentials is the sender address used for the user's reminders and
// AppPassword the SMTP app password authorizing it.
type User struct {
	ID               string    `bson:"id"                db:"id"`
	Email            string    `bson:"email"             db:"email"`
	EmailCredentials string    `bson:"email_credentials" db:"email_credentials"`
	AppPassword      string    `bson:"app_password"      db:"app_password"`
	CreatedAt        time.Time `bson:"created_at"        db:"created_at"`
}

// HasSendCredentials reports whether the user can act as a sender.
func (u *User) HasSendCredentials() bool {
	return u.EmailCredentials != "" && u.AppPassword != ""
}
