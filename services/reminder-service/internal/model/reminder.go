package model

import (
	"strings"
	"time"
)

// ScheduledAtLayout is the persisted text layout of Reminder.ScheduledAt.
const ScheduledAtLayout = "2006-01-02 15:04:05"

// Reminder represents a time-scheduled reminder owned by a user.
//
// ScheduledAt is stored as text and parsed at scan time, so a malformed value
// can exist in the database and must be tolerated by readers.
type Reminder struct {
	ID             string    `bson:"id"              db:"id"`
	UserID         string    `bson:"user_id"         db:"user_id"`
	Title          string    `bson:"title"           db:"title"`
	Description    string    `bson:"description"     db:"description"`
	ScheduledAt    string    `bson:"reminder_time"   db:"reminder_time"`
	RecipientEmail *string   `bson:"recipient_email" db:"recipient_email"`
	Completed      bool      `bson:"is_completed"    db:"is_completed"`
	Deleted        bool      `bson:"is_deleted"      db:"is_deleted"`
	DeletedAt      *string   `bson:"deleted_at"      db:"deleted_at"`
	FailedAttempts int       `bson:"failed_attempts" db:"failed_attempts"`
	CreatedAt      time.Time `bson:"created_at"      db:"created_at"`
	UpdatedAt      time.Time `bson:"updated_at"      db:"updated_at"`
}

// ParseScheduledAt parses ScheduledAt as a wall-clock time in loc.
func (r *Reminder) ParseScheduledAt(loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	return time.ParseInLocation(ScheduledAtLayout, r.ScheduledAt, loc)
}

// Recipient returns the override address when set, otherwise the owner's email.
func (r *Reminder) Recipient(owner *User) string {
	if r.RecipientEmail != nil {
		if email := strings.TrimSpace(*r.RecipientEmail); email != "" {
			return email
		}
	}
	return owner.Email
}

// FormatTimestamp renders t in the persisted text layout used by
// ScheduledAt and DeletedAt.
func FormatTimestamp(t time.Time) string {
	return t.Format(ScheduledAtLayout)
}
