package repository

import (
	"context"
	"errors"

	"github.com/vasapolrittideah/reminder-app/services/reminder-service/internal/model"
)

// ReminderRepository defines the interface for reminder-related database operations.
//
// Every mutation touches a single record. Claim and Unclaim are conditional
// updates so that concurrent scan cycles racing on one reminder observe exactly
// one successful claim.
type ReminderRepository interface {
	CreateReminder(ctx context.Context, reminder *model.Reminder) (*model.Reminder, error)
	GetReminder(ctx context.Context, id string) (*model.Reminder, error)
	ListRemindersByUser(ctx context.Context, userID string, params FilterRemindersParams) ([]*model.Reminder, error)
	UpdateReminder(ctx context.Context, id string, params UpdateReminderParams) (*model.Reminder, error)

	// SoftDeleteReminder moves a reminder to the recycle bin.
	SoftDeleteReminder(ctx context.Context, id string) error

	// SoftDeleteAllByUser moves every active reminder of a user to the recycle bin.
	SoftDeleteAllByUser(ctx context.Context, userID string) (int64, error)

	// RestoreReminder takes a reminder out of the recycle bin.
	RestoreReminder(ctx context.Context, id string) error

	// DeleteReminder removes a reminder permanently.
	DeleteReminder(ctx context.Context, id string) error

	// PurgeDeletedByUser permanently removes every soft-deleted reminder of a user.
	PurgeDeletedByUser(ctx context.Context, userID string) (int64, error)

	// ScanAll returns every reminder in the store.
	ScanAll(ctx context.Context) ([]*model.Reminder, error)

	// Claim atomically flips completed from false to true for a reminder that
	// is not deleted. It reports false when the reminder is already claimed,
	// completed, deleted or missing.
	Claim(ctx context.Context, id string) (bool, error)

	// Unclaim resets completed to false so a later scan retries the reminder.
	Unclaim(ctx context.Context, id string) (bool, error)
}

// UpdateReminderParams defines the optional parameters for updating a reminder.
// Only the fields that are not nil will be updated. An empty RecipientEmail
// clears the override.
type UpdateReminderParams struct {
	Title          *string
	Description    *string
	ScheduledAt    *string
	RecipientEmail *string
	Completed      *bool
}

// FilterRemindersParams defines the parameters for listing a user's reminders.
type FilterRemindersParams struct {
	Deleted bool
	Limit   uint64
	Offset  uint64
}

var (
	ErrReminderNotFound     = errors.New("reminder not found")
	ErrNoReminderFields     = errors.New("no reminder fields to update")
	ErrUserNotFound         = errors.New("user not found")
	ErrUnsupportedStoreKind = errors.New("unsupported store driver")
)

func (p UpdateReminderParams) empty() bool {
	return p.Title == nil && p.Description == nil && p.ScheduledAt == nil &&
		p.RecipientEmail == nil && p.Completed == nil
}

// recipientValue maps an empty override to a NULL value.
func recipientValue(email *string) *string {
	if email == nil || *email == "" {
		return nil
	}
	return email
}
