package dispatch

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/vasapolrittideah/reminder-app/services/reminder-service/internal/model"
	"github.com/vasapolrittideah/reminder-app/services/reminder-service/internal/repository"
	"github.com/vasapolrittideah/reminder-app/shared/mailer"
)

// Dispatch is a due reminder resolved to its recipient and sender.
type Dispatch struct {
	Reminder    *model.Reminder
	ScheduledAt time.Time
	Recipient   string
	Sender      mailer.Sender
}

// Classify selects the reminders that are due at now: not completed, not
// deleted and scheduled at or before now. Due reminders that cannot be sent
// are returned as skipped outcomes and left untouched in the store.
func Classify(
	ctx context.Context,
	reminders []*model.Reminder,
	now time.Time,
	users repository.UserDirectory,
	loc *time.Location,
	logger *zerolog.Logger,
) ([]Dispatch, []Outcome) {
	var (
		due     []Dispatch
		skipped []Outcome
	)

	cache := newUserCache(users)

	for _, reminder := range reminders {
		if reminder.Completed || reminder.Deleted {
			continue
		}

		scheduledAt, err := reminder.ParseScheduledAt(loc)
		if err != nil {
			logger.Warn().Err(err).
				Str("reminder_id", reminder.ID).
				Str("scheduled_at", reminder.ScheduledAt).
				Msg("skipping reminder with malformed scheduled time")
			skipped = append(skipped, Outcome{ReminderID: reminder.ID, Status: StatusSkippedBadTime, Err: err})
			continue
		}

		if scheduledAt.After(now) {
			continue
		}

		owner, err := cache.get(ctx, reminder.UserID)
		if err != nil {
			event := logger.Warn()
			if !errors.Is(err, repository.ErrUserNotFound) {
				event = logger.Error()
			}
			event.Err(err).
				Str("reminder_id", reminder.ID).
				Str("user_id", reminder.UserID).
				Msg("skipping reminder without a resolvable owner")
			skipped = append(skipped, Outcome{ReminderID: reminder.ID, Status: StatusSkippedNoUser, Err: err})
			continue
		}

		if !owner.HasSendCredentials() {
			logger.Warn().
				Str("reminder_id", reminder.ID).
				Str("user_id", owner.ID).
				Msg("skipping reminder, owner has no email credentials")
			skipped = append(skipped, Outcome{ReminderID: reminder.ID, Status: StatusSkippedNoCredentials})
			continue
		}

		due = append(due, Dispatch{
			Reminder:    reminder,
			ScheduledAt: scheduledAt,
			Recipient:   reminder.Recipient(owner),
			Sender:      mailer.Sender{Address: owner.EmailCredentials, Password: owner.AppPassword},
		})
	}

	return due, skipped
}

// userCache memoizes owner lookups for the duration of one cycle.
type userCache struct {
	users   repository.UserDirectory
	found   map[string]*model.User
	missing map[string]error
}

func newUserCache(users repository.UserDirectory) *userCache {
	return &userCache{
		users:   users,
		found:   make(map[string]*model.User),
		missing: make(map[string]error),
	}
}

func (c *userCache) get(ctx context.Context, id string) (*model.User, error) {
	if user, ok := c.found[id]; ok {
		return user, nil
	}
	if err, ok := c.missing[id]; ok {
		return nil, err
	}

	user, err := c.users.GetUserByID(ctx, id)
	if err != nil {
		c.missing[id] = err
		return nil, err
	}

	c.found[id] = user
	return user, nil
}
