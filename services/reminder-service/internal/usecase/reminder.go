package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/vasapolrittideah/reminder-app/services/reminder-service/internal/model"
	"github.com/vasapolrittideah/reminder-app/services/reminder-service/internal/repository"
	"github.com/vasapolrittideah/reminder-app/shared/mailer"
)

// ReminderUsecase defines the business logic for managing a user's reminders.
type ReminderUsecase interface {
	CreateReminder(ctx context.Context, userID string, params CreateReminderParams) (*model.Reminder, error)
	ListReminders(ctx context.Context, userID string, page Page) ([]*model.Reminder, error)
	GetReminder(ctx context.Context, userID, id string) (*model.Reminder, error)

	// UpdateReminder applies a partial update. Moving the scheduled time into
	// the future re-opens a reminder that was already sent.
	UpdateReminder(ctx context.Context, userID, id string, params UpdateReminderParams) (*model.Reminder, error)

	// DeleteReminder moves a reminder to the recycle bin.
	DeleteReminder(ctx context.Context, userID, id string) error
	DeleteAllReminders(ctx context.Context, userID string) (int64, error)

	ListDeleted(ctx context.Context, userID string, page Page) ([]*model.Reminder, error)
	RestoreReminder(ctx context.Context, userID, id string) error
	PermanentlyDeleteReminder(ctx context.Context, userID, id string) error
	EmptyRecycleBin(ctx context.Context, userID string) (int64, error)

	// SendTestEmail sends a test message with the user's sender credentials.
	// An empty recipient defaults to the user's account email.
	SendTestEmail(ctx context.Context, userID, recipient string) (mailer.Receipt, error)
}

// CreateReminderParams defines the parameters for creating a reminder.
type CreateReminderParams struct {
	Title          string
	Description    string
	ScheduledAt    string
	RecipientEmail *string
}

// UpdateReminderParams defines the optional parameters for updating a reminder.
type UpdateReminderParams struct {
	Title          *string
	Description    *string
	ScheduledAt    *string
	RecipientEmail *string
}

// Page bounds a listing.
type Page struct {
	Limit  uint64
	Offset uint64
}

var (
	ErrReminderNotOwned   = errors.New("reminder does not belong to user")
	ErrReminderNotInTrash = errors.New("reminder is not in the recycle bin")
	ErrInvalidScheduledAt = errors.New("invalid reminder time")
	ErrScheduledInPast    = errors.New("reminder time must be in the future")
	ErrNoEmailCredentials = errors.New("email credentials are not configured")
)

type reminderUsecase struct {
	reminderRepo repository.ReminderRepository
	userDir      repository.UserDirectory
	transport    mailer.Transport
	loc          *time.Location
	now          func() time.Time
}

// NewReminderUsecase creates a new instance of ReminderUsecase.
func NewReminderUsecase(
	reminderRepo repository.ReminderRepository,
	userDir repository.UserDirectory,
	transport mailer.Transport,
	loc *time.Location,
) ReminderUsecase {
	if loc == nil {
		loc = time.Local
	}

	return &reminderUsecase{
		reminderRepo: reminderRepo,
		userDir:      userDir,
		transport:    transport,
		loc:          loc,
		now:          time.Now,
	}
}

func (u *reminderUsecase) CreateReminder(
	ctx context.Context,
	userID string,
	params CreateReminderParams,
) (*model.Reminder, error) {
	scheduledAt, err := u.parseScheduledAt(params.ScheduledAt)
	if err != nil {
		return nil, err
	}

	if !scheduledAt.After(u.now()) {
		return nil, ErrScheduledInPast
	}

	return u.reminderRepo.CreateReminder(ctx, &model.Reminder{
		UserID:         userID,
		Title:          params.Title,
		Description:    params.Description,
		ScheduledAt:    model.FormatTimestamp(scheduledAt),
		RecipientEmail: params.RecipientEmail,
	})
}

func (u *reminderUsecase) ListReminders(ctx context.Context, userID string, page Page) ([]*model.Reminder, error) {
	return u.reminderRepo.ListRemindersByUser(ctx, userID, repository.FilterRemindersParams{
		Limit:  page.Limit,
		Offset: page.Offset,
	})
}

func (u *reminderUsecase) GetReminder(ctx context.Context, userID, id string) (*model.Reminder, error) {
	return u.getActive(ctx, userID, id)
}

func (u *reminderUsecase) UpdateReminder(
	ctx context.Context,
	userID, id string,
	params UpdateReminderParams,
) (*model.Reminder, error) {
	if _, err := u.getActive(ctx, userID, id); err != nil {
		return nil, err
	}

	update := repository.UpdateReminderParams{
		Title:          params.Title,
		Description:    params.Description,
		RecipientEmail: params.RecipientEmail,
	}

	if params.ScheduledAt != nil {
		scheduledAt, err := u.parseScheduledAt(*params.ScheduledAt)
		if err != nil {
			return nil, err
		}

		formatted := model.FormatTimestamp(scheduledAt)
		update.ScheduledAt = &formatted

		if scheduledAt.After(u.now()) {
			reopen := false
			update.Completed = &reopen
		}
	}

	return u.reminderRepo.UpdateReminder(ctx, id, update)
}

func (u *reminderUsecase) DeleteReminder(ctx context.Context, userID, id string) error {
	if _, err := u.getActive(ctx, userID, id); err != nil {
		return err
	}

	return u.reminderRepo.SoftDeleteReminder(ctx, id)
}

func (u *reminderUsecase) DeleteAllReminders(ctx context.Context, userID string) (int64, error) {
	return u.reminderRepo.SoftDeleteAllByUser(ctx, userID)
}

func (u *reminderUsecase) ListDeleted(ctx context.Context, userID string, page Page) ([]*model.Reminder, error) {
	return u.reminderRepo.ListRemindersByUser(ctx, userID, repository.FilterRemindersParams{
		Deleted: true,
		Limit:   page.Limit,
		Offset:  page.Offset,
	})
}

func (u *reminderUsecase) RestoreReminder(ctx context.Context, userID, id string) error {
	if _, err := u.getDeleted(ctx, userID, id); err != nil {
		return err
	}

	return u.reminderRepo.RestoreReminder(ctx, id)
}

func (u *reminderUsecase) PermanentlyDeleteReminder(ctx context.Context, userID, id string) error {
	if _, err := u.getDeleted(ctx, userID, id); err != nil {
		return err
	}

	return u.reminderRepo.DeleteReminder(ctx, id)
}

func (u *reminderUsecase) EmptyRecycleBin(ctx context.Context, userID string) (int64, error) {
	return u.reminderRepo.PurgeDeletedByUser(ctx, userID)
}

func (u *reminderUsecase) SendTestEmail(ctx context.Context, userID, recipient string) (mailer.Receipt, error) {
	user, err := u.userDir.GetUserByID(ctx, userID)
	if err != nil {
		return mailer.Receipt{}, err
	}

	if !user.HasSendCredentials() {
		return mailer.Receipt{}, ErrNoEmailCredentials
	}

	if recipient == "" {
		recipient = user.Email
	}

	sender := mailer.Sender{Address: user.EmailCredentials, Password: user.AppPassword}

	return u.transport.Send(ctx, mailer.TestEmail(sender, recipient))
}

// getOwned loads a reminder and checks that it belongs to userID.
func (u *reminderUsecase) getOwned(ctx context.Context, userID, id string) (*model.Reminder, error) {
	reminder, err := u.reminderRepo.GetReminder(ctx, id)
	if err != nil {
		return nil, err
	}

	if reminder.UserID != userID {
		return nil, ErrReminderNotOwned
	}

	return reminder, nil
}

func (u *reminderUsecase) getActive(ctx context.Context, userID, id string) (*model.Reminder, error) {
	reminder, err := u.getOwned(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	// Reminders in the recycle bin are only reachable through the trash operations.
	if reminder.Deleted {
		return nil, repository.ErrReminderNotFound
	}

	return reminder, nil
}

func (u *reminderUsecase) getDeleted(ctx context.Context, userID, id string) (*model.Reminder, error) {
	reminder, err := u.getOwned(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	if !reminder.Deleted {
		return nil, ErrReminderNotInTrash
	}

	return reminder, nil
}

func (u *reminderUsecase) parseScheduledAt(value string) (time.Time, error) {
	scheduledAt, err := time.ParseInLocation(model.ScheduledAtLayout, value, u.loc)
	if err != nil {
		return time.Time{}, ErrInvalidScheduledAt
	}

	return scheduledAt, nil
}
