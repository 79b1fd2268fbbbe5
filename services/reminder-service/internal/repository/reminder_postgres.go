package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/vasapolrittideah/reminder-app/services/reminder-service/internal/model"
)

const reminderTable = "reminders"

var reminderColumns = []string{
	"id",
	"user_id",
	"title",
	"description",
	"reminder_time",
	"recipient_email",
	"is_completed",
	"is_deleted",
	"deleted_at",
	"failed_attempts",
	"created_at",
	"updated_at",
}

const postgresSchema = `
CREATE TABLE IF NOT EXISTS users (
	id                TEXT PRIMARY KEY,
	email             TEXT NOT NULL UNIQUE,
	email_credentials TEXT NOT NULL DEFAULT '',
	app_password      TEXT NOT NULL DEFAULT '',
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS reminders (
	id              TEXT PRIMARY KEY,
	user_id         TEXT NOT NULL,
	title           TEXT NOT NULL,
	description     TEXT NOT NULL DEFAULT '',
	reminder_time   TEXT NOT NULL,
	recipient_email TEXT,
	is_completed    BOOLEAN NOT NULL DEFAULT FALSE,
	is_deleted      BOOLEAN NOT NULL DEFAULT FALSE,
	deleted_at      TEXT,
	failed_attempts INTEGER NOT NULL DEFAULT 0,
	claimed_at      TIMESTAMPTZ,
	created_at      TIMESTAMPTZ NOT NULL,
	updated_at      TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS reminders_user_id_idx ON reminders (user_id);
CREATE INDEX IF NOT EXISTS reminders_pending_idx ON reminders (is_completed, is_deleted);
`

// EnsureSchema creates the users and reminders tables when they do not exist.
func EnsureSchema(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, postgresSchema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

type reminderPostgresRepository struct {
	db *sqlx.DB
	sb sq.StatementBuilderType
}

// NewReminderPostgresRepository creates a ReminderRepository backed by PostgreSQL.
func NewReminderPostgresRepository(db *sqlx.DB) ReminderRepository {
	return &reminderPostgresRepository{
		db: db,
		sb: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

func (r *reminderPostgresRepository) CreateReminder(
	ctx context.Context,
	reminder *model.Reminder,
) (*model.Reminder, error) {
	now := time.Now()
	if reminder.ID == "" {
		reminder.ID = uuid.NewString()
	}
	reminder.RecipientEmail = recipientValue(reminder.RecipientEmail)
	reminder.Completed = false
	reminder.Deleted = false
	reminder.DeletedAt = nil
	reminder.CreatedAt = now
	reminder.UpdatedAt = now

	query, args, err := r.sb.Insert(reminderTable).
		Columns(reminderColumns...).
		Values(
			reminder.ID,
			reminder.UserID,
			reminder.Title,
			reminder.Description,
			reminder.ScheduledAt,
			reminder.RecipientEmail,
			reminder.Completed,
			reminder.Deleted,
			reminder.DeletedAt,
			reminder.FailedAttempts,
			reminder.CreatedAt,
			reminder.UpdatedAt,
		).
		ToSql()
	if err != nil {
		return nil, err
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("failed to insert reminder: %w", err)
	}

	return reminder, nil
}

func (r *reminderPostgresRepository) GetReminder(ctx context.Context, id string) (*model.Reminder, error) {
	query, args, err := r.sb.Select(reminderColumns...).
		From(reminderTable).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, err
	}

	var reminder model.Reminder
	if err := r.db.GetContext(ctx, &reminder, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrReminderNotFound
		}
		return nil, fmt.Errorf("failed to get reminder: %w", err)
	}

	return &reminder, nil
}

func (r *reminderPostgresRepository) ListRemindersByUser(
	ctx context.Context,
	userID string,
	params FilterRemindersParams,
) ([]*model.Reminder, error) {
	builder := r.sb.Select(reminderColumns...).
		From(reminderTable).
		Where(sq.Eq{"user_id": userID}).
		Where(sq.Eq{"is_deleted": params.Deleted}).
		OrderBy("reminder_time ASC")
	if params.Limit > 0 {
		builder = builder.Limit(params.Limit)
	}
	if params.Offset > 0 {
		builder = builder.Offset(params.Offset)
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, err
	}

	var reminders []*model.Reminder
	if err := r.db.SelectContext(ctx, &reminders, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list reminders: %w", err)
	}

	return reminders, nil
}

func (r *reminderPostgresRepository) UpdateReminder(
	ctx context.Context,
	id string,
	params UpdateReminderParams,
) (*model.Reminder, error) {
	if params.empty() {
		return nil, ErrNoReminderFields
	}

	builder := r.sb.Update(reminderTable)
	if params.Title != nil {
		builder = builder.Set("title", *params.Title)
	}
	if params.Description != nil {
		builder = builder.Set("description", *params.Description)
	}
	if params.ScheduledAt != nil {
		builder = builder.Set("reminder_time", *params.ScheduledAt)
	}
	if params.RecipientEmail != nil {
		builder = builder.Set("recipient_email", recipientValue(params.RecipientEmail))
	}
	if params.Completed != nil {
		builder = builder.Set("is_completed", *params.Completed)
	}

	query, args, err := builder.
		Set("updated_at", time.Now()).
		Where(sq.Eq{"id": id}).
		Suffix("RETURNING " + strings.Join(reminderColumns, ", ")).
		ToSql()
	if err != nil {
		return nil, err
	}

	var reminder model.Reminder
	if err := r.db.GetContext(ctx, &reminder, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrReminderNotFound
		}
		return nil, fmt.Errorf("failed to update reminder: %w", err)
	}

	return &reminder, nil
}

func (r *reminderPostgresRepository) SoftDeleteReminder(ctx context.Context, id string) error {
	now := time.Now()
	n, err := r.exec(ctx, r.sb.Update(reminderTable).
		Set("is_deleted", true).
		Set("deleted_at", model.FormatTimestamp(now)).
		Set("updated_at", now).
		Where(sq.Eq{"id": id}).
		Where(sq.Eq{"is_deleted": false}))
	if err != nil {
		return fmt.Errorf("failed to delete reminder: %w", err)
	}
	if n == 0 {
		return ErrReminderNotFound
	}

	return nil
}

func (r *reminderPostgresRepository) SoftDeleteAllByUser(ctx context.Context, userID string) (int64, error) {
	now := time.Now()
	n, err := r.exec(ctx, r.sb.Update(reminderTable).
		Set("is_deleted", true).
		Set("deleted_at", model.FormatTimestamp(now)).
		Set("updated_at", now).
		Where(sq.Eq{"user_id": userID}).
		Where(sq.Eq{"is_deleted": false}))
	if err != nil {
		return 0, fmt.Errorf("failed to delete reminders: %w", err)
	}

	return n, nil
}

func (r *reminderPostgresRepository) RestoreReminder(ctx context.Context, id string) error {
	n, err := r.exec(ctx, r.sb.Update(reminderTable).
		Set("is_deleted", false).
		Set("deleted_at", nil).
		Set("updated_at", time.Now()).
		Where(sq.Eq{"id": id}).
		Where(sq.Eq{"is_deleted": true}))
	if err != nil {
		return fmt.Errorf("failed to restore reminder: %w", err)
	}
	if n == 0 {
		return ErrReminderNotFound
	}

	return nil
}

func (r *reminderPostgresRepository) DeleteReminder(ctx context.Context, id string) error {
	n, err := r.exec(ctx, r.sb.Delete(reminderTable).Where(sq.Eq{"id": id}))
	if err != nil {
		return fmt.Errorf("failed to delete reminder: %w", err)
	}
	if n == 0 {
		return ErrReminderNotFound
	}

	return nil
}

func (r *reminderPostgresRepository) PurgeDeletedByUser(ctx context.Context, userID string) (int64, error) {
	n, err := r.exec(ctx, r.sb.Delete(reminderTable).
		Where(sq.Eq{"user_id": userID}).
		Where(sq.Eq{"is_deleted": true}))
	if err != nil {
		return 0, fmt.Errorf("failed to purge reminders: %w", err)
	}

	return n, nil
}

func (r *reminderPostgresRepository) ScanAll(ctx context.Context) ([]*model.Reminder, error) {
	query, args, err := r.sb.Select(reminderColumns...).From(reminderTable).ToSql()
	if err != nil {
		return nil, err
	}

	var reminders []*model.Reminder
	if err := r.db.SelectContext(ctx, &reminders, query, args...); err != nil {
		return nil, fmt.Errorf("failed to scan reminders: %w", err)
	}

	return reminders, nil
}

func (r *reminderPostgresRepository) Claim(ctx context.Context, id string) (bool, error) {
	now := time.Now()
	n, err := r.exec(ctx, r.sb.Update(reminderTable).
		Set("is_completed", true).
		Set("claimed_at", now).
		Set("updated_at", now).
		Where(sq.Eq{"id": id}).
		Where(sq.Eq{"is_completed": false}).
		Where(sq.Eq{"is_deleted": false}))
	if err != nil {
		return false, fmt.Errorf("failed to claim reminder: %w", err)
	}

	return n == 1, nil
}

func (r *reminderPostgresRepository) Unclaim(ctx context.Context, id string) (bool, error) {
	n, err := r.exec(ctx, r.sb.Update(reminderTable).
		Set("is_completed", false).
		Set("claimed_at", nil).
		Set("failed_attempts", sq.Expr("failed_attempts + 1")).
		Set("updated_at", time.Now()).
		Where(sq.Eq{"id": id}).
		Where(sq.Eq{"is_completed": true}))
	if err != nil {
		return false, fmt.Errorf("failed to unclaim reminder: %w", err)
	}

	return n == 1, nil
}

// exec runs a single-statement mutation and returns the affected row count.
func (r *reminderPostgresRepository) exec(ctx context.Context, builder sq.Sqlizer) (int64, error) {
	query, args, err := builder.ToSql()
	if err != nil {
		return 0, err
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}

	return result.RowsAffected()
}
