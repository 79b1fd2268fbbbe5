package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"github.com/vasapolrittideah/reminder-app/services/reminder-service/internal/model"
)

type userPostgresDirectory struct {
	db *sqlx.DB
	sb sq.StatementBuilderType
}

// NewUserPostgresDirectory creates a UserDirectory backed by the users table.
func NewUserPostgresDirectory(db *sqlx.DB) UserDirectory {
	return &userPostgresDirectory{
		db: db,
		sb: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

func (d *userPostgresDirectory) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	query, args, err := d.sb.Select("id", "email", "email_credentials", "app_password", "created_at").
		From("users").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, err
	}

	var user model.User
	if err := d.db.GetContext(ctx, &user, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return &user, nil
}
