package repository

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/vasapolrittideah/reminder-app/services/reminder-service/internal/model"
)

// UserDirectory defines the read-only user lookups the reminder service needs.
// Accounts are owned by the auth service.
type UserDirectory interface {
	GetUserByID(ctx context.Context, id string) (*model.User, error)
}

const userCollection = "users"

type userMongoDirectory struct {
	db *mongo.Database
}

// NewUserMongoDirectory creates a UserDirectory backed by the users collection.
func NewUserMongoDirectory(ctx context.Context, logger *zerolog.Logger, db *mongo.Database) UserDirectory {
	collection := db.Collection(userCollection)

	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}

	_, err := collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create user indexes")
	}

	return &userMongoDirectory{db: db}
}

func (d *userMongoDirectory) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	result := d.db.Collection(userCollection).FindOne(ctx, bson.M{"id": id})
	if result.Err() != nil {
		if errors.Is(result.Err(), mongo.ErrNoDocuments) {
			return nil, ErrUserNotFound
		}
		return nil, result.Err()
	}

	var user model.User
	if err := result.Decode(&user); err != nil {
		return nil, err
	}

	return &user, nil
}
