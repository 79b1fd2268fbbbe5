package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/vasapolrittideah/reminder-app/services/reminder-service/internal/model"
)

const reminderCollection = "reminders"

type reminderMongoRepository struct {
	db     *mongo.Database
	logger *zerolog.Logger
}

// NewReminderMongoRepository creates a new MongoDB repository for reminders.
func NewReminderMongoRepository(
	ctx context.Context,
	logger *zerolog.Logger,
	db *mongo.Database,
) ReminderRepository {
	collection := db.Collection(reminderCollection)

	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "user_id", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "is_completed", Value: 1}, {Key: "is_deleted", Value: 1}},
		},
	}

	_, err := collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create reminder indexes")
	}

	return &reminderMongoRepository{db: db, logger: logger}
}

func (r *reminderMongoRepository) CreateReminder(
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

	if _, err := r.db.Collection(reminderCollection).InsertOne(ctx, reminder); err != nil {
		return nil, err
	}

	return reminder, nil
}

func (r *reminderMongoRepository) GetReminder(ctx context.Context, id string) (*model.Reminder, error) {
	var reminder model.Reminder
	err := r.db.Collection(reminderCollection).FindOne(ctx, bson.M{"id": id}).Decode(&reminder)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrReminderNotFound
		}
		return nil, err
	}

	return &reminder, nil
}

func (r *reminderMongoRepository) ListRemindersByUser(
	ctx context.Context,
	userID string,
	params FilterRemindersParams,
) ([]*model.Reminder, error) {
	findOptions := options.Find().SetSort(bson.D{{Key: "reminder_time", Value: 1}})
	if params.Limit > 0 {
		findOptions.SetLimit(int64(params.Limit))
	}
	if params.Offset > 0 {
		findOptions.SetSkip(int64(params.Offset))
	}

	cursor, err := r.db.Collection(reminderCollection).Find(ctx, userRemindersFilter(userID, params.Deleted), findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var reminders []*model.Reminder
	if err := cursor.All(ctx, &reminders); err != nil {
		return nil, err
	}

	return reminders, nil
}

func (r *reminderMongoRepository) UpdateReminder(
	ctx context.Context,
	id string,
	params UpdateReminderParams,
) (*model.Reminder, error) {
	if params.empty() {
		return nil, ErrNoReminderFields
	}

	// Build update query
	updateMap := bson.M{}
	if params.Title != nil {
		updateMap["title"] = *params.Title
	}
	if params.Description != nil {
		updateMap["description"] = *params.Description
	}
	if params.ScheduledAt != nil {
		updateMap["reminder_time"] = *params.ScheduledAt
	}
	if params.RecipientEmail != nil {
		updateMap["recipient_email"] = recipientValue(params.RecipientEmail)
	}
	if params.Completed != nil {
		updateMap["is_completed"] = *params.Completed
	}
	updateMap["updated_at"] = time.Now()

	result := r.db.Collection(reminderCollection).FindOneAndUpdate(
		ctx,
		bson.M{"id": id},
		bson.M{"$set": updateMap},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	)
	if result.Err() != nil {
		if errors.Is(result.Err(), mongo.ErrNoDocuments) {
			return nil, ErrReminderNotFound
		}
		return nil, result.Err()
	}

	var reminder model.Reminder
	if err := result.Decode(&reminder); err != nil {
		return nil, err
	}

	return &reminder, nil
}

func (r *reminderMongoRepository) SoftDeleteReminder(ctx context.Context, id string) error {
	now := time.Now()
	result, err := r.db.Collection(reminderCollection).UpdateOne(
		ctx,
		bson.M{"id": id, "is_deleted": bson.M{"$ne": true}},
		softDeleteUpdate(now),
	)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return ErrReminderNotFound
	}

	return nil
}

func (r *reminderMongoRepository) SoftDeleteAllByUser(ctx context.Context, userID string) (int64, error) {
	result, err := r.db.Collection(reminderCollection).UpdateMany(
		ctx,
		userRemindersFilter(userID, false),
		softDeleteUpdate(time.Now()),
	)
	if err != nil {
		return 0, err
	}

	return result.ModifiedCount, nil
}

func (r *reminderMongoRepository) RestoreReminder(ctx context.Context, id string) error {
	result, err := r.db.Collection(reminderCollection).UpdateOne(
		ctx,
		bson.M{"id": id, "is_deleted": true},
		bson.M{
			"$unset": bson.M{"is_deleted": "", "deleted_at": ""},
			"$set":   bson.M{"updated_at": time.Now()},
		},
	)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return ErrReminderNotFound
	}

	return nil
}

func (r *reminderMongoRepository) DeleteReminder(ctx context.Context, id string) error {
	result, err := r.db.Collection(reminderCollection).DeleteOne(ctx, bson.M{"id": id})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return ErrReminderNotFound
	}

	return nil
}

func (r *reminderMongoRepository) PurgeDeletedByUser(ctx context.Context, userID string) (int64, error) {
	result, err := r.db.Collection(reminderCollection).DeleteMany(ctx, userRemindersFilter(userID, true))
	if err != nil {
		return 0, err
	}

	return result.DeletedCount, nil
}

func (r *reminderMongoRepository) ScanAll(ctx context.Context) ([]*model.Reminder, error) {
	cursor, err := r.db.Collection(reminderCollection).Find(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	return readReminders(ctx, cursor, r.logger)
}

// readReminders drains cursor. A document that cannot be decoded is logged
// and left out so the rest of the batch is still returned.
func readReminders(ctx context.Context, cursor *mongo.Cursor, logger *zerolog.Logger) ([]*model.Reminder, error) {
	var reminders []*model.Reminder
	for cursor.Next(ctx) {
		reminder, err := decodeReminder(cursor.Current)
		if err != nil {
			id, _ := cursor.Current.Lookup("id").StringValueOK()
			logger.Warn().Err(err).Str("reminder_id", id).Msg("skipping undecodable reminder document")
			continue
		}
		reminders = append(reminders, reminder)
	}

	if err := cursor.Err(); err != nil {
		return nil, err
	}

	return reminders, nil
}

// decodeReminder decodes a reminder document. Documents imported with a
// non-string reminder_time are rewritten to text first: a BSON datetime
// becomes the persisted layout, any other type its extended JSON form, which
// the scheduler then reports as a malformed time.
func decodeReminder(raw bson.Raw) (*model.Reminder, error) {
	var reminder model.Reminder
	err := bson.Unmarshal(raw, &reminder)
	if err == nil {
		return &reminder, nil
	}

	scheduledAt, lookupErr := raw.LookupErr("reminder_time")
	if lookupErr != nil || scheduledAt.Type == bson.TypeString {
		return nil, err
	}

	patched, patchErr := replaceElement(raw, "reminder_time", scheduledAtText(scheduledAt))
	if patchErr != nil {
		return nil, patchErr
	}

	reminder = model.Reminder{}
	if err := bson.Unmarshal(patched, &reminder); err != nil {
		return nil, err
	}

	return &reminder, nil
}

func scheduledAtText(v bson.RawValue) string {
	if v.Type == bson.TypeDateTime {
		return model.FormatTimestamp(v.Time().UTC())
	}
	return v.String()
}

func replaceElement(raw bson.Raw, key string, value any) (bson.Raw, error) {
	elements, err := raw.Elements()
	if err != nil {
		return nil, err
	}

	doc := make(bson.D, 0, len(elements))
	for _, e := range elements {
		if e.Key() == key {
			doc = append(doc, bson.E{Key: key, Value: value})
			continue
		}
		doc = append(doc, bson.E{Key: e.Key(), Value: e.Value()})
	}

	return bson.Marshal(doc)
}

func (r *reminderMongoRepository) Claim(ctx context.Context, id string) (bool, error) {
	now := time.Now()
	result, err := r.db.Collection(reminderCollection).UpdateOne(
		ctx,
		claimFilter(id),
		bson.M{"$set": bson.M{"is_completed": true, "claimed_at": now, "updated_at": now}},
	)
	if err != nil {
		return false, err
	}

	return modifiedOne(result), nil
}

func (r *reminderMongoRepository) Unclaim(ctx context.Context, id string) (bool, error) {
	result, err := r.db.Collection(reminderCollection).UpdateOne(
		ctx,
		unclaimFilter(id),
		bson.M{
			"$set":   bson.M{"is_completed": false, "updated_at": time.Now()},
			"$unset": bson.M{"claimed_at": ""},
			"$inc":   bson.M{"failed_attempts": 1},
		},
	)
	if err != nil {
		return false, err
	}

	return modifiedOne(result), nil
}

// modifiedOne reports whether a conditional update won its compare-and-set.
func modifiedOne(result *mongo.UpdateResult) bool {
	return result != nil && result.ModifiedCount == 1
}

// claimFilter matches a reminder only while it is still pending, which makes
// the update a compare-and-set on is_completed.
func claimFilter(id string) bson.M {
	return bson.M{
		"id":           id,
		"is_completed": false,
		"is_deleted":   bson.M{"$ne": true},
	}
}

func unclaimFilter(id string) bson.M {
	return bson.M{
		"id":           id,
		"is_completed": true,
	}
}

// userRemindersFilter selects either the active reminders of a user or the
// ones sitting in the recycle bin. Documents written before soft delete
// existed have no is_deleted field, hence $ne instead of false.
func userRemindersFilter(userID string, deleted bool) bson.M {
	if deleted {
		return bson.M{"user_id": userID, "is_deleted": true}
	}
	return bson.M{"user_id": userID, "is_deleted": bson.M{"$ne": true}}
}

func softDeleteUpdate(now time.Time) bson.M {
	return bson.M{
		"$set": bson.M{
			"is_deleted": true,
			"deleted_at": model.FormatTimestamp(now),
			"updated_at": now,
		},
	}
}
