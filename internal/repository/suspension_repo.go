package repository

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"enrolldesk-backend/internal/database"
	"enrolldesk-backend/internal/models"
)

type SuspensionRepo struct {
	coll *mongo.Collection
}

func NewSuspensionRepo(db *mongo.Database) *SuspensionRepo {
	return &SuspensionRepo{coll: db.Collection(database.CollSuspensionStatus)}
}

// Upsert records the latest suspend/reactivate transition for a (user,
// course) pair. Exactly one document exists per pair; each transition sets
// one timestamp/attribution side and clears the other, so only the last
// transition survives.
func (r *SuspensionRepo) Upsert(ctx context.Context, userID, courseID int, suspended bool, by, reason string) error {
	filter := bson.M{"user_id": userID, "course_id": courseID}
	update := buildSuspensionUpdate(userID, courseID, suspended, by, reason, time.Now().UTC())

	_, err := r.coll.UpdateOne(ctx, filter, update, options.UpdateOne().SetUpsert(true))
	return err
}

// buildSuspensionUpdate produces the $set/$unset document for one
// transition. Each direction sets its own timestamp/attribution pair and
// unsets the opposite pair, so repeating a transition is idempotent and a
// record never carries both sides at once.
func buildSuspensionUpdate(userID, courseID int, suspended bool, by, reason string, now time.Time) bson.M {
	set := bson.M{
		"user_id":    userID,
		"course_id":  courseID,
		"suspended":  suspended,
		"reason":     reason,
		"updated_at": now,
	}
	var unset bson.M
	if suspended {
		set["suspended_at"] = now
		set["suspended_by"] = by
		unset = bson.M{"reactivated_at": "", "reactivated_by": ""}
	} else {
		set["reactivated_at"] = now
		set["reactivated_by"] = by
		unset = bson.M{"suspended_at": "", "suspended_by": ""}
	}
	return bson.M{"$set": set, "$unset": unset}
}

func (r *SuspensionRepo) Get(ctx context.Context, userID, courseID int) (*models.SuspensionStatusRecord, error) {
	rec := &models.SuspensionStatusRecord{}
	err := r.coll.FindOne(ctx, bson.M{"user_id": userID, "course_id": courseID}).Decode(rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (r *SuspensionRepo) ListByCourse(ctx context.Context, courseID int) ([]models.SuspensionStatusRecord, error) {
	cursor, err := r.coll.Find(ctx, bson.M{"course_id": courseID})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var records []models.SuspensionStatusRecord
	if err := cursor.All(ctx, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// ListSuspended returns every record currently in the suspended state, for
// cross-referencing during the dashboard sync.
func (r *SuspensionRepo) ListSuspended(ctx context.Context) ([]models.SuspensionStatusRecord, error) {
	cursor, err := r.coll.Find(ctx, bson.M{"suspended": true})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var records []models.SuspensionStatusRecord
	if err := cursor.All(ctx, &records); err != nil {
		return nil, err
	}
	return records, nil
}

func (r *SuspensionRepo) Delete(ctx context.Context, userID, courseID int) error {
	_, err := r.coll.DeleteOne(ctx, bson.M{"user_id": userID, "course_id": courseID})
	return err
}
