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

// DashboardRepo stores the aggregate snapshot. Although the collection can
// hold several documents, only the most recently created one is ever read or
// updated: the snapshot is a single latest value, not a time series.
type DashboardRepo struct {
	coll *mongo.Collection
}

func NewDashboardRepo(db *mongo.Database) *DashboardRepo {
	return &DashboardRepo{coll: db.Collection(database.CollDashboardStats)}
}

func (r *DashboardRepo) GetLatest(ctx context.Context) (*models.DashboardSnapshot, error) {
	snap := &models.DashboardSnapshot{}
	err := r.coll.FindOne(ctx, bson.M{},
		options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}}),
	).Decode(snap)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return snap, nil
}

// UpsertLatest overwrites the most recent snapshot in place, creating one if
// the collection is empty.
func (r *DashboardRepo) UpsertLatest(ctx context.Context, snap *models.DashboardSnapshot) error {
	now := time.Now().UTC()
	snap.UpdatedAt = now

	current, err := r.GetLatest(ctx)
	if errors.Is(err, ErrNotFound) {
		snap.CreatedAt = now
		res, insErr := r.coll.InsertOne(ctx, snap)
		if insErr != nil {
			return insErr
		}
		if oid, ok := res.InsertedID.(bson.ObjectID); ok {
			snap.ID = oid
		}
		return nil
	}
	if err != nil {
		return err
	}

	snap.ID = current.ID
	snap.CreatedAt = current.CreatedAt
	_, err = r.coll.ReplaceOne(ctx, bson.M{"_id": current.ID}, snap)
	return err
}

// SetStatus updates just the sync state of the latest snapshot, creating a
// blank one if none exists yet.
func (r *DashboardRepo) SetStatus(ctx context.Context, status, syncError string) error {
	current, err := r.GetLatest(ctx)
	if errors.Is(err, ErrNotFound) {
		blank := &models.DashboardSnapshot{SyncStatus: status, SyncError: syncError}
		return r.UpsertLatest(ctx, blank)
	}
	if err != nil {
		return err
	}

	update := bson.M{"sync_status": status, "sync_error": syncError, "updated_at": time.Now().UTC()}
	_, err = r.coll.UpdateOne(ctx, bson.M{"_id": current.ID}, bson.M{"$set": update})
	return err
}

// Clear removes every snapshot. The next sync starts from nothing.
func (r *DashboardRepo) Clear(ctx context.Context) (int64, error) {
	res, err := r.coll.DeleteMany(ctx, bson.M{})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
