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

type ActivityRepo struct {
	coll *mongo.Collection
}

func NewActivityRepo(db *mongo.Database) *ActivityRepo {
	return &ActivityRepo{coll: db.Collection(database.CollActivities)}
}

// Insert appends one record. The log is append-only; nothing ever mutates a
// record afterwards except the status backfill.
func (r *ActivityRepo) Insert(ctx context.Context, rec *models.ActivityRecord) error {
	now := time.Now().UTC()
	rec.CreatedAt = now
	rec.UpdatedAt = now
	if rec.Details == nil {
		rec.Details = map[string]interface{}{}
	}

	res, err := r.coll.InsertOne(ctx, rec)
	if err != nil {
		return err
	}
	if oid, ok := res.InsertedID.(bson.ObjectID); ok {
		rec.ID = oid
	}
	return nil
}

func buildActivityFilter(f models.ActivityFilter) bson.M {
	filter := bson.M{}
	if f.UserID != "" {
		filter["user_id"] = f.UserID
	}
	if f.Action != "" {
		filter["action"] = f.Action
	}
	if f.Status != "" {
		filter["status"] = f.Status
	}
	if f.From != nil || f.To != nil {
		dateRange := bson.M{}
		if f.From != nil {
			dateRange["$gte"] = *f.From
		}
		if f.To != nil {
			dateRange["$lte"] = *f.To
		}
		filter["created_at"] = dateRange
	}
	return filter
}

// List returns one page of records, newest first, plus the unpaged total.
func (r *ActivityRepo) List(ctx context.Context, f models.ActivityFilter) ([]models.ActivityRecord, int64, error) {
	filter := buildActivityFilter(f)

	total, err := r.coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	page := f.Page
	if page < 1 {
		page = 1
	}
	perPage := f.PerPage
	if perPage < 1 || perPage > 200 {
		perPage = 50
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(int64((page - 1) * perPage)).
		SetLimit(int64(perPage))

	cursor, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	var records []models.ActivityRecord
	if err := cursor.All(ctx, &records); err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

// ListAll returns every record matching the filter, newest first. Used by the
// CSV/JSON export.
func (r *ActivityRepo) ListAll(ctx context.Context, f models.ActivityFilter) ([]models.ActivityRecord, error) {
	cursor, err := r.coll.Find(ctx, buildActivityFilter(f),
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var records []models.ActivityRecord
	if err := cursor.All(ctx, &records); err != nil {
		return nil, err
	}
	return records, nil
}

func (r *ActivityRepo) GetByID(ctx context.Context, id string) (*models.ActivityRecord, error) {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}

	rec := &models.ActivityRecord{}
	err = r.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Analytics aggregates counts by action, status and day.
func (r *ActivityRepo) Analytics(ctx context.Context, f models.ActivityFilter) (*models.ActivityAnalytics, error) {
	filter := buildActivityFilter(f)

	total, err := r.coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, err
	}

	byAction, err := r.countBy(ctx, filter, "$action")
	if err != nil {
		return nil, err
	}
	byStatus, err := r.countBy(ctx, filter, "$status")
	if err != nil {
		return nil, err
	}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: filter}},
		{{Key: "$group", Value: bson.M{
			"_id":   bson.M{"$dateToString": bson.M{"format": "%Y-%m-%d", "date": "$created_at"}},
			"count": bson.M{"$sum": 1},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "_id", Value: 1}}}},
	}
	cursor, err := r.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var byDay []models.DayCount
	if err := cursor.All(ctx, &byDay); err != nil {
		return nil, err
	}

	return &models.ActivityAnalytics{
		Total:    total,
		ByAction: byAction,
		ByStatus: byStatus,
		ByDay:    byDay,
	}, nil
}

func (r *ActivityRepo) countBy(ctx context.Context, filter bson.M, field string) (map[string]int64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: filter}},
		{{Key: "$group", Value: bson.M{"_id": field, "count": bson.M{"$sum": 1}}}},
	}
	cursor, err := r.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var rows []struct {
		Key   string `bson:"_id"`
		Count int64  `bson:"count"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, err
	}

	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.Key] = row.Count
	}
	return counts, nil
}

// LatestCreateByUsername returns the most recent create_student record for a
// username. The UI uses its details as the last known generated credentials,
// since Moodle never exposes passwords after creation.
func (r *ActivityRepo) LatestCreateByUsername(ctx context.Context, username string) (*models.ActivityRecord, error) {
	rec := &models.ActivityRecord{}
	err := r.coll.FindOne(ctx,
		bson.M{"user_username": username, "action": models.ActionCreateStudent, "status": models.StatusSuccess},
		options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}}),
	).Decode(rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// DeleteAll clears the log. Irreversible.
func (r *ActivityRepo) DeleteAll(ctx context.Context) (int64, error) {
	res, err := r.coll.DeleteMany(ctx, bson.M{})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// BackfillStatus sets status to success on legacy records written before the
// status field existed.
func (r *ActivityRepo) BackfillStatus(ctx context.Context) (int64, error) {
	res, err := r.coll.UpdateMany(ctx,
		bson.M{"$or": bson.A{
			bson.M{"status": bson.M{"$exists": false}},
			bson.M{"status": ""},
		}},
		bson.M{"$set": bson.M{"status": models.StatusSuccess, "updated_at": time.Now().UTC()}},
	)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}
