package message

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"NioBoard/tools/errs"
)

// Repo is the store surface of the message core. Production is mongo;
// the service tests run a memory implementation against the same
// contract.
type Repo interface {
	Insert(ctx context.Context, m Message) error
	ListByModule(ctx context.Context, moduleID string) ([]Message, error)
	Delete(ctx context.Context, id string) error
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)

	UpsertWatermark(ctx context.Context, userID, moduleID string, at time.Time) error
	Watermark(ctx context.Context, userID, moduleID string) (time.Time, bool, error)

	// UnreadCounts returns, per module id, the count of messages with
	// created_at strictly after the user's watermark (all messages when
	// no watermark exists). Modules without qualifying messages may be
	// absent; the service layer fills zeroes. Must read one consistent
	// snapshot.
	UnreadCounts(ctx context.Context, userID string, moduleIDs []string) (map[string]int64, error)
}

type mongoRepo struct {
	db *mongo.Database
}

func NewMongoRepo(db *mongo.Database) Repo { return &mongoRepo{db: db} }

func (r *mongoRepo) Insert(ctx context.Context, m Message) error {
	_, err := r.db.Collection(CollMessages).InsertOne(ctx, m)
	return errs.WrapInfra(err, "insert message")
}

func (r *mongoRepo) ListByModule(ctx context.Context, moduleID string) ([]Message, error) {
	cur, err := r.db.Collection(CollMessages).Find(ctx,
		bson.M{"module_id": moduleID},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return nil, errs.WrapInfra(err, "list messages")
	}
	var out []Message
	if err := cur.All(ctx, &out); err != nil {
		return nil, errs.WrapInfra(err, "decode messages")
	}
	return out, nil
}

func (r *mongoRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.Collection(CollMessages).DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return errs.WrapInfra(err, "delete message")
	}
	if res.DeletedCount == 0 {
		return errs.ErrNotFound.WithDetail("message not found")
	}
	return nil
}

func (r *mongoRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.Collection(CollMessages).DeleteMany(ctx,
		bson.M{"created_at": bson.M{"$lt": cutoff}})
	if err != nil {
		return 0, errs.WrapInfra(err, "retention delete")
	}
	return res.DeletedCount, nil
}

func (r *mongoRepo) UpsertWatermark(ctx context.Context, userID, moduleID string, at time.Time) error {
	_, err := r.db.Collection(CollReadStatus).UpdateOne(ctx,
		bson.M{"user_id": userID, "module_id": moduleID},
		bson.M{"$set": bson.M{"last_read_at": at}},
		options.Update().SetUpsert(true),
	)
	return errs.WrapInfra(err, "upsert watermark")
}

func (r *mongoRepo) Watermark(ctx context.Context, userID, moduleID string) (time.Time, bool, error) {
	var wm ReadWatermark
	err := r.db.Collection(CollReadStatus).FindOne(ctx,
		bson.M{"user_id": userID, "module_id": moduleID}).Decode(&wm)
	if err == mongo.ErrNoDocuments {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, errs.WrapInfra(err, "find watermark")
	}
	return wm.LastReadAt, true, nil
}

// UnreadCounts runs one aggregation over the messages collection: the
// user's watermark is joined per message module and messages at or
// before it are filtered out before the per-module count. A single
// pipeline sees a single snapshot, which is the isolation the unread
// view requires.
func (r *mongoRepo) UnreadCounts(ctx context.Context, userID string, moduleIDs []string) (map[string]int64, error) {
	if len(moduleIDs) == 0 {
		return map[string]int64{}, nil
	}
	epoch := time.Unix(0, 0)
	pipeline := mongo.Pipeline{
		bson.D{{Key: "$match", Value: bson.M{"module_id": bson.M{"$in": moduleIDs}}}},
		bson.D{{Key: "$lookup", Value: bson.M{
			"from": CollReadStatus,
			"let":  bson.M{"mid": "$module_id"},
			"pipeline": mongo.Pipeline{
				bson.D{{Key: "$match", Value: bson.M{"$expr": bson.M{"$and": bson.A{
					bson.M{"$eq": bson.A{"$module_id", "$$mid"}},
					bson.M{"$eq": bson.A{"$user_id", userID}},
				}}}}},
			},
			"as": "rs",
		}}},
		bson.D{{Key: "$addFields", Value: bson.M{
			"last_read_at": bson.M{"$ifNull": bson.A{bson.M{"$max": "$rs.last_read_at"}, epoch}},
		}}},
		bson.D{{Key: "$match", Value: bson.M{
			"$expr": bson.M{"$gt": bson.A{"$created_at", "$last_read_at"}},
		}}},
		bson.D{{Key: "$group", Value: bson.M{
			"_id":   "$module_id",
			"count": bson.M{"$sum": 1},
		}}},
	}

	cur, err := r.db.Collection(CollMessages).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, errs.WrapInfra(err, "unread aggregate")
	}
	var rows []struct {
		ModuleID string `bson:"_id"`
		Count    int64  `bson:"count"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, errs.WrapInfra(err, "decode unread")
	}
	out := make(map[string]int64, len(rows))
	for _, row := range rows {
		out[row.ModuleID] = row.Count
	}
	return out, nil
}
