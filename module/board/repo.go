package board

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"NioBoard/tools/errs"
)

// Repo is the persistence surface the service runs on. The mongo
// implementation below is the production one; tests substitute memory.
type Repo interface {
	ListModules(ctx context.Context) ([]Module, error)
	ModulesByIDs(ctx context.Context, ids []string) ([]Module, error)
	FindModuleBySlug(ctx context.Context, slug string) (Module, error)
	UpsertModule(ctx context.Context, m Module) error

	ChartsByModule(ctx context.Context, moduleID string, visibleOnly bool) ([]Chart, error)
	InsertChart(ctx context.Context, c Chart) error
	SetChartVisibility(ctx context.Context, id string, visible bool) error
	DeleteChart(ctx context.Context, id string) error

	GrantedModuleIDs(ctx context.Context, userID string) ([]string, error)
	GrantedUserIDs(ctx context.Context, moduleID string) ([]string, error)
	HasGrant(ctx context.Context, userID, moduleID string) (bool, error)
	ReplaceGrants(ctx context.Context, userID string, moduleIDs []string) error
}

type mongoRepo struct {
	db *mongo.Database
}

func NewMongoRepo(db *mongo.Database) Repo { return &mongoRepo{db: db} }

func (r *mongoRepo) ListModules(ctx context.Context) ([]Module, error) {
	cur, err := r.db.Collection(CollModules).Find(ctx, bson.M{},
		options.Find().SetSort(bson.M{"_id": 1}))
	if err != nil {
		return nil, errs.WrapInfra(err, "list modules")
	}
	var out []Module
	if err := cur.All(ctx, &out); err != nil {
		return nil, errs.WrapInfra(err, "decode modules")
	}
	return out, nil
}

func (r *mongoRepo) ModulesByIDs(ctx context.Context, ids []string) ([]Module, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	cur, err := r.db.Collection(CollModules).Find(ctx,
		bson.M{"_id": bson.M{"$in": ids}},
		options.Find().SetSort(bson.M{"_id": 1}))
	if err != nil {
		return nil, errs.WrapInfra(err, "modules by ids")
	}
	var out []Module
	if err := cur.All(ctx, &out); err != nil {
		return nil, errs.WrapInfra(err, "decode modules")
	}
	return out, nil
}

func (r *mongoRepo) FindModuleBySlug(ctx context.Context, slug string) (Module, error) {
	var m Module
	err := r.db.Collection(CollModules).FindOne(ctx, bson.M{"slug": slug}).Decode(&m)
	if err == mongo.ErrNoDocuments {
		return Module{}, errs.ErrNotFound.WithDetail("module not found")
	}
	if err != nil {
		return Module{}, errs.WrapInfra(err, "find module")
	}
	return m, nil
}

func (r *mongoRepo) UpsertModule(ctx context.Context, m Module) error {
	_, err := r.db.Collection(CollModules).UpdateOne(ctx,
		bson.M{"slug": m.Slug},
		bson.M{
			"$set":         bson.M{"name": m.Name},
			"$setOnInsert": bson.M{"_id": m.ID, "slug": m.Slug, "created_at": m.CreatedAt},
		},
		options.Update().SetUpsert(true),
	)
	return errs.WrapInfra(err, "upsert module")
}

func (r *mongoRepo) ChartsByModule(ctx context.Context, moduleID string, visibleOnly bool) ([]Chart, error) {
	filter := bson.M{"module_id": moduleID}
	if visibleOnly {
		filter["is_visible"] = true
	}
	cur, err := r.db.Collection(CollCharts).Find(ctx, filter,
		options.Find().SetSort(bson.M{"created_at": 1}))
	if err != nil {
		return nil, errs.WrapInfra(err, "list charts")
	}
	var out []Chart
	if err := cur.All(ctx, &out); err != nil {
		return nil, errs.WrapInfra(err, "decode charts")
	}
	return out, nil
}

func (r *mongoRepo) InsertChart(ctx context.Context, c Chart) error {
	_, err := r.db.Collection(CollCharts).InsertOne(ctx, c)
	return errs.WrapInfra(err, "insert chart")
}

func (r *mongoRepo) SetChartVisibility(ctx context.Context, id string, visible bool) error {
	res, err := r.db.Collection(CollCharts).UpdateOne(ctx,
		bson.M{"_id": id}, bson.M{"$set": bson.M{"is_visible": visible}})
	if err != nil {
		return errs.WrapInfra(err, "update chart")
	}
	if res.MatchedCount == 0 {
		return errs.ErrNotFound.WithDetail("chart not found")
	}
	return nil
}

func (r *mongoRepo) DeleteChart(ctx context.Context, id string) error {
	res, err := r.db.Collection(CollCharts).DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return errs.WrapInfra(err, "delete chart")
	}
	if res.DeletedCount == 0 {
		return errs.ErrNotFound.WithDetail("chart not found")
	}
	return nil
}

func (r *mongoRepo) GrantedModuleIDs(ctx context.Context, userID string) ([]string, error) {
	cur, err := r.db.Collection(CollAccess).Find(ctx, bson.M{"user_id": userID})
	if err != nil {
		return nil, errs.WrapInfra(err, "grants by user")
	}
	var grants []Grant
	if err := cur.All(ctx, &grants); err != nil {
		return nil, errs.WrapInfra(err, "decode grants")
	}
	out := make([]string, 0, len(grants))
	for _, g := range grants {
		out = append(out, g.ModuleID)
	}
	return out, nil
}

func (r *mongoRepo) GrantedUserIDs(ctx context.Context, moduleID string) ([]string, error) {
	cur, err := r.db.Collection(CollAccess).Find(ctx, bson.M{"module_id": moduleID})
	if err != nil {
		return nil, errs.WrapInfra(err, "grants by module")
	}
	var grants []Grant
	if err := cur.All(ctx, &grants); err != nil {
		return nil, errs.WrapInfra(err, "decode grants")
	}
	out := make([]string, 0, len(grants))
	for _, g := range grants {
		out = append(out, g.UserID)
	}
	return out, nil
}

func (r *mongoRepo) HasGrant(ctx context.Context, userID, moduleID string) (bool, error) {
	err := r.db.Collection(CollAccess).FindOne(ctx,
		bson.M{"user_id": userID, "module_id": moduleID}).Err()
	if err == mongo.ErrNoDocuments {
		return false, nil
	}
	if err != nil {
		return false, errs.WrapInfra(err, "check grant")
	}
	return true, nil
}

// ReplaceGrants wipes the user's grant set and writes the new one; the
// admin UI always submits the full set.
func (r *mongoRepo) ReplaceGrants(ctx context.Context, userID string, moduleIDs []string) error {
	coll := r.db.Collection(CollAccess)
	if _, err := coll.DeleteMany(ctx, bson.M{"user_id": userID}); err != nil {
		return errs.WrapInfra(err, "clear grants")
	}
	if len(moduleIDs) == 0 {
		return nil
	}
	docs := make([]interface{}, 0, len(moduleIDs))
	for _, mid := range moduleIDs {
		docs = append(docs, Grant{UserID: userID, ModuleID: mid})
	}
	if _, err := coll.InsertMany(ctx, docs); err != nil {
		return errs.WrapInfra(err, "insert grants")
	}
	return nil
}
