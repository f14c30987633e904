package user

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"NioBoard/tools/errs"
	"NioBoard/tools/security"
)

type Repo interface {
	Insert(ctx context.Context, u User) error
	FindByID(ctx context.Context, id string) (User, error)
	FindByUsername(ctx context.Context, username string) (User, error)
	ListNonAdmin(ctx context.Context) ([]User, error)
	ListIDsByRole(ctx context.Context, role string) ([]string, error)
	Delete(ctx context.Context, id string) error
	UpdatePassword(ctx context.Context, id, hash string) error
}

type mongoRepo struct {
	db *mongo.Database
}

func NewMongoRepo(db *mongo.Database) Repo { return &mongoRepo{db: db} }

func (r *mongoRepo) Insert(ctx context.Context, u User) error {
	_, err := r.db.Collection(CollUsers).InsertOne(ctx, u)
	if mongo.IsDuplicateKeyError(err) {
		return errs.ErrValidation.WithDetail("username already exists")
	}
	return errs.WrapInfra(err, "insert user")
}

func (r *mongoRepo) FindByID(ctx context.Context, id string) (User, error) {
	var u User
	err := r.db.Collection(CollUsers).FindOne(ctx, bson.M{"_id": id}).Decode(&u)
	if err == mongo.ErrNoDocuments {
		return User{}, errs.ErrNotFound.WithDetail("user not found")
	}
	if err != nil {
		return User{}, errs.WrapInfra(err, "find user")
	}
	return u, nil
}

func (r *mongoRepo) FindByUsername(ctx context.Context, username string) (User, error) {
	var u User
	err := r.db.Collection(CollUsers).FindOne(ctx, bson.M{"username": username}).Decode(&u)
	if err == mongo.ErrNoDocuments {
		return User{}, errs.ErrNotFound.WithDetail("user not found")
	}
	if err != nil {
		return User{}, errs.WrapInfra(err, "find user")
	}
	return u, nil
}

func (r *mongoRepo) ListNonAdmin(ctx context.Context) ([]User, error) {
	cur, err := r.db.Collection(CollUsers).Find(ctx,
		bson.M{"role": bson.M{"$ne": security.RoleAdmin}},
		options.Find().SetSort(bson.M{"created_at": -1}))
	if err != nil {
		return nil, errs.WrapInfra(err, "list users")
	}
	var out []User
	if err := cur.All(ctx, &out); err != nil {
		return nil, errs.WrapInfra(err, "decode users")
	}
	return out, nil
}

func (r *mongoRepo) ListIDsByRole(ctx context.Context, role string) ([]string, error) {
	cur, err := r.db.Collection(CollUsers).Find(ctx, bson.M{"role": role},
		options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, errs.WrapInfra(err, "list ids by role")
	}
	var docs []User
	if err := cur.All(ctx, &docs); err != nil {
		return nil, errs.WrapInfra(err, "decode ids")
	}
	out := make([]string, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.ID)
	}
	return out, nil
}

func (r *mongoRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.Collection(CollUsers).DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return errs.WrapInfra(err, "delete user")
	}
	if res.DeletedCount == 0 {
		return errs.ErrNotFound.WithDetail("user not found")
	}
	return nil
}

func (r *mongoRepo) UpdatePassword(ctx context.Context, id, hash string) error {
	res, err := r.db.Collection(CollUsers).UpdateOne(ctx,
		bson.M{"_id": id}, bson.M{"$set": bson.M{"password_hash": hash}})
	if err != nil {
		return errs.WrapInfra(err, "update password")
	}
	if res.MatchedCount == 0 {
		return errs.ErrNotFound.WithDetail("user not found")
	}
	return nil
}
