package mgo

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"NioBoard/global"
	"NioBoard/logger"
)

var (
	mu sync.RWMutex
	db *mongo.Database
)

// Init connects and pings. The service cannot run without its store, so
// unlike a gateway tier there is no background retry loop: boot fails.
func Init(ctx context.Context, cfg global.MongoConfig) error {
	cctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	cli, err := mongo.Connect(cctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return errors.Wrap(err, "mongo connect")
	}
	if err := cli.Ping(cctx, readpref.Primary()); err != nil {
		return errors.Wrap(err, "mongo ping")
	}

	mu.Lock()
	db = cli.Database(cfg.Database)
	mu.Unlock()

	logger.Infof("[mgo] connected to %s/%s", cfg.URI, cfg.Database)
	return nil
}

func GetDB() *mongo.Database {
	mu.RLock()
	defer mu.RUnlock()
	return db
}

func Close(ctx context.Context) {
	mu.Lock()
	defer mu.Unlock()
	if db != nil {
		_ = db.Client().Disconnect(ctx)
		db = nil
	}
}

// EnsureIndexes creates the indexes the query paths depend on. The
// unique (user_id, module_id) index is what makes MarkRead an upsert
// rather than an append.
func EnsureIndexes(ctx context.Context, d *mongo.Database) error {
	specs := []struct {
		coll string
		keys bson.D
		opts *options.IndexOptions
	}{
		{"users", bson.D{{Key: "username", Value: 1}}, options.Index().SetUnique(true)},
		{"modules", bson.D{{Key: "slug", Value: 1}}, options.Index().SetUnique(true)},
		{"user_module_access", bson.D{{Key: "user_id", Value: 1}, {Key: "module_id", Value: 1}}, options.Index().SetUnique(true)},
		{"module_messages", bson.D{{Key: "module_id", Value: 1}, {Key: "created_at", Value: 1}}, nil},
		{"module_messages", bson.D{{Key: "created_at", Value: 1}}, nil},
		{"module_read_status", bson.D{{Key: "user_id", Value: 1}, {Key: "module_id", Value: 1}}, options.Index().SetUnique(true)},
	}
	for _, s := range specs {
		model := mongo.IndexModel{Keys: s.keys}
		if s.opts != nil {
			model.Options = s.opts
		}
		if _, err := d.Collection(s.coll).Indexes().CreateOne(ctx, model); err != nil {
			return errors.Wrapf(err, "ensure index on %s", s.coll)
		}
	}
	return nil
}
