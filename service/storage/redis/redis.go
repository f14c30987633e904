package redis

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"NioBoard/global"
)

var rdb *redis.Client

func Init(ctx context.Context, cfg global.RedisConfig) error {
	rdb = redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB})
	return rdb.Ping(ctx).Err()
}

func Close() {
	if rdb != nil {
		_ = rdb.Close()
	}
}

// presence key: board:presence:<user>
// Value: node id of the gateway holding the live connection; the TTL is
// the online validity window, renewed by the gateway heartbeat.
func presenceKey(user string) string { return "board:presence:" + user }

func PresenceOnline(ctx context.Context, user, nodeID string, ttl time.Duration) error {
	if rdb == nil {
		return errors.New("redis not initialized")
	}
	return rdb.Set(ctx, presenceKey(user), nodeID, ttl).Err()
}

func PresenceOffline(ctx context.Context, user string) error {
	if rdb == nil {
		return errors.New("redis not initialized")
	}
	return rdb.Del(ctx, presenceKey(user)).Err()
}

func PresenceLookup(ctx context.Context, user string) (nodeID string, online bool, err error) {
	if rdb == nil {
		return "", false, errors.New("redis not initialized")
	}
	val, err := rdb.Get(ctx, presenceKey(user)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

// PresenceOnlineUsers filters the given user ids down to those with a
// live presence key. Used by the REST "who is online" surface.
func PresenceOnlineUsers(ctx context.Context, userIDs []string) ([]string, error) {
	if rdb == nil {
		return nil, errors.New("redis not initialized")
	}
	if len(userIDs) == 0 {
		return nil, nil
	}
	keys := make([]string, len(userIDs))
	for i, id := range userIDs {
		keys[i] = presenceKey(id)
	}
	vals, err := rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	online := make([]string, 0, len(userIDs))
	for i, v := range vals {
		if v != nil {
			online = append(online, userIDs[i])
		}
	}
	return online, nil
}
