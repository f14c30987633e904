package global

import (
	"os"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

type ServerConfig struct {
	Port       int      `mapstructure:"port"`
	CORSOrigin []string `mapstructure:"cors_origin"`
	NodeID     int64    `mapstructure:"node_id"`
}

type MongoConfig struct {
	URI      string `mapstructure:"uri"`
	Database string `mapstructure:"database"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type NatsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
	Subject string `mapstructure:"subject"`
}

type JWTConfig struct {
	Secret string        `mapstructure:"secret"`
	TTL    time.Duration `mapstructure:"ttl"`
}

type RetentionConfig struct {
	Days int `mapstructure:"days"`
}

type ModuleSeed struct {
	Slug string `mapstructure:"slug"`
	Name string `mapstructure:"name"`
}

type SeedConfig struct {
	AdminUsername string       `mapstructure:"admin_username"`
	AdminPassword string       `mapstructure:"admin_password"`
	Modules       []ModuleSeed `mapstructure:"modules"`
}

type AppConfig struct {
	Server    ServerConfig    `mapstructure:"server"`
	Mongo     MongoConfig     `mapstructure:"mongo"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Nats      NatsConfig      `mapstructure:"nats"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Retention RetentionConfig `mapstructure:"retention"`
	Seed      SeedConfig      `mapstructure:"seed"`
}

func defaults() AppConfig {
	return AppConfig{
		Server:    ServerConfig{Port: 5000, NodeID: 1},
		Mongo:     MongoConfig{URI: "mongodb://127.0.0.1:27017", Database: "nioboard"},
		Redis:     RedisConfig{Addr: "127.0.0.1:6379"},
		Nats:      NatsConfig{Subject: "nioboard.activity"},
		JWT:       JWTConfig{TTL: 2 * time.Hour},
		Retention: RetentionConfig{Days: 30},
	}
}

// Load reads the yaml config file, decodes it over the defaults with
// mapstructure, then applies env overrides for deploy-time secrets.
func Load(path string) (AppConfig, error) {
	cfg := defaults()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return cfg, errors.Wrap(err, "read config")
		}
		var tree map[string]any
		if err := yaml.Unmarshal(raw, &tree); err != nil {
			return cfg, errors.Wrap(err, "parse config")
		}
		dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			Result:     &cfg,
			DecodeHook: mapstructure.StringToTimeDurationHookFunc(),
		})
		if err != nil {
			return cfg, err
		}
		if err := dec.Decode(tree); err != nil {
			return cfg, errors.Wrap(err, "decode config")
		}
	}

	if v := os.Getenv("NIOBOARD_JWT_SECRET"); v != "" {
		cfg.JWT.Secret = v
	}
	if v := os.Getenv("NIOBOARD_MONGO_URI"); v != "" {
		cfg.Mongo.URI = v
	}
	if v := os.Getenv("NIOBOARD_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}

	if cfg.JWT.Secret == "" {
		return cfg, errors.New("jwt secret not configured")
	}
	return cfg, nil
}
