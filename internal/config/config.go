package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type AppConfig struct {
	Env              string `mapstructure:"env"`
	Port             int    `mapstructure:"port"`
	JWTSecret        string `mapstructure:"jwt_secret"`
	EncryptionSecret string `mapstructure:"encryption_secret"`
	TokenTTLHours    int    `mapstructure:"token_ttl_hours"`
	AuthRatePerMin   int    `mapstructure:"auth_rate_per_min"`
}

func (a AppConfig) PortString() string { return fmt.Sprintf("%d", a.Port) }

type MongoConfig struct {
	URI string `mapstructure:"uri"`
	DB  string `mapstructure:"db"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

type KafkaConfig struct {
	Brokers        []string `mapstructure:"brokers"`
	LifecycleTopic string   `mapstructure:"lifecycle_topic"`
}

type WSConfig struct {
	PingIntervalSeconds  int   `mapstructure:"ping_interval_seconds"`
	WriteDeadlineSeconds int   `mapstructure:"write_deadline_seconds"`
	ReadDeadlineSeconds  int   `mapstructure:"read_deadline_seconds"`
	MaxMessageSizeBytes  int64 `mapstructure:"max_message_size_bytes"`
}

type Config struct {
	App   AppConfig   `mapstructure:"app"`
	Mongo MongoConfig `mapstructure:"mongo"`
	Redis RedisConfig `mapstructure:"redis"`
	Kafka KafkaConfig `mapstructure:"kafka"`
	WS    WSConfig    `mapstructure:"ws"`

	// derived
	TokenTTL      time.Duration
	PingInterval  time.Duration
	WriteDeadline time.Duration
	ReadDeadline  time.Duration
}

// Load reads the yaml file at path (optional) with environment
// overrides (APP_JWT_SECRET and friends). The two secrets have no
// defaults; a missing one fails startup rather than running with a
// degraded key.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", 3000)
	v.SetDefault("app.token_ttl_hours", 168)
	v.SetDefault("app.auth_rate_per_min", 30)
	v.SetDefault("mongo.uri", "mongodb://localhost:27017")
	v.SetDefault("mongo.db", "relay")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.prefix", "relay")
	v.SetDefault("kafka.lifecycle_topic", "relay.message-lifecycle")
	v.SetDefault("ws.ping_interval_seconds", 25)
	v.SetDefault("ws.write_deadline_seconds", 10)
	v.SetDefault("ws.read_deadline_seconds", 60)
	v.SetDefault("ws.max_message_size_bytes", 65536)

	// secrets keep their historical unprefixed env names
	if err := v.BindEnv("app.jwt_secret", "JWT_SECRET"); err != nil {
		return nil, err
	}
	if err := v.BindEnv("app.encryption_secret", "ENCRYPTION_SECRET"); err != nil {
		return nil, err
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, err
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if cfg.App.JWTSecret == "" {
		return nil, errors.New("app.jwt_secret (JWT_SECRET) is required")
	}
	if cfg.App.EncryptionSecret == "" {
		return nil, errors.New("app.encryption_secret (ENCRYPTION_SECRET) is required")
	}

	cfg.TokenTTL = time.Duration(cfg.App.TokenTTLHours) * time.Hour
	cfg.PingInterval = time.Duration(cfg.WS.PingIntervalSeconds) * time.Second
	cfg.WriteDeadline = time.Duration(cfg.WS.WriteDeadlineSeconds) * time.Second
	cfg.ReadDeadline = time.Duration(cfg.WS.ReadDeadlineSeconds) * time.Second
	return &cfg, nil
}
