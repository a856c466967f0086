package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/fathima-sithara/relay-service/internal/api"
	"github.com/fathima-sithara/relay-service/internal/auth"
	"github.com/fathima-sithara/relay-service/internal/config"
	"github.com/fathima-sithara/relay-service/internal/crypto"
	"github.com/fathima-sithara/relay-service/internal/events"
	"github.com/fathima-sithara/relay-service/internal/logger"
	"github.com/fathima-sithara/relay-service/internal/presence"
	"github.com/fathima-sithara/relay-service/internal/queue"
	"github.com/fathima-sithara/relay-service/internal/relay"
	"github.com/fathima-sithara/relay-service/internal/store"
	"github.com/fathima-sithara/relay-service/internal/ws"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatalf("config load: %v", err)
	}

	zlog, err := logger.New(cfg.App.Env)
	if err != nil {
		log.Fatalf("logger init: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	authn, err := auth.New(cfg.App.JWTSecret, cfg.TokenTTL)
	if err != nil {
		zlog.Fatalw("authenticator init", "err", err)
	}
	codec, err := crypto.NewCodec(cfg.App.EncryptionSecret)
	if err != nil {
		zlog.Fatalw("codec init", "err", err)
	}

	mc, err := store.NewMongoClient(context.Background(), cfg.Mongo.URI)
	if err != nil {
		zlog.Fatalw("mongo init", "err", err)
	}
	defer func() { _ = mc.Disconnect(context.Background()) }()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	db := mc.Database(cfg.Mongo.DB)
	messages := store.NewMongoMessageStore(db.Collection("messages"))
	users := store.NewMongoUserStore(db.Collection("users"))
	offline := queue.NewRedisQueue(rdb, cfg.Redis.Prefix)
	snapshot := presence.NewSnapshot(rdb, cfg.Redis.Prefix)
	registry := presence.NewRegistry()

	var pub events.Publisher = events.NoopPublisher{}
	if len(cfg.Kafka.Brokers) > 0 {
		pub = events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.LifecycleTopic)
	}
	defer func() { _ = pub.Close() }()

	coord := relay.NewCoordinator(messages, offline, codec, registry, pub, zlog).
		WithSnapshot(snapshot)

	wsHandler := ws.NewHandler(coord, authn, ws.Options{
		PingInterval:  cfg.PingInterval,
		WriteDeadline: cfg.WriteDeadline,
		ReadDeadline:  cfg.ReadDeadline,
		MaxMsgSize:    cfg.WS.MaxMessageSizeBytes,
	}, zlog)

	app := api.NewServer(api.Deps{
		Messages:   messages,
		Users:      users,
		Codec:      codec,
		Authn:      authn,
		Snapshot:   snapshot,
		WS:         wsHandler,
		Redis:      rdb,
		RatePerMin: cfg.App.AuthRatePerMin,
		Log:        zlog,
	})

	go func() {
		addr := ":" + cfg.App.PortString()
		zlog.Infow("relay service starting", "addr", addr, "env", cfg.App.Env)
		if err := app.Listen(addr); err != nil {
			zlog.Fatalw("server listen", "err", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	s := <-quit
	zlog.Infow("signal received, shutting down", "signal", s.String())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(ctx); err != nil {
		zlog.Warnw("shutdown", "err", err)
	}
	zlog.Info("relay service stopped")
}
