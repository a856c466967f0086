package api

import (
	"time"

	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/websocket/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/fathima-sithara/relay-service/internal/auth"
	"github.com/fathima-sithara/relay-service/internal/crypto"
	"github.com/fathima-sithara/relay-service/internal/presence"
	"github.com/fathima-sithara/relay-service/internal/store"
	"github.com/fathima-sithara/relay-service/internal/ws"
)

// Deps bundles everything the HTTP surface needs.
type Deps struct {
	Messages   store.MessageStore
	Users      store.UserStore
	Codec      *crypto.Codec
	Authn      *auth.Authenticator
	Snapshot   *presence.Snapshot
	WS         *ws.Handler
	Redis      *redis.Client
	RatePerMin int
	Log        *zap.SugaredLogger
}

// NewServer builds the fiber app: the websocket upgrade route plus the
// REST collaborators around the realtime core (history, explicit
// delivered/seen acks, auth).
func NewServer(d Deps) *fiber.App {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Use(fiberlogger.New())

	h := &handlers{deps: d}

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	app.Get("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", websocket.New(d.WS.Handle()))

	api := app.Group("/api")

	msgs := api.Group("/messages")
	msgs.Get("/:chatId", h.listMessages)
	msgs.Post("/seen/:messageId", h.markSeen)
	msgs.Post("/delivered/:messageId", h.markDelivered)

	authGroup := api.Group("/auth")
	if d.Redis != nil && d.RatePerMin > 0 {
		rl := newRateLimiter(d.Redis, "relay:rl:auth", d.RatePerMin, time.Minute)
		authGroup.Use(rl.byClientIP())
	}
	authGroup.Post("/register", h.register)
	authGroup.Post("/login", h.login)

	api.Get("/presence/:userId", h.getPresence)

	return app
}
