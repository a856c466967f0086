package ws

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fathima-sithara/relay-service/internal/auth"
	"github.com/fathima-sithara/relay-service/internal/relay"
)

// Options carries the transport tuning knobs from config.
type Options struct {
	PingInterval  time.Duration
	WriteDeadline time.Duration
	ReadDeadline  time.Duration
	MaxMsgSize    int64
}

// Handler upgrades authenticated connections and pumps their events
// into the delivery coordinator.
type Handler struct {
	coord *relay.Coordinator
	authn *auth.Authenticator
	opts  Options
	log   *zap.SugaredLogger
}

func NewHandler(coord *relay.Coordinator, authn *auth.Authenticator, opts Options, log *zap.SugaredLogger) *Handler {
	if opts.PingInterval == 0 {
		opts.PingInterval = 25 * time.Second
	}
	if opts.WriteDeadline == 0 {
		opts.WriteDeadline = 10 * time.Second
	}
	if opts.ReadDeadline == 0 {
		opts.ReadDeadline = 60 * time.Second
	}
	if opts.MaxMsgSize == 0 {
		opts.MaxMsgSize = 64 * 1024
	}
	return &Handler{coord: coord, authn: authn, opts: opts, log: log}
}

// Handle is the per-connection loop: verify the handshake credential,
// then read envelopes and dispatch until the socket closes. A missing
// or invalid credential rejects the connection before any relay logic
// runs for it.
func (h *Handler) Handle() func(*websocket.Conn) {
	return func(conn *websocket.Conn) {
		token := conn.Query("token")
		claims, err := h.authn.Verify(token)
		if err != nil {
			h.log.Infow("rejecting unauthenticated connection", "err", err)
			h.rejectUnauthorized(conn)
			return
		}

		client := NewClient(conn, uuid.NewString())
		sess := &relay.Session{UserID: claims.UserID, Name: claims.Name, Conn: client}
		h.log.Infow("connection established", "user", sess.UserID, "socket", client.socketID)

		go client.writePump(h.opts.PingInterval, h.opts.WriteDeadline)

		defer func() {
			h.coord.HandleDisconnect(context.Background(), sess)
			client.Close()
		}()

		conn.SetReadLimit(h.opts.MaxMsgSize)
		_ = conn.SetReadDeadline(time.Now().Add(h.opts.ReadDeadline))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(h.opts.ReadDeadline))
		})

		for {
			mt, raw, err := conn.ReadMessage()
			if err != nil {
				return
			}
			_ = conn.SetReadDeadline(time.Now().Add(h.opts.ReadDeadline))
			if mt != websocket.TextMessage {
				continue
			}
			var env relay.Envelope
			if err := json.Unmarshal(raw, &env); err != nil {
				_ = client.Push(relay.EventError, relay.ErrorPayload{Error: "Invalid payload."})
				continue
			}
			h.coord.Dispatch(context.Background(), sess, env)
		}
	}
}

func (h *Handler) rejectUnauthorized(conn *websocket.Conn) {
	frame, _ := json.Marshal(relay.ErrorPayload{Error: "Unauthorized."})
	env, _ := json.Marshal(relay.Envelope{Type: relay.EventError, Payload: frame})
	_ = conn.WriteMessage(websocket.TextMessage, env)
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "unauthorized"),
		time.Now().Add(time.Second))
	_ = conn.Close()
}
