package relay

import (
	"context"
	"encoding/json"
	"errors"

	"go.uber.org/zap"

	"github.com/fathima-sithara/relay-service/internal/crypto"
	"github.com/fathima-sithara/relay-service/internal/domain"
	"github.com/fathima-sithara/relay-service/internal/errs"
	"github.com/fathima-sithara/relay-service/internal/events"
	"github.com/fathima-sithara/relay-service/internal/presence"
	"github.com/fathima-sithara/relay-service/internal/queue"
	"github.com/fathima-sithara/relay-service/internal/store"
)

const (
	msgMissingFields  = "Missing required fields."
	msgInvalidPayload = "Invalid payload."
	msgInternalError  = "Internal server error."
)

// snapshotWriter mirrors coarse online/offline state to an external
// store. Optional; delivery routing never reads it.
type snapshotWriter interface {
	SetOnline(ctx context.Context, userID string) error
	SetOffline(ctx context.Context, userID string) error
}

// Session is one authenticated connection as the coordinator sees it.
type Session struct {
	UserID string
	Name   string
	Conn   presence.Conn
}

// Coordinator owns the message lifecycle: persist, route live or
// enqueue, drain on registration, and propagate delivered/seen
// acknowledgments. One coordinator serves the whole process; all
// per-identity serialization lives in the registry and in the stores'
// atomic set-adds, so the coordinator itself holds no locks across I/O.
type Coordinator struct {
	store    store.MessageStore
	queue    queue.OfflineQueue
	codec    *crypto.Codec
	registry *presence.Registry
	snapshot snapshotWriter
	pub      events.Publisher
	log      *zap.SugaredLogger

	handlers map[string]func(ctx context.Context, sess *Session, payload json.RawMessage)
}

func NewCoordinator(
	st store.MessageStore,
	q queue.OfflineQueue,
	codec *crypto.Codec,
	reg *presence.Registry,
	pub events.Publisher,
	log *zap.SugaredLogger,
) *Coordinator {
	c := &Coordinator{
		store:    st,
		queue:    q,
		codec:    codec,
		registry: reg,
		pub:      pub,
		log:      log,
	}
	c.handlers = map[string]func(ctx context.Context, sess *Session, payload json.RawMessage){
		EventRegister:    c.handleRegister,
		EventSendMessage: c.handleSend,
		EventMessageSeen: c.handleSeen,
	}
	return c
}

// WithSnapshot attaches an external presence mirror updated on
// register/disconnect.
func (c *Coordinator) WithSnapshot(s snapshotWriter) *Coordinator {
	c.snapshot = s
	return c
}

// Dispatch routes one inbound envelope to its handler. Unknown events
// are ignored. Handler failures are reported on the session's own
// connection; they never take the connection down.
func (c *Coordinator) Dispatch(ctx context.Context, sess *Session, env Envelope) {
	h, ok := c.handlers[env.Type]
	if !ok {
		c.log.Debugw("ignoring unknown event", "type", env.Type, "user", sess.UserID)
		return
	}
	h(ctx, sess, env.Payload)
}

// handleSend runs the send path: validate, encrypt, persist, then route
// to a live connection or the offline queue. Completion is independent
// of recipient connectivity.
func (c *Coordinator) handleSend(ctx context.Context, sess *Session, raw json.RawMessage) {
	var req SendRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		c.pushError(sess, msgInvalidPayload)
		return
	}
	if req.Message == "" || req.ChatID == "" || req.SenderID == "" || req.ReceiverID == "" {
		c.pushError(sess, msgMissingFields)
		return
	}

	body, err := c.codec.Encrypt(req.Message)
	if err != nil {
		c.log.Errorw("encrypt failed", "user", sess.UserID, "err", err)
		c.pushError(sess, msgInternalError)
		return
	}

	msg := &domain.Message{
		ChatID:     req.ChatID,
		SenderID:   req.SenderID,
		ReceiverID: req.ReceiverID,
		Body:       body,
	}
	if err := c.store.Create(ctx, msg); err != nil {
		c.log.Errorw("persist failed", "user", sess.UserID, "err", err)
		c.pushError(sess, msgInternalError)
		return
	}

	payload := MessagePayload{
		ID:         msg.ID,
		ChatID:     msg.ChatID,
		SenderID:   msg.SenderID,
		ReceiverID: msg.ReceiverID,
		Body:       req.Message,
		Timestamp:  msg.Timestamp,
	}
	// lifecycle event carries ids only, never the plaintext body
	c.publish(ctx, events.TypeMessageSent, map[string]any{
		"messageId":  msg.ID,
		"chatId":     msg.ChatID,
		"senderId":   msg.SenderID,
		"receiverId": msg.ReceiverID,
	})

	conn, online := c.registry.Lookup(req.ReceiverID)
	if !online {
		c.enqueue(ctx, sess, payload)
		return
	}
	if err := conn.Push(EventReceiveMessage, payload); err != nil {
		// socket died between lookup and push: same as offline
		c.log.Infow("live push failed, queueing", "to", req.ReceiverID, "message", msg.ID, "err", err)
		c.enqueue(ctx, sess, payload)
		return
	}

	if err := c.store.AddDelivered(ctx, msg.ID, req.ReceiverID); err != nil {
		c.log.Errorw("mark delivered failed", "message", msg.ID, "err", err)
	}
	c.publish(ctx, events.TypeMessageDelivered, DeliveredPayload{
		MessageID:   msg.ID,
		DeliveredTo: []string{req.ReceiverID},
	})
	if senderConn, ok := c.registry.Lookup(req.SenderID); ok {
		_ = senderConn.Push(EventMessageDelivered, DeliveredPayload{
			MessageID:   msg.ID,
			DeliveredTo: []string{req.ReceiverID},
		})
	}
}

func (c *Coordinator) enqueue(ctx context.Context, sess *Session, payload MessagePayload) {
	b, err := json.Marshal(payload)
	if err != nil {
		c.log.Errorw("marshal queued payload", "message", payload.ID, "err", err)
		c.pushError(sess, msgInternalError)
		return
	}
	if err := c.queue.Enqueue(ctx, payload.ReceiverID, b); err != nil {
		c.log.Errorw("enqueue failed", "to", payload.ReceiverID, "message", payload.ID, "err", err)
		c.pushError(sess, msgInternalError)
	}
}

// handleRegister establishes presence for the session's identity and
// replays the offline queue in FIFO order. The drain hands payloads to
// the client but does not mark them delivered; that happens through the
// explicit delivered acknowledgment.
func (c *Coordinator) handleRegister(ctx context.Context, sess *Session, _ json.RawMessage) {
	c.registry.Register(sess.UserID, sess.Conn)
	if c.snapshot != nil {
		if err := c.snapshot.SetOnline(ctx, sess.UserID); err != nil {
			c.log.Warnw("presence snapshot update failed", "user", sess.UserID, "err", err)
		}
	}

	entries, err := c.queue.DrainAll(ctx, sess.UserID)
	if err != nil {
		c.log.Errorw("offline drain failed", "user", sess.UserID, "err", err)
		c.pushError(sess, msgInternalError)
		return
	}

	handed := 0
	for _, entry := range entries {
		var payload MessagePayload
		if err := json.Unmarshal(entry, &payload); err != nil {
			// a poison entry must not wedge the queue; count it as read
			c.log.Warnw("dropping undecodable queued entry", "user", sess.UserID, "err", err)
			handed++
			continue
		}
		if err := sess.Conn.Push(EventReceiveMessage, payload); err != nil {
			// connection dropped mid-drain; everything not yet handed
			// over stays queued for the next registration
			c.log.Infow("drain interrupted", "user", sess.UserID, "handed", handed, "err", err)
			break
		}
		handed++
	}

	if handed > 0 {
		if err := c.queue.Clear(ctx, sess.UserID, handed); err != nil {
			c.log.Errorw("offline clear failed", "user", sess.UserID, "err", err)
		}
	}
	c.log.Infow("user registered", "user", sess.UserID, "replayed", handed)
}

// handleSeen records the viewer in the message's seenBy set and
// notifies the original sender when online. An unknown id is logged
// and swallowed.
func (c *Coordinator) handleSeen(ctx context.Context, sess *Session, raw json.RawMessage) {
	var req SeenRequest
	if err := json.Unmarshal(raw, &req); err != nil || req.MessageID == "" {
		c.pushError(sess, msgInvalidPayload)
		return
	}

	msg, err := c.store.AddSeen(ctx, req.MessageID, sess.UserID)
	if errors.Is(err, errs.ErrNotFound) {
		c.log.Warnw("seen report for unknown message", "message", req.MessageID, "viewer", sess.UserID)
		return
	}
	if err != nil {
		c.log.Errorw("mark seen failed", "message", req.MessageID, "err", err)
		c.pushError(sess, msgInternalError)
		return
	}

	c.publish(ctx, events.TypeMessageSeen, SeenUpdatePayload{
		MessageID: req.MessageID,
		SeenBy:    msg.Status.SeenBy,
	})
	if senderConn, ok := c.registry.Lookup(msg.SenderID); ok {
		_ = senderConn.Push(EventSeenUpdate, SeenUpdatePayload{
			MessageID: req.MessageID,
			SeenBy:    msg.Status.SeenBy,
		})
	}
}

// HandleDisconnect tears down presence for a closing connection.
// Idempotent, and a no-op for an identity registered from a newer
// connection.
func (c *Coordinator) HandleDisconnect(ctx context.Context, sess *Session) {
	c.registry.Unregister(sess.UserID, sess.Conn)
	// only mirror offline if no newer connection superseded this one
	if _, stillOnline := c.registry.Lookup(sess.UserID); !stillOnline && c.snapshot != nil {
		if err := c.snapshot.SetOffline(ctx, sess.UserID); err != nil {
			c.log.Warnw("presence snapshot update failed", "user", sess.UserID, "err", err)
		}
	}
	c.log.Infow("user disconnected", "user", sess.UserID)
}

func (c *Coordinator) pushError(sess *Session, msg string) {
	_ = sess.Conn.Push(EventError, ErrorPayload{Error: msg})
}

func (c *Coordinator) publish(ctx context.Context, eventType string, payload any) {
	if c.pub == nil {
		return
	}
	if err := c.pub.Publish(ctx, eventType, payload); err != nil {
		c.log.Debugw("lifecycle publish failed", "type", eventType, "err", err)
	}
}
