package api

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/fathima-sithara/relay-service/internal/errs"
)

type handlers struct {
	deps Deps
}

// messageView is the decrypted history item returned to clients.
type messageView struct {
	ID         string    `json:"id"`
	ChatID     string    `json:"chatId"`
	SenderID   string    `json:"senderId"`
	ReceiverID string    `json:"receiverId"`
	Message    string    `json:"message"`
	Status     any       `json:"status"`
	Timestamp  time.Time `json:"timestamp"`
}

// listMessages returns a chat's full history, oldest first, decrypting
// each body. A body that fails decryption is surfaced per-message and
// never aborts the batch.
func (h *handlers) listMessages(c *fiber.Ctx) error {
	chatID := c.Params("chatId")
	ctx, cancel := context.WithTimeout(c.Context(), 5*time.Second)
	defer cancel()

	msgs, err := h.deps.Messages.ListByChat(ctx, chatID)
	if err != nil {
		h.deps.Log.Errorw("history fetch failed", "chat", chatID, "err", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to fetch messages"})
	}

	out := make([]messageView, 0, len(msgs))
	for _, m := range msgs {
		body, err := h.deps.Codec.Decrypt(m.Body)
		if err != nil {
			h.deps.Log.Warnw("undecryptable message in history", "message", m.ID, "err", err)
			body = "[undecryptable]"
		}
		out = append(out, messageView{
			ID:         m.ID,
			ChatID:     m.ChatID,
			SenderID:   m.SenderID,
			ReceiverID: m.ReceiverID,
			Message:    body,
			Status:     m.Status,
			Timestamp:  m.Timestamp,
		})
	}
	return c.JSON(out)
}

// markDelivered is the explicit acknowledgment that confirms a queued
// (drained) message reached its recipient. Repeat acks are no-ops via
// the store's set-add semantics.
func (h *handlers) markDelivered(c *fiber.Ctx) error {
	return h.markStatus(c, h.deps.Messages.AddDelivered)
}

func (h *handlers) markSeen(c *fiber.Ctx) error {
	return h.markStatus(c, func(ctx context.Context, messageID, userID string) error {
		_, err := h.deps.Messages.AddSeen(ctx, messageID, userID)
		return err
	})
}

func (h *handlers) markStatus(c *fiber.Ctx, add func(ctx context.Context, messageID, userID string) error) error {
	var body struct {
		UserID string `json:"userId"`
	}
	if err := c.BodyParser(&body); err != nil || body.UserID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "userId is required"})
	}
	ctx, cancel := context.WithTimeout(c.Context(), 5*time.Second)
	defer cancel()

	err := add(ctx, c.Params("messageId"), body.UserID)
	if errors.Is(err, errs.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "message not found"})
	}
	if err != nil {
		h.deps.Log.Errorw("status update failed", "message", c.Params("messageId"), "err", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to update status"})
	}
	return c.JSON(fiber.Map{"success": true})
}

// getPresence reads the advisory presence snapshot.
func (h *handlers) getPresence(c *fiber.Ctx) error {
	if h.deps.Snapshot == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "presence not available"})
	}
	ctx, cancel := context.WithTimeout(c.Context(), 3*time.Second)
	defer cancel()

	status, lastSeen, err := h.deps.Snapshot.Get(ctx, c.Params("userId"))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to fetch presence"})
	}
	resp := fiber.Map{"status": status}
	if !lastSeen.IsZero() {
		resp["lastSeen"] = lastSeen.UTC()
	}
	return c.JSON(resp)
}
