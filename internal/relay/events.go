package relay

import (
	"encoding/json"
	"time"
)

// Envelope is the wire frame for every websocket message in either
// direction: a stable event name plus a JSON payload.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Client → server events.
const (
	EventRegister    = "register"
	EventSendMessage = "send_message"
	EventMessageSeen = "message_seen"
)

// Server → client events.
const (
	EventReceiveMessage   = "receive_message"
	EventMessageDelivered = "message_delivered"
	EventSeenUpdate       = "message_seen_update"
	EventError            = "error_message"
)

// SendRequest is the send_message payload. All four fields are required.
type SendRequest struct {
	Message    string `json:"message"`
	ChatID     string `json:"chatId"`
	SenderID   string `json:"senderId"`
	ReceiverID string `json:"receiverId"`
}

// SeenRequest is the message_seen payload. The viewer identity comes
// from the connection, not the payload.
type SeenRequest struct {
	MessageID string `json:"messageId"`
}

// MessagePayload is the receive_message payload pushed to a recipient,
// carrying the plaintext body. It is also the serialized form queued
// for offline recipients.
type MessagePayload struct {
	ID         string    `json:"id"`
	ChatID     string    `json:"chatId"`
	SenderID   string    `json:"senderId"`
	ReceiverID string    `json:"receiverId"`
	Body       string    `json:"body"`
	Timestamp  time.Time `json:"timestamp"`
}

// DeliveredPayload is the message_delivered acknowledgment to a sender.
type DeliveredPayload struct {
	MessageID   string   `json:"messageId"`
	DeliveredTo []string `json:"deliveredTo"`
}

// SeenUpdatePayload is the message_seen_update acknowledgment to a
// sender, carrying the full current seenBy set.
type SeenUpdatePayload struct {
	MessageID string   `json:"messageId"`
	SeenBy    []string `json:"seenBy"`
}

// ErrorPayload is the error_message payload.
type ErrorPayload struct {
	Error string `json:"error"`
}
