package store

import (
	"context"

	"github.com/fathima-sithara/relay-service/internal/domain"
)

// MessageStore is the durable source of truth for messages and their
// delivery/seen status. Status mutations are atomic set-adds at the
// engine, never read-modify-write at the caller, so concurrent reports
// union instead of racing.
type MessageStore interface {
	// Create persists m, assigning its id and server-side timestamp.
	Create(ctx context.Context, m *domain.Message) error
	// AddDelivered adds userID to the message's deliveredTo set.
	AddDelivered(ctx context.Context, messageID, userID string) error
	// AddSeen adds userID to the message's seenBy set and returns the
	// updated message. errs.ErrNotFound for an unknown id.
	AddSeen(ctx context.Context, messageID, userID string) (*domain.Message, error)
	// FindByID returns the message or errs.ErrNotFound.
	FindByID(ctx context.Context, messageID string) (*domain.Message, error)
	// ListByChat returns all messages of a chat, oldest first.
	ListByChat(ctx context.Context, chatID string) ([]*domain.Message, error)
}

// UserStore persists accounts for the auth routes.
type UserStore interface {
	CreateUser(ctx context.Context, u *domain.User) error
	FindUserByEmail(ctx context.Context, email string) (*domain.User, error)
}
