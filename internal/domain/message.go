package domain

import "time"

// CipherText is an encrypted message body as stored at rest. Both parts
// are hex-encoded; the IV is unique per encryption call.
type CipherText struct {
	IV      string `bson:"iv" json:"iv"`
	Content string `bson:"content" json:"content"`
}

// Status tracks which participants have received and viewed a message.
// Both lists are append-only sets; identities are added with atomic
// set-union updates and never removed.
type Status struct {
	DeliveredTo []string `bson:"deliveredTo" json:"deliveredTo"`
	SeenBy      []string `bson:"seenBy" json:"seenBy"`
}

// Message is the persisted form of a direct message. The body is never
// stored in plaintext.
type Message struct {
	ID         string     `bson:"_id" json:"id"`
	ChatID     string     `bson:"chatId" json:"chatId"`
	SenderID   string     `bson:"senderId" json:"senderId"`
	ReceiverID string     `bson:"receiverId" json:"receiverId"`
	Body       CipherText `bson:"message" json:"message"`
	Status     Status     `bson:"status" json:"status"`
	Timestamp  time.Time  `bson:"timestamp" json:"timestamp"`
}

// User is an account record. The password is a bcrypt hash.
type User struct {
	Name     string `bson:"name" json:"name"`
	Email    string `bson:"email" json:"email"`
	Password string `bson:"password" json:"-"`
}

// ChatKey derives the deterministic two-party conversation id clients
// compute for themselves: the sorted pair of identities joined with an
// underscore, so both sides arrive at the same key independently.
func ChatKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + "_" + b
}
