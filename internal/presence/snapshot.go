package presence

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Snapshot mirrors coarse presence (online flag + last seen) into Redis
// so collaborators outside this process can read it. It is advisory
// only: delivery routing never consults it, only the in-process
// Registry.
type Snapshot struct {
	client *redis.Client
	prefix string
}

type snapshotState struct {
	Status   string `json:"status"`
	LastSeen int64  `json:"last_seen"`
}

func NewSnapshot(client *redis.Client, prefix string) *Snapshot {
	return &Snapshot{client: client, prefix: prefix}
}

func (s *Snapshot) key(userID string) string {
	return fmt.Sprintf("%s:presence:%s", s.prefix, userID)
}

func (s *Snapshot) SetOnline(ctx context.Context, userID string) error {
	return s.set(ctx, userID, "online")
}

func (s *Snapshot) SetOffline(ctx context.Context, userID string) error {
	return s.set(ctx, userID, "offline")
}

func (s *Snapshot) set(ctx context.Context, userID, status string) error {
	b, _ := json.Marshal(snapshotState{Status: status, LastSeen: time.Now().Unix()})
	return s.client.Set(ctx, s.key(userID), b, 0).Err()
}

// Get returns the stored status and last-seen time. A user never seen
// before reads as offline.
func (s *Snapshot) Get(ctx context.Context, userID string) (string, time.Time, error) {
	b, err := s.client.Get(ctx, s.key(userID)).Bytes()
	if err == redis.Nil {
		return "offline", time.Time{}, nil
	}
	if err != nil {
		return "", time.Time{}, err
	}
	var st snapshotState
	if err := json.Unmarshal(b, &st); err != nil {
		return "", time.Time{}, err
	}
	return st.Status, time.Unix(st.LastSeen, 0), nil
}
