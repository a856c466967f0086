package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fathima-sithara/relay-service/internal/domain"
	"github.com/fathima-sithara/relay-service/internal/errs"
)

// MemoryMessageStore is an in-process MessageStore for tests and local
// development. Status updates use set-union semantics, same as the
// Mongo $addToSet operators.
type MemoryMessageStore struct {
	mu       sync.Mutex
	messages map[string]*domain.Message
	order    []string
}

func NewMemoryMessageStore() *MemoryMessageStore {
	return &MemoryMessageStore{messages: make(map[string]*domain.Message)}
}

func (s *MemoryMessageStore) Create(_ context.Context, m *domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m.ID = uuid.NewString()
	m.Timestamp = time.Now().UTC()
	if m.Status.DeliveredTo == nil {
		m.Status.DeliveredTo = []string{}
	}
	if m.Status.SeenBy == nil {
		m.Status.SeenBy = []string{}
	}
	cp := *m
	s.messages[m.ID] = &cp
	s.order = append(s.order, m.ID)
	return nil
}

func (s *MemoryMessageStore) AddDelivered(_ context.Context, messageID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.messages[messageID]
	if !ok {
		return errs.ErrNotFound
	}
	m.Status.DeliveredTo = addToSet(m.Status.DeliveredTo, userID)
	return nil
}

func (s *MemoryMessageStore) AddSeen(_ context.Context, messageID, userID string) (*domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.messages[messageID]
	if !ok {
		return nil, errs.ErrNotFound
	}
	m.Status.SeenBy = addToSet(m.Status.SeenBy, userID)
	cp := *m
	return &cp, nil
}

func (s *MemoryMessageStore) FindByID(_ context.Context, messageID string) (*domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.messages[messageID]
	if !ok {
		return nil, errs.ErrNotFound
	}
	cp := *m
	return &cp, nil
}

func (s *MemoryMessageStore) ListByChat(_ context.Context, chatID string) ([]*domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []*domain.Message{}
	for _, id := range s.order {
		if m := s.messages[id]; m.ChatID == chatID {
			cp := *m
			out = append(out, &cp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

// Count reports the number of persisted messages.
func (s *MemoryMessageStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

func addToSet(set []string, v string) []string {
	for _, cur := range set {
		if cur == v {
			return set
		}
	}
	return append(set, v)
}
