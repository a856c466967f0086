package store

import (
	"context"
	"sync"

	"github.com/fathima-sithara/relay-service/internal/domain"
	"github.com/fathima-sithara/relay-service/internal/errs"
)

// MemoryUserStore is the in-process UserStore counterpart for tests.
type MemoryUserStore struct {
	mu    sync.Mutex
	users map[string]domain.User
}

func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{users: make(map[string]domain.User)}
}

func (s *MemoryUserStore) CreateUser(_ context.Context, u *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.users[u.Email]; exists {
		return ErrDuplicateEmail
	}
	s.users[u.Email] = *u
	return nil
}

func (s *MemoryUserStore) FindUserByEmail(_ context.Context, email string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[email]
	if !ok {
		return nil, errs.ErrNotFound
	}
	cp := u
	return &cp, nil
}
