package directory

import (
	"context"
	"sync"
	"time"
)

// MemoryStore mirrors PostgresStore semantics for tests.
type MemoryStore struct {
	mu      sync.Mutex
	clients map[string]Client
	users   map[int64]User
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		clients: make(map[string]Client),
		users:   make(map[int64]User),
		now:     time.Now,
	}
}

func (s *MemoryStore) UpsertClient(ctx context.Context, c Client) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.UpdatedAt = s.now().UTC()
	s.clients[c.ID] = c
	return nil
}

func (s *MemoryStore) UpsertClients(ctx context.Context, cs []Client) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now().UTC()
	for _, c := range cs {
		c.UpdatedAt = now
		s.clients[c.ID] = c
	}
	return nil
}

func (s *MemoryStore) FindClientByPhone(ctx context.Context, phone string) (Client, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.clients {
		if c.Phone == phone {
			return c, true, nil
		}
	}
	return Client{}, false, nil
}

func (s *MemoryStore) CountClients(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.clients)), nil
}

func (s *MemoryStore) UpsertUser(ctx context.Context, u User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.users[u.TelegramID]; ok {
		u.CreatedAt = existing.CreatedAt
	} else {
		u.CreatedAt = s.now().UTC()
	}
	s.users[u.TelegramID] = u
	return nil
}

func (s *MemoryStore) FindUser(ctx context.Context, telegramID int64) (User, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[telegramID]
	return u, ok, nil
}
