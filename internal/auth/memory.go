package auth

import (
	"context"
	"strings"
	"sync"
	"time"

	"cliptide.org/internal/ids"
)

var _ Store = (*InMemoryStore)(nil)

// InMemoryStore implements Store with in-process concurrency safety. It backs
// local development without Postgres and the service-level tests. Replace
// performs its compare-and-overwrite under the store mutex, giving the same
// at-most-one-winner guarantee as the SQL conditional update.
type InMemoryStore struct {
	mu       sync.RWMutex
	users    map[string]*User  // id -> user
	refresh  map[string]string // id -> current refresh token
	byLogin  map[string]string // username/email -> id
}

// NewInMemoryStore creates an empty store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		users:   make(map[string]*User),
		refresh: make(map[string]string),
		byLogin: make(map[string]string),
	}
}

func (s *InMemoryStore) Users(context.Context) UserStore             { return (*memUserStore)(s) }
func (s *InMemoryStore) Credentials(context.Context) CredentialStore { return (*memCredentialStore)(s) }

type memUserStore InMemoryStore

func (s *memUserStore) Create(ctx context.Context, u *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID == "" {
		u.ID = ids.New()
	}
	username := strings.ToLower(u.Username)
	email := strings.ToLower(u.Email)
	if _, ok := s.byLogin[username]; ok {
		return ErrAlreadyExists
	}
	if _, ok := s.byLogin[email]; ok {
		return ErrAlreadyExists
	}
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now
	copied := *u
	s.users[u.ID] = &copied
	s.byLogin[username] = u.ID
	s.byLogin[email] = u.ID
	return nil
}

func (s *memUserStore) Find(ctx context.Context, id string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *u
	return &out, nil
}

func (s *memUserStore) FindByLogin(ctx context.Context, login string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byLogin[strings.TrimSpace(strings.ToLower(login))]
	if !ok {
		return nil, ErrNotFound
	}
	out := *s.users[id]
	return &out, nil
}

type memCredentialStore InMemoryStore

func (s *memCredentialStore) Put(ctx context.Context, principalID, refreshToken string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[principalID]; !ok {
		return ErrNotFound
	}
	s.refresh[principalID] = refreshToken
	return nil
}

func (s *memCredentialStore) Get(ctx context.Context, principalID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stored, ok := s.refresh[principalID]
	if !ok || stored == "" {
		return "", ErrNotFound
	}
	return stored, nil
}

func (s *memCredentialStore) Clear(ctx context.Context, principalID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.refresh, principalID)
	return nil
}

func (s *memCredentialStore) Replace(ctx context.Context, principalID, presented, next string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.refresh[principalID]
	if !ok || stored != presented {
		return false, nil
	}
	s.refresh[principalID] = next
	return true, nil
}
