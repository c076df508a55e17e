// Package memory holds mutex-guarded in-process stores with the same contracts
// as the PostgreSQL repositories. Every read and write copies, so callers never
// share state with the store.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/BradenHooton/sentinel/internal/models"
	"github.com/google/uuid"
)

// AccountStore is the in-memory IdentityStore
type AccountStore struct {
	mu       sync.RWMutex
	accounts map[string]*models.Account
	byEmail  map[string]string
	now      func() time.Time
}

func NewAccountStore() *AccountStore {
	return &AccountStore{
		accounts: make(map[string]*models.Account),
		byEmail:  make(map[string]string),
		now:      time.Now,
	}
}

func (s *AccountStore) Create(_ context.Context, account *models.Account) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.byEmail[account.Email]; taken {
		return nil, models.ErrConflict
	}
	if account.IsRoot {
		for _, a := range s.accounts {
			if a.IsRoot {
				return nil, models.ErrConflict
			}
		}
	}

	stored := account.Clone()
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	now := s.now()
	stored.Version = 1
	stored.CreatedAt = now
	stored.UpdatedAt = now

	s.accounts[stored.ID] = stored
	s.byEmail[stored.Email] = stored.ID
	return stored.Clone(), nil
}

func (s *AccountStore) GetByID(_ context.Context, id string) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.accounts[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return a.Clone(), nil
}

func (s *AccountStore) GetByEmail(_ context.Context, email string) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[email]
	if !ok {
		return nil, models.ErrNotFound
	}
	return s.accounts[id].Clone(), nil
}

// List returns accounts oldest first
func (s *AccountStore) List(_ context.Context) ([]*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		out = append(out, a.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *AccountStore) ListFaceCandidates(ctx context.Context) ([]*models.Account, error) {
	all, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, a := range all {
		if a.Role == models.RoleUser && a.HasFaceEmbedding() {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *AccountStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.accounts), nil
}

// Update runs fn under the write lock, so concurrent updates of any account
// are applied one after another.
func (s *AccountStore) Update(_ context.Context, id string, fn func(*models.Account) error) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.accounts[id]
	if !ok {
		return nil, models.ErrNotFound
	}

	next := current.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}

	if next.Email != current.Email {
		if _, taken := s.byEmail[next.Email]; taken {
			return nil, models.ErrConflict
		}
		delete(s.byEmail, current.Email)
		s.byEmail[next.Email] = id
	}

	next.ID = current.ID
	next.IsRoot = current.IsRoot
	next.CreatedAt = current.CreatedAt
	next.Version = current.Version + 1
	next.UpdatedAt = s.now()
	s.accounts[id] = next
	return next.Clone(), nil
}

func (s *AccountStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[id]
	if !ok {
		return models.ErrNotFound
	}
	if a.IsRoot {
		return models.ErrProtectedAccountViolation
	}
	delete(s.accounts, id)
	delete(s.byEmail, a.Email)
	return nil
}
