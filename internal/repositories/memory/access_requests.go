package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/BradenHooton/sentinel/internal/models"
	"github.com/google/uuid"
)

type AccessRequestStore struct {
	mu       sync.RWMutex
	requests map[string]*models.AccessRequest
	seq      map[string]int
	next     int
}

func NewAccessRequestStore() *AccessRequestStore {
	return &AccessRequestStore{
		requests: make(map[string]*models.AccessRequest),
		seq:      make(map[string]int),
	}
}

// Create rejects a second active request for the same pair with models.ErrConflict.
// The check and the insert happen under one lock.
func (s *AccessRequestStore) Create(_ context.Context, req *models.AccessRequest) (*models.AccessRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if req.Status.IsActive() && s.findActiveLocked(req.RequesterID, req.ResourceID) != nil {
		return nil, models.ErrConflict
	}

	stored := req.Clone()
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	s.next++
	s.seq[stored.ID] = s.next
	s.requests[stored.ID] = stored
	return stored.Clone(), nil
}

func (s *AccessRequestStore) findActiveLocked(requesterID, resourceID string) *models.AccessRequest {
	for _, r := range s.requests {
		if r.RequesterID == requesterID && r.ResourceID == resourceID && r.Status.IsActive() {
			return r
		}
	}
	return nil
}

func (s *AccessRequestStore) FindActive(_ context.Context, requesterID, resourceID string) (*models.AccessRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r := s.findActiveLocked(requesterID, resourceID)
	if r == nil {
		return nil, models.ErrNotFound
	}
	return r.Clone(), nil
}

func (s *AccessRequestStore) GetByID(_ context.Context, id string) (*models.AccessRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.requests[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return r.Clone(), nil
}

func (s *AccessRequestStore) Transition(_ context.Context, id string, next models.RequestStatus, decidedBy string, at time.Time) (*models.AccessRequest, models.RequestStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.requests[id]
	if !ok {
		return nil, "", models.ErrNotFound
	}

	previous := r.Status
	if !previous.CanTransitionTo(next) {
		return nil, previous, models.ErrInvalidTransition
	}

	r.Status = next
	r.DecidedAt = &at
	r.DecidedBy = &decidedBy
	return r.Clone(), previous, nil
}

// newestFirst sorts by requestedAt descending, falling back to insertion order
func (s *AccessRequestStore) newestFirst(out []*models.AccessRequest) {
	sort.Slice(out, func(i, j int) bool {
		if out[i].RequestedAt.Equal(out[j].RequestedAt) {
			return s.seq[out[i].ID] > s.seq[out[j].ID]
		}
		return out[i].RequestedAt.After(out[j].RequestedAt)
	})
}

func (s *AccessRequestStore) List(_ context.Context, status models.RequestStatus) ([]*models.AccessRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.AccessRequest, 0, len(s.requests))
	for _, r := range s.requests {
		if status == "" || r.Status == status {
			out = append(out, r.Clone())
		}
	}
	s.newestFirst(out)
	return out, nil
}

func (s *AccessRequestStore) ListByRequester(_ context.Context, requesterID string) ([]*models.AccessRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.AccessRequest, 0)
	for _, r := range s.requests {
		if r.RequesterID == requesterID {
			out = append(out, r.Clone())
		}
	}
	s.newestFirst(out)
	return out, nil
}

func (s *AccessRequestStore) CountByStatus(_ context.Context, status models.RequestStatus) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, r := range s.requests {
		if r.Status == status {
			n++
		}
	}
	return n, nil
}
