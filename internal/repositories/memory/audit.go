package memory

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/BradenHooton/sentinel/internal/models"
	"github.com/google/uuid"
)

// AuditEventStore keeps events in append order
type AuditEventStore struct {
	mu     sync.RWMutex
	events []models.AuditEvent
}

func NewAuditEventStore() *AuditEventStore {
	return &AuditEventStore{}
}

func (s *AuditEventStore) Append(_ context.Context, event *models.AuditEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	stored := *event
	stored.Details = maps.Clone(event.Details)
	s.events = append(s.events, stored)
	return nil
}

// List returns up to limit events, newest first
func (s *AuditEventStore) List(_ context.Context, limit int) ([]*models.AuditEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.AuditEvent, 0, min(limit, len(s.events)))
	for i := len(s.events) - 1; i >= 0 && len(out) < limit; i-- {
		e := s.events[i]
		e.Details = maps.Clone(e.Details)
		out = append(out, &e)
	}
	return out, nil
}

func (s *AuditEventStore) CountSince(_ context.Context, since time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, e := range s.events {
		if !e.Timestamp.Before(since) {
			n++
		}
	}
	return n, nil
}

func (s *AuditEventStore) TimestampsSince(_ context.Context, since time.Time) ([]time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]time.Time, 0)
	for _, e := range s.events {
		if !e.Timestamp.Before(since) {
			out = append(out, e.Timestamp)
		}
	}
	return out, nil
}

// NotificationStore keeps notifications in creation order
type NotificationStore struct {
	mu    sync.RWMutex
	items []models.Notification
}

func NewNotificationStore() *NotificationStore {
	return &NotificationStore{}
}

func (s *NotificationStore) Create(_ context.Context, n *models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	stored := *n
	stored.RelatedInfo = maps.Clone(n.RelatedInfo)
	s.items = append(s.items, stored)
	return nil
}

func (s *NotificationStore) List(_ context.Context, limit int) ([]*models.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Notification, 0, min(limit, len(s.items)))
	for i := len(s.items) - 1; i >= 0 && len(out) < limit; i-- {
		n := s.items[i]
		n.RelatedInfo = maps.Clone(n.RelatedInfo)
		out = append(out, &n)
	}
	return out, nil
}

func (s *NotificationStore) MarkRead(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.items {
		if s.items[i].ID == id {
			s.items[i].IsRead = true
			return nil
		}
	}
	return models.ErrNotFound
}

func (s *NotificationStore) MarkAllRead(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for i := range s.items {
		if !s.items[i].IsRead {
			s.items[i].IsRead = true
			n++
		}
	}
	return n, nil
}

// TokenRevocationStore tracks revoked session ids until their natural expiry
type TokenRevocationStore struct {
	mu      sync.RWMutex
	revoked map[string]time.Time
}

func NewTokenRevocationStore() *TokenRevocationStore {
	return &TokenRevocationStore{revoked: make(map[string]time.Time)}
}

func (s *TokenRevocationStore) RevokeToken(_ context.Context, jti, _ string, expiresAt time.Time, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.revoked[jti]; !ok {
		s.revoked[jti] = expiresAt
	}
	return nil
}

func (s *TokenRevocationStore) IsTokenRevoked(_ context.Context, jti string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.revoked[jti]
	return ok, nil
}

func (s *TokenRevocationStore) CleanupExpiredTokens(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for jti, exp := range s.revoked {
		if exp.Before(now) {
			delete(s.revoked, jti)
			n++
		}
	}
	return n, nil
}
