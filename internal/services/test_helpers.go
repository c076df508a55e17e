package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/BradenHooton/sentinel/internal/models"
)

// FakeClock is a settable Clock for tests
type FakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func NewFakeClock(now time.Time) *FakeClock {
	return &FakeClock{now: now}
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *FakeClock) Set(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

// Defaults returned by MockTotpProvider
const (
	TestTOTPSecret = "JBSWY3DPEHPK3PXP"
	TestTOTPCode   = "123456"
)

// MockTotpProvider implements TotpProvider for testing
type MockTotpProvider struct {
	GenerateSecretFunc func(accountName string) (string, string, error)
	ValidateFunc       func(secret, code string, at time.Time) bool
}

func (m *MockTotpProvider) GenerateSecret(accountName string) (string, string, error) {
	if m.GenerateSecretFunc != nil {
		return m.GenerateSecretFunc(accountName)
	}
	return TestTOTPSecret, fmt.Sprintf("otpauth://totp/Sentinel:%s?secret=%s", accountName, TestTOTPSecret), nil
}

func (m *MockTotpProvider) Validate(secret, code string, at time.Time) bool {
	if m.ValidateFunc != nil {
		return m.ValidateFunc(secret, code, at)
	}
	return secret == TestTOTPSecret && code == TestTOTPCode
}

// PrefixSealer is a reversible SecretSealer that only marks values as sealed
type PrefixSealer struct{}

const sealedPrefix = "sealed:"

func (PrefixSealer) Seal(secret string) (string, error) {
	return sealedPrefix + secret, nil
}

func (PrefixSealer) Open(sealed string) (string, error) {
	if !strings.HasPrefix(sealed, sealedPrefix) {
		return "", fmt.Errorf("value is not sealed")
	}
	return strings.TrimPrefix(sealed, sealedPrefix), nil
}

// MockQrEncoder implements QrEncoder for testing
type MockQrEncoder struct {
	DataURLFunc func(content string) (string, error)
}

func (m *MockQrEncoder) DataURL(content string) (string, error) {
	if m.DataURLFunc != nil {
		return m.DataURLFunc(content)
	}
	return "data:image/png;base64,AAAA", nil
}

// PlainHasher is a CredentialHasher without the bcrypt cost
type PlainHasher struct {
	mu    sync.Mutex
	burns int
}

func (h *PlainHasher) Hash(credential string) (string, error) {
	if credential == "" {
		return "", fmt.Errorf("password cannot be empty")
	}
	return "hashed:" + credential, nil
}

func (h *PlainHasher) Matches(hash, credential string) bool {
	return hash != "" && hash == "hashed:"+credential
}

func (h *PlainHasher) Burn(string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.burns++
}

func (h *PlainHasher) Burns() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.burns
}

// MockSessionIssuer implements SessionIssuer for testing
type MockSessionIssuer struct {
	IssueFunc func(account *models.Account, now time.Time) (string, time.Time, error)
}

func (m *MockSessionIssuer) Issue(account *models.Account, now time.Time) (string, time.Time, error) {
	if m.IssueFunc != nil {
		return m.IssueFunc(account, now)
	}
	return "token-" + account.ID, now.Add(time.Hour), nil
}

// MockAuditEventStore implements AuditEventStore for testing
type MockAuditEventStore struct {
	AppendFunc          func(ctx context.Context, event *models.AuditEvent) error
	ListFunc            func(ctx context.Context, limit int) ([]*models.AuditEvent, error)
	CountSinceFunc      func(ctx context.Context, since time.Time) (int, error)
	TimestampsSinceFunc func(ctx context.Context, since time.Time) ([]time.Time, error)
}

func (m *MockAuditEventStore) Append(ctx context.Context, event *models.AuditEvent) error {
	if m.AppendFunc != nil {
		return m.AppendFunc(ctx, event)
	}
	return nil
}

func (m *MockAuditEventStore) List(ctx context.Context, limit int) ([]*models.AuditEvent, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, limit)
	}
	return []*models.AuditEvent{}, nil
}

func (m *MockAuditEventStore) CountSince(ctx context.Context, since time.Time) (int, error) {
	if m.CountSinceFunc != nil {
		return m.CountSinceFunc(ctx, since)
	}
	return 0, nil
}

func (m *MockAuditEventStore) TimestampsSince(ctx context.Context, since time.Time) ([]time.Time, error) {
	if m.TimestampsSinceFunc != nil {
		return m.TimestampsSinceFunc(ctx, since)
	}
	return []time.Time{}, nil
}

// MockNotificationStore implements NotificationStore for testing
type MockNotificationStore struct {
	CreateFunc      func(ctx context.Context, n *models.Notification) error
	ListFunc        func(ctx context.Context, limit int) ([]*models.Notification, error)
	MarkReadFunc    func(ctx context.Context, id string) error
	MarkAllReadFunc func(ctx context.Context) (int, error)
}

func (m *MockNotificationStore) Create(ctx context.Context, n *models.Notification) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, n)
	}
	return nil
}

func (m *MockNotificationStore) List(ctx context.Context, limit int) ([]*models.Notification, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, limit)
	}
	return []*models.Notification{}, nil
}

func (m *MockNotificationStore) MarkRead(ctx context.Context, id string) error {
	if m.MarkReadFunc != nil {
		return m.MarkReadFunc(ctx, id)
	}
	return nil
}

func (m *MockNotificationStore) MarkAllRead(ctx context.Context) (int, error) {
	if m.MarkAllReadFunc != nil {
		return m.MarkAllReadFunc(ctx)
	}
	return 0, nil
}

// RecordingSink is a NotificationSink that keeps what it receives
type RecordingSink struct {
	mu    sync.Mutex
	items []models.Notification
	Full  bool
}

func (s *RecordingSink) Enqueue(n models.Notification) bool {
	if s.Full {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, n)
	return true
}

func (s *RecordingSink) Items() []models.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Notification(nil), s.items...)
}
