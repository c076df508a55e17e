package services

import (
	"context"
	"time"

	"github.com/BradenHooton/sentinel/internal/models"
)

// IdentityStore persists Account records. Update is the only way to change an
// existing account: fn sees a private copy and the store commits it atomically
// with respect to other updates of the same account.
type IdentityStore interface {
	Create(ctx context.Context, account *models.Account) (*models.Account, error)
	GetByID(ctx context.Context, id string) (*models.Account, error)
	GetByEmail(ctx context.Context, email string) (*models.Account, error)
	List(ctx context.Context) ([]*models.Account, error)
	ListFaceCandidates(ctx context.Context) ([]*models.Account, error)
	Count(ctx context.Context) (int, error)
	Update(ctx context.Context, id string, fn func(*models.Account) error) (*models.Account, error)
	Delete(ctx context.Context, id string) error
}

// AccessRequestStore persists access requests. Create must reject a second
// active request for the same pair with models.ErrConflict.
type AccessRequestStore interface {
	Create(ctx context.Context, req *models.AccessRequest) (*models.AccessRequest, error)
	FindActive(ctx context.Context, requesterID, resourceID string) (*models.AccessRequest, error)
	GetByID(ctx context.Context, id string) (*models.AccessRequest, error)
	Transition(ctx context.Context, id string, next models.RequestStatus, decidedBy string, at time.Time) (*models.AccessRequest, models.RequestStatus, error)
	List(ctx context.Context, status models.RequestStatus) ([]*models.AccessRequest, error)
	ListByRequester(ctx context.Context, requesterID string) ([]*models.AccessRequest, error)
	CountByStatus(ctx context.Context, status models.RequestStatus) (int, error)
}

type AuditEventStore interface {
	Append(ctx context.Context, event *models.AuditEvent) error
	List(ctx context.Context, limit int) ([]*models.AuditEvent, error)
	CountSince(ctx context.Context, since time.Time) (int, error)
	TimestampsSince(ctx context.Context, since time.Time) ([]time.Time, error)
}

type NotificationStore interface {
	Create(ctx context.Context, n *models.Notification) error
	List(ctx context.Context, limit int) ([]*models.Notification, error)
	MarkRead(ctx context.Context, id string) error
	MarkAllRead(ctx context.Context) (int, error)
}

type TokenRevocationStore interface {
	RevokeToken(ctx context.Context, jti, accountID string, expiresAt time.Time, reason string) error
	IsTokenRevoked(ctx context.Context, jti string) (bool, error)
}

// TotpProvider generates and checks time-based one-time codes
type TotpProvider interface {
	GenerateSecret(accountName string) (secret, provisioningURI string, err error)
	Validate(secret, code string, at time.Time) bool
}

// SecretSealer encrypts TOTP secrets at rest
type SecretSealer interface {
	Seal(secret string) (string, error)
	Open(sealed string) (string, error)
}

// QrEncoder renders a provisioning URI as an image data URL
type QrEncoder interface {
	DataURL(content string) (string, error)
}

// EmbeddingMatcher picks the enrolled account closest to a probe embedding
type EmbeddingMatcher interface {
	Match(probe []float64, candidates []*models.Account) *models.Account
}

// CredentialHasher hashes and compares credentials. Burn performs a comparison
// against a dummy hash so misses cost the same as hits.
type CredentialHasher interface {
	Hash(credential string) (string, error)
	Matches(hash, credential string) bool
	Burn(credential string)
}

// SessionIssuer mints signed session tokens
type SessionIssuer interface {
	Issue(account *models.Account, now time.Time) (token string, expiresAt time.Time, err error)
}

// NotificationSink receives notifications after they are stored, e.g. for e-mail fan-out
type NotificationSink interface {
	Enqueue(n models.Notification) bool
}

// Clock abstracts time for deterministic tests
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// Actor identifies who performed an administrative operation
type Actor struct {
	ID    string
	Label string
}
