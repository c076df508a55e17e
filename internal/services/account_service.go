package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/BradenHooton/sentinel/internal/models"
	pkgauth "github.com/BradenHooton/sentinel/pkg/auth"
	pkglogger "github.com/BradenHooton/sentinel/pkg/logger"
)

// Root administrator defaults
const (
	rootMaxAttemptsPerDay = 999
	rootWindowStart       = "00:00"
	rootWindowEnd         = "23:59"
)

// AccountPolicy configures account administration
type AccountPolicy struct {
	RootEmail          string
	RootPassword       string
	DefaultMaxAttempts int
}

// NewAccountInput holds the fields accepted when an administrator adds an account
type NewAccountInput struct {
	Email             string
	Name              string
	Password          string
	Role              string
	MaxAttemptsPerDay *int
	LoginWindow       *models.LoginWindow
	FaceEmbedding     []float64
}

// AccountPatch is a partial update. Nil fields are left untouched.
type AccountPatch struct {
	Email             *string
	Name              *string
	Password          *string
	Role              *string
	MaxAttemptsPerDay *int
	LoginWindow       *models.LoginWindow
	ClearLoginWindow  bool
	FaceEmbedding     []float64
	ClearFace         bool
	Blocked           *bool
	// BlockMinutes bounds a block set through Blocked. Zero blocks until cleared.
	BlockMinutes int
}

// AccountService administers accounts and owns the root administrator bootstrap
type AccountService struct {
	accounts IdentityStore
	hasher   CredentialHasher
	audit    *AuditService
	logger   *slog.Logger
	clock    Clock
	policy   AccountPolicy

	rootMu sync.Mutex
}

// NewAccountService creates a new AccountService
func NewAccountService(accounts IdentityStore, hasher CredentialHasher, audit *AuditService, logger *slog.Logger, clock Clock, policy AccountPolicy) *AccountService {
	policy.RootEmail = normalizeEmail(policy.RootEmail)
	if policy.DefaultMaxAttempts <= 0 {
		policy.DefaultMaxAttempts = 5
	}
	return &AccountService{
		accounts: accounts,
		hasher:   hasher,
		audit:    audit,
		logger:   logger,
		clock:    clock,
		policy:   policy,
	}
}

// RootEmail returns the configured root administrator address
func (s *AccountService) RootEmail() string {
	return s.policy.RootEmail
}

// EnsureRootAdmin returns the root administrator, creating it on first use.
// An existing record whose role or block state drifted is repaired.
func (s *AccountService) EnsureRootAdmin(ctx context.Context) (*models.Account, error) {
	s.rootMu.Lock()
	defer s.rootMu.Unlock()

	existing, err := s.accounts.GetByEmail(ctx, s.policy.RootEmail)
	switch {
	case err == nil:
		return s.repairRoot(ctx, existing)
	case !errors.Is(err, models.ErrNotFound):
		return nil, fmt.Errorf("failed to look up root administrator: %w", err)
	}

	hash, err := s.hasher.Hash(s.policy.RootPassword)
	if err != nil {
		return nil, fmt.Errorf("failed to hash root credential: %w", err)
	}

	created, err := s.accounts.Create(ctx, &models.Account{
		Email:             s.policy.RootEmail,
		Name:              "Primary Administrator",
		CredentialHash:    hash,
		Role:              models.RoleAdmin,
		IsRoot:            true,
		LoginWindow:       &models.LoginWindow{Start: rootWindowStart, End: rootWindowEnd},
		MaxAttemptsPerDay: rootMaxAttemptsPerDay,
	})
	if errors.Is(err, models.ErrConflict) {
		// created by another instance between the lookup and the insert
		return s.accounts.GetByEmail(ctx, s.policy.RootEmail)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create root administrator: %w", err)
	}

	s.logger.InfoContext(ctx, "root administrator created",
		slog.String("email", pkglogger.SanitizedEmail(created.Email)),
	)
	s.audit.Record(ctx, created.ID, created.Email, models.ActionAdminUserCreated, models.AuditDetails{
		"email": created.Email,
		"role":  created.Role,
	})
	s.audit.Notify(ctx, fmt.Sprintf("Primary admin account %s created.", created.Email), models.NotificationInfo,
		models.AuditDetails{"user_id": created.ID, "email": created.Email})
	return created, nil
}

func (s *AccountService) repairRoot(ctx context.Context, root *models.Account) (*models.Account, error) {
	if root.IsRoot && root.Role == models.RoleAdmin && !root.Blocked {
		return root, nil
	}

	repaired, err := s.accounts.Update(ctx, root.ID, func(a *models.Account) error {
		a.Role = models.RoleAdmin
		a.Unblock()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to repair root administrator: %w", err)
	}

	s.audit.Notify(ctx, fmt.Sprintf("Primary admin account %s ensured.", repaired.Email), models.NotificationInfo,
		models.AuditDetails{"user_id": repaired.ID, "email": repaired.Email})
	return repaired, nil
}

// Get returns one account
func (s *AccountService) Get(ctx context.Context, id string) (*models.Account, error) {
	return s.accounts.GetByID(ctx, id)
}

// List returns all accounts, oldest first
func (s *AccountService) List(ctx context.Context) ([]*models.Account, error) {
	accounts, err := s.accounts.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	return accounts, nil
}

// Count returns the number of accounts
func (s *AccountService) Count(ctx context.Context) (int, error) {
	return s.accounts.Count(ctx)
}

// Add creates a non-root account
func (s *AccountService) Add(ctx context.Context, actor Actor, in NewAccountInput) (*models.Account, error) {
	if err := s.requireAdmin(ctx, actor); err != nil {
		return nil, err
	}

	email := normalizeEmail(in.Email)
	if email == "" {
		return nil, badRequest("email is required")
	}
	role := in.Role
	if role == "" {
		role = models.RoleUser
	}
	if !validRole(role) {
		return nil, badRequest("role must be admin or user")
	}
	if err := pkgauth.ValidatePassword(in.Password); err != nil {
		return nil, badRequest(err.Error())
	}
	if err := validateWindow(in.LoginWindow); err != nil {
		return nil, err
	}

	maxAttempts := s.policy.DefaultMaxAttempts
	if in.MaxAttemptsPerDay != nil {
		if *in.MaxAttemptsPerDay < 0 {
			return nil, badRequest("max attempts per day cannot be negative")
		}
		maxAttempts = *in.MaxAttemptsPerDay
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash credential: %w", err)
	}

	created, err := s.accounts.Create(ctx, &models.Account{
		Email:             email,
		Name:              strings.TrimSpace(in.Name),
		CredentialHash:    hash,
		Role:              role,
		LoginWindow:       in.LoginWindow,
		MaxAttemptsPerDay: maxAttempts,
		FaceEmbedding:     in.FaceEmbedding,
	})
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, actor.ID, actor.Label, models.ActionUserAdded, models.AuditDetails{
		"added_user_id":    created.ID,
		"added_user_email": created.Email,
		"face_data_added":  created.HasFaceEmbedding(),
	})
	return created, nil
}

// Update applies patch to an account. The root administrator keeps the admin
// role and can never be blocked.
func (s *AccountService) Update(ctx context.Context, actor Actor, id string, patch AccountPatch) (*models.Account, error) {
	if err := s.requireAdmin(ctx, actor); err != nil {
		return nil, err
	}

	if patch.Role != nil && !validRole(*patch.Role) {
		return nil, badRequest("role must be admin or user")
	}
	if err := validateWindow(patch.LoginWindow); err != nil {
		return nil, err
	}
	if patch.MaxAttemptsPerDay != nil && *patch.MaxAttemptsPerDay < 0 {
		return nil, badRequest("max attempts per day cannot be negative")
	}
	if patch.BlockMinutes < 0 {
		return nil, badRequest("block minutes cannot be negative")
	}

	var newHash string
	if patch.Password != nil {
		if err := pkgauth.ValidatePassword(*patch.Password); err != nil {
			return nil, badRequest(err.Error())
		}
		hash, err := s.hasher.Hash(*patch.Password)
		if err != nil {
			return nil, fmt.Errorf("failed to hash credential: %w", err)
		}
		newHash = hash
	}

	now := s.clock.Now()
	applied := make([]string, 0)
	var targetEmail string

	updated, err := s.accounts.Update(ctx, id, func(a *models.Account) error {
		targetEmail = a.Email
		applied = applied[:0]

		if a.IsRoot {
			if patch.Role != nil && *patch.Role != models.RoleAdmin {
				return models.ErrProtectedAccountViolation
			}
			if patch.Blocked != nil && *patch.Blocked {
				return models.ErrProtectedAccountViolation
			}
		}

		if patch.Email != nil {
			email := normalizeEmail(*patch.Email)
			if email == "" {
				return badRequest("email cannot be empty")
			}
			a.Email = email
			applied = append(applied, "email")
		}
		if patch.Name != nil {
			a.Name = strings.TrimSpace(*patch.Name)
			applied = append(applied, "name")
		}
		if newHash != "" {
			a.CredentialHash = newHash
			applied = append(applied, "password")
		}
		if patch.Role != nil {
			if a.Role == models.RoleAdmin && *patch.Role != models.RoleAdmin {
				a.TwoFactor = nil
				a.PendingTwoFactor = nil
			}
			a.Role = *patch.Role
			applied = append(applied, "role")
		}
		if patch.MaxAttemptsPerDay != nil {
			a.MaxAttemptsPerDay = *patch.MaxAttemptsPerDay
			applied = append(applied, "max_attempts_per_day")
		}
		if patch.ClearLoginWindow {
			a.LoginWindow = nil
			applied = append(applied, "login_window")
		} else if patch.LoginWindow != nil {
			w := *patch.LoginWindow
			a.LoginWindow = &w
			applied = append(applied, "login_window")
		}
		if patch.ClearFace {
			a.FaceEmbedding = nil
			applied = append(applied, "face_embedding")
		} else if len(patch.FaceEmbedding) > 0 {
			a.FaceEmbedding = append([]float64(nil), patch.FaceEmbedding...)
			applied = append(applied, "face_embedding")
		}
		if patch.Blocked != nil {
			switch {
			case !*patch.Blocked:
				a.Unblock()
			case patch.BlockMinutes > 0:
				a.Block(now.Add(time.Duration(patch.BlockMinutes) * time.Minute))
			default:
				a.Blocked = true
				a.BlockedUntil = nil
			}
			applied = append(applied, "blocked")
		}
		return nil
	})
	if errors.Is(err, models.ErrProtectedAccountViolation) {
		s.audit.RecordDenial(ctx, actor.ID, actor.Label, models.ActionProtectedAccount, models.KindProtectedAccountViolation,
			models.AuditDetails{"target_user_id": id, "target_email": targetEmail, "operation": "update"})
		return nil, err
	}
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, actor.ID, actor.Label, models.ActionUserUpdated, models.AuditDetails{
		"updated_user_id":   updated.ID,
		"updates_applied":   applied,
		"face_data_updated": patch.ClearFace || len(patch.FaceEmbedding) > 0,
	})
	return updated, nil
}

// Delete removes a non-root account
func (s *AccountService) Delete(ctx context.Context, actor Actor, id string) error {
	if err := s.requireAdmin(ctx, actor); err != nil {
		return err
	}

	target, err := s.accounts.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if target.IsRoot {
		s.audit.RecordDenial(ctx, actor.ID, actor.Label, models.ActionProtectedAccount, models.KindProtectedAccountViolation,
			models.AuditDetails{"target_user_id": id, "target_email": target.Email, "operation": "delete"})
		return models.ErrProtectedAccountViolation
	}

	if err := s.accounts.Delete(ctx, id); err != nil {
		if errors.Is(err, models.ErrProtectedAccountViolation) {
			s.audit.RecordDenial(ctx, actor.ID, actor.Label, models.ActionProtectedAccount, models.KindProtectedAccountViolation,
				models.AuditDetails{"target_user_id": id, "target_email": target.Email, "operation": "delete"})
		}
		return err
	}

	s.audit.Record(ctx, actor.ID, actor.Label, models.ActionUserDeleted, models.AuditDetails{
		"deleted_user_id":    target.ID,
		"deleted_user_email": target.Email,
	})
	return nil
}

func (s *AccountService) requireAdmin(ctx context.Context, actor Actor) error {
	_, err := requireAdmin(ctx, s.accounts, actor)
	return err
}

// requireAdmin re-reads the actor so a demoted or deleted admin loses access
// immediately, whatever their session token claims.
func requireAdmin(ctx context.Context, accounts IdentityStore, actor Actor) (*models.Account, error) {
	account, err := accounts.GetByID(ctx, actor.ID)
	if errors.Is(err, models.ErrNotFound) {
		return nil, models.ErrUnauthorized
	}
	if err != nil {
		return nil, err
	}
	if !account.IsAdmin() {
		return nil, models.ErrUnauthorized
	}
	return account, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validRole(role string) bool {
	return role == models.RoleAdmin || role == models.RoleUser
}

func badRequest(msg string) *models.Error {
	return &models.Error{Kind: models.KindBadRequest, Message: msg}
}

func validateWindow(w *models.LoginWindow) error {
	if w == nil {
		return nil
	}
	if _, err := time.Parse(models.ClockLayout, w.Start); err != nil || len(w.Start) != len(models.ClockLayout) {
		return badRequest("login window start must be HH:MM")
	}
	if _, err := time.Parse(models.ClockLayout, w.End); err != nil || len(w.End) != len(models.ClockLayout) {
		return badRequest("login window end must be HH:MM")
	}
	if w.Start > w.End {
		return badRequest("login window start must not be after end")
	}
	return nil
}
