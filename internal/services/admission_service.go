package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/BradenHooton/sentinel/internal/models"
	pkglogger "github.com/BradenHooton/sentinel/pkg/logger"
)

// AdmissionPolicy holds the tunables of the admission state machine
type AdmissionPolicy struct {
	Location              *time.Location
	LockoutDuration       time.Duration
	MaxCredentialFailures int
	AllowedClientOS       []string
}

// RootBootstrapper resolves the root administrator, creating it when absent
type RootBootstrapper interface {
	RootEmail() string
	EnsureRootAdmin(ctx context.Context) (*models.Account, error)
}

type attemptKind int

const (
	attemptPassword attemptKind = iota
	attemptFace
	attemptSecondFactor
)

// attempt describes one admission try evaluated against a fresh account copy
type attempt struct {
	kind         attemptKind
	credential   string
	credentialOK bool
	checkedHash  string
	clientOS     string
}

// verdict is what evaluate decided. dirty is false when the account was not
// modified and nothing needs to be written.
type verdict struct {
	outcome       models.AdmissionOutcome
	denial        *models.Error
	action        models.AuditAction
	autoUnblocked bool
	dirty         bool
}

// errNothingToWrite aborts an Update whose callback left the account untouched
var errNothingToWrite = errors.New("nothing to write")

// AdmissionService decides login, face login and second-factor admission
type AdmissionService struct {
	accounts    IdentityStore
	revocations TokenRevocationStore
	root        RootBootstrapper
	hasher      CredentialHasher
	matcher     EmbeddingMatcher
	totp        TotpProvider
	sealer      SecretSealer
	sessions    SessionIssuer
	audit       *AuditService
	logger      *slog.Logger
	clock       Clock
	policy      AdmissionPolicy
}

// AdmissionDeps groups the collaborators of AdmissionService
type AdmissionDeps struct {
	Accounts    IdentityStore
	Revocations TokenRevocationStore
	Root        RootBootstrapper
	Hasher      CredentialHasher
	Matcher     EmbeddingMatcher
	Totp        TotpProvider
	Sealer      SecretSealer
	Sessions    SessionIssuer
	Audit       *AuditService
	Logger      *slog.Logger
	Clock       Clock
}

// NewAdmissionService creates a new AdmissionService
func NewAdmissionService(deps AdmissionDeps, policy AdmissionPolicy) *AdmissionService {
	if policy.Location == nil {
		policy.Location = time.Local
	}
	if policy.LockoutDuration <= 0 {
		policy.LockoutDuration = 2 * time.Minute
	}
	if policy.MaxCredentialFailures <= 0 {
		policy.MaxCredentialFailures = 2
	}
	if len(policy.AllowedClientOS) == 0 {
		policy.AllowedClientOS = []string{"win", "android"}
	}
	return &AdmissionService{
		accounts:    deps.Accounts,
		revocations: deps.Revocations,
		root:        deps.Root,
		hasher:      deps.Hasher,
		matcher:     deps.Matcher,
		totp:        deps.Totp,
		sealer:      deps.Sealer,
		sessions:    deps.Sessions,
		audit:       deps.Audit,
		logger:      deps.Logger,
		clock:       deps.Clock,
		policy:      policy,
	}
}

// Login admits an account by e-mail and credential. Denials are reported in the
// result; the error is reserved for infrastructure failures.
func (s *AdmissionService) Login(ctx context.Context, email, credential, clientOS string) (*models.AdmissionResult, error) {
	email = normalizeEmail(email)

	account, err := s.resolveByEmail(ctx, email)
	if errors.Is(err, models.ErrNotFound) {
		s.hasher.Burn(credential)
		s.audit.RecordDenial(ctx, "", email, models.ActionLoginFailNotFound, models.KindNotFound,
			models.AuditDetails{"email": email, "client_os": clientOS})
		return models.Denied(models.ErrNotFound), nil
	}
	if err != nil {
		return nil, err
	}

	return s.admit(ctx, account, &attempt{
		kind:         attemptPassword,
		credential:   credential,
		credentialOK: s.hasher.Matches(account.CredentialHash, credential),
		checkedHash:  account.CredentialHash,
		clientOS:     clientOS,
	})
}

// FaceLogin admits the user whose enrolled embedding is closest to probe
func (s *AdmissionService) FaceLogin(ctx context.Context, probe []float64, clientOS string) (*models.AdmissionResult, error) {
	candidates, err := s.accounts.ListFaceCandidates(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load face candidates: %w", err)
	}

	match := s.matcher.Match(probe, candidates)
	if match == nil {
		s.audit.RecordDenial(ctx, "", "face-login", models.ActionFaceLoginFailNoMatch, models.KindNotFound,
			models.AuditDetails{"candidates": len(candidates), "client_os": clientOS})
		return models.Denied(models.ErrNotFound), nil
	}

	return s.admit(ctx, match, &attempt{kind: attemptFace, clientOS: clientOS})
}

// VerifyTwoFactor completes a login that returned NeedsSecondFactor. A wrong
// code has no effect on counters or block state.
func (s *AdmissionService) VerifyTwoFactor(ctx context.Context, accountID, code, clientOS string) (*models.AdmissionResult, error) {
	account, err := s.accounts.GetByID(ctx, accountID)
	if errors.Is(err, models.ErrNotFound) {
		s.audit.RecordDenial(ctx, "", accountID, models.ActionLoginFail2FAToken, models.KindNotFound,
			models.AuditDetails{"account_id": accountID, "client_os": clientOS})
		return models.Denied(models.ErrNotFound), nil
	}
	if err != nil {
		return nil, err
	}

	if !account.IsAdmin() || !account.TwoFactorEnabled() {
		s.audit.RecordDenial(ctx, account.ID, account.Email, models.ActionLoginFail2FAToken, models.KindUnauthorized,
			models.AuditDetails{"email": account.Email, "role": string(account.Role), "two_factor_enabled": account.TwoFactorEnabled()})
		return models.Denied(models.ErrUnauthorized), nil
	}

	secret, err := s.sealer.Open(account.TwoFactor.Secret)
	if err != nil {
		return nil, fmt.Errorf("failed to open two-factor secret: %w", err)
	}

	if !s.totp.Validate(secret, code, s.clock.Now()) {
		s.audit.RecordDenial(ctx, account.ID, account.Email, models.ActionLoginFail2FAToken, models.KindTwoFactorInvalid,
			models.AuditDetails{"email": account.Email, "client_os": clientOS})
		return models.Denied(models.ErrTwoFactorInvalid), nil
	}

	return s.admit(ctx, account, &attempt{kind: attemptSecondFactor, clientOS: clientOS})
}

// Logout revokes the session token and records the logout
func (s *AdmissionService) Logout(ctx context.Context, accountID, email, jti string, expiresAt time.Time) error {
	if jti != "" {
		if err := s.revocations.RevokeToken(ctx, jti, accountID, expiresAt, "logout"); err != nil {
			return fmt.Errorf("failed to revoke session: %w", err)
		}
	}

	s.audit.Record(ctx, accountID, email, models.ActionLogoutSuccess, models.AuditDetails{"email": email})
	s.audit.Notify(ctx, fmt.Sprintf("User %s logged out.", email), models.NotificationLogout,
		models.AuditDetails{"user_id": accountID, "email": email})
	return nil
}

func (s *AdmissionService) resolveByEmail(ctx context.Context, email string) (*models.Account, error) {
	account, err := s.accounts.GetByEmail(ctx, email)
	if errors.Is(err, models.ErrNotFound) && s.root != nil && email != "" && email == s.root.RootEmail() {
		return s.root.EnsureRootAdmin(ctx)
	}
	return account, err
}

// admit runs the decision against a fresh copy of the account inside a single
// store update, then records the outcome.
func (s *AdmissionService) admit(ctx context.Context, account *models.Account, at *attempt) (*models.AdmissionResult, error) {
	now := s.clock.Now()

	var (
		v    verdict
		seen *models.Account
	)
	updated, err := s.accounts.Update(ctx, account.ID, func(a *models.Account) error {
		if at.kind == attemptPassword && a.CredentialHash != at.checkedHash {
			at.credentialOK = s.hasher.Matches(a.CredentialHash, at.credential)
			at.checkedHash = a.CredentialHash
		}
		v = s.evaluate(a, at, now)
		seen = a
		if !v.dirty {
			return errNothingToWrite
		}
		return nil
	})
	switch {
	case errors.Is(err, errNothingToWrite):
		updated = seen
	case err != nil:
		s.logger.ErrorContext(ctx, "admission update failed",
			slog.String("account_id", account.ID),
			slog.Any("error", err),
		)
		return nil, err
	}

	details := models.AuditDetails{"email": updated.Email, "client_os": at.clientOS}

	if v.autoUnblocked {
		s.audit.Record(ctx, updated.ID, updated.Email, models.ActionUserAutoUnblocked, models.AuditDetails{"email": updated.Email})
	}

	switch v.outcome {
	case models.OutcomeDenied:
		if v.denial.AttemptsRemaining != nil {
			details["attempts_remaining"] = *v.denial.AttemptsRemaining
		}
		if v.denial.RemainingMinutes > 0 {
			details["remaining_minutes"] = v.denial.RemainingMinutes
		}
		s.audit.RecordDenial(ctx, updated.ID, updated.Email, v.action, v.denial.Kind, details)
		return models.Denied(v.denial), nil

	case models.OutcomeNeedsSecondFactor:
		s.audit.Record(ctx, updated.ID, updated.Email, v.action, details)
		return models.NeedsSecondFactor(updated.ID), nil
	}

	token, expiresAt, err := s.sessions.Issue(updated, now)
	if err != nil {
		return nil, fmt.Errorf("failed to issue session: %w", err)
	}

	s.logger.InfoContext(ctx, "login admitted",
		slog.String("account_id", updated.ID),
		slog.String("email", pkglogger.SanitizedEmail(updated.Email)),
	)
	s.audit.Record(ctx, updated.ID, updated.Email, v.action, details)
	s.audit.Notify(ctx, loginMessage(updated, at.kind), models.NotificationLogin,
		models.AuditDetails{"user_id": updated.ID, "email": updated.Email, "os": at.clientOS})

	return models.Admitted(&models.Session{
		Account:   updated.View(),
		Token:     token,
		ExpiresAt: expiresAt,
	}), nil
}

// evaluate applies the admission rules in order, mutating a as the rules demand
func (s *AdmissionService) evaluate(a *models.Account, at *attempt, now time.Time) verdict {
	var v verdict
	local := now.In(s.policy.Location)

	if at.kind != attemptSecondFactor {
		if today := local.Format(models.DateLayout); a.LastAttemptDate != today {
			a.AttemptsToday = 0
			a.LastAttemptDate = today
			v.dirty = true
		}
	}

	// the second factor is subject to blocks too, it only skips the counters
	if a.Blocked && a.BlockedUntil != nil && !now.Before(*a.BlockedUntil) {
		a.Unblock()
		v.autoUnblocked = true
		v.dirty = true
	}

	if a.Blocked {
		return s.deny(v, models.NewAccountBlockedError(remainingMinutes(a.BlockedUntil, now)), models.ActionLoginFailBlocked)
	}

	if at.kind != attemptSecondFactor {
		if a.Role == models.RoleUser && a.MaxAttemptsPerDay > 0 && a.AttemptsToday >= a.MaxAttemptsPerDay {
			s.block(a, now)
			v.dirty = true
			return s.deny(v, models.ErrDailyLimitExceeded, models.ActionLoginFailDailyLimit)
		}
	}

	if at.kind == attemptPassword {
		if !at.credentialOK {
			a.AttemptsToday++
			v.dirty = true
			if a.Role == models.RoleUser && !a.IsRoot && a.AttemptsToday >= s.policy.MaxCredentialFailures {
				s.block(a, now)
				return s.deny(v, models.NewAccountBlockedError(ceilMinutes(s.policy.LockoutDuration)), models.ActionLoginFailCredentialsBlocked)
			}
			var remaining *int
			if a.Role == models.RoleUser {
				n := max(s.policy.MaxCredentialFailures-a.AttemptsToday, 0)
				remaining = &n
			}
			return s.deny(v, models.NewInvalidCredentialsError(remaining), models.ActionLoginFailPassword)
		}

		if a.IsAdmin() && a.TwoFactorEnabled() {
			v.outcome = models.OutcomeNeedsSecondFactor
			v.action = models.ActionLoginSecondFactorRequired
			return v
		}
	}

	if at.kind != attemptSecondFactor && a.Role == models.RoleUser {
		if !s.osAllowed(at.clientOS) {
			s.block(a, now)
			a.LastOsUsed = at.clientOS
			v.dirty = true
			return s.deny(v, models.ErrOsNotAllowed, models.ActionLoginFailOsBlocked)
		}

		if a.LoginWindow != nil && !a.LoginWindow.Contains(local.Format(models.ClockLayout)) {
			return s.deny(v, models.ErrTimeWindowDenied, models.ActionLoginFailTimeDenied)
		}
	}

	a.AttemptsToday = 0
	a.Unblock()
	a.LastOsUsed = at.clientOS
	v.dirty = true
	v.outcome = models.OutcomeSuccess
	v.action = models.LoginSuccessAction(a.Role)
	return v
}

func (s *AdmissionService) deny(v verdict, reason *models.Error, action models.AuditAction) verdict {
	v.outcome = models.OutcomeDenied
	v.denial = reason
	v.action = action
	return v
}

// block never applies to the root administrator
func (s *AdmissionService) block(a *models.Account, now time.Time) {
	if a.IsRoot {
		return
	}
	a.Block(now.Add(s.policy.LockoutDuration))
}

func (s *AdmissionService) osAllowed(clientOS string) bool {
	lowered := strings.ToLower(clientOS)
	for _, marker := range s.policy.AllowedClientOS {
		if marker != "" && strings.Contains(lowered, strings.ToLower(marker)) {
			return true
		}
	}
	return false
}

func loginMessage(a *models.Account, kind attemptKind) string {
	label := "User"
	if a.IsAdmin() {
		label = "Admin"
	}
	switch kind {
	case attemptFace:
		return fmt.Sprintf("%s %s logged in via Face Recognition.", label, a.Email)
	case attemptSecondFactor:
		return fmt.Sprintf("%s %s logged in via 2FA.", label, a.Email)
	default:
		return fmt.Sprintf("%s %s logged in.", label, a.Email)
	}
}

// remainingMinutes rounds the time left on a block up to whole minutes
func remainingMinutes(until *time.Time, now time.Time) int {
	if until == nil {
		return 0
	}
	return max(ceilMinutes(until.Sub(now)), 1)
}

func ceilMinutes(d time.Duration) int {
	return int(math.Ceil(d.Minutes()))
}
