package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/BradenHooton/sentinel/internal/models"
)

const defaultEnrollmentTTL = 10 * time.Minute

// TwoFactorService manages TOTP enrollment for administrators
type TwoFactorService struct {
	accounts      IdentityStore
	totp          TotpProvider
	sealer        SecretSealer
	qr            QrEncoder
	audit         *AuditService
	logger        *slog.Logger
	clock         Clock
	enrollmentTTL time.Duration
}

// NewTwoFactorService creates a new TwoFactorService
func NewTwoFactorService(accounts IdentityStore, totp TotpProvider, sealer SecretSealer, qr QrEncoder, audit *AuditService, logger *slog.Logger, clock Clock, enrollmentTTL time.Duration) *TwoFactorService {
	if enrollmentTTL <= 0 {
		enrollmentTTL = defaultEnrollmentTTL
	}
	return &TwoFactorService{
		accounts:      accounts,
		totp:          totp,
		sealer:        sealer,
		qr:            qr,
		audit:         audit,
		logger:        logger,
		clock:         clock,
		enrollmentTTL: enrollmentTTL,
	}
}

// Enroll starts TOTP setup, replacing any pending enrollment. The plain secret
// is returned once and stored sealed.
func (s *TwoFactorService) Enroll(ctx context.Context, accountID string) (*models.TwoFactorEnrollment, error) {
	account, err := requireAdmin(ctx, s.accounts, Actor{ID: accountID})
	if err != nil {
		return nil, err
	}

	secret, uri, err := s.totp.GenerateSecret(account.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to generate TOTP secret: %w", err)
	}
	sealed, err := s.sealer.Seal(secret)
	if err != nil {
		return nil, fmt.Errorf("failed to seal TOTP secret: %w", err)
	}

	expiresAt := s.clock.Now().Add(s.enrollmentTTL)
	if _, err := s.accounts.Update(ctx, account.ID, func(a *models.Account) error {
		a.PendingTwoFactor = &models.PendingTwoFactor{Secret: sealed, ExpiresAt: expiresAt}
		return nil
	}); err != nil {
		return nil, err
	}

	// A missing QR image still leaves the URI and secret usable
	dataURL, err := s.qr.DataURL(uri)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to render provisioning QR code",
			slog.String("account_id", account.ID),
			slog.Any("error", err),
		)
	}

	s.audit.Record(ctx, account.ID, account.Email, models.ActionAdmin2FAEnrollmentStarted,
		models.AuditDetails{"expires_at": expiresAt.UTC().Format(time.RFC3339)})

	return &models.TwoFactorEnrollment{
		Secret:          secret,
		ProvisioningURI: uri,
		QRCodeDataURL:   dataURL,
		ExpiresAt:       expiresAt,
	}, nil
}

// Confirm promotes a pending enrollment once code verifies. An expired
// enrollment is discarded; a wrong code leaves it in place for another try.
func (s *TwoFactorService) Confirm(ctx context.Context, accountID, code string) error {
	now := s.clock.Now()
	var expired bool
	var email string

	_, err := s.accounts.Update(ctx, accountID, func(a *models.Account) error {
		email = a.Email
		expired = false
		if !a.IsAdmin() {
			return models.ErrUnauthorized
		}

		pending := a.PendingTwoFactor
		if pending == nil {
			return models.ErrEnrollmentMissing
		}
		if !now.Before(pending.ExpiresAt) {
			a.PendingTwoFactor = nil
			expired = true
			return nil
		}

		secret, err := s.sealer.Open(pending.Secret)
		if err != nil {
			return fmt.Errorf("failed to open pending TOTP secret: %w", err)
		}
		if !s.totp.Validate(secret, code, now) {
			return models.ErrTwoFactorInvalid
		}

		a.TwoFactor = &models.TwoFactor{Enabled: true, Secret: pending.Secret}
		a.PendingTwoFactor = nil
		return nil
	})

	switch {
	case errors.Is(err, models.ErrNotFound), errors.Is(err, models.ErrUnauthorized):
		return models.ErrUnauthorized
	case errors.Is(err, models.ErrEnrollmentMissing), errors.Is(err, models.ErrTwoFactorInvalid):
		s.audit.RecordDenial(ctx, accountID, email, models.ActionAdmin2FAConfirmFailed, models.KindOf(err), nil)
		return err
	case err != nil:
		return err
	}

	if expired {
		s.audit.RecordDenial(ctx, accountID, email, models.ActionAdmin2FAEnrollmentExpired, models.KindEnrollmentExpired, nil)
		return models.ErrEnrollmentExpired
	}

	s.audit.Record(ctx, accountID, email, models.ActionAdmin2FAEnabled, nil)
	s.audit.Notify(ctx, fmt.Sprintf("Admin %s enabled 2FA.", email), models.NotificationInfo,
		models.AuditDetails{"user_id": accountID, "email": email})
	return nil
}

// Disable removes the active TOTP configuration and any pending enrollment
func (s *TwoFactorService) Disable(ctx context.Context, accountID string) error {
	var email string
	_, err := s.accounts.Update(ctx, accountID, func(a *models.Account) error {
		if !a.IsAdmin() {
			return models.ErrUnauthorized
		}
		email = a.Email
		a.TwoFactor = nil
		a.PendingTwoFactor = nil
		return nil
	})
	if errors.Is(err, models.ErrNotFound) {
		return models.ErrUnauthorized
	}
	if err != nil {
		return err
	}

	s.audit.Record(ctx, accountID, email, models.ActionAdmin2FADisabled, nil)
	s.audit.Notify(ctx, fmt.Sprintf("Admin %s disabled 2FA.", email), models.NotificationInfo,
		models.AuditDetails{"user_id": accountID, "email": email})
	return nil
}

// Status reports whether TOTP is active and whether an enrollment is still open
func (s *TwoFactorService) Status(ctx context.Context, accountID string) (*models.TwoFactorStatus, error) {
	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}

	status := &models.TwoFactorStatus{Enabled: account.TwoFactorEnabled()}
	if p := account.PendingTwoFactor; p != nil && s.clock.Now().Before(p.ExpiresAt) {
		expires := p.ExpiresAt
		status.EnrollmentPending = true
		status.EnrollmentExpires = &expires
	}
	return status, nil
}
