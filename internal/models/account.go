package models

import (
	"time"
)

// Role values
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// DateLayout is the calendar-date format used for the daily attempt counter
const DateLayout = "2006-01-02"

// ClockLayout is the zero-padded time-of-day format used by login windows
const ClockLayout = "15:04"

// LoginWindow bounds the time of day a user may log in, inclusive on both ends.
// Start and End are "HH:MM" so plain string comparison orders them correctly.
type LoginWindow struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Contains reports whether the "HH:MM" clock value falls inside the window
func (w LoginWindow) Contains(clock string) bool {
	return w.Start <= clock && clock <= w.End
}

// TwoFactor holds an active TOTP configuration. Secret is sealed at rest.
type TwoFactor struct {
	Enabled bool
	Secret  string
}

// PendingTwoFactor holds an enrollment awaiting confirmation
type PendingTwoFactor struct {
	Secret    string
	ExpiresAt time.Time
}

// Account is a login identity, either an operator (admin) or an end user.
type Account struct {
	ID                string
	Email             string
	Name              string
	CredentialHash    string
	Role              string
	IsRoot            bool
	Blocked           bool
	BlockedUntil      *time.Time
	LoginWindow       *LoginWindow
	MaxAttemptsPerDay int
	AttemptsToday     int
	LastAttemptDate   string
	TwoFactor         *TwoFactor
	PendingTwoFactor  *PendingTwoFactor
	FaceEmbedding     []float64
	LastOsUsed        string
	Version           int64
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// IsAdmin reports whether the account carries the admin role
func (a *Account) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// TwoFactorEnabled reports whether an active TOTP secret is configured
func (a *Account) TwoFactorEnabled() bool {
	return a.TwoFactor != nil && a.TwoFactor.Enabled
}

// HasFaceEmbedding reports whether the account can take part in face matching
func (a *Account) HasFaceEmbedding() bool {
	return len(a.FaceEmbedding) > 0
}

// Block sets the block fields together so blockedUntil never exists without blocked
func (a *Account) Block(until time.Time) {
	a.Blocked = true
	a.BlockedUntil = &until
}

// Unblock clears both block fields
func (a *Account) Unblock() {
	a.Blocked = false
	a.BlockedUntil = nil
}

// Clone returns a deep copy so callers can mutate without sharing state
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	c := *a
	if a.BlockedUntil != nil {
		t := *a.BlockedUntil
		c.BlockedUntil = &t
	}
	if a.LoginWindow != nil {
		w := *a.LoginWindow
		c.LoginWindow = &w
	}
	if a.TwoFactor != nil {
		tf := *a.TwoFactor
		c.TwoFactor = &tf
	}
	if a.PendingTwoFactor != nil {
		p := *a.PendingTwoFactor
		c.PendingTwoFactor = &p
	}
	if a.FaceEmbedding != nil {
		c.FaceEmbedding = append([]float64(nil), a.FaceEmbedding...)
	}
	return &c
}

// AccountView is the secret-free projection of an Account returned to callers
type AccountView struct {
	ID                string       `json:"id"`
	Email             string       `json:"email"`
	Name              string       `json:"name"`
	Role              string       `json:"role"`
	IsRoot            bool         `json:"is_root"`
	Blocked           bool         `json:"blocked"`
	BlockedUntil      *time.Time   `json:"blocked_until,omitempty"`
	LoginWindow       *LoginWindow `json:"login_window,omitempty"`
	MaxAttemptsPerDay int          `json:"max_attempts_per_day"`
	AttemptsToday     int          `json:"attempts_today"`
	LastAttemptDate   string       `json:"last_attempt_date,omitempty"`
	TwoFactorEnabled  bool         `json:"two_factor_enabled"`
	HasFaceEmbedding  bool         `json:"has_face_embedding"`
	LastOsUsed        string       `json:"last_os_used,omitempty"`
	CreatedAt         time.Time    `json:"created_at"`
}

// View strips credential, TOTP secrets and the face embedding
func (a *Account) View() AccountView {
	c := a.Clone()
	return AccountView{
		ID:                c.ID,
		Email:             c.Email,
		Name:              c.Name,
		Role:              c.Role,
		IsRoot:            c.IsRoot,
		Blocked:           c.Blocked,
		BlockedUntil:      c.BlockedUntil,
		LoginWindow:       c.LoginWindow,
		MaxAttemptsPerDay: c.MaxAttemptsPerDay,
		AttemptsToday:     c.AttemptsToday,
		LastAttemptDate:   c.LastAttemptDate,
		TwoFactorEnabled:  c.TwoFactorEnabled(),
		HasFaceEmbedding:  c.HasFaceEmbedding(),
		LastOsUsed:        c.LastOsUsed,
		CreatedAt:         c.CreatedAt,
	}
}
