// Package domain defines the core entities, storage contracts, and error
// taxonomy for Arx.
//
// Entities are tenant-scoped aggregates: every User, RefreshTokenRecord,
// Role, and Permission carries an immutable TenantID, and every store
// operation filters by it. Mutations on aggregates return pending Effects
// which the orchestrating service applies after the persistence write
// succeeds; there is no in-process event bus.
package domain

import (
	"crypto/subtle"
	"strings"
	"time"
)

// Effect is a pending side effect returned by an aggregate mutation.
// The caller applies effects (notifications, audit records) only after the
// corresponding store write has succeeded, preserving at-least-once
// delivery without publish-before-commit hazards.
type Effect struct {
	Type     string // e.g. "user.verified", "user.role_changed"
	TenantID string
	UserID   string
	Meta     map[string]string
}

// VerificationCode is a single-use, time-boxed email verification secret.
type VerificationCode struct {
	Value     string
	ExpiresAt time.Time
}

// Matches reports whether the presented code equals the stored value and is
// not expired. Comparison is constant time and never mutates state.
func (c *VerificationCode) Matches(code string, now time.Time) bool {
	if c == nil || c.Value == "" {
		return false
	}
	if now.After(c.ExpiresAt) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(c.Value), []byte(code)) == 1
}

// NormalizeEmail canonicalizes an email for storage and lookup. Users are
// persisted with the normalized form, so every lookup path must apply the
// same normalization to the caller's input.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// User is the identity aggregate. TenantID is immutable after creation;
// email uniqueness is enforced per tenant by the storage layer.
type User struct {
	ID            string
	TenantID      string
	Email         string
	FullName      string
	PasswordHash  string
	Role          string
	Active        bool
	EmailVerified bool
	Verification  *VerificationCode
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewUser creates a user in the unverified, active state.
func NewUser(id, tenantID, email, fullName, passwordHash, role string) *User {
	now := time.Now()
	return &User{
		ID:           id,
		TenantID:     tenantID,
		Email:        NormalizeEmail(email),
		FullName:     fullName,
		PasswordHash: passwordHash,
		Role:         role,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// ChangeRole transitions the user to a new role. Roles change only through
// this method so that every transition is validated and recorded.
func (u *User) ChangeRole(newRole string) (Effect, error) {
	newRole = strings.TrimSpace(newRole)
	if newRole == "" {
		return Effect{}, NewError(KindValidation, "role must not be empty")
	}
	old := u.Role
	u.Role = newRole
	u.UpdatedAt = time.Now()
	return Effect{
		Type:     "user.role_changed",
		TenantID: u.TenantID,
		UserID:   u.ID,
		Meta:     map[string]string{"from": old, "to": newRole},
	}, nil
}

// Verify flips the email-verified flag and consumes the code. Fails with
// ErrAlreadyVerified when already verified and ErrInvalidCode when the code
// is missing, mismatched, or expired; failure never consumes the code.
func (u *User) Verify(code string, now time.Time) (Effect, error) {
	if u.EmailVerified {
		return Effect{}, ErrAlreadyVerified
	}
	if !u.Verification.Matches(code, now) {
		return Effect{}, ErrInvalidCode
	}
	u.EmailVerified = true
	u.Verification = nil
	u.UpdatedAt = now
	return Effect{Type: "user.verified", TenantID: u.TenantID, UserID: u.ID}, nil
}

// SetVerification replaces the pending verification code.
func (u *User) SetVerification(code string, expiresAt time.Time) {
	u.Verification = &VerificationCode{Value: code, ExpiresAt: expiresAt}
	u.UpdatedAt = time.Now()
}

// Deactivate soft-deletes the user. The caller must also delete all ledger
// records so every device is forced to re-authenticate.
func (u *User) Deactivate() Effect {
	u.Active = false
	u.UpdatedAt = time.Now()
	return Effect{Type: "user.deactivated", TenantID: u.TenantID, UserID: u.ID}
}

// Sanitized returns the externally visible profile.
func (u *User) Sanitized() Profile {
	return Profile{
		ID:            u.ID,
		TenantID:      u.TenantID,
		Email:         u.Email,
		FullName:      u.FullName,
		Role:          u.Role,
		Active:        u.Active,
		EmailVerified: u.EmailVerified,
		CreatedAt:     u.CreatedAt,
	}
}

// Profile is the sanitized view of a user, safe to return to clients.
type Profile struct {
	ID            string    `json:"id"`
	TenantID      string    `json:"tenant_id"`
	Email         string    `json:"email"`
	FullName      string    `json:"full_name"`
	Role          string    `json:"role"`
	Active        bool      `json:"active"`
	EmailVerified bool      `json:"email_verified"`
	CreatedAt     time.Time `json:"created_at"`
}
