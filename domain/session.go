package domain

import "time"

// RefreshTokenRecord is the persisted, hashed representation of one active
// refresh token for one device. The plaintext token is never stored; the
// ledger keeps only a one-way hash. A record is single-use: a successful
// refresh atomically replaces its token material (rotation).
type RefreshTokenRecord struct {
	ID         string
	TenantID   string
	UserID     string
	TokenHash  string
	DeviceInfo string
	IPAddress  string
	ExpiresAt  time.Time
	CreatedAt  time.Time
}

// Expired reports whether the record is past its expiry.
func (r *RefreshTokenRecord) Expired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}
