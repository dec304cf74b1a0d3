// Package ledger keeps the server-side books for refresh tokens.
//
// Each live refresh token is one record: hashed token material bound to a
// tenant, user, and device, with an expiry. Records are single-use: a
// successful refresh rotates the record's token material in place through
// an atomic conditional update, so the rotated-out token can never
// authenticate again, even when two requests race on it.
//
// The ledger holds at most Cap live records per user; expired records are
// purged opportunistically and the oldest live records are evicted first
// when the cap is exceeded.
package ledger

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"time"

	"github.com/google/uuid"

	"github.com/getarx/arx/domain"
)

// DefaultCap is the maximum number of live records per user.
const DefaultCap = 5

// Ledger enforces rotation and eviction policy over a SessionStore.
type Ledger struct {
	store  domain.SessionStore
	hasher domain.Hasher
	cap    int
	pepper []byte
	newID  domain.IDGenerator
	now    func() time.Time
}

func New(store domain.SessionStore, hasher domain.Hasher, cap int) *Ledger {
	if cap <= 0 {
		cap = DefaultCap
	}
	return &Ledger{
		store:  store,
		hasher: hasher,
		cap:    cap,
		newID:  func() string { return uuid.New().String() },
		now:    time.Now,
	}
}

// SetIDGenerator overrides the record id generator.
func (l *Ledger) SetIDGenerator(g domain.IDGenerator) { l.newID = g }

// SetClock overrides the time source. Tests use this to age records.
func (l *Ledger) SetClock(now func() time.Time) { l.now = now }

// SetPepper mixes a server-side secret into the token material before it is
// hashed. A record written under one pepper never matches under another.
func (l *Ledger) SetPepper(secret []byte) { l.pepper = secret }

// material returns the value that is hashed and compared for a token:
// HMAC-SHA256 of the token under the pepper when one is set, the raw token
// otherwise.
func (l *Ledger) material(token string) string {
	if len(l.pepper) == 0 {
		return token
	}
	mac := hmac.New(sha256.New, l.pepper)
	mac.Write([]byte(token))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// Create persists a new record for the presented plaintext token. Only the
// hash is stored.
func (l *Ledger) Create(ctx context.Context, tenantID, userID, refreshToken, deviceInfo, ip string, ttl time.Duration) (*domain.RefreshTokenRecord, error) {
	hash, err := l.hasher.Hash(l.material(refreshToken))
	if err != nil {
		return nil, err
	}

	now := l.now()
	rec := &domain.RefreshTokenRecord{
		ID:         l.newID(),
		TenantID:   tenantID,
		UserID:     userID,
		TokenHash:  hash,
		DeviceInfo: deviceInfo,
		IPAddress:  ip,
		ExpiresAt:  now.Add(ttl),
		CreatedAt:  now,
	}
	if err := l.store.CreateRefreshRecord(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// FindValid returns the user's non-expired records, newest first.
func (l *Ledger) FindValid(ctx context.Context, tenantID, userID string) ([]*domain.RefreshTokenRecord, error) {
	return l.store.FindValidRefreshRecords(ctx, tenantID, userID, l.now())
}

// Verify matches the presented plaintext against every valid record. The
// stored value is a one-way hash, so this is a scan, not an equality
// lookup. Every candidate is compared even after a match so the loop's
// duration does not reveal which record succeeded. No match is a hard
// authentication failure.
func (l *Ledger) Verify(ctx context.Context, tenantID, userID, presented string) (*domain.RefreshTokenRecord, error) {
	records, err := l.store.FindValidRefreshRecords(ctx, tenantID, userID, l.now())
	if err != nil {
		return nil, err
	}

	var matched *domain.RefreshTokenRecord
	presented = l.material(presented)
	for _, rec := range records {
		if l.hasher.Compare(presented, rec.TokenHash) && matched == nil {
			matched = rec
		}
	}
	if matched == nil {
		return nil, domain.ErrInvalidRefreshToken
	}
	return matched, nil
}

// Rotate replaces the record's token material with the hash of newToken.
// The store update is conditional on the record still carrying its previous
// hash; if a concurrent refresh rotated it first, Rotate fails with
// ErrInvalidRefreshToken and the caller must not issue tokens.
func (l *Ledger) Rotate(ctx context.Context, rec *domain.RefreshTokenRecord, newToken, deviceInfo, ip string, ttl time.Duration) error {
	newHash, err := l.hasher.Hash(l.material(newToken))
	if err != nil {
		return err
	}

	rotated, err := l.store.RotateRefreshRecord(ctx, rec.TenantID, rec.ID, rec.TokenHash, newHash, deviceInfo, ip, l.now().Add(ttl))
	if err != nil {
		return err
	}
	if !rotated {
		return domain.ErrInvalidRefreshToken
	}
	return nil
}

// DeleteOne removes a single record.
func (l *Ledger) DeleteOne(ctx context.Context, tenantID, recordID string) error {
	return l.store.DeleteRefreshRecord(ctx, tenantID, recordID)
}

// DeleteMatching removes the record matching the presented token, if any.
// Used for single-device logout; a miss is not an error.
func (l *Ledger) DeleteMatching(ctx context.Context, tenantID, userID, presented string) error {
	rec, err := l.Verify(ctx, tenantID, userID, presented)
	if err != nil {
		return nil
	}
	return l.store.DeleteRefreshRecord(ctx, tenantID, rec.ID)
}

// DeleteAll removes every record for the user (all-device logout).
func (l *Ledger) DeleteAll(ctx context.Context, tenantID, userID string) error {
	return l.store.DeleteUserRefreshRecords(ctx, tenantID, userID)
}

// Prune deletes expired records and evicts the oldest live records beyond
// the cap, keeping the newest Cap entries.
func (l *Ledger) Prune(ctx context.Context, tenantID, userID string) error {
	now := l.now()
	if err := l.store.DeleteExpiredRefreshRecords(ctx, tenantID, userID, now); err != nil {
		return err
	}

	records, err := l.store.FindValidRefreshRecords(ctx, tenantID, userID, now)
	if err != nil {
		return err
	}
	if len(records) <= l.cap {
		return nil
	}

	// Records arrive newest first; everything past the cap is evicted.
	for _, rec := range records[l.cap:] {
		if err := l.store.DeleteRefreshRecord(ctx, tenantID, rec.ID); err != nil {
			return err
		}
	}
	return nil
}
