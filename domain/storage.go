package domain

import (
	"context"
	"time"

	"github.com/getarx/arx/audit"
)

// Storage is the composite contract a full backend implements. The gorm
// store in package arxgorm satisfies it; tests use in-memory fakes.
type Storage interface {
	UserStore
	TenantStore
	SessionStore
	PolicyStore
	audit.Store
}

// UserStore persists users scoped by tenant. Implementations must back
// CreateUser with a storage-level unique constraint on (tenant_id, email)
// and surface violations as ErrEmailTaken; a pre-check query alone leaves a
// check-then-act race open.
type UserStore interface {
	CreateUser(ctx context.Context, u *User) error
	GetUser(ctx context.Context, tenantID, id string) (*User, error)
	FindUserByEmail(ctx context.Context, tenantID, email string) (*User, error)
	UpdateUser(ctx context.Context, u *User) error
	ListUsers(ctx context.Context, tenantID string, page, limit int) ([]*User, error)
}

// TenantStore persists tenants. Name and domain are globally unique;
// violations surface as ErrDuplicateTenant.
type TenantStore interface {
	CreateTenant(ctx context.Context, t *Tenant) error
	GetTenant(ctx context.Context, id string) (*Tenant, error)
	GetTenantByDomain(ctx context.Context, domain string) (*Tenant, error)
	GetTenantByName(ctx context.Context, name string) (*Tenant, error)
	UpdateTenant(ctx context.Context, t *Tenant) error
	ListTenants(ctx context.Context, page, limit int) ([]*Tenant, error)
}

// SessionStore persists refresh-token records. RotateRefreshRecord is the
// single-writer primitive: it updates token material only where both the
// record id and the previous hash still match, and reports whether a row
// was touched. Two concurrent rotations of one record therefore cannot
// both succeed.
type SessionStore interface {
	CreateRefreshRecord(ctx context.Context, r *RefreshTokenRecord) error
	FindValidRefreshRecords(ctx context.Context, tenantID, userID string, now time.Time) ([]*RefreshTokenRecord, error)
	RotateRefreshRecord(ctx context.Context, tenantID, recordID, oldHash, newHash, deviceInfo, ip string, expiresAt time.Time) (bool, error)
	DeleteRefreshRecord(ctx context.Context, tenantID, recordID string) error
	DeleteUserRefreshRecords(ctx context.Context, tenantID, userID string) error
	DeleteExpiredRefreshRecords(ctx context.Context, tenantID, userID string, now time.Time) error
}

// PolicyStore persists roles, permissions, and the raw policy rows the
// engine compiles. List* methods returning all tenants feed engine reloads.
type PolicyStore interface {
	CreateRole(ctx context.Context, r *Role) error
	GetRoleByName(ctx context.Context, tenantID, name string) (*Role, error)
	UpdateRole(ctx context.Context, r *Role) error
	ListRoles(ctx context.Context, tenantID string) ([]*Role, error)

	CreatePermission(ctx context.Context, p *Permission) error
	ListPermissions(ctx context.Context, tenantID string) ([]*Permission, error)

	AddPermitRule(ctx context.Context, r *PermitRule) error
	DeletePermitRule(ctx context.Context, tenantID, subject, resource, action string) error
	ListPermitRules(ctx context.Context) ([]*PermitRule, error)

	AddRoleLink(ctx context.Context, l *RoleLink) error
	DeleteRoleLink(ctx context.Context, tenantID, child, parent string) error
	ListRoleLinks(ctx context.Context) ([]*RoleLink, error)

	AddResourceLink(ctx context.Context, l *ResourceLink) error
	DeleteResourceLink(ctx context.Context, tenantID, child, parent string) error
	ListResourceLinks(ctx context.Context) ([]*ResourceLink, error)
}

// Notifier dispatches user-facing messages (verification emails). Delivery
// is best-effort: the credential service logs failures and never surfaces
// them to callers.
type Notifier interface {
	Send(ctx context.Context, to, subject, body string) error
}

// RateLimiter is the throttling capability injected into credential service
// entry points. It is an external collaborator, not ambient state.
type RateLimiter interface {
	Allow(ctx context.Context, key string) bool
}

// Hasher hashes and verifies passwords and refresh-token material.
type Hasher interface {
	Hash(password string) (string, error)
	Compare(password, hash string) bool
}

// IDGenerator mints new entity identifiers.
type IDGenerator func() string
