package tenant

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/getarx/arx/domain"
)

// Manager coordinates tenant resolution and lifecycle over a TenantStore.
type Manager struct {
	store    domain.TenantStore
	resolver Resolver
	newID    domain.IDGenerator

	// DefaultTenantID is used when no tenant is resolved and
	// RequireTenant is false.
	DefaultTenantID string

	// RequireTenant fails resolution when no tenant can be determined.
	RequireTenant bool
}

type ManagerOption func(*Manager)

// WithDefaultTenant sets a fallback tenant and makes resolution optional.
func WithDefaultTenant(id string) ManagerOption {
	return func(m *Manager) {
		m.DefaultTenantID = id
		m.RequireTenant = false
	}
}

// WithIDGenerator overrides the tenant ID generator.
func WithIDGenerator(g domain.IDGenerator) ManagerOption {
	return func(m *Manager) { m.newID = g }
}

func NewManager(store domain.TenantStore, resolver Resolver, opts ...ManagerOption) *Manager {
	m := &Manager{
		store:         store,
		resolver:      resolver,
		newID:         uuid.NewString,
		RequireTenant: true,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// ResolveFromRequest resolves, loads, and validates the tenant for an
// incoming request, returning the tenant and a context carrying it.
func (m *Manager) ResolveFromRequest(ctx context.Context, r *http.Request) (*domain.Tenant, context.Context, error) {
	id, err := m.resolver.Resolve(ctx, r)
	if err != nil {
		return nil, ctx, domain.ErrTenantNotFound.WithCause(err)
	}
	if id == "" {
		id = m.DefaultTenantID
	}
	if id == "" {
		if m.RequireTenant {
			return nil, ctx, domain.ErrTenantNotFound
		}
		return nil, ctx, nil
	}

	t, err := m.load(ctx, id)
	if err != nil {
		return nil, ctx, err
	}
	if !t.Active {
		return nil, ctx, domain.ErrTenantNotFound
	}
	return t, WithTenant(ctx, t), nil
}

// load looks a tenant up by ID first, then by resolution domain. Subdomain
// resolution hands us the tenant's domain label rather than its ID.
func (m *Manager) load(ctx context.Context, id string) (*domain.Tenant, error) {
	t, err := m.store.GetTenant(ctx, id)
	if err == nil {
		return t, nil
	}
	if domain.KindOf(err) != domain.KindNotFound {
		return nil, err
	}
	return m.store.GetTenantByDomain(ctx, id)
}

// Create registers a new tenant. Name is required; domain is optional and
// stored lowercased for resolution.
func (m *Manager) Create(ctx context.Context, name, dom string) (*domain.Tenant, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, domain.NewError(domain.KindValidation, "tenant name is required")
	}
	t := domain.NewTenant(m.newID(), name, strings.ToLower(strings.TrimSpace(dom)))
	if err := m.store.CreateTenant(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// Get retrieves a tenant by ID.
func (m *Manager) Get(ctx context.Context, id string) (*domain.Tenant, error) {
	return m.store.GetTenant(ctx, id)
}

// GetByDomain retrieves a tenant by its resolution domain.
func (m *Manager) GetByDomain(ctx context.Context, dom string) (*domain.Tenant, error) {
	return m.store.GetTenantByDomain(ctx, strings.ToLower(dom))
}

// Deactivate marks a tenant inactive. Requests for it stop resolving but
// its data stays in place.
func (m *Manager) Deactivate(ctx context.Context, id string) error {
	t, err := m.store.GetTenant(ctx, id)
	if err != nil {
		return err
	}
	if !t.Active {
		return nil
	}
	t.Active = false
	t.UpdatedAt = time.Now()
	return m.store.UpdateTenant(ctx, t)
}

// List returns a page of tenants.
func (m *Manager) List(ctx context.Context, page, limit int) ([]*domain.Tenant, error) {
	return m.store.ListTenants(ctx, page, limit)
}
