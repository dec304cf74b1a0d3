package tenant

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/getarx/arx/domain"
)

// --- Mocks ---

type mockStore struct {
	tenants map[string]*domain.Tenant
}

func newMockStore() *mockStore {
	return &mockStore{tenants: make(map[string]*domain.Tenant)}
}

func (m *mockStore) CreateTenant(ctx context.Context, t *domain.Tenant) error {
	for _, existing := range m.tenants {
		if existing.Name == t.Name || (t.Domain != "" && existing.Domain == t.Domain) {
			return domain.ErrDuplicateTenant
		}
	}
	m.tenants[t.ID] = t
	return nil
}

func (m *mockStore) GetTenant(ctx context.Context, id string) (*domain.Tenant, error) {
	if t, ok := m.tenants[id]; ok {
		return t, nil
	}
	return nil, domain.ErrTenantNotFound
}

func (m *mockStore) GetTenantByDomain(ctx context.Context, dom string) (*domain.Tenant, error) {
	for _, t := range m.tenants {
		if t.Domain == dom {
			return t, nil
		}
	}
	return nil, domain.ErrTenantNotFound
}

func (m *mockStore) GetTenantByName(ctx context.Context, name string) (*domain.Tenant, error) {
	for _, t := range m.tenants {
		if t.Name == name {
			return t, nil
		}
	}
	return nil, domain.ErrTenantNotFound
}

func (m *mockStore) UpdateTenant(ctx context.Context, t *domain.Tenant) error {
	m.tenants[t.ID] = t
	return nil
}

func (m *mockStore) ListTenants(ctx context.Context, page, limit int) ([]*domain.Tenant, error) {
	var out []*domain.Tenant
	for _, t := range m.tenants {
		out = append(out, t)
	}
	return out, nil
}

type mockResolver struct {
	resolveFunc func(r *http.Request) (string, error)
}

func (m *mockResolver) Resolve(ctx context.Context, r *http.Request) (string, error) {
	if m.resolveFunc != nil {
		return m.resolveFunc(r)
	}
	return "", nil
}

// --- Tests ---

func TestResolveFromRequest(t *testing.T) {
	store := newMockStore()
	store.CreateTenant(context.Background(), &domain.Tenant{ID: "t1", Name: "Acme", Active: true})

	resolver := &mockResolver{
		resolveFunc: func(r *http.Request) (string, error) { return "t1", nil },
	}
	m := NewManager(store, resolver)

	req := httptest.NewRequest("GET", "/", nil)
	resolved, ctx, err := m.ResolveFromRequest(context.Background(), req)
	if err != nil {
		t.Fatalf("failed to resolve: %v", err)
	}
	if resolved.ID != "t1" {
		t.Errorf("expected tenant t1, got %s", resolved.ID)
	}
	if FromContext(ctx) == nil {
		t.Error("tenant not loaded into context")
	}
	if IDFromContext(ctx) != "t1" {
		t.Errorf("expected tenant id in context, got %q", IDFromContext(ctx))
	}
}

func TestResolveFromRequestByDomain(t *testing.T) {
	store := newMockStore()
	store.CreateTenant(context.Background(), &domain.Tenant{ID: "t1", Name: "Acme", Domain: "acme", Active: true})

	resolver := &mockResolver{
		resolveFunc: func(r *http.Request) (string, error) { return "acme", nil },
	}
	m := NewManager(store, resolver)

	req := httptest.NewRequest("GET", "/", nil)
	resolved, _, err := m.ResolveFromRequest(context.Background(), req)
	if err != nil {
		t.Fatalf("failed to resolve by domain: %v", err)
	}
	if resolved.ID != "t1" {
		t.Errorf("expected tenant t1, got %s", resolved.ID)
	}
}

func TestResolveFromRequestUnknownTenant(t *testing.T) {
	store := newMockStore()
	resolver := &mockResolver{
		resolveFunc: func(r *http.Request) (string, error) { return "ghost", nil },
	}
	m := NewManager(store, resolver)

	req := httptest.NewRequest("GET", "/", nil)
	if _, _, err := m.ResolveFromRequest(context.Background(), req); !errors.Is(err, domain.ErrTenantNotFound) {
		t.Errorf("expected ErrTenantNotFound, got %v", err)
	}
}

func TestResolveFromRequestInactiveTenant(t *testing.T) {
	store := newMockStore()
	store.CreateTenant(context.Background(), &domain.Tenant{ID: "t1", Name: "Acme", Active: false})

	resolver := &mockResolver{
		resolveFunc: func(r *http.Request) (string, error) { return "t1", nil },
	}
	m := NewManager(store, resolver)

	req := httptest.NewRequest("GET", "/", nil)
	if _, _, err := m.ResolveFromRequest(context.Background(), req); !errors.Is(err, domain.ErrTenantNotFound) {
		t.Errorf("expected inactive tenant to not resolve, got %v", err)
	}
}

func TestResolveFromRequestDefaultTenant(t *testing.T) {
	store := newMockStore()
	store.CreateTenant(context.Background(), &domain.Tenant{ID: "main", Name: "Main", Active: true})

	m := NewManager(store, &mockResolver{}, WithDefaultTenant("main"))

	req := httptest.NewRequest("GET", "/", nil)
	resolved, _, err := m.ResolveFromRequest(context.Background(), req)
	if err != nil {
		t.Fatalf("failed to resolve default tenant: %v", err)
	}
	if resolved.ID != "main" {
		t.Errorf("expected default tenant, got %s", resolved.ID)
	}
}

func TestResolveFromRequestRequiredTenantMissing(t *testing.T) {
	m := NewManager(newMockStore(), &mockResolver{})

	req := httptest.NewRequest("GET", "/", nil)
	if _, _, err := m.ResolveFromRequest(context.Background(), req); !errors.Is(err, domain.ErrTenantNotFound) {
		t.Errorf("expected required tenant failure, got %v", err)
	}
}

func TestManagerCreate(t *testing.T) {
	store := newMockStore()
	m := NewManager(store, &mockResolver{})
	ctx := context.Background()

	created, err := m.Create(ctx, "Acme", "ACME")
	if err != nil {
		t.Fatalf("failed to create tenant: %v", err)
	}
	if created.Domain != "acme" {
		t.Errorf("expected lowercased domain, got %q", created.Domain)
	}
	if !created.Active {
		t.Error("new tenant must start active")
	}

	if _, err := m.Create(ctx, "Acme", ""); !errors.Is(err, domain.ErrDuplicateTenant) {
		t.Errorf("expected ErrDuplicateTenant, got %v", err)
	}
	if _, err := m.Create(ctx, "", "x"); domain.KindOf(err) != domain.KindValidation {
		t.Errorf("expected validation error for empty name, got %v", err)
	}
}

func TestManagerDeactivate(t *testing.T) {
	store := newMockStore()
	m := NewManager(store, &mockResolver{
		resolveFunc: func(r *http.Request) (string, error) { return "t1", nil },
	})
	ctx := context.Background()

	store.CreateTenant(ctx, &domain.Tenant{ID: "t1", Name: "Acme", Active: true})
	if err := m.Deactivate(ctx, "t1"); err != nil {
		t.Fatalf("failed to deactivate: %v", err)
	}

	req := httptest.NewRequest("GET", "/", nil)
	if _, _, err := m.ResolveFromRequest(context.Background(), req); !errors.Is(err, domain.ErrTenantNotFound) {
		t.Errorf("deactivated tenant must stop resolving, got %v", err)
	}
}

func TestSubdomainResolver(t *testing.T) {
	r := NewSubdomainResolver("example.com")
	cases := []struct {
		host string
		want string
	}{
		{"acme.example.com", "acme"},
		{"acme.example.com:8080", "acme"},
		{"example.com", ""},
		{"www.example.com", ""},
		{"other.org", ""},
		{"a.b.example.com", "a"},
	}
	for _, tc := range cases {
		req := httptest.NewRequest("GET", "/", nil)
		req.Host = tc.host
		got, err := r.Resolve(context.Background(), req)
		if err != nil {
			t.Fatalf("resolve(%s): %v", tc.host, err)
		}
		if got != tc.want {
			t.Errorf("resolve(%s) = %q, want %q", tc.host, got, tc.want)
		}
	}
}

func TestChainResolver(t *testing.T) {
	chain := NewChainResolver(
		NewHeaderResolver(""),
		NewSubdomainResolver("example.com"),
		NewStaticResolver("fallback"),
	)

	req := httptest.NewRequest("GET", "/", nil)
	req.Host = "acme.example.com"
	req.Header.Set("X-Tenant-ID", "from-header")
	got, _ := chain.Resolve(context.Background(), req)
	if got != "from-header" {
		t.Errorf("expected header to win, got %q", got)
	}

	req.Header.Del("X-Tenant-ID")
	got, _ = chain.Resolve(context.Background(), req)
	if got != "acme" {
		t.Errorf("expected subdomain fallback, got %q", got)
	}

	req.Host = "other.org"
	got, _ = chain.Resolve(context.Background(), req)
	if got != "fallback" {
		t.Errorf("expected static fallback, got %q", got)
	}
}
