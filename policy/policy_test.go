package policy

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/getarx/arx/audit"
	"github.com/getarx/arx/domain"
)

// --- Mocks ---

type mockPolicyStore struct {
	mu            sync.Mutex
	roles         map[string]*domain.Role
	permissions   []*domain.Permission
	permits       []*domain.PermitRule
	roleLinks     []*domain.RoleLink
	resourceLinks []*domain.ResourceLink
}

func newMockPolicyStore() *mockPolicyStore {
	return &mockPolicyStore{roles: make(map[string]*domain.Role)}
}

func (m *mockPolicyStore) CreateRole(ctx context.Context, r *domain.Role) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := r.TenantID + "/" + r.Name
	if _, ok := m.roles[key]; ok {
		return domain.ErrDuplicateRole
	}
	m.roles[key] = r
	return nil
}

func (m *mockPolicyStore) GetRoleByName(ctx context.Context, tenantID, name string) (*domain.Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.roles[tenantID+"/"+name]; ok {
		return r, nil
	}
	return nil, domain.ErrRoleNotFound
}

func (m *mockPolicyStore) UpdateRole(ctx context.Context, r *domain.Role) error { return nil }

func (m *mockPolicyStore) ListRoles(ctx context.Context, tenantID string) ([]*domain.Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Role
	for _, r := range m.roles {
		if r.TenantID == tenantID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *mockPolicyStore) CreatePermission(ctx context.Context, p *domain.Permission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.permissions = append(m.permissions, p)
	return nil
}

func (m *mockPolicyStore) ListPermissions(ctx context.Context, tenantID string) ([]*domain.Permission, error) {
	return m.permissions, nil
}

func (m *mockPolicyStore) AddPermitRule(ctx context.Context, r *domain.PermitRule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.permits = append(m.permits, r)
	return nil
}

func (m *mockPolicyStore) DeletePermitRule(ctx context.Context, tenantID, subject, resource, action string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.permits[:0]
	for _, p := range m.permits {
		if p.TenantID == tenantID && p.Subject == subject && p.Resource == resource && p.Action == action {
			continue
		}
		out = append(out, p)
	}
	m.permits = out
	return nil
}

func (m *mockPolicyStore) ListPermitRules(ctx context.Context) ([]*domain.PermitRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*domain.PermitRule(nil), m.permits...), nil
}

func (m *mockPolicyStore) AddRoleLink(ctx context.Context, l *domain.RoleLink) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.roleLinks = append(m.roleLinks, l)
	return nil
}

func (m *mockPolicyStore) DeleteRoleLink(ctx context.Context, tenantID, child, parent string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.roleLinks[:0]
	for _, l := range m.roleLinks {
		if l.TenantID == tenantID && l.Child == child && l.Parent == parent {
			continue
		}
		out = append(out, l)
	}
	m.roleLinks = out
	return nil
}

func (m *mockPolicyStore) ListRoleLinks(ctx context.Context) ([]*domain.RoleLink, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*domain.RoleLink(nil), m.roleLinks...), nil
}

func (m *mockPolicyStore) AddResourceLink(ctx context.Context, l *domain.ResourceLink) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resourceLinks = append(m.resourceLinks, l)
	return nil
}

func (m *mockPolicyStore) DeleteResourceLink(ctx context.Context, tenantID, child, parent string) error {
	return nil
}

func (m *mockPolicyStore) ListResourceLinks(ctx context.Context) ([]*domain.ResourceLink, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*domain.ResourceLink(nil), m.resourceLinks...), nil
}

type mockAuditStore struct {
	mu     sync.Mutex
	events []audit.Event
}

func (m *mockAuditStore) SaveEvent(ctx context.Context, e *audit.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, *e)
	return nil
}

func (m *mockAuditStore) QueryEvents(ctx context.Context, f audit.Filter) ([]audit.Event, error) {
	return nil, nil
}

func (m *mockAuditStore) types() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.events))
	for _, e := range m.events {
		out = append(out, e.Type)
	}
	return out
}

func setup(t *testing.T) (*Engine, *Manager, *mockPolicyStore) {
	t.Helper()
	store := newMockPolicyStore()
	engine := NewEngine(store)
	if err := engine.Load(context.Background()); err != nil {
		t.Fatalf("failed to load engine: %v", err)
	}
	return engine, NewManager(store, engine), store
}

// --- Tests ---

func TestCheckDirectPermit(t *testing.T) {
	engine, mgr, _ := setup(t)
	ctx := context.Background()

	if err := mgr.Grant(ctx, "t1", "editor", "articles", "write"); err != nil {
		t.Fatalf("failed to grant: %v", err)
	}

	if !engine.Check("editor", "t1", "articles", "write") {
		t.Error("expected direct permit to pass")
	}
	if engine.Check("editor", "t1", "articles", "delete") {
		t.Error("expected unmatched action to be denied")
	}
	if engine.Check("viewer", "t1", "articles", "write") {
		t.Error("expected unmatched subject to be denied")
	}
	if engine.Check("editor", "t2", "articles", "write") {
		t.Error("expected cross-tenant check to be denied")
	}
}

func TestCheckRoleInheritance(t *testing.T) {
	engine, mgr, _ := setup(t)
	ctx := context.Background()

	// admin inherits editor, editor has the permission.
	if err := mgr.Grant(ctx, "t1", "editor", "articles", "write"); err != nil {
		t.Fatalf("failed to grant: %v", err)
	}
	if err := mgr.AddRoleInheritance(ctx, "t1", "admin", "editor"); err != nil {
		t.Fatalf("failed to link roles: %v", err)
	}
	if err := mgr.AddRoleInheritance(ctx, "t1", "u42", "admin"); err != nil {
		t.Fatalf("failed to assign role: %v", err)
	}

	if !engine.Check("admin", "t1", "articles", "write") {
		t.Error("expected inherited permit to pass")
	}
	if !engine.Check("u42", "t1", "articles", "write") {
		t.Error("expected transitive inheritance to pass")
	}
	if engine.Check("editor", "t1", "users", "write") {
		t.Error("expected unrelated resource to be denied")
	}
}

func TestCheckResourceGroups(t *testing.T) {
	engine, mgr, _ := setup(t)
	ctx := context.Background()

	// A permit on the content group covers articles via g2-style grouping.
	if err := mgr.Grant(ctx, "t1", "editor", "content", "write"); err != nil {
		t.Fatalf("failed to grant: %v", err)
	}
	if err := mgr.AddResourceGroup(ctx, "t1", "articles", "content"); err != nil {
		t.Fatalf("failed to group resources: %v", err)
	}

	if !engine.Check("editor", "t1", "articles", "write") {
		t.Error("expected grouped resource permit to pass")
	}
	if engine.Check("editor", "t1", "settings", "write") {
		t.Error("expected ungrouped resource to be denied")
	}
}

func TestSuperSubjectBypassesGraph(t *testing.T) {
	engine, _, _ := setup(t)

	if !engine.Check(SuperSubject, "t1", "anything", "purge") {
		t.Error("expected wildcard subject to always pass")
	}
}

func TestCyclicInheritanceRejectedAtWriteTime(t *testing.T) {
	_, mgr, _ := setup(t)
	ctx := context.Background()

	if err := mgr.AddRoleInheritance(ctx, "t1", "a", "b"); err != nil {
		t.Fatalf("failed to link: %v", err)
	}
	if err := mgr.AddRoleInheritance(ctx, "t1", "b", "c"); err != nil {
		t.Fatalf("failed to link: %v", err)
	}

	if err := mgr.AddRoleInheritance(ctx, "t1", "c", "a"); !errors.Is(err, domain.ErrCyclicRole) {
		t.Errorf("expected ErrCyclicRole, got %v", err)
	}
	if err := mgr.AddRoleInheritance(ctx, "t1", "a", "a"); !errors.Is(err, domain.ErrCyclicRole) {
		t.Errorf("expected self-edge rejected, got %v", err)
	}
}

func TestCheckTerminatesOnPreexistingCycle(t *testing.T) {
	engine, _, store := setup(t)
	ctx := context.Background()

	// Bypass the manager to simulate legacy cyclic rows.
	store.AddRoleLink(ctx, &domain.RoleLink{TenantID: "t1", Child: "a", Parent: "b"})
	store.AddRoleLink(ctx, &domain.RoleLink{TenantID: "t1", Child: "b", Parent: "a"})
	if err := engine.Load(ctx); err != nil {
		t.Fatalf("failed to load: %v", err)
	}

	if engine.Check("a", "t1", "articles", "write") {
		t.Error("cycle without permits must still deny")
	}
}

func TestRevokeTakesEffectWithoutRestart(t *testing.T) {
	engine, mgr, _ := setup(t)
	ctx := context.Background()

	if err := mgr.Grant(ctx, "t1", "editor", "articles", "write"); err != nil {
		t.Fatalf("failed to grant: %v", err)
	}
	if !engine.Check("editor", "t1", "articles", "write") {
		t.Fatal("expected permit before revoke")
	}

	if err := mgr.Revoke(ctx, "t1", "editor", "articles", "write"); err != nil {
		t.Fatalf("failed to revoke: %v", err)
	}
	if engine.Check("editor", "t1", "articles", "write") {
		t.Error("expected deny after revoke")
	}
}

func TestMutationsAreAudited(t *testing.T) {
	_, mgr, _ := setup(t)
	auditor := &mockAuditStore{}
	mgr.SetAuditStore(auditor)
	ctx := context.Background()

	if err := mgr.Grant(ctx, "t1", "editor", "articles", "write"); err != nil {
		t.Fatalf("failed to grant: %v", err)
	}
	if err := mgr.AddRoleInheritance(ctx, "t1", "editor", "admin"); err != nil {
		t.Fatalf("failed to link: %v", err)
	}
	if err := mgr.RemoveRoleInheritance(ctx, "t1", "editor", "admin"); err != nil {
		t.Fatalf("failed to unlink: %v", err)
	}
	if err := mgr.Revoke(ctx, "t1", "editor", "articles", "write"); err != nil {
		t.Fatalf("failed to revoke: %v", err)
	}

	want := []string{
		audit.EventPolicyGrant,
		audit.EventPolicyLinkAdded,
		audit.EventPolicyLinkRemoved,
		audit.EventPolicyRevoke,
	}
	got := auditor.types()
	if len(got) != len(want) {
		t.Fatalf("expected %d events, got %v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d: got %s want %s", i, got[i], want[i])
		}
	}
}

func TestCreateRoleValidation(t *testing.T) {
	_, mgr, _ := setup(t)
	ctx := context.Background()

	if _, err := mgr.CreateRole(ctx, "t1", ""); domain.KindOf(err) != domain.KindValidation {
		t.Errorf("expected validation error for empty name, got %v", err)
	}
	if _, err := mgr.CreateRole(ctx, "t1", SuperSubject); domain.KindOf(err) != domain.KindValidation {
		t.Errorf("expected reserved name rejected, got %v", err)
	}

	if _, err := mgr.CreateRole(ctx, "t1", "editor"); err != nil {
		t.Fatalf("failed to create role: %v", err)
	}
	if _, err := mgr.CreateRole(ctx, "t1", "editor"); !errors.Is(err, domain.ErrDuplicateRole) {
		t.Errorf("expected duplicate role rejected, got %v", err)
	}
	// Same name under another tenant is fine.
	if _, err := mgr.CreateRole(ctx, "t2", "editor"); err != nil {
		t.Errorf("expected cross-tenant role name to be allowed, got %v", err)
	}
}
