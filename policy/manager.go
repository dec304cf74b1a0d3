package policy

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/getarx/arx/audit"
	"github.com/getarx/arx/domain"
)

// Manager is the single writer of policy data. Every mutation writes
// through the store and then reloads the engine's compiled view, so a
// grant or revoke takes effect for the next Check without a restart.
type Manager struct {
	store   domain.PolicyStore
	engine  *Engine
	newID   domain.IDGenerator
	auditor audit.Store
	log     *zap.Logger
}

func NewManager(store domain.PolicyStore, engine *Engine) *Manager {
	return &Manager{
		store:  store,
		engine: engine,
		newID:  func() string { return uuid.New().String() },
		log:    zap.NewNop(),
	}
}

// SetIDGenerator overrides the row id generator.
func (m *Manager) SetIDGenerator(g domain.IDGenerator) { m.newID = g }

// SetAuditStore enables recording of policy mutations.
func (m *Manager) SetAuditStore(a audit.Store) { m.auditor = a }

// SetLogger sets the structured logger.
func (m *Manager) SetLogger(l *zap.Logger) { m.log = l }

// record persists an audit event for a completed mutation, best-effort.
func (m *Manager) record(tenantID, eventType, subject, msg string) {
	if m.auditor == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := m.auditor.SaveEvent(ctx, &audit.Event{
		ID:        m.newID(),
		Type:      eventType,
		TenantID:  tenantID,
		SubjectID: subject,
		Status:    "success",
		Message:   msg,
		CreatedAt: time.Now(),
	})
	if err != nil {
		m.log.Warn("audit write failed", zap.String("type", eventType), zap.Error(err))
	}
}

// CreateRole registers a named role in the tenant. The name is unique per
// tenant; the store surfaces violations as ErrDuplicateRole.
func (m *Manager) CreateRole(ctx context.Context, tenantID, name string) (*domain.Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, domain.NewError(domain.KindValidation, "role name must not be empty")
	}
	if name == m.engine.super {
		return nil, domain.NewError(domain.KindValidation, "role name is reserved")
	}
	role := &domain.Role{
		ID:        m.newID(),
		TenantID:  tenantID,
		Name:      name,
		Active:    true,
		CreatedAt: time.Now(),
	}
	if err := m.store.CreateRole(ctx, role); err != nil {
		return nil, err
	}
	return role, nil
}

// DeactivateRole soft-deletes a role. Existing permits stay in the store
// but the role should no longer be assigned.
func (m *Manager) DeactivateRole(ctx context.Context, tenantID, name string) error {
	role, err := m.store.GetRoleByName(ctx, tenantID, name)
	if err != nil {
		return err
	}
	role.Active = false
	return m.store.UpdateRole(ctx, role)
}

// ListRoles returns the tenant's roles.
func (m *Manager) ListRoles(ctx context.Context, tenantID string) ([]*domain.Role, error) {
	return m.store.ListRoles(ctx, tenantID)
}

// CreatePermission registers a resource/action pair for documentation and
// admin tooling. Permits reference resource and action directly.
func (m *Manager) CreatePermission(ctx context.Context, tenantID, resource, action, description string) (*domain.Permission, error) {
	if resource == "" || action == "" {
		return nil, domain.NewError(domain.KindValidation, "resource and action must not be empty")
	}
	perm := &domain.Permission{
		ID:          m.newID(),
		TenantID:    tenantID,
		Resource:    resource,
		Action:      action,
		Description: description,
	}
	if err := m.store.CreatePermission(ctx, perm); err != nil {
		return nil, err
	}
	return perm, nil
}

// ListPermissions returns the tenant's permissions.
func (m *Manager) ListPermissions(ctx context.Context, tenantID string) ([]*domain.Permission, error) {
	return m.store.ListPermissions(ctx, tenantID)
}

// Grant permits subject to perform action on resource within the tenant.
func (m *Manager) Grant(ctx context.Context, tenantID, subject, resource, action string) error {
	rule := &domain.PermitRule{
		ID:       m.newID(),
		TenantID: tenantID,
		Subject:  subject,
		Resource: resource,
		Action:   action,
	}
	if err := m.store.AddPermitRule(ctx, rule); err != nil {
		return err
	}
	m.record(tenantID, audit.EventPolicyGrant, subject, resource+":"+action)
	return m.engine.Load(ctx)
}

// Revoke removes a permit.
func (m *Manager) Revoke(ctx context.Context, tenantID, subject, resource, action string) error {
	if err := m.store.DeletePermitRule(ctx, tenantID, subject, resource, action); err != nil {
		return err
	}
	m.record(tenantID, audit.EventPolicyRevoke, subject, resource+":"+action)
	return m.engine.Load(ctx)
}

// AddRoleInheritance makes child inherit parent's permissions. Edges that
// would close a cycle are rejected at write time with ErrCyclicRole; the
// read path additionally tolerates cycles that predate this check.
func (m *Manager) AddRoleInheritance(ctx context.Context, tenantID, child, parent string) error {
	if child == parent {
		return domain.ErrCyclicRole
	}
	// Adding child -> parent closes a cycle iff child is already reachable
	// from parent.
	if m.engine.HasRole(parent, tenantID, child) && parent != m.engine.super {
		return domain.ErrCyclicRole
	}
	link := &domain.RoleLink{
		ID:       m.newID(),
		TenantID: tenantID,
		Child:    child,
		Parent:   parent,
	}
	if err := m.store.AddRoleLink(ctx, link); err != nil {
		return err
	}
	m.record(tenantID, audit.EventPolicyLinkAdded, child, "inherits "+parent)
	return m.engine.Load(ctx)
}

// RemoveRoleInheritance deletes an inheritance edge.
func (m *Manager) RemoveRoleInheritance(ctx context.Context, tenantID, child, parent string) error {
	if err := m.store.DeleteRoleLink(ctx, tenantID, child, parent); err != nil {
		return err
	}
	m.record(tenantID, audit.EventPolicyLinkRemoved, child, "no longer inherits "+parent)
	return m.engine.Load(ctx)
}

// AddResourceGroup makes a permission on parent also cover child.
func (m *Manager) AddResourceGroup(ctx context.Context, tenantID, child, parent string) error {
	link := &domain.ResourceLink{
		ID:       m.newID(),
		TenantID: tenantID,
		Child:    child,
		Parent:   parent,
	}
	if err := m.store.AddResourceLink(ctx, link); err != nil {
		return err
	}
	m.record(tenantID, audit.EventPolicyLinkAdded, child, "grouped under "+parent)
	return m.engine.Load(ctx)
}

// RemoveResourceGroup deletes a resource grouping edge.
func (m *Manager) RemoveResourceGroup(ctx context.Context, tenantID, child, parent string) error {
	if err := m.store.DeleteResourceLink(ctx, tenantID, child, parent); err != nil {
		return err
	}
	m.record(tenantID, audit.EventPolicyLinkRemoved, child, "no longer grouped under "+parent)
	return m.engine.Load(ctx)
}
