// Package arxgorm implements the storage contracts on GORM. It supports
// sqlite, postgres, and mysql through a driver registry; deployments can
// register additional dialectors before calling Open.
package arxgorm

import (
	"context"
	"errors"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/getarx/arx/audit"
	"github.com/getarx/arx/domain"
)

func init() {
	Register("sqlite", sqlite.Open)
	Register("postgres", postgres.Open)
	Register("mysql", mysql.Open)
}

// Repository implements domain.Storage and audit.Store over a gorm.DB.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) DB() *gorm.DB {
	return r.db
}

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(
		&gormTenant{},
		&gormUser{},
		&gormRefreshRecord{},
		&gormRole{},
		&gormPermission{},
		&gormPermitRule{},
		&gormRoleLink{},
		&gormResourceLink{},
		&gormAuditEvent{},
	)
}

// mapErr translates gorm errors to the domain taxonomy. notFound and
// conflict name the sentinels for the entity at hand.
func mapErr(err error, notFound, conflict error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return notFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return conflict
	default:
		return err
	}
}

// ---- UserStore ----

func (r *Repository) CreateUser(ctx context.Context, u *domain.User) error {
	err := r.db.WithContext(ctx).Create(fromUser(u)).Error
	return mapErr(err, domain.ErrUserNotFound, domain.ErrEmailTaken)
}

func (r *Repository) GetUser(ctx context.Context, tenantID, id string) (*domain.User, error) {
	var gu gormUser
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&gu).Error
	if err != nil {
		return nil, mapErr(err, domain.ErrUserNotFound, nil)
	}
	return toUser(&gu), nil
}

func (r *Repository) FindUserByEmail(ctx context.Context, tenantID, email string) (*domain.User, error) {
	var gu gormUser
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND email = ?", tenantID, email).
		First(&gu).Error
	if err != nil {
		return nil, mapErr(err, domain.ErrUserNotFound, nil)
	}
	return toUser(&gu), nil
}

func (r *Repository) UpdateUser(ctx context.Context, u *domain.User) error {
	gu := fromUser(u)
	// Save with a full struct would skip zero-valued fields on Updates;
	// Select("*") writes cleared flags and codes too.
	err := r.db.WithContext(ctx).
		Model(&gormUser{}).
		Where("tenant_id = ? AND id = ?", u.TenantID, u.ID).
		Select("*").Omit("id", "tenant_id", "created_at").
		Updates(gu).Error
	return mapErr(err, domain.ErrUserNotFound, domain.ErrEmailTaken)
}

func (r *Repository) ListUsers(ctx context.Context, tenantID string, page, limit int) ([]*domain.User, error) {
	if limit <= 0 {
		limit = 50
	}
	if page < 1 {
		page = 1
	}
	var rows []gormUser
	err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("created_at").
		Offset((page - 1) * limit).Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	users := make([]*domain.User, 0, len(rows))
	for i := range rows {
		users = append(users, toUser(&rows[i]))
	}
	return users, nil
}

// ---- TenantStore ----

func (r *Repository) CreateTenant(ctx context.Context, t *domain.Tenant) error {
	err := r.db.WithContext(ctx).Create(fromTenant(t)).Error
	return mapErr(err, domain.ErrTenantNotFound, domain.ErrDuplicateTenant)
}

func (r *Repository) GetTenant(ctx context.Context, id string) (*domain.Tenant, error) {
	var gt gormTenant
	err := r.db.WithContext(ctx).First(&gt, "id = ?", id).Error
	if err != nil {
		return nil, mapErr(err, domain.ErrTenantNotFound, nil)
	}
	return toTenant(&gt), nil
}

func (r *Repository) GetTenantByDomain(ctx context.Context, dom string) (*domain.Tenant, error) {
	var gt gormTenant
	err := r.db.WithContext(ctx).First(&gt, "domain = ?", dom).Error
	if err != nil {
		return nil, mapErr(err, domain.ErrTenantNotFound, nil)
	}
	return toTenant(&gt), nil
}

func (r *Repository) GetTenantByName(ctx context.Context, name string) (*domain.Tenant, error) {
	var gt gormTenant
	err := r.db.WithContext(ctx).First(&gt, "name = ?", name).Error
	if err != nil {
		return nil, mapErr(err, domain.ErrTenantNotFound, nil)
	}
	return toTenant(&gt), nil
}

func (r *Repository) UpdateTenant(ctx context.Context, t *domain.Tenant) error {
	err := r.db.WithContext(ctx).
		Model(&gormTenant{}).
		Where("id = ?", t.ID).
		Select("*").Omit("id", "created_at").
		Updates(fromTenant(t)).Error
	return mapErr(err, domain.ErrTenantNotFound, domain.ErrDuplicateTenant)
}

func (r *Repository) ListTenants(ctx context.Context, page, limit int) ([]*domain.Tenant, error) {
	if limit <= 0 {
		limit = 50
	}
	if page < 1 {
		page = 1
	}
	var rows []gormTenant
	err := r.db.WithContext(ctx).
		Order("created_at").
		Offset((page - 1) * limit).Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	tenants := make([]*domain.Tenant, 0, len(rows))
	for i := range rows {
		tenants = append(tenants, toTenant(&rows[i]))
	}
	return tenants, nil
}

// ---- SessionStore ----

func (r *Repository) CreateRefreshRecord(ctx context.Context, rec *domain.RefreshTokenRecord) error {
	return r.db.WithContext(ctx).Create(fromRefreshRecord(rec)).Error
}

func (r *Repository) FindValidRefreshRecords(ctx context.Context, tenantID, userID string, now time.Time) ([]*domain.RefreshTokenRecord, error) {
	var rows []gormRefreshRecord
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND user_id = ? AND expires_at > ?", tenantID, userID, now).
		Order("created_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	records := make([]*domain.RefreshTokenRecord, 0, len(rows))
	for i := range rows {
		records = append(records, toRefreshRecord(&rows[i]))
	}
	return records, nil
}

// RotateRefreshRecord conditionally replaces a record's token material.
// The WHERE clause includes the previous hash, so of two concurrent
// rotations only the first finds a matching row; the second touches zero
// rows and reports false.
func (r *Repository) RotateRefreshRecord(ctx context.Context, tenantID, recordID, oldHash, newHash, deviceInfo, ip string, expiresAt time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&gormRefreshRecord{}).
		Where("tenant_id = ? AND id = ? AND token_hash = ?", tenantID, recordID, oldHash).
		Updates(map[string]any{
			"token_hash":  newHash,
			"device_info": deviceInfo,
			"ip_address":  ip,
			"expires_at":  expiresAt,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *Repository) DeleteRefreshRecord(ctx context.Context, tenantID, recordID string) error {
	return r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, recordID).
		Delete(&gormRefreshRecord{}).Error
}

func (r *Repository) DeleteUserRefreshRecords(ctx context.Context, tenantID, userID string) error {
	return r.db.WithContext(ctx).
		Where("tenant_id = ? AND user_id = ?", tenantID, userID).
		Delete(&gormRefreshRecord{}).Error
}

func (r *Repository) DeleteExpiredRefreshRecords(ctx context.Context, tenantID, userID string, now time.Time) error {
	return r.db.WithContext(ctx).
		Where("tenant_id = ? AND user_id = ? AND expires_at <= ?", tenantID, userID, now).
		Delete(&gormRefreshRecord{}).Error
}

// ---- PolicyStore ----

func (r *Repository) CreateRole(ctx context.Context, role *domain.Role) error {
	err := r.db.WithContext(ctx).Create(fromRole(role)).Error
	return mapErr(err, domain.ErrRoleNotFound, domain.ErrDuplicateRole)
}

func (r *Repository) GetRoleByName(ctx context.Context, tenantID, name string) (*domain.Role, error) {
	var gr gormRole
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND name = ?", tenantID, name).
		First(&gr).Error
	if err != nil {
		return nil, mapErr(err, domain.ErrRoleNotFound, nil)
	}
	return toRole(&gr), nil
}

func (r *Repository) UpdateRole(ctx context.Context, role *domain.Role) error {
	err := r.db.WithContext(ctx).
		Model(&gormRole{}).
		Where("tenant_id = ? AND id = ?", role.TenantID, role.ID).
		Select("*").Omit("id", "tenant_id", "created_at").
		Updates(fromRole(role)).Error
	return mapErr(err, domain.ErrRoleNotFound, domain.ErrDuplicateRole)
}

func (r *Repository) ListRoles(ctx context.Context, tenantID string) ([]*domain.Role, error) {
	var rows []gormRole
	err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("name").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	roles := make([]*domain.Role, 0, len(rows))
	for i := range rows {
		roles = append(roles, toRole(&rows[i]))
	}
	return roles, nil
}

func (r *Repository) CreatePermission(ctx context.Context, p *domain.Permission) error {
	err := r.db.WithContext(ctx).Create(fromPermission(p)).Error
	return mapErr(err, nil, domain.NewError(domain.KindConflict, "permission already exists"))
}

func (r *Repository) ListPermissions(ctx context.Context, tenantID string) ([]*domain.Permission, error) {
	var rows []gormPermission
	err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("resource, action").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	perms := make([]*domain.Permission, 0, len(rows))
	for i := range rows {
		perms = append(perms, toPermission(&rows[i]))
	}
	return perms, nil
}

func (r *Repository) AddPermitRule(ctx context.Context, rule *domain.PermitRule) error {
	err := r.db.WithContext(ctx).Create(&gormPermitRule{
		ID:       rule.ID,
		TenantID: rule.TenantID,
		Subject:  rule.Subject,
		Resource: rule.Resource,
		Action:   rule.Action,
	}).Error
	// Granting an already-granted permit is a no-op, not a conflict.
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil
	}
	return err
}

func (r *Repository) DeletePermitRule(ctx context.Context, tenantID, subject, resource, action string) error {
	return r.db.WithContext(ctx).
		Where("tenant_id = ? AND subject = ? AND resource = ? AND action = ?", tenantID, subject, resource, action).
		Delete(&gormPermitRule{}).Error
}

func (r *Repository) ListPermitRules(ctx context.Context) ([]*domain.PermitRule, error) {
	var rows []gormPermitRule
	if err := r.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, err
	}
	rules := make([]*domain.PermitRule, 0, len(rows))
	for _, row := range rows {
		rules = append(rules, &domain.PermitRule{
			ID:       row.ID,
			TenantID: row.TenantID,
			Subject:  row.Subject,
			Resource: row.Resource,
			Action:   row.Action,
		})
	}
	return rules, nil
}

func (r *Repository) AddRoleLink(ctx context.Context, l *domain.RoleLink) error {
	err := r.db.WithContext(ctx).Create(&gormRoleLink{
		ID:       l.ID,
		TenantID: l.TenantID,
		Child:    l.Child,
		Parent:   l.Parent,
	}).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil
	}
	return err
}

func (r *Repository) DeleteRoleLink(ctx context.Context, tenantID, child, parent string) error {
	return r.db.WithContext(ctx).
		Where("tenant_id = ? AND child = ? AND parent = ?", tenantID, child, parent).
		Delete(&gormRoleLink{}).Error
}

func (r *Repository) ListRoleLinks(ctx context.Context) ([]*domain.RoleLink, error) {
	var rows []gormRoleLink
	if err := r.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, err
	}
	links := make([]*domain.RoleLink, 0, len(rows))
	for _, row := range rows {
		links = append(links, &domain.RoleLink{
			ID:       row.ID,
			TenantID: row.TenantID,
			Child:    row.Child,
			Parent:   row.Parent,
		})
	}
	return links, nil
}

func (r *Repository) AddResourceLink(ctx context.Context, l *domain.ResourceLink) error {
	err := r.db.WithContext(ctx).Create(&gormResourceLink{
		ID:       l.ID,
		TenantID: l.TenantID,
		Child:    l.Child,
		Parent:   l.Parent,
	}).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil
	}
	return err
}

func (r *Repository) DeleteResourceLink(ctx context.Context, tenantID, child, parent string) error {
	return r.db.WithContext(ctx).
		Where("tenant_id = ? AND child = ? AND parent = ?", tenantID, child, parent).
		Delete(&gormResourceLink{}).Error
}

func (r *Repository) ListResourceLinks(ctx context.Context) ([]*domain.ResourceLink, error) {
	var rows []gormResourceLink
	if err := r.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, err
	}
	links := make([]*domain.ResourceLink, 0, len(rows))
	for _, row := range rows {
		links = append(links, &domain.ResourceLink{
			ID:       row.ID,
			TenantID: row.TenantID,
			Child:    row.Child,
			Parent:   row.Parent,
		})
	}
	return links, nil
}

// ---- audit.Store ----

func (r *Repository) SaveEvent(ctx context.Context, event *audit.Event) error {
	return r.db.WithContext(ctx).Create(fromAuditEvent(event)).Error
}

func (r *Repository) QueryEvents(ctx context.Context, filter audit.Filter) ([]audit.Event, error) {
	q := r.db.WithContext(ctx).Model(&gormAuditEvent{})
	if filter.TenantID != "" {
		q = q.Where("tenant_id = ?", filter.TenantID)
	}
	if filter.ActorID != "" {
		q = q.Where("actor_id = ?", filter.ActorID)
	}
	if len(filter.Types) > 0 {
		q = q.Where("type IN ?", filter.Types)
	}
	if !filter.StartTime.IsZero() {
		q = q.Where("created_at >= ?", filter.StartTime)
	}
	if !filter.EndTime.IsZero() {
		q = q.Where("created_at <= ?", filter.EndTime)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		q = q.Offset(filter.Offset)
	}

	var rows []gormAuditEvent
	if err := q.Order("created_at DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	events := make([]audit.Event, 0, len(rows))
	for i := range rows {
		events = append(events, toAuditEvent(&rows[i]))
	}
	return events, nil
}
