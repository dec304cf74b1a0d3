package arxgorm

import (
	"time"

	"github.com/getarx/arx/audit"
	"github.com/getarx/arx/domain"
)

type gormUser struct {
	ID                    string `gorm:"primaryKey"`
	TenantID              string `gorm:"uniqueIndex:idx_users_tenant_email"`
	Email                 string `gorm:"uniqueIndex:idx_users_tenant_email"`
	FullName              string
	PasswordHash          string
	Role                  string
	Active                bool
	EmailVerified         bool
	VerificationCode      string
	VerificationExpiresAt *time.Time
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

func (gormUser) TableName() string { return "users" }

func fromUser(u *domain.User) *gormUser {
	gu := &gormUser{
		ID:            u.ID,
		TenantID:      u.TenantID,
		Email:         u.Email,
		FullName:      u.FullName,
		PasswordHash:  u.PasswordHash,
		Role:          u.Role,
		Active:        u.Active,
		EmailVerified: u.EmailVerified,
		CreatedAt:     u.CreatedAt,
		UpdatedAt:     u.UpdatedAt,
	}
	if u.Verification != nil {
		expires := u.Verification.ExpiresAt
		gu.VerificationCode = u.Verification.Value
		gu.VerificationExpiresAt = &expires
	}
	return gu
}

func toUser(gu *gormUser) *domain.User {
	u := &domain.User{
		ID:            gu.ID,
		TenantID:      gu.TenantID,
		Email:         gu.Email,
		FullName:      gu.FullName,
		PasswordHash:  gu.PasswordHash,
		Role:          gu.Role,
		Active:        gu.Active,
		EmailVerified: gu.EmailVerified,
		CreatedAt:     gu.CreatedAt,
		UpdatedAt:     gu.UpdatedAt,
	}
	if gu.VerificationCode != "" && gu.VerificationExpiresAt != nil {
		u.Verification = &domain.VerificationCode{
			Value:     gu.VerificationCode,
			ExpiresAt: *gu.VerificationExpiresAt,
		}
	}
	return u
}

type gormTenant struct {
	ID   string `gorm:"primaryKey"`
	Name string `gorm:"uniqueIndex"`
	// Domain is NULL when unset so domainless tenants never collide under
	// the unique index.
	Domain    *string `gorm:"uniqueIndex"`
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (gormTenant) TableName() string { return "tenants" }

func fromTenant(t *domain.Tenant) *gormTenant {
	var dom *string
	if t.Domain != "" {
		d := t.Domain
		dom = &d
	}
	return &gormTenant{
		ID:        t.ID,
		Name:      t.Name,
		Domain:    dom,
		Active:    t.Active,
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
}

func toTenant(gt *gormTenant) *domain.Tenant {
	var dom string
	if gt.Domain != nil {
		dom = *gt.Domain
	}
	return &domain.Tenant{
		ID:        gt.ID,
		Name:      gt.Name,
		Domain:    dom,
		Active:    gt.Active,
		CreatedAt: gt.CreatedAt,
		UpdatedAt: gt.UpdatedAt,
	}
}

type gormRefreshRecord struct {
	ID         string `gorm:"primaryKey"`
	TenantID   string `gorm:"index:idx_refresh_tenant_user"`
	UserID     string `gorm:"index:idx_refresh_tenant_user"`
	TokenHash  string
	DeviceInfo string
	IPAddress  string
	ExpiresAt  time.Time `gorm:"index"`
	CreatedAt  time.Time
}

func (gormRefreshRecord) TableName() string { return "refresh_records" }

func fromRefreshRecord(r *domain.RefreshTokenRecord) *gormRefreshRecord {
	return &gormRefreshRecord{
		ID:         r.ID,
		TenantID:   r.TenantID,
		UserID:     r.UserID,
		TokenHash:  r.TokenHash,
		DeviceInfo: r.DeviceInfo,
		IPAddress:  r.IPAddress,
		ExpiresAt:  r.ExpiresAt,
		CreatedAt:  r.CreatedAt,
	}
}

func toRefreshRecord(gr *gormRefreshRecord) *domain.RefreshTokenRecord {
	return &domain.RefreshTokenRecord{
		ID:         gr.ID,
		TenantID:   gr.TenantID,
		UserID:     gr.UserID,
		TokenHash:  gr.TokenHash,
		DeviceInfo: gr.DeviceInfo,
		IPAddress:  gr.IPAddress,
		ExpiresAt:  gr.ExpiresAt,
		CreatedAt:  gr.CreatedAt,
	}
}

type gormRole struct {
	ID        string `gorm:"primaryKey"`
	TenantID  string `gorm:"uniqueIndex:idx_roles_tenant_name"`
	Name      string `gorm:"uniqueIndex:idx_roles_tenant_name"`
	Active    bool
	CreatedAt time.Time
}

func (gormRole) TableName() string { return "roles" }

func fromRole(r *domain.Role) *gormRole {
	return &gormRole{ID: r.ID, TenantID: r.TenantID, Name: r.Name, Active: r.Active, CreatedAt: r.CreatedAt}
}

func toRole(gr *gormRole) *domain.Role {
	return &domain.Role{ID: gr.ID, TenantID: gr.TenantID, Name: gr.Name, Active: gr.Active, CreatedAt: gr.CreatedAt}
}

type gormPermission struct {
	ID          string `gorm:"primaryKey"`
	TenantID    string `gorm:"uniqueIndex:idx_permissions_tenant_resource_action"`
	Resource    string `gorm:"uniqueIndex:idx_permissions_tenant_resource_action"`
	Action      string `gorm:"uniqueIndex:idx_permissions_tenant_resource_action"`
	Description string
}

func (gormPermission) TableName() string { return "permissions" }

func fromPermission(p *domain.Permission) *gormPermission {
	return &gormPermission{ID: p.ID, TenantID: p.TenantID, Resource: p.Resource, Action: p.Action, Description: p.Description}
}

func toPermission(gp *gormPermission) *domain.Permission {
	return &domain.Permission{ID: gp.ID, TenantID: gp.TenantID, Resource: gp.Resource, Action: gp.Action, Description: gp.Description}
}

type gormPermitRule struct {
	ID       string `gorm:"primaryKey"`
	TenantID string `gorm:"uniqueIndex:idx_permits"`
	Subject  string `gorm:"uniqueIndex:idx_permits"`
	Resource string `gorm:"uniqueIndex:idx_permits"`
	Action   string `gorm:"uniqueIndex:idx_permits"`
}

func (gormPermitRule) TableName() string { return "permit_rules" }

type gormRoleLink struct {
	ID       string `gorm:"primaryKey"`
	TenantID string `gorm:"uniqueIndex:idx_role_links"`
	Child    string `gorm:"uniqueIndex:idx_role_links"`
	Parent   string `gorm:"uniqueIndex:idx_role_links"`
}

func (gormRoleLink) TableName() string { return "role_links" }

type gormResourceLink struct {
	ID       string `gorm:"primaryKey"`
	TenantID string `gorm:"uniqueIndex:idx_resource_links"`
	Child    string `gorm:"uniqueIndex:idx_resource_links"`
	Parent   string `gorm:"uniqueIndex:idx_resource_links"`
}

func (gormResourceLink) TableName() string { return "resource_links" }

type gormAuditEvent struct {
	ID        string `gorm:"primaryKey"`
	Type      string `gorm:"index"`
	TenantID  string `gorm:"index"`
	ActorID   string `gorm:"index"`
	SubjectID string `gorm:"index"`
	Status    string
	Message   string
	IPAddress string
	Device    string
	CreatedAt time.Time `gorm:"index"`
}

func (gormAuditEvent) TableName() string { return "audit_events" }

func fromAuditEvent(e *audit.Event) *gormAuditEvent {
	return &gormAuditEvent{
		ID:        e.ID,
		Type:      e.Type,
		TenantID:  e.TenantID,
		ActorID:   e.ActorID,
		SubjectID: e.SubjectID,
		Status:    e.Status,
		Message:   e.Message,
		IPAddress: e.IPAddress,
		Device:    e.Device,
		CreatedAt: e.CreatedAt,
	}
}

func toAuditEvent(ge *gormAuditEvent) audit.Event {
	return audit.Event{
		ID:        ge.ID,
		Type:      ge.Type,
		TenantID:  ge.TenantID,
		ActorID:   ge.ActorID,
		SubjectID: ge.SubjectID,
		Status:    ge.Status,
		Message:   ge.Message,
		IPAddress: ge.IPAddress,
		Device:    ge.Device,
		CreatedAt: ge.CreatedAt,
	}
}
