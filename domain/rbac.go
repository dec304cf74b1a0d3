package domain

import "time"

// Role is a named, tenant-scoped grouping of permissions. Name is unique
// per tenant.
type Role struct {
	ID        string
	TenantID  string
	Name      string
	Active    bool
	CreatedAt time.Time
}

// Permission grants an action on a resource within a tenant.
type Permission struct {
	ID          string
	TenantID    string
	Resource    string
	Action      string
	Description string
}

// PermitRule is one compiled policy row: subject may perform action on
// resource within the tenant domain. Subjects are role names or user ids.
type PermitRule struct {
	ID       string
	TenantID string
	Subject  string
	Resource string
	Action   string
}

// RoleLink is a directed inheritance edge: within the tenant domain, Child
// inherits every permission reachable from Parent.
type RoleLink struct {
	ID       string
	TenantID string
	Child    string
	Parent   string
}

// ResourceLink is a directed grouping edge between resources: a permission
// on Parent also covers Child.
type ResourceLink struct {
	ID       string
	TenantID string
	Child    string
	Parent   string
}
