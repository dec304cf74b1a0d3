package domain

import (
	"strings"
	"time"
)

// Tenant is the isolation boundary. Every other entity carries a TenantID
// and all lookups and writes filter by it. Name is unique; Domain is
// unique when set and enables domain-based resolution.
type Tenant struct {
	ID        string
	Name      string
	Domain    string
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewTenant creates an active tenant.
func NewTenant(id, name, domain string) *Tenant {
	now := time.Now()
	return &Tenant{
		ID:        id,
		Name:      strings.TrimSpace(name),
		Domain:    strings.ToLower(strings.TrimSpace(domain)),
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
