// Package audit provides security event recording for Arx.
//
// The credential service and policy manager record structured events for
// authentication and authorization activity. Persistence is best-effort:
// a failed audit write is logged and never fails the operation it records.
package audit

import (
	"context"
	"time"
)

// Event is a structured security event record.
type Event struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`     // e.g. "auth.login.success"
	TenantID  string    `json:"tenant_id"`
	ActorID   string    `json:"actor_id"`   // the identity performing the action
	SubjectID string    `json:"subject_id"` // the affected identity or resource
	Status    string    `json:"status"`     // "success", "failure", "blocked"
	Message   string    `json:"message"`
	IPAddress string    `json:"ip_address,omitempty"`
	Device    string    `json:"device,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Store persists and queries audit events.
type Store interface {
	SaveEvent(ctx context.Context, event *Event) error
	QueryEvents(ctx context.Context, filter Filter) ([]Event, error)
}

// Filter narrows audit queries.
type Filter struct {
	TenantID  string
	ActorID   string
	Types     []string
	StartTime time.Time
	EndTime   time.Time
	Limit     int
	Offset    int
}

// Predefined event types.
const (
	EventSignup            = "auth.signup"
	EventLoginSuccess      = "auth.login.success"
	EventLoginFailure      = "auth.login.failure"
	EventLoginBlocked      = "auth.login.blocked"
	EventRefreshSuccess    = "auth.refresh.success"
	EventRefreshFailure    = "auth.refresh.failure"
	EventLogout            = "auth.logout"
	EventVerifySuccess     = "auth.verify.success"
	EventVerifyFailure     = "auth.verify.failure"
	EventUserDeactivated   = "identity.user.deactivated"
	EventRoleChanged       = "identity.role.changed"
	EventPolicyGrant       = "policy.grant"
	EventPolicyRevoke      = "policy.revoke"
	EventPolicyLinkAdded   = "policy.link.added"
	EventPolicyLinkRemoved = "policy.link.removed"
)
