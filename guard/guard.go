// Package guard implements the per-request authorization pipeline: it
// authenticates a bearer access token, binds it to the resolved tenant,
// and evaluates the policy engine for the request target.
package guard

import (
	"github.com/getarx/arx/domain"
	"github.com/getarx/arx/policy"
	"github.com/getarx/arx/token"
)

// Possession describes how ownership factors into an authorization check.
type Possession int

const (
	// PossessAny requires a role-level grant for the resource and action.
	PossessAny Possession = iota
	// PossessOwnAny permits subjects acting on their own resource
	// unconditionally, and falls back to a role-level grant otherwise.
	PossessOwnAny
)

// Target is the object of an authorization check. OwnerID is the declared
// owner of the concrete resource instance; the caller resolves it from the
// request, not from the policy store.
type Target struct {
	Resource   string
	Action     string
	Possession Possession
	OwnerID    string
}

// Guard runs the request pipeline. It is safe for concurrent use.
type Guard struct {
	issuer *token.Issuer
	engine *policy.Engine
}

func New(issuer *token.Issuer, engine *policy.Engine) *Guard {
	return &Guard{issuer: issuer, engine: engine}
}

// Authenticate verifies the raw access token and checks that it was minted
// for the given tenant. An empty tenantID skips the binding check, for
// callers that trust the token to name its own tenant.
func (g *Guard) Authenticate(raw, tenantID string) (*token.Principal, error) {
	if raw == "" {
		return nil, domain.ErrInvalidAccessToken
	}
	claims, err := g.issuer.Verify(raw)
	if err != nil {
		return nil, domain.ErrInvalidAccessToken.WithCause(err)
	}
	p := claims.Principal()
	if tenantID != "" && p.TenantID != tenantID {
		return nil, domain.ErrTenantMismatch
	}
	return &p, nil
}

// Authorize decides whether an authenticated principal may act on the
// target. Ownership short-circuits role evaluation for PossessOwnAny
// targets; everything else goes through the policy engine, first by
// subject id and then by the principal's role.
func (g *Guard) Authorize(p *token.Principal, t Target) error {
	if t.Possession == PossessOwnAny && t.OwnerID != "" && t.OwnerID == p.UserID {
		return nil
	}
	if g.engine.Check(p.UserID, p.TenantID, t.Resource, t.Action) {
		return nil
	}
	if p.Role != "" && g.engine.Check(p.Role, p.TenantID, t.Resource, t.Action) {
		return nil
	}
	return domain.ErrPolicyDenied
}

// Admit runs the full pipeline: authenticate, bind tenant, authorize.
func (g *Guard) Admit(raw, tenantID string, t Target) (*token.Principal, error) {
	p, err := g.Authenticate(raw, tenantID)
	if err != nil {
		return nil, err
	}
	if err := g.Authorize(p, t); err != nil {
		return nil, err
	}
	return p, nil
}
