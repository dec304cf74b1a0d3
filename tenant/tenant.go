// Package tenant resolves which tenant an incoming request belongs to and
// manages the tenant lifecycle. Resolution strategies cover subdomain,
// header, and static single-tenant deployments, and compose via a chain.
package tenant

import (
	"context"
	"net/http"

	"github.com/getarx/arx/domain"
)

type contextKey struct{ name string }

var (
	tenantContextKey   = &contextKey{"tenant"}
	tenantIDContextKey = &contextKey{"tenant_id"}
)

// WithTenant adds a tenant to the context.
func WithTenant(ctx context.Context, t *domain.Tenant) context.Context {
	ctx = context.WithValue(ctx, tenantContextKey, t)
	if t != nil {
		ctx = context.WithValue(ctx, tenantIDContextKey, t.ID)
	}
	return ctx
}

// FromContext extracts the tenant from context, or nil.
func FromContext(ctx context.Context) *domain.Tenant {
	if t, ok := ctx.Value(tenantContextKey).(*domain.Tenant); ok {
		return t
	}
	return nil
}

// IDFromContext extracts just the tenant ID from context.
func IDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(tenantIDContextKey).(string); ok {
		return id
	}
	return ""
}

// Resolver extracts a tenant identifier from an incoming request.
// It returns an empty string when no tenant can be determined.
type Resolver interface {
	Resolve(ctx context.Context, r *http.Request) (string, error)
}

// ResolverFunc adapts an ordinary function to a Resolver.
type ResolverFunc func(ctx context.Context, r *http.Request) (string, error)

func (f ResolverFunc) Resolve(ctx context.Context, r *http.Request) (string, error) {
	return f(ctx, r)
}
