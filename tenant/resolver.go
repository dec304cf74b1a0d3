package tenant

import (
	"context"
	"net/http"
	"strings"
)

// SubdomainResolver extracts the tenant identifier from the request host.
// Example: acme.example.com with base domain example.com resolves "acme".
type SubdomainResolver struct {
	BaseDomain string
}

func NewSubdomainResolver(baseDomain string) *SubdomainResolver {
	return &SubdomainResolver{BaseDomain: baseDomain}
}

func (r *SubdomainResolver) Resolve(ctx context.Context, req *http.Request) (string, error) {
	host := req.Host
	if idx := strings.Index(host, ":"); idx != -1 {
		host = host[:idx]
	}

	// The bare base domain carries no tenant.
	if host == r.BaseDomain || host == "www."+r.BaseDomain {
		return "", nil
	}
	if !strings.HasSuffix(host, "."+r.BaseDomain) {
		return "", nil
	}

	sub := strings.TrimSuffix(host, "."+r.BaseDomain)
	parts := strings.Split(sub, ".")
	if len(parts) == 0 {
		return "", nil
	}
	return parts[0], nil
}

// HeaderResolver reads the tenant identifier from a request header.
type HeaderResolver struct {
	HeaderName string
}

func NewHeaderResolver(headerName string) *HeaderResolver {
	if headerName == "" {
		headerName = "X-Tenant-ID"
	}
	return &HeaderResolver{HeaderName: headerName}
}

func (r *HeaderResolver) Resolve(ctx context.Context, req *http.Request) (string, error) {
	return req.Header.Get(r.HeaderName), nil
}

// StaticResolver always returns the same tenant. For single-tenant
// deployments and tests.
type StaticResolver struct {
	TenantID string
}

func NewStaticResolver(tenantID string) *StaticResolver {
	return &StaticResolver{TenantID: tenantID}
}

func (r *StaticResolver) Resolve(ctx context.Context, req *http.Request) (string, error) {
	return r.TenantID, nil
}

// ChainResolver tries each resolver in order and returns the first
// non-empty result.
type ChainResolver struct {
	Resolvers []Resolver
}

func NewChainResolver(resolvers ...Resolver) *ChainResolver {
	return &ChainResolver{Resolvers: resolvers}
}

func (r *ChainResolver) Resolve(ctx context.Context, req *http.Request) (string, error) {
	for _, resolver := range r.Resolvers {
		id, err := resolver.Resolve(ctx, req)
		if err != nil {
			return "", err
		}
		if id != "" {
			return id, nil
		}
	}
	return "", nil
}
