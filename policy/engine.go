// Package policy decides permit or deny from role inheritance and
// resource/action permissions within a tenant domain.
//
// The engine compiles the persisted policy rows into an in-memory view:
// a permit set plus two directed graphs, one for role inheritance and one
// for resource grouping. Checks read the view under a shared lock; every
// mutation writes through the store and swaps in a freshly compiled view,
// so concurrent checks never observe a torn graph and no process restart
// is needed for policy changes to take effect.
package policy

import (
	"context"
	"sync"

	"github.com/getarx/arx/domain"
)

// SuperSubject is the distinguished wildcard subject. It bypasses the graph
// entirely and is always permitted; it is reserved for the built-in
// superuser and must never be assignable through the public surface.
const SuperSubject = "root"

type permitKey struct {
	domain   string
	subject  string
	resource string
	action   string
}

type edgeKey struct {
	domain string
	child  string
}

// view is one immutable compilation of the policy rows.
type view struct {
	permits         map[permitKey]bool
	roleParents     map[edgeKey][]string
	resourceParents map[edgeKey][]string
}

// Engine evaluates authorization checks against the compiled view.
type Engine struct {
	store domain.PolicyStore
	super string

	mu sync.RWMutex
	v  *view
}

// Option configures an Engine.
type Option func(*Engine)

// WithSuperSubject overrides the wildcard subject name.
func WithSuperSubject(name string) Option {
	return func(e *Engine) { e.super = name }
}

func NewEngine(store domain.PolicyStore, opts ...Option) *Engine {
	e := &Engine{
		store: store,
		super: SuperSubject,
		v: &view{
			permits:         make(map[permitKey]bool),
			roleParents:     make(map[edgeKey][]string),
			resourceParents: make(map[edgeKey][]string),
		},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Load recompiles the view from the store and swaps it in atomically.
// Called at startup and after every policy mutation.
func (e *Engine) Load(ctx context.Context) error {
	permits, err := e.store.ListPermitRules(ctx)
	if err != nil {
		return err
	}
	roleLinks, err := e.store.ListRoleLinks(ctx)
	if err != nil {
		return err
	}
	resourceLinks, err := e.store.ListResourceLinks(ctx)
	if err != nil {
		return err
	}

	v := &view{
		permits:         make(map[permitKey]bool, len(permits)),
		roleParents:     make(map[edgeKey][]string, len(roleLinks)),
		resourceParents: make(map[edgeKey][]string, len(resourceLinks)),
	}
	for _, p := range permits {
		v.permits[permitKey{p.TenantID, p.Subject, p.Resource, p.Action}] = true
	}
	for _, l := range roleLinks {
		k := edgeKey{l.TenantID, l.Child}
		v.roleParents[k] = append(v.roleParents[k], l.Parent)
	}
	for _, l := range resourceLinks {
		k := edgeKey{l.TenantID, l.Child}
		v.resourceParents[k] = append(v.resourceParents[k], l.Parent)
	}

	e.mu.Lock()
	e.v = v
	e.mu.Unlock()
	return nil
}

// Check reports whether subject may perform action on resource within the
// tenant domain. Subjects are role names or user ids; the check resolves
// every role reachable through inheritance and every resource group the
// target belongs to, then looks for an explicit permit. Deny by default.
func (e *Engine) Check(subject, tenantDomain, resource, action string) bool {
	if subject == e.super {
		return true
	}

	e.mu.RLock()
	v := e.v
	e.mu.RUnlock()

	subjects := reachable(v.roleParents, tenantDomain, subject)
	if subjects[e.super] {
		return true
	}
	resources := reachable(v.resourceParents, tenantDomain, resource)

	for s := range subjects {
		for r := range resources {
			if v.permits[permitKey{tenantDomain, s, r, action}] {
				return true
			}
		}
	}
	return false
}

// HasRole reports whether subject reaches role through inheritance.
func (e *Engine) HasRole(subject, tenantDomain, role string) bool {
	if subject == e.super {
		return true
	}
	e.mu.RLock()
	v := e.v
	e.mu.RUnlock()
	return reachable(v.roleParents, tenantDomain, subject)[role]
}

// reachable returns the start node plus every node reachable through parent
// edges. The visited set guarantees termination on misconfigured cyclic
// graphs.
func reachable(parents map[edgeKey][]string, tenantDomain, start string) map[string]bool {
	visited := map[string]bool{start: true}
	queue := []string{start}
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		for _, parent := range parents[edgeKey{tenantDomain, node}] {
			if !visited[parent] {
				visited[parent] = true
				queue = append(queue, parent)
			}
		}
	}
	return visited
}
