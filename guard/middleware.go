package guard

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/getarx/arx/tenant"
	"github.com/getarx/arx/token"
)

const principalContextKey = "arx_principal"

// OwnerFunc resolves the declared owner of the request's target resource,
// typically from a path parameter. Returning an empty string means the
// target has no owner and role evaluation applies.
type OwnerFunc func(c echo.Context) string

// Principal returns the principal the guard stored on the request, or nil
// when the request did not pass through a guard middleware.
func Principal(c echo.Context) *token.Principal {
	if p, ok := c.Get(principalContextKey).(*token.Principal); ok {
		return p
	}
	return nil
}

// Authenticated returns an Echo middleware that verifies the bearer token
// and binds it to the resolved tenant, without a policy check. Handlers
// read the caller via Principal.
func (g *Guard) Authenticated() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			p, err := g.Authenticate(bearerToken(c), tenant.IDFromContext(c.Request().Context()))
			if err != nil {
				return err
			}
			c.Set(principalContextKey, p)
			return next(c)
		}
	}
}

// Require returns an Echo middleware enforcing a role-level grant for the
// resource and action.
func (g *Guard) Require(resource, action string) echo.MiddlewareFunc {
	return g.middleware(Target{Resource: resource, Action: action, Possession: PossessAny}, nil)
}

// RequireOwn returns an Echo middleware for owner-scoped targets: the
// request passes when the caller owns the resource per owner, or holds a
// role-level grant.
func (g *Guard) RequireOwn(resource, action string, owner OwnerFunc) echo.MiddlewareFunc {
	return g.middleware(Target{Resource: resource, Action: action, Possession: PossessOwnAny}, owner)
}

func (g *Guard) middleware(t Target, owner OwnerFunc) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			target := t
			if owner != nil {
				target.OwnerID = owner(c)
			}
			p, err := g.Admit(bearerToken(c), tenant.IDFromContext(c.Request().Context()), target)
			if err != nil {
				return err
			}
			c.Set(principalContextKey, p)
			return next(c)
		}
	}
}

func bearerToken(c echo.Context) string {
	h := c.Request().Header.Get(echo.HeaderAuthorization)
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return h[7:]
	}
	return ""
}
