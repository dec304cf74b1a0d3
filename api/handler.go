// Package api exposes the credential, policy, and tenant surfaces over
// Echo. It owns HTTP concerns only: request binding, tenant resolution,
// and status-code mapping. All semantics live in the services it wraps.
package api

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/getarx/arx/audit"
	"github.com/getarx/arx/auth"
	"github.com/getarx/arx/domain"
	"github.com/getarx/arx/guard"
	"github.com/getarx/arx/policy"
	"github.com/getarx/arx/tenant"
)

type Handler struct {
	auth     *auth.Service
	guard    *guard.Guard
	policies *policy.Manager
	tenants  *tenant.Manager
	users    domain.UserStore
	audits   audit.Store
}

func NewHandler(authSvc *auth.Service, g *guard.Guard, policies *policy.Manager, tenants *tenant.Manager, users domain.UserStore, audits audit.Store) *Handler {
	return &Handler{
		auth:     authSvc,
		guard:    g,
		policies: policies,
		tenants:  tenants,
		users:    users,
		audits:   audits,
	}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.Use(h.ResolveTenant())

	g.POST("/signup", h.HandleSignup)
	g.POST("/login", h.HandleLogin)
	g.POST("/refresh", h.HandleRefresh)
	g.POST("/verify-email", h.HandleVerifyEmail)
	g.POST("/resend-verification", h.HandleResendVerification)

	authed := g.Group("", h.guard.Authenticated())
	authed.POST("/logout", h.HandleLogout)
	authed.GET("/me", h.HandleMe)

	admin := g.Group("/admin")
	admin.GET("/users", h.HandleListUsers, h.guard.Require("user", "list"))
	admin.GET("/users/:id", h.HandleGetUser, h.guard.RequireOwn("user", "read", ownerParam("id")))
	admin.PUT("/users/:id/role", h.HandleChangeRole, h.guard.Require("user", "manage"))
	admin.DELETE("/users/:id", h.HandleDeactivateUser, h.guard.Require("user", "manage"))

	admin.POST("/roles", h.HandleCreateRole, h.guard.Require("role", "manage"))
	admin.GET("/roles", h.HandleListRoles, h.guard.Require("role", "list"))
	admin.DELETE("/roles/:name", h.HandleDeactivateRole, h.guard.Require("role", "manage"))

	admin.POST("/permissions", h.HandleCreatePermission, h.guard.Require("permission", "manage"))
	admin.GET("/permissions", h.HandleListPermissions, h.guard.Require("permission", "list"))

	admin.POST("/permits", h.HandleGrant, h.guard.Require("policy", "manage"))
	admin.DELETE("/permits", h.HandleRevoke, h.guard.Require("policy", "manage"))
	admin.POST("/role-links", h.HandleAddRoleLink, h.guard.Require("policy", "manage"))
	admin.DELETE("/role-links", h.HandleRemoveRoleLink, h.guard.Require("policy", "manage"))
	admin.POST("/resource-links", h.HandleAddResourceLink, h.guard.Require("policy", "manage"))
	admin.DELETE("/resource-links", h.HandleRemoveResourceLink, h.guard.Require("policy", "manage"))

	admin.POST("/tenants", h.HandleCreateTenant, h.guard.Require("tenant", "manage"))
	admin.GET("/tenants", h.HandleListTenants, h.guard.Require("tenant", "list"))
	admin.DELETE("/tenants/:id", h.HandleDeactivateTenant, h.guard.Require("tenant", "manage"))

	admin.GET("/audit", h.HandleQueryAudit, h.guard.Require("audit", "read"))
}

// ResolveTenant resolves the request's tenant once, before the core is
// invoked, and stores it on the request context.
func (h *Handler) ResolveTenant() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			_, ctx, err := h.tenants.ResolveFromRequest(c.Request().Context(), c.Request())
			if err != nil {
				return err
			}
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}

func ownerParam(name string) guard.OwnerFunc {
	return func(c echo.Context) string { return c.Param(name) }
}

func (h *Handler) tenantID(c echo.Context) string {
	return tenant.IDFromContext(c.Request().Context())
}

// ---- Credential surface ----

func (h *Handler) HandleSignup(c echo.Context) error {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		FullName string `json:"full_name"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	profile, err := h.auth.Signup(c.Request().Context(), h.tenantID(c), body.Email, body.Password, body.FullName)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, profile)
}

func (h *Handler) HandleLogin(c echo.Context) error {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	pair, profile, err := h.auth.Login(c.Request().Context(), h.tenantID(c), body.Email, body.Password, c.Request().UserAgent(), c.RealIP())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{
		"user":   profile,
		"tokens": pair,
	})
}

func (h *Handler) HandleRefresh(c echo.Context) error {
	var body struct {
		UserID       string `json:"user_id"`
		RefreshToken string `json:"refresh_token"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	pair, err := h.auth.Refresh(c.Request().Context(), h.tenantID(c), body.UserID, body.RefreshToken, c.Request().UserAgent(), c.RealIP())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"tokens": pair})
}

func (h *Handler) HandleLogout(c echo.Context) error {
	var body struct {
		RefreshToken string `json:"refresh_token"`
	}
	// An empty body means log out everywhere.
	_ = c.Bind(&body)

	p := guard.Principal(c)
	if err := h.auth.Logout(c.Request().Context(), p.TenantID, p.UserID, body.RefreshToken); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) HandleVerifyEmail(c echo.Context) error {
	var body struct {
		Email string `json:"email"`
		Code  string `json:"code"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if err := h.auth.VerifyEmail(c.Request().Context(), h.tenantID(c), body.Email, body.Code); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "verified"})
}

func (h *Handler) HandleResendVerification(c echo.Context) error {
	var body struct {
		Email string `json:"email"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if err := h.auth.ResendVerification(c.Request().Context(), h.tenantID(c), body.Email); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "sent"})
}

func (h *Handler) HandleMe(c echo.Context) error {
	p := guard.Principal(c)
	profile, err := h.auth.CurrentPrincipal(c.Request().Context(), p.TenantID, p.UserID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, profile)
}

// ---- User administration ----

func (h *Handler) HandleListUsers(c echo.Context) error {
	page, limit := pagination(c)
	users, err := h.users.ListUsers(c.Request().Context(), h.tenantID(c), page, limit)
	if err != nil {
		return err
	}
	profiles := make([]domain.Profile, 0, len(users))
	for _, u := range users {
		profiles = append(profiles, u.Sanitized())
	}
	return c.JSON(http.StatusOK, profiles)
}

func (h *Handler) HandleGetUser(c echo.Context) error {
	u, err := h.users.GetUser(c.Request().Context(), h.tenantID(c), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, u.Sanitized())
}

func (h *Handler) HandleChangeRole(c echo.Context) error {
	var body struct {
		Role string `json:"role"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	profile, err := h.auth.ChangeRole(c.Request().Context(), h.tenantID(c), c.Param("id"), body.Role)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, profile)
}

func (h *Handler) HandleDeactivateUser(c echo.Context) error {
	if err := h.auth.Deactivate(c.Request().Context(), h.tenantID(c), c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// ---- Policy administration ----

func (h *Handler) HandleCreateRole(c echo.Context) error {
	var body struct {
		Name string `json:"name"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	role, err := h.policies.CreateRole(c.Request().Context(), h.tenantID(c), body.Name)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, role)
}

func (h *Handler) HandleListRoles(c echo.Context) error {
	roles, err := h.policies.ListRoles(c.Request().Context(), h.tenantID(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, roles)
}

func (h *Handler) HandleDeactivateRole(c echo.Context) error {
	if err := h.policies.DeactivateRole(c.Request().Context(), h.tenantID(c), c.Param("name")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) HandleCreatePermission(c echo.Context) error {
	var body struct {
		Resource    string `json:"resource"`
		Action      string `json:"action"`
		Description string `json:"description"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	perm, err := h.policies.CreatePermission(c.Request().Context(), h.tenantID(c), body.Resource, body.Action, body.Description)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, perm)
}

func (h *Handler) HandleListPermissions(c echo.Context) error {
	perms, err := h.policies.ListPermissions(c.Request().Context(), h.tenantID(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, perms)
}

type permitBody struct {
	Subject  string `json:"subject"`
	Resource string `json:"resource"`
	Action   string `json:"action"`
}

func (h *Handler) HandleGrant(c echo.Context) error {
	var body permitBody
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := h.policies.Grant(c.Request().Context(), h.tenantID(c), body.Subject, body.Resource, body.Action); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) HandleRevoke(c echo.Context) error {
	var body permitBody
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := h.policies.Revoke(c.Request().Context(), h.tenantID(c), body.Subject, body.Resource, body.Action); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

type linkBody struct {
	Child  string `json:"child"`
	Parent string `json:"parent"`
}

func (h *Handler) HandleAddRoleLink(c echo.Context) error {
	var body linkBody
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := h.policies.AddRoleInheritance(c.Request().Context(), h.tenantID(c), body.Child, body.Parent); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) HandleRemoveRoleLink(c echo.Context) error {
	var body linkBody
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := h.policies.RemoveRoleInheritance(c.Request().Context(), h.tenantID(c), body.Child, body.Parent); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) HandleAddResourceLink(c echo.Context) error {
	var body linkBody
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := h.policies.AddResourceGroup(c.Request().Context(), h.tenantID(c), body.Child, body.Parent); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) HandleRemoveResourceLink(c echo.Context) error {
	var body linkBody
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := h.policies.RemoveResourceGroup(c.Request().Context(), h.tenantID(c), body.Child, body.Parent); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// ---- Tenant administration ----

func (h *Handler) HandleCreateTenant(c echo.Context) error {
	var body struct {
		Name   string `json:"name"`
		Domain string `json:"domain"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	t, err := h.tenants.Create(c.Request().Context(), body.Name, body.Domain)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, t)
}

func (h *Handler) HandleListTenants(c echo.Context) error {
	page, limit := pagination(c)
	tenants, err := h.tenants.List(c.Request().Context(), page, limit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, tenants)
}

func (h *Handler) HandleDeactivateTenant(c echo.Context) error {
	if err := h.tenants.Deactivate(c.Request().Context(), c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// ---- Audit ----

func (h *Handler) HandleQueryAudit(c echo.Context) error {
	page, limit := pagination(c)
	filter := audit.Filter{
		TenantID: h.tenantID(c),
		ActorID:  c.QueryParam("actor_id"),
		Limit:    limit,
		Offset:   (page - 1) * limit,
	}
	if t := c.QueryParam("type"); t != "" {
		filter.Types = []string{t}
	}

	events, err := h.audits.QueryEvents(c.Request().Context(), filter)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, events)
}

func pagination(c echo.Context) (page, limit int) {
	page, limit = 1, 50
	if n, err := strconv.Atoi(c.QueryParam("page")); err == nil && n >= 1 {
		page = n
	}
	if n, err := strconv.Atoi(c.QueryParam("limit")); err == nil && n >= 1 && n <= 200 {
		limit = n
	}
	return page, limit
}
