package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/obinnaeke/quickvend/internal/audit"
	"github.com/obinnaeke/quickvend/internal/httpx"
	"github.com/obinnaeke/quickvend/internal/model"
)

// RequireAdmin authorizes admin-only operations. It must run after
// Authenticate. Denials and successful admin requests are both written
// to the security trail: every admin-authorized action is audited, not
// just the refusals.
func RequireAdmin(a *audit.Auditor) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if CurrentRole(c) != model.RoleAdmin {
				a.Log(c.Request().Context(), audit.EventUnauthorizedAdmin, map[string]any{
					"actor_id":   CurrentUserID(c),
					"path":       c.Request().URL.Path,
					"ip":         c.RealIP(),
					"user_agent": c.Request().UserAgent(),
				})
				return httpx.Fail(c, http.StatusForbidden, httpx.CodeForbidden,
					"admin access required", nil)
			}
			a.Log(c.Request().Context(), audit.EventAdminAction, map[string]any{
				"actor_id": CurrentUserID(c),
				"email":    CurrentEmail(c),
				"path":     c.Request().URL.Path,
				"method":   c.Request().Method,
				"ip":       c.RealIP(),
			})
			return next(c)
		}
	}
}
