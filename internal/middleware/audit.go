package middleware

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/obinnaeke/quickvend/internal/audit"
)

// RequestID stamps every request with an identifier, exposes it in the
// X-Request-ID response header and threads it through the context so
// audit entries emitted while serving the request can be correlated.
func RequestID() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			rid := c.Request().Header.Get(echo.HeaderXRequestID)
			if rid == "" {
				rid = uuid.NewString()
			}
			c.Response().Header().Set(echo.HeaderXRequestID, rid)
			c.SetRequest(c.Request().WithContext(
				audit.WithRequestID(c.Request().Context(), rid)))
			return next(c)
		}
	}
}

// AuditTrail inspects outgoing responses and auto-emits the standard
// security events derived purely from the request path and response
// status, keeping the hook decoupled from route handlers. The substring
// matching is deliberately kept as-is for client compatibility; renaming
// a route silently changes what gets audited.
func AuditTrail(a *audit.Auditor) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)
			if err != nil {
				// The error handler renders (and audits) these later; the
				// final status is unknown at this point.
				return err
			}

			path := c.Request().URL.Path
			status := c.Response().Status
			ctx := c.Request().Context()
			fields := map[string]any{
				"path":       path,
				"ip":         c.RealIP(),
				"user_agent": c.Request().UserAgent(),
			}
			if uid := CurrentUserID(c); uid != 0 {
				fields["actor_id"] = uid
			}

			switch {
			case strings.Contains(path, "/login"):
				if status == http.StatusUnauthorized {
					a.Log(ctx, audit.EventLoginFailed, fields)
				} else if status == http.StatusOK {
					a.Log(ctx, audit.EventLoginSuccess, fields)
				}
			case strings.Contains(path, "/admin"):
				if CurrentUserID(c) != 0 {
					a.Log(ctx, audit.EventAdminAccess, fields)
				}
			case strings.Contains(path, "/kyc"):
				if c.Request().Method == http.MethodPost && status < 300 {
					a.Log(ctx, audit.EventSensitiveSubmitted, fields)
				}
			}
			return nil
		}
	}
}
