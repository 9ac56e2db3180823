package middleware

// identity.go provides small helpers shared across middleware files for
// reading the authenticated identity that Authenticate stored in the
// Echo context. Zero values are returned for unauthenticated requests.

import "github.com/labstack/echo/v4"

// CurrentUserID returns the authenticated user id, or 0 for guests.
func CurrentUserID(c echo.Context) uint64 {
	if v, ok := c.Get("user_id").(uint64); ok {
		return v
	}
	return 0
}

// CurrentRole returns the authenticated role, or "" for guests.
func CurrentRole(c echo.Context) string {
	if v, ok := c.Get("role").(string); ok {
		return v
	}
	return ""
}

// CurrentEmail returns the authenticated email, or "" for guests.
func CurrentEmail(c echo.Context) string {
	if v, ok := c.Get("email").(string); ok {
		return v
	}
	return ""
}
