package middleware // declare the middleware package; contains reusable HTTP middleware functions

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/obinnaeke/quickvend/internal/httpx"
	"github.com/obinnaeke/quickvend/internal/model"
)

// UserSource is the slice of the credential store the token verifier
// needs: a single bounded read by id.
type UserSource interface {
	GetByID(ctx context.Context, id uint64) (model.User, error)
}

// AuthConfig wires the token verifier. LookupTimeout bounds the
// credential-store read; it defaults to 5 seconds when zero.
type AuthConfig struct {
	Secret        string
	Users         UserSource
	LookupTimeout time.Duration
}

// Authenticate returns the middleware guarding every protected route. It
// validates the bearer token, races the user lookup against a timeout so
// a slow store cannot hang the request, rejects tokens whose
// token_version claim no longer matches the user record, and finally
// attaches user_id, role and email to the request context.
func Authenticate(cfg AuthConfig) echo.MiddlewareFunc {
	timeout := cfg.LookupTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				return httpx.Fail(c, http.StatusUnauthorized, httpx.CodeNoToken,
					"authentication required", nil)
			}
			raw := strings.TrimPrefix(auth, "Bearer ")

			tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return []byte(cfg.Secret), nil
			})
			if err != nil || !tok.Valid {
				if errors.Is(err, jwt.ErrTokenExpired) {
					return httpx.Fail(c, http.StatusUnauthorized, httpx.CodeTokenExpired,
						"token expired", nil)
				}
				return httpx.Fail(c, http.StatusUnauthorized, httpx.CodeInvalidToken,
					"invalid token", nil)
			}
			claims, ok := tok.Claims.(jwt.MapClaims)
			if !ok {
				return httpx.Fail(c, http.StatusUnauthorized, httpx.CodeInvalidToken,
					"invalid token", nil)
			}
			uid, ok := subjectID(claims)
			if !ok {
				return httpx.Fail(c, http.StatusUnauthorized, httpx.CodeInvalidToken,
					"invalid token", nil)
			}

			// Race the store read against the deadline. The first of
			// {result, timeout} wins; a lookup that never resolves is
			// abandoned rather than hanging the request.
			ctx, cancel := context.WithTimeout(c.Request().Context(), timeout)
			defer cancel()

			type lookup struct {
				user model.User
				err  error
			}
			ch := make(chan lookup, 1)
			go func() {
				u, err := cfg.Users.GetByID(ctx, uid)
				ch <- lookup{u, err}
			}()

			var u model.User
			select {
			case res := <-ch:
				if res.err != nil {
					if errors.Is(res.err, sql.ErrNoRows) {
						return httpx.Fail(c, http.StatusUnauthorized, httpx.CodeUserNotFound,
							"account no longer exists", nil)
					}
					if errors.Is(res.err, context.DeadlineExceeded) {
						return httpx.Fail(c, http.StatusServiceUnavailable, httpx.CodeTimeout,
							"authentication service unavailable", nil)
					}
					return res.err
				}
				u = res.user
			case <-ctx.Done():
				return httpx.Fail(c, http.StatusServiceUnavailable, httpx.CodeTimeout,
					"authentication service unavailable", nil)
			}

			// A token minted before the last version bump is dead, even if
			// its signature and expiry are fine.
			if v, ok := claims["token_version"]; ok {
				if int(asFloat(v)) != u.TokenVersion {
					return httpx.Fail(c, http.StatusUnauthorized, httpx.CodeSessionExpired,
						"session expired, please log in again", nil)
				}
			}

			c.Set("user_id", u.ID)
			c.Set("role", u.Role)
			c.Set("email", u.Email)
			return next(c)
		}
	}
}

// subjectID pulls the user id from the sub claim. Numeric claims decode
// as float64; some issuers encode numeric strings instead.
func subjectID(claims jwt.MapClaims) (uint64, bool) {
	switch v := claims["sub"].(type) {
	case float64:
		return uint64(v), true
	case string:
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			return n, true
		}
	}
	return 0, false
}

func asFloat(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case int:
		return float64(t)
	case string:
		if f, err := strconv.ParseFloat(t, 64); err == nil {
			return f
		}
	}
	return -1
}
