package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/obinnaeke/quickvend/internal/audit"
	"github.com/obinnaeke/quickvend/internal/httpx"
	"github.com/obinnaeke/quickvend/internal/model"
	"github.com/obinnaeke/quickvend/internal/utils"
)

// PIN lockout policy: three consecutive mismatches lock the PIN for
// fifteen minutes. Unlike login attempts this state is durable, stored
// on the user record through PinStore.
const (
	pinMaxAttempts  = 3
	pinLockDuration = 15 * time.Minute
)

// PinStore is the slice of the credential store the PIN gate needs.
type PinStore interface {
	GetByID(ctx context.Context, id uint64) (model.User, error)
	UpdatePinState(ctx context.Context, id uint64, failedAttempts int, lockedUntil *time.Time) error
}

// PinConfig wires the transaction PIN gate. Now is injectable for tests
// and defaults to time.Now.
type PinConfig struct {
	Store PinStore
	Audit *audit.Auditor
	Now   func() time.Time
}

// RequirePin verifies the second-factor transaction PIN before any route
// that moves funds. It must run after Authenticate. The protected
// handler only executes when the gate explicitly passes; any persistence
// failure inside the gate aborts the request with a 500.
func RequirePin(cfg PinConfig) echo.MiddlewareFunc {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			pin, err := extractPin(c)
			if err != nil {
				return httpx.Fail(c, http.StatusBadRequest, httpx.CodeValidation,
					"invalid request body", nil)
			}
			if pin == "" {
				return httpx.Fail(c, http.StatusBadRequest, httpx.CodePinRequired,
					"transaction PIN is required", map[string]any{"requirePin": true})
			}

			userID := CurrentUserID(c)
			ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
			defer cancel()

			u, err := cfg.Store.GetByID(ctx, userID)
			if err != nil {
				return httpx.Fail(c, http.StatusInternalServerError, httpx.CodeInternal,
					"could not verify transaction PIN", nil)
			}
			if !u.PinSet {
				return httpx.Fail(c, http.StatusBadRequest, httpx.CodePinSetupRequired,
					"set up a transaction PIN before making transactions",
					map[string]any{"requirePinSetup": true})
			}

			at := now()
			if u.PinLockActive(at) {
				// No attempt is consumed while locked.
				return pinLockedResponse(c, *u.PinLockedUntil, at)
			}

			// An expired lock means the failure counter starts over.
			attempts := u.PinFailedAttempts
			if u.PinLockedUntil != nil {
				attempts = 0
			}

			if !utils.VerifySecret(u.PinHash, pin) {
				attempts++
				if attempts >= pinMaxAttempts {
					until := at.Add(pinLockDuration)
					if err := cfg.Store.UpdatePinState(ctx, userID, attempts, &until); err != nil {
						return httpx.Fail(c, http.StatusInternalServerError, httpx.CodeInternal,
							"could not verify transaction PIN", nil)
					}
					cfg.Audit.Log(c.Request().Context(), audit.EventPinLocked, map[string]any{
						"actor_id":     userID,
						"path":         c.Request().URL.Path,
						"locked_until": until.UTC(),
					})
					return pinLockedResponse(c, until, at)
				}
				if err := cfg.Store.UpdatePinState(ctx, userID, attempts, nil); err != nil {
					return httpx.Fail(c, http.StatusInternalServerError, httpx.CodeInternal,
						"could not verify transaction PIN", nil)
				}
				cfg.Audit.Log(c.Request().Context(), audit.EventInvalidPin, map[string]any{
					"actor_id": userID,
					"path":     c.Request().URL.Path,
					"attempts": attempts,
				})
				return httpx.Fail(c, http.StatusUnauthorized, httpx.CodeInvalidPin,
					"incorrect transaction PIN",
					map[string]any{"remainingAttempts": pinMaxAttempts - attempts})
			}

			// Correct PIN: clear the counter and any expired lock before the
			// protected operation runs. Idempotent by construction.
			if err := cfg.Store.UpdatePinState(ctx, userID, 0, nil); err != nil {
				return httpx.Fail(c, http.StatusInternalServerError, httpx.CodeInternal,
					"could not verify transaction PIN", nil)
			}
			return next(c)
		}
	}
}

func pinLockedResponse(c echo.Context, until, now time.Time) error {
	mins := int((until.Sub(now) + time.Minute - 1) / time.Minute)
	return httpx.Fail(c, http.StatusTooManyRequests, httpx.CodePinLocked,
		"transaction PIN locked due to repeated failures", map[string]any{
			"lockedUntil":   until.UTC(),
			"remainingTime": mins,
		})
}

// extractPin reads transactionPin from the JSON body and restores the
// body so the downstream handler can bind it again.
func extractPin(c echo.Context) (string, error) {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return "", err
	}
	c.Request().Body = io.NopCloser(bytes.NewReader(body))
	if len(bytes.TrimSpace(body)) == 0 {
		return "", nil
	}
	var payload struct {
		TransactionPin string `json:"transactionPin"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", err
	}
	return payload.TransactionPin, nil
}
