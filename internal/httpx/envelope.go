// Package httpx owns the uniform response envelope and the translation of
// internal failures into the client-facing error taxonomy. Every response,
// success or failure, is `{"success": bool, "message": string, ...}` with
// machine-readable hint fields so clients can branch without parsing prose.
package httpx

import (
	"github.com/labstack/echo/v4"
)

// Stable error codes exposed to clients.
const (
	CodeNoToken            = "NO_TOKEN"
	CodeTokenExpired       = "TOKEN_EXPIRED"
	CodeInvalidToken       = "INVALID_TOKEN"
	CodeSessionExpired     = "SESSION_EXPIRED"
	CodeUserNotFound       = "USER_NOT_FOUND"
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeForbidden          = "FORBIDDEN"
	CodeRateLimited        = "RATE_LIMITED"
	CodePinRequired        = "PIN_REQUIRED"
	CodePinSetupRequired   = "PIN_SETUP_REQUIRED"
	CodePinLocked          = "PIN_LOCKED"
	CodeInvalidPin         = "INVALID_PIN"
	CodeValidation         = "VALIDATION_ERROR"
	CodeDuplicate          = "DUPLICATE"
	CodeNotFound           = "NOT_FOUND"
	CodeInsufficientFunds  = "INSUFFICIENT_FUNDS"
	CodeTimeout            = "TIMEOUT"
	CodeInternal           = "INTERNAL_ERROR"
)

// OK writes a success envelope with an optional data payload.
func OK(c echo.Context, status int, message string, data any) error {
	body := echo.Map{"success": true, "message": message}
	if data != nil {
		body["data"] = data
	}
	return c.JSON(status, body)
}

// Fail writes a failure envelope. Hints are flattened into the top level
// of the body (requirePin, lockedUntil, remainingAttempts and friends).
func Fail(c echo.Context, status int, code, message string, hints map[string]any) error {
	body := echo.Map{"success": false, "message": message, "code": code}
	for k, v := range hints {
		body[k] = v
	}
	return c.JSON(status, body)
}
