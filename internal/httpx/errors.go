package httpx

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/labstack/echo/v4"

	"github.com/obinnaeke/quickvend/internal/audit"
)

// ValidationError carries per-field messages for malformed input. The
// normalizer renders it as a 400 with an `errors` map.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %d field(s)", len(e.Fields))
}

// Validation builds a ValidationError from field/message pairs.
func Validation(fields map[string]string) *ValidationError {
	return &ValidationError{Fields: fields}
}

// NewErrorHandler returns the Echo error handler acting as the error
// normalizer: it classifies whatever falls through the gates into the
// stable taxonomy. Internal details (driver errors, wrapped causes) are
// redacted unless env is "dev". Any unclassified 5xx additionally emits
// a CRITICAL_ERROR security event.
func NewErrorHandler(env string, a *audit.Auditor) echo.HTTPErrorHandler {
	dev := env == "dev"
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			log.Printf("error after response committed: %v", err)
			return
		}

		status := http.StatusInternalServerError
		code := CodeInternal
		message := "internal server error"
		hints := map[string]any{}

		var ve *ValidationError
		var he *echo.HTTPError
		var me *mysql.MySQLError
		var ne *strconv.NumError
		switch {
		case errors.As(err, &ve):
			status, code, message = http.StatusBadRequest, CodeValidation, "invalid request"
			hints["errors"] = ve.Fields
		case errors.As(err, &me) && me.Number == 1062:
			status, code = http.StatusConflict, CodeDuplicate
			field := duplicateField(me.Message)
			message = field + " already exists"
			hints["field"] = field
		case errors.As(err, &ne):
			status, code, message = http.StatusBadRequest, CodeValidation, "malformed identifier"
		case errors.Is(err, sql.ErrNoRows):
			status, code, message = http.StatusNotFound, CodeNotFound, "resource not found"
		case errors.Is(err, context.DeadlineExceeded):
			status, code, message = http.StatusServiceUnavailable, CodeTimeout, "request timed out"
		case errors.As(err, &he):
			status = he.Code
			if s, ok := he.Message.(string); ok {
				message = s
			} else {
				message = http.StatusText(status)
			}
			code = codeForStatus(status)
		default:
			if dev {
				message = err.Error()
			}
		}

		// Classified conditions (e.g. downstream timeouts) are not critical;
		// only failures nothing above could name get escalated.
		if code == CodeInternal && status >= 500 {
			log.Printf("unhandled error: %v", err)
			a.Log(c.Request().Context(), audit.EventCriticalError, map[string]any{
				"path":   c.Request().URL.Path,
				"method": c.Request().Method,
				"status": status,
				"error":  err.Error(),
			})
		}

		if err := Fail(c, status, code, message, hints); err != nil {
			log.Printf("error handler: write response failed: %v", err)
		}
	}
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return CodeValidation
	case http.StatusUnauthorized:
		return CodeInvalidCredentials
	case http.StatusForbidden:
		return CodeForbidden
	case http.StatusNotFound:
		return CodeNotFound
	case http.StatusTooManyRequests:
		return CodeRateLimited
	case http.StatusServiceUnavailable:
		return CodeTimeout
	}
	return CodeInternal
}

// duplicateField extracts the column name from a MySQL 1062 message such
// as `Duplicate entry 'x' for key 'users.email'`.
func duplicateField(msg string) string {
	i := strings.LastIndex(msg, "for key '")
	if i < 0 {
		return "value"
	}
	key := strings.TrimSuffix(msg[i+len("for key '"):], "'")
	if j := strings.LastIndex(key, "."); j >= 0 {
		key = key[j+1:]
	}
	if key == "" {
		return "value"
	}
	return key
}
