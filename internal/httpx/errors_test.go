package httpx

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/labstack/echo/v4"

	"github.com/obinnaeke/quickvend/internal/audit"
)

func normalize(t *testing.T, env string, err error) (int, map[string]any, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/wallet/transfer", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	NewErrorHandler(env, audit.New(&buf, ""))(err, c)

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("response not JSON: %v", err)
	}
	return rec.Code, body, &buf
}

func TestValidationErrors(t *testing.T) {
	status, body, _ := normalize(t, "prod", Validation(map[string]string{
		"email": "a valid email is required",
	}))
	if status != http.StatusBadRequest || body["code"] != CodeValidation {
		t.Fatalf("got %d %v", status, body["code"])
	}
	fields, ok := body["errors"].(map[string]any)
	if !ok || fields["email"] != "a valid email is required" {
		t.Fatalf("per-field messages missing: %v", body)
	}
}

func TestDuplicateKeyNamesField(t *testing.T) {
	err := &mysql.MySQLError{Number: 1062,
		Message: "Duplicate entry 'a@b.c' for key 'users.email'"}
	status, body, _ := normalize(t, "prod", err)
	if status != http.StatusConflict || body["code"] != CodeDuplicate {
		t.Fatalf("got %d %v", status, body["code"])
	}
	if body["field"] != "email" {
		t.Fatalf("field = %v", body["field"])
	}
}

func TestMalformedIdentifier(t *testing.T) {
	_, err := strconv.ParseUint("not-a-number", 10, 64)
	status, body, _ := normalize(t, "prod", err)
	if status != http.StatusBadRequest || body["code"] != CodeValidation {
		t.Fatalf("got %d %v", status, body["code"])
	}
}

func TestNoRowsIsNotFound(t *testing.T) {
	status, body, _ := normalize(t, "prod", sql.ErrNoRows)
	if status != http.StatusNotFound || body["code"] != CodeNotFound {
		t.Fatalf("got %d %v", status, body["code"])
	}
}

func TestDeadlineIsUnavailable(t *testing.T) {
	status, body, buf := normalize(t, "prod", context.DeadlineExceeded)
	if status != http.StatusServiceUnavailable || body["code"] != CodeTimeout {
		t.Fatalf("got %d %v", status, body["code"])
	}
	if buf.Len() != 0 {
		t.Fatalf("classified timeout must not escalate: %s", buf.String())
	}
}

func TestUnclassifiedIsRedactedInProd(t *testing.T) {
	status, body, buf := normalize(t, "prod", errors.New("pq: secret connection string"))
	if status != http.StatusInternalServerError || body["code"] != CodeInternal {
		t.Fatalf("got %d %v", status, body["code"])
	}
	if body["message"] != "internal server error" {
		t.Fatalf("internal detail leaked: %v", body["message"])
	}
	if buf.Len() == 0 {
		t.Fatal("unclassified 5xx must emit a CRITICAL_ERROR event")
	}
	var entry map[string]any
	if err := json.Unmarshal(bytes.Split(buf.Bytes(), []byte("\n"))[0], &entry); err != nil {
		t.Fatal(err)
	}
	if entry["event"] != audit.EventCriticalError {
		t.Fatalf("event = %v", entry["event"])
	}
}

func TestUnclassifiedKeepsDetailInDev(t *testing.T) {
	_, body, _ := normalize(t, "dev", errors.New("exact cause here"))
	if body["message"] != "exact cause here" {
		t.Fatalf("dev mode should keep detail, got %v", body["message"])
	}
}

func TestEchoHTTPErrorsPassThrough(t *testing.T) {
	status, body, buf := normalize(t, "prod",
		echo.NewHTTPError(http.StatusNotFound, "no such route"))
	if status != http.StatusNotFound || body["message"] != "no such route" {
		t.Fatalf("got %d %v", status, body)
	}
	if buf.Len() != 0 {
		t.Fatal("a 404 must not escalate")
	}
}

func TestDuplicateFieldParsing(t *testing.T) {
	cases := map[string]string{
		"Duplicate entry 'x' for key 'users.email'": "email",
		"Duplicate entry 'x' for key 'email'":       "email",
		"garbage without the marker":                "value",
	}
	for msg, want := range cases {
		if got := duplicateField(msg); got != want {
			t.Fatalf("duplicateField(%q) = %q, want %q", msg, got, want)
		}
	}
}
