package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/obinnaeke/quickvend/internal/audit"
	"github.com/obinnaeke/quickvend/internal/model"
)

func auditEvents(t *testing.T, buf *bytes.Buffer) []string {
	t.Helper()
	var kinds []string
	for _, line := range bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		var entry map[string]any
		if err := json.Unmarshal(line, &entry); err != nil {
			t.Fatalf("audit line not JSON: %v", err)
		}
		kinds = append(kinds, entry["event"].(string))
	}
	return kinds
}

func runAdminGate(t *testing.T, role string) (*httptest.ResponseRecorder, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/v1/admin/users", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set("user_id", uint64(42))
	c.Set("email", "actor@example.com")
	c.Set("role", role)

	h := RequireAdmin(audit.New(&buf, ""))(func(c echo.Context) error {
		return c.String(http.StatusOK, "admin stuff")
	})
	if err := h(c); err != nil {
		t.Fatalf("gate returned error: %v", err)
	}
	return rec, &buf
}

func TestRequireAdminDeniesUsers(t *testing.T) {
	rec, buf := runAdminGate(t, model.RoleUser)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("got %d", rec.Code)
	}
	kinds := auditEvents(t, buf)
	if len(kinds) != 1 || kinds[0] != audit.EventUnauthorizedAdmin {
		t.Fatalf("expected one UNAUTHORIZED_ADMIN_ACCESS event, got %v", kinds)
	}
}

func TestRequireAdminAuditsSuccess(t *testing.T) {
	rec, buf := runAdminGate(t, model.RoleAdmin)
	if rec.Code != http.StatusOK {
		t.Fatalf("got %d", rec.Code)
	}
	kinds := auditEvents(t, buf)
	if len(kinds) != 1 || kinds[0] != audit.EventAdminAction {
		t.Fatalf("expected one ADMIN_ACTION event, got %v", kinds)
	}
}

func TestRequireAdminDeniesGuests(t *testing.T) {
	var buf bytes.Buffer
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/v1/admin/users", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	h := RequireAdmin(audit.New(&buf, ""))(func(c echo.Context) error {
		return c.String(http.StatusOK, "admin stuff")
	})
	if err := h(c); err != nil {
		t.Fatalf("gate returned error: %v", err)
	}
	if rec.Code != http.StatusForbidden {
		t.Fatalf("got %d", rec.Code)
	}
}
