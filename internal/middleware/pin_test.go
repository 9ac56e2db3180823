package middleware

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"

	"github.com/obinnaeke/quickvend/internal/audit"
	"github.com/obinnaeke/quickvend/internal/httpx"
	"github.com/obinnaeke/quickvend/internal/model"
)

type pinUpdate struct {
	attempts    int
	lockedUntil *time.Time
}

type fakePinStore struct {
	user    model.User
	getErr  error
	updErr  error
	updates []pinUpdate
}

func (f *fakePinStore) GetByID(ctx context.Context, id uint64) (model.User, error) {
	if f.getErr != nil {
		return model.User{}, f.getErr
	}
	return f.user, nil
}

func (f *fakePinStore) UpdatePinState(ctx context.Context, id uint64, attempts int, lockedUntil *time.Time) error {
	if f.updErr != nil {
		return f.updErr
	}
	f.updates = append(f.updates, pinUpdate{attempts, lockedUntil})
	// Mirror the write so repeated calls observe persisted state.
	f.user.PinFailedAttempts = attempts
	f.user.PinLockedUntil = lockedUntil
	return nil
}

func hashPin(t *testing.T, pin string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	return string(h)
}

func runPinGate(t *testing.T, store *fakePinStore, now time.Time, body string) (*httptest.ResponseRecorder, bool) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/wallet/transfer", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set("user_id", uint64(1))

	reached := false
	gate := RequirePin(PinConfig{
		Store: store,
		Audit: audit.New(&bytes.Buffer{}, ""),
		Now:   func() time.Time { return now },
	})
	h := gate(func(c echo.Context) error {
		reached = true
		return c.String(http.StatusOK, "moved money")
	})
	if err := h(c); err != nil {
		t.Fatalf("gate returned error: %v", err)
	}
	return rec, reached
}

func TestPinGateMissingPin(t *testing.T) {
	store := &fakePinStore{user: model.User{ID: 1, PinSet: true}}
	rec, reached := runPinGate(t, store, time.Now(), `{"amountKobo":500}`)
	if reached {
		t.Fatal("handler must not run without a PIN")
	}
	if rec.Code != http.StatusBadRequest || decodeCode(t, rec) != httpx.CodePinRequired {
		t.Fatalf("got %d %s", rec.Code, decodeCode(t, rec))
	}
	if !strings.Contains(rec.Body.String(), `"requirePin":true`) {
		t.Fatalf("missing requirePin hint: %s", rec.Body.String())
	}
}

func TestPinGateNotSetUp(t *testing.T) {
	store := &fakePinStore{user: model.User{ID: 1, PinSet: false}}
	rec, reached := runPinGate(t, store, time.Now(), `{"transactionPin":"1234"}`)
	if reached {
		t.Fatal("handler must not run before PIN setup")
	}
	if rec.Code != http.StatusBadRequest || decodeCode(t, rec) != httpx.CodePinSetupRequired {
		t.Fatalf("got %d %s", rec.Code, decodeCode(t, rec))
	}
	if !strings.Contains(rec.Body.String(), `"requirePinSetup":true`) {
		t.Fatalf("missing requirePinSetup hint: %s", rec.Body.String())
	}
}

func TestPinGateLockedRejectsCorrectPin(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	until := now.Add(10 * time.Minute)
	store := &fakePinStore{user: model.User{
		ID: 1, PinSet: true, PinHash: hashPin(t, "1234"),
		PinFailedAttempts: 3, PinLockedUntil: &until,
	}}
	rec, reached := runPinGate(t, store, now, `{"transactionPin":"1234"}`)
	if reached {
		t.Fatal("handler must not run during a PIN lock")
	}
	if rec.Code != http.StatusTooManyRequests || decodeCode(t, rec) != httpx.CodePinLocked {
		t.Fatalf("got %d %s", rec.Code, decodeCode(t, rec))
	}
	if len(store.updates) != 0 {
		t.Fatal("no attempt may be consumed while locked")
	}
}

func TestPinGateWrongPinCountsDown(t *testing.T) {
	store := &fakePinStore{user: model.User{
		ID: 1, PinSet: true, PinHash: hashPin(t, "1234"), PinFailedAttempts: 0,
	}}
	rec, reached := runPinGate(t, store, time.Now(), `{"transactionPin":"9999"}`)
	if reached {
		t.Fatal("handler must not run on PIN mismatch")
	}
	if rec.Code != http.StatusUnauthorized || decodeCode(t, rec) != httpx.CodeInvalidPin {
		t.Fatalf("got %d %s", rec.Code, decodeCode(t, rec))
	}
	if !strings.Contains(rec.Body.String(), `"remainingAttempts":2`) {
		t.Fatalf("missing remainingAttempts hint: %s", rec.Body.String())
	}
	if len(store.updates) != 1 || store.updates[0].attempts != 1 || store.updates[0].lockedUntil != nil {
		t.Fatalf("unexpected persisted state: %+v", store.updates)
	}
}

func TestPinGateThirdStrikeLocks(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store := &fakePinStore{user: model.User{
		ID: 1, PinSet: true, PinHash: hashPin(t, "1234"), PinFailedAttempts: 2,
	}}
	rec, reached := runPinGate(t, store, now, `{"transactionPin":"0000"}`)
	if reached {
		t.Fatal("handler must not run on the locking strike")
	}
	if rec.Code != http.StatusTooManyRequests || decodeCode(t, rec) != httpx.CodePinLocked {
		t.Fatalf("got %d %s", rec.Code, decodeCode(t, rec))
	}
	if len(store.updates) != 1 || store.updates[0].lockedUntil == nil {
		t.Fatalf("lock not persisted: %+v", store.updates)
	}
	if want := now.Add(15 * time.Minute); !store.updates[0].lockedUntil.Equal(want) {
		t.Fatalf("lockedUntil = %v, want %v", store.updates[0].lockedUntil, want)
	}
}

func TestPinGateCorrectPinResetsAndPasses(t *testing.T) {
	store := &fakePinStore{user: model.User{
		ID: 1, PinSet: true, PinHash: hashPin(t, "1234"), PinFailedAttempts: 2,
	}}
	rec, reached := runPinGate(t, store, time.Now(), `{"transactionPin":"1234"}`)
	if !reached || rec.Code != http.StatusOK {
		t.Fatalf("correct PIN should pass, got %d reached=%v", rec.Code, reached)
	}
	if len(store.updates) != 1 || store.updates[0].attempts != 0 || store.updates[0].lockedUntil != nil {
		t.Fatalf("counters not reset: %+v", store.updates)
	}

	// Idempotent: an immediate second correct submission still passes.
	rec2, reached2 := runPinGate(t, store, time.Now(), `{"transactionPin":"1234"}`)
	if !reached2 || rec2.Code != http.StatusOK {
		t.Fatalf("second correct PIN should pass, got %d", rec2.Code)
	}
}

func TestPinGateExpiredLockStartsFreshCount(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	store := &fakePinStore{user: model.User{
		ID: 1, PinSet: true, PinHash: hashPin(t, "1234"),
		PinFailedAttempts: 3, PinLockedUntil: &past,
	}}
	rec, _ := runPinGate(t, store, now, `{"transactionPin":"0000"}`)
	// The stale counter does not carry over: this is failure #1, not #4.
	if rec.Code != http.StatusUnauthorized || decodeCode(t, rec) != httpx.CodeInvalidPin {
		t.Fatalf("got %d %s", rec.Code, decodeCode(t, rec))
	}
	if len(store.updates) != 1 || store.updates[0].attempts != 1 {
		t.Fatalf("expected fresh count of 1, got %+v", store.updates)
	}
}

func TestPinGatePersistenceFailureBlocks(t *testing.T) {
	store := &fakePinStore{
		user:   model.User{ID: 1, PinSet: true, PinHash: hashPin(t, "1234")},
		updErr: errors.New("db down"),
	}
	rec, reached := runPinGate(t, store, time.Now(), `{"transactionPin":"1234"}`)
	if reached {
		t.Fatal("handler must not run when the gate cannot persist")
	}
	if rec.Code != http.StatusInternalServerError || decodeCode(t, rec) != httpx.CodeInternal {
		t.Fatalf("got %d %s", rec.Code, decodeCode(t, rec))
	}
}

func TestPinGateRestoresBodyForHandler(t *testing.T) {
	store := &fakePinStore{user: model.User{ID: 1, PinSet: true, PinHash: hashPin(t, "1234")}}

	e := echo.New()
	body := `{"transactionPin":"1234","amountKobo":500}`
	req := httptest.NewRequest(http.MethodPost, "/v1/wallet/transfer", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set("user_id", uint64(1))

	gate := RequirePin(PinConfig{Store: store, Audit: audit.New(&bytes.Buffer{}, "")})
	h := gate(func(c echo.Context) error {
		var payload struct {
			AmountKobo int64 `json:"amountKobo"`
		}
		if err := c.Bind(&payload); err != nil {
			return err
		}
		if payload.AmountKobo != 500 {
			t.Fatalf("handler saw amount %d", payload.AmountKobo)
		}
		return c.String(http.StatusOK, "ok")
	})
	if err := h(c); err != nil {
		t.Fatalf("gate returned error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("got %d: %s", rec.Code, rec.Body.String())
	}
}
