package handler

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/obinnaeke/quickvend/internal/audit"
	"github.com/obinnaeke/quickvend/internal/config"
	"github.com/obinnaeke/quickvend/internal/httpx"
	"github.com/obinnaeke/quickvend/internal/middleware"
	"github.com/obinnaeke/quickvend/internal/model"
	"github.com/obinnaeke/quickvend/internal/repository"
	"github.com/obinnaeke/quickvend/internal/security"
	"github.com/obinnaeke/quickvend/internal/utils"
)

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	Cfg     config.Config
	Users   *repository.UserRepo
	Tracker *security.LoginTracker
	Audit   *audit.Auditor
}

func NewAuthHandler(cfg config.Config, u *repository.UserRepo, t *security.LoginTracker, a *audit.Auditor) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Users: u, Tracker: t, Audit: a}
}

// ----- DTOs -----

type registerReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
type setPinReq struct {
	Pin string `json:"transactionPin"`
}
type changePasswordReq struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}
type userPart struct {
	ID     uint64 `json:"id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	PinSet bool   `json:"pinSet"`
}
type authData struct {
	User   userPart  `json:"user"`
	Access tokenPart `json:"access"`
}

// Register creates a user plus an empty wallet and returns a token
// immediately. The role is always `user`; admin accounts are promoted
// out of band.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return httpx.Fail(c, http.StatusBadRequest, httpx.CodeValidation, "invalid body", nil)
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if fields := validateCredentials(req.Email, req.Password); len(fields) > 0 {
		return httpx.Validation(fields)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	uid, err := h.Users.Create(ctx, req.Email, req.Password, model.RoleUser, h.Cfg.BcryptCost)
	if err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return httpx.Fail(c, http.StatusConflict, httpx.CodeDuplicate,
				"email already exists", map[string]any{"field": "email"})
		}
		return err
	}

	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, uid, model.RoleUser, req.Email, 0, h.Cfg.AccessTTLMin)
	if err != nil {
		return err
	}
	return httpx.OK(c, http.StatusCreated, "account created", authData{
		User:   userPart{ID: uid, Email: req.Email, Role: model.RoleUser},
		Access: tokenPart{Token: access.Token, Expires: access.Exp},
	})
}

// Login verifies credentials behind the per-email lockout policy and
// returns a fresh access token stamped with the user's current token
// version.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return httpx.Fail(c, http.StatusBadRequest, httpx.CodeValidation, "invalid body", nil)
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		return httpx.Fail(c, http.StatusBadRequest, httpx.CodeValidation,
			"email and password are required", nil)
	}

	// The lockout check runs before the credential store is touched, so a
	// locked email costs nothing but a map lookup.
	if lock := h.Tracker.Check(req.Email); lock != nil {
		return loginLockedResponse(c, lock)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.Users.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return h.failLogin(c, req.Email)
		}
		return err
	}
	if !utils.VerifySecret(u.PasswordHash, req.Password) {
		return h.failLogin(c, req.Email)
	}

	h.Tracker.Reset(req.Email)

	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, u.ID, u.Role, u.Email, u.TokenVersion, h.Cfg.AccessTTLMin)
	if err != nil {
		return err
	}
	return httpx.OK(c, http.StatusOK, "login successful", authData{
		User:   userPart{ID: u.ID, Email: u.Email, Role: u.Role, PinSet: u.PinSet},
		Access: tokenPart{Token: access.Token, Expires: access.Exp},
	})
}

// failLogin records one failed attempt and answers 401, or 429 when this
// failure tripped the threshold. Unknown emails are counted the same as
// wrong passwords so the tracker cannot be used as an account oracle.
func (h *AuthHandler) failLogin(c echo.Context, email string) error {
	if lock := h.Tracker.RecordFailure(email); lock != nil {
		h.Audit.Log(c.Request().Context(), audit.EventAccountLocked, map[string]any{
			"email":        email,
			"ip":           c.RealIP(),
			"locked_until": lock.Until.UTC(),
		})
		return loginLockedResponse(c, lock)
	}
	return httpx.Fail(c, http.StatusUnauthorized, httpx.CodeInvalidCredentials,
		"invalid email or password", nil)
}

func loginLockedResponse(c echo.Context, lock *security.Lockout) error {
	return httpx.Fail(c, http.StatusTooManyRequests, httpx.CodeRateLimited,
		"too many failed login attempts, try again in "+lock.RemainingText(),
		map[string]any{
			"lockedUntil":   lock.Until.UTC(),
			"remainingTime": lock.RemainingText(),
		})
}

// LogoutAll bumps the token version, killing every outstanding session
// for the authenticated user.
func (h *AuthHandler) LogoutAll(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Users.BumpTokenVersion(ctx, middleware.CurrentUserID(c)); err != nil {
		return err
	}
	return httpx.OK(c, http.StatusOK, "logged out everywhere", nil)
}

// SetPin configures or replaces the transaction PIN for the
// authenticated user.
func (h *AuthHandler) SetPin(c echo.Context) error {
	var req setPinReq
	if err := c.Bind(&req); err != nil {
		return httpx.Fail(c, http.StatusBadRequest, httpx.CodeValidation, "invalid body", nil)
	}
	if !utils.ValidPin(req.Pin) {
		return httpx.Validation(map[string]string{
			"transactionPin": "PIN must be 4 to 6 digits",
		})
	}
	hash, err := utils.HashSecret(req.Pin, h.Cfg.BcryptCost)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Users.SetPin(ctx, middleware.CurrentUserID(c), hash); err != nil {
		return err
	}
	return httpx.OK(c, http.StatusOK, "transaction PIN updated", nil)
}

// ChangePassword verifies the current password, stores the new hash and
// bumps the token version so old sessions die with the old password. The
// client must log in again with the new credentials.
func (h *AuthHandler) ChangePassword(c echo.Context) error {
	var req changePasswordReq
	if err := c.Bind(&req); err != nil {
		return httpx.Fail(c, http.StatusBadRequest, httpx.CodeValidation, "invalid body", nil)
	}
	if len(req.NewPassword) < 8 {
		return httpx.Validation(map[string]string{
			"newPassword": "password must be at least 8 characters",
		})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.Users.GetByID(ctx, middleware.CurrentUserID(c))
	if err != nil {
		return err
	}
	if !utils.VerifySecret(u.PasswordHash, req.CurrentPassword) {
		return httpx.Fail(c, http.StatusUnauthorized, httpx.CodeInvalidCredentials,
			"current password is incorrect", nil)
	}
	hash, err := utils.HashSecret(req.NewPassword, h.Cfg.BcryptCost)
	if err != nil {
		return err
	}
	if err := h.Users.UpdatePassword(ctx, u.ID, hash); err != nil {
		return err
	}
	return httpx.OK(c, http.StatusOK, "password changed, please log in again", nil)
}

// Me returns the authenticated identity from context.
func (h *AuthHandler) Me(c echo.Context) error {
	return httpx.OK(c, http.StatusOK, "ok", echo.Map{
		"user_id": middleware.CurrentUserID(c),
		"email":   middleware.CurrentEmail(c),
		"role":    middleware.CurrentRole(c),
	})
}

func validateCredentials(email, password string) map[string]string {
	fields := map[string]string{}
	if email == "" || !strings.Contains(email, "@") {
		fields["email"] = "a valid email is required"
	}
	if len(password) < 8 {
		fields["password"] = "password must be at least 8 characters"
	}
	return fields
}
