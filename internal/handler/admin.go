package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/obinnaeke/quickvend/internal/httpx"
	"github.com/obinnaeke/quickvend/internal/repository"
)

// AdminHandler serves the admin panel endpoints. Authorization and the
// per-request audit entries are handled by the RequireAdmin gate.
type AdminHandler struct {
	Users *repository.UserRepo
}

func NewAdminHandler(u *repository.UserRepo) *AdminHandler { return &AdminHandler{Users: u} }

type adminUser struct {
	ID             uint64     `json:"id"`
	Email          string     `json:"email"`
	Role           string     `json:"role"`
	PinSet         bool       `json:"pinSet"`
	PinLockedUntil *time.Time `json:"pinLockedUntil,omitempty"`
	IsActive       bool       `json:"isActive"`
	CreatedAt      time.Time  `json:"createdAt"`
}

// ListUsers returns a page of users.
func (h *AdminHandler) ListUsers(c echo.Context) error {
	limit := 50
	if s := c.QueryParam("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return err
		}
		if n > 0 && n <= 200 {
			limit = n
		}
	}
	offset := 0
	if s := c.QueryParam("offset"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return err
		}
		if n >= 0 {
			offset = n
		}
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	users, err := h.Users.List(ctx, limit, offset)
	if err != nil {
		return err
	}
	out := make([]adminUser, 0, len(users))
	for _, u := range users {
		out = append(out, adminUser{
			ID: u.ID, Email: u.Email, Role: u.Role, PinSet: u.PinSet,
			PinLockedUntil: u.PinLockedUntil, IsActive: u.IsActive, CreatedAt: u.CreatedAt,
		})
	}
	return httpx.OK(c, http.StatusOK, "ok", out)
}

// UnlockPin clears a user's PIN failure counter and lockout, for support
// cases where the owner locked themselves out.
func (h *AdminHandler) UnlockPin(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Users.UpdatePinState(ctx, id, 0, nil); err != nil {
		return err
	}
	return httpx.OK(c, http.StatusOK, "transaction PIN unlocked", nil)
}
