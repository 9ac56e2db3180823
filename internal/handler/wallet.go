package handler

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/obinnaeke/quickvend/internal/httpx"
	"github.com/obinnaeke/quickvend/internal/middleware"
	"github.com/obinnaeke/quickvend/internal/repository"
	"github.com/obinnaeke/quickvend/internal/vend"
)

// WalletHandler serves balance reads and the PIN-gated money-movement
// routes. The PIN gate runs as middleware; by the time these handlers
// execute the second factor has already been verified.
type WalletHandler struct {
	Users   *repository.UserRepo
	Wallets *repository.WalletRepo
	Vend    *vend.Client
}

func NewWalletHandler(u *repository.UserRepo, w *repository.WalletRepo, v *vend.Client) *WalletHandler {
	return &WalletHandler{Users: u, Wallets: w, Vend: v}
}

type transferReq struct {
	ToEmail    string `json:"toEmail"`
	AmountKobo int64  `json:"amountKobo"`
}
type purchaseReq struct {
	ServiceID  string `json:"serviceID"`
	Phone      string `json:"phone"`
	AmountKobo int64  `json:"amountKobo"`
	Variation  string `json:"variationCode"`
}

// Balance returns the authenticated user's wallet balance.
func (h *WalletHandler) Balance(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	w, err := h.Wallets.GetByUserID(ctx, middleware.CurrentUserID(c))
	if err != nil {
		return err
	}
	return httpx.OK(c, http.StatusOK, "ok", echo.Map{"balanceKobo": w.BalanceKobo})
}

// Transfer moves funds to another user's wallet.
func (h *WalletHandler) Transfer(c echo.Context) error {
	var req transferReq
	if err := c.Bind(&req); err != nil {
		return httpx.Fail(c, http.StatusBadRequest, httpx.CodeValidation, "invalid body", nil)
	}
	req.ToEmail = strings.ToLower(strings.TrimSpace(req.ToEmail))
	if fields := validateAmount(req.AmountKobo); req.ToEmail == "" || len(fields) > 0 {
		if req.ToEmail == "" {
			fields["toEmail"] = "recipient email is required"
		}
		return httpx.Validation(fields)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	from := middleware.CurrentUserID(c)
	to, err := h.Users.GetByEmail(ctx, req.ToEmail)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return httpx.Fail(c, http.StatusNotFound, httpx.CodeNotFound,
				"recipient not found", nil)
		}
		return err
	}
	if to.ID == from {
		return httpx.Validation(map[string]string{"toEmail": "cannot transfer to yourself"})
	}

	if err := h.Wallets.Transfer(ctx, from, to.ID, req.AmountKobo); err != nil {
		if errors.Is(err, repository.ErrInsufficientFunds) {
			return httpx.Fail(c, http.StatusBadRequest, httpx.CodeInsufficientFunds,
				"insufficient wallet balance", nil)
		}
		return err
	}
	return httpx.OK(c, http.StatusOK, "transfer completed", echo.Map{
		"amountKobo": req.AmountKobo,
		"toEmail":    to.Email,
	})
}

// BuyAirtime debits the wallet and places an airtime order with the
// vending provider. A failed order is refunded.
func (h *WalletHandler) BuyAirtime(c echo.Context) error {
	return h.purchase(c, false)
}

// BuyData is BuyAirtime for data bundles; it additionally requires the
// provider's variation code identifying the plan.
func (h *WalletHandler) BuyData(c echo.Context) error {
	return h.purchase(c, true)
}

func (h *WalletHandler) purchase(c echo.Context, needVariation bool) error {
	var req purchaseReq
	if err := c.Bind(&req); err != nil {
		return httpx.Fail(c, http.StatusBadRequest, httpx.CodeValidation, "invalid body", nil)
	}
	fields := validateAmount(req.AmountKobo)
	if strings.TrimSpace(req.ServiceID) == "" {
		fields["serviceID"] = "service is required"
	}
	if strings.TrimSpace(req.Phone) == "" {
		fields["phone"] = "phone number is required"
	}
	if needVariation && strings.TrimSpace(req.Variation) == "" {
		fields["variationCode"] = "data plan is required"
	}
	if len(fields) > 0 {
		return httpx.Validation(fields)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 20*time.Second)
	defer cancel()

	userID := middleware.CurrentUserID(c)
	if err := h.Wallets.Debit(ctx, userID, req.AmountKobo); err != nil {
		if errors.Is(err, repository.ErrInsufficientFunds) {
			return httpx.Fail(c, http.StatusBadRequest, httpx.CodeInsufficientFunds,
				"insufficient wallet balance", nil)
		}
		return err
	}

	res, err := h.Vend.Purchase(ctx, vend.PurchaseRequest{
		ServiceID: req.ServiceID,
		Phone:     req.Phone,
		Amount:    req.AmountKobo / 100, // provider bills in naira
		Variation: req.Variation,
	})
	if err != nil {
		// Put the money back; the order never happened.
		if rerr := h.Wallets.Credit(ctx, userID, req.AmountKobo); rerr != nil {
			log.Printf("wallet: refund after failed vend for user %d: %v", userID, rerr)
		}
		return httpx.Fail(c, http.StatusServiceUnavailable, httpx.CodeTimeout,
			"vending provider unavailable, wallet refunded", nil)
	}
	return httpx.OK(c, http.StatusOK, "purchase successful", echo.Map{
		"reference": res.Reference,
		"status":    res.Status,
	})
}

func validateAmount(amountKobo int64) map[string]string {
	fields := map[string]string{}
	if amountKobo <= 0 {
		fields["amountKobo"] = "amount must be positive"
	}
	return fields
}
