package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/obinnaeke/quickvend/internal/audit"
	"github.com/obinnaeke/quickvend/internal/config"
	"github.com/obinnaeke/quickvend/internal/handler"
	"github.com/obinnaeke/quickvend/internal/middleware"
)

// Deps carries everything route registration needs. It keeps the wiring
// in one place so main stays a thin assembly of constructors.
type Deps struct {
	Cfg     config.Config
	Auth    *handler.AuthHandler
	Wallet  *handler.WalletHandler
	Admin   *handler.AdminHandler
	KYC     *handler.KYCHandler
	Auditor *audit.Auditor
	Users   middleware.UserSource
	PinGate echo.MiddlewareFunc
	Redis   *redis.Client
}

// Register sets up the full middleware chain and all routes. Every
// request flows through RequestID and the audit hook; protected routes
// additionally pass the token verifier, then optionally the admin gate
// or the transaction PIN gate.
func Register(e *echo.Echo, d Deps) {
	e.Use(middleware.RequestID())
	e.Use(middleware.AuditTrail(d.Auditor))

	e.GET("/healthz", handler.Health)

	// Public auth endpoints sit behind the IP token bucket.
	pub := e.Group("/v1/auth")
	pub.Use(middleware.RateLimit(config.LoadRateLimitConfig(), d.Redis))
	pub.POST("/register", d.Auth.Register)
	pub.POST("/login", d.Auth.Login)

	// Everything under /v1 past this point requires a live session.
	sec := e.Group("/v1")
	sec.Use(middleware.Authenticate(middleware.AuthConfig{
		Secret: d.Cfg.JWTSecret,
		Users:  d.Users,
	}))
	sec.GET("/me", d.Auth.Me)
	sec.POST("/auth/logout-all", d.Auth.LogoutAll)
	sec.POST("/auth/pin", d.Auth.SetPin)
	sec.POST("/auth/change-password", d.Auth.ChangePassword)
	sec.GET("/wallet", d.Wallet.Balance)
	sec.POST("/kyc/submit", d.KYC.Submit)

	// Money movement: second factor enforced by the PIN gate.
	sec.POST("/wallet/transfer", d.Wallet.Transfer, d.PinGate)
	sec.POST("/vtu/airtime", d.Wallet.BuyAirtime, d.PinGate)
	sec.POST("/vtu/data", d.Wallet.BuyData, d.PinGate)

	// Admin panel.
	adm := sec.Group("/admin", middleware.RequireAdmin(d.Auditor))
	adm.GET("/users", d.Admin.ListUsers)
	adm.POST("/users/:id/unlock-pin", d.Admin.UnlockPin)
}
