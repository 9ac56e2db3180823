package main // Entry point package

import (
	"log" // Logging library
	"os"

	"github.com/joho/godotenv"    // .env loading for local development
	"github.com/labstack/echo/v4" // Echo web framework

	"github.com/obinnaeke/quickvend/internal/audit"
	"github.com/obinnaeke/quickvend/internal/config"
	"github.com/obinnaeke/quickvend/internal/database"
	"github.com/obinnaeke/quickvend/internal/handler"
	"github.com/obinnaeke/quickvend/internal/httpx"
	"github.com/obinnaeke/quickvend/internal/middleware"
	"github.com/obinnaeke/quickvend/internal/repository"
	"github.com/obinnaeke/quickvend/internal/router"
	"github.com/obinnaeke/quickvend/internal/security"
	"github.com/obinnaeke/quickvend/internal/vend"
)

func main() {
	_ = godotenv.Load() // best-effort; real deployments use the environment
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}

	users := repository.NewUserRepo(db)
	wallets := repository.NewWalletRepo(db)
	auditor := audit.New(os.Stdout, cfg.AMQPURL)
	tracker := security.NewLoginTracker()
	vendor := vend.New(cfg.VendBaseURL, cfg.VendAPIKey)

	if cfg.AMQPURL != "" {
		go audit.StartSinkConsumer(cfg.AMQPURL)
	}

	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Println("redis unavailable; auth rate limiting disabled")
	}

	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = httpx.NewErrorHandler(cfg.Env, auditor)

	router.Register(e, router.Deps{
		Cfg:     cfg,
		Auth:    handler.NewAuthHandler(cfg, users, tracker, auditor),
		Wallet:  handler.NewWalletHandler(users, wallets, vendor),
		Admin:   handler.NewAdminHandler(users),
		KYC:     handler.NewKYCHandler(),
		Auditor: auditor,
		Users:   users,
		PinGate: middleware.RequirePin(middleware.PinConfig{Store: users, Audit: auditor}),
		Redis:   rdb,
	})

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
