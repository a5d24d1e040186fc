package main

import (
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/nimasrn/referral-ledger/internal/config"
	"github.com/nimasrn/referral-ledger/internal/handlers"
	"github.com/nimasrn/referral-ledger/internal/repository"
	"github.com/nimasrn/referral-ledger/internal/services"
	xhttp "github.com/nimasrn/referral-ledger/pkg/http"
	"github.com/nimasrn/referral-ledger/pkg/logger"
	"github.com/nimasrn/referral-ledger/pkg/pg"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {

	err := config.Load(argContainsEnvPath())
	if err != nil {
		logger.Error("failed to load config", "error", err)
		return
	}

	// transport (tcp for now)
	s := xhttp.NewServer(xhttp.DefaultServerOption)
	s.Server.ReadBufferSize = 1024 * 16
	s.Server.WriteBufferSize = 1024 * 16
	s.Use(xhttp.CompressMiddleware(6))
	s.Use(xhttp.TimeoutMiddleware(time.Second * 5))
	s.Use(xhttp.RequestLoggerMiddleware)
	s.Use(xhttp.RecoverMiddleware)
	s.Router = xhttp.CreateDefaultRouter()

	readConf := pg.Config{
		User:     config.Get().PostgresReadUser,
		Host:     config.Get().PostgresReadHost,
		Port:     config.Get().PostgresReadPort,
		Password: config.Get().PostgresReadPassword,
		Database: config.Get().PostgresReadDatabase,
	}
	writeConf := pg.Config{
		User:     config.Get().PostgresWriteUser,
		Host:     config.Get().PostgresWriteHost,
		Port:     config.Get().PostgresWritePort,
		Password: config.Get().PostgresWritePassword,
		Database: config.Get().PostgresWriteDatabase,
	}

	pgDebug := false
	if config.Get().AppEnv == "dev" {
		pgDebug = true
	}
	db, err := pg.CreateReadWrite(readConf, writeConf, pgDebug)
	if err != nil {
		logger.Error("failed connecting to pg", "error", err)
		return
	}

	userRepo := repository.NewUserRepository(db)
	codeRepo := repository.NewReferralCodeRepository(db)
	referralRepo := repository.NewReferralRepository(db)
	txnRepo := repository.NewReferralTransactionRepository(db)
	redemptionRepo := repository.NewRedemptionRepository(db)
	settingRepo := repository.NewSettingRepository(db)

	// services
	settingsService := services.NewSettingsService(settingRepo)
	codeService := services.NewCodeService(codeRepo)
	referralService := services.NewReferralService(userRepo, codeRepo, referralRepo, settingsService)
	cashbackService := services.NewCashbackService(userRepo, referralRepo, txnRepo, settingsService)
	accountService := services.NewAccountService(userRepo, referralRepo, redemptionRepo, codeService, settingsService)
	healthService := services.NewHealthService()

	// v1 handlers
	referralHandler := handlers.NewReferralHandler(accountService, referralService)
	adminHandler := handlers.NewAdminHandler(settingsService, referralService, cashbackService)
	healthHandler := handlers.NewHealthHandler(healthService)

	g := s.Router.Group("/api/v1")
	handlers.RegisterReferralRoutes(g, referralHandler)
	handlers.RegisterAdminRoutes(g, adminHandler)
	handlers.RegisterHealthRoutes(g, healthHandler)

	// Create new server
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Kill)

	go func() {
		var err = s.ListenAndServe(config.Get().HttpListenAddr)
		if err != nil {
			logger.Error("error in running http-server", "error", err)
		}
	}()

	select {
	case <-c:
		s.Shutdown()
	}
}

func argContainsEnvPath() string {
	for _, v := range os.Args {
		if strings.Contains(v, "--env=") {
			s := strings.Split(v, "=")
			if _, err := os.Open(s[1]); err != nil {
				logger.Error("failed to open the passed env file, got error" + err.Error())
				return ""
			}
			return s[1]
		}
	}
	return ""
}
