package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"dreamcatcher/internal/adapter/repo"
	"dreamcatcher/internal/http/handlers"
	"dreamcatcher/internal/http/httpapi"
	"dreamcatcher/internal/infra"
	"dreamcatcher/internal/infra/geoip"
	"dreamcatcher/internal/ledger"
	"dreamcatcher/internal/metrics"
	"dreamcatcher/internal/migrations"
	"dreamcatcher/internal/resonance"
)

func main() {
	migrate := flag.Bool("migrate", false, "apply pending migrations before serving")
	flag.Parse()

	// .env is optional
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv, "api")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *migrate {
		m, err := migrations.New(cfg.DatabaseURL, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("migrations: open failed")
		}
		if err := m.Up(); err != nil {
			logger.Fatal().Err(err).Msg("migrations: up failed")
		}
		if err := m.Close(); err != nil {
			logger.Warn().Err(err).Msg("migrations: close failed")
		}
	}

	dbpool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	defer dbpool.Close()

	resolver, err := geoip.NewResolver(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Str("path", cfg.GeoIPDBPath).Msg("geoip disabled")
	}
	defer resolver.Close()

	m := metrics.New()
	store := repo.NewLedgerStore(infra.NewSQLRunner(dbpool, logger), logger)

	lcfg := ledger.DefaultConfig()
	lcfg.WelcomeGrant = cfg.WelcomeEnergy
	lcfg.CheckinReward = cfg.CheckinReward
	lcfg.ShareReward = cfg.ShareReward
	l := ledger.New(store,
		ledger.WithConfig(lcfg),
		ledger.WithLogger(logger),
		ledger.WithObserver(m),
	)

	app := handlers.NewApp(l, resonance.NewEngine(), logger)
	app.Readings = m
	app.Ping = dbpool.Ping

	router := httpapi.NewRouter(app, httpapi.Options{
		JWTSecret:       cfg.JWTSecret,
		AdminToken:      cfg.AdminToken,
		DefaultLocale:   cfg.DefaultLocale,
		CountryLookup:   resolver.CountryCode,
		RateLimitPerMin: cfg.RateLimitPerMin,
		CORSOrigins:     cfg.CORSOrigins,
		Metrics:         m,
	})
	if cfg.AdminToken == "" {
		logger.Warn().Msg("ADMIN_TOKEN not set, admin routes are disabled")
	}

	server := infra.NewHTTPServer(cfg, router, logger)
	if err := server.Run(ctx, 15*time.Second); err != nil {
		logger.Error().Err(err).Msg("http server failed")
	}
	logger.Info().Msg("server stopped")
}
