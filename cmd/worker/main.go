package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"dreamcatcher/internal/adapter/repo"
	"dreamcatcher/internal/infra"
	"dreamcatcher/internal/ledger"
	"dreamcatcher/internal/metrics"
	"dreamcatcher/internal/worker"
)

func main() {
	once := flag.Bool("once", false, "run a single cleanup and exit")
	metricsAddr := flag.String("metrics-addr", "", "serve /metrics on this address (e.g. :9090)")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv, "worker")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: db connection failed")
	}
	defer pool.Close()

	m := metrics.New()
	store := repo.NewLedgerStore(infra.NewSQLRunner(pool, logger), logger)
	l := ledger.New(store, ledger.WithLogger(logger), ledger.WithObserver(m))
	job := worker.NewCleanupJob(l, m, logger)

	if *once {
		if _, err := job.RunOnce(ctx); err != nil {
			logger.Error().Err(err).Msg("worker: cleanup failed")
			os.Exit(1)
		}
		return
	}

	if *metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", m.Handler())
		srv := &http.Server{Addr: *metricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error().Err(err).Msg("worker: metrics server failed")
			}
		}()
		defer srv.Close()
	}

	c := worker.NewCron(logger)
	if _, err := job.Schedule(ctx, c, cfg.CleanupSchedule); err != nil {
		logger.Fatal().Err(err).Msg("worker: invalid schedule")
	}
	c.Start()
	logger.Info().Str("schedule", cfg.CleanupSchedule).Msg("worker: started")

	<-ctx.Done()
	<-c.Stop().Done()
	logger.Info().Msg("worker: stopped")
}
