package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"unileads/internal/auth"
	"unileads/internal/clinic"
	"unileads/internal/config"
	"unileads/internal/db"
	"unileads/internal/email"
	httpx "unileads/internal/http"
	"unileads/internal/jobs"
	"unileads/internal/lead"
	"unileads/internal/metrics"
	"unileads/internal/outbox"
	"unileads/internal/rentals"
	"unileads/internal/scheduler"
	"unileads/internal/tenant"
	"unileads/internal/webhook"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	// Missing credentials abort here, before any ledger row is touched.
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	gdb, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("database connection failed", zap.Error(err))
	}
	if err := db.AutoMigrateAndIndexes(gdb); err != nil {
		logger.Fatal("migration failed", zap.Error(err))
	}

	metrics.Init()

	tenants := &tenant.Store{DB: gdb}
	outboxStore := &outbox.Store{DB: gdb}

	runner := &jobs.Runner{
		DB:      gdb,
		Log:     logger,
		Ledger:  &jobs.Ledger{DB: gdb, StaleAfter: cfg.StaleAfter()},
		Tenants: tenants,
		Rentals: &rentals.Store{DB: gdb},
		Clinic:  &clinic.Store{DB: gdb},
		Outbox:  outboxStore,
	}

	dispatcher := &lead.Dispatcher{
		DB:      gdb,
		Log:     logger,
		Tenants: tenants,
		Outbox:  outboxStore,
		Webhook: webhook.New(cfg.WebhookURL, cfg.WebhookSecret, cfg.WebhookRateRPS, logger),
	}

	sender := &email.Sender{
		Host: cfg.SMTPHost,
		Port: cfg.SMTPPort,
		User: cfg.SMTPUser,
		Pass: cfg.SMTPPass,
		From: cfg.SMTPFrom,
	}

	router := httpx.NewRouter(cfg, httpx.Deps{
		Runner:     runner,
		Dispatcher: dispatcher,
		Outbox:     outboxStore,
		Email:      sender,
		Auth:       auth.NewService(cfg.ServiceTokenSecret),
		Log:        logger,
	})

	var sched *scheduler.Scheduler
	if cfg.SchedulerEnabled {
		specs, err := scheduler.LoadSpecs(cfg.SchedulesPath)
		if err != nil {
			logger.Fatal("failed to load schedules", zap.Error(err))
		}
		sched = scheduler.New(runner, logger)
		if err := sched.Register(specs); err != nil {
			logger.Fatal("failed to register schedules", zap.Error(err))
		}
		sched.Start()
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("http server error", zap.Error(err))
		}
	}()

	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	sig := <-ch
	logger.Info("shutdown signal received", zap.String("signal", sig.String()))

	if sched != nil {
		// lets an in-flight scheduled run finish its ledger bookkeeping
		<-sched.Stop().Done()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)

	logger.Info("shutdown complete")
}
