package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/etotom/safarov-shop/internal/api"
	"github.com/etotom/safarov-shop/internal/config"
	"github.com/etotom/safarov-shop/internal/database"
	"github.com/etotom/safarov-shop/internal/logger"
	"github.com/etotom/safarov-shop/internal/metrics"
	"github.com/etotom/safarov-shop/internal/payment"
	"github.com/etotom/safarov-shop/internal/session"
	"github.com/etotom/safarov-shop/internal/store"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.New("development").Error("load config", "error", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backend, err := database.OpenBackend(ctx, cfg, log)
	if err != nil {
		log.Error("open store backend", "error", err)
		os.Exit(1)
	}

	m := metrics.New()
	st := store.New(m.InstrumentBackend(backend), store.Options{
		Processor: payment.NewLocalProcessor(cfg.Payment.AppURL),
		Currency:  cfg.Payment.Currency,
		Logger:    log,
	})
	defer st.Close()

	if cfg.IsProduction() && cfg.Auth.JWTSecret == config.DefaultJWTSecret {
		log.Warn("JWT_SECRET is not set; using the development secret")
	}
	sessions := session.NewManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)

	srv := api.New(st, sessions, m, api.Config{
		WebhookSecret:    cfg.Payment.WebhookSecret,
		WebhookTolerance: cfg.Payment.Tolerance,
	}, log)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      srv.Routes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server starting", "port", cfg.Server.Port, "env", cfg.App.Env, "backend", cfg.Store.Backend)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown", "error", err)
	}
}
