package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chris/referral-commission-ledger/pkg/app"
	"github.com/chris/referral-commission-ledger/pkg/config"
	"github.com/chris/referral-commission-ledger/pkg/logger"
	"github.com/spf13/pflag"
)

func main() {
	cfg := config.Load(logger.New(false))
	cfg.BindFlags(pflag.CommandLine)
	pflag.Parse()

	log := logger.New(cfg.Verbose)
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	svcs, err := app.FromConfig(ctx, cfg, log)
	if err != nil {
		log.Error("failed to initialise services", "error", err)
		os.Exit(1)
	}

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           app.NewRouter(svcs, cfg.CORSOrigins),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("starting server", "port", cfg.Port, "store", cfg.Store)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()
	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown failed", "error", err)
	}
	log.Info("server stopped")
}
