package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"pharmapos/m/internal/api"
	"pharmapos/m/internal/config"
	"pharmapos/m/internal/database"
	"pharmapos/m/internal/logger"
	"pharmapos/m/internal/migrations"
)

func main() {
	cfg := config.Load()

	zl := logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	defer zl.Sync()

	db, err := database.Connect(cfg.DatabaseDriver, cfg.DatabaseDSN)
	if err != nil {
		log.Fatalf("database error: %v", err)
	}
	defer db.Close()

	if err := migrations.Run(db); err != nil {
		log.Fatalf("migration error: %v", err)
	}

	handler := api.New(db, zl, api.Options{
		Secret:        cfg.Secret,
		CheckoutRate:  cfg.CheckoutRate,
		CheckoutBurst: cfg.CheckoutBurst,
		CORSOrigins:   cfg.CORSOrigins,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		zl.Info("pharmacy POS server starting", zap.String("addr", srv.Addr), zap.String("driver", cfg.DatabaseDriver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		zl.Error("shutdown", zap.Error(err))
	}
	zl.Info("server stopped")
}
