package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"newsdesk/config"
	"newsdesk/logger"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	// Load environment variables from .env if present (non-fatal if missing)
	_ = godotenv.Load()

	cfg, warnings := config.Load()
	log, err := logger.New(cfg.Logging.Mode)
	if err != nil {
		panic(err)
	}
	defer log.Sync()
	for _, w := range warnings {
		log.Warn("config", "error", w)
	}
	gin.SetMode(cfg.Server.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := newApp(ctx, cfg, log)
	if err != nil {
		log.Fatal("startup failed", "error", err)
	}
	if err := app.start(ctx); err != nil {
		log.Fatal("startup failed", "error", err)
	}
	log.Info("newsdesk running", "port", cfg.Server.Port, "stages", app.runner.Stages(), "scheduled", app.scheduler.Scheduled())

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	app.shutdown(shutdownCtx)
	log.Info("server stopped")
}
