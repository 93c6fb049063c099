package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	sentrygo "github.com/getsentry/sentry-go"
	"go.uber.org/zap"

	"discus-vision/internal/bootstrap"
	"discus-vision/internal/config"
	"discus-vision/internal/pkg/logger"
	httptransport "discus-vision/internal/transport/http"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config failed: %v", err)
	}

	applog, err := logger.New(cfg.App.Env)
	if err != nil {
		log.Fatalf("init logger failed: %v", err)
	}
	defer logger.Sync(applog)

	if cfg.Sentry.DSN != "" {
		if err := sentrygo.Init(sentrygo.ClientOptions{
			Dsn:              cfg.Sentry.DSN,
			Environment:      cfg.App.Env,
			AttachStacktrace: true,
		}); err != nil {
			applog.Fatalf("init sentry failed: %v", err)
		}
		defer sentrygo.Flush(2 * time.Second)
	}

	ctx := context.Background()
	app, err := bootstrap.New(ctx, cfg, applog)
	if err != nil {
		applog.Fatalf("bootstrap failed: %v", err)
	}
	defer func() {
		if err := app.Close(); err != nil {
			applog.Warnw("close resources failed", "error", err)
		}
	}()

	router := httptransport.NewRouter(app)
	server := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		applog.Infow("server starting", "addr", server.Addr, "predictor", app.Predictor.Name(), "storage_dir", cfg.Storage.Dir)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			applog.Fatalf("server failed: %v", err)
		}
	}()

	waitForShutdown(server, applog)
}

func waitForShutdown(server *http.Server, applog *zap.SugaredLogger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		applog.Warnw("server shutdown failed", "error", err)
	}
}
