package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nimeshabuddhika/churnshield/pkg"
	"github.com/nimeshabuddhika/churnshield/services/churn-api/app"
	"go.uber.org/zap"
)

func main() {
	pkg.InitLogger()
	logger := pkg.Logger

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv, cleanup, err := app.NewApp(ctx, logger)
	if err != nil {
		logger.Fatal("failed to initialize app", zap.Error(err))
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Sugar().Infow("Churn API started", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	exitCode := 0
	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-serveErr:
		logger.Error("server error", zap.Error(err))
		exitCode = 1
	}

	// Timeout context for draining connections (align with K8s terminationGracePeriodSeconds)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", zap.Error(err))
	}
	// drains queued prediction logs before the pools close
	cleanup()

	_ = logger.Sync()
	os.Exit(exitCode)
}
