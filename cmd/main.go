package main

import (
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	// embedded IANA database for WAKER_TIMEZONE in minimal images
	_ "time/tzdata"

	"trafficwaker/pkg/interfaces"
	"trafficwaker/pkg/logger"
)

func main() {
	// Create application instance
	app := NewApplication()

	// Initialize all components
	if err := app.Initialize(); err != nil {
		if errors.Is(err, interfaces.ErrConfigInvalid) {
			logger.FatalCtx(app.ctx, "Invalid configuration: %v", err)
		}
		logger.FatalCtx(app.ctx, "Application initialization failed: %v", err)
	}

	// Start all components
	if err := app.Start(); err != nil {
		logger.FatalCtx(app.ctx, "Application startup failed: %v", err)
	}

	// Wait for exit signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	logger.InfoCtx(app.ctx, "Received exit signal: %v", sig)

	// Graceful shutdown (mutation timeout plus headroom for in-flight wakes)
	if err := app.Shutdown(30 * time.Second); err != nil {
		logger.ErrorCtx(app.ctx, "Application shutdown failed: %v", err)
		os.Exit(1)
	}

	logger.InfoCtx(app.ctx, "Application safely exited")
}
