package main

import (
	"os"
	"os/signal"
	"syscall"

	"meridian/internal/bootstrap"
	"meridian/pkg/logger"
)

func main() {
	container := bootstrap.NewContainer()
	container.MustInit()
	defer logger.Sync()

	log := container.Log

	if err := container.Start(); err != nil {
		log.Fatalf("Failed to start: %v", err)
	}

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Infow("Received shutdown signal", "signal", sig.String())
	case <-container.Context.Done():
		log.Warn("Application context cancelled")
	}

	container.Shutdown()
}
