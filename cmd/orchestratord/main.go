// Command orchestratord runs the training-job orchestrator: the HTTP
// Orchestration API, the Worker Pool, and the Dataset Builder in one process.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/foundryml/forge/internal/app"
	"github.com/foundryml/forge/internal/server"
)

func main() {
	configPath := os.Getenv("FORGE_CONFIG")

	a, err := app.NewApp(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize app: %v\n", err)
		os.Exit(1)
	}

	if err := a.Start(); err != nil {
		a.Logger.Fatal().Err(err).Msg("failed to start worker pool")
	}

	srv := server.NewServer(a)

	shutdownChan := make(chan struct{}, 1)
	srv.SetShutdownChannel(shutdownChan)

	go func() {
		if err := srv.Start(); err != nil {
			a.Logger.Error().Err(err).Msg("orchestration API server stopped")
		}
	}()

	a.Logger.Info().
		Int("port", a.Config.Server.Port).
		Msg("orchestrator ready")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigChan:
		a.Logger.Info().Msg("shutdown signal received")
	case <-shutdownChan:
		a.Logger.Info().Msg("shutdown requested via HTTP endpoint")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		a.Logger.Error().Err(err).Msg("orchestration API server shutdown failed")
	}

	a.Close()
	a.Logger.Info().Msg("orchestrator stopped")
}
