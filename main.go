package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/pagevault/libsync/runner"
	"github.com/pagevault/libsync/runner/webrunner"
	"github.com/pagevault/libsync/runner/workerrunner"
)

// Runner is a long-running service mode.
type Runner interface {
	Run(context.Context) error
	Close(context.Context) error
}

func main() {
	_ = godotenv.Load() // Load .env file if present
	ctx, cancel := context.WithCancel(context.Background())

	cfg := runner.ParseConfig()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan

		log.Println("Received signal, shutting down...")

		cancel()
	}()

	instance, err := runnerFactory(ctx, cfg)
	if err != nil {
		cancel()
		os.Stderr.WriteString(err.Error() + "\n")

		os.Exit(1)
	}

	if err := instance.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		os.Stderr.WriteString(err.Error() + "\n")

		_ = instance.Close(ctx)

		cancel()

		os.Exit(1)
	}

	_ = instance.Close(ctx)

	cancel()
}

func runnerFactory(ctx context.Context, cfg *runner.Config) (Runner, error) {
	switch cfg.RunMode {
	case runner.RunModeWeb:
		return webrunner.New(ctx, cfg)
	case runner.RunModeWorker:
		return workerrunner.New(ctx, cfg)
	default:
		return nil, fmt.Errorf("%w: %d", runner.ErrInvalidRunMode, cfg.RunMode)
	}
}
