// Package cli provides common CLI initialization utilities shared by
// cmd/financeflow and cmd/financeflow-watch.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"financeflow/internal/config"
	"financeflow/internal/log"
)

// DefaultTUILogFile is where the dashboard logs when LOG_FILE is unset, so
// log lines never land on the terminal it draws on.
const DefaultTUILogFile = "./data/financeflow.log"

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// SetupLogger initializes structured logging from the configuration and sets
// it as the process default. With forceFile the output goes to a file even
// when LOG_FILE is empty.
func SetupLogger(cfg *config.Config, component string, forceFile bool) *log.Logger {
	lc := log.DefaultConfig()
	lc.Component = component
	lc.Level = log.ParseLevel(cfg.LogLevel)
	lc.File = cfg.LogFile
	if lc.File == "" && forceFile {
		lc.File = DefaultTUILogFile
	}
	logger := log.New(lc)
	log.SetDefault(logger)
	return logger
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig() *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		// The logger depends on the config, so report on stderr directly.
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}
	return cfg
}

// GracefulShutdown returns a context cancelled on SIGINT or SIGTERM. cleanup
// runs once, bounded by timeout, before the returned channel closes.
func GracefulShutdown(logger *log.Logger, timeout time.Duration, cleanup func()) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		cancel()

		finished := make(chan struct{})
		go func() {
			if cleanup != nil {
				cleanup()
			}
			close(finished)
		}()

		select {
		case <-finished:
			logger.Info("Shutdown complete")
		case <-time.After(timeout):
			logger.Warn("Shutdown timeout reached")
		}
		close(done)
	}()

	return ctx, done
}

// WaitForShutdown blocks until the context is cancelled and cleanup is done.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
