// Package boot holds the start-up steps shared by the storefront binaries.
package boot

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/storefront-settlement/pkg/config"
	"github.com/angelmondragon/storefront-settlement/pkg/logger"
)

var (
	osExit = os.Exit
	exit   = osExit
)

// Load reads an optional .env file, loads config and returns a logger
// leveled by it. cfg.Service.Kind is set to service. A config that fails to
// load exits the process.
func Load(service string) (*config.Config, *logger.Logger) {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: service})
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logg.Warn(ctx, "ignoring unreadable .env: "+err.Error())
	}

	cfg, err := config.Load()
	Must(ctx, logg, "config", err)
	cfg.Service.Kind = service

	return cfg, logger.New(logger.Options{
		ServiceName: service,
		Level:       cfg.App.LogLevel,
		WarnStack:   cfg.App.LogWarnStack,
	})
}

// Must exits when a resource the binary cannot run without failed to start.
func Must(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(logg.WithField(ctx, "resource", resource), "resource not working: "+resource, err)
	exit(1)
}

// Close is for deferred shutdown of clients; failures are only logged.
func Close(ctx context.Context, logg *logger.Logger, name string, c io.Closer) {
	if err := c.Close(); err != nil {
		logg.Error(logg.WithField(context.WithoutCancel(ctx), "resource", name), "close failed", err)
	}
}
