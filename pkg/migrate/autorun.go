package migrate

import (
	"context"
	"fmt"

	"github.com/angelmondragon/storefront-settlement/pkg/config"
	"github.com/angelmondragon/storefront-settlement/pkg/db"
	"github.com/angelmondragon/storefront-settlement/pkg/logger"
)

// MaybeRunDev applies the embedded migrations on startup when running in dev
// with STOREFRONT_AUTO_MIGRATE set.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate {
		return nil
	}
	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("sql handle: %w", err)
	}
	m, err := New(sqlDB, Embedded())
	if err != nil {
		return err
	}
	results, err := m.Run(ctx, CommandUp, "")
	for _, res := range results {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"version":     res.Version,
			"path":        res.Path,
			"duration_ms": res.DurationMS,
		}), "migration applied")
	}
	if err != nil {
		return fmt.Errorf("dev auto-migrate: %w", err)
	}
	return nil
}
