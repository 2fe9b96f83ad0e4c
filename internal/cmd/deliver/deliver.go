// Package deliver parses delivery command flags and composes the service
// entrypoint.
package deliver

import (
	"context"
	"flag"
	"fmt"
	"time"

	entrypoint "github.com/l0lusurname/DonutShopAutoDeliver/internal/platform/cmd"
	server "github.com/l0lusurname/DonutShopAutoDeliver/internal/services/delivery/app"
)

// Config holds delivery command configuration.
type Config struct {
	HTTPAddr         string        `env:"DONUT_DELIVER_HTTP_ADDR"          envDefault:":8080"`
	GameAddr         string        `env:"DONUT_DELIVER_GAME_ADDR"`
	StatusWebhookURL string        `env:"DONUT_DELIVER_STATUS_WEBHOOK_URL"`
	CatalogPath      string        `env:"DONUT_DELIVER_CATALOG_PATH"`
	CustomFieldName  string        `env:"DONUT_DELIVER_CUSTOM_FIELD_NAME"  envDefault:"In game name"`
	StoragePath      string        `env:"DONUT_DELIVER_STORAGE_PATH"`
	CommandDelay     time.Duration `env:"DONUT_DELIVER_COMMAND_DELAY"      envDefault:"500ms"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}

	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "delivery HTTP listen address")
	fs.StringVar(&cfg.GameAddr, "game-addr", cfg.GameAddr, "game server console address")
	fs.StringVar(&cfg.StatusWebhookURL, "status-webhook-url", cfg.StatusWebhookURL, "chat webhook URL for status events")
	fs.StringVar(&cfg.CatalogPath, "catalog-path", cfg.CatalogPath, "product catalog JSON file")
	fs.StringVar(&cfg.CustomFieldName, "custom-field-name", cfg.CustomFieldName, "shop custom field carrying the in-game name")
	fs.StringVar(&cfg.StoragePath, "storage-path", cfg.StoragePath, "SQLite delivery ledger path")
	fs.DurationVar(&cfg.CommandDelay, "command-delay", cfg.CommandDelay, "delay between outbound game commands")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run builds the delivery app and serves it until the context ends.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceDeliver, func(context.Context) error {
		triggerGrant, err := server.LoadTriggerGrantConfigFromEnv(nil)
		if err != nil {
			return fmt.Errorf("load trigger grant config: %w", err)
		}
		if err := server.Run(ctx, server.Config{
			HTTPAddr:         cfg.HTTPAddr,
			GameAddr:         cfg.GameAddr,
			StatusWebhookURL: cfg.StatusWebhookURL,
			CatalogPath:      cfg.CatalogPath,
			CustomFieldName:  cfg.CustomFieldName,
			StoragePath:      cfg.StoragePath,
			CommandDelay:     cfg.CommandDelay,
			TriggerGrant:     triggerGrant,
		}); err != nil {
			return fmt.Errorf("serve delivery: %w", err)
		}
		return nil
	})
}
