package occupancy

import (
	"github.com/smallbiznis/parkway/internal/config"
	"go.uber.org/fx"
)

var Module = fx.Module("occupancy.coordinator",
	fx.Provide(provideConfig),
	fx.Provide(New),
	fx.Provide(ProvideReconciliationRepository),
)

func provideConfig(cfg config.Config) Config {
	return Config{
		Retries: cfg.ReleaseRetries,
		Backoff: cfg.ReleaseBackoff,
	}
}
