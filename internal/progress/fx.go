package progress

import (
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/reviewmeter/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("progress",
	fx.Provide(NewRegistry),
	fx.Invoke(func(lc fx.Lifecycle, cfg config.Config, registry *Registry, client *redis.Client, log *zap.Logger) {
		EnableRelay(lc, registry, client, log, cfg.Progress.Relay)
	}),
)
