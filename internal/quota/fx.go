package quota

import (
	"errors"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/reviewmeter/internal/clock"
	"github.com/smallbiznis/reviewmeter/internal/config"
	quotadomain "github.com/smallbiznis/reviewmeter/internal/quota/domain"
	"github.com/smallbiznis/reviewmeter/internal/quota/repository"
	"github.com/smallbiznis/reviewmeter/internal/quota/service"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("quota",
	fx.Provide(provideStore),
	fx.Provide(service.NewLedger),
)

func provideStore(cfg config.Config, db *gorm.DB, client *redis.Client, clk clock.Clock, log *zap.Logger) (quotadomain.Store, error) {
	if cfg.QuotaStore == config.QuotaStoreRedis {
		if client == nil {
			return nil, errors.New("redis quota store selected without a redis client")
		}
		log.Info("using redis quota store")
		return repository.NewRedisStore(client), nil
	}
	return repository.NewSQLStore(db, clk), nil
}
